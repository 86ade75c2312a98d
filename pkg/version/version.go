// Package version holds the version of bkpt and of the packages it was
// built from.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Version represents the current version of bkpt.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// BkptVersion is the current version of bkpt.
var BkptVersion = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	if strings.HasPrefix(v.Build, "$Id$") {
		fixBuild(&v)
	}
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

var fixBuild = func(v *Version) {}

var buildInfo = func() string {
	return ""
}

// BuildInfo returns the Go version bkpt was compiled with and the
// versions of its dependencies.
func BuildInfo() string {
	return fmt.Sprintf("%s\n%s", runtime.Version(), buildInfo())
}
