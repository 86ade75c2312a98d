package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

func init() {
	buildInfo = moduleBuildInfo
}

// moduleBuildInfo lists the main module and every dependency linked into
// the binary, one per line.
func moduleBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "not built in module mode"
	}

	var buf strings.Builder
	module := func(kind string, m *debug.Module) {
		fmt.Fprintf(&buf, " %s\t%s\t%s", kind, m.Path, m.Version)
		if m.Replace != nil {
			fmt.Fprintf(&buf, "\t=> %s\t%s", m.Replace.Path, m.Replace.Version)
		}
		buf.WriteByte('\n')
	}
	module("mod", &info.Main)
	for _, dep := range info.Deps {
		module("dep", dep)
	}
	return buf.String()
}
