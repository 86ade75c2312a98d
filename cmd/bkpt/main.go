package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/bkptdbg/bkpt/cmd/bkpt/cmds"
	"github.com/bkptdbg/bkpt/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.BkptVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		logrus.Debug(err)
		os.Exit(1)
	}
}
