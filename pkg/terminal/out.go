package terminal

import (
	"io"

	"github.com/mattn/go-colorable"
	sys "golang.org/x/sys/unix"
)

// getColorableWriter returns a writer for stdout that understands ANSI
// escape sequences.
func getColorableWriter() io.Writer {
	return colorable.NewColorableStdout()
}

// stopTarget asks a running target to stop, the stop is reported by the
// pending wait.
func stopTarget(pid int) error {
	if pid <= 0 {
		return nil
	}
	return sys.Kill(pid, sys.SIGSTOP)
}
