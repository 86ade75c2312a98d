package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bkptdbg/bkpt/pkg/command"
	"github.com/bkptdbg/bkpt/pkg/logflags"
)

var errNoProcess = errors.New("no process is being debugged")

// ExitRequestError is returned when the user
// exits bkpt.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

// Execute runs one line of input. Blank lines are ignored.
func (t *Term) Execute(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	action, toks, err := t.grammar.Dispatch(line)
	if err != nil {
		return err
	}
	defer toks.Release()
	logflags.TerminalLogger().Debugf("%q: %s", toks.Line(), action)

	switch action {
	case command.ActionQuit:
		return ExitRequestError{}
	case command.ActionContinue:
		return t.cont()
	case command.ActionHelp:
		fmt.Fprint(t.stdout, t.grammar.Help())
		return nil
	case command.ActionPrintf, command.ActionConvert, command.ActionTodo:
		return fmt.Errorf("%s: not implemented", action)
	}
	return fmt.Errorf("unexpected action %s", action)
}

// cont resumes the target and waits for it to stop again.
func (t *Term) cont() error {
	if t.target == nil {
		return errNoProcess
	}
	if err := t.target.Resume(); err != nil {
		return err
	}
	t.setRunning(true)
	si, err := t.target.Wait()
	t.setRunning(false)
	if err != nil {
		return err
	}
	t.printStop(si)
	return nil
}

// executeFile runs every line of the file name, lines starting with '#'
// are comments.
func (t *Term) executeFile(name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := t.Execute(line); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stderr, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
