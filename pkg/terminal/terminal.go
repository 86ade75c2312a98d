package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/go-delve/liner"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mattn/go-isatty"

	"github.com/bkptdbg/bkpt/pkg/command"
	"github.com/bkptdbg/bkpt/pkg/config"
	"github.com/bkptdbg/bkpt/pkg/logflags"
	"github.com/bkptdbg/bkpt/pkg/proc"
)

const (
	historyFile                 string = ".bkpt_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"

	completionCacheSize = 128
)

const (
	ansiBlack   = 30
	ansiYellow  = 33
	ansiWhite   = 37
	ansiBrBlack = 90
	ansiBrWhite = 97
)

// builtinAliases are merged with the aliases of the configuration file.
var builtinAliases = map[string][]string{
	"quit": {"exit"},
}

// LineReader reads the lines typed by the user.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// Target is the process being debugged.
type Target interface {
	Pid() int
	State() proc.State
	Mode() proc.Mode
	LastStop() proc.StopInfo
	Resume() error
	Wait() (proc.StopInfo, error)
	Cleanup() error
}

// Term represents the terminal running bkpt.
type Term struct {
	target   Target
	conf     *config.Config
	prompt   string
	line     LineReader
	grammar  *command.Grammar
	dumb     bool
	stdout   io.Writer
	stderr   io.Writer
	InitFile string

	completions *lru.Cache

	runningMutex sync.Mutex
	running      bool
}

// New returns a new Term reading from the controlling terminal.
func New(target Target, conf *config.Config) *Term {
	var w io.Writer

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if dumb {
		w = os.Stdout
	} else {
		w = getColorableWriter()
	}

	line := liner.NewLiner()
	t := newTerm(target, conf, line, w, os.Stderr)
	t.dumb = dumb || !isatty.IsTerminal(os.Stdout.Fd())
	line.SetCompleter(t.complete)
	return t
}

func newTerm(target Target, conf *config.Config, line LineReader, stdout, stderr io.Writer) *Term {
	if conf == nil {
		conf = &config.Config{}
	}

	aliases := map[string][]string{}
	for cmd, as := range builtinAliases {
		aliases[cmd] = append(aliases[cmd], as...)
	}
	for cmd, as := range conf.Aliases {
		aliases[cmd] = append(aliases[cmd], as...)
	}

	if (conf.StopColor > ansiWhite &&
		conf.StopColor < ansiBrBlack) ||
		conf.StopColor < ansiBlack ||
		conf.StopColor > ansiBrWhite {
		conf.StopColor = ansiYellow
	}

	prompt := "(bkpt) "
	if conf.Prompt != "" {
		prompt = conf.Prompt
	}

	completions, _ := lru.New(completionCacheSize)

	return &Term{
		target:      target,
		conf:        conf,
		prompt:      prompt,
		line:        line,
		grammar:     command.DefaultGrammar(aliases),
		dumb:        true,
		stdout:      stdout,
		stderr:      stderr,
		completions: completions,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

func (t *Term) setRunning(running bool) {
	t.runningMutex.Lock()
	t.running = running
	t.runningMutex.Unlock()
}

func (t *Term) isRunning() bool {
	t.runningMutex.Lock()
	defer t.runningMutex.Unlock()
	return t.running
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		if !t.isRunning() {
			continue
		}
		fmt.Fprintf(t.stdout, "received SIGINT, stopping process (will not forward signal)\n")
		if err := stopTarget(t.target.Pid()); err != nil {
			fmt.Fprintf(t.stderr, "%v\n", err)
		}
	}
}

// complete returns the completions for line, caching the result.
func (t *Term) complete(line string) []string {
	if c, ok := t.completions.Get(line); ok {
		return c.([]string)
	}
	c := t.grammar.Complete(line)
	t.completions.Add(line, c)
	return c
}

// Run begins running bkpt in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	// Stop the target on SIGINT
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.loadHistory()
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")
	if t.target != nil {
		t.printStop(t.target.LastStop())
	}

	if t.InitFile != "" {
		err := t.executeFile(t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(t.stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.Execute(cmdstr); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(t.stderr, "Command failed: %s\n", err)
		}
	}
}

// Println prints a line to the terminal using the stop color.
func (t *Term) Println(str string) {
	if !t.dumb {
		terminalColorEscapeCode := fmt.Sprintf(terminalHighlightEscapeCode, t.conf.StopColor)
		str = fmt.Sprintf("%s%s%s", terminalColorEscapeCode, str, terminalResetEscapeCode)
	}
	fmt.Fprintln(t.stdout, str)
}

func (t *Term) printStop(si proc.StopInfo) {
	if si.Reason == proc.StopNone {
		return
	}
	t.Println(proc.Describe(t.target.Pid(), si))
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

type historian interface {
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
}

func (t *Term) loadHistory() {
	h, ok := t.line.(historian)
	if !ok {
		return
	}
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintf(t.stderr, "Unable to load history file: %v.\n", err)
		return
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Fprintf(t.stderr, "Unable to open history file: %v. History will not be saved for this session.\n", err)
			return
		}
	}

	h.ReadHistory(f)
	f.Close()
}

func (t *Term) saveHistory() {
	h, ok := t.line.(historian)
	if !ok {
		return
	}
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintln(t.stderr, "Error saving history file:", err)
		return
	}
	if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
		_, err = h.WriteHistory(f)
		if err != nil {
			fmt.Fprintln(t.stderr, "readline history error:", err)
		}
		f.Close()
	}
}

// handleExit releases the target: an attached process is detached and left
// running, a launched process is killed.
func (t *Term) handleExit() (int, error) {
	t.saveHistory()

	if t.target == nil {
		return 0, nil
	}
	log := logflags.TerminalLogger()
	if !t.target.State().Terminal() {
		if t.target.Mode() == proc.ModeAttached {
			fmt.Fprintf(t.stdout, "Detaching from process %d\n", t.target.Pid())
		} else {
			fmt.Fprintf(t.stdout, "Killing process %d\n", t.target.Pid())
		}
	}
	if err := t.target.Cleanup(); err != nil {
		log.Errorf("cleanup of process %d: %v", t.target.Pid(), err)
		return 1, err
	}
	return 0, nil
}
