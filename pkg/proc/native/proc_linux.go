package native

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/bkptdbg/bkpt/pkg/logflags"
	"github.com/bkptdbg/bkpt/pkg/proc"
)

// Process statuses
const (
	statusSleeping  = 'S'
	statusRunning   = 'R'
	statusTraceStop = 't'
	statusStopped   = 'T'
	statusZombie    = 'Z'

	personalityGetPersonality = 0xffffffff // argument to pass to personality syscall to get the current personality
	_ADDR_NO_RANDOMIZE        = 0x0040000  // ADDR_NO_RANDOMIZE linux constant
)

const (
	sigStop = sys.SIGSTOP
	sigCont = sys.SIGCONT
	sigKill = sys.SIGKILL
	sigTrap = sys.SIGTRAP
)

// LaunchConfig contains the optional parameters of Launch.
type LaunchConfig struct {
	// WorkingDir is the working directory of the new process, the
	// current directory is used if it is empty.
	WorkingDir string
	// TTY, if not empty, is the path of a terminal used as stdin, stdout
	// and stderr of the new process, which also becomes its controlling
	// terminal.
	TTY string
	// DisableASLR disables address space randomization for the new
	// process.
	DisableASLR bool
}

// Launch creates and begins debugging a new process. First entry in
// `cmd` is the program to run, and then rest are the arguments
// to be supplied to that process.
//
// The child requests to be traced before it executes the program; the
// outcome of the exec is reported back over a close-on-exec pipe, so a
// failed exec is reported as an error after the child has been reaped.
// On success the process is stopped at the first instruction of the new
// program.
func Launch(cmd []string, cfg LaunchConfig) (*Process, error) {
	if len(cmd) == 0 {
		return nil, &proc.SpawnError{Msg: "no program specified"}
	}
	log := logflags.ProcLogger()

	path, err := findExecutable(cmd[0])
	if err != nil {
		return nil, &proc.SpawnError{Path: cmd[0], Err: err}
	}

	var process *exec.Cmd
	dbp := newProcess(0)
	dbp.execPtraceFunc(func() {
		if cfg.DisableASLR {
			oldPersonality, _, err := syscall.Syscall(sys.SYS_PERSONALITY, personalityGetPersonality, 0, 0)
			if err == syscall.Errno(0) {
				newPersonality := oldPersonality | _ADDR_NO_RANDOMIZE
				syscall.Syscall(sys.SYS_PERSONALITY, newPersonality, 0, 0)
				defer syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality, 0, 0)
			}
		}

		process = exec.Command(path)
		process.Args = cmd
		process.Stdin = os.Stdin
		process.Stdout = os.Stdout
		process.Stderr = os.Stderr
		process.SysProcAttr = &syscall.SysProcAttr{
			Ptrace:  true,
			Setpgid: true,
		}
		if cfg.TTY != "" {
			dbp.ctty, err = attachProcessToTTY(process, cfg.TTY)
			if err != nil {
				return
			}
		}
		if cfg.WorkingDir != "" {
			process.Dir = cfg.WorkingDir
		}
		err = process.Start()
	})
	if err != nil {
		dbp.postExit()
		log.Debugf("launch of %q failed: %v", path, err)
		return nil, &proc.SpawnError{Path: path, Msg: spawnDiagnostic(err), Err: err}
	}

	dbp.pid = process.Process.Pid
	dbp.mode = proc.ModeOwned
	// We reap the child with wait4 ourselves.
	process.Process.Release()

	si, err := dbp.wait()
	if err != nil {
		dbp.reap()
		dbp.postExit()
		return nil, &proc.SpawnError{Path: path, Msg: "waiting for target execve failed", Err: err}
	}
	if si.Reason != proc.StopSignal || si.Signal != sigTrap {
		if si.Reason == proc.StopSignal {
			dbp.reap()
		}
		dbp.postExit()
		return nil, &proc.SpawnError{Path: path, Msg: "unexpected " + si.String()}
	}
	dbp.setStop(si)
	log.Debugf("launched %q as process %d", path, dbp.pid)
	return dbp, nil
}

// spawnDiagnostic returns the reason reported by the child for a failed
// exec, without the command path that SpawnError already carries.
func spawnDiagnostic(err error) string {
	var perr *os.PathError
	if errors.As(err, &perr) {
		return fmt.Sprintf("%s: %v", perr.Op, perr.Err)
	}
	return err.Error()
}

// Attach to an existing process with the given PID. The attach only
// succeeds if the first stop reported for the process is the one caused by
// the attach request; otherwise the process is released again.
func Attach(pid int) (*Process, error) {
	if pid <= 0 {
		return nil, &proc.AttachError{Pid: pid, Reason: "invalid pid"}
	}
	log := logflags.ProcLogger()

	dbp := newProcess(pid)
	dbp.mode = proc.ModeAttached

	var err error
	dbp.execPtraceFunc(func() { err = ptraceAttach(dbp.pid) })
	if err != nil {
		dbp.postExit()
		aerr := &proc.AttachError{Pid: pid, Err: err}
		if err == sys.EPERM {
			if tracer, _ := tracerPid(pid); tracer != 0 {
				aerr.Reason = fmt.Sprintf("already traced by process %d", tracer)
			}
		}
		return nil, aerr
	}

	si, err := dbp.wait()
	if err != nil {
		dbp.execPtraceFunc(func() { _ = ptraceDetach(dbp.pid, 0) })
		dbp.postExit()
		return nil, &proc.AttachError{Pid: pid, Reason: "waiting for attach stop failed", Err: err}
	}
	if si.Reason != proc.StopSignal || si.Signal != sigStop {
		if si.Reason == proc.StopSignal {
			// Deliver the signal we intercepted instead of swallowing it.
			dbp.execPtraceFunc(func() { _ = ptraceDetach(dbp.pid, int(si.Signal)) })
		}
		dbp.postExit()
		return nil, &proc.AttachError{Pid: pid, Reason: "process " + si.String()}
	}
	dbp.setStop(si)
	log.Debugf("attached to process %d", pid)
	return dbp, nil
}

// findExecutable resolves the program to run. A path containing a slash is
// used as is, a bare name is looked up in the current directory first and
// then in $PATH.
func findExecutable(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	local := "./" + name
	if fi, err := os.Stat(local); err == nil && !fi.IsDir() && fi.Mode()&0111 != 0 {
		return local, nil
	}
	return exec.LookPath(name)
}

// kill kills the process and reaps it.
func (dbp *Process) kill() error {
	if err := sysKill(dbp.pid, sigKill); err != nil {
		return fmt.Errorf("could not deliver signal: %w", err)
	}
	for {
		si, err := dbp.wait()
		if err != nil {
			return err
		}
		if si.Reason != proc.StopSignal {
			dbp.setStop(si)
			return nil
		}
	}
}

// reap kills and reaps a process that is being abandoned.
func (dbp *Process) reap() {
	_ = sysKill(dbp.pid, sigKill)
	for {
		si, err := dbp.wait()
		if err != nil || si.Reason != proc.StopSignal {
			return
		}
	}
}

func (dbp *Process) wait() (proc.StopInfo, error) {
	var s sys.WaitStatus
	for {
		_, err := sys.Wait4(dbp.pid, &s, sys.WALL, nil)
		if err == sys.EINTR {
			continue
		}
		if err != nil {
			return proc.StopInfo{}, err
		}
		return classifyWaitStatus(s), nil
	}
}

func classifyWaitStatus(s sys.WaitStatus) proc.StopInfo {
	switch {
	case s.Exited():
		return proc.StopInfo{Reason: proc.StopExited, ExitCode: s.ExitStatus()}
	case s.Signaled():
		return proc.StopInfo{Reason: proc.StopKilled, Signal: s.Signal()}
	default:
		return proc.StopInfo{Reason: proc.StopSignal, Signal: s.StopSignal()}
	}
}

func sysKill(pid int, sig syscall.Signal) error {
	err := sys.Kill(pid, sig)
	if err == sys.ESRCH {
		// Already gone, the next wait will tell us how.
		return nil
	}
	return err
}

// status returns the state letter of the process as reported by
// /proc/<pid>/stat, or 0 if it can not be read.
func status(pid int) rune {
	f, err := os.Open(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return '\000'
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return '\000'
	}

	// The second field of /proc/pid/stat is the name of the task in parentheses.
	// Since both parenthesis and spaces can appear inside the name of the task
	// and no escaping happens the state is found after the last parenthesis.
	i := strings.LastIndexByte(line, ')')
	if i < 0 || i+2 >= len(line) {
		return '\000'
	}
	return rune(line[i+2])
}
