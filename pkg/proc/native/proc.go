//go:build linux

package native

import (
	"fmt"
	"os"
	"runtime"

	"github.com/bkptdbg/bkpt/pkg/logflags"
	"github.com/bkptdbg/bkpt/pkg/proc"
)

// Process represents all of the information the debugger
// is holding onto regarding the process we are debugging.
//
// A Process is driven by a single owner: Resume and Wait must strictly
// alternate and no two operations may run concurrently.
type Process struct {
	pid   int // Process Pid
	state proc.State
	mode  proc.Mode
	last  proc.StopInfo

	// released is set once Cleanup has run; the process is no longer ours.
	released bool

	ctty *os.File

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}
}

// newProcess returns an initialized Process struct. Before returning,
// it will also launch a goroutine in order to handle ptrace(2)
// functions. For more information, see the documentation on
// `handlePtraceFuncs`.
func newProcess(pid int) *Process {
	dbp := &Process{
		pid:            pid,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
	}
	go dbp.handlePtraceFuncs()
	return dbp
}

// Pid returns the process ID.
func (dbp *Process) Pid() int {
	return dbp.pid
}

// State returns the lifecycle state of the process.
func (dbp *Process) State() proc.State {
	return dbp.state
}

// Mode returns whether the process was launched or attached to.
func (dbp *Process) Mode() proc.Mode {
	return dbp.mode
}

// LastStop returns the outcome of the most recent wait.
func (dbp *Process) LastStop() proc.StopInfo {
	return dbp.last
}

// Released returns true after Cleanup has run.
func (dbp *Process) Released() bool {
	return dbp.released
}

// Resume continues a stopped process. It is an error to resume a process
// that is not stopped.
func (dbp *Process) Resume() error {
	if dbp.released {
		return &proc.StateError{Op: "resume", State: dbp.state, Released: true}
	}
	if dbp.state != proc.StateStopped {
		return &proc.StateError{Op: "resume", State: dbp.state}
	}
	var err error
	dbp.execPtraceFunc(func() { err = ptraceCont(dbp.pid, 0) })
	if err != nil {
		return fmt.Errorf("could not resume process %d: %w", dbp.pid, err)
	}
	logflags.ProcLogger().Debugf("resumed process %d", dbp.pid)
	dbp.state = proc.StateRunning
	return nil
}

// Wait blocks until the process stops, exits or is terminated by a signal
// and returns the classified outcome.
// Wait is meant to follow Resume. Called on a process that is already
// stopped it only returns once something else changes the state of the
// process, for example a SIGKILL, and otherwise blocks forever.
func (dbp *Process) Wait() (proc.StopInfo, error) {
	if dbp.released {
		return proc.StopInfo{}, &proc.StateError{Op: "wait on", State: dbp.state, Released: true}
	}
	if dbp.pid == 0 {
		return proc.StopInfo{}, &proc.StateError{Op: "wait on", State: dbp.state}
	}
	if dbp.state.Terminal() {
		return proc.StopInfo{}, &proc.WaitError{Pid: dbp.pid, State: dbp.state}
	}
	si, err := dbp.wait()
	if err != nil {
		return proc.StopInfo{}, &proc.WaitError{Pid: dbp.pid, Err: err}
	}
	dbp.setStop(si)
	return si, nil
}

func (dbp *Process) setStop(si proc.StopInfo) {
	logflags.ProcLogger().Debugf("process %d %s", dbp.pid, si)
	dbp.last = si
	dbp.state = si.State()
}

// Cleanup releases the process. A running process is stopped first so
// that trace control is never released mid-execution. An attached process
// is detached and left running, a launched process is killed and reaped.
// Cleanup can be called any number of times from any state; only the
// first call has an effect.
func (dbp *Process) Cleanup() error {
	if dbp.pid == 0 || dbp.released {
		return nil
	}
	log := logflags.ProcLogger().WithField("pid", dbp.pid)
	var firstErr error
	keep := func(err error) {
		if err != nil {
			log.Errorf("cleanup: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if dbp.state == proc.StateRunning {
		keep(dbp.stop())
	}

	if dbp.state == proc.StateStopped {
		var err error
		dbp.execPtraceFunc(func() { err = ptraceDetach(dbp.pid, 0) })
		keep(err)
		if dbp.mode == proc.ModeAttached {
			keep(sysKill(dbp.pid, sigCont))
			log.Debugf("detached, target status %c", status(dbp.pid))
		}
	}

	if dbp.mode == proc.ModeOwned && !dbp.state.Terminal() {
		keep(dbp.kill())
	}

	dbp.released = true
	dbp.postExit()
	return firstErr
}

// stop requests a running process to stop and waits for the stop to be
// reported.
func (dbp *Process) stop() error {
	if err := sysKill(dbp.pid, sigStop); err != nil {
		return err
	}
	si, err := dbp.wait()
	if err != nil {
		return err
	}
	dbp.setStop(si)
	return nil
}

func (dbp *Process) handlePtraceFuncs() {
	// We must ensure here that we are running on the same thread during
	// while invoking the ptrace(2) syscall. This is due to the fact that ptrace(2) expects
	// all commands after PTRACE_ATTACH to come from the same thread.
	runtime.LockOSThread()

	for fn := range dbp.ptraceChan {
		fn()
		dbp.ptraceDoneChan <- nil
	}
}

func (dbp *Process) execPtraceFunc(fn func()) {
	dbp.ptraceChan <- fn
	<-dbp.ptraceDoneChan
}

// postExit stops the ptrace thread and releases the controlling terminal
// handed to the target, if any.
func (dbp *Process) postExit() {
	if dbp.ptraceChan != nil {
		close(dbp.ptraceChan)
		dbp.ptraceChan = nil
		dbp.ptraceDoneChan = nil
	}
	if dbp.ctty != nil {
		dbp.ctty.Close()
		dbp.ctty = nil
	}
}
