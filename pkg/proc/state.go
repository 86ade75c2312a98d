package proc

import (
	"fmt"
	"syscall"
)

// State is the lifecycle state of a traced process.
type State uint8

const (
	StateUninitialized State = iota // no process has been assigned yet
	StateStopped                    // the process is in a trace-stop
	StateRunning                    // the process was resumed and has not been waited on
	StateExited                     // the process exited normally
	StateKilled                     // the process was terminated by a signal
)

// String maps State to string representation.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal returns true if no further state change can be observed for a
// process in state s.
func (s State) Terminal() bool {
	return s == StateExited || s == StateKilled
}

// Mode records how the session obtained the process. It is fixed when the
// process is created.
type Mode uint8

const (
	// ModeOwned means the session spawned the process and is responsible
	// for terminating it.
	ModeOwned Mode = iota
	// ModeAttached means the process existed before the session and must
	// be left running when the session ends.
	ModeAttached
)

func (m Mode) String() string {
	switch m {
	case ModeOwned:
		return "owned"
	case ModeAttached:
		return "attached"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// StopReason classifies a wait notification.
type StopReason uint8

const (
	StopNone   StopReason = iota // no stop has been observed
	StopSignal                   // the process stopped with Signal
	StopExited                   // the process exited with ExitCode
	StopKilled                   // the process was terminated by Signal
)

// StopInfo is the classified outcome of waiting on a traced process.
type StopInfo struct {
	Reason   StopReason
	ExitCode int
	Signal   syscall.Signal
}

// State returns the process state implied by the stop.
func (si StopInfo) State() State {
	switch si.Reason {
	case StopSignal:
		return StateStopped
	case StopExited:
		return StateExited
	case StopKilled:
		return StateKilled
	default:
		return StateUninitialized
	}
}

// Value returns the number that classified the stop: the exit code for an
// exit, the signal number otherwise.
func (si StopInfo) Value() int {
	if si.Reason == StopExited {
		return si.ExitCode
	}
	return int(si.Signal)
}

// String describes the stop the same way for every target, for example
// "exited with status 3" or "stopped with signal trace/breakpoint trap".
func (si StopInfo) String() string {
	switch si.Reason {
	case StopExited:
		return fmt.Sprintf("exited with status %d", si.ExitCode)
	case StopKilled:
		return fmt.Sprintf("terminated with signal %s", si.Signal)
	case StopSignal:
		return fmt.Sprintf("stopped with signal %s", si.Signal)
	default:
		return "has not stopped"
	}
}

// Describe renders the outcome of a wait on process pid.
func Describe(pid int, si StopInfo) string {
	return fmt.Sprintf("Process %d %s", pid, si)
}
