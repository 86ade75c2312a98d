package proc

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawnFailure is matched by errors returned when a process could not
	// be created or could not exec the target program.
	ErrSpawnFailure = errors.New("spawn failure")
	// ErrAttachRefused is matched by errors returned when trace control over
	// an existing process could not be obtained.
	ErrAttachRefused = errors.New("attach refused")
	// ErrWaitFailure is matched by errors returned when the tracked process
	// can no longer be waited on.
	ErrWaitFailure = errors.New("wait failure")
	// ErrInvalidState is matched by errors returned when an operation is not
	// allowed in the current process state.
	ErrInvalidState = errors.New("invalid state")
)

// SpawnError is returned by Launch.
type SpawnError struct {
	Path string
	// Msg is the diagnostic reported by the child, if any.
	Msg string
	Err error
}

func (e *SpawnError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("could not launch %q", e.Path)
	}
	return fmt.Sprintf("could not launch %q: %s", e.Path, msg)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawnFailure }

// AttachError is returned by Attach.
type AttachError struct {
	Pid    int
	Reason string
	Err    error
}

func (e *AttachError) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("could not attach to pid %d: %s: %v", e.Pid, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("could not attach to pid %d: %v", e.Pid, e.Err)
	default:
		return fmt.Sprintf("could not attach to pid %d: %s", e.Pid, e.Reason)
	}
}

func (e *AttachError) Unwrap() error { return e.Err }

func (e *AttachError) Is(target error) bool { return target == ErrAttachRefused }

// WaitError is returned by Wait when the process is unknown to the
// operating system or has already been reaped.
type WaitError struct {
	Pid   int
	State State
	Err   error
}

func (e *WaitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not wait on process %d: process already %s", e.Pid, e.State)
	}
	return fmt.Sprintf("could not wait on process %d: %v", e.Pid, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

func (e *WaitError) Is(target error) bool { return target == ErrWaitFailure }

// StateError is returned when Op is attempted while the process is in
// State, or after the session released the process.
type StateError struct {
	Op       string
	State    State
	Released bool
}

func (e *StateError) Error() string {
	if e.Released {
		return fmt.Sprintf("can not %s a process that has been released", e.Op)
	}
	return fmt.Sprintf("can not %s a process that is %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }
