// Package proc defines the vocabulary shared by the process control
// backends: the lifecycle state of a traced process, how the session came
// to own it, the classified outcome of a wait, and the errors reported by
// each operation.
//
// The ptrace(2) implementation lives in package native.
package proc
