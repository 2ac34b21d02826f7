package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineInit wraps every failure to construct an engine or one of
	// its script runtimes.
	ErrEngineInit = errors.New("engine init failed")

	// ErrCapacityExceeded is recorded on a result whose emits did not fit
	// in the fixed token/slot capacity.
	ErrCapacityExceeded = errors.New("emit capacity exceeded")

	// ErrKindMismatch is returned by a result accessor that does not match
	// the token kind at the requested index.
	ErrKindMismatch = errors.New("token kind mismatch")

	// ErrIndexOutOfRange is returned by a result accessor for an index
	// outside [0, Len()).
	ErrIndexOutOfRange = errors.New("token index out of range")

	// ErrClosed is recorded on results routed after the pool was closed.
	ErrClosed = errors.New("engine closed")
)

// CompileError reports that a script failed to compile or run its top
// level on one worker. Earlier registrations for the path are kept.
type CompileError struct {
	Worker int
	Path   string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("worker %d: compiling %s: %v", e.Worker, e.Path, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// ScriptError reports an exception thrown by a mapping function.
type ScriptError struct {
	Worker int
	Path   string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("worker %d: running %s: %v", e.Worker, e.Path, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// ScriptNotFoundError is returned by loaders that have no source for a path.
type ScriptNotFoundError struct {
	Path string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script %q not found", e.Path)
}
