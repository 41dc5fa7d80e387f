package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument marks caller misuse: an empty action type, a nil
	// reducer or listener, a negative history size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvariant marks a broken internal-consistency guarantee, such as the
	// actions queue losing its sequence type.
	ErrInvariant = errors.New("state invariant violated")
)

// ArgumentError describes a rejected argument to a Store operation.
type ArgumentError struct {
	Op     string
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Op, e.Arg, e.Reason)
}

// Unwrap returns ErrInvalidArgument.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// DispatchError captures context when a dispatch fails.
//
//   - Action: the action being processed when the failure occurred
//   - Path: every action type processed by the dispatch, in order
//   - Reducer: index of the failing reducer, or -1 when no reducer failed
//   - Err: the underlying error
type DispatchError struct {
	Action  string
	Path    []string
	Reducer int
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Reducer >= 0 {
		return fmt.Sprintf("dispatch %s failed at reducer %d (path %s): %v",
			e.Action, e.Reducer, strings.Join(e.Path, " > "), e.Err)
	}
	return fmt.Sprintf("dispatch %s failed (path %s): %v",
		e.Action, strings.Join(e.Path, " > "), e.Err)
}

// Unwrap enables error unwrapping for errors.Is and errors.As.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// ListenerError reports the listener that failed during a broadcast. The
// remaining listeners of that broadcast were not called.
type ListenerError struct {
	Index int
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("storage listener %d failed: %v", e.Index, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}
