package process

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Process and Manager operations.
var (
	ErrExhausted         = errors.New("retries exhausted")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotContinuous     = errors.New("continuous mode not active")
	ErrStopped           = errors.New("process stopped")
	ErrPaused            = errors.New("process paused")
	ErrInvalidConfig     = errors.New("invalid process config")
	ErrAlreadyRegistered = errors.New("process already registered")
	ErrNotFound          = errors.New("process not found")
)

// ExhaustedError is returned when every attempt of a logical invocation failed.
// It matches ErrExhausted and unwraps to the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// TransitionError reports a rejected control request. It is informational:
// the request was a no-op and the process state is unchanged.
type TransitionError struct {
	From  State
	To    State
	Cause error
}

func (e *TransitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot transition from %s to %s: %v", e.From, e.To, e.Cause)
	}
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidTransition, e.Cause}
	}
	return []error{ErrInvalidTransition}
}

// PanicError wraps a value recovered from a panicking process function or optimizer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
