package judge

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the judge.
var (
	ErrNotFound       = errors.New("not found")
	ErrTimeout        = errors.New("timeout")
	ErrFatalAssertion = errors.New("fatal assertion failed")
	ErrNoSimulation   = errors.New("no simulation attached")
	ErrTerminated     = errors.New("run terminated")
	ErrAbandoned      = errors.New("node stopped waiting for the action")
)

// NotFoundError reports a missing actor, variable or signal.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TimeoutError reports a synchronous node that did not settle in time.
type TimeoutError struct {
	Action string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within %s", e.Action, e.After)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// FatalAssertionError is raised by assertions that stop the run when they
// fail. The assertion has already reported the failure.
type FatalAssertionError struct {
	Description string
}

func (e *FatalAssertionError) Error() string {
	return "fatal assertion failed: " + e.Description
}

// Is matches ErrFatalAssertion.
func (e *FatalAssertionError) Is(target error) bool {
	return target == ErrFatalAssertion
}

// PanicError wraps a value recovered from a panicking action.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("action panicked: %v", e.Value)
}
