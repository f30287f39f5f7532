// Package deferred provides a one-shot completion cell that any number of
// readers can wait on.
package deferred

import (
	"context"
	"sync"
)

// State tells whether a Deferred has settled and how.
type State int

// The states of a Deferred.
const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// A Deferred holds a value or an error that becomes available exactly once.
//
// Only the first call to Resolve or Reject has an effect. All readers, no
// matter when they start waiting, observe the same outcome.
type Deferred[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	done      chan struct{}
	callbacks []func(T, error)
}

// New creates a pending Deferred.
func New[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// ResolvedWith creates a Deferred that is already resolved with v.
func ResolvedWith[T any](v T) *Deferred[T] {
	d := New[T]()
	d.Resolve(v)

	return d
}

// RejectedWith creates a Deferred that is already rejected with err.
func RejectedWith[T any](err error) *Deferred[T] {
	d := New[T]()
	d.Reject(err)

	return d
}

// Resolve settles the Deferred with a value. It returns false if the Deferred
// was already settled.
func (d *Deferred[T]) Resolve(v T) bool {
	return d.settle(Resolved, v, nil)
}

// Reject settles the Deferred with an error. It returns false if the Deferred
// was already settled.
func (d *Deferred[T]) Reject(err error) bool {
	var zero T
	return d.settle(Rejected, zero, err)
}

func (d *Deferred[T]) settle(state State, v T, err error) bool {
	d.mu.Lock()
	if d.state != Pending {
		d.mu.Unlock()
		return false
	}

	d.state = state
	d.value = v
	d.err = err
	callbacks := d.callbacks
	d.callbacks = nil
	close(d.done)
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}

	return true
}

// Then registers a callback that runs once the Deferred settles. If it has
// already settled, the callback runs immediately on the caller's goroutine.
// Otherwise it runs on the goroutine that settles the Deferred.
func (d *Deferred[T]) Then(cb func(T, error)) {
	d.mu.Lock()
	if d.state == Pending {
		d.callbacks = append(d.callbacks, cb)
		d.mu.Unlock()

		return
	}

	v, err := d.value, d.err
	d.mu.Unlock()

	cb(v, err)
}

// Done returns a channel that is closed when the Deferred settles.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the Deferred settles or ctx is done.
func (d *Deferred[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled value and error. Both are zero while the
// Deferred is pending.
func (d *Deferred[T]) Result() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.value, d.err
}

// State returns the current settle state.
func (d *Deferred[T]) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// IsSettled returns true once the Deferred is resolved or rejected.
func (d *Deferred[T]) IsSettled() bool {
	return d.State() != Pending
}

// Race returns a Deferred that settles with the outcome of the first input to
// settle. When several inputs have already settled, the earliest argument
// wins. Race with no input never settles.
func Race[T any](ds ...*Deferred[T]) *Deferred[T] {
	out := New[T]()

	for _, d := range ds {
		d.Then(func(v T, err error) {
			if err != nil {
				out.Reject(err)
				return
			}

			out.Resolve(v)
		})
	}

	return out
}

// Any returns a Deferred that resolves with the index of the first input to
// settle, regardless of whether that input resolved or rejected.
func Any[T any](ds ...*Deferred[T]) *Deferred[int] {
	out := New[int]()

	for i, d := range ds {
		d.Then(func(T, error) {
			out.Resolve(i)
		})
	}

	return out
}
