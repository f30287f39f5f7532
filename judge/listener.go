package judge

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/itch/deferred"
	"github.com/sarchlab/itch/sim"
)

// A listener is notified of the signals the simulation raises. Listeners
// that report done are dropped by the context.
type listener interface {
	notify(pos *sim.HookPos, item any)
	done() bool
}

// threadListener resolves once every tracked thread has finished.
type threadListener struct {
	mu       sync.Mutex
	pending  map[uint64]sim.Thread
	finished *deferred.Deferred[struct{}]
}

func newThreadListener(threads []sim.Thread) *threadListener {
	l := &threadListener{
		pending:  make(map[uint64]sim.Thread, len(threads)),
		finished: deferred.New[struct{}](),
	}

	for _, t := range threads {
		l.pending[t.ID()] = t
	}

	return l
}

// sweep drops the threads that already finished. It must run after the
// listener is registered so that no done signal is missed.
func (l *threadListener) sweep() {
	l.mu.Lock()

	for id, t := range l.pending {
		if t.Done() {
			delete(l.pending, id)
		}
	}

	empty := len(l.pending) == 0
	l.mu.Unlock()

	if empty {
		l.finished.Resolve(struct{}{})
	}
}

func (l *threadListener) notify(pos *sim.HookPos, item any) {
	if pos != sim.HookPosThreadDone {
		return
	}

	t, ok := item.(sim.Thread)
	if !ok {
		return
	}

	l.mu.Lock()
	delete(l.pending, t.ID())
	empty := len(l.pending) == 0
	l.mu.Unlock()

	if empty {
		l.finished.Resolve(struct{}{})
	}
}

func (l *threadListener) done() bool {
	return l.finished.IsSettled()
}

// signalListener resolves on the first broadcast with the given name.
type signalListener struct {
	name     string
	received *deferred.Deferred[string]
}

func newSignalListener(name string) *signalListener {
	return &signalListener{
		name:     name,
		received: deferred.New[string](),
	}
}

func (l *signalListener) notify(pos *sim.HookPos, item any) {
	if pos != sim.HookPosBroadcast {
		return
	}

	if name, ok := item.(string); ok && name == l.name {
		l.received.Resolve(name)
	}
}

func (l *signalListener) done() bool {
	return l.received.IsSettled()
}

// funcListener calls fn for every signal until fn returns true.
type funcListener struct {
	fn       func(pos *sim.HookPos, item any) bool
	finished atomic.Bool
}

func newFuncListener(fn func(pos *sim.HookPos, item any) bool) *funcListener {
	return &funcListener{fn: fn}
}

func (l *funcListener) notify(pos *sim.HookPos, item any) {
	if l.finished.Load() {
		return
	}

	if l.fn(pos, item) {
		l.finished.Store(true)
	}
}

func (l *funcListener) done() bool {
	return l.finished.Load()
}

// stepListener resolves on the first step where the predicate holds.
type stepListener struct {
	mu        sync.Mutex
	predicate func() bool
	satisfied *deferred.Deferred[struct{}]
}

func newStepListener(predicate func() bool) *stepListener {
	return &stepListener{
		predicate: predicate,
		satisfied: deferred.New[struct{}](),
	}
}

// check evaluates the predicate outside of the step loop.
func (l *stepListener) check() {
	l.mu.Lock()
	ok := !l.satisfied.IsSettled() && l.predicate()
	l.mu.Unlock()

	if ok {
		l.satisfied.Resolve(struct{}{})
	}
}

func (l *stepListener) notify(pos *sim.HookPos, _ any) {
	if pos != sim.HookPosStep {
		return
	}

	l.check()
}

func (l *stepListener) done() bool {
	return l.satisfied.IsSettled()
}
