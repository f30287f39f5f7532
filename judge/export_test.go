package judge

import (
	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/sim"
)

// Listener gives the tests access to the signal listeners.
type Listener struct {
	l listener
}

func NewThreadListener(threads []sim.Thread) Listener {
	return Listener{l: newThreadListener(threads)}
}

func NewSignalListener(name string) Listener {
	return Listener{l: newSignalListener(name)}
}

func NewStepListener(predicate func() bool) Listener {
	return Listener{l: newStepListener(predicate)}
}

func NewFuncListener(fn func(pos *sim.HookPos, item any) bool) Listener {
	return Listener{l: newFuncListener(fn)}
}

func (l Listener) Notify(pos *sim.HookPos, item any) {
	l.l.notify(pos, item)
}

func (l Listener) Done() bool {
	return l.l.done()
}

func (l Listener) Sweep() {
	l.l.(*threadListener).sweep()
}

func (l Listener) Check() {
	l.l.(*stepListener).check()
}

func (l Listener) Received() (string, error) {
	return l.l.(*signalListener).received.Result()
}

func (c *Context) Listen(l Listener) func() {
	return c.listen(l.l)
}

func (c *Context) Notify(pos *sim.HookPos, item any) {
	c.notify(pos, item)
}

func (c *Context) NumListeners() int {
	return c.numListeners()
}

func (c *Context) NextAnswer() (string, bool) {
	return c.nextAnswer()
}

func (c *Context) Record(eventType string, data any) *execlog.Event {
	return c.record(eventType, data)
}
