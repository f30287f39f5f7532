package stage

import (
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/sarchlab/itch/sim"
)

// A script is a function attached to a hat.
type script struct {
	actor *Actor
	hat   sim.Hat
	fn    *lua.LFunction
}

// Thread is one running script. Each thread runs as a Lua coroutine that is
// resumed once per step.
type Thread struct {
	id       uint64
	script   *script
	co       *lua.LState
	done     atomic.Bool
	question *sim.Question
}

// ID returns the ID of the thread.
func (t *Thread) ID() uint64 {
	return t.id
}

// Actor returns the owner of the script.
func (t *Thread) Actor() sim.Actor {
	return t.script.actor
}

// Hat returns the hat that started the thread.
func (t *Thread) Hat() sim.Hat {
	return t.script.hat
}

// Done tells whether the thread has finished.
func (t *Thread) Done() bool {
	return t.done.Load()
}

var _ sim.Thread = (*Thread)(nil)
