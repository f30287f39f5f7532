package judge

import (
	"fmt"
	"time"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/sim"
)

// EdgeTarget is the touch target that stands for the stage edge.
const EdgeTarget = "edge"

// Delay waits for a nominal duration.
type Delay struct {
	Duration time.Duration
}

// Execute sleeps.
func (a Delay) Execute(c *Context, done DoneFunc) {
	done(nil, sleep(c, a.Duration))
}

func (a Delay) extraTimeout() time.Duration {
	return a.Duration
}

func (a Delay) String() string {
	return fmt.Sprintf("wait %s", a.Duration)
}

// WaitForBroadcast waits until a broadcast with the name is sent, by a
// script or by the judge.
type WaitForBroadcast struct {
	Name string
}

// Execute waits for the broadcast.
func (a WaitForBroadcast) Execute(c *Context, done DoneFunc) {
	l := newSignalListener(a.Name)
	defer c.listen(l)()

	name, err := await(c, l.received)
	done(name, err)
}

func (a WaitForBroadcast) String() string {
	return fmt.Sprintf("wait for broadcast %q", a.Name)
}

// WaitForCondition waits for the first step where Condition holds.
type WaitForCondition struct {
	Description string
	Condition   func(c *Context) bool
}

// Execute polls the condition after every step.
func (a WaitForCondition) Execute(c *Context, done DoneFunc) {
	done(nil, waitStep(c, func() bool { return a.Condition(c) }))
}

func (a WaitForCondition) String() string {
	if a.Description == "" {
		return "wait for condition"
	}

	return "wait until " + a.Description
}

// WaitForSpriteMove waits until the sprite leaves the position it has when
// the action starts.
type WaitForSpriteMove struct {
	Sprite string
}

// Execute polls the position after every step.
func (a WaitForSpriteMove) Execute(c *Context, done DoneFunc) {
	actor, err := actorOf(c, a.Sprite)
	if err != nil {
		done(nil, err)
		return
	}

	from := actor.State()
	err = waitStep(c, func() bool {
		st := actor.State()
		return st.X != from.X || st.Y != from.Y
	})

	done(nil, err)
}

func (a WaitForSpriteMove) String() string {
	return fmt.Sprintf("wait for %q to move", a.Sprite)
}

// WaitForSpriteReach waits until the sprite is at a position, within the
// epsilon of execlog.IsEqual.
type WaitForSpriteReach struct {
	Sprite string
	X, Y   float64
}

// Execute polls the position after every step.
func (a WaitForSpriteReach) Execute(c *Context, done DoneFunc) {
	actor, err := actorOf(c, a.Sprite)
	if err != nil {
		done(nil, err)
		return
	}

	err = waitStep(c, func() bool {
		st := actor.State()
		return execlog.IsEqual(st.X, a.X) && execlog.IsEqual(st.Y, a.Y)
	})

	done(nil, err)
}

func (a WaitForSpriteReach) String() string {
	return fmt.Sprintf("wait for %q to reach (%g, %g)", a.Sprite, a.X, a.Y)
}

// WaitForSpriteTouch waits until the sprite touches the target, another
// sprite or EdgeTarget.
type WaitForSpriteTouch struct {
	Sprite string
	Target string
}

// Execute polls the bounding boxes after every step.
func (a WaitForSpriteTouch) Execute(c *Context, done DoneFunc) {
	touching, err := touchTest(c, a.Sprite, a.Target)
	if err != nil {
		done(nil, err)
		return
	}

	done(nil, waitStep(c, touching))
}

func (a WaitForSpriteTouch) String() string {
	return fmt.Sprintf("wait for %q to touch %q", a.Sprite, a.Target)
}

// WaitForSpriteNotTouch waits until the sprite does not touch the target.
type WaitForSpriteNotTouch struct {
	Sprite string
	Target string
}

// Execute polls the bounding boxes after every step.
func (a WaitForSpriteNotTouch) Execute(c *Context, done DoneFunc) {
	touching, err := touchTest(c, a.Sprite, a.Target)
	if err != nil {
		done(nil, err)
		return
	}

	done(nil, waitStep(c, func() bool { return !touching() }))
}

func (a WaitForSpriteNotTouch) String() string {
	return fmt.Sprintf("wait for %q to stop touching %q", a.Sprite, a.Target)
}

func touchTest(c *Context, sprite, target string) (func() bool, error) {
	actor, err := actorOf(c, sprite)
	if err != nil {
		return nil, err
	}

	switch target {
	case EdgeTarget:
		return func() bool { return actor.State().TouchingEdge }, nil
	case "":
		return nil, &NotFoundError{Kind: "sprite", Name: target}
	}

	other, err := actorOf(c, target)
	if err != nil {
		return nil, err
	}

	return func() bool {
		return touches(actor.State(), other.State())
	}, nil
}

func touches(a, b sim.ActorState) bool {
	return a.Visible && b.Visible && execlog.BoundsOverlap(a.Bounds, b.Bounds)
}
