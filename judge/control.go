package judge

import (
	"fmt"
	"strings"

	"github.com/sarchlab/itch/deferred"
	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/report"
	"github.com/sarchlab/itch/sim"
)

// SpriteData is the payload of sprite events.
type SpriteData struct {
	Sprite    string  `json:"sprite"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction float64 `json:"direction"`
	Size      float64 `json:"size"`
	Visible   bool    `json:"visible"`
	Costume   string  `json:"costume"`
}

func spriteDataOf(st sim.ActorState) SpriteData {
	return SpriteData{
		Sprite:    st.Name,
		X:         st.X,
		Y:         st.Y,
		Direction: st.Direction,
		Size:      st.Size,
		Visible:   st.Visible,
		Costume:   st.CostumeName,
	}
}

// TrackSprite records a sprite event after every step in which the sprite
// changed, until the run ends. It resolves at once.
type TrackSprite struct {
	Sprite   string
	OnChange func(st sim.ActorState)
}

// Execute registers the tracker.
func (a TrackSprite) Execute(c *Context, done DoneFunc) {
	actor, err := actorOf(c, a.Sprite)
	if err != nil {
		done(nil, err)
		return
	}

	last := spriteDataOf(actor.State())

	c.listen(newFuncListener(func(pos *sim.HookPos, _ any) bool {
		if pos != sim.HookPosStep {
			return false
		}

		st := actor.State()

		data := spriteDataOf(st)
		if data == last {
			return false
		}

		last = data
		c.instant(execlog.EventSprite, data)

		if a.OnChange != nil {
			a.OnChange(st)
		}

		return false
	}))

	done(nil, nil)
}

func (a TrackSprite) String() string {
	return fmt.Sprintf("track sprite %q", a.Sprite)
}

// TrackBroadcast records a broadcast event for every broadcast the scripts
// send with the name, or for all broadcasts if the name is empty. It
// resolves at once.
type TrackBroadcast struct {
	Name string
}

// Execute registers the tracker.
func (a TrackBroadcast) Execute(c *Context, done DoneFunc) {
	c.listen(newFuncListener(func(pos *sim.HookPos, item any) bool {
		if pos != sim.HookPosBroadcast {
			return false
		}

		name, _ := item.(string)
		if a.Name != "" && name != a.Name {
			return false
		}

		c.instant(execlog.EventBroadcast, BroadcastData{Name: name, Source: "simulation"})

		return false
	}))

	done(nil, nil)
}

func (a TrackBroadcast) String() string {
	if a.Name == "" {
		return "track broadcasts"
	}

	return fmt.Sprintf("track broadcast %q", a.Name)
}

// Join resolves as soon as any of the nodes settles, without waiting for
// the others. It takes the result of that node.
type Join struct {
	Nodes []*ScheduledEvent
}

// Execute races the nodes.
func (a Join) Execute(c *Context, done DoneFunc) {
	settled := make([]*deferred.Deferred[any], len(a.Nodes))
	for i, n := range a.Nodes {
		settled[i] = n.settled
	}

	done(await(c, deferred.Race(settled...)))
}

func (a Join) String() string {
	ids := make([]string, len(a.Nodes))
	for i, n := range a.Nodes {
		ids[i] = fmt.Sprintf("#%d", n.id)
	}

	return "join " + strings.Join(ids, ", ")
}

// End terminates the run normally.
type End struct{}

// Execute terminates the run.
func (End) Execute(c *Context, done DoneFunc) {
	c.Terminate(Outcome{Status: report.StatusCorrect})
	done(nil, nil)
}

func (End) String() string {
	return "end"
}

// Callback runs a function. Returning a FatalAssertionError ends the run
// quietly; any other error ends it as a runtime error.
type Callback struct {
	Description string
	Fn          func(c *Context) error
}

// Execute calls the function.
func (a Callback) Execute(c *Context, done DoneFunc) {
	if a.Fn == nil {
		done(nil, nil)
		return
	}

	done(nil, a.Fn(c))
}

func (a Callback) String() string {
	if a.Description == "" {
		return "callback"
	}

	return a.Description
}
