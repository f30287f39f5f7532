package judge

import (
	"fmt"
	"strings"
	"time"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/sim"
)

// KeySettle is the nominal time a held key is given to take effect after
// it is released.
const KeySettle = 100 * time.Millisecond

// ClickData is the payload of click events.
type ClickData struct {
	Sprite string  `json:"sprite"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// KeyData is the payload of key events.
type KeyData struct {
	Key  string  `json:"key"`
	Down bool    `json:"down"`
	Hold float64 `json:"hold,omitempty"`
}

// MouseData is the payload of mouse events.
type MouseData struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Down bool    `json:"down"`
}

// BroadcastData is the payload of broadcast events.
type BroadcastData struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// PositionData is the payload of position events.
type PositionData struct {
	Sprite string  `json:"sprite"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// VariableData is the payload of variable events.
type VariableData struct {
	Sprite string `json:"sprite"`
	Name   string `json:"name"`
	Value  any    `json:"value"`
}

// ClickSprite clicks a sprite and waits for the scripts it starts.
type ClickSprite struct {
	Sprite string
}

// Execute presses the mouse over the sprite and dispatches its clicked hat.
func (a ClickSprite) Execute(c *Context, done DoneFunc) {
	actor, err := actorOf(c, a.Sprite)
	if err != nil {
		done(nil, err)
		return
	}

	s := c.Simulation()
	st := actor.State()
	e := c.record(execlog.EventClick, ClickData{Sprite: a.Sprite, X: st.X, Y: st.Y})

	s.SetMouse(sim.Mouse{X: st.X, Y: st.Y, Down: true})
	threads := s.Dispatch(sim.Hat{Kind: sim.HatClicked}, a.Sprite)
	s.SetMouse(sim.Mouse{X: st.X, Y: st.Y})

	if err := waitThreads(c, threads); err != nil {
		done(nil, err)
		return
	}

	c.settle(e)
	done(len(threads), nil)
}

func (a ClickSprite) String() string {
	return fmt.Sprintf("click sprite %q", a.Sprite)
}

// PressKey presses and releases a key and waits for the scripts it starts.
type PressKey struct {
	Key string
}

// Execute dispatches the key hat.
func (a PressKey) Execute(c *Context, done DoneFunc) {
	s, err := simulationOf(c)
	if err != nil {
		done(nil, err)
		return
	}

	e := c.record(execlog.EventKey, KeyData{Key: a.Key, Down: true})

	s.SetKeyDown(a.Key, true)
	threads := s.Dispatch(sim.Hat{Kind: sim.HatKey, Field: a.Key}, "")
	s.SetKeyDown(a.Key, false)

	if err := waitThreads(c, threads); err != nil {
		done(nil, err)
		return
	}

	c.settle(e)
	done(len(threads), nil)
}

func (a PressKey) String() string {
	return fmt.Sprintf("press key %q", a.Key)
}

// UseKey changes the pressed state of a key. With a Hold duration the key
// is pressed, released after Hold and the action resolves KeySettle later.
// Without it, the key stays in the Down state and the action resolves at
// once; pair it with an asynchronous node.
type UseKey struct {
	Key  string
	Down bool
	Hold time.Duration
}

// Execute sets the key state.
func (a UseKey) Execute(c *Context, done DoneFunc) {
	s, err := simulationOf(c)
	if err != nil {
		done(nil, err)
		return
	}

	if a.Hold <= 0 {
		s.SetKeyDown(a.Key, a.Down)
		c.instant(execlog.EventKey, KeyData{Key: a.Key, Down: a.Down})
		done(nil, nil)

		return
	}

	e := c.record(execlog.EventKey, KeyData{Key: a.Key, Down: true, Hold: ms(a.Hold)})
	s.SetKeyDown(a.Key, true)

	err = sleep(c, a.Hold)
	s.SetKeyDown(a.Key, false)

	if err == nil {
		err = sleep(c, KeySettle)
	}

	if err != nil {
		done(nil, err)
		return
	}

	c.settle(e)
	done(nil, nil)
}

func (a UseKey) extraTimeout() time.Duration {
	return a.Hold + KeySettle
}

func (a UseKey) String() string {
	if a.Hold > 0 {
		return fmt.Sprintf("hold key %q for %s", a.Key, a.Hold)
	}

	if a.Down {
		return fmt.Sprintf("key %q down", a.Key)
	}

	return fmt.Sprintf("key %q up", a.Key)
}

// UseMouse moves the mouse and sets its button state.
type UseMouse struct {
	X, Y float64
	Down bool
}

// Execute sets the mouse state.
func (a UseMouse) Execute(c *Context, done DoneFunc) {
	s, err := simulationOf(c)
	if err != nil {
		done(nil, err)
		return
	}

	m := sim.Mouse{X: a.X, Y: a.Y, Down: a.Down}
	s.SetMouse(m)
	c.instant(execlog.EventMouse, MouseData(m))
	done(nil, nil)
}

func (a UseMouse) String() string {
	return fmt.Sprintf("mouse at (%g, %g) down=%t", a.X, a.Y, a.Down)
}

// SendBroadcast sends a broadcast and waits for the scripts it starts.
type SendBroadcast struct {
	Name string
}

// Execute dispatches the broadcast hat.
func (a SendBroadcast) Execute(c *Context, done DoneFunc) {
	s, err := simulationOf(c)
	if err != nil {
		done(nil, err)
		return
	}

	e := c.record(execlog.EventBroadcast, BroadcastData{Name: a.Name, Source: "judge"})
	threads := s.Dispatch(sim.Hat{Kind: sim.HatBroadcast, Field: a.Name}, "")

	if err := waitThreads(c, threads); err != nil {
		done(nil, err)
		return
	}

	c.settle(e)
	done(len(threads), nil)
}

func (a SendBroadcast) String() string {
	return fmt.Sprintf("send broadcast %q", a.Name)
}

// SetPosition moves a sprite.
type SetPosition struct {
	Sprite string
	X, Y   float64
}

// Execute moves the sprite.
func (a SetPosition) Execute(c *Context, done DoneFunc) {
	actor, err := actorOf(c, a.Sprite)
	if err != nil {
		done(nil, err)
		return
	}

	actor.SetPosition(a.X, a.Y)
	c.instant(execlog.EventPosition, PositionData{Sprite: a.Sprite, X: a.X, Y: a.Y})
	done(nil, nil)
}

func (a SetPosition) String() string {
	return fmt.Sprintf("set position of %q to (%g, %g)", a.Sprite, a.X, a.Y)
}

// SetVariable overwrites a variable. An empty Sprite refers to the stage.
type SetVariable struct {
	Sprite string
	Name   string
	Value  any
}

// Execute sets the variable.
func (a SetVariable) Execute(c *Context, done DoneFunc) {
	actor, err := actorOf(c, a.Sprite)
	if err != nil {
		done(nil, err)
		return
	}

	if _, ok := actor.Variable(a.Name); !ok {
		done(nil, &NotFoundError{Kind: "variable", Name: a.Name})
		return
	}

	if err := actor.SetVariable(a.Name, a.Value); err != nil {
		done(nil, fmt.Errorf("set variable %q: %w", a.Name, err))
		return
	}

	c.instant(execlog.EventVariable, VariableData{
		Sprite: actor.Name(),
		Name:   a.Name,
		Value:  a.Value,
	})
	done(nil, nil)
}

func (a SetVariable) String() string {
	owner := a.Sprite
	if owner == "" {
		owner = "stage"
	}

	return fmt.Sprintf("set variable %q of %s to %v", a.Name, owner, a.Value)
}

// Answer queues answers for the questions scripts ask.
type Answer struct {
	Answers []string
}

// Execute queues the answers.
func (a Answer) Execute(c *Context, done DoneFunc) {
	c.QueueAnswers(a.Answers...)
	done(nil, nil)
}

func (a Answer) String() string {
	return fmt.Sprintf("answer %s", strings.Join(a.Answers, ", "))
}
