package stage

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/sarchlab/itch/sim"
)

// The size of the visible stage. The origin is at the center.
const (
	Width  = 480
	Height = 360
)

// StageName is the name of the stage actor.
const StageName = "Stage"

// ErrNoVariable is returned when a variable does not exist.
var ErrNoVariable = errors.New("no such variable")

type penState struct {
	down  bool
	color string
	size  float64
}

// Actor is a sprite or the stage of a Stage.
//
// The observable state is kept as an immutable snapshot that is swapped on
// every change, so State never waits for the step loop.
type Actor struct {
	stage    *Stage
	name     string
	isStage  bool
	width    float64
	height   float64
	costumes []string

	state  atomic.Pointer[sim.ActorState]
	pen    penState
	bubble *sim.Skin
}

// ActorSpec describes an actor declared by a script.
type ActorSpec struct {
	X, Y      float64
	Direction float64
	Size      float64
	Visible   bool
	Width     float64
	Height    float64
	Costumes  []string
	Variables map[string]any
}

func newActor(s *Stage, name string, isStage bool, spec ActorSpec) *Actor {
	a := &Actor{
		stage:    s,
		name:     name,
		isStage:  isStage,
		width:    spec.Width,
		height:   spec.Height,
		costumes: spec.Costumes,
		pen:      penState{color: "#0000ff", size: 1},
	}

	if len(a.costumes) == 0 {
		a.costumes = []string{"costume1"}
	}

	st := &sim.ActorState{
		Name:        name,
		IsStage:     isStage,
		X:           spec.X,
		Y:           spec.Y,
		Direction:   normalizeDirection(spec.Direction),
		Visible:     spec.Visible,
		Size:        spec.Size,
		CostumeName: a.costumes[0],
		Variables:   make(map[string]any, len(spec.Variables)),
	}

	for k, v := range spec.Variables {
		st.Variables[k] = v
	}

	a.measure(st)
	a.state.Store(st)

	return a
}

// Name returns the name of the actor.
func (a *Actor) Name() string {
	return a.name
}

// IsStage tells whether the actor is the stage.
func (a *Actor) IsStage() bool {
	return a.isStage
}

// State returns the latest snapshot. Callers must not modify the variables
// map of the snapshot.
func (a *Actor) State() sim.ActorState {
	return *a.state.Load()
}

// SetPosition moves the actor, drawing with the pen if it is down.
func (a *Actor) SetPosition(x, y float64) {
	a.stage.mu.Lock()
	defer a.stage.mu.Unlock()

	a.moveTo(x, y)
}

// SetDirection turns the actor.
func (a *Actor) SetDirection(direction float64) {
	a.stage.mu.Lock()
	defer a.stage.mu.Unlock()

	a.update(func(st *sim.ActorState) {
		st.Direction = normalizeDirection(direction)
	})
}

// Variable returns the value of a variable owned by the actor.
func (a *Actor) Variable(name string) (any, bool) {
	v, ok := a.state.Load().Variables[name]
	return v, ok
}

// SetVariable overwrites a variable owned by the actor.
func (a *Actor) SetVariable(name string, value any) error {
	a.stage.mu.Lock()
	defer a.stage.mu.Unlock()

	if _, ok := a.Variable(name); !ok {
		return fmt.Errorf("%w: %s.%s", ErrNoVariable, a.name, name)
	}

	a.setVariable(name, value)

	return nil
}

func (a *Actor) setVariable(name string, value any) {
	a.update(func(st *sim.ActorState) {
		st.Variables[name] = value
	})
}

// update applies a change to a copy of the state and publishes the copy. The
// stage lock must be held.
func (a *Actor) update(change func(st *sim.ActorState)) {
	st := a.state.Load().Clone()
	change(&st)
	a.measure(&st)
	a.state.Store(&st)
}

func (a *Actor) measure(st *sim.ActorState) {
	if a.isStage {
		st.Bounds = sim.Rect{
			Left: -Width / 2, Right: Width / 2,
			Top: Height / 2, Bottom: -Height / 2,
		}
		st.TouchingEdge = false

		return
	}

	halfW := a.width * st.Size / 200
	halfH := a.height * st.Size / 200
	st.Bounds = sim.Rect{
		Left:   st.X - halfW,
		Right:  st.X + halfW,
		Top:    st.Y + halfH,
		Bottom: st.Y - halfH,
	}
	st.TouchingEdge = st.Bounds.Left <= -Width/2 ||
		st.Bounds.Right >= Width/2 ||
		st.Bounds.Top >= Height/2 ||
		st.Bounds.Bottom <= -Height/2
}

func (a *Actor) moveTo(x, y float64) {
	from := a.State()

	a.update(func(st *sim.ActorState) {
		st.X = x
		st.Y = y
	})

	if a.pen.down {
		a.stage.renderer.drawLine(sim.PenLine{
			From:  sim.Point{X: from.X, Y: from.Y},
			To:    sim.Point{X: x, Y: y},
			Color: a.pen.color,
			Size:  a.pen.size,
		})
	}
}

func (a *Actor) moveSteps(steps float64) {
	st := a.State()
	rad := st.Direction * math.Pi / 180
	a.moveTo(st.X+steps*math.Sin(rad), st.Y+steps*math.Cos(rad))
}

func (a *Actor) bounceOnEdge() {
	st := a.State()
	if !st.TouchingEdge {
		return
	}

	rad := st.Direction * math.Pi / 180
	dx, dy := math.Sin(rad), math.Cos(rad)
	x, y := st.X, st.Y

	switch {
	case st.Bounds.Left <= -Width/2:
		dx = math.Abs(dx)
		x += -Width/2 - st.Bounds.Left
	case st.Bounds.Right >= Width/2:
		dx = -math.Abs(dx)
		x -= st.Bounds.Right - Width/2
	}

	switch {
	case st.Bounds.Bottom <= -Height/2:
		dy = math.Abs(dy)
		y += -Height/2 - st.Bounds.Bottom
	case st.Bounds.Top >= Height/2:
		dy = -math.Abs(dy)
		y -= st.Bounds.Top - Height/2
	}

	a.update(func(st *sim.ActorState) {
		st.Direction = normalizeDirection(math.Atan2(dx, dy) * 180 / math.Pi)
	})
	a.moveTo(x, y)
}

func (a *Actor) switchCostume(id int) {
	n := len(a.costumes)
	id = ((id % n) + n) % n

	a.update(func(st *sim.ActorState) {
		st.CostumeID = id
		st.CostumeName = a.costumes[id]
	})
}

func (a *Actor) costumeIndex(name string) (int, bool) {
	for i, c := range a.costumes {
		if c == name {
			return i, true
		}
	}

	return 0, false
}

// normalizeDirection maps a direction into (-180, 180].
func normalizeDirection(d float64) float64 {
	d = math.Mod(d, 360)
	if d > 180 {
		d -= 360
	}

	if d <= -180 {
		d += 360
	}

	return d
}

var _ sim.Actor = (*Actor)(nil)
