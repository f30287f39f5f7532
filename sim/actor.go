package sim

// Point is a position on the stage.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned bounding box. Top is greater than Bottom.
type Rect struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal size of the box.
func (r Rect) Width() float64 {
	return r.Right - r.Left
}

// Height returns the vertical size of the box.
func (r Rect) Height() float64 {
	return r.Top - r.Bottom
}

// Intersects tells whether two boxes overlap. Boxes that only touch overlap.
func (r Rect) Intersects(other Rect) bool {
	return r.Left <= other.Right && other.Left <= r.Right &&
		r.Bottom <= other.Top && other.Bottom <= r.Top
}

// ActorState is an immutable copy of the observable state of an actor.
type ActorState struct {
	Name         string
	IsStage      bool
	X            float64
	Y            float64
	Direction    float64
	Visible      bool
	Size         float64
	CostumeID    int
	CostumeName  string
	TouchingEdge bool
	Bounds       Rect
	Variables    map[string]any
}

// Clone returns a copy that does not share the variables map.
func (s ActorState) Clone() ActorState {
	c := s
	c.Variables = make(map[string]any, len(s.Variables))

	for k, v := range s.Variables {
		c.Variables[k] = v
	}

	return c
}

// An Actor is a sprite or the stage.
type Actor interface {
	// Name returns the unique name of the actor.
	Name() string

	// IsStage tells whether this is the stage actor.
	IsStage() bool

	// State returns a snapshot of the actor. It never blocks on the
	// simulation and may be called from hooks.
	State() ActorState

	// SetPosition moves the actor.
	SetPosition(x, y float64)

	// SetDirection turns the actor.
	SetDirection(direction float64)

	// Variable returns the value of a variable owned by the actor.
	Variable(name string) (any, bool)

	// SetVariable overwrites a variable owned by the actor. It fails if the
	// actor has no such variable.
	SetVariable(name string, value any) error
}
