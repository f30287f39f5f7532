// Package sim defines the contracts between the judging engine and the
// simulation it drives.
//
// A Simulation runs the submitted program. The engine only talks to it
// through the methods below and through hooks: every lifecycle signal a
// simulation emits is raised as a hook at one of the positions declared in
// hookpos.go.
package sim

// HatKind identifies the kind of event a script waits for.
type HatKind string

// The hat kinds a simulation dispatches.
const (
	HatFlag      HatKind = "flag"
	HatClicked   HatKind = "clicked"
	HatKey       HatKind = "key"
	HatBroadcast HatKind = "broadcast"
)

// A Hat selects which scripts a dispatch starts.
type Hat struct {
	Kind HatKind

	// Field narrows the hat, e.g. the key name or the broadcast name.
	Field string
}

// Matches tells whether a script waiting for h is started by a dispatch of
// other. The key "any" matches every key.
func (h Hat) Matches(other Hat) bool {
	if h.Kind != other.Kind {
		return false
	}

	if h.Kind == HatKey && h.Field == "any" {
		return true
	}

	return h.Field == other.Field
}

func (h Hat) String() string {
	if h.Field == "" {
		return string(h.Kind)
	}

	return string(h.Kind) + ":" + h.Field
}

// Mouse is the state of the virtual mouse.
type Mouse struct {
	X, Y float64
	Down bool
}

// A Thread is one running execution unit of the simulation.
type Thread interface {
	// ID is unique within a simulation.
	ID() uint64

	// Actor returns the actor that owns the script.
	Actor() Actor

	// Hat returns the hat that started the thread.
	Hat() Hat

	// Done reports whether the thread finished or was stopped.
	Done() bool
}

// A Simulation is the program under test.
type Simulation interface {
	Hookable

	// Start starts running the simulation and dispatches the flag hat.
	Start()

	// StopAll stops every thread and halts the simulation.
	StopAll()

	// Running tells whether the simulation is running.
	Running() bool

	// Dispatch starts the scripts matching the hat and returns the threads it
	// started. If target is not empty, only scripts of that actor start.
	Dispatch(hat Hat, target string) []Thread

	// Actors returns all actors, the stage included.
	Actors() []Actor

	// Actor finds an actor by name.
	Actor(name string) (Actor, bool)

	// StageActor returns the actor holding global variables.
	StageActor() Actor

	// Threads returns the live threads.
	Threads() []Thread

	// SetKeyDown changes the pressed state of a key.
	SetKeyDown(key string, down bool)

	// SetMouse changes the mouse state.
	SetMouse(m Mouse)

	// SetTimeAcceleration scales the step rate and the primitive wait times.
	SetTimeAcceleration(factor float64)

	// TimeAcceleration returns the factor set by SetTimeAcceleration.
	TimeAcceleration() float64

	// UsePrimitiveMiddleware wraps the execution of every primitive.
	UsePrimitiveMiddleware(m PrimitiveMiddleware)

	// Renderer returns the renderer of the simulation.
	Renderer() Renderer
}

// A Renderer draws the simulation. The engine only observes it through the
// pen and skin hook positions.
type Renderer interface {
	Hookable
}
