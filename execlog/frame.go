package execlog

import (
	"github.com/sarchlab/itch/sim"
)

// ActorSnapshot is the state of one actor at the time a frame was captured.
type ActorSnapshot struct {
	Name         string         `json:"name"`
	IsStage      bool           `json:"is_stage"`
	X            float64        `json:"x"`
	Y            float64        `json:"y"`
	Direction    float64        `json:"direction"`
	Visible      bool           `json:"visible"`
	Size         float64        `json:"size"`
	CostumeID    int            `json:"costume_id"`
	CostumeName  string         `json:"costume_name"`
	TouchingEdge bool           `json:"touching_edge"`
	Bounds       sim.Rect       `json:"bounds"`
	Variables    map[string]any `json:"variables"`
}

func snapshotOf(st sim.ActorState) ActorSnapshot {
	c := st.Clone()

	return ActorSnapshot{
		Name:         c.Name,
		IsStage:      c.IsStage,
		X:            c.X,
		Y:            c.Y,
		Direction:    c.Direction,
		Visible:      c.Visible,
		Size:         c.Size,
		CostumeID:    c.CostumeID,
		CostumeName:  c.CostumeName,
		TouchingEdge: c.TouchingEdge,
		Bounds:       c.Bounds,
		Variables:    c.Variables,
	}
}

// Position returns the position of the actor.
func (a ActorSnapshot) Position() sim.Point {
	return sim.Point{X: a.X, Y: a.Y}
}

// A Frame is an immutable snapshot of all actors.
type Frame struct {
	// Timestamp is the time since the run started, in milliseconds.
	Timestamp float64         `json:"timestamp"`
	Label     string          `json:"label"`
	Actors    []ActorSnapshot `json:"actors"`
}

// Actor finds the snapshot of an actor by name.
func (f *Frame) Actor(name string) (ActorSnapshot, bool) {
	for _, a := range f.Actors {
		if a.Name == name {
			return a, true
		}
	}

	return ActorSnapshot{}, false
}

// Overlaps tells whether the bounding boxes of two actors intersect.
func (f *Frame) Overlaps(a, b string) bool {
	sa, ok := f.Actor(a)
	if !ok {
		return false
	}

	sb, ok := f.Actor(b)
	if !ok {
		return false
	}

	return BoundsOverlap(sa.Bounds, sb.Bounds)
}

// A FrameSource provides what a frame captures.
type FrameSource interface {
	// Timestamp returns the time since the run started, in milliseconds.
	Timestamp() float64

	// Actors returns the actors to capture.
	Actors() []sim.Actor
}
