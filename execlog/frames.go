package execlog

import (
	"math"
	"sort"
)

// Frames is a sequence of frames ordered by timestamp.
type Frames []*Frame

// Extremes are the extremal coordinates of an actor over some frames.
type Extremes struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Between returns the frames captured in [from, to].
func (fs Frames) Between(from, to float64) Frames {
	lo := sort.Search(len(fs), func(i int) bool {
		return fs[i].Timestamp >= from
	})
	hi := sort.Search(len(fs), func(i int) bool {
		return fs[i].Timestamp > to
	})

	if lo >= hi {
		return nil
	}

	return fs[lo:hi]
}

// At returns the latest frame captured at or before ts, or nil.
func (fs Frames) At(ts float64) *Frame {
	i := sort.Search(len(fs), func(i int) bool {
		return fs[i].Timestamp > ts
	})

	if i == 0 {
		return nil
	}

	return fs[i-1]
}

// First returns the first frame, or nil.
func (fs Frames) First() *Frame {
	if len(fs) == 0 {
		return nil
	}

	return fs[0]
}

// Last returns the last frame, or nil.
func (fs Frames) Last() *Frame {
	if len(fs) == 0 {
		return nil
	}

	return fs[len(fs)-1]
}

// Snapshots returns the snapshots of one actor, skipping frames without it.
func (fs Frames) Snapshots(name string) []ActorSnapshot {
	var snapshots []ActorSnapshot

	for _, f := range fs {
		if a, ok := f.Actor(name); ok {
			snapshots = append(snapshots, a)
		}
	}

	return snapshots
}

// Extremes returns the extremal coordinates of an actor. It reports false if
// no frame holds the actor.
func (fs Frames) Extremes(name string) (Extremes, bool) {
	snapshots := fs.Snapshots(name)
	if len(snapshots) == 0 {
		return Extremes{}, false
	}

	e := Extremes{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
	}

	for _, a := range snapshots {
		e.MinX = math.Min(e.MinX, a.X)
		e.MaxX = math.Max(e.MaxX, a.X)
		e.MinY = math.Min(e.MinY, a.Y)
		e.MaxY = math.Max(e.MaxY, a.Y)
	}

	return e, true
}

// HasMoved tells whether the positions of an actor spread at all.
func (fs Frames) HasMoved(name string) bool {
	e, ok := fs.Extremes(name)
	if !ok {
		return false
	}

	return e.MaxX-e.MinX > 0 || e.MaxY-e.MinY > 0
}

// IsSafeFromEdge tells whether an actor never touched the stage edge.
func (fs Frames) IsSafeFromEdge(name string) bool {
	for _, a := range fs.Snapshots(name) {
		if a.TouchingEdge {
			return false
		}
	}

	return true
}

// DirectionChanges returns the directions an actor took, without
// consecutive repetitions.
func (fs Frames) DirectionChanges(name string) []float64 {
	var changes []float64

	for _, a := range fs.Snapshots(name) {
		if n := len(changes); n > 0 && changes[n-1] == a.Direction {
			continue
		}

		changes = append(changes, a.Direction)
	}

	return changes
}

// CostumeChanges returns the costumes an actor wore, without consecutive
// repetitions.
func (fs Frames) CostumeChanges(name string) []string {
	var changes []string

	for _, a := range fs.Snapshots(name) {
		if n := len(changes); n > 0 && changes[n-1] == a.CostumeName {
			continue
		}

		changes = append(changes, a.CostumeName)
	}

	return changes
}

// Distances returns the distance between two actors in every frame holding
// both.
func (fs Frames) Distances(a, b string) []float64 {
	var distances []float64

	for _, f := range fs {
		sa, okA := f.Actor(a)
		sb, okB := f.Actor(b)

		if !okA || !okB {
			continue
		}

		distances = append(distances, math.Hypot(sa.X-sb.X, sa.Y-sb.Y))
	}

	return distances
}

// Overlaps tells whether two actors overlap in any frame.
func (fs Frames) Overlaps(a, b string) bool {
	for _, f := range fs {
		if f.Overlaps(a, b) {
			return true
		}
	}

	return false
}
