// Package execlog records what happens while a submission is judged.
//
// A Log holds two sequences. Frames are snapshots of every actor, captured
// after each primitive and around scheduled actions. Events are discrete
// occurrences, such as clicks or broadcasts, that point to the frames
// captured before and after them. Assertions query both once the run ends.
package execlog

import (
	"sort"
	"sync"
	"time"

	"github.com/sarchlab/itch/sim"
)

// OpcodeProfile aggregates the executions of one primitive.
type OpcodeProfile struct {
	Count int           `json:"count"`
	Total time.Duration `json:"total"`
}

// Log is the record of one run. It is safe for concurrent use.
type Log struct {
	mu sync.RWMutex

	ids     sim.IDGenerator
	frames  Frames
	events  []*Event
	opcodes map[string]int
	profile map[string]OpcodeProfile
	lines   []sim.PenLine
	points  []sim.PenPoint
}

// NewLog creates an empty log.
func NewLog() *Log {
	l := &Log{}
	l.reset()

	return l
}

func (l *Log) reset() {
	l.ids = sim.NewSequentialIDGenerator("e")
	l.frames = nil
	l.events = nil
	l.opcodes = make(map[string]int)
	l.profile = make(map[string]OpcodeProfile)
	l.lines = nil
	l.points = nil
}

// Reset drops everything recorded so far.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reset()
}

// AddFrame captures the actors of src into a new frame labelled with the
// name of the operation that triggered it. Timestamps never decrease: a
// frame that would be older than the last one takes its timestamp.
func (l *Log) AddFrame(src FrameSource, label string) *Frame {
	actors := src.Actors()
	f := &Frame{
		Timestamp: src.Timestamp(),
		Label:     label,
		Actors:    make([]ActorSnapshot, 0, len(actors)),
	}

	for _, a := range actors {
		f.Actors = append(f.Actors, snapshotOf(a.State()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.frames); n > 0 && l.frames[n-1].Timestamp > f.Timestamp {
		f.Timestamp = l.frames[n-1].Timestamp
	}

	l.frames = append(l.frames, f)
	l.opcodes[label]++

	return f
}

// AddEvent appends an event and assigns its ID. Frame pointers are left to
// the caller.
func (l *Log) AddEvent(e *Event) *Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ID == "" {
		e.ID = l.ids.Generate()
	}

	l.events = append(l.events, e)

	return e
}

// Frames returns the frames captured so far.
func (l *Log) Frames() Frames {
	l.mu.RLock()
	defer l.mu.RUnlock()

	frames := make(Frames, len(l.frames))
	copy(frames, l.frames)

	return frames
}

// LastFrame returns the latest frame, or nil.
func (l *Log) LastFrame() *Frame {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.frames) == 0 {
		return nil
	}

	return l.frames[len(l.frames)-1]
}

// Events returns the events recorded so far.
func (l *Log) Events() []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := make([]*Event, len(l.events))
	copy(events, l.events)

	return events
}

// EventsOfType returns the events of one type.
func (l *Log) EventsOfType(eventType string) []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var events []*Event
	for _, e := range l.events {
		if e.Type == eventType {
			events = append(events, e)
		}
	}

	return events
}

// DanglingEvents returns the events that still miss their next frame.
func (l *Log) DanglingEvents() []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var events []*Event
	for _, e := range l.events {
		if e.Next() == nil {
			events = append(events, e)
		}
	}

	return events
}

// OpcodeCount returns how many frames were captured for an operation.
func (l *Log) OpcodeCount(opcode string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.opcodes[opcode]
}

// OpcodeCounts returns the frame count per operation.
func (l *Log) OpcodeCounts() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]int, len(l.opcodes))
	for k, v := range l.opcodes {
		counts[k] = v
	}

	return counts
}

// RecordPrimitive adds one execution of a primitive to the profile.
func (l *Log) RecordPrimitive(opcode string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.profile[opcode]
	p.Count++
	p.Total += d
	l.profile[opcode] = p
}

// Profile returns the execution profile per primitive.
func (l *Log) Profile() map[string]OpcodeProfile {
	l.mu.RLock()
	defer l.mu.RUnlock()

	profile := make(map[string]OpcodeProfile, len(l.profile))
	for k, v := range l.profile {
		profile[k] = v
	}

	return profile
}

// ProfiledOpcodes returns the profiled primitives sorted by total time,
// longest first.
func (l *Log) ProfiledOpcodes() []string {
	profile := l.Profile()

	opcodes := make([]string, 0, len(profile))
	for op := range profile {
		opcodes = append(opcodes, op)
	}

	sort.Slice(opcodes, func(i, j int) bool {
		pi, pj := profile[opcodes[i]], profile[opcodes[j]]
		if pi.Total != pj.Total {
			return pi.Total > pj.Total
		}

		return opcodes[i] < opcodes[j]
	})

	return opcodes
}

// AddLine records a line drawn by the pen.
func (l *Log) AddLine(line sim.PenLine) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, line)
}

// AddPoint records a point drawn by the pen.
func (l *Log) AddPoint(p sim.PenPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.points = append(l.points, p)
}

// ClearPen forgets the lines and points drawn so far.
func (l *Log) ClearPen() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = nil
	l.points = nil
}

// Lines returns the lines drawn by the pen.
func (l *Log) Lines() []sim.PenLine {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lines := make([]sim.PenLine, len(l.lines))
	copy(lines, l.lines)

	return lines
}

// Points returns the points drawn by the pen.
func (l *Log) Points() []sim.PenPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	points := make([]sim.PenPoint, len(l.points))
	copy(points, l.points)

	return points
}

// MergedLines returns the pen lines with collinear overlapping lines
// merged.
func (l *Log) MergedLines() []Segment {
	return MergeSegments(SegmentsOf(l.Lines()))
}

// Squares returns the squares drawn by the pen.
func (l *Log) Squares() []Square {
	return Squares(l.MergedLines())
}

// Triangles returns the triangles drawn by the pen.
func (l *Log) Triangles() []Triangle {
	return Triangles(l.MergedLines())
}

// SkinDuration returns how long, in milliseconds, the first skin created with
// the given name existed. It reports false if no such skin was created and
// destroyed.
func (l *Log) SkinDuration(name string) (float64, bool) {
	events := l.Events()

	for i, created := range events {
		skin, ok := created.Data.(sim.Skin)
		if created.Type != EventSkinCreate || !ok || skin.Name != name {
			continue
		}

		for _, destroyed := range events[i+1:] {
			other, ok := destroyed.Data.(sim.Skin)
			if destroyed.Type == EventSkinDestroy && ok && other.ID == skin.ID {
				return destroyed.Timestamp - created.Timestamp, true
			}
		}

		return 0, false
	}

	return 0, false
}
