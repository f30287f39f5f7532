package execlog

import "sort"

// A Cursor scrubs through a log as it was when the cursor was created.
type Cursor struct {
	frames Frames
	events []*Event
	index  int
}

// Cursor creates a cursor positioned on the first frame.
func (l *Log) Cursor() *Cursor {
	return &Cursor{
		frames: l.Frames(),
		events: l.Events(),
	}
}

// Len returns the number of frames the cursor can visit.
func (c *Cursor) Len() int {
	return len(c.frames)
}

// Frame returns the frame under the cursor, or nil if the log has no frame.
func (c *Cursor) Frame() *Frame {
	if len(c.frames) == 0 {
		return nil
	}

	return c.frames[c.index]
}

// Seek moves to the latest frame captured at or before ts. If every frame is
// later than ts, it moves to the first frame.
func (c *Cursor) Seek(ts float64) *Frame {
	i := sort.Search(len(c.frames), func(i int) bool {
		return c.frames[i].Timestamp > ts
	})

	c.index = max(i-1, 0)

	return c.Frame()
}

// Next moves one frame forward. It reports false at the last frame.
func (c *Cursor) Next() (*Frame, bool) {
	if c.index+1 >= len(c.frames) {
		return c.Frame(), false
	}

	c.index++

	return c.Frame(), true
}

// Prev moves one frame backward. It reports false at the first frame.
func (c *Cursor) Prev() (*Frame, bool) {
	if c.index == 0 {
		return c.Frame(), false
	}

	c.index--

	return c.Frame(), true
}

// EventsUntil returns the events that happened up to the frame under the
// cursor.
func (c *Cursor) EventsUntil() []*Event {
	f := c.Frame()
	if f == nil {
		return nil
	}

	var events []*Event
	for _, e := range c.events {
		if e.Timestamp <= f.Timestamp {
			events = append(events, e)
		}
	}

	return events
}
