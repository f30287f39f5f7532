package execlog

import (
	"encoding/json"
	"sync/atomic"
)

// Event types recorded by the judge.
const (
	EventClick       = "click"
	EventKey         = "key"
	EventMouse       = "mouse"
	EventBroadcast   = "broadcast"
	EventQuestion    = "question"
	EventAnswer      = "answer"
	EventPosition    = "position"
	EventVariable    = "variable"
	EventSprite      = "sprite"
	EventPenClear    = "pen-clear"
	EventSkinCreate  = "skin-create"
	EventSkinUpdate  = "skin-update"
	EventSkinDestroy = "skin-destroy"
)

// An Event is a discrete occurrence during a run.
//
// Previous is the frame captured right before the occurrence. Next is set
// once the effects of the occurrence have been observed, or when the run
// ends.
type Event struct {
	ID        string
	Timestamp float64
	Type      string
	Data      any
	Previous  *Frame

	next atomic.Pointer[Frame]
}

// NewEvent creates an event. The ID is assigned when the event is added to a
// log.
func NewEvent(eventType string, timestamp float64, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: timestamp,
		Data:      data,
	}
}

// Next returns the frame captured after the occurrence completed.
func (e *Event) Next() *Frame {
	return e.next.Load()
}

// SetNext sets the next frame. Only the first call has an effect.
func (e *Event) SetNext(f *Frame) bool {
	return e.next.CompareAndSwap(nil, f)
}

// Settled tells whether both frame pointers are set.
func (e *Event) Settled() bool {
	return e.Previous != nil && e.Next() != nil
}

type eventJSON struct {
	ID        string   `json:"id"`
	Timestamp float64  `json:"timestamp"`
	Type      string   `json:"type"`
	Data      any      `json:"data"`
	Previous  *float64 `json:"previous_frame"`
	Next      *float64 `json:"next_frame"`
}

// MarshalJSON refers to the frames by their timestamps.
func (e *Event) MarshalJSON() ([]byte, error) {
	j := eventJSON{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Data:      e.Data,
	}

	if e.Previous != nil {
		j.Previous = &e.Previous.Timestamp
	}

	if next := e.Next(); next != nil {
		j.Next = &next.Timestamp
	}

	return json.Marshal(j)
}
