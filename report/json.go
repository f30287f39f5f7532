package report

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONEmitter writes one JSON object per command and line.
type JSONEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONEmitter creates an emitter writing to w.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{enc: json.NewEncoder(w)}
}

// Emit writes the command.
func (e *JSONEmitter) Emit(cmd Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.enc.Encode(cmd)
}
