package sim

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	// Generate an ID.
	Generate() string
}

// NewSequentialIDGenerator creates a generator that returns "1", "2", ...
// prefixed with prefix. The IDs are deterministic across runs.
func NewSequentialIDGenerator(prefix string) IDGenerator {
	return &sequentialIDGenerator{prefix: prefix}
}

type sequentialIDGenerator struct {
	prefix string
	nextID atomic.Uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := g.nextID.Add(1)
	return g.prefix + strconv.FormatUint(idNumber, 10)
}
