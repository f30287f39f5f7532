package judge

import (
	"time"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/sim"
)

// Profiler is a primitive middleware that records how long every primitive
// takes.
type Profiler struct {
	log *execlog.Log
	now func() time.Time
}

// NewProfiler creates a profiler that records into the log.
func NewProfiler(log *execlog.Log) *Profiler {
	return &Profiler{
		log: log,
		now: time.Now,
	}
}

// Wrap times the primitive.
func (p *Profiler) Wrap(next sim.PrimitiveFunc) sim.PrimitiveFunc {
	return func(call *sim.PrimitiveCall) {
		start := p.now()
		next(call)
		p.log.RecordPrimitive(call.Opcode, p.now().Sub(start))
	}
}

var _ sim.PrimitiveMiddleware = (*Profiler)(nil)
