package sim

// PrimitiveCall describes one execution of a primitive operation.
type PrimitiveCall struct {
	Opcode string
	Actor  Actor
	Thread Thread
	Args   []any
}

// PrimitiveFunc executes a primitive operation.
type PrimitiveFunc func(call *PrimitiveCall)

// A PrimitiveMiddleware wraps the execution of primitive operations. It is
// the extension point for timing and profiling of primitives.
type PrimitiveMiddleware interface {
	Wrap(next PrimitiveFunc) PrimitiveFunc
}

// PrimitiveMiddlewareFunc adapts a function to PrimitiveMiddleware.
type PrimitiveMiddlewareFunc func(next PrimitiveFunc) PrimitiveFunc

// Wrap calls f.
func (f PrimitiveMiddlewareFunc) Wrap(next PrimitiveFunc) PrimitiveFunc {
	return f(next)
}

// MiddlewareHolder can maintain a list of primitive middleware.
type MiddlewareHolder struct {
	middlewares []PrimitiveMiddleware
}

// AddMiddleware adds a middleware to the holder. Middleware added later wraps
// the ones added earlier.
func (holder *MiddlewareHolder) AddMiddleware(m PrimitiveMiddleware) {
	holder.middlewares = append(holder.middlewares, m)
}

// Middlewares returns the list of middleware.
func (holder *MiddlewareHolder) Middlewares() []PrimitiveMiddleware {
	return holder.middlewares
}

// Chain wraps base with every middleware in the holder.
func (holder *MiddlewareHolder) Chain(base PrimitiveFunc) PrimitiveFunc {
	f := base
	for _, m := range holder.middlewares {
		f = m.Wrap(f)
	}

	return f
}

// Question is a question asked by a script.
type Question struct {
	Actor    Actor
	Text     string
	Answer   string
	Answered bool
}

// PenLine is a line drawn by the pen.
type PenLine struct {
	From  Point
	To    Point
	Color string
	Size  float64
}

// PenPoint is a dot drawn by the pen.
type PenPoint struct {
	At    Point
	Color string
	Size  float64
}

// Skin is a drawable owned by an actor, such as a speech bubble.
type Skin struct {
	ID    uint64
	Kind  string
	Name  string
	Owner string
}
