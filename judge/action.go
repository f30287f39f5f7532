package judge

import (
	"time"

	"github.com/sarchlab/itch/deferred"
	"github.com/sarchlab/itch/sim"
)

// DoneFunc reports the completion of an action. A nil error resolves the
// node that runs the action.
type DoneFunc func(result any, err error)

// An Action is a unit of schedulable work.
//
// Execute runs on its own goroutine and may block. It must call done exactly
// once, when the completion condition of the action holds. Execute must
// return promptly once the run has terminated; the helpers of this package
// that wait do so.
type Action interface {
	Execute(c *Context, done DoneFunc)
	String() string
}

// extraTimeout is implemented by actions whose nominal duration adds to the
// timeout of their node.
type extraTimeout interface {
	extraTimeout() time.Duration
}

// await blocks until d settles, the run ends or the node gives up on the
// action.
func await[T any](c *Context, d *deferred.Deferred[T]) (T, error) {
	var zero T

	select {
	case <-d.Done():
		return d.Result()
	case <-c.finished.Done():
		return zero, ErrTerminated
	case <-c.abandoned:
		return zero, ErrAbandoned
	}
}

// sleep waits for a nominal duration, scaled by the event acceleration.
func sleep(c *Context, d time.Duration) error {
	timer := time.NewTimer(c.AccelerateEvent(d))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-c.finished.Done():
		return ErrTerminated
	case <-c.abandoned:
		return ErrAbandoned
	}
}

// waitThreads blocks until every thread finished.
func waitThreads(c *Context, threads []sim.Thread) error {
	l := newThreadListener(threads)
	defer c.listen(l)()
	l.sweep()

	_, err := await(c, l.finished)

	return err
}

// waitStep blocks until predicate holds, checking now and after every step.
func waitStep(c *Context, predicate func() bool) error {
	l := newStepListener(predicate)
	defer c.listen(l)()
	l.check()

	_, err := await(c, l.satisfied)

	return err
}

func simulationOf(c *Context) (sim.Simulation, error) {
	s := c.Simulation()
	if s == nil {
		return nil, ErrNoSimulation
	}

	return s, nil
}

// actorOf finds an actor by name. An empty name refers to the stage.
func actorOf(c *Context, name string) (sim.Actor, error) {
	s, err := simulationOf(c)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return s.StageActor(), nil
	}

	a, ok := s.Actor(name)
	if !ok {
		return nil, &NotFoundError{Kind: "sprite", Name: name}
	}

	return a, nil
}
