// Package stage provides a reference simulation that runs Lua scripts.
//
// A project declares actors and attaches functions to hats:
//
//	sprite("Cat", {x = 0, y = 0, costumes = {"a", "b"}})
//	when_clicked(function()
//	  move(10)
//	  say("Meow", 1)
//	end)
//
// Every started script runs as a coroutine. The stage resumes each live
// coroutine once per step, so scripts must yield in loops; the helpers of
// the prelude (wait, forever, glide, ask, ...) do so.
package stage

import (
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/sarchlab/itch/sim"
)

// Stage is a simulation that runs Lua scripts attached to hats.
type Stage struct {
	*sim.HookableBase

	mu  sync.Mutex
	L   *lua.LState
	log *zap.Logger

	freq         Freq
	acceleration float64
	middlewares  sim.MiddlewareHolder
	renderer     *Renderer

	actors     []*Actor
	actorIndex map[string]*Actor
	stageActor *Actor
	defining   *Actor
	scripts    []*script

	threads      []*Thread
	byCo         map[*lua.LState]*Thread
	nextThreadID uint64

	keys   map[string]bool
	mouse  sim.Mouse
	answer string
	timer  float64
	steps  uint64

	running  bool
	stop     chan struct{}
	loopDone chan struct{}
}

func newStage(freq Freq, acceleration float64, logger *zap.Logger) *Stage {
	s := &Stage{
		HookableBase: sim.NewHookableBase(),
		log:          logger,
		freq:         freq,
		acceleration: acceleration,
		renderer:     newRenderer(),
		actorIndex:   make(map[string]*Actor),
		byCo:         make(map[*lua.LState]*Thread),
		keys:         make(map[string]bool),
	}

	s.stageActor = newActor(s, StageName, true, ActorSpec{Visible: true})
	s.actors = append(s.actors, s.stageActor)
	s.actorIndex[StageName] = s.stageActor
	s.defining = s.stageActor

	return s
}

// Start runs the step loop and dispatches the flag hat.
func (s *Stage) Start() {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		return
	}

	s.running = true
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	stop, loopDone := s.stop, s.loopDone

	s.invoke(sim.HookPosRunStart, nil)
	s.dispatch(sim.Hat{Kind: sim.HatFlag}, "")

	s.mu.Unlock()

	go s.loop(stop, loopDone)
}

// StopAll stops every thread and waits for the step loop to exit.
func (s *Stage) StopAll() {
	s.mu.Lock()
	loopDone := s.halt()
	s.mu.Unlock()

	if loopDone != nil {
		<-loopDone
	}
}

// Close stops the stage and releases the Lua state.
func (s *Stage) Close() {
	s.StopAll()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.L.Close()
}

// Running tells whether the step loop runs.
func (s *Stage) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Dispatch starts the scripts that wait for the hat. A script that is
// already running is restarted.
func (s *Stage) Dispatch(hat sim.Hat, target string) []sim.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	threads := s.dispatch(hat, target)

	started := make([]sim.Thread, len(threads))
	for i, t := range threads {
		started[i] = t
	}

	return started
}

// Actors returns all actors, the stage first. The set of actors never
// changes after the project is loaded.
func (s *Stage) Actors() []sim.Actor {
	actors := make([]sim.Actor, len(s.actors))
	for i, a := range s.actors {
		actors[i] = a
	}

	return actors
}

// Actor finds an actor by name.
func (s *Stage) Actor(name string) (sim.Actor, bool) {
	a, ok := s.actorIndex[name]
	if !ok {
		return nil, false
	}

	return a, true
}

// StageActor returns the stage actor.
func (s *Stage) StageActor() sim.Actor {
	return s.stageActor
}

// Threads returns the live threads.
func (s *Stage) Threads() []sim.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	threads := make([]sim.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		if !t.Done() {
			threads = append(threads, t)
		}
	}

	return threads
}

// SetKeyDown changes the pressed state of a key.
func (s *Stage) SetKeyDown(key string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[key] = down
}

// SetMouse changes the mouse state.
func (s *Stage) SetMouse(m sim.Mouse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mouse = m
}

// SetTimeAcceleration scales the step rate. A factor of 2 runs the stage
// twice as fast as real time.
func (s *Stage) SetTimeAcceleration(factor float64) {
	if factor <= 0 {
		panic("time acceleration must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.acceleration = factor
}

// TimeAcceleration returns the current time acceleration.
func (s *Stage) TimeAcceleration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.acceleration
}

// UsePrimitiveMiddleware wraps every primitive executed from now on.
func (s *Stage) UsePrimitiveMiddleware(m sim.PrimitiveMiddleware) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.middlewares.AddMiddleware(m)
}

// Renderer returns the pen and skin layer.
func (s *Stage) Renderer() sim.Renderer {
	return s.renderer
}

// Timer returns the virtual time in seconds since the stage was built.
func (s *Stage) Timer() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timer
}

// Steps returns the number of steps executed.
func (s *Stage) Steps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.steps
}

func (s *Stage) loop(stop <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	s.mu.Lock()
	timer := time.NewTimer(s.freq.Interval(s.acceleration))
	s.mu.Unlock()

	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		s.mu.Lock()
		if s.running {
			s.step()
		}
		interval := s.freq.Interval(s.acceleration)
		s.mu.Unlock()

		timer.Reset(interval)
	}
}

func (s *Stage) step() {
	s.steps++
	s.timer += s.freq.Period()

	s.requestAnswers()

	live := make([]*Thread, len(s.threads))
	copy(live, s.threads)

	for _, t := range live {
		if !s.running {
			break
		}

		if !t.Done() {
			s.resume(t)
		}
	}

	s.pruneThreads()
	s.invoke(sim.HookPosStep, s.steps)
}

func (s *Stage) resume(t *Thread) {
	st, err, _ := s.L.Resume(t.co, t.script.fn)

	switch st {
	case lua.ResumeYield:
		return
	case lua.ResumeError:
		s.log.Warn("script failed",
			zap.String("actor", t.script.actor.name),
			zap.Stringer("hat", t.script.hat),
			zap.Error(err))
	}

	s.finish(t)
}

func (s *Stage) requestAnswers() {
	for _, t := range s.threads {
		if t.Done() || t.question == nil || t.question.Answered {
			continue
		}

		s.invoke(sim.HookPosAnswerRequested, t.question)
	}
}

func (s *Stage) dispatch(hat sim.Hat, target string) []*Thread {
	if hat.Kind == sim.HatBroadcast {
		s.invoke(sim.HookPosBroadcast, hat.Field)
	}

	var started []*Thread

	for _, sc := range s.scripts {
		if !sc.hat.Matches(hat) {
			continue
		}

		if target != "" && sc.actor.name != target {
			continue
		}

		for _, t := range s.threads {
			if t.script == sc {
				s.finish(t)
			}
		}

		started = append(started, s.newThread(sc))
	}

	return started
}

func (s *Stage) newThread(sc *script) *Thread {
	s.nextThreadID++
	co, _ := s.L.NewThread()

	t := &Thread{
		id:     s.nextThreadID,
		script: sc,
		co:     co,
	}

	s.threads = append(s.threads, t)
	s.byCo[co] = t

	s.invoke(sim.HookPosThreadStart, t)

	return t
}

// finish marks a thread as done. It is a no-op for finished threads.
func (s *Stage) finish(t *Thread) {
	if t.done.Swap(true) {
		return
	}

	delete(s.byCo, t.co)
	s.invoke(sim.HookPosThreadDone, t)
}

func (s *Stage) pruneThreads() {
	live := s.threads[:0]
	for _, t := range s.threads {
		if !t.Done() {
			live = append(live, t)
		}
	}

	for i := len(live); i < len(s.threads); i++ {
		s.threads[i] = nil
	}

	s.threads = live
}

// halt kills all threads and stops the loop. It returns the channel closed
// when the loop exits, or nil if the stage was not running.
func (s *Stage) halt() chan struct{} {
	for _, t := range s.threads {
		s.finish(t)
	}

	s.pruneThreads()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.stop)
	s.invoke(sim.HookPosRunStop, nil)

	return s.loopDone
}

func (s *Stage) invoke(pos *sim.HookPos, item any) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   item,
	})
}

// execute runs a primitive through the middleware chain.
func (s *Stage) execute(
	t *Thread,
	opcode string,
	args []any,
	base func(),
) {
	call := &sim.PrimitiveCall{
		Opcode: opcode,
		Actor:  t.script.actor,
		Thread: t,
		Args:   args,
	}

	s.invoke(sim.HookPosBeforePrimitive, call)
	s.middlewares.Chain(func(*sim.PrimitiveCall) { base() })(call)
	s.invoke(sim.HookPosAfterPrimitive, call)
}

var _ sim.Simulation = (*Stage)(nil)
