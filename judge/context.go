package judge

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sarchlab/itch/deferred"
	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/report"
	"github.com/sarchlab/itch/sim"
)

// DefaultActionTimeout is the nominal time a synchronous node may take.
const DefaultActionTimeout = 10 * time.Second

// Outcome is the result of a run.
type Outcome struct {
	Status report.Status
	Err    error
}

// Accepted tells whether the run ended normally.
func (o Outcome) Accepted() bool {
	return o.Status == report.StatusCorrect
}

// An Option configures a Context.
type Option func(c *Context)

// WithSimulation attaches the simulation to drive.
func WithSimulation(s sim.Simulation) Option {
	return func(c *Context) {
		c.pending = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// WithReporter sets the sink that receives the escalations of the run.
func WithReporter(r report.Sink) Option {
	return func(c *Context) {
		c.reporter = r
	}
}

// WithActionTimeout sets the default nominal timeout of synchronous nodes.
func WithActionTimeout(d time.Duration) Option {
	return func(c *Context) {
		c.actionTimeout = d
	}
}

// WithAcceleration sets the initial acceleration.
func WithAcceleration(a Acceleration) Option {
	return func(c *Context) {
		c.acceleration = a
	}
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		c.now = now
	}
}

// WithProfiler records the duration of every primitive in the log.
func WithProfiler() Option {
	return func(c *Context) {
		c.profile = true
	}
}

// Context is the state of one judging run. It owns the log, the listeners
// waiting for simulation signals and the terminal future of the run.
//
// Node lifecycle hooks registered on the Context fire at the positions
// declared in hookpos.go.
//
// Every action receives a view of the Context that shares the state of the
// run. The waits of a view also end once the node that started the action
// stops waiting for it.
type Context struct {
	*runState

	abandoned <-chan struct{}
}

type runState struct {
	*sim.HookableBase

	mu         sync.Mutex
	simulation sim.Simulation
	pending    sim.Simulation
	attached   bool
	profile    bool
	logger     *zap.Logger
	reporter   report.Sink
	log        *execlog.Log
	schedule   *Schedule

	now           func() time.Time
	start         time.Time
	rebased       time.Time
	offset        float64
	acceleration  Acceleration
	actionTimeout time.Duration

	listeners []listener
	answers   []string
	questions map[*sim.Question]*execlog.Event

	finished  *deferred.Deferred[Outcome]
	terminate sync.Once
}

// NewContext creates a context.
func NewContext(opts ...Option) *Context {
	c := &Context{runState: &runState{
		HookableBase:  sim.NewHookableBase(),
		logger:        zap.NewNop(),
		log:           execlog.NewLog(),
		now:           time.Now,
		acceleration:  NoAcceleration,
		actionTimeout: DefaultActionTimeout,
		questions:     make(map[*sim.Question]*execlog.Event),
		finished:      deferred.New[Outcome](),
	}}

	for _, opt := range opts {
		opt(c)
	}

	c.start = c.now()
	c.rebased = c.start

	if c.pending != nil {
		c.Attach(c.pending)
		c.pending = nil
	}

	return c
}

// Attach wires the context into a simulation and its renderer. A context
// drives at most one simulation.
func (c *Context) Attach(s sim.Simulation) {
	c.mu.Lock()

	if c.attached {
		c.mu.Unlock()
		panic("context already attached to a simulation")
	}

	c.simulation = s
	c.attached = true
	factor := c.acceleration.TimeFactor()
	c.mu.Unlock()

	h := &simHook{c: c}
	s.AcceptHook(h)
	s.Renderer().AcceptHook(h)
	s.SetTimeAcceleration(factor)

	if c.profile {
		s.UsePrimitiveMiddleware(NewProfiler(c.log))
	}
}

// Now returns the current wall-clock time.
func (c *Context) Now() time.Time {
	return c.now()
}

// Timestamp returns the nominal milliseconds since the run started. Time
// runs faster by the time acceleration factor, so a timestamp matches the
// clock of the simulation rather than the wall clock.
func (c *Context) Timestamp() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timestamp()
}

func (c *Context) timestamp() float64 {
	elapsed := c.now().Sub(c.rebased)
	return c.offset + ms(elapsed)*c.acceleration.TimeFactor()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Acceleration returns the acceleration factors.
func (c *Context) Acceleration() Acceleration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.acceleration
}

// SetAcceleration changes the acceleration factors. Timestamps stay
// continuous across the change.
func (c *Context) SetAcceleration(a Acceleration) {
	c.mu.Lock()
	now := c.now()
	c.offset = c.timestamp()
	c.rebased = now
	c.acceleration = a
	s := c.simulation
	c.mu.Unlock()

	if s != nil {
		s.SetTimeAcceleration(a.TimeFactor())
	}
}

// AccelerateEvent converts a nominal delay or timeout into real time. Every
// timing-sensitive action goes through it.
func (c *Context) AccelerateEvent(d time.Duration) time.Duration {
	return c.Acceleration().AccelerateEvent(d)
}

// AccelerateTime returns the factor applied to the simulation clock.
func (c *Context) AccelerateTime() float64 {
	return c.Acceleration().TimeFactor()
}

// ActionTimeout returns the default nominal timeout of synchronous nodes.
func (c *Context) ActionTimeout() time.Duration {
	return c.actionTimeout
}

// Log returns the log of the run.
func (c *Context) Log() *execlog.Log {
	return c.log
}

// Simulation returns the attached simulation, or nil.
func (c *Context) Simulation() sim.Simulation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.simulation
}

// Reporter returns the result sink, or nil.
func (c *Context) Reporter() report.Sink {
	return c.reporter
}

// Logger returns the logger.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Schedule returns the schedule being run, or nil before Run.
func (c *Context) Schedule() *Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.schedule
}

// Actors returns the actors of the simulation.
func (c *Context) Actors() []sim.Actor {
	s := c.Simulation()
	if s == nil {
		return nil
	}

	return s.Actors()
}

// QueueAnswers queues the answers given to the questions scripts ask, in
// order.
func (c *Context) QueueAnswers(answers ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.answers = append(c.answers, answers...)
}

// Finished returns the terminal future of the run.
func (c *Context) Finished() *deferred.Deferred[Outcome] {
	return c.finished
}

// Terminated tells whether the run has ended.
func (c *Context) Terminated() bool {
	return c.finished.IsSettled()
}

// Terminate ends the run. Only the first call has an effect: it stops the
// simulation, captures a final frame that every dangling event points to,
// escalates the status and resolves the terminal future. It returns whether
// this call ended the run.
//
// Terminate must not be called from a simulation hook.
func (c *Context) Terminate(o Outcome) bool {
	first := false

	c.terminate.Do(func() {
		first = true
		c.end(o)
	})

	return first
}

func (c *Context) end(o Outcome) {
	c.mu.Lock()
	c.listeners = nil
	s := c.simulation
	c.mu.Unlock()

	if s != nil {
		s.StopAll()
	}

	final := c.log.AddFrame(c, "end")
	for _, e := range c.log.DanglingEvents() {
		e.SetNext(final)
	}

	c.escalate(o)

	c.logger.Info("run terminated",
		zap.String("status", string(o.Status)),
		zap.Float64("timestamp", final.Timestamp),
		zap.Error(o.Err))

	c.finished.Resolve(o)
}

func (c *Context) escalate(o Outcome) {
	if c.reporter == nil || o.Status == "" || o.Status == report.StatusCorrect {
		return
	}

	if errors.Is(o.Err, ErrFatalAssertion) {
		return
	}

	c.reporter.EscalateStatus(o.Status)

	if o.Err != nil {
		c.reporter.AppendMessage(o.Err.Error())
	}
}

// Run starts the simulation and runs the schedule from root. It returns
// when the run terminates, either through an End action, a failing node
// or ctx. A ctx deadline ends the run as time limit exceeded.
func (c *Context) Run(ctx context.Context, root *ScheduledEvent) (Outcome, error) {
	s := c.Simulation()
	if s == nil {
		return Outcome{}, ErrNoSimulation
	}

	if c.Terminated() {
		return Outcome{}, ErrTerminated
	}

	c.mu.Lock()
	c.start = c.now()
	c.rebased = c.start
	c.offset = 0
	c.schedule = root.schedule
	c.mu.Unlock()

	c.log.AddFrame(c, "start")
	c.logger.Debug("run started", zap.Int("nodes", len(root.schedule.Nodes())))

	s.Start()

	go root.run(c)

	select {
	case <-c.finished.Done():
	case <-ctx.Done():
		status := report.StatusInternalError
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = report.StatusTimeLimitExceeded
		}

		c.Terminate(Outcome{Status: status, Err: ctx.Err()})
	}

	o, _ := c.finished.Result()

	return o, nil
}

// abandonable returns a view of the context whose waits end with
// ErrAbandoned once abandoned is closed.
func (c *Context) abandonable(abandoned <-chan struct{}) *Context {
	return &Context{runState: c.runState, abandoned: abandoned}
}

// listen registers a listener. Listeners registered after the run ended are
// ignored. The returned function drops the listener before it is done.
func (c *Context) listen(l listener) (unlisten func()) {
	if c.Terminated() {
		return func() {}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, l)

	return func() { c.unlisten(l) }
}

func (c *Context) unlisten(l listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, registered := range c.listeners {
		if registered != l {
			continue
		}

		last := len(c.listeners) - 1
		copy(c.listeners[i:], c.listeners[i+1:])
		c.listeners[last] = nil
		c.listeners = c.listeners[:last]

		return
	}
}

// notify forwards a signal to a snapshot of the listeners and drops the
// ones that are done.
func (c *Context) notify(pos *sim.HookPos, item any) {
	c.mu.Lock()
	snapshot := make([]listener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	for _, l := range snapshot {
		if !l.done() {
			l.notify(pos, item)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.listeners[:0]
	for _, l := range c.listeners {
		if !l.done() {
			live = append(live, l)
		}
	}

	for i := len(live); i < len(c.listeners); i++ {
		c.listeners[i] = nil
	}

	c.listeners = live
}

func (c *Context) numListeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.listeners)
}

// record appends an event whose previous frame is captured now.
func (c *Context) record(eventType string, data any) *execlog.Event {
	prev := c.log.AddFrame(c, eventType)
	e := execlog.NewEvent(eventType, prev.Timestamp, data)
	e.Previous = prev

	return c.log.AddEvent(e)
}

// settle captures the frame that follows an event.
func (c *Context) settle(e *execlog.Event) {
	e.SetNext(c.log.AddFrame(c, e.Type+"-done"))
}

// instant appends an event that completes immediately.
func (c *Context) instant(eventType string, data any) *execlog.Event {
	f := c.log.AddFrame(c, eventType)
	e := execlog.NewEvent(eventType, f.Timestamp, data)
	e.Previous = f
	e.SetNext(f)

	return c.log.AddEvent(e)
}

func (c *Context) nextAnswer() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.answers) == 0 {
		return "", false
	}

	answer := c.answers[0]
	c.answers = c.answers[1:]

	return answer, true
}

func (c *Context) invoke(pos *sim.HookPos, node *ScheduledEvent, detail any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   node,
		Detail: detail,
	})
}

// simHook is the single hook the context registers on the simulation and
// its renderer.
type simHook struct {
	c *Context
}

func (h *simHook) Func(ctx sim.HookCtx) {
	c := h.c

	switch ctx.Pos {
	case sim.HookPosAfterPrimitive:
		call := ctx.Item.(*sim.PrimitiveCall)
		c.log.AddFrame(c, call.Opcode)
	case sim.HookPosThreadDone, sim.HookPosBroadcast, sim.HookPosStep:
		c.notify(ctx.Pos, ctx.Item)
	case sim.HookPosQuestion:
		h.question(ctx.Item.(*sim.Question))
	case sim.HookPosAnswerRequested:
		h.answer(ctx.Item.(*sim.Question))
	case sim.HookPosPenLine:
		c.log.AddLine(ctx.Item.(sim.PenLine))
	case sim.HookPosPenPoint:
		c.log.AddPoint(ctx.Item.(sim.PenPoint))
	case sim.HookPosPenClear:
		c.log.ClearPen()
		c.instant(execlog.EventPenClear, nil)
	case sim.HookPosSkinCreate:
		c.instant(execlog.EventSkinCreate, ctx.Item)
	case sim.HookPosSkinUpdate:
		c.instant(execlog.EventSkinUpdate, ctx.Item)
	case sim.HookPosSkinDestroy:
		c.instant(execlog.EventSkinDestroy, ctx.Item)
	}
}

// QuestionData is the payload of question and answer events.
type QuestionData struct {
	Actor  string `json:"actor"`
	Text   string `json:"text"`
	Answer string `json:"answer,omitempty"`
}

func (h *simHook) question(q *sim.Question) {
	c := h.c

	data := QuestionData{Text: q.Text}
	if q.Actor != nil {
		data.Actor = q.Actor.Name()
	}

	e := c.record(execlog.EventQuestion, data)

	c.mu.Lock()
	c.questions[q] = e
	c.mu.Unlock()
}

func (h *simHook) answer(q *sim.Question) {
	c := h.c

	answer, ok := c.nextAnswer()
	if !ok {
		return
	}

	q.Answer = answer
	q.Answered = true

	data := QuestionData{Text: q.Text, Answer: answer}
	if q.Actor != nil {
		data.Actor = q.Actor.Name()
	}

	e := c.instant(execlog.EventAnswer, data)

	c.mu.Lock()
	asked, found := c.questions[q]
	delete(c.questions, q)
	c.mu.Unlock()

	if found {
		asked.SetNext(e.Next())
	}
}

var _ execlog.FrameSource = (*Context)(nil)
