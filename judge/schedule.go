package judge

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sarchlab/itch/deferred"
	"github.com/sarchlab/itch/report"
)

// NodeState is the lifecycle state of a scheduled node.
type NodeState int

// The states of a node. A node only moves forward.
const (
	NodeScheduled NodeState = iota
	NodeRunning
	NodeResolved
	NodeTimedOut
	NodeErrored
)

func (s NodeState) String() string {
	switch s {
	case NodeScheduled:
		return "scheduled"
	case NodeRunning:
		return "running"
	case NodeResolved:
		return "resolved"
	case NodeTimedOut:
		return "timed-out"
	case NodeErrored:
		return "errored"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// A Schedule is a tree of scheduled nodes. It keeps every node in an arena
// addressed by id so that the tree can be inspected while and after it
// runs.
type Schedule struct {
	mu    sync.Mutex
	nodes []*ScheduledEvent
	root  *ScheduledEvent
}

// NewSchedule creates a schedule with a root node that does nothing.
func NewSchedule() *Schedule {
	s := &Schedule{}
	s.root = s.add(Callback{Description: "root"}, -1)

	return s
}

func (s *Schedule) add(action Action, parent int) *ScheduledEvent {
	if action == nil {
		panic("cannot schedule a nil action")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := &ScheduledEvent{
		id:       len(s.nodes),
		parent:   parent,
		schedule: s,
		action:   action,
		settled:  deferred.New[any](),
	}
	s.nodes = append(s.nodes, n)

	return n
}

// Root returns the root node.
func (s *Schedule) Root() *ScheduledEvent {
	return s.root
}

// Nodes returns all nodes in the order they were scheduled.
func (s *Schedule) Nodes() []*ScheduledEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]*ScheduledEvent, len(s.nodes))
	copy(nodes, s.nodes)

	return nodes
}

// Node returns the node with the id.
func (s *Schedule) Node(id int) (*ScheduledEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id >= len(s.nodes) {
		return nil, false
	}

	return s.nodes[id], true
}

// NodeInfo describes a node for diagnostics.
type NodeInfo struct {
	ID       int     `json:"id"`
	Parent   int     `json:"parent"`
	Action   string  `json:"action"`
	Async    bool    `json:"async"`
	Timeout  float64 `json:"timeout,omitempty"`
	State    string  `json:"state"`
	Children []int   `json:"children"`
	Launched int     `json:"launched"`
	Error    string  `json:"error,omitempty"`
}

// Snapshot describes every node.
func (s *Schedule) Snapshot() []NodeInfo {
	nodes := s.Nodes()
	infos := make([]NodeInfo, len(nodes))

	for i, n := range nodes {
		infos[i] = n.Info()
	}

	return infos
}

// Dump writes the tree, one node per line, indented by depth.
func (s *Schedule) Dump(w io.Writer) error {
	return s.dump(w, s.root, 0)
}

func (s *Schedule) dump(w io.Writer, n *ScheduledEvent, depth int) error {
	info := n.Info()

	mode := "sync"
	if info.Async {
		mode = "async"
	}

	_, err := fmt.Fprintf(w, "%s#%d %s [%s, %s]\n",
		strings.Repeat("  ", depth), info.ID, info.Action, mode, info.State)
	if err != nil {
		return err
	}

	for _, child := range n.Children() {
		if err := s.dump(w, child, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// A ScheduledEvent is a node of a schedule. It wraps one action and
// launches its children once the action settles, or at once for an
// asynchronous node.
//
// Every scheduling method adds a child to the receiver and returns the
// child, so calls chain into a sequence, while calls on the same node fan
// out into siblings that run concurrently.
type ScheduledEvent struct {
	id       int
	parent   int
	schedule *Schedule
	action   Action

	mu        sync.Mutex
	async     bool
	timeout   time.Duration
	children  []*ScheduledEvent
	onResolve func(result any)
	onTimeout func(n *ScheduledEvent) bool
	state     NodeState
	launched  int
	err       error

	settled *deferred.Deferred[any]
}

// ID returns the id of the node within its schedule.
func (n *ScheduledEvent) ID() int {
	return n.id
}

// Action returns the wrapped action.
func (n *ScheduledEvent) Action() Action {
	return n.action
}

// Schedule returns the schedule the node belongs to.
func (n *ScheduledEvent) Schedule() *Schedule {
	return n.schedule
}

// Children returns the children of the node.
func (n *ScheduledEvent) Children() []*ScheduledEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	children := make([]*ScheduledEvent, len(n.children))
	copy(children, n.children)

	return children
}

// State returns the lifecycle state.
func (n *ScheduledEvent) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.state
}

// Launched returns the number of children the node has launched.
func (n *ScheduledEvent) Launched() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.launched
}

// Err returns the error the node failed with.
func (n *ScheduledEvent) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.err
}

// Settled returns a future that resolves with the result of the node, or
// when a timeout of the node was handled, and rejects when it fails.
func (n *ScheduledEvent) Settled() *deferred.Deferred[any] {
	return n.settled
}

// Info describes the node.
func (n *ScheduledEvent) Info() NodeInfo {
	n.mu.Lock()
	defer n.mu.Unlock()

	info := NodeInfo{
		ID:       n.id,
		Parent:   n.parent,
		Action:   n.action.String(),
		Async:    n.async,
		Timeout:  ms(n.timeout),
		State:    n.state.String(),
		Children: make([]int, len(n.children)),
		Launched: n.launched,
	}

	for i, c := range n.children {
		info.Children[i] = c.id
	}

	if n.err != nil {
		info.Error = n.err.Error()
	}

	return info
}

func (n *ScheduledEvent) String() string {
	return fmt.Sprintf("#%d %s", n.id, n.action)
}

// Async makes the node asynchronous: its children start right after its
// action starts, and it never times out.
func (n *ScheduledEvent) Async() *ScheduledEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.async = true

	return n
}

// WithTimeout overrides the nominal timeout of the node.
func (n *ScheduledEvent) WithTimeout(d time.Duration) *ScheduledEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.timeout = d

	return n
}

// OnResolve sets the function called with the result when the node
// resolves. It replaces any function set before.
func (n *ScheduledEvent) OnResolve(fn func(result any)) *ScheduledEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.onResolve = fn

	return n
}

// OnTimeout sets the function called when the node times out. Returning
// true handles the timeout: the children are launched and the run goes on.
// It replaces any function set before.
func (n *ScheduledEvent) OnTimeout(fn func(n *ScheduledEvent) bool) *ScheduledEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.onTimeout = fn

	return n
}

// Then schedules an action after the node.
func (n *ScheduledEvent) Then(action Action) *ScheduledEvent {
	child := n.schedule.add(action, n.id)

	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()

	return child
}

// Pipe hands the node to a function that builds more of the schedule and
// returns the node to continue from.
func (n *ScheduledEvent) Pipe(fn func(n *ScheduledEvent) *ScheduledEvent) *ScheduledEvent {
	return fn(n)
}

// Reduce folds items into the schedule. If fn returns a new node each time,
// the items run in sequence; if it returns the node it was given, they fan
// out from it.
func Reduce[T any](
	n *ScheduledEvent,
	items []T,
	fn func(n *ScheduledEvent, item T, i int) *ScheduledEvent,
) *ScheduledEvent {
	for i, item := range items {
		n = fn(n, item, i)
	}

	return n
}

// Wait schedules a nominal delay.
func (n *ScheduledEvent) Wait(d time.Duration) *ScheduledEvent {
	return n.Then(Delay{Duration: d})
}

// WaitFor schedules a wait for a condition checked after every step.
func (n *ScheduledEvent) WaitFor(
	description string,
	condition func(c *Context) bool,
) *ScheduledEvent {
	return n.Then(WaitForCondition{Description: description, Condition: condition})
}

// ClickSprite schedules a click on a sprite.
func (n *ScheduledEvent) ClickSprite(sprite string) *ScheduledEvent {
	return n.Then(ClickSprite{Sprite: sprite})
}

// PressKey schedules a key press.
func (n *ScheduledEvent) PressKey(key string) *ScheduledEvent {
	return n.Then(PressKey{Key: key})
}

// UseKey schedules a change of the pressed state of a key.
func (n *ScheduledEvent) UseKey(key string, down bool) *ScheduledEvent {
	return n.Then(UseKey{Key: key, Down: down})
}

// HoldKey schedules holding a key for a nominal duration.
func (n *ScheduledEvent) HoldKey(key string, d time.Duration) *ScheduledEvent {
	return n.Then(UseKey{Key: key, Down: true, Hold: d})
}

// UseMouse schedules a change of the mouse state.
func (n *ScheduledEvent) UseMouse(x, y float64, down bool) *ScheduledEvent {
	return n.Then(UseMouse{X: x, Y: y, Down: down})
}

// SendBroadcast schedules a broadcast.
func (n *ScheduledEvent) SendBroadcast(name string) *ScheduledEvent {
	return n.Then(SendBroadcast{Name: name})
}

// WaitForBroadcast schedules a wait for a broadcast.
func (n *ScheduledEvent) WaitForBroadcast(name string) *ScheduledEvent {
	return n.Then(WaitForBroadcast{Name: name})
}

// WaitForSpriteMove schedules a wait for a sprite to move.
func (n *ScheduledEvent) WaitForSpriteMove(sprite string) *ScheduledEvent {
	return n.Then(WaitForSpriteMove{Sprite: sprite})
}

// WaitForSpriteReach schedules a wait for a sprite to reach a position.
func (n *ScheduledEvent) WaitForSpriteReach(sprite string, x, y float64) *ScheduledEvent {
	return n.Then(WaitForSpriteReach{Sprite: sprite, X: x, Y: y})
}

// WaitForSpriteTouch schedules a wait for a sprite to touch a target.
func (n *ScheduledEvent) WaitForSpriteTouch(sprite, target string) *ScheduledEvent {
	return n.Then(WaitForSpriteTouch{Sprite: sprite, Target: target})
}

// WaitForSpriteNotTouch schedules a wait for a sprite to stop touching a
// target.
func (n *ScheduledEvent) WaitForSpriteNotTouch(sprite, target string) *ScheduledEvent {
	return n.Then(WaitForSpriteNotTouch{Sprite: sprite, Target: target})
}

// SetPosition schedules moving a sprite.
func (n *ScheduledEvent) SetPosition(sprite string, x, y float64) *ScheduledEvent {
	return n.Then(SetPosition{Sprite: sprite, X: x, Y: y})
}

// SetVariable schedules overwriting a variable. An empty sprite refers to
// the stage.
func (n *ScheduledEvent) SetVariable(sprite, name string, value any) *ScheduledEvent {
	return n.Then(SetVariable{Sprite: sprite, Name: name, Value: value})
}

// TrackSprite schedules tracking the changes of a sprite.
func (n *ScheduledEvent) TrackSprite(sprite string) *ScheduledEvent {
	return n.Then(TrackSprite{Sprite: sprite})
}

// TrackBroadcast schedules tracking broadcasts.
func (n *ScheduledEvent) TrackBroadcast(name string) *ScheduledEvent {
	return n.Then(TrackBroadcast{Name: name})
}

// Answer schedules queueing answers.
func (n *ScheduledEvent) Answer(answers ...string) *ScheduledEvent {
	return n.Then(Answer{Answers: answers})
}

// Do schedules a function.
func (n *ScheduledEvent) Do(description string, fn func(c *Context) error) *ScheduledEvent {
	return n.Then(Callback{Description: description, Fn: fn})
}

// Join schedules a node that resolves as soon as any of the nodes settles.
func (n *ScheduledEvent) Join(nodes ...*ScheduledEvent) *ScheduledEvent {
	return n.Then(Join{Nodes: nodes})
}

// End schedules the normal end of the run.
func (n *ScheduledEvent) End() *ScheduledEvent {
	return n.Then(End{})
}

func (n *ScheduledEvent) setState(s NodeState, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.state = s
	n.err = err
}

func (n *ScheduledEvent) budget(c *Context) time.Duration {
	n.mu.Lock()
	timeout := n.timeout
	n.mu.Unlock()

	if timeout <= 0 {
		timeout = c.ActionTimeout()
	}

	if e, ok := n.action.(extraTimeout); ok {
		timeout += e.extraTimeout()
	}

	return timeout
}

// run executes the node and, once it settles, launches its children.
func (n *ScheduledEvent) run(c *Context) {
	if c.Terminated() {
		return
	}

	n.mu.Lock()
	async := n.async
	n.mu.Unlock()

	n.setState(NodeRunning, nil)
	c.invoke(HookPosNodeStart, n, nil)

	// abandoned is closed when the node stops waiting for a timed out
	// action, so that the waits of the action end with the node.
	abandoned := make(chan struct{})
	result := deferred.New[any]()
	go n.execute(c.abandonable(abandoned), result)

	limit := deferred.New[any]()

	var (
		race  *deferred.Deferred[any]
		timer *time.Timer
	)

	if async {
		limit.Resolve(nil)
		race = deferred.Race(limit, result)
		result.Then(func(_ any, err error) { n.lateFailure(c, err) })
	} else {
		budget := n.budget(c)
		timer = time.AfterFunc(c.AccelerateEvent(budget), func() {
			limit.Reject(&TimeoutError{Action: n.action.String(), After: budget})
		})
		race = deferred.Race(result, limit)
	}

	<-race.Done()

	if timer != nil {
		timer.Stop()
	}

	v, err := race.Result()

	switch {
	case err == nil:
		n.resolve(c, v)
	case errors.Is(err, ErrTimeout):
		close(abandoned)
		n.timedOut(c, err)
	default:
		n.fail(c, err)
	}
}

func (n *ScheduledEvent) execute(c *Context, result *deferred.Deferred[any]) {
	defer func() {
		if r := recover(); r != nil {
			result.Reject(&PanicError{Value: r})
		}
	}()

	n.action.Execute(c, func(v any, err error) {
		if err != nil {
			result.Reject(err)
			return
		}

		result.Resolve(v)
	})
}

func (n *ScheduledEvent) resolve(c *Context, v any) {
	n.setState(NodeResolved, nil)
	n.settled.Resolve(v)
	c.invoke(HookPosNodeResolved, n, v)

	n.mu.Lock()
	onResolve := n.onResolve
	n.mu.Unlock()

	if onResolve != nil {
		onResolve(v)
	}

	n.launch(c)
}

func (n *ScheduledEvent) timedOut(c *Context, err error) {
	n.setState(NodeTimedOut, err)
	c.invoke(HookPosNodeTimeout, n, err)

	n.mu.Lock()
	onTimeout := n.onTimeout
	n.mu.Unlock()

	if onTimeout != nil && onTimeout(n) {
		n.settled.Resolve(nil)
		n.launch(c)

		return
	}

	n.settled.Reject(err)
	c.Terminate(Outcome{Status: report.StatusTimeLimitExceeded, Err: err})
}

func (n *ScheduledEvent) fail(c *Context, err error) {
	n.setState(NodeErrored, err)
	n.settled.Reject(err)
	c.invoke(HookPosNodeError, n, err)

	if c.Terminated() {
		return
	}

	if errors.Is(err, ErrFatalAssertion) {
		c.Terminate(Outcome{Status: report.StatusWrong, Err: err})
		return
	}

	c.Terminate(Outcome{
		Status: report.StatusRuntimeError,
		Err:    fmt.Errorf("%s: %w", n.action, err),
	})
}

// lateFailure handles the error of an asynchronous action that fails after
// its node resolved.
func (n *ScheduledEvent) lateFailure(c *Context, err error) {
	if err == nil || errors.Is(err, ErrTerminated) {
		return
	}

	c.Logger().Warn("asynchronous action failed",
		zap.Int("node", n.id),
		zap.Stringer("action", n.action),
		zap.Error(err))

	n.setState(NodeErrored, err)
	c.invoke(HookPosNodeError, n, err)

	if c.Terminated() {
		return
	}

	status := report.StatusRuntimeError
	if errors.Is(err, ErrFatalAssertion) {
		status = report.StatusWrong
	}

	c.Terminate(Outcome{Status: status, Err: fmt.Errorf("%s: %w", n.action, err)})
}

func (n *ScheduledEvent) launch(c *Context) {
	n.mu.Lock()
	children := make([]*ScheduledEvent, len(n.children))
	copy(children, n.children)
	n.launched += len(children)
	n.mu.Unlock()

	for _, child := range children {
		go child.run(c)
	}
}
