// Package plan describes how a submission is judged: the inputs scheduled
// against the running program and the tests evaluated against its log.
//
// An Evaluation can be built in Go:
//
//	ev := plan.NewEvaluation(c, reporter)
//	ev.Root().ClickSprite("Cat").Wait(time.Second).End()
//	ev.Test("the cat moves", "moved", plan.HasMoved("Cat"))
//	outcome, err := ev.Run(ctx)
//
// or loaded from a YAML plan file with Load.
package plan

import (
	"context"
	"errors"
	"sync"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/report"
)

// A Check inspects the log. It returns a description of what it observed
// and whether the observation matches the expectation.
type Check func(l *execlog.Log) (generated string, ok bool)

// A Test is a check reported under a description.
type Test struct {
	Description string
	Expected    string
	Check       Check
}

// Result is the outcome of a test.
type Result struct {
	Group       string `json:"group"`
	Description string `json:"description"`
	Expected    string `json:"expected"`
	Generated   string `json:"generated"`
	Accepted    bool   `json:"accepted"`
}

type group struct {
	title string
	tests []Test
}

// DefaultGroup is the title of the tab holding tests declared outside of a
// group.
const DefaultGroup = "Tests"

// Evaluation couples a schedule with the tests evaluated once it ran.
type Evaluation struct {
	c        *judge.Context
	schedule *judge.Schedule
	reporter report.Sink

	mu      sync.Mutex
	groups  []*group
	current *group
	results []Result
	tab     string
}

// NewEvaluation creates an evaluation that runs in c and reports to
// reporter. The reporter should be the one the context escalates to.
func NewEvaluation(c *judge.Context, reporter report.Sink) *Evaluation {
	return &Evaluation{
		c:        c,
		schedule: judge.NewSchedule(),
		reporter: reporter,
	}
}

// Context returns the judging context.
func (e *Evaluation) Context() *judge.Context {
	return e.c
}

// Schedule returns the schedule of the evaluation.
func (e *Evaluation) Schedule() *judge.Schedule {
	return e.schedule
}

// Root returns the root node of the schedule.
func (e *Evaluation) Root() *judge.ScheduledEvent {
	return e.schedule.Root()
}

// Group declares the tests added by fn under a tab.
func (e *Evaluation) Group(title string, fn func()) {
	e.mu.Lock()
	prev := e.current
	e.current = e.groupOf(title)
	e.mu.Unlock()

	fn()

	e.mu.Lock()
	e.current = prev
	e.mu.Unlock()
}

func (e *Evaluation) groupOf(title string) *group {
	for _, g := range e.groups {
		if g.title == title {
			return g
		}
	}

	g := &group{title: title}
	e.groups = append(e.groups, g)

	return g
}

func (e *Evaluation) currentGroup() *group {
	if e.current == nil {
		e.current = e.groupOf(DefaultGroup)
	}

	return e.current
}

// Test adds a test evaluated once the run ended.
func (e *Evaluation) Test(description, expected string, check Check) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g := e.currentGroup()
	g.tests = append(g.tests, Test{
		Description: description,
		Expected:    expected,
		Check:       check,
	})
}

// Assert returns an action that evaluates a check against the log so far.
// The test is reported at once; when it fails the run stops.
func (e *Evaluation) Assert(description, expected string, check Check) judge.Action {
	e.mu.Lock()
	title := e.currentGroup().title
	e.mu.Unlock()

	return &assertion{
		e:     e,
		group: title,
		test: Test{
			Description: description,
			Expected:    expected,
			Check:       check,
		},
	}
}

// Results returns the outcome of every test reported so far.
func (e *Evaluation) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	results := make([]Result, len(e.results))
	copy(results, e.results)

	return results
}

func (e *Evaluation) report(title string, t Test) Result {
	generated, ok := t.Check(e.c.Log())

	r := Result{
		Group:       title,
		Description: t.Description,
		Expected:    t.Expected,
		Generated:   generated,
		Accepted:    ok,
	}

	e.mu.Lock()
	e.results = append(e.results, r)
	newTab := e.tab != title
	e.tab = title
	e.mu.Unlock()

	if e.reporter != nil {
		if newTab {
			e.reporter.StartTab(title)
		}

		e.reporter.StartContext(t.Description)
		e.reporter.StartTestcase(t.Description)
		e.reporter.StartTest(t.Description, t.Expected)
		e.reporter.CloseTest(generated, ok)
		e.reporter.CloseTestcase(ok)
		e.reporter.CloseContext(ok)
	}

	return r
}

// Run runs the schedule, evaluates the tests and closes the judgement. A
// failed test turns an accepted run into a wrong one. After a fatal
// assertion the remaining tests are skipped. A run that cannot start is
// reported as an internal error.
func (e *Evaluation) Run(ctx context.Context) (judge.Outcome, error) {
	if e.reporter != nil {
		e.reporter.StartJudgement()
	}

	o, err := e.c.Run(ctx, e.Root())
	if err != nil {
		if e.reporter != nil {
			e.reporter.EscalateStatus(report.StatusInternalError)
			e.reporter.AppendMessage(err.Error())
			e.reporter.CloseJudgement(false)
		}

		return o, err
	}

	if !errors.Is(o.Err, judge.ErrFatalAssertion) {
		o = e.evaluate(o)
	}

	if e.reporter != nil {
		e.reporter.CloseJudgement(o.Accepted())
	}

	return o, nil
}

func (e *Evaluation) evaluate(o judge.Outcome) judge.Outcome {
	e.mu.Lock()
	groups := make([]group, len(e.groups))
	for i, g := range e.groups {
		groups[i] = group{title: g.title, tests: append([]Test(nil), g.tests...)}
	}
	e.mu.Unlock()

	failed := false

	for _, g := range groups {
		for _, t := range g.tests {
			if !e.report(g.title, t).Accepted {
				failed = true
			}
		}
	}

	if failed && o.Accepted() {
		o.Status = report.StatusWrong

		if e.reporter != nil {
			e.reporter.EscalateStatus(report.StatusWrong)
		}
	}

	return o
}

type assertion struct {
	e     *Evaluation
	group string
	test  Test
}

func (a *assertion) Execute(_ *judge.Context, done judge.DoneFunc) {
	r := a.e.report(a.group, a.test)
	if r.Accepted {
		done(r, nil)
		return
	}

	if a.e.reporter != nil {
		a.e.reporter.EscalateStatus(report.StatusWrong)
	}

	done(nil, &judge.FatalAssertionError{Description: a.test.Description})
}

func (a *assertion) String() string {
	return "assert " + a.test.Description
}
