package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/itch/judge"
)

// ErrInvalidPlan reports a plan that cannot be built.
var ErrInvalidPlan = errors.New("invalid plan")

// Duration is a nominal duration. In YAML it is either a Go duration string
// such as "1.5s" or a number of milliseconds.
type Duration time.Duration

// UnmarshalYAML parses the duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if ms, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(ms * float64(time.Millisecond))
		return nil
	}

	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// A Plan is a YAML description of an evaluation.
type Plan struct {
	Name         string             `yaml:"name"`
	Project      string             `yaml:"project"`
	Acceleration judge.Acceleration `yaml:"acceleration"`
	Timeout      Duration           `yaml:"timeout"`
	Answers      []string           `yaml:"answers"`
	Schedule     []Step             `yaml:"schedule"`
	Tests        []TestSpec         `yaml:"tests"`

	dir string
}

// HoldSpec holds a key for a duration.
type HoldSpec struct {
	Key string   `yaml:"key"`
	For Duration `yaml:"for"`
}

// MouseSpec sets the mouse state.
type MouseSpec struct {
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Down bool    `yaml:"down"`
}

// PositionSpec names a sprite and a position.
type PositionSpec struct {
	Sprite string  `yaml:"sprite"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
}

// TouchSpec names a sprite and what it touches.
type TouchSpec struct {
	Sprite string `yaml:"sprite"`
	Target string `yaml:"target"`
}

// VariableSpec names a variable and a value. An empty sprite refers to the
// stage.
type VariableSpec struct {
	Sprite string `yaml:"sprite"`
	Name   string `yaml:"name"`
	Value  any    `yaml:"value"`
}

// A Step is one node of the schedule. Exactly one action field is set.
// Parallel branches start from the same node; the steps after them
// continue once the first branch finishes.
type Step struct {
	Click          string        `yaml:"click"`
	Key            string        `yaml:"key"`
	KeyDown        string        `yaml:"key_down"`
	KeyUp          string        `yaml:"key_up"`
	Hold           *HoldSpec     `yaml:"hold"`
	Mouse          *MouseSpec    `yaml:"mouse"`
	Broadcast      string        `yaml:"broadcast"`
	WaitBroadcast  string        `yaml:"wait_broadcast"`
	Wait           Duration      `yaml:"wait"`
	WaitMove       string        `yaml:"wait_move"`
	WaitReach      *PositionSpec `yaml:"wait_reach"`
	WaitTouch      *TouchSpec    `yaml:"wait_touch"`
	WaitNotTouch   *TouchSpec    `yaml:"wait_not_touch"`
	Position       *PositionSpec `yaml:"position"`
	Variable       *VariableSpec `yaml:"variable"`
	TrackSprite    string        `yaml:"track_sprite"`
	TrackBroadcast *string       `yaml:"track_broadcast"`
	Answer         []string      `yaml:"answer"`
	Assert         *TestSpec     `yaml:"assert"`
	Parallel       [][]Step      `yaml:"parallel"`
	End            bool          `yaml:"end"`

	Async     bool     `yaml:"async"`
	Timeout   Duration `yaml:"timeout"`
	OnTimeout string   `yaml:"on_timeout"`
}

// Parse reads a plan.
func Parse(data []byte) (*Plan, error) {
	p := &Plan{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	return p, nil
}

// Load reads a plan file. A relative project path is resolved against the
// directory of the file.
func Load(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	p.dir = filepath.Dir(path)

	return p, nil
}

// ProjectPath returns the path of the project the plan judges.
func (p *Plan) ProjectPath() string {
	if p.Project == "" || filepath.IsAbs(p.Project) || p.dir == "" {
		return p.Project
	}

	return filepath.Join(p.dir, p.Project)
}

// Options returns the context options the plan asks for.
func (p *Plan) Options() []judge.Option {
	var opts []judge.Option

	if p.Acceleration != (judge.Acceleration{}) {
		opts = append(opts, judge.WithAcceleration(p.Acceleration))
	}

	if p.Timeout > 0 {
		opts = append(opts, judge.WithActionTimeout(p.Timeout.Std()))
	}

	return opts
}

// Apply adds the schedule and the tests of the plan to an evaluation.
func (p *Plan) Apply(ev *Evaluation) error {
	if len(p.Answers) > 0 {
		ev.Context().QueueAnswers(p.Answers...)
	}

	for i, spec := range p.Tests {
		check, expected, err := spec.Check()
		if err != nil {
			return fmt.Errorf("test %d: %w", i+1, err)
		}

		if spec.Group == "" {
			ev.Test(spec.Description, expected, check)
			continue
		}

		ev.Group(spec.Group, func() {
			ev.Test(spec.Description, expected, check)
		})
	}

	_, err := buildSteps(ev, ev.Root(), p.Schedule)

	return err
}

func buildSteps(
	ev *Evaluation,
	from *judge.ScheduledEvent,
	steps []Step,
) (*judge.ScheduledEvent, error) {
	var err error

	last := judge.Reduce(from, steps,
		func(n *judge.ScheduledEvent, s Step, i int) *judge.ScheduledEvent {
			if err != nil {
				return n
			}

			var next *judge.ScheduledEvent

			next, err = s.build(ev, n)
			if err != nil {
				err = fmt.Errorf("step %d: %w", i+1, err)
				return n
			}

			return next
		})

	return last, err
}

func (s Step) build(ev *Evaluation, n *judge.ScheduledEvent) (*judge.ScheduledEvent, error) {
	if len(s.Parallel) > 0 {
		return s.buildParallel(ev, n)
	}

	action, err := s.action(ev)
	if err != nil {
		return nil, err
	}

	node := n.Then(action)

	if s.Async {
		node.Async()
	}

	if s.Timeout > 0 {
		node.WithTimeout(s.Timeout.Std())
	}

	switch s.OnTimeout {
	case "":
	case "continue":
		node.OnTimeout(func(*judge.ScheduledEvent) bool { return true })
	default:
		return nil, fmt.Errorf("%w: unknown on_timeout %q", ErrInvalidPlan, s.OnTimeout)
	}

	return node, nil
}

func (s Step) buildParallel(ev *Evaluation, n *judge.ScheduledEvent) (*judge.ScheduledEvent, error) {
	ends := make([]*judge.ScheduledEvent, 0, len(s.Parallel))

	for i, branch := range s.Parallel {
		if len(branch) == 0 {
			return nil, fmt.Errorf("%w: branch %d is empty", ErrInvalidPlan, i+1)
		}

		end, err := buildSteps(ev, n, branch)
		if err != nil {
			return nil, fmt.Errorf("branch %d: %w", i+1, err)
		}

		ends = append(ends, end)
	}

	return n.Join(ends...), nil
}

func (s Step) action(ev *Evaluation) (judge.Action, error) {
	var actions []judge.Action

	add := func(set bool, a func() judge.Action) {
		if set {
			actions = append(actions, a())
		}
	}

	add(s.Click != "", func() judge.Action { return judge.ClickSprite{Sprite: s.Click} })
	add(s.Key != "", func() judge.Action { return judge.PressKey{Key: s.Key} })
	add(s.KeyDown != "", func() judge.Action { return judge.UseKey{Key: s.KeyDown, Down: true} })
	add(s.KeyUp != "", func() judge.Action { return judge.UseKey{Key: s.KeyUp} })
	add(s.Hold != nil, func() judge.Action {
		return judge.UseKey{Key: s.Hold.Key, Down: true, Hold: s.Hold.For.Std()}
	})
	add(s.Mouse != nil, func() judge.Action {
		return judge.UseMouse{X: s.Mouse.X, Y: s.Mouse.Y, Down: s.Mouse.Down}
	})
	add(s.Broadcast != "", func() judge.Action { return judge.SendBroadcast{Name: s.Broadcast} })
	add(s.WaitBroadcast != "", func() judge.Action {
		return judge.WaitForBroadcast{Name: s.WaitBroadcast}
	})
	add(s.Wait > 0, func() judge.Action { return judge.Delay{Duration: s.Wait.Std()} })
	add(s.WaitMove != "", func() judge.Action { return judge.WaitForSpriteMove{Sprite: s.WaitMove} })
	add(s.WaitReach != nil, func() judge.Action {
		return judge.WaitForSpriteReach{Sprite: s.WaitReach.Sprite, X: s.WaitReach.X, Y: s.WaitReach.Y}
	})
	add(s.WaitTouch != nil, func() judge.Action {
		return judge.WaitForSpriteTouch{Sprite: s.WaitTouch.Sprite, Target: s.WaitTouch.Target}
	})
	add(s.WaitNotTouch != nil, func() judge.Action {
		return judge.WaitForSpriteNotTouch{Sprite: s.WaitNotTouch.Sprite, Target: s.WaitNotTouch.Target}
	})
	add(s.Position != nil, func() judge.Action {
		return judge.SetPosition{Sprite: s.Position.Sprite, X: s.Position.X, Y: s.Position.Y}
	})
	add(s.Variable != nil, func() judge.Action {
		return judge.SetVariable{Sprite: s.Variable.Sprite, Name: s.Variable.Name, Value: s.Variable.Value}
	})
	add(s.TrackSprite != "", func() judge.Action { return judge.TrackSprite{Sprite: s.TrackSprite} })
	add(s.TrackBroadcast != nil, func() judge.Action {
		return judge.TrackBroadcast{Name: *s.TrackBroadcast}
	})
	add(len(s.Answer) > 0, func() judge.Action { return judge.Answer{Answers: s.Answer} })
	add(s.End, func() judge.Action { return judge.End{} })

	if s.Assert != nil {
		check, expected, err := s.Assert.Check()
		if err != nil {
			return nil, err
		}

		actions = append(actions, ev.Assert(s.Assert.Description, expected, check))
	}

	switch len(actions) {
	case 0:
		return nil, fmt.Errorf("%w: step has no action", ErrInvalidPlan)
	case 1:
		return actions[0], nil
	default:
		return nil, fmt.Errorf("%w: step has %d actions", ErrInvalidPlan, len(actions))
	}
}
