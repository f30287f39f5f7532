package plan

import (
	"fmt"
	"strconv"
)

// Kinds of tests a plan file can declare.
const (
	KindMoved            = "moved"
	KindNotMoved         = "not_moved"
	KindSafeFromEdge     = "safe_from_edge"
	KindVariable         = "variable"
	KindCostumeChanges   = "costume_changes"
	KindDirectionChanges = "direction_changes"
	KindBroadcastSent    = "broadcast_sent"
	KindEventCount       = "event_count"
	KindOverlap          = "overlap"
	KindSquares          = "squares"
	KindTriangles        = "triangles"
	KindOpcode           = "opcode"
	KindSaid             = "said"
)

// DefaultSaidTolerance is the tolerance, in milliseconds, of a said test
// that does not set one.
const DefaultSaidTolerance = 100

// TestSpec is the YAML form of a test. Kind selects the check; the other
// fields are its arguments.
type TestSpec struct {
	Description string   `yaml:"description"`
	Group       string   `yaml:"group"`
	Kind        string   `yaml:"kind"`
	Expected    string   `yaml:"expected"`
	Sprite      string   `yaml:"sprite"`
	Target      string   `yaml:"target"`
	Name        string   `yaml:"name"`
	Value       any      `yaml:"value"`
	Count       int      `yaml:"count"`
	Event       string   `yaml:"event"`
	Opcode      string   `yaml:"opcode"`
	Text        string   `yaml:"text"`
	Duration    Duration `yaml:"duration"`
	Tolerance   float64  `yaml:"tolerance"`
	Not         bool     `yaml:"not"`
}

// Check builds the check t describes and the text reported as its
// expectation.
func (t TestSpec) Check() (Check, string, error) {
	check, expected, err := t.check()
	if err != nil {
		return nil, "", err
	}

	if t.Expected != "" {
		expected = t.Expected
	}

	if t.Not {
		check = Not(check)
		expected = "not " + expected
	}

	return check, expected, nil
}

func (t TestSpec) check() (Check, string, error) {
	switch t.Kind {
	case KindMoved:
		return HasMoved(t.Sprite), "moved", t.needSprite()
	case KindNotMoved:
		return NotMoved(t.Sprite), "did not move", t.needSprite()
	case KindSafeFromEdge:
		return SafeFromEdge(t.Sprite), "never touched the edge", t.needSprite()
	case KindVariable:
		if t.Name == "" {
			return nil, "", t.missing("name")
		}

		return VariableEquals(t.Sprite, t.Name, t.Value), fmt.Sprint(t.Value), nil
	case KindCostumeChanges:
		return CostumeChanges(t.Sprite, t.Count),
			"at least " + strconv.Itoa(t.Count) + " costume changes", t.needSprite()
	case KindDirectionChanges:
		return DirectionChanges(t.Sprite, t.Count),
			"at least " + strconv.Itoa(t.Count) + " direction changes", t.needSprite()
	case KindBroadcastSent:
		if t.Name == "" {
			return nil, "", t.missing("name")
		}

		return BroadcastSent(t.Name), "sent", nil
	case KindEventCount:
		if t.Event == "" {
			return nil, "", t.missing("event")
		}

		return EventCount(t.Event, t.Count),
			fmt.Sprintf("%d %s events", t.Count, t.Event), nil
	case KindOverlap:
		if t.Target == "" {
			return nil, "", t.missing("target")
		}

		return Overlapped(t.Sprite, t.Target), "overlapped", t.needSprite()
	case KindSquares:
		return SquaresDrawn(t.Count), "at least " + strconv.Itoa(t.Count) + " squares", nil
	case KindTriangles:
		return TrianglesDrawn(t.Count), "at least " + strconv.Itoa(t.Count) + " triangles", nil
	case KindOpcode:
		if t.Opcode == "" {
			return nil, "", t.missing("opcode")
		}

		return OpcodeExecuted(t.Opcode, t.Count),
			fmt.Sprintf("%s ran at least %d times", t.Opcode, t.Count), nil
	case KindSaid:
		return t.said()
	default:
		return nil, "", fmt.Errorf("%w: unknown test kind %q", ErrInvalidPlan, t.Kind)
	}
}

func (t TestSpec) said() (Check, string, error) {
	if t.Text == "" {
		return nil, "", t.missing("text")
	}

	tolerance := t.Tolerance
	if tolerance == 0 {
		tolerance = DefaultSaidTolerance
	}

	ms := float64(t.Duration.Std().Milliseconds())

	return SaidFor(t.Text, ms, tolerance),
		fmt.Sprintf("said %q for %.0f ms", t.Text, ms), nil
}

func (t TestSpec) needSprite() error {
	if t.Sprite == "" {
		return t.missing("sprite")
	}

	return nil
}

func (t TestSpec) missing(field string) error {
	return fmt.Errorf("%w: %s test %q needs a %s", ErrInvalidPlan, t.Kind, t.Description, field)
}
