package plan

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/judge"
)

// HasMoved checks that a sprite moved during the run.
func HasMoved(sprite string) Check {
	return func(l *execlog.Log) (string, bool) {
		moved := l.Frames().HasMoved(sprite)
		return movedText(moved), moved
	}
}

// NotMoved checks that a sprite stayed in place.
func NotMoved(sprite string) Check {
	return func(l *execlog.Log) (string, bool) {
		moved := l.Frames().HasMoved(sprite)
		return movedText(moved), !moved
	}
}

func movedText(moved bool) string {
	if moved {
		return "moved"
	}

	return "did not move"
}

// SafeFromEdge checks that a sprite never touched the edge.
func SafeFromEdge(sprite string) Check {
	return func(l *execlog.Log) (string, bool) {
		if l.Frames().IsSafeFromEdge(sprite) {
			return "never touched the edge", true
		}

		return "touched the edge", false
	}
}

// VariableEquals checks the last value of a variable. An empty sprite
// refers to the stage. Numbers compare with execlog.IsEqual, other values
// by their text.
func VariableEquals(sprite, name string, want any) Check {
	return func(l *execlog.Log) (string, bool) {
		last := l.LastFrame()
		if last == nil {
			return "no frame", false
		}

		a, ok := actorSnapshot(last, sprite)
		if !ok {
			return fmt.Sprintf("no actor %q", sprite), false
		}

		got, ok := a.Variables[name]
		if !ok {
			return fmt.Sprintf("no variable %q", name), false
		}

		return fmt.Sprint(got), valuesEqual(got, want)
	}
}

func actorSnapshot(f *execlog.Frame, sprite string) (execlog.ActorSnapshot, bool) {
	if sprite != "" {
		return f.Actor(sprite)
	}

	for _, a := range f.Actors {
		if a.IsStage {
			return a, true
		}
	}

	return execlog.ActorSnapshot{}, false
}

func valuesEqual(got, want any) bool {
	gf, gok := number(got)
	wf, wok := number(want)

	if gok && wok {
		return execlog.IsEqual(gf, wf)
	}

	if reflect.DeepEqual(got, want) {
		return true
	}

	return fmt.Sprint(got) == fmt.Sprint(want)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// CostumeChanges checks that a sprite switched costumes at least atLeast
// times.
func CostumeChanges(sprite string, atLeast int) Check {
	return func(l *execlog.Log) (string, bool) {
		changes := l.Frames().CostumeChanges(sprite)
		n := len(changes) - 1
		if n < 0 {
			n = 0
		}

		return fmt.Sprintf("%d costume changes: %s", n, strings.Join(changes, " > ")),
			n >= atLeast
	}
}

// DirectionChanges checks that a sprite turned at least atLeast times.
func DirectionChanges(sprite string, atLeast int) Check {
	return func(l *execlog.Log) (string, bool) {
		n := len(l.Frames().DirectionChanges(sprite)) - 1
		if n < 0 {
			n = 0
		}

		return fmt.Sprintf("%d direction changes", n), n >= atLeast
	}
}

// BroadcastSent checks that a broadcast was recorded. Broadcasts sent by
// scripts are only recorded while a TrackBroadcast action is active.
func BroadcastSent(name string) Check {
	return func(l *execlog.Log) (string, bool) {
		n := 0

		for _, e := range l.EventsOfType(execlog.EventBroadcast) {
			if data, ok := e.Data.(judge.BroadcastData); ok && data.Name == name {
				n++
			}
		}

		return fmt.Sprintf("sent %d times", n), n > 0
	}
}

// EventCount checks the number of events of a type.
func EventCount(eventType string, want int) Check {
	return func(l *execlog.Log) (string, bool) {
		n := len(l.EventsOfType(eventType))
		return fmt.Sprintf("%d %s events", n, eventType), n == want
	}
}

// Overlapped checks that two actors overlapped in some frame.
func Overlapped(a, b string) Check {
	return func(l *execlog.Log) (string, bool) {
		if l.Frames().Overlaps(a, b) {
			return "overlapped", true
		}

		return "never overlapped", false
	}
}

// SquaresDrawn checks that the pen drew at least atLeast squares.
func SquaresDrawn(atLeast int) Check {
	return func(l *execlog.Log) (string, bool) {
		n := len(l.Squares())
		return fmt.Sprintf("%d squares", n), n >= atLeast
	}
}

// TrianglesDrawn checks that the pen drew at least atLeast triangles.
func TrianglesDrawn(atLeast int) Check {
	return func(l *execlog.Log) (string, bool) {
		n := len(l.Triangles())
		return fmt.Sprintf("%d triangles", n), n >= atLeast
	}
}

// OpcodeExecuted checks that a primitive ran at least atLeast times.
func OpcodeExecuted(opcode string, atLeast int) Check {
	return func(l *execlog.Log) (string, bool) {
		n := l.OpcodeCount(opcode)
		return fmt.Sprintf("%s ran %d times", opcode, n), n >= atLeast
	}
}

// SaidFor checks that a speech bubble with the text was shown for about
// the nominal duration, in milliseconds, within the tolerance.
func SaidFor(text string, ms, tolerance float64) Check {
	return func(l *execlog.Log) (string, bool) {
		d, ok := l.SkinDuration(text)
		if !ok {
			return fmt.Sprintf("never said %q", text), false
		}

		return fmt.Sprintf("said %q for %.0f ms", text, d),
			execlog.NumericEquals(d, ms, tolerance)
	}
}

// Not negates a check.
func Not(check Check) Check {
	return func(l *execlog.Log) (string, bool) {
		generated, ok := check(l)
		return generated, !ok
	}
}
