package judge

import "time"

// Acceleration scales time during a run. A zero field is unset.
//
// Factor applies to everything. Time overrides it for the simulation: the
// step rate and the waits of primitives. Event overrides it for the delays
// and timeouts of scheduled actions.
type Acceleration struct {
	Factor float64 `toml:"factor" yaml:"factor"`
	Time   float64 `toml:"time" yaml:"time"`
	Event  float64 `toml:"event" yaml:"event"`
}

// NoAcceleration runs in real time.
var NoAcceleration = Acceleration{Factor: 1}

// Overall returns the general factor, 1 when unset.
func (a Acceleration) Overall() float64 {
	if a.Factor <= 0 {
		return 1
	}

	return a.Factor
}

// TimeFactor returns the factor applied to the simulation.
func (a Acceleration) TimeFactor() float64 {
	if a.Time > 0 {
		return a.Time
	}

	return a.Overall()
}

// EventFactor returns the factor applied to scheduled actions.
func (a Acceleration) EventFactor() float64 {
	if a.Event > 0 {
		return a.Event
	}

	return a.Overall()
}

// AccelerateEvent converts a nominal duration into the real duration to
// wait.
func (a Acceleration) AccelerateEvent(d time.Duration) time.Duration {
	f := a.EventFactor()
	if f == 1 {
		return d
	}

	return time.Duration(float64(d) / f)
}
