package stage

import (
	"log"
	"math"
	"time"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
)

// DefaultFreq is the nominal step rate of a stage.
const DefaultFreq = 30 * Hz

// Period returns the virtual time between two consecutive steps, in seconds.
func (f Freq) Period() float64 {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return 1.0 / float64(f)
}

// Interval returns the real time between two consecutive steps when the
// stage runs with the given time acceleration.
func (f Freq) Interval(acceleration float64) time.Duration {
	if acceleration <= 0 || math.IsNaN(acceleration) {
		log.Panic("invalid time acceleration")
	}

	return time.Duration(f.Period() / acceleration * float64(time.Second))
}

// Cycle converts a virtual time to the number of steps passed since time 0.
func (f Freq) Cycle(seconds float64) uint64 {
	return uint64(math.Round(seconds * float64(f)))
}

// NCyclesLater returns the virtual time after n steps.
func (f Freq) NCyclesLater(n int, now float64) float64 {
	if math.IsNaN(now) {
		log.Panic("invalid time")
	}

	return float64(f.Cycle(now)+uint64(n)) * f.Period()
}
