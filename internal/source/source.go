// Package source provides scroll reading sources with hardware abstraction.
// The rotary implementation uses the Linux GPIO character device; the UDP
// implementation accepts readings reported by the display frontend. The fake
// implementation allows testing without either.
package source

import "errors"

// Sample is a raw scroll reading from a source. The daemon stamps it with
// the tick time before handing it to the state machine.
type Sample struct {
	Position       float64
	ViewportHeight float64
	ContentHeight  float64
}

// Reader reads the current scroll sample.
type Reader interface {
	// Read returns the most recent scroll sample. It must be cheap; it is
	// called once per update tick.
	Read() (Sample, error)

	// Close releases source resources.
	Close() error
}

// Default rotary encoder pins (BCM numbering).
const (
	DefaultPinClk = 17
	DefaultPinDt  = 27
)

// ErrNoReading is returned by Read before the source has produced a sample.
var ErrNoReading = errors.New("source: no reading received yet")

// Geometry describes the scrollable surface a rotary encoder drives.
type Geometry struct {
	// StepSize is the scroll distance of one encoder detent.
	StepSize float64
	// ViewportHeight and ContentHeight are fixed for a rotary-driven
	// surface and reported unchanged with every sample.
	ViewportHeight float64
	ContentHeight  float64
}

func (g Geometry) validate() error {
	if g.StepSize <= 0 {
		return errors.New("source: step size must be positive")
	}
	if g.ViewportHeight <= 0 {
		return errors.New("source: viewport height must be positive")
	}
	if g.ContentHeight < g.ViewportHeight {
		return errors.New("source: content height must be at least the viewport height")
	}
	return nil
}
