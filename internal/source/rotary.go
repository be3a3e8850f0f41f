//go:build linux

package source

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RotaryReader accumulates rotary encoder detents into a scroll position
// using the Linux GPIO character device. Clockwise rotation scrolls down
// (position increases); counter-clockwise scrolls up. The position is
// clamped to the configured content range.
type RotaryReader struct {
	chip   *gpiocdev.Chip
	clk    *gpiocdev.Line
	dt     *gpiocdev.Line
	geom   Geometry
	notify func()

	mu       sync.Mutex
	position float64
}

// NewRotaryReader creates a reader for a quadrature encoder on the given
// BCM pins. notify is invoked after every detent so the caller can schedule
// an update; it must not be nil.
func NewRotaryReader(pinClk, pinDt int, geom Geometry, notify func()) (*RotaryReader, error) {
	if notify == nil {
		return nil, errors.New("source: rotary reader requires a notify func")
	}
	if err := geom.validate(); err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RotaryReader{chip: chip, geom: geom, notify: notify}

	// The DT line is sampled inside the CLK edge handler to decide
	// rotation direction, so it is requested as a plain input first.
	dtLine, err := chip.RequestLine(pinDt, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request DT pin %d: %w", pinDt, err)
	}
	r.dt = dtLine

	clkLine, err := chip.RequestLine(pinClk,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(r.onClkEdge))
	if err != nil {
		dtLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request CLK pin %d: %w", pinClk, err)
	}
	r.clk = clkLine

	return r, nil
}

// onClkEdge fires on each detent. DT level at the CLK falling edge encodes
// the rotation direction.
func (r *RotaryReader) onClkEdge(evt gpiocdev.LineEvent) {
	dtVal, err := r.dt.Value()
	if err != nil {
		return
	}

	step := r.geom.StepSize
	if dtVal == 0 {
		step = -step
	}

	r.mu.Lock()
	r.position += step
	max := r.geom.ContentHeight - r.geom.ViewportHeight
	if r.position < 0 {
		r.position = 0
	} else if r.position > max {
		r.position = max
	}
	r.mu.Unlock()

	r.notify()
}

// Read returns the accumulated scroll position with the fixed geometry.
func (r *RotaryReader) Read() (Sample, error) {
	r.mu.Lock()
	pos := r.position
	r.mu.Unlock()

	return Sample{
		Position:       pos,
		ViewportHeight: r.geom.ViewportHeight,
		ContentHeight:  r.geom.ContentHeight,
	}, nil
}

// Close releases GPIO resources.
func (r *RotaryReader) Close() error {
	var errs []error
	if r.clk != nil {
		if err := r.clk.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close CLK pin: %w", err))
		}
	}
	if r.dt != nil {
		if err := r.dt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close DT pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
