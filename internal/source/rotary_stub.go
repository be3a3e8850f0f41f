//go:build !linux

package source

import "errors"

// RotaryReader is not available on non-Linux platforms.
type RotaryReader struct{}

// NewRotaryReader returns an error on non-Linux platforms.
func NewRotaryReader(pinClk, pinDt int, geom Geometry, notify func()) (*RotaryReader, error) {
	return nil, errors.New("source: rotary encoder not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RotaryReader) Read() (Sample, error) {
	return Sample{}, errors.New("source: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RotaryReader) Close() error {
	return nil
}
