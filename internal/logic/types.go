// Package logic contains the pure scroll classification state machine.
// This package has NO external dependencies (no input sources, MQTT, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package logic

import "time"

// Direction classifies the movement between two consecutive readings.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// PinState is the show/hide state of the tracked element.
// The zero value means not yet classified; the first unpin is reachable
// from it, the first pin is not.
type PinState string

const (
	StatePinned   PinState = "PINNED"
	StateUnpinned PinState = "UNPINNED"
)

// TopState tracks whether the position is within the top region.
type TopState string

const (
	StateTop    TopState = "TOP"
	StateNotTop TopState = "NOT_TOP"
)

// BottomState tracks whether the viewport has reached the end of the content.
type BottomState string

const (
	StateBottom    BottomState = "BOTTOM"
	StateNotBottom BottomState = "NOT_BOTTOM"
)

// EventType represents a state transition event.
type EventType string

const (
	EventPinned    EventType = "PINNED"
	EventUnpinned  EventType = "UNPINNED"
	EventTop       EventType = "TOP"
	EventNotTop    EventType = "NOT_TOP"
	EventBottom    EventType = "BOTTOM"
	EventNotBottom EventType = "NOT_BOTTOM"
)

// Event represents a state transition to be published. Each event carries a
// snapshot of all three axes as they stand after the transition.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Pin       PinState
	Top       TopState
	Bottom    BottomState
	Position  float64
}

// Reading is a single scroll sample supplied per tick. Only Position is
// retained between ticks (as the machine's last known position).
type Reading struct {
	Position       float64
	ViewportHeight float64
	ContentHeight  float64
	Time           time.Time
}

// Tolerance is the minimum scroll delta, per direction, required before a
// movement is acted upon.
type Tolerance struct {
	Down float64
	Up   float64
}

// Uniform returns a Tolerance with both directions set to v.
func Uniform(v float64) Tolerance {
	return Tolerance{Down: v, Up: v}
}

// For returns the threshold for the given direction.
func (t Tolerance) For(d Direction) float64 {
	if d == DirectionDown {
		return t.Down
	}
	return t.Up
}

// Callbacks holds optional hooks fired synchronously inside Update when the
// corresponding transition occurs. Any field may be nil.
type Callbacks struct {
	OnPin       func()
	OnUnpin     func()
	OnTop       func()
	OnNotTop    func()
	OnBottom    func()
	OnNotBottom func()
}

// Config describes a Machine at construction time.
type Config struct {
	// Offset is the scroll distance from the top below which top-region
	// rules apply.
	Offset float64

	// Tolerance is the hysteresis threshold per direction.
	Tolerance Tolerance

	// Initial axis values. Zero values mean: pin axis unknown, top region,
	// not at bottom.
	InitialPin    PinState
	InitialTop    TopState
	InitialBottom BottomState

	Callbacks Callbacks
}

// EventCounts tracks the number of each transition since startup.
type EventCounts struct {
	Pinned    int
	Unpinned  int
	Top       int
	NotTop    int
	Bottom    int
	NotBottom int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
