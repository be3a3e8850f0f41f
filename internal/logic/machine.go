package logic

import (
	"fmt"
	"math"
	"time"
)

// Machine classifies a stream of scroll readings into discrete pin, top and
// bottom transitions with per-direction hysteresis.
//
// Machine is not safe for concurrent use. The caller must serialize Update
// calls; ticks must arrive in non-decreasing time order, since each update
// compares against the position of the immediately preceding tick.
type Machine struct {
	offset    float64
	tolerance Tolerance
	cbs       Callbacks

	pin    PinState
	top    TopState
	bottom BottomState
	frozen bool

	lastKnown   float64
	eventCounts EventCounts

	startTime     time.Time
	lastHeartbeat time.Time
}

// NewMachine creates a classification machine with the given configuration.
// The startTime is used for calculating uptime in heartbeat events.
// Negative offsets or tolerances are rejected, not clamped.
func NewMachine(cfg Config, startTime time.Time) (*Machine, error) {
	if cfg.Offset < 0 {
		return nil, fmt.Errorf("logic: negative offset %v", cfg.Offset)
	}
	if cfg.Tolerance.Down < 0 || cfg.Tolerance.Up < 0 {
		return nil, fmt.Errorf("logic: negative tolerance %+v", cfg.Tolerance)
	}

	top := cfg.InitialTop
	if top == "" {
		top = StateTop
	}
	bottom := cfg.InitialBottom
	if bottom == "" {
		bottom = StateNotBottom
	}

	return &Machine{
		offset:        cfg.Offset,
		tolerance:     cfg.Tolerance,
		cbs:           cfg.Callbacks,
		pin:           cfg.InitialPin, // zero value = not yet classified
		top:           top,
		bottom:        bottom,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}, nil
}

// Update takes a new scroll reading and returns any transition events that
// should be published. Registered callbacks fire synchronously, in the order
// top/notTop, bottom/notBottom, pin/unpin.
//
// Out-of-bounds readings (negative position, or viewport extending past the
// content) are absorbed without touching any state, including the last known
// position; this swallows rubber-band overscroll artifacts.
//
// Non-finite positions are not rejected: every comparison against NaN is
// false, so such a tick classifies as upward with the tolerance unmet and
// cannot move the pin axis. This mirrors the comparison semantics of the
// update rules rather than correcting the input.
func (m *Machine) Update(r Reading) []Event {
	direction := DirectionUp
	if r.Position > m.lastKnown {
		direction = DirectionDown
	}
	toleranceExceeded := math.Abs(r.Position-m.lastKnown) >= m.tolerance.For(direction)

	if r.Position < 0 || r.Position+r.ViewportHeight > r.ContentHeight {
		return nil
	}

	if m.frozen {
		m.lastKnown = r.Position
		return nil
	}

	var events []Event

	if r.Position <= m.offset {
		m.toTop(r, &events)
	} else {
		m.toNotTop(r, &events)
	}

	if r.Position+r.ViewportHeight >= r.ContentHeight {
		m.toBottom(r, &events)
	} else {
		m.toNotBottom(r, &events)
	}

	// Unpin is evaluated first and wins on a tie. An equal position
	// classifies as upward, so the two conditions cannot hold together.
	shouldUnpin := direction == DirectionDown && r.Position >= m.offset && toleranceExceeded
	if shouldUnpin {
		m.unpin(r, &events)
	} else if (direction == DirectionUp && toleranceExceeded) || r.Position <= m.offset {
		m.pinTo(r, &events)
	}

	m.lastKnown = r.Position
	return events
}

// toTop is a no-op if the machine is already in the top region.
func (m *Machine) toTop(r Reading, events *[]Event) {
	if m.top == StateTop {
		return
	}
	m.top = StateTop
	m.eventCounts.Top++
	m.emit(EventTop, r, events)
	if m.cbs.OnTop != nil {
		m.cbs.OnTop()
	}
}

func (m *Machine) toNotTop(r Reading, events *[]Event) {
	if m.top == StateNotTop {
		return
	}
	m.top = StateNotTop
	m.eventCounts.NotTop++
	m.emit(EventNotTop, r, events)
	if m.cbs.OnNotTop != nil {
		m.cbs.OnNotTop()
	}
}

func (m *Machine) toBottom(r Reading, events *[]Event) {
	if m.bottom == StateBottom {
		return
	}
	m.bottom = StateBottom
	m.eventCounts.Bottom++
	m.emit(EventBottom, r, events)
	if m.cbs.OnBottom != nil {
		m.cbs.OnBottom()
	}
}

func (m *Machine) toNotBottom(r Reading, events *[]Event) {
	if m.bottom == StateNotBottom {
		return
	}
	m.bottom = StateNotBottom
	m.eventCounts.NotBottom++
	m.emit(EventNotBottom, r, events)
	if m.cbs.OnNotBottom != nil {
		m.cbs.OnNotBottom()
	}
}

// pinTo only fires from the unpinned state; the unknown initial state must
// pass through an unpin first.
func (m *Machine) pinTo(r Reading, events *[]Event) {
	if m.pin != StateUnpinned {
		return
	}
	m.pin = StatePinned
	m.eventCounts.Pinned++
	m.emit(EventPinned, r, events)
	if m.cbs.OnPin != nil {
		m.cbs.OnPin()
	}
}

// unpin fires when pinned or when the pin axis has not been classified yet.
func (m *Machine) unpin(r Reading, events *[]Event) {
	if m.pin == StateUnpinned {
		return
	}
	m.pin = StateUnpinned
	m.eventCounts.Unpinned++
	m.emit(EventUnpinned, r, events)
	if m.cbs.OnUnpin != nil {
		m.cbs.OnUnpin()
	}
}

func (m *Machine) emit(t EventType, r Reading, events *[]Event) {
	*events = append(*events, Event{
		Timestamp: r.Time,
		Type:      t,
		Pin:       m.pin,
		Top:       m.top,
		Bottom:    m.bottom,
		Position:  r.Position,
	})
}

// Freeze suspends classification. Position tracking continues so that
// unfreezing does not produce a spurious jump. No callbacks fire.
func (m *Machine) Freeze() {
	m.frozen = true
}

// Unfreeze resumes classification. No callbacks fire.
func (m *Machine) Unfreeze() {
	m.frozen = false
}

// Frozen reports whether classification is suspended.
func (m *Machine) Frozen() bool {
	return m.frozen
}

// LastKnownPosition returns the position of the last accepted reading.
func (m *Machine) LastKnownPosition() float64 {
	return m.lastKnown
}

// CurrentState returns the current axis values. The pin state is empty until
// the first pin-axis transition.
func (m *Machine) CurrentState() (PinState, TopState, BottomState) {
	return m.pin, m.top, m.bottom
}

// EventCountsSnapshot returns a copy of the transition counts since startup.
func (m *Machine) EventCountsSnapshot() EventCounts {
	return m.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.eventCounts,
	}
}
