// Package status provides a thread-safe status tracker for the scroll-sensor
// daemon. It is designed to be read by HTTP handlers and the MQTT system
// event formatter.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/scroll-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SettleMs      int64
	HeartbeatMs   int64
	Offset        float64
	ToleranceDown float64
	ToleranceUp   float64
	Source        string
	Broker        string
	HTTPAddr      string
	WSBroker      string // Websocket broker URL for browser MQTT (empty = disabled)
	EventLogPath  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Pin           logic.PinState
	Top           logic.TopState
	Bottom        logic.BottomState
	Frozen        bool
	Position      float64
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets axis states, the frozen flag, the current position and the
// transition counts. Called from the update loop on every tick.
func (t *Tracker) Update(pin logic.PinState, top logic.TopState, bottom logic.BottomState, frozen bool, position float64, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Pin = pin
	t.snap.Top = top
	t.snap.Bottom = bottom
	t.snap.Frozen = frozen
	t.snap.Position = position
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
