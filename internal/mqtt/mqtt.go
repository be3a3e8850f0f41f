// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/scroll-sensor/internal/logic"
)

// Topic is the MQTT topic for scroll state transition events.
const Topic = "display/scroll/state/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "display/scroll/state/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a scroll transition event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Scroll ScrollPayload `json:"scroll"`
}

// ScrollPayload contains the transition event details. The frontend keys on
// the event field and uses the axis snapshot to resync after missed messages.
type ScrollPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Pin       string  `json:"pin"`
	Top       string  `json:"top"`
	Bottom    string  `json:"bottom"`
	Position  float64 `json:"position"`
}

// FormatPayload creates the JSON payload for a scroll transition event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Scroll: ScrollPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Pin:       string(event.Pin),
			Top:       string(event.Top),
			Bottom:    string(event.Bottom),
			Position:  event.Position,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
