package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Pin           string       `json:"pin"`
	Top           string       `json:"top"`
	Bottom        string       `json:"bottom"`
	Frozen        bool         `json:"frozen"`
	Position      float64      `json:"position"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Pinned    int `json:"pinned"`
	Unpinned  int `json:"unpinned"`
	Top       int `json:"top"`
	NotTop    int `json:"not_top"`
	Bottom    int `json:"bottom"`
	NotBottom int `json:"not_bottom"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SettleMs      int64   `json:"settle_ms"`
	HeartbeatMs   int64   `json:"heartbeat_ms"`
	Offset        float64 `json:"offset"`
	ToleranceDown float64 `json:"tolerance_down"`
	ToleranceUp   float64 `json:"tolerance_up"`
	Source        string  `json:"source"`
	Broker        string  `json:"broker"`
	HTTPAddr      string  `json:"http_addr"`
	WSBroker      string  `json:"ws_broker,omitempty"`
	EventLogPath  string  `json:"event_log_path,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	pin := string(snap.Pin)
	if pin == "" {
		pin = "UNKNOWN"
	}
	top := string(snap.Top)
	if top == "" {
		top = "UNKNOWN"
	}
	bottom := string(snap.Bottom)
	if bottom == "" {
		bottom = "UNKNOWN"
	}

	return StatusInner{
		Pin:           pin,
		Top:           top,
		Bottom:        bottom,
		Frozen:        snap.Frozen,
		Position:      snap.Position,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pinned:    snap.Counts.Pinned,
			Unpinned:  snap.Counts.Unpinned,
			Top:       snap.Counts.Top,
			NotTop:    snap.Counts.NotTop,
			Bottom:    snap.Counts.Bottom,
			NotBottom: snap.Counts.NotBottom,
		},
		Config: ConfigJSON{
			SettleMs:      snap.Config.SettleMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Offset:        snap.Config.Offset,
			ToleranceDown: snap.Config.ToleranceDown,
			ToleranceUp:   snap.Config.ToleranceUp,
			Source:        snap.Config.Source,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			WSBroker:      snap.Config.WSBroker,
			EventLogPath:  snap.Config.EventLogPath,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
