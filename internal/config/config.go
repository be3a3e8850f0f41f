// Package config loads the scroll-sensor daemon configuration from a TOML
// file. Flags in the cmd layer override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the scroll-sensor.toml configuration file.
type Config struct {
	Machine  MachineConfig  `toml:"machine"`
	Source   SourceConfig   `toml:"source"`
	Daemon   DaemonConfig   `toml:"daemon"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	HTTP     HTTPConfig     `toml:"http"`
	EventLog EventLogConfig `toml:"eventlog"`
}

// MachineConfig holds the classification parameters.
type MachineConfig struct {
	// Offset is the scroll distance from the top below which top-region
	// rules apply.
	Offset float64 `toml:"offset"`
	// ToleranceDown and ToleranceUp are the per-direction hysteresis
	// thresholds.
	ToleranceDown float64 `toml:"tolerance_down"`
	ToleranceUp   float64 `toml:"tolerance_up"`
}

// SourceConfig selects and parameterizes the scroll reading source.
type SourceConfig struct {
	// Kind is "udp" or "rotary".
	Kind string `toml:"kind"`

	// Listen is the UDP listen address for kind "udp".
	Listen string `toml:"listen"`

	// Rotary encoder pins (BCM numbering) and surface geometry for kind
	// "rotary".
	PinClk         int     `toml:"pin_clk"`
	PinDt          int     `toml:"pin_dt"`
	StepSize       float64 `toml:"step_size"`
	ViewportHeight float64 `toml:"viewport_height"`
	ContentHeight  float64 `toml:"content_height"`
}

// DaemonConfig holds loop timing.
type DaemonConfig struct {
	// Settle is the minimum interval between state machine updates
	// (e.g. "100ms").
	Settle string `toml:"settle"`
	// Heartbeat is the system heartbeat interval ("0" disables).
	Heartbeat string `toml:"heartbeat"`

	// Parsed forms, filled by Validate.
	SettleDuration    time.Duration `toml:"-"`
	HeartbeatDuration time.Duration `toml:"-"`
}

// MQTTConfig holds broker addresses.
type MQTTConfig struct {
	Broker string `toml:"broker"`
	// WSBroker is the MQTT websocket URL for the live status page
	// ("=broker" derives from Broker, "off" disables).
	WSBroker string `toml:"ws_broker"`
}

// HTTPConfig holds the status server address.
type HTTPConfig struct {
	// Addr is the HTTP listen address (empty disables the status server).
	Addr string `toml:"addr"`
}

// EventLogConfig holds the transition history store location.
type EventLogConfig struct {
	// Path is the SQLite database path (empty disables the history log).
	Path string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Machine: MachineConfig{
			Offset:        0,
			ToleranceDown: 0,
			ToleranceUp:   0,
		},
		Source: SourceConfig{
			Kind:           "udp",
			Listen:         ":8023",
			PinClk:         17,
			PinDt:          27,
			StepSize:       40,
			ViewportHeight: 1080,
			ContentHeight:  4320,
		},
		Daemon: DaemonConfig{
			Settle:    "100ms",
			Heartbeat: "15m",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			WSBroker: "=broker",
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load reads the TOML file at path on top of the defaults and validates the
// result. An empty path returns validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and parses duration fields. Negative offsets and
// tolerances are rejected, not clamped.
func (c *Config) Validate() error {
	if c.Machine.Offset < 0 {
		return fmt.Errorf("config: negative offset %v", c.Machine.Offset)
	}
	if c.Machine.ToleranceDown < 0 || c.Machine.ToleranceUp < 0 {
		return fmt.Errorf("config: negative tolerance down=%v up=%v", c.Machine.ToleranceDown, c.Machine.ToleranceUp)
	}

	switch c.Source.Kind {
	case "udp":
		if c.Source.Listen == "" {
			return fmt.Errorf("config: udp source requires a listen address")
		}
	case "rotary":
		if c.Source.StepSize <= 0 {
			return fmt.Errorf("config: rotary step size must be positive")
		}
		if c.Source.ViewportHeight <= 0 || c.Source.ContentHeight < c.Source.ViewportHeight {
			return fmt.Errorf("config: invalid rotary geometry viewport=%v content=%v",
				c.Source.ViewportHeight, c.Source.ContentHeight)
		}
	default:
		return fmt.Errorf("config: unknown source kind %q", c.Source.Kind)
	}

	settle, err := time.ParseDuration(c.Daemon.Settle)
	if err != nil {
		return fmt.Errorf("config: invalid settle interval %q: %w", c.Daemon.Settle, err)
	}
	if settle <= 0 {
		return fmt.Errorf("config: settle interval must be positive, got %q", c.Daemon.Settle)
	}
	c.Daemon.SettleDuration = settle

	heartbeat := time.Duration(0)
	if c.Daemon.Heartbeat != "" && c.Daemon.Heartbeat != "0" {
		heartbeat, err = time.ParseDuration(c.Daemon.Heartbeat)
		if err != nil {
			return fmt.Errorf("config: invalid heartbeat interval %q: %w", c.Daemon.Heartbeat, err)
		}
	}
	c.Daemon.HeartbeatDuration = heartbeat

	return nil
}
