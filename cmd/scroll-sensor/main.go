// Command scroll-sensor samples kiosk scroll position and publishes pin,
// top and bottom transitions to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/scroll-sensor/internal/config"
	"github.com/sweeney/scroll-sensor/internal/debounce"
	"github.com/sweeney/scroll-sensor/internal/eventlog"
	"github.com/sweeney/scroll-sensor/internal/logic"
	"github.com/sweeney/scroll-sensor/internal/mqtt"
	"github.com/sweeney/scroll-sensor/internal/source"
	"github.com/sweeney/scroll-sensor/internal/status"
	"github.com/sweeney/scroll-sensor/internal/web"
)

func main() {
	configPath := flag.String("config", "", "Path to scroll-sensor.toml (optional)")
	offset := flag.Float64("offset", 0, "Pin offset from the top in scroll units")
	tolDown := flag.Float64("tolerance-down", 0, "Downward hysteresis threshold")
	tolUp := flag.Float64("tolerance-up", 0, "Upward hysteresis threshold")
	settle := flag.Duration("settle", 100*time.Millisecond, "Settle window between classifications")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	sourceKind := flag.String("source", "", `Scroll reading source ("udp" or "rotary")`)
	listen := flag.String("listen", "", "UDP listen address for the udp source")
	httpAddr := flag.String("http", "", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	eventLogPath := flag.String("eventlog", "", "SQLite transition log path (empty to disable)")
	printState := flag.Bool("print-state", false, "Print current reading and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Flags that were set explicitly win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "offset":
			cfg.Machine.Offset = *offset
		case "tolerance-down":
			cfg.Machine.ToleranceDown = *tolDown
		case "tolerance-up":
			cfg.Machine.ToleranceUp = *tolUp
		case "settle":
			cfg.Daemon.SettleDuration = *settle
		case "heartbeat":
			cfg.Daemon.HeartbeatDuration = *heartbeat
		case "broker":
			cfg.MQTT.Broker = *broker
		case "source":
			cfg.Source.Kind = *sourceKind
		case "listen":
			cfg.Source.Listen = *listen
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "ws-broker":
			cfg.MQTT.WSBroker = *wsBroker
		case "eventlog":
			cfg.EventLog.Path = *eventLogPath
		}
	})

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	// The limiter owns the settle window; source readers only signal that a
	// fresh sample exists.
	tickc := make(chan struct{}, 1)
	limiter, err := debounce.New(cfg.Daemon.SettleDuration, func() {
		select {
		case tickc <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("init limiter: %w", err)
	}
	defer limiter.Stop()

	reader, err := newReader(cfg.Source, limiter.Notify)
	if err != nil {
		return fmt.Errorf("init source: %w", err)
	}
	defer reader.Close()

	// Print state mode
	if printState {
		s, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		fmt.Printf("position=%g viewport=%g content=%g\n", s.Position, s.ViewportHeight, s.ContentHeight)
		return nil
	}

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(cfg.MQTT.Broker)
	defer publisher.Close()

	ws := resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		SettleMs:      cfg.Daemon.SettleDuration.Milliseconds(),
		HeartbeatMs:   cfg.Daemon.HeartbeatDuration.Milliseconds(),
		Offset:        cfg.Machine.Offset,
		ToleranceDown: cfg.Machine.ToleranceDown,
		ToleranceUp:   cfg.Machine.ToleranceUp,
		Source:        cfg.Source.Kind,
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		WSBroker:      ws,
		EventLogPath:  cfg.EventLog.Path,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Open transition log
	var translog *eventlog.Store
	if cfg.EventLog.Path != "" {
		translog, err = eventlog.Open(cfg.EventLog.Path)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer translog.Close()
		log.Printf("recording transitions to %s", cfg.EventLog.Path)
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, translog)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: source=%s settle=%v broker=%s heartbeat=%v offset=%v tolerance=%v/%v",
		cfg.Source.Kind, cfg.Daemon.SettleDuration, cfg.MQTT.Broker, cfg.Daemon.HeartbeatDuration,
		cfg.Machine.Offset, cfg.Machine.ToleranceDown, cfg.Machine.ToleranceUp)

	limiter.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	machine, err := logic.NewMachine(logic.Config{
		Offset: cfg.Machine.Offset,
		Tolerance: logic.Tolerance{
			Down: cfg.Machine.ToleranceDown,
			Up:   cfg.Machine.ToleranceUp,
		},
	}, time.Now())
	if err != nil {
		return fmt.Errorf("init machine: %w", err)
	}

	// The limiter only ticks on scroll activity, so heartbeats and the status
	// page need their own clock to stay live while the kiosk sits idle.
	maint := time.NewTicker(maintInterval)
	defer maint.Stop()

	return runLoop(machine, reader, publisher, publisher, tracker, translog, cfg.Daemon.HeartbeatDuration, time.Now, tickc, maint.C, sigCh)
}

func newReader(cfg config.SourceConfig, notify func()) (source.Reader, error) {
	switch cfg.Kind {
	case "udp":
		return source.NewUDPReader(cfg.Listen, notify)
	case "rotary":
		geom := source.Geometry{
			StepSize:       cfg.StepSize,
			ViewportHeight: cfg.ViewportHeight,
			ContentHeight:  cfg.ContentHeight,
		}
		return source.NewRotaryReader(cfg.PinClk, cfg.PinDt, geom, notify)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// maintInterval drives heartbeat checks and status refreshes between scroll
// notifications.
const maintInterval = 30 * time.Second

func runLoop(machine *logic.Machine, reader source.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, translog *eventlog.Store, heartbeat time.Duration, now func() time.Time, tick <-chan struct{}, maint <-chan time.Time, sig <-chan os.Signal) error {
	updateTracker := func() {
		if tracker == nil {
			return
		}
		pin, top, bottom := machine.CurrentState()
		tracker.Update(pin, top, bottom, machine.Frozen(), machine.LastKnownPosition(), machine.EventCountsSnapshot())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	checkHeartbeat := func(t time.Time) {
		hbData := machine.CheckHeartbeat(t, heartbeat)
		if hbData == nil {
			return
		}
		log.Printf("heartbeat: uptime=%v pinned=%d unpinned=%d top=%d not_top=%d bottom=%d not_bottom=%d",
			hbData.Uptime, hbData.Counts.Pinned, hbData.Counts.Unpinned,
			hbData.Counts.Top, hbData.Counts.NotTop, hbData.Counts.Bottom, hbData.Counts.NotBottom)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			updateTracker()
			hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}

	publishSystem := func(event, reason string, retained bool) {
		se := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     event,
			Reason:    reason,
			Retained:  retained,
		}
		if tracker != nil {
			updateTracker()
			se.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), event, reason)
		}
		if err := publisher.PublishSystem(se); err != nil {
			log.Printf("failed to publish %s event: %v", event, err)
		} else {
			log.Printf("published %s event", event)
		}
	}

	for {
		select {
		case s := <-sig:
			switch s {
			case syscall.SIGUSR1:
				log.Printf("received %v, freezing transitions", s)
				machine.Freeze()
				publishSystem("FREEZE", "SIGUSR1", false)
				continue
			case syscall.SIGUSR2:
				log.Printf("received %v, unfreezing transitions", s)
				machine.Unfreeze()
				publishSystem("UNFREEZE", "SIGUSR2", false)
				continue
			}

			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			publishSystem("SHUTDOWN", signalName, true)
			return nil

		case <-tick:
			t := now()
			s, err := reader.Read()
			if err != nil {
				if err != source.ErrNoReading {
					log.Printf("source read error: %v", err)
				}
				continue
			}

			events := machine.Update(logic.Reading{
				Position:       s.Position,
				ViewportHeight: s.ViewportHeight,
				ContentHeight:  s.ContentHeight,
				Time:           t,
			})

			for _, event := range events {
				log.Printf("event: %s (pin=%s top=%s bottom=%s pos=%g)", event.Type, event.Pin, event.Top, event.Bottom, event.Position)
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
				if translog != nil {
					if err := translog.Record(event); err != nil {
						log.Printf("event log error: %v", err)
					}
				}
			}

			checkHeartbeat(t)

			// Update status tracker for HTTP consumers
			updateTracker()

		case t := <-maint:
			// Keeps the heartbeat beating and the status page current while
			// the source is quiet.
			checkHeartbeat(t)
			updateTracker()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
