package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/scroll-sensor/internal/eventlog"
	"github.com/sweeney/scroll-sensor/internal/logic"
	"github.com/sweeney/scroll-sensor/internal/mqtt"
	"github.com/sweeney/scroll-sensor/internal/source"
	"github.com/sweeney/scroll-sensor/internal/status"
)

func scrollSample(pos float64) source.Sample {
	return source.Sample{Position: pos, ViewportHeight: 500, ContentHeight: 2000}
}

func newIntegrationMachine(t *testing.T, startTime time.Time) *logic.Machine {
	t.Helper()
	m, err := logic.NewMachine(logic.Config{
		Offset:    40,
		Tolerance: logic.Uniform(10),
	}, startTime)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

// TestIntegrationFullFlow tests the complete flow from source to MQTT using fakes.
func TestIntegrationFullFlow(t *testing.T) {
	// Simulate: top -> scroll down -> hit bottom -> scroll up -> back to top
	samples := []source.Sample{
		scrollSample(0),    // t=0: at rest
		scrollSample(300),  // t=100ms: NOT_TOP + UNPINNED
		scrollSample(1500), // t=200ms: viewport reaches content end, BOTTOM
		scrollSample(1400), // t=300ms: NOT_BOTTOM + PINNED
		scrollSample(0),    // t=400ms: TOP
	}

	reader := source.NewFakeReader(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	machine := newIntegrationMachine(t, startTime)

	settle := 100 * time.Millisecond

	// Simulate the main loop
	for i := range samples {
		s, err := reader.Read()
		if err != nil {
			t.Fatalf("sample %d: source read error: %v", i, err)
		}

		now := startTime.Add(time.Duration(i) * settle)
		events := machine.Update(logic.Reading{
			Position:       s.Position,
			ViewportHeight: s.ViewportHeight,
			ContentHeight:  s.ContentHeight,
			Time:           now,
		})

		for _, event := range events {
			if err := publisher.Publish(event); err != nil {
				t.Fatalf("sample %d: publish error: %v", i, err)
			}
		}
	}

	wantTypes := []logic.EventType{
		logic.EventNotTop,
		logic.EventUnpinned,
		logic.EventBottom,
		logic.EventNotBottom,
		logic.EventPinned,
		logic.EventTop,
	}
	if len(publisher.Events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(publisher.Events))
	}
	for i, want := range wantTypes {
		if publisher.Events[i].Type != want {
			t.Errorf("event %d: expected %s, got %s", i, want, publisher.Events[i].Type)
		}
	}

	// The axis snapshot on each event reflects the state after the transition.
	if publisher.Events[1].Pin != logic.StateUnpinned || publisher.Events[1].Top != logic.StateNotTop {
		t.Errorf("UNPINNED event snapshot: pin=%s top=%s", publisher.Events[1].Pin, publisher.Events[1].Top)
	}
	if publisher.Events[2].Bottom != logic.StateBottom {
		t.Errorf("BOTTOM event snapshot: bottom=%s", publisher.Events[2].Bottom)
	}

	// Verify JSON payloads
	for i, payload := range publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Scroll.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Scroll.Event == "" {
			t.Errorf("payload %d: missing event", i)
		}
	}
}

// TestIntegrationSmallMovementsSuppressed verifies jitter below tolerance
// publishes nothing.
func TestIntegrationSmallMovementsSuppressed(t *testing.T) {
	samples := []source.Sample{
		scrollSample(300),
		scrollSample(305),
		scrollSample(298),
		scrollSample(303),
	}

	reader := source.NewFakeReader(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	machine := newIntegrationMachine(t, startTime)

	for i := range samples {
		s, _ := reader.Read()
		now := startTime.Add(time.Duration(i) * 100 * time.Millisecond)
		events := machine.Update(logic.Reading{
			Position:       s.Position,
			ViewportHeight: s.ViewportHeight,
			ContentHeight:  s.ContentHeight,
			Time:           now,
		})
		// The first sample leaves the top region; drop those two events and
		// assert the jitter that follows stays quiet.
		if i > 0 {
			for _, event := range events {
				publisher.Publish(event)
			}
		}
	}

	if len(publisher.Events) != 0 {
		t.Errorf("expected no events for jitter below tolerance, got %d", len(publisher.Events))
	}
}

// TestIntegrationPayloadFormat verifies the exact JSON structure.
func TestIntegrationPayloadFormat(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventUnpinned,
		Pin:       logic.StateUnpinned,
		Top:       logic.StateNotTop,
		Bottom:    logic.StateNotBottom,
		Position:  142.5,
	}

	publisher := mqtt.NewFakePublisher()
	publisher.Publish(event)

	expected := `{"scroll":{"timestamp":"2026-02-02T22:18:12Z","event":"UNPINNED","pin":"UNPINNED","top":"NOT_TOP","bottom":"NOT_BOTTOM","position":142.5}}`

	if string(publisher.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.Payloads[0]), expected)
	}
}

// TestIntegrationShutdownEventSIGTERM verifies shutdown event on SIGTERM.
func TestIntegrationShutdownEventSIGTERM(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	shutdownTime := time.Date(2026, 2, 3, 15, 30, 0, 0, time.UTC)
	event := mqtt.SystemEvent{
		Timestamp: shutdownTime,
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	err := publisher.PublishSystem(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(publisher.SystemEvents))
	}

	if publisher.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %s", publisher.SystemEvents[0].Event)
	}
	if publisher.SystemEvents[0].Reason != "SIGTERM" {
		t.Errorf("expected SIGTERM reason, got %s", publisher.SystemEvents[0].Reason)
	}

	// Verify JSON payload structure
	var parsed mqtt.SystemPayload
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("payload event: expected SHUTDOWN, got %s", parsed.System.Event)
	}
	if parsed.System.Reason != "SIGTERM" {
		t.Errorf("payload reason: expected SIGTERM, got %s", parsed.System.Reason)
	}
	if parsed.System.Timestamp != "2026-02-03T15:30:00Z" {
		t.Errorf("payload timestamp: expected 2026-02-03T15:30:00Z, got %s", parsed.System.Timestamp)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the exact JSON structure for shutdown events.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	publisher.PublishSystem(event)

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`

	if string(publisher.SystemPayloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.SystemPayloads[0]), expected)
	}
}

// TestIntegrationShutdownPublishFailureLogsButContinues verifies graceful handling of publish errors.
func TestIntegrationShutdownPublishFailureLogsButContinues(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	publisher.PublishSystemError = errors.New("broker disconnected")

	event := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	err := publisher.PublishSystem(event)

	// Should return error but not panic
	if err == nil {
		t.Error("expected error from publish")
	}

	// Should not have recorded the event
	if len(publisher.SystemEvents) != 0 {
		t.Errorf("expected no system events on error, got %d", len(publisher.SystemEvents))
	}
}

// TestIntegrationStartupEvent verifies the startup event carries the full
// status snapshot as its payload.
func TestIntegrationStartupEvent(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	startupTime := time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC)
	tracker := status.NewTracker(startupTime, status.Config{
		SettleMs:      100,
		HeartbeatMs:   900000,
		Offset:        40,
		ToleranceDown: 10,
		ToleranceUp:   5,
		Source:        "udp",
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":80",
	})

	event := mqtt.SystemEvent{
		Timestamp:  startupTime,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", ""),
	}

	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(publisher.SystemEvents))
	}
	if publisher.SystemEvents[0].Event != "STARTUP" {
		t.Errorf("expected STARTUP event, got %s", publisher.SystemEvents[0].Event)
	}

	// The raw payload passes through FormatSystemPayload untouched.
	var parsed status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("payload event: expected STARTUP, got %s", parsed.Status.Event)
	}
	if parsed.Status.Config.SettleMs != 100 {
		t.Errorf("payload settle_ms: expected 100, got %d", parsed.Status.Config.SettleMs)
	}
	if parsed.Status.Config.Offset != 40 {
		t.Errorf("payload offset: expected 40, got %v", parsed.Status.Config.Offset)
	}
	if parsed.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("payload broker: got %s", parsed.Status.Config.Broker)
	}
	// Axes are unknown before the first classification.
	if parsed.Status.Pin != "UNKNOWN" {
		t.Errorf("payload pin: expected UNKNOWN, got %s", parsed.Status.Pin)
	}
}

// TestIntegrationHeartbeatAfterTransitions verifies the heartbeat snapshot
// contains correct counts after transitions.
func TestIntegrationHeartbeatAfterTransitions(t *testing.T) {
	samples := []source.Sample{
		scrollSample(0),
		scrollSample(300),  // NOT_TOP + UNPINNED
		scrollSample(1500), // BOTTOM
	}

	reader := source.NewFakeReader(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	machine := newIntegrationMachine(t, startTime)
	tracker := status.NewTracker(startTime, status.Config{Broker: "tcp://192.168.1.200:1883"})

	for i := range samples {
		s, err := reader.Read()
		if err != nil {
			t.Fatalf("sample %d: source read error: %v", i, err)
		}
		now := startTime.Add(time.Duration(i) * 100 * time.Millisecond)
		events := machine.Update(logic.Reading{
			Position:       s.Position,
			ViewportHeight: s.ViewportHeight,
			ContentHeight:  s.ContentHeight,
			Time:           now,
		})
		for _, event := range events {
			if err := publisher.Publish(event); err != nil {
				t.Fatalf("sample %d: publish error: %v", i, err)
			}
		}
	}

	if len(publisher.Events) != 3 {
		t.Fatalf("expected 3 transition events, got %d", len(publisher.Events))
	}

	// Check heartbeat after 15 minutes
	heartbeatTime := startTime.Add(15 * time.Minute)
	hbData := machine.CheckHeartbeat(heartbeatTime, 15*time.Minute)
	if hbData == nil {
		t.Fatal("expected heartbeat data")
	}
	if hbData.Uptime != 15*time.Minute {
		t.Errorf("uptime: expected 15m, got %v", hbData.Uptime)
	}
	if hbData.Counts.Unpinned != 1 || hbData.Counts.NotTop != 1 || hbData.Counts.Bottom != 1 {
		t.Errorf("unexpected counts: %+v", hbData.Counts)
	}

	// Publish the heartbeat with the full status snapshot
	pin, top, bottom := machine.CurrentState()
	tracker.Update(pin, top, bottom, machine.Frozen(), machine.LastKnownPosition(), machine.EventCountsSnapshot())
	heartbeatEvent := mqtt.SystemEvent{
		Timestamp:  heartbeatTime,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
	}
	if err := publisher.PublishSystem(heartbeatEvent); err != nil {
		t.Fatalf("heartbeat publish error: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("payload event: expected HEARTBEAT, got %s", parsed.Status.Event)
	}
	if parsed.Status.Counts.Unpinned != 1 {
		t.Errorf("payload unpinned count: expected 1, got %d", parsed.Status.Counts.Unpinned)
	}
	if parsed.Status.Counts.Bottom != 1 {
		t.Errorf("payload bottom count: expected 1, got %d", parsed.Status.Counts.Bottom)
	}
	if parsed.Status.Pin != "UNPINNED" {
		t.Errorf("payload pin: expected UNPINNED, got %s", parsed.Status.Pin)
	}
	if parsed.Status.Position != 1500 {
		t.Errorf("payload position: expected 1500, got %v", parsed.Status.Position)
	}
}

// TestIntegrationTransitionLog verifies transitions flow into the SQLite log
// alongside MQTT.
func TestIntegrationTransitionLog(t *testing.T) {
	translog, err := eventlog.Open(":memory:")
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer translog.Close()

	samples := []source.Sample{
		scrollSample(0),
		scrollSample(300),
	}

	reader := source.NewFakeReader(samples)
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	machine := newIntegrationMachine(t, startTime)

	for i := range samples {
		s, _ := reader.Read()
		now := startTime.Add(time.Duration(i) * 100 * time.Millisecond)
		events := machine.Update(logic.Reading{
			Position:       s.Position,
			ViewportHeight: s.ViewportHeight,
			ContentHeight:  s.ContentHeight,
			Time:           now,
		})
		for _, event := range events {
			if err := publisher.Publish(event); err != nil {
				t.Fatalf("publish error: %v", err)
			}
			if err := translog.Record(event); err != nil {
				t.Fatalf("record error: %v", err)
			}
		}
	}

	entries, err := translog.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != len(publisher.Events) {
		t.Fatalf("log/publish mismatch: %d logged, %d published", len(entries), len(publisher.Events))
	}
	// Recent returns newest first; published events are oldest first.
	for i, entry := range entries {
		pub := publisher.Events[len(publisher.Events)-1-i]
		if entry.Type != pub.Type {
			t.Errorf("entry %d: logged %s, published %s", i, entry.Type, pub.Type)
		}
		if entry.Position != pub.Position {
			t.Errorf("entry %d: logged position %v, published %v", i, entry.Position, pub.Position)
		}
		if entry.ID == "" {
			t.Errorf("entry %d: missing id", i)
		}
	}
}

// TestIntegrationFreezeSuppressesPublishing verifies no payloads are produced
// while the machine is frozen, and publishing resumes after unfreeze.
func TestIntegrationFreezeSuppressesPublishing(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	machine := newIntegrationMachine(t, startTime)

	process := func(pos float64, at time.Duration) {
		events := machine.Update(logic.Reading{
			Position:       pos,
			ViewportHeight: 500,
			ContentHeight:  2000,
			Time:           startTime.Add(at),
		})
		for _, event := range events {
			publisher.Publish(event)
		}
	}

	process(0, 0)
	machine.Freeze()
	process(300, 100*time.Millisecond)
	process(600, 200*time.Millisecond)
	if len(publisher.Events) != 0 {
		t.Fatalf("expected no events while frozen, got %d", len(publisher.Events))
	}

	machine.Unfreeze()
	process(900, 300*time.Millisecond)
	if len(publisher.Events) != 2 {
		t.Fatalf("expected NOT_TOP and UNPINNED after unfreeze, got %d", len(publisher.Events))
	}
	if publisher.Events[0].Type != logic.EventNotTop || publisher.Events[1].Type != logic.EventUnpinned {
		t.Errorf("unexpected events: %s, %s", publisher.Events[0].Type, publisher.Events[1].Type)
	}
}
