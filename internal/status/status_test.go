package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sweeney/sensor-hub/internal/logic"
)

func f(v float64) *float64 { return &v }

func newTracker() *Tracker {
	return NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{}, logic.Actuators)
}

func decide(t, h *float64) map[logic.ActuatorID]logic.Power {
	return logic.Decide(t, h, logic.DefaultThresholds)
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollMs: 5000, DebounceMs: 300, HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg, logic.Actuators)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 5000 {
		t.Errorf("Config.PollMs: got %d, want 5000", snap.Config.PollMs)
	}
	if snap.Mode != logic.ModeAuto {
		t.Errorf("Mode: got %s, want AUTO", snap.Mode)
	}
	if snap.Initialized {
		t.Error("expected Initialized=false initially")
	}
	if !logic.IsOutOfRange(snap.Distance) {
		t.Errorf("Distance: got %v, want OutOfRange sentinel", snap.Distance)
	}
	if snap.Temperature != nil || snap.Humidity != nil {
		t.Error("expected no environment values initially")
	}
	want := map[logic.ActuatorID]logic.Power{
		logic.Aircon:       logic.PowerOff,
		logic.Heater:       logic.PowerOff,
		logic.Dehumidifier: logic.PowerOff,
	}
	if diff := cmp.Diff(want, snap.Actuators); diff != "" {
		t.Errorf("Actuators mismatch (-want +got):\n%s", diff)
	}
}

func TestSetEnvironmentIndependentFields(t *testing.T) {
	tr := newTracker()

	tr.SetEnvironment(nil, nil)
	if tr.Snapshot().Initialized {
		t.Error("no fields must not initialize")
	}

	tr.SetEnvironment(f(23.4), nil)
	snap := tr.Snapshot()
	if !snap.Initialized {
		t.Error("expected Initialized=true after a temperature")
	}
	if snap.Temperature == nil || *snap.Temperature != 23.4 {
		t.Errorf("Temperature: got %v, want 23.4", snap.Temperature)
	}
	if snap.Humidity != nil {
		t.Errorf("Humidity: got %v, want nil", *snap.Humidity)
	}

	tr.SetEnvironment(nil, f(55))
	snap = tr.Snapshot()
	if snap.Temperature == nil || *snap.Temperature != 23.4 {
		t.Error("temperature should be kept when only humidity is updated")
	}
	if snap.Humidity == nil || *snap.Humidity != 55 {
		t.Errorf("Humidity: got %v, want 55", snap.Humidity)
	}
}

func TestSetDistanceReturnsPreviousAlert(t *testing.T) {
	tr := newTracker()

	if was := tr.SetDistance(8, true); was {
		t.Error("expected previous alert false")
	}
	if was := tr.SetDistance(logic.OutOfRange, false); !was {
		t.Error("expected previous alert true")
	}
	snap := tr.Snapshot()
	if snap.ProximityAlert || !logic.IsOutOfRange(snap.Distance) {
		t.Errorf("got distance=%v alert=%v", snap.Distance, snap.ProximityAlert)
	}
}

func TestModeChanges(t *testing.T) {
	tr := newTracker()

	if got := tr.ToggleMode(); got != logic.ModeManual {
		t.Errorf("ToggleMode: got %s, want MANUAL", got)
	}
	if changed := tr.SetMode(logic.ModeManual); changed {
		t.Error("SetMode to same mode should report no change")
	}
	if changed := tr.SetMode(logic.ModeAuto); !changed {
		t.Error("SetMode to new mode should report change")
	}
	if tr.Mode() != logic.ModeAuto {
		t.Errorf("Mode: got %s, want AUTO", tr.Mode())
	}
}

func TestReconcileBeforeInitialized(t *testing.T) {
	tr := newTracker()
	called := false

	changes := tr.Reconcile(func(t, h *float64) map[logic.ActuatorID]logic.Power {
		called = true
		return decide(f(35), f(90))
	})
	if len(changes) != 0 {
		t.Errorf("expected no changes before initialization, got %v", changes)
	}
	if called {
		t.Error("policy must not be evaluated before initialization")
	}
}

func TestReconcileInManualIsNoop(t *testing.T) {
	tr := newTracker()
	tr.SetEnvironment(f(35), f(90))
	tr.SetMode(logic.ModeManual)

	if changes := tr.Reconcile(decide); len(changes) != 0 {
		t.Errorf("expected no changes in MANUAL, got %v", changes)
	}
}

func TestReconcileAppliesAndIsIdempotent(t *testing.T) {
	tr := newTracker()
	tr.SetEnvironment(f(29), f(65))

	changes := tr.Reconcile(decide)
	want := []logic.Change{
		{Actuator: logic.Aircon, Power: logic.PowerOn},
		{Actuator: logic.Dehumidifier, Power: logic.PowerOn},
	}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	snap := tr.Snapshot()
	if snap.Actuators[logic.Aircon] != logic.PowerOn || snap.Actuators[logic.Heater] != logic.PowerOff {
		t.Errorf("actuators: got %v", snap.Actuators)
	}

	if again := tr.Reconcile(decide); len(again) != 0 {
		t.Errorf("second reconcile: expected no changes, got %v", again)
	}
}

func TestSetManual(t *testing.T) {
	tr := newTracker()

	if _, err := tr.SetManual(logic.Heater, logic.PowerOn); !errors.Is(err, ErrNotManual) {
		t.Fatalf("AUTO mode: got %v, want ErrNotManual", err)
	}
	if tr.Snapshot().Actuators[logic.Heater] != logic.PowerOff {
		t.Error("rejected request changed state")
	}

	tr.SetMode(logic.ModeManual)
	changed, err := tr.SetManual(logic.Heater, logic.PowerOn)
	if err != nil {
		t.Fatalf("MANUAL mode: unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected changed=true")
	}
	if tr.Snapshot().Actuators[logic.Heater] != logic.PowerOn {
		t.Error("heater should be ON")
	}

	changed, _ = tr.SetManual(logic.Heater, logic.PowerOn)
	if changed {
		t.Error("repeat request should report no change")
	}

	if _, err := tr.SetManual(logic.ActuatorID("fan"), logic.PowerOn); !errors.Is(err, ErrUnknownActuator) {
		t.Errorf("unknown actuator: got %v, want ErrUnknownActuator", err)
	}
	if _, ok := tr.Snapshot().Actuators["fan"]; ok {
		t.Error("unknown actuator must not be added")
	}
}

func TestSetActuatorIgnoresMode(t *testing.T) {
	tr := newTracker()

	changed, err := tr.SetActuator(logic.Aircon, logic.PowerOn)
	if err != nil || !changed {
		t.Fatalf("got (%v, %v), want (true, nil)", changed, err)
	}
	if _, err := tr.SetActuator("fan", logic.PowerOn); !errors.Is(err, ErrUnknownActuator) {
		t.Errorf("got %v, want ErrUnknownActuator", err)
	}
	if n := len(tr.Snapshot().Actuators); n != 3 {
		t.Errorf("actuator count: got %d, want 3", n)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := newTracker()
	tr.SetEnvironment(f(20), f(40))

	snap1 := tr.Snapshot()
	snap1.Actuators[logic.Aircon] = logic.PowerOn
	*snap1.Temperature = 99

	snap2 := tr.Snapshot()
	if snap2.Actuators[logic.Aircon] != logic.PowerOff {
		t.Error("mutating a snapshot's actuator map leaked into the tracker")
	}
	if *snap2.Temperature != 20 {
		t.Error("mutating a snapshot's temperature leaked into the tracker")
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := newTracker()

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := newTracker()
	tr.SetEnvironment(f(20), f(40))
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(4)
		go func(i int) {
			defer wg.Done()
			tr.SetDistance(float64(i), i%2 == 0)
		}(i)
		go func(i int) {
			defer wg.Done()
			tr.SetEnvironment(f(float64(i%40)), f(float64(i)))
			tr.Reconcile(decide)
		}(i)
		go func() {
			defer wg.Done()
			tr.ToggleMode()
			tr.SetManual(logic.Heater, logic.PowerOn)
		}()
		go func() {
			defer wg.Done()
			snap := tr.Snapshot()
			if len(snap.Actuators) != 3 {
				t.Errorf("torn actuator map: %v", snap.Actuators)
			}
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Temperature:    f(23.4),
		Distance:       logic.OutOfRange,
		Mode:           logic.ModeManual,
		Actuators:      map[logic.ActuatorID]logic.Power{logic.Heater: logic.PowerOn},
		Initialized:    true,
		ProximityAlert: false,
		StartTime:      start,
		Now:            start.Add(90 * time.Second),
		MQTTConnected:  true,
		Config:         Config{PollMs: 5000, Broker: "tcp://localhost:1883", Thresholds: logic.DefaultThresholds},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Sensors.Temperature == nil || *parsed.Sensors.Temperature != 23.4 {
		t.Errorf("temperature: got %v", parsed.Sensors.Temperature)
	}
	if parsed.Sensors.Humidity != nil {
		t.Error("humidity should be null")
	}
	if parsed.Sensors.Distance != nil {
		t.Error("out-of-range distance should be null")
	}
	if parsed.Status.Mode != "MANUAL" {
		t.Errorf("mode: got %q", parsed.Status.Mode)
	}
	if parsed.Status.Devices["heater"] != "ON" {
		t.Errorf("devices: got %v", parsed.Status.Devices)
	}
	if !parsed.DataInitialized {
		t.Error("expected data_initialized=true")
	}
	if parsed.UptimeSeconds != 90 {
		t.Errorf("uptime_seconds: got %d, want 90", parsed.UptimeSeconds)
	}
	if parsed.Config.AirconOnAt != 28 {
		t.Errorf("config.aircon_on_at: got %v", parsed.Config.AirconOnAt)
	}
	if parsed.Event != "" {
		t.Errorf("web JSON should have no event, got %q", parsed.Event)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{Distance: 12.5, Mode: logic.ModeAuto}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Event != "SHUTDOWN" || parsed.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", parsed.Event, parsed.Reason)
	}
	if parsed.Sensors.Distance == nil || *parsed.Sensors.Distance != 12.5 {
		t.Errorf("distance: got %v, want 12.5", parsed.Sensors.Distance)
	}
}
