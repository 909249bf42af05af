// Package status provides the thread-safe shared state of the sensor hub.
// Sampling loops and the controller write it; HTTP handlers, the websocket
// feed and MQTT lifecycle events read point-in-time snapshots of it.
package status

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/sensor-hub/internal/logic"
)

var (
	// ErrNotManual rejects manual actuator requests outside MANUAL mode.
	ErrNotManual = errors.New("only available in Manual mode")

	// ErrUnknownActuator rejects actuators not configured at startup.
	ErrUnknownActuator = errors.New("unknown actuator")
)

// Config contains hub configuration for display.
type Config struct {
	PollMs           int64
	DistancePollMs   int64
	DebounceMs       int64
	HeartbeatMs      int64
	AlertThresholdCm float64
	Thresholds       logic.Thresholds
	Broker           string
	HTTPAddr         string
}

// Snapshot is a point-in-time view of hub state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Temperature    *float64
	Humidity       *float64
	Distance       float64 // logic.OutOfRange when there is no valid measurement
	ProximityAlert bool
	TouchActive    bool
	Mode           logic.Mode
	Actuators      map[logic.ActuatorID]logic.Power
	Initialized    bool

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the hub started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds the mutable hub state behind an RWMutex. Every multi-field
// update happens under a single lock acquisition.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker in AUTO mode with every actuator OFF. The
// actuator set is fixed here and never changes.
func NewTracker(startTime time.Time, cfg Config, actuators []logic.ActuatorID) *Tracker {
	acts := make(map[logic.ActuatorID]logic.Power, len(actuators))
	for _, id := range actuators {
		acts[id] = logic.PowerOff
	}
	return &Tracker{
		snap: Snapshot{
			Distance:  logic.OutOfRange,
			Mode:      logic.ModeAuto,
			Actuators: acts,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetDistance publishes the latest distance and alert flag together.
// It returns the previous alert flag.
func (t *Tracker) SetDistance(distance float64, alert bool) (wasAlert bool) {
	t.mu.Lock()
	wasAlert = t.snap.ProximityAlert
	t.snap.Distance = distance
	t.snap.ProximityAlert = alert
	t.mu.Unlock()
	return wasAlert
}

// SetEnvironment publishes any validated fields. Nil fields keep their
// previous value. Any non-nil field marks the state initialized.
func (t *Tracker) SetEnvironment(temperature, humidity *float64) {
	if temperature == nil && humidity == nil {
		return
	}
	t.mu.Lock()
	if temperature != nil {
		v := *temperature
		t.snap.Temperature = &v
	}
	if humidity != nil {
		v := *humidity
		t.snap.Humidity = &v
	}
	t.snap.Initialized = true
	t.mu.Unlock()
}

// SetTouch records the logical touch state.
func (t *Tracker) SetTouch(active bool) {
	t.mu.Lock()
	t.snap.TouchActive = active
	t.mu.Unlock()
}

// SetMode sets the operating mode and reports whether it changed.
func (t *Tracker) SetMode(m logic.Mode) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Mode == m {
		return false
	}
	t.snap.Mode = m
	return true
}

// ToggleMode flips AUTO/MANUAL and returns the new mode.
func (t *Tracker) ToggleMode() logic.Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Mode = t.snap.Mode.Toggle()
	return t.snap.Mode
}

// Mode returns the current operating mode.
func (t *Tracker) Mode() logic.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Mode
}

// Reconcile evaluates decide against the current state and records the
// resulting actuator changes, all under one write lock. decide is skipped
// (no changes) unless the hub is in AUTO mode and initialized. The caller
// drives the hardware for the returned changes.
func (t *Tracker) Reconcile(decide func(temperature, humidity *float64) map[logic.ActuatorID]logic.Power) []logic.Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Mode != logic.ModeAuto || !t.snap.Initialized {
		return nil
	}
	changes := logic.Diff(t.snap.Actuators, decide(t.snap.Temperature, t.snap.Humidity))
	for _, c := range changes {
		t.snap.Actuators[c.Actuator] = c.Power
	}
	return changes
}

// SetManual records a manual actuator request. It fails without side
// effects unless the hub is in MANUAL mode and the actuator is configured.
func (t *Tracker) SetManual(id logic.ActuatorID, p logic.Power) (changed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Mode != logic.ModeManual {
		return false, ErrNotManual
	}
	cur, ok := t.snap.Actuators[id]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownActuator, id)
	}
	t.snap.Actuators[id] = p
	return cur != p, nil
}

// SetActuator records an actuator state regardless of mode. Used for raw
// output writes and the shutdown sweep.
func (t *Tracker) SetActuator(id logic.ActuatorID, p logic.Power) (changed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.snap.Actuators[id]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownActuator, id)
	}
	t.snap.Actuators[id] = p
	return cur != p, nil
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the hub state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Actuators = make(map[logic.ActuatorID]logic.Power, len(t.snap.Actuators))
	for id, p := range t.snap.Actuators {
		s.Actuators[id] = p
	}
	if t.snap.Temperature != nil {
		v := *t.snap.Temperature
		s.Temperature = &v
	}
	if t.snap.Humidity != nil {
		v := *t.snap.Humidity
		s.Humidity = &v
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
