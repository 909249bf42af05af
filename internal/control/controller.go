// Package control applies actuator decisions. The Controller is the only
// writer of actuator outputs; the Coordinator drives the per-tick touch,
// auto-control and persistence sequence.
package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/metrics"
	"github.com/sweeney/sensor-hub/internal/mqtt"
	"github.com/sweeney/sensor-hub/internal/status"
)

var (
	// ErrInvalidOutput rejects raw output writes with a bad index or level.
	ErrInvalidOutput = errors.New("invalid output")

	// ErrStopped rejects output changes after AllOff.
	ErrStopped = errors.New("controller stopped")
)

// Event sources.
const (
	SourceAuto     = "auto"
	SourceManual   = "manual"
	SourceTouch    = "touch"
	SourceOutput   = "output"
	SourceShutdown = "shutdown"
)

// Outputs drives actuator lines. gpio.Hardware satisfies it.
type Outputs interface {
	SetActuator(id logic.ActuatorID, p logic.Power)
}

// Controller records actuator changes in shared state and drives the matching
// outputs. Its lock spans both so the hardware never lags a later state change.
type Controller struct {
	mu         sync.Mutex
	outputs    Outputs
	state      *status.Tracker
	thresholds logic.Thresholds
	stopped    bool

	Publisher mqtt.Publisher
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Log       logrus.FieldLogger
}

// NewController creates a Controller using thresholds for the auto policy.
func NewController(outputs Outputs, state *status.Tracker, thresholds logic.Thresholds) *Controller {
	return &Controller{
		outputs:    outputs,
		state:      state,
		thresholds: thresholds,
		Publisher:  mqtt.Nop{},
		Clock:      clock.New(),
		Log:        logrus.StandardLogger(),
	}
}

// ApplyAuto evaluates the auto-control policy and writes only the outputs
// whose state differs. It does nothing outside AUTO mode or before the
// first valid environmental reading.
func (c *Controller) ApplyAuto() []logic.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}

	changes := c.state.Reconcile(func(temperature, humidity *float64) map[logic.ActuatorID]logic.Power {
		return logic.Decide(temperature, humidity, c.thresholds)
	})
	for _, ch := range changes {
		c.drive(ch.Actuator, ch.Power, logic.ModeAuto, SourceAuto, true)
	}
	return changes
}

// SetMode switches the operating mode and reports whether it changed.
func (c *Controller) SetMode(m logic.Mode, source string) bool {
	if !c.state.SetMode(m) {
		return false
	}
	c.modeChanged(m, source)
	return true
}

// ToggleMode flips AUTO/MANUAL and returns the new mode.
func (c *Controller) ToggleMode(source string) logic.Mode {
	m := c.state.ToggleMode()
	c.modeChanged(m, source)
	return m
}

func (c *Controller) modeChanged(m logic.Mode, source string) {
	c.Metrics.ModeToggle()
	c.Log.WithFields(logrus.Fields{"mode": m, "source": source}).Info("mode changed")
	c.publish(logic.Event{Type: logic.EventModeChanged, Mode: m, Source: source})
}

// SetActuator handles a manual request. device and action are matched
// case-insensitively. It fails with status.ErrNotManual outside MANUAL
// mode, and with a logic parse error for unknown devices or actions; no
// state changes on failure.
func (c *Controller) SetActuator(device, action string) error {
	id, err := logic.ParseActuator(device)
	if err != nil {
		return err
	}
	p, err := logic.ParsePower(action)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}

	changed, err := c.state.SetManual(id, p)
	if err != nil {
		return err
	}
	c.drive(id, p, logic.ModeManual, SourceManual, changed)
	return nil
}

// WriteOutput drives the output at index (actuator order) to level 0 or 1,
// regardless of mode, and records the resulting state.
func (c *Controller) WriteOutput(index, level int) error {
	if index < 0 || index >= len(logic.Actuators) {
		return fmt.Errorf("%w: index %d", ErrInvalidOutput, index)
	}
	if level != 0 && level != 1 {
		return fmt.Errorf("%w: level %d", ErrInvalidOutput, level)
	}
	id := logic.Actuators[index]
	p := logic.PowerFromLevel(level)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}

	changed, err := c.state.SetActuator(id, p)
	if err != nil {
		return err
	}
	c.drive(id, p, c.state.Mode(), SourceOutput, changed)
	return nil
}

// AllOff drives every actuator Off and records it. Used at shutdown: after
// it returns, ApplyAuto, SetActuator and WriteOutput no longer touch outputs.
func (c *Controller) AllOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true

	mode := c.state.Mode()
	for _, id := range logic.Actuators {
		changed, err := c.state.SetActuator(id, logic.PowerOff)
		if err != nil {
			// not configured; still make sure the line is low
			c.outputs.SetActuator(id, logic.PowerOff)
			continue
		}
		c.drive(id, logic.PowerOff, mode, SourceShutdown, changed)
	}
}

// drive writes the output and, when the state changed, logs and publishes it.
// Callers hold c.mu.
func (c *Controller) drive(id logic.ActuatorID, p logic.Power, mode logic.Mode, source string, changed bool) {
	c.outputs.SetActuator(id, p)
	c.Metrics.ActuatorWrite(id, p)
	if !changed {
		return
	}
	c.Log.WithFields(logrus.Fields{
		"actuator": id,
		"power":    p,
		"source":   source,
	}).Info("actuator changed")
	c.publish(logic.Event{
		Type:     logic.EventActuatorChanged,
		Mode:     mode,
		Actuator: id,
		Power:    p,
		Source:   source,
	})
}

func (c *Controller) publish(e logic.Event) {
	e.Timestamp = c.Clock.Now()
	if err := c.Publisher.Publish(e); err != nil {
		c.Log.WithError(err).WithField("event", e.Type).Warn("publish failed")
	}
}
