package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/logic"
)

// Ranging constants for the HC-SR04.
const (
	// TriggerPulse is how long the trigger line is held high.
	TriggerPulse = 10 * time.Microsecond

	// DefaultEchoTimeout bounds each of the two echo waits.
	DefaultEchoTimeout = 100 * time.Millisecond

	// cmPerSecond converts round-trip echo time to one-way distance
	// (343 m/s speed of sound, halved).
	cmPerSecond = 17150.0
)

// BoardConfig wires lines and sensors into a Board.
type BoardConfig struct {
	Trigger   Line
	Echo      Line
	Touch     Line
	Env       EnvSensor
	Actuators map[logic.ActuatorID]Line

	// EchoTimeout bounds the wait for the echo to start and the wait for it
	// to end. Zero means DefaultEchoTimeout.
	EchoTimeout time.Duration

	// Now is the time source for echo timing. Nil means time.Now.
	Now func() time.Time

	Logger logrus.FieldLogger

	// Closer releases the underlying lines. Optional.
	Closer func() error
}

// Board implements Hardware over individual lines.
type Board struct {
	trigger     Line
	echo        Line
	touch       Line
	env         EnvSensor
	actuators   map[logic.ActuatorID]Line
	echoTimeout time.Duration
	now         func() time.Time
	log         logrus.FieldLogger
	closer      func() error

	// rangeMu serialises trigger/echo sequences. It is unrelated to any
	// state lock; interleaved pulses corrupt the timing.
	rangeMu sync.Mutex

	// actMu guards actuator writes so a shutdown sweep cannot interleave
	// with a control write on the same line.
	actMu sync.Mutex
}

// NewBoard creates a Board from the given config.
func NewBoard(cfg BoardConfig) *Board {
	b := &Board{
		trigger:     cfg.Trigger,
		echo:        cfg.Echo,
		touch:       cfg.Touch,
		env:         cfg.Env,
		actuators:   cfg.Actuators,
		echoTimeout: cfg.EchoTimeout,
		now:         cfg.Now,
		log:         cfg.Logger,
		closer:      cfg.Closer,
	}
	if b.echoTimeout <= 0 {
		b.echoTimeout = DefaultEchoTimeout
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.log == nil {
		b.log = logrus.StandardLogger()
	}
	if b.actuators == nil {
		b.actuators = map[logic.ActuatorID]Line{}
	}
	return b
}

// ReadDistance fires one trigger pulse and times the echo.
func (b *Board) ReadDistance() (float64, error) {
	b.rangeMu.Lock()
	defer b.rangeMu.Unlock()

	if err := b.trigger.SetValue(1); err != nil {
		return 0, fmt.Errorf("set trigger high: %w", err)
	}
	b.spin(TriggerPulse)
	if err := b.trigger.SetValue(0); err != nil {
		return 0, fmt.Errorf("set trigger low: %w", err)
	}

	// Wait for the echo line to rise.
	start := b.now()
	deadline := start.Add(b.echoTimeout)
	for {
		v, err := b.echo.Value()
		if err != nil {
			return 0, fmt.Errorf("read echo: %w", err)
		}
		if v != 0 {
			break
		}
		start = b.now()
		if start.After(deadline) {
			return 0, fmt.Errorf("waiting for echo start: %w", ErrEchoTimeout)
		}
	}

	// Time how long it stays high.
	end := start
	deadline = start.Add(b.echoTimeout)
	for {
		v, err := b.echo.Value()
		if err != nil {
			return 0, fmt.Errorf("read echo: %w", err)
		}
		if v == 0 {
			break
		}
		end = b.now()
		if end.After(deadline) {
			return 0, fmt.Errorf("waiting for echo end: %w", ErrEchoTimeout)
		}
	}

	cm := end.Sub(start).Seconds() * cmPerSecond
	if cm >= logic.MaxDistance {
		return cm, fmt.Errorf("%.1fcm: %w", cm, ErrOutOfRange)
	}
	return cm, nil
}

// spin busy-waits for d. time.Sleep cannot resolve a 10µs pulse.
func (b *Board) spin(d time.Duration) {
	start := b.now()
	for b.now().Sub(start) < d {
	}
}

// ReadEnvironment reads humidity and temperature in one call.
func (b *Board) ReadEnvironment() (Environment, error) {
	if b.env == nil {
		return Environment{}, fmt.Errorf("no environment sensor: %w", ErrTransient)
	}
	return b.env.Read()
}

// ReadTouch returns the touch level, normalised to 0 or 1.
func (b *Board) ReadTouch() (int, error) {
	v, err := b.touch.Value()
	if err != nil {
		return 0, fmt.Errorf("read touch: %w", err)
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}

// SetActuator drives the actuator's line. Errors are logged only; losing one
// write must not stop the caller's loop.
func (b *Board) SetActuator(id logic.ActuatorID, p logic.Power) {
	b.actMu.Lock()
	defer b.actMu.Unlock()

	line, ok := b.actuators[id]
	if !ok {
		b.log.WithField("actuator", id).Errorf("set actuator: %v", ErrUnknownActuator)
		return
	}
	if err := line.SetValue(p.Level()); err != nil {
		b.log.WithFields(logrus.Fields{"actuator": id, "power": p}).Errorf("set actuator: %v", err)
	}
}

// Close releases the underlying lines, if a closer was configured.
func (b *Board) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}
