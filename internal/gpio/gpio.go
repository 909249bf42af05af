// Package gpio provides sensor and actuator access with hardware abstraction.
// The real implementation uses the Linux GPIO character device for the
// ultrasonic ranger, touch input and actuator outputs, and the kernel's
// IIO dht11 driver for temperature/humidity.
// The fake implementations allow testing without hardware.
package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/sensor-hub/internal/logic"
)

var (
	// ErrOutOfRange is returned when no valid distance could be measured.
	ErrOutOfRange = errors.New("distance out of range")

	// ErrEchoTimeout is returned when the echo line never started or never
	// ended within the echo timeout. It matches ErrOutOfRange.
	ErrEchoTimeout = fmt.Errorf("echo timeout: %w", ErrOutOfRange)

	// ErrTransient marks a sensor read that may succeed if retried.
	ErrTransient = errors.New("transient sensor fault")

	// ErrUnknownActuator is returned for actuators without a configured output.
	ErrUnknownActuator = errors.New("no output configured for actuator")
)

// Line is a single GPIO line. *gpiocdev.Line satisfies it.
type Line interface {
	Value() (int, error)
	SetValue(value int) error
}

// Environment is a paired humidity/temperature reading. Both fields come from
// the same read or the read fails as a whole.
type Environment struct {
	Humidity    float64 // percent
	Temperature float64 // celsius
}

// EnvSensor reads humidity and temperature. It does not retry.
type EnvSensor interface {
	Read() (Environment, error)
}

// Hardware is the uniform access layer over the hub's sensors and outputs.
type Hardware interface {
	// ReadDistance returns the measured distance in centimetres.
	// Timeouts and readings at or beyond the ranger's ceiling return an
	// error matching ErrOutOfRange.
	ReadDistance() (float64, error)

	// ReadEnvironment returns humidity and temperature together.
	ReadEnvironment() (Environment, error)

	// ReadTouch returns the raw touch level (0 or 1).
	ReadTouch() (int, error)

	// SetActuator drives the actuator's output. Failures are logged, not returned.
	SetActuator(id logic.ActuatorID, p logic.Power)

	// Close releases GPIO resources.
	Close() error
}

// Default chip and device locations.
const (
	DefaultChip      = "gpiochip0"
	DefaultDHTDevice = "/sys/bus/iio/devices/iio:device0"
)

// Pin definitions (BCM numbering)
const (
	DefaultPinTrigger      = 23
	DefaultPinEcho         = 24
	DefaultPinTouch        = 25
	DefaultPinAircon       = 17
	DefaultPinHeater       = 22
	DefaultPinDehumidifier = 27
)

// Pins assigns BCM line offsets to every sensor and actuator.
type Pins struct {
	Trigger   int
	Echo      int
	Touch     int
	Actuators map[logic.ActuatorID]int
}

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{
		Trigger: DefaultPinTrigger,
		Echo:    DefaultPinEcho,
		Touch:   DefaultPinTouch,
		Actuators: map[logic.ActuatorID]int{
			logic.Aircon:       DefaultPinAircon,
			logic.Heater:       DefaultPinHeater,
			logic.Dehumidifier: DefaultPinDehumidifier,
		},
	}
}

// Validate checks that every actuator has a pin and no pin is used twice.
func (p Pins) Validate() error {
	used := make(map[int]string)
	claim := func(pin int, name string) error {
		if pin < 0 {
			return fmt.Errorf("pin for %s: negative offset %d", name, pin)
		}
		if other, ok := used[pin]; ok {
			return fmt.Errorf("pin %d assigned to both %s and %s", pin, other, name)
		}
		used[pin] = name
		return nil
	}

	if err := claim(p.Trigger, "trigger"); err != nil {
		return err
	}
	if err := claim(p.Echo, "echo"); err != nil {
		return err
	}
	if err := claim(p.Touch, "touch"); err != nil {
		return err
	}
	for _, id := range logic.Actuators {
		pin, ok := p.Actuators[id]
		if !ok {
			return fmt.Errorf("no pin for actuator %s", id)
		}
		if err := claim(pin, string(id)); err != nil {
			return err
		}
	}
	if len(p.Actuators) != len(logic.Actuators) {
		return fmt.Errorf("unexpected actuators in pin map: %v", p.Actuators)
	}
	return nil
}
