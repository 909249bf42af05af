//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"github.com/sweeney/sensor-hub/internal/logic"
)

// Open requests every line on the chip and returns a Board for the real hardware.
// Actuator outputs start low.
func Open(chipName string, pins Pins, dhtDir string, echoTimeout time.Duration, log logrus.FieldLogger) (*Board, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}

	env, err := NewIIODHT(dhtDir)
	if err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	var (
		inputs  []*gpiocdev.Line
		outputs []*gpiocdev.Line
	)
	release := func() error {
		var errs error
		// Drive outputs low, then reconfigure every line to match the Pi
		// boot default (input with pull-down) before closing.
		for _, l := range outputs {
			errs = multierr.Append(errs, l.SetValue(0))
		}
		for _, l := range append(outputs, inputs...) {
			if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconfigure line %d: %w", l.Offset(), err))
			}
			if err := l.Close(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
			}
		}
		if err := chip.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close chip: %w", err))
		}
		return errs
	}

	requestOut := func(pin int, name string) (*gpiocdev.Line, error) {
		l, err := chip.RequestLine(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("sensor-hub"))
		if err != nil {
			return nil, fmt.Errorf("request %s pin %d: %w", name, pin, err)
		}
		outputs = append(outputs, l)
		return l, nil
	}
	requestIn := func(pin int, name string) (*gpiocdev.Line, error) {
		l, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown, gpiocdev.WithConsumer("sensor-hub"))
		if err != nil {
			return nil, fmt.Errorf("request %s pin %d: %w", name, pin, err)
		}
		inputs = append(inputs, l)
		return l, nil
	}

	trigger, err := requestOut(pins.Trigger, "trigger")
	if err != nil {
		return nil, multierr.Append(err, release())
	}
	echo, err := requestIn(pins.Echo, "echo")
	if err != nil {
		return nil, multierr.Append(err, release())
	}
	touch, err := requestIn(pins.Touch, "touch")
	if err != nil {
		return nil, multierr.Append(err, release())
	}

	actuators := make(map[logic.ActuatorID]Line, len(logic.Actuators))
	for _, id := range logic.Actuators {
		l, err := requestOut(pins.Actuators[id], string(id))
		if err != nil {
			return nil, multierr.Append(err, release())
		}
		actuators[id] = l
	}

	return NewBoard(BoardConfig{
		Trigger:     trigger,
		Echo:        echo,
		Touch:       touch,
		Env:         env,
		Actuators:   actuators,
		EchoTimeout: echoTimeout,
		Logger:      log,
		Closer:      release,
	}), nil
}
