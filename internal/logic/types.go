// Package logic contains pure business logic for the sensor hub: operating
// modes, actuator identities, the auto-control policy, touch edge detection
// and reading validation.
// This package has NO external dependencies (no GPIO, MQTT, database, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidMode     = errors.New("invalid mode")
	ErrInvalidPower    = errors.New("invalid power state")
	ErrUnknownActuator = errors.New("unknown actuator")
	ErrUnknownKind     = errors.New("unknown sensor kind")
)

// Mode is the operating mode of the hub.
type Mode string

const (
	ModeAuto   Mode = "AUTO"
	ModeManual Mode = "MANUAL"
)

// Toggle returns the opposite mode.
func (m Mode) Toggle() Mode {
	if m == ModeAuto {
		return ModeManual
	}
	return ModeAuto
}

// ParseMode accepts "auto" or "manual" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Power is the two-valued state of an actuator output.
type Power string

const (
	PowerOn  Power = "ON"
	PowerOff Power = "OFF"
)

// ParsePower accepts "on" or "off" in any case.
func ParsePower(s string) (Power, error) {
	switch Power(strings.ToUpper(strings.TrimSpace(s))) {
	case PowerOn:
		return PowerOn, nil
	case PowerOff:
		return PowerOff, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPower, s)
}

// Level returns the raw output level for the power state (ON = 1).
func (p Power) Level() int {
	if p == PowerOn {
		return 1
	}
	return 0
}

// PowerFromLevel maps a raw output level to a power state.
func PowerFromLevel(level int) Power {
	if level != 0 {
		return PowerOn
	}
	return PowerOff
}

// ActuatorID identifies an appliance output. Each is wired to one pin.
type ActuatorID string

const (
	Aircon       ActuatorID = "aircon"
	Heater       ActuatorID = "heater"
	Dehumidifier ActuatorID = "dehumidifier"
)

// Actuators lists every actuator in output index order.
var Actuators = []ActuatorID{Aircon, Heater, Dehumidifier}

// ParseActuator accepts an actuator name in any case.
func ParseActuator(s string) (ActuatorID, error) {
	id := ActuatorID(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range Actuators {
		if a == id {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownActuator, s)
}

// Kind is the quantity a reading measures.
type Kind string

const (
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
	KindDistance    Kind = "distance"
)

// Kinds lists every persisted reading kind.
var Kinds = []Kind{KindTemperature, KindHumidity, KindDistance}

// ParseKind accepts a reading kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if known == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Unit returns the display unit for the kind.
func (k Kind) Unit() string {
	switch k {
	case KindTemperature:
		return "°C"
	case KindHumidity:
		return "%"
	case KindDistance:
		return "cm"
	}
	return ""
}

// Reading is a single validated sensor observation. Never mutated once produced.
type Reading struct {
	Kind       Kind
	Value      float64
	ObservedAt time.Time
}

// EventType represents a published state change.
type EventType string

const (
	EventModeChanged     EventType = "MODE_CHANGED"
	EventActuatorChanged EventType = "ACTUATOR_CHANGED"
	EventProximityAlert  EventType = "PROXIMITY_ALERT"
	EventProximityClear  EventType = "PROXIMITY_CLEAR"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Mode      Mode
	Actuator  ActuatorID // ACTUATOR_CHANGED only
	Power     Power      // ACTUATOR_CHANGED only
	Distance  float64    // PROXIMITY_* only
	Source    string     // "auto", "manual", "touch", "output", "shutdown"
}

// Change is a single actuator state transition.
type Change struct {
	Actuator ActuatorID
	Power    Power
}
