// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensor-hub/internal/logic"
)

// Topic is the MQTT topic for hub state-change events.
const Topic = "home/sensor-hub/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/sensor-hub/system"

// System lifecycle event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a hub event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Nop is a Publisher that drops everything. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(logic.Event) error       { return nil }
func (Nop) PublishSystem(SystemEvent) error { return nil }
func (Nop) Close() error                    { return nil }
func (Nop) IsConnected() bool               { return false }

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Hub HubPayload `json:"hub"`
}

// HubPayload contains the event details.
type HubPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Mode      string   `json:"mode"`
	Actuator  string   `json:"actuator,omitempty"`
	Power     string   `json:"power,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// FormatPayload creates the JSON payload for a hub event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := HubPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Mode:      string(event.Mode),
		Source:    event.Source,
	}
	switch event.Type {
	case logic.EventActuatorChanged:
		p.Actuator = string(event.Actuator)
		p.Power = string(event.Power)
	case logic.EventProximityAlert, logic.EventProximityClear:
		if !logic.IsOutOfRange(event.Distance) {
			d := event.Distance
			p.Distance = &d
		}
	}
	return json.Marshal(Payload{Hub: p})
}

// SystemPayload is the payload for simple system events (LWT, RECONNECTED)
// that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
