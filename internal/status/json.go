package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensor-hub/internal/logic"
)

// StatusJSON is the top-level JSON document for hub state.
type StatusJSON struct {
	Event           string      `json:"event,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Sensors         SensorsJSON `json:"sensors"`
	Status          ModeJSON    `json:"status"`
	DataInitialized bool        `json:"data_initialized"`
	ProximityAlert  bool        `json:"proximity_alert"`
	TouchActive     bool        `json:"touch_active"`
	UptimeSeconds   int64       `json:"uptime_seconds"`
	StartTime       string      `json:"start_time"`
	Timestamp       string      `json:"timestamp"`
	MQTT            MQTTStatus  `json:"mqtt"`
	Config          ConfigJSON  `json:"config"`
}

// SensorsJSON holds the latest sensor values. Null means no valid value yet
// (or, for distance, out of range).
type SensorsJSON struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Distance    *float64 `json:"distance"`
}

// ModeJSON holds the operating mode and actuator states.
type ModeJSON struct {
	Mode    string            `json:"mode"`
	Devices map[string]string `json:"devices"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of hub config.
type ConfigJSON struct {
	PollMs           int64   `json:"poll_ms"`
	DistancePollMs   int64   `json:"distance_poll_ms"`
	DebounceMs       int64   `json:"debounce_ms"`
	HeartbeatMs      int64   `json:"heartbeat_ms"`
	AlertThresholdCm float64 `json:"alert_threshold_cm"`
	AirconOnAt       float64 `json:"aircon_on_at"`
	HeaterOnAt       float64 `json:"heater_on_at"`
	DehumidifierOnAt float64 `json:"dehumidifier_on_at"`
	Broker           string  `json:"broker,omitempty"`
	HTTPAddr         string  `json:"http_addr"`
}

// Build converts a snapshot into its JSON document.
func Build(snap Snapshot) StatusJSON {
	var dist *float64
	if !logic.IsOutOfRange(snap.Distance) {
		d := snap.Distance
		dist = &d
	}
	devices := make(map[string]string, len(snap.Actuators))
	for id, p := range snap.Actuators {
		devices[string(id)] = string(p)
	}
	return StatusJSON{
		Sensors: SensorsJSON{
			Temperature: snap.Temperature,
			Humidity:    snap.Humidity,
			Distance:    dist,
		},
		Status:          ModeJSON{Mode: string(snap.Mode), Devices: devices},
		DataInitialized: snap.Initialized,
		ProximityAlert:  snap.ProximityAlert,
		TouchActive:     snap.TouchActive,
		UptimeSeconds:   int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:       snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:       snap.Now.UTC().Format(time.RFC3339),
		MQTT:            MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:           snap.Config.PollMs,
			DistancePollMs:   snap.Config.DistancePollMs,
			DebounceMs:       snap.Config.DebounceMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			AlertThresholdCm: snap.Config.AlertThresholdCm,
			AirconOnAt:       snap.Config.Thresholds.AirconOnAt,
			HeaterOnAt:       snap.Config.Thresholds.HeaterOnAt,
			DehumidifierOnAt: snap.Config.Thresholds.DehumidifierOnAt,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	doc := Build(snap)
	doc.Event = event
	doc.Reason = reason
	data, _ := json.Marshal(doc)
	return data
}
