// Package metrics exposes Prometheus collectors for the sensor hub.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/sensor-hub/internal/logic"
)

const namespace = "sensor_hub"

// Read results.
const (
	ResultOK         = "ok"
	ResultOutOfRange = "out_of_range"
	ResultInvalid    = "invalid"
	ResultError      = "error"
)

// Metrics holds the hub's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	sensorReads    *prometheus.CounterVec
	actuatorWrites *prometheus.CounterVec
	modeToggles    prometheus.Counter
	persistErrors  prometheus.Counter
	temperature    prometheus.Gauge
	humidity       prometheus.Gauge
	distance       prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sensorReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_reads_total",
			Help:      "Sensor reads by sensor and result.",
		}, []string{"sensor", "result"}),
		actuatorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_writes_total",
			Help:      "Actuator output writes by actuator and power state.",
		}, []string{"actuator", "power"}),
		modeToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_toggles_total",
			Help:      "Operating mode changes.",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Readings that could not be written to storage.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Latest valid temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Latest valid relative humidity.",
		}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distance_cm",
			Help:      "Latest distance; -1 when out of range.",
		}),
	}
	m.registry.MustRegister(
		m.sensorReads,
		m.actuatorWrites,
		m.modeToggles,
		m.persistErrors,
		m.temperature,
		m.humidity,
		m.distance,
	)
	return m
}

// SensorRead counts one read of sensor with the given result.
func (m *Metrics) SensorRead(sensor, result string) {
	if m == nil {
		return
	}
	m.sensorReads.WithLabelValues(sensor, result).Inc()
}

// ActuatorWrite counts one output write.
func (m *Metrics) ActuatorWrite(id logic.ActuatorID, p logic.Power) {
	if m == nil {
		return
	}
	m.actuatorWrites.WithLabelValues(string(id), string(p)).Inc()
}

// ModeToggle counts one mode change.
func (m *Metrics) ModeToggle() {
	if m == nil {
		return
	}
	m.modeToggles.Inc()
}

// PersistError counts one failed storage write.
func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

// Observe sets the gauge for the reading's kind.
func (m *Metrics) Observe(kind logic.Kind, v float64) {
	if m == nil {
		return
	}
	switch kind {
	case logic.KindTemperature:
		m.temperature.Set(v)
	case logic.KindHumidity:
		m.humidity.Set(v)
	case logic.KindDistance:
		m.distance.Set(v)
	}
}

// Registry returns the registry holding the hub's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
