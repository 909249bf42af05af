// Package sensing runs the hub's sampling loops: the distance monitor and
// the environmental sampler. Both absorb sensor faults; nothing here ever
// stops a loop except context cancellation.
package sensing

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/gpio"
	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/metrics"
	"github.com/sweeney/sensor-hub/internal/mqtt"
	"github.com/sweeney/sensor-hub/internal/status"
)

// DefaultAlertThreshold is the proximity alert distance in centimetres.
const DefaultAlertThreshold = 10.0

// DefaultDistanceInterval is the distance monitor period.
const DefaultDistanceInterval = 500 * time.Millisecond

// RangeFinder measures distance. gpio.Hardware satisfies it.
type RangeFinder interface {
	ReadDistance() (float64, error)
}

// DistanceMonitor samples the ranger and publishes distance and proximity
// alert into shared state.
type DistanceMonitor struct {
	ranger    RangeFinder
	state     *status.Tracker
	threshold float64

	Publisher mqtt.Publisher
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Log       logrus.FieldLogger
}

// NewDistanceMonitor creates a monitor with a no-op publisher, the wall
// clock and the standard logger. Callers may replace the exported fields
// before Run.
func NewDistanceMonitor(ranger RangeFinder, state *status.Tracker, alertThreshold float64) *DistanceMonitor {
	return &DistanceMonitor{
		ranger:    ranger,
		state:     state,
		threshold: alertThreshold,
		Publisher: mqtt.Nop{},
		Clock:     clock.New(),
		Log:       logrus.StandardLogger(),
	}
}

// Sample performs one ranging and publishes the result. A failed ranging
// yields the out-of-range sentinel with the alert cleared.
func (m *DistanceMonitor) Sample() (distance float64, alert bool) {
	cm, err := m.ranger.ReadDistance()
	switch {
	case err == nil:
		m.Metrics.SensorRead(string(logic.KindDistance), metrics.ResultOK)
	case errors.Is(err, gpio.ErrOutOfRange):
		m.Metrics.SensorRead(string(logic.KindDistance), metrics.ResultOutOfRange)
		m.Log.WithField("sensor", logic.KindDistance).Debugf("out of range: %v", err)
	default:
		m.Metrics.SensorRead(string(logic.KindDistance), metrics.ResultError)
		m.Log.WithField("sensor", logic.KindDistance).WithError(err).Warn("ranging failed")
	}

	distance, alert = logic.ClassifyDistance(cm, err == nil, m.threshold)
	wasAlert := m.state.SetDistance(distance, alert)
	m.Metrics.Observe(logic.KindDistance, distance)

	if alert != wasAlert {
		typ := logic.EventProximityClear
		if alert {
			typ = logic.EventProximityAlert
		}
		m.Log.WithField("distance", distance).Infof("proximity: %s", typ)
		event := logic.Event{
			Timestamp: m.Clock.Now(),
			Type:      typ,
			Mode:      m.state.Mode(),
			Distance:  distance,
			Source:    "distance",
		}
		if err := m.Publisher.Publish(event); err != nil {
			m.Log.WithError(err).Warn("publish proximity event")
		}
	}
	return distance, alert
}

// Run samples once immediately and then on every tick until ctx is done.
func (m *DistanceMonitor) Run(ctx context.Context, tick <-chan time.Time) error {
	m.Sample()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			m.Sample()
		}
	}
}
