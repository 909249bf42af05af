package sensing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/gpio"
	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/metrics"
	"github.com/sweeney/sensor-hub/internal/status"
)

// ErrNoReading is returned when every attempt of a sample failed.
var ErrNoReading = errors.New("no environmental reading")

// Sampler defaults.
const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// EnvReader reads temperature and humidity together. gpio.Hardware satisfies it.
type EnvReader interface {
	ReadEnvironment() (gpio.Environment, error)
}

// EnvSample holds the validated fields of one successful read. A nil field
// was out of range and discarded.
type EnvSample struct {
	Temperature *float64
	Humidity    *float64
	ObservedAt  time.Time
}

// Readings returns the sample's valid fields as readings, temperature first.
func (s EnvSample) Readings() []logic.Reading {
	var out []logic.Reading
	if s.Temperature != nil {
		out = append(out, logic.Reading{Kind: logic.KindTemperature, Value: *s.Temperature, ObservedAt: s.ObservedAt})
	}
	if s.Humidity != nil {
		out = append(out, logic.Reading{Kind: logic.KindHumidity, Value: *s.Humidity, ObservedAt: s.ObservedAt})
	}
	return out
}

// EnvSampler reads the environmental sensor with bounded retries and
// publishes validated fields into shared state.
type EnvSampler struct {
	reader EnvReader
	state  *status.Tracker

	Attempts int
	Backoff  time.Duration
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Log      logrus.FieldLogger
}

// NewEnvSampler creates a sampler with the default retry policy.
func NewEnvSampler(reader EnvReader, state *status.Tracker) *EnvSampler {
	return &EnvSampler{
		reader:   reader,
		state:    state,
		Attempts: DefaultAttempts,
		Backoff:  DefaultBackoff,
		Clock:    clock.New(),
		Log:      logrus.StandardLogger(),
	}
}

// Sample reads until one attempt succeeds, waiting Backoff between failed
// attempts. Each field of the accepted read is validated on its own; valid
// fields are written to shared state. When every attempt fails, state is
// left untouched and the error wraps ErrNoReading.
func (s *EnvSampler) Sample(ctx context.Context) (EnvSample, error) {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		env, err := s.reader.ReadEnvironment()
		if err == nil {
			return s.accept(env), nil
		}
		lastErr = err
		s.Metrics.SensorRead("environment", metrics.ResultError)
		s.Log.WithFields(logrus.Fields{
			"sensor":  "environment",
			"attempt": fmt.Sprintf("%d/%d", attempt, attempts),
		}).WithError(err).Warn("environment read failed")

		if attempt == attempts {
			break
		}
		if err := s.wait(ctx); err != nil {
			return EnvSample{}, fmt.Errorf("%w: %v", ErrNoReading, err)
		}
	}
	return EnvSample{}, fmt.Errorf("%w after %d attempts: %v", ErrNoReading, attempts, lastErr)
}

func (s *EnvSampler) wait(ctx context.Context) error {
	if s.Backoff <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Clock.After(s.Backoff):
		return nil
	}
}

func (s *EnvSampler) accept(env gpio.Environment) EnvSample {
	sample := EnvSample{ObservedAt: s.Clock.Now()}

	if logic.ValidTemperature(env.Temperature) {
		v := logic.Round1(env.Temperature)
		sample.Temperature = &v
		s.Metrics.SensorRead(string(logic.KindTemperature), metrics.ResultOK)
		s.Metrics.Observe(logic.KindTemperature, v)
	} else {
		s.Metrics.SensorRead(string(logic.KindTemperature), metrics.ResultInvalid)
		s.Log.WithField("sensor", logic.KindTemperature).Warnf("discarding out-of-range value %v", env.Temperature)
	}

	if logic.ValidHumidity(env.Humidity) {
		v := logic.Round1(env.Humidity)
		sample.Humidity = &v
		s.Metrics.SensorRead(string(logic.KindHumidity), metrics.ResultOK)
		s.Metrics.Observe(logic.KindHumidity, v)
	} else {
		s.Metrics.SensorRead(string(logic.KindHumidity), metrics.ResultInvalid)
		s.Log.WithField("sensor", logic.KindHumidity).Warnf("discarding out-of-range value %v", env.Humidity)
	}

	s.state.SetEnvironment(sample.Temperature, sample.Humidity)
	return sample
}
