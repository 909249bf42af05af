package control

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/metrics"
	"github.com/sweeney/sensor-hub/internal/sensing"
	"github.com/sweeney/sensor-hub/internal/status"
)

// DefaultPollInterval is the coordinator period.
const DefaultPollInterval = 5 * time.Second

// TouchReader reads the raw touch level. gpio.Hardware satisfies it.
type TouchReader interface {
	ReadTouch() (int, error)
}

// EnvSource samples the environmental sensor. *sensing.EnvSampler satisfies it.
type EnvSource interface {
	Sample(ctx context.Context) (sensing.EnvSample, error)
}

// ReadingWriter persists readings. *store.Store satisfies it.
type ReadingWriter interface {
	InsertReading(ctx context.Context, r logic.Reading) error
}

// Coordinator runs one environment/touch/auto-control/persistence pass per
// tick. The mode is settled by the touch step before the policy reads it.
type Coordinator struct {
	env      EnvSource
	touch    TouchReader
	ctrl     *Controller
	state    *status.Tracker
	debounce *logic.TouchDebouncer

	// Store, if set, receives the tick's valid readings.
	Store   ReadingWriter
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Log     logrus.FieldLogger
}

// NewCoordinator creates a Coordinator whose touch input cannot toggle the
// mode again until debounce has passed since the previous toggle.
func NewCoordinator(env EnvSource, touch TouchReader, ctrl *Controller, state *status.Tracker, debounce time.Duration) *Coordinator {
	return &Coordinator{
		env:      env,
		touch:    touch,
		ctrl:     ctrl,
		state:    state,
		debounce: logic.NewTouchDebouncer(debounce),
		Clock:    clock.New(),
		Log:      logrus.StandardLogger(),
	}
}

// Tick performs one coordinator pass.
func (c *Coordinator) Tick(ctx context.Context) {
	sample, err := c.env.Sample(ctx)
	if err != nil {
		c.Log.WithError(err).Warn("environment unavailable this cycle, keeping previous values")
	}

	c.pollTouch()
	c.ctrl.ApplyAuto()
	c.persist(ctx, sample)
}

func (c *Coordinator) pollTouch() {
	level, err := c.touch.ReadTouch()
	if err != nil {
		c.Metrics.SensorRead("touch", metrics.ResultError)
		c.Log.WithField("sensor", "touch").WithError(err).Warn("touch read failed")
		return
	}
	c.Metrics.SensorRead("touch", metrics.ResultOK)

	res := c.debounce.Process(level, c.Clock.Now())
	c.state.SetTouch(res.Active)
	if res.Toggle {
		c.ctrl.ToggleMode(SourceTouch)
	}
}

// persist writes the sample's valid fields and the current in-range
// distance. Failures are logged; in-memory state is already updated.
func (c *Coordinator) persist(ctx context.Context, sample sensing.EnvSample) {
	if c.Store == nil {
		return
	}
	readings := sample.Readings()
	if d := c.state.Snapshot().Distance; !logic.IsOutOfRange(d) {
		readings = append(readings, logic.Reading{Kind: logic.KindDistance, Value: d, ObservedAt: c.Clock.Now()})
	}
	for _, r := range readings {
		if err := c.Store.InsertReading(ctx, r); err != nil {
			c.Metrics.PersistError()
			c.Log.WithError(err).WithField("kind", r.Kind).Error("persist reading")
		}
	}
}

// Run ticks once immediately and then on every tick until ctx is done.
func (c *Coordinator) Run(ctx context.Context, tick <-chan time.Time) error {
	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			c.Tick(ctx)
		}
	}
}
