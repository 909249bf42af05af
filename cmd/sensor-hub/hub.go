package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/sensor-hub/internal/control"
	"github.com/sweeney/sensor-hub/internal/gpio"
	"github.com/sweeney/sensor-hub/internal/metrics"
	"github.com/sweeney/sensor-hub/internal/mqtt"
	"github.com/sweeney/sensor-hub/internal/sensing"
	"github.com/sweeney/sensor-hub/internal/status"
	"github.com/sweeney/sensor-hub/internal/web"
)

const shutdownTimeout = 5 * time.Second

// hub wires the loops, controller and serving layer around one tracker.
type hub struct {
	cfg       config
	tracker   *status.Tracker
	ctrl      *control.Controller
	distance  *sensing.DistanceMonitor
	coord     *control.Coordinator
	publisher mqtt.Publisher
	web       *web.Server // nil when HTTP is disabled
	clock     clock.Clock
	log       logrus.FieldLogger
}

// readingStore is what the hub needs from storage. *store.Store satisfies it.
type readingStore interface {
	control.ReadingWriter
	web.HistoryReader
}

func newHub(cfg config, tracker *status.Tracker, hw gpio.Hardware, db readingStore, pub mqtt.Publisher, m *metrics.Metrics, clk clock.Clock, log logrus.FieldLogger) *hub {
	ctrl := control.NewController(hw, tracker, cfg.Thresholds)
	ctrl.Publisher, ctrl.Metrics, ctrl.Clock, ctrl.Log = pub, m, clk, log

	dist := sensing.NewDistanceMonitor(hw, tracker, cfg.AlertThreshold)
	dist.Publisher, dist.Metrics, dist.Clock, dist.Log = pub, m, clk, log

	env := sensing.NewEnvSampler(hw, tracker)
	env.Attempts, env.Backoff = cfg.DHTAttempts, cfg.DHTBackoff
	env.Metrics, env.Clock, env.Log = m, clk, log

	coord := control.NewCoordinator(env, hw, ctrl, tracker, cfg.TouchDebounce)
	coord.Metrics, coord.Clock, coord.Log = m, clk, log
	if db != nil {
		coord.Store = db
	}

	h := &hub{
		cfg:       cfg,
		tracker:   tracker,
		ctrl:      ctrl,
		distance:  dist,
		coord:     coord,
		publisher: pub,
		clock:     clk,
		log:       log,
	}
	if cfg.HTTPAddr != "" {
		opts := web.Options{
			HistoryLimit: cfg.HistoryLimit,
			PushInterval: cfg.DistanceInterval,
			Metrics:      m.Handler(),
			Log:          log,
		}
		if db != nil {
			opts.History = db
		}
		if l, ok := log.(*logrus.Logger); ok {
			opts.AccessLog = l.WriterLevel(logrus.DebugLevel)
		}
		h.web = web.New(cfg.HTTPAddr, tracker, ctrl, opts)
	}
	return h
}

// run publishes STARTUP, runs the loops and the HTTP server until a signal
// arrives or ctx ends, then performs the shutdown sequence: stop the loops,
// stop HTTP, drive every actuator Off, publish SHUTDOWN.
func (h *hub) run(ctx context.Context, sig <-chan os.Signal) error {
	h.publishSystem(mqtt.EventStartup, "", true)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	distTicker := h.clock.Ticker(h.cfg.DistanceInterval)
	defer distTicker.Stop()
	pollTicker := h.clock.Ticker(h.cfg.Poll)
	defer pollTicker.Stop()

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error { return h.distance.Run(gctx, distTicker.C) })
	g.Go(func() error { return h.coord.Run(gctx, pollTicker.C) })
	if h.cfg.Heartbeat > 0 {
		hbTicker := h.clock.Ticker(h.cfg.Heartbeat)
		defer hbTicker.Stop()
		g.Go(func() error { return h.heartbeat(gctx, hbTicker.C) })
	}

	httpErr := make(chan error, 1)
	if h.web != nil {
		go func() {
			if err := h.web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- fmt.Errorf("http server: %w", err)
			}
		}()
		h.log.WithField("addr", h.cfg.HTTPAddr).Info("http server listening")
	}

	h.log.WithFields(logrus.Fields{
		"poll":            h.cfg.Poll,
		"distance":        h.cfg.DistanceInterval,
		"alert_threshold": h.cfg.AlertThreshold,
		"heartbeat":       h.cfg.Heartbeat,
		"broker":          h.cfg.Broker,
	}).Info("started")

	var (
		reason string
		runErr error
	)
	select {
	case s := <-sig:
		reason = signalName(s)
		h.log.Infof("received %v, shutting down", s)
	case <-ctx.Done():
		reason = "CONTEXT"
	case runErr = <-httpErr:
		reason = "HTTP_ERROR"
		h.log.WithError(runErr).Error("shutting down")
	}

	cancel()
	if err := g.Wait(); err != nil {
		h.log.WithError(err).Warn("loop exited with error")
	}

	// Requests must stop before the outputs are driven Off.
	if h.web != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := h.web.Shutdown(sctx); err != nil {
			h.log.WithError(err).Warn("http shutdown")
		}
	}

	h.ctrl.AllOff()
	h.publishSystem(mqtt.EventShutdown, reason, true)
	return runErr
}

// heartbeat publishes a HEARTBEAT status event on every tick until ctx is done.
func (h *hub) heartbeat(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			snap := h.tracker.Snapshot()
			h.log.WithFields(logrus.Fields{
				"uptime": snap.Uptime().Truncate(time.Second),
				"mode":   snap.Mode,
			}).Info("heartbeat")
			h.publishSystem(mqtt.EventHeartbeat, "", false)
		}
	}
}

func (h *hub) publishSystem(event, reason string, retained bool) {
	if cs, ok := h.publisher.(mqtt.ConnectionStatus); ok {
		h.tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := h.tracker.Snapshot()
	err := h.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  h.clock.Now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		h.log.WithError(err).Warnf("failed to publish %s event", event)
		return
	}
	h.log.Infof("published %s event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
