// Command sensor-hub polls the distance, environment and touch sensors,
// drives the appliance outputs, stores readings and serves status over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/sweeney/sensor-hub/internal/gpio"
	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/metrics"
	"github.com/sweeney/sensor-hub/internal/mqtt"
	"github.com/sweeney/sensor-hub/internal/status"
	"github.com/sweeney/sensor-hub/internal/store"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sensor-hub",
		Usage: "home sensor hub: ranging, climate, touch mode switch and appliance control",
		Flags: flags(),
		Action: func(c *cli.Context) error {
			cfg, err := configFromCLI(c)
			if err != nil {
				return err
			}
			return run(c.Context, cfg)
		},
	}
}

func run(ctx context.Context, cfg config) (err error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	logger := log.StandardLogger()

	board, err := gpio.Open(cfg.Chip, cfg.Pins, cfg.DHTDevice, cfg.EchoTimeout, logger)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() { err = multierr.Append(err, board.Close()) }()

	if cfg.PrintState {
		return printState(os.Stdout, board)
	}

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() { err = multierr.Append(err, db.Close()) }()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	m := metrics.New()
	clk := clock.New()
	tracker := status.NewTracker(clk.Now(), cfg.statusConfig(), logic.Actuators)

	var pub mqtt.Publisher = mqtt.Nop{}
	if cfg.Broker != "" {
		rp, err := mqtt.NewRealPublisher(cfg.Broker, "sensor-hub", tracker.SetMQTTConnected)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		pub = rp
	}
	defer pub.Close()

	h := newHub(cfg, tracker, board, db, pub, m, clk, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return h.run(ctx, sigCh)
}

// printState takes one reading of every sensor.
func printState(w io.Writer, hw gpio.Hardware) error {
	var errs error

	if cm, err := hw.ReadDistance(); err == nil {
		fmt.Fprintf(w, "distance: %.1fcm\n", logic.Round1(cm))
	} else if errors.Is(err, gpio.ErrOutOfRange) {
		fmt.Fprintln(w, "distance: Out of Range")
	} else {
		errs = multierr.Append(errs, fmt.Errorf("read distance: %w", err))
	}

	if e, err := hw.ReadEnvironment(); err == nil {
		fmt.Fprintf(w, "temperature: %.1f°C\nhumidity: %.1f%%\n", e.Temperature, e.Humidity)
	} else {
		errs = multierr.Append(errs, fmt.Errorf("read environment: %w", err))
	}

	if level, err := hw.ReadTouch(); err == nil {
		fmt.Fprintf(w, "touch: %d\n", level)
	} else {
		errs = multierr.Append(errs, fmt.Errorf("read touch: %w", err))
	}
	return errs
}
