package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sweeney/sensor-hub/internal/gpio"
	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/sensing"
	"github.com/sweeney/sensor-hub/internal/status"
	"github.com/sweeney/sensor-hub/internal/store"
)

const envPrefix = "SENSOR_HUB_"

// config is the validated runtime configuration.
type config struct {
	Chip        string
	DHTDevice   string
	Pins        gpio.Pins
	EchoTimeout time.Duration

	AlertThreshold   float64
	DistanceInterval time.Duration
	Poll             time.Duration
	TouchDebounce    time.Duration
	Heartbeat        time.Duration
	DHTAttempts      int
	DHTBackoff       time.Duration
	Thresholds       logic.Thresholds

	DBDriver     string
	DBDSN        string
	Broker       string
	HTTPAddr     string
	HistoryLimit int

	PrintState bool
	LogLevel   string
}

func env(name string) []string {
	return []string{envPrefix + name}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "chip", Value: gpio.DefaultChip, Usage: "GPIO character device", EnvVars: env("CHIP")},
		&cli.StringFlag{Name: "dht-device", Value: gpio.DefaultDHTDevice, Usage: "IIO sysfs directory of the dht11 driver", EnvVars: env("DHT_DEVICE")},
		&cli.IntFlag{Name: "pin-trigger", Value: gpio.DefaultPinTrigger, Usage: "BCM pin for the ultrasonic trigger", EnvVars: env("PIN_TRIGGER")},
		&cli.IntFlag{Name: "pin-echo", Value: gpio.DefaultPinEcho, Usage: "BCM pin for the ultrasonic echo", EnvVars: env("PIN_ECHO")},
		&cli.IntFlag{Name: "pin-touch", Value: gpio.DefaultPinTouch, Usage: "BCM pin for the touch sensor", EnvVars: env("PIN_TOUCH")},
		&cli.IntFlag{Name: "pin-aircon", Value: gpio.DefaultPinAircon, Usage: "BCM pin for the aircon output", EnvVars: env("PIN_AIRCON")},
		&cli.IntFlag{Name: "pin-heater", Value: gpio.DefaultPinHeater, Usage: "BCM pin for the heater output", EnvVars: env("PIN_HEATER")},
		&cli.IntFlag{Name: "pin-dehumidifier", Value: gpio.DefaultPinDehumidifier, Usage: "BCM pin for the dehumidifier output", EnvVars: env("PIN_DEHUMIDIFIER")},
		&cli.DurationFlag{Name: "echo-timeout", Value: gpio.DefaultEchoTimeout, Usage: "Bound on each echo wait", EnvVars: env("ECHO_TIMEOUT")},

		&cli.Float64Flag{Name: "alert-threshold", Value: sensing.DefaultAlertThreshold, Usage: "Proximity alert distance (cm)", EnvVars: env("ALERT_THRESHOLD")},
		&cli.DurationFlag{Name: "distance-interval", Value: sensing.DefaultDistanceInterval, Usage: "Distance monitor period", EnvVars: env("DISTANCE_INTERVAL")},
		&cli.DurationFlag{Name: "poll", Value: 5 * time.Second, Usage: "Environment/touch/control period", EnvVars: env("POLL")},
		&cli.DurationFlag{Name: "touch-debounce", Value: 300 * time.Millisecond, Usage: "Minimum time between touch mode toggles", EnvVars: env("TOUCH_DEBOUNCE")},
		&cli.DurationFlag{Name: "heartbeat", Value: 15 * time.Minute, Usage: "Heartbeat interval (0 to disable)", EnvVars: env("HEARTBEAT")},
		&cli.IntFlag{Name: "dht-attempts", Value: sensing.DefaultAttempts, Usage: "Environment read attempts per cycle", EnvVars: env("DHT_ATTEMPTS")},
		&cli.DurationFlag{Name: "dht-backoff", Value: sensing.DefaultBackoff, Usage: "Wait between environment read attempts", EnvVars: env("DHT_BACKOFF")},
		&cli.Float64Flag{Name: "aircon-on", Value: logic.DefaultThresholds.AirconOnAt, Usage: "Aircon on at or above this temperature (°C)", EnvVars: env("AIRCON_ON")},
		&cli.Float64Flag{Name: "heater-on", Value: logic.DefaultThresholds.HeaterOnAt, Usage: "Heater on at or below this temperature (°C)", EnvVars: env("HEATER_ON")},
		&cli.Float64Flag{Name: "dehumidifier-on", Value: logic.DefaultThresholds.DehumidifierOnAt, Usage: "Dehumidifier on at or above this humidity (%)", EnvVars: env("DEHUMIDIFIER_ON")},

		&cli.StringFlag{Name: "db-driver", Value: store.DriverMySQL, Usage: "Database driver (mysql or sqlite3)", EnvVars: env("DB_DRIVER")},
		&cli.StringFlag{Name: "db-dsn", Value: "sensor:sensor@tcp(127.0.0.1:3306)/sensor_hub", Usage: "Database DSN", EnvVars: env("DB_DSN")},
		&cli.StringFlag{Name: "broker", Usage: "MQTT broker address (empty to disable)", EnvVars: env("BROKER")},
		&cli.StringFlag{Name: "http", Value: ":8080", Usage: "HTTP address (empty to disable)", EnvVars: env("HTTP")},
		&cli.IntFlag{Name: "history-limit", Value: store.DefaultHistoryLimit, Usage: "Readings per history window", EnvVars: env("HISTORY_LIMIT")},

		&cli.BoolFlag{Name: "print-state", Usage: "Print current sensor readings and exit"},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level", EnvVars: env("LOG_LEVEL")},
	}
}

func configFromCLI(c *cli.Context) (config, error) {
	cfg := config{
		Chip:      c.String("chip"),
		DHTDevice: c.String("dht-device"),
		Pins: gpio.Pins{
			Trigger: c.Int("pin-trigger"),
			Echo:    c.Int("pin-echo"),
			Touch:   c.Int("pin-touch"),
			Actuators: map[logic.ActuatorID]int{
				logic.Aircon:       c.Int("pin-aircon"),
				logic.Heater:       c.Int("pin-heater"),
				logic.Dehumidifier: c.Int("pin-dehumidifier"),
			},
		},
		EchoTimeout:      c.Duration("echo-timeout"),
		AlertThreshold:   c.Float64("alert-threshold"),
		DistanceInterval: c.Duration("distance-interval"),
		Poll:             c.Duration("poll"),
		TouchDebounce:    c.Duration("touch-debounce"),
		Heartbeat:        c.Duration("heartbeat"),
		DHTAttempts:      c.Int("dht-attempts"),
		DHTBackoff:       c.Duration("dht-backoff"),
		Thresholds: logic.Thresholds{
			AirconOnAt:       c.Float64("aircon-on"),
			HeaterOnAt:       c.Float64("heater-on"),
			DehumidifierOnAt: c.Float64("dehumidifier-on"),
		},
		DBDriver:     c.String("db-driver"),
		DBDSN:        c.String("db-dsn"),
		Broker:       c.String("broker"),
		HTTPAddr:     c.String("http"),
		HistoryLimit: c.Int("history-limit"),
		PrintState:   c.Bool("print-state"),
		LogLevel:     c.String("log-level"),
	}
	return cfg, cfg.validate()
}

func (cfg config) validate() error {
	if err := cfg.Pins.Validate(); err != nil {
		return fmt.Errorf("pins: %w", err)
	}
	for name, d := range map[string]time.Duration{
		"echo-timeout":      cfg.EchoTimeout,
		"distance-interval": cfg.DistanceInterval,
		"poll":              cfg.Poll,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if cfg.TouchDebounce < 0 || cfg.DHTBackoff < 0 || cfg.Heartbeat < 0 {
		return errors.New("touch-debounce, dht-backoff and heartbeat must not be negative")
	}
	if cfg.DHTAttempts < 1 {
		return fmt.Errorf("dht-attempts must be at least 1, got %d", cfg.DHTAttempts)
	}
	if cfg.AlertThreshold <= 0 || cfg.AlertThreshold >= logic.MaxDistance {
		return fmt.Errorf("alert-threshold must be within (0, %v) cm, got %v", logic.MaxDistance, cfg.AlertThreshold)
	}
	if cfg.Thresholds.HeaterOnAt >= cfg.Thresholds.AirconOnAt {
		return fmt.Errorf("heater-on (%v) must be below aircon-on (%v)", cfg.Thresholds.HeaterOnAt, cfg.Thresholds.AirconOnAt)
	}
	if cfg.HistoryLimit < 1 {
		return fmt.Errorf("history-limit must be at least 1, got %d", cfg.HistoryLimit)
	}
	return nil
}

func (cfg config) statusConfig() status.Config {
	return status.Config{
		PollMs:           cfg.Poll.Milliseconds(),
		DistancePollMs:   cfg.DistanceInterval.Milliseconds(),
		DebounceMs:       cfg.TouchDebounce.Milliseconds(),
		HeartbeatMs:      cfg.Heartbeat.Milliseconds(),
		AlertThresholdCm: cfg.AlertThreshold,
		Thresholds:       cfg.Thresholds,
		Broker:           cfg.Broker,
		HTTPAddr:         cfg.HTTPAddr,
	}
}
