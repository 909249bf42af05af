package logic

import (
	"errors"
	"math"
	"testing"
)

func TestClassifyDistance(t *testing.T) {
	tests := []struct {
		name      string
		cm        float64
		ok        bool
		wantDist  float64
		wantAlert bool
	}{
		{"near", 5.04, true, 5.0, true},
		{"at threshold", 10.0, true, 10.0, true},
		{"just beyond threshold", 10.1, true, 10.1, false},
		{"far", 123.456, true, 123.5, false},
		{"at ceiling", 400.0, true, OutOfRange, false},
		{"beyond ceiling", 812.3, true, OutOfRange, false},
		{"rounds up to ceiling", 399.96, true, OutOfRange, false},
		{"timeout", 0, false, OutOfRange, false},
		{"timeout with near value", 3, false, OutOfRange, false},
		{"negative", -3, true, OutOfRange, false},
		{"nan", math.NaN(), true, OutOfRange, false},
		{"zero is valid", 0, true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, alert := ClassifyDistance(tt.cm, tt.ok, 10)
			if d != tt.wantDist {
				t.Errorf("distance: got %v, want %v", d, tt.wantDist)
			}
			if alert != tt.wantAlert {
				t.Errorf("alert: got %v, want %v", alert, tt.wantAlert)
			}
		})
	}
}

func TestOutOfRangeNeverAlerts(t *testing.T) {
	for cm := 400.0; cm < 2000; cm += 7.3 {
		if _, alert := ClassifyDistance(cm, true, 1000); alert {
			t.Fatalf("cm=%.1f: alert raised for out-of-range distance", cm)
		}
	}
}

func TestValidRanges(t *testing.T) {
	if !ValidTemperature(-10) || !ValidTemperature(50) || ValidTemperature(50.1) || ValidTemperature(-10.1) {
		t.Error("temperature range should be [-10, 50]")
	}
	if !ValidHumidity(0) || !ValidHumidity(100) || ValidHumidity(100.1) || ValidHumidity(-0.1) {
		t.Error("humidity range should be [0, 100]")
	}
	if ValidTemperature(math.NaN()) || ValidHumidity(math.NaN()) {
		t.Error("NaN must be invalid")
	}
}

func TestParseActuator(t *testing.T) {
	got, err := ParseActuator("Heater")
	if err != nil || got != Heater {
		t.Errorf("ParseActuator(Heater): got (%q, %v), want heater", got, err)
	}
	if _, err := ParseActuator("fan"); !errors.Is(err, ErrUnknownActuator) {
		t.Errorf("ParseActuator(fan): got %v, want ErrUnknownActuator", err)
	}
}

func TestParsePower(t *testing.T) {
	for in, want := range map[string]Power{"on": PowerOn, "ON": PowerOn, "off": PowerOff, " Off ": PowerOff} {
		got, err := ParsePower(in)
		if err != nil || got != want {
			t.Errorf("ParsePower(%q): got (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParsePower("toggle"); !errors.Is(err, ErrInvalidPower) {
		t.Errorf("ParsePower(toggle): got %v, want ErrInvalidPower", err)
	}
}

func TestParseModeAndKind(t *testing.T) {
	if m, err := ParseMode("manual"); err != nil || m != ModeManual {
		t.Errorf("ParseMode(manual): got (%q, %v)", m, err)
	}
	if _, err := ParseMode("eco"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode(eco): got %v, want ErrInvalidMode", err)
	}
	if k, err := ParseKind("Humidity"); err != nil || k != KindHumidity {
		t.Errorf("ParseKind(Humidity): got (%q, %v)", k, err)
	}
	if _, err := ParseKind("pressure"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(pressure): got %v, want ErrUnknownKind", err)
	}
}

func TestPowerLevels(t *testing.T) {
	if PowerOn.Level() != 1 || PowerOff.Level() != 0 {
		t.Error("ON must map to 1, OFF to 0")
	}
	if PowerFromLevel(1) != PowerOn || PowerFromLevel(0) != PowerOff {
		t.Error("PowerFromLevel mismatch")
	}
}
