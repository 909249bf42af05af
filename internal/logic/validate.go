package logic

import "math"

// Plausible ranges for the DHT11.
const (
	MinTemperature = -10.0
	MaxTemperature = 50.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// MaxDistance is the HC-SR04 ceiling; anything at or above it is out of range.
const MaxDistance = 400.0

// OutOfRange is the distance sentinel for "no valid measurement". It is
// deliberately distinct from zero.
const OutOfRange = -1.0

// ValidTemperature reports whether t is within the plausible range.
func ValidTemperature(t float64) bool {
	return !math.IsNaN(t) && t >= MinTemperature && t <= MaxTemperature
}

// ValidHumidity reports whether h is within the plausible range.
func ValidHumidity(h float64) bool {
	return !math.IsNaN(h) && h >= MinHumidity && h <= MaxHumidity
}

// ClassifyDistance turns a raw ranging result into the published distance and
// the proximity alert flag. ok=false (timeout or fault) or a distance at or
// beyond MaxDistance yields the OutOfRange sentinel with no alert.
func ClassifyDistance(cm float64, ok bool, alertThreshold float64) (distance float64, alert bool) {
	if !ok || math.IsNaN(cm) || cm < 0 {
		return OutOfRange, false
	}
	d := Round1(cm)
	if d >= MaxDistance {
		return OutOfRange, false
	}
	return d, d <= alertThreshold
}

// IsOutOfRange reports whether d is the OutOfRange sentinel.
func IsOutOfRange(d float64) bool {
	return d == OutOfRange
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
