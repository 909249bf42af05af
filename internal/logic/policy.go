package logic

// Thresholds are the fixed cut-offs of the auto-control policy.
type Thresholds struct {
	AirconOnAt       float64 // temperature >= this turns the aircon on
	HeaterOnAt       float64 // temperature <= this turns the heater on
	DehumidifierOnAt float64 // humidity >= this turns the dehumidifier on
}

// DefaultThresholds are the cut-offs used by the hub unless configured otherwise.
var DefaultThresholds = Thresholds{
	AirconOnAt:       28.0,
	HeaterOnAt:       15.0,
	DehumidifierOnAt: 60.0,
}

// Decide maps the current environment to desired actuator states.
// A nil temperature or humidity leaves the actuators it drives out of the result.
//
// The aircon and heater decisions are independent; nothing prevents both
// from being requested at once if the thresholds overlap.
func Decide(temperature, humidity *float64, th Thresholds) map[ActuatorID]Power {
	desired := make(map[ActuatorID]Power, len(Actuators))
	if temperature != nil {
		t := *temperature
		desired[Aircon] = powerIf(t >= th.AirconOnAt)
		desired[Heater] = powerIf(t <= th.HeaterOnAt)
	}
	if humidity != nil {
		desired[Dehumidifier] = powerIf(*humidity >= th.DehumidifierOnAt)
	}
	return desired
}

// Diff returns the changes needed to move current to desired, in actuator
// index order. Actuators already in the desired state produce no change.
func Diff(current, desired map[ActuatorID]Power) []Change {
	var changes []Change
	for _, id := range Actuators {
		want, ok := desired[id]
		if !ok {
			continue
		}
		have, known := current[id]
		if !known {
			continue
		}
		if have != want {
			changes = append(changes, Change{Actuator: id, Power: want})
		}
	}
	return changes
}

func powerIf(b bool) Power {
	if b {
		return PowerOn
	}
	return PowerOff
}
