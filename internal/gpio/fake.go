package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/sensor-hub/internal/logic"
)

// FakeLine is a test double that returns scripted levels and records writes.
type FakeLine struct {
	mu sync.Mutex

	// Values contains scripted levels. Each call to Value() consumes the
	// next one. When exhausted, the last value repeats, or the script
	// restarts if Loop is set.
	Values []int
	Loop   bool

	// Writes records every SetValue call.
	Writes []int

	// ReadError / WriteError, if set, are returned by Value / SetValue.
	ReadError  error
	WriteError error

	index int
}

// NewFakeLine creates a FakeLine with the given script.
func NewFakeLine(values ...int) *FakeLine {
	return &FakeLine{Values: values}
}

// Value returns the next scripted level.
func (l *FakeLine) Value() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ReadError != nil {
		return 0, l.ReadError
	}
	if len(l.Values) == 0 {
		return 0, errors.New("no values configured")
	}

	v := l.Values[l.index]
	switch {
	case l.index < len(l.Values)-1:
		l.index++
	case l.Loop:
		l.index = 0
	}
	return v, nil
}

// SetValue records the write.
func (l *FakeLine) SetValue(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.WriteError != nil {
		return l.WriteError
	}
	l.Writes = append(l.Writes, v)
	return nil
}

// WrittenValues returns a copy of the recorded writes.
func (l *FakeLine) WrittenValues() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.Writes...)
}

// Last returns the most recent write, or -1 if none.
func (l *FakeLine) Last() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Writes) == 0 {
		return -1
	}
	return l.Writes[len(l.Writes)-1]
}

// FakeEnvSensor returns scripted environment results.
type FakeEnvSensor struct {
	mu      sync.Mutex
	Results []EnvResult
	Calls   int
}

// EnvResult is one scripted environment read.
type EnvResult struct {
	Env Environment
	Err error
}

// Read returns the next scripted result, repeating the last when exhausted.
func (s *FakeEnvSensor) Read() (Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Results) == 0 {
		return Environment{}, errors.New("no results configured")
	}
	i := s.Calls
	if i >= len(s.Results) {
		i = len(s.Results) - 1
	}
	s.Calls++
	r := s.Results[i]
	return r.Env, r.Err
}

// DistanceResult is one scripted ranging result.
type DistanceResult struct {
	Cm  float64
	Err error
}

// ActuatorWrite records a SetActuator call.
type ActuatorWrite struct {
	ID    logic.ActuatorID
	Power logic.Power
}

// FakeHardware is a scripted Hardware for loop and controller tests.
type FakeHardware struct {
	mu sync.Mutex

	Distances []DistanceResult
	Envs      []EnvResult
	Touches   []int

	// TouchError, if set, is returned by ReadTouch.
	TouchError error

	Writes []ActuatorWrite
	Closed bool

	distIdx, envIdx, touchIdx int
	envCalls                  int
}

// NewFakeHardware creates an empty FakeHardware.
func NewFakeHardware() *FakeHardware {
	return &FakeHardware{}
}

// ReadDistance returns the next scripted distance.
func (h *FakeHardware) ReadDistance() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Distances) == 0 {
		return 0, ErrEchoTimeout
	}
	r := h.Distances[next(&h.distIdx, len(h.Distances))]
	return r.Cm, r.Err
}

// ReadEnvironment returns the next scripted environment result.
func (h *FakeHardware) ReadEnvironment() (Environment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.envCalls++
	if len(h.Envs) == 0 {
		return Environment{}, ErrTransient
	}
	r := h.Envs[next(&h.envIdx, len(h.Envs))]
	return r.Env, r.Err
}

// ReadTouch returns the next scripted touch level.
func (h *FakeHardware) ReadTouch() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.TouchError != nil {
		return 0, h.TouchError
	}
	if len(h.Touches) == 0 {
		return 0, nil
	}
	return h.Touches[next(&h.touchIdx, len(h.Touches))], nil
}

// SetActuator records the write.
func (h *FakeHardware) SetActuator(id logic.ActuatorID, p logic.Power) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Writes = append(h.Writes, ActuatorWrite{ID: id, Power: p})
}

// Close marks the hardware as closed.
func (h *FakeHardware) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Closed = true
	return nil
}

// ActuatorWrites returns a copy of the recorded actuator writes.
func (h *FakeHardware) ActuatorWrites() []ActuatorWrite {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ActuatorWrite(nil), h.Writes...)
}

// EnvCalls returns how many times ReadEnvironment was called.
func (h *FakeHardware) EnvCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.envCalls
}

// next returns the current index and advances it, sticking at the last entry.
func next(idx *int, n int) int {
	i := *idx
	if i < n-1 {
		*idx++
	}
	return i
}
