package store

import (
	"context"

	"github.com/sweeney/sensor-hub/internal/logic"
)

// Stats summarises a history window. All zero when the window is empty.
type Stats struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Avg     float64 `json:"avg"`
}

// History is a window of readings in chronological order plus its stats.
type History struct {
	Kind     logic.Kind      `json:"sensor_type"`
	Unit     string          `json:"unit"`
	Readings []logic.Reading `json:"-"`
	Stats    Stats           `json:"stats"`
	HasData  bool            `json:"has_data"`
}

// History returns the most recent limit readings of kind, oldest first.
func (s *Store) History(ctx context.Context, kind logic.Kind, limit int) (History, error) {
	recent, err := s.QueryRecent(ctx, kind, limit)
	if err != nil {
		return History{}, err
	}
	return Summarize(kind, recent), nil
}

// Summarize builds a History from readings ordered most recent first.
func Summarize(kind logic.Kind, recent []logic.Reading) History {
	h := History{Kind: kind, Unit: kind.Unit()}
	if len(recent) == 0 {
		return h
	}

	h.Readings = make([]logic.Reading, len(recent))
	for i, r := range recent {
		h.Readings[len(recent)-1-i] = r
	}

	h.HasData = true
	h.Stats = Stats{Current: recent[0].Value, Max: recent[0].Value, Min: recent[0].Value}
	var sum float64
	for _, r := range recent {
		if r.Value > h.Stats.Max {
			h.Stats.Max = r.Value
		}
		if r.Value < h.Stats.Min {
			h.Stats.Min = r.Value
		}
		sum += r.Value
	}
	h.Stats.Avg = logic.Round1(sum / float64(len(recent)))
	return h
}
