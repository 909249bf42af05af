package web

import (
	"encoding/json"
	"net/http"

	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/status"
	"github.com/sweeney/sensor-hub/internal/store"
)

const outOfRange = "Out of Range"

// manualOnlyMessage is shown to UI clients when a manual request is refused.
const manualOnlyMessage = "Only available in Manual mode."

// ActionJSON is the response to mode and control requests.
type ActionJSON struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode,omitempty"`
	Message string `json:"message,omitempty"`
}

// DistanceJSON is the /getdistance response. Value is a number, or the
// string "Out of Range".
type DistanceJSON struct {
	Value any  `json:"value"`
	Alert bool `json:"alert"`
}

// TouchJSON is the /gettouch response.
type TouchJSON struct {
	Touched bool `json:"touched"`
}

// HistoryJSON is the /history/{kind} response. Labels and values are
// chronological, ready for charting.
type HistoryJSON struct {
	store.History
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

func distanceJSON(snap status.Snapshot) DistanceJSON {
	if logic.IsOutOfRange(snap.Distance) {
		return DistanceJSON{Value: outOfRange}
	}
	return DistanceJSON{Value: snap.Distance, Alert: snap.ProximityAlert}
}

func historyJSON(h store.History) HistoryJSON {
	out := HistoryJSON{
		History: h,
		Labels:  make([]string, 0, len(h.Readings)),
		Values:  make([]float64, 0, len(h.Readings)),
	}
	for _, r := range h.Readings {
		out.Labels = append(out.Labels, r.ObservedAt.Local().Format("01-02 15:04"))
		out.Values = append(out.Values, r.Value)
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
