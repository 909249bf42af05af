package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/sensor-hub/internal/control"
	"github.com/sweeney/sensor-hub/internal/gpio"
	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/metrics"
	"github.com/sweeney/sensor-hub/internal/status"
	"github.com/sweeney/sensor-hub/internal/store"
)

type env struct {
	ts    *httptest.Server
	srv   *Server
	state *status.Tracker
	hw    *gpio.FakeHardware
	hist  *fakeHistory
}

type fakeHistory struct {
	readings []logic.Reading // most recent first
	err      error
	limit    int
}

func (f *fakeHistory) History(_ context.Context, kind logic.Kind, limit int) (store.History, error) {
	f.limit = limit
	if f.err != nil {
		return store.History{}, f.err
	}
	return store.Summarize(kind, f.readings), nil
}

func newTestServer(t *testing.T) *env {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:           5000,
		DistancePollMs:   500,
		DebounceMs:       300,
		AlertThresholdCm: 10,
		Thresholds:       logic.DefaultThresholds,
		Broker:           "tcp://192.168.1.200:1883",
		HTTPAddr:         ":8080",
	}
	e := &env{
		state: status.NewTracker(start, cfg, logic.Actuators),
		hw:    gpio.NewFakeHardware(),
		hist:  &fakeHistory{},
	}
	logger, _ := test.NewNullLogger()
	ctrl := control.NewController(e.hw, e.state, logic.DefaultThresholds)
	ctrl.Log = logger
	e.srv = New(":0", e.state, ctrl, Options{
		History:      e.hist,
		PushInterval: 20 * time.Millisecond,
		Metrics:      metrics.New().Handler(),
		Log:          logger,
	})
	e.ts = httptest.NewServer(e.srv.Handler())
	t.Cleanup(e.ts.Close)
	return e
}

func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *env) post(t *testing.T, path string) (*http.Response, ActionJSON) {
	t.Helper()
	resp, err := http.Post(e.ts.URL+path, "", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var res ActionJSON
	json.NewDecoder(resp.Body).Decode(&res)
	return resp, res
}

func TestJSONEndpoints(t *testing.T) {
	e := newTestServer(t)
	temp, hum := 23.4, 55.0
	e.state.SetEnvironment(&temp, &hum)
	e.state.SetDistance(42.5, false)
	e.state.SetMQTTConnected(true)

	for _, path := range []string{"/index.json", "/data"} {
		resp := e.get(t, path)
		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		var sj status.StatusJSON
		if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if sj.Sensors.Temperature == nil || *sj.Sensors.Temperature != 23.4 {
			t.Errorf("%s temperature: got %v", path, sj.Sensors.Temperature)
		}
		if sj.Sensors.Distance == nil || *sj.Sensors.Distance != 42.5 {
			t.Errorf("%s distance: got %v", path, sj.Sensors.Distance)
		}
		if sj.Status.Mode != "AUTO" || sj.Status.Devices["heater"] != "OFF" {
			t.Errorf("%s status: got %+v", path, sj.Status)
		}
		if !sj.DataInitialized || !sj.MQTT.Connected {
			t.Errorf("%s flags: initialized=%v mqtt=%v", path, sj.DataInitialized, sj.MQTT.Connected)
		}
	}
}

func TestHTMLEndpoints(t *testing.T) {
	e := newTestServer(t)
	e.state.SetDistance(5, true)

	for _, path := range []string{"/", "/index.html"} {
		resp := e.get(t, path)
		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
	}

	var buf strings.Builder
	if err := renderHTML(&buf, e.state.Snapshot()); err != nil {
		t.Fatalf("render: %v", err)
	}
	body := buf.String()
	for _, want := range []string{"5.0cm", `class="alert"`, "dev-aircon", "dev-dehumidifier", "--"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	e := newTestServer(t)
	if resp := e.get(t, "/nonexistent/path/here"); resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestToggleMode(t *testing.T) {
	e := newTestServer(t)

	_, res := e.post(t, "/toggle_mode")
	if !res.Success || res.Mode != "MANUAL" {
		t.Errorf("first toggle: %+v", res)
	}
	_, res = e.post(t, "/toggle_mode")
	if res.Mode != "AUTO" || e.state.Mode() != logic.ModeAuto {
		t.Errorf("second toggle: %+v", res)
	}
}

func TestSetMode(t *testing.T) {
	e := newTestServer(t)

	_, res := e.post(t, "/mode/manual")
	if !res.Success || e.state.Mode() != logic.ModeManual {
		t.Errorf("set manual: %+v, mode %s", res, e.state.Mode())
	}
	resp, res := e.post(t, "/mode/party")
	if resp.StatusCode != http.StatusBadRequest || res.Success {
		t.Errorf("bad mode: status %d, %+v", resp.StatusCode, res)
	}
	if e.state.Mode() != logic.ModeManual {
		t.Error("bad mode changed state")
	}
}

func TestControlRequiresManual(t *testing.T) {
	e := newTestServer(t)

	resp, res := e.post(t, "/control/heater/on")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if res.Success || res.Message != "Only available in Manual mode." {
		t.Errorf("response: %+v", res)
	}
	if e.state.Snapshot().Actuators[logic.Heater] != logic.PowerOff {
		t.Error("rejected request changed state")
	}
	if len(e.hw.ActuatorWrites()) != 0 {
		t.Error("rejected request wrote hardware")
	}
}

func TestControlManual(t *testing.T) {
	e := newTestServer(t)
	e.state.SetMode(logic.ModeManual)

	if _, res := e.post(t, "/control/Dehumidifier/ON"); !res.Success {
		t.Fatalf("response: %+v", res)
	}
	if got := e.state.Snapshot().Actuators[logic.Dehumidifier]; got != logic.PowerOn {
		t.Errorf("dehumidifier = %s", got)
	}

	if _, res := e.post(t, "/control/fan/on"); res.Success || res.Message == "" {
		t.Errorf("unknown device: %+v", res)
	}
	if _, res := e.post(t, "/control/heater/maybe"); res.Success || res.Message == "" {
		t.Errorf("bad action: %+v", res)
	}
}

func TestControlRejectsGET(t *testing.T) {
	e := newTestServer(t)
	e.state.SetMode(logic.ModeManual)
	if resp := e.get(t, "/control/heater/on"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestRawOutputRedirects(t *testing.T) {
	e := newTestServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	tests := []struct {
		path      string
		wantWrite bool
	}{
		{"/2/1", true},
		{"/7/1", false},
		{"/0/5", false},
	}
	for _, tt := range tests {
		before := len(e.hw.ActuatorWrites())
		resp, err := client.Get(e.ts.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
			t.Errorf("%s: status %d location %q", tt.path, resp.StatusCode, resp.Header.Get("Location"))
		}
		if wrote := len(e.hw.ActuatorWrites()) > before; wrote != tt.wantWrite {
			t.Errorf("%s: wrote=%v, want %v", tt.path, wrote, tt.wantWrite)
		}
	}
	if e.state.Snapshot().Actuators[logic.Dehumidifier] != logic.PowerOn {
		t.Error("raw write not recorded in state")
	}
}

func TestGetDistance(t *testing.T) {
	e := newTestServer(t)

	var d DistanceJSON
	json.NewDecoder(e.get(t, "/getdistance").Body).Decode(&d)
	if d.Value != "Out of Range" || d.Alert {
		t.Errorf("initial: %+v", d)
	}

	e.state.SetDistance(8.2, true)
	d = DistanceJSON{}
	json.NewDecoder(e.get(t, "/getdistance").Body).Decode(&d)
	if d.Value != 8.2 || !d.Alert {
		t.Errorf("after reading: %+v", d)
	}
}

func TestGetTouch(t *testing.T) {
	e := newTestServer(t)
	e.state.SetTouch(true)

	var tj TouchJSON
	json.NewDecoder(e.get(t, "/gettouch").Body).Decode(&tj)
	if !tj.Touched {
		t.Error("touched = false")
	}
}

func TestHistory(t *testing.T) {
	e := newTestServer(t)
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.hist.readings = []logic.Reading{
		{Kind: logic.KindTemperature, Value: 22, ObservedAt: at.Add(time.Minute)},
		{Kind: logic.KindTemperature, Value: 20, ObservedAt: at},
	}

	resp := e.get(t, "/history/temperature")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var h HistoryJSON
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !h.HasData || h.Stats.Current != 22 || h.Stats.Avg != 21 {
		t.Errorf("history: %+v", h)
	}
	if len(h.Values) != 2 || h.Values[0] != 20 || h.Values[1] != 22 {
		t.Errorf("values not chronological: %v", h.Values)
	}
	if e.hist.limit != store.DefaultHistoryLimit {
		t.Errorf("limit = %d", e.hist.limit)
	}
}

func TestHistoryUnknownKind(t *testing.T) {
	e := newTestServer(t)
	if resp := e.get(t, "/history/pressure"); resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHistoryStorageFault(t *testing.T) {
	e := newTestServer(t)
	e.hist.err = errors.New("connection refused")

	resp := e.get(t, "/history/humidity")
	var h HistoryJSON
	json.NewDecoder(resp.Body).Decode(&h)
	if resp.StatusCode != 200 || h.HasData || len(h.Values) != 0 {
		t.Errorf("status %d, history %+v", resp.StatusCode, h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t)
	resp := e.get(t, "/metrics")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestWebsocketPushesSnapshots(t *testing.T) {
	e := newTestServer(t)
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var first status.StatusJSON
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if first.Status.Mode != "AUTO" {
		t.Errorf("first mode: %s", first.Status.Mode)
	}

	e.state.SetMode(logic.ModeManual)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var next status.StatusJSON
		if err := conn.ReadJSON(&next); err != nil {
			t.Fatalf("read: %v", err)
		}
		if next.Status.Mode == "MANUAL" {
			break
		}
	}
}

func TestShutdownClosesWebsockets(t *testing.T) {
	e := newTestServer(t)
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	e.srv.Shutdown(context.Background())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("close error = %v, want going away", err)
			}
			return
		}
	}
}
