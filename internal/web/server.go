// Package web provides the HTTP serving layer for the sensor hub: the status
// page, JSON snapshots, mode and actuator control, reading history, a
// websocket live feed and Prometheus metrics.
package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/status"
	"github.com/sweeney/sensor-hub/internal/store"
)

// SourceWeb tags events caused by HTTP requests.
const SourceWeb = "web"

// Controller is the control surface the web layer drives.
// *control.Controller satisfies it.
type Controller interface {
	SetMode(m logic.Mode, source string) bool
	ToggleMode(source string) logic.Mode
	SetActuator(device, action string) error
	WriteOutput(index, level int) error
}

// HistoryReader serves reading history. *store.Store satisfies it.
type HistoryReader interface {
	History(ctx context.Context, kind logic.Kind, limit int) (store.History, error)
}

// Options configures optional parts of the server.
type Options struct {
	// History, if nil, makes /history answer 503.
	History      HistoryReader
	HistoryLimit int

	// PushInterval is the websocket snapshot period.
	PushInterval time.Duration

	// Metrics, if set, is served on /metrics.
	Metrics http.Handler

	// AccessLog receives combined-format request logs. Nil disables them.
	AccessLog io.Writer

	Log logrus.FieldLogger
}

// Server serves the hub over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctrl       Controller
	opts       Options
	log        logrus.FieldLogger

	closeOnce sync.Once
	done      chan struct{} // closed on Shutdown; ends websocket feeds
}

// New creates a Server that reads state from tracker and sends requests to ctrl.
func New(addr string, tracker *status.Tracker, ctrl Controller, opts Options) *Server {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = store.DefaultHistoryLimit
	}
	if opts.PushInterval <= 0 {
		opts.PushInterval = time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	s := &Server{
		tracker: tracker,
		ctrl:    ctrl,
		opts:    opts,
		log:     opts.Log,
		done:    make(chan struct{}),
	}

	var h http.Handler = s.routes()
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(s.log), handlers.PrintRecoveryStack(true))(h)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/data", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/toggle_mode", s.handleToggleMode).Methods(http.MethodPost)
	r.HandleFunc("/mode/{mode}", s.handleSetMode).Methods(http.MethodPost)
	r.HandleFunc("/control/{device}/{action}", s.handleControl).Methods(http.MethodPost)
	r.HandleFunc("/getdistance", s.handleDistance).Methods(http.MethodGet)
	r.HandleFunc("/gettouch", s.handleTouch).Methods(http.MethodGet)
	r.HandleFunc("/history/{kind}", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/{led:[0-9]+}/{state:[0-9]+}", s.handleOutput).Methods(http.MethodGet)
	return r
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown ends websocket feeds and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := renderHTML(&buf, s.tracker.Snapshot()); err != nil {
		s.log.WithError(err).Error("render status page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleToggleMode(w http.ResponseWriter, r *http.Request) {
	m := s.ctrl.ToggleMode(SourceWeb)
	writeJSON(w, http.StatusOK, ActionJSON{Success: true, Mode: string(m)})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	m, err := logic.ParseMode(mux.Vars(r)["mode"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ActionJSON{Message: err.Error()})
		return
	}
	s.ctrl.SetMode(m, SourceWeb)
	writeJSON(w, http.StatusOK, ActionJSON{Success: true, Mode: string(m)})
}

// handleControl answers 200 with a success flag; refusals change nothing.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := s.ctrl.SetActuator(vars["device"], vars["action"])
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ActionJSON{Success: true})
	case errors.Is(err, status.ErrNotManual):
		writeJSON(w, http.StatusOK, ActionJSON{Message: manualOnlyMessage})
	default:
		writeJSON(w, http.StatusOK, ActionJSON{Message: err.Error()})
	}
}

// handleOutput is the raw output write: /{index}/{level}. Invalid writes
// are ignored; the client is always sent back to the status page.
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, errI := strconv.Atoi(vars["led"])
	level, errL := strconv.Atoi(vars["state"])
	if errI == nil && errL == nil {
		if err := s.ctrl.WriteOutput(index, level); err != nil {
			s.log.WithError(err).Debug("raw output write ignored")
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, distanceJSON(s.tracker.Snapshot()))
}

func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TouchJSON{Touched: s.tracker.Snapshot().TouchActive})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind, err := logic.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		http.Error(w, "Invalid sensor type", http.StatusNotFound)
		return
	}
	if s.opts.History == nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	h, err := s.opts.History.History(r.Context(), kind, s.opts.HistoryLimit)
	if err != nil {
		// Storage faults degrade to an empty window.
		s.log.WithError(err).WithField("kind", kind).Error("query history")
		h = store.Summarize(kind, nil)
	}
	writeJSON(w, http.StatusOK, historyJSON(h))
}
