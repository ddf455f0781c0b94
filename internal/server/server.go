package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/config"
	"github.com/probelab/webprobe/internal/runner"
	"github.com/probelab/webprobe/internal/store"
	"github.com/probelab/webprobe/internal/suite"
)

// Runner is the orchestrator surface the HTTP façade exposes.
type Runner interface {
	StartRun(ctx context.Context, opts runner.Options) (string, error)
	Status(runID string) (runner.StatusInfo, error)
	Result(runID string) (*suite.RunResult, error)
}

// NotificationSource lists stored notifications.
type NotificationSource interface {
	Notifications(limit int) ([]store.Notification, error)
}

// Server exposes test runs over HTTP.
type Server struct {
	cfg           config.ServerConfig
	runner        Runner
	notifications NotificationSource
	log           *logrus.Logger
	http          *http.Server
}

func New(cfg config.ServerConfig, r Runner, n NotificationSource, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{cfg: cfg, runner: r, notifications: n, log: log}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tests/run", s.handleStartRun)
	mux.HandleFunc("GET /api/tests/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /api/tests/results/{id}", s.handleResult)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// ListenAndServe blocks until the server stops or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.http.Addr).Info("http server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type runRequest struct {
	URL            string `json:"url"`
	TestType       string `json:"test_type,omitempty"`
	Healing        bool   `json:"healing,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type runResponse struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	opts := runner.Options{
		URL:      req.URL,
		TestType: suite.TestType(req.TestType),
		Healing:  req.Healing,
	}
	if req.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	// The run outlives this request; it is bounded by its own timeout.
	runID, err := s.runner.StartRun(context.Background(), opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.WithFields(logrus.Fields{"run_id": runID, "url": req.URL}).Info("run started")
	s.writeJSON(w, http.StatusAccepted, runResponse{RunID: runID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.runner.Status(r.PathValue("id"))
	if errors.Is(err, runner.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.runner.Result(r.PathValue("id"))
	switch {
	case errors.Is(err, runner.ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, runner.ErrRunNotFinished):
		s.writeError(w, http.StatusConflict, "run not finished")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil {
		s.writeJSON(w, http.StatusOK, []store.Notification{})
		return
	}
	notifications, err := s.notifications.Notifications(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notifications == nil {
		notifications = []store.Notification{}
	}
	s.writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
