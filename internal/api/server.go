// Package api provides the HTTP control API for the injection daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"hidject/internal/config"
	"hidject/internal/inject"
	"hidject/internal/store"
	"hidject/internal/switcher"
	"hidject/internal/task"
)

// Service is the name reported by /health and checked by discovery.
const Service = "hidject"

// Controller drives the injection runner.
type Controller interface {
	Start() (string, error)
	Stop() error
	Status() inject.Status
}

// TaskStore is the persistent task queue.
type TaskStore interface {
	Append(tasks ...task.Task) ([]store.Entry, error)
	List() ([]store.Entry, error)
	Flush() error
}

// Options are the collaborators of a Server. Switcher and Metrics are
// optional; Controller may be attached later with SetController.
type Options struct {
	Controller Controller
	Tasks      TaskStore
	Config     *config.Manager
	Switcher   *switcher.Switcher
	Metrics    http.Handler
}

// Server provides HTTP API for remote control
type Server struct {
	ctrl      Controller
	tasks     TaskStore
	configMgr *config.Manager
	switcher  *switcher.Switcher
	metrics   http.Handler
	wsMgr     *WSManager
	http      *http.Server
}

// NewServer creates a new API server and starts its WebSocket hub.
func NewServer(opts Options) *Server {
	s := &Server{
		ctrl:      opts.Controller,
		tasks:     opts.Tasks,
		configMgr: opts.Config,
		switcher:  opts.Switcher,
		metrics:   opts.Metrics,
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()
	// Built up front so Shutdown never races Start.
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.switcher != nil {
		s.switcher.OnSwitch(s.wsMgr.BroadcastMode)
	}
	return s
}

// SetController attaches the runner when it is created after the server.
// Call it before the runner receives events.
func (s *Server) SetController(c Controller) {
	s.ctrl = c
}

// Observer returns the WebSocket broadcaster for registration with the runner.
func (s *Server) Observer() inject.Observer {
	return s.wsMgr
}

// Handler returns the API routes wrapped in auth and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/flush", s.handleFlush)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start starts the API server on the specified port. It blocks until
// Shutdown is called or the listener fails.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorf("API server failed to listen on %s: %v", addr, err)
		return err
	}
	log.Infof("Starting API server on %s", ln.Addr())

	// This is blocking
	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Errorf("API server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and the WebSocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()
	return s.http.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.WithField("path", r.URL.Path).Errorf("API: recovered from panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if token := s.token(); token != "" {
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) token() string {
	if s.configMgr == nil {
		return ""
	}
	return s.configMgr.Get().API.Token
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleHealth handles GET /health (for monitoring and discovery)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": Service})
}

type statusResponse struct {
	inject.Status
	Mode       string `json:"mode"`
	ModeTarget string `json:"mode_target,omitempty"`
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	resp := statusResponse{Status: s.ctrl.Status(), Mode: string(switcher.ModeInject)}
	if s.switcher != nil {
		mode, addr := s.switcher.Mode()
		resp.Mode = string(mode)
		if !addr.IsZero() {
			resp.ModeTarget = addr.String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStart handles POST /api/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if s.switcher != nil {
		s.switcher.EnterInject()
	}
	runID, err := s.ctrl.Start()
	switch {
	case errors.Is(err, inject.ErrNotIdle):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, inject.ErrNotInitialized):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Infof("API: Injection run %s started by %s", runID, r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "run_id": runID})
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.ctrl.Stop(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type taskEntry struct {
	store.Entry
	Task json.RawMessage `json:"task"`
}

func renderEntries(entries []store.Entry) ([]taskEntry, error) {
	out := make([]taskEntry, 0, len(entries))
	for _, e := range entries {
		raw, err := task.Marshal(e.Task)
		if err != nil {
			return nil, err
		}
		out = append(out, taskEntry{Entry: e, Task: raw})
	}
	return out, nil
}

// decodeTasks accepts a single task object or an array of them.
func decodeTasks(body []byte) ([]task.Task, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.New("empty body")
	}
	var raws []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, err
		}
	} else {
		raws = []json.RawMessage{json.RawMessage(trimmed)}
	}

	tasks := make([]task.Task, 0, len(raws))
	for i, raw := range raws {
		t, err := task.Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// handleTasks handles GET (list) and POST (append) for the task queue
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.tasks.List()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out, err := renderEntries(entries)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tasks, err := decodeTasks(body)
		if err != nil {
			http.Error(w, "Invalid task data: "+err.Error(), http.StatusBadRequest)
			return
		}
		entries, err := s.tasks.Append(tasks...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Infof("API: Queued %d task(s) from %s", len(entries), r.RemoteAddr)
		out, err := renderEntries(entries)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, out)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFlush handles POST /api/tasks/flush
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if s.ctrl.Status().Executing {
		http.Error(w, "injection in progress", http.StatusConflict)
		return
	}
	if err := s.tasks.Flush(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConfig handles GET /api/config. The API token is never returned.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.configMgr == nil {
		http.Error(w, "no configuration", http.StatusNotFound)
		return
	}
	cfg := s.configMgr.Get()
	cfg.API.Token = ""
	writeJSON(w, http.StatusOK, cfg)
}
