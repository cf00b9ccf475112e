// Package server exposes pass results over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobwatch/internal/metrics"
	"jobwatch/internal/models"
	"jobwatch/internal/report"
	"jobwatch/internal/storage"
)

// Server wraps HTTP serving of the API, metrics and rendered reports.
type Server struct {
	httpServer   *http.Server
	storage      *storage.StatusStorage
	registry     *prometheus.Registry
	reportsDir   string
	historyLimit int

	mu          sync.Mutex
	subscribers map[chan struct{}]struct{}
}

// New creates a configured HTTP server. registry may be nil when metrics
// are not collected.
func New(addr string, storage *storage.StatusStorage, registry *prometheus.Registry, reportsDir string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux},
		storage:      storage,
		registry:     registry,
		reportsDir:   reportsDir,
		historyLimit: 200,
		subscribers:  make(map[chan struct{}]struct{}),
	}
	s.registerRoutes(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Publish tells connected websocket clients that a new pass is stored.
func (s *Server) Publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Server) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan struct{}) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/reports/"+report.StatusDir+"/index.html", http.StatusFound)
	}))
	if s.reportsDir != "" {
		mux.Handle("/reports/", http.StripPrefix("/reports/", http.FileServer(http.Dir(s.reportsDir))))
	}
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/api/status", s.handleLatest)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/uptime", s.handleUptime)
	mux.HandleFunc("/api/overview", s.handleOverview)
	mux.HandleFunc("/ws", s.handleOverviewWS)
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	entry, ok := s.storage.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp": nil,
			"checks":    []models.WatchStatus{},
		})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	history := s.storage.HistoryN(limit)
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	history := s.storage.HistoryN(limit)
	summary := metrics.ComputeWatchUptime(history)
	if summary == nil {
		summary = []metrics.WatchUptime{}
	}
	writeJSON(w, http.StatusOK, summary)
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
