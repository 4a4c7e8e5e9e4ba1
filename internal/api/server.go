// Package api serves the state of a running simulation over HTTP.
// Every endpoint is read-only; paths are pushed live over a websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/relief-mobility/internal/agents"
	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim   *engine.Simulation
	Eng   *engine.Engine
	DB    *persistence.DB // optional
	RunID string
	Addr  string
	Hub   *Hub

	// StreamLimit bounds new stream subscriptions per client per minute.
	StreamLimit int

	http *http.Server
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	limit := s.StreamLimit
	if limit <= 0 {
		limit = 10
	}
	streamLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/run", s.handleRun)
	if s.Hub != nil {
		mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(streamLimiter, s.Hub.ServeHTTP))
	}
	return corsMiddleware(mux)
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	s.http = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "stream", s.Hub != nil)

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown closes every stream subscriber and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Hub != nil {
		s.Hub.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed viewer origins.
// CORS_ORIGINS holds a comma-separated list; localhost dev servers are always
// allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, now, day := s.Sim.Snapshot()
	status := map[string]any{
		"run_id":   s.RunID,
		"sim_time": engine.SimTime(now, s.Sim.DayLength),
		"now":      now,
		"day":      day,
		"agents":   stats.Agents,
		"finished": stats.Finished,
		"halted":   stats.Halted,
		"paths":    stats.Paths,
	}
	if s.Eng != nil {
		status["days"] = s.Eng.Days
		status["speed"] = s.Eng.Speed
		status["running"] = s.Eng.Running()
	}
	if s.Hub != nil {
		status["subscribers"] = s.Hub.Subscribers()
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, _, _ := s.Sim.Snapshot()
	writeJSON(w, stats)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" {
		parsed, err := agents.ParseRole(role)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		role = parsed.String()
	}

	views := s.Sim.Views(role)
	limit := len(views)
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n >= 0 && n < limit {
			limit = n
		}
	}
	writeJSON(w, views[:limit])
}

// handleAgentDetail serves GET /api/v1/agent/{id}.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}
	view, ok := s.Sim.View(agents.AgentID(id))
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			n = v
		}
	}
	writeJSON(w, s.Sim.RecentEvents(n))
}

// handleRun serves the stored metadata of the current run.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil || s.RunID == "" {
		http.Error(w, "persistence disabled", http.StatusNotFound)
		return
	}
	run, err := s.DB.GetRun(s.RunID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	paths, err := s.DB.CountPaths(s.RunID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"run":          run,
		"stored_paths": paths,
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}
