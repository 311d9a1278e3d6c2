// Package api provides the HTTP observer for a live model.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
// /api/v1/ws streams every completed day over a websocket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/persistence"
)

const (
	maxStreamConns = 8
	maxStepDays    = 1000
)

// Update is one streamed day.
type Update struct {
	Summary engine.Summary `json:"summary"`
	Frame   engine.Frame   `json:"frame"`
}

// Server serves a runner's model over HTTP.
type Server struct {
	Runner   *engine.Runner
	DB       *persistence.DB // Optional; enables /snapshot
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	upgrader    websocket.Upgrader
	streamConns int32

	mu      sync.Mutex
	history []engine.Summary
	subs    map[int]chan Update
	nextSub int
}

// NewServer creates a server over r and registers it for day callbacks.
// Register before the runner starts.
func NewServer(r *engine.Runner, adminKey string) *Server {
	s := &Server{
		Runner:   r,
		AdminKey: adminKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[int]chan Update),
	}
	r.Do(func(m engine.Model) { s.history = []engine.Summary{m.Summary()} })
	r.OnDay = append(r.OnDay, s.publish)
	return s
}

// publish records the day and fans it out. It runs under the runner lock,
// so slow subscribers drop updates instead of blocking the model.
func (s *Server) publish(sum engine.Summary, f engine.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, sum)
	u := Update{Summary: sum, Frame: f}
	for id, ch := range s.subs {
		select {
		case ch <- u:
		default:
			slog.Debug("stream subscriber lagging, update dropped", "sub", id, "day", sum.Day)
		}
	}
}

func (s *Server) subscribe() (int, <-chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Update, 16)
	s.subs[id] = ch
	return id, ch
}

func (s *Server) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	stepLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/frame", s.handleFrame)
	mux.HandleFunc("/api/v1/ws", s.handleStream)

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/step", s.adminOnly(RateLimitMiddleware(stepLimiter, s.handleStep)))
	mux.HandleFunc("/api/v1/infect", s.adminOnly(s.handleInfect))
	mux.HandleFunc("/api/v1/reset", s.adminOnly(s.handleReset))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CONTAGION_CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CONTAGION_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Runner.Do(func(m engine.Model) {
		sum := m.Summary()
		status = map[string]any{
			"model":       m.Kind(),
			"day":         m.Day(),
			"run":         s.RunID,
			"speed":       s.Runner.Speed,
			"susceptible": sum.Susceptible,
			"infected":    sum.Infected,
			"recovered":   sum.Recovered,
			"total":       sum.Total(),
		}
	})
	writeJSON(w, status)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]engine.Summary(nil), s.history...)
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	var f engine.Frame
	s.Runner.Do(func(m engine.Model) { f = m.Frame() })
	writeJSON(w, f)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Runner.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Runner.CurrentSpeed()})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Days < 1 || req.Days > maxStepDays {
		http.Error(w, fmt.Sprintf("days must be 1-%d", maxStepDays), http.StatusBadRequest)
		return
	}
	sum := s.Runner.Advance(req.Days)
	slog.Info("stepped by admin", "days", req.Days, "now", sum.String())
	writeJSON(w, sum)
}

func (s *Server) handleInfect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Count *int        `json:"count,omitempty"`
		IDs   []agents.ID `json:"ids,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var seed engine.SeedRequest
	switch {
	case len(req.IDs) > 0 && req.Count == nil:
		seed = engine.ByIDs(req.IDs...)
	case len(req.IDs) == 0 && req.Count != nil:
		// Count 0 is a valid no-op; negative counts are rejected by the model.
		seed = engine.ByCount(*req.Count)
	default:
		http.Error(w, "give exactly one of count or ids", http.StatusBadRequest)
		return
	}

	var err error
	var sum engine.Summary
	s.Runner.Do(func(m engine.Model) {
		err = m.ExogenousInfect(seed)
		sum = m.Summary()
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.amendToday(sum)
	writeJSON(w, sum)
}

// amendToday replaces the history row for sum.Day after an out-of-band
// change to the current day's counts.
func (s *Server) amendToday(sum engine.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.history); n > 0 && s.history[n-1].Day == sum.Day {
		s.history[n-1] = sum
		return
	}
	s.history = append(s.history, sum)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var sum engine.Summary
	s.Runner.Do(func(m engine.Model) {
		m.Reset()
		sum = m.Summary()
	})
	s.mu.Lock()
	s.history = []engine.Summary{sum}
	s.mu.Unlock()
	slog.Info("model reset by admin")
	writeJSON(w, sum)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil || s.RunID == "" {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var err error
	var day int
	s.Runner.Do(func(m engine.Model) {
		day = m.Day()
		err = s.DB.SaveState(s.RunID, m)
	})
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"run":     s.RunID,
		"day":     day,
		"message": "snapshot saved",
	})
}

// handleStream upgrades to a websocket, sends the current day, then pushes
// an Update for every completed day until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	defer atomic.AddInt32(&s.streamConns, -1)
	if current > maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, ch := s.subscribe()
	defer s.unsubscribe(id)

	var first Update
	s.Runner.Do(func(m engine.Model) { first = Update{Summary: m.Summary(), Frame: m.Frame()} })
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(first); err != nil {
		return
	}
	slog.Info("stream client connected", "sub", id)

	// Reader: detect close; clients send nothing else.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case u := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
