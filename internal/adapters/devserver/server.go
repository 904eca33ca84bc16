// Package devserver is an in-memory stand-in for the tracker backend's modes
// and timer API. It serves the same routes the tracker client calls so the
// CLI can run offline and tests can exercise real HTTP round-trips.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/xvierd/focus-cli/internal/ports"
	"go.uber.org/zap"
)

// Mode names reported by /api/modes/status.
const (
	ModeStandard = "standard"
	ModeFocus    = "focus"
)

var knownSettings = map[string]bool{
	ports.SettingAllowedApps:        true,
	ports.SettingBlockedApps:        true,
	ports.SettingMinimizedApps:      true,
	ports.SettingDuration:           true,
	ports.SettingDistractionBlocker: true,
}

type timerState struct {
	running   bool
	startedAt time.Time
	limit     float64
	// elapsed is frozen when the timer stops or expires.
	elapsed float64
}

// Server holds the simulated backend state.
type Server struct {
	mu        sync.Mutex
	router    *mux.Router
	now       func() time.Time
	logger    *zap.Logger
	mode      string
	focusType string
	timer     timerState
	settings  map[string]map[string]any
	failures  map[string]int
	calls     []string
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger attaches a request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a stand-in backend in standard mode with no timer.
func New(opts ...Option) *Server {
	s := &Server{
		now:      time.Now,
		logger:   zap.NewNop(),
		mode:     ModeStandard,
		settings: make(map[string]map[string]any),
		failures: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recordCall)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/modes/status", s.handleModeStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/modes/focus/{focusType}", s.handleFocus).Methods(http.MethodPost)
	r.HandleFunc("/api/modes/standard/normal", s.handleStandard).Methods(http.MethodPost)
	r.HandleFunc("/api/modes/timer/start", s.handleTimerStart).Methods(http.MethodPost)
	r.HandleFunc("/api/modes/timer/stop", s.handleTimerStop).Methods(http.MethodPost)
	r.HandleFunc("/api/modes/timer/status", s.handleTimerStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/modes/settings/{modeKey}", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/modes/settings/{modeKey}/{setting}", s.handlePutSetting).Methods(http.MethodPut)
	return r
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// FailWith makes every request to method+path answer with status until
// ClearFailures is called.
func (s *Server) FailWith(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

// Calls returns every request seen so far as "METHOD /path".
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CountCalls returns how many times method+path was requested.
func (s *Server) CountCalls(method, path string) int {
	want := method + " " + path
	n := 0
	for _, c := range s.Calls() {
		if c == want {
			n++
		}
	}
	return n
}

// Mode returns the current mode and focus type.
func (s *Server) Mode() (mode, focusType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.focusType
}

// Settings returns a copy of the stored settings for modeKey.
func (s *Server) Settings(modeKey string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.settings[modeKey]))
	for k, v := range s.settings[modeKey] {
		out[k] = v
	}
	return out
}

// PutSettings seeds settings for modeKey.
func (s *Server) PutSettings(modeKey string, values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings[modeKey] == nil {
		s.settings[modeKey] = make(map[string]any)
	}
	for k, v := range values {
		s.settings[modeKey][k] = v
	}
}

func (s *Server) recordCall(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls = append(s.calls, key)
		status, fail := s.failures[key]
		s.mu.Unlock()

		s.logger.Debug("devserver request", zap.String("call", key))
		if fail {
			writeJSON(w, status, map[string]string{"error": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModeStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":       s.mode,
		"focus_type": s.focusType,
		"is_timing":  s.timerLocked().IsTiming,
	})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	focusType := mux.Vars(r)["focusType"]
	s.mu.Lock()
	s.mode = ModeFocus
	s.focusType = focusType
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"mode": ModeFocus, "focus_type": focusType})
}

func (s *Server) handleStandard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.mode = ModeStandard
	s.focusType = ""
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"mode": ModeStandard})
}

func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Duration float64 `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Duration <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "duration must be a positive number of minutes"})
		return
	}

	s.mu.Lock()
	s.timer = timerState{running: true, startedAt: s.now(), limit: body.Duration}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"started": true, "time_limit": body.Duration})
}

func (s *Server) handleTimerStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.timerLocked()
	s.timer.running = false
	s.timer.elapsed = status.ElapsedSeconds
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"stopped": true})
}

func (s *Server) handleTimerStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.timerLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, status)
}

// timerLocked computes the timer reading and expires it once the limit is
// reached. Callers hold s.mu.
func (s *Server) timerLocked() ports.TimerStatus {
	if !s.timer.running {
		return ports.TimerStatus{ElapsedSeconds: s.timer.elapsed, TimeLimit: s.timer.limit}
	}
	elapsed := s.now().Sub(s.timer.startedAt).Seconds()
	if limit := s.timer.limit * 60; elapsed >= limit {
		s.timer.running = false
		s.timer.elapsed = limit
		return ports.TimerStatus{ElapsedSeconds: limit, TimeLimit: s.timer.limit}
	}
	return ports.TimerStatus{IsTiming: true, ElapsedSeconds: elapsed, TimeLimit: s.timer.limit}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings(mux.Vars(r)["modeKey"]))
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	setting := vars["setting"]
	if !knownSettings[setting] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown setting " + setting})
		return
	}

	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Value) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing value"})
		return
	}
	value, err := decodeSetting(setting, body.Value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.PutSettings(vars["modeKey"], map[string]any{setting: value})
	writeJSON(w, http.StatusOK, map[string]any{"updated": setting})
}

// decodeSetting type-checks a setting value the way the backend would.
func decodeSetting(setting string, raw json.RawMessage) (any, error) {
	switch setting {
	case ports.SettingDuration:
		var minutes int
		if err := json.Unmarshal(raw, &minutes); err != nil || minutes <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", setting)
		}
		return minutes, nil
	case ports.SettingDistractionBlocker:
		var on bool
		if err := json.Unmarshal(raw, &on); err != nil {
			return nil, fmt.Errorf("%s must be a boolean", setting)
		}
		return on, nil
	default:
		var apps []string
		if err := json.Unmarshal(raw, &apps); err != nil {
			return nil, fmt.Errorf("%s must be a list of app names", setting)
		}
		if apps == nil {
			apps = []string{}
		}
		return apps, nil
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Describe renders the mode for logs and CLI output.
func Describe(mode, focusType string) string {
	if focusType == "" {
		return mode
	}
	return mode + ":" + strings.ReplaceAll(focusType, "_", "-")
}
