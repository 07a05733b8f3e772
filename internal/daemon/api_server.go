package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"splicer/internal/config"
	"splicer/internal/eventlog"
	"splicer/internal/logging"
	"splicer/internal/splice"
)

// apiStatus is the JSON shape of GET /api/status.
type apiStatus struct {
	Running       bool             `json:"running"`
	PID           int              `json:"pid"`
	RunID         string           `json:"run_id,omitempty"`
	Target        string           `json:"output_target"`
	Triggers      []string         `json:"triggers,omitempty"`
	ClockState    string           `json:"clock_state"`
	RunningTimeMS int64            `json:"running_time_ms"`
	Window        string           `json:"window"`
	WindowStartID uint32           `json:"window_start_id,omitempty"`
	WindowEndMS   int64            `json:"window_end_ms,omitempty"`
	LastEventID   uint32           `json:"last_event_id"`
	Dropped       uint64           `json:"dropped_requests"`
	Summary       eventlog.Summary `json:"summary"`
}

type apiTriggerRequest struct {
	LeadMillis     int64 `json:"lead_ms"`
	DurationMillis int64 `json:"duration_ms"`
}

type apiMatchRequest struct {
	Reference string `json:"reference"`
}

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	// done is closed by stop so the context watcher of the current start
	// exits with it.
	done chan struct{}
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}
	return &apiServer{
		bind:   bind,
		token:  cfg.API.Token,
		logger: logger,
		daemon: d,
	}, nil
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/events", authMiddleware(s.token, s.handleEvents))
	mux.HandleFunc("/api/trigger", authMiddleware(s.token, s.handleTrigger))
	mux.HandleFunc("/api/match", authMiddleware(s.token, s.handleMatch))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	done := make(chan struct{})
	s.listener = listener
	s.server = server
	s.done = done

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.stop()
		case <-done:
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server, done := s.server, s.done
	s.server = nil
	s.listener = nil
	s.done = nil
	s.mu.Unlock()
	if done != nil {
		close(done)
	}
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := apiStatus{
		Running:       status.Running,
		PID:           status.PID,
		RunID:         status.RunID,
		Target:        status.Target,
		Triggers:      status.Triggers,
		ClockState:    status.ClockState,
		RunningTimeMS: status.RunningTime.Milliseconds(),
		Window:        status.Window.State.String(),
		LastEventID:   uint32(status.LastEventID),
		Dropped:       status.Dropped,
		Summary:       status.Summary,
	}
	if status.Window.State == splice.WindowActive {
		payload.WindowStartID = uint32(status.Window.StartID)
		payload.WindowEndMS = status.Window.EndTime.Milliseconds()
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	failed := parseBool(query.Get("failed"))
	all := parseBool(query.Get("all"))

	entries, err := s.daemon.RecentEvents(r.Context(), limit, failed, all)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []eventlog.Entry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

func (s *apiServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req apiTriggerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	err := s.daemon.ManualTrigger(
		time.Duration(req.LeadMillis)*time.Millisecond,
		time.Duration(req.DurationMillis)*time.Millisecond,
	)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *apiServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req apiMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.daemon.ReportMatch(req.Reference); err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, splice.ErrWindowActive):
		return http.StatusConflict
	case errors.Is(err, splice.ErrInvalidDuration):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func parseBool(value string) bool {
	value = strings.TrimSpace(value)
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
