// Package status serves health and readiness endpoints for deployments.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 18790
)

// Server exposes /healthz and /readyz with channel state and uptime.
type Server struct {
	host string
	port int
	log  *slog.Logger

	mu             sync.RWMutex
	startedAt      time.Time
	channelRunning bool
	channelErr     string
}

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Channel       struct {
		Running bool   `json:"running"`
		Error   string `json:"error,omitempty"`
	} `json:"channel"`
}

// NewServer constructs a status server; zero host/port fall back to defaults.
func NewServer(host string, port int, log *slog.Logger) *Server {
	if host == "" {
		host = defaultHost
	}
	if port <= 0 {
		port = defaultPort
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		host: host,
		port: port,
		log:  log.With("component", "status"),
	}
}

// SetChannelState records the transport channel's run state.
func (s *Server) SetChannelState(running bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelRunning = running
	s.channelErr = ""
	if err != nil {
		s.channelErr = err.Error()
	}
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	addr := s.host + ":" + strconv.Itoa(s.port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respond(w, statusCode, status)
}

func (s *Server) respond(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Server) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	response := statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
	}
	response.Channel.Running = s.channelRunning
	response.Channel.Error = s.channelErr

	return response
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.channelRunning && s.channelErr == ""
}
