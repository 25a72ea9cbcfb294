// Package health provides the liveness, readiness and metrics endpoints.
//
// /healthz reports that the process is up. /readyz additionally reports, per
// speaker, which audio tiers are currently available, and returns 200 once
// the daemon has started its transports. /metrics serves prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nadzzz/avatarvoice/internal/message"
)

// VoiceReporter lists speaker tier availability. *dispatch.Dispatcher implements it.
type VoiceReporter interface {
	Voices() []message.VoiceInfo
}

// Server is a lightweight HTTP server that exposes /healthz, /readyz and /metrics.
type Server struct {
	port   int
	voices VoiceReporter
	ready  atomic.Bool
	server *http.Server
}

// New creates a new health check server. voices may be nil.
func New(port int, voices VoiceReporter) *Server {
	return &Server{port: port, voices: voices}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, s.ready.Load(), nil)
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		var tiers map[string][]string
		if s.voices != nil {
			tiers = make(map[string][]string)
			for _, v := range s.voices.Voices() {
				avail := []string{}
				for _, t := range v.Tiers {
					if t.Available {
						avail = append(avail, t.Tier)
					}
				}
				tiers[v.Speaker] = avail
			}
		}
		writeStatus(w, s.ready.Load(), tiers)
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

type statusBody struct {
	Status string              `json:"status"`
	Tiers  map[string][]string `json:"available_tiers,omitempty"`
}

func writeStatus(w http.ResponseWriter, ready bool, tiers map[string][]string) {
	body := statusBody{Status: "ok", Tiers: tiers}
	code := http.StatusOK
	if !ready {
		body.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
