package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/config"
	"github.com/andreweacott/actron-neo-bridge/pkg/coordinator"
	"github.com/andreweacott/actron-neo-bridge/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// stateSource is the slice of the coordinator the HTTP handlers need
type stateSource interface {
	Snapshot() *coordinator.Snapshot
	State() coordinator.State
	Err() error
	ConsecutiveFailures() int
	RequestRefresh()
}

// StartServer starts the HTTP server and blocks until ctx is cancelled or
// the listener fails.
func StartServer(
	ctx context.Context,
	cfg *config.Config,
	coord stateSource,
	registry *prometheus.Registry,
	log *logger.Logger,
) error {
	mux := http.NewServeMux()

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Timeout:           cfg.RequestTimeoutDuration(),
	})
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", handleHealth(coord))
	mux.HandleFunc("/snapshot", handleSnapshot(coord))
	mux.HandleFunc("/refresh", handleRefresh(coord))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  65 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr, "port", cfg.Port)
		log.Info("Metrics endpoint available", "url", fmt.Sprintf("http://localhost:%d/metrics", cfg.Port))
		log.Info("Health endpoint available", "url", fmt.Sprintf("http://localhost:%d/health", cfg.Port))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}

		log.Info("HTTP server stopped")
		return nil
	}
}

// healthResponse is the /health payload
type healthResponse struct {
	Status              string `json:"status"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

// handleHealth reports coordinator health. Degraded still returns 200 since
// the bridge keeps serving last-known-good data; only a persistent failure
// (or no data at all) reports 503.
func handleHealth(coord stateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:              "ok",
			State:               coord.State().String(),
			ConsecutiveFailures: coord.ConsecutiveFailures(),
		}
		if err := coord.Err(); err != nil {
			resp.LastError = err.Error()
		}

		code := http.StatusOK
		if coord.State() == coordinator.StateDegraded {
			resp.Status = "degraded"
		}
		if coord.State() == coordinator.StateFailed || coord.Snapshot() == nil {
			resp.Status = "failed"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, resp)
	}
}

// handleSnapshot serves the current snapshot as JSON
func handleSnapshot(coord stateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := coord.Snapshot()
		if snap == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot available yet"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// handleRefresh triggers an out-of-band refresh cycle
func handleRefresh(coord stateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use POST"})
			return
		}
		coord.RequestRefresh()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// SetupGracefulShutdown sets up signal handlers for graceful shutdown.
// Returns a context that is cancelled on interrupt or termination signal.
func SetupGracefulShutdown(log *logger.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	}()

	return ctx
}
