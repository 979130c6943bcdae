// Package metrics exposes collector counters over a Prometheus endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dugout_api_requests_total",
			Help: "Total number of search API requests executed",
		},
		[]string{"endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dugout_api_request_duration_seconds",
			Help:    "Duration of search API requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	RecordsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dugout_records_collected_total",
			Help: "Records appended to the run accumulator",
		},
		[]string{"forum", "source"},
	)

	RateLimitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dugout_rate_limit_retries_total",
			Help: "Calls repeated after a rate limit signal",
		},
	)

	TaskErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dugout_task_errors_total",
			Help: "Search tasks that ended early because of an error",
		},
		[]string{"forum"},
	)

	CheckpointWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dugout_checkpoint_writes_total",
			Help: "Checkpoint snapshot writes by outcome",
		},
		[]string{"result"},
	)

	CheckpointRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dugout_checkpoint_rows",
			Help: "Rows in the most recent checkpoint snapshot",
		},
	)
)

// RecordAPICall updates request counters for one API round trip. A status of
// zero means the request never got a response.
func RecordAPICall(endpoint string, status int, d time.Duration) {
	statusStr := "error"
	if status > 0 {
		statusStr = strconv.Itoa(status)
	}
	APIRequestsTotal.WithLabelValues(endpoint, statusStr).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordCheckpoint notes a checkpoint attempt of the given size.
func RecordCheckpoint(rows int, err error) {
	if err != nil {
		CheckpointWrites.WithLabelValues("error").Inc()
		return
	}
	CheckpointWrites.WithLabelValues("ok").Inc()
	CheckpointRows.Set(float64(rows))
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "port", port, "error", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
