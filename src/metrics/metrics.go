// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

// Package metrics provides Prometheus metrics. All names carry the beans_
// prefix.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes of a handled connection. They are used both as metric labels
// and in the connection log line.
const (
	OutcomeStored      = "stored"
	OutcomePartial     = "partial"
	OutcomeEmpty       = "empty"
	OutcomeReadError   = "read_error"
	OutcomeTooLarge    = "too_large"
	OutcomeStoreFailed = "store_failed"
)

type Config struct {
	Enabled  bool
	Endpoint string
	// Token for optional bearer token authentication
	Token string
}

var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beans_app_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)

	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beans_app_start_timestamp",
			Help: "Application start timestamp",
		},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beans_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	ConnectionsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beans_connections_accepted_total",
			Help: "Total number of accepted connections",
		},
	)

	AcceptErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beans_accept_errors_total",
			Help: "Total number of failed accept calls",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beans_connections_active",
			Help: "Number of connections being handled",
		},
	)

	ConnectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beans_connection_duration_seconds",
			Help:    "Time from accept to close",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	PastesHandledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beans_pastes_handled_total",
			Help: "Connections handled, by outcome",
		},
		[]string{"outcome"},
	)

	PasteSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beans_paste_size_bytes",
			Help:    "Size of stored pastes in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
	)

	JournalErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beans_journal_errors_total",
			Help: "Failed journal writes",
		},
	)

	PastesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beans_pastes_total",
			Help: "Paste files in the storage directory",
		},
	)

	PastesBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beans_pastes_bytes_total",
			Help: "Total bytes of all paste files",
		},
	)

	GoGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beans_go_goroutines",
			Help: "Current number of goroutines",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beans_go_mem_alloc_bytes",
			Help: "Bytes allocated and in use (heap)",
		},
	)
)

var (
	startTime time.Time
	config    Config
	mu        sync.RWMutex
)

// Init enables or disables recording. Background collectors stop when ctx
// is done.
func Init(ctx context.Context, cfg Config, version string) {
	mu.Lock()
	config = cfg
	startTime = time.Now()
	mu.Unlock()

	if !cfg.Enabled {
		return
	}

	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	AppStartTime.SetToCurrentTime()

	go collectLoop(ctx)
}

// collectLoop updates uptime and runtime gauges every 15 seconds
func collectLoop(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		collectRuntimeMetrics()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func collectRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mu.RLock()
	AppUptime.Set(time.Since(startTime).Seconds())
	mu.RUnlock()

	GoGoroutines.Set(float64(runtime.NumGoroutine()))
	GoMemAllocBytes.Set(float64(m.Alloc))
}

// Handler returns the Prometheus metrics HTTP handler with optional auth
func Handler(cfg Config) http.Handler {
	promHandler := promhttp.Handler()

	if cfg.Token == "" {
		return promHandler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+cfg.Token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		promHandler.ServeHTTP(w, r)
	})
}

// IsEnabled returns whether metrics are enabled
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return config.Enabled
}

func RecordAccept() {
	if !IsEnabled() {
		return
	}
	ConnectionsAcceptedTotal.Inc()
}

func RecordAcceptError() {
	if !IsEnabled() {
		return
	}
	AcceptErrorsTotal.Inc()
}

// ConnStart marks a connection as active. The returned func records the
// outcome and must be called exactly once.
func ConnStart() func(outcome string, size int) {
	if !IsEnabled() {
		return func(string, int) {}
	}

	start := time.Now()
	ConnectionsActive.Inc()

	return func(outcome string, size int) {
		ConnectionsActive.Dec()
		ConnectionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		PastesHandledTotal.WithLabelValues(outcome).Inc()
		if outcome == OutcomeStored || outcome == OutcomePartial {
			PasteSize.Observe(float64(size))
		}
	}
}

func RecordJournalError() {
	if !IsEnabled() {
		return
	}
	JournalErrorsTotal.Inc()
}

// UpdatePasteStats updates storage directory statistics
func UpdatePasteStats(total int64, totalBytes int64) {
	if !IsEnabled() {
		return
	}
	PastesTotal.Set(float64(total))
	PastesBytesTotal.Set(float64(totalBytes))
}
