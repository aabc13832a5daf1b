// Package metrics holds the Prometheus collectors, the health report and the
// server exposing both.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeVerdict   = "verdict"
	OutcomeNoResult  = "no_result"
	OutcomeMalformed = "malformed"
	OutcomeSourceErr = "source_error"
)

// Metrics holds all Prometheus metrics for the signal engine service.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: outcome
	RunDur         prometheus.Histogram
	SignalsFired   *prometheus.CounterVec // labels: indicator, direction
	VerdictsTotal  *prometheus.CounterVec // labels: overall
	BarsPerRun     prometheus.Histogram
	SourceFetchDur *prometheus.HistogramVec // labels: source
	AlertsTotal    *prometheus.CounterVec   // labels: result=sent|failed
	StreamClients  prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_engine_runs_total",
			Help: "Engine runs by outcome (verdict, no_result, malformed, source_error)",
		}, []string{"outcome"}),
		RunDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signals_engine_run_duration_seconds",
			Help:    "Engine compute latency per run (indicators + rules + aggregation)",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		SignalsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_fired_total",
			Help: "Signals fired by rule and direction",
		}, []string{"indicator", "direction"}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_verdicts_total",
			Help: "Verdicts by overall direction",
		}, []string{"overall"}),
		BarsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signals_engine_bars_per_run",
			Help:    "Number of bars supplied to each run",
			Buckets: []float64{10, 20, 50, 100, 250, 500, 1000, 5000},
		}),
		SourceFetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signals_source_fetch_duration_seconds",
			Help:    "Bar source fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_alerts_total",
			Help: "Verdict alerts delivered to notifiers",
		}, []string{"result"}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signals_stream_clients",
			Help: "Connected WebSocket stream clients",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDur,
		m.SignalsFired,
		m.VerdictsTotal,
		m.BarsPerRun,
		m.SourceFetchDur,
		m.AlertsTotal,
		m.StreamClients,
	)

	return m
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
