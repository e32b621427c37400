//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package metrics exposes Prometheus metrics for HTTP requests, chat
// sessions and turn pipeline stages.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
)

const namespace = "ragchat"

// Metrics holds the collectors registered with one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SessionsActive      prometheus.Gauge
	SessionsTotal       prometheus.Counter
	TurnsTotal          prometheus.Counter
	TurnDuration        prometheus.Histogram
	StageOutcomesTotal  *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	PassagesRetrieved   prometheus.Histogram
	PassagesRanked      prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open chat sessions.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of chat sessions opened.",
		}),
		TurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of completed conversation turns.",
		}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of completed conversation turns in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		StageOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_outcomes_total",
				Help:      "Pipeline stage results by outcome.",
			},
			[]string{"stage", "outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		PassagesRetrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "passages_retrieved",
			Help:      "Passages returned by similarity search per turn.",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		}),
		PassagesRanked: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "passages_ranked",
			Help:      "Passages passed to generation per turn.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SessionsActive,
		m.SessionsTotal,
		m.TurnsTotal,
		m.TurnDuration,
		m.StageOutcomesTotal,
		m.StageDuration,
		m.PassagesRetrieved,
		m.PassagesRanked,
	)
	return m
}

// TurnCompleted records a finished turn.
func (m *Metrics) TurnCompleted(_ context.Context, r *pipeline.TurnReport) {
	m.TurnsTotal.Inc()
	m.TurnDuration.Observe(r.Elapsed.Seconds())
	m.PassagesRetrieved.Observe(float64(r.Retrieved))
	m.PassagesRanked.Observe(float64(r.Ranked))

	for _, s := range r.Stages {
		m.StageOutcomesTotal.WithLabelValues(string(s.Stage), string(s.Outcome)).Inc()
		if s.Outcome != pipeline.OutcomeSkipped {
			m.StageDuration.WithLabelValues(string(s.Stage)).Observe(s.Elapsed.Seconds())
		}
	}
}

// SessionStarted counts a new open session.
func (m *Metrics) SessionStarted() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionEnded counts a closed session.
func (m *Metrics) SessionEnded() {
	m.SessionsActive.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records HTTP request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// Use the route pattern for a low-cardinality path label.
		path := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pat := rctx.RoutePattern(); pat != "" {
				path = pat
			}
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var _ pipeline.TurnObserver = (*Metrics)(nil)
