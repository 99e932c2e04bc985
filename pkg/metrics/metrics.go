// Package metrics exposes the service's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interp"

// Metrics holds every collector. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
type Metrics struct {
	registry *prometheus.Registry

	// Connections
	ActiveSessions prometheus.Gauge
	SessionsTotal  prometheus.Counter
	MessagesIn     *prometheus.CounterVec
	ErrorsSent     *prometheus.CounterVec

	// Segmentation
	Utterances       *prometheus.CounterVec
	ClassifierErrors prometheus.Counter

	// Pipeline
	StageDuration    *prometheus.HistogramVec
	PipelineDuration *prometheus.HistogramVec
	StageFailures    *prometheus.CounterVec
	EmptyTranscripts prometheus.Counter

	// Sequencer
	UnitsInFlight prometheus.Gauge
	UnitPanics    prometheus.Counter
}

// New registers all collectors plus Go runtime and process collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of open WebSocket sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of WebSocket sessions opened",
		}),
		MessagesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Client messages received, by type",
		}, []string{"type"}),
		ErrorsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_sent_total",
			Help:      "Error messages sent to clients, by code",
		}, []string{"code"}),

		Utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Utterances dispatched to the pipeline, by mode",
		}, []string{"mode"}),
		ClassifierErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_classifier_errors_total",
			Help:      "Windows whose speech classification failed",
		}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}, []string{"stage"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end duration of one utterance",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"mode"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Hard stage failures, by stage",
		}, []string{"stage"}),
		EmptyTranscripts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_transcripts_total",
			Help:      "Utterances that produced no transcript",
		}),

		UnitsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units_in_flight",
			Help:      "Dispatched units not yet delivered",
		}),
		UnitPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_panics_total",
			Help:      "Units that panicked and were delivered as errors",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records one stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObservePipeline records one utterance's total duration.
func (m *Metrics) ObservePipeline(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// StageFailed counts a hard failure.
func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// EmptyTranscript counts a short-circuited utterance.
func (m *Metrics) EmptyTranscript() {
	if m == nil {
		return
	}
	m.EmptyTranscripts.Inc()
}

// UtteranceDispatched counts an utterance entering the pipeline.
func (m *Metrics) UtteranceDispatched(mode string) {
	if m == nil {
		return
	}
	m.Utterances.WithLabelValues(mode).Inc()
}

// ClassifierFailed adds n failed classifications.
func (m *Metrics) ClassifierFailed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ClassifierErrors.Add(float64(n))
}

// SessionOpened and SessionClosed track live sessions.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionsTotal.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// MessageReceived counts a client message by type.
func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.MessagesIn.WithLabelValues(msgType).Inc()
}

// ErrorSent counts an error message by code.
func (m *Metrics) ErrorSent(code string) {
	if m == nil {
		return
	}
	m.ErrorsSent.WithLabelValues(code).Inc()
}

// UnitStarted and UnitDone track the sequencer's in-flight units.
func (m *Metrics) UnitStarted() {
	if m == nil {
		return
	}
	m.UnitsInFlight.Inc()
}

func (m *Metrics) UnitDone() {
	if m == nil {
		return
	}
	m.UnitsInFlight.Dec()
}

// UnitPanicked counts a recovered panic.
func (m *Metrics) UnitPanicked() {
	if m == nil {
		return
	}
	m.UnitPanics.Inc()
}
