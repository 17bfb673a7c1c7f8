// Package metrics provides Prometheus-based metrics recording for completion
// and report-generation operations, plus a query service for per-project
// aggregates.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records operation metrics.
type Recorder interface {
	ObserveCompletion(model, operation, projectID string, success bool, duration time.Duration)
	ObserveGeneration(projectID, outcome string, duration time.Duration)
	IncChatMessage(role string)
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	chatMessagesTotal  *prometheus.CounterVec
}

// NewPrometheusRecorder creates a Prometheus-based metrics recorder
// registered on the default registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		completionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "completion_requests_total",
				Help: "Total number of completion requests by model, operation, project, and status",
			},
			[]string{"model", "operation", "project_id", "status"},
		),
		completionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "completion_request_duration_seconds",
				Help:    "Duration of completion requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "operation"},
		),
		generationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_generations_total",
				Help: "Total number of report generation attempts by project and outcome",
			},
			[]string{"project_id", "outcome"},
		),
		generationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "report_generation_duration_seconds",
				Help:    "Duration of report generation attempts in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		chatMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_messages_total",
				Help: "Total number of persisted chat messages by role",
			},
			[]string{"role"},
		),
	}
}

// ObserveCompletion records a completion request outcome.
func (p *PrometheusRecorder) ObserveCompletion(model, operation, projectID string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.completionsTotal.WithLabelValues(model, operation, projectID, status).Inc()
	p.completionDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// ObserveGeneration records a report generation outcome
// ("complete", "intervention", or "stale").
func (p *PrometheusRecorder) ObserveGeneration(projectID, outcome string, duration time.Duration) {
	p.generationsTotal.WithLabelValues(projectID, outcome).Inc()
	p.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncChatMessage counts a persisted chat message.
func (p *PrometheusRecorder) IncChatMessage(role string) {
	p.chatMessagesTotal.WithLabelValues(role).Inc()
}

// NopRecorder discards all observations. Used in tests and when metrics are
// disabled.
type NopRecorder struct{}

// ObserveCompletion implements Recorder.
func (NopRecorder) ObserveCompletion(string, string, string, bool, time.Duration) {}

// ObserveGeneration implements Recorder.
func (NopRecorder) ObserveGeneration(string, string, time.Duration) {}

// IncChatMessage implements Recorder.
func (NopRecorder) IncChatMessage(string) {}
