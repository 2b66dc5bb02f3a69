// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_interview_coach"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Capture metrics
	CaptureStarts   prometheus.Counter
	SessionsStarted prometheus.Counter
	SessionRestarts *prometheus.CounterVec
	InterimRescues  *prometheus.CounterVec
	FinalFragments  prometheus.Counter
	ResultEvents    prometheus.Counter
	CaptureErrors   *prometheus.CounterVec

	// Playback metrics
	Utterances *prometheus.CounterVec

	// Interview metrics
	InterviewsStarted   prometheus.Counter
	InterviewsCompleted prometheus.Counter
	TurnsCompleted      prometheus.Counter
	TurnLatency         prometheus.Histogram

	// Gateway metrics
	WSConnectionsActive prometheus.Gauge
	WSConnectionsTotal  prometheus.Counter
	WSFrames            *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPLatency         *prometheus.HistogramVec

	// LLM metrics
	LLMRequests *prometheus.CounterVec
	LLMLatency  *prometheus.HistogramVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// History metrics
	HistoryWrites *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CaptureStarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_starts_total",
			Help:      "Total number of startListening requests",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_sessions_total",
			Help:      "Total number of recognition engine runs started",
		}),
		SessionRestarts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_restarts_total",
			Help:      "Total number of recognition engine restarts",
		}, []string{"reason"}),
		InterimRescues: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interim_rescues_total",
			Help:      "Total number of interim fragments folded into committed text",
		}, []string{"trigger"}),
		FinalFragments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "final_fragments_total",
			Help:      "Total number of finalized fragments committed",
		}),
		ResultEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_events_total",
			Help:      "Total number of recognition result events processed",
		}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of recognition engine errors by code",
		}, []string{"code"}),

		Utterances: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of synthesis utterances by outcome",
		}, []string{"outcome"}),

		InterviewsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_started_total",
			Help:      "Total number of interview sessions started",
		}),
		InterviewsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_completed_total",
			Help:      "Total number of interview sessions completed with a report",
		}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Total number of question/answer turns completed",
		}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "Time from answer submission to interviewer reply",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20},
		}),

		WSConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections_active",
			Help:      "Number of currently connected clients",
		}),
		WSConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_total",
			Help:      "Total number of client connections accepted",
		}),
		WSFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_frames_total",
			Help:      "Total number of WebSocket frames by direction and type",
		}, []string{"direction", "type"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_latency_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route"}),

		LLMRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		LLMLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		HistoryWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_total",
			Help:      "Total number of interview history writes by outcome",
		}, []string{"outcome"}),
	}
}

// RecordCaptureStart records a startListening request.
func (m *Metrics) RecordCaptureStart() {
	m.CaptureStarts.Inc()
}

// RecordSessionStarted records a recognition engine run starting.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordRestart records a recognition engine restart.
func (m *Metrics) RecordRestart(reason string) {
	m.SessionRestarts.WithLabelValues(reason).Inc()
}

// RecordRescue records interim text being folded into the committed transcript.
func (m *Metrics) RecordRescue(trigger string) {
	m.InterimRescues.WithLabelValues(trigger).Inc()
}

// RecordFinalFragments records newly committed final fragments.
func (m *Metrics) RecordFinalFragments(n int) {
	m.FinalFragments.Add(float64(n))
}

// RecordResultEvent records one processed recognition result event.
func (m *Metrics) RecordResultEvent() {
	m.ResultEvents.Inc()
}

// RecordCaptureError records a recognition engine error.
func (m *Metrics) RecordCaptureError(code string) {
	m.CaptureErrors.WithLabelValues(code).Inc()
}

// RecordUtterance records a synthesis utterance outcome
// (started, ended, canceled, errored).
func (m *Metrics) RecordUtterance(outcome string) {
	m.Utterances.WithLabelValues(outcome).Inc()
}

// RecordInterviewStarted records an interview session starting.
func (m *Metrics) RecordInterviewStarted() {
	m.InterviewsStarted.Inc()
}

// RecordInterviewCompleted records an interview finishing with a report.
func (m *Metrics) RecordInterviewCompleted() {
	m.InterviewsCompleted.Inc()
}

// RecordTurnCompleted records one question/answer turn.
func (m *Metrics) RecordTurnCompleted(latencySeconds float64) {
	m.TurnsCompleted.Inc()
	m.TurnLatency.Observe(latencySeconds)
}

// RecordWSConnect records a client connection opening.
func (m *Metrics) RecordWSConnect() {
	m.WSConnectionsTotal.Inc()
	m.WSConnectionsActive.Inc()
}

// RecordWSDisconnect records a client connection closing.
func (m *Metrics) RecordWSDisconnect() {
	m.WSConnectionsActive.Dec()
}

// RecordWSFrame records one WebSocket frame ("in" or "out").
func (m *Metrics) RecordWSFrame(direction, frameType string) {
	m.WSFrames.WithLabelValues(direction, frameType).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(latencySeconds)
}

func statusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// RecordLLMRequest records an LLM request outcome and latency.
func (m *Metrics) RecordLLMRequest(kind string, err error, latencySeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMRequests.WithLabelValues(kind, outcome).Inc()
	m.LLMLatency.WithLabelValues(kind).Observe(latencySeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHistoryWrite records an interview history write outcome.
func (m *Metrics) RecordHistoryWrite(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.HistoryWrites.WithLabelValues(outcome).Inc()
}
