package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	conversationsActive  prometheus.Gauge
	conversationsTotal   *prometheus.CounterVec
	submissionsTotal     *prometheus.CounterVec
	submissionsRejected  *prometheus.CounterVec
	eventsTotal          *prometheus.CounterVec
	configResolveTotal   *prometheus.CounterVec
	rolloutWriteDuration prometheus.Histogram

	turnTotal    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	turnErrors   *prometheus.CounterVec
	tokensTotal  *prometheus.CounterVec

	appServerConnections prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			conversationsActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "codex_conversations_active",
					Help: "Current number of live conversations.",
				},
			),
			conversationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_conversations_total",
					Help: "Conversations created by provider and status.",
				},
				[]string{"provider", "status"},
			),
			submissionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_submissions_total",
					Help: "Accepted submissions by op type.",
				},
				[]string{"op"},
			),
			submissionsRejected: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_submissions_rejected_total",
					Help: "Submissions rejected because the session was closed, by op type.",
				},
				[]string{"op"},
			),
			eventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_events_total",
					Help: "Events emitted by event type.",
				},
				[]string{"type"},
			),
			configResolveTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_config_resolutions_total",
					Help: "Configuration resolutions by selected provider and the source that selected it.",
				},
				[]string{"provider", "source"},
			),
			rolloutWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "codex_rollout_write_duration_seconds",
					Help:    "Rollout append duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_turn_total",
					Help: "Total model turns by provider and status.",
				},
				[]string{"provider", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "codex_turn_duration_seconds",
					Help:    "Model turn duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			turnErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_turn_errors_total",
					Help: "Total failed model turns by provider.",
				},
				[]string{"provider"},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codex_tokens_total",
					Help: "Tokens consumed by provider and direction.",
				},
				[]string{"provider", "direction"},
			),
			appServerConnections: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "codex_app_server_connections",
					Help: "Current app-server websocket connections.",
				},
			),
		}

		prometheus.MustRegister(
			m.conversationsActive,
			m.conversationsTotal,
			m.submissionsTotal,
			m.submissionsRejected,
			m.eventsTotal,
			m.configResolveTotal,
			m.rolloutWriteDuration,
			m.turnTotal,
			m.turnDuration,
			m.turnErrors,
			m.tokensTotal,
			m.appServerConnections,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func SetActiveConversations(count int) {
	getMetrics().conversationsActive.Set(float64(count))
}

func RecordConversationCreated(provider string, success bool) {
	getMetrics().conversationsTotal.WithLabelValues(provider, statusLabel(success)).Inc()
}

func RecordSubmission(op string) {
	getMetrics().submissionsTotal.WithLabelValues(op).Inc()
}

func RecordSubmissionRejected(op string) {
	getMetrics().submissionsRejected.WithLabelValues(op).Inc()
}

func RecordEvent(eventType string) {
	getMetrics().eventsTotal.WithLabelValues(eventType).Inc()
}

func RecordConfigResolution(provider, source string) {
	getMetrics().configResolveTotal.WithLabelValues(provider, source).Inc()
}

func RecordRolloutWrite(duration time.Duration) {
	getMetrics().rolloutWriteDuration.Observe(duration.Seconds())
}

func RecordTurn(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.turnDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if !success {
		m.turnErrors.WithLabelValues(provider).Inc()
	}
}

func RecordTokens(provider string, input, output int64) {
	m := getMetrics()
	m.tokensTotal.WithLabelValues(provider, "input").Add(float64(input))
	m.tokensTotal.WithLabelValues(provider, "output").Add(float64(output))
}

func SetAppServerConnections(count int) {
	getMetrics().appServerConnections.Set(float64(count))
}
