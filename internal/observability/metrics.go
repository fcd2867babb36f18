package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	examSubmissionsTotal   *prometheus.CounterVec
	examScorePercentage    prometheus.Histogram
	examResetsTotal        *prometheus.CounterVec
	examControlTotal       *prometheus.CounterVec
	examStatsCacheTotal    *prometheus.CounterVec
	workflowTransitions    *prometheus.CounterVec
	notificationsPublished *prometheus.CounterVec
	sseClientsActive       prometheus.Gauge
	monitorClientsActive   prometheus.Gauge
	paymentsTotal          *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exposed on /metrics.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbt_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		examSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_exam_submissions_total",
			Help: "Exam submissions by outcome.",
		}, []string{"outcome"})

		examScorePercentage = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbt_exam_score_percentage",
			Help:    "Distribution of submitted exam percentages.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		})

		examResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_exam_resets_total",
			Help: "Exam attempt resets by scope.",
		}, []string{"scope"})

		examControlTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_exam_control_actions_total",
			Help: "Manual exam lifecycle actions by action and outcome.",
		}, []string{"action", "outcome"})

		examStatsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_exam_stats_cache_total",
			Help: "Exam statistics cache lookups by result.",
		}, []string{"result"})

		workflowTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_workflow_transitions_total",
			Help: "Approval workflow transitions by entity and action.",
		}, []string{"entity", "action", "outcome"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_notifications_published_total",
			Help: "Notifications delivered to subscribers by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbt_sse_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		monitorClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbt_exam_monitor_clients_active",
			Help: "Currently connected exam monitor websocket clients.",
		})

		paymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbt_payments_total",
			Help: "Payment lifecycle events by stage and status.",
		}, []string{"stage", "status"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			examSubmissionsTotal, examScorePercentage, examResetsTotal, examControlTotal, examStatsCacheTotal,
			workflowTransitions, notificationsPublished, sseClientsActive, monitorClientsActive, paymentsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ExamSubmissions counts submissions by outcome (accepted, ended, duplicate, error).
func ExamSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return examSubmissionsTotal
}

// ExamScorePercentage observes accepted submission percentages.
func ExamScorePercentage() prometheus.Histogram {
	RegisterMetrics()
	return examScorePercentage
}

// ExamResets counts attempt resets.
func ExamResets() *prometheus.CounterVec {
	RegisterMetrics()
	return examResetsTotal
}

// ExamControlActions counts lifecycle control actions.
func ExamControlActions() *prometheus.CounterVec {
	RegisterMetrics()
	return examControlTotal
}

// ExamStatsCache counts stats cache hits and misses.
func ExamStatsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return examStatsCacheTotal
}

// WorkflowTransitions counts approval pipeline transitions.
func WorkflowTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return workflowTransitions
}

// NotificationsPublishedTotal counts delivered notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// SSEClientsActive tracks notification stream subscribers.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// MonitorClientsActive tracks exam monitor websocket clients.
func MonitorClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return monitorClientsActive
}

// Payments counts payment initialisations and settlements.
func Payments() *prometheus.CounterVec {
	RegisterMetrics()
	return paymentsTotal
}
