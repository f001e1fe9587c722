package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Turns        *prometheus.CounterVec
	NodeFailures *prometheus.CounterVec
	TurnDuration prometheus.Histogram
	HTTPRequests *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_turns_total",
			Help:      "Completed workflow turns by terminal outcome node.",
		}, []string{"outcome"}),
		NodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_node_failures_total",
			Help:      "Node-local failures by node.",
		}, []string{"node"}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_turn_duration_seconds",
			Help:      "End-to-end duration of one workflow turn.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by path and status code.",
		}, []string{"path", "status"}),
	}
}

func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

func (m *Metrics) CountNodeFailure(node string) {
	if m == nil {
		return
	}
	m.NodeFailures.WithLabelValues(node).Inc()
}

func (m *Metrics) CountHTTPRequest(path, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, status).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
