package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "mentorship_intake"

// Prometheus holds the service's Prometheus metrics on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Submissions     *prometheus.CounterVec
	SheetsAppends   *prometheus.CounterVec
}

// NewPrometheus creates and registers all metrics, plus the Go runtime and
// process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			// Submissions wait on two mail sends, so the tail is seconds long.
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "submissions_total",
			Help:      "Application submissions by form variant and outcome.",
		}, []string{"variant", "outcome"}),
		SheetsAppends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "sheets_appends_total",
			Help:      "Spreadsheet append attempts by form variant and outcome.",
		}, []string{"variant", "outcome"}),
	}
}

func (p *Prometheus) RecordRequest(method, route, status string, duration time.Duration) {
	p.RequestsTotal.WithLabelValues(method, route, status).Inc()
	p.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *Prometheus) RecordSubmission(variant, outcome string) {
	p.Submissions.WithLabelValues(variant, outcome).Inc()
}

func (p *Prometheus) RecordSheetsAppend(variant, outcome string) {
	p.SheetsAppends.WithLabelValues(variant, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ Collector = (*Prometheus)(nil)
