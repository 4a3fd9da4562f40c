// Package metrics exposes Prometheus counters for authentication and API traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware record outcomes through.
type Recorder interface {
	RecordLogin(outcome string)
	RecordSessionValidation(outcome string)
	RecordAPIKeyOperation(op, outcome string)
	RecordHTTPResponse(method string, status int, duration time.Duration)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	logins       *prometheus.CounterVec
	validations  *prometheus.CounterVec
	apiKeyOps    *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	httpDuration prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_session_validations_total",
			Help: "Session validations by outcome.",
		}, []string{"outcome"}),
		apiKeyOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_api_key_operations_total",
			Help: "API key operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_http_responses_total",
			Help: "HTTP responses by method and status code.",
		}, []string{"method", "status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.validations,
		c.apiKeyOps,
		c.httpStatus,
		c.httpDuration,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSessionValidation(outcome string) {
	c.validations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAPIKeyOperation(op, outcome string) {
	c.apiKeyOps.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) RecordHTTPResponse(method string, status int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Useful where metrics are not wired, mostly tests.
type Nop struct{}

func (Nop) RecordLogin(string)                            {}
func (Nop) RecordSessionValidation(string)                {}
func (Nop) RecordAPIKeyOperation(string, string)          {}
func (Nop) RecordHTTPResponse(string, int, time.Duration) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
