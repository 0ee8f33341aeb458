// Package metrics exposes Prometheus counters for plans, completions and HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"risparmi/internal/cache"
)

const namespace = "risparmi"

// Registry owns every collector of the service. It uses its own
// prometheus.Registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	Completions        *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	Plans              *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Calls to the completion service by provider and result.",
		}, []string{"provider", "result"}),
		CompletionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion service latency by provider.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"provider"}),
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Savings plans by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests,
		r.HTTPDuration,
		r.Completions,
		r.CompletionDuration,
		r.Plans,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) ObserveCompletion(provider string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Completions.WithLabelValues(provider, result).Inc()
	r.CompletionDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObservePlan counts a finished plan; outcome is "ok" or an error class.
func (r *Registry) ObservePlan(strategy, outcome string) {
	r.Plans.WithLabelValues(strategy, outcome).Inc()
}

func (r *Registry) ObserveHTTP(route string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RegisterCache exports size, hits and misses of a cache under name.
func (r *Registry) RegisterCache(name string, stats func() cache.Stats) {
	labels := prometheus.Labels{"cache": name}
	r.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_entries", Help: "Entries held by the cache.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Size) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Cache hits.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Cache misses.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Misses) }),
	)
}
