// Package metrics records service metrics in Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
)

// Recorder is what handlers, middleware and services report to.
type Recorder interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	RateLimited(route string)
	BudgetAnalyzed(elapsed time.Duration, counts budget.StatusCounts)
	AnalysisFailed(reason string)
	AllocationMismatch()
}

// Prometheus is the Recorder backed by client_golang collectors.
type Prometheus struct {
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimited        *prometheus.CounterVec
	analyses           prometheus.Counter
	analysisFailures   *prometheus.CounterVec
	analysisDuration   prometheus.Histogram
	categoryStatus     *prometheus.CounterVec
	allocationMismatch prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// to serve them from promhttp.Handler.
func New(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		rateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		analyses: f.NewCounter(
			prometheus.CounterOpts{
				Name: "budget_analyses_total",
				Help: "Total number of budget analyses computed",
			},
		),
		analysisFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_analysis_failures_total",
				Help: "Budget analyses that failed, by reason",
			},
			[]string{"reason"},
		),
		analysisDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "budget_analysis_duration_milliseconds",
				Help:    "Budget analysis duration in milliseconds, including spend lookup",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		categoryStatus: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_category_status_total",
				Help: "Analyzed categories by status",
			},
			[]string{"status"},
		),
		allocationMismatch: f.NewCounter(
			prometheus.CounterOpts{
				Name: "budget_allocation_mismatch_total",
				Help: "Allocation checks whose sum did not match the budget total",
			},
		),
	}
}

func (p *Prometheus) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (p *Prometheus) RateLimited(route string) {
	if route == "" {
		route = "unmatched"
	}
	p.rateLimited.WithLabelValues(route).Inc()
}

func (p *Prometheus) BudgetAnalyzed(elapsed time.Duration, counts budget.StatusCounts) {
	p.analyses.Inc()
	p.analysisDuration.Observe(float64(elapsed.Milliseconds()))
	p.categoryStatus.WithLabelValues(string(budget.StatusGood)).Add(float64(counts.Good))
	p.categoryStatus.WithLabelValues(string(budget.StatusWarning)).Add(float64(counts.Warning))
	p.categoryStatus.WithLabelValues(string(budget.StatusOver)).Add(float64(counts.Over))
}

func (p *Prometheus) AnalysisFailed(reason string) {
	p.analysisFailures.WithLabelValues(reason).Inc()
}

func (p *Prometheus) AllocationMismatch() {
	p.allocationMismatch.Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) RateLimited(string)                                {}
func (Nop) BudgetAnalyzed(time.Duration, budget.StatusCounts) {}
func (Nop) AnalysisFailed(string)                             {}
func (Nop) AllocationMismatch()                               {}
