package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector provides application metrics collection.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Engine Metrics
	Recalculations      *prometheus.CounterVec
	CascadeLength       prometheus.Histogram
	AdvisoryWarnings    *prometheus.CounterVec
	PlansGenerated      *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	ConcurrentConflicts prometheus.Counter
	LossEstimates       prometheus.Counter
	SweepDuration       prometheus.Histogram
	SweepHealedPlans    prometheus.Counter
	ExportsTotal        *prometheus.CounterVec
	CalculatorReports   prometheus.Counter
	ReadingsRecorded    prometheus.Counter
	ReadingsRejected    *prometheus.CounterVec
}

// NewCollector creates a collector on its own registry
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
			},
			[]string{"route"},
		),

		Recalculations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_recalculations_total",
				Help:      "Cascading plan recalculations by trigger",
			},
			[]string{"trigger"},
		),

		CascadeLength: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_cascade_changed_applications",
				Help:      "Number of applications rewritten by one recalculation",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
			},
		),

		AdvisoryWarnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advisory_warnings_total",
				Help:      "Advisory warnings attached to applications by code and severity",
			},
			[]string{"code", "severity"},
		),

		PlansGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_generated_total",
				Help:      "Generated liming plans by soil texture",
			},
			[]string{"texture"},
		),

		PersistenceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_failures_total",
				Help:      "Failed application writes inside a cascade by operation",
			},
			[]string{"operation"},
		),

		ConcurrentConflicts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_version_conflicts_total",
				Help:      "Plan writes rejected because of a stale version",
			},
		),

		LossEstimates: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loss_estimates_total",
				Help:      "Economic loss estimates computed",
			},
		),

		SweepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consistency_sweep_duration_seconds",
				Help:      "Duration of a consistency sweep over all plans",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),

		SweepHealedPlans: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consistency_sweep_healed_plans_total",
				Help:      "Plans whose cascade was found inconsistent and rewritten",
			},
		),

		ExportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Report exports by format",
			},
			[]string{"format"},
		),

		CalculatorReports: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calculator_reports_total",
				Help:      "Guided calculator reports produced",
			},
		),

		ReadingsRecorded: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_recorded_total",
				Help:      "Soil readings stored",
			},
		),

		ReadingsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_rejected_total",
				Help:      "Soil readings rejected by field",
			},
			[]string{"field"},
		),
	}
}

// Registry exposes the underlying registry for tests and custom handlers
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.APIRequestsTotal.WithLabelValues(route, ctx.Request.Method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.APIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// RecordRecalculation counts one cascade and how many applications it rewrote
func (c *Collector) RecordRecalculation(trigger string, changed int) {
	if c == nil {
		return
	}
	c.Recalculations.WithLabelValues(trigger).Inc()
	c.CascadeLength.Observe(float64(changed))
}

// RecordWarning counts an advisory warning
func (c *Collector) RecordWarning(code, severity string) {
	if c == nil {
		return
	}
	c.AdvisoryWarnings.WithLabelValues(code, severity).Inc()
}

// RecordPlanGenerated counts a generated plan
func (c *Collector) RecordPlanGenerated(texture string) {
	if c == nil {
		return
	}
	c.PlansGenerated.WithLabelValues(texture).Inc()
}

// RecordPersistenceFailure counts a failed write inside a cascade
func (c *Collector) RecordPersistenceFailure(operation string) {
	if c == nil {
		return
	}
	c.PersistenceFailures.WithLabelValues(operation).Inc()
}

// RecordConflict counts a stale-version rejection
func (c *Collector) RecordConflict() {
	if c == nil {
		return
	}
	c.ConcurrentConflicts.Inc()
}

// RecordLossEstimate counts an economic estimate
func (c *Collector) RecordLossEstimate() {
	if c == nil {
		return
	}
	c.LossEstimates.Inc()
}

// RecordSweep observes one consistency sweep
func (c *Collector) RecordSweep(duration time.Duration, healed int) {
	if c == nil {
		return
	}
	c.SweepDuration.Observe(duration.Seconds())
	c.SweepHealedPlans.Add(float64(healed))
}

// RecordExport counts a report export
func (c *Collector) RecordExport(format string) {
	if c == nil {
		return
	}
	c.ExportsTotal.WithLabelValues(format).Inc()
}

// RecordCalculatorReport counts a guided calculator report
func (c *Collector) RecordCalculatorReport() {
	if c == nil {
		return
	}
	c.CalculatorReports.Inc()
}

// RecordReading counts a stored reading
func (c *Collector) RecordReading() {
	if c == nil {
		return
	}
	c.ReadingsRecorded.Inc()
}

// RecordRejectedReading counts a reading rejected because of field
func (c *Collector) RecordRejectedReading(field string) {
	if c == nil {
		return
	}
	c.ReadingsRejected.WithLabelValues(field).Inc()
}
