// Package metrics exposes Prometheus collectors for uploads, cleaning runs
// and sessions.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "csvclean"

// Run outcomes used as label values.
const (
	OutcomeSuccess  = "success"
	OutcomePartial  = "partial"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Collector owns a private registry. A nil *Collector is valid and records
// nothing, so callers never need to check whether metrics are enabled.
type Collector struct {
	registry *prometheus.Registry

	uploadsTotal    *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	filesSkipped    *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	dirtyScore      *prometheus.HistogramVec
	changesApplied  prometheus.Counter
	sessionsActive  prometheus.Gauge
	sessionsExpired prometheus.Counter
	limiterActive   prometheus.Gauge
}

// New creates a collector and registers its metrics along with the Go
// runtime and process collectors.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload requests by result",
		},
		[]string{"result"},
	)
	c.uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "Bytes of tabular data read from uploads",
	})
	c.filesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_files_skipped_total",
			Help:      "Uploaded files that could not be parsed",
		},
		[]string{"reason"},
	)
	c.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Cleaning runs by outcome",
		},
		[]string{"outcome"},
	)
	c.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a cleaning run",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	c.dirtyScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dirty_score_percent",
			Help:      "Dirty score per file before and after cleaning",
			Buckets:   []float64{0, 1, 5, 10, 20, 35, 50, 75, 100},
		},
		[]string{"phase"},
	)
	c.changesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "changes_applied_total",
		Help:      "Change log entries produced by cleaning runs",
	})
	c.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently held in memory",
	})
	c.sessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Sessions removed by the TTL sweeper",
	})
	c.limiterActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "limiter_active",
		Help:      "Uploads and runs currently holding a limiter slot",
	})

	for _, m := range []prometheus.Collector{
		c.uploadsTotal,
		c.uploadBytes,
		c.filesSkipped,
		c.runsTotal,
		c.runDuration,
		c.dirtyScore,
		c.changesApplied,
		c.sessionsActive,
		c.sessionsExpired,
		c.limiterActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		c.registry.MustRegister(m)
	}

	slog.Debug("metrics collector initialized", "namespace", namespace)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the exposition format. A nil collector serves 404.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordUpload counts an upload request. result is "accepted" or "rejected".
func (c *Collector) RecordUpload(result string, bytes int64) {
	if c == nil {
		return
	}
	c.uploadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		c.uploadBytes.Add(float64(bytes))
	}
}

// RecordSkippedFile counts an uploaded file that could not be read.
func (c *Collector) RecordSkippedFile(reason string) {
	if c == nil {
		return
	}
	c.filesSkipped.WithLabelValues(reason).Inc()
}

// RecordScore observes a dirty score. phase is "before" or "after".
func (c *Collector) RecordScore(phase string, score float64) {
	if c == nil {
		return
	}
	c.dirtyScore.WithLabelValues(phase).Observe(score)
}

// RecordRun counts a finished run and its duration.
func (c *Collector) RecordRun(outcome string, d time.Duration, changes int) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeRejected {
		c.runDuration.Observe(d.Seconds())
	}
	c.changesApplied.Add(float64(changes))
}

// SetSessions reports the current session count.
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	c.sessionsActive.Set(float64(n))
}

// RecordExpired counts sessions removed by the sweeper.
func (c *Collector) RecordExpired(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.sessionsExpired.Add(float64(n))
}

// SetLimiterActive reports the number of occupied limiter slots.
func (c *Collector) SetLimiterActive(n int) {
	if c == nil {
		return
	}
	c.limiterActive.Set(float64(n))
}
