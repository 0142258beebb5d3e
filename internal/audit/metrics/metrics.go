// Package metrics exposes Prometheus instrumentation for the audit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Collector gathers audit service metrics and serves the scrape endpoint.
type Collector struct {
	auditsTotal     *prometheus.CounterVec
	auditDuration   *prometheus.HistogramVec
	probesTotal     *prometheus.CounterVec
	probeDuration   *prometheus.HistogramVec
	cacheHitsTotal  prometheus.Counter
	cacheMissTotal  prometheus.Counter
	snapshotsTotal  *prometheus.CounterVec
	activeAudits    prometheus.Gauge
	processMemBytes prometheus.GaugeFunc

	logger      *zap.Logger
	httpHandler fasthttp.RequestHandler
}

// NewCollector creates and registers the audit metrics on the default
// registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry registers on a custom registry; used by tests.
func NewCollectorWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	c := &Collector{logger: logger}

	c.auditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "audits_total",
			Help:      "Total number of audits by outcome",
		},
		[]string{"outcome"},
	)

	c.auditDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "audit_duration_seconds",
			Help:      "End-to-end audit duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	c.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "probes_total",
			Help:      "Outbound probes issued, by probe and result",
		},
		[]string{"probe", "result"},
	)

	c.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "probe_duration_seconds",
			Help:      "Outbound probe duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
		},
		[]string{"probe"},
	)

	c.cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "cache_hits_total",
		Help:      "Reports served from the cache",
	})

	c.cacheMissTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "cache_misses_total",
		Help:      "Cache lookups that ran a fresh audit",
	})

	c.snapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "snapshots_total",
			Help:      "Snapshot store operations by operation and result",
		},
		[]string{"op", "result"},
	)

	c.activeAudits = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "active_audits",
		Help:      "Audits currently in flight",
	})

	c.processMemBytes = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "system_memory_used_bytes",
		Help:      "System memory in use, sampled at scrape time",
	}, func() float64 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return 0
		}
		return float64(vm.Used)
	})

	registerer.MustRegister(
		c.auditsTotal,
		c.auditDuration,
		c.probesTotal,
		c.probeDuration,
		c.cacheHitsTotal,
		c.cacheMissTotal,
		c.snapshotsTotal,
		c.activeAudits,
		c.processMemBytes,
	)

	c.httpHandler = fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		}),
	)

	return c
}

// ObserveAudit records one finished audit.
func (c *Collector) ObserveAudit(outcome string, seconds float64) {
	c.auditsTotal.WithLabelValues(outcome).Inc()
	c.auditDuration.WithLabelValues(outcome).Observe(seconds)
}

// ObserveProbe records one outbound probe.
func (c *Collector) ObserveProbe(probe, result string, seconds float64) {
	c.probesTotal.WithLabelValues(probe, result).Inc()
	c.probeDuration.WithLabelValues(probe).Observe(seconds)
}

// CacheHit records a report served from cache.
func (c *Collector) CacheHit() { c.cacheHitsTotal.Inc() }

// CacheMiss records a lookup that ran a fresh audit.
func (c *Collector) CacheMiss() { c.cacheMissTotal.Inc() }

// ObserveSnapshot records a snapshot store operation.
func (c *Collector) ObserveSnapshot(op, result string) {
	c.snapshotsTotal.WithLabelValues(op, result).Inc()
}

// IncActiveAudits tracks an audit starting.
func (c *Collector) IncActiveAudits() { c.activeAudits.Inc() }

// DecActiveAudits tracks an audit finishing.
func (c *Collector) DecActiveAudits() { c.activeAudits.Dec() }

// ServeHTTP serves the Prometheus scrape endpoint over fasthttp.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.httpHandler(ctx)
}
