package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	PipelineRuns       *prometheus.CounterVec
	PipelineDuration   prometheus.Histogram
	RowsLoaded         *prometheus.GaugeVec
	RowsDropped        *prometheus.GaugeVec
	AttributionRecords prometheus.Gauge
	KPIComputeFailures *prometheus.CounterVec

	// Business metrics
	ExportsCreated *prometheus.CounterVec

	// Database metrics
	DBConnections prometheus.Gauge

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total number of pipeline runs",
			},
			[]string{"status"}, // success, partial, failed
		),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		RowsLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_rows_loaded",
				Help: "Rows loaded per table in the last pipeline run",
			},
			[]string{"table"},
		),
		RowsDropped: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_rows_dropped",
				Help: "Rows dropped by cleaning per table in the last pipeline run",
			},
			[]string{"table"},
		),
		AttributionRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "attribution_records",
			Help: "Attribution records produced by the last pipeline run",
		}),
		KPIComputeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpi_compute_failures_total",
				Help: "Total number of failed KPI computations",
			},
			[]string{"kpi"},
		),

		ExportsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exports_created_total",
				Help: "Total number of exports created",
			},
			[]string{"format"}, // csv, xlsx
		),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		}),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, e.g. /api/v1/campaigns/:name/orders

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordPipelineRun records the outcome and duration of a pipeline run
func (m *Metrics) RecordPipelineRun(status string, duration time.Duration) {
	m.PipelineRuns.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(duration.Seconds())
}

// RecordTableLoad records kept and dropped rows for a table
func (m *Metrics) RecordTableLoad(table string, loaded, dropped int) {
	m.RowsLoaded.WithLabelValues(table).Set(float64(loaded))
	m.RowsDropped.WithLabelValues(table).Set(float64(dropped))
}

// RecordAttribution records the size of the attribution table
func (m *Metrics) RecordAttribution(records int) {
	m.AttributionRecords.Set(float64(records))
}

// RecordKPIFailure increments the failure counter for a KPI
func (m *Metrics) RecordKPIFailure(kpi string) {
	m.KPIComputeFailures.WithLabelValues(kpi).Inc()
}

// RecordExportCreated increments exports created counter
func (m *Metrics) RecordExportCreated(format string) {
	m.ExportsCreated.WithLabelValues(format).Inc()
}

// UpdateDBConnections updates active database connections gauge
func (m *Metrics) UpdateDBConnections(count float64) {
	m.DBConnections.Set(count)
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
