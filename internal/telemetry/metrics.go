package telemetry

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salesdash"

// Metrics holds the Prometheus collectors for the server.
type Metrics struct {
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	datasetsLoaded  *prometheus.CounterVec
	datasetsEvicted prometheus.Counter
	datasetsOpen    prometheus.GaugeFunc
	rowsLoaded      prometheus.Counter
	reportCache     *prometheus.CounterVec
}

// NewMetrics builds the collectors. openDatasets is sampled on each scrape;
// pass nil when no dataset manager exists.
func NewMetrics(openDatasets func() int) *Metrics {
	if openDatasets == nil {
		openDatasets = func() int { return 0 }
	}
	m := &Metrics{}
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool calls by tool and outcome (ok, error)",
	}, []string{"tool", "outcome"})
	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_duration_seconds",
		Help:      "Tool call latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
	m.datasetsLoaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datasets_loaded_total",
		Help:      "Datasets loaded by source format",
	}, []string{"format"})
	m.datasetsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datasets_evicted_total",
		Help:      "Datasets dropped after their idle TTL",
	})
	m.datasetsOpen = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "datasets_open",
		Help:      "Datasets currently held in memory",
	}, func() float64 { return float64(openDatasets()) })
	m.rowsLoaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_loaded_total",
		Help:      "Sales rows normalized across all loads",
	})
	m.reportCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_cache_lookups_total",
		Help:      "Report memo cache lookups by result (hit, miss)",
	}, []string{"result"})
	return m
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.toolCalls,
		m.toolDuration,
		m.datasetsLoaded,
		m.datasetsEvicted,
		m.datasetsOpen,
		m.rowsLoaded,
		m.reportCache,
	)
}

// DatasetLoaded records a successful load.
func (m *Metrics) DatasetLoaded(format string, rows int) {
	if m == nil {
		return
	}
	m.datasetsLoaded.WithLabelValues(format).Inc()
	m.rowsLoaded.Add(float64(rows))
}

// DatasetEvicted records an idle eviction.
func (m *Metrics) DatasetEvicted() {
	if m == nil {
		return
	}
	m.datasetsEvicted.Inc()
}

// CacheLookup records a report memo lookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCache.WithLabelValues(result).Inc()
}

// ToolMiddleware times each tool call and counts its outcome.
func (m *Metrics) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		outcome := "ok"
		if err != nil || (res != nil && res.IsError) {
			outcome = "error"
		}
		m.toolCalls.WithLabelValues(req.Params.Name, outcome).Inc()
		m.toolDuration.WithLabelValues(req.Params.Name).Observe(time.Since(start).Seconds())
		return res, err
	}
}
