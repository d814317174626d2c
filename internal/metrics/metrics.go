// Package metrics exposes Prometheus instrumentation for Talon.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric the service records. It registers against
// an explicit Registerer so tests can use private registries.
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram

	graphNodes    prometheus.Gauge
	graphEdges    prometheus.Gauge
	highRisk      prometheus.Gauge
	communities   prometheus.Gauge
	sharedDevices prometheus.Gauge

	queries *prometheus.CounterVec
	alerts  prometheus.Counter

	ingestRows    *prometheus.CounterVec
	ingestBatches prometheus.Counter
}

// NewCollector creates and registers all metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talon_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "talon_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talon_analysis_passes_total",
				Help: "Total number of analysis passes by outcome",
			},
			[]string{"status"},
		),
		passDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "talon_analysis_duration_seconds",
				Help:    "End-to-end analysis pass duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		graphNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "talon_graph_nodes",
				Help: "Number of nodes in the last built graph",
			},
		),
		graphEdges: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "talon_graph_edges",
				Help: "Number of relational edges in the last built graph",
			},
		),
		highRisk: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "talon_high_risk_accounts",
				Help: "Number of accounts above the risk threshold in the last report",
			},
		),
		communities: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "talon_communities",
				Help: "Number of communities detected in the last report",
			},
		),
		sharedDevices: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "talon_shared_devices",
				Help: "Number of devices shared by two or more accounts in the last report",
			},
		),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talon_queries_total",
				Help: "Total number of graph queries by type",
			},
			[]string{"type"},
		),
		alerts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "talon_alerts_published_total",
				Help: "Total number of flagged-account alerts published",
			},
		),
		ingestRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talon_ingest_rows_total",
				Help: "Total number of rows consumed from the ingest stream by type",
			},
			[]string{"type"},
		),
		ingestBatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "talon_ingest_batches_total",
				Help: "Total number of committed ingest batches",
			},
		),
	}
}

// ObserveHTTPRequest records one handled HTTP request.
func (c *Collector) ObserveHTTPRequest(method, path string, status int, seconds float64) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(seconds)
}

// ObservePass records one analysis pass and its duration.
func (c *Collector) ObservePass(status string, seconds float64) {
	c.passes.WithLabelValues(status).Inc()
	c.passDuration.Observe(seconds)
}

// SetGraphSize updates the node and edge gauges after a build.
func (c *Collector) SetGraphSize(nodes, edges int) {
	c.graphNodes.Set(float64(nodes))
	c.graphEdges.Set(float64(edges))
}

// SetReportSummary updates the report-level gauges.
func (c *Collector) SetReportSummary(highRisk, communities, sharedDevices int) {
	c.highRisk.Set(float64(highRisk))
	c.communities.Set(float64(communities))
	c.sharedDevices.Set(float64(sharedDevices))
}

// IncrementQueries counts one query of the given type.
func (c *Collector) IncrementQueries(queryType string) {
	c.queries.WithLabelValues(queryType).Inc()
}

// AddAlerts counts alerts published during a pass.
func (c *Collector) AddAlerts(n int) {
	c.alerts.Add(float64(n))
}

// IncrementIngestRows counts one consumed row of the given type.
func (c *Collector) IncrementIngestRows(rowType string) {
	c.ingestRows.WithLabelValues(rowType).Inc()
}

// IncrementIngestBatches counts one committed ingest batch.
func (c *Collector) IncrementIngestBatches() {
	c.ingestBatches.Inc()
}
