package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/matzehuels/bulkstat"

// MetricHooks records cache, HTTP and index events as OpenTelemetry metrics.
// It implements [CacheHooks], [HTTPHooks] and [IndexHooks] and is safe for
// concurrent use.
type MetricHooks struct {
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	cacheBytes   metric.Int64Counter
	httpRequests metric.Int64Counter
	httpErrors   metric.Int64Counter
	httpDuration metric.Float64Histogram
	indexLoads   metric.Int64Counter
	indexRecords metric.Int64Gauge
	indexQueries metric.Int64Counter
	loadDuration metric.Float64Histogram
}

// NewMetricHooks creates the instruments on meter.
func NewMetricHooks(meter metric.Meter) (*MetricHooks, error) {
	var m MetricHooks
	var err error
	counter := func(dst *metric.Int64Counter, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
	}

	counter(&m.cacheHits, "bulkstat.cache.hits", "Cache lookups served from the store", "{lookup}")
	counter(&m.cacheMisses, "bulkstat.cache.misses", "Cache lookups that required a fetch", "{lookup}")
	counter(&m.cacheBytes, "bulkstat.cache.written", "Bytes written to the cache", "By")
	counter(&m.httpRequests, "bulkstat.http.requests", "Outgoing HTTP requests", "{request}")
	counter(&m.httpErrors, "bulkstat.http.errors", "HTTP requests that failed at transport level", "{error}")
	histogram(&m.httpDuration, "bulkstat.http.duration_ms", "HTTP round-trip duration in milliseconds")
	counter(&m.indexLoads, "bulkstat.index.loads", "Metabase snapshot loads", "{load}")
	counter(&m.indexQueries, "bulkstat.index.queries", "Metabase lookups", "{query}")
	histogram(&m.loadDuration, "bulkstat.index.load_duration_ms", "Metabase load duration in milliseconds")
	if err == nil {
		m.indexRecords, err = meter.Int64Gauge("bulkstat.index.records",
			metric.WithDescription("Records in the current metabase snapshot"), metric.WithUnit("{record}"))
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// NewPrometheusHooks wires MetricHooks to a fresh Prometheus registry and
// returns the hooks plus an HTTP handler that serves the registry.
func NewPrometheusHooks() (*MetricHooks, http.Handler, error) {
	reg := prometheus.NewRegistry()
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	m, err := NewMetricHooks(mp.Meter(meterName))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func (m *MetricHooks) OnCacheHit(ctx context.Context, backend string) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

func (m *MetricHooks) OnCacheMiss(ctx context.Context, backend string) {
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

func (m *MetricHooks) OnCacheSet(ctx context.Context, backend string, size int) {
	m.cacheBytes.Add(ctx, int64(size), metric.WithAttributes(attribute.String("backend", backend)))
}

func (m *MetricHooks) OnRequest(ctx context.Context, method, host, path string) {
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("server.address", host),
	))
}

func (m *MetricHooks) OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration) {
	m.httpDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("server.address", host),
		attribute.Int("http.status_code", statusCode),
	))
}

func (m *MetricHooks) OnError(ctx context.Context, method, host, path string, err error) {
	m.httpErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("server.address", host),
	))
}

func (m *MetricHooks) OnLoadStart(ctx context.Context, source string) {}

func (m *MetricHooks) OnLoadComplete(ctx context.Context, snapshotID string, records int, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	opt := metric.WithAttributes(attribute.String("status", status))
	m.indexLoads.Add(ctx, 1, opt)
	m.loadDuration.Record(ctx, float64(duration.Milliseconds()), opt)
	if err == nil {
		m.indexRecords.Record(ctx, int64(records))
	}
}

func (m *MetricHooks) OnQuery(ctx context.Context, field string, results int) {
	m.indexQueries.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

var (
	_ CacheHooks = (*MetricHooks)(nil)
	_ HTTPHooks  = (*MetricHooks)(nil)
	_ IndexHooks = (*MetricHooks)(nil)
)
