package observability

import (
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the console backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	geocodeRequests  *prometheus.CounterVec
	markersResolved  prometheus.Counter
	addressesSkipped prometheus.Counter
	pipelineRuns     *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	pipelineProgress *prometheus.GaugeVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		geocodeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_geocode_requests_total",
				Help: "Total geocoding provider attempts by outcome.",
			},
			[]string{"status"},
		),
		markersResolved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_markers_resolved_total",
				Help: "Total markers successfully resolved to a coordinate.",
			},
		),
		addressesSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_addresses_skipped_total",
				Help: "Total addresses skipped (unresolvable or invalid).",
			},
		),
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_pipeline_runs_total",
				Help: "Marker pipeline runs by disposition.",
			},
			[]string{"disposition"},
		),
		batchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "console_pipeline_batch_duration_seconds",
				Help:    "Duration of a single pipeline batch.",
				Buckets: prometheus.DefBuckets,
			},
		),
		pipelineProgress: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "console_pipeline_progress",
				Help: "Current pipeline progress (processed/total).",
			},
			[]string{"stage"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrGeocodeRequest counts one provider attempt with its outcome.
func (m *Metrics) IncrGeocodeRequest(status domain.GeocodeStatus) {
	m.geocodeRequests.WithLabelValues(status.String()).Inc()
}

// IncrMarkerResolved counts a marker that made it onto the map.
func (m *Metrics) IncrMarkerResolved() {
	m.markersResolved.Inc()
}

// IncrAddressSkipped counts an address the pipeline gave up on.
func (m *Metrics) IncrAddressSkipped() {
	m.addressesSkipped.Inc()
}

// IncrPipelineRun counts a run start or a run superseded by a newer one.
func (m *Metrics) IncrPipelineRun(disposition string) {
	m.pipelineRuns.WithLabelValues(disposition).Inc()
}

// RecordBatchDuration records how long one pipeline batch took.
func (m *Metrics) RecordBatchDuration(d time.Duration) {
	m.batchDuration.Observe(d.Seconds())
}

// SetPipelineProgress updates the processed/total gauges.
func (m *Metrics) SetPipelineProgress(processed, total int) {
	m.pipelineProgress.WithLabelValues("processed").Set(float64(processed))
	m.pipelineProgress.WithLabelValues("total").Set(float64(total))
}

// GetPipelineSnapshot returns a snapshot of pipeline-related metrics
// suitable for the GET /v1/metrics/pipeline endpoint.
func (m *Metrics) GetPipelineSnapshot() *domain.PipelineMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	var requests, failures float64
	for s := domain.GeocodeOK; s <= domain.GeocodeUnknown; s++ {
		v := getCounterValue(m.geocodeRequests, s.String())
		requests += v
		if s != domain.GeocodeOK {
			failures += v
		}
	}

	cacheHits := getCounterValue(m.cacheHits, "markers")
	cacheMisses := getCounterValue(m.cacheMisses, "markers")
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	avgBatchMs := float64(0)
	if h := getHistogramSnapshot(m.batchDuration); h != nil && h.GetSampleCount() > 0 {
		avgBatchMs = h.GetSampleSum() / float64(h.GetSampleCount()) * 1000
	}

	return &domain.PipelineMetrics{
		GeocodeRequests:   int64(requests),
		GeocodeFailures:   int64(failures),
		CacheHits:         int64(cacheHits),
		CacheMisses:       int64(cacheMisses),
		CacheHitRate:      cacheHitRate,
		MarkersResolved:   int64(getCounterSingleValue(m.markersResolved)),
		AddressesSkipped:  int64(getCounterSingleValue(m.addressesSkipped)),
		RunsStarted:       int64(getCounterValue(m.pipelineRuns, "started")),
		RunsSuperseded:    int64(getCounterValue(m.pipelineRuns, "superseded")),
		AvgBatchLatencyMs: avgBatchMs,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getCounterSingleValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getHistogramSnapshot(h prometheus.Histogram) *dto.Histogram {
	m := &dto.Metric{}
	if err := h.Write(m); err != nil {
		return nil
	}
	return m.Histogram
}
