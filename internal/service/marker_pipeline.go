package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/geo"
	"github.com/mkelleher/territory-console-go/internal/infra/observability"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"
	"github.com/mkelleher/territory-console-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var pipelineTracer = otel.Tracer("service/pipeline")

// ProgressFunc receives (processed, total) after each completed batch.
type ProgressFunc func(processed, total int)

// MarkerPipeline turns a filtered customer set into map markers. Each
// address goes through cache, then persisted coordinate, then the
// geocoding provider; fresh provider results are persisted and cached.
// Batches run sequentially; items within a batch run concurrently under
// a bulkhead. A new Run supersedes any in-flight one: the older run's
// results are discarded, they never overwrite newer state.
type MarkerPipeline struct {
	store    port.TerritoryStore
	resolver *GeocodeResolver
	cache    port.Cache[domain.CachedMarker]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger

	batchSize int
	delay     time.Duration

	generation atomic.Uint64

	mu       sync.Mutex
	progress domain.PipelineProgress
}

// NewMarkerPipeline creates the pipeline. batchSize and maxConcurrency
// must be positive; delay is the pause after each fresh provider geocode.
func NewMarkerPipeline(
	store port.TerritoryStore,
	resolver *GeocodeResolver,
	cache port.Cache[domain.CachedMarker],
	batchSize int,
	maxConcurrency int,
	delay time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *MarkerPipeline {
	return &MarkerPipeline{
		store:     store,
		resolver:  resolver,
		cache:     cache,
		bulkhead:  resilience.NewBulkhead(maxConcurrency),
		metrics:   metrics,
		logger:    logger,
		batchSize: batchSize,
		delay:     delay,
	}
}

// Progress returns a snapshot of the most recent run's state.
func (p *MarkerPipeline) Progress() domain.PipelineProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// InvalidateAddress drops both the cached marker and the persisted
// coordinate for an address. Called when the address is edited.
func (p *MarkerPipeline) InvalidateAddress(ctx context.Context, addressID string) error {
	p.cache.Delete(addressID)
	return p.store.DeleteGeocodedLocation(ctx, addressID)
}

// Run processes every customer matching the filter and returns their
// markers. A concurrent Run call supersedes this one; the superseded run
// stops at its next batch boundary and returns ErrConflict.
func (p *MarkerPipeline) Run(ctx context.Context, filter domain.MarkerFilter, onProgress ProgressFunc) (*domain.MarkerRun, error) {
	ctx, span := pipelineTracer.Start(ctx, "MarkerPipeline.Run")
	defer span.End()

	gen := p.generation.Add(1)
	p.metrics.IncrPipelineRun("started")

	start := time.Now()
	defer func() {
		p.metrics.RecordRequestDuration("marker_pipeline", time.Since(start))
	}()

	customers, err := p.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}

	selected := filterCustomers(customers, filter)
	total := len(selected)
	span.SetAttributes(attribute.Int("pipeline.total", total))

	p.setProgress(0, total, true)
	defer func() {
		p.mu.Lock()
		p.progress.Running = false
		p.mu.Unlock()
	}()

	run := &domain.MarkerRun{Markers: []domain.Marker{}, Total: total}

	for batchStart := 0; batchStart < total; batchStart += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.generation.Load() != gen {
			p.metrics.IncrPipelineRun("superseded")
			p.logger.Info("marker run superseded",
				zap.Int("processed", run.Processed),
				zap.Int("total", total),
			)
			return nil, &domain.ErrConflict{Message: "marker run superseded by a newer request"}
		}

		end := batchStart + p.batchSize
		if end > total {
			end = total
		}

		batchBegan := time.Now()
		markers := p.processBatch(ctx, selected[batchStart:end])
		p.metrics.RecordBatchDuration(time.Since(batchBegan))

		run.Markers = append(run.Markers, markers...)
		run.Processed = end
		p.setProgress(end, total, true)
		if onProgress != nil {
			onProgress(end, total)
		}
	}

	p.logger.Info("marker run complete",
		zap.Int("markers", len(run.Markers)),
		zap.Int("total", total),
	)
	return run, nil
}

// processBatch resolves one batch concurrently. A failing item only loses
// its own marker; the rest of the batch is unaffected.
func (p *MarkerPipeline) processBatch(ctx context.Context, batch []domain.Customer) []domain.Marker {
	var (
		mu      sync.Mutex
		markers []domain.Marker
		wg      sync.WaitGroup
	)

	for _, customer := range batch {
		customer := customer
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A panic out of a port implementation costs one marker, not
			// the whole run.
			defer func() {
				if r := recover(); r != nil {
					p.metrics.IncrAddressSkipped()
					p.logger.Warn("marker resolution panicked",
						zap.String("customer_id", customer.CustomerID),
						zap.Any("panic", r),
					)
				}
			}()
			if err := p.bulkhead.Acquire(ctx); err != nil {
				return
			}
			defer p.bulkhead.Release()

			marker, ok := p.resolveCustomer(ctx, customer)
			if !ok {
				p.metrics.IncrAddressSkipped()
				return
			}
			p.metrics.IncrMarkerResolved()
			mu.Lock()
			markers = append(markers, marker)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return markers
}

// resolveCustomer walks the cache → persisted coordinate → provider chain
// for one customer's primary address.
func (p *MarkerPipeline) resolveCustomer(ctx context.Context, customer domain.Customer) (domain.Marker, bool) {
	addr := customer.PrimaryAddress()
	if addr == nil {
		return domain.Marker{}, false
	}

	if cached, ok := p.cache.Get(addr.AddressID); ok {
		p.metrics.IncrCacheHit("markers")
		return domain.Marker{Lat: cached.Lat, Lng: cached.Lng, Customer: customer}, true
	}
	p.metrics.IncrCacheMiss("markers")

	if g := addr.Geocoded; g != nil && geo.ValidCoordinate(g.Lat, g.Lng) {
		p.cache.Set(addr.AddressID, domain.CachedMarker{Lat: g.Lat, Lng: g.Lng})
		return domain.Marker{Lat: g.Lat, Lng: g.Lng, Customer: customer}, true
	}

	query := AddressQuery(*addr)
	if query == "" {
		return domain.Marker{}, false
	}

	coord, ok := p.resolver.Resolve(ctx, query)
	// The provider was hit either way; pace the next request.
	defer p.pace(ctx)
	if !ok {
		return domain.Marker{}, false
	}

	if err := p.store.UpsertGeocodedLocation(ctx, addr.AddressID, coord); err != nil {
		// No marker and no cache fill: the next run must retry the
		// persist instead of hiding the failure for a full TTL.
		p.logger.Warn("failed to persist geocoded location",
			zap.String("address_id", addr.AddressID),
			zap.Error(err),
		)
		return domain.Marker{}, false
	}
	p.cache.Set(addr.AddressID, domain.CachedMarker{Lat: coord.Lat, Lng: coord.Lng})

	return domain.Marker{Lat: coord.Lat, Lng: coord.Lng, Customer: customer}, true
}

func (p *MarkerPipeline) pace(ctx context.Context) {
	if p.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.delay):
	}
}

func (p *MarkerPipeline) setProgress(processed, total int, running bool) {
	p.mu.Lock()
	p.progress = domain.PipelineProgress{Processed: processed, Total: total, Running: running}
	p.mu.Unlock()
	p.metrics.SetPipelineProgress(processed, total)
}

// filterCustomers applies the classification set and territory filter.
// An empty classification set matches every tier; an empty territory
// matches every territory.
func filterCustomers(customers []domain.Customer, f domain.MarkerFilter) []domain.Customer {
	classSet := map[string]bool{}
	for _, c := range f.Classifications {
		classSet[c] = true
	}

	out := make([]domain.Customer, 0, len(customers))
	for _, c := range customers {
		if len(classSet) > 0 && !classSet[c.AccountClassification] {
			continue
		}
		if f.Territory != "" && c.Territory != f.Territory {
			continue
		}
		out = append(out, c)
	}
	return out
}
