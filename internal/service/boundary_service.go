package service

import (
	"context"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/geo"
	"github.com/mkelleher/territory-console-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var boundaryTracer = otel.Tracer("service/boundary")

// BoundaryService loads territory polygons from the store, groups them
// preserving row order, and keeps only drawable ones. Validation problems
// are returned as diagnostics, never as errors: one broken territory must
// not blank the whole map.
type BoundaryService struct {
	store  port.TerritoryStore
	logger *zap.Logger
}

// NewBoundaryService creates the service.
func NewBoundaryService(store port.TerritoryStore, logger *zap.Logger) *BoundaryService {
	return &BoundaryService{store: store, logger: logger}
}

// Boundaries returns the valid territory polygons plus per-territory
// diagnostics for any that were dropped.
func (s *BoundaryService) Boundaries(ctx context.Context) (*domain.BoundarySet, error) {
	ctx, span := boundaryTracer.Start(ctx, "BoundaryService.Boundaries")
	defer span.End()

	rows, err := s.store.ListBoundaryPoints(ctx)
	if err != nil {
		return nil, err
	}

	set := &domain.BoundarySet{
		Boundaries:  []domain.TerritoryBoundary{},
		Diagnostics: map[string][]string{},
	}

	// Rows arrive ordered by (territory_name, sequence); group runs of
	// the same territory without reordering.
	var (
		current string
		points  []domain.Point
	)
	flush := func() {
		if current == "" {
			return
		}
		s.appendBoundary(set, current, points)
		points = nil
	}

	for _, row := range rows {
		if row.TerritoryName != current {
			flush()
			current = row.TerritoryName
		}
		// Non-finite vertices are dropped silently; they are data entry
		// noise, not a reason to lose the territory.
		if !geo.Finite(row.Latitude) || !geo.Finite(row.Longitude) {
			s.logger.Debug("dropping non-finite boundary point",
				zap.String("territory", row.TerritoryName),
				zap.Int("sequence", row.Sequence),
			)
			continue
		}
		points = append(points, domain.Point{Lat: row.Latitude, Lng: row.Longitude})
	}
	flush()

	if len(set.Diagnostics) == 0 {
		set.Diagnostics = nil
	}
	return set, nil
}

func (s *BoundaryService) appendBoundary(set *domain.BoundarySet, name string, points []domain.Point) {
	issues := geo.ValidatePolygon(points)
	if len(issues) > 0 {
		s.logger.Warn("territory boundary failed validation",
			zap.String("territory", name),
			zap.Strings("issues", issues),
		)
		set.Diagnostics[name] = issues
		return
	}
	set.Boundaries = append(set.Boundaries, domain.TerritoryBoundary{
		TerritoryName: name,
		Points:        points,
	})
}
