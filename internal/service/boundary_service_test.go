package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/service"

	"go.uber.org/zap"
)

func boundaryRow(territory string, seq int, lat, lng float64) domain.BoundaryPoint {
	return domain.BoundaryPoint{TerritoryName: territory, Sequence: seq, Latitude: lat, Longitude: lng}
}

func squareRows(territory string) []domain.BoundaryPoint {
	return []domain.BoundaryPoint{
		boundaryRow(territory, 1, 38, -95),
		boundaryRow(territory, 2, 38, -94),
		boundaryRow(territory, 3, 39, -94),
		boundaryRow(territory, 4, 39, -95),
		boundaryRow(territory, 5, 38, -95),
	}
}

func TestBoundaries_GroupsAndValidates(t *testing.T) {
	store := newMockStore()
	store.boundaries = append(squareRows("East"), squareRows("West")...)

	svc := service.NewBoundaryService(store, zap.NewNop())
	set, err := svc.Boundaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(set.Boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d", len(set.Boundaries))
	}
	if set.Boundaries[0].TerritoryName != "East" || set.Boundaries[1].TerritoryName != "West" {
		t.Errorf("unexpected grouping: %+v", set.Boundaries)
	}
	if len(set.Boundaries[0].Points) != 5 {
		t.Errorf("expected 5 points, got %d", len(set.Boundaries[0].Points))
	}
	if set.Diagnostics != nil {
		t.Errorf("expected no diagnostics, got %v", set.Diagnostics)
	}
}

func TestBoundaries_DropsNonFinitePointsSilently(t *testing.T) {
	store := newMockStore()
	rows := squareRows("East")
	// A NaN vertex between valid ones disappears without losing the polygon.
	rows = append(rows[:2], append([]domain.BoundaryPoint{
		boundaryRow("East", 99, math.NaN(), -94.5),
	}, rows[2:]...)...)
	store.boundaries = rows

	svc := service.NewBoundaryService(store, zap.NewNop())
	set, err := svc.Boundaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(set.Boundaries) != 1 {
		t.Fatalf("expected 1 boundary, got %d (diagnostics: %v)", len(set.Boundaries), set.Diagnostics)
	}
	if len(set.Boundaries[0].Points) != 5 {
		t.Errorf("expected the NaN vertex dropped, got %d points", len(set.Boundaries[0].Points))
	}
}

func TestBoundaries_InvalidPolygonBecomesDiagnostic(t *testing.T) {
	store := newMockStore()
	// Bowtie: self-intersecting ring.
	store.boundaries = append([]domain.BoundaryPoint{
		boundaryRow("Broken", 1, 38, -95),
		boundaryRow("Broken", 2, 39, -94),
		boundaryRow("Broken", 3, 38, -94),
		boundaryRow("Broken", 4, 39, -95),
		boundaryRow("Broken", 5, 38, -95),
	}, squareRows("East")...)

	svc := service.NewBoundaryService(store, zap.NewNop())
	set, err := svc.Boundaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(set.Boundaries) != 1 || set.Boundaries[0].TerritoryName != "East" {
		t.Fatalf("expected only East to survive, got %+v", set.Boundaries)
	}
	if len(set.Diagnostics["Broken"]) == 0 {
		t.Error("expected diagnostics for the broken territory")
	}
}

func TestBoundaries_EmptyStore(t *testing.T) {
	svc := service.NewBoundaryService(newMockStore(), zap.NewNop())
	set, err := svc.Boundaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Boundaries) != 0 {
		t.Errorf("expected no boundaries, got %d", len(set.Boundaries))
	}
}
