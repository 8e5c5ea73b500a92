// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/mkelleher/territory-console-go/internal/domain"
)

// Geocoder resolves a free-form address string to a classified outcome.
// Classification is total: transport failures, timeouts and provider
// rejections all surface as a status, never as an error.
type Geocoder interface {
	Geocode(ctx context.Context, query string) domain.GeocodeOutcome
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Clear()
	Size() int
}

// TerritoryStore defines all data operations against the hosted store.
// Implemented by the Supabase adapter (or any other persistence layer).
type TerritoryStore interface {
	// Customers
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	UpdateCustomerStatus(ctx context.Context, customerID string, upd *domain.StatusUpdate) (*domain.Customer, error)
	CountCustomersByTerritory(ctx context.Context) (map[string]int, error)
	GetAccountStats(ctx context.Context) (*domain.AccountStats, error)

	// Sales
	ListSalesRecords(ctx context.Context, years []int) ([]domain.SalesRecord, error)

	// Territory boundaries
	ListBoundaryPoints(ctx context.Context) ([]domain.BoundaryPoint, error)

	// Geocoded locations
	UpsertGeocodedLocation(ctx context.Context, addressID string, coord domain.Coordinate) error
	DeleteGeocodedLocation(ctx context.Context, addressID string) error

	// Notes & images
	ListRecentNotes(ctx context.Context, limit int) ([]domain.CustomerNote, error)
	CreateNote(ctx context.Context, note *domain.CustomerNote, customerID string) (*domain.CustomerNote, error)
	ListRecentImages(ctx context.Context, limit int) ([]domain.CustomerImage, error)
}

// HealthChecker probes a dependency for liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
