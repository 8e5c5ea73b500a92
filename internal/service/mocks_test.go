package service_test

import (
	"context"
	"sync"

	"github.com/mkelleher/territory-console-go/internal/domain"
)

// mockStore implements port.TerritoryStore for service tests.
type mockStore struct {
	mu sync.Mutex

	customers  []domain.Customer
	sales      []domain.SalesRecord
	boundaries []domain.BoundaryPoint
	notes      []domain.CustomerNote
	images     []domain.CustomerImage
	stats      domain.AccountStats
	counts     map[string]int // overrides the derived territory counts when set

	listErr   error
	upsertErr error

	listCalls int
	listHook  func(call int)

	upserts map[string]domain.Coordinate
	deletes []string
}

func newMockStore() *mockStore {
	return &mockStore{upserts: map[string]domain.Coordinate{}}
}

func (m *mockStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	m.mu.Lock()
	m.listCalls++
	call := m.listCalls
	hook := m.listHook
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.customers, nil
}

func (m *mockStore) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	for i := range m.customers {
		if m.customers[i].CustomerID == customerID {
			return &m.customers[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: customerID}
}

func (m *mockStore) UpdateCustomerStatus(ctx context.Context, customerID string, upd *domain.StatusUpdate) (*domain.Customer, error) {
	for i := range m.customers {
		if m.customers[i].CustomerID == customerID {
			c := &m.customers[i]
			if upd.IntroducedMyself != nil {
				c.IntroducedMyself = *upd.IntroducedMyself
				c.IntroducedMyselfBy = upd.Actor
			}
			if upd.VisitedAccount != nil {
				c.VisitedAccount = *upd.VisitedAccount
				c.VisitedAccountBy = upd.Actor
			}
			return c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: customerID}
}

func (m *mockStore) CountCustomersByTerritory(ctx context.Context) (map[string]int, error) {
	if m.counts != nil {
		return m.counts, nil
	}
	counts := map[string]int{}
	for _, c := range m.customers {
		if c.Territory != "" {
			counts[c.Territory]++
		}
	}
	return counts, nil
}

func (m *mockStore) GetAccountStats(ctx context.Context) (*domain.AccountStats, error) {
	stats := m.stats
	return &stats, nil
}

func (m *mockStore) ListSalesRecords(ctx context.Context, years []int) ([]domain.SalesRecord, error) {
	return m.sales, nil
}

func (m *mockStore) ListBoundaryPoints(ctx context.Context) ([]domain.BoundaryPoint, error) {
	return m.boundaries, nil
}

func (m *mockStore) UpsertGeocodedLocation(ctx context.Context, addressID string, coord domain.Coordinate) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts[addressID] = coord
	return nil
}

func (m *mockStore) DeleteGeocodedLocation(ctx context.Context, addressID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, addressID)
	return nil
}

func (m *mockStore) ListRecentNotes(ctx context.Context, limit int) ([]domain.CustomerNote, error) {
	if len(m.notes) > limit {
		return m.notes[:limit], nil
	}
	return m.notes, nil
}

func (m *mockStore) CreateNote(ctx context.Context, note *domain.CustomerNote, customerID string) (*domain.CustomerNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append([]domain.CustomerNote{*note}, m.notes...)
	return note, nil
}

func (m *mockStore) ListRecentImages(ctx context.Context, limit int) ([]domain.CustomerImage, error) {
	if len(m.images) > limit {
		return m.images[:limit], nil
	}
	return m.images, nil
}

func (m *mockStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

// mockGeocoder implements port.Geocoder with a scripted response func.
type mockGeocoder struct {
	mu    sync.Mutex
	calls int
	fn    func(query string, call int) domain.GeocodeOutcome
}

func (g *mockGeocoder) Geocode(ctx context.Context, query string) domain.GeocodeOutcome {
	g.mu.Lock()
	g.calls++
	call := g.calls
	fn := g.fn
	g.mu.Unlock()

	if fn == nil {
		return domain.GeocodeOutcome{Status: domain.GeocodeZeroResults}
	}
	return fn(query, call)
}

func (g *mockGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
