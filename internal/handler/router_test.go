package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/handler"
	"github.com/mkelleher/territory-console-go/internal/infra/cache"
	"github.com/mkelleher/territory-console-go/internal/infra/observability"
	"github.com/mkelleher/territory-console-go/internal/service"

	"go.uber.org/zap"
)

// stubStore is a minimal in-memory TerritoryStore for routing tests.
type stubStore struct {
	customers  []domain.Customer
	sales      []domain.SalesRecord
	boundaries []domain.BoundaryPoint
	notes      []domain.CustomerNote
	images     []domain.CustomerImage
	stats      domain.AccountStats
}

func (s *stubStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.customers, nil
}

func (s *stubStore) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	for i := range s.customers {
		if s.customers[i].CustomerID == customerID {
			return &s.customers[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: customerID}
}

func (s *stubStore) UpdateCustomerStatus(ctx context.Context, customerID string, upd *domain.StatusUpdate) (*domain.Customer, error) {
	return s.GetCustomer(ctx, customerID)
}

func (s *stubStore) CountCustomersByTerritory(ctx context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (s *stubStore) GetAccountStats(ctx context.Context) (*domain.AccountStats, error) {
	stats := s.stats
	return &stats, nil
}

func (s *stubStore) ListSalesRecords(ctx context.Context, years []int) ([]domain.SalesRecord, error) {
	return s.sales, nil
}

func (s *stubStore) ListBoundaryPoints(ctx context.Context) ([]domain.BoundaryPoint, error) {
	return s.boundaries, nil
}

func (s *stubStore) UpsertGeocodedLocation(ctx context.Context, addressID string, coord domain.Coordinate) error {
	return nil
}

func (s *stubStore) DeleteGeocodedLocation(ctx context.Context, addressID string) error {
	return nil
}

func (s *stubStore) ListRecentNotes(ctx context.Context, limit int) ([]domain.CustomerNote, error) {
	return s.notes, nil
}

func (s *stubStore) CreateNote(ctx context.Context, note *domain.CustomerNote, customerID string) (*domain.CustomerNote, error) {
	return note, nil
}

func (s *stubStore) ListRecentImages(ctx context.Context, limit int) ([]domain.CustomerImage, error) {
	return s.images, nil
}

// stubGeocoder always resolves to the same in-bounds coordinate.
type stubGeocoder struct{}

func (stubGeocoder) Geocode(ctx context.Context, query string) domain.GeocodeOutcome {
	return domain.GeocodeOutcome{
		Status:     domain.GeocodeOK,
		Coordinate: domain.Coordinate{Lat: 39, Lng: -94.6},
	}
}

func newTestRouter(store *stubStore) http.Handler {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	resolver := service.NewGeocodeResolver(stubGeocoder{}, time.Millisecond, time.Second, logger)
	pipeline := service.NewMarkerPipeline(
		store, resolver, cache.New[domain.CachedMarker](time.Hour),
		50, 2, 0, metrics, logger,
	)

	return handler.NewRouter(
		service.NewCustomerService(store, pipeline, logger),
		service.NewDashboardService(store, 2025, metrics, logger),
		service.NewBoundaryService(store, logger),
		pipeline,
		nil, // no store health probe in tests
		metrics,
		logger,
	)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestListCustomers(t *testing.T) {
	store := &stubStore{customers: []domain.Customer{
		{CustomerID: "c1", CustomerName: "Acme", Territory: "East"},
	}}

	rec := doRequest(t, newTestRouter(store), http.MethodGet, "/v1/customers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var list domain.CustomerList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(list.Customers) != 1 || list.Territories[0] != "East" {
		t.Errorf("unexpected response: %+v", list)
	}
}

func TestGetCustomerNotFound(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodGet, "/v1/customers/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateStatusRejectsEmptyUpdate(t *testing.T) {
	store := &stubStore{customers: []domain.Customer{{CustomerID: "c1"}}}

	rec := doRequest(t, newTestRouter(store), http.MethodPatch, "/v1/customers/c1/status", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodPost, "/v1/notes",
		`{"customer_id":"c1","content":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, newTestRouter(&stubStore{}), http.MethodPost, "/v1/notes",
		`{"customer_id":"c1","content":"met the new buyer"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestRunMarkers(t *testing.T) {
	store := &stubStore{customers: []domain.Customer{
		{
			CustomerID:            "c1",
			CustomerName:          "Acme",
			Territory:             "East",
			AccountClassification: "A",
			Addresses: []domain.Address{{
				AddressID: "addr-1",
				Street:    "1 Main St",
				City:      "Kansas City",
				State:     "MO",
				ZipCode:   "64105",
			}},
		},
	}}

	rec := doRequest(t, newTestRouter(store), http.MethodPost, "/v1/map/markers",
		`{"classifications":["A"],"territory":"East"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var run domain.MarkerRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(run.Markers) != 1 || run.Markers[0].Lat != 39 {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestMarkerProgress(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodGet, "/v1/map/markers/progress", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestLegend(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodGet, "/v1/map/legend", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Legend []domain.LegendEntry `json:"legend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Legend) != len(domain.Classifications)+1 {
		t.Errorf("expected %d legend entries, got %d", len(domain.Classifications)+1, len(resp.Legend))
	}
	if resp.Legend[0].Classification != "A" || resp.Legend[0].Color != "#22C55E" {
		t.Errorf("unexpected first legend entry: %+v", resp.Legend[0])
	}
}

func TestBoundaries(t *testing.T) {
	store := &stubStore{boundaries: []domain.BoundaryPoint{
		{TerritoryName: "East", Sequence: 1, Latitude: 38, Longitude: -95},
		{TerritoryName: "East", Sequence: 2, Latitude: 38, Longitude: -94},
		{TerritoryName: "East", Sequence: 3, Latitude: 39, Longitude: -94},
		{TerritoryName: "East", Sequence: 4, Latitude: 39, Longitude: -95},
		{TerritoryName: "East", Sequence: 5, Latitude: 38, Longitude: -95},
	}}

	rec := doRequest(t, newTestRouter(store), http.MethodGet, "/v1/territories/boundaries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var set domain.BoundarySet
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(set.Boundaries) != 1 || set.Boundaries[0].TerritoryName != "East" {
		t.Errorf("unexpected boundary set: %+v", set)
	}
}

func TestPipelineMetricsEndpoint(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodGet, "/v1/metrics/pipeline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snapshot domain.PipelineMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
}

func TestInvalidateAddress(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStore{}), http.MethodDelete, "/v1/addresses/addr-1/location", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
