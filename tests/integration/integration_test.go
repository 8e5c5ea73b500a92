package integration_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/handler"
	"github.com/mkelleher/territory-console-go/internal/infra/cache"
	"github.com/mkelleher/territory-console-go/internal/infra/geocoder"
	"github.com/mkelleher/territory-console-go/internal/infra/observability"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"
	"github.com/mkelleher/territory-console-go/internal/infra/supabase"
	"github.com/mkelleher/territory-console-go/internal/service"

	"go.uber.org/zap"
)

// newMockPostgREST serves the handful of PostgREST queries the store
// issues: the customer list with embeds, boundary rows, head counts and
// the geocoded-location upsert.
func newMockPostgREST(t *testing.T) *httptest.Server {
	t.Helper()

	customers := `[
		{
			"customer_id": "cust-1",
			"customer_name": "Acme Valves",
			"account_number": "A-100",
			"territory": "East",
			"account_classification": "A",
			"introduced_myself": true,
			"visited_account": false,
			"addresses": [
				{
					"address_id": "addr-1",
					"street": "1 Main St",
					"city": "Kansas City",
					"state": "MO",
					"zip_code": "64105",
					"geocoded_locations": []
				}
			],
			"sales": [
				{"category": "Valves", "sales_amount": 1200, "year": 2025, "comparison_type": "YTD"},
				{"category": "Valves", "sales_amount": 1000, "year": 2024, "comparison_type": "YTD"},
				{"category": "Valves", "sales_amount": 2400, "year": 2024, "comparison_type": "FULL"}
			],
			"contacts": []
		}
	]`

	boundaries := `[
		{"territory_name": "East", "latitude": 38, "longitude": -95, "sequence": 1},
		{"territory_name": "East", "latitude": 38, "longitude": -94, "sequence": 2},
		{"territory_name": "East", "latitude": 39, "longitude": -94, "sequence": 3},
		{"territory_name": "East", "latitude": 39, "longitude": -95, "sequence": 4},
		{"territory_name": "East", "latitude": 38, "longitude": -95, "sequence": 5}
	]`

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodHead && strings.HasPrefix(r.URL.Path, "/rest/v1/customers"):
			w.Header().Set("Content-Range", "0-0/1")
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/rest/v1/customers"):
			w.Write([]byte(customers))
		case strings.HasPrefix(r.URL.Path, "/rest/v1/territory_boundaries"):
			w.Write([]byte(boundaries))
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/rest/v1/geocoded_locations"):
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[{"address_id":"addr-1","latitude":39.09,"longitude":-94.58}]`))
		case strings.HasPrefix(r.URL.Path, "/rest/v1/customer_notes"):
			w.Write([]byte(`[]`))
		case strings.HasPrefix(r.URL.Path, "/rest/v1/customer_images"):
			w.Write([]byte(`[]`))
		default:
			t.Logf("unexpected PostgREST request: %s %s", r.Method, r.URL.String())
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// newMockGeocodeAPI answers every query with a fixed in-bounds US result.
func newMockGeocodeAPI() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 39.09, "lng": -94.58}},
				"address_components": [{"short_name": "US", "types": ["country", "political"]}]
			}]
		}`))
	}))
}

func newIntegrationRouter(t *testing.T, postgrestURL, geocodeURL string) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	resilienceCfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	store := supabase.NewClient(
		httpClient, postgrestURL, "anon-key", "service-key",
		resilience.NewCircuitBreaker("supabase-test"), resilienceCfg, logger,
	)
	google := geocoder.NewGoogle(
		httpClient, geocodeURL, "test-key",
		resilience.NewCircuitBreaker("geocoder-test"), metrics, logger,
	)

	resolver := service.NewGeocodeResolver(google, 10*time.Millisecond, time.Second, logger)
	pipeline := service.NewMarkerPipeline(
		store, resolver, cache.New[domain.CachedMarker](time.Hour),
		50, 2, 0, metrics, logger,
	)

	return handler.NewRouter(
		service.NewCustomerService(store, pipeline, logger),
		service.NewDashboardService(store, 2025, metrics, logger),
		service.NewBoundaryService(store, logger),
		pipeline,
		store,
		metrics,
		logger,
	)
}

// TestIntegration_MarkerFlow runs the full chain: PostgREST customer list,
// provider geocode, location upsert, marker response.
func TestIntegration_MarkerFlow(t *testing.T) {
	postgrest := newMockPostgREST(t)
	defer postgrest.Close()
	geocode := newMockGeocodeAPI()
	defer geocode.Close()

	router := newIntegrationRouter(t, postgrest.URL, geocode.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/map/markers", strings.NewReader(`{"territory":"East"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var run domain.MarkerRun
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(run.Markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(run.Markers))
	}
	if run.Markers[0].Lat != 39.09 || run.Markers[0].Lng != -94.58 {
		t.Errorf("unexpected coordinate: %+v", run.Markers[0])
	}
	if run.Markers[0].Customer.CustomerName != "Acme Valves" {
		t.Errorf("unexpected customer: %+v", run.Markers[0].Customer)
	}
}

// TestIntegration_DashboardFlow exercises the sales rollup path against
// the embedded sales rows.
func TestIntegration_DashboardFlow(t *testing.T) {
	postgrest := newMockPostgREST(t)
	defer postgrest.Close()
	geocode := newMockGeocodeAPI()
	defer geocode.Close()

	router := newIntegrationRouter(t, postgrest.URL, geocode.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/territories", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		CurrentYear int                      `json:"current_year"`
		Territories []domain.TerritoryRollup `json:"territories"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CurrentYear != 2025 {
		t.Errorf("expected report year 2025, got %d", resp.CurrentYear)
	}
	if len(resp.Territories) != 1 {
		t.Fatalf("expected 1 territory, got %d", len(resp.Territories))
	}
	east := resp.Territories[0]
	if east.Territory != "East" || east.RevenueCurrentYTD != 1200 || east.RevenuePriorFull != 2400 {
		t.Errorf("unexpected rollup: %+v", east)
	}
}

// TestIntegration_Boundaries checks the boundary grouping end to end.
func TestIntegration_Boundaries(t *testing.T) {
	postgrest := newMockPostgREST(t)
	defer postgrest.Close()
	geocode := newMockGeocodeAPI()
	defer geocode.Close()

	router := newIntegrationRouter(t, postgrest.URL, geocode.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/territories/boundaries", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var set domain.BoundarySet
	if err := json.NewDecoder(rec.Body).Decode(&set); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(set.Boundaries) != 1 || set.Boundaries[0].TerritoryName != "East" {
		t.Fatalf("unexpected boundary set: %+v", set)
	}
	if len(set.Boundaries[0].Points) != 5 {
		t.Errorf("expected 5 vertices, got %d", len(set.Boundaries[0].Points))
	}
}

// TestIntegration_StoreDown verifies the error mapping when PostgREST is
// unreachable.
func TestIntegration_StoreDown(t *testing.T) {
	postgrest := newMockPostgREST(t)
	postgrest.Close() // immediately unreachable
	geocode := newMockGeocodeAPI()
	defer geocode.Close()

	router := newIntegrationRouter(t, postgrest.URL, geocode.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Error("expected non-200 when the store is unreachable")
	}
}
