// Package domain defines the core business entities for the territory
// console. These models are independent of the hosted store and the
// geocoding provider and represent the canonical data structures used
// throughout the service.
package domain

import "time"

// ============================================================
// Geography
// ============================================================

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coordinate is a resolved geographic location for an address.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// TerritoryBoundary is a named, closed polygon outlining a sales territory.
type TerritoryBoundary struct {
	TerritoryName string  `json:"territory_name"`
	Points        []Point `json:"points"`
}

// BoundaryPoint is a single raw polygon vertex row as stored upstream.
// Rows are ordered by (territory_name, sequence).
type BoundaryPoint struct {
	TerritoryName string  `json:"territory_name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Sequence      int     `json:"sequence"`
}

// ============================================================
// Customers
// ============================================================

// Classifications lists the valid account tiers, best first.
var Classifications = []string{"A", "B+", "B", "C"}

// ClassificationColors maps an account tier to its marker color.
var ClassificationColors = map[string]string{
	"A":  "#22C55E",
	"B+": "#3B82F6",
	"B":  "#6366F1",
	"C":  "#EAB308",
}

// DefaultMarkerColor is used when a customer carries no classification.
const DefaultMarkerColor = "#9CA3AF"

// Customer is a sales account with its joined addresses, sales rows and
// contacts, as returned by the customer list query.
type Customer struct {
	CustomerID            string        `json:"customer_id"`
	CustomerName          string        `json:"customer_name"`
	AccountNumber         string        `json:"account_number"`
	Territory             string        `json:"territory,omitempty"`
	AccountClassification string        `json:"account_classification,omitempty"`
	IntroducedMyself      bool          `json:"introduced_myself"`
	IntroducedMyselfAt    *time.Time    `json:"introduced_myself_at,omitempty"`
	IntroducedMyselfBy    string        `json:"introduced_myself_by,omitempty"`
	VisitedAccount        bool          `json:"visited_account"`
	VisitedAccountAt      *time.Time    `json:"visited_account_at,omitempty"`
	VisitedAccountBy      string        `json:"visited_account_by,omitempty"`
	Addresses             []Address     `json:"addresses"`
	Sales                 []SalesRecord `json:"sales,omitempty"`
	Contacts              []Contact     `json:"contacts,omitempty"`
}

// PrimaryAddress returns the customer's first address, or nil.
func (c *Customer) PrimaryAddress() *Address {
	if len(c.Addresses) == 0 {
		return nil
	}
	return &c.Addresses[0]
}

// Address belongs to exactly one customer and owns at most one resolved
// coordinate. A customer without an address never gets a marker.
type Address struct {
	AddressID string      `json:"address_id"`
	Street    string      `json:"street"`
	City      string      `json:"city"`
	State     string      `json:"state"`
	ZipCode   string      `json:"zip_code"`
	Geocoded  *Coordinate `json:"geocoded_location,omitempty"`
}

// Contact is a person attached to a customer account.
type Contact struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
	Role        string `json:"role,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
}

// StatusUpdate mutates the introduced/visited progress flags on a customer.
// Nil fields are left untouched.
type StatusUpdate struct {
	IntroducedMyself *bool  `json:"introduced_myself,omitempty"`
	VisitedAccount   *bool  `json:"visited_account,omitempty"`
	Actor            string `json:"actor,omitempty"`
}

// ============================================================
// Sales
// ============================================================

// Comparison types for sales rows. Amounts are only ever summed within a
// matching (year, comparison_type) group.
const (
	ComparisonYTD  = "YTD"
	ComparisonFull = "FULL"
)

// SalesRecord is one per-customer, per-category, per-year sales row.
type SalesRecord struct {
	CustomerID     string  `json:"customer_id,omitempty"`
	CustomerName   string  `json:"customer_name,omitempty"`
	Territory      string  `json:"territory,omitempty"`
	Category       string  `json:"category"`
	SalesAmount    float64 `json:"sales_amount"`
	Year           int     `json:"year"`
	ComparisonType string  `json:"comparison_type"`
}

// CustomerRollup is the per-account revenue summary for the report window.
// BusinessUnits is sourced exclusively from FULL prior-year rows.
type CustomerRollup struct {
	CustomerID        string             `json:"customer_id"`
	CustomerName      string             `json:"customer_name"`
	AccountNumber     string             `json:"account_number,omitempty"`
	Territory         string             `json:"territory,omitempty"`
	Classification    string             `json:"account_classification,omitempty"`
	RevenueCurrentYTD float64            `json:"revenue_current_ytd"`
	RevenuePriorYTD   float64            `json:"revenue_prior_ytd"`
	RevenuePriorFull  float64            `json:"revenue_prior_full"`
	ChangePercent     float64            `json:"change_percent"`
	BusinessUnits     map[string]float64 `json:"business_units"`
}

// TerritoryRollup is the per-territory revenue summary. CustomerCount is
// the number of accounts carrying the territory label, independent of
// whether any of them have sales rows.
type TerritoryRollup struct {
	Territory         string             `json:"territory"`
	RevenueCurrentYTD float64            `json:"revenue_current_ytd"`
	RevenuePriorYTD   float64            `json:"revenue_prior_ytd"`
	RevenuePriorFull  float64            `json:"revenue_prior_full"`
	ChangePercent     float64            `json:"change_percent"`
	CustomerCount     int                `json:"customer_count"`
	BusinessUnits     map[string]float64 `json:"business_units"`
}

// SalesReport bundles both rollup granularities plus the report window.
type SalesReport struct {
	CurrentYear  int               `json:"current_year"`
	PriorYear    int               `json:"prior_year"`
	PerCustomer  []CustomerRollup  `json:"per_customer"`
	PerTerritory []TerritoryRollup `json:"per_territory"`
}

// AccountStats is the contact-progress summary across all accounts.
type AccountStats struct {
	Total      int `json:"total"`
	Introduced int `json:"introduced"`
	Visited    int `json:"visited"`
}

// ============================================================
// Markers
// ============================================================

// Marker pairs a resolved coordinate with the customer it represents.
// Markers are derived and ephemeral, recomputed whenever the filter set
// changes.
type Marker struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Customer Customer `json:"customer"`
}

// CachedMarker is a marker cache entry keyed by address id.
type CachedMarker struct {
	Lat float64
	Lng float64
}

// MarkerFilter selects which customers a pipeline run considers.
// An empty classification set matches every tier; an empty territory
// matches every territory.
type MarkerFilter struct {
	Classifications []string `json:"classifications,omitempty"`
	Territory       string   `json:"territory,omitempty"`
}

// PipelineProgress is a snapshot of a marker pipeline run.
type PipelineProgress struct {
	Processed int  `json:"processed"`
	Total     int  `json:"total"`
	Running   bool `json:"running"`
}

// MarkerRun is the final result of a pipeline run.
type MarkerRun struct {
	Markers   []Marker `json:"markers"`
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
}

// ============================================================
// Notes & Images
// ============================================================

// CustomerRef is the abbreviated customer join used on notes and images.
type CustomerRef struct {
	CustomerName  string `json:"customer_name"`
	AccountNumber string `json:"account_number"`
}

// CustomerNote is a free-text note attached to an account.
type CustomerNote struct {
	NoteID    string      `json:"note_id"`
	Content   string      `json:"content"`
	Hidden    bool        `json:"hidden"`
	CreatedAt time.Time   `json:"created_at"`
	Customer  CustomerRef `json:"customers"`
}

// CustomerImage is a display image attached to an account. The binary
// lives in the hosted blob store; only the URL is carried here.
type CustomerImage struct {
	ImageID     string      `json:"image_id"`
	URL         string      `json:"url"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Customer    CustomerRef `json:"customers"`
}

// ============================================================
// API Response types (matches frontend contract)
// ============================================================

// CustomerList is returned by GET /v1/customers, carrying the distinct
// sorted territory labels alongside the accounts.
type CustomerList struct {
	Customers   []Customer `json:"customers"`
	Territories []string   `json:"territories"`
}

// BoundarySet is returned by GET /v1/territories/boundaries: valid
// polygons plus the validation diagnostics for any territory dropped.
type BoundarySet struct {
	Boundaries  []TerritoryBoundary `json:"boundaries"`
	Diagnostics map[string][]string `json:"diagnostics,omitempty"`
}

// LegendEntry maps a classification tier to its marker color.
type LegendEntry struct {
	Classification string `json:"classification"`
	Color          string `json:"color"`
}

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// PipelineMetrics is returned by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	GeocodeRequests   int64   `json:"geocodeRequests"`
	GeocodeFailures   int64   `json:"geocodeFailures"`
	CacheHits         int64   `json:"cacheHits"`
	CacheMisses       int64   `json:"cacheMisses"`
	CacheHitRate      float64 `json:"cacheHitRate"`
	MarkersResolved   int64   `json:"markersResolved"`
	AddressesSkipped  int64   `json:"addressesSkipped"`
	RunsStarted       int64   `json:"runsStarted"`
	RunsSuperseded    int64   `json:"runsSuperseded"`
	AvgBatchLatencyMs float64 `json:"avgBatchLatencyMs"`
}
