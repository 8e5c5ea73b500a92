package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// customerSelect embeds addresses (with their geocoded location), sales
// rows and contacts in a single PostgREST query.
const customerSelect = "select=customer_id,customer_name,account_number,territory,account_classification," +
	"introduced_myself,introduced_myself_at,introduced_myself_by," +
	"visited_account,visited_account_at,visited_account_by," +
	"addresses(address_id,street,city,state,zip_code,geocoded_locations(latitude,longitude))," +
	"sales(category,sales_amount,year,comparison_type)," +
	"contacts(contact_id,contact_name,role,phone_number,email)"

// --- Row mapping ---

type customerRow struct {
	CustomerID            string       `json:"customer_id"`
	CustomerName          string       `json:"customer_name"`
	AccountNumber         string       `json:"account_number"`
	Territory             string       `json:"territory"`
	AccountClassification string       `json:"account_classification"`
	IntroducedMyself      bool         `json:"introduced_myself"`
	IntroducedMyselfAt    *time.Time   `json:"introduced_myself_at"`
	IntroducedMyselfBy    string       `json:"introduced_myself_by"`
	VisitedAccount        bool         `json:"visited_account"`
	VisitedAccountAt      *time.Time   `json:"visited_account_at"`
	VisitedAccountBy      string       `json:"visited_account_by"`
	Addresses             []addressRow `json:"addresses"`
	Sales                 []salesRow   `json:"sales"`
	Contacts              []contactRow `json:"contacts"`
}

type addressRow struct {
	AddressID string         `json:"address_id"`
	Street    string         `json:"street"`
	City      string         `json:"city"`
	State     string         `json:"state"`
	ZipCode   string         `json:"zip_code"`
	Geocoded  []geocodedCols `json:"geocoded_locations"`
}

type geocodedCols struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type salesRow struct {
	Category       string  `json:"category"`
	SalesAmount    float64 `json:"sales_amount"`
	Year           int     `json:"year"`
	ComparisonType string  `json:"comparison_type"`
}

type contactRow struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

func (r customerRow) toDomain() domain.Customer {
	c := domain.Customer{
		CustomerID:            r.CustomerID,
		CustomerName:          r.CustomerName,
		AccountNumber:         r.AccountNumber,
		Territory:             r.Territory,
		AccountClassification: r.AccountClassification,
		IntroducedMyself:      r.IntroducedMyself,
		IntroducedMyselfAt:    r.IntroducedMyselfAt,
		IntroducedMyselfBy:    r.IntroducedMyselfBy,
		VisitedAccount:        r.VisitedAccount,
		VisitedAccountAt:      r.VisitedAccountAt,
		VisitedAccountBy:      r.VisitedAccountBy,
	}
	for _, a := range r.Addresses {
		addr := domain.Address{
			AddressID: a.AddressID,
			Street:    a.Street,
			City:      a.City,
			State:     a.State,
			ZipCode:   a.ZipCode,
		}
		// The geocoded_locations embed is one-to-one but arrives as an array.
		if len(a.Geocoded) > 0 {
			addr.Geocoded = &domain.Coordinate{Lat: a.Geocoded[0].Latitude, Lng: a.Geocoded[0].Longitude}
		}
		c.Addresses = append(c.Addresses, addr)
	}
	for _, s := range r.Sales {
		c.Sales = append(c.Sales, domain.SalesRecord{
			CustomerID:     r.CustomerID,
			CustomerName:   r.CustomerName,
			Territory:      r.Territory,
			Category:       s.Category,
			SalesAmount:    s.SalesAmount,
			Year:           s.Year,
			ComparisonType: s.ComparisonType,
		})
	}
	for _, p := range r.Contacts {
		c.Contacts = append(c.Contacts, domain.Contact{
			ContactID:   p.ContactID,
			ContactName: p.ContactName,
			Role:        p.Role,
			PhoneNumber: p.PhoneNumber,
			Email:       p.Email,
		})
	}
	return c
}

// --- TerritoryStore: customers ---

// ListCustomers fetches every customer with addresses, sales and contacts.
func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCustomers")
	defer span.End()

	var customers []domain.Customer

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("customers?%s&order=customer_name.asc", customerSelect)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				customers = []domain.Customer{}
				return nil
			}

			var rows []customerRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode customers: %w", err)
			}

			customers = make([]domain.Customer, 0, len(rows))
			for _, r := range rows {
				customers = append(customers, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}

	return customers, nil
}

// GetCustomer fetches a single customer by id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	var customer *domain.Customer

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("customers?customer_id=eq.%s&%s&limit=1", url.QueryEscape(customerID), customerSelect)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "customer", ID: customerID}
			}

			var rows []customerRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode customer: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "customer", ID: customerID}
			}

			cust := rows[0].toDomain()
			customer = &cust
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}

	return customer, nil
}

// UpdateCustomerStatus patches the introduced/visited flags, stamping the
// change time and actor alongside each toggled flag.
func (c *Client) UpdateCustomerStatus(ctx context.Context, customerID string, upd *domain.StatusUpdate) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCustomerStatus")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	data := map[string]any{}
	now := time.Now().UTC().Format(time.RFC3339)
	if upd.IntroducedMyself != nil {
		data["introduced_myself"] = *upd.IntroducedMyself
		data["introduced_myself_at"] = now
		data["introduced_myself_by"] = upd.Actor
	}
	if upd.VisitedAccount != nil {
		data["visited_account"] = *upd.VisitedAccount
		data["visited_account_at"] = now
		data["visited_account_by"] = upd.Actor
	}
	if len(data) == 0 {
		return nil, &domain.ErrValidation{Field: "status", Message: "no fields to update"}
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("customers?customer_id=eq.%s", url.QueryEscape(customerID))
			body, err := c.doPatch(ctx, path, data)
			if err != nil {
				return err
			}
			if string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "customer", ID: customerID}
			}
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}

	return c.GetCustomer(ctx, customerID)
}

// CountCustomersByTerritory folds the territory column into counts.
// PostgREST has no GROUP BY, so we pull the single column and count here.
func (c *Client) CountCustomersByTerritory(ctx context.Context) (map[string]int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountCustomersByTerritory")
	defer span.End()

	counts := map[string]int{}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, "customers?select=territory")
			if err != nil {
				return err
			}
			if body == nil {
				return nil
			}

			var rows []struct {
				Territory string `json:"territory"`
			}
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode territories: %w", err)
			}
			for _, r := range rows {
				if r.Territory != "" {
					counts[r.Territory]++
				}
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}

	return counts, nil
}

// GetAccountStats runs three head-count queries: all accounts, introduced,
// visited.
func (c *Client) GetAccountStats(ctx context.Context) (*domain.AccountStats, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccountStats")
	defer span.End()

	var stats domain.AccountStats

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			total, err := c.doCount(ctx, "customers?select=customer_id")
			if err != nil {
				return err
			}
			introduced, err := c.doCount(ctx, "customers?select=customer_id&introduced_myself=eq.true")
			if err != nil {
				return err
			}
			visited, err := c.doCount(ctx, "customers?select=customer_id&visited_account=eq.true")
			if err != nil {
				return err
			}
			stats = domain.AccountStats{Total: total, Introduced: introduced, Visited: visited}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}

	return &stats, nil
}
