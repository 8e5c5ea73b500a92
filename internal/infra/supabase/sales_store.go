package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"
)

type salesRecordRow struct {
	CustomerID     string  `json:"customer_id"`
	Category       string  `json:"category"`
	SalesAmount    float64 `json:"sales_amount"`
	Year           int     `json:"year"`
	ComparisonType string  `json:"comparison_type"`
	Customer       *struct {
		CustomerName string `json:"customer_name"`
		Territory    string `json:"territory"`
	} `json:"customers"`
}

// ListSalesRecords fetches all sales rows for the given report years,
// joined with the owning customer's name and territory.
func (c *Client) ListSalesRecords(ctx context.Context, years []int) ([]domain.SalesRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListSalesRecords")
	defer span.End()

	yearFilter := make([]string, 0, len(years))
	for _, y := range years {
		yearFilter = append(yearFilter, strconv.Itoa(y))
	}

	var records []domain.SalesRecord

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"sales?select=customer_id,category,sales_amount,year,comparison_type,customers(customer_name,territory)&year=in.(%s)",
				strings.Join(yearFilter, ","),
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				records = []domain.SalesRecord{}
				return nil
			}

			var rows []salesRecordRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode sales: %w", err)
			}

			records = make([]domain.SalesRecord, 0, len(rows))
			for _, r := range rows {
				rec := domain.SalesRecord{
					CustomerID:     r.CustomerID,
					Category:       r.Category,
					SalesAmount:    r.SalesAmount,
					Year:           r.Year,
					ComparisonType: r.ComparisonType,
				}
				if r.Customer != nil {
					rec.CustomerName = r.Customer.CustomerName
					rec.Territory = r.Customer.Territory
				}
				records = append(records, rec)
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/sales", Err: err}
	}

	return records, nil
}
