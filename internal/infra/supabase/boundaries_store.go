package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"
)

type boundaryPointRow struct {
	TerritoryName string  `json:"territory_name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Sequence      int     `json:"sequence"`
}

// ListBoundaryPoints fetches every polygon vertex ordered by territory
// then sequence. Grouping and validation happen in the service layer.
func (c *Client) ListBoundaryPoints(ctx context.Context) ([]domain.BoundaryPoint, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBoundaryPoints")
	defer span.End()

	var points []domain.BoundaryPoint

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "territory_boundaries?select=territory_name,latitude,longitude,sequence&order=territory_name.asc,sequence.asc"
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				points = []domain.BoundaryPoint{}
				return nil
			}

			var rows []boundaryPointRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode boundary points: %w", err)
			}

			points = make([]domain.BoundaryPoint, 0, len(rows))
			for _, r := range rows {
				points = append(points, domain.BoundaryPoint{
					TerritoryName: r.TerritoryName,
					Latitude:      r.Latitude,
					Longitude:     r.Longitude,
					Sequence:      r.Sequence,
				})
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/boundaries", Err: err}
	}

	return points, nil
}
