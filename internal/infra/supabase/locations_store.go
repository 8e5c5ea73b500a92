package supabase

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// UpsertGeocodedLocation persists a resolved coordinate for an address.
// The address id is the conflict target, so re-geocoding the same address
// overwrites the previous row.
func (c *Client) UpsertGeocodedLocation(ctx context.Context, addressID string, coord domain.Coordinate) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertGeocodedLocation")
	defer span.End()
	span.SetAttributes(attribute.String("address.id", addressID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			data := map[string]any{
				"address_id": addressID,
				"latitude":   coord.Lat,
				"longitude":  coord.Lng,
			}
			_, err := c.doUpsert(ctx, "geocoded_locations?on_conflict=address_id", data)
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/geocoded_locations", Err: err}
	}
	return nil
}

// DeleteGeocodedLocation drops the persisted coordinate for an address,
// forcing the next pipeline run to re-geocode it. Used when an address is
// edited.
func (c *Client) DeleteGeocodedLocation(ctx context.Context, addressID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteGeocodedLocation")
	defer span.End()
	span.SetAttributes(attribute.String("address.id", addressID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("geocoded_locations?address_id=eq.%s", url.QueryEscape(addressID))
			return c.doDelete(ctx, path)
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/geocoded_locations", Err: err}
	}
	return nil
}
