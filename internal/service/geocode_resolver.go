package service

import (
	"context"
	"strings"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/port"

	"go.uber.org/zap"
)

// geocodeAttempts is the total number of provider attempts per address.
const geocodeAttempts = 2

// AddressQuery renders an address for the geocoding provider. A blank
// address renders to the empty string and must never reach the provider.
func AddressQuery(a domain.Address) string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(a.Street); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(a.City); s != "" {
		parts = append(parts, s)
	}
	stateZip := strings.TrimSpace(strings.TrimSpace(a.State) + " " + strings.TrimSpace(a.ZipCode))
	if stateZip != "" {
		parts = append(parts, stateZip)
	}
	return strings.Join(parts, ", ")
}

// GeocodeResolver turns address queries into coordinates. It retries
// transient outcomes with exponential backoff and gives up on terminal
// ones. It never returns an error: an unresolvable address is simply
// not a marker.
type GeocodeResolver struct {
	geocoder       port.Geocoder
	initialBackoff time.Duration
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewGeocodeResolver creates the resolver.
func NewGeocodeResolver(g port.Geocoder, initialBackoff, requestTimeout time.Duration, logger *zap.Logger) *GeocodeResolver {
	return &GeocodeResolver{
		geocoder:       g,
		initialBackoff: initialBackoff,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Resolve attempts to geocode the query. The second return is false when
// the address cannot be resolved to a usable coordinate.
func (r *GeocodeResolver) Resolve(ctx context.Context, query string) (domain.Coordinate, bool) {
	if strings.TrimSpace(query) == "" {
		return domain.Coordinate{}, false
	}

	for attempt := 0; attempt < geocodeAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
		outcome := r.geocoder.Geocode(attemptCtx, query)
		cancel()

		if outcome.Status == domain.GeocodeOK {
			return outcome.Coordinate, true
		}

		if !outcome.Status.Retryable() {
			r.logger.Debug("geocode gave up",
				zap.String("status", outcome.Status.String()),
				zap.Int("attempt", attempt+1),
			)
			return domain.Coordinate{}, false
		}

		if attempt < geocodeAttempts-1 {
			backoff := r.initialBackoff << attempt
			r.logger.Debug("geocode retrying",
				zap.String("status", outcome.Status.String()),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return domain.Coordinate{}, false
			case <-time.After(backoff):
			}
		}
	}

	return domain.Coordinate{}, false
}
