// Package geocoder adapts the Google Geocoding API to the Geocoder port.
// Every provider answer, transport failure and timeout is classified into
// a typed status; the adapter never returns an error.
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/geo"
	"github.com/mkelleher/territory-console-go/internal/infra/observability"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("geocoder")

// Google calls the Google Geocoding API.
type Google struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewGoogle creates the adapter. httpClient carries the per-request
// timeout; a timeout there surfaces as GeocodeTimeout.
func NewGoogle(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics, logger *zap.Logger) *Google {
	return &Google{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		metrics:    metrics,
		logger:     logger,
	}
}

type googleResponse struct {
	Status  string         `json:"status"`
	Results []googleResult `json:"results"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	AddressComponents []addressComponent `json:"address_components"`
}

type addressComponent struct {
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Geocode resolves one address query to a classified outcome.
func (g *Google) Geocode(ctx context.Context, query string) domain.GeocodeOutcome {
	ctx, span := tracer.Start(ctx, "Geocoder.Geocode")
	defer span.End()

	outcome := g.geocode(ctx, query)

	span.SetAttributes(attribute.String("geocode.status", outcome.Status.String()))
	g.metrics.IncrGeocodeRequest(outcome.Status)
	if outcome.Status != domain.GeocodeOK {
		g.logger.Debug("geocode attempt failed",
			zap.String("status", outcome.Status.String()),
		)
	}
	return outcome
}

func (g *Google) geocode(ctx context.Context, query string) domain.GeocodeOutcome {
	reqURL := fmt.Sprintf("%s?address=%s&key=%s", g.baseURL, url.QueryEscape(query), url.QueryEscape(g.apiKey))

	result, err := g.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("geocoding provider returned status %d", resp.StatusCode)
		}

		var decoded googleResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
		}
		return &decoded, nil
	})

	if err != nil {
		g.metrics.IncrExternalError("geocoder")
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return domain.GeocodeOutcome{Status: domain.GeocodeTimeout}
		}
		// Breaker-open and transport failures are both transient from the
		// resolver's point of view.
		return domain.GeocodeOutcome{Status: domain.GeocodeNetworkError}
	}

	return classify(result.(*googleResponse))
}

func classify(resp *googleResponse) domain.GeocodeOutcome {
	switch resp.Status {
	case "OK":
		// handled below
	case "ZERO_RESULTS":
		return domain.GeocodeOutcome{Status: domain.GeocodeZeroResults}
	case "OVER_QUERY_LIMIT":
		return domain.GeocodeOutcome{Status: domain.GeocodeOverQueryLimit}
	case "REQUEST_DENIED":
		return domain.GeocodeOutcome{Status: domain.GeocodeRequestDenied}
	case "INVALID_REQUEST":
		return domain.GeocodeOutcome{Status: domain.GeocodeInvalidRequest}
	default:
		return domain.GeocodeOutcome{Status: domain.GeocodeUnknown}
	}

	if len(resp.Results) == 0 {
		return domain.GeocodeOutcome{Status: domain.GeocodeZeroResults}
	}

	top := resp.Results[0]
	if !countryIsUS(top.AddressComponents) {
		return domain.GeocodeOutcome{Status: domain.GeocodeNotInUS}
	}

	lat, lng := top.Geometry.Location.Lat, top.Geometry.Location.Lng
	if !geo.Finite(lat) || !geo.Finite(lng) {
		return domain.GeocodeOutcome{Status: domain.GeocodeInvalidCoords}
	}
	if !geo.InBounds(lat, lng) {
		return domain.GeocodeOutcome{Status: domain.GeocodeOutOfBounds}
	}

	return domain.GeocodeOutcome{
		Status:     domain.GeocodeOK,
		Coordinate: domain.Coordinate{Lat: lat, Lng: lng},
	}
}

func countryIsUS(components []addressComponent) bool {
	for _, c := range components {
		for _, t := range c.Types {
			if t == "country" {
				return c.ShortName == "US"
			}
		}
	}
	return false
}
