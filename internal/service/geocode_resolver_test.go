package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/service"

	"go.uber.org/zap"
)

func newResolver(g *mockGeocoder) *service.GeocodeResolver {
	return service.NewGeocodeResolver(g, time.Millisecond, time.Second, zap.NewNop())
}

func TestAddressQuery(t *testing.T) {
	tests := []struct {
		name string
		addr domain.Address
		want string
	}{
		{
			"full address",
			domain.Address{Street: "1 Main St", City: "Kansas City", State: "MO", ZipCode: "64105"},
			"1 Main St, Kansas City, MO 64105",
		},
		{
			"missing zip",
			domain.Address{Street: "1 Main St", City: "Kansas City", State: "MO"},
			"1 Main St, Kansas City, MO",
		},
		{"blank", domain.Address{}, ""},
		{"whitespace only", domain.Address{Street: "  ", City: " "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.AddressQuery(tt.addr); got != tt.want {
				t.Errorf("AddressQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_Success(t *testing.T) {
	g := &mockGeocoder{fn: func(query string, call int) domain.GeocodeOutcome {
		return domain.GeocodeOutcome{
			Status:     domain.GeocodeOK,
			Coordinate: domain.Coordinate{Lat: 39.0997, Lng: -94.5786},
		}
	}}

	coord, ok := newResolver(g).Resolve(context.Background(), "1 Main St, Kansas City, MO")
	if !ok {
		t.Fatal("expected resolution to succeed")
	}
	if coord.Lat != 39.0997 {
		t.Errorf("unexpected coordinate: %+v", coord)
	}
	if g.callCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", g.callCount())
	}
}

func TestResolve_BlankQueryNeverCallsProvider(t *testing.T) {
	g := &mockGeocoder{}

	if _, ok := newResolver(g).Resolve(context.Background(), "   "); ok {
		t.Fatal("expected blank query to fail resolution")
	}
	if g.callCount() != 0 {
		t.Errorf("expected 0 provider calls, got %d", g.callCount())
	}
}

func TestResolve_TerminalStatusNotRetried(t *testing.T) {
	terminal := []domain.GeocodeStatus{
		domain.GeocodeZeroResults,
		domain.GeocodeRequestDenied,
		domain.GeocodeInvalidRequest,
		domain.GeocodeNotInUS,
		domain.GeocodeOutOfBounds,
		domain.GeocodeInvalidCoords,
	}
	for _, status := range terminal {
		t.Run(status.String(), func(t *testing.T) {
			g := &mockGeocoder{fn: func(query string, call int) domain.GeocodeOutcome {
				return domain.GeocodeOutcome{Status: status}
			}}

			if _, ok := newResolver(g).Resolve(context.Background(), "somewhere"); ok {
				t.Fatal("expected resolution to fail")
			}
			if g.callCount() != 1 {
				t.Errorf("terminal status retried: %d calls", g.callCount())
			}
		})
	}
}

func TestResolve_RetryableStatusRetriedOnce(t *testing.T) {
	g := &mockGeocoder{fn: func(query string, call int) domain.GeocodeOutcome {
		if call == 1 {
			return domain.GeocodeOutcome{Status: domain.GeocodeOverQueryLimit}
		}
		return domain.GeocodeOutcome{
			Status:     domain.GeocodeOK,
			Coordinate: domain.Coordinate{Lat: 40, Lng: -100},
		}
	}}

	coord, ok := newResolver(g).Resolve(context.Background(), "somewhere")
	if !ok {
		t.Fatal("expected second attempt to succeed")
	}
	if coord.Lat != 40 {
		t.Errorf("unexpected coordinate: %+v", coord)
	}
	if g.callCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", g.callCount())
	}
}

func TestResolve_GivesUpAfterTwoAttempts(t *testing.T) {
	g := &mockGeocoder{fn: func(query string, call int) domain.GeocodeOutcome {
		return domain.GeocodeOutcome{Status: domain.GeocodeTimeout}
	}}

	if _, ok := newResolver(g).Resolve(context.Background(), "somewhere"); ok {
		t.Fatal("expected resolution to fail")
	}
	if g.callCount() != 2 {
		t.Errorf("expected exactly 2 provider calls, got %d", g.callCount())
	}
}
