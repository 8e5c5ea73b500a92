package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/infra/observability"
	"github.com/mkelleher/territory-console-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashboardTracer = otel.Tracer("service/dashboard")

const (
	recentNotesLimit  = 15
	recentImagesLimit = 10
)

// DashboardService serves the console's summary views: revenue rollups,
// account progress stats, recent notes and images.
type DashboardService struct {
	store      port.TerritoryStore
	aggregator SalesAggregator
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewDashboardService creates the service for the given report window.
func NewDashboardService(store port.TerritoryStore, currentYear int, metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		store:      store,
		aggregator: SalesAggregator{CurrentYear: currentYear, PriorYear: currentYear - 1},
		metrics:    metrics,
		logger:     logger,
	}
}

// ReportYears returns the comparison window.
func (s *DashboardService) ReportYears() (current, prior int) {
	return s.aggregator.CurrentYear, s.aggregator.PriorYear
}

// buildReport fetches sales rows, the account list and the per-territory
// account counts concurrently and folds them into the rollup report.
func (s *DashboardService) buildReport(ctx context.Context) (*domain.SalesReport, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("sales_report", time.Since(start))
	}()

	var (
		records   []domain.SalesRecord
		customers []domain.Customer
		counts    map[string]int
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := s.store.ListSalesRecords(gCtx, []int{s.aggregator.CurrentYear, s.aggregator.PriorYear})
		if err != nil {
			s.metrics.IncrExternalError("supabase")
			return fmt.Errorf("sales fetch: %w", err)
		}
		records = r
		return nil
	})

	g.Go(func() error {
		c, err := s.store.ListCustomers(gCtx)
		if err != nil {
			s.metrics.IncrExternalError("supabase")
			return fmt.Errorf("customers fetch: %w", err)
		}
		customers = c
		return nil
	})

	g.Go(func() error {
		n, err := s.store.CountCustomersByTerritory(gCtx)
		if err != nil {
			s.metrics.IncrExternalError("supabase")
			return fmt.Errorf("territory counts: %w", err)
		}
		counts = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := s.aggregator.Aggregate(records, customers, counts)
	return &report, nil
}

// TerritoryRollups returns the per-territory revenue summary.
func (s *DashboardService) TerritoryRollups(ctx context.Context) ([]domain.TerritoryRollup, error) {
	ctx, span := dashboardTracer.Start(ctx, "Dashboard.TerritoryRollups")
	defer span.End()

	report, err := s.buildReport(ctx)
	if err != nil {
		return nil, err
	}
	return report.PerTerritory, nil
}

// AccountRollups returns per-customer rollups, optionally narrowed by
// territory, classification and a case-insensitive name search.
func (s *DashboardService) AccountRollups(ctx context.Context, territory, classification, search string) ([]domain.CustomerRollup, error) {
	ctx, span := dashboardTracer.Start(ctx, "Dashboard.AccountRollups")
	defer span.End()

	report, err := s.buildReport(ctx)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.CustomerRollup, 0, len(report.PerCustomer))
	for _, cr := range report.PerCustomer {
		if territory != "" && cr.Territory != territory {
			continue
		}
		if classification != "" && cr.Classification != classification {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(cr.CustomerName), search) &&
			!strings.Contains(strings.ToLower(cr.AccountNumber), search) {
			continue
		}
		out = append(out, cr)
	}
	return out, nil
}

// Stats returns the contact-progress counters.
func (s *DashboardService) Stats(ctx context.Context) (*domain.AccountStats, error) {
	ctx, span := dashboardTracer.Start(ctx, "Dashboard.Stats")
	defer span.End()

	return s.store.GetAccountStats(ctx)
}

// RecentNotes returns the newest visible notes.
func (s *DashboardService) RecentNotes(ctx context.Context) ([]domain.CustomerNote, error) {
	ctx, span := dashboardTracer.Start(ctx, "Dashboard.RecentNotes")
	defer span.End()

	return s.store.ListRecentNotes(ctx, recentNotesLimit)
}

// RecentImages returns the newest customer images.
func (s *DashboardService) RecentImages(ctx context.Context) ([]domain.CustomerImage, error) {
	ctx, span := dashboardTracer.Start(ctx, "Dashboard.RecentImages")
	defer span.End()

	return s.store.ListRecentImages(ctx, recentImagesLimit)
}

// AddNote creates a note for a customer. The id is generated here so the
// store write is idempotent under retry.
func (s *DashboardService) AddNote(ctx context.Context, customerID, content string) (*domain.CustomerNote, error) {
	ctx, span := dashboardTracer.Start(ctx, "Dashboard.AddNote")
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &domain.ErrValidation{Field: "content", Message: "must not be empty"}
	}
	if customerID == "" {
		return nil, &domain.ErrValidation{Field: "customer_id", Message: "must not be empty"}
	}

	note := &domain.CustomerNote{
		NoteID:  uuid.NewString(),
		Content: content,
	}
	created, err := s.store.CreateNote(ctx, note, customerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("note created",
		zap.String("note_id", created.NoteID),
		zap.String("customer_id", customerID),
	)
	return created, nil
}
