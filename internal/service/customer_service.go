package service

import (
	"context"
	"sort"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var customerTracer = otel.Tracer("service/customer")

// CustomerService exposes the account list and progress-flag updates.
type CustomerService struct {
	store    port.TerritoryStore
	pipeline *MarkerPipeline
	logger   *zap.Logger
}

// NewCustomerService creates the service. The pipeline reference is used
// to invalidate cached markers when an address changes.
func NewCustomerService(store port.TerritoryStore, pipeline *MarkerPipeline, logger *zap.Logger) *CustomerService {
	return &CustomerService{store: store, pipeline: pipeline, logger: logger}
}

// List returns every customer plus the distinct sorted territory labels.
func (s *CustomerService) List(ctx context.Context) (*domain.CustomerList, error) {
	ctx, span := customerTracer.Start(ctx, "Customer.List")
	defer span.End()

	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	territories := []string{}
	for _, c := range customers {
		if c.Territory != "" && !seen[c.Territory] {
			seen[c.Territory] = true
			territories = append(territories, c.Territory)
		}
	}
	sort.Strings(territories)

	return &domain.CustomerList{Customers: customers, Territories: territories}, nil
}

// Get returns one customer by id.
func (s *CustomerService) Get(ctx context.Context, customerID string) (*domain.Customer, error) {
	ctx, span := customerTracer.Start(ctx, "Customer.Get")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	return s.store.GetCustomer(ctx, customerID)
}

// UpdateStatus toggles the introduced/visited progress flags.
func (s *CustomerService) UpdateStatus(ctx context.Context, customerID string, upd *domain.StatusUpdate) (*domain.Customer, error) {
	ctx, span := customerTracer.Start(ctx, "Customer.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	if upd.IntroducedMyself == nil && upd.VisitedAccount == nil {
		return nil, &domain.ErrValidation{Field: "status", Message: "at least one flag must be set"}
	}

	customer, err := s.store.UpdateCustomerStatus(ctx, customerID, upd)
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer status updated",
		zap.String("customer_id", customerID),
		zap.String("actor", upd.Actor),
	)
	return customer, nil
}

// InvalidateAddress drops the persisted coordinate and any cached marker
// for an address. Called after an address edit so the next marker run
// geocodes the new address instead of reusing the stale coordinate.
func (s *CustomerService) InvalidateAddress(ctx context.Context, addressID string) error {
	ctx, span := customerTracer.Start(ctx, "Customer.InvalidateAddress")
	defer span.End()
	span.SetAttributes(attribute.String("address.id", addressID))

	if addressID == "" {
		return &domain.ErrValidation{Field: "address_id", Message: "must not be empty"}
	}
	if err := s.pipeline.InvalidateAddress(ctx, addressID); err != nil {
		return err
	}

	s.logger.Info("address location invalidated", zap.String("address_id", addressID))
	return nil
}
