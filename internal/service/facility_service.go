package service

import (
	"context"
	"log/slog"

	"github.com/strandfi/facilityd/internal/domain"
)

// FacilityService is the read-only query surface over the ledger: point
// lookups and filtered listings of pledges, paydowns and assets.
type FacilityService struct {
	ledger   domain.Ledger
	facility domain.Facility
	logger   *slog.Logger
}

// NewFacilityService creates a FacilityService.
func NewFacilityService(ledger domain.Ledger, facility domain.Facility, logger *slog.Logger) *FacilityService {
	return &FacilityService{
		ledger:   ledger,
		facility: facility,
		logger:   logger.With(slog.String("component", "facility_service")),
	}
}

// Facility returns the static facility configuration.
func (s *FacilityService) Facility() domain.Facility {
	return s.facility
}

// GetPledge returns a single pledge by id.
func (s *FacilityService) GetPledge(ctx context.Context, id string) (domain.Pledge, error) {
	return s.ledger.GetPledge(ctx, id)
}

// ListPledges returns all pledges.
func (s *FacilityService) ListPledges(ctx context.Context) ([]domain.Pledge, error) {
	return s.ledger.ListPledges(ctx)
}

// ListPledgeProposals returns pledges still awaiting acceptance.
func (s *FacilityService) ListPledgeProposals(ctx context.Context) ([]domain.Pledge, error) {
	return s.ledger.ListPledges(ctx, domain.PledgeStateProposed)
}

// PledgeIDs returns every pledge id.
func (s *FacilityService) PledgeIDs(ctx context.Context) ([]string, error) {
	return s.ledger.PledgeIDs(ctx)
}

// GetPaydown returns a single paydown by id.
func (s *FacilityService) GetPaydown(ctx context.Context, id string) (domain.Paydown, error) {
	return s.ledger.GetPaydown(ctx, id)
}

// ListPaydowns returns all paydowns.
func (s *FacilityService) ListPaydowns(ctx context.Context) ([]domain.Paydown, error) {
	return s.ledger.ListPaydowns(ctx)
}

// ListPaydownProposals returns paydowns still awaiting acceptance.
func (s *FacilityService) ListPaydownProposals(ctx context.Context) ([]domain.Paydown, error) {
	return s.ledger.ListPaydowns(ctx, domain.PaydownStateProposed)
}

// PaydownIDs returns every paydown id.
func (s *FacilityService) PaydownIDs(ctx context.Context) ([]string, error) {
	return s.ledger.PaydownIDs(ctx)
}

// ListAssets returns every tracked asset with its custody state.
func (s *FacilityService) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	return s.ledger.ListAssets(ctx)
}

// ListInventory returns the ids of assets currently present in the facility.
// An asset proposed for paydown has not yet left custody, so it still counts
// for inventory listings.
func (s *FacilityService) ListInventory(ctx context.Context) ([]string, error) {
	return s.ledger.AssetIDs(ctx, domain.AssetStateInventory, domain.AssetStatePaydownProposed)
}
