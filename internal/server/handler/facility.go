package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/strandfi/facilityd/internal/domain"
)

// FacilityReader defines the read-only query surface the handler requires
// from the service layer.
type FacilityReader interface {
	Facility() domain.Facility
	GetPledge(ctx context.Context, id string) (domain.Pledge, error)
	ListPledges(ctx context.Context) ([]domain.Pledge, error)
	ListPledgeProposals(ctx context.Context) ([]domain.Pledge, error)
	GetPaydown(ctx context.Context, id string) (domain.Paydown, error)
	ListPaydowns(ctx context.Context) ([]domain.Paydown, error)
	ListPaydownProposals(ctx context.Context) ([]domain.Paydown, error)
	ListAssets(ctx context.Context) ([]domain.Asset, error)
	ListInventory(ctx context.Context) ([]string, error)
}

// FacilityHandler serves the read-only facility query endpoints.
type FacilityHandler struct {
	facility FacilityReader
	logger   *slog.Logger
}

// NewFacilityHandler creates a FacilityHandler with the given service and logger.
func NewFacilityHandler(facility FacilityReader, logger *slog.Logger) *FacilityHandler {
	return &FacilityHandler{facility: facility, logger: logger}
}

// GetFacility returns the static facility configuration.
// GET /api/facility
func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.facility.Facility())
}

// ListPledges returns all pledges, or only open proposals with ?state=proposed.
// GET /api/pledges
func (h *FacilityHandler) ListPledges(w http.ResponseWriter, r *http.Request) {
	var (
		pledges []domain.Pledge
		err     error
	)
	if r.URL.Query().Get("state") == string(domain.PledgeStateProposed) {
		pledges, err = h.facility.ListPledgeProposals(r.Context())
	} else {
		pledges, err = h.facility.ListPledges(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if pledges == nil {
		pledges = []domain.Pledge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pledges": pledges})
}

// GetPledge returns a single pledge by id.
// GET /api/pledges/{id}
func (h *FacilityHandler) GetPledge(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pledge id")
		return
	}

	pledge, err := h.facility.GetPledge(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pledge)
}

// ListPaydowns returns all paydowns, or only open proposals with ?state=proposed.
// GET /api/paydowns
func (h *FacilityHandler) ListPaydowns(w http.ResponseWriter, r *http.Request) {
	var (
		paydowns []domain.Paydown
		err      error
	)
	if r.URL.Query().Get("state") == string(domain.PaydownStateProposed) {
		paydowns, err = h.facility.ListPaydownProposals(r.Context())
	} else {
		paydowns, err = h.facility.ListPaydowns(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if paydowns == nil {
		paydowns = []domain.Paydown{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"paydowns": paydowns})
}

// GetPaydown returns a single paydown by id.
// GET /api/paydowns/{id}
func (h *FacilityHandler) GetPaydown(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing paydown id")
		return
	}

	paydown, err := h.facility.GetPaydown(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, paydown)
}

// ListAssets returns every tracked asset with its custody state.
// GET /api/assets
func (h *FacilityHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.facility.ListAssets(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

// ListInventory returns the ids of assets currently held by the facility.
// GET /api/inventory
func (h *FacilityHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	ids, err := h.facility.ListInventory(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": ids})
}
