package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/strandfi/facilityd/internal/domain"
	"github.com/strandfi/facilityd/internal/service"
)

// PledgeWriter defines the mutating pledge operations the handler requires
// from the service layer.
type PledgeWriter interface {
	Propose(ctx context.Context, req service.ProposePledgeRequest) (*service.PledgeResult, error)
	Accept(ctx context.Context, id string, funds domain.Coin) (*service.PledgeResult, error)
	Cancel(ctx context.Context, id string) (*service.PledgeResult, error)
	Execute(ctx context.Context, id string) (*service.PledgeResult, error)
}

// PledgeHandler serves the pledge lifecycle HTTP endpoints.
type PledgeHandler struct {
	pledges PledgeWriter
	logger  *slog.Logger
}

// NewPledgeHandler creates a PledgeHandler with the given service and logger.
func NewPledgeHandler(pledges PledgeWriter, logger *slog.Logger) *PledgeHandler {
	return &PledgeHandler{pledges: pledges, logger: logger}
}

// pledgeResponse wraps a pledge mutation outcome: the updated record and the
// settlement instructions the caller must now issue.
type pledgeResponse struct {
	Pledge       domain.Pledge           `json:"pledge"`
	Instructions domain.InstructionBatch `json:"instructions"`
}

type proposePledgeBody struct {
	ID               string   `json:"id"`
	Assets           []string `json:"assets"`
	TotalAdvance     uint64   `json:"total_advance"`
	AssetMarkerDenom string   `json:"asset_marker_denom"`
}

// Propose creates a new pledge proposal.
// POST /api/pledges
func (h *PledgeHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var body proposePledgeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.ID == "" || len(body.Assets) == 0 || body.AssetMarkerDenom == "" {
		writeError(w, http.StatusBadRequest, "id, assets and asset_marker_denom are required")
		return
	}

	result, err := h.pledges.Propose(r.Context(), service.ProposePledgeRequest{
		ID:               body.ID,
		Assets:           body.Assets,
		TotalAdvance:     body.TotalAdvance,
		AssetMarkerDenom: body.AssetMarkerDenom,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, pledgeResponse{Pledge: result.Pledge, Instructions: result.Batch})
}

type acceptPledgeBody struct {
	Funds coinBody `json:"funds"`
}

// Accept records the warehouse's acceptance of a proposed pledge.
// POST /api/pledges/{id}/accept
func (h *PledgeHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pledge id")
		return
	}

	var body acceptPledgeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.pledges.Accept(r.Context(), id, body.Funds.toDomain())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pledgeResponse{Pledge: result.Pledge, Instructions: result.Batch})
}

// Cancel cancels a proposed or accepted pledge.
// POST /api/pledges/{id}/cancel
func (h *PledgeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pledge id")
		return
	}

	result, err := h.pledges.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pledgeResponse{Pledge: result.Pledge, Instructions: result.Batch})
}

// Execute executes an accepted pledge, releasing the advance to the
// originator and moving the assets into inventory.
// POST /api/pledges/{id}/execute
func (h *PledgeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pledge id")
		return
	}

	result, err := h.pledges.Execute(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pledgeResponse{Pledge: result.Pledge, Instructions: result.Batch})
}
