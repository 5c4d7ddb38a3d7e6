package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/strandfi/facilityd/internal/domain"
	"github.com/strandfi/facilityd/internal/service"
)

// PaydownWriter defines the mutating paydown operations the handler requires
// from the service layer.
type PaydownWriter interface {
	Propose(ctx context.Context, req service.ProposePaydownRequest, funds domain.Coin) (*service.PaydownProposeResult, error)
	Accept(ctx context.Context, id, caller string, funds domain.Coin) (*service.PaydownResult, error)
	Cancel(ctx context.Context, id string) (*service.PaydownResult, error)
	Execute(ctx context.Context, id string) (*service.PaydownExecuteResult, error)
}

// PaydownHandler serves the paydown lifecycle HTTP endpoints.
type PaydownHandler struct {
	paydowns PaydownWriter
	logger   *slog.Logger
}

// NewPaydownHandler creates a PaydownHandler with the given service and logger.
func NewPaydownHandler(paydowns PaydownWriter, logger *slog.Logger) *PaydownHandler {
	return &PaydownHandler{paydowns: paydowns, logger: logger}
}

// paydownResponse wraps a paydown mutation outcome.
type paydownResponse struct {
	Paydown      domain.Paydown          `json:"paydown"`
	Instructions domain.InstructionBatch `json:"instructions"`
}

// paydownProposeResponse additionally reports the executed pledges whose
// collateral the paydown touches.
type paydownProposeResponse struct {
	Paydown         domain.Paydown          `json:"paydown"`
	Instructions    domain.InstructionBatch `json:"instructions"`
	AffectedPledges []string                `json:"affected_pledges"`
}

// paydownExecuteResponse additionally reports which pledges the execution
// closed out.
type paydownExecuteResponse struct {
	Paydown         domain.Paydown          `json:"paydown"`
	Instructions    domain.InstructionBatch `json:"instructions"`
	AffectedPledges []string                `json:"affected_pledges"`
	ClosedPledges   []string                `json:"closed_pledges"`
}

type saleBody struct {
	Buyer string `json:"buyer"`
	Price uint64 `json:"price"`
}

type proposePaydownBody struct {
	ID           string    `json:"id"`
	Assets       []string  `json:"assets"`
	TotalPaydown uint64    `json:"total_paydown"`
	Sale         *saleBody `json:"sale,omitempty"`
	Funds        coinBody  `json:"funds"`
}

// Propose creates a new paydown proposal, optionally with a sale leg.
// POST /api/paydowns
func (h *PaydownHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var body proposePaydownBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.ID == "" || len(body.Assets) == 0 {
		writeError(w, http.StatusBadRequest, "id and assets are required")
		return
	}

	req := service.ProposePaydownRequest{
		ID:           body.ID,
		Assets:       body.Assets,
		TotalPaydown: body.TotalPaydown,
	}
	if body.Sale != nil {
		if body.Sale.Buyer == "" {
			writeError(w, http.StatusBadRequest, "sale.buyer is required for paydown-and-sell")
			return
		}
		req.Sale = &domain.SaleInfo{Buyer: body.Sale.Buyer, Price: body.Sale.Price}
	}

	result, err := h.paydowns.Propose(r.Context(), req, body.Funds.toDomain())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, paydownProposeResponse{
		Paydown:         result.Paydown,
		Instructions:    result.Batch,
		AffectedPledges: result.AffectedPledges,
	})
}

type acceptPaydownBody struct {
	Caller string   `json:"caller"`
	Funds  coinBody `json:"funds"`
}

// Accept records one party's acceptance of a proposed paydown. The caller
// address determines whether it acts as the warehouse or the buyer.
// POST /api/paydowns/{id}/accept
func (h *PaydownHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing paydown id")
		return
	}

	var body acceptPaydownBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	result, err := h.paydowns.Accept(r.Context(), id, body.Caller, body.Funds.toDomain())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, paydownResponse{Paydown: result.Paydown, Instructions: result.Batch})
}

// Cancel cancels a proposed or accepted paydown and returns any escrowed
// funds to their contributors.
// POST /api/paydowns/{id}/cancel
func (h *PaydownHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing paydown id")
		return
	}

	result, err := h.paydowns.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, paydownResponse{Paydown: result.Paydown, Instructions: result.Batch})
}

// Execute executes a fully accepted paydown, releasing the assets from the
// facility and closing any pledges left without collateral in inventory.
// POST /api/paydowns/{id}/execute
func (h *PaydownHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing paydown id")
		return
	}

	result, err := h.paydowns.Execute(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, paydownExecuteResponse{
		Paydown:         result.Paydown,
		Instructions:    result.Batch,
		AffectedPledges: result.AffectedPledges,
		ClosedPledges:   result.ClosedPledges,
	})
}
