package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/strandfi/facilityd/internal/domain"
)

// PaydownService drives the paydown lifecycle: proposal by the originator,
// acceptance by the warehouse (and the buyer for paydown-and-sell), then
// execution or cancellation. Executing a paydown removes its assets from the
// inventory and closes every executed pledge left with no remaining
// collateral.
type PaydownService struct {
	ledger   domain.TxLedger
	oracle   domain.MarkerOracle
	facility domain.Facility
	locks    domain.LockManager
	logger   *slog.Logger
}

// NewPaydownService creates a PaydownService.
func NewPaydownService(ledger domain.TxLedger, oracle domain.MarkerOracle, facility domain.Facility, logger *slog.Logger) *PaydownService {
	return &PaydownService{
		ledger:   ledger,
		oracle:   oracle,
		facility: facility,
		logger:   logger.With(slog.String("component", "paydown_service")),
	}
}

// WithLocks attaches a lock manager so mutating operations are serialized
// across replicas.
func (s *PaydownService) WithLocks(locks domain.LockManager) *PaydownService {
	s.locks = locks
	return s
}

// ProposePaydownRequest carries a paydown proposal. Sale is nil for a plain
// paydown and set for paydown-and-sell.
type ProposePaydownRequest struct {
	ID           string
	Assets       []string
	TotalPaydown uint64
	Sale         *domain.SaleInfo
}

// PaydownProposeResult is the outcome of a paydown proposal. AffectedPledges
// lists the executed pledges referencing any of the proposed assets; it is
// informational and never fails the proposal.
type PaydownProposeResult struct {
	Paydown         domain.Paydown
	Batch           domain.InstructionBatch
	AffectedPledges []string
}

// PaydownResult is the outcome of an accept or cancel operation.
type PaydownResult struct {
	Paydown domain.Paydown
	Batch   domain.InstructionBatch
}

// PaydownExecuteResult is the outcome of executing a paydown.
type PaydownExecuteResult struct {
	Paydown domain.Paydown
	Batch   domain.InstructionBatch
	// AffectedPledges are the executed pledges referencing any of the
	// paydown's assets. ClosedPledges is the subset left with no collateral
	// in inventory, which this execution transitioned to closed.
	AffectedPledges []string
	ClosedPledges   []string
}

// Propose creates a new paydown in the proposed state. Every asset must be
// in exact inventory state; the originator's funds must match the paydown
// total and are forwarded to escrow.
func (s *PaydownService) Propose(ctx context.Context, req ProposePaydownRequest, funds domain.Coin) (*PaydownProposeResult, error) {
	var result *PaydownProposeResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			if _, err := l.GetPaydown(ctx, req.ID); err == nil {
				return fmt.Errorf("paydown %s: %w", req.ID, domain.ErrAlreadyExists)
			}

			// Reject a partially-reserved or absent asset, not just "any".
			inventory, err := l.AssetIDs(ctx, domain.AssetStateInventory)
			if err != nil {
				return err
			}
			if !containsAll(inventory, req.Assets) {
				return fmt.Errorf("assets not in inventory: %w", domain.ErrAssetConflict)
			}

			escrow, err := requireEscrowGrant(ctx, s.oracle, s.facility)
			if err != nil {
				return err
			}
			if err := matchFunds(funds, req.TotalPaydown, s.facility.SettlementDenom); err != nil {
				return err
			}

			now := time.Now().UTC()
			paydown := domain.Paydown{
				ID:           req.ID,
				Assets:       req.Assets,
				TotalPaydown: req.TotalPaydown,
				Kind:         domain.PaydownOnly,
				State:        domain.PaydownStateProposed,
				Sale:         req.Sale,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if req.Sale != nil {
				paydown.Kind = domain.PaydownAndSell
			}
			if err := l.CreatePaydown(ctx, paydown); err != nil {
				return err
			}
			if err := l.SetAssetsState(ctx, paydown.Assets, domain.AssetStatePaydownProposed); err != nil {
				return err
			}

			affected, err := s.affectedPledgeIDs(ctx, l, paydown.Assets)
			if err != nil {
				return err
			}

			operation := "propose_paydown"
			if paydown.Kind == domain.PaydownAndSell {
				operation = "propose_paydown_and_sell"
			}
			result = &PaydownProposeResult{
				Paydown: paydown,
				Batch: newBatch(operation, []domain.Instruction{
					domain.BankSend(paydown.TotalPaydown, s.facility.SettlementDenom, escrow.Address),
				}),
				AffectedPledges: affected,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "paydown proposed",
		slog.String("paydown_id", result.Paydown.ID),
		slog.String("kind", string(result.Paydown.Kind)),
		slog.Uint64("total_paydown", result.Paydown.TotalPaydown),
		slog.Any("affected_pledges", result.AffectedPledges),
	)
	return result, nil
}

// Accept records one party's acceptance, identified by the caller. For a
// plain paydown only the warehouse may accept; for paydown-and-sell the
// warehouse and the recorded buyer must each accept exactly once, and the
// buyer's purchase funds are forwarded to escrow. The paydown transitions to
// accepted once every required party has accepted.
func (s *PaydownService) Accept(ctx context.Context, id, caller string, funds domain.Coin) (*PaydownResult, error) {
	var result *PaydownResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			paydown, err := l.GetPaydown(ctx, id)
			if err != nil {
				return err
			}

			party, err := s.acceptingParty(&paydown, caller)
			if err != nil {
				return err
			}
			if paydown.HasAccepted(party) {
				return &domain.PartyAcceptedError{Party: party}
			}
			if paydown.State != domain.PaydownStateProposed {
				return &domain.StateError{
					Entity: "paydown", ID: id,
					State: string(paydown.State), Want: string(domain.PaydownStateProposed),
				}
			}

			escrow, err := requireEscrowGrant(ctx, s.oracle, s.facility)
			if err != nil {
				return err
			}

			var instructions []domain.Instruction
			if party == domain.PartyBuyer {
				if err := matchFunds(funds, paydown.Sale.Price, s.facility.SettlementDenom); err != nil {
					return err
				}
				instructions = append(instructions,
					domain.BankSend(paydown.Sale.Price, s.facility.SettlementDenom, escrow.Address))
			}

			paydown.PartiesAccepted = append(paydown.PartiesAccepted, party)
			if paydown.FullyAccepted() {
				paydown.State = domain.PaydownStateAccepted
			}
			paydown.UpdatedAt = time.Now().UTC()
			if err := l.SavePaydown(ctx, paydown); err != nil {
				return err
			}

			result = &PaydownResult{Paydown: paydown, Batch: newBatch("accept_paydown", instructions)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "paydown acceptance recorded",
		slog.String("paydown_id", id),
		slog.String("state", string(result.Paydown.State)),
	)
	return result, nil
}

// Cancel transitions a proposed or accepted paydown to cancelled. The
// paydown funds return from escrow to the originator, purchase funds return
// to the buyer if the buyer had accepted, and the assets revert to
// inventory.
func (s *PaydownService) Cancel(ctx context.Context, id string) (*PaydownResult, error) {
	var result *PaydownResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			paydown, err := l.GetPaydown(ctx, id)
			if err != nil {
				return err
			}
			if paydown.State != domain.PaydownStateProposed && paydown.State != domain.PaydownStateAccepted {
				return &domain.StateError{
					Entity: "paydown", ID: id,
					State: string(paydown.State),
					Want:  "proposed or accepted",
				}
			}

			escrow, err := requireEscrowGrant(ctx, s.oracle, s.facility)
			if err != nil {
				return err
			}

			instructions := []domain.Instruction{
				domain.WithdrawCoins(escrow.Denom, paydown.TotalPaydown, s.facility.SettlementDenom, s.facility.Originator),
			}
			if paydown.Kind == domain.PaydownAndSell && paydown.HasAccepted(domain.PartyBuyer) {
				instructions = append(instructions,
					domain.WithdrawCoins(escrow.Denom, paydown.Sale.Price, s.facility.SettlementDenom, paydown.Sale.Buyer))
			}

			paydown.State = domain.PaydownStateCancelled
			paydown.UpdatedAt = time.Now().UTC()
			if err := l.SavePaydown(ctx, paydown); err != nil {
				return err
			}
			if err := l.SetAssetsState(ctx, paydown.Assets, domain.AssetStateInventory); err != nil {
				return err
			}

			result = &PaydownResult{Paydown: paydown, Batch: newBatch("cancel_paydown", instructions)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "paydown cancelled", slog.String("paydown_id", id))
	return result, nil
}

// Execute transitions an accepted paydown to executed. The paydown amount is
// withdrawn from escrow to the warehouse (plus the purchase price to the
// originator for paydown-and-sell), the assets leave the inventory
// permanently, and every executed pledge whose collateral is now fully
// repaid is closed with its receipt token retired.
func (s *PaydownService) Execute(ctx context.Context, id string) (*PaydownExecuteResult, error) {
	var result *PaydownExecuteResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			paydown, err := l.GetPaydown(ctx, id)
			if err != nil {
				return err
			}
			if paydown.State != domain.PaydownStateAccepted {
				return &domain.StateError{
					Entity: "paydown", ID: id,
					State: string(paydown.State), Want: string(domain.PaydownStateAccepted),
				}
			}

			escrow, err := requireEscrowGrant(ctx, s.oracle, s.facility)
			if err != nil {
				return err
			}

			instructions := []domain.Instruction{
				domain.WithdrawCoins(escrow.Denom, paydown.TotalPaydown, s.facility.SettlementDenom, s.facility.Warehouse),
			}
			if paydown.Kind == domain.PaydownAndSell {
				instructions = append(instructions,
					domain.WithdrawCoins(escrow.Denom, paydown.Sale.Price, s.facility.SettlementDenom, s.facility.Originator))
			}

			paydown.State = domain.PaydownStateExecuted
			paydown.UpdatedAt = time.Now().UTC()
			if err := l.SavePaydown(ctx, paydown); err != nil {
				return err
			}
			if err := l.RemoveAssets(ctx, paydown.Assets); err != nil {
				return err
			}

			// Close every executed pledge whose assets all left the
			// post-update inventory.
			inventory, err := l.AssetIDs(ctx, domain.AssetStateInventory, domain.AssetStatePaydownProposed)
			if err != nil {
				return err
			}
			affected, err := l.FindPledgesReferencingAssets(ctx, paydown.Assets, domain.PledgeStateExecuted)
			if err != nil {
				return err
			}

			affectedIDs := make([]string, 0, len(affected))
			var closedIDs []string
			for _, pledge := range affected {
				affectedIDs = append(affectedIDs, pledge.ID)
				if hasAny(inventory, pledge.Assets) {
					continue
				}

				marker, err := s.oracle.MarkerByDenom(ctx, pledge.AssetMarkerDenom)
				if err != nil {
					return fmt.Errorf("query asset marker %s: %w", pledge.AssetMarkerDenom, err)
				}

				pledge.State = domain.PledgeStateClosed
				pledge.UpdatedAt = time.Now().UTC()
				if err := l.SavePledge(ctx, pledge); err != nil {
					return err
				}
				instructions = append(instructions,
					retireReceiptToken(marker.Address, pledge.AssetMarkerDenom, s.facility.Originator)...)
				closedIDs = append(closedIDs, pledge.ID)
			}

			result = &PaydownExecuteResult{
				Paydown:         paydown,
				Batch:           newBatch("execute_paydown", instructions),
				AffectedPledges: affectedIDs,
				ClosedPledges:   closedIDs,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "paydown executed",
		slog.String("paydown_id", id),
		slog.Any("affected_pledges", result.AffectedPledges),
		slog.Any("closed_pledges", result.ClosedPledges),
	)
	return result, nil
}

// acceptingParty resolves which contract party the caller acts as for this
// paydown, or ErrUnauthorized if the caller is neither the warehouse nor,
// for paydown-and-sell, the recorded buyer.
func (s *PaydownService) acceptingParty(paydown *domain.Paydown, caller string) (domain.Party, error) {
	switch paydown.Kind {
	case domain.PaydownAndSell:
		if caller == s.facility.Warehouse {
			return domain.PartyWarehouse, nil
		}
		if paydown.Sale != nil && caller == paydown.Sale.Buyer {
			return domain.PartyBuyer, nil
		}
	default:
		if caller == s.facility.Warehouse {
			return domain.PartyWarehouse, nil
		}
	}
	return "", fmt.Errorf("caller %s may not accept paydown %s: %w", caller, paydown.ID, domain.ErrUnauthorized)
}

// affectedPledgeIDs returns the ids of executed pledges referencing any of
// the given assets.
func (s *PaydownService) affectedPledgeIDs(ctx context.Context, l domain.Ledger, assets []string) ([]string, error) {
	pledges, err := l.FindPledgesReferencingAssets(ctx, assets, domain.PledgeStateExecuted)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(pledges))
	for _, p := range pledges {
		ids = append(ids, p.ID)
	}
	return ids, nil
}
