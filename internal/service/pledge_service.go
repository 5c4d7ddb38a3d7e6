package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/strandfi/facilityd/internal/domain"
)

// PledgeService drives the pledge lifecycle: proposal by the originator,
// acceptance by the warehouse, then execution or cancellation. Every
// operation is a single ledger transaction that either fully succeeds,
// returning the settlement instructions to issue, or fails with no mutation.
type PledgeService struct {
	ledger   domain.TxLedger
	oracle   domain.MarkerOracle
	facility domain.Facility
	locks    domain.LockManager
	logger   *slog.Logger
}

// NewPledgeService creates a PledgeService.
func NewPledgeService(ledger domain.TxLedger, oracle domain.MarkerOracle, facility domain.Facility, logger *slog.Logger) *PledgeService {
	return &PledgeService{
		ledger:   ledger,
		oracle:   oracle,
		facility: facility,
		logger:   logger.With(slog.String("component", "pledge_service")),
	}
}

// WithLocks attaches a lock manager so mutating operations are serialized
// across replicas. Without one, operations rely on the database transaction
// alone.
func (s *PledgeService) WithLocks(locks domain.LockManager) *PledgeService {
	s.locks = locks
	return s
}

// ProposePledgeRequest carries the originator's pledge proposal.
type ProposePledgeRequest struct {
	ID               string
	Assets           []string
	TotalAdvance     uint64
	AssetMarkerDenom string
}

// PledgeResult is the outcome of a pledge operation: the updated record and
// the settlement instructions to execute atomically with it.
type PledgeResult struct {
	Pledge domain.Pledge
	Batch  domain.InstructionBatch
}

// Propose creates a new pledge in the proposed state, reserves its assets,
// and emits the instruction sequence that mints the collateral receipt token
// and delivers a nominal unit of it to the originator.
func (s *PledgeService) Propose(ctx context.Context, req ProposePledgeRequest) (*PledgeResult, error) {
	var result *PledgeResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			if _, err := l.GetPledge(ctx, req.ID); err == nil {
				return fmt.Errorf("pledge %s: %w", req.ID, domain.ErrAlreadyExists)
			}

			// No asset may carry any active reservation.
			tracked, err := l.AssetIDs(ctx)
			if err != nil {
				return err
			}
			if hasAny(tracked, req.Assets) {
				return fmt.Errorf("assets already pledged: %w", domain.ErrAssetConflict)
			}

			if _, err := requireEscrowGrant(ctx, s.oracle, s.facility); err != nil {
				return err
			}

			now := time.Now().UTC()
			pledge := domain.Pledge{
				ID:               req.ID,
				Assets:           req.Assets,
				TotalAdvance:     req.TotalAdvance,
				AssetMarkerDenom: req.AssetMarkerDenom,
				State:            domain.PledgeStateProposed,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := l.CreatePledge(ctx, pledge); err != nil {
				return err
			}
			if err := l.SetAssetsState(ctx, pledge.Assets, domain.AssetStatePledgeProposed); err != nil {
				return err
			}

			result = &PledgeResult{
				Pledge: pledge,
				Batch: newBatch("propose_pledge", []domain.Instruction{
					domain.CreateMarker(1, req.AssetMarkerDenom, true),
					domain.GrantMarkerAccess(req.AssetMarkerDenom, s.facility.Account,
						domain.PermissionAdmin, domain.PermissionBurn, domain.PermissionDelete,
						domain.PermissionDeposit, domain.PermissionMint,
						domain.PermissionTransfer, domain.PermissionWithdraw,
					),
					domain.FinalizeMarker(req.AssetMarkerDenom),
					domain.ActivateMarker(req.AssetMarkerDenom),
					domain.WithdrawCoins(req.AssetMarkerDenom, 1, req.AssetMarkerDenom, s.facility.Originator),
				}),
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pledge proposed",
		slog.String("pledge_id", result.Pledge.ID),
		slog.Int("assets", len(result.Pledge.Assets)),
		slog.Uint64("total_advance", result.Pledge.TotalAdvance),
	)
	return result, nil
}

// Accept transitions a proposed pledge to accepted and forwards the
// warehouse's advance funds into escrow custody. The attached funds must
// exactly match the pledge's total advance in the settlement denom.
func (s *PledgeService) Accept(ctx context.Context, id string, funds domain.Coin) (*PledgeResult, error) {
	var result *PledgeResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			pledge, err := l.GetPledge(ctx, id)
			if err != nil {
				return err
			}
			if pledge.State != domain.PledgeStateProposed {
				return &domain.StateError{
					Entity: "pledge", ID: id,
					State: string(pledge.State), Want: string(domain.PledgeStateProposed),
				}
			}

			escrow, err := requireEscrowGrant(ctx, s.oracle, s.facility)
			if err != nil {
				return err
			}
			if err := matchFunds(funds, pledge.TotalAdvance, s.facility.SettlementDenom); err != nil {
				return err
			}

			pledge.State = domain.PledgeStateAccepted
			pledge.UpdatedAt = time.Now().UTC()
			if err := l.SavePledge(ctx, pledge); err != nil {
				return err
			}

			result = &PledgeResult{
				Pledge: pledge,
				Batch: newBatch("accept_pledge", []domain.Instruction{
					domain.BankSend(pledge.TotalAdvance, s.facility.SettlementDenom, escrow.Address),
				}),
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pledge accepted", slog.String("pledge_id", id))
	return result, nil
}

// Cancel transitions a proposed or accepted pledge to cancelled. An advance
// already in escrow is returned to the warehouse, the receipt token is
// returned to the originator and retired, and the assets leave the inventory
// entirely.
func (s *PledgeService) Cancel(ctx context.Context, id string) (*PledgeResult, error) {
	var result *PledgeResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			pledge, err := l.GetPledge(ctx, id)
			if err != nil {
				return err
			}

			refundAdvance := false
			switch pledge.State {
			case domain.PledgeStateProposed:
			case domain.PledgeStateAccepted:
				refundAdvance = true
			default:
				return &domain.StateError{
					Entity: "pledge", ID: id,
					State: string(pledge.State),
					Want:  "proposed or accepted",
				}
			}

			escrow, err := requireEscrowGrant(ctx, s.oracle, s.facility)
			if err != nil {
				return err
			}

			var instructions []domain.Instruction
			if refundAdvance {
				instructions = append(instructions, domain.WithdrawCoins(
					escrow.Denom, pledge.TotalAdvance, s.facility.SettlementDenom, s.facility.Warehouse,
				))
			}

			marker, err := s.oracle.MarkerByDenom(ctx, pledge.AssetMarkerDenom)
			if err != nil {
				return fmt.Errorf("query asset marker %s: %w", pledge.AssetMarkerDenom, err)
			}
			instructions = append(instructions,
				retireReceiptToken(marker.Address, pledge.AssetMarkerDenom, s.facility.Originator)...)

			pledge.State = domain.PledgeStateCancelled
			pledge.UpdatedAt = time.Now().UTC()
			if err := l.SavePledge(ctx, pledge); err != nil {
				return err
			}
			if err := l.RemoveAssets(ctx, pledge.Assets); err != nil {
				return err
			}

			result = &PledgeResult{Pledge: pledge, Batch: newBatch("cancel_pledge", instructions)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pledge cancelled", slog.String("pledge_id", id))
	return result, nil
}

// Execute transitions an accepted pledge to executed: the advance is
// withdrawn from escrow to the originator and the pledge's assets become
// available inventory, eligible for paydown.
func (s *PledgeService) Execute(ctx context.Context, id string) (*PledgeResult, error) {
	var result *PledgeResult

	err := withLock(ctx, s.locks, func() error {
		return s.ledger.InTx(ctx, func(l domain.Ledger) error {
			pledge, err := l.GetPledge(ctx, id)
			if err != nil {
				return err
			}
			if pledge.State != domain.PledgeStateAccepted {
				return &domain.StateError{
					Entity: "pledge", ID: id,
					State: string(pledge.State), Want: string(domain.PledgeStateAccepted),
				}
			}

			escrow, err := requireEscrowGrant(ctx, s.oracle, s.facility)
			if err != nil {
				return err
			}

			pledge.State = domain.PledgeStateExecuted
			pledge.UpdatedAt = time.Now().UTC()
			if err := l.SavePledge(ctx, pledge); err != nil {
				return err
			}
			if err := l.SetAssetsState(ctx, pledge.Assets, domain.AssetStateInventory); err != nil {
				return err
			}

			result = &PledgeResult{
				Pledge: pledge,
				Batch: newBatch("execute_pledge", []domain.Instruction{
					domain.WithdrawCoins(escrow.Denom, pledge.TotalAdvance, s.facility.SettlementDenom, s.facility.Originator),
				}),
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pledge executed", slog.String("pledge_id", id))
	return result, nil
}
