// Package service implements the pledge and paydown engines and the
// read-only facility query surface over the domain ledger.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strandfi/facilityd/internal/domain"
)

// ledgerLockKey serializes mutating ledger operations across replicas.
const ledgerLockKey = "facility:ledger"

// ledgerLockTTL bounds how long a crashed holder can block other writers.
const ledgerLockTTL = 30 * time.Second

// requireEscrowGrant fetches a fresh snapshot of the escrow marker account
// and verifies the facility's own identity holds transfer and withdraw
// access. Grants can be revoked externally between calls, so the snapshot is
// never cached.
func requireEscrowGrant(ctx context.Context, oracle domain.MarkerOracle, facility domain.Facility) (domain.MarkerAccount, error) {
	escrow, err := oracle.MarkerByAddress(ctx, facility.EscrowAccount)
	if err != nil {
		return domain.MarkerAccount{}, fmt.Errorf("query escrow marker %s: %w", facility.EscrowAccount, err)
	}
	if !escrow.HasGrant(facility.Account, domain.PermissionTransfer, domain.PermissionWithdraw) {
		return domain.MarkerAccount{}, domain.ErrMissingEscrowGrant
	}
	return escrow, nil
}

// matchFunds verifies the attached funds are exactly the required amount in
// the required denom.
func matchFunds(funds domain.Coin, need uint64, denom string) error {
	if funds.IsZero() {
		return &domain.FundsMismatchError{Need: need, NeedDenom: denom}
	}
	if funds.Denom != denom || funds.Amount != need {
		return &domain.FundsMismatchError{
			Need:          need,
			NeedDenom:     denom,
			Received:      funds.Amount,
			ReceivedDenom: funds.Denom,
		}
	}
	return nil
}

// newBatch wraps an operation's emitted instructions with a correlation id
// for the settlement layer.
func newBatch(operation string, instructions []domain.Instruction) domain.InstructionBatch {
	return domain.InstructionBatch{
		ID:           uuid.New().String(),
		Operation:    operation,
		Instructions: instructions,
	}
}

// withLock runs fn under the ledger lock when a lock manager is configured.
func withLock(ctx context.Context, locks domain.LockManager, fn func() error) error {
	if locks == nil {
		return fn()
	}
	unlock, err := locks.Acquire(ctx, ledgerLockKey, ledgerLockTTL)
	if err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	defer unlock()
	return fn()
}

// retireReceiptToken returns the instruction sequence that hands a pledge's
// collateral receipt token back to the originator and retires it.
func retireReceiptToken(markerAddress, denom, originator string) []domain.Instruction {
	return []domain.Instruction{
		domain.TransferMarkerCoins(1, denom, markerAddress, originator),
		domain.CancelMarker(denom),
		domain.DestroyMarker(denom),
	}
}

// hasAny reports whether have contains at least one element of want.
func hasAny(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// containsAll reports whether have contains every element of want.
func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
