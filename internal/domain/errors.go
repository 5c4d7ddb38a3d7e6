package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidState        = errors.New("invalid state")
	ErrAssetConflict       = errors.New("asset reservation conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrMissingEscrowGrant  = errors.New("missing escrow marker grant")
	ErrFundsMismatch       = errors.New("funds mismatch")
	ErrDuplicateAcceptance = errors.New("party already accepted")
	ErrLockHeld            = errors.New("lock already held")
)

// FundsMismatchError reports attached settlement funds that are absent, in
// the wrong denom, or the wrong amount. The received fields are zero when no
// funds were attached at all.
type FundsMismatchError struct {
	Need          uint64
	NeedDenom     string
	Received      uint64
	ReceivedDenom string
}

func (e *FundsMismatchError) Error() string {
	if e.ReceivedDenom == "" && e.Received == 0 {
		return fmt.Sprintf("funds mismatch: need %d%s, received none", e.Need, e.NeedDenom)
	}
	return fmt.Sprintf("funds mismatch: need %d%s, received %d%s",
		e.Need, e.NeedDenom, e.Received, e.ReceivedDenom)
}

func (e *FundsMismatchError) Is(target error) bool {
	return target == ErrFundsMismatch
}

// StateError reports an operation attempted from a state that does not
// permit it.
type StateError struct {
	Entity string // "pledge" or "paydown"
	ID     string
	State  string
	Want   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s is in state %q, want %s", e.Entity, e.ID, e.State, e.Want)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// PartyAcceptedError reports a party accepting the same paydown twice.
type PartyAcceptedError struct {
	Party Party
}

func (e *PartyAcceptedError) Error() string {
	return fmt.Sprintf("party %q has already accepted this paydown", e.Party)
}

func (e *PartyAcceptedError) Is(target error) bool {
	return target == ErrDuplicateAcceptance
}
