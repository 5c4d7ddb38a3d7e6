package domain

import "time"

// PaydownState tracks the paydown lifecycle.
type PaydownState string

const (
	PaydownStateProposed  PaydownState = "proposed"
	PaydownStateAccepted  PaydownState = "accepted"
	PaydownStateExecuted  PaydownState = "executed"
	PaydownStateCancelled PaydownState = "cancelled"
)

// Terminal reports whether the state permits no further transitions.
func (s PaydownState) Terminal() bool {
	return s == PaydownStateExecuted || s == PaydownStateCancelled
}

// PaydownKind distinguishes a plain repayment from a repayment bundled with a
// sale of the assets to a third-party buyer.
type PaydownKind string

const (
	PaydownOnly    PaydownKind = "paydown_only"
	PaydownAndSell PaydownKind = "paydown_and_sell"
)

// Party identifies a contract party that can accept a paydown. Membership is
// a compile-time-known subset per PaydownKind, so the accepted set is a small
// slice over this closed enum rather than an arbitrary collection.
type Party string

const (
	PartyWarehouse Party = "warehouse"
	PartyBuyer     Party = "buyer"
)

// SaleInfo carries the buyer identity and purchase price for a
// paydown-and-sell. Present iff the paydown kind is PaydownAndSell.
type SaleInfo struct {
	Buyer string
	// Price is the purchase price in the facility settlement denom.
	Price uint64
}

// Paydown is a proposal to repay part of an advance, optionally bundled with
// a sale of the repaid assets. Records are retained permanently.
type Paydown struct {
	ID           string
	Assets       []string
	TotalPaydown uint64
	Kind         PaydownKind
	State        PaydownState
	// PartiesAccepted holds each party at most once.
	PartiesAccepted []Party
	Sale            *SaleInfo
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasAccepted reports whether the given party already accepted this paydown.
func (p *Paydown) HasAccepted(party Party) bool {
	for _, accepted := range p.PartiesAccepted {
		if accepted == party {
			return true
		}
	}
	return false
}

// RequiredParties returns the party set that must accept before the paydown
// can transition to accepted.
func (p *Paydown) RequiredParties() []Party {
	if p.Kind == PaydownAndSell {
		return []Party{PartyWarehouse, PartyBuyer}
	}
	return []Party{PartyWarehouse}
}

// FullyAccepted reports whether every required party has accepted.
func (p *Paydown) FullyAccepted() bool {
	for _, required := range p.RequiredParties() {
		if !p.HasAccepted(required) {
			return false
		}
	}
	return true
}
