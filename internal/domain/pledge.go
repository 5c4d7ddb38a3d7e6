package domain

import "time"

// PledgeState tracks the pledge lifecycle.
type PledgeState string

const (
	PledgeStateProposed  PledgeState = "proposed"
	PledgeStateAccepted  PledgeState = "accepted"
	PledgeStateExecuted  PledgeState = "executed"
	PledgeStateClosed    PledgeState = "closed"
	PledgeStateCancelled PledgeState = "cancelled"
)

// Terminal reports whether the state permits no further transitions.
func (s PledgeState) Terminal() bool {
	return s == PledgeStateClosed || s == PledgeStateCancelled
}

// Pledge is a proposal to collateralize a pool of assets in exchange for a
// cash advance. Pledges are never deleted; terminal records are retained for
// audit and query.
type Pledge struct {
	ID string
	// Assets is the ordered list of asset ids backing this pledge.
	Assets []string
	// TotalAdvance is the advance amount in the facility settlement denom.
	TotalAdvance uint64
	// AssetMarkerDenom is the denom of the receipt token minted for this
	// pledge's collateral pool.
	AssetMarkerDenom string
	State            PledgeState
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// References reports whether the pledge includes any of the given asset ids.
func (p *Pledge) References(assetIDs []string) bool {
	for _, id := range assetIDs {
		for _, own := range p.Assets {
			if id == own {
				return true
			}
		}
	}
	return false
}
