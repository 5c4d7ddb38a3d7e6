package domain

import "time"

// AssetState tracks the custody state of a collateral asset inside the
// facility inventory.
type AssetState string

const (
	// AssetStateInventory means the asset is held by the facility and is
	// available for a new paydown.
	AssetStateInventory AssetState = "inventory"
	// AssetStatePledgeProposed means the asset is reserved by a pledge that
	// has not yet been accepted.
	AssetStatePledgeProposed AssetState = "pledge_proposed"
	// AssetStatePaydownProposed means the asset is reserved by a paydown that
	// has not yet been accepted. The asset still counts as present for
	// inventory listings until the paydown executes.
	AssetStatePaydownProposed AssetState = "paydown_proposed"
)

// Asset is a single tracked collateral asset. The state field is the single
// source of truth for whether the asset may be included in a new pledge or
// paydown.
type Asset struct {
	ID        string
	State     AssetState
	UpdatedAt time.Time
}
