package domain

import "context"

// AssetStore persists the facility asset inventory.
type AssetStore interface {
	// SetAssetsState overwrites the state of every listed asset id,
	// creating records that do not exist yet.
	SetAssetsState(ctx context.Context, ids []string, state AssetState) error
	// RemoveAssets deletes the records entirely: the assets leave the
	// facility and are no longer tracked as reserved or available.
	RemoveAssets(ctx context.Context, ids []string) error
	GetAsset(ctx context.Context, id string) (Asset, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	// AssetIDs returns the ids of assets whose state matches any of the
	// given states; with no states it returns every tracked asset id.
	// Results are sorted for deterministic listings.
	AssetIDs(ctx context.Context, states ...AssetState) ([]string, error)
}

// PledgeStore persists pledges.
type PledgeStore interface {
	// CreatePledge inserts a new pledge; id collision returns
	// ErrAlreadyExists.
	CreatePledge(ctx context.Context, p Pledge) error
	SavePledge(ctx context.Context, p Pledge) error
	GetPledge(ctx context.Context, id string) (Pledge, error)
	ListPledges(ctx context.Context, states ...PledgeState) ([]Pledge, error)
	PledgeIDs(ctx context.Context) ([]string, error)
	// FindPledgesReferencingAssets returns pledges in any of the given
	// states that reference at least one of the asset ids. This is an
	// indexed lookup, not a full scan.
	FindPledgesReferencingAssets(ctx context.Context, assetIDs []string, states ...PledgeState) ([]Pledge, error)
}

// PaydownStore persists paydowns.
type PaydownStore interface {
	CreatePaydown(ctx context.Context, p Paydown) error
	SavePaydown(ctx context.Context, p Paydown) error
	GetPaydown(ctx context.Context, id string) (Paydown, error)
	ListPaydowns(ctx context.Context, states ...PaydownState) ([]Paydown, error)
	PaydownIDs(ctx context.Context) ([]string, error)
}

// Ledger combines the asset, pledge and paydown stores. It is exclusively
// owned by the facility instance; nothing else mutates it.
type Ledger interface {
	AssetStore
	PledgeStore
	PaydownStore
}

// TxLedger is a Ledger whose mutations can be grouped into all-or-nothing
// units. Every engine operation runs inside exactly one InTx call: either
// the whole operation commits together with its emitted instructions, or
// the ledger is left byte-for-byte as it was.
type TxLedger interface {
	Ledger
	InTx(ctx context.Context, fn func(Ledger) error) error
}

// MarkerOracle resolves point-in-time snapshots of external marker accounts.
// Implementations query the external registry; the ledger core never caches
// the result across operations.
type MarkerOracle interface {
	MarkerByAddress(ctx context.Context, address string) (MarkerAccount, error)
	MarkerByDenom(ctx context.Context, denom string) (MarkerAccount, error)
}
