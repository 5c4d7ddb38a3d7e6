package domain

// Facility is the static per-contract configuration for a warehouse credit
// facility. It is read-only input to the engines; creation and mutation of
// the facility itself happen outside this service.
type Facility struct {
	// Account is the facility service's own settlement identity. The escrow
	// marker must grant this account transfer and withdraw access before any
	// money-moving operation is allowed.
	Account string
	// Warehouse is the party advancing cash against pledged collateral.
	Warehouse string
	// Originator is the party pledging collateral into the facility.
	Originator string
	// EscrowAccount is the address of the custodial escrow marker account.
	// The facility never mutates it directly, only via emitted settlement
	// instructions.
	EscrowAccount string
	// SettlementDenom is the denom all advances, paydowns and purchases are
	// settled in.
	SettlementDenom string
	// AdvanceRate is the facility advance rate as a decimal percentage
	// string, e.g. "72.5".
	AdvanceRate string
}
