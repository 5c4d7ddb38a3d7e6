package domain

// Coin is an amount of a named settlement denom.
type Coin struct {
	Amount uint64 `json:"amount"`
	Denom  string `json:"denom"`
}

// IsZero reports whether no funds were attached.
func (c Coin) IsZero() bool {
	return c.Denom == "" && c.Amount == 0
}

// InstructionKind identifies a settlement instruction type. The facility
// issues ordered sequences of these; the external settlement layer executes
// them atomically with the ledger mutation and the facility only propagates
// success or failure.
type InstructionKind string

const (
	InstructionCreateMarker   InstructionKind = "create_marker"
	InstructionGrantAccess    InstructionKind = "grant_marker_access"
	InstructionFinalizeMarker InstructionKind = "finalize_marker"
	InstructionActivateMarker InstructionKind = "activate_marker"
	InstructionWithdraw       InstructionKind = "withdraw_coins"
	InstructionTransferMarker InstructionKind = "transfer_marker_coins"
	InstructionCancelMarker   InstructionKind = "cancel_marker"
	InstructionDestroyMarker  InstructionKind = "destroy_marker"
	InstructionBankSend       InstructionKind = "bank_send"
)

// Instruction is a single settlement instruction. Field usage depends on
// Kind; unused fields are zero.
type Instruction struct {
	Kind InstructionKind `json:"kind"`
	// MarkerDenom is the marker the instruction operates on.
	MarkerDenom string `json:"marker_denom,omitempty"`
	// Denom is the coin denom being moved (withdraw_coins, bank_send).
	Denom  string `json:"denom,omitempty"`
	Amount uint64 `json:"amount,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	// Grantee and Permissions apply to grant_marker_access.
	Grantee     string             `json:"grantee,omitempty"`
	Permissions []MarkerPermission `json:"permissions,omitempty"`
	// Restricted applies to create_marker.
	Restricted bool `json:"restricted,omitempty"`
}

// InstructionBatch is the ordered instruction list emitted by one ledger
// operation. The batch id lets the settlement layer correlate results back
// to the operation that produced them.
type InstructionBatch struct {
	ID           string        `json:"id"`
	Operation    string        `json:"operation"`
	Instructions []Instruction `json:"instructions"`
}

// CreateMarker mints a new restricted or unrestricted marker with the given
// fixed supply.
func CreateMarker(supply uint64, denom string, restricted bool) Instruction {
	return Instruction{
		Kind:        InstructionCreateMarker,
		MarkerDenom: denom,
		Amount:      supply,
		Restricted:  restricted,
	}
}

// GrantMarkerAccess grants the listed permissions on a marker to grantee.
func GrantMarkerAccess(denom, grantee string, permissions ...MarkerPermission) Instruction {
	return Instruction{
		Kind:        InstructionGrantAccess,
		MarkerDenom: denom,
		Grantee:     grantee,
		Permissions: permissions,
	}
}

// FinalizeMarker finalizes a marker's supply and permission set.
func FinalizeMarker(denom string) Instruction {
	return Instruction{Kind: InstructionFinalizeMarker, MarkerDenom: denom}
}

// ActivateMarker activates a finalized marker.
func ActivateMarker(denom string) Instruction {
	return Instruction{Kind: InstructionActivateMarker, MarkerDenom: denom}
}

// WithdrawCoins withdraws amount of coinDenom held by markerDenom's account
// to the recipient.
func WithdrawCoins(markerDenom string, amount uint64, coinDenom, recipient string) Instruction {
	return Instruction{
		Kind:        InstructionWithdraw,
		MarkerDenom: markerDenom,
		Denom:       coinDenom,
		Amount:      amount,
		To:          recipient,
	}
}

// TransferMarkerCoins moves amount of a restricted marker's own coin between
// two accounts.
func TransferMarkerCoins(amount uint64, denom, from, to string) Instruction {
	return Instruction{
		Kind:        InstructionTransferMarker,
		MarkerDenom: denom,
		Amount:      amount,
		From:        from,
		To:          to,
	}
}

// CancelMarker cancels a marker in preparation for destruction.
func CancelMarker(denom string) Instruction {
	return Instruction{Kind: InstructionCancelMarker, MarkerDenom: denom}
}

// DestroyMarker destroys a cancelled marker.
func DestroyMarker(denom string) Instruction {
	return Instruction{Kind: InstructionDestroyMarker, MarkerDenom: denom}
}

// BankSend moves funds held by the facility account to another account.
func BankSend(amount uint64, denom, to string) Instruction {
	return Instruction{
		Kind:   InstructionBankSend,
		Denom:  denom,
		Amount: amount,
		To:     to,
	}
}
