package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/strandfi/facilityd/internal/domain"
	"github.com/strandfi/facilityd/internal/store/memory"
)

// stubOracle serves canned marker snapshots keyed by address and denom.
type stubOracle struct {
	byAddress map[string]domain.MarkerAccount
	byDenom   map[string]domain.MarkerAccount
}

func (o *stubOracle) MarkerByAddress(_ context.Context, address string) (domain.MarkerAccount, error) {
	m, ok := o.byAddress[address]
	if !ok {
		return domain.MarkerAccount{}, domain.ErrNotFound
	}
	return m, nil
}

func (o *stubOracle) MarkerByDenom(_ context.Context, denom string) (domain.MarkerAccount, error) {
	m, ok := o.byDenom[denom]
	if !ok {
		return domain.MarkerAccount{}, domain.ErrNotFound
	}
	return m, nil
}

func (o *stubOracle) addMarker(m domain.MarkerAccount) {
	o.byAddress[m.Address] = m
	o.byDenom[m.Denom] = m
}

func testFacility() domain.Facility {
	return domain.Facility{
		Account:         "facility1",
		Warehouse:       "warehouse1",
		Originator:      "originator1",
		EscrowAccount:   "escrow1",
		SettlementDenom: "usdf",
		AdvanceRate:     "75.0",
	}
}

// newTestOracle returns an oracle whose escrow marker grants the facility
// account transfer and withdraw access.
func newTestOracle() *stubOracle {
	o := &stubOracle{
		byAddress: make(map[string]domain.MarkerAccount),
		byDenom:   make(map[string]domain.MarkerAccount),
	}
	o.addMarker(domain.MarkerAccount{
		Address: "escrow1",
		Denom:   "escrowpool",
		Grants: []domain.AccessGrant{{
			Address:     "facility1",
			Permissions: []domain.MarkerPermission{domain.PermissionTransfer, domain.PermissionWithdraw},
		}},
	})
	return o
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ledger   *memory.Ledger
	oracle   *stubOracle
	pledges  *PledgeService
	paydowns *PaydownService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := memory.NewLedger()
	oracle := newTestOracle()
	facility := testFacility()
	logger := testLogger()
	return &fixture{
		ledger:   ledger,
		oracle:   oracle,
		pledges:  NewPledgeService(ledger, oracle, facility, logger),
		paydowns: NewPaydownService(ledger, oracle, facility, logger),
	}
}

// proposePledge creates a proposed pledge and registers its receipt marker
// with the oracle, as the settlement layer would after executing the batch.
func (f *fixture) proposePledge(t *testing.T, id string, assets []string, advance uint64) *PledgeResult {
	t.Helper()
	denom := id + "coin"
	result, err := f.pledges.Propose(context.Background(), ProposePledgeRequest{
		ID:               id,
		Assets:           assets,
		TotalAdvance:     advance,
		AssetMarkerDenom: denom,
	})
	if err != nil {
		t.Fatalf("propose pledge %s: %v", id, err)
	}
	f.oracle.addMarker(domain.MarkerAccount{Address: id + "addr", Denom: denom, Supply: 1})
	return result
}

func (f *fixture) executedPledge(t *testing.T, id string, assets []string, advance uint64) {
	t.Helper()
	f.proposePledge(t, id, assets, advance)
	if _, err := f.pledges.Accept(context.Background(), id, domain.Coin{Amount: advance, Denom: "usdf"}); err != nil {
		t.Fatalf("accept pledge %s: %v", id, err)
	}
	if _, err := f.pledges.Execute(context.Background(), id); err != nil {
		t.Fatalf("execute pledge %s: %v", id, err)
	}
}

func instructionKinds(batch domain.InstructionBatch) []domain.InstructionKind {
	kinds := make([]domain.InstructionKind, 0, len(batch.Instructions))
	for _, ins := range batch.Instructions {
		kinds = append(kinds, ins.Kind)
	}
	return kinds
}

func kindsEqual(got, want []domain.InstructionKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestProposePledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result := f.proposePledge(t, "pledge1", []string{"loan-a", "loan-b"}, 1000)

	if result.Pledge.State != domain.PledgeStateProposed {
		t.Fatalf("state = %s, want %s", result.Pledge.State, domain.PledgeStateProposed)
	}

	want := []domain.InstructionKind{
		domain.InstructionCreateMarker,
		domain.InstructionGrantAccess,
		domain.InstructionFinalizeMarker,
		domain.InstructionActivateMarker,
		domain.InstructionWithdraw,
	}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}

	// Receipt token goes to the originator.
	last := result.Batch.Instructions[len(result.Batch.Instructions)-1]
	if last.To != "originator1" || last.Amount != 1 {
		t.Fatalf("receipt withdraw = %+v, want 1 unit to originator1", last)
	}

	// Assets are reserved.
	for _, id := range []string{"loan-a", "loan-b"} {
		asset, err := f.ledger.GetAsset(ctx, id)
		if err != nil {
			t.Fatalf("get asset %s: %v", id, err)
		}
		if asset.State != domain.AssetStatePledgeProposed {
			t.Fatalf("asset %s state = %s, want %s", id, asset.State, domain.AssetStatePledgeProposed)
		}
	}
}

func TestProposePledgeDuplicateID(t *testing.T) {
	f := newFixture(t)
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)

	_, err := f.pledges.Propose(context.Background(), ProposePledgeRequest{
		ID: "pledge1", Assets: []string{"loan-z"}, TotalAdvance: 500, AssetMarkerDenom: "othercoin",
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestProposePledgeAssetConflict(t *testing.T) {
	f := newFixture(t)
	f.proposePledge(t, "pledge1", []string{"loan-a", "loan-b"}, 1000)

	_, err := f.pledges.Propose(context.Background(), ProposePledgeRequest{
		ID: "pledge2", Assets: []string{"loan-b", "loan-c"}, TotalAdvance: 500, AssetMarkerDenom: "pledge2coin",
	})
	if !errors.Is(err, domain.ErrAssetConflict) {
		t.Fatalf("err = %v, want ErrAssetConflict", err)
	}

	// The failed proposal must leave no trace.
	if _, err := f.ledger.GetPledge(context.Background(), "pledge2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("pledge2 lookup err = %v, want ErrNotFound", err)
	}
	if _, err := f.ledger.GetAsset(context.Background(), "loan-c"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("loan-c lookup err = %v, want ErrNotFound", err)
	}
}

func TestProposePledgeMissingEscrowGrant(t *testing.T) {
	f := newFixture(t)
	// Revoke the facility's grants on the escrow marker.
	f.oracle.addMarker(domain.MarkerAccount{Address: "escrow1", Denom: "escrowpool"})

	_, err := f.pledges.Propose(context.Background(), ProposePledgeRequest{
		ID: "pledge1", Assets: []string{"loan-a"}, TotalAdvance: 1000, AssetMarkerDenom: "pledge1coin",
	})
	if !errors.Is(err, domain.ErrMissingEscrowGrant) {
		t.Fatalf("err = %v, want ErrMissingEscrowGrant", err)
	}
}

func TestAcceptPledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)

	result, err := f.pledges.Accept(ctx, "pledge1", domain.Coin{Amount: 1000, Denom: "usdf"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if result.Pledge.State != domain.PledgeStateAccepted {
		t.Fatalf("state = %s, want %s", result.Pledge.State, domain.PledgeStateAccepted)
	}

	want := []domain.InstructionKind{domain.InstructionBankSend}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
	if send := result.Batch.Instructions[0]; send.To != "escrow1" || send.Amount != 1000 || send.Denom != "usdf" {
		t.Fatalf("bank send = %+v, want 1000usdf to escrow1", send)
	}
}

func TestAcceptPledgeFundsMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)

	tests := []struct {
		name  string
		funds domain.Coin
	}{
		{"short amount", domain.Coin{Amount: 999, Denom: "usdf"}},
		{"over amount", domain.Coin{Amount: 1001, Denom: "usdf"}},
		{"wrong denom", domain.Coin{Amount: 1000, Denom: "uusd"}},
		{"no funds", domain.Coin{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pledges.Accept(ctx, "pledge1", tt.funds)
			if !errors.Is(err, domain.ErrFundsMismatch) {
				t.Fatalf("err = %v, want ErrFundsMismatch", err)
			}
		})
	}

	// The pledge must still be acceptable.
	pledge, err := f.ledger.GetPledge(ctx, "pledge1")
	if err != nil {
		t.Fatalf("get pledge: %v", err)
	}
	if pledge.State != domain.PledgeStateProposed {
		t.Fatalf("state = %s, want %s", pledge.State, domain.PledgeStateProposed)
	}
}

func TestAcceptPledgeWrongState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)

	if _, err := f.pledges.Accept(ctx, "pledge1", domain.Coin{Amount: 1000, Denom: "usdf"}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := f.pledges.Accept(ctx, "pledge1", domain.Coin{Amount: 1000, Denom: "usdf"})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestExecutePledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proposePledge(t, "pledge1", []string{"loan-a", "loan-b"}, 1000)
	if _, err := f.pledges.Accept(ctx, "pledge1", domain.Coin{Amount: 1000, Denom: "usdf"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	result, err := f.pledges.Execute(ctx, "pledge1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Pledge.State != domain.PledgeStateExecuted {
		t.Fatalf("state = %s, want %s", result.Pledge.State, domain.PledgeStateExecuted)
	}

	// Advance leaves escrow toward the originator.
	want := []domain.InstructionKind{domain.InstructionWithdraw}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
	if wd := result.Batch.Instructions[0]; wd.To != "originator1" || wd.Amount != 1000 {
		t.Fatalf("withdraw = %+v, want 1000 to originator1", wd)
	}

	// Assets become available inventory.
	inventory, err := f.ledger.AssetIDs(ctx, domain.AssetStateInventory)
	if err != nil {
		t.Fatalf("asset ids: %v", err)
	}
	if len(inventory) != 2 {
		t.Fatalf("inventory = %v, want loan-a and loan-b", inventory)
	}
}

func TestExecutePledgeRequiresAccepted(t *testing.T) {
	f := newFixture(t)
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)

	_, err := f.pledges.Execute(context.Background(), "pledge1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCancelPledgeProposed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)

	result, err := f.pledges.Cancel(ctx, "pledge1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Pledge.State != domain.PledgeStateCancelled {
		t.Fatalf("state = %s, want %s", result.Pledge.State, domain.PledgeStateCancelled)
	}

	// No advance was escrowed yet, so only the receipt token retires.
	want := []domain.InstructionKind{
		domain.InstructionTransferMarker,
		domain.InstructionCancelMarker,
		domain.InstructionDestroyMarker,
	}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}

	// Assets leave the ledger entirely.
	if _, err := f.ledger.GetAsset(ctx, "loan-a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("asset lookup err = %v, want ErrNotFound", err)
	}
}

func TestCancelPledgeAcceptedRefundsWarehouse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.pledges.Accept(ctx, "pledge1", domain.Coin{Amount: 1000, Denom: "usdf"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	result, err := f.pledges.Cancel(ctx, "pledge1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	want := []domain.InstructionKind{
		domain.InstructionWithdraw,
		domain.InstructionTransferMarker,
		domain.InstructionCancelMarker,
		domain.InstructionDestroyMarker,
	}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
	if refund := result.Batch.Instructions[0]; refund.To != "warehouse1" || refund.Amount != 1000 {
		t.Fatalf("refund = %+v, want 1000 back to warehouse1", refund)
	}
}

func TestCancelPledgeTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.pledges.Cancel(ctx, "pledge1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := f.pledges.Cancel(ctx, "pledge1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestMatchFunds(t *testing.T) {
	tests := []struct {
		name    string
		funds   domain.Coin
		need    uint64
		denom   string
		wantErr bool
	}{
		{"exact", domain.Coin{Amount: 1000, Denom: "usdf"}, 1000, "usdf", false},
		{"short", domain.Coin{Amount: 999, Denom: "usdf"}, 1000, "usdf", true},
		{"over", domain.Coin{Amount: 1001, Denom: "usdf"}, 1000, "usdf", true},
		{"wrong denom", domain.Coin{Amount: 1000, Denom: "uusd"}, 1000, "usdf", true},
		{"none", domain.Coin{}, 1000, "usdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := matchFunds(tt.funds, tt.need, tt.denom)
			if tt.wantErr && !errors.Is(err, domain.ErrFundsMismatch) {
				t.Fatalf("err = %v, want ErrFundsMismatch", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("err = %v, want nil", err)
			}
		})
	}
}
