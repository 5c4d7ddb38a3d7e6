package service

import (
	"context"
	"errors"
	"testing"

	"github.com/strandfi/facilityd/internal/domain"
)

func TestProposePaydown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a", "loan-b"}, 1000)

	result, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"})
	if err != nil {
		t.Fatalf("propose paydown: %v", err)
	}

	if result.Paydown.State != domain.PaydownStateProposed {
		t.Fatalf("state = %s, want %s", result.Paydown.State, domain.PaydownStateProposed)
	}
	if result.Paydown.Kind != domain.PaydownOnly {
		t.Fatalf("kind = %s, want %s", result.Paydown.Kind, domain.PaydownOnly)
	}
	if len(result.AffectedPledges) != 1 || result.AffectedPledges[0] != "pledge1" {
		t.Fatalf("affected pledges = %v, want [pledge1]", result.AffectedPledges)
	}

	// The paydown funds move to escrow.
	want := []domain.InstructionKind{domain.InstructionBankSend}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}

	asset, err := f.ledger.GetAsset(ctx, "loan-a")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if asset.State != domain.AssetStatePaydownProposed {
		t.Fatalf("asset state = %s, want %s", asset.State, domain.AssetStatePaydownProposed)
	}
}

func TestProposePaydownAssetNotInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// loan-a is only reserved, never executed into inventory.
	f.proposePledge(t, "pledge1", []string{"loan-a"}, 1000)

	_, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"})
	if !errors.Is(err, domain.ErrAssetConflict) {
		t.Fatalf("err = %v, want ErrAssetConflict", err)
	}

	// Untracked assets are rejected the same way.
	_, err = f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown2", Assets: []string{"loan-x"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"})
	if !errors.Is(err, domain.ErrAssetConflict) {
		t.Fatalf("err = %v, want ErrAssetConflict", err)
	}
}

func TestProposePaydownFundsMismatch(t *testing.T) {
	f := newFixture(t)
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)

	_, err := f.paydowns.Propose(context.Background(), ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 399, Denom: "usdf"})
	if !errors.Is(err, domain.ErrFundsMismatch) {
		t.Fatalf("err = %v, want ErrFundsMismatch", err)
	}

	// The rejected proposal must not have reserved the asset.
	asset, err := f.ledger.GetAsset(context.Background(), "loan-a")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if asset.State != domain.AssetStateInventory {
		t.Fatalf("asset state = %s, want %s", asset.State, domain.AssetStateInventory)
	}
}

func TestAcceptPaydownWarehouseOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}

	result, err := f.paydowns.Accept(ctx, "paydown1", "warehouse1", domain.Coin{})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	// The warehouse is the only required party for a plain paydown.
	if result.Paydown.State != domain.PaydownStateAccepted {
		t.Fatalf("state = %s, want %s", result.Paydown.State, domain.PaydownStateAccepted)
	}
	if len(result.Batch.Instructions) != 0 {
		t.Fatalf("instructions = %v, want none for warehouse acceptance", result.Batch.Instructions)
	}
}

func TestAcceptPaydownUnauthorizedCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// A stranger, and even the would-be buyer of a plain paydown, may not accept.
	for _, caller := range []string{"stranger1", "buyer1"} {
		if _, err := f.paydowns.Accept(ctx, "paydown1", caller, domain.Coin{}); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("caller %s: err = %v, want ErrUnauthorized", caller, err)
		}
	}
}

func TestAcceptPaydownDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
		Sale: &domain.SaleInfo{Buyer: "buyer1", Price: 600},
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := f.paydowns.Accept(ctx, "paydown1", "warehouse1", domain.Coin{}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := f.paydowns.Accept(ctx, "paydown1", "warehouse1", domain.Coin{})
	if !errors.Is(err, domain.ErrDuplicateAcceptance) {
		t.Fatalf("err = %v, want ErrDuplicateAcceptance", err)
	}
}

func TestPaydownAndSellAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
		Sale: &domain.SaleInfo{Buyer: "buyer1", Price: 600},
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Buyer funds must match the purchase price exactly.
	if _, err := f.paydowns.Accept(ctx, "paydown1", "buyer1", domain.Coin{Amount: 599, Denom: "usdf"}); !errors.Is(err, domain.ErrFundsMismatch) {
		t.Fatalf("err = %v, want ErrFundsMismatch", err)
	}

	buyerResult, err := f.paydowns.Accept(ctx, "paydown1", "buyer1", domain.Coin{Amount: 600, Denom: "usdf"})
	if err != nil {
		t.Fatalf("buyer accept: %v", err)
	}
	// One acceptance of two: still proposed, purchase funds head to escrow.
	if buyerResult.Paydown.State != domain.PaydownStateProposed {
		t.Fatalf("state = %s, want still %s", buyerResult.Paydown.State, domain.PaydownStateProposed)
	}
	want := []domain.InstructionKind{domain.InstructionBankSend}
	if got := instructionKinds(buyerResult.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}

	whResult, err := f.paydowns.Accept(ctx, "paydown1", "warehouse1", domain.Coin{})
	if err != nil {
		t.Fatalf("warehouse accept: %v", err)
	}
	if whResult.Paydown.State != domain.PaydownStateAccepted {
		t.Fatalf("state = %s, want %s", whResult.Paydown.State, domain.PaydownStateAccepted)
	}
}

func TestExecutePaydownClosesRepaidPledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a", "loan-b"}, 1000)

	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a", "loan-b"}, TotalPaydown: 1000,
	}, domain.Coin{Amount: 1000, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.paydowns.Accept(ctx, "paydown1", "warehouse1", domain.Coin{}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	result, err := f.paydowns.Execute(ctx, "paydown1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Paydown.State != domain.PaydownStateExecuted {
		t.Fatalf("state = %s, want %s", result.Paydown.State, domain.PaydownStateExecuted)
	}

	// All collateral was repaid, so the pledge closes and its receipt retires.
	if len(result.ClosedPledges) != 1 || result.ClosedPledges[0] != "pledge1" {
		t.Fatalf("closed pledges = %v, want [pledge1]", result.ClosedPledges)
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
	if wd := result.Batch.Instructions[0]; wd.To != "warehouse1" || wd.Amount != 1000 {
		t.Fatalf("withdraw = %+v, want 1000 to warehouse1", wd)
	}

	pledge, err := f.ledger.GetPledge(ctx, "pledge1")
	if err != nil {
		t.Fatalf("get pledge: %v", err)
	}
	if pledge.State != domain.PledgeStateClosed {
		t.Fatalf("pledge state = %s, want %s", pledge.State, domain.PledgeStateClosed)
	}

	// The assets are gone for good.
	assets, err := f.ledger.ListAssets(ctx)
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("assets = %v, want none", assets)
	}
}

func TestExecutePaydownPartialCollateralKeepsPledgeOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a", "loan-b"}, 1000)

	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.paydowns.Accept(ctx, "paydown1", "warehouse1", domain.Coin{}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	result, err := f.paydowns.Execute(ctx, "paydown1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	// loan-b remains in inventory, so the pledge is affected but stays open.
	if len(result.AffectedPledges) != 1 || result.AffectedPledges[0] != "pledge1" {
		t.Fatalf("affected pledges = %v, want [pledge1]", result.AffectedPledges)
	}
	if len(result.ClosedPledges) != 0 {
		t.Fatalf("closed pledges = %v, want none", result.ClosedPledges)
	}

	pledge, err := f.ledger.GetPledge(ctx, "pledge1")
	if err != nil {
		t.Fatalf("get pledge: %v", err)
	}
	if pledge.State != domain.PledgeStateExecuted {
		t.Fatalf("pledge state = %s, want still %s", pledge.State, domain.PledgeStateExecuted)
	}
}

func TestExecutePaydownAndSellPaysOriginator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)

	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
		Sale: &domain.SaleInfo{Buyer: "buyer1", Price: 600},
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.paydowns.Accept(ctx, "paydown1", "warehouse1", domain.Coin{}); err != nil {
		t.Fatalf("warehouse accept: %v", err)
	}
	if _, err := f.paydowns.Accept(ctx, "paydown1", "buyer1", domain.Coin{Amount: 600, Denom: "usdf"}); err != nil {
		t.Fatalf("buyer accept: %v", err)
	}

	result, err := f.paydowns.Execute(ctx, "paydown1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Paydown to the warehouse, purchase price to the originator, then the
	// fully repaid pledge's receipt retires.
	want := []domain.InstructionKind{
		domain.InstructionWithdraw,
		domain.InstructionWithdraw,
		domain.InstructionTransferMarker,
		domain.InstructionCancelMarker,
		domain.InstructionDestroyMarker,
	}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
	if price := result.Batch.Instructions[1]; price.To != "originator1" || price.Amount != 600 {
		t.Fatalf("price withdraw = %+v, want 600 to originator1", price)
	}
}

func TestExecutePaydownRequiresAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}

	_, err := f.paydowns.Execute(ctx, "paydown1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCancelPaydownRestoresInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
		Sale: &domain.SaleInfo{Buyer: "buyer1", Price: 600},
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.paydowns.Accept(ctx, "paydown1", "buyer1", domain.Coin{Amount: 600, Denom: "usdf"}); err != nil {
		t.Fatalf("buyer accept: %v", err)
	}

	result, err := f.paydowns.Cancel(ctx, "paydown1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Paydown.State != domain.PaydownStateCancelled {
		t.Fatalf("state = %s, want %s", result.Paydown.State, domain.PaydownStateCancelled)
	}

	// Paydown funds refund the originator; the buyer's purchase funds refund
	// the buyer because the buyer had already accepted.
	want := []domain.InstructionKind{domain.InstructionWithdraw, domain.InstructionWithdraw}
	if got := instructionKinds(result.Batch); !kindsEqual(got, want) {
		t.Fatalf("instructions = %v, want %v", got, want)
	}
	if refund := result.Batch.Instructions[1]; refund.To != "buyer1" || refund.Amount != 600 {
		t.Fatalf("buyer refund = %+v, want 600 to buyer1", refund)
	}

	asset, err := f.ledger.GetAsset(ctx, "loan-a")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if asset.State != domain.AssetStateInventory {
		t.Fatalf("asset state = %s, want %s", asset.State, domain.AssetStateInventory)
	}
}

func TestCancelPaydownTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.executedPledge(t, "pledge1", []string{"loan-a"}, 1000)
	if _, err := f.paydowns.Propose(ctx, ProposePaydownRequest{
		ID: "paydown1", Assets: []string{"loan-a"}, TotalPaydown: 400,
	}, domain.Coin{Amount: 400, Denom: "usdf"}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.paydowns.Cancel(ctx, "paydown1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := f.paydowns.Cancel(ctx, "paydown1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}
