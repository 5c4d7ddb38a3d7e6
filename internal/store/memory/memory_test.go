package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strandfi/facilityd/internal/domain"
)

func TestInTxCommit(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()

	err := ledger.InTx(ctx, func(l domain.Ledger) error {
		if err := l.CreatePledge(ctx, domain.Pledge{ID: "pledge1", Assets: []string{"loan-a"}}); err != nil {
			return err
		}
		return l.SetAssetsState(ctx, []string{"loan-a"}, domain.AssetStatePledgeProposed)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	if _, err := ledger.GetPledge(ctx, "pledge1"); err != nil {
		t.Fatalf("get pledge after commit: %v", err)
	}
	asset, err := ledger.GetAsset(ctx, "loan-a")
	if err != nil {
		t.Fatalf("get asset after commit: %v", err)
	}
	if asset.State != domain.AssetStatePledgeProposed {
		t.Fatalf("asset state = %s, want %s", asset.State, domain.AssetStatePledgeProposed)
	}
}

func TestInTxRollback(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()

	if err := ledger.SetAssetsState(ctx, []string{"loan-a"}, domain.AssetStateInventory); err != nil {
		t.Fatalf("seed asset: %v", err)
	}

	boom := errors.New("boom")
	err := ledger.InTx(ctx, func(l domain.Ledger) error {
		if err := l.CreatePledge(ctx, domain.Pledge{ID: "pledge1"}); err != nil {
			return err
		}
		if err := l.RemoveAssets(ctx, []string{"loan-a"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx err = %v, want boom", err)
	}

	// Every mutation inside the failed transaction must be discarded.
	if _, err := ledger.GetPledge(ctx, "pledge1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("pledge lookup err = %v, want ErrNotFound", err)
	}
	if _, err := ledger.GetAsset(ctx, "loan-a"); err != nil {
		t.Fatalf("asset must survive rollback: %v", err)
	}
}

func TestCreatePledgeDuplicate(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()

	if err := ledger.CreatePledge(ctx, domain.Pledge{ID: "pledge1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := ledger.CreatePledge(ctx, domain.Pledge{ID: "pledge1"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestSavePledgeMissing(t *testing.T) {
	ledger := NewLedger()
	err := ledger.SavePledge(context.Background(), domain.Pledge{ID: "ghost"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAssetIDsFiltersByState(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()

	if err := ledger.SetAssetsState(ctx, []string{"loan-a", "loan-b"}, domain.AssetStateInventory); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ledger.SetAssetsState(ctx, []string{"loan-c"}, domain.AssetStatePledgeProposed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ids, err := ledger.AssetIDs(ctx, domain.AssetStateInventory)
	if err != nil {
		t.Fatalf("asset ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != "loan-a" || ids[1] != "loan-b" {
		t.Fatalf("ids = %v, want [loan-a loan-b]", ids)
	}

	all, err := ledger.AssetIDs(ctx)
	if err != nil {
		t.Fatalf("asset ids: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all ids = %v, want 3 entries", all)
	}
}

func TestListPledgesFiltersByState(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()

	seed := []domain.Pledge{
		{ID: "pledge1", State: domain.PledgeStateProposed},
		{ID: "pledge2", State: domain.PledgeStateExecuted},
		{ID: "pledge3", State: domain.PledgeStateExecuted},
	}
	for _, p := range seed {
		if err := ledger.CreatePledge(ctx, p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}

	executed, err := ledger.ListPledges(ctx, domain.PledgeStateExecuted)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(executed) != 2 || executed[0].ID != "pledge2" || executed[1].ID != "pledge3" {
		t.Fatalf("executed = %v, want pledge2 and pledge3", executed)
	}
}

func TestFindPledgesReferencingAssets(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()

	seed := []domain.Pledge{
		{ID: "pledge1", Assets: []string{"loan-a", "loan-b"}, State: domain.PledgeStateExecuted},
		{ID: "pledge2", Assets: []string{"loan-c"}, State: domain.PledgeStateExecuted},
		{ID: "pledge3", Assets: []string{"loan-a"}, State: domain.PledgeStateCancelled},
	}
	for _, p := range seed {
		if err := ledger.CreatePledge(ctx, p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}

	found, err := ledger.FindPledgesReferencingAssets(ctx, []string{"loan-a"}, domain.PledgeStateExecuted)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 1 || found[0].ID != "pledge1" {
		t.Fatalf("found = %v, want [pledge1]", found)
	}
}

func TestInTxIsolatesSaleInfo(t *testing.T) {
	ledger := NewLedger()
	ctx := context.Background()

	paydown := domain.Paydown{
		ID:    "paydown1",
		Kind:  domain.PaydownAndSell,
		State: domain.PaydownStateProposed,
		Sale:  &domain.SaleInfo{Buyer: "buyer1", Price: 600},
	}
	if err := ledger.CreatePaydown(ctx, paydown); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating sale info inside a failed transaction must not leak out.
	boom := errors.New("boom")
	_ = ledger.InTx(ctx, func(l domain.Ledger) error {
		p, err := l.GetPaydown(ctx, "paydown1")
		if err != nil {
			return err
		}
		p.Sale.Price = 999
		p.UpdatedAt = time.Now().UTC()
		if err := l.SavePaydown(ctx, p); err != nil {
			return err
		}
		return boom
	})

	got, err := ledger.GetPaydown(ctx, "paydown1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Sale.Price != 600 {
		t.Fatalf("sale price = %d, want 600 after rollback", got.Sale.Price)
	}
}
