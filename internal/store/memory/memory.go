// Package memory implements the domain ledger interfaces in process memory.
// It backs the test suites and the "memory" storage mode, and provides the
// same all-or-nothing transaction contract as the postgres ledger by cloning
// state and swapping it in only when the transaction function succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/strandfi/facilityd/internal/domain"
)

type state struct {
	assets   map[string]domain.Asset
	pledges  map[string]domain.Pledge
	paydowns map[string]domain.Paydown
}

func newState() *state {
	return &state{
		assets:   make(map[string]domain.Asset),
		pledges:  make(map[string]domain.Pledge),
		paydowns: make(map[string]domain.Paydown),
	}
}

func (s *state) clone() *state {
	next := newState()
	for id, a := range s.assets {
		next.assets[id] = a
	}
	for id, p := range s.pledges {
		p.Assets = append([]string(nil), p.Assets...)
		next.pledges[id] = p
	}
	for id, p := range s.paydowns {
		p.Assets = append([]string(nil), p.Assets...)
		p.PartiesAccepted = append([]domain.Party(nil), p.PartiesAccepted...)
		if p.Sale != nil {
			sale := *p.Sale
			p.Sale = &sale
		}
		next.paydowns[id] = p
	}
	return next
}

// Ledger is an in-memory domain.TxLedger. A single mutex serializes writers,
// matching the single-writer model of the persistent ledger.
type Ledger struct {
	mu    sync.Mutex
	state *state
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{state: newState()}
}

// InTx runs fn against a cloned view of the ledger. The clone replaces the
// live state only if fn returns nil; any error discards every mutation.
func (l *Ledger) InTx(ctx context.Context, fn func(domain.Ledger) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.clone()
	if err := fn(&view{state: next}); err != nil {
		return err
	}
	l.state = next
	return nil
}

func (l *Ledger) read(fn func(*view) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(&view{state: l.state})
}

// view implements domain.Ledger over one state snapshot without locking; it
// is only reachable while the owning Ledger's mutex is held.
type view struct {
	state *state
}

func (v *view) SetAssetsState(_ context.Context, ids []string, st domain.AssetState) error {
	now := time.Now().UTC()
	for _, id := range ids {
		v.state.assets[id] = domain.Asset{ID: id, State: st, UpdatedAt: now}
	}
	return nil
}

func (v *view) RemoveAssets(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(v.state.assets, id)
	}
	return nil
}

func (v *view) GetAsset(_ context.Context, id string) (domain.Asset, error) {
	a, ok := v.state.assets[id]
	if !ok {
		return domain.Asset{}, domain.ErrNotFound
	}
	return a, nil
}

func (v *view) ListAssets(_ context.Context) ([]domain.Asset, error) {
	assets := make([]domain.Asset, 0, len(v.state.assets))
	for _, a := range v.state.assets {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

func (v *view) AssetIDs(_ context.Context, states ...domain.AssetState) ([]string, error) {
	var ids []string
	for id, a := range v.state.assets {
		if len(states) == 0 || containsAssetState(states, a.State) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (v *view) CreatePledge(_ context.Context, p domain.Pledge) error {
	if _, ok := v.state.pledges[p.ID]; ok {
		return fmt.Errorf("pledge %s: %w", p.ID, domain.ErrAlreadyExists)
	}
	v.state.pledges[p.ID] = p
	return nil
}

func (v *view) SavePledge(_ context.Context, p domain.Pledge) error {
	if _, ok := v.state.pledges[p.ID]; !ok {
		return fmt.Errorf("pledge %s: %w", p.ID, domain.ErrNotFound)
	}
	v.state.pledges[p.ID] = p
	return nil
}

func (v *view) GetPledge(_ context.Context, id string) (domain.Pledge, error) {
	p, ok := v.state.pledges[id]
	if !ok {
		return domain.Pledge{}, fmt.Errorf("pledge %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (v *view) ListPledges(_ context.Context, states ...domain.PledgeState) ([]domain.Pledge, error) {
	var pledges []domain.Pledge
	for _, p := range v.state.pledges {
		if len(states) == 0 || containsPledgeState(states, p.State) {
			pledges = append(pledges, p)
		}
	}
	sort.Slice(pledges, func(i, j int) bool { return pledges[i].ID < pledges[j].ID })
	return pledges, nil
}

func (v *view) PledgeIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(v.state.pledges))
	for id := range v.state.pledges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (v *view) FindPledgesReferencingAssets(_ context.Context, assetIDs []string, states ...domain.PledgeState) ([]domain.Pledge, error) {
	var pledges []domain.Pledge
	for _, p := range v.state.pledges {
		if len(states) > 0 && !containsPledgeState(states, p.State) {
			continue
		}
		if p.References(assetIDs) {
			pledges = append(pledges, p)
		}
	}
	sort.Slice(pledges, func(i, j int) bool { return pledges[i].ID < pledges[j].ID })
	return pledges, nil
}

func (v *view) CreatePaydown(_ context.Context, p domain.Paydown) error {
	if _, ok := v.state.paydowns[p.ID]; ok {
		return fmt.Errorf("paydown %s: %w", p.ID, domain.ErrAlreadyExists)
	}
	v.state.paydowns[p.ID] = p
	return nil
}

func (v *view) SavePaydown(_ context.Context, p domain.Paydown) error {
	if _, ok := v.state.paydowns[p.ID]; !ok {
		return fmt.Errorf("paydown %s: %w", p.ID, domain.ErrNotFound)
	}
	v.state.paydowns[p.ID] = p
	return nil
}

func (v *view) GetPaydown(_ context.Context, id string) (domain.Paydown, error) {
	p, ok := v.state.paydowns[id]
	if !ok {
		return domain.Paydown{}, fmt.Errorf("paydown %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (v *view) ListPaydowns(_ context.Context, states ...domain.PaydownState) ([]domain.Paydown, error) {
	var paydowns []domain.Paydown
	for _, p := range v.state.paydowns {
		if len(states) == 0 || containsPaydownState(states, p.State) {
			paydowns = append(paydowns, p)
		}
	}
	sort.Slice(paydowns, func(i, j int) bool { return paydowns[i].ID < paydowns[j].ID })
	return paydowns, nil
}

func (v *view) PaydownIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(v.state.paydowns))
	for id := range v.state.paydowns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Read-path Ledger methods on *Ledger delegate to a locked view so the
// ledger can also be used directly outside a transaction.

func (l *Ledger) SetAssetsState(ctx context.Context, ids []string, st domain.AssetState) error {
	return l.read(func(v *view) error { return v.SetAssetsState(ctx, ids, st) })
}

func (l *Ledger) RemoveAssets(ctx context.Context, ids []string) error {
	return l.read(func(v *view) error { return v.RemoveAssets(ctx, ids) })
}

func (l *Ledger) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	var a domain.Asset
	err := l.read(func(v *view) error {
		var err error
		a, err = v.GetAsset(ctx, id)
		return err
	})
	return a, err
}

func (l *Ledger) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	var assets []domain.Asset
	err := l.read(func(v *view) error {
		var err error
		assets, err = v.ListAssets(ctx)
		return err
	})
	return assets, err
}

func (l *Ledger) AssetIDs(ctx context.Context, states ...domain.AssetState) ([]string, error) {
	var ids []string
	err := l.read(func(v *view) error {
		var err error
		ids, err = v.AssetIDs(ctx, states...)
		return err
	})
	return ids, err
}

func (l *Ledger) CreatePledge(ctx context.Context, p domain.Pledge) error {
	return l.read(func(v *view) error { return v.CreatePledge(ctx, p) })
}

func (l *Ledger) SavePledge(ctx context.Context, p domain.Pledge) error {
	return l.read(func(v *view) error { return v.SavePledge(ctx, p) })
}

func (l *Ledger) GetPledge(ctx context.Context, id string) (domain.Pledge, error) {
	var p domain.Pledge
	err := l.read(func(v *view) error {
		var err error
		p, err = v.GetPledge(ctx, id)
		return err
	})
	return p, err
}

func (l *Ledger) ListPledges(ctx context.Context, states ...domain.PledgeState) ([]domain.Pledge, error) {
	var pledges []domain.Pledge
	err := l.read(func(v *view) error {
		var err error
		pledges, err = v.ListPledges(ctx, states...)
		return err
	})
	return pledges, err
}

func (l *Ledger) PledgeIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := l.read(func(v *view) error {
		var err error
		ids, err = v.PledgeIDs(ctx)
		return err
	})
	return ids, err
}

func (l *Ledger) FindPledgesReferencingAssets(ctx context.Context, assetIDs []string, states ...domain.PledgeState) ([]domain.Pledge, error) {
	var pledges []domain.Pledge
	err := l.read(func(v *view) error {
		var err error
		pledges, err = v.FindPledgesReferencingAssets(ctx, assetIDs, states...)
		return err
	})
	return pledges, err
}

func (l *Ledger) CreatePaydown(ctx context.Context, p domain.Paydown) error {
	return l.read(func(v *view) error { return v.CreatePaydown(ctx, p) })
}

func (l *Ledger) SavePaydown(ctx context.Context, p domain.Paydown) error {
	return l.read(func(v *view) error { return v.SavePaydown(ctx, p) })
}

func (l *Ledger) GetPaydown(ctx context.Context, id string) (domain.Paydown, error) {
	var p domain.Paydown
	err := l.read(func(v *view) error {
		var err error
		p, err = v.GetPaydown(ctx, id)
		return err
	})
	return p, err
}

func (l *Ledger) ListPaydowns(ctx context.Context, states ...domain.PaydownState) ([]domain.Paydown, error) {
	var paydowns []domain.Paydown
	err := l.read(func(v *view) error {
		var err error
		paydowns, err = v.ListPaydowns(ctx, states...)
		return err
	})
	return paydowns, err
}

func (l *Ledger) PaydownIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := l.read(func(v *view) error {
		var err error
		ids, err = v.PaydownIDs(ctx)
		return err
	})
	return ids, err
}

func containsAssetState(states []domain.AssetState, s domain.AssetState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func containsPledgeState(states []domain.PledgeState, s domain.PledgeState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func containsPaydownState(states []domain.PaydownState, s domain.PaydownState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ domain.TxLedger = (*Ledger)(nil)
