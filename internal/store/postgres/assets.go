package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/strandfi/facilityd/internal/domain"
)

// SetAssetsState upserts the state of every listed asset id.
func (l *Ledger) SetAssetsState(ctx context.Context, ids []string, state domain.AssetState) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
		INSERT INTO assets (id, state, updated_at)
		SELECT unnest($1::text[]), $2, NOW()
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`

	if _, err := l.q.Exec(ctx, query, ids, string(state)); err != nil {
		return fmt.Errorf("postgres: set assets state: %w", err)
	}
	return nil
}

// RemoveAssets deletes the asset records entirely.
func (l *Ledger) RemoveAssets(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := l.q.Exec(ctx, `DELETE FROM assets WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("postgres: remove assets: %w", err)
	}
	return nil
}

// GetAsset retrieves a single asset record.
func (l *Ledger) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	var a domain.Asset
	var state string
	err := l.q.QueryRow(ctx,
		`SELECT id, state, updated_at FROM assets WHERE id = $1`, id,
	).Scan(&a.ID, &state, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, domain.ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("postgres: get asset %s: %w", id, err)
	}
	a.State = domain.AssetState(state)
	return a, nil
}

// ListAssets returns every tracked asset ordered by id.
func (l *Ledger) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	rows, err := l.q.Query(ctx,
		`SELECT id, state, updated_at FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var a domain.Asset
		var state string
		if err := rows.Scan(&a.ID, &state, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan asset: %w", err)
		}
		a.State = domain.AssetState(state)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// AssetIDs returns the ids of assets matching any of the given states, or
// every tracked id when no states are given.
func (l *Ledger) AssetIDs(ctx context.Context, states ...domain.AssetState) ([]string, error) {
	query := `SELECT id FROM assets`
	var args []any
	if len(states) > 0 {
		filter := make([]string, len(states))
		for i, s := range states {
			filter[i] = string(s)
		}
		query += ` WHERE state = ANY($1)`
		args = append(args, filter)
	}
	query += ` ORDER BY id`

	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: asset ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan asset id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
