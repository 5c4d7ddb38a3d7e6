package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/strandfi/facilityd/internal/domain"
)

const pledgeCols = `id, assets, total_advance, asset_marker_denom, state, created_at, updated_at`

func scanPledge(scanner interface{ Scan(dest ...any) error }) (domain.Pledge, error) {
	var p domain.Pledge
	var state string
	var totalAdvance int64
	err := scanner.Scan(
		&p.ID, &p.Assets, &totalAdvance, &p.AssetMarkerDenom,
		&state, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Pledge{}, err
	}
	p.TotalAdvance = uint64(totalAdvance)
	p.State = domain.PledgeState(state)
	return p, nil
}

func scanPledgeRows(rows pgx.Rows) ([]domain.Pledge, error) {
	var pledges []domain.Pledge
	for rows.Next() {
		p, err := scanPledge(rows)
		if err != nil {
			return nil, err
		}
		pledges = append(pledges, p)
	}
	return pledges, rows.Err()
}

// CreatePledge inserts a new pledge; an id collision yields ErrAlreadyExists.
func (l *Ledger) CreatePledge(ctx context.Context, p domain.Pledge) error {
	const query = `
		INSERT INTO pledges (id, assets, total_advance, asset_marker_denom, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := l.q.Exec(ctx, query,
		p.ID, p.Assets, int64(p.TotalAdvance), p.AssetMarkerDenom,
		string(p.State), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("pledge %s: %w", p.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create pledge %s: %w", p.ID, err)
	}
	return nil
}

// SavePledge overwrites an existing pledge.
func (l *Ledger) SavePledge(ctx context.Context, p domain.Pledge) error {
	const query = `
		UPDATE pledges
		SET assets = $2, total_advance = $3, asset_marker_denom = $4, state = $5, updated_at = $6
		WHERE id = $1`

	tag, err := l.q.Exec(ctx, query,
		p.ID, p.Assets, int64(p.TotalAdvance), p.AssetMarkerDenom,
		string(p.State), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save pledge %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pledge %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// GetPledge retrieves a single pledge by id.
func (l *Ledger) GetPledge(ctx context.Context, id string) (domain.Pledge, error) {
	row := l.q.QueryRow(ctx,
		`SELECT `+pledgeCols+` FROM pledges WHERE id = $1`, id)

	p, err := scanPledge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pledge{}, fmt.Errorf("pledge %s: %w", id, domain.ErrNotFound)
		}
		return domain.Pledge{}, fmt.Errorf("postgres: get pledge %s: %w", id, err)
	}
	return p, nil
}

// ListPledges returns pledges matching any of the given states, or all
// pledges when no states are given.
func (l *Ledger) ListPledges(ctx context.Context, states ...domain.PledgeState) ([]domain.Pledge, error) {
	query := `SELECT ` + pledgeCols + ` FROM pledges`
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
		return nil, fmt.Errorf("postgres: list pledges: %w", err)
	}
	defer rows.Close()

	pledges, err := scanPledgeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan pledges: %w", err)
	}
	return pledges, nil
}

// PledgeIDs returns every pledge id.
func (l *Ledger) PledgeIDs(ctx context.Context) ([]string, error) {
	rows, err := l.q.Query(ctx, `SELECT id FROM pledges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: pledge ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan pledge id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindPledgesReferencingAssets returns pledges in any of the given states
// whose asset list overlaps assetIDs. Backed by the GIN index on assets.
func (l *Ledger) FindPledgesReferencingAssets(ctx context.Context, assetIDs []string, states ...domain.PledgeState) ([]domain.Pledge, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + pledgeCols + ` FROM pledges WHERE assets && $1`
	args := []any{assetIDs}
	if len(states) > 0 {
		filter := make([]string, len(states))
		for i, s := range states {
			filter[i] = string(s)
		}
		query += ` AND state = ANY($2)`
		args = append(args, filter)
	}
	query += ` ORDER BY id`

	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: find pledges by assets: %w", err)
	}
	defer rows.Close()

	pledges, err := scanPledgeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan pledges by assets: %w", err)
	}
	return pledges, nil
}
