package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/strandfi/facilityd/internal/domain"
)

const paydownCols = `id, assets, total_paydown, kind, state, parties_accepted, buyer, purchase_price, created_at, updated_at`

func scanPaydown(scanner interface{ Scan(dest ...any) error }) (domain.Paydown, error) {
	var p domain.Paydown
	var kind, state string
	var totalPaydown int64
	var parties []string
	var buyer *string
	var price *int64

	err := scanner.Scan(
		&p.ID, &p.Assets, &totalPaydown, &kind, &state,
		&parties, &buyer, &price, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Paydown{}, err
	}

	p.TotalPaydown = uint64(totalPaydown)
	p.Kind = domain.PaydownKind(kind)
	p.State = domain.PaydownState(state)
	for _, party := range parties {
		p.PartiesAccepted = append(p.PartiesAccepted, domain.Party(party))
	}
	if buyer != nil && price != nil {
		p.Sale = &domain.SaleInfo{Buyer: *buyer, Price: uint64(*price)}
	}
	return p, nil
}

func paydownArgs(p domain.Paydown) []any {
	parties := make([]string, len(p.PartiesAccepted))
	for i, party := range p.PartiesAccepted {
		parties[i] = string(party)
	}
	var buyer *string
	var price *int64
	if p.Sale != nil {
		b := p.Sale.Buyer
		pr := int64(p.Sale.Price)
		buyer, price = &b, &pr
	}
	return []any{
		p.ID, p.Assets, int64(p.TotalPaydown), string(p.Kind), string(p.State),
		parties, buyer, price, p.CreatedAt, p.UpdatedAt,
	}
}

// CreatePaydown inserts a new paydown; an id collision yields
// ErrAlreadyExists.
func (l *Ledger) CreatePaydown(ctx context.Context, p domain.Paydown) error {
	const query = `
		INSERT INTO paydowns (id, assets, total_paydown, kind, state, parties_accepted, buyer, purchase_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := l.q.Exec(ctx, query, paydownArgs(p)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("paydown %s: %w", p.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create paydown %s: %w", p.ID, err)
	}
	return nil
}

// SavePaydown overwrites an existing paydown.
func (l *Ledger) SavePaydown(ctx context.Context, p domain.Paydown) error {
	const query = `
		UPDATE paydowns
		SET assets = $2, total_paydown = $3, kind = $4, state = $5,
		    parties_accepted = $6, buyer = $7, purchase_price = $8, updated_at = $9
		WHERE id = $1`

	args := paydownArgs(p)
	// Drop created_at; it is immutable after insert.
	args = append(args[:8], p.UpdatedAt)

	tag, err := l.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: save paydown %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("paydown %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// GetPaydown retrieves a single paydown by id.
func (l *Ledger) GetPaydown(ctx context.Context, id string) (domain.Paydown, error) {
	row := l.q.QueryRow(ctx,
		`SELECT `+paydownCols+` FROM paydowns WHERE id = $1`, id)

	p, err := scanPaydown(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Paydown{}, fmt.Errorf("paydown %s: %w", id, domain.ErrNotFound)
		}
		return domain.Paydown{}, fmt.Errorf("postgres: get paydown %s: %w", id, err)
	}
	return p, nil
}

// ListPaydowns returns paydowns matching any of the given states, or all
// paydowns when no states are given.
func (l *Ledger) ListPaydowns(ctx context.Context, states ...domain.PaydownState) ([]domain.Paydown, error) {
	query := `SELECT ` + paydownCols + ` FROM paydowns`
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
		return nil, fmt.Errorf("postgres: list paydowns: %w", err)
	}
	defer rows.Close()

	var paydowns []domain.Paydown
	for rows.Next() {
		p, err := scanPaydown(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan paydown: %w", err)
		}
		paydowns = append(paydowns, p)
	}
	return paydowns, rows.Err()
}

// PaydownIDs returns every paydown id.
func (l *Ledger) PaydownIDs(ctx context.Context) ([]string, error) {
	rows, err := l.q.Query(ctx, `SELECT id FROM paydowns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: paydown ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan paydown id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
