package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("payment not found")
	ErrDuplicateRef = errors.New("payment with this provider reference already recorded")
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	UpdateState(ctx context.Context, id uuid.UUID, state State) error
	GetByProviderRef(ctx context.Context, provider Provider, ref string) (*Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, p *Payment) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO payments (id, order_id, provider, provider_ref, amount, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OrderID, string(p.Provider), p.ProviderRef, p.Amount, string(p.State), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateRef
		}
		return fmt.Errorf("repository: failed to insert payment: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateState(ctx context.Context, id uuid.UUID, state State) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE payments SET state = $2, updated_at = $3 WHERE id = $1
	`, id, string(state), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to update payment %s state: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) GetByProviderRef(ctx context.Context, provider Provider, ref string) (*Payment, error) {
	var p Payment
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, provider, provider_ref, amount, state, created_at, updated_at
		FROM payments WHERE provider = $1 AND provider_ref = $2
	`, string(provider), ref).Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderRef, &p.Amount, &p.State, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment %s/%s: %w", provider, ref, err)
	}
	return &p, nil
}

func (r *postgresRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, provider, provider_ref, amount, state, created_at, updated_at
		FROM payments WHERE order_id = $1 ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query payments for order %s: %w", orderID, err)
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderRef, &p.Amount, &p.State, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating payments: %w", err)
	}
	return payments, nil
}
