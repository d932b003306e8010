package cafe

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
	ErrNotFound      = errors.New("cafe not found")
	ErrAlreadyStaff  = errors.New("user is already staff of this cafe")
	ErrUnknownMember = errors.New("referenced user does not exist")
)

type Repository interface {
	Create(ctx context.Context, c *Cafe) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cafe, error)
	List(ctx context.Context) ([]Cafe, error)
	AddStaff(ctx context.Context, cafeID, userID uuid.UUID) error
	IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, c *Cafe) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO cafes (id, name, owner_id, currency, is_open, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.Name, c.OwnerID, c.Currency, c.IsOpen, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert cafe: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Cafe, error) {
	var c Cafe
	err := r.db.QueryRow(ctx, `
		SELECT id, name, owner_id, currency, is_open, created_at, updated_at
		FROM cafes WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.OwnerID, &c.Currency, &c.IsOpen, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cafe %s: %w", id, err)
	}
	return &c, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Cafe, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, owner_id, currency, is_open, created_at, updated_at
		FROM cafes ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cafes: %w", err)
	}
	defer rows.Close()

	cafes := make([]Cafe, 0)
	for rows.Next() {
		var c Cafe
		if err := rows.Scan(&c.ID, &c.Name, &c.OwnerID, &c.Currency, &c.IsOpen, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan cafe: %w", err)
		}
		cafes = append(cafes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cafes: %w", err)
	}
	return cafes, nil
}

func (r *postgresRepository) AddStaff(ctx context.Context, cafeID, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cafe_staff (cafe_id, user_id) VALUES ($1, $2)
	`, cafeID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return ErrAlreadyStaff
			case pgerrcode.ForeignKeyViolation:
				return ErrUnknownMember
			}
		}
		return fmt.Errorf("repository: failed to add staff to cafe %s: %w", cafeID, err)
	}
	return nil
}

// IsStaff reports whether the user is a staff member or the owner of the cafe.
func (r *postgresRepository) IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM cafe_staff WHERE cafe_id = $1 AND user_id = $2
			UNION
			SELECT 1 FROM cafes WHERE id = $1 AND owner_id = $2
		)
	`, cafeID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check staff membership: %w", err)
	}
	return ok, nil
}
