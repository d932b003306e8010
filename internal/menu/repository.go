package menu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("menu item not found")

type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	ListByCafe(ctx context.Context, cafeID uuid.UUID, onlyAvailable bool) ([]Item, error)
	ItemsByID(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const itemColumns = `id, cafe_id, name, description, category, price, is_available, created_at, updated_at`

func scanItem(row pgx.Row, it *Item) error {
	return row.Scan(&it.ID, &it.CafeID, &it.Name, &it.Description, &it.Category,
		&it.Price, &it.IsAvailable, &it.CreatedAt, &it.UpdatedAt)
}

func (r *postgresRepository) Create(ctx context.Context, item *Item) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO menu_items (id, cafe_id, name, description, category, price, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		item.ID, item.CafeID, item.Name, item.Description, item.Category,
		item.Price, item.IsAvailable, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert menu item: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	var it Item
	err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM menu_items WHERE id = $1`, id), &it)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select menu item %s: %w", id, err)
	}
	return &it, nil
}

func (r *postgresRepository) ListByCafe(ctx context.Context, cafeID uuid.UUID, onlyAvailable bool) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM menu_items WHERE cafe_id = $1`
	if onlyAvailable {
		query += ` AND is_available`
	}
	query += ` ORDER BY category, name`

	rows, err := r.db.Query(ctx, query, cafeID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query menu for cafe %s: %w", cafeID, err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *postgresRepository) ItemsByID(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+` FROM menu_items WHERE cafe_id = $1 AND id = ANY($2)
	`, cafeID, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query menu items by id: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := scanItem(rows, &it); err != nil {
			return nil, fmt.Errorf("repository: failed to scan menu item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating menu items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) Update(ctx context.Context, item *Item) error {
	item.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE menu_items
		SET name = $2, description = $3, category = $4, price = $5, is_available = $6, updated_at = $7
		WHERE id = $1
	`, item.ID, item.Name, item.Description, item.Category, item.Price, item.IsAvailable, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to update menu item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete menu item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
