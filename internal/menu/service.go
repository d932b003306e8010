package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrNotCafeStaff = errors.New("only cafe staff may manage the menu")

// StaffChecker reports whether a user may act for a cafe. Implemented by the
// cafe service.
type StaffChecker interface {
	IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error)
}

type ItemInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	IsAvailable bool
}

type Service interface {
	CreateItem(ctx context.Context, actorID, cafeID uuid.UUID, in ItemInput) (*Item, error)
	UpdateItem(ctx context.Context, actorID, itemID uuid.UUID, in ItemInput) (*Item, error)
	DeleteItem(ctx context.Context, actorID, itemID uuid.UUID) error
	ListMenu(ctx context.Context, cafeID uuid.UUID, includeUnavailable bool) ([]Item, error)
	ItemsByID(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]Item, error)
}

type service struct {
	repo  Repository
	staff StaffChecker
}

func NewService(repo Repository, staff StaffChecker) Service {
	return &service{repo: repo, staff: staff}
}

func (s *service) authorize(ctx context.Context, cafeID, actorID uuid.UUID) error {
	ok, err := s.staff.IsStaff(ctx, cafeID, actorID)
	if err != nil {
		return fmt.Errorf("service: failed to check staff membership: %w", err)
	}
	if !ok {
		return ErrNotCafeStaff
	}
	return nil
}

func (s *service) CreateItem(ctx context.Context, actorID, cafeID uuid.UUID, in ItemInput) (*Item, error) {
	if err := s.authorize(ctx, cafeID, actorID); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("service: menu item price cannot be negative")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate menu item ID: %w", err)
	}
	item := &Item{
		ID:          id,
		CafeID:      cafeID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		IsAvailable: in.IsAvailable,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		log.Error().Err(err).Msg("service: failed to create menu item in repository")
		return nil, fmt.Errorf("service: failed to create menu item: %w", err)
	}

	log.Info().Stringer("item_id", item.ID).Stringer("cafe_id", cafeID).Msg("Menu item created")
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, actorID, itemID uuid.UUID, in ItemInput) (*Item, error) {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch menu item: %w", err)
	}
	if err := s.authorize(ctx, item.CafeID, actorID); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("service: menu item price cannot be negative")
	}

	item.Name = in.Name
	item.Description = in.Description
	item.Category = in.Category
	item.Price = in.Price
	item.IsAvailable = in.IsAvailable

	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Msg("service: failed to update menu item in repository")
		return nil, fmt.Errorf("service: failed to update menu item: %w", err)
	}
	return item, nil
}

func (s *service) DeleteItem(ctx context.Context, actorID, itemID uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("service: failed to fetch menu item: %w", err)
	}
	if err := s.authorize(ctx, item.CafeID, actorID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, itemID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("service: failed to delete menu item: %w", err)
	}

	log.Info().Stringer("item_id", itemID).Msg("Menu item deleted")
	return nil
}

func (s *service) ListMenu(ctx context.Context, cafeID uuid.UUID, includeUnavailable bool) ([]Item, error) {
	items, err := s.repo.ListByCafe(ctx, cafeID, !includeUnavailable)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list menu: %w", err)
	}
	return items, nil
}

func (s *service) ItemsByID(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]Item, error) {
	items, err := s.repo.ItemsByID(ctx, cafeID, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch menu items: %w", err)
	}
	return items, nil
}
