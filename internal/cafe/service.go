package cafe

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"cafehub/internal/user"
)

var ErrNotOwner = errors.New("only the cafe owner may perform this action")

type Service interface {
	CreateCafe(ctx context.Context, ownerID uuid.UUID, ownerRole user.Role, name, currency string) (*Cafe, error)
	GetCafe(ctx context.Context, id uuid.UUID) (*Cafe, error)
	ListCafes(ctx context.Context) ([]Cafe, error)
	AddStaff(ctx context.Context, actorID, cafeID, staffID uuid.UUID) error
	IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateCafe(ctx context.Context, ownerID uuid.UUID, ownerRole user.Role, name, currency string) (*Cafe, error) {
	if ownerRole != user.RoleOwner {
		return nil, ErrNotOwner
	}
	if currency == "" {
		currency = "KES"
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate cafe ID: %w", err)
	}
	c := &Cafe{
		ID:       id,
		Name:     name,
		OwnerID:  ownerID,
		Currency: currency,
		IsOpen:   true,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		log.Error().Err(err).Msg("service: failed to create cafe in repository")
		return nil, fmt.Errorf("service: failed to create cafe: %w", err)
	}

	log.Info().Stringer("cafe_id", c.ID).Stringer("owner_id", ownerID).Msg("Cafe created")
	return c, nil
}

func (s *service) GetCafe(ctx context.Context, id uuid.UUID) (*Cafe, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch cafe: %w", err)
	}
	return c, nil
}

func (s *service) ListCafes(ctx context.Context) ([]Cafe, error) {
	cafes, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cafes: %w", err)
	}
	return cafes, nil
}

func (s *service) AddStaff(ctx context.Context, actorID, cafeID, staffID uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, cafeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("service: failed to fetch cafe for staff update: %w", err)
	}
	if c.OwnerID != actorID {
		return ErrNotOwner
	}

	if err := s.repo.AddStaff(ctx, cafeID, staffID); err != nil {
		if errors.Is(err, ErrAlreadyStaff) || errors.Is(err, ErrUnknownMember) {
			return err
		}
		return fmt.Errorf("service: failed to add staff: %w", err)
	}

	log.Info().Stringer("cafe_id", cafeID).Stringer("user_id", staffID).Msg("Staff member added")
	return nil
}

func (s *service) IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error) {
	return s.repo.IsStaff(ctx, cafeID, userID)
}
