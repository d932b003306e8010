package menu_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafehub/internal/menu"
)

type mockMenuRepository struct {
	createFunc     func(ctx context.Context, item *menu.Item) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*menu.Item, error)
	listByCafeFunc func(ctx context.Context, cafeID uuid.UUID, onlyAvailable bool) ([]menu.Item, error)
	itemsByIDFunc  func(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]menu.Item, error)
	updateFunc     func(ctx context.Context, item *menu.Item) error
	deleteFunc     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockMenuRepository) Create(ctx context.Context, item *menu.Item) error {
	return m.createFunc(ctx, item)
}

func (m *mockMenuRepository) GetByID(ctx context.Context, id uuid.UUID) (*menu.Item, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockMenuRepository) ListByCafe(ctx context.Context, cafeID uuid.UUID, onlyAvailable bool) ([]menu.Item, error) {
	return m.listByCafeFunc(ctx, cafeID, onlyAvailable)
}

func (m *mockMenuRepository) ItemsByID(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]menu.Item, error) {
	return m.itemsByIDFunc(ctx, cafeID, ids)
}

func (m *mockMenuRepository) Update(ctx context.Context, item *menu.Item) error {
	return m.updateFunc(ctx, item)
}

func (m *mockMenuRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

type staffCheckerFunc func(ctx context.Context, cafeID, userID uuid.UUID) (bool, error)

func (f staffCheckerFunc) IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error) {
	return f(ctx, cafeID, userID)
}

func allowAll(ctx context.Context, cafeID, userID uuid.UUID) (bool, error) { return true, nil }
func denyAll(ctx context.Context, cafeID, userID uuid.UUID) (bool, error) { return false, nil }

func TestService_CreateItem(t *testing.T) {
	cafeID := uuid.Must(uuid.NewV4())
	actorID := uuid.Must(uuid.NewV4())

	input := menu.ItemInput{
		Name:        "Flat White",
		Category:    "coffee",
		Price:       decimal.RequireFromString("3.50"),
		IsAvailable: true,
	}

	t.Run("staff_creates_item", func(t *testing.T) {
		mockRepo := &mockMenuRepository{
			createFunc: func(ctx context.Context, item *menu.Item) error { return nil },
		}
		svc := menu.NewService(mockRepo, staffCheckerFunc(allowAll))

		item, err := svc.CreateItem(context.Background(), actorID, cafeID, input)
		require.NoError(t, err)
		assert.Equal(t, cafeID, item.CafeID)
		assert.True(t, item.Price.Equal(decimal.RequireFromString("3.50")))
	})

	t.Run("non_staff_rejected", func(t *testing.T) {
		svc := menu.NewService(&mockMenuRepository{}, staffCheckerFunc(denyAll))
		_, err := svc.CreateItem(context.Background(), actorID, cafeID, input)
		assert.True(t, errors.Is(err, menu.ErrNotCafeStaff))
	})

	t.Run("negative_price_rejected", func(t *testing.T) {
		svc := menu.NewService(&mockMenuRepository{}, staffCheckerFunc(allowAll))
		bad := input
		bad.Price = decimal.RequireFromString("-1")
		_, err := svc.CreateItem(context.Background(), actorID, cafeID, bad)
		assert.Error(t, err)
	})
}

func TestService_UpdateItem_ChecksOwningCafe(t *testing.T) {
	cafeID := uuid.Must(uuid.NewV4())
	itemID := uuid.Must(uuid.NewV4())
	actorID := uuid.Must(uuid.NewV4())

	existing := &menu.Item{ID: itemID, CafeID: cafeID, Name: "Espresso", Price: decimal.RequireFromString("2.00")}

	var checkedCafe uuid.UUID
	checker := staffCheckerFunc(func(ctx context.Context, cafeID, userID uuid.UUID) (bool, error) {
		checkedCafe = cafeID
		return true, nil
	})

	mockRepo := &mockMenuRepository{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*menu.Item, error) { return existing, nil },
		updateFunc:  func(ctx context.Context, item *menu.Item) error { return nil },
	}
	svc := menu.NewService(mockRepo, checker)

	updated, err := svc.UpdateItem(context.Background(), actorID, itemID, menu.ItemInput{
		Name:        "Doppio",
		Price:       decimal.RequireFromString("2.50"),
		IsAvailable: false,
	})
	require.NoError(t, err)
	// Authorization must run against the cafe the item belongs to.
	assert.Equal(t, cafeID, checkedCafe)
	assert.Equal(t, "Doppio", updated.Name)
	assert.False(t, updated.IsAvailable)
}

func TestService_ListMenu_FiltersAvailability(t *testing.T) {
	cafeID := uuid.Must(uuid.NewV4())

	var gotOnlyAvailable bool
	mockRepo := &mockMenuRepository{
		listByCafeFunc: func(ctx context.Context, cafeID uuid.UUID, onlyAvailable bool) ([]menu.Item, error) {
			gotOnlyAvailable = onlyAvailable
			return []menu.Item{}, nil
		},
	}
	svc := menu.NewService(mockRepo, staffCheckerFunc(allowAll))

	_, err := svc.ListMenu(context.Background(), cafeID, false)
	require.NoError(t, err)
	assert.True(t, gotOnlyAvailable)

	_, err = svc.ListMenu(context.Background(), cafeID, true)
	require.NoError(t, err)
	assert.False(t, gotOnlyAvailable)
}
