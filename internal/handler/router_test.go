package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafehub/internal/auth"
	"cafehub/internal/cafe"
	"cafehub/internal/handler"
	"cafehub/internal/menu"
	"cafehub/internal/order"
	"cafehub/internal/payment"
	"cafehub/internal/user"
)

type mockCafeService struct {
	createFunc   func(ctx context.Context, ownerID uuid.UUID, ownerRole user.Role, name, currency string) (*cafe.Cafe, error)
	getFunc      func(ctx context.Context, id uuid.UUID) (*cafe.Cafe, error)
	listFunc     func(ctx context.Context) ([]cafe.Cafe, error)
	addStaffFunc func(ctx context.Context, actorID, cafeID, staffID uuid.UUID) error
	isStaffFunc  func(ctx context.Context, cafeID, userID uuid.UUID) (bool, error)
}

func (m *mockCafeService) CreateCafe(ctx context.Context, ownerID uuid.UUID, ownerRole user.Role, name, currency string) (*cafe.Cafe, error) {
	return m.createFunc(ctx, ownerID, ownerRole, name, currency)
}

func (m *mockCafeService) GetCafe(ctx context.Context, id uuid.UUID) (*cafe.Cafe, error) {
	return m.getFunc(ctx, id)
}

func (m *mockCafeService) ListCafes(ctx context.Context) ([]cafe.Cafe, error) {
	return m.listFunc(ctx)
}

func (m *mockCafeService) AddStaff(ctx context.Context, actorID, cafeID, staffID uuid.UUID) error {
	return m.addStaffFunc(ctx, actorID, cafeID, staffID)
}

func (m *mockCafeService) IsStaff(ctx context.Context, cafeID, userID uuid.UUID) (bool, error) {
	return m.isStaffFunc(ctx, cafeID, userID)
}

type mockMenuService struct {
	createFunc    func(ctx context.Context, actorID, cafeID uuid.UUID, in menu.ItemInput) (*menu.Item, error)
	updateFunc    func(ctx context.Context, actorID, itemID uuid.UUID, in menu.ItemInput) (*menu.Item, error)
	deleteFunc    func(ctx context.Context, actorID, itemID uuid.UUID) error
	listFunc      func(ctx context.Context, cafeID uuid.UUID, includeUnavailable bool) ([]menu.Item, error)
	itemsByIDFunc func(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]menu.Item, error)
}

func (m *mockMenuService) CreateItem(ctx context.Context, actorID, cafeID uuid.UUID, in menu.ItemInput) (*menu.Item, error) {
	return m.createFunc(ctx, actorID, cafeID, in)
}

func (m *mockMenuService) UpdateItem(ctx context.Context, actorID, itemID uuid.UUID, in menu.ItemInput) (*menu.Item, error) {
	return m.updateFunc(ctx, actorID, itemID, in)
}

func (m *mockMenuService) DeleteItem(ctx context.Context, actorID, itemID uuid.UUID) error {
	return m.deleteFunc(ctx, actorID, itemID)
}

func (m *mockMenuService) ListMenu(ctx context.Context, cafeID uuid.UUID, includeUnavailable bool) ([]menu.Item, error) {
	return m.listFunc(ctx, cafeID, includeUnavailable)
}

func (m *mockMenuService) ItemsByID(ctx context.Context, cafeID uuid.UUID, ids []uuid.UUID) ([]menu.Item, error) {
	return m.itemsByIDFunc(ctx, cafeID, ids)
}

func newTestRouter(cafes cafe.Service, menus menu.Service, orders *mockOrderService, payments *mockPaymentService) (http.Handler, *auth.Manager) {
	tokens := auth.NewManager("router-test-secret", 15*time.Minute, 24*time.Hour)
	router := handler.NewRouter(handler.Handlers{
		Auth:    handler.NewAuthHandler(&mockUserService{}, tokens),
		Cafe:    handler.NewCafeHandler(cafes),
		Menu:    handler.NewMenuHandler(menus),
		Order:   handler.NewOrderHandler(orders),
		Payment: handler.NewPaymentHandler(payments, orders, "router-test-webhook"),
		Tokens:  tokens,
	})
	return router, tokens
}

func bearerRequest(t *testing.T, router http.Handler, tokens *auth.Manager, role user.Role, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	pair, err := tokens.IssuePair(uuid.Must(uuid.NewV4()), role)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(&mockCafeService{}, &mockMenuService{}, &mockOrderService{}, &mockPaymentService{})
	rec, env := doRequest(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestRouter_PublicRoutes(t *testing.T) {
	cafeID := uuid.Must(uuid.NewV4())
	cafes := &mockCafeService{
		listFunc: func(ctx context.Context) ([]cafe.Cafe, error) {
			return []cafe.Cafe{{ID: cafeID, Name: "Corner Roasters"}}, nil
		},
	}
	menus := &mockMenuService{
		listFunc: func(ctx context.Context, gotCafe uuid.UUID, includeUnavailable bool) ([]menu.Item, error) {
			assert.Equal(t, cafeID, gotCafe)
			assert.False(t, includeUnavailable)
			return []menu.Item{}, nil
		},
	}
	router, _ := newTestRouter(cafes, menus, &mockOrderService{}, &mockPaymentService{})

	rec, env := doRequest(t, router, http.MethodGet, "/api/cafes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = doRequest(t, router, http.MethodGet, "/api/cafes/"+cafeID.String()+"/menu", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router, tokens := newTestRouter(&mockCafeService{}, &mockMenuService{}, &mockOrderService{
		listCustomerFunc: func(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]order.Order, error) {
			return []order.Order{}, nil
		},
	}, &mockPaymentService{})

	t.Run("missing_token_rejected", func(t *testing.T) {
		rec, env := doRequest(t, router, http.MethodGet, "/api/orders", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unauthorized", env.Error.Code)
	})

	t.Run("garbage_token_rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid_token_accepted", func(t *testing.T) {
		pair, err := tokens.IssuePair(uuid.Must(uuid.NewV4()), user.RoleCustomer)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouter_RoleGates(t *testing.T) {
	cafes := &mockCafeService{
		createFunc: func(ctx context.Context, ownerID uuid.UUID, ownerRole user.Role, name, currency string) (*cafe.Cafe, error) {
			return &cafe.Cafe{ID: uuid.Must(uuid.NewV4()), Name: name, OwnerID: ownerID}, nil
		},
	}
	menus := &mockMenuService{
		createFunc: func(ctx context.Context, actorID, cafeID uuid.UUID, in menu.ItemInput) (*menu.Item, error) {
			return &menu.Item{ID: uuid.Must(uuid.NewV4()), CafeID: cafeID, Name: in.Name, Price: in.Price}, nil
		},
	}
	router, tokens := newTestRouter(cafes, menus, &mockOrderService{}, &mockPaymentService{})

	cafeID := uuid.Must(uuid.NewV4())

	t.Run("customer_cannot_create_cafe", func(t *testing.T) {
		rec, env := bearerRequest(t, router, tokens, user.RoleCustomer,
			http.MethodPost, "/api/cafes", `{"name":"Corner Roasters"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "forbidden", env.Error.Code)
	})

	t.Run("owner_creates_cafe", func(t *testing.T) {
		rec, env := bearerRequest(t, router, tokens, user.RoleOwner,
			http.MethodPost, "/api/cafes", `{"name":"Corner Roasters"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, env.Success)
	})

	t.Run("customer_cannot_add_menu_item", func(t *testing.T) {
		rec, _ := bearerRequest(t, router, tokens, user.RoleCustomer,
			http.MethodPost, "/api/cafes/"+cafeID.String()+"/menu",
			`{"name":"Latte","price":"4.00"}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("staff_adds_menu_item", func(t *testing.T) {
		rec, _ := bearerRequest(t, router, tokens, user.RoleStaff,
			http.MethodPost, "/api/cafes/"+cafeID.String()+"/menu",
			`{"name":"Latte","price":"4.00"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("customer_cannot_list_cafe_orders", func(t *testing.T) {
		rec, _ := bearerRequest(t, router, tokens, user.RoleCustomer,
			http.MethodGet, "/api/cafes/"+cafeID.String()+"/orders", "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRouter_ListOrderPayments(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	t.Run("accessible_order_lists_payments", func(t *testing.T) {
		orders := &mockOrderService{
			getFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error) {
				return &order.Order{ID: id, Status: order.StatusPaid}, nil
			},
		}
		payments := &mockPaymentService{
			listByOrderFunc: func(ctx context.Context, gotOrder uuid.UUID) ([]payment.Payment, error) {
				assert.Equal(t, orderID, gotOrder)
				return []payment.Payment{{OrderID: gotOrder, State: payment.StateConfirmed}}, nil
			},
		}
		router, tokens := newTestRouter(&mockCafeService{}, &mockMenuService{}, orders, payments)

		rec, env := bearerRequest(t, router, tokens, user.RoleCustomer,
			http.MethodGet, "/api/orders/"+orderID.String()+"/payments", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)

		var got []payment.Payment
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Len(t, got, 1)
		assert.Equal(t, payment.StateConfirmed, got[0].State)
	})

	t.Run("inaccessible_order_denied", func(t *testing.T) {
		orders := &mockOrderService{
			getFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error) {
				return nil, order.ErrAccessDenied
			},
		}
		payments := &mockPaymentService{
			listByOrderFunc: func(ctx context.Context, gotOrder uuid.UUID) ([]payment.Payment, error) {
				t.Fatal("payments must not be listed when the order is inaccessible")
				return nil, nil
			},
		}
		router, tokens := newTestRouter(&mockCafeService{}, &mockMenuService{}, orders, payments)

		rec, env := bearerRequest(t, router, tokens, user.RoleCustomer,
			http.MethodGet, "/api/orders/"+orderID.String()+"/payments", "")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "forbidden", env.Error.Code)
	})
}
