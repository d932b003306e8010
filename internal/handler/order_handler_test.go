package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafehub/internal/auth"
	"cafehub/internal/handler"
	"cafehub/internal/order"
	"cafehub/internal/user"
)

type mockOrderService struct {
	placeFunc          func(ctx context.Context, customerID uuid.UUID, in order.PlaceOrderInput) (*order.Order, error)
	getFunc            func(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error)
	listCustomerFunc   func(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]order.Order, error)
	listCafeFunc       func(ctx context.Context, actor order.Actor, cafeID uuid.UUID) ([]order.Order, error)
	updateStatusFunc   func(ctx context.Context, actor order.Actor, orderID uuid.UUID, next order.Status, version int64) (*order.Order, error)
	cancelFunc         func(ctx context.Context, actor order.Actor, orderID uuid.UUID, version int64) (*order.CancelResult, error)
	confirmPaymentFunc func(ctx context.Context, orderID uuid.UUID, paymentRef string) (*order.Order, error)
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, customerID uuid.UUID, in order.PlaceOrderInput) (*order.Order, error) {
	return m.placeFunc(ctx, customerID, in)
}

func (m *mockOrderService) GetOrder(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error) {
	return m.getFunc(ctx, actor, id)
}

func (m *mockOrderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]order.Order, error) {
	return m.listCustomerFunc(ctx, customerID, limit, offset)
}

func (m *mockOrderService) ListCafeOrders(ctx context.Context, actor order.Actor, cafeID uuid.UUID) ([]order.Order, error) {
	return m.listCafeFunc(ctx, actor, cafeID)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, actor order.Actor, orderID uuid.UUID, next order.Status, version int64) (*order.Order, error) {
	return m.updateStatusFunc(ctx, actor, orderID, next, version)
}

func (m *mockOrderService) Cancel(ctx context.Context, actor order.Actor, orderID uuid.UUID, version int64) (*order.CancelResult, error) {
	return m.cancelFunc(ctx, actor, orderID, version)
}

func (m *mockOrderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentRef string) (*order.Order, error) {
	return m.confirmPaymentFunc(ctx, orderID, paymentRef)
}

// withIdentity injects an authenticated caller the way the real auth
// middleware would.
func withIdentity(id auth.Identity, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func orderRouter(svc order.Service, id auth.Identity) http.Handler {
	h := handler.NewOrderHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/orders", h.Place)
	r.Get("/api/orders/{orderID}", h.Get)
	r.Post("/api/orders/{orderID}/status", h.UpdateStatus)
	r.Post("/api/orders/{orderID}/cancel", h.Cancel)
	return withIdentity(id, r)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	staffID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())
	identity := auth.Identity{UserID: staffID, Role: user.RoleStaff}

	t.Run("success", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID, next order.Status, version int64) (*order.Order, error) {
				assert.Equal(t, staffID, actor.UserID)
				assert.Equal(t, orderID, id)
				assert.Equal(t, order.StatusPreparing, next)
				assert.Equal(t, int64(2), version)
				return &order.Order{ID: id, Status: next, Version: version + 1}, nil
			},
		}
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost,
			"/api/orders/"+orderID.String()+"/status", `{"status":"preparing","version":2}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)

		var got order.Order
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, order.StatusPreparing, got.Status)
		assert.Equal(t, int64(3), got.Version)
	})

	t.Run("version_conflict_maps_to_409", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID, next order.Status, version int64) (*order.Order, error) {
				return nil, order.ErrVersionConflict
			},
		}
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost,
			"/api/orders/"+orderID.String()+"/status", `{"status":"preparing","version":1}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, "version_conflict", env.Error.Code)
	})

	t.Run("invalid_transition_maps_to_409", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID, next order.Status, version int64) (*order.Order, error) {
				return nil, order.ErrInvalidTransition
			},
		}
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost,
			"/api/orders/"+orderID.String()+"/status", `{"status":"completed","version":1}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_transition", env.Error.Code)
	})

	t.Run("not_allowed_maps_to_403", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID, next order.Status, version int64) (*order.Order, error) {
				return nil, order.ErrNotAllowed
			},
		}
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost,
			"/api/orders/"+orderID.String()+"/status", `{"status":"preparing","version":1}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "forbidden", env.Error.Code)
	})

	t.Run("missing_version_fails_validation", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID, next order.Status, version int64) (*order.Order, error) {
				t.Fatal("service must not be called on validation failure")
				return nil, nil
			},
		}
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost,
			"/api/orders/"+orderID.String()+"/status", `{"status":"preparing"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
		assert.Contains(t, env.Error.Details, "Version")
	})

	t.Run("bad_order_id_rejected", func(t *testing.T) {
		svc := &mockOrderService{}
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost,
			"/api/orders/not-a-uuid/status", `{"status":"preparing","version":1}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_id", env.Error.Code)
	})
}

func TestOrderHandler_Cancel(t *testing.T) {
	customerID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())
	identity := auth.Identity{UserID: customerID, Role: user.RoleCustomer}

	svc := &mockOrderService{
		cancelFunc: func(ctx context.Context, actor order.Actor, id uuid.UUID, version int64) (*order.CancelResult, error) {
			return &order.CancelResult{
				Order:     &order.Order{ID: id, Status: order.StatusCancelled, Version: version + 1},
				RefundDue: true,
			}, nil
		},
	}
	rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost,
		"/api/orders/"+orderID.String()+"/cancel", `{"version":2}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var got struct {
		Order     order.Order `json:"order"`
		RefundDue bool        `json:"refund_due"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, order.StatusCancelled, got.Order.Status)
	assert.True(t, got.RefundDue)
}

func TestOrderHandler_Place(t *testing.T) {
	customerID := uuid.Must(uuid.NewV4())
	cafeID := uuid.Must(uuid.NewV4())
	itemID := uuid.Must(uuid.NewV4())
	identity := auth.Identity{UserID: customerID, Role: user.RoleCustomer}

	t.Run("success", func(t *testing.T) {
		svc := &mockOrderService{
			placeFunc: func(ctx context.Context, gotCustomer uuid.UUID, in order.PlaceOrderInput) (*order.Order, error) {
				assert.Equal(t, customerID, gotCustomer)
				assert.Equal(t, cafeID, in.CafeID)
				require.Len(t, in.Lines, 1)
				assert.Equal(t, itemID, in.Lines[0].MenuItemID)
				assert.Equal(t, 2, in.Lines[0].Quantity)
				return &order.Order{ID: uuid.Must(uuid.NewV4()), Status: order.StatusPlaced, Version: 1}, nil
			},
		}
		body := `{"cafe_id":"` + cafeID.String() + `","items":[{"menu_item_id":"` + itemID.String() + `","quantity":2}]}`
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost, "/api/orders", body)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, env.Success)
	})

	t.Run("empty_items_fails_validation", func(t *testing.T) {
		svc := &mockOrderService{
			placeFunc: func(ctx context.Context, gotCustomer uuid.UUID, in order.PlaceOrderInput) (*order.Order, error) {
				t.Fatal("service must not be called on validation failure")
				return nil, nil
			},
		}
		body := `{"cafe_id":"` + cafeID.String() + `","items":[]}`
		rec, env := doRequest(t, orderRouter(svc, identity), http.MethodPost, "/api/orders", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
	})
}
