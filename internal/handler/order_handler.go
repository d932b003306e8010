package handler

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"cafehub/internal/auth"
	"cafehub/internal/order"
)

type OrderHandler struct {
	orders   order.Service
	validate *validator.Validate
}

func NewOrderHandler(orders order.Service) *OrderHandler {
	return &OrderHandler{orders: orders, validate: validator.New()}
}

type orderLineRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid4"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	CafeID string             `json:"cafe_id" validate:"required,uuid4"`
	Items  []orderLineRequest `json:"items" validate:"required,min=1,dive"`
}

type updateStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Version int64  `json:"version" validate:"required,gt=0"`
}

type cancelOrderRequest struct {
	Version int64 `json:"version" validate:"required,gt=0"`
}

type cancelOrderResponse struct {
	Order     *order.Order `json:"order"`
	RefundDue bool         `json:"refund_due"`
}

func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}

	var req placeOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	cafeID, _ := uuid.FromString(req.CafeID)
	in := order.PlaceOrderInput{CafeID: cafeID}
	for _, line := range req.Items {
		itemID, _ := uuid.FromString(line.MenuItemID)
		in.Lines = append(in.Lines, order.Line{MenuItemID: itemID, Quantity: line.Quantity})
	}

	o, err := h.orders.PlaceOrder(r.Context(), identity.UserID, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusCreated, o)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), order.Actor{UserID: identity.UserID, Role: identity.Role}, orderID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, o)
}

// ListMine returns the caller's own orders, newest first.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	limit := queryInt(r, "limit", 20, 100)
	offset := queryInt(r, "offset", 0, 1<<30)

	orders, err := h.orders.ListCustomerOrders(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, orders)
}

// ListForCafe returns the cafe's active queue for staff dashboards.
func (h *OrderHandler) ListForCafe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	cafeID, ok := pathUUID(w, r, "cafeID")
	if !ok {
		return
	}

	orders, err := h.orders.ListCafeOrders(r.Context(), order.Actor{UserID: identity.UserID, Role: identity.Role}, cafeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, orders)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	actor := order.Actor{UserID: identity.UserID, Role: identity.Role}
	o, err := h.orders.UpdateStatus(r.Context(), actor, orderID, order.Status(req.Status), req.Version)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	var req cancelOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	actor := order.Actor{UserID: identity.UserID, Role: identity.Role}
	res, err := h.orders.Cancel(r.Context(), actor, orderID, req.Version)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, cancelOrderResponse{Order: res.Order, RefundDue: res.RefundDue})
}

func queryInt(r *http.Request, name string, fallback, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
