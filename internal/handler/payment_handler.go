package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cafehub/internal/auth"
	"cafehub/internal/order"
	"cafehub/internal/payment"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 64 * 1024

type PaymentHandler struct {
	payments payment.Service
	orders   order.Service
	secret   []byte
	validate *validator.Validate
}

func NewPaymentHandler(payments payment.Service, orders order.Service, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		orders:   orders,
		secret:   []byte(webhookSecret),
		validate: validator.New(),
	}
}

type webhookRequest struct {
	Provider  string `json:"provider" validate:"required"`
	OrderID   string `json:"order_id" validate:"required,uuid4"`
	Reference string `json:"reference" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Succeeded bool   `json:"succeeded"`
}

// Webhook verifies the provider signature over the raw body before anything
// else; an unsigned or tampered payload must not reach the payment service.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return
	}

	if !payment.VerifySignature(h.secret, body, r.Header.Get(signatureHeader)) {
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Webhook with bad signature rejected")
		respondUnauthorized(w, "invalid webhook signature")
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_body", "Invalid request payload")
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	cb, err := parseCallback(req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := h.payments.HandleCallback(r.Context(), cb); err != nil {
		// A failed charge is still a processed callback; acknowledging it stops
		// provider redelivery.
		if errors.Is(err, payment.ErrPaymentFailed) {
			respondWithData(w, http.StatusOK, map[string]string{"state": string(payment.StateFailed)})
			return
		}
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]string{"state": string(payment.StateConfirmed)})
}

// ListForOrder returns the payment attempts recorded against an order. The
// order service's access check applies, so only the ordering customer and the
// cafe's staff can see them.
func (h *PaymentHandler) ListForOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	actor := order.Actor{UserID: identity.UserID, Role: identity.Role}
	if _, err := h.orders.GetOrder(r.Context(), actor, orderID); err != nil {
		respondServiceError(w, err)
		return
	}

	payments, err := h.payments.ListByOrder(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, payments)
}

func parseCallback(req webhookRequest) (payment.Callback, error) {
	orderID, err := uuid.FromString(req.OrderID)
	if err != nil {
		return payment.Callback{}, errors.New("order_id must be a UUID")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return payment.Callback{}, errors.New("amount must be a decimal string")
	}
	return payment.Callback{
		Provider:  payment.Provider(req.Provider),
		OrderID:   orderID,
		Reference: req.Reference,
		Amount:    amount,
		Succeeded: req.Succeeded,
	}, nil
}
