package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"cafehub/internal/cafe"
	"cafehub/internal/menu"
	"cafehub/internal/order"
	"cafehub/internal/payment"
	"cafehub/internal/user"
)

// Envelope convention: {"success": true, "data": ...} on success,
// {"success": false, "error": {"code", "message", "details?"}} on failure.
type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondWithData(w http.ResponseWriter, code int, data any) {
	respondWithJSON(w, code, successResponse{Success: true, Data: data})
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func respondWithValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fe.Tag()
	}
	respondWithJSON(w, http.StatusBadRequest, errorResponse{
		Error: errorBody{Code: "validation_error", Message: "Validation failed", Details: details},
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"internal_error","message":"Failed to encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, "unauthorized", message)
}

func respondForbidden(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusForbidden, "forbidden", message)
}

// respondServiceError maps domain sentinel errors onto the envelope. Unknown
// errors become a generic 500 so internals never leak to clients.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, cafe.ErrNotFound),
		errors.Is(err, menu.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, cafe.ErrUnknownMember):
		respondWithError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, user.ErrInvalidCredentials):
		respondUnauthorized(w, "Invalid email or password")
	case errors.Is(err, user.ErrEmailExists):
		respondWithError(w, http.StatusConflict, "email_exists", "Email already registered")
	case errors.Is(err, cafe.ErrAlreadyStaff):
		respondWithError(w, http.StatusConflict, "already_staff", "User is already staff of this cafe")
	case errors.Is(err, cafe.ErrNotOwner),
		errors.Is(err, menu.ErrNotCafeStaff),
		errors.Is(err, order.ErrNotAllowed),
		errors.Is(err, order.ErrAccessDenied):
		respondForbidden(w, "Insufficient permissions")
	case errors.Is(err, order.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, "invalid_transition", "Status transition is not allowed from the current state")
	case errors.Is(err, order.ErrTerminalState):
		respondWithError(w, http.StatusConflict, "terminal_state", "Order is already completed or cancelled")
	case errors.Is(err, order.ErrVersionConflict):
		respondWithError(w, http.StatusConflict, "version_conflict", "Order was modified concurrently, re-read and retry")
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrBadQuantity),
		errors.Is(err, order.ErrUnknownItem),
		errors.Is(err, order.ErrItemUnavailable),
		errors.Is(err, payment.ErrUnknownProvider):
		respondWithError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, payment.ErrAmountMismatch):
		respondWithError(w, http.StatusBadRequest, "amount_mismatch", "Payment amount does not match order total")
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_body", "Invalid request payload")
		return false
	}
	return true
}

func validateStruct(w http.ResponseWriter, validate *validator.Validate, payload any) bool {
	if err := validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithValidationErrors(w, validationErrors)
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal validation error")
		}
		return false
	}
	return true
}
