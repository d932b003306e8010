package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"cafehub/internal/auth"
	"cafehub/internal/user"
)

type AuthHandler struct {
	users    user.Service
	tokens   *auth.Manager
	validate *validator.Validate
}

func NewAuthHandler(users user.Service, tokens *auth.Manager) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=customer staff owner"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authResponse struct {
	User   *user.User      `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	u, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password, user.Role(req.Role))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	pair, err := h.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token pair after registration")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	respondWithData(w, http.StatusCreated, authResponse{User: u, Tokens: pair})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	pair, err := h.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token pair on login")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	respondWithData(w, http.StatusOK, authResponse{User: u, Tokens: pair})
}

// Refresh exchanges a valid refresh token for a fresh pair. The user record is
// re-read so a role change takes effect on the next pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	claims, err := h.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		respondUnauthorized(w, "invalid or expired refresh token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		respondUnauthorized(w, "invalid or expired refresh token")
		return
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	pair, err := h.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token pair on refresh")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	respondWithData(w, http.StatusOK, authResponse{User: u, Tokens: pair})
}
