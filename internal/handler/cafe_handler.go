package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"cafehub/internal/auth"
	"cafehub/internal/cafe"
)

type CafeHandler struct {
	cafes    cafe.Service
	validate *validator.Validate
}

func NewCafeHandler(cafes cafe.Service) *CafeHandler {
	return &CafeHandler{cafes: cafes, validate: validator.New()}
}

type createCafeRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type addStaffRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

func (h *CafeHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}

	var req createCafeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}

	c, err := h.cafes.CreateCafe(r.Context(), identity.UserID, identity.Role, req.Name, req.Currency)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusCreated, c)
}

func (h *CafeHandler) Get(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := pathUUID(w, r, "cafeID")
	if !ok {
		return
	}
	c, err := h.cafes.GetCafe(r.Context(), cafeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, c)
}

func (h *CafeHandler) List(w http.ResponseWriter, r *http.Request) {
	cafes, err := h.cafes.ListCafes(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, cafes)
}

func (h *CafeHandler) AddStaff(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	cafeID, ok := pathUUID(w, r, "cafeID")
	if !ok {
		return
	}

	var req addStaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}
	staffID, _ := uuid.FromString(req.UserID)

	if err := h.cafes.AddStaff(r.Context(), identity.UserID, cafeID, staffID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusCreated, map[string]string{
		"cafe_id": cafeID.String(),
		"user_id": staffID.String(),
	})
}

// pathUUID extracts and parses a UUID URL parameter, writing the error
// response itself on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid ID in URL")
		return uuid.Nil, false
	}
	return id, true
}
