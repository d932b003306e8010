package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"cafehub/internal/auth"
	"cafehub/internal/menu"
)

type MenuHandler struct {
	menu     menu.Service
	validate *validator.Validate
}

func NewMenuHandler(menuService menu.Service) *MenuHandler {
	return &MenuHandler{menu: menuService, validate: validator.New()}
}

type menuItemRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
	Category    string `json:"category" validate:"max=50"`
	Price       string `json:"price" validate:"required"`
	IsAvailable *bool  `json:"is_available"`
}

func (req *menuItemRequest) toInput(w http.ResponseWriter) (menu.ItemInput, bool) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		respondWithError(w, http.StatusBadRequest, "validation_error", "price must be a non-negative decimal string")
		return menu.ItemInput{}, false
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	return menu.ItemInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       price,
		IsAvailable: available,
	}, true
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	cafeID, ok := pathUUID(w, r, "cafeID")
	if !ok {
		return
	}

	var req menuItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}
	in, ok := req.toInput(w)
	if !ok {
		return
	}

	item, err := h.menu.CreateItem(r.Context(), identity.UserID, cafeID, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusCreated, item)
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	var req menuItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateStruct(w, h.validate, req) {
		return
	}
	in, ok := req.toInput(w)
	if !ok {
		return
	}

	item, err := h.menu.UpdateItem(r.Context(), identity.UserID, itemID, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, item)
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondUnauthorized(w, "missing identity")
		return
	}
	itemID, ok := pathUUID(w, r, "itemID")
	if !ok {
		return
	}

	if err := h.menu.DeleteItem(r.Context(), identity.UserID, itemID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]string{"deleted": itemID.String()})
}

// List returns a cafe's menu. Unauthenticated browsing sees available items
// only; ?include_unavailable=true is honored for any caller since hidden items
// carry no secrets, they are simply not orderable.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := pathUUID(w, r, "cafeID")
	if !ok {
		return
	}
	includeUnavailable := r.URL.Query().Get("include_unavailable") == "true"

	items, err := h.menu.ListMenu(r.Context(), cafeID, includeUnavailable)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, items)
}
