package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"cafehub/internal/auth"
	"cafehub/internal/user"
)

type Handlers struct {
	Auth    *AuthHandler
	Cafe    *CafeHandler
	Menu    *MenuHandler
	Order   *OrderHandler
	Payment *PaymentHandler
	Tokens  *auth.Manager
}

// NewRouter wires the public API. Webhook and health endpoints stay outside
// the auth middleware; everything else under /api requires a bearer token
// except registration, login and menu browsing.
func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	authenticated := h.Tokens.Middleware(respondUnauthorized)
	ownerOnly := auth.RequireRole(respondForbidden, user.RoleOwner)
	staffOrOwner := auth.RequireRole(respondForbidden, user.RoleStaff, user.RoleOwner)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondWithData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.Refresh)
		})

		r.Post("/payments/webhook", h.Payment.Webhook)

		// Public browsing.
		r.Get("/cafes", h.Cafe.List)
		r.Get("/cafes/{cafeID}", h.Cafe.Get)
		r.Get("/cafes/{cafeID}/menu", h.Menu.List)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			// Role middleware is a coarse first gate; the services still check
			// ownership and staff membership against the concrete resource.
			r.With(ownerOnly).Post("/cafes", h.Cafe.Create)
			r.With(ownerOnly).Post("/cafes/{cafeID}/staff", h.Cafe.AddStaff)
			r.With(staffOrOwner).Post("/cafes/{cafeID}/menu", h.Menu.Create)
			r.With(staffOrOwner).Put("/menu/{itemID}", h.Menu.Update)
			r.With(staffOrOwner).Delete("/menu/{itemID}", h.Menu.Delete)

			r.Post("/orders", h.Order.Place)
			r.Get("/orders", h.Order.ListMine)
			r.Get("/orders/{orderID}", h.Order.Get)
			r.Post("/orders/{orderID}/status", h.Order.UpdateStatus)
			r.Post("/orders/{orderID}/cancel", h.Order.Cancel)
			r.Get("/orders/{orderID}/payments", h.Payment.ListForOrder)
			r.With(staffOrOwner).Get("/cafes/{cafeID}/orders", h.Order.ListForCafe)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
