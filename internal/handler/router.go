package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/yxm4nsy/pay2win-backend/internal/middleware"
	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса лояльности.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Post("/auth/tokens", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.GetMe)
			r.Patch("/me", h.UpdateMe)
			r.Post("/me/transactions", h.CreateRedemption)
			r.Get("/me/transactions", h.ListMyTransactions)

			r.With(custommiddleware.RequireRole(model.RoleCashier)).Post("/", h.Register)
			r.With(custommiddleware.RequireRole(model.RoleCashier)).Get("/{utorid}", h.GetUser)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Patch("/{utorid}", h.UpdateUser)

			r.Post("/{utorid}/transactions", h.CreateTransfer)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.With(custommiddleware.RequireRole(model.RoleCashier)).Post("/", h.CreateTransaction)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Get("/{id}", h.GetTransaction)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Patch("/{id}/suspicious", h.SetTransactionSuspicious)
			r.With(custommiddleware.RequireRole(model.RoleCashier)).Patch("/{id}/processed", h.ProcessRedemption)
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Get("/", h.ListPromotions)
			r.Get("/{id}", h.GetPromotion)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Post("/", h.CreatePromotion)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Patch("/{id}", h.UpdatePromotion)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Delete("/{id}", h.DeletePromotion)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/{id}", h.GetEvent)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Post("/", h.CreateEvent)
			r.With(custommiddleware.RequireRole(model.RoleManager)).Post("/{id}/organizers", h.AddOrganizer)

			r.Patch("/{id}", h.UpdateEvent)
			r.Post("/{id}/guests", h.AddGuest)
			r.Delete("/{id}/guests/{utorid}", h.RemoveGuest)
			r.Post("/{id}/transactions", h.CreateEventAward)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
