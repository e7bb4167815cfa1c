package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.ListMenu)
		r.Get("/menu/featured", h.FeaturedMenu)
		r.Get("/menu/{id}", h.GetMenuItem)

		r.Group(func(r chi.Router) {
			r.Use(h.customerSession)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Patch("/cart/items/{id}", h.SetCartQuantity)
			r.Delete("/cart/items/{id}", h.RemoveCartItem)
			r.Delete("/cart", h.ClearCart)

			r.Post("/checkout/begin", h.BeginCheckout)
			r.Post("/checkout", h.Checkout)

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/last", h.LastOrder)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
			r.Post("/orders/{id}/restore", h.RestoreOrder)
			r.Post("/orders/{id}/pickup", h.ConfirmPickup)

			r.Get("/theme", h.GetTheme)
			r.Put("/theme", h.SetTheme)
		})

		r.Post("/contact", h.SubmitContact)
		r.Get("/stats", h.GetStats)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLogin)
			r.Post("/logout", h.AdminLogout)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)

				r.Get("/dashboard", h.Dashboard)

				r.Post("/menu", h.CreateMenuItem)
				r.Put("/menu/{id}", h.UpdateMenuItem)
				r.Delete("/menu/{id}", h.DeleteMenuItem)

				r.Get("/orders", h.AdminListOrders)
				r.Get("/orders/{id}", h.AdminGetOrder)
				r.Post("/orders/{id}/ready", h.AdminMarkReady)
				r.Post("/orders/{id}/cancel", h.AdminCancelOrder)
				r.Post("/orders/{id}/complete", h.AdminCompleteOrder)
				r.Delete("/orders/terminal", h.AdminClearTerminal)

				r.Get("/messages", h.ListMessages)
				r.Post("/messages/{id}/read", h.MarkMessageRead)

				r.Get("/admins", h.ListAdmins)
				r.Post("/admins", h.AddAdmin)
				r.Delete("/admins/{email}", h.RemoveAdmin)
			})
		})
	})
	return r
}
