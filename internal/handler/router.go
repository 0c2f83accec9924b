package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/pizzaorder-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты хост-поверхности заказа.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/order", func(r chi.Router) {
		r.Post("/", h.StartOrder)

		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.Status)
			r.Delete("/", h.Abort)

			r.Get("/menu", h.SearchMenu)
			r.Get("/pizzas", h.ListPizzas)

			r.Post("/items", h.AddItem)
			r.Delete("/items/{code}", h.RemoveItem)

			r.Post("/coupons", h.AddCoupon)
			r.Delete("/coupons/{code}", h.RemoveCoupon)

			r.Post("/checkout", h.Checkout)
			r.Post("/place", h.PlaceOrder)
			r.Get("/track", h.Track)
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

func orderID(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}

func itemCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}
