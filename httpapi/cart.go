package httpapi

import (
	"net/http"

	"campus-cafe/models"
	"campus-cafe/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, s *services.Session) {
	lines, err := s.Cart.Lines(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	summary, err := s.Cart.Summary(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CartResponse{Lines: lines, Summary: summary})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, sessionFrom(r))
}

// AddCartItem snapshots the current menu item into the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	item, ok, err := h.shop.Menu.Get(r.Context(), req.ItemID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "menu item")
		return
	}
	s := sessionFrom(r)
	if _, err := s.Cart.Add(r.Context(), item, req.Quantity); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCart(w, r, s)
}

func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s := sessionFrom(r)
	if _, err := s.Cart.SetQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCart(w, r, s)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if _, err := s.Cart.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.writeCart(w, r, s)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := s.Cart.Clear(r.Context()); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.writeCart(w, r, s)
}

func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	code, err := sessionFrom(r).Checkout.Begin(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BeginCheckoutResponse{OrderCode: code})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in services.CheckoutInput
	if !decodeJSON(w, r, &in) {
		return
	}
	conf, err := sessionFrom(r).Checkout.Checkout(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.notify(r.Context(), conf.OrderID, models.StatusPending)
	writeJSON(w, http.StatusCreated, conf)
}

func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := sessionFrom(r).Theme(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ThemeRequest{Theme: theme})
}

func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := sessionFrom(r).SetTheme(r.Context(), req.Theme); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var in services.ContactInput
	if !decodeJSON(w, r, &in) {
		return
	}
	msg, err := h.shop.Messages.Save(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.shop.Stats.Get(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

