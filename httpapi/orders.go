package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"campus-cafe/models"
	"campus-cafe/services"

	"github.com/go-chi/chi/v5"
)

func statusParam(w http.ResponseWriter, r *http.Request) (models.OrderStatus, bool) {
	s := models.OrderStatus(r.URL.Query().Get("status"))
	if s != "" && !s.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation", Message: "unknown order status", Field: "status"})
		return "", false
	}
	return s, true
}

// ListOrders returns the session's checkouts. ?status= filters by status,
// ?recent=true keeps the last 24 hours.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status, ok := statusParam(w, r)
	if !ok {
		return
	}
	recent, _ := strconv.ParseBool(r.URL.Query().Get("recent"))
	groups, err := sessionFrom(r).Orders.List(r.Context(), status, recent)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// LastOrder is the confirmation page lookup.
func (h *Handler) LastOrder(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	id, ok, err := s.Checkout.LastOrderID(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "order")
		return
	}
	g, ok, err := s.Orders.Detail(r.Context(), id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "order")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	g, ok, err := sessionFrom(r).Orders.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "order")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type orderAction func(ctx context.Context, id string) (*services.OrderGroup, bool, error)

// runOrderAction applies a status change and tells the bots about it.
func (h *Handler) runOrderAction(w http.ResponseWriter, r *http.Request, act orderAction) {
	id := chi.URLParam(r, "id")
	g, ok, err := act(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "order")
		return
	}
	h.notify(r.Context(), id, g.Status)
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, sessionFrom(r).Orders.Cancel)
}

func (h *Handler) RestoreOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, sessionFrom(r).Orders.Restore)
}

func (h *Handler) ConfirmPickup(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, sessionFrom(r).Orders.ConfirmPickup)
}
