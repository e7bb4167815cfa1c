package httpapi

import (
	"net/http"

	"campus-cafe/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ListMenu supports ?category= and ?q= (name, description, ingredients).
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.shop.Menu.Search(r.Context(), q.Get("q"), q.Get("category"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) FeaturedMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.shop.Menu.Featured(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	item, ok, err := h.shop.Menu.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "menu item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var in models.MenuItemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	item, err := h.shop.Menu.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.log.Info("menu item created", zap.String("item_id", item.ID), zap.String("admin", adminFrom(r)))
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	var in models.MenuItemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	item, ok, err := h.shop.Menu.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "menu item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.shop.Menu.Delete(r.Context(), id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "menu item")
		return
	}
	h.log.Info("menu item deleted", zap.String("item_id", id), zap.String("admin", adminFrom(r)))
	w.WriteHeader(http.StatusNoContent)
}
