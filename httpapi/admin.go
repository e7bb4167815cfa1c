package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"campus-cafe/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := h.shop.Credentials.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresIn: int(services.AdminSessionTTL / time.Second)})
}

func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.Credentials.Logout(r.Context(), bearerToken(r)); err != nil {
		h.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.shop.Backoffice.Dashboard(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AdminListOrders lists every customer's checkouts. Supports ?status=,
// ?customer= and ?limit=.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	status, ok := statusParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := services.ListFilter{Status: status, CustomerRef: q.Get("customer")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation", Message: "limit must be a non-negative integer", Field: "limit"})
			return
		}
		f.Limit = n
	}
	groups, err := h.shop.Backoffice.Orders(r.Context(), f)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	g, ok, err := h.shop.Backoffice.Order(r.Context(), chi.URLParam(r, "id"))
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

func (h *Handler) AdminMarkReady(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, h.shop.Backoffice.MarkReady)
}

func (h *Handler) AdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, h.shop.Backoffice.Cancel)
}

func (h *Handler) AdminCompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, h.shop.Backoffice.Complete)
}

func (h *Handler) AdminClearTerminal(w http.ResponseWriter, r *http.Request) {
	n, err := h.shop.Backoffice.ClearTerminal(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Removed: n})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.shop.Messages.List(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	ok, err := h.shop.Messages.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	emails, err := h.shop.Credentials.ListAdmins(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emails)
}

// AddAdmin creates or re-keys an account. Without a password one is
// generated and returned once.
func (h *Handler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	var req AddAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp := AddAdminResponse{Email: strings.ToLower(strings.TrimSpace(req.Email))}
	if req.Password == "" {
		pw, err := services.GenerateSecurePassword()
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		req.Password = pw
		resp.GeneratedPassword = pw
	}
	created, err := h.shop.Credentials.AddAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp.Created = created
	h.log.Info("admin account saved", zap.String("by", adminFrom(r)), zap.Bool("created", created))
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	ok, err := h.shop.Credentials.RemoveAdmin(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		notFound(w, "admin")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
