package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"campus-cafe/models"
	"campus-cafe/services"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// CustomerHeader carries the caller's customer ref. Without it the shared
// single-profile session is used.
const CustomerHeader = "X-Customer-ID"

var customerRefRe = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// OrderNotifier is told about orders placed or changed over HTTP, so the
// Telegram cards stay current.
type OrderNotifier interface {
	NotifyOrder(ctx context.Context, orderID string)
}

// Handler serves the café's JSON API.
type Handler struct {
	shop      *services.Shop
	log       *zap.Logger
	notifiers []OrderNotifier
}

func NewHandler(shop *services.Shop, log *zap.Logger, notifiers ...OrderNotifier) *Handler {
	return &Handler{shop: shop, log: log, notifiers: notifiers}
}

// ReadyNotifier is implemented by notifiers that also ping the customer
// when the kitchen marks the order ready.
type ReadyNotifier interface {
	NotifyReady(ctx context.Context, orderID string)
}

func (h *Handler) notify(ctx context.Context, orderID string, status models.OrderStatus) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range h.notifiers {
		n.NotifyOrder(ctx, orderID)
		if rn, ok := n.(ReadyNotifier); ok && status == models.StatusReady {
			rn.NotifyReady(ctx, orderID)
		}
	}
}

type ctxKey int

const (
	sessionKey ctxKey = iota
	adminKey
)

func (h *Handler) customerSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimSpace(r.Header.Get(CustomerHeader))
		if ref != "" && !customerRefRe.MatchString(ref) {
			writeError(w, http.StatusBadRequest, "invalid_customer", "invalid "+CustomerHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, h.shop.Session(ref))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *services.Session {
	return r.Context().Value(sessionKey).(*services.Session)
}

func bearerToken(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(v, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok, err := h.shop.Credentials.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		ctx := context.WithValue(r.Context(), adminKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminFrom(r *http.Request) string {
	email, _ := r.Context().Value(adminKey).(string)
	return email
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *models.ValidationError
		te *services.ThrottledError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation", Message: ve.Message, Field: ve.Field})
	case errors.Is(err, services.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, services.ErrLastAdmin):
		writeError(w, http.StatusConflict, "last_admin", err.Error())
	case errors.As(err, &te):
		w.Header().Set("Retry-After", strconv.Itoa(te.WaitSeconds))
		writeError(w, http.StatusTooManyRequests, "throttled", err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		h.internalError(w, r, err)
	}
}

func notFound(w http.ResponseWriter, what string) {
	writeError(w, http.StatusNotFound, "not_found", what+" not found")
}
