package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"campus-cafe/models"
	"campus-cafe/services"
	"campus-cafe/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminEmail    = "chef@campuscafe.com"
	adminPassword = "supersecret"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) NotifyOrder(_ context.Context, id string) {
	n.mu.Lock()
	n.ids = append(n.ids, id)
	n.mu.Unlock()
}

func (n *recordingNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ids...)
}

type testServer struct {
	t        *testing.T
	router   http.Handler
	notifier *recordingNotifier
	clock    *clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	c := &clock{t: time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)}
	log := zaptest.NewLogger(t)
	shop := services.NewShop(store.NewMemory(), services.Options{Logger: log, Now: c.Now, PasswordCost: bcrypt.MinCost})
	require.NoError(t, shop.Init(context.Background(), adminEmail, adminPassword))
	n := &recordingNotifier{}
	return &testServer{t: t, router: NewRouter(NewHandler(shop, log, n)), notifier: n, clock: c}
}

type call struct {
	method   string
	path     string
	body     any
	customer string
	token    string
}

func (s *testServer) do(c call) *httptest.ResponseRecorder {
	s.t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(s.t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.customer != "" {
		req.Header.Set(CustomerHeader, c.customer)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) login() string {
	s.t.Helper()
	rec := s.do(call{method: http.MethodPost, path: "/api/admin/login", body: LoginRequest{Email: adminEmail, Password: adminPassword}})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[LoginResponse](s.t, rec).Token
}

func (s *testServer) placeOrder(customer string, itemID string, qty int) services.Confirmation {
	s.t.Helper()
	rec := s.do(call{method: http.MethodPost, path: "/api/cart/items", customer: customer, body: AddCartItemRequest{ItemID: itemID, Quantity: qty}})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(call{method: http.MethodPost, path: "/api/checkout", customer: customer, body: services.CheckoutInput{CustomerName: "Wanjiru", AdmissionNumber: "12345"}})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[services.Confirmation](s.t, rec)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMenuEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(call{method: http.MethodGet, path: "/api/menu?category=breakfast"})
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]models.MenuItem](t, rec)
	require.NotEmpty(t, items)
	for _, it := range items {
		assert.Equal(t, models.CategoryBreakfast, it.Category)
	}

	rec = s.do(call{method: http.MethodGet, path: "/api/menu/featured"})
	require.Equal(t, http.StatusOK, rec.Code)
	for _, it := range decode[[]models.MenuItem](t, rec) {
		assert.True(t, it.Featured, it.ID)
	}

	rec = s.do(call{method: http.MethodGet, path: "/api/menu/breakfast1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Smocha", decode[models.MenuItem](t, rec).Name)

	rec = s.do(call{method: http.MethodGet, path: "/api/menu/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartAndCheckout(t *testing.T) {
	s := newTestServer(t)
	const alice = "web:alice"

	rec := s.do(call{method: http.MethodPost, path: "/api/cart/items", customer: alice, body: AddCartItemRequest{ItemID: "breakfast1", Quantity: 2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[CartResponse](t, rec)
	assert.Equal(t, 2, cart.Summary.ItemCount)
	assert.Equal(t, "900.00", cart.Summary.Subtotal)
	assert.Equal(t, "600.00", cart.Summary.Total)
	assert.True(t, cart.Summary.DiscountApplied)

	rec = s.do(call{method: http.MethodPost, path: "/api/checkout/begin", customer: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	code := decode[BeginCheckoutResponse](t, rec).OrderCode
	assert.Len(t, code, 4)

	rec = s.do(call{method: http.MethodPost, path: "/api/checkout", customer: alice, body: services.CheckoutInput{CustomerName: "Alice", AdmissionNumber: "54321"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conf := decode[services.Confirmation](t, rec)
	assert.Equal(t, code, conf.OrderCode)
	assert.Equal(t, "600.00", conf.TotalAmount)
	assert.Equal(t, []string{conf.OrderID}, s.notifier.notified())

	rec = s.do(call{method: http.MethodGet, path: "/api/cart", customer: alice})
	assert.Equal(t, 0, decode[CartResponse](t, rec).Summary.ItemCount)

	rec = s.do(call{method: http.MethodGet, path: "/api/orders/last", customer: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, conf.OrderID, decode[services.OrderGroup](t, rec).ID)

	rec = s.do(call{method: http.MethodGet, path: "/api/orders/" + conf.OrderID, customer: "web:bob"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(call{method: http.MethodPost, path: "/api/checkout", customer: "web:c", body: services.CheckoutInput{CustomerName: "C", AdmissionNumber: "12345"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decode[ErrorResponse](t, rec).Error)

	s.do(call{method: http.MethodPost, path: "/api/cart/items", customer: "web:c", body: AddCartItemRequest{ItemID: "lunch1"}})
	rec = s.do(call{method: http.MethodPost, path: "/api/checkout", customer: "web:c", body: services.CheckoutInput{CustomerName: "C", AdmissionNumber: "123"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "admissionNumber", decode[ErrorResponse](t, rec).Field)

	rec = s.do(call{method: http.MethodGet, path: "/api/cart", customer: "bad header!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	const alice = "web:alice"
	conf := s.placeOrder(alice, "lunch1", 1)
	token := s.login()

	rec := s.do(call{method: http.MethodPost, path: "/api/orders/" + conf.OrderID + "/pickup", customer: alice})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/api/admin/orders/" + conf.OrderID + "/ready", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusReady, decode[services.OrderGroup](t, rec).Status)

	rec = s.do(call{method: http.MethodPost, path: "/api/orders/" + conf.OrderID + "/cancel", customer: alice})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(call{method: http.MethodPost, path: "/api/orders/" + conf.OrderID + "/pickup", customer: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusCompleted, decode[services.OrderGroup](t, rec).Status)

	rec = s.do(call{method: http.MethodPost, path: "/api/admin/orders/missing/ready", token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{conf.OrderID, conf.OrderID, conf.OrderID}, s.notifier.notified())

	rec = s.do(call{method: http.MethodDelete, path: "/api/admin/orders/terminal", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ClearResponse](t, rec).Removed)
}

func TestCustomerCancelAndRestore(t *testing.T) {
	s := newTestServer(t)
	const alice = "web:alice"
	conf := s.placeOrder(alice, "lunch1", 2)

	rec := s.do(call{method: http.MethodPost, path: "/api/orders/" + conf.OrderID + "/cancel", customer: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(call{method: http.MethodGet, path: "/api/cart", customer: alice})
	assert.Equal(t, 2, decode[CartResponse](t, rec).Summary.ItemCount)

	rec = s.do(call{method: http.MethodGet, path: "/api/orders?status=cancelled", customer: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]services.OrderGroup](t, rec), 1)

	rec = s.do(call{method: http.MethodPost, path: "/api/orders/" + conf.OrderID + "/restore", customer: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusPending, decode[services.OrderGroup](t, rec).Status)

	rec = s.do(call{method: http.MethodGet, path: "/api/orders?status=bogus", customer: alice})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(call{method: http.MethodGet, path: "/api/admin/dashboard"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/api/admin/login", body: LoginRequest{Email: adminEmail, Password: "wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/api/admin/login", body: LoginRequest{Email: adminEmail, Password: adminPassword}})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	s.clock.Advance(3 * time.Second)
	token := s.login()

	rec = s.do(call{method: http.MethodGet, path: "/api/admin/dashboard", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[services.Dashboard](t, rec)
	assert.Positive(t, d.MenuItems)

	rec = s.do(call{method: http.MethodPost, path: "/api/admin/logout", token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(call{method: http.MethodGet, path: "/api/admin/dashboard", token: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminMenuAndAccounts(t *testing.T) {
	s := newTestServer(t)
	token := s.login()

	rec := s.do(call{method: http.MethodPost, path: "/api/admin/menu", token: token, body: models.MenuItemInput{
		Name: "Mandazi", Category: models.CategorySnacks, Price: "30", Description: "Sweet fried dough", Ingredients: "Flour\nSugar",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.MenuItem](t, rec)
	assert.Equal(t, []string{"Flour", "Sugar"}, item.Ingredients)

	rec = s.do(call{method: http.MethodPost, path: "/api/admin/menu", token: token, body: models.MenuItemInput{Name: "X", Category: "nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "category", decode[ErrorResponse](t, rec).Field)

	rec = s.do(call{method: http.MethodDelete, path: "/api/admin/menu/" + item.ID, token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(call{method: http.MethodDelete, path: "/api/admin/menu/" + item.ID, token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/api/admin/admins", token: token, body: AddAdminRequest{Email: " Barista@CampusCafe.com "}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[AddAdminResponse](t, rec)
	assert.Equal(t, "barista@campuscafe.com", added.Email)
	assert.Len(t, added.GeneratedPassword, 10)

	rec = s.do(call{method: http.MethodGet, path: "/api/admin/admins", token: token})
	assert.Equal(t, []string{"barista@campuscafe.com", adminEmail}, decode[[]string](t, rec))

	rec = s.do(call{method: http.MethodDelete, path: "/api/admin/admins/barista@campuscafe.com", token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(call{method: http.MethodDelete, path: "/api/admin/admins/" + adminEmail, token: token})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestContactAndStats(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(call{method: http.MethodPost, path: "/api/contact", body: services.ContactInput{Name: "Otieno", Email: "otieno@example.com", Message: "Do you have vegan options?"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[models.ContactMessage](t, rec)
	assert.False(t, msg.Read)

	rec = s.do(call{method: http.MethodPost, path: "/api/contact", body: services.ContactInput{Name: "Otieno", Email: "not-an-email", Message: "hi"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	token := s.login()
	rec = s.do(call{method: http.MethodPost, path: "/api/admin/messages/" + msg.ID + "/read", token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(call{method: http.MethodGet, path: "/api/admin/messages", token: token})
	msgs := decode[[]models.ContactMessage](t, rec)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Read)

	rec = s.do(call{method: http.MethodGet, path: "/api/stats"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, decode[models.Stats](t, rec).CustomersEverServed)
}

func TestTheme(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(call{method: http.MethodGet, path: "/api/theme", customer: "web:a"})
	assert.Equal(t, services.ThemeLight, decode[ThemeRequest](t, rec).Theme)

	rec = s.do(call{method: http.MethodPut, path: "/api/theme", customer: "web:a", body: ThemeRequest{Theme: services.ThemeDark}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(call{method: http.MethodGet, path: "/api/theme", customer: "web:a"})
	assert.Equal(t, services.ThemeDark, decode[ThemeRequest](t, rec).Theme)

	rec = s.do(call{method: http.MethodPut, path: "/api/theme", customer: "web:a", body: ThemeRequest{Theme: "neon"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestWithoutCustomerCannotTouchOthersOrders(t *testing.T) {
	s := newTestServer(t)
	conf := s.placeOrder("tg:42", "lunch1", 2)

	rec := s.do(call{method: http.MethodPost, path: "/api/orders/" + conf.OrderID + "/cancel"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(call{method: http.MethodGet, path: "/api/orders"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]services.OrderGroup](t, rec))

	rec = s.do(call{method: http.MethodGet, path: "/api/cart"})
	assert.Equal(t, 0, decode[CartResponse](t, rec).Summary.ItemCount)
	assert.Equal(t, []string{conf.OrderID}, s.notifier.notified())
}
