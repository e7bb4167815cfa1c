package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"go.uber.org/zap"
)

var (
	admissionNumberRe = regexp.MustCompile(`^\d{5}$`)
	orderCodeRe       = regexp.MustCompile(`^\d{4}$`)
)

type CheckoutInput struct {
	CustomerName    string `json:"customerName"`
	AdmissionNumber string `json:"admissionNumber"`
	Notes           string `json:"notes"`
}

// Validate checks the form fields. The cart is not looked at.
func (in CheckoutInput) Validate() error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return &models.ValidationError{Field: "customerName", Message: "please enter your name"}
	}
	if !admissionNumberRe.MatchString(strings.TrimSpace(in.AdmissionNumber)) {
		return &models.ValidationError{Field: "admissionNumber", Message: "admission number must be exactly 5 digits"}
	}
	return nil
}

// Confirmation is returned to the customer after a successful checkout.
type Confirmation struct {
	OrderID             string         `json:"orderId"`
	OrderCode           string         `json:"orderCode"`
	TotalAmount         string         `json:"totalAmount"`
	EstimatedPickupTime time.Time      `json:"estimatedPickupTime"`
	Orders              []models.Order `json:"orders"`
}

// CheckoutFlow turns one session's cart into order records.
type CheckoutFlow struct {
	kv           store.Store // session namespace
	cart         *Cart
	orders       *OrderRepository
	log          *zap.Logger
	now          func() time.Time
	pickupWindow time.Duration
	customerRef  string
}

// Begin starts checkout: the cart must not be empty. A pickup code is issued
// and kept under temp_order_code until the order is placed.
func (f *CheckoutFlow) Begin(ctx context.Context) (string, error) {
	f.cart.mu.Lock()
	defer f.cart.mu.Unlock()
	lines, err := f.cart.lines(ctx)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}
	if code, ok, err := f.kv.Get(ctx, KeyTempOrderCode); err == nil && ok && orderCodeRe.MatchString(code) {
		return code, nil
	}
	code, err := GenerateOrderCode()
	if err != nil {
		return "", err
	}
	if err := f.kv.Set(ctx, KeyTempOrderCode, code); err != nil {
		return "", err
	}
	return code, nil
}

// Checkout validates the form, writes one order record per cart line and
// clears the cart. On a validation error nothing is changed.
func (f *CheckoutFlow) Checkout(ctx context.Context, in CheckoutInput) (*Confirmation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	f.cart.mu.Lock()
	defer f.cart.mu.Unlock()

	lines, err := f.cart.lines(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	code, ok, err := f.kv.Get(ctx, KeyTempOrderCode)
	if err != nil {
		return nil, err
	}
	if !ok || !orderCodeRe.MatchString(code) {
		if code, err = GenerateOrderCode(); err != nil {
			return nil, err
		}
	}

	now := f.now()
	id := fmt.Sprintf("ORD-%s-%04d", code, now.UnixMilli()%10000)
	total := FormatAmount(OrderTotal(lines))
	name := strings.TrimSpace(in.CustomerName)
	admission := strings.TrimSpace(in.AdmissionNumber)
	notes := models.NotesPtr(strings.TrimSpace(in.Notes))

	records := make([]models.Order, 0, len(lines))
	for _, l := range lines {
		item := l.Item
		records = append(records, models.Order{
			ID:                  id,
			OrderCode:           code,
			Item:                &item,
			Quantity:            l.Quantity,
			Status:              models.StatusPending,
			OrderTime:           now,
			EstimatedPickupTime: now.Add(f.pickupWindow),
			Notes:               notes,
			CustomerName:        name,
			AdmissionNumber:     admission,
			PaymentMethod:       models.PaymentMethodMpesa,
			PaymentStatus:       models.PaymentPending,
			TotalAmount:         total,
			CustomerRef:         f.customerRef,
		})
	}
	if err := f.orders.Save(ctx, records...); err != nil {
		return nil, fmt.Errorf("save orders: %w", err)
	}

	// The order exists from here on; failures below only leave stale session keys.
	if err := f.cart.save(ctx, []models.CartLine{}); err != nil {
		f.log.Error("checkout: clear cart", zap.String("order_id", id), zap.Error(err))
	}
	if err := f.kv.Set(ctx, KeyLastOrderID, id); err != nil {
		f.log.Error("checkout: store last order id", zap.String("order_id", id), zap.Error(err))
	}
	if err := f.kv.Remove(ctx, KeyTempOrderCode); err != nil {
		f.log.Warn("checkout: remove temp order code", zap.Error(err))
	}
	f.log.Info("order placed",
		zap.String("order_id", id),
		zap.Int("lines", len(records)),
		zap.String("total", total),
		zap.String("customer_ref", f.customerRef),
	)

	return &Confirmation{
		OrderID:             id,
		OrderCode:           code,
		TotalAmount:         total,
		EstimatedPickupTime: records[0].EstimatedPickupTime,
		Orders:              records,
	}, nil
}

// LastOrderID returns the id of this session's most recent checkout.
func (f *CheckoutFlow) LastOrderID(ctx context.Context) (string, bool, error) {
	return f.kv.Get(ctx, KeyLastOrderID)
}
