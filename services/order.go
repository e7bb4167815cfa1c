package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyCart         = errors.New("cart is empty")
)

// validTransitions: pending -> ready | cancelled, ready -> completed, cancelled -> pending.
// completed is terminal.
var validTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:   {models.StatusReady, models.StatusCancelled},
	models.StatusReady:     {models.StatusCompleted},
	models.StatusCancelled: {models.StatusPending},
}

// ValidStatusTransition returns true if moving from -> to is allowed.
func ValidStatusTransition(from, to models.OrderStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses that "clear completed/cancelled" removes.
func IsTerminal(s models.OrderStatus) bool {
	return s == models.StatusCompleted || s == models.StatusCancelled
}

// OrderRepository owns campus_cafe_orders. One record per ordered line;
// records of one checkout share an id.
type OrderRepository struct {
	kv           store.Store
	stats        StatsRecorder
	log          *zap.Logger
	now          func() time.Time
	pickupWindow time.Duration
	mu           sync.Mutex
}

func NewOrderRepository(kv store.Store, stats StatsRecorder, log *zap.Logger, now func() time.Time, pickupWindow time.Duration) *OrderRepository {
	return &OrderRepository{kv: kv, stats: stats, log: log, now: now, pickupWindow: pickupWindow}
}

func (r *OrderRepository) load(ctx context.Context) ([]models.Order, error) {
	return store.LoadJSON(ctx, r.kv, KeyOrders, []models.Order{}, r.log)
}

func (r *OrderRepository) save(ctx context.Context, orders []models.Order) error {
	return store.SaveJSON(ctx, r.kv, KeyOrders, orders)
}

// List returns every record in insertion order.
func (r *OrderRepository) List(ctx context.Context) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Get returns all records sharing id; ok is false when there are none.
func (r *OrderRepository) Get(ctx context.Context, id string) ([]models.Order, bool, error) {
	orders, err := r.List(ctx)
	if err != nil {
		return nil, false, err
	}
	var out []models.Order
	for _, o := range orders {
		if o.ID == id {
			out = append(out, o)
		}
	}
	return out, len(out) > 0, nil
}

// Create stores a single-line order, pricing it with OrderTotal and filling
// the defaults a fresh order gets.
func (r *OrderRepository) Create(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		return models.Order{}, &models.ValidationError{Field: "id", Message: "order id is required"}
	}
	if o.Item == nil || o.Item.ID == "" {
		return models.Order{}, &models.ValidationError{Field: "item", Message: "order item is required"}
	}
	if o.Quantity < 1 {
		return models.Order{}, &models.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	o.TotalAmount = FormatAmount(OrderTotal([]models.CartLine{{Item: *o.Item, Quantity: o.Quantity}}))
	r.fillDefaults(&o)
	if err := r.Save(ctx, o); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) fillDefaults(o *models.Order) {
	now := r.now()
	if o.Status == "" {
		o.Status = models.StatusPending
	}
	if o.OrderTime.IsZero() {
		o.OrderTime = now
	}
	if o.EstimatedPickupTime.IsZero() {
		o.EstimatedPickupTime = o.OrderTime.Add(r.pickupWindow)
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = models.PaymentMethodMpesa
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentPending
	}
}

// Save appends already-priced records as they are. totalAmount is never
// recomputed here.
func (r *OrderRepository) Save(ctx context.Context, records ...models.Order) error {
	if len(records) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	orders, err := r.load(ctx)
	if err != nil {
		return err
	}
	orders = append(orders, records...)
	if err := r.save(ctx, orders); err != nil {
		return err
	}
	for range records {
		if err := r.stats.IncrementOrderSubmitted(ctx); err != nil {
			r.log.Warn("stats: increment orders submitted", zap.Error(err))
		}
	}
	return nil
}

// UpdateStatus moves every record of order id to status. ok is false (and
// nothing is written) when no record has that id. An illegal move returns
// ErrInvalidTransition. The first updated record is returned.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders, err := r.load(ctx)
	if err != nil {
		return nil, false, err
	}
	first := -1
	for i := range orders {
		if orders[i].ID == id {
			first = i
			break
		}
	}
	if first == -1 {
		return nil, false, nil
	}
	from := orders[first].Status
	if !ValidStatusTransition(from, status) {
		return nil, true, fmt.Errorf("order %s: %s -> %s: %w", id, from, status, ErrInvalidTransition)
	}
	for i := range orders {
		if orders[i].ID == id {
			orders[i].Status = status
		}
	}
	if err := r.save(ctx, orders); err != nil {
		return nil, true, err
	}
	r.log.Info("order status changed", zap.String("order_id", id), zap.String("from", string(from)), zap.String("to", string(status)))
	if status == models.StatusCompleted {
		if err := r.stats.IncrementCompleteOrder(ctx); err != nil {
			r.log.Warn("stats: increment completed", zap.Error(err))
		}
	}
	updated := orders[first]
	return &updated, true, nil
}

// ClearTerminal removes completed and cancelled records and returns how many went.
func (r *OrderRepository) ClearTerminal(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if !IsTerminal(o.Status) {
			kept = append(kept, o)
		}
	}
	removed := len(orders) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, r.save(ctx, kept)
}
