package services

import (
	"context"
	"sort"
	"time"

	"campus-cafe/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecentWindow is what the "recent orders" filter means.
const RecentWindow = 24 * time.Hour

// OrderGroup is one checkout: every record sharing an order id.
type OrderGroup struct {
	ID                  string               `json:"id"`
	OrderCode           string               `json:"orderCode"`
	Status              models.OrderStatus   `json:"status"`
	OrderTime           time.Time            `json:"orderTime"`
	EstimatedPickupTime time.Time            `json:"estimatedPickupTime"`
	CustomerName        string               `json:"customerName"`
	AdmissionNumber     string               `json:"admissionNumber"`
	Notes               string               `json:"notes,omitempty"`
	PaymentStatus       models.PaymentStatus `json:"paymentStatus"`
	TotalAmount         string               `json:"totalAmount"`
	ItemCount           int                  `json:"itemCount"`
	CustomerRef         string               `json:"customerRef,omitempty"`
	Lines               []models.Order       `json:"lines"`
}

// Total returns the group's charged amount. Older records only carry
// totalPrice per line; those are summed.
func (g OrderGroup) Total() decimal.Decimal {
	if g.TotalAmount != "" {
		if d, err := decimal.NewFromString(g.TotalAmount); err == nil {
			return d
		}
	}
	sum := decimal.Zero
	for _, l := range g.Lines {
		if l.TotalPrice != nil {
			sum = sum.Add(decimal.NewFromFloat(*l.TotalPrice))
		}
	}
	return sum
}

// GroupOrders folds records into checkouts, newest first.
func GroupOrders(records []models.Order) []OrderGroup {
	idx := map[string]int{}
	var groups []OrderGroup
	for _, o := range records {
		i, ok := idx[o.ID]
		if !ok {
			idx[o.ID] = len(groups)
			groups = append(groups, OrderGroup{
				ID:                  o.ID,
				OrderCode:           o.OrderCode,
				Status:              o.Status,
				OrderTime:           o.OrderTime,
				EstimatedPickupTime: o.EstimatedPickupTime,
				CustomerName:        o.CustomerName,
				AdmissionNumber:     o.AdmissionNumber,
				Notes:               o.NotesText(),
				PaymentStatus:       o.PaymentStatus,
				TotalAmount:         o.TotalAmount,
				CustomerRef:         o.CustomerRef,
			})
			i = len(groups) - 1
		}
		groups[i].Lines = append(groups[i].Lines, o)
		groups[i].ItemCount += o.Quantity
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].OrderTime.After(groups[b].OrderTime)
	})
	return groups
}

// ListFilter narrows an order listing. Zero values mean "any", except that
// with Owned set CustomerRef must match exactly, empty included.
type ListFilter struct {
	Status      models.OrderStatus
	CustomerRef string
	Owned       bool
	Since       time.Time
	Limit       int
}

func filterGroups(groups []OrderGroup, f ListFilter) []OrderGroup {
	out := make([]OrderGroup, 0, len(groups))
	for _, g := range groups {
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if (f.Owned || f.CustomerRef != "") && g.CustomerRef != f.CustomerRef {
			continue
		}
		if !f.Since.IsZero() && g.OrderTime.Before(f.Since) {
			continue
		}
		out = append(out, g)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// OrderViews is the "my orders" page of one session. A session only sees
// and acts on its own orders.
type OrderViews struct {
	orders      *OrderRepository
	cart        *Cart
	log         *zap.Logger
	now         func() time.Time
	customerRef string
}

// List returns checkouts newest first. recent limits to the last 24 hours.
func (v *OrderViews) List(ctx context.Context, status models.OrderStatus, recent bool) ([]OrderGroup, error) {
	records, err := v.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	f := ListFilter{Status: status, CustomerRef: v.customerRef, Owned: true}
	if recent {
		f.Since = v.now().Add(-RecentWindow)
	}
	return filterGroups(GroupOrders(records), f), nil
}

// Detail returns one checkout; ok is false when it does not exist or
// belongs to another customer. The session without a ref only owns orders
// placed without one.
func (v *OrderViews) Detail(ctx context.Context, id string) (*OrderGroup, bool, error) {
	records, ok, err := v.orders.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	g := GroupOrders(records)[0]
	if g.CustomerRef != v.customerRef {
		return nil, false, nil
	}
	return &g, true, nil
}

func (v *OrderViews) transition(ctx context.Context, id string, to models.OrderStatus) (*OrderGroup, bool, error) {
	if _, ok, err := v.Detail(ctx, id); err != nil || !ok {
		return nil, false, err
	}
	if _, ok, err := v.orders.UpdateStatus(ctx, id, to); err != nil || !ok {
		return nil, ok, err
	}
	return v.Detail(ctx, id)
}

// Cancel moves a pending order to cancelled and puts its items back in the cart.
func (v *OrderViews) Cancel(ctx context.Context, id string) (*OrderGroup, bool, error) {
	g, ok, err := v.transition(ctx, id, models.StatusCancelled)
	if err != nil || !ok {
		return g, ok, err
	}
	for _, l := range g.Lines {
		if l.Item == nil {
			continue
		}
		if _, err := v.cart.Add(ctx, *l.Item, l.Quantity); err != nil {
			v.log.Warn("cancel: return item to cart", zap.String("order_id", id), zap.String("item_id", l.Item.ID), zap.Error(err))
		}
	}
	return g, true, nil
}

// Restore moves a cancelled order back to pending. The cart is left alone.
func (v *OrderViews) Restore(ctx context.Context, id string) (*OrderGroup, bool, error) {
	return v.transition(ctx, id, models.StatusPending)
}

// ConfirmPickup completes a ready order.
func (v *OrderViews) ConfirmPickup(ctx context.Context, id string) (*OrderGroup, bool, error) {
	return v.transition(ctx, id, models.StatusCompleted)
}
