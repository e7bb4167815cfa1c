package services

import (
	"context"
	"time"

	"campus-cafe/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dashboardRecentCount = 10

// Dashboard is the admin landing page.
type Dashboard struct {
	TotalOrders    int             `json:"totalOrders"`
	PendingOrders  int             `json:"pendingOrders"`
	ReadyOrders    int             `json:"readyOrders"`
	Revenue        string          `json:"revenue"`
	Recent         []OrderGroup    `json:"recent"`
	MenuItems      int             `json:"menuItems"`
	Categories     []CategoryCount `json:"categories"`
	UnreadMessages int             `json:"unreadMessages"`
}

// Backoffice is the staff side of orders: every customer's orders, no cart effects.
type Backoffice struct {
	orders   *OrderRepository
	menu     *MenuService
	messages *MessageService
	log      *zap.Logger
	now      func() time.Time
}

// Dashboard counts checkouts (not records). Revenue sums each non-cancelled
// checkout once.
func (b *Backoffice) Dashboard(ctx context.Context) (*Dashboard, error) {
	records, err := b.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	groups := GroupOrders(records)
	d := &Dashboard{TotalOrders: len(groups)}
	revenue := decimal.Zero
	for _, g := range groups {
		switch g.Status {
		case models.StatusPending:
			d.PendingOrders++
		case models.StatusReady:
			d.ReadyOrders++
		case models.StatusCancelled:
			continue
		}
		revenue = revenue.Add(g.Total())
	}
	d.Revenue = FormatAmount(revenue)
	d.Recent = filterGroups(groups, ListFilter{Limit: dashboardRecentCount})

	items, err := b.menu.List(ctx)
	if err != nil {
		return nil, err
	}
	d.MenuItems = len(items)
	if d.Categories, err = b.menu.CountByCategory(ctx); err != nil {
		return nil, err
	}
	if d.UnreadMessages, err = b.messages.UnreadCount(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (b *Backoffice) Orders(ctx context.Context, f ListFilter) ([]OrderGroup, error) {
	records, err := b.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterGroups(GroupOrders(records), f), nil
}

func (b *Backoffice) Order(ctx context.Context, id string) (*OrderGroup, bool, error) {
	records, ok, err := b.orders.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	g := GroupOrders(records)[0]
	return &g, true, nil
}

func (b *Backoffice) setStatus(ctx context.Context, id string, to models.OrderStatus) (*OrderGroup, bool, error) {
	if _, ok, err := b.orders.UpdateStatus(ctx, id, to); err != nil || !ok {
		return nil, ok, err
	}
	return b.Order(ctx, id)
}

// MarkReady: pending -> ready.
func (b *Backoffice) MarkReady(ctx context.Context, id string) (*OrderGroup, bool, error) {
	return b.setStatus(ctx, id, models.StatusReady)
}

// Cancel: pending -> cancelled, as the kitchen rejecting it.
func (b *Backoffice) Cancel(ctx context.Context, id string) (*OrderGroup, bool, error) {
	return b.setStatus(ctx, id, models.StatusCancelled)
}

// Complete: ready -> completed, when the customer collects at the counter.
func (b *Backoffice) Complete(ctx context.Context, id string) (*OrderGroup, bool, error) {
	return b.setStatus(ctx, id, models.StatusCompleted)
}

func (b *Backoffice) ClearTerminal(ctx context.Context) (int, error) {
	n, err := b.orders.ClearTerminal(ctx)
	if err == nil && n > 0 {
		b.log.Info("cleared completed and cancelled orders", zap.Int("records", n))
	}
	return n, err
}
