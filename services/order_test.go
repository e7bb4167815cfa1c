package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-cafe/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidStatusTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		want     bool
	}{
		{models.StatusPending, models.StatusReady, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusPending, models.StatusCompleted, false},
		{models.StatusPending, models.StatusPending, false},
		{models.StatusReady, models.StatusCompleted, true},
		{models.StatusReady, models.StatusCancelled, false},
		{models.StatusReady, models.StatusPending, false},
		{models.StatusCancelled, models.StatusPending, true},
		{models.StatusCancelled, models.StatusReady, false},
		{models.StatusCompleted, models.StatusPending, false},
		{models.StatusCompleted, models.StatusCancelled, false},
		{"", models.StatusPending, false},
		{models.StatusPending, "", false},
	}
	for _, tt := range tests {
		got := ValidStatusTransition(tt.from, tt.to)
		if got != tt.want {
			t.Errorf("ValidStatusTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreateOrder(t *testing.T) {
	shop, clock, _ := newTestShop(t)
	ctx := context.Background()
	item := menuItem("lunch2", 550)

	o, err := shop.Orders.Create(ctx, models.Order{ID: "ORD-1234-0001", Item: &item, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "250.00", o.TotalAmount)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, clock.Now(), o.OrderTime)
	assert.Equal(t, clock.Now().Add(20*time.Minute), o.EstimatedPickupTime)
	assert.Equal(t, models.PaymentMethodMpesa, o.PaymentMethod)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)

	stats, err := shop.Stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, baseOrdersSubmitted+1, stats.OrdersSubmitted)

	all, err := shop.Orders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateOrderValidation(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	item := menuItem("a", 10)

	tests := []struct {
		name  string
		order models.Order
		field string
	}{
		{"missing id", models.Order{Item: &item, Quantity: 1}, "id"},
		{"missing item", models.Order{ID: "x", Quantity: 1}, "item"},
		{"missing quantity", models.Order{ID: "x", Item: &item}, "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shop.Orders.Create(ctx, tt.order)
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestUpdateStatusNotFoundDoesNotWrite(t *testing.T) {
	shop, _, kv := newTestShop(t)
	ctx := context.Background()

	before := kv.writes.Load()
	o, ok, err := shop.Orders.UpdateStatus(ctx, "ORD-0000-0000", models.StatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, o)
	assert.Equal(t, before, kv.writes.Load())
}

func TestUpdateStatusAppliesToAllLines(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	a, b := menuItem("a", 100), menuItem("b", 100)
	require.NoError(t, shop.Orders.Save(ctx,
		models.Order{ID: "ORD-1", Item: &a, Quantity: 1, Status: models.StatusPending},
		models.Order{ID: "ORD-1", Item: &b, Quantity: 1, Status: models.StatusPending},
		models.Order{ID: "ORD-2", Item: &a, Quantity: 1, Status: models.StatusPending},
	))

	o, ok, err := shop.Orders.UpdateStatus(ctx, "ORD-1", models.StatusReady)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusReady, o.Status)

	all, _ := shop.Orders.List(ctx)
	assert.Equal(t, models.StatusReady, all[0].Status)
	assert.Equal(t, models.StatusReady, all[1].Status)
	assert.Equal(t, models.StatusPending, all[2].Status)
}

func TestUpdateStatusRejectsIllegalMove(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	a := menuItem("a", 100)
	require.NoError(t, shop.Orders.Save(ctx, models.Order{ID: "ORD-1", Item: &a, Quantity: 1, Status: models.StatusPending}))

	_, ok, err := shop.Orders.UpdateStatus(ctx, "ORD-1", models.StatusCompleted)
	assert.True(t, ok)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	all, _ := shop.Orders.List(ctx)
	assert.Equal(t, models.StatusPending, all[0].Status)
}

func TestCompletingOrderCountsCustomer(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	a := menuItem("a", 100)
	require.NoError(t, shop.Orders.Save(ctx, models.Order{ID: "ORD-1", Item: &a, Quantity: 1, Status: models.StatusReady}))

	_, _, err := shop.Orders.UpdateStatus(ctx, "ORD-1", models.StatusCompleted)
	require.NoError(t, err)
	stats, _ := shop.Stats.Get(ctx)
	assert.Equal(t, baseServedToday+1, stats.CustomersServedToday)
	assert.Equal(t, baseEverServed+1, stats.CustomersEverServed)
}

func TestClearTerminal(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	a := menuItem("a", 100)
	require.NoError(t, shop.Orders.Save(ctx,
		models.Order{ID: "1", Item: &a, Quantity: 1, Status: models.StatusPending},
		models.Order{ID: "2", Item: &a, Quantity: 1, Status: models.StatusCompleted},
		models.Order{ID: "3", Item: &a, Quantity: 1, Status: models.StatusCancelled},
		models.Order{ID: "4", Item: &a, Quantity: 1, Status: models.StatusReady},
	))
	n, err := shop.Orders.ClearTerminal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, _ := shop.Orders.List(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "4", all[1].ID)

	n, err = shop.Orders.ClearTerminal(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLegacyOrderRecordDecodes(t *testing.T) {
	shop, _, kv := newTestShop(t)
	ctx := context.Background()
	legacy := `[{"id":"ORD-4821-7730","orderCode":"4821","item":{"id":"snack1","name":"Samosa","price":40},"quantity":3,"totalPrice":120,"status":"pending","orderTime":"2025-03-01T10:00:00.000Z","estimatedPickupTime":"2025-03-01T10:20:00.000Z","notes":null,"customerName":"Wanjiru","admissionNumber":"12345","paymentMethod":"mpesa","paymentStatus":"pending","totalAmount":"120.00"}]`
	require.NoError(t, kv.Set(ctx, KeyOrders, legacy))
	all, err := shop.Orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Samosa", all[0].Item.Name)
	assert.Nil(t, all[0].Notes)
	assert.Equal(t, 2025, all[0].OrderTime.Year())
	require.NotNil(t, all[0].TotalPrice)
	assert.Equal(t, 120.0, *all[0].TotalPrice)
}
