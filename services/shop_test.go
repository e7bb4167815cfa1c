package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 19, 9, 30, 0, 123_000_000, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingStore counts writes so tests can assert "no persistence write".
type countingStore struct {
	store.Store
	writes atomic.Int32
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	c.writes.Add(1)
	return c.Store.Set(ctx, key, value)
}

func (c *countingStore) Remove(ctx context.Context, key string) error {
	c.writes.Add(1)
	return c.Store.Remove(ctx, key)
}

func newTestShop(t *testing.T) (*Shop, *fakeClock, *countingStore) {
	t.Helper()
	clock := newFakeClock()
	kv := &countingStore{Store: store.NewMemory()}
	shop := NewShop(kv, Options{Logger: zaptest.NewLogger(t), Now: clock.Now, PasswordCost: bcrypt.MinCost})
	return shop, clock, kv
}

func menuItem(id string, price float64) models.MenuItem {
	return models.MenuItem{ID: id, Name: "Item " + id, Category: models.CategorySnacks, Price: price, Ingredients: []string{}}
}

func TestShopInitSeedsMenuAndAdmin(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()

	require.NoError(t, shop.Init(ctx, "Admin@CampusCafe.com", "supersecret"))
	items, err := shop.Menu.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 7)

	admins, err := shop.Credentials.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@campuscafe.com"}, admins)

	// A second Init keeps existing data.
	_, err = shop.Menu.Delete(ctx, "snack1")
	require.NoError(t, err)
	require.NoError(t, shop.Init(ctx, "other@campuscafe.com", "supersecret"))
	items, _ = shop.Menu.List(ctx)
	assert.Len(t, items, 6)
	admins, _ = shop.Credentials.ListAdmins(ctx)
	assert.Len(t, admins, 1)
}

func TestSessionsAreIsolated(t *testing.T) {
	shop, _, kv := newTestShop(t)
	ctx := context.Background()

	alice := shop.Session("tg:1")
	bob := shop.Session("tg:2")
	_, err := alice.Cart.Add(ctx, menuItem("a", 100), 2)
	require.NoError(t, err)

	lines, err := bob.Cart.Lines(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, ok, _ := kv.Get(ctx, CustomerPrefix("tg:1")+KeyCart)
	assert.True(t, ok)
	_, ok, _ = kv.Get(ctx, KeyCart)
	assert.False(t, ok, "legacy cart key untouched")
}

func TestSessionTheme(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	s := shop.Session("")

	theme, err := s.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	require.NoError(t, s.SetTheme(ctx, ThemeDark))
	theme, _ = s.Theme(ctx)
	assert.Equal(t, ThemeDark, theme)

	var ve *models.ValidationError
	assert.ErrorAs(t, s.SetTheme(ctx, "neon"), &ve)
}

func TestCartLocksAreBounded(t *testing.T) {
	shop, _, _ := newTestShop(t)
	seen := map[*sync.Mutex]bool{}
	for i := 0; i < 1000; i++ {
		ref := fmt.Sprintf("tg:%d", i)
		mu := shop.cartLock(ref)
		assert.Same(t, mu, shop.Session(ref).Cart.mu)
		seen[mu] = true
	}
	assert.LessOrEqual(t, len(seen), cartLockStripes)
}
