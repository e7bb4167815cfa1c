package services

import (
	"context"
	"strings"
	"testing"

	"campus-cafe/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemIDs(items []models.MenuItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestDefaultMenu(t *testing.T) {
	items, err := DefaultMenu()
	require.NoError(t, err)
	require.Len(t, items, 7)
	for _, it := range items {
		assert.True(t, models.ValidCategory(it.Category), it.ID)
		assert.Positive(t, it.Price, it.ID)
		assert.NotEmpty(t, it.Ingredients, it.ID)
	}
}

func TestMenuSearch(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	_, err := shop.Menu.Seed(ctx, false)
	require.NoError(t, err)

	tests := []struct {
		query, category string
		want            []string
	}{
		{"", "", []string{"breakfast1", "breakfast2", "lunch1", "lunch2", "snack1", "drink1", "drink2"}},
		{"", "all", []string{"breakfast1", "breakfast2", "lunch1", "lunch2", "snack1", "drink1", "drink2"}},
		{"", "drinks", []string{"drink1", "drink2"}},
		{"CHAPATI", "", []string{"breakfast1", "lunch1"}},
		{"milk", "drinks", []string{"drink1"}},
		{"pizza", "", []string{}},
	}
	for _, tt := range tests {
		got, err := shop.Menu.Search(ctx, tt.query, tt.category)
		require.NoError(t, err)
		if diff := cmp.Diff(tt.want, itemIDs(got)); diff != "" {
			t.Errorf("Search(%q, %q) mismatch (-want +got):\n%s", tt.query, tt.category, diff)
		}
	}

	featured, err := shop.Menu.Featured(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"breakfast1", "lunch1", "snack1", "drink2"}, itemIDs(featured))
}

func TestMenuCRUD(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()

	in := models.MenuItemInput{
		Name:        "Mandazi",
		Category:    models.CategorySnacks,
		Price:       "20",
		Description: "Sweet fried dough",
		Ingredients: "Flour\n\n Coconut milk \nSugar",
	}
	item, err := shop.Menu.Create(ctx, in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(item.ID, "item_"))
	assert.Equal(t, []string{"Flour", "Coconut milk", "Sugar"}, item.Ingredients)

	got, ok, err := shop.Menu.Get(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, item, got)

	in.Price = "25.50"
	updated, ok, err := shop.Menu.Update(ctx, item.ID, in)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, item.ID, updated.ID)
	assert.Equal(t, 25.5, updated.Price)

	_, ok, err = shop.Menu.Update(ctx, "item_missing", in)
	require.NoError(t, err)
	assert.False(t, ok)

	in.Price = "-1"
	_, _, err = shop.Menu.Update(ctx, item.ID, in)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "price", ve.Field)

	ok, err = shop.Menu.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = shop.Menu.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMenuCountByCategory(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	_, err := shop.Menu.Seed(ctx, false)
	require.NoError(t, err)

	counts, err := shop.Menu.CountByCategory(ctx)
	require.NoError(t, err)
	want := []CategoryCount{
		{Category: models.CategoryBreakfast, Count: 2},
		{Category: models.CategoryLunch, Count: 2},
		{Category: models.CategorySnacks, Count: 1},
		{Category: models.CategoryDrinks, Count: 2},
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("CountByCategory mismatch (-want +got):\n%s", diff)
	}
}
