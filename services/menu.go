package services

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed seed/menu.yaml
var defaultMenuYAML []byte

// DefaultMenu returns the built-in menu the café opens with.
func DefaultMenu() ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := yaml.Unmarshal(defaultMenuYAML, &items); err != nil {
		return nil, fmt.Errorf("parse default menu: %w", err)
	}
	return items, nil
}

// MenuService is the catalog: menu items keyed by id under campus_cafe_menu_items.
type MenuService struct {
	kv  store.Store
	log *zap.Logger
	now func() time.Time
	mu  sync.Mutex
}

func NewMenuService(kv store.Store, log *zap.Logger, now func() time.Time) *MenuService {
	return &MenuService{kv: kv, log: log, now: now}
}

func (m *MenuService) load(ctx context.Context) ([]models.MenuItem, error) {
	return store.LoadJSON(ctx, m.kv, KeyMenuItems, []models.MenuItem{}, m.log)
}

func (m *MenuService) save(ctx context.Context, items []models.MenuItem) error {
	return store.SaveJSON(ctx, m.kv, KeyMenuItems, items)
}

// Seed writes the default menu when none is stored. force replaces whatever is there.
// Returns the number of items written (0 when nothing changed).
func (m *MenuService) Seed(ctx context.Context, force bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !force {
		_, ok, err := m.kv.Get(ctx, KeyMenuItems)
		if err != nil {
			return 0, err
		}
		if ok {
			return 0, nil
		}
	}
	items, err := DefaultMenu()
	if err != nil {
		return 0, err
	}
	if err := m.save(ctx, items); err != nil {
		return 0, err
	}
	m.log.Info("menu seeded", zap.Int("items", len(items)), zap.Bool("force", force))
	return len(items), nil
}

func (m *MenuService) List(ctx context.Context) ([]models.MenuItem, error) {
	return m.load(ctx)
}

func (m *MenuService) ListByCategory(ctx context.Context, category string) ([]models.MenuItem, error) {
	return m.Search(ctx, "", category)
}

func (m *MenuService) Featured(ctx context.Context) ([]models.MenuItem, error) {
	items, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.MenuItem{}
	for _, it := range items {
		if it.Featured {
			out = append(out, it)
		}
	}
	return out, nil
}

// Search matches query (case-insensitive) against name, description and
// ingredients. Empty query or category means "any".
func (m *MenuService) Search(ctx context.Context, query, category string) ([]models.MenuItem, error) {
	items, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.MenuItem{}
	for _, it := range items {
		if category != "" && category != "all" && it.Category != category {
			continue
		}
		if q != "" && !itemMatches(it, q) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func itemMatches(it models.MenuItem, q string) bool {
	if strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.Description), q) {
		return true
	}
	for _, ing := range it.Ingredients {
		if strings.Contains(strings.ToLower(ing), q) {
			return true
		}
	}
	return false
}

// Get returns the item; ok is false when no item has that id.
func (m *MenuService) Get(ctx context.Context, id string) (models.MenuItem, bool, error) {
	items, err := m.load(ctx)
	if err != nil {
		return models.MenuItem{}, false, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, true, nil
		}
	}
	return models.MenuItem{}, false, nil
}

// Create validates the form and appends a new item with a fresh id.
func (m *MenuService) Create(ctx context.Context, in models.MenuItemInput) (models.MenuItem, error) {
	item, err := models.NewMenuItem(in)
	if err != nil {
		return models.MenuItem{}, err
	}
	suffix, err := randomString(idAlphabet, 5)
	if err != nil {
		return models.MenuItem{}, err
	}
	item.ID = fmt.Sprintf("item_%d_%s", m.now().UnixMilli(), suffix)

	m.mu.Lock()
	defer m.mu.Unlock()
	items, err := m.load(ctx)
	if err != nil {
		return models.MenuItem{}, err
	}
	items = append(items, item)
	if err := m.save(ctx, items); err != nil {
		return models.MenuItem{}, err
	}
	return item, nil
}

// Update replaces the item with the given id, keeping the id.
func (m *MenuService) Update(ctx context.Context, id string, in models.MenuItemInput) (models.MenuItem, bool, error) {
	item, err := models.NewMenuItem(in)
	if err != nil {
		return models.MenuItem{}, false, err
	}
	item.ID = id

	m.mu.Lock()
	defer m.mu.Unlock()
	items, err := m.load(ctx)
	if err != nil {
		return models.MenuItem{}, false, err
	}
	for i := range items {
		if items[i].ID == id {
			items[i] = item
			if err := m.save(ctx, items); err != nil {
				return models.MenuItem{}, false, err
			}
			return item, true, nil
		}
	}
	return models.MenuItem{}, false, nil
}

// Delete removes the item; false when it did not exist.
func (m *MenuService) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, m.save(ctx, kept)
}

// CategoryCount is one row of the dashboard's per-category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CountByCategory returns counts in models.Categories order, then any
// unknown categories alphabetically.
func (m *MenuService) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	items, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, it := range items {
		counts[it.Category]++
	}
	var out []CategoryCount
	for _, c := range models.Categories {
		if n := counts[c]; n > 0 {
			out = append(out, CategoryCount{Category: c, Count: n})
			delete(counts, c)
		}
	}
	var rest []string
	for c := range counts {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	for _, c := range rest {
		out = append(out, CategoryCount{Category: c, Count: counts[c]})
	}
	return out, nil
}
