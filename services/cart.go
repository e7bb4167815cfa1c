package services

import (
	"context"
	"sync"

	"campus-cafe/models"
	"campus-cafe/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// DiscountThreshold is exclusive: a total of exactly 500 pays full price.
	DiscountThreshold = decimal.NewFromInt(500)
	DiscountAmount    = decimal.NewFromInt(300)
)

// ApplyDiscount takes a flat 300 off any total strictly above 500.
func ApplyDiscount(total decimal.Decimal) decimal.Decimal {
	if total.GreaterThan(DiscountThreshold) {
		return total.Sub(DiscountAmount)
	}
	return total
}

// LinesTotal is sum(price * quantity) before discount.
func LinesTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Item.PriceDecimal().Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// OrderTotal is the amount charged for a set of lines. Cart view, checkout
// and stored orders all go through here.
func OrderTotal(lines []models.CartLine) decimal.Decimal {
	return ApplyDiscount(LinesTotal(lines))
}

// FormatAmount renders money the way totalAmount is stored ("1234.50").
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Cart is one customer's cart, stored under campus_cafe_cart in the session's namespace.
type Cart struct {
	kv  store.Store
	log *zap.Logger
	mu  *sync.Mutex // shared with the session's checkout
}

func (c *Cart) lines(ctx context.Context) ([]models.CartLine, error) {
	return store.LoadJSON(ctx, c.kv, KeyCart, []models.CartLine{}, c.log)
}

func (c *Cart) save(ctx context.Context, lines []models.CartLine) error {
	return store.SaveJSON(ctx, c.kv, KeyCart, lines)
}

func (c *Cart) Lines(ctx context.Context) ([]models.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines(ctx)
}

// Add puts quantity of item in the cart, merging with an existing line for the same id.
func (c *Cart) Add(ctx context.Context, item models.MenuItem, quantity int) ([]models.CartLine, error) {
	if item.ID == "" || item.Name == "" || item.Price <= 0 {
		return nil, &models.ValidationError{Field: "item", Message: "invalid menu item"}
	}
	if quantity < 1 {
		return nil, &models.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, err := c.lines(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range lines {
		if lines[i].Item.ID == item.ID {
			lines[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, models.CartLine{Item: item, Quantity: quantity})
	}
	if err := c.save(ctx, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Remove drops the line for itemID. Removing an absent item is not an error.
func (c *Cart) Remove(ctx context.Context, itemID string) ([]models.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, err := c.lines(ctx)
	if err != nil {
		return nil, err
	}
	kept := make([]models.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Item.ID != itemID {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return lines, nil
	}
	if err := c.save(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// SetQuantity replaces the quantity of an existing line.
func (c *Cart) SetQuantity(ctx context.Context, itemID string, quantity int) ([]models.CartLine, error) {
	if quantity < 1 {
		return nil, &models.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, err := c.lines(ctx)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if lines[i].Item.ID == itemID {
			lines[i].Quantity = quantity
			if err := c.save(ctx, lines); err != nil {
				return nil, err
			}
			return lines, nil
		}
	}
	return nil, &models.ValidationError{Field: "itemId", Message: "item is not in the cart"}
}

func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, []models.CartLine{})
}

// TotalPrice is the undiscounted sum.
func (c *Cart) TotalPrice(ctx context.Context) (decimal.Decimal, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return LinesTotal(lines), nil
}

func (c *Cart) TotalItemCount(ctx context.Context) (int, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return 0, err
	}
	return itemCount(lines), nil
}

func itemCount(lines []models.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

type SummaryLine struct {
	Item     models.MenuItem `json:"item"`
	Quantity int             `json:"quantity"`
	Subtotal string          `json:"subtotal"`
}

// CartSummary is what the cart page and the bot's cart message render.
type CartSummary struct {
	Lines           []SummaryLine `json:"lines"`
	ItemCount       int           `json:"itemCount"`
	Subtotal        string        `json:"subtotal"`
	Discount        string        `json:"discount"`
	Total           string        `json:"total"`
	DiscountApplied bool          `json:"discountApplied"`
}

func summarize(lines []models.CartLine) CartSummary {
	s := CartSummary{Lines: make([]SummaryLine, 0, len(lines)), ItemCount: itemCount(lines)}
	for _, l := range lines {
		s.Lines = append(s.Lines, SummaryLine{
			Item:     l.Item,
			Quantity: l.Quantity,
			Subtotal: FormatAmount(l.Item.PriceDecimal().Mul(decimal.NewFromInt(int64(l.Quantity)))),
		})
	}
	sub := LinesTotal(lines)
	total := ApplyDiscount(sub)
	s.Subtotal = FormatAmount(sub)
	s.Total = FormatAmount(total)
	s.Discount = FormatAmount(sub.Sub(total))
	s.DiscountApplied = !sub.Equal(total)
	return s
}

func (c *Cart) Summary(ctx context.Context) (CartSummary, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return CartSummary{}, err
	}
	return summarize(lines), nil
}
