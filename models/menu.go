package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MenuItem is stored under campus_cafe_menu_items. Price stays a JSON number
// so existing browser data round-trips; arithmetic goes through PriceDecimal.
type MenuItem struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`
	Price       float64  `json:"price" yaml:"price"`
	Description string   `json:"description" yaml:"description"`
	Ingredients []string `json:"ingredients" yaml:"ingredients"`
	ImageURL    string   `json:"imageUrl,omitempty" yaml:"imageUrl"`
	Featured    bool     `json:"featured" yaml:"featured"`
}

const (
	CategoryAppetizers  = "appetizers"
	CategoryMainCourses = "main-courses"
	CategoryDesserts    = "desserts"
	CategoryDrinks      = "drinks"
	CategoryBreakfast   = "breakfast"
	CategoryLunch       = "lunch"
	CategorySnacks      = "snacks"
)

// Categories lists every category in display order.
var Categories = []string{
	CategoryBreakfast,
	CategoryLunch,
	CategoryMainCourses,
	CategoryAppetizers,
	CategorySnacks,
	CategoryDesserts,
	CategoryDrinks,
}

func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// CategoryLabel turns "main-courses" into "Main Courses".
func CategoryLabel(c string) string {
	parts := strings.Split(c, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func (m MenuItem) PriceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(m.Price)
}

// MenuItemInput is what the admin form (HTTP or staff bot) submits.
// Ingredients arrive as one per line.
type MenuItemInput struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Ingredients string `json:"ingredients"`
	ImageURL    string `json:"imageUrl"`
	Featured    bool   `json:"featured"`
}

// NewMenuItem validates the form and builds an item without an id.
func NewMenuItem(in MenuItemInput) (MenuItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return MenuItem{}, &ValidationError{Field: "name", Message: "item name is required"}
	}
	if !ValidCategory(in.Category) {
		return MenuItem{}, &ValidationError{Field: "category", Message: "please select a category"}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil || price.IsNegative() {
		return MenuItem{}, &ValidationError{Field: "price", Message: "please enter a valid price"}
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return MenuItem{}, &ValidationError{Field: "description", Message: "description is required"}
	}
	var ingredients []string
	for _, line := range strings.Split(in.Ingredients, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			ingredients = append(ingredients, s)
		}
	}
	if ingredients == nil {
		ingredients = []string{}
	}
	return MenuItem{
		Name:        name,
		Category:    in.Category,
		Price:       price.InexactFloat64(),
		Description: desc,
		Ingredients: ingredients,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Featured:    in.Featured,
	}, nil
}
