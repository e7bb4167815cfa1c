package httpapi

import (
	"campus-cafe/models"
	"campus-cafe/services"
)

type AddCartItemRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Lines   []models.CartLine    `json:"lines"`
	Summary services.CartSummary `json:"summary"`
}

type BeginCheckoutResponse struct {
	OrderCode string `json:"orderCode"`
}

type ThemeRequest struct {
	Theme string `json:"theme"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

type AddAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AddAdminResponse includes the password only when the server generated it.
type AddAdminResponse struct {
	Email             string `json:"email"`
	Created           bool   `json:"created"`
	GeneratedPassword string `json:"generatedPassword,omitempty"`
}

type ClearResponse struct {
	Removed int `json:"removed"`
}
