package models

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentProcessed PaymentStatus = "processed"
	PaymentFailed    PaymentStatus = "failed"
)

const PaymentMethodMpesa = "mpesa"

// CartLine is one entry of campus_cafe_cart: a snapshot of the item at add time.
type CartLine struct {
	Item     MenuItem `json:"item"`
	Quantity int      `json:"quantity"`
}

// Order is one record of campus_cafe_orders. A checkout writes one record per
// cart line; the lines share ID, OrderCode and TotalAmount.
type Order struct {
	ID                  string        `json:"id"`
	OrderCode           string        `json:"orderCode"`
	Item                *MenuItem     `json:"item"`
	Quantity            int           `json:"quantity"`
	Status              OrderStatus   `json:"status"`
	OrderTime           time.Time     `json:"orderTime"`
	EstimatedPickupTime time.Time     `json:"estimatedPickupTime"`
	Notes               *string       `json:"notes"`
	CustomerName        string        `json:"customerName"`
	AdmissionNumber     string        `json:"admissionNumber"`
	PaymentMethod       string        `json:"paymentMethod"`
	PaymentStatus       PaymentStatus `json:"paymentStatus"`
	TotalAmount         string        `json:"totalAmount"`
	CustomerRef         string        `json:"customerRef,omitempty"`

	// TotalPrice is only present on records written by older builds.
	TotalPrice *float64 `json:"totalPrice,omitempty"`
}

// NotesText returns the notes or "" when none were given.
func (o Order) NotesText() string {
	if o.Notes == nil {
		return ""
	}
	return *o.Notes
}

// NotesPtr maps "" to a JSON null.
func NotesPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
