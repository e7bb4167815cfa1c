package models

import "time"

// ContactMessage is a visitor message from the contact form.
type ContactMessage struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
	Read    bool      `json:"read"`
}

// AdminUser is a back-office account. Only the bcrypt hash is stored.
type AdminUser struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

// Stats are the public counters shown on the landing page. lastUpdateTime
// is a millisecond timestamp, as the website writes it.
type Stats struct {
	CustomersServedToday int       `json:"customersServedToday"`
	CustomersEverServed  int       `json:"customersEverServed"`
	OrdersSubmitted      int       `json:"ordersSubmitted"`
	LastResetDate        string    `json:"lastResetDate"`
	LastUpdateTime       int64     `json:"lastUpdateTime"` // unix milliseconds
}
