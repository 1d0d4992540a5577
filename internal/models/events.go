package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPaidEvent is published once per order when payment is confirmed.
type OrderPaidEvent struct {
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Tickets   int             `json:"tickets"`
	PaidAt    time.Time       `json:"paid_at"`
	Items     []OrderItem     `json:"items"`
	SessionID string          `json:"checkout_session_id"`
}

type TicketRedeemedEvent struct {
	TicketID  string    `json:"ticket_id"`
	EventID   string    `json:"event_id"`
	Operator  string    `json:"operator"`
	ScannedAt time.Time `json:"scanned_at"`
}
