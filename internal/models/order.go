package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

type OrderItem struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID           string          `bun:"order_id,pk" json:"orderId"`
	UserID            string          `bun:"user_id,notnull" json:"userId"`
	CheckoutSessionID string          `bun:"checkout_session_id,unique,nullzero" json:"checkoutSessionId"`
	Status            string          `bun:"status,notnull" json:"status"`
	Subtotal          decimal.Decimal `bun:"subtotal,type:numeric(12,2)" json:"subtotal"`
	ServiceFee        decimal.Decimal `bun:"service_fee,type:numeric(12,2)" json:"serviceFee"`
	Total             decimal.Decimal `bun:"total,type:numeric(12,2)" json:"total"`
	Currency          string          `bun:"currency,notnull" json:"currency"`
	Items             []OrderItem     `bun:"items,type:jsonb" json:"items"`
	CreatedAt         time.Time       `bun:"created_at,notnull" json:"createdAt"`
	PaidAt            *time.Time      `bun:"paid_at" json:"paidAt,omitempty"`
}

// OrderWithTickets is what a customer sees on the "my tickets" page.
type OrderWithTickets struct {
	Order   Order    `json:"order"`
	Tickets []Ticket `json:"tickets"`
}
