package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	TicketStatusValid = "valid"
	TicketStatusUsed  = "used"
	TicketStatusVoid  = "void"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID        string          `bun:"ticket_id,pk" json:"ticketId"`
	OrderID         string          `bun:"order_id,notnull" json:"orderId"`
	UserID          string          `bun:"user_id,notnull" json:"userId"`
	EventID         string          `bun:"event_id,notnull" json:"eventId"`
	TicketTypeID    string          `bun:"ticket_type_id,notnull" json:"ticketTypeId"`
	TicketTypeName  string          `bun:"ticket_type_name" json:"ticketTypeName"`
	QRPayload       string          `bun:"qr_payload,unique,notnull" json:"qrPayload"`
	PriceAtPurchase decimal.Decimal `bun:"price_at_purchase,type:numeric(12,2)" json:"priceAtPurchase"`
	Status          string          `bun:"status,notnull" json:"status"`
	IssuedAt        time.Time       `bun:"issued_at,notnull" json:"issuedAt"`
	ScannedAt       *time.Time      `bun:"scanned_at" json:"scannedAt,omitempty"`
	ScannedBy       *string         `bun:"scanned_by" json:"scannedBy,omitempty"`
}

const (
	ScanAccepted      = "accepted"
	ScanUnknownTicket = "unknown_ticket"
	ScanAlreadyUsed   = "already_used"
	ScanVoid          = "void"
)

// ScanResult is what the scanning operator (and the live feed) sees.
type ScanResult struct {
	TicketID       string     `json:"ticketId,omitempty"`
	EventID        string     `json:"eventId,omitempty"`
	TicketTypeName string     `json:"ticketTypeName,omitempty"`
	Outcome        string     `json:"outcome"`
	Accepted       bool       `json:"accepted"`
	ScannedAt      time.Time  `json:"scannedAt"`
	PreviousScanAt *time.Time `json:"previousScanAt,omitempty"`
	Operator       string     `json:"operator,omitempty"`
}

type CheckInStats struct {
	EventID string `json:"eventId"`
	Issued  int    `json:"issued"`
	Scanned int    `json:"scanned"`
	Voided  int    `json:"voided"`
}
