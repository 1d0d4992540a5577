package models

import "github.com/shopspring/decimal"

// CartLineInput is what the storefront sends when a ticket type is added.
type CartLineInput struct {
	EventID        string          `json:"eventId"`
	EventTitle     string          `json:"eventTitle"`
	EventDate      string          `json:"eventDate"`
	EventImage     string          `json:"eventImage"`
	TicketTypeID   string          `json:"ticketTypeId"`
	TicketTypeName string          `json:"ticketTypeName"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
}

// CartLine is one ticket type and its requested quantity. TicketTypeID is
// the merge key: a cart never holds two lines with the same id.
type CartLine struct {
	EventID        string          `json:"eventId"`
	EventTitle     string          `json:"eventTitle"`
	EventDate      string          `json:"eventDate"`
	EventImage     string          `json:"eventImage"`
	TicketTypeID   string          `json:"ticketTypeId"`
	TicketTypeName string          `json:"ticketTypeName"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Quantity       int             `json:"quantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartView struct {
	Lines      []CartLine      `json:"lines"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Quote      Quote           `json:"quote"`
}
