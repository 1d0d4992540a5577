package models

import "github.com/shopspring/decimal"

// PaymentSessionRequest carries ticket type ids and quantities only. The
// charge is priced from the catalog on the payment side.
type PaymentSessionRequest struct {
	UserID        string   `json:"userId"`
	TicketTypeIDs []string `json:"ticketTypeIds"`
	Quantities    []int    `json:"quantities"`
	SuccessURL    string   `json:"successUrl"`
	CancelURL     string   `json:"cancelUrl"`
}

type PaymentSession struct {
	ID          string          `json:"sessionId"`
	URL         string          `json:"url"`
	OrderID     string          `json:"orderId"`
	AmountTotal decimal.Decimal `json:"amountTotal"`
}

// Quote is the display-only total shown next to the cart.
type Quote struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"serviceFee"`
	Total      decimal.Decimal `json:"total"`
}

type CheckoutResult struct {
	SessionID    string `json:"sessionId"`
	RedirectURL  string `json:"redirectUrl"`
	OrderID      string `json:"orderId"`
	DisplayQuote Quote  `json:"displayQuote"`
}
