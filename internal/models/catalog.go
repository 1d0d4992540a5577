package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID        string    `bun:"id,pk" json:"id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Venue     string    `bun:"venue" json:"venue"`
	ImageURL  string    `bun:"image_url" json:"imageUrl"`
	StartsAt  time.Time `bun:"starts_at,notnull" json:"startsAt"`
	Published bool      `bun:"published,notnull" json:"published"`
}

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID       string          `bun:"id,pk" json:"id"`
	EventID  string          `bun:"event_id,notnull" json:"eventId"`
	Name     string          `bun:"name,notnull" json:"name"`
	Price    decimal.Decimal `bun:"price,type:numeric(12,2)" json:"price"`
	Capacity int             `bun:"capacity,notnull" json:"capacity"`
	Sold     int             `bun:"sold,notnull" json:"sold"`
}

func (t TicketType) Remaining() int {
	if t.Sold >= t.Capacity {
		return 0
	}
	return t.Capacity - t.Sold
}

type EventDetails struct {
	Event       Event        `json:"event"`
	TicketTypes []TicketType `json:"ticketTypes"`
}
