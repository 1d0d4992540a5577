package analytics

import (
	"context"
	"errors"
	"sort"
	"time"

	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Service aggregates sales figures from issued tickets.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// EventSales is the revenue picture of one event. Voided tickets are
// counted separately and excluded from revenue.
type EventSales struct {
	EventID      string              `json:"eventId"`
	TotalRevenue decimal.Decimal     `json:"totalRevenue"`
	TicketsSold  int                 `json:"ticketsSold"`
	CheckedIn    int                 `json:"checkedIn"`
	Voided       int                 `json:"voided"`
	DailySales   []DailySalesMetrics `json:"dailySales"`
	SalesByTier  []TierSalesMetrics  `json:"salesByTier"`
}

type DailySalesMetrics struct {
	Date        string          `json:"date"`
	Revenue     decimal.Decimal `json:"revenue"`
	TicketsSold int             `json:"ticketsSold"`
}

type TierSalesMetrics struct {
	TicketTypeID string          `json:"ticketTypeId"`
	Name         string          `json:"name"`
	TicketsSold  int             `json:"ticketsSold"`
	Revenue      decimal.Decimal `json:"revenue"`
	Capacity     int             `json:"capacity"`
	Remaining    int             `json:"remaining"`
}

// BatchEventSales sums several events.
type BatchEventSales struct {
	EventIDs     []string            `json:"eventIds"`
	TotalRevenue decimal.Decimal     `json:"totalRevenue"`
	TicketsSold  int                 `json:"ticketsSold"`
	DailySales   []DailySalesMetrics `json:"dailySales"`
	Events       []EventSales        `json:"events"`
}

type soldTicket struct {
	TicketTypeID    string          `bun:"ticket_type_id"`
	TicketTypeName  string          `bun:"ticket_type_name"`
	PriceAtPurchase decimal.Decimal `bun:"price_at_purchase"`
	Status          string          `bun:"status"`
	IssuedAt        time.Time       `bun:"issued_at"`
}

// GetEventSales returns revenue, daily sales (UTC days) and per ticket
// type sales for eventID. An unknown event yields ErrEventNotFound.
func (s *Service) GetEventSales(ctx context.Context, eventID string) (*EventSales, error) {
	exists, err := s.db.NewSelect().Model((*models.Event)(nil)).Where("id = ?", eventID).Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrEventNotFound
	}

	var types []models.TicketType
	err = s.db.NewSelect().
		Model(&types).
		Where("event_id = ?", eventID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var tickets []soldTicket
	err = s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("ticket_type_id", "ticket_type_name", "price_at_purchase", "status", "issued_at").
		Where("event_id = ?", eventID).
		Scan(ctx, &tickets)
	if err != nil {
		return nil, err
	}

	return aggregate(eventID, types, tickets), nil
}

// GetBatchEventSales aggregates several events. Unknown ids are skipped.
func (s *Service) GetBatchEventSales(ctx context.Context, eventIDs []string) (*BatchEventSales, error) {
	result := &BatchEventSales{
		EventIDs:     []string{},
		TotalRevenue: decimal.Zero,
		DailySales:   []DailySalesMetrics{},
		Events:       []EventSales{},
	}

	daily := map[string]*DailySalesMetrics{}
	for _, id := range eventIDs {
		sales, err := s.GetEventSales(ctx, id)
		if errors.Is(err, models.ErrEventNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result.EventIDs = append(result.EventIDs, id)
		result.Events = append(result.Events, *sales)
		result.TotalRevenue = result.TotalRevenue.Add(sales.TotalRevenue)
		result.TicketsSold += sales.TicketsSold
		for _, d := range sales.DailySales {
			addDay(daily, d.Date, d.Revenue, d.TicketsSold)
		}
	}
	result.DailySales = sortedDays(daily)
	return result, nil
}

func aggregate(eventID string, types []models.TicketType, tickets []soldTicket) *EventSales {
	result := &EventSales{
		EventID:      eventID,
		TotalRevenue: decimal.Zero,
		SalesByTier:  make([]TierSalesMetrics, 0, len(types)),
	}

	tiers := make(map[string]*TierSalesMetrics, len(types))
	for _, tt := range types {
		result.SalesByTier = append(result.SalesByTier, TierSalesMetrics{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			Revenue:      decimal.Zero,
			Capacity:     tt.Capacity,
			Remaining:    tt.Remaining(),
		})
	}
	for i := range result.SalesByTier {
		tiers[result.SalesByTier[i].TicketTypeID] = &result.SalesByTier[i]
	}

	daily := map[string]*DailySalesMetrics{}
	for _, t := range tickets {
		if t.Status == models.TicketStatusVoid {
			result.Voided++
			continue
		}
		if t.Status == models.TicketStatusUsed {
			result.CheckedIn++
		}
		result.TicketsSold++
		result.TotalRevenue = result.TotalRevenue.Add(t.PriceAtPurchase)
		addDay(daily, t.IssuedAt.UTC().Format("2006-01-02"), t.PriceAtPurchase, 1)

		if tier, ok := tiers[t.TicketTypeID]; ok {
			tier.TicketsSold++
			tier.Revenue = tier.Revenue.Add(t.PriceAtPurchase)
		}
	}
	result.DailySales = sortedDays(daily)
	return result
}

func addDay(days map[string]*DailySalesMetrics, date string, revenue decimal.Decimal, sold int) {
	d, ok := days[date]
	if !ok {
		d = &DailySalesMetrics{Date: date, Revenue: decimal.Zero}
		days[date] = d
	}
	d.Revenue = d.Revenue.Add(revenue)
	d.TicketsSold += sold
}

func sortedDays(days map[string]*DailySalesMetrics) []DailySalesMetrics {
	out := make([]DailySalesMetrics, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
