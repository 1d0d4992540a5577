package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-storefront/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ListPublishedEvents → upcoming catalogue, soonest first
func (d *DB) ListPublishedEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("published = ?", true).
		Order("starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent → one published event with its ticket types
func (d *DB) GetEvent(ctx context.Context, id string) (*models.EventDetails, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Where("published = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	types, err := d.ListTicketTypes(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EventDetails{Event: event, TicketTypes: types}, nil
}

// ListTicketTypes → ticket types of an event, cheapest first
func (d *DB) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	types := []models.TicketType{}
	err := d.Bun.NewSelect().
		Model(&types).
		Where("event_id = ?", eventID).
		Order("price ASC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types, nil
}

// GetTicketTypesByIDs → authoritative prices keyed by ticket type id.
// Unknown ids are simply absent from the map.
func (d *DB) GetTicketTypesByIDs(ctx context.Context, ids []string) (map[string]models.TicketType, error) {
	out := make(map[string]models.TicketType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var types []models.TicketType
	err := d.Bun.NewSelect().
		Model(&types).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		out[t.ID] = t
	}
	return out, nil
}

// IncrementSold → add paid quantities to ticket type counters in one tx
func (d *DB) IncrementSold(ctx context.Context, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, item := range items {
			res, err := tx.NewUpdate().
				Model((*models.TicketType)(nil)).
				Set("sold = sold + ?", item.Quantity).
				Where("id = ?", item.TicketTypeID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("increment sold for %s: %w", item.TicketTypeID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: %s", models.ErrUnknownTicketType, item.TicketTypeID)
			}
		}
		return nil
	})
}
