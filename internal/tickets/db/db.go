package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-storefront/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// CreateTickets inserts issued tickets. Rows whose ticket_id already exists
// are skipped, so re-issuing the same order is harmless.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().
		Model(&tickets).
		On("CONFLICT (ticket_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Order("issued_at DESC", "ticket_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) ListTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("ticket_type_id ASC", "ticket_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// MarkScanned flips a valid, unscanned ticket to used in one conditional
// statement. It reports false when no row matched, which covers unknown,
// already scanned and voided tickets alike.
func (d *DB) MarkScanned(ctx context.Context, ticketID, operator string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("scanned_at = ?", at).
		Set("scanned_by = ?", operator).
		Set("status = ?", models.TicketStatusUsed).
		Where("ticket_id = ?", ticketID).
		Where("scanned_at IS NULL").
		Where("status = ?", models.TicketStatusValid).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// VoidTicket cancels a ticket that has not been used yet.
func (d *DB) VoidTicket(ctx context.Context, ticketID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusVoid).
		Where("ticket_id = ?", ticketID).
		Where("status = ?", models.TicketStatusValid).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CheckInStats → issued / scanned / voided counts for one event
func (d *DB) CheckInStats(ctx context.Context, eventID string) (*models.CheckInStats, error) {
	var issued, scanned, voided int
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)", models.TicketStatusUsed).
		ColumnExpr("COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)", models.TicketStatusVoid).
		Where("event_id = ?", eventID).
		Scan(ctx, &issued, &scanned, &voided)
	if err != nil {
		return nil, err
	}
	return &models.CheckInStats{
		EventID: eventID,
		Issued:  issued,
		Scanned: scanned,
		Voided:  voided,
	}, nil
}
