package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-storefront/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrder → insert a new pending order
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		return fmt.Errorf("create order %s: %w", order.OrderID, err)
	}
	return nil
}

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return d.getOrder(ctx, "order_id = ?", id)
}

// GetOrderBySessionID → fetch the order created for a checkout session
func (d *DB) GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return d.getOrder(ctx, "checkout_session_id = ?", sessionID)
}

func (d *DB) getOrder(ctx context.Context, where string, arg string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid flips a pending order to paid. It reports false when the order
// was not pending, so only one of several concurrent callers wins.
func (d *DB) MarkPaid(ctx context.Context, orderID string, at time.Time) (bool, error) {
	return d.transition(ctx, orderID, models.OrderStatusPaid, &at)
}

// MarkCancelled flips a pending order to cancelled.
func (d *DB) MarkCancelled(ctx context.Context, orderID string) (bool, error) {
	return d.transition(ctx, orderID, models.OrderStatusCancelled, nil)
}

func (d *DB) transition(ctx context.Context, orderID, status string, paidAt *time.Time) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Where("order_id = ?", orderID).
		Where("status = ?", models.OrderStatusPending)
	if paidAt != nil {
		q = q.Set("paid_at = ?", paidAt.UTC())
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark order %s %s: %w", orderID, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOrdersByUser → all orders of a user, newest first
func (d *DB) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ---------------- RELATION QUERIES ----------------

// GetOrdersWithTicketsByUserID → fetch all orders with their tickets for a user
func (d *DB) GetOrdersWithTicketsByUserID(ctx context.Context, userID string) ([]models.OrderWithTickets, error) {
	orders, err := d.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []models.OrderWithTickets{}, nil
	}

	orderIDs := make([]string, len(orders))
	for i, order := range orders {
		orderIDs[i] = order.OrderID
	}

	var tickets []models.Ticket
	err = d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id IN (?)", bun.In(orderIDs)).
		Order("order_id", "ticket_type_id", "ticket_id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	ticketsByOrder := make(map[string][]models.Ticket)
	for _, ticket := range tickets {
		ticketsByOrder[ticket.OrderID] = append(ticketsByOrder[ticket.OrderID], ticket)
	}

	result := make([]models.OrderWithTickets, len(orders))
	for i, order := range orders {
		result[i] = models.OrderWithTickets{
			Order:   order,
			Tickets: ticketsByOrder[order.OrderID],
		}
		if result[i].Tickets == nil {
			result[i].Tickets = []models.Ticket{}
		}
	}
	return result, nil
}
