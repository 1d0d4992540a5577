package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/metrics"
	"ms-storefront/internal/models"
)

// ErrOrderCancelled is returned when a payment confirmation arrives for an
// order that already expired.
var ErrOrderCancelled = errors.New("order was cancelled")

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, orderID string) (bool, error)
	GetOrdersWithTicketsByUserID(ctx context.Context, userID string) ([]models.OrderWithTickets, error)
}

type Catalog interface {
	GetTicketTypesByIDs(ctx context.Context, ids []string) (map[string]models.TicketType, error)
	IncrementSold(ctx context.Context, items []models.OrderItem) error
}

type TicketIssuer interface {
	IssueTickets(ctx context.Context, order *models.Order, types map[string]models.TicketType) ([]models.Ticket, error)
	TicketsForOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
}

type KafkaPublisher interface {
	PublishOrderPaid(ctx context.Context, event models.OrderPaidEvent) error
}

type OrderService struct {
	DB      DBLayer
	Catalog Catalog
	Tickets TicketIssuer
	Kafka   KafkaPublisher
	Logger  *logger.Logger
	now     func() time.Time
}

func NewOrderService(db DBLayer, catalog Catalog, tickets TicketIssuer, kafka KafkaPublisher, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, Catalog: catalog, Tickets: tickets, Kafka: kafka, Logger: log, now: time.Now}
}

// FulfilResult describes what a fulfilment call did.
type FulfilResult struct {
	Order   *models.Order
	Tickets []models.Ticket
	// Paid is true only for the call that moved the order from pending to
	// paid.
	Paid bool
}

// ---------------- ORDERS ----------------

// PlaceOrder records a pending order for a payment session.
func (s *OrderService) PlaceOrder(ctx context.Context, order *models.Order) error {
	order.Status = models.OrderStatusPending
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.clock().UTC()
	}
	if err := s.DB.CreateOrder(ctx, order); err != nil {
		return err
	}
	s.info(fmt.Sprintf("order %s placed for session %s", order.OrderID, order.CheckoutSessionID))
	return nil
}

// ResolveOrder finds the order of a checkout session, preferring the order
// id carried in the session metadata.
func (s *OrderService) ResolveOrder(ctx context.Context, orderID, sessionID string) (*models.Order, error) {
	if orderID == "" {
		return s.DB.GetOrderBySessionID(ctx, sessionID)
	}
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if sessionID != "" && order.CheckoutSessionID != "" && order.CheckoutSessionID != sessionID {
		return nil, fmt.Errorf("%w: order %s belongs to another session", models.ErrOrderNotFound, orderID)
	}
	return order, nil
}

// FulfilOrder issues the tickets of a paid order and marks it paid. It is
// safe to call for every delivery of the payment notification: tickets
// are issued with deterministic ids, and only the call that wins the
// pending → paid transition updates sold counts and publishes the event.
func (s *OrderService) FulfilOrder(ctx context.Context, orderID, sessionID string) (*FulfilResult, error) {
	order, err := s.ResolveOrder(ctx, orderID, sessionID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: %s", ErrOrderCancelled, order.OrderID)
	}

	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.TicketTypeID)
	}
	types, err := s.Catalog.GetTicketTypesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ticket types for order %s: %w", order.OrderID, err)
	}

	tickets, err := s.Tickets.IssueTickets(ctx, order, types)
	if err != nil {
		return nil, err
	}

	paidAt := s.clock().UTC()
	won, err := s.DB.MarkPaid(ctx, order.OrderID, paidAt)
	if err != nil {
		return nil, err
	}
	result := &FulfilResult{Order: order, Tickets: tickets, Paid: won}
	if !won {
		return result, nil
	}

	order.Status = models.OrderStatusPaid
	order.PaidAt = &paidAt
	metrics.TrackTicketsIssued(len(tickets))
	s.info(fmt.Sprintf("order %s paid, %d tickets issued", order.OrderID, len(tickets)))

	if err := s.Catalog.IncrementSold(ctx, order.Items); err != nil {
		s.error(fmt.Sprintf("order %s paid but sold counts not updated: %v", order.OrderID, err))
	}
	if s.Kafka != nil {
		event := models.OrderPaidEvent{
			OrderID:   order.OrderID,
			UserID:    order.UserID,
			Total:     order.Total,
			Currency:  order.Currency,
			Tickets:   len(tickets),
			PaidAt:    paidAt,
			Items:     order.Items,
			SessionID: order.CheckoutSessionID,
		}
		if err := s.Kafka.PublishOrderPaid(ctx, event); err != nil {
			s.error(fmt.Sprintf("order %s paid but event not published: %v", order.OrderID, err))
		}
	}
	return result, nil
}

// CancelOrder cancels a pending order, e.g. when its payment session
// expired. Paid or already cancelled orders are left alone.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, sessionID string) (bool, error) {
	order, err := s.ResolveOrder(ctx, orderID, sessionID)
	if err != nil {
		return false, err
	}
	ok, err := s.DB.MarkCancelled(ctx, order.OrderID)
	if err != nil {
		return false, err
	}
	if ok {
		s.info(fmt.Sprintf("order %s cancelled", order.OrderID))
	}
	return ok, nil
}

func (s *OrderService) ListOrdersForUser(ctx context.Context, userID string) ([]models.OrderWithTickets, error) {
	return s.DB.GetOrdersWithTicketsByUserID(ctx, userID)
}

// GetOrderForUser returns the order with its tickets to its owner only.
func (s *OrderService) GetOrderForUser(ctx context.Context, orderID, userID string) (*models.OrderWithTickets, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrOrderNotFound
	}
	tickets, err := s.Tickets.TicketsForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return &models.OrderWithTickets{Order: *order, Tickets: tickets}, nil
}

func (s *OrderService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *OrderService) info(msg string) {
	if s.Logger != nil {
		s.Logger.Info("ORDER", msg)
	}
}

func (s *OrderService) error(msg string) {
	if s.Logger != nil {
		s.Logger.Error("ORDER", msg)
	}
}
