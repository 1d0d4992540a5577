package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/metrics"
	"ms-storefront/internal/models"
	"ms-storefront/internal/tickets/pdf"
	"ms-storefront/internal/tickets/qr"

	"github.com/google/uuid"
)

type TicketDBLayer interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	ListTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	MarkScanned(ctx context.Context, ticketID, operator string, at time.Time) (bool, error)
	VoidTicket(ctx context.Context, ticketID string) (bool, error)
	CheckInStats(ctx context.Context, eventID string) (*models.CheckInStats, error)
}

type PayloadCodec interface {
	Encode(ticketID string) (string, error)
	Decode(payload string) (string, error)
}

type RedeemPublisher interface {
	PublishTicketRedeemed(ctx context.Context, event models.TicketRedeemedEvent) error
}

type ScanEmitter interface {
	Emit(result models.ScanResult)
}

type DocumentRenderer interface {
	Generate(ticket models.Ticket, qrCode []byte) ([]byte, error)
}

// ticketNamespace seeds deterministic ticket ids so an order re-issued by
// a repeated payment notification maps onto the same rows.
var ticketNamespace = uuid.MustParse("6f1d2c1e-5b8a-4e3f-9a57-2f4c8d0b7e61")

type TicketService struct {
	DB        TicketDBLayer
	Codec     PayloadCodec
	Events    RedeemPublisher
	Feed      ScanEmitter
	Logger    *logger.Logger
	QRSize    int
	Documents DocumentRenderer
	now       func() time.Time
}

func NewTicketService(db TicketDBLayer, codec PayloadCodec, events RedeemPublisher, feed ScanEmitter, log *logger.Logger, qrSize int) *TicketService {
	return &TicketService{
		DB:        db,
		Codec:     codec,
		Events:    events,
		Feed:      feed,
		Logger:    log,
		QRSize:    qrSize,
		Documents: pdf.NewTicketPDFGenerator(),
		now:       time.Now,
	}
}

// TicketID is the id of the n-th unit (1-based) of a ticket type in an order.
func TicketID(orderID, ticketTypeID string, n int) string {
	return uuid.NewSHA1(ticketNamespace, []byte(fmt.Sprintf("%s:%s:%d", orderID, ticketTypeID, n))).String()
}

// IssueTickets creates one ticket per purchased unit of the order and
// returns every ticket the order now has. Calling it again for the same
// order issues nothing new.
func (s *TicketService) IssueTickets(ctx context.Context, order *models.Order, types map[string]models.TicketType) ([]models.Ticket, error) {
	issuedAt := s.clock().UTC()

	var batch []models.Ticket
	for _, item := range order.Items {
		tt, ok := types[item.TicketTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownTicketType, item.TicketTypeID)
		}
		for n := 1; n <= item.Quantity; n++ {
			id := TicketID(order.OrderID, item.TicketTypeID, n)
			payload, err := s.Codec.Encode(id)
			if err != nil {
				return nil, fmt.Errorf("encode qr payload: %w", err)
			}
			batch = append(batch, models.Ticket{
				TicketID:        id,
				OrderID:         order.OrderID,
				UserID:          order.UserID,
				EventID:         tt.EventID,
				TicketTypeID:    tt.ID,
				TicketTypeName:  tt.Name,
				QRPayload:       payload,
				PriceAtPurchase: tt.Price,
				Status:          models.TicketStatusValid,
				IssuedAt:        issuedAt,
			})
		}
	}

	if err := s.DB.CreateTickets(ctx, batch); err != nil {
		return nil, fmt.Errorf("create tickets for order %s: %w", order.OrderID, err)
	}
	return s.DB.ListTicketsByOrder(ctx, order.OrderID)
}

// RedeemTicket admits the ticket behind a scanned payload at most once.
// The returned result is filled for rejections too so the operator sees
// why; the error tells which rejection it was.
func (s *TicketService) RedeemTicket(ctx context.Context, payload, operator string) (*models.ScanResult, error) {
	now := s.clock().UTC()
	result := &models.ScanResult{ScannedAt: now, Operator: operator}

	ticketID, err := s.Codec.Decode(payload)
	if err != nil {
		return s.reject(result, models.ScanUnknownTicket, "", models.ErrTicketNotFound)
	}
	result.TicketID = ticketID

	admitted, err := s.DB.MarkScanned(ctx, ticketID, operator, now)
	if err != nil {
		return nil, fmt.Errorf("redeem %s: %w", ticketID, err)
	}

	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if errors.Is(err, models.ErrTicketNotFound) {
		return s.reject(result, models.ScanUnknownTicket, ticketID, models.ErrTicketNotFound)
	}
	if err != nil {
		if admitted {
			// admission already happened; report it without the details
			result.Outcome, result.Accepted = models.ScanAccepted, true
			s.scanned(ctx, result)
			return result, nil
		}
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	result.EventID = ticket.EventID
	result.TicketTypeName = ticket.TicketTypeName

	if admitted {
		result.Outcome, result.Accepted = models.ScanAccepted, true
		s.scanned(ctx, result)
		return result, nil
	}

	switch {
	case ticket.ScannedAt != nil:
		prev := ticket.ScannedAt.UTC()
		result.PreviousScanAt = &prev
		return s.reject(result, models.ScanAlreadyUsed, ticketID, &models.AlreadyUsedError{TicketID: ticketID, ScannedAt: prev})
	case ticket.Status == models.TicketStatusVoid:
		return s.reject(result, models.ScanVoid, ticketID, models.ErrTicketVoid)
	default:
		return nil, fmt.Errorf("redeem %s: ticket in unexpected state %q", ticketID, ticket.Status)
	}
}

func (s *TicketService) scanned(ctx context.Context, result *models.ScanResult) {
	metrics.TrackScan(result.Outcome)
	s.logScan(result.Outcome, result.TicketID, "admitted by "+result.Operator)
	if s.Feed != nil {
		s.Feed.Emit(*result)
	}
	if s.Events != nil {
		err := s.Events.PublishTicketRedeemed(ctx, models.TicketRedeemedEvent{
			TicketID:  result.TicketID,
			EventID:   result.EventID,
			Operator:  result.Operator,
			ScannedAt: result.ScannedAt,
		})
		if err != nil && s.Logger != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("ticket %s redeemed but not published: %v", result.TicketID, err))
		}
	}
}

func (s *TicketService) reject(result *models.ScanResult, outcome, ticketID string, err error) (*models.ScanResult, error) {
	result.Outcome = outcome
	result.Accepted = false
	metrics.TrackScan(outcome)
	s.logScan(outcome, ticketID, err.Error())
	if s.Feed != nil {
		s.Feed.Emit(*result)
	}
	return result, err
}

// GetTicketForUser returns the ticket only to its owner. Other users get
// ErrTicketNotFound so ids cannot be probed.
func (s *TicketService) GetTicketForUser(ctx context.Context, ticketID, userID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, models.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *TicketService) ListMyTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.DB.ListTicketsByUser(ctx, userID)
}

func (s *TicketService) TicketsForOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	return s.DB.ListTicketsByOrder(ctx, orderID)
}

// TicketQRCode renders the owner's ticket payload as a PNG.
func (s *TicketService) TicketQRCode(ctx context.Context, ticketID, userID string) ([]byte, error) {
	ticket, err := s.GetTicketForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	return qr.PNG(ticket.QRPayload, s.QRSize)
}

// TicketPDF renders the owner's printable ticket.
func (s *TicketService) TicketPDF(ctx context.Context, ticketID, userID string) ([]byte, error) {
	ticket, err := s.GetTicketForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	code, err := qr.PNG(ticket.QRPayload, s.QRSize)
	if err != nil {
		return nil, err
	}
	return s.Documents.Generate(*ticket, code)
}

// VoidTicket cancels an unused ticket. Voiding twice is a no-op; a used
// ticket cannot be voided.
func (s *TicketService) VoidTicket(ctx context.Context, ticketID string) error {
	ok, err := s.DB.VoidTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("void %s: %w", ticketID, err)
	}
	if ok {
		s.logScan("void", ticketID, "ticket voided")
		return nil
	}

	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status == models.TicketStatusVoid {
		return nil
	}
	if ticket.ScannedAt != nil {
		return &models.AlreadyUsedError{TicketID: ticketID, ScannedAt: ticket.ScannedAt.UTC()}
	}
	return fmt.Errorf("void %s: ticket in unexpected state %q", ticketID, ticket.Status)
}

func (s *TicketService) CheckInStats(ctx context.Context, eventID string) (*models.CheckInStats, error) {
	return s.DB.CheckInStats(ctx, eventID)
}

func (s *TicketService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *TicketService) logScan(outcome, ticketID, msg string) {
	if s.Logger != nil {
		s.Logger.LogScan(outcome, ticketID, msg)
	}
}
