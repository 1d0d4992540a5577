package services

import (
	"context"
	"errors"
	"fmt"

	"ms-storefront/internal/checkout"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
)

const orderIDMetadataKey = "order_id"

// CheckoutSessionAPI is the part of the Stripe client used here. The
// CheckoutSessions client of stripe-go satisfies it.
type CheckoutSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

type Catalog interface {
	GetTicketTypesByIDs(ctx context.Context, ids []string) (map[string]models.TicketType, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *models.Order) error
	CancelOrder(ctx context.Context, orderID, sessionID string) (bool, error)
}

// StripeService creates hosted checkout sessions priced from the catalog
// and answers whether a session was paid.
type StripeService struct {
	sessions   CheckoutSessionAPI
	catalog    Catalog
	orders     OrderPlacer
	currency   string
	feePercent decimal.Decimal
	log        *logger.Logger
	newID      func() string
}

// NewStripeService creates a new instance of StripeService
func NewStripeService(secretKey string, catalog Catalog, orders OrderPlacer, currency string, feePercent decimal.Decimal, log *logger.Logger) (*StripeService, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return NewStripeServiceWithAPI(sc.CheckoutSessions, catalog, orders, currency, feePercent, log), nil
}

func NewStripeServiceWithAPI(sessions CheckoutSessionAPI, catalog Catalog, orders OrderPlacer, currency string, feePercent decimal.Decimal, log *logger.Logger) *StripeService {
	return &StripeService{
		sessions:   sessions,
		catalog:    catalog,
		orders:     orders,
		currency:   currency,
		feePercent: feePercent,
		log:        log,
		newID:      uuid.NewString,
	}
}

// CreateSession prices the requested ticket types from the catalog,
// opens a Stripe Checkout Session for them and records a pending order.
// Nothing in the request is trusted as a price.
func (s *StripeService) CreateSession(ctx context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error) {
	items, err := orderItems(req)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.TicketTypeID
	}
	types, err := s.catalog.GetTicketTypesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ticket types: %w", err)
	}

	subtotal := decimal.Zero
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items)+1)
	for _, item := range items {
		tt, ok := types[item.TicketTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownTicketType, item.TicketTypeID)
		}
		if tt.Remaining() < item.Quantity {
			return nil, fmt.Errorf("%w: %s has %d left", models.ErrSoldOut, tt.Name, tt.Remaining())
		}
		subtotal = subtotal.Add(tt.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lineItems = append(lineItems, s.lineItem(tt.Name, tt.Price, item.Quantity))
	}

	quote := checkout.QuoteFor(subtotal, s.feePercent)
	if quote.ServiceFee.IsPositive() {
		lineItems = append(lineItems, s.lineItem("Service fee", quote.ServiceFee, 1))
	}

	orderID := s.newID()
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
	}
	params.Context = ctx
	params.AddMetadata(orderIDMetadataKey, orderID)

	sess, err := s.sessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for order %s: %v", orderID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	order := &models.Order{
		OrderID:           orderID,
		UserID:            req.UserID,
		CheckoutSessionID: sess.ID,
		Subtotal:          quote.Subtotal,
		ServiceFee:        quote.ServiceFee,
		Total:             quote.Total,
		Currency:          s.currency,
		Items:             items,
	}
	if err := s.orders.PlaceOrder(ctx, order); err != nil {
		// the session is left to expire unpaid
		s.log.Error("STRIPE", fmt.Sprintf("Checkout session %s created but order %s not recorded: %v", sess.ID, orderID, err))
		return nil, err
	}

	s.log.Info("STRIPE", fmt.Sprintf("Created checkout session %s for order %s (%s %s)", sess.ID, orderID, quote.Total.StringFixed(2), s.currency))
	return &models.PaymentSession{
		ID:          sess.ID,
		URL:         sess.URL,
		OrderID:     orderID,
		AmountTotal: quote.Total,
	}, nil
}

// IsPaid reports whether the checkout session has been paid.
func (s *StripeService) IsPaid(ctx context.Context, sessionID string) (bool, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.sessions.Get(sessionID, params)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	return sessionPaid(sess), nil
}

// ExpireSession closes an open checkout session and cancels its pending
// order. The order is cancelled even when Stripe refuses the expiry so the
// reservation does not linger.
func (s *StripeService) ExpireSession(ctx context.Context, session *models.PaymentSession) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	_, expireErr := s.sessions.Expire(session.ID, params)
	if expireErr != nil {
		s.log.Warn("STRIPE", fmt.Sprintf("Failed to expire checkout session %s: %v", session.ID, expireErr))
		expireErr = fmt.Errorf("%w: %v", ErrStripeAPIError, expireErr)
	}

	if _, err := s.orders.CancelOrder(ctx, session.OrderID, session.ID); err != nil {
		return errors.Join(expireErr, fmt.Errorf("cancel order %s: %w", session.OrderID, err))
	}
	s.log.Info("STRIPE", fmt.Sprintf("Expired checkout session %s, order %s cancelled", session.ID, session.OrderID))
	return expireErr
}

func sessionPaid(sess *stripe.CheckoutSession) bool {
	return sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}

func (s *StripeService) lineItem(name string, unitPrice decimal.Decimal, quantity int) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(s.currency),
			UnitAmount: stripe.Int64(MinorUnits(unitPrice)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
		Quantity: stripe.Int64(int64(quantity)),
	}
}

// MinorUnits converts an amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// orderItems pairs ids with quantities, merging repeated ids.
func orderItems(req models.PaymentSessionRequest) ([]models.OrderItem, error) {
	if len(req.TicketTypeIDs) == 0 {
		return nil, models.ErrEmptyCart
	}
	if len(req.TicketTypeIDs) != len(req.Quantities) {
		return nil, fmt.Errorf("%w: %d ticket types but %d quantities", models.ErrInvalidLine, len(req.TicketTypeIDs), len(req.Quantities))
	}

	index := make(map[string]int, len(req.TicketTypeIDs))
	var items []models.OrderItem
	for i, id := range req.TicketTypeIDs {
		q := req.Quantities[i]
		if id == "" || q <= 0 {
			return nil, fmt.Errorf("%w: ticket type %q quantity %d", models.ErrInvalidLine, id, q)
		}
		if j, ok := index[id]; ok {
			items[j].Quantity += q
			continue
		}
		index[id] = len(items)
		items = append(items, models.OrderItem{TicketTypeID: id, Quantity: q})
	}
	return items, nil
}
