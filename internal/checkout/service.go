package checkout

import (
	"context"
	"fmt"
	"strings"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/metrics"
	"ms-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the part of the cart aggregate checkout needs.
type Cart interface {
	Snapshot() ([]models.CartLine, uint64)
	Version() uint64
	TotalPrice() decimal.Decimal
	ClearCart(ctx context.Context)
}

type SessionCreator interface {
	CreateSession(ctx context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error)
}

// SessionExpirer is implemented by session creators that can close a
// session nobody will pay, releasing what was reserved for it.
type SessionExpirer interface {
	ExpireSession(ctx context.Context, session *models.PaymentSession) error
}

type SessionVerifier interface {
	IsPaid(ctx context.Context, sessionID string) (bool, error)
}

// Locker serializes checkouts of one user. Acquire reports false when
// another checkout holds the lock.
type Locker interface {
	Acquire(ctx context.Context, userID, token string) (bool, error)
	Release(ctx context.Context, userID, token string) error
}

type Service struct {
	Sessions   SessionCreator
	Verifier   SessionVerifier
	Lock       Locker
	Logger     *logger.Logger
	SuccessURL string
	CancelURL  string
	FeePercent decimal.Decimal
}

func NewService(sessions SessionCreator, verifier SessionVerifier, lock Locker, log *logger.Logger, successURL, cancelURL string, feePercent decimal.Decimal) *Service {
	return &Service{
		Sessions:   sessions,
		Verifier:   verifier,
		Lock:       lock,
		Logger:     log,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		FeePercent: feePercent,
	}
}

// InitiateCheckout asks the payment provider for a hosted session covering
// the cart. The cart is left intact so it survives an abandoned payment.
func (s *Service) InitiateCheckout(ctx context.Context, userID string, c Cart) (*models.CheckoutResult, error) {
	if strings.TrimSpace(userID) == "" {
		metrics.TrackCheckout("not_authenticated")
		return nil, models.ErrNotAuthenticated
	}
	lines, version := c.Snapshot()
	if len(lines) == 0 {
		metrics.TrackCheckout("empty_cart")
		return nil, models.ErrEmptyCart
	}

	if s.Lock != nil {
		token := uuid.NewString()
		ok, err := s.Lock.Acquire(ctx, userID, token)
		switch {
		case err != nil:
			s.warn(fmt.Sprintf("checkout lock unavailable for %s: %v", userID, err))
		case !ok:
			metrics.TrackCheckout("in_progress")
			return nil, models.ErrCheckoutInProgress
		default:
			defer func() {
				if err := s.Lock.Release(context.WithoutCancel(ctx), userID, token); err != nil {
					s.warn(fmt.Sprintf("release checkout lock for %s: %v", userID, err))
				}
			}()
		}
	}

	req := models.PaymentSessionRequest{
		UserID:        userID,
		TicketTypeIDs: make([]string, 0, len(lines)),
		Quantities:    make([]int, 0, len(lines)),
		SuccessURL:    s.SuccessURL,
		CancelURL:     s.CancelURL,
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		req.TicketTypeIDs = append(req.TicketTypeIDs, l.TicketTypeID)
		req.Quantities = append(req.Quantities, l.Quantity)
		subtotal = subtotal.Add(l.Subtotal())
	}

	session, err := s.Sessions.CreateSession(ctx, req)
	if err != nil {
		metrics.TrackCheckout("failed")
		s.log("failed", userID, err.Error())
		return nil, fmt.Errorf("%w: %w", models.ErrPaymentSessionFailed, err)
	}

	if c.Version() != version {
		metrics.TrackCheckout("stale")
		s.log("stale", userID, "cart changed while session "+session.ID+" was being created")
		if expirer, ok := s.Sessions.(SessionExpirer); ok {
			if err := expirer.ExpireSession(context.WithoutCancel(ctx), session); err != nil {
				s.warn(fmt.Sprintf("expire stale session %s: %v", session.ID, err))
			}
		}
		return nil, models.ErrStaleCheckout
	}

	metrics.TrackCheckout("created")
	s.log("created", userID, fmt.Sprintf("session %s for %d lines", session.ID, len(lines)))

	return &models.CheckoutResult{
		SessionID:    session.ID,
		RedirectURL:  session.URL,
		OrderID:      session.OrderID,
		DisplayQuote: QuoteFor(subtotal, s.FeePercent),
	}, nil
}

// ConfirmReturn handles the redirect back from the provider. The cart is
// cleared only once the provider reports the session paid; a repeated
// confirmation finds the cart already empty and succeeds.
func (s *Service) ConfirmReturn(ctx context.Context, sessionID string, c Cart) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: missing session id", models.ErrPaymentNotCompleted)
	}

	paid, err := s.Verifier.IsPaid(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: verify session %s: %w", models.ErrPaymentSessionFailed, sessionID, err)
	}
	if !paid {
		s.log("unpaid", sessionID, "return without completed payment")
		return models.ErrPaymentNotCompleted
	}

	c.ClearCart(ctx)
	s.log("confirmed", sessionID, "cart cleared")
	return nil
}

// Quote is the display total for the cart as it is now.
func (s *Service) Quote(c Cart) models.Quote {
	return QuoteFor(c.TotalPrice(), s.FeePercent)
}

// QuoteTotal is the display total for an already derived subtotal.
func (s *Service) QuoteTotal(subtotal decimal.Decimal) models.Quote {
	return QuoteFor(subtotal, s.FeePercent)
}

func (s *Service) log(action, subject, msg string) {
	if s.Logger != nil {
		s.Logger.LogCheckout(action, subject, msg)
	}
}

func (s *Service) warn(msg string) {
	if s.Logger != nil {
		s.Logger.Warn("CHECKOUT", msg)
	}
}
