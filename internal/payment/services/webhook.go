package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/metrics"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type OrderFulfiller interface {
	FulfilOrder(ctx context.Context, orderID, sessionID string) (*order.FulfilResult, error)
	CancelOrder(ctx context.Context, orderID, sessionID string) (bool, error)
}

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error  // Underlying error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

type WebhookProcessor struct {
	Secret string
	Orders OrderFulfiller
	Logger *logger.Logger
}

func NewWebhookProcessor(secret string, orders OrderFulfiller, log *logger.Logger) *WebhookProcessor {
	return &WebhookProcessor{Secret: secret, Orders: orders, Logger: log}
}

// HandleWebhook verifies and applies one Stripe event. Every event type is
// safe to receive more than once.
func (p *WebhookProcessor) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if p.Secret == "" {
		p.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	opts := webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.Secret, opts)
	if err != nil {
		p.Logger.LogSecurity("webhook_signature", fmt.Sprintf("rejected Stripe webhook: %v", err))
		metrics.TrackWebhook("unverified", "rejected")
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook signature verification failed",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	eventType := string(event.Type)
	p.Logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event %s: %s", event.ID, eventType))

	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		err = p.fulfil(ctx, event)
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		err = p.cancel(ctx, event)
	default:
		p.Logger.Debug("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", eventType))
		metrics.TrackWebhook(eventType, "ignored")
		return nil
	}

	if err != nil {
		metrics.TrackWebhook(eventType, "error")
		return err
	}
	metrics.TrackWebhook(eventType, "ok")
	return nil
}

func (p *WebhookProcessor) fulfil(ctx context.Context, event stripe.Event) error {
	sess, err := decodeSession(event)
	if err != nil {
		return err
	}
	if !sessionPaid(sess) {
		// delayed payment methods complete later with async_payment_succeeded
		p.Logger.Info("WEBHOOK", fmt.Sprintf("Checkout session %s completed with payment status %s, waiting", sess.ID, sess.PaymentStatus))
		return nil
	}

	orderID := sess.Metadata[orderIDMetadataKey]
	result, err := p.Orders.FulfilOrder(ctx, orderID, sess.ID)
	switch {
	case errors.Is(err, order.ErrOrderCancelled):
		p.Logger.Warn("WEBHOOK", fmt.Sprintf("Payment received for cancelled order %s (session %s)", orderID, sess.ID))
		return nil
	case errors.Is(err, models.ErrOrderNotFound):
		return processingError(http.StatusNotFound, "Unknown order", fmt.Sprintf("No order for session %s (order_id=%q)", sess.ID, orderID), err)
	case err != nil:
		return processingError(http.StatusInternalServerError, "Failed to process payment", fmt.Sprintf("Failed to fulfil order %s: %v", orderID, err), err)
	}

	if result.Paid {
		p.Logger.Info("WEBHOOK", fmt.Sprintf("Order %s paid, %d tickets issued", result.Order.OrderID, len(result.Tickets)))
	} else {
		p.Logger.Info("WEBHOOK", fmt.Sprintf("Order %s already fulfilled, duplicate delivery ignored", result.Order.OrderID))
	}
	return nil
}

func (p *WebhookProcessor) cancel(ctx context.Context, event stripe.Event) error {
	sess, err := decodeSession(event)
	if err != nil {
		return err
	}

	orderID := sess.Metadata[orderIDMetadataKey]
	cancelled, err := p.Orders.CancelOrder(ctx, orderID, sess.ID)
	if errors.Is(err, models.ErrOrderNotFound) {
		p.Logger.Warn("WEBHOOK", fmt.Sprintf("No order to cancel for session %s", sess.ID))
		return nil
	}
	if err != nil {
		return processingError(http.StatusInternalServerError, "Failed to cancel order", fmt.Sprintf("Failed to cancel order for session %s: %v", sess.ID, err), err)
	}
	if cancelled {
		p.Logger.Info("WEBHOOK", fmt.Sprintf("Cancelled order for session %s", sess.ID))
	}
	return nil
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, processingError(http.StatusBadRequest, "Invalid event data", fmt.Sprintf("Failed to unmarshal checkout session: %v", err), err)
	}
	if sess.ID == "" {
		return nil, processingError(http.StatusBadRequest, "Invalid event data", "Checkout session has no id", nil)
	}
	return &sess, nil
}

func processingError(status int, public, internal string, err error) *WebhookError {
	return &WebhookError{
		Category:      "processing",
		StatusCode:    status,
		PublicError:   public,
		InternalError: internal,
		OriginalErr:   err,
	}
}
