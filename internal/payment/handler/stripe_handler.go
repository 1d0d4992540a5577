package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/payment/services"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 65536

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type StripeHandler struct {
	webhooks WebhookHandler
	logger   *logger.Logger
}

func NewStripeHandler(webhooks WebhookHandler, logger *logger.Logger) *StripeHandler {
	return &StripeHandler{webhooks: webhooks, logger: logger}
}

func (h *StripeHandler) Routes(r chi.Router) {
	r.Post("/api/webhooks/stripe", h.StripeWebhook)
}

// StripeWebhook handles webhook events from Stripe
func (h *StripeHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("API", fmt.Sprintf("StripeWebhook: failed to read payload: %v", err))
		h.writeErrorResponse(w, "Invalid webhook payload", "payload unreadable or too large", http.StatusBadRequest)
		return
	}

	err = h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Error("API", fmt.Sprintf("StripeWebhook: failed to process webhook: %v", err))

		var webhookErr *services.WebhookError
		if errors.As(err, &webhookErr) {
			h.writeErrorResponse(w, webhookErr.PublicError, webhookErr.Category, webhookErr.StatusCode)
			return
		}
		h.writeErrorResponse(w, "Webhook processing error", "processing", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeHandler) writeErrorResponse(w http.ResponseWriter, message, details string, statusCode int) {
	utils.WriteJSON(w, statusCode, utils.ErrorResponse(message, details))
}
