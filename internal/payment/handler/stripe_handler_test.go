package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/payment/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockWebhooks struct {
	mock.Mock
}

func (m *MockWebhooks) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func serve(w WebhookHandler, body io.Reader, sig string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewStripeHandler(w, logger.NewWriterLogger(io.Discard)).Routes(r)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", body)
	req.Header.Set("Stripe-Signature", sig)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestStripeWebhook_Success(t *testing.T) {
	w := new(MockWebhooks)
	w.On("HandleWebhook", mock.Anything, []byte(`{"id":"evt_1"}`), "t=1,v1=abc").Return(nil)

	rr := serve(w, strings.NewReader(`{"id":"evt_1"}`), "t=1,v1=abc")

	assert.Equal(t, http.StatusOK, rr.Code)
	w.AssertExpectations(t)
}

func TestStripeWebhook_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad signature", &services.WebhookError{Category: "validation", StatusCode: http.StatusBadRequest, PublicError: "Webhook signature verification failed"}, http.StatusBadRequest},
		{"unknown order", &services.WebhookError{Category: "processing", StatusCode: http.StatusNotFound, PublicError: "Unknown order"}, http.StatusNotFound},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := new(MockWebhooks)
			w.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).Return(tt.err)

			rr := serve(w, strings.NewReader(`{}`), "sig")

			assert.Equal(t, tt.want, rr.Code)
			assert.NotContains(t, rr.Body.String(), "boom")
		})
	}
}

func TestStripeWebhook_BodyTooLarge(t *testing.T) {
	w := new(MockWebhooks)

	rr := serve(w, strings.NewReader(strings.Repeat("x", maxWebhookBody+1)), "sig")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	w.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}
