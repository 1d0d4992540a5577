package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		models.ErrNotAuthenticated:                                     http.StatusUnauthorized,
		models.ErrEmptyCart:                                            http.StatusBadRequest,
		fmt.Errorf("wrap: %w", models.ErrPaymentSessionFailed):         http.StatusBadGateway,
		&models.AlreadyUsedError{TicketID: "t", ScannedAt: time.Now()}: http.StatusConflict,
		models.ErrTicketNotFound:                                       http.StatusNotFound,
		models.ErrPaymentNotCompleted:                                  http.StatusPaymentRequired,
		models.ErrForbidden:                                            http.StatusForbidden,
		errors.New("boom"):                                             http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, "Failed to load tickets", errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, "Failed to load tickets", body.Message)
}
