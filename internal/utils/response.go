package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-storefront/internal/models"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now().UTC(),
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as an ErrorResponse using StatusFor. Unmapped
// errors become a 500 without leaking their text.
func WriteError(w http.ResponseWriter, message string, err error) {
	status := StatusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}
	WriteJSON(w, status, ErrorResponse(message, detail))
}

// StatusFor maps domain sentinels to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrInvalidLine):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrTicketNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrEventNotFound),
		errors.Is(err, models.ErrProfileNotFound),
		errors.Is(err, models.ErrUnknownTicketType):
		return http.StatusNotFound
	case errors.Is(err, models.ErrTicketAlreadyUsed),
		errors.Is(err, models.ErrTicketVoid),
		errors.Is(err, models.ErrCheckoutInProgress),
		errors.Is(err, models.ErrStaleCheckout),
		errors.Is(err, models.ErrSoldOut):
		return http.StatusConflict
	case errors.Is(err, models.ErrPaymentNotCompleted):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrPaymentSessionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
