package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrNotAuthenticated     = errors.New("user is not authenticated")
	ErrPaymentSessionFailed = errors.New("payment session creation failed")
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrStaleCheckout        = errors.New("cart changed during checkout")
	ErrInvalidLine          = errors.New("invalid cart line")
	ErrUnknownTicketType    = errors.New("unknown ticket type")
	ErrSoldOut              = errors.New("ticket type sold out")
	ErrStorageUnavailable   = errors.New("cart storage unavailable")
	ErrTicketNotFound       = errors.New("unknown ticket")
	ErrTicketAlreadyUsed    = errors.New("ticket already used")
	ErrTicketVoid           = errors.New("ticket has been voided")
	ErrOrderNotFound        = errors.New("order not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrForbidden            = errors.New("forbidden")
)

// AlreadyUsedError carries the prior scan time so the operator can see
// when the ticket was first admitted.
type AlreadyUsedError struct {
	TicketID  string
	ScannedAt time.Time
}

func (e *AlreadyUsedError) Error() string {
	return fmt.Sprintf("ticket %s already used at %s", e.TicketID, e.ScannedAt.Format(time.RFC3339))
}

func (e *AlreadyUsedError) Is(target error) bool {
	return target == ErrTicketAlreadyUsed
}
