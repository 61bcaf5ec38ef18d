package payments

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrInvalidAmount    = errors.New("amount must be a positive whole number")
	ErrInvalidPhone     = errors.New("phoneNumber is required")
	ErrVelocityExceeded = errors.New("too many payment attempts for this phone number")
	ErrPermissionDenied = errors.New("caller is not allowed to view this payment")
)

// GatewayError carries the upstream status and body so callers can surface
// the provider's own diagnostics instead of a generic failure.
type GatewayError struct {
	StatusCode int
	Body       []byte
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payments: gateway status %d: %s", e.StatusCode, e.Body)
}
