package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCallback      = errors.New("not valid result from PayTabs")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrRefundNotAllowed     = errors.New("payment state does not allow refunds")
	ErrRefundAmountExceeded = errors.New("refund amount exceeds remaining balance")
	ErrInvalidRefundAmount  = errors.New("refund amount must be positive")
	ErrRefundPending        = errors.New("refund is pending confirmation from PayTabs")
)

// GatewayError wraps a transport or processing fault talking to PayTabs.
type GatewayError struct {
	Op      string
	TranRef string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("paytabs %s failed for transaction %s: %v", e.Op, e.TranRef, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// RefundPreconditionError is returned before any gateway call when a refund
// cannot be attempted.
type RefundPreconditionError struct {
	PaymentID int64
	Err       error
}

func (e *RefundPreconditionError) Error() string {
	return fmt.Sprintf("refund of payment %d rejected: %v", e.PaymentID, e.Err)
}

func (e *RefundPreconditionError) Unwrap() error { return e.Err }

// RefundDeclinedError is a definitive refusal from the gateway.
type RefundDeclinedError struct {
	TranRef string
	Message string
}

func (e *RefundDeclinedError) Error() string {
	return fmt.Sprintf("refund declined for transaction %s: %s", e.TranRef, e.Message)
}

// ErrPayPageRejected is returned when PayTabs answers without a redirect URL.
var ErrPayPageRejected = errors.New("PayTabs did not return a payment page")
