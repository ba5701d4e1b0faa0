package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMultiItemNotSupported    = errors.New("only one vehicle per order is supported")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrInvalidAmount            = errors.New("payment amount does not match any expected tranche")
	ErrIllegalStatusTransition  = errors.New("illegal order status transition")
	ErrInvalidTerm              = errors.New("unsupported installment term")
	ErrOrderNotFound            = errors.New("order not found")
	ErrCancellationWindowClosed = errors.New("cancellation window has closed")
	ErrNoPendingPayment         = errors.New("order has no pending payment")
)

// ValidationError is a recoverable input problem on the current checkout step.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type IllegalStatusTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *IllegalStatusTransitionError) Error() string {
	return fmt.Sprintf("illegal order status transition %s -> %s", e.From, e.To)
}

func (e *IllegalStatusTransitionError) Is(target error) bool {
	return target == ErrIllegalStatusTransition
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
