package gateway

import (
	"context"
	"errors"

	"checkout-service/internal/domain"
)

// ErrIgnoredEvent marks a verified webhook that carries nothing to reconcile.
var ErrIgnoredEvent = errors.New("webhook event ignored")

// ErrInvalidSignature marks a webhook that failed verification.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

type Gateway interface {
	// CreatePaymentIntent fails with domain.ErrGatewayUnavailable when a retry
	// may succeed and with domain.ErrInvalidAmount when it never will.
	CreatePaymentIntent(ctx context.Context, orderCode string, tranche domain.Tranche, amount int64, method domain.PaymentMethod) (*domain.PaymentIntent, error)
	QueryPaymentStatus(ctx context.Context, intentID string) (*domain.PaymentNotification, error)
	// ParseWebhook verifies the payload before decoding it.
	ParseWebhook(payload []byte, signature string) (*domain.PaymentNotification, error)
}

var _ Gateway = (*StripeGateway)(nil)
