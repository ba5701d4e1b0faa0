package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"checkout-service/internal/domain"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

const (
	metaOrderCode = "order_code"
	metaTranche   = "tranche"
	metaMethod    = "payment_method"
)

// StripeGateway uses PaymentIntents. VND is a zero-decimal currency in
// Stripe, so amounts go through unchanged.
type StripeGateway struct {
	api        *client.API
	webhookKey string
	currency   string
}

func NewStripeGateway(secretKey, webhookKey, currency string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{api: sc, webhookKey: webhookKey, currency: strings.ToLower(currency)}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, orderCode string, tranche domain.Tranche, amount int64, method domain.PaymentMethod) (*domain.PaymentIntent, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metaOrderCode, orderCode)
	params.AddMetadata(metaTranche, string(tranche))
	params.AddMetadata(metaMethod, string(method))
	// Retries for the same tranche get the same intent back.
	params.SetIdempotencyKey(orderCode + ":" + string(tranche) + ":" + fmt.Sprint(amount))

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	return &domain.PaymentIntent{
		IntentID:  pi.ID,
		OrderCode: orderCode,
		Tranche:   tranche,
		Amount:    pi.Amount,
		Payload:   pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) QueryPaymentStatus(ctx context.Context, intentID string) (*domain.PaymentNotification, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return notificationFrom(pi), nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*domain.PaymentNotification, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	n := notificationFrom(&pi)
	if event.Type != "payment_intent.succeeded" {
		n.Status = domain.TxFailed
	}
	return n, nil
}

func notificationFrom(pi *stripe.PaymentIntent) *domain.PaymentNotification {
	n := &domain.PaymentNotification{
		OrderCode:     pi.Metadata[metaOrderCode],
		IntentID:      pi.ID,
		TransactionID: pi.ID,
		Amount:        pi.Amount,
		Status:        domain.TxInitiated,
	}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		n.TransactionID = pi.LatestCharge.ID
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		n.Status = domain.TxSucceeded
		if pi.AmountReceived > 0 {
			n.Amount = pi.AmountReceived
		}
	case stripe.PaymentIntentStatusCanceled:
		n.Status = domain.TxFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			n.Status = domain.TxFailed
		}
	}
	return n
}

func mapStripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	switch {
	case serr.HTTPStatusCode >= 500, serr.HTTPStatusCode == 429, serr.Type == stripe.ErrorTypeAPI:
		return fmt.Errorf("%w: %s", domain.ErrGatewayUnavailable, serr.Msg)
	case serr.Code == stripe.ErrorCodeAmountTooLarge, serr.Code == stripe.ErrorCodeAmountTooSmall, serr.Param == "amount":
		return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, serr.Msg)
	}
	return fmt.Errorf("stripe: %w", err)
}
