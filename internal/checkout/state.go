package checkout

import (
	"context"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/pricing"
)

type Step int

const (
	StepCartReview Step = iota + 1
	StepPaymentMethod
	StepCustomerInfo
	StepFulfillment
	StepGatewayHandoff
	StepProcessing
	StepResult
)

var stepNames = map[Step]string{
	StepCartReview:     "cart_review",
	StepPaymentMethod:  "payment_method",
	StepCustomerInfo:   "customer_info",
	StepFulfillment:    "showroom_selection",
	StepGatewayHandoff: "gateway_handoff",
	StepProcessing:     "processing",
	StepResult:         "result",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// Fulfillment is either a showroom pickup or delivery to an address.
type Fulfillment struct {
	ShowroomID    string `json:"showroomId,omitempty"`
	ShipToAddress bool   `json:"shipToAddress"`
	Address       string `json:"address,omitempty"`
}

type Outcome struct {
	Success   bool               `json:"success"`
	Pending   bool               `json:"pending"`
	Status    domain.OrderStatus `json:"status,omitempty"`
	Message   string             `json:"message,omitempty"`
	OrderCode string             `json:"orderCode,omitempty"`
}

// Snapshot is the catalog data a session prices against. It is captured once
// when the session starts so every step sees the same numbers.
type Snapshot struct {
	Promotions []domain.Promotion `json:"promotions"`
	Showrooms  []domain.Showroom  `json:"showrooms"`
	TakenAt    time.Time          `json:"takenAt"`
}

// State is one customer's checkout session. Only Machine methods mutate it.
type State struct {
	ID                 string                    `json:"id"`
	Step               Step                      `json:"step"`
	Cart               []domain.CartLine         `json:"cart"`
	Snapshot           Snapshot                  `json:"snapshot"`
	PaymentMethod      domain.PaymentMethod      `json:"paymentMethod,omitempty"`
	InstallmentMonths  int                       `json:"installmentMonths,omitempty"`
	InstallmentChannel domain.InstallmentChannel `json:"installmentChannel,omitempty"`
	Customer           *domain.CustomerInfo      `json:"customer,omitempty"`
	Fulfillment        *Fulfillment              `json:"fulfillment,omitempty"`
	OrderCode          string                    `json:"orderCode,omitempty"`
	Intent             *domain.PaymentIntent     `json:"intent,omitempty"`
	Outcome            *Outcome                  `json:"outcome,omitempty"`
}

// Submission is the accumulated checkout data handed to order creation.
type Submission struct {
	SessionID          string
	Line               domain.CartLine
	Quote              pricing.Quote
	PaymentMethod      domain.PaymentMethod
	InstallmentMonths  int
	InstallmentChannel domain.InstallmentChannel
	Customer           domain.CustomerInfo
	Fulfillment        Fulfillment
}

type Submitter interface {
	Submit(ctx context.Context, sub Submission) (string, error)
}

type Handoff interface {
	CreateIntent(ctx context.Context, orderCode string) (*domain.PaymentIntent, error)
}
