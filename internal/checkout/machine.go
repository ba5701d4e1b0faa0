// Package checkout holds the checkout session state machine. Steps advance one
// at a time and each transition validates its own input before moving on.
// No order exists until the gateway handoff step is confirmed.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkout-service/internal/domain"
	"checkout-service/internal/installment"
	"checkout-service/internal/pricing"
)

var (
	ErrStepOutOfOrder = errors.New("checkout step out of order")
	ErrCannotGoBack   = errors.New("cannot go back from this checkout step")
	ErrEmptyCart      = errors.New("cart is empty")
)

type Machine struct {
	state  *State
	engine *pricing.Engine
}

// Start opens a session on step 1. Carts with more than one line are refused
// so the caller can send the customer back to cart editing.
func Start(id string, cart []domain.CartLine, snap Snapshot, engine *pricing.Engine) (*Machine, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	if len(cart) > 1 {
		return nil, domain.ErrMultiItemNotSupported
	}
	if err := cart[0].Validate(); err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, len(cart))
	copy(lines, cart)
	st := &State{
		ID:       id,
		Step:     StepCartReview,
		Cart:     lines,
		Snapshot: snap,
	}
	return &Machine{state: st, engine: engine}, nil
}

// Resume wraps a previously saved state.
func Resume(st *State, engine *pricing.Engine) *Machine {
	return &Machine{state: st, engine: engine}
}

func (m *Machine) State() *State {
	return m.state
}

func (m *Machine) Step() Step {
	return m.state.Step
}

func (m *Machine) Quote() pricing.Quote {
	return m.engine.Quote(m.state.Cart, m.state.Snapshot.Promotions, m.state.Snapshot.TakenAt)
}

// Installment returns the plan for the chosen term, or false when the session
// is not paying by installment.
func (m *Machine) Installment() (installment.Plan, bool, error) {
	if m.state.PaymentMethod != domain.MethodInstallment || m.state.InstallmentMonths == 0 {
		return installment.Plan{}, false, nil
	}
	plan, err := installment.PolicyFor(m.state.InstallmentChannel).Plan(m.Quote().Total, m.state.InstallmentMonths)
	if err != nil {
		return installment.Plan{}, false, err
	}
	return plan, true, nil
}

func (m *Machine) ConfirmCart() error {
	if err := m.expect(StepCartReview); err != nil {
		return err
	}
	m.state.Step = StepPaymentMethod
	return nil
}

func (m *Machine) ChoosePayment(method domain.PaymentMethod, months int, channel domain.InstallmentChannel) error {
	if err := m.expect(StepPaymentMethod); err != nil {
		return err
	}
	if !method.Valid() {
		return domain.NewValidationError("paymentMethod", "choose a payment method")
	}

	if method == domain.MethodInstallment {
		if months <= 0 {
			return domain.NewValidationError("installmentMonths", "choose an installment term")
		}
		if channel == "" {
			channel = domain.ChannelFinance
		}
		if channel != domain.ChannelFinance && channel != domain.ChannelCreditCard {
			return domain.NewValidationError("installmentChannel", "unknown installment channel")
		}
		if _, err := installment.PolicyFor(channel).Rate(months); err != nil {
			return domain.NewValidationError("installmentMonths", err.Error())
		}
	} else {
		months = 0
		channel = ""
	}

	m.state.PaymentMethod = method
	m.state.InstallmentMonths = months
	m.state.InstallmentChannel = channel
	m.state.Step = StepCustomerInfo
	return nil
}

func (m *Machine) SubmitCustomer(info domain.CustomerInfo) error {
	if err := m.expect(StepCustomerInfo); err != nil {
		return err
	}
	info.Name = strings.TrimSpace(info.Name)
	info.Phone = strings.TrimSpace(info.Phone)
	if err := validateCustomer(info); err != nil {
		return err
	}
	m.state.Customer = &info
	m.state.Step = StepFulfillment
	return nil
}

func (m *Machine) ChooseFulfillment(f Fulfillment) error {
	if err := m.expect(StepFulfillment); err != nil {
		return err
	}

	switch {
	case f.ShipToAddress:
		f.ShowroomID = ""
		f.Address = strings.TrimSpace(f.Address)
		if f.Address == "" && m.state.Customer != nil {
			f.Address = m.state.Customer.Address
		}
		if f.Address == "" {
			return domain.NewValidationError("address", "a delivery address is required")
		}
	case f.ShowroomID != "":
		if !m.knownShowroom(f.ShowroomID) {
			return domain.NewValidationError("showroomId", "unknown showroom")
		}
		f.Address = ""
	default:
		return domain.NewValidationError("showroomId", "select a showroom or delivery to an address")
	}

	m.state.Fulfillment = &f
	m.state.Step = StepGatewayHandoff
	return nil
}

// Confirm creates the order and the first payment intent. The order is
// submitted at most once per session: when intent creation fails after a
// successful submission, a retry only repeats the gateway handoff.
func (m *Machine) Confirm(ctx context.Context, submitter Submitter, handoff Handoff) error {
	if err := m.expect(StepGatewayHandoff); err != nil {
		return err
	}

	if m.state.OrderCode == "" {
		code, err := submitter.Submit(ctx, m.submission())
		if err != nil {
			return fmt.Errorf("submit order: %w", err)
		}
		m.state.OrderCode = code
	}

	intent, err := handoff.CreateIntent(ctx, m.state.OrderCode)
	if err != nil {
		return fmt.Errorf("create payment intent for %s: %w", m.state.OrderCode, err)
	}

	m.state.Intent = intent
	m.state.Step = StepProcessing
	return nil
}

// Resolve leaves the processing step once reconciliation has an answer.
func (m *Machine) Resolve(outcome Outcome) error {
	if err := m.expect(StepProcessing); err != nil {
		return err
	}
	outcome.Pending = false
	outcome.OrderCode = m.state.OrderCode
	m.state.Outcome = &outcome
	m.state.Step = StepResult
	return nil
}

// MarkPending records that the bounded wait ran out. The session stays on the
// processing step; the payment itself is untouched.
func (m *Machine) MarkPending() error {
	if err := m.expect(StepProcessing); err != nil {
		return err
	}
	m.state.Outcome = &Outcome{
		Pending:   true,
		Status:    domain.StatusPendingPayment,
		Message:   "payment pending, check status later",
		OrderCode: m.state.OrderCode,
	}
	return nil
}

// Back moves to the previous step and drops everything entered on that step
// and after it, so it has to be validated again.
func (m *Machine) Back() error {
	switch m.state.Step {
	case StepPaymentMethod:
		m.state.PaymentMethod = ""
		m.state.InstallmentMonths = 0
		m.state.InstallmentChannel = ""
		m.state.Customer = nil
		m.state.Fulfillment = nil
	case StepCustomerInfo:
		m.state.Customer = nil
		m.state.Fulfillment = nil
	case StepFulfillment:
		m.state.Fulfillment = nil
	case StepGatewayHandoff:
		if m.state.OrderCode != "" {
			return fmt.Errorf("%w: order %s already created", ErrCannotGoBack, m.state.OrderCode)
		}
		m.state.Fulfillment = nil
	default:
		return fmt.Errorf("%w: %s", ErrCannotGoBack, m.state.Step)
	}
	m.state.Step--
	return nil
}

func (m *Machine) submission() Submission {
	sub := Submission{
		SessionID:          m.state.ID,
		Line:               m.state.Cart[0],
		Quote:              m.Quote(),
		PaymentMethod:      m.state.PaymentMethod,
		InstallmentMonths:  m.state.InstallmentMonths,
		InstallmentChannel: m.state.InstallmentChannel,
	}
	if m.state.Customer != nil {
		sub.Customer = *m.state.Customer
	}
	if m.state.Fulfillment != nil {
		sub.Fulfillment = *m.state.Fulfillment
	}
	return sub
}

func (m *Machine) knownShowroom(id string) bool {
	for _, s := range m.state.Snapshot.Showrooms {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (m *Machine) expect(step Step) error {
	if m.state.Step != step {
		return fmt.Errorf("%w: at %s, expected %s", ErrStepOutOfOrder, m.state.Step, step)
	}
	return nil
}
