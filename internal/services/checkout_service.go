package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/checkout"
	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/installment"
	"checkout-service/internal/pricing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionLease = 30 * time.Second

var ErrNotAwaitingPayment = errors.New("checkout session is not waiting for a payment")

type SessionStore interface {
	Save(ctx context.Context, st *checkout.State) error
	Load(ctx context.Context, id string) (*checkout.State, error)
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, lease time.Duration) (func(), error)
}

type PaymentAwaiter interface {
	Await(ctx context.Context, orderCode string) (checkout.Outcome, error)
}

// CheckoutView is a session together with the numbers derived from it.
type CheckoutView struct {
	Session     *checkout.State   `json:"session"`
	Step        string            `json:"step"`
	Quote       pricing.Quote     `json:"quote"`
	Installment *installment.Plan `json:"installment,omitempty"`
}

// CheckoutService keeps checkout sessions in a store between requests and
// drives the state machine for each one.
type CheckoutService struct {
	sessions SessionStore
	catalog  infra.CatalogClientInterface
	engine   *pricing.Engine
	orders   checkout.Submitter
	handoff  checkout.Handoff
	awaiter  PaymentAwaiter
	logger   *zap.Logger
	now      func() time.Time
}

func NewCheckoutService(
	sessions SessionStore,
	catalog infra.CatalogClientInterface,
	engine *pricing.Engine,
	orders checkout.Submitter,
	handoff checkout.Handoff,
	awaiter PaymentAwaiter,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		catalog:  catalog,
		engine:   engine,
		orders:   orders,
		handoff:  handoff,
		awaiter:  awaiter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start snapshots promotions and showrooms and opens a session on the cart
// review step.
func (s *CheckoutService) Start(ctx context.Context, cart []domain.CartLine) (*CheckoutView, error) {
	if len(cart) > 1 {
		return nil, domain.ErrMultiItemNotSupported
	}

	snap := checkout.Snapshot{TakenAt: s.now()}
	if len(cart) == 1 {
		promos, err := s.catalog.GetPromotions(ctx, cart[0].ProductRef)
		if err != nil {
			return nil, fmt.Errorf("load promotions: %w", err)
		}
		snap.Promotions = promos
	}
	showrooms, err := s.catalog.ListShowrooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load showrooms: %w", err)
	}
	snap.Showrooms = showrooms

	m, err := checkout.Start(uuid.NewString(), cart, snap, s.engine)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, m.State()); err != nil {
		return nil, err
	}

	s.logger.Info("checkout started", zap.String("session_id", m.State().ID))
	return s.view(m)
}

func (s *CheckoutService) Get(ctx context.Context, id string) (*CheckoutView, error) {
	st, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(checkout.Resume(st, s.engine))
}

func (s *CheckoutService) ConfirmCart(ctx context.Context, id string) (*CheckoutView, error) {
	return s.mutate(ctx, id, func(m *checkout.Machine) error {
		return m.ConfirmCart()
	})
}

func (s *CheckoutService) ChoosePayment(ctx context.Context, id string, method domain.PaymentMethod, months int, channel domain.InstallmentChannel) (*CheckoutView, error) {
	return s.mutate(ctx, id, func(m *checkout.Machine) error {
		return m.ChoosePayment(method, months, channel)
	})
}

func (s *CheckoutService) SubmitCustomer(ctx context.Context, id string, info domain.CustomerInfo) (*CheckoutView, error) {
	return s.mutate(ctx, id, func(m *checkout.Machine) error {
		return m.SubmitCustomer(info)
	})
}

func (s *CheckoutService) ChooseFulfillment(ctx context.Context, id string, f checkout.Fulfillment) (*CheckoutView, error) {
	return s.mutate(ctx, id, func(m *checkout.Machine) error {
		return m.ChooseFulfillment(f)
	})
}

// Confirm creates the order and its first payment intent.
func (s *CheckoutService) Confirm(ctx context.Context, id string) (*CheckoutView, error) {
	return s.mutate(ctx, id, func(m *checkout.Machine) error {
		return m.Confirm(ctx, s.orders, s.handoff)
	})
}

func (s *CheckoutService) Back(ctx context.Context, id string) (*CheckoutView, error) {
	return s.mutate(ctx, id, func(m *checkout.Machine) error {
		return m.Back()
	})
}

// Await waits for the payment outcome without holding the session lock, then
// records the result on the session.
func (s *CheckoutService) Await(ctx context.Context, id string) (*CheckoutView, error) {
	st, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Step != checkout.StepProcessing || st.OrderCode == "" {
		return nil, fmt.Errorf("%w: at %s", ErrNotAwaitingPayment, st.Step)
	}

	out, err := s.awaiter.Await(ctx, st.OrderCode)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(m *checkout.Machine) error {
		if m.Step() != checkout.StepProcessing {
			return nil
		}
		if out.Pending {
			return m.MarkPending()
		}
		return m.Resolve(out)
	})
}

// Abandon drops the session. The order, if one was created, is unaffected.
func (s *CheckoutService) Abandon(ctx context.Context, id string) error {
	unlock, err := s.sessions.Lock(ctx, id, sessionLease)
	if err != nil {
		return err
	}
	defer unlock()
	return s.sessions.Delete(ctx, id)
}

// mutate saves the session even when fn fails: a confirm that created the
// order but not the intent has to remember the order code.
func (s *CheckoutService) mutate(ctx context.Context, id string, fn func(m *checkout.Machine) error) (*CheckoutView, error) {
	unlock, err := s.sessions.Lock(ctx, id, sessionLease)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m := checkout.Resume(st, s.engine)
	before := m.Step()

	fnErr := fn(m)
	if err := s.sessions.Save(ctx, m.State()); err != nil {
		return nil, err
	}
	if fnErr != nil {
		if !domain.IsValidation(fnErr) {
			s.logger.Warn("checkout step failed",
				zap.String("session_id", id),
				zap.String("step", before.String()),
				zap.String("order_code", m.State().OrderCode),
				zap.Error(fnErr),
			)
		}
		return nil, fnErr
	}

	if m.Step() != before {
		s.logger.Debug("checkout step changed",
			zap.String("session_id", id),
			zap.String("from", before.String()),
			zap.String("to", m.Step().String()),
		)
	}
	return s.view(m)
}

func (s *CheckoutService) view(m *checkout.Machine) (*CheckoutView, error) {
	v := &CheckoutView{
		Session: m.State(),
		Step:    m.Step().String(),
		Quote:   m.Quote(),
	}
	plan, ok, err := m.Installment()
	if err != nil {
		return nil, err
	}
	if ok {
		v.Installment = &plan
	}
	return v, nil
}
