package mocks

import (
	"context"
	"time"

	"checkout-service/internal/checkout"
	"checkout-service/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockGateway struct {
	mock.Mock
}

type MockCatalogClient struct {
	mock.Mock
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, pattern string, data any) error {
	args := m.Called(ctx, pattern, data)
	return args.Error(0)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByCode(ctx context.Context, code string) (*domain.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) CompareAndSetStatus(ctx context.Context, code string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, code, from, to, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ApplyPayment(ctx context.Context, txn *domain.PaymentTransaction, from, to domain.OrderStatus) (bool, error) {
	args := m.Called(ctx, txn, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) AppendTransaction(ctx context.Context, txn *domain.PaymentTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockOrderRepository) FindSucceededTransaction(ctx context.Context, gatewayTransactionID string) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, gatewayTransactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentTransaction), args.Error(1)
}

func (m *MockOrderRepository) LatestIntent(ctx context.Context, code string) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentTransaction), args.Error(1)
}

func (m *MockOrderRepository) ListTransactions(ctx context.Context, code string) ([]domain.PaymentTransaction, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentTransaction), args.Error(1)
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, orderCode string, tranche domain.Tranche, amount int64, method domain.PaymentMethod) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, orderCode, tranche, amount, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

func (m *MockGateway) QueryPaymentStatus(ctx context.Context, intentID string) (*domain.PaymentNotification, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentNotification), args.Error(1)
}

func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*domain.PaymentNotification, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentNotification), args.Error(1)
}

func (m *MockCatalogClient) GetPromotions(ctx context.Context, productRef string) ([]domain.Promotion, error) {
	args := m.Called(ctx, productRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Promotion), args.Error(1)
}

func (m *MockCatalogClient) ListShowrooms(ctx context.Context) ([]domain.Showroom, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Showroom), args.Error(1)
}

func (m *MockSessionStore) Save(ctx context.Context, st *checkout.State) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

func (m *MockSessionStore) Load(ctx context.Context, id string) (*checkout.State, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.State), args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionStore) Lock(ctx context.Context, id string, lease time.Duration) (func(), error) {
	args := m.Called(ctx, id, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

type MockSubmitter struct {
	mock.Mock
}

type MockHandoff struct {
	mock.Mock
}

type MockAwaiter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, sub checkout.Submission) (string, error) {
	args := m.Called(ctx, sub)
	return args.String(0), args.Error(1)
}

func (m *MockHandoff) CreateIntent(ctx context.Context, orderCode string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

func (m *MockAwaiter) Await(ctx context.Context, orderCode string) (checkout.Outcome, error) {
	args := m.Called(ctx, orderCode)
	return args.Get(0).(checkout.Outcome), args.Error(1)
}
