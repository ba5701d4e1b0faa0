package repository

import (
	"context"
	"errors"
	"time"

	"checkout-service/internal/domain"
)

// ErrDuplicateTranche is returned when a tranche already has a succeeded
// transaction recorded against it.
var ErrDuplicateTranche = errors.New("tranche already settled")

// ErrDuplicateOrderCode is returned by Save when the generated code is taken.
var ErrDuplicateOrderCode = errors.New("order code already exists")

// OrderRepository returns (nil, nil) from finders when nothing matches.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByCode(ctx context.Context, code string) (*domain.Order, error)

	// CompareAndSetStatus moves the order to `to` only while it is still in
	// `from`. It reports false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, code string, from, to domain.OrderStatus, at time.Time) (bool, error)

	// ApplyPayment records a succeeded transaction and performs the status
	// compare-and-set in one database transaction. Neither happens unless both can.
	ApplyPayment(ctx context.Context, txn *domain.PaymentTransaction, from, to domain.OrderStatus) (bool, error)

	AppendTransaction(ctx context.Context, txn *domain.PaymentTransaction) error
	FindSucceededTransaction(ctx context.Context, gatewayTransactionID string) (*domain.PaymentTransaction, error)
	LatestIntent(ctx context.Context, code string) (*domain.PaymentTransaction, error)
	ListTransactions(ctx context.Context, code string) ([]domain.PaymentTransaction, error)
}
