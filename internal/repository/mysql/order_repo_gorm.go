package mysql

import (
	"context"
	"errors"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errStatusMoved = errors.New("order status moved")

type orderRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewOrderRepository(db *gorm.DB, logger *zap.Logger) repository.OrderRepository {
	return &orderRepo{db: db, logger: logger}
}

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Create(order)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicateOrderCode
	}
	if result.Error != nil {
		r.logger.Error("save order", zap.String("order_code", order.OrderCode), zap.Error(result.Error))
		return result.Error
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindByCode(ctx context.Context, code string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Where("order_code = ?", code).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("find order by code", zap.String("order_code", code), zap.Error(err))
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) CompareAndSetStatus(ctx context.Context, code string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("order_code = ? AND status = ?", code, from).
		Updates(statusUpdates(to, at))
	if result.Error != nil {
		r.logger.Error("compare and set status",
			zap.String("order_code", code),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(result.Error),
		)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepo) ApplyPayment(ctx context.Context, txn *domain.PaymentTransaction, from, to domain.OrderStatus) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return repository.ErrDuplicateTranche
			}
			return err
		}

		result := tx.Model(&domain.Order{}).
			Where("order_code = ? AND status = ?", txn.OrderCode, from).
			Updates(statusUpdates(to, txn.ReceivedAt))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return errStatusMoved
		}
		return nil
	})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStatusMoved):
		return false, nil
	case errors.Is(err, repository.ErrDuplicateTranche):
		return false, err
	}
	r.logger.Error("apply payment",
		zap.String("order_code", txn.OrderCode),
		zap.String("transaction_id", txn.GatewayTransactionID),
		zap.Error(err),
	)
	return false, err
}

func (r *orderRepo) AppendTransaction(ctx context.Context, txn *domain.PaymentTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicateTranche
		}
		return err
	}
	return nil
}

func (r *orderRepo) FindSucceededTransaction(ctx context.Context, gatewayTransactionID string) (*domain.PaymentTransaction, error) {
	var t domain.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ? AND status = ?", gatewayTransactionID, domain.TxSucceeded).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *orderRepo) LatestIntent(ctx context.Context, code string) (*domain.PaymentTransaction, error) {
	var t domain.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_code = ? AND status = ? AND intent_id <> ''", code, domain.TxInitiated).
		Order("id DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *orderRepo) ListTransactions(ctx context.Context, code string) ([]domain.PaymentTransaction, error) {
	var out []domain.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("order_code = ?", code).Order("id ASC").Find(&out).Error; err != nil {
		r.logger.Error("list transactions", zap.String("order_code", code), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func statusUpdates(to domain.OrderStatus, at time.Time) map[string]any {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if to == domain.StatusDepositPaid {
		updates["deposit_paid_at"] = at
	}
	return updates
}
