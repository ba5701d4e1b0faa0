package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/checkout"
	"checkout-service/internal/domain"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/installment"
	"checkout-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	orderCodePrefix  = "TLG-"
	orderCodeLength  = 8
	orderCodeRetries = 3
)

var _ checkout.Submitter = (*OrderService)(nil)

type OrderService struct {
	repo          repository.OrderRepository
	publisher     rabbit.PublisherInterface
	logger        *zap.Logger
	depositAmount int64
}

func NewOrderService(r repository.OrderRepository, pub rabbit.PublisherInterface, logger *zap.Logger, depositAmount int64) *OrderService {
	return &OrderService{
		repo:          r,
		publisher:     pub,
		logger:        logger,
		depositAmount: depositAmount,
	}
}

// NewOrderCode returns a customer-facing code that cannot be guessed from
// neighbouring orders.
func NewOrderCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return orderCodePrefix + strings.ToUpper(raw[:orderCodeLength])
}

// Submit persists the order assembled by a checkout session in
// pending_payment and returns its code.
func (s *OrderService) Submit(ctx context.Context, sub checkout.Submission) (string, error) {
	if err := sub.Line.Validate(); err != nil {
		return "", err
	}
	if !sub.PaymentMethod.Valid() {
		return "", domain.NewValidationError("paymentMethod", "choose a payment method")
	}
	if sub.Quote.Total <= 0 {
		return "", fmt.Errorf("%w: order total %d", domain.ErrInvalidAmount, sub.Quote.Total)
	}

	first, err := s.firstTranche(sub)
	if err != nil {
		return "", err
	}

	order := &domain.Order{
		Status:             domain.StatusPendingPayment,
		TotalAmount:        sub.Quote.Total,
		DepositAmount:      first,
		PaymentMethod:      sub.PaymentMethod,
		InstallmentMonths:  sub.InstallmentMonths,
		InstallmentChannel: sub.InstallmentChannel,
		CustomerName:       sub.Customer.Name,
		CustomerPhone:      sub.Customer.Phone,
		CustomerEmail:      sub.Customer.Email,
		ShippingAddress:    sub.Customer.Address,
		Note:               sub.Customer.Note,
		VehicleModelRef:    sub.Line.ProductRef,
		SelectedColor:      sub.Line.SelectedColor,
		ShowroomID:         sub.Fulfillment.ShowroomID,
		ShipToAddress:      sub.Fulfillment.ShipToAddress,
		CreatedAt:          time.Now().UTC(),
	}
	if sub.Fulfillment.ShipToAddress {
		order.ShippingAddress = sub.Fulfillment.Address
	}

	for attempt := 0; attempt < orderCodeRetries; attempt++ {
		order.OrderCode = NewOrderCode()
		err = s.repo.Save(ctx, order)
		if !errors.Is(err, repository.ErrDuplicateOrderCode) {
			break
		}
		s.logger.Warn("order code collision", zap.String("order_code", order.OrderCode))
	}
	if err != nil {
		return "", fmt.Errorf("save order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_code", order.OrderCode),
		zap.String("session_id", sub.SessionID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int64("total_amount", order.TotalAmount),
		zap.Int64("deposit_amount", order.DepositAmount),
	)

	go s.publishOrderCreatedEvent(context.Background(), order)

	return order.OrderCode, nil
}

// firstTranche is the amount that moves a new order to deposit_paid. Zero
// means the order expects one full payment.
func (s *OrderService) firstTranche(sub checkout.Submission) (int64, error) {
	total := sub.Quote.Total
	switch sub.PaymentMethod {
	case domain.MethodDeposit:
		if s.depositAmount >= total {
			return 0, nil
		}
		return s.depositAmount, nil
	case domain.MethodInstallment:
		plan, err := installment.PolicyFor(sub.InstallmentChannel).Plan(total, sub.InstallmentMonths)
		if err != nil {
			return 0, domain.NewValidationError("installmentMonths", err.Error())
		}
		if plan.DownPayment >= total {
			return 0, nil
		}
		return plan.DownPayment, nil
	}
	return 0, nil
}

func (s *OrderService) publishOrderCreatedEvent(ctx context.Context, order *domain.Order) {
	evt := domain.OrderCreatedEvent{
		OrderCode:     order.OrderCode,
		VehicleRef:    order.VehicleModelRef,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		DepositAmount: order.DepositAmount,
		CreatedAt:     order.CreatedAt,
	}

	if err := s.publisher.Publish(ctx, domain.EventOrderCreated, evt); err != nil {
		s.logger.Error("publish order.created", zap.String("order_code", order.OrderCode), zap.Error(err))
	}
}

// LookupOrder is the customer read path. A phone that does not match is
// reported exactly like a missing order.
func (s *OrderService) LookupOrder(ctx context.Context, code, phone string) (*domain.Order, error) {
	return lookup(ctx, s.repo, code, phone)
}

func lookup(ctx context.Context, repo repository.OrderRepository, code, phone string) (*domain.Order, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	phone = strings.TrimSpace(phone)
	if code == "" || phone == "" {
		return nil, domain.ErrOrderNotFound
	}

	o, err := repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if o == nil || o.CustomerPhone != phone {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}
