package services

import (
	"time"

	"checkout-service/internal/domain"
)

func CreateMockOrder(code string, status domain.OrderStatus, total, deposit int64) *domain.Order {
	return &domain.Order{
		ID:              1,
		OrderCode:       code,
		Status:          status,
		TotalAmount:     total,
		DepositAmount:   deposit,
		PaymentMethod:   domain.MethodDeposit,
		CustomerName:    TestCustomerName,
		CustomerPhone:   TestCustomerPhone,
		VehicleModelRef: TestProductRef,
		CreatedAt:       time.Now(),
	}
}

func CreateMockIntent(code, intentID string, tranche domain.Tranche, amount int64) domain.PaymentTransaction {
	return domain.PaymentTransaction{
		OrderCode:  code,
		IntentID:   intentID,
		Tranche:    tranche,
		Amount:     amount,
		Status:     domain.TxInitiated,
		ReceivedAt: time.Now(),
	}
}

const (
	TestOrderCode     = "TLG-0001"
	TestProductRef    = "vf8-plus"
	TestCustomerName  = "Nguyen Van A"
	TestCustomerPhone = "0912345678"
	TestTotal         = int64(19_800_000)
	TestDeposit       = int64(3_000_000)
)
