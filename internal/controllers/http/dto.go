package http

import (
	"time"

	"checkout-service/internal/domain"
)

type StartCheckoutRequest struct {
	Cart []domain.CartLine `json:"cart" binding:"required"`
}

type ChoosePaymentRequest struct {
	PaymentMethod      domain.PaymentMethod      `json:"paymentMethod" binding:"required"`
	InstallmentMonths  int                       `json:"installmentMonths" binding:"min=0"`
	InstallmentChannel domain.InstallmentChannel `json:"installmentChannel"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	OrderCode string `json:"orderCode,omitempty"`
}

// OrderResponse is what a customer sees of an order.
type OrderResponse struct {
	OrderCode          string                    `json:"orderCode"`
	Status             domain.OrderStatus        `json:"status"`
	VehicleModelRef    string                    `json:"vehicleModelRef"`
	SelectedColor      string                    `json:"selectedColor,omitempty"`
	PaymentMethod      domain.PaymentMethod      `json:"paymentMethod"`
	InstallmentMonths  int                       `json:"installmentMonths,omitempty"`
	InstallmentChannel domain.InstallmentChannel `json:"installmentChannel,omitempty"`
	TotalAmount        int64                     `json:"totalAmount"`
	DepositAmount      int64                     `json:"depositAmount"`
	BalanceAmount      int64                     `json:"balanceAmount"`
	ShowroomID         string                    `json:"showroomId,omitempty"`
	ShipToAddress      bool                      `json:"shipToAddress"`
	CustomerName       string                    `json:"customerName"`
	DepositPaidAt      *time.Time                `json:"depositPaidAt,omitempty"`
	CreatedAt          time.Time                 `json:"createdAt"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		OrderCode:          o.OrderCode,
		Status:             o.Status,
		VehicleModelRef:    o.VehicleModelRef,
		SelectedColor:      o.SelectedColor,
		PaymentMethod:      o.PaymentMethod,
		InstallmentMonths:  o.InstallmentMonths,
		InstallmentChannel: o.InstallmentChannel,
		TotalAmount:        o.TotalAmount,
		DepositAmount:      o.DepositAmount,
		BalanceAmount:      o.BalanceAmount(),
		ShowroomID:         o.ShowroomID,
		ShipToAddress:      o.ShipToAddress,
		CustomerName:       o.CustomerName,
		DepositPaidAt:      o.DepositPaidAt,
		CreatedAt:          o.CreatedAt,
	}
}
