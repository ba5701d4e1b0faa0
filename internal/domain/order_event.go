package domain

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderCreatedEvent struct {
	OrderCode     string        `json:"orderCode"`
	VehicleRef    string        `json:"vehicleModelRef"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	TotalAmount   int64         `json:"totalAmount"`
	DepositAmount int64         `json:"depositAmount"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type OrderStatusChangedEvent struct {
	OrderCode     string      `json:"orderCode"`
	From          OrderStatus `json:"from"`
	To            OrderStatus `json:"to"`
	TransactionID string      `json:"transactionId,omitempty"`
	ChangedAt     time.Time   `json:"changedAt"`
}
