package domain

import "time"

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusDepositPaid    OrderStatus = "deposit_paid"
	StatusProcessing     OrderStatus = "processing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusShipping       OrderStatus = "shipping"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	MethodFullPayment PaymentMethod = "full_payment"
	MethodDeposit     PaymentMethod = "deposit"
	MethodInstallment PaymentMethod = "installment"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodFullPayment, MethodDeposit, MethodInstallment:
		return true
	}
	return false
}

// InstallmentChannel selects who finances an installment purchase.
type InstallmentChannel string

const (
	ChannelFinance    InstallmentChannel = "finance"
	ChannelCreditCard InstallmentChannel = "credit_card"
)

type CustomerInfo struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Phone   string `json:"phone" validate:"required,vnphone"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Address string `json:"address,omitempty" validate:"max=255"`
	Note    string `json:"note,omitempty" validate:"max=500"`
}

// Order is created once at checkout confirmation. After creation only Status
// (and the timestamps that follow it) may change, and only through the
// reconciliation transition function.
type Order struct {
	ID                 uint64             `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderCode          string             `json:"orderCode" gorm:"type:varchar(32);uniqueIndex;not null"`
	Status             OrderStatus        `json:"status" gorm:"type:varchar(32);index;not null;default:'pending_payment'"`
	TotalAmount        int64              `json:"totalAmount" gorm:"not null"`
	DepositAmount      int64              `json:"depositAmount" gorm:"not null;default:0"`
	PaymentMethod      PaymentMethod      `json:"paymentMethod" gorm:"type:varchar(32);not null"`
	InstallmentMonths  int                `json:"installmentMonths,omitempty"`
	InstallmentChannel InstallmentChannel `json:"installmentChannel,omitempty" gorm:"type:varchar(16)"`
	CustomerName       string             `json:"customerName" gorm:"type:varchar(100);not null"`
	CustomerPhone      string             `json:"customerPhone" gorm:"type:varchar(20);index;not null"`
	CustomerEmail      string             `json:"customerEmail,omitempty" gorm:"type:varchar(255)"`
	ShippingAddress    string             `json:"shippingAddress,omitempty" gorm:"type:varchar(255)"`
	Note               string             `json:"note,omitempty" gorm:"type:varchar(500)"`
	VehicleModelRef    string             `json:"vehicleModelRef" gorm:"type:varchar(64);not null"`
	SelectedColor      string             `json:"selectedColor,omitempty" gorm:"type:varchar(64)"`
	ShowroomID         string             `json:"showroomId,omitempty" gorm:"type:varchar(64)"`
	ShipToAddress      bool               `json:"shipToAddress"`
	DepositPaidAt      *time.Time         `json:"depositPaidAt,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt          time.Time          `json:"updatedAt" gorm:"autoUpdateTime"`
}

// BalanceAmount is what remains after the first tranche has been paid.
func (o *Order) BalanceAmount() int64 {
	return o.TotalAmount - o.DepositAmount
}

func (o *Order) Customer() CustomerInfo {
	return CustomerInfo{
		Name:    o.CustomerName,
		Phone:   o.CustomerPhone,
		Email:   o.CustomerEmail,
		Address: o.ShippingAddress,
		Note:    o.Note,
	}
}
