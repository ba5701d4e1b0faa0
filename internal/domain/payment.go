package domain

import "time"

type TransactionStatus string

const (
	TxInitiated TransactionStatus = "initiated"
	TxSucceeded TransactionStatus = "succeeded"
	TxFailed    TransactionStatus = "failed"
)

// Tranche is the slice of the order total a payment is meant to settle.
type Tranche string

const (
	TrancheFull    Tranche = "full"
	TrancheDeposit Tranche = "deposit"
	TrancheBalance Tranche = "balance"
)

// PaymentTransaction rows are only ever appended. SucceededKey is set for
// succeeded rows only, and its unique index keeps a tranche from being paid twice.
type PaymentTransaction struct {
	ID                   uint64            `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderCode            string            `json:"orderCode" gorm:"type:varchar(32);index;not null"`
	IntentID             string            `json:"intentId" gorm:"type:varchar(128);index"`
	GatewayTransactionID string            `json:"gatewayTransactionId,omitempty" gorm:"type:varchar(128);index"`
	Tranche              Tranche           `json:"tranche" gorm:"type:varchar(16);not null"`
	Amount               int64             `json:"amount" gorm:"not null"`
	Status               TransactionStatus `json:"status" gorm:"type:varchar(16);not null"`
	SucceededKey         *string           `json:"-" gorm:"type:varchar(64);uniqueIndex"`
	ReceivedAt           time.Time         `json:"receivedAt" gorm:"not null"`
}

func SucceededKeyFor(orderCode string, tranche Tranche) *string {
	k := orderCode + ":" + string(tranche)
	return &k
}

// PaymentNotification is a verified statement from the gateway about one
// payment attempt, whether it came in through a webhook or a status query.
type PaymentNotification struct {
	OrderCode     string
	IntentID      string
	TransactionID string
	Amount        int64
	Status        TransactionStatus
}

// PaymentIntent is what the gateway hands back for one tranche: an id to query
// later and a payload the customer uses to pay.
type PaymentIntent struct {
	IntentID  string  `json:"intentId"`
	OrderCode string  `json:"orderCode"`
	Tranche   Tranche `json:"tranche"`
	Amount    int64   `json:"amount"`
	// Payload is a redirect URL, QR string or client secret depending on the gateway.
	Payload string `json:"payload,omitempty"`
}
