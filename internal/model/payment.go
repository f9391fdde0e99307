package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentProvider string

const (
	PaymentProviderThreePay    PaymentProvider = "threepay"
	PaymentProviderNowPayments PaymentProvider = "nowpayments"
	PaymentProviderStripe      PaymentProvider = "stripe"
	PaymentProviderManual      PaymentProvider = "manual"
)

type PendingPaymentType string

const (
	PendingPaymentSubscription PendingPaymentType = "subscription"
	PendingPaymentRenewal      PendingPaymentType = "renewal"
	PendingPaymentUpgrade      PendingPaymentType = "upgrade"
	PendingPaymentDowngrade    PendingPaymentType = "downgrade"
)

type PendingPaymentStatus string

const (
	PendingPaymentWaiting    PendingPaymentStatus = "waiting"
	PendingPaymentConfirming PendingPaymentStatus = "confirming"
	PendingPaymentCompleted  PendingPaymentStatus = "completed"
	PendingPaymentFailed     PendingPaymentStatus = "failed"
)

// PendingPayment bridges "user initiated payment" and "payment confirmed".
// Exactly one subscription mutation may result from a row reaching completed.
type PendingPayment struct {
	gorm.Model
	// Provider transaction/payment id. Unique so webhook replays map to the
	// same row.
	PaymentID string          `json:"payment_id" gorm:"uniqueIndex;not null"`
	Provider  PaymentProvider `json:"provider" gorm:"not null"`

	Type       PendingPaymentType `json:"type" gorm:"not null"`
	UserID     uint               `json:"user_id" gorm:"index;not null"`
	StrategyID uint               `json:"strategy_id" gorm:"not null"`
	// Set for renewal/upgrade/downgrade at initiation, and for new
	// subscriptions once confirmation creates the row.
	SubscriptionID *uint `json:"subscription_id"`

	Amount               float64 `json:"amount"`
	CoachAmount          float64 `json:"coach_amount"`
	SystemAmount         float64 `json:"system_amount"`
	CommissionPercentage float64 `json:"commission_percentage"`

	Status      PendingPaymentStatus `json:"status" gorm:"default:'waiting'"`
	PaymentURL  string               `json:"payment_url"`
	CompletedAt *time.Time           `json:"completed_at"`
}

// PaymentTransaction is a raw log of provider callbacks, kept for support
// and reconciliation. Never read by the state machine.
type PaymentTransaction struct {
	gorm.Model
	Provider   PaymentProvider `json:"provider"`
	ExternalID string          `json:"external_id" gorm:"index"`
	Amount     float64         `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	Payload    datatypes.JSON  `json:"payload"`
}
