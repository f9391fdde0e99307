package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WalletOwnerType string

const (
	WalletOwnerSystem WalletOwnerType = "system"
	WalletOwnerCoach  WalletOwnerType = "coach"
	WalletOwnerUser   WalletOwnerType = "user"
)

// SystemWalletOwnerID is the owner id of the singleton platform wallet.
const SystemWalletOwnerID = "system"

type WalletTransactionType string

const (
	WalletTransactionCredit WalletTransactionType = "credit"
	WalletTransactionDebit  WalletTransactionType = "debit"
)

const (
	ReferenceTypeSubscription = "subscription"
	ReferenceTypeCommission   = "commission"
	ReferenceTypeCashout      = "cashout"
)

// Wallet holds the running balance for one party. Balance only moves through
// paired WalletTransaction rows; TotalEarned grows on credits only.
type Wallet struct {
	gorm.Model
	OwnerID     string          `json:"owner_id" gorm:"uniqueIndex:idx_wallet_owner;not null"`
	OwnerType   WalletOwnerType `json:"owner_type" gorm:"uniqueIndex:idx_wallet_owner;not null"`
	OwnerName   string          `json:"owner_name"`
	Balance     float64         `json:"balance"`
	TotalEarned float64         `json:"total_earned"`
	Status      string          `json:"status" gorm:"default:'active'"`

	Transactions []WalletTransaction `json:"-"`
}

// WalletTransaction is append-only. The before/after snapshots make the
// ledger auditable without replaying it.
type WalletTransaction struct {
	gorm.Model
	WalletID      uint                  `json:"wallet_id" gorm:"index;not null"`
	Type          WalletTransactionType `json:"type" gorm:"not null"`
	Amount        float64               `json:"amount" gorm:"not null"`
	Description   string                `json:"description"`
	ReferenceID   string                `json:"reference_id"`
	ReferenceType string                `json:"reference_type"`
	BalanceBefore float64               `json:"balance_before"`
	BalanceAfter  float64               `json:"balance_after"`
	Metadata      datatypes.JSON        `json:"metadata"`
}

// CoachCommission is a derived audit record of one commission split. The
// wallet transactions stay authoritative for balances.
type CoachCommission struct {
	gorm.Model
	SubscriptionID       uint    `json:"subscription_id" gorm:"index"`
	CoachID              uint    `json:"coach_id" gorm:"index"`
	CoachName            string  `json:"coach_name"`
	UserID               uint    `json:"user_id"`
	UserName             string  `json:"user_name"`
	StrategyName         string  `json:"strategy_name"`
	TotalAmount          float64 `json:"total_amount"`
	CommissionPercentage float64 `json:"commission_percentage"`
	CommissionAmount     float64 `json:"commission_amount"`
	SystemAmount         float64 `json:"system_amount"`
	PaymentMethod        string  `json:"payment_method"`
}
