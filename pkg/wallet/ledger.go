package wallet

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
)

var (
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientBalance  = errors.New("insufficient wallet balance")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrPayoutNotConfigured  = errors.New("payout provider is not configured")
	ErrInvalidCommissionPct = errors.New("commission percentage must be between 0 and 100")
)

// Ledger owns wallet balances and their append-only transaction history.
// Every balance change goes through AddTransaction, which writes the
// transaction row and the balance update in one database transaction.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CommissionSplit is the division of one payment between coach and system.
type CommissionSplit struct {
	CoachAmount  float64
	SystemAmount float64
}

// CalculateCommissionSplit rounds the coach's share to 2 decimals and gives
// the remainder to the system, so both parts always sum to the exact total.
func CalculateCommissionSplit(totalAmount, commissionPercentage float64) CommissionSplit {
	coachAmount := math.Round(totalAmount*commissionPercentage) / 100
	return CommissionSplit{
		CoachAmount:  coachAmount,
		SystemAmount: totalAmount - coachAmount,
	}
}

// GetOrCreateWallet looks a wallet up by (ownerID, ownerType), creating it
// with zero balances on first use. The composite unique index on the owner
// pair keeps concurrent first-credits from producing two wallets.
func (l *Ledger) GetOrCreateWallet(ownerID string, ownerType model.WalletOwnerType, ownerName string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := l.db.Where(model.Wallet{OwnerID: ownerID, OwnerType: ownerType}).
		Attrs(model.Wallet{OwnerName: ownerName, Status: "active"}).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// SystemWallet returns the singleton platform wallet.
func (l *Ledger) SystemWallet() (*model.Wallet, error) {
	return l.GetOrCreateWallet(model.SystemWalletOwnerID, model.WalletOwnerSystem, "System")
}

// AddTransaction records one credit or debit. The snapshot pair and the
// wallet balance are committed atomically; a crash can no longer leave a
// transaction without its balance update.
func (l *Ledger) AddTransaction(
	walletID uint,
	txType model.WalletTransactionType,
	amount float64,
	description string,
	referenceID string,
	referenceType string,
	metadata datatypes.JSON,
) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var tx model.WalletTransaction
	err := l.db.Transaction(func(db *gorm.DB) error {
		var wallet model.Wallet
		if err := db.First(&wallet, walletID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}

		balanceAfter := wallet.Balance + amount
		if txType == model.WalletTransactionDebit {
			if amount > wallet.Balance {
				return ErrInsufficientBalance
			}
			balanceAfter = wallet.Balance - amount
		}

		tx = model.WalletTransaction{
			WalletID:      wallet.ID,
			Type:          txType,
			Amount:        amount,
			Description:   description,
			ReferenceID:   referenceID,
			ReferenceType: referenceType,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  balanceAfter,
			Metadata:      metadata,
		}
		if err := db.Create(&tx).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"balance": balanceAfter}
		if txType == model.WalletTransactionCredit {
			updates["total_earned"] = wallet.TotalEarned + amount
		}
		return db.Model(&wallet).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// PaymentEvent describes one confirmed subscription payment to be credited.
type PaymentEvent struct {
	SubscriptionID       uint
	UserID               uint
	UserName             string
	StrategyName         string
	TotalAmount          float64
	CoachID              *uint
	CoachName            string
	CommissionPercentage float64
	PaymentMethod        string
}

// ProcessSubscriptionPayment is the single chokepoint all subscription
// revenue flows through. Without a coach (or at 0%) the full amount goes to
// the system wallet; otherwise the split is credited to both wallets and a
// CoachCommission audit row is written. Returns nil when no coach is involved.
func (l *Ledger) ProcessSubscriptionPayment(event PaymentEvent) (*model.CoachCommission, error) {
	if event.TotalAmount <= 0 {
		return nil, nil
	}
	if event.CommissionPercentage < 0 || event.CommissionPercentage > 100 {
		return nil, ErrInvalidCommissionPct
	}

	referenceID := fmt.Sprintf("%d", event.SubscriptionID)

	systemWallet, err := l.SystemWallet()
	if err != nil {
		return nil, err
	}

	if event.CoachID == nil || event.CommissionPercentage == 0 {
		_, err := l.AddTransaction(
			systemWallet.ID,
			model.WalletTransactionCredit,
			event.TotalAmount,
			fmt.Sprintf("Subscription payment: %s by %s", event.StrategyName, event.UserName),
			referenceID,
			model.ReferenceTypeSubscription,
			nil,
		)
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	split := CalculateCommissionSplit(event.TotalAmount, event.CommissionPercentage)

	coachWallet, err := l.GetOrCreateWallet(
		fmt.Sprintf("%d", *event.CoachID),
		model.WalletOwnerCoach,
		event.CoachName,
	)
	if err != nil {
		return nil, err
	}

	_, err = l.AddTransaction(
		coachWallet.ID,
		model.WalletTransactionCredit,
		split.CoachAmount,
		fmt.Sprintf("Commission: %s by %s (%.0f%%)", event.StrategyName, event.UserName, event.CommissionPercentage),
		referenceID,
		model.ReferenceTypeCommission,
		nil,
	)
	if err != nil {
		return nil, err
	}

	_, err = l.AddTransaction(
		systemWallet.ID,
		model.WalletTransactionCredit,
		split.SystemAmount,
		fmt.Sprintf("Subscription payment: %s by %s", event.StrategyName, event.UserName),
		referenceID,
		model.ReferenceTypeSubscription,
		nil,
	)
	if err != nil {
		return nil, err
	}

	commission := model.CoachCommission{
		SubscriptionID:       event.SubscriptionID,
		CoachID:              *event.CoachID,
		CoachName:            event.CoachName,
		UserID:               event.UserID,
		UserName:             event.UserName,
		StrategyName:         event.StrategyName,
		TotalAmount:          event.TotalAmount,
		CommissionPercentage: event.CommissionPercentage,
		CommissionAmount:     split.CoachAmount,
		SystemAmount:         split.SystemAmount,
		PaymentMethod:        event.PaymentMethod,
	}
	if err := l.db.Create(&commission).Error; err != nil {
		return nil, err
	}

	return &commission, nil
}

// CashoutResult reports a processed withdrawal.
type CashoutResult struct {
	PayoutID    string                   `json:"payout_id"`
	Amount      float64                  `json:"amount"`
	Currency    string                   `json:"currency"`
	Transaction *model.WalletTransaction `json:"transaction"`
}

// ProcessCashout debits a wallet for a withdrawal. In test mode a synthetic
// payout id is issued; production mode requires a payout provider, which is
// not wired yet, so it refuses before touching the balance.
func (l *Ledger) ProcessCashout(walletID uint, amount float64, destinationAddress, currency string, testMode bool) (*CashoutResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if !testMode {
		// TODO: wire the 3Pay payout API once merchant payouts are enabled
		// on the account.
		return nil, ErrPayoutNotConfigured
	}

	payoutID := "test_payout_" + uuid.New().String()

	metadata := datatypes.JSON([]byte(fmt.Sprintf(
		`{"payout_id":%q,"destination":%q,"currency":%q}`,
		payoutID, destinationAddress, currency,
	)))

	tx, err := l.AddTransaction(
		walletID,
		model.WalletTransactionDebit,
		amount,
		fmt.Sprintf("Cashout to %s", destinationAddress),
		payoutID,
		model.ReferenceTypeCashout,
		metadata,
	)
	if err != nil {
		return nil, err
	}

	return &CashoutResult{
		PayoutID:    payoutID,
		Amount:      amount,
		Currency:    currency,
		Transaction: tx,
	}, nil
}
