package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a user's time-boxed access grant to one strategy.
// At most one subscription per user may be active or pending at a time;
// cancelled rows remain as history.
type Subscription struct {
	gorm.Model
	UserID     uint               `json:"user_id" gorm:"index;not null"`
	StrategyID uint               `json:"strategy_id" gorm:"not null"`
	Status     SubscriptionStatus `json:"status" gorm:"default:'active';index"`

	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	DurationDays float64   `json:"duration_days"`
	RenewalCount int       `json:"renewal_count"`

	// JSON array of completed video ids. Legacy rows imported from the old
	// system may hold a bare count instead; readers must normalize through
	// pkg/subscription.NormalizeCompleted.
	CompletedVideos datatypes.JSON `json:"completed_videos"`
	TotalVideos     int            `json:"total_videos"`

	// Snapshots taken at payment time so later strategy/coach edits do not
	// rewrite history.
	StrategyName              string  `json:"strategy_name"`
	StrategyPrice             float64 `json:"strategy_price"`
	AmountPaid                float64 `json:"amount_paid"`
	CoachCommissionPercentage float64 `json:"coach_commission_percentage"`
	PaymentMethod             string  `json:"payment_method"`

	ExpiredAt   *time.Time `json:"expired_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	User     User     `json:"-" gorm:"foreignKey:UserID"`
	Strategy Strategy `json:"-" gorm:"foreignKey:StrategyID"`
}

// EffectiveStatus maps a pending subscription that got there by expiry to the
// EXPIRED status the API exposes. The sweeper itself only ever writes PENDING.
func (s *Subscription) EffectiveStatus() SubscriptionStatus {
	if s.Status == SubscriptionStatusPending && s.ExpiredAt != nil {
		return SubscriptionStatusExpired
	}
	return s.Status
}

func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled
}
