package subscription

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/wallet"
)

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrStrategyNotFound         = errors.New("strategy not found")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrActiveSubscriptionExists = errors.New("user already has an active or pending subscription")
	ErrSubscriptionCancelled    = errors.New("subscription is cancelled")
	ErrSubscriptionNotActive    = errors.New("subscription is not active")
	ErrSameStrategy             = errors.New("subscription already uses this strategy")
	ErrNoPaymentRequired        = errors.New("no payment required for this change")
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrPaymentFailed            = errors.New("payment has failed")
	ErrPaymentNotConfirmed      = errors.New("payment is not confirmed by the provider")
	ErrPaymentInProgress        = errors.New("payment is already being processed")
	ErrGatewayNotConfigured     = errors.New("payment gateway is not configured")
	ErrVideoNotInStrategy       = errors.New("video does not belong to the subscribed strategy")
	ErrVideoLocked              = errors.New("previous video must be completed first")
)

const (
	InitiatedByAdmin = "admin"
	InitiatedByUser  = "user"
)

// PaymentContext identifies which path triggered a state transition. The
// same transition code serves the admin panel and the user panel; only the
// context differs.
type PaymentContext struct {
	InitiatedBy   string
	PaymentMethod string
}

// Service owns subscription status transitions and orchestrates the wallet
// ledger and payment gateways around them.
type Service struct {
	db          *gorm.DB
	ledger      *wallet.Ledger
	gateways    map[model.PaymentProvider]Gateway
	callbackURL string
}

func NewService(db *gorm.DB, ledger *wallet.Ledger, gateways map[model.PaymentProvider]Gateway, callbackURL string) *Service {
	if gateways == nil {
		gateways = map[model.PaymentProvider]Gateway{}
	}
	return &Service{db: db, ledger: ledger, gateways: gateways, callbackURL: callbackURL}
}

// RenewalAmount is what a same-strategy renewal costs.
func RenewalAmount(strategy *model.Strategy) float64 {
	if strategy.RenewalPrice > 0 {
		return strategy.RenewalPrice
	}
	return strategy.Price
}

// ChangeQuote prices a strategy switch. Upgrades pay the difference and an
// equal-priced switch is free; downgrades pay the full new price rather than
// a difference, so a downgrade-then-upgrade round trip never comes out
// cheaper than subscribing to the expensive strategy directly.
func ChangeQuote(currentPrice, newPrice float64) (float64, model.PendingPaymentType) {
	if newPrice >= currentPrice {
		return newPrice - currentPrice, model.PendingPaymentUpgrade
	}
	return newPrice, model.PendingPaymentDowngrade
}

func durationDays(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}

// Get returns one subscription by id.
func (s *Service) Get(id uint) (*model.Subscription, error) {
	var sub model.Subscription
	if err := s.db.First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// CurrentForUser returns the user's active-or-pending subscription, if any.
func (s *Service) CurrentForUser(userID uint) (*model.Subscription, error) {
	var sub model.Subscription
	err := s.db.Where("user_id = ? AND status IN ?", userID,
		[]model.SubscriptionStatus{model.SubscriptionStatusActive, model.SubscriptionStatusPending}).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// Create makes a new ACTIVE subscription and credits the wallet ledger once.
// The duplicate-subscription check and the insert run in one database
// transaction so concurrent subscribes cannot both pass the check.
func (s *Service) Create(userID, strategyID uint, pctx PaymentContext) (*model.Subscription, error) {
	var sub *model.Subscription
	var event *wallet.PaymentEvent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		sub, event, err = s.create(tx, userID, strategyID, pctx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, s.credit(sub, event)
}

// Renew extends a subscription on the same strategy. Video progress is
// preserved.
func (s *Service) Renew(subscriptionID uint, pctx PaymentContext) (*model.Subscription, error) {
	var sub *model.Subscription
	var event *wallet.PaymentEvent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		sub, event, err = s.renew(tx, subscriptionID, pctx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, s.credit(sub, event)
}

// ChangeStrategy moves a subscription to another strategy (upgrade or
// downgrade per ChangeQuote) and resets video progress.
func (s *Service) ChangeStrategy(subscriptionID, newStrategyID uint, pctx PaymentContext) (*model.Subscription, error) {
	var sub *model.Subscription
	var event *wallet.PaymentEvent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		sub, event, err = s.changeStrategy(tx, subscriptionID, newStrategyID, pctx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, s.credit(sub, event)
}

// Cancel is terminal; no transitions lead out of CANCELLED.
func (s *Service) Cancel(subscriptionID uint) (*model.Subscription, error) {
	sub, err := s.Get(subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.IsTerminal() {
		return nil, ErrSubscriptionCancelled
	}

	now := time.Now()
	err = s.db.Model(sub).Updates(map[string]interface{}{
		"status":       model.SubscriptionStatusCancelled,
		"cancelled_at": now,
	}).Error
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SetPending forces an ACTIVE subscription into PENDING, as the sweeper
// would. Progress is left untouched.
func (s *Service) SetPending(subscriptionID uint) (*model.Subscription, error) {
	sub, err := s.Get(subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubscriptionStatusActive {
		return nil, ErrSubscriptionNotActive
	}

	now := time.Now()
	err = s.db.Model(sub).Updates(map[string]interface{}{
		"status":     model.SubscriptionStatusPending,
		"expired_at": now,
	}).Error
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CheckExpiredSubscriptions sweeps ACTIVE subscriptions past their end date
// into PENDING with one batched update, so a partial failure cannot strand
// half the batch mid-transition. Completed videos are untouched.
func (s *Service) CheckExpiredSubscriptions() (int64, error) {
	now := time.Now()
	res := s.db.Model(&model.Subscription{}).
		Where("status = ? AND end_date < ?", model.SubscriptionStatusActive, now).
		Updates(map[string]interface{}{
			"status":     model.SubscriptionStatusPending,
			"expired_at": now,
		})
	return res.RowsAffected, res.Error
}

// CompleteVideo marks one video complete, enforcing sequential unlocking.
// Admins bypass both the active-status and the ordering gates.
func (s *Service) CompleteVideo(subscriptionID, videoID uint, adminOverride bool) (*model.Subscription, error) {
	sub, err := s.Get(subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubscriptionStatusActive && !adminOverride {
		return nil, ErrSubscriptionNotActive
	}

	var strategy model.Strategy
	if err := s.db.Preload("Videos").First(&strategy, sub.StrategyID).Error; err != nil {
		return nil, ErrStrategyNotFound
	}
	order := strategy.OrderedVideoIDs()

	found := false
	for _, id := range order {
		if id == videoID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrVideoNotInStrategy
	}

	completed := NormalizeCompleted(sub.CompletedVideos, order)
	if completed[videoID] {
		return sub, nil
	}
	if !adminOverride && !CanAccessVideo(completed, order, videoID) {
		return nil, ErrVideoLocked
	}

	completed[videoID] = true
	err = s.db.Model(sub).Updates(map[string]interface{}{
		"completed_videos": MarshalCompleted(completed, order),
		"total_videos":     len(order),
	}).Error
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CanAccessSubscriptionVideo reports whether playback of a video is allowed
// for the subscription in its current state.
func (s *Service) CanAccessSubscriptionVideo(sub *model.Subscription, videoID uint, adminOverride bool) (bool, error) {
	if adminOverride {
		return true, nil
	}
	if sub.Status != model.SubscriptionStatusActive {
		return false, nil
	}
	var strategy model.Strategy
	if err := s.db.Preload("Videos").First(&strategy, sub.StrategyID).Error; err != nil {
		return false, ErrStrategyNotFound
	}
	order := strategy.OrderedVideoIDs()
	completed := NormalizeCompleted(sub.CompletedVideos, order)
	return CanAccessVideo(completed, order, videoID), nil
}

// InitiateParams starts a gateway payment for one of the four payment-typed
// transitions.
type InitiateParams struct {
	UserID     uint
	StrategyID uint
	Type       model.PendingPaymentType
	Provider   model.PaymentProvider
}

// InitiatePayment creates the provider transaction and the PendingPayment
// row bridging it to the transition ConfirmPayment will apply. Zero-amount
// changes (equal-price upgrades) return ErrNoPaymentRequired; callers apply
// those directly through ChangeStrategy.
func (s *Service) InitiatePayment(p InitiateParams) (*model.PendingPayment, error) {
	var user model.User
	if err := s.db.Preload("Coach").First(&user, p.UserID).Error; err != nil {
		return nil, ErrUserNotFound
	}

	var amount float64
	var subscriptionID *uint
	payType := p.Type
	strategyID := p.StrategyID

	switch p.Type {
	case model.PendingPaymentSubscription:
		if _, err := s.CurrentForUser(p.UserID); err == nil {
			return nil, ErrActiveSubscriptionExists
		}
		var strategy model.Strategy
		if err := s.db.First(&strategy, p.StrategyID).Error; err != nil {
			return nil, ErrStrategyNotFound
		}
		amount = strategy.Price

	case model.PendingPaymentRenewal:
		sub, err := s.CurrentForUser(p.UserID)
		if err != nil {
			return nil, err
		}
		var strategy model.Strategy
		if err := s.db.First(&strategy, sub.StrategyID).Error; err != nil {
			return nil, ErrStrategyNotFound
		}
		amount = RenewalAmount(&strategy)
		strategyID = sub.StrategyID
		subscriptionID = &sub.ID

	case model.PendingPaymentUpgrade, model.PendingPaymentDowngrade:
		sub, err := s.CurrentForUser(p.UserID)
		if err != nil {
			return nil, err
		}
		if sub.StrategyID == p.StrategyID {
			return nil, ErrSameStrategy
		}
		var strategy model.Strategy
		if err := s.db.First(&strategy, p.StrategyID).Error; err != nil {
			return nil, ErrStrategyNotFound
		}
		amount, payType = ChangeQuote(sub.StrategyPrice, strategy.Price)
		if amount == 0 {
			return nil, ErrNoPaymentRequired
		}
		subscriptionID = &sub.ID
	}

	gateway, ok := s.gateways[p.Provider]
	if !ok {
		return nil, ErrGatewayNotConfigured
	}

	gtx, err := gateway.CreateTransaction(amount, "crypto", s.callbackURL)
	if err != nil {
		return nil, err
	}

	pct := 0.0
	if user.Coach != nil {
		pct = user.Coach.CommissionPercentage
	}
	split := wallet.CalculateCommissionSplit(amount, pct)

	pending := model.PendingPayment{
		PaymentID:            gtx.TransactionID,
		Provider:             p.Provider,
		Type:                 payType,
		UserID:               p.UserID,
		StrategyID:           strategyID,
		SubscriptionID:       subscriptionID,
		Amount:               amount,
		CoachAmount:          split.CoachAmount,
		SystemAmount:         split.SystemAmount,
		CommissionPercentage: pct,
		Status:               model.PendingPaymentWaiting,
		PaymentURL:           gtx.PaymentURL,
	}
	if err := s.db.Create(&pending).Error; err != nil {
		return nil, err
	}
	return &pending, nil
}

// ConfirmPayment applies the transition a pending payment was created for.
// It is idempotent: a replay (duplicate webhook, double click) finds the row
// already completed and returns the existing subscription without touching
// wallets or state. Payment state is re-verified with the provider; webhook
// payload fields are never trusted.
func (s *Service) ConfirmPayment(paymentID string) (*model.Subscription, error) {
	var pending model.PendingPayment
	if err := s.db.Where("payment_id = ?", paymentID).First(&pending).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if pending.Status == model.PendingPaymentCompleted {
		return s.subscriptionForPending(&pending)
	}
	if pending.Status == model.PendingPaymentFailed {
		return nil, ErrPaymentFailed
	}

	if gateway, ok := s.gateways[pending.Provider]; ok {
		verify, err := gateway.VerifyCallback(pending.PaymentID, pending.Amount)
		if err != nil {
			return nil, err
		}
		if !verify.IsValid || !verify.IsPaid {
			return nil, ErrPaymentNotConfirmed
		}
	} else if pending.Provider != model.PaymentProviderManual {
		return nil, ErrGatewayNotConfigured
	}

	pctx := PaymentContext{InitiatedBy: InitiatedByUser, PaymentMethod: string(pending.Provider)}
	amount := pending.Amount

	var sub *model.Subscription
	var event *wallet.PaymentEvent
	claimed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Claim the row. A concurrent confirm for the same payment loses
		// this update and short-circuits below.
		res := tx.Model(&model.PendingPayment{}).
			Where("id = ? AND status IN ?", pending.ID,
				[]model.PendingPaymentStatus{model.PendingPaymentWaiting, model.PendingPaymentConfirming}).
			Update("status", model.PendingPaymentConfirming)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		var err error
		switch pending.Type {
		case model.PendingPaymentSubscription:
			sub, event, err = s.create(tx, pending.UserID, pending.StrategyID, pctx, &amount)
		case model.PendingPaymentRenewal:
			sub, event, err = s.renew(tx, *pending.SubscriptionID, pctx, &amount)
		case model.PendingPaymentUpgrade, model.PendingPaymentDowngrade:
			sub, event, err = s.changeStrategy(tx, *pending.SubscriptionID, pending.StrategyID, pctx, &amount)
		default:
			err = ErrPaymentNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&model.PendingPayment{}).Where("id = ?", pending.ID).
			Updates(map[string]interface{}{
				"status":          model.PendingPaymentCompleted,
				"completed_at":    now,
				"subscription_id": sub.ID,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	if !claimed {
		if err := s.db.First(&pending, pending.ID).Error; err != nil {
			return nil, err
		}
		if pending.Status != model.PendingPaymentCompleted {
			return nil, ErrPaymentInProgress
		}
		return s.subscriptionForPending(&pending)
	}

	return sub, s.credit(sub, event)
}

func (s *Service) subscriptionForPending(pending *model.PendingPayment) (*model.Subscription, error) {
	if pending.SubscriptionID == nil {
		return nil, ErrSubscriptionNotFound
	}
	return s.Get(*pending.SubscriptionID)
}

// credit runs the wallet split after the subscription mutation committed.
// A failure here surfaces to the caller; there is no retry queue.
func (s *Service) credit(sub *model.Subscription, event *wallet.PaymentEvent) error {
	if event == nil {
		return nil
	}
	event.SubscriptionID = sub.ID
	if _, err := s.ledger.ProcessSubscriptionPayment(*event); err != nil {
		log.Printf("Wallet credit failed for subscription %d: %v", sub.ID, err)
		return err
	}
	return nil
}

func (s *Service) create(tx *gorm.DB, userID, strategyID uint, pctx PaymentContext, amountOverride *float64) (*model.Subscription, *wallet.PaymentEvent, error) {
	var user model.User
	if err := tx.Preload("Coach").First(&user, userID).Error; err != nil {
		return nil, nil, ErrUserNotFound
	}
	var strategy model.Strategy
	if err := tx.Preload("Videos").First(&strategy, strategyID).Error; err != nil {
		return nil, nil, ErrStrategyNotFound
	}

	var existing int64
	err := tx.Model(&model.Subscription{}).
		Where("user_id = ? AND status IN ?", userID,
			[]model.SubscriptionStatus{model.SubscriptionStatusActive, model.SubscriptionStatusPending}).
		Count(&existing).Error
	if err != nil {
		return nil, nil, err
	}
	if existing > 0 {
		return nil, nil, ErrActiveSubscriptionExists
	}

	amount := strategy.Price
	if amountOverride != nil {
		amount = *amountOverride
	}
	pct := 0.0
	if user.Coach != nil {
		pct = user.Coach.CommissionPercentage
	}

	now := time.Now()
	sub := model.Subscription{
		UserID:                    userID,
		StrategyID:                strategyID,
		Status:                    model.SubscriptionStatusActive,
		StartDate:                 now,
		EndDate:                   now.Add(durationDays(strategy.DurationDays)),
		DurationDays:              strategy.DurationDays,
		CompletedVideos:           EmptyCompleted(),
		TotalVideos:               len(strategy.Videos),
		StrategyName:              strategy.Name,
		StrategyPrice:             strategy.Price,
		AmountPaid:                amount,
		CoachCommissionPercentage: pct,
		PaymentMethod:             pctx.PaymentMethod,
	}
	if err := tx.Create(&sub).Error; err != nil {
		return nil, nil, err
	}

	return &sub, s.paymentEvent(&user, strategy.Name, amount, pct, pctx), nil
}

func (s *Service) renew(tx *gorm.DB, subscriptionID uint, pctx PaymentContext, amountOverride *float64) (*model.Subscription, *wallet.PaymentEvent, error) {
	var sub model.Subscription
	if err := tx.First(&sub, subscriptionID).Error; err != nil {
		return nil, nil, ErrSubscriptionNotFound
	}
	if sub.IsTerminal() {
		return nil, nil, ErrSubscriptionCancelled
	}
	var user model.User
	if err := tx.Preload("Coach").First(&user, sub.UserID).Error; err != nil {
		return nil, nil, ErrUserNotFound
	}
	var strategy model.Strategy
	if err := tx.First(&strategy, sub.StrategyID).Error; err != nil {
		return nil, nil, ErrStrategyNotFound
	}

	amount := RenewalAmount(&strategy)
	if amountOverride != nil {
		amount = *amountOverride
	}
	pct := 0.0
	if user.Coach != nil {
		pct = user.Coach.CommissionPercentage
	}

	now := time.Now()
	err := tx.Model(&sub).Updates(map[string]interface{}{
		"status":                      model.SubscriptionStatusActive,
		"end_date":                    now.Add(durationDays(strategy.DurationDays)),
		"duration_days":               strategy.DurationDays,
		"renewal_count":               sub.RenewalCount + 1,
		"amount_paid":                 amount,
		"coach_commission_percentage": pct,
		"payment_method":              pctx.PaymentMethod,
		"expired_at":                  nil,
	}).Error
	if err != nil {
		return nil, nil, err
	}

	return &sub, s.paymentEvent(&user, strategy.Name, amount, pct, pctx), nil
}

func (s *Service) changeStrategy(tx *gorm.DB, subscriptionID, newStrategyID uint, pctx PaymentContext, amountOverride *float64) (*model.Subscription, *wallet.PaymentEvent, error) {
	var sub model.Subscription
	if err := tx.First(&sub, subscriptionID).Error; err != nil {
		return nil, nil, ErrSubscriptionNotFound
	}
	if sub.IsTerminal() {
		return nil, nil, ErrSubscriptionCancelled
	}
	if sub.StrategyID == newStrategyID {
		return nil, nil, ErrSameStrategy
	}
	var user model.User
	if err := tx.Preload("Coach").First(&user, sub.UserID).Error; err != nil {
		return nil, nil, ErrUserNotFound
	}
	var strategy model.Strategy
	if err := tx.Preload("Videos").First(&strategy, newStrategyID).Error; err != nil {
		return nil, nil, ErrStrategyNotFound
	}

	amount, _ := ChangeQuote(sub.StrategyPrice, strategy.Price)
	if amountOverride != nil {
		amount = *amountOverride
	}
	pct := 0.0
	if user.Coach != nil {
		pct = user.Coach.CommissionPercentage
	}

	// Strategy changed: progress resets, snapshots are retaken.
	now := time.Now()
	err := tx.Model(&sub).Updates(map[string]interface{}{
		"strategy_id":                 newStrategyID,
		"status":                      model.SubscriptionStatusActive,
		"end_date":                    now.Add(durationDays(strategy.DurationDays)),
		"duration_days":               strategy.DurationDays,
		"renewal_count":               sub.RenewalCount + 1,
		"completed_videos":            EmptyCompleted(),
		"total_videos":                len(strategy.Videos),
		"strategy_name":               strategy.Name,
		"strategy_price":              strategy.Price,
		"amount_paid":                 amount,
		"coach_commission_percentage": pct,
		"payment_method":              pctx.PaymentMethod,
		"expired_at":                  nil,
	}).Error
	if err != nil {
		return nil, nil, err
	}

	if amount == 0 {
		return &sub, nil, nil
	}
	return &sub, s.paymentEvent(&user, strategy.Name, amount, pct, pctx), nil
}

func (s *Service) paymentEvent(user *model.User, strategyName string, amount, pct float64, pctx PaymentContext) *wallet.PaymentEvent {
	if amount <= 0 {
		return nil
	}
	event := &wallet.PaymentEvent{
		UserID:               user.ID,
		UserName:             user.Name,
		StrategyName:         strategyName,
		TotalAmount:          amount,
		CommissionPercentage: pct,
		PaymentMethod:        pctx.PaymentMethod,
	}
	if user.Coach != nil {
		event.CoachID = &user.Coach.ID
		event.CoachName = user.Coach.Name
	}
	return event
}
