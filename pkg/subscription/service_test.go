package subscription

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/wallet"
)

// fakeGateway stands in for a payment provider; paid controls what a
// verification reports.
type fakeGateway struct {
	paid    bool
	created int
}

func (g *fakeGateway) CreateTransaction(amount float64, currencyType, callbackURL string) (*GatewayTransaction, error) {
	g.created++
	return &GatewayTransaction{
		TransactionID: fmt.Sprintf("fake_tx_%d", g.created),
		PaymentURL:    fmt.Sprintf("https://pay.example/%d", g.created),
	}, nil
}

func (g *fakeGateway) VerifyCallback(transactionID string, expectedAmount float64) (*VerifyResult, error) {
	if !g.paid {
		return &VerifyResult{IsValid: true, IsPaid: false, Status: "waiting"}, nil
	}
	return &VerifyResult{IsValid: true, IsPaid: true, Status: "completed", AmountReceived: expectedAmount}, nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	ledger  *wallet.Ledger
	gateway *fakeGateway

	user  model.User
	coach model.Coach
	basic model.Strategy // 50, two videos
	pro   model.Strategy // 100, renewal 80, three videos
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Coach{},
		&model.Strategy{},
		&model.StrategyVideo{},
		&model.Subscription{},
		&model.Wallet{},
		&model.WalletTransaction{},
		&model.CoachCommission{},
		&model.PendingPayment{},
		&model.PaymentTransaction{},
	))

	f := &fixture{db: db, gateway: &fakeGateway{paid: true}}
	f.ledger = wallet.NewLedger(db)
	f.svc = NewService(db, f.ledger, map[model.PaymentProvider]Gateway{
		model.PaymentProviderThreePay: f.gateway,
	}, "http://localhost:3000/api/webhooks")

	f.coach = model.Coach{Name: "Coach A", Email: "coach@example.com", CommissionPercentage: 30}
	require.NoError(t, db.Create(&f.coach).Error)

	f.user = model.User{Email: "alice@example.com", Name: "Alice", CoachID: &f.coach.ID}
	require.NoError(t, db.Create(&f.user).Error)

	f.basic = model.Strategy{Name: "Momentum Basics", Slug: "momentum-basics", Price: 50, DurationDays: 30}
	require.NoError(t, db.Create(&f.basic).Error)
	for i := 1; i <= 2; i++ {
		require.NoError(t, db.Create(&model.StrategyVideo{
			StrategyID: f.basic.ID, OrderIndex: i, Title: fmt.Sprintf("Basics %d", i),
		}).Error)
	}

	f.pro = model.Strategy{Name: "Swing Trading Pro", Slug: "swing-trading-pro", Price: 100, RenewalPrice: 80, DurationDays: 30}
	require.NoError(t, db.Create(&f.pro).Error)
	for i := 1; i <= 3; i++ {
		require.NoError(t, db.Create(&model.StrategyVideo{
			StrategyID: f.pro.ID, OrderIndex: i, Title: fmt.Sprintf("Pro %d", i),
		}).Error)
	}

	return f
}

func (f *fixture) videoIDs(t *testing.T, strategyID uint) []uint {
	t.Helper()
	var strategy model.Strategy
	require.NoError(t, f.db.Preload("Videos").First(&strategy, strategyID).Error)
	return strategy.OrderedVideoIDs()
}

func (f *fixture) reload(t *testing.T, id uint) *model.Subscription {
	t.Helper()
	var sub model.Subscription
	require.NoError(t, f.db.First(&sub, id).Error)
	return &sub
}

func adminCtx() PaymentContext {
	return PaymentContext{InitiatedBy: InitiatedByAdmin, PaymentMethod: string(model.PaymentProviderManual)}
}

func TestCreateSubscriptionCreditsWallets(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)
	require.Equal(t, model.SubscriptionStatusActive, sub.Status)
	require.Equal(t, 100.0, sub.StrategyPrice)
	require.Equal(t, 100.0, sub.AmountPaid)
	require.Equal(t, 30.0, sub.CoachCommissionPercentage)
	require.Equal(t, 3, sub.TotalVideos)

	coachWallet, err := f.ledger.GetOrCreateWallet(fmt.Sprint(f.coach.ID), model.WalletOwnerCoach, f.coach.Name)
	require.NoError(t, err)
	require.Equal(t, 30.0, coachWallet.Balance)

	systemWallet, err := f.ledger.SystemWallet()
	require.NoError(t, err)
	require.Equal(t, 70.0, systemWallet.Balance)

	var commission model.CoachCommission
	require.NoError(t, f.db.Where("subscription_id = ?", sub.ID).First(&commission).Error)
	require.Equal(t, 30.0, commission.CommissionAmount)
}

func TestCreateRejectsSecondActiveSubscription(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	_, err = f.svc.Create(f.user.ID, f.basic.ID, adminCtx())
	require.ErrorIs(t, err, ErrActiveSubscriptionExists)
}

func TestRenewPreservesProgress(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	videos := f.videoIDs(t, f.pro.ID)
	_, err = f.svc.CompleteVideo(sub.ID, videos[0], false)
	require.NoError(t, err)

	_, err = f.svc.SetPending(sub.ID)
	require.NoError(t, err)

	_, err = f.svc.Renew(sub.ID, adminCtx())
	require.NoError(t, err)

	renewed := f.reload(t, sub.ID)
	require.Equal(t, model.SubscriptionStatusActive, renewed.Status)
	require.Equal(t, 1, renewed.RenewalCount)
	require.Nil(t, renewed.ExpiredAt)
	require.Equal(t, 80.0, renewed.AmountPaid) // renewal price, not full price

	completed := NormalizeCompleted(renewed.CompletedVideos, videos)
	require.True(t, completed[videos[0]], "renewal must not reset progress")
}

func TestRenewalAmountFallsBackToPrice(t *testing.T) {
	if got := RenewalAmount(&model.Strategy{Price: 50}); got != 50 {
		t.Fatalf("expected 50, got %.2f", got)
	}
	if got := RenewalAmount(&model.Strategy{Price: 100, RenewalPrice: 80}); got != 80 {
		t.Fatalf("expected 80, got %.2f", got)
	}
}

func TestChangeStrategyResetsProgressAndRetakesSnapshots(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.basic.ID, adminCtx())
	require.NoError(t, err)

	basicVideos := f.videoIDs(t, f.basic.ID)
	_, err = f.svc.CompleteVideo(sub.ID, basicVideos[0], false)
	require.NoError(t, err)

	_, err = f.svc.ChangeStrategy(sub.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	changed := f.reload(t, sub.ID)
	require.Equal(t, f.pro.ID, changed.StrategyID)
	require.Equal(t, "Swing Trading Pro", changed.StrategyName)
	require.Equal(t, 100.0, changed.StrategyPrice)
	require.Equal(t, 50.0, changed.AmountPaid) // upgrade pays the difference
	require.Equal(t, 3, changed.TotalVideos)

	proVideos := f.videoIDs(t, f.pro.ID)
	completed := NormalizeCompleted(changed.CompletedVideos, proVideos)
	require.Empty(t, completed, "strategy change must reset progress")
}

func TestChangeQuote(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		next     float64
		want     float64
		wantType model.PendingPaymentType
	}{
		{"upgrade pays the difference", 50, 100, 50, model.PendingPaymentUpgrade},
		{"equal price is a free switch", 100, 100, 0, model.PendingPaymentUpgrade},
		{"downgrade pays the full new price", 100, 50, 50, model.PendingPaymentDowngrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, payType := ChangeQuote(tt.current, tt.next)
			if amount != tt.want || payType != tt.wantType {
				t.Fatalf("expected (%.2f, %s), got (%.2f, %s)", tt.want, tt.wantType, amount, payType)
			}
		})
	}
}

func TestInitiateAndConfirmNewSubscription(t *testing.T) {
	f := newFixture(t)

	pending, err := f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: f.pro.ID,
		Type:       model.PendingPaymentSubscription,
		Provider:   model.PaymentProviderThreePay,
	})
	require.NoError(t, err)
	require.Equal(t, model.PendingPaymentWaiting, pending.Status)
	require.Equal(t, 100.0, pending.Amount)
	require.Equal(t, 30.0, pending.CoachAmount)
	require.Equal(t, 70.0, pending.SystemAmount)
	require.NotEmpty(t, pending.PaymentURL)

	sub, err := f.svc.ConfirmPayment(pending.PaymentID)
	require.NoError(t, err)
	require.Equal(t, model.SubscriptionStatusActive, sub.Status)

	var reloaded model.PendingPayment
	require.NoError(t, f.db.First(&reloaded, pending.ID).Error)
	require.Equal(t, model.PendingPaymentCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
	require.NotNil(t, reloaded.SubscriptionID)
	require.Equal(t, sub.ID, *reloaded.SubscriptionID)

	coachWallet, err := f.ledger.GetOrCreateWallet(fmt.Sprint(f.coach.ID), model.WalletOwnerCoach, f.coach.Name)
	require.NoError(t, err)
	require.Equal(t, 30.0, coachWallet.Balance)
}

func TestConfirmPaymentReplayIsNoOp(t *testing.T) {
	f := newFixture(t)

	pending, err := f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: f.pro.ID,
		Type:       model.PendingPaymentSubscription,
		Provider:   model.PaymentProviderThreePay,
	})
	require.NoError(t, err)

	first, err := f.svc.ConfirmPayment(pending.PaymentID)
	require.NoError(t, err)

	// Duplicate webhook delivery.
	second, err := f.svc.ConfirmPayment(pending.PaymentID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var subs int64
	require.NoError(t, f.db.Model(&model.Subscription{}).Count(&subs).Error)
	require.EqualValues(t, 1, subs)

	coachWallet, err := f.ledger.GetOrCreateWallet(fmt.Sprint(f.coach.ID), model.WalletOwnerCoach, f.coach.Name)
	require.NoError(t, err)
	require.Equal(t, 30.0, coachWallet.Balance, "replay must not credit wallets twice")
}

func TestConfirmPaymentRejectsUnpaidTransaction(t *testing.T) {
	f := newFixture(t)

	pending, err := f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: f.pro.ID,
		Type:       model.PendingPaymentSubscription,
		Provider:   model.PaymentProviderThreePay,
	})
	require.NoError(t, err)

	f.gateway.paid = false
	_, err = f.svc.ConfirmPayment(pending.PaymentID)
	require.ErrorIs(t, err, ErrPaymentNotConfirmed)

	var reloaded model.PendingPayment
	require.NoError(t, f.db.First(&reloaded, pending.ID).Error)
	require.Equal(t, model.PendingPaymentWaiting, reloaded.Status)

	var subs int64
	require.NoError(t, f.db.Model(&model.Subscription{}).Count(&subs).Error)
	require.EqualValues(t, 0, subs)

	// Once the provider reports payment, the same pending row confirms.
	f.gateway.paid = true
	sub, err := f.svc.ConfirmPayment(pending.PaymentID)
	require.NoError(t, err)
	require.Equal(t, model.SubscriptionStatusActive, sub.Status)
}

func TestInitiatePaymentDuplicateAndPricing(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	_, err = f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: f.basic.ID,
		Type:       model.PendingPaymentSubscription,
		Provider:   model.PaymentProviderThreePay,
	})
	require.ErrorIs(t, err, ErrActiveSubscriptionExists)

	// Renewal uses the renewal price.
	renewal, err := f.svc.InitiatePayment(InitiateParams{
		UserID:   f.user.ID,
		Type:     model.PendingPaymentRenewal,
		Provider: model.PaymentProviderThreePay,
	})
	require.NoError(t, err)
	require.Equal(t, 80.0, renewal.Amount)
	require.NotNil(t, renewal.SubscriptionID)
	require.Equal(t, sub.ID, *renewal.SubscriptionID)

	// A cheaper strategy is a downgrade at the full new price.
	downgrade, err := f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: f.basic.ID,
		Type:       model.PendingPaymentUpgrade,
		Provider:   model.PaymentProviderThreePay,
	})
	require.NoError(t, err)
	require.Equal(t, model.PendingPaymentDowngrade, downgrade.Type)
	require.Equal(t, 50.0, downgrade.Amount)

	_, err = f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: f.pro.ID,
		Type:       model.PendingPaymentUpgrade,
		Provider:   model.PaymentProviderThreePay,
	})
	require.ErrorIs(t, err, ErrSameStrategy)
}

func TestInitiatePaymentEqualPriceSwitchIsFree(t *testing.T) {
	f := newFixture(t)

	twin := model.Strategy{Name: "Swing Twin", Slug: "swing-twin", Price: 100, DurationDays: 30}
	require.NoError(t, f.db.Create(&twin).Error)

	_, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	_, err = f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: twin.ID,
		Type:       model.PendingPaymentUpgrade,
		Provider:   model.PaymentProviderThreePay,
	})
	require.ErrorIs(t, err, ErrNoPaymentRequired)
}

func TestInitiatePaymentUnknownGateway(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.InitiatePayment(InitiateParams{
		UserID:     f.user.ID,
		StrategyID: f.pro.ID,
		Type:       model.PendingPaymentSubscription,
		Provider:   model.PaymentProviderStripe,
	})
	require.ErrorIs(t, err, ErrGatewayNotConfigured)
}

func TestConfirmRenewalViaGateway(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	pending, err := f.svc.InitiatePayment(InitiateParams{
		UserID:   f.user.ID,
		Type:     model.PendingPaymentRenewal,
		Provider: model.PaymentProviderThreePay,
	})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(pending.PaymentID)
	require.NoError(t, err)

	renewed := f.reload(t, sub.ID)
	require.Equal(t, 1, renewed.RenewalCount)
	require.Equal(t, 80.0, renewed.AmountPaid)
}

func TestCheckExpiredSubscriptionsSweep(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	videos := f.videoIDs(t, f.pro.ID)
	_, err = f.svc.CompleteVideo(sub.ID, videos[0], false)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&model.Subscription{}).Where("id = ?", sub.ID).
		Update("end_date", time.Now().Add(-time.Hour)).Error)

	affected, err := f.svc.CheckExpiredSubscriptions()
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	expired := f.reload(t, sub.ID)
	require.Equal(t, model.SubscriptionStatusPending, expired.Status)
	require.NotNil(t, expired.ExpiredAt)
	require.Equal(t, model.SubscriptionStatusExpired, expired.EffectiveStatus())

	completed := NormalizeCompleted(expired.CompletedVideos, videos)
	require.True(t, completed[videos[0]], "expiry must not touch progress")

	// The sweep converges; a second pass finds nothing.
	affected, err = f.svc.CheckExpiredSubscriptions()
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)
}

func TestCancelIsTerminal(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)

	_, err = f.svc.Cancel(sub.ID)
	require.NoError(t, err)

	cancelled := f.reload(t, sub.ID)
	require.Equal(t, model.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.Renew(sub.ID, adminCtx())
	require.ErrorIs(t, err, ErrSubscriptionCancelled)
	_, err = f.svc.ChangeStrategy(sub.ID, f.basic.ID, adminCtx())
	require.ErrorIs(t, err, ErrSubscriptionCancelled)
	_, err = f.svc.Cancel(sub.ID)
	require.ErrorIs(t, err, ErrSubscriptionCancelled)
}

func TestCompleteVideoGating(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)
	videos := f.videoIDs(t, f.pro.ID)

	_, err = f.svc.CompleteVideo(sub.ID, videos[1], false)
	require.ErrorIs(t, err, ErrVideoLocked)

	_, err = f.svc.CompleteVideo(sub.ID, videos[0], false)
	require.NoError(t, err)
	_, err = f.svc.CompleteVideo(sub.ID, videos[1], false)
	require.NoError(t, err)

	// Re-completing is a no-op, not an error.
	_, err = f.svc.CompleteVideo(sub.ID, videos[1], false)
	require.NoError(t, err)

	reloaded := f.reload(t, sub.ID)
	completed := NormalizeCompleted(reloaded.CompletedVideos, videos)
	require.Len(t, completed, 2)

	_, err = f.svc.CompleteVideo(sub.ID, 9999, false)
	require.ErrorIs(t, err, ErrVideoNotInStrategy)
}

func TestCompleteVideoAdminOverride(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)
	videos := f.videoIDs(t, f.pro.ID)

	// Admins skip the sequential gate.
	_, err = f.svc.CompleteVideo(sub.ID, videos[2], true)
	require.NoError(t, err)

	_, err = f.svc.SetPending(sub.ID)
	require.NoError(t, err)

	_, err = f.svc.CompleteVideo(sub.ID, videos[0], false)
	require.ErrorIs(t, err, ErrSubscriptionNotActive)
	_, err = f.svc.CompleteVideo(sub.ID, videos[0], true)
	require.NoError(t, err)
}

func TestCanAccessSubscriptionVideo(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(f.user.ID, f.pro.ID, adminCtx())
	require.NoError(t, err)
	videos := f.videoIDs(t, f.pro.ID)

	ok, err := f.svc.CanAccessSubscriptionVideo(sub, videos[0], false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.svc.CanAccessSubscriptionVideo(sub, videos[1], false)
	require.NoError(t, err)
	require.False(t, ok)

	// Non-active subscriptions lose playback except for admins.
	_, err = f.svc.SetPending(sub.ID)
	require.NoError(t, err)
	pending := f.reload(t, sub.ID)

	ok, err = f.svc.CanAccessSubscriptionVideo(pending, videos[0], false)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.svc.CanAccessSubscriptionVideo(pending, videos[0], true)
	require.NoError(t, err)
	require.True(t, ok)
}
