// Package stripepay integrates Stripe Checkout as a card payment rail
// alongside the crypto providers.
package stripepay

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"

	"coachpage_backend/pkg/config"
	"coachpage_backend/pkg/subscription"
)

type Gateway struct {
	mode        config.PaymentMode
	successURL  string
	cancelURL   string
	productName string
}

func New(cfg config.PaymentConfig, publicURL string) *Gateway {
	stripe.Key = cfg.StripeSecretKey

	return &Gateway{
		mode:        cfg.Mode,
		successURL:  publicURL + "/payments/stripe/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:   publicURL + "/payments/stripe/cancel",
		productName: "Strategy Subscription",
	}
}

// CreateTransaction opens a Checkout Session for a one-time charge. The
// session ID is the transaction handle used to verify payment later.
func (g *Gateway) CreateTransaction(amount float64, currencyType, callbackURL string) (*subscription.GatewayTransaction, error) {
	if g.mode == config.PaymentModeTest {
		id := "test_cs_" + uuid.New().String()
		return &subscription.GatewayTransaction{
			TransactionID: id,
			PaymentURL:    "https://checkout.stripe.com/test/" + id,
		}, nil
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(g.productName),
					},
					UnitAmount: stripe.Int64(int64(amount * 100)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("could not create Stripe checkout session: %w", err)
	}

	return &subscription.GatewayTransaction{
		TransactionID: s.ID,
		PaymentURL:    s.URL,
	}, nil
}

// VerifyCallback re-fetches the Checkout Session from Stripe instead of
// trusting the webhook payload. Paid means Stripe reports payment_status
// "paid" and the session total covers the expected amount.
func (g *Gateway) VerifyCallback(transactionID string, expectedAmount float64) (*subscription.VerifyResult, error) {
	if g.mode == config.PaymentModeTest {
		return &subscription.VerifyResult{
			IsValid:        true,
			IsPaid:         true,
			Status:         "paid",
			AmountReceived: expectedAmount,
		}, nil
	}

	s, err := session.Get(transactionID, nil)
	if err != nil {
		return nil, fmt.Errorf("could not fetch Stripe checkout session: %w", err)
	}

	received := float64(s.AmountTotal) / 100

	return &subscription.VerifyResult{
		IsValid:        true,
		IsPaid:         s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid && received >= expectedAmount,
		Status:         string(s.PaymentStatus),
		AmountReceived: received,
	}, nil
}
