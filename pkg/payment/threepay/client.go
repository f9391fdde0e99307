// Package threepay integrates the primary crypto payment provider.
package threepay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"coachpage_backend/pkg/config"
	"coachpage_backend/pkg/subscription"
)

// Statuses the provider reports for a transaction. Only completed-class
// statuses can ever mark a payment as paid.
var paidStatuses = map[string]bool{
	"completed": true,
	"confirmed": true,
	"finished":  true,
}

type Client struct {
	apiKey     string
	merchantID string
	baseURL    string
	mode       config.PaymentMode
	http       *http.Client
}

func New(cfg config.PaymentConfig) *Client {
	return &Client{
		apiKey:     cfg.ThreePayAPIKey,
		merchantID: cfg.ThreePayMerchantID,
		baseURL:    cfg.ThreePayBaseURL,
		mode:       cfg.Mode,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Transaction is the provider's view of one payment.
type Transaction struct {
	TransactionID  string  `json:"transaction_id"`
	Status         string  `json:"status"`
	Amount         float64 `json:"amount"`
	CurrencyType   string  `json:"currency_type"`
	PaymentURL     string  `json:"payment_url"`
	ActualBalance  float64 `json:"actual_balance_received"`
	CreatedAt      string  `json:"created_at"`
	CompletedAt    string  `json:"completed_at"`
}

type createTransactionRequest struct {
	MerchantID   string  `json:"merchant_id"`
	Amount       float64 `json:"amount"`
	CurrencyType string  `json:"currency_type"`
	CallbackURL  string  `json:"callback_url"`
}

// CreateTransaction opens a payment with the provider and returns the
// transaction handle plus the hosted payment page URL. In test mode a
// deterministic local transaction is synthesized instead of calling out.
func (c *Client) CreateTransaction(amount float64, currencyType, callbackURL string) (*subscription.GatewayTransaction, error) {
	if c.mode == config.PaymentModeTest {
		id := "test_" + uuid.New().String()
		return &subscription.GatewayTransaction{
			TransactionID: id,
			PaymentURL:    fmt.Sprintf("%s/pay/test/%s", c.baseURL, id),
		}, nil
	}

	body, err := json.Marshal(createTransactionRequest{
		MerchantID:   c.merchantID,
		Amount:       amount,
		CurrencyType: currencyType,
		CallbackURL:  callbackURL,
	})
	if err != nil {
		return nil, err
	}

	var tx Transaction
	if err := c.do(http.MethodPost, "/api/v1/transactions", bytes.NewReader(body), &tx); err != nil {
		return nil, err
	}

	return &subscription.GatewayTransaction{
		TransactionID: tx.TransactionID,
		PaymentURL:    tx.PaymentURL,
	}, nil
}

// GetTransaction re-fetches a transaction's current state from the provider.
func (c *Client) GetTransaction(transactionID string) (*Transaction, error) {
	var tx Transaction
	if err := c.do(http.MethodGet, "/api/v1/transactions/"+transactionID, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// VerifyCallback checks payment state directly with the provider instead of
// trusting the webhook payload, so a forged callback cannot mark a payment
// paid. The payment only counts when the status is completed-class AND the
// balance actually received covers the expected amount.
func (c *Client) VerifyCallback(transactionID string, expectedAmount float64) (*subscription.VerifyResult, error) {
	if c.mode == config.PaymentModeTest {
		return &subscription.VerifyResult{
			IsValid:        true,
			IsPaid:         true,
			Status:         "completed",
			AmountReceived: expectedAmount,
		}, nil
	}

	tx, err := c.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}

	return &subscription.VerifyResult{
		IsValid:        true,
		IsPaid:         paidStatuses[tx.Status] && tx.ActualBalance >= expectedAmount,
		Status:         tx.Status,
		AmountReceived: tx.ActualBalance,
	}, nil
}

func (c *Client) do(method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("3pay request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("3pay API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.Unmarshal(respBody, out)
}
