// Package nowpayments keeps the legacy NOWPayments integration. New payments
// go through 3Pay; this client stays selectable for merchants still on the
// old gateway.
package nowpayments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"coachpage_backend/pkg/subscription"
)

var paidStatuses = map[string]bool{
	"finished":  true,
	"confirmed": true,
}

type Client struct {
	apiKey    string
	ipnSecret string
	baseURL   string
	http      *http.Client
}

func New(apiKey, ipnSecret, baseURL string) *Client {
	return &Client{
		apiKey:    apiKey,
		ipnSecret: ipnSecret,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type Invoice struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
}

type PaymentStatus struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	PayAmount     float64     `json:"pay_amount"`
	ActuallyPaid  float64     `json:"actually_paid"`
	PriceAmount   float64     `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
}

type createInvoiceRequest struct {
	PriceAmount   float64 `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
	OrderID       string  `json:"order_id,omitempty"`
	IPNCallback   string  `json:"ipn_callback_url,omitempty"`
}

func (c *Client) CreateInvoice(amount float64, currency, orderID, callbackURL string) (*Invoice, error) {
	body, err := json.Marshal(createInvoiceRequest{
		PriceAmount:   amount,
		PriceCurrency: currency,
		OrderID:       orderID,
		IPNCallback:   callbackURL,
	})
	if err != nil {
		return nil, err
	}

	var invoice Invoice
	if err := c.do(http.MethodPost, "/v1/invoice", bytes.NewReader(body), &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (c *Client) GetPaymentStatus(paymentID string) (*PaymentStatus, error) {
	var status PaymentStatus
	if err := c.do(http.MethodGet, "/v1/payment/"+paymentID, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateTransaction adapts invoice creation to the gateway contract.
func (c *Client) CreateTransaction(amount float64, currencyType, callbackURL string) (*subscription.GatewayTransaction, error) {
	currency := "usd"
	if currencyType != "" && currencyType != "crypto" {
		currency = currencyType
	}
	invoice, err := c.CreateInvoice(amount, currency, "", callbackURL)
	if err != nil {
		return nil, err
	}
	return &subscription.GatewayTransaction{
		TransactionID: invoice.ID,
		PaymentURL:    invoice.InvoiceURL,
	}, nil
}

// VerifyCallback re-fetches payment state from the API; the IPN body is only
// used to locate the payment, never to decide whether it is paid.
func (c *Client) VerifyCallback(paymentID string, expectedAmount float64) (*subscription.VerifyResult, error) {
	status, err := c.GetPaymentStatus(paymentID)
	if err != nil {
		return nil, err
	}

	return &subscription.VerifyResult{
		IsValid:        true,
		IsPaid:         paidStatuses[status.PaymentStatus] && status.ActuallyPaid >= expectedAmount,
		Status:         status.PaymentStatus,
		AmountReceived: status.ActuallyPaid,
	}, nil
}

// VerifyIPNSignature checks the x-nowpayments-sig header: HMAC-SHA512 of the
// request body re-serialized with sorted keys.
func (c *Client) VerifyIPNSignature(payload []byte, signature string) bool {
	if c.ipnSecret == "" || signature == "" {
		return false
	}

	sorted, err := sortedJSON(payload)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(c.ipnSecret))
	mac.Write(sorted)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func sortedJSON(payload []byte) ([]byte, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, err := json.Marshal(data[k])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Client) do(method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nowpayments request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nowpayments API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.Unmarshal(respBody, out)
}
