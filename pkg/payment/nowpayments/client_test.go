package nowpayments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sign(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	sorted, err := sortedJSON(payload)
	if err != nil {
		t.Fatalf("could not sort payload: %v", err)
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(sorted)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyIPNSignature(t *testing.T) {
	client := New("api-key", "ipn-secret", "https://api.nowpayments.io")

	payload := []byte(`{"payment_id":123,"payment_status":"finished","price_amount":50}`)
	if !client.VerifyIPNSignature(payload, sign(t, "ipn-secret", payload)) {
		t.Fatal("expected a valid signature to verify")
	}

	// Verification is key-order independent; NOWPayments signs sorted JSON.
	reordered := []byte(`{"price_amount":50,"payment_id":123,"payment_status":"finished"}`)
	if !client.VerifyIPNSignature(reordered, sign(t, "ipn-secret", payload)) {
		t.Fatal("expected reordered payload to verify against the same signature")
	}
}

func TestVerifyIPNSignatureRejects(t *testing.T) {
	client := New("api-key", "ipn-secret", "https://api.nowpayments.io")
	payload := []byte(`{"payment_id":123,"payment_status":"finished"}`)

	tampered := []byte(`{"payment_id":123,"payment_status":"waiting"}`)
	if client.VerifyIPNSignature(tampered, sign(t, "ipn-secret", payload)) {
		t.Fatal("expected a tampered payload to fail verification")
	}

	if client.VerifyIPNSignature(payload, sign(t, "wrong-secret", payload)) {
		t.Fatal("expected a signature from the wrong secret to fail")
	}

	if client.VerifyIPNSignature(payload, "") {
		t.Fatal("expected an empty signature to fail")
	}

	noSecret := New("api-key", "", "https://api.nowpayments.io")
	if noSecret.VerifyIPNSignature(payload, sign(t, "", payload)) {
		t.Fatal("expected verification to fail when no secret is configured")
	}
}

func TestVerifyCallback(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		paid     float64
		expected float64
		wantPaid bool
	}{
		{"finished with full amount", "finished", 50, 50, true},
		{"confirmed counts as paid", "confirmed", 50, 50, true},
		{"finished but short paid", "finished", 45, 50, false},
		{"waiting", "waiting", 0, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/payment/pay_1" {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				if got := r.Header.Get("x-api-key"); got != "api-key" {
					t.Fatalf("unexpected api key header: %s", got)
				}
				json.NewEncoder(w).Encode(map[string]interface{}{
					"payment_id":     1,
					"payment_status": tt.status,
					"actually_paid":  tt.paid,
				})
			}))
			t.Cleanup(srv.Close)

			client := New("api-key", "ipn-secret", srv.URL)
			result, err := client.VerifyCallback("pay_1", tt.expected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsPaid != tt.wantPaid {
				t.Fatalf("expected IsPaid=%v, got %v", tt.wantPaid, result.IsPaid)
			}
		})
	}
}
