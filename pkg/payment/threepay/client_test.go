package threepay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coachpage_backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := New(config.PaymentConfig{
		ThreePayAPIKey:     "test-key",
		ThreePayMerchantID: "merchant-1",
		ThreePayBaseURL:    srv.URL,
		Mode:               config.PaymentModeProduction,
	})
	return client, srv
}

func TestCreateTransactionTestMode(t *testing.T) {
	client := New(config.PaymentConfig{
		ThreePayBaseURL: "https://api.3pay.io",
		Mode:            config.PaymentModeTest,
	})

	gtx, err := client.CreateTransaction(100, "crypto", "http://localhost/cb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(gtx.TransactionID, "test_") {
		t.Fatalf("expected synthetic test transaction id, got %s", gtx.TransactionID)
	}
	if gtx.PaymentURL == "" {
		t.Fatal("expected a payment URL")
	}
}

func TestCreateTransaction(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/transactions" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("could not decode request: %v", err)
		}
		if req["merchant_id"] != "merchant-1" || req["amount"] != 100.0 {
			t.Fatalf("unexpected request body: %v", req)
		}

		json.NewEncoder(w).Encode(Transaction{
			TransactionID: "tx_123",
			Status:        "waiting",
			PaymentURL:    "https://pay.3pay.io/tx_123",
		})
	})

	gtx, err := client.CreateTransaction(100, "crypto", "http://localhost/cb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gtx.TransactionID != "tx_123" || gtx.PaymentURL != "https://pay.3pay.io/tx_123" {
		t.Fatalf("unexpected transaction: %+v", gtx)
	}
}

func TestVerifyCallback(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		balance  float64
		expected float64
		wantPaid bool
	}{
		{"completed with full balance", "completed", 50, 50, true},
		{"completed with overpayment", "completed", 55, 50, true},
		{"completed but short paid", "completed", 40, 50, false},
		{"still waiting", "waiting", 0, 50, false},
		{"failed", "failed", 50, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/transactions/tx_123" {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode(Transaction{
					TransactionID: "tx_123",
					Status:        tt.status,
					ActualBalance: tt.balance,
				})
			})

			result, err := client.VerifyCallback("tx_123", tt.expected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsPaid != tt.wantPaid {
				t.Fatalf("expected IsPaid=%v, got %v (status=%s balance=%.2f)",
					tt.wantPaid, result.IsPaid, tt.status, tt.balance)
			}
		})
	}
}

func TestVerifyCallbackAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	if _, err := client.VerifyCallback("missing", 10); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}
