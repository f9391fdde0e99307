package subscription

// GatewayTransaction is the provider-side handle for a newly created payment.
type GatewayTransaction struct {
	TransactionID string
	PaymentURL    string
}

// VerifyResult is the provider's answer when a transaction is re-checked.
// IsPaid must only be true for a completed-class status with the full
// expected amount received; callers never trust webhook payloads directly.
type VerifyResult struct {
	IsValid        bool
	IsPaid         bool
	Status         string
	AmountReceived float64
}

// Gateway is the contract the state machine holds on a payment provider.
type Gateway interface {
	CreateTransaction(amount float64, currencyType, callbackURL string) (*GatewayTransaction, error)
	// VerifyCallback re-fetches the transaction directly from the provider.
	VerifyCallback(transactionID string, expectedAmount float64) (*VerifyResult, error)
}
