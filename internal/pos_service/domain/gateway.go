package domain

import "context"

// CreateSessionResponse is the gateway's answer to a session request: an
// opaque token plus the hosted-checkout redirect URL.
type CreateSessionResponse struct {
	Token       string
	RedirectURL string
}

// StatusResponse is the gateway's current view of one payment attempt.
type StatusResponse struct {
	TransactionStatus string
	FraudStatus       string
}

// PaymentGatewayAdapter abstracts the external payment processor. Both
// outbound calls must respect the context deadline; a failure is surfaced
// as ErrGatewayUnavailable (wrapped with the provider message when one is
// available).
type PaymentGatewayAdapter interface {
	CreateSession(ctx context.Context, txn *Transaction) (*CreateSessionResponse, error)
	FetchStatus(ctx context.Context, orderID string) (*StatusResponse, error)
	// VerifySignature recomputes the webhook digest over
	// orderID‖statusCode‖grossAmount‖serverKey and compares in constant
	// time.
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
}
