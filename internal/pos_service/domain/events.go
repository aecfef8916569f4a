package domain

import "time"

// Transaction lifecycle event types.
const (
	EventTransactionCreated        = "TransactionCreated"
	EventPaymentStatusTransitioned = "PaymentStatusTransitioned"
)

// TransactionEvent is published whenever a transaction is created or its
// payment status changes. Events for one invoice are keyed by the invoice
// number so consumers see them in order.
type TransactionEvent struct {
	EventID       string        `json:"event_id"`
	EventType     string        `json:"event_type"`
	TransactionID int64         `json:"transaction_id"`
	InvoiceNumber string        `json:"invoice_number"`
	OldStatus     PaymentStatus `json:"old_status,omitempty"`
	NewStatus     PaymentStatus `json:"new_status"`
	Source        string        `json:"source"` // submit | sync | callback
	OccurredAt    time.Time     `json:"occurred_at"`
}
