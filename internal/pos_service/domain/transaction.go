package domain

import "time"

// PaymentMethod identifies how a sale is settled.
type PaymentMethod string

const (
	PaymentMethodGateway  PaymentMethod = "gateway"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodGateway, PaymentMethodCash, PaymentMethodTransfer:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of a transaction.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// DefaultCustomerName is recorded for walk-in sales with no customer name.
const DefaultCustomerName = "Umum"

// Transaction is a finalized sale. Immutable after creation except for the
// payment-status fields and the stock-released flag, which only the
// reconciliation paths touch.
type Transaction struct {
	ID            int64         `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	OperatorID    int64         `json:"kasir_id"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone *string       `json:"customer_phone,omitempty"`
	Subtotal      int64         `json:"subtotal"`
	Discount      int64         `json:"discount"`
	Tax           int64         `json:"tax"`
	Total         int64         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	// Gateway session fields, populated only for PaymentMethodGateway.
	GatewayOrderID     *string `json:"gateway_order_id,omitempty"`
	GatewayToken       *string `json:"gateway_token,omitempty"`
	GatewayRedirectURL *string `json:"gateway_redirect_url,omitempty"`

	// StockReleased guards the failure path: reserved stock is returned at
	// most once per transaction, no matter how often poll and webhook race.
	StockReleased bool `json:"stock_released"`

	PaidAt    *time.Time        `json:"paid_at,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Items     []TransactionItem `json:"items,omitempty"`
}

// TransactionItem is a sale line. Product identity is snapshotted at sale
// time; ProductID is a weak reference and may be nil after catalog cleanup.
type TransactionItem struct {
	ID            int64  `json:"id"`
	TransactionID int64  `json:"transaction_id"`
	ProductID     *int64 `json:"product_id,omitempty"`
	ProductName   string `json:"product_name"`
	ProductSKU    string `json:"product_sku"`
	Price         int64  `json:"price"`
	Quantity      int    `json:"quantity"`
	Discount      int64  `json:"discount"`
	Subtotal      int64  `json:"subtotal"`
}

// Gateway transaction_status values, as delivered by both the status poll
// and the webhook callback.
const (
	GatewayStatusCapture    = "capture"
	GatewayStatusSettlement = "settlement"
	GatewayStatusCancel     = "cancel"
	GatewayStatusDeny       = "deny"
	GatewayStatusExpire     = "expire"
	GatewayStatusRefund     = "refund"

	FraudStatusChallenge = "challenge"
)

// MapGatewayStatus reduces a gateway status report to a payment status.
// It is pure and order-independent: poll and webhook must agree on the
// mapping so the last applied report wins regardless of delivery order.
func MapGatewayStatus(transactionStatus, fraudStatus string) PaymentStatus {
	switch transactionStatus {
	case GatewayStatusCapture:
		if fraudStatus == FraudStatusChallenge {
			return PaymentStatusPending
		}
		return PaymentStatusSuccess
	case GatewayStatusSettlement:
		return PaymentStatusSuccess
	case GatewayStatusCancel, GatewayStatusDeny, GatewayStatusExpire:
		return PaymentStatusFailed
	case GatewayStatusRefund:
		return PaymentStatusRefunded
	default:
		return PaymentStatusPending
	}
}
