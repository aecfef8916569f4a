package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		expected          PaymentStatus
	}{
		{"capture accepted", GatewayStatusCapture, "accept", PaymentStatusSuccess},
		{"capture no fraud status", GatewayStatusCapture, "", PaymentStatusSuccess},
		{"capture challenged", GatewayStatusCapture, FraudStatusChallenge, PaymentStatusPending},
		{"settlement", GatewayStatusSettlement, "", PaymentStatusSuccess},
		{"cancel", GatewayStatusCancel, "", PaymentStatusFailed},
		{"deny", GatewayStatusDeny, "", PaymentStatusFailed},
		{"expire", GatewayStatusExpire, "", PaymentStatusFailed},
		{"refund", GatewayStatusRefund, "", PaymentStatusRefunded},
		{"unknown status stays pending", "authorize", "", PaymentStatusPending},
		{"empty status stays pending", "", "", PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGatewayStatus(tt.transactionStatus, tt.fraudStatus))
		})
	}
}

func TestMapGatewayStatus_OrderIndependent(t *testing.T) {
	// Poll and webhook must reduce the same report to the same status no
	// matter which path delivers it first.
	first := MapGatewayStatus(GatewayStatusSettlement, "")
	second := MapGatewayStatus(GatewayStatusSettlement, "")
	assert.Equal(t, first, second)
	assert.Equal(t, PaymentStatusSuccess, first)
}

func TestPaymentMethodValid(t *testing.T) {
	assert.True(t, PaymentMethodGateway.Valid())
	assert.True(t, PaymentMethodCash.Valid())
	assert.True(t, PaymentMethodTransfer.Valid())
	assert.False(t, PaymentMethod("voucher").Valid())
	assert.False(t, PaymentMethod("").Valid())
}

func TestProductIsLowStock(t *testing.T) {
	p := &Product{Stock: 5, MinStock: 5}
	assert.True(t, p.IsLowStock())

	p.Stock = 6
	assert.False(t, p.IsLowStock())

	p.Stock = 0
	assert.True(t, p.IsLowStock())
}
