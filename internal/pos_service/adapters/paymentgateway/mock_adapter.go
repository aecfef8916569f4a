package paymentgateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
)

// MockGatewayAdapter is an in-memory gateway for local development and
// demos. Sessions always succeed, every status poll reports settlement,
// and any signature verifies.
type MockGatewayAdapter struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]string // order id -> token
}

func NewMockGatewayAdapter(logger *slog.Logger) *MockGatewayAdapter {
	return &MockGatewayAdapter{
		logger:   logger.With("adapter", "mock_gateway"),
		sessions: make(map[string]string),
	}
}

func (m *MockGatewayAdapter) CreateSession(ctx context.Context, txn *domain.Transaction) (*domain.CreateSessionResponse, error) {
	if txn.GatewayOrderID == nil {
		return nil, fmt.Errorf("%w: transaction has no gateway order id", domain.ErrGatewayUnavailable)
	}
	token := uuid.NewString()
	m.mu.Lock()
	m.sessions[*txn.GatewayOrderID] = token
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Mock gateway session created",
		"order_id", *txn.GatewayOrderID, "gross_amount", txn.Total)
	return &domain.CreateSessionResponse{
		Token:       token,
		RedirectURL: "https://mock-gateway.local/checkout/" + token,
	}, nil
}

func (m *MockGatewayAdapter) FetchStatus(ctx context.Context, orderID string) (*domain.StatusResponse, error) {
	m.mu.Lock()
	_, known := m.sessions[orderID]
	m.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: unknown order %s", domain.ErrGatewayUnavailable, orderID)
	}
	m.logger.InfoContext(ctx, "Mock gateway status poll", "order_id", orderID)
	return &domain.StatusResponse{TransactionStatus: domain.GatewayStatusSettlement}, nil
}

func (m *MockGatewayAdapter) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return true
}
