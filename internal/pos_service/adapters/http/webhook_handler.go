package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bintangnusa/pos-backend/internal/pos_service/app"
	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
)

const maxWebhookBodySize = 1 << 20 // 1 MB

// PaymentCallbackProcessor is the application-layer dependency of the
// webhook handler, narrowed for mocking.
type PaymentCallbackProcessor interface {
	HandleCallback(ctx context.Context, req app.CallbackRequest) error
}

// WebhookHandler receives payment-status notifications from the gateway.
// It is mounted outside the auth middleware: the gateway authenticates by
// signature, not by bearer token.
type WebhookHandler struct {
	service PaymentCallbackProcessor
	logger  *slog.Logger
}

func NewWebhookHandler(service PaymentCallbackProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With("component", "webhook_handler"),
	}
}

// HandlePaymentCallback processes one gateway notification. The gateway
// retries non-2xx responses, so only genuinely retryable failures return
// an error status.
func (h *WebhookHandler) HandlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	var req app.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode webhook payload", "error", err)
		respondWithError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}
	defer r.Body.Close()

	logger.InfoContext(ctx, "Received payment webhook",
		"order_id", req.OrderID,
		"transaction_status", req.TransactionStatus,
		"fraud_status", req.FraudStatus,
	)

	if err := h.service.HandleCallback(ctx, req); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			logger.WarnContext(ctx, "Webhook signature rejected", "order_id", req.OrderID)
			respondWithError(w, http.StatusForbidden, "invalid signature")
		case errors.Is(err, domain.ErrNotFound):
			logger.WarnContext(ctx, "Webhook for unknown order", "order_id", req.OrderID)
			respondWithError(w, http.StatusNotFound, "transaction not found")
		default:
			logger.ErrorContext(ctx, "Error processing payment webhook", "order_id", req.OrderID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Message: "callback processed"})
}
