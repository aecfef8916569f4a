package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
	"github.com/bintangnusa/pos-backend/internal/pos_service/repository"
)

// EventPublisher receives transaction lifecycle events. Implementations
// must not block the request path; publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TransactionEvent)
}

// SubmitItem is one cart line as received from the API.
type SubmitItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Discount  int64 `json:"discount"`
}

// SubmitRequest is a sale submission.
type SubmitRequest struct {
	CustomerName  string               `json:"customer_name"`
	CustomerPhone *string              `json:"customer_phone"`
	Items         []SubmitItem         `json:"items"`
	Discount      int64                `json:"discount"`
	TaxPercentage *float64             `json:"tax_percentage"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Notes         *string              `json:"notes"`
}

// CallbackRequest is the payload of an inbound gateway webhook.
type CallbackRequest struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// ReportResult bundles the read-only aggregations over successful sales.
type ReportResult struct {
	Summary     *repository.ReportSummary      `json:"summary"`
	Daily       []repository.DailyReportRow    `json:"daily_report"`
	TopProducts []repository.TopProductRow     `json:"top_products"`
	Operators   []repository.OperatorReportRow `json:"kasir_report"`
}

// TransactionService is the transaction-processing core: it turns carts
// into priced, stock-adjusted, invoiced sales and reconciles gateway state
// back into them.
type TransactionService struct {
	db           repository.DB
	transactions repository.TransactionRepository
	products     repository.ProductRepository
	sequences    repository.InvoiceSequenceRepository
	gateway      domain.PaymentGatewayAdapter
	events       EventPublisher
	logger       *slog.Logger

	invoicePrefix     string
	defaultTaxPercent float64
	now               func() time.Time
}

func NewTransactionService(
	db repository.DB,
	transactions repository.TransactionRepository,
	products repository.ProductRepository,
	sequences repository.InvoiceSequenceRepository,
	gateway domain.PaymentGatewayAdapter,
	events EventPublisher,
	logger *slog.Logger,
	invoicePrefix string,
	defaultTaxPercent float64,
) *TransactionService {
	return &TransactionService{
		db:                db,
		transactions:      transactions,
		products:          products,
		sequences:         sequences,
		gateway:           gateway,
		events:            events,
		logger:            logger.With("service", "transaction"),
		invoicePrefix:     invoicePrefix,
		defaultTaxPercent: defaultTaxPercent,
		now:               time.Now,
	}
}

// Submit converts a cart into a persisted transaction. The whole unit —
// stock reservation, invoice numbering, persistence and, for the gateway
// method, session creation — commits or rolls back together.
func (s *TransactionService) Submit(ctx context.Context, operatorID int64, req SubmitRequest) (*domain.Transaction, error) {
	if !req.PaymentMethod.Valid() {
		transactionsSubmittedCounter.WithLabelValues(string(req.PaymentMethod), "invalid_cart").Inc()
		return nil, fmt.Errorf("%w: unsupported payment method %q", domain.ErrInvalidCart, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		transactionsSubmittedCounter.WithLabelValues(string(req.PaymentMethod), "invalid_cart").Inc()
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrInvalidCart)
	}

	taxPercent := s.defaultTaxPercent
	if req.TaxPercentage != nil {
		taxPercent = *req.TaxPercentage
	}

	var created *domain.Transaction
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		products, err := s.lockProducts(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		lines := make([]CartLine, 0, len(req.Items))
		for _, item := range req.Items {
			lines = append(lines, CartLine{ProductID: item.ProductID, Quantity: item.Quantity, Discount: item.Discount})
		}
		priced, err := PriceCart(products, lines, req.Discount, taxPercent)
		if err != nil {
			return err
		}

		// All-or-nothing reservation: any shortfall aborts the unit and
		// every decrement so far rolls back with it.
		for _, line := range priced.Lines {
			if err := s.products.DecrementStock(ctx, tx, line.Product.ID, line.Quantity); err != nil {
				if errors.Is(err, domain.ErrInsufficientStock) {
					return &domain.InsufficientStockError{
						ProductName: line.Product.Name,
						Available:   line.Product.Stock,
						Requested:   line.Quantity,
					}
				}
				return err
			}
		}

		day := s.now()
		counter, err := s.sequences.Next(ctx, tx, s.invoicePrefix, day)
		if err != nil {
			return err
		}
		invoiceNumber := FormatInvoiceNumber(s.invoicePrefix, day, counter)

		txn := s.buildTransaction(operatorID, req, priced, invoiceNumber)
		created, err = s.transactions.Create(ctx, tx, txn)
		if err != nil {
			return err
		}

		if req.PaymentMethod == domain.PaymentMethodGateway {
			start := s.now()
			session, err := s.gateway.CreateSession(ctx, created)
			gatewayRequestDurationHist.WithLabelValues("create_session").Observe(time.Since(start).Seconds())
			if err != nil {
				// Abort the whole unit: rows, stock and invoice counter
				// all roll back, as if the request never happened.
				s.logger.ErrorContext(ctx, "Gateway session creation failed, rolling back submit",
					"invoice_number", invoiceNumber, "error", err)
				return err
			}
			if err := s.transactions.UpdateGatewaySession(ctx, tx, created.ID, session.Token, session.RedirectURL); err != nil {
				return err
			}
			created.GatewayToken = &session.Token
			created.GatewayRedirectURL = &session.RedirectURL
		}
		return nil
	})
	if err != nil {
		transactionsSubmittedCounter.WithLabelValues(string(req.PaymentMethod), submitFailureLabel(err)).Inc()
		return nil, err
	}

	transactionsSubmittedCounter.WithLabelValues(string(req.PaymentMethod), "created").Inc()
	s.logger.InfoContext(ctx, "Transaction submitted",
		"transaction_id", created.ID,
		"invoice_number", created.InvoiceNumber,
		"payment_method", created.PaymentMethod,
		"payment_status", created.PaymentStatus,
		"total", created.Total,
	)
	s.publish(ctx, domain.EventTransactionCreated, created, "", created.PaymentStatus, "submit")
	return created, nil
}

// lockProducts locks every distinct product in the cart in ascending id
// order so concurrent submits cannot deadlock on each other.
func (s *TransactionService) lockProducts(ctx context.Context, tx pgx.Tx, items []SubmitItem) (map[int64]*domain.Product, error) {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		p, err := s.products.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %d does not exist", domain.ErrInvalidCart, id)
			}
			return nil, err
		}
		products[id] = p
	}
	return products, nil
}

func (s *TransactionService) buildTransaction(operatorID int64, req SubmitRequest, priced *PricedOrder, invoiceNumber string) *domain.Transaction {
	customerName := req.CustomerName
	if customerName == "" {
		customerName = domain.DefaultCustomerName
	}

	status := domain.PaymentStatusPending
	var paidAt *time.Time
	if req.PaymentMethod == domain.PaymentMethodCash {
		status = domain.PaymentStatusSuccess
		t := s.now().UTC()
		paidAt = &t
	}

	txn := &domain.Transaction{
		InvoiceNumber: invoiceNumber,
		OperatorID:    operatorID,
		CustomerName:  customerName,
		CustomerPhone: req.CustomerPhone,
		Subtotal:      priced.Subtotal,
		Discount:      priced.Discount,
		Tax:           priced.Tax,
		Total:         priced.Total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: status,
		PaidAt:        paidAt,
		Notes:         req.Notes,
	}
	if req.PaymentMethod == domain.PaymentMethodGateway {
		// The invoice number doubles as the gateway order id; the webhook
		// and the status poll both address the sale by it.
		orderID := invoiceNumber
		txn.GatewayOrderID = &orderID
	}

	txn.Items = make([]domain.TransactionItem, 0, len(priced.Lines))
	for _, line := range priced.Lines {
		productID := line.Product.ID
		txn.Items = append(txn.Items, domain.TransactionItem{
			ProductID:   &productID,
			ProductName: line.Product.Name,
			ProductSKU:  line.Product.SKU,
			Price:       line.Product.Price,
			Quantity:    line.Quantity,
			Discount:    line.Discount,
			Subtotal:    line.Subtotal,
		})
	}
	return txn
}

// SyncStatus polls the gateway for the transaction's current payment state
// and applies it. Non-gateway and already-successful transactions are
// returned unchanged.
func (s *TransactionService) SyncStatus(ctx context.Context, id int64) (*domain.Transaction, error) {
	txn, err := s.transactions.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if txn.PaymentMethod != domain.PaymentMethodGateway || txn.PaymentStatus == domain.PaymentStatusSuccess || txn.GatewayOrderID == nil {
		s.logger.InfoContext(ctx, "Nothing to synchronize", "transaction_id", id, "payment_status", txn.PaymentStatus)
		return txn, nil
	}

	start := s.now()
	status, err := s.gateway.FetchStatus(ctx, *txn.GatewayOrderID)
	gatewayRequestDurationHist.WithLabelValues("fetch_status").Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.ErrorContext(ctx, "Gateway status fetch failed", "gateway_order_id", *txn.GatewayOrderID, "error", err)
		return nil, err
	}

	mapped := domain.MapGatewayStatus(status.TransactionStatus, status.FraudStatus)
	return s.applyPaymentStatus(ctx, txn.ID, mapped, "sync")
}

// HandleCallback processes an inbound gateway webhook. The signature is
// verified before any state is read.
func (s *TransactionService) HandleCallback(ctx context.Context, req CallbackRequest) error {
	if !s.gateway.VerifySignature(req.OrderID, req.StatusCode, req.GrossAmount, req.SignatureKey) {
		s.logger.WarnContext(ctx, "Webhook signature rejected", "order_id", req.OrderID)
		return domain.ErrInvalidSignature
	}

	txn, err := s.transactions.GetByGatewayOrderID(ctx, s.db, req.OrderID)
	if err != nil {
		return err
	}

	mapped := domain.MapGatewayStatus(req.TransactionStatus, req.FraudStatus)
	_, err = s.applyPaymentStatus(ctx, txn.ID, mapped, "callback")
	return err
}

// applyPaymentStatus is the single transition point shared by poll and
// webhook. It row-locks the transaction, re-reads the current status so a
// racing path's update is observed, and releases reserved stock at most
// once across both paths.
func (s *TransactionService) applyPaymentStatus(ctx context.Context, id int64, mapped domain.PaymentStatus, source string) (*domain.Transaction, error) {
	var out *domain.Transaction
	var oldStatus domain.PaymentStatus
	changed := false
	released := false

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		txn, err := s.transactions.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		oldStatus = txn.PaymentStatus
		out = txn
		if mapped == txn.PaymentStatus {
			return nil
		}

		var paidAt *time.Time
		if mapped == domain.PaymentStatusSuccess {
			t := s.now().UTC()
			paidAt = &t
		}
		if err := s.transactions.UpdatePaymentStatus(ctx, tx, id, mapped, paidAt); err != nil {
			return err
		}

		if mapped == domain.PaymentStatusFailed && !txn.StockReleased {
			for _, item := range txn.Items {
				if item.ProductID == nil {
					continue
				}
				if err := s.products.IncrementStock(ctx, tx, *item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			if err := s.transactions.MarkStockReleased(ctx, tx, id); err != nil {
				return err
			}
			txn.StockReleased = true
			released = true
		}

		txn.PaymentStatus = mapped
		txn.PaidAt = paidAt
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		paymentTransitionsCounter.WithLabelValues(string(oldStatus), string(mapped), source).Inc()
		if released {
			stockReleasesCounter.Inc()
		}
		s.logger.InfoContext(ctx, "Payment status transitioned",
			"transaction_id", id, "from", oldStatus, "to", mapped, "source", source, "stock_released", released)
		s.publish(ctx, domain.EventPaymentStatusTransitioned, out, oldStatus, mapped, source)
	}
	return out, nil
}

// Get returns one transaction with its items.
func (s *TransactionService) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	return s.transactions.GetByID(ctx, s.db, id)
}

// List returns transactions matching the filter plus the total count.
func (s *TransactionService) List(ctx context.Context, filter repository.ListFilter) ([]domain.Transaction, int, error) {
	return s.transactions.List(ctx, s.db, filter)
}

// Report aggregates successful transactions over the date range.
func (s *TransactionService) Report(ctx context.Context, from, to time.Time) (*ReportResult, error) {
	summary, err := s.transactions.ReportSummary(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}
	daily, err := s.transactions.ReportDaily(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}
	top, err := s.transactions.ReportTopProducts(ctx, s.db, from, to, 10)
	if err != nil {
		return nil, err
	}
	operators, err := s.transactions.ReportByOperator(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}
	return &ReportResult{Summary: summary, Daily: daily, TopProducts: top, Operators: operators}, nil
}

func (s *TransactionService) publish(ctx context.Context, eventType string, txn *domain.Transaction, from, to domain.PaymentStatus, source string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, domain.TransactionEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		TransactionID: txn.ID,
		InvoiceNumber: txn.InvoiceNumber,
		OldStatus:     from,
		NewStatus:     to,
		Source:        source,
		OccurredAt:    s.now().UTC(),
	})
}

func submitFailureLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCart):
		return "invalid_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "gateway_error"
	default:
		return "error"
	}
}
