package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so repository
// methods can run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts database transactions; satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is what services hold: plain queries plus the ability to open a
// transactional unit. *pgxpool.Pool satisfies it.
type DB interface {
	Querier
	TxBeginner
}

// ProductRepository is the Catalog collaborator: product lookup plus the
// atomic stock mutations the stock ledger needs.
type ProductRepository interface {
	GetByID(ctx context.Context, q Querier, id int64) (*domain.Product, error)
	// GetForUpdate locks the product row for the rest of the enclosing
	// transaction.
	GetForUpdate(ctx context.Context, q Querier, id int64) (*domain.Product, error)
	// DecrementStock subtracts qty conditionally; it returns
	// ErrInsufficientStock when stock would go negative.
	DecrementStock(ctx context.Context, q Querier, id int64, qty int) error
	IncrementStock(ctx context.Context, q Querier, id int64, qty int) error
}

// InvoiceSequenceRepository hands out per-day invoice counters. Next must
// be called inside the submit transaction so numbering commits or rolls
// back with it.
type InvoiceSequenceRepository interface {
	Next(ctx context.Context, q Querier, prefix string, day time.Time) (int, error)
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	DateFrom   *time.Time
	DateTo     *time.Time
	Status     domain.PaymentStatus
	OperatorID int64
	Search     string
	Page       int
	PerPage    int
}

// ReportSummary aggregates successful transactions in a date range.
type ReportSummary struct {
	TotalRevenue      int64   `json:"total_revenue"`
	TotalTransactions int     `json:"total_transactions"`
	AvgTransaction    float64 `json:"avg_transaction"`
}

// DailyReportRow is one day's revenue and count.
type DailyReportRow struct {
	Date    string `json:"date"`
	Count   int    `json:"count"`
	Revenue int64  `json:"revenue"`
}

// TopProductRow ranks products by revenue across successful sales.
type TopProductRow struct {
	ProductName  string `json:"product_name"`
	TotalQty     int    `json:"total_qty"`
	TotalRevenue int64  `json:"total_revenue"`
}

// OperatorReportRow is one operator's successful-sale performance.
type OperatorReportRow struct {
	OperatorID int64 `json:"kasir_id"`
	Count      int   `json:"count"`
	Revenue    int64 `json:"revenue"`
}

// TransactionRepository persists transactions and their items.
type TransactionRepository interface {
	// Create inserts the transaction and all its items in one unit and
	// returns the stored transaction with identifiers filled in.
	Create(ctx context.Context, q Querier, txn *domain.Transaction) (*domain.Transaction, error)
	GetByID(ctx context.Context, q Querier, id int64) (*domain.Transaction, error)
	GetByGatewayOrderID(ctx context.Context, q Querier, orderID string) (*domain.Transaction, error)
	// GetForUpdate locks the transaction row so racing reconciliation
	// paths serialize on it. Items are loaded as well.
	GetForUpdate(ctx context.Context, q Querier, id int64) (*domain.Transaction, error)
	UpdatePaymentStatus(ctx context.Context, q Querier, id int64, status domain.PaymentStatus, paidAt *time.Time) error
	MarkStockReleased(ctx context.Context, q Querier, id int64) error
	UpdateGatewaySession(ctx context.Context, q Querier, id int64, token, redirectURL string) error
	List(ctx context.Context, q Querier, filter ListFilter) ([]domain.Transaction, int, error)

	ReportSummary(ctx context.Context, q Querier, from, to time.Time) (*ReportSummary, error)
	ReportDaily(ctx context.Context, q Querier, from, to time.Time) ([]DailyReportRow, error)
	ReportTopProducts(ctx context.Context, q Querier, from, to time.Time, limit int) ([]TopProductRow, error)
	ReportByOperator(ctx context.Context, q Querier, from, to time.Time) ([]OperatorReportRow, error)
}
