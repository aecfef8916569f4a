package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
	"github.com/bintangnusa/pos-backend/internal/pos_service/repository"
)

type PgTransactionRepository struct {
	logger *slog.Logger
}

func NewPgTransactionRepository(logger *slog.Logger) repository.TransactionRepository {
	return &PgTransactionRepository{logger: logger.With("component", "transaction_repository_pg")}
}

const transactionColumns = `
	id, invoice_number, kasir_id, customer_name, customer_phone,
	subtotal, discount, tax, total, payment_method, payment_status,
	gateway_order_id, gateway_token, gateway_redirect_url,
	stock_released, paid_at, notes, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var customerPhone, gatewayOrderID, gatewayToken, gatewayRedirectURL, notes sql.NullString
	var paidAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.InvoiceNumber, &t.OperatorID, &t.CustomerName, &customerPhone,
		&t.Subtotal, &t.Discount, &t.Tax, &t.Total, &t.PaymentMethod, &t.PaymentStatus,
		&gatewayOrderID, &gatewayToken, &gatewayRedirectURL,
		&t.StockReleased, &paidAt, &notes, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if customerPhone.Valid {
		t.CustomerPhone = &customerPhone.String
	}
	if gatewayOrderID.Valid {
		t.GatewayOrderID = &gatewayOrderID.String
	}
	if gatewayToken.Valid {
		t.GatewayToken = &gatewayToken.String
	}
	if gatewayRedirectURL.Valid {
		t.GatewayRedirectURL = &gatewayRedirectURL.String
	}
	if paidAt.Valid {
		t.PaidAt = &paidAt.Time
	}
	if notes.Valid {
		t.Notes = &notes.String
	}
	return &t, nil
}

func (r *PgTransactionRepository) Create(ctx context.Context, q repository.Querier, txn *domain.Transaction) (*domain.Transaction, error) {
	err := q.QueryRow(ctx, `
		INSERT INTO transactions (
			invoice_number, kasir_id, customer_name, customer_phone,
			subtotal, discount, tax, total, payment_method, payment_status,
			gateway_order_id, paid_at, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`,
		txn.InvoiceNumber, txn.OperatorID, txn.CustomerName, txn.CustomerPhone,
		txn.Subtotal, txn.Discount, txn.Tax, txn.Total, txn.PaymentMethod, txn.PaymentStatus,
		txn.GatewayOrderID, txn.PaidAt, txn.Notes,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}

	for i := range txn.Items {
		item := &txn.Items[i]
		item.TransactionID = txn.ID
		err := q.QueryRow(ctx, `
			INSERT INTO transaction_items (
				transaction_id, product_id, product_name, product_sku,
				price, quantity, discount, subtotal
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`,
			item.TransactionID, item.ProductID, item.ProductName, item.ProductSKU,
			item.Price, item.Quantity, item.Discount, item.Subtotal,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("inserting transaction item: %w", err)
		}
	}

	r.logger.InfoContext(ctx, "Transaction persisted", "transaction_id", txn.ID, "invoice_number", txn.InvoiceNumber)
	return txn, nil
}

func (r *PgTransactionRepository) loadItems(ctx context.Context, q repository.Querier, txn *domain.Transaction) error {
	rows, err := q.Query(ctx, `
		SELECT id, transaction_id, product_id, product_name, product_sku,
		       price, quantity, discount, subtotal
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY id
	`, txn.ID)
	if err != nil {
		return fmt.Errorf("loading transaction items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.TransactionItem
		var productID sql.NullInt64
		if err := rows.Scan(
			&item.ID, &item.TransactionID, &productID, &item.ProductName, &item.ProductSKU,
			&item.Price, &item.Quantity, &item.Discount, &item.Subtotal,
		); err != nil {
			return fmt.Errorf("scanning transaction item: %w", err)
		}
		if productID.Valid {
			item.ProductID = &productID.Int64
		}
		txn.Items = append(txn.Items, item)
	}
	return rows.Err()
}

func (r *PgTransactionRepository) getOne(ctx context.Context, q repository.Querier, query string, arg any) (*domain.Transaction, error) {
	txn, err := scanTransaction(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	if err := r.loadItems(ctx, q, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *PgTransactionRepository) GetByID(ctx context.Context, q repository.Querier, id int64) (*domain.Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *PgTransactionRepository) GetByGatewayOrderID(ctx context.Context, q repository.Querier, orderID string) (*domain.Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE gateway_order_id = $1`, orderID)
}

// GetForUpdate locks the transaction row; racing poll and webhook updates
// for the same sale serialize here.
func (r *PgTransactionRepository) GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*domain.Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *PgTransactionRepository) UpdatePaymentStatus(ctx context.Context, q repository.Querier, id int64, status domain.PaymentStatus, paidAt *time.Time) error {
	ct, err := q.Exec(ctx,
		`UPDATE transactions SET payment_status = $2, paid_at = $3 WHERE id = $1`,
		id, status, paidAt,
	)
	if err != nil {
		return fmt.Errorf("updating payment status: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgTransactionRepository) MarkStockReleased(ctx context.Context, q repository.Querier, id int64) error {
	ct, err := q.Exec(ctx, `UPDATE transactions SET stock_released = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking stock released: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgTransactionRepository) UpdateGatewaySession(ctx context.Context, q repository.Querier, id int64, token, redirectURL string) error {
	ct, err := q.Exec(ctx,
		`UPDATE transactions SET gateway_token = $2, gateway_redirect_url = $3 WHERE id = $1`,
		id, token, redirectURL,
	)
	if err != nil {
		return fmt.Errorf("updating gateway session: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgTransactionRepository) List(ctx context.Context, q repository.Querier, filter repository.ListFilter) ([]domain.Transaction, int, error) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.DateFrom != nil {
		add(`created_at::date >= ?`, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add(`created_at::date <= ?`, *filter.DateTo)
	}
	if filter.Status != "" {
		add(`payment_status = ?`, filter.Status)
	}
	if filter.OperatorID != 0 {
		add(`kasir_id = ?`, filter.OperatorID)
	}
	if filter.Search != "" {
		// Same argument serves both placeholders.
		add(`(invoice_number ILIKE ? OR customer_name ILIKE ?)`, "%"+filter.Search+"%")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting transactions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 15
	}
	args = append(args, perPage, (page-1)*perPage)
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if err := r.loadItems(ctx, q, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *PgTransactionRepository) ReportSummary(ctx context.Context, q repository.Querier, from, to time.Time) (*repository.ReportSummary, error) {
	var s repository.ReportSummary
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM transactions
		WHERE payment_status = 'success'
		  AND created_at::date BETWEEN $1 AND $2
	`, from, to).Scan(&s.TotalRevenue, &s.TotalTransactions)
	if err != nil {
		return nil, fmt.Errorf("report summary: %w", err)
	}
	if s.TotalTransactions > 0 {
		s.AvgTransaction = float64(s.TotalRevenue) / float64(s.TotalTransactions)
	}
	return &s, nil
}

func (r *PgTransactionRepository) ReportDaily(ctx context.Context, q repository.Querier, from, to time.Time) ([]repository.DailyReportRow, error) {
	rows, err := q.Query(ctx, `
		SELECT to_char(created_at, 'YYYY-MM-DD') AS date, COUNT(*), SUM(total)
		FROM transactions
		WHERE payment_status = 'success'
		  AND created_at::date BETWEEN $1 AND $2
		GROUP BY date
		ORDER BY date
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily report: %w", err)
	}
	defer rows.Close()

	var out []repository.DailyReportRow
	for rows.Next() {
		var row repository.DailyReportRow
		if err := rows.Scan(&row.Date, &row.Count, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scanning daily report row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PgTransactionRepository) ReportTopProducts(ctx context.Context, q repository.Querier, from, to time.Time, limit int) ([]repository.TopProductRow, error) {
	rows, err := q.Query(ctx, `
		SELECT ti.product_name, SUM(ti.quantity), SUM(ti.subtotal)
		FROM transaction_items ti
		JOIN transactions t ON t.id = ti.transaction_id
		WHERE t.payment_status = 'success'
		  AND t.created_at::date BETWEEN $1 AND $2
		GROUP BY ti.product_name
		ORDER BY SUM(ti.subtotal) DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top products report: %w", err)
	}
	defer rows.Close()

	var out []repository.TopProductRow
	for rows.Next() {
		var row repository.TopProductRow
		if err := rows.Scan(&row.ProductName, &row.TotalQty, &row.TotalRevenue); err != nil {
			return nil, fmt.Errorf("scanning top product row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PgTransactionRepository) ReportByOperator(ctx context.Context, q repository.Querier, from, to time.Time) ([]repository.OperatorReportRow, error) {
	rows, err := q.Query(ctx, `
		SELECT kasir_id, COUNT(*), SUM(total)
		FROM transactions
		WHERE payment_status = 'success'
		  AND created_at::date BETWEEN $1 AND $2
		GROUP BY kasir_id
		ORDER BY SUM(total) DESC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("operator report: %w", err)
	}
	defer rows.Close()

	var out []repository.OperatorReportRow
	for rows.Next() {
		var row repository.OperatorReportRow
		if err := rows.Scan(&row.OperatorID, &row.Count, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scanning operator report row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
