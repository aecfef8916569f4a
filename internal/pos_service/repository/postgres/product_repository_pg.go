package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
	"github.com/bintangnusa/pos-backend/internal/pos_service/repository"
)

type PgProductRepository struct {
	logger *slog.Logger
}

func NewPgProductRepository(logger *slog.Logger) repository.ProductRepository {
	return &PgProductRepository{logger: logger.With("component", "product_repository_pg")}
}

const productColumns = `id, name, sku, price, stock, min_stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgProductRepository) GetByID(ctx context.Context, q repository.Querier, id int64) (*domain.Product, error) {
	row := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting product by id: %w", err)
	}
	return p, nil
}

// GetForUpdate locks the product row until the enclosing transaction ends,
// serializing concurrent reservations on the same product.
func (r *PgProductRepository) GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*domain.Product, error) {
	row := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("locking product row: %w", err)
	}
	return p, nil
}

// DecrementStock applies a conditional decrement so stock can never go
// negative even without a prior row lock.
func (r *PgProductRepository) DecrementStock(ctx context.Context, q repository.Querier, id int64, qty int) error {
	ct, err := q.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`,
		id, qty,
	)
	if err != nil {
		return fmt.Errorf("decrementing stock for product %d: %w", id, err)
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *PgProductRepository) IncrementStock(ctx context.Context, q repository.Querier, id int64, qty int) error {
	ct, err := q.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		id, qty,
	)
	if err != nil {
		return fmt.Errorf("incrementing stock for product %d: %w", id, err)
	}
	if ct.RowsAffected() != 1 {
		// Weak reference: the product may have been removed from the
		// catalog since the sale. Nothing to restore then.
		r.logger.WarnContext(ctx, "Stock release skipped, product no longer exists", "product_id", id, "qty", qty)
	}
	return nil
}
