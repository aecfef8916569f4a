package domain

import "time"

// Product is the catalog entity referenced by sales. The transaction core
// only reads it and adjusts Stock; catalog CRUD lives elsewhere.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     int64     `json:"price"` // integral currency units (rupiah)
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLowStock reports whether the product is at or below its reorder point.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}
