package postgres

import (
	"fmt"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanProductRow scans a productColumns row into a Product.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanProductRow(row scanner) (*v1.Product, error) {
	var p v1.Product
	err := row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Price,
		&p.IsActive,
		&p.CreatedAt,
		&p.Counters.ViewCount,
		&p.Counters.CartAddCount,
		&p.Counters.PurchaseCount,
		&p.PopularityScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan product row: %w", err)
	}
	return &p, nil
}
