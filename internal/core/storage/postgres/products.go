package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// GetProduct fetches one product by id.
// Returns storage.ErrNotFound when the id is unknown.
func (a *Adapter) GetProduct(ctx context.Context, id string) (*v1.Product, error) {
	p, err := scanProductRow(a.stmtGetProduct.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

// ListActiveByPopularity returns one page of the popularity ranking:
// active products ordered by cached popularity score descending, ties
// broken newest-first then by id.
func (a *Adapter) ListActiveByPopularity(ctx context.Context, limit, offset int) ([]*v1.Product, error) {
	return a.queryProducts(ctx, a.stmtListActiveByPopularity, limit, offset)
}

// CountActive returns the number of active products.
func (a *Adapter) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := a.stmtCountActive.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active products: %w", err)
	}
	return count, nil
}

// ListActiveByCategories returns active products in any of the given
// categories excluding excludeIDs, best-scored first.
func (a *Adapter) ListActiveByCategories(ctx context.Context, categoryIDs, excludeIDs []string, limit int) ([]*v1.Product, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	return a.queryProducts(ctx, a.stmtListActiveByCategories,
		pq.Array(categoryIDs), pq.Array(excludeIDs), limit)
}

// ListActiveByPriceBand returns active same-category products priced
// within [minPrice, maxPrice], excluding excludeID.
func (a *Adapter) ListActiveByPriceBand(ctx context.Context, categoryID, excludeID string, minPrice, maxPrice decimal.Decimal, limit int) ([]*v1.Product, error) {
	return a.queryProducts(ctx, a.stmtListActiveByPriceBand,
		categoryID, excludeID, minPrice, maxPrice, limit)
}

// ListProductsAfterCursor pages through all products in stable id order.
// cursor="" starts from the beginning.
func (a *Adapter) ListProductsAfterCursor(ctx context.Context, cursor string, limit int) ([]*v1.Product, error) {
	return a.queryProducts(ctx, a.stmtListProductsAfter, cursor, limit)
}

// ListProductsByIDs fetches the given products; unknown ids are skipped.
func (a *Adapter) ListProductsByIDs(ctx context.Context, ids []string) ([]*v1.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return a.queryProducts(ctx, a.stmtListProductsByIDs, pq.Array(ids))
}

// UpdatePopularityScore writes back the cached score for one product.
// The recompute job is the only caller.
func (a *Adapter) UpdatePopularityScore(ctx context.Context, productID string, score float64) error {
	res, err := a.stmtUpdatePopularityScore.ExecContext(ctx, productID, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update popularity score for %s: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for %s: %w", productID, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// IncrementCounter bumps the counter column matching kind.
func (a *Adapter) IncrementCounter(ctx context.Context, productID string, kind v1.ActivityKind) error {
	if !v1.ValidActivityKind(kind) {
		return fmt.Errorf("unknown activity kind %q", kind)
	}

	res, err := a.stmtIncrementCounter.ExecContext(ctx, productID, string(kind))
	if err != nil {
		return fmt.Errorf("failed to increment %s counter for %s: %w", kind, productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read increment result for %s: %w", productID, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	slog.Debug("[Postgres] Incremented counter", "product_id", productID, "kind", kind)
	return nil
}

func (a *Adapter) queryProducts(ctx context.Context, stmt *sql.Stmt, args ...interface{}) ([]*v1.Product, error) {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*v1.Product
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}
