package postgres

// SQL queries for the recommendation read model and the two writes the
// engine owns: popularity score write-back and counter increments.

const (
	productColumns = `
		id, category_id, price, is_active, created_at,
		view_count, cart_add_count, purchase_count, popularity_score
	`

	queryGetProduct = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`

	// queryListActiveByPopularity serves the popularity index.
	// Tie-break for equal scores: newest first, then id for full determinism.
	queryListActiveByPopularity = `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active
		ORDER BY popularity_score DESC, created_at DESC, id ASC
		LIMIT $1 OFFSET $2
	`

	queryCountActive = `SELECT COUNT(*) FROM products WHERE is_active`

	// queryListActiveByCategories builds the personalization candidate
	// pool: active products in the actor's interested categories, minus
	// already-purchased ids.
	queryListActiveByCategories = `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active
		  AND category_id = ANY($1)
		  AND NOT (id = ANY($2))
		ORDER BY popularity_score DESC, created_at DESC, id ASC
		LIMIT $3
	`

	// queryListActiveByPriceBand serves the similarity matcher.
	// Band bounds are inclusive on both ends.
	queryListActiveByPriceBand = `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active
		  AND category_id = $1
		  AND id <> $2
		  AND price >= $3
		  AND price <= $4
		ORDER BY popularity_score DESC, created_at DESC, id ASC
		LIMIT $5
	`

	// queryListProductsAfterCursor pages all products (active or not) in
	// stable id order for the batch recompute job. cursor='' starts over.
	queryListProductsAfterCursor = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`

	queryListProductsByIDs = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
	`

	queryUpdatePopularityScore = `
		UPDATE products
		SET popularity_score = $2, score_updated_at = $3
		WHERE id = $1
	`

	// queryIncrementCounter bumps exactly one counter column, selected by
	// the kind parameter. Keeps the statement constant and preparable.
	queryIncrementCounter = `
		UPDATE products
		SET view_count     = view_count     + CASE WHEN $2 = 'view'     THEN 1 ELSE 0 END,
		    cart_add_count = cart_add_count + CASE WHEN $2 = 'cart_add' THEN 1 ELSE 0 END,
		    purchase_count = purchase_count + CASE WHEN $2 = 'purchase' THEN 1 ELSE 0 END
		WHERE id = $1
	`

	// querySaveActivityEvent inserts with actor idempotency.
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for duplicates.
	querySaveActivityEvent = `
		INSERT INTO activity_events (
			id, product_id, actor_id, kind, occurred_at, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (actor_id, id) DO NOTHING
		RETURNING seq
	`

	// queryCountEventsByProductSince is the trending-window aggregation:
	// events inside the lookback grouped per product, busiest first.
	queryCountEventsByProductSince = `
		SELECT product_id, COUNT(*) AS event_count
		FROM activity_events
		WHERE occurred_at >= $1
		GROUP BY product_id
		ORDER BY event_count DESC, product_id ASC
		LIMIT $2
	`

	queryListInterests = `
		SELECT actor_id, category_id, affinity_score
		FROM user_interests
		WHERE actor_id = $1
		ORDER BY affinity_score DESC, category_id ASC
	`

	queryPurchasedProductIDs = `
		SELECT DISTINCT product_id
		FROM order_items
		WHERE actor_id = $1
	`
)
