package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:                         db,
		stmtGetProduct:             mustPrepareStmt(t, db, mock, queryGetProduct),
		stmtListActiveByPopularity: mustPrepareStmt(t, db, mock, queryListActiveByPopularity),
		stmtCountActive:            mustPrepareStmt(t, db, mock, queryCountActive),
		stmtListActiveByCategories: mustPrepareStmt(t, db, mock, queryListActiveByCategories),
		stmtListActiveByPriceBand:  mustPrepareStmt(t, db, mock, queryListActiveByPriceBand),
		stmtListProductsAfter:      mustPrepareStmt(t, db, mock, queryListProductsAfterCursor),
		stmtListProductsByIDs:      mustPrepareStmt(t, db, mock, queryListProductsByIDs),
		stmtUpdatePopularityScore:  mustPrepareStmt(t, db, mock, queryUpdatePopularityScore),
		stmtIncrementCounter:       mustPrepareStmt(t, db, mock, queryIncrementCounter),
		stmtSaveActivityEvent:      mustPrepareStmt(t, db, mock, querySaveActivityEvent),
		stmtCountEventsByProduct:   mustPrepareStmt(t, db, mock, queryCountEventsByProductSince),
		stmtListInterests:          mustPrepareStmt(t, db, mock, queryListInterests),
		stmtPurchasedProductIDs:    mustPrepareStmt(t, db, mock, queryPurchasedProductIDs),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func productRowColumns() []string {
	return []string{
		"id",
		"category_id",
		"price",
		"is_active",
		"created_at",
		"view_count",
		"cart_add_count",
		"purchase_count",
		"popularity_score",
	}
}

func TestAdapter_GetProduct(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	createdAt := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryGetProduct)).
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows(productRowColumns()).
			AddRow("prod-1", "cat-shoes", "59.90", true, createdAt, int64(120), int64(14), int64(6), 242.0))

	p, err := adapter.GetProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	require.Equal(t, "prod-1", p.ID)
	require.Equal(t, "cat-shoes", p.CategoryID)
	require.True(t, p.Price.Equal(decimal.RequireFromString("59.90")))
	require.Equal(t, int64(120), p.Counters.ViewCount)
	require.Equal(t, 242.0, p.PopularityScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_GetProduct_NotFound(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryGetProduct)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(productRowColumns()))

	_, err := adapter.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ListActiveByPopularity(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	createdAt := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryListActiveByPopularity)).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(productRowColumns()).
			AddRow("prod-top", "cat-1", "10.00", true, createdAt, int64(500), int64(40), int64(30), 920.0).
			AddRow("prod-2", "cat-2", "25.00", true, createdAt, int64(100), int64(9), int64(4), 167.0),
		).RowsWillBeClosed()

	products, err := adapter.ListActiveByPopularity(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, "prod-top", products[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ListActiveByCategories_EmptyCategories(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	// No categories means no query at all.
	products, err := adapter.ListActiveByCategories(context.Background(), nil, nil, 10)
	require.NoError(t, err)
	require.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ListActiveByPriceBand(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	createdAt := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
	minPrice := decimal.RequireFromString("70.00")
	maxPrice := decimal.RequireFromString("130.00")

	mock.ExpectQuery(regexp.QuoteMeta(queryListActiveByPriceBand)).
		WithArgs("cat-shoes", "prod-anchor", minPrice, maxPrice, 5).
		WillReturnRows(sqlmock.NewRows(productRowColumns()).
			AddRow("prod-alt", "cat-shoes", "99.00", true, createdAt, int64(80), int64(6), int64(2), 118.0),
		).RowsWillBeClosed()

	products, err := adapter.ListActiveByPriceBand(context.Background(), "cat-shoes", "prod-anchor", minPrice, maxPrice, 5)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "prod-alt", products[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpdatePopularityScore(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryUpdatePopularityScore)).
		WithArgs("prod-1", 42.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.UpdatePopularityScore(context.Background(), "prod-1", 42.5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpdatePopularityScore_NotFound(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryUpdatePopularityScore)).
		WithArgs("ghost", 1.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.UpdatePopularityScore(context.Background(), "ghost", 1.0)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_IncrementCounter(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryIncrementCounter)).
		WithArgs("prod-1", "cart_add").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.IncrementCounter(context.Background(), "prod-1", v1.ActivityCartAdd))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_IncrementCounter_RejectsUnknownKind(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	err := adapter.IncrementCounter(context.Background(), "prod-1", "wishlist")
	require.ErrorContains(t, err, "unknown activity kind")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SaveEvent(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	occurredAt := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	recordedAt := occurredAt.Add(time.Second)

	event := &v1.ActivityEvent{
		ID:         "evt-1",
		ProductID:  "prod-1",
		ActorID:    "user-1",
		Kind:       v1.ActivityView,
		OccurredAt: occurredAt,
		RecordedAt: recordedAt,
	}

	mock.ExpectQuery(regexp.QuoteMeta(querySaveActivityEvent)).
		WithArgs("evt-1", "prod-1", "user-1", "view", occurredAt, recordedAt).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	require.NoError(t, adapter.SaveEvent(context.Background(), event))
	require.Equal(t, int64(7), event.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SaveEvent_DuplicateMapsToErrDuplicate(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	occurredAt := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	event := &v1.ActivityEvent{
		ID:         "evt-dup",
		ProductID:  "prod-1",
		ActorID:    "user-1",
		Kind:       v1.ActivityPurchase,
		OccurredAt: occurredAt,
		RecordedAt: occurredAt,
	}

	mock.ExpectQuery(regexp.QuoteMeta(querySaveActivityEvent)).
		WithArgs("evt-dup", "prod-1", "user-1", "purchase", occurredAt, occurredAt).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}))

	err := adapter.SaveEvent(context.Background(), event)
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.Equal(t, int64(0), event.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CountEventsByProductSince(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	since := time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryCountEventsByProductSince)).
		WithArgs(since, 20).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "event_count"}).
			AddRow("prod-hot", int64(42)).
			AddRow("prod-warm", int64(11)),
		).RowsWillBeClosed()

	counts, err := adapter.CountEventsByProductSince(context.Background(), since, 20)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, "prod-hot", counts[0].ProductID)
	require.Equal(t, int64(42), counts[0].EventCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ListInterests(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryListInterests)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"actor_id", "category_id", "affinity_score"}).
			AddRow("user-1", "cat-shoes", 85.0).
			AddRow("user-1", "cat-bags", 40.0),
		).RowsWillBeClosed()

	interests, err := adapter.ListInterests(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, interests, 2)
	require.Equal(t, "cat-shoes", interests[0].CategoryID)
	require.Equal(t, 85.0, interests[0].AffinityScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_PurchasedProductIDs(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryPurchasedProductIDs)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"product_id"}).
			AddRow("prod-owned-1").
			AddRow("prod-owned-2"),
		).RowsWillBeClosed()

	ids, err := adapter.PurchasedProductIDs(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"prod-owned-1", "prod-owned-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ListProductsByIDs_UsesArrayParam(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	createdAt := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryListProductsByIDs)).
		WithArgs(pq.Array([]string{"prod-1", "prod-2"})).
		WillReturnRows(sqlmock.NewRows(productRowColumns()).
			AddRow("prod-1", "cat-1", "12.00", true, createdAt, int64(1), int64(0), int64(0), 1.0),
		).RowsWillBeClosed()

	products, err := adapter.ListProductsByIDs(context.Background(), []string{"prod-1", "prod-2"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
