package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, Options{SaleMaxRetries: 2, RetryBackoff: time.Millisecond}), mock
}

func saleDraft(qty int, price int64) domain.SaleDraft {
	return domain.SaleDraft{
		ItemID:    "item-1",
		Quantity:  qty,
		UnitPrice: decimal.NewFromInt(price),
		SellerID:  "uid-vendedor",
		At:        time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC),
	}
}

func TestRegisterSaleCommitsDecrementAndInsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, quantity")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "quantity"}).AddRow("Arroz 1kg", 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inventory_items")).
		WithArgs("item-1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sales")).
		WithArgs(sqlmock.AnyArg(), "item-1", "Arroz 1kg", decimal.NewFromInt(1000), 3, decimal.NewFromInt(3000), sqlmock.AnyArg(), "uid-vendedor", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sale, err := s.RegisterSale(context.Background(), saleDraft(3, 1000))
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, "Arroz 1kg", sale.ProductName)
	require.NotNil(t, sale.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSaleInsufficientStockRollsBackWithoutWrites(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, quantity")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "quantity"}).AddRow("Arroz 1kg", 3))
	mock.ExpectRollback()

	_, err := s.RegisterSale(context.Background(), saleDraft(5, 1000))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	var stockErr *store.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.Remaining)
	assert.Equal(t, "Stock insuficiente. Solo quedan 3 unidades de Arroz 1kg", stockErr.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSaleRetriesSerializationFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, quantity")).
		WithArgs("item-1").
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, quantity")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "quantity"}).AddRow("Arroz 1kg", 10))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inventory_items")).
		WithArgs("item-1", 8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sales")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sale, err := s.RegisterSale(context.Background(), saleDraft(2, 500))
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(1000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSaleGivesUpAfterMaxRetries(t *testing.T) {
	s, mock := newMockStore(t)

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT name, quantity")).
			WithArgs("item-1").
			WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
		mock.ExpectRollback()
	}

	_, err := s.RegisterSale(context.Background(), saleDraft(1, 500))
	require.Error(t, err)
	assert.True(t, isRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSaleMissingItem(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, quantity")).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "quantity"}))
	mock.ExpectRollback()

	_, err := s.RegisterSale(context.Background(), saleDraft(1, 500))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSaleRejectsInvalidDraftWithoutQuery(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.RegisterSale(context.Background(), saleDraft(0, 500))
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCredentialMapsUniqueViolationToConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credentials")).
		WithArgs("uid-1", "ana@example.com", "$2a$10$hash", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateCredential(context.Background(), domain.Credential{UID: "uid-1", Email: " Ana@Example.com ", PasswordHash: "$2a$10$hash"})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSalesKeepsMissingTimestampAsNil(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "item_id", "product_name", "unit_price", "quantity", "total", "created_at", "seller_id", "note"}).
		AddRow("sale-1", "item-1", "Arroz 1kg", "1000.00", 2, "2000.00", at, "uid-vendedor", "").
		AddRow("sale-2", "item-1", "Arroz 1kg", "1000.00", 1, "1000.00", nil, "uid-vendedor", "sin hora")
	mock.ExpectQuery(regexp.QuoteMeta("FROM sales")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	sales, err := s.ListSales(context.Background(), at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, sales, 2)
	require.NotNil(t, sales[0].CreatedAt)
	assert.True(t, sales[0].Total.Equal(decimal.NewFromInt(2000)))
	assert.Nil(t, sales[1].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateItemNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE inventory_items")).
		WithArgs("item-x", "Cafe", "Mercancia", 0, decimal.RequireFromString("1500.5")).
		WillReturnError(sql.ErrNoRows)

	_, err := s.UpdateItem(context.Background(), domain.InventoryItem{
		ID:       "item-x",
		Name:     "Cafe",
		Category: domain.CategoryMerchandise,
		Quantity: 0,
		Price:    decimal.RequireFromString("1500.5"),
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProfileNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_profiles")).
		WithArgs("uid-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteProfile(context.Background(), "uid-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaRejectsNonPositiveSalePrices(t *testing.T) {
	assert.Contains(t, schemaSQL, "unit_price NUMERIC(14,2) NOT NULL CHECK (unit_price > 0)")
	assert.Contains(t, schemaSQL, "price NUMERIC(14,2) NOT NULL CHECK (price > 0)")
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	s, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(true)

	for _, table := range []string{"credentials", "user_profiles", "inventory_items", "sales"} {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + table)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS sales_created_at_idx")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS outflows")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS outflows_created_at_idx")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS audit_logs_created_at_idx")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
