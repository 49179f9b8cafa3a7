package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
	"caja/backend/internal/xid"
)

// RegisterSale locks the item row, re-reads its quantity and either aborts
// with *store.InsufficientStockError or writes the new quantity and the sale
// in the same transaction.
func (s *Store) RegisterSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if draft.ItemID == "" || draft.Quantity < 1 || !draft.UnitPrice.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	at := draft.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var created *domain.Sale
	err := s.withSerializableRetry(ctx, func(tx *sql.Tx) error {
		var name string
		var current int
		err := tx.QueryRowContext(ctx, `
			SELECT name, quantity
			FROM inventory_items
			WHERE id = $1
			FOR UPDATE
		`, draft.ItemID).Scan(&name, &current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		newStock := current - draft.Quantity
		if newStock < 0 {
			return &store.InsufficientStockError{ItemID: draft.ItemID, ItemName: name, Remaining: current}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_items
			SET quantity = $2, updated_at = now()
			WHERE id = $1
		`, draft.ItemID, newStock); err != nil {
			return err
		}

		sale := domain.Sale{
			ID:          xid.New("sale"),
			ItemID:      draft.ItemID,
			ProductName: name,
			UnitPrice:   draft.UnitPrice,
			Quantity:    draft.Quantity,
			Total:       draft.UnitPrice.Mul(decimal.NewFromInt(int64(draft.Quantity))),
			CreatedAt:   &at,
			SellerID:    draft.SellerID,
			Note:        draft.Note,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, item_id, product_name, unit_price, quantity, total, created_at, seller_id, note)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, sale.ID, sale.ItemID, sale.ProductName, sale.UnitPrice, sale.Quantity, sale.Total, at, sale.SellerID, sale.Note); err != nil {
			return err
		}

		created = &sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, product_name, unit_price, quantity, total, created_at, seller_id, note
		FROM sales
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var createdAt sql.NullTime
		if err := rows.Scan(&sale.ID, &sale.ItemID, &sale.ProductName, &sale.UnitPrice, &sale.Quantity, &sale.Total, &createdAt, &sale.SellerID, &sale.Note); err != nil {
			return nil, err
		}
		sale.CreatedAt = timePtr(createdAt)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateOutflow(ctx context.Context, outflow domain.Outflow) (*domain.Outflow, error) {
	if strings.TrimSpace(outflow.Reason) == "" || outflow.Amount < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if outflow.ID == "" {
		outflow.ID = xid.New("out")
	}
	if outflow.CreatedAt == nil {
		now := time.Now().UTC()
		outflow.CreatedAt = &now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outflows (id, reason, amount, created_at, recorded_by)
		VALUES ($1,$2,$3,$4,$5)
	`, outflow.ID, outflow.Reason, outflow.Amount, nullTime(outflow.CreatedAt), outflow.RecordedBy)
	if err != nil {
		return nil, err
	}
	created := outflow
	return &created, nil
}

func (s *Store) ListOutflows(ctx context.Context, from time.Time, to time.Time) ([]domain.Outflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reason, amount, created_at, recorded_by
		FROM outflows
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outflows := make([]domain.Outflow, 0, 32)
	for rows.Next() {
		var outflow domain.Outflow
		var createdAt sql.NullTime
		if err := rows.Scan(&outflow.ID, &outflow.Reason, &outflow.Amount, &createdAt, &outflow.RecordedBy); err != nil {
			return nil, err
		}
		outflow.CreatedAt = timePtr(createdAt)
		outflows = append(outflows, outflow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outflows, nil
}
