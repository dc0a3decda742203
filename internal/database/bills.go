package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const billColumns = `id, restaurant_id, table_id, order_ids, items, subtotal,
	tax_amount, grand_total, status, closed_by, closed_at, created_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(
		&b.ID, &b.RestaurantID, &b.TableID, &b.OrderIDs, &b.Items, &b.Subtotal,
		&b.TaxAmount, &b.GrandTotal, &b.Status, &b.ClosedBy, &b.ClosedAt, &b.CreatedAt,
	)
	return b, err
}

func collectBills(rows pgx.Rows) ([]Bill, error) {
	defer rows.Close()
	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

type CreateBillParams struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	OrderIDs     []uuid.UUID
	Items        []BillLine
	Subtotal     pgtype.Numeric
	TaxAmount    pgtype.Numeric
	GrandTotal   pgtype.Numeric
	ClosedBy     pgtype.UUID
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO bills (restaurant_id, table_id, order_ids, items, subtotal,
			tax_amount, grand_total, status, closed_by, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'CLOSED', $8, now())
		RETURNING `+billColumns,
		arg.RestaurantID, arg.TableID, arg.OrderIDs, arg.Items, arg.Subtotal,
		arg.TaxAmount, arg.GrandTotal, arg.ClosedBy,
	)
	return scanBill(row)
}

type GetBillParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetBill(ctx context.Context, arg GetBillParams) (Bill, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanBill(row)
}

type FindBillsByTableParams struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
}

func (q *Queries) FindBillsByTable(ctx context.Context, arg FindBillsByTableParams) ([]Bill, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE restaurant_id = $1 AND table_id = $2
		ORDER BY closed_at DESC`,
		arg.RestaurantID, arg.TableID,
	)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

type FindBillsInWindowParams struct {
	RestaurantID uuid.UUID
	StartUTC     time.Time
	EndUTC       time.Time
}

// FindBillsInWindow returns closed bills with closedAt in the
// half-open UTC window [StartUTC, EndUTC).
func (q *Queries) FindBillsInWindow(ctx context.Context, arg FindBillsInWindowParams) ([]Bill, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE restaurant_id = $1
		  AND status = 'CLOSED'
		  AND closed_at >= $2 AND closed_at < $3
		ORDER BY closed_at ASC`,
		arg.RestaurantID, arg.StartUTC, arg.EndUTC,
	)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

type ListRecentBillsParams struct {
	RestaurantID uuid.UUID
	Limit        int32
}

func (q *Queries) ListRecentBills(ctx context.Context, arg ListRecentBillsParams) ([]Bill, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE restaurant_id = $1
		ORDER BY closed_at DESC
		LIMIT $2`,
		arg.RestaurantID, arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

type TableBillSummaryRow struct {
	TableID      uuid.UUID
	BillsCount   int64
	TotalRevenue pgtype.Numeric
	LastClosedAt time.Time
}

type GetTableBillSummaryParams struct {
	RestaurantID uuid.UUID
	Limit        int32
}

// GetTableBillSummary aggregates each table's settled bills: how many,
// how much, and when the last one closed. Most recently active first.
func (q *Queries) GetTableBillSummary(ctx context.Context, arg GetTableBillSummaryParams) ([]TableBillSummaryRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT table_id, count(*), sum(grand_total), max(closed_at)
		FROM bills
		WHERE restaurant_id = $1
		GROUP BY table_id
		ORDER BY max(closed_at) DESC
		LIMIT $2`,
		arg.RestaurantID, arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableBillSummaryRow
	for rows.Next() {
		var r TableBillSummaryRow
		if err := rows.Scan(&r.TableID, &r.BillsCount, &r.TotalRevenue, &r.LastClosedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
