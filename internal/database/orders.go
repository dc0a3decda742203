package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, restaurant_id, table_id, session_id, items, total_amount,
	status, cancel_reason, notes, billed, bill_id, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.TableID, &o.SessionID, &o.Items, &o.TotalAmount,
		&o.Status, &o.CancelReason, &o.Notes, &o.Billed, &o.BillID, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	SessionID    string
	Items        []OrderLine
	TotalAmount  pgtype.Numeric
	Notes        pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (restaurant_id, table_id, session_id, items, total_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		arg.RestaurantID, arg.TableID, arg.SessionID, arg.Items, arg.TotalAmount, arg.Notes,
	)
	return scanOrder(row)
}

type GetOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanOrder(row)
}

type ListOrdersParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	TableID      pgtype.UUID
	Search       pgtype.Text
	Limit        int32
	Offset       int32
}

// orderSearchClause matches the free-text search against the order's
// notes and the snapshotted item names, case-insensitively.
const orderSearchClause = `($4::text IS NULL
	  OR notes ILIKE '%' || $4 || '%'
	  OR EXISTS (
	      SELECT 1 FROM jsonb_array_elements(items) line
	      WHERE line->>'name' ILIKE '%' || $4 || '%'))`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::uuid IS NULL OR table_id = $3)
		  AND `+orderSearchClause+`
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`,
		arg.RestaurantID, arg.Status, arg.TableID, arg.Search, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

type CountOrdersParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	TableID      pgtype.UUID
	Search       pgtype.Text
}

func (q *Queries) CountOrders(ctx context.Context, arg CountOrdersParams) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE restaurant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::uuid IS NULL OR table_id = $3)
		  AND `+orderSearchClause,
		arg.RestaurantID, arg.Status, arg.TableID, arg.Search,
	).Scan(&n)
	return n, err
}

func (q *Queries) ListOrdersBySession(ctx context.Context, sessionID string) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE session_id = $1
		ORDER BY created_at DESC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// ListOpenOrders returns every unbilled, non-cancelled order for the
// restaurant, newest first. Used by the live-orders-by-table view.
func (q *Queries) ListOpenOrders(ctx context.Context, restaurantID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1
		  AND billed = false
		  AND status NOT IN ('CANCELLED', 'REJECTED')
		ORDER BY created_at DESC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

type FindBillableOrdersParams struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
}

// FindBillableOrders returns the table's open, billable orders:
// billed = false and status not CANCELLED/REJECTED. Oldest first, so
// the consolidated bill lists lines in the order they were ordered.
func (q *Queries) FindBillableOrders(ctx context.Context, arg FindBillableOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1 AND table_id = $2
		  AND billed = false
		  AND status NOT IN ('CANCELLED', 'REJECTED')
		ORDER BY created_at ASC`,
		arg.RestaurantID, arg.TableID,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// FindBillableOrdersForUpdate is FindBillableOrders with a row lock.
// Must only be called inside a transaction; it serializes concurrent
// closeBill calls for the same table.
func (q *Queries) FindBillableOrdersForUpdate(ctx context.Context, arg FindBillableOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1 AND table_id = $2
		  AND billed = false
		  AND status NOT IN ('CANCELLED', 'REJECTED')
		ORDER BY created_at ASC
		FOR UPDATE`,
		arg.RestaurantID, arg.TableID,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

type SetOrderStatusParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Status       string
	PrevStatus   string
	CancelReason pgtype.Text
}

// SetOrderStatus updates the status only if the order still has
// PrevStatus. A racing second transition sees pgx.ErrNoRows instead
// of silently clobbering.
func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3,
		    cancel_reason = COALESCE($5, cancel_reason),
		    updated_at = now()
		WHERE id = $1 AND restaurant_id = $2 AND status = $4
		RETURNING `+orderColumns,
		arg.ID, arg.RestaurantID, arg.Status, arg.PrevStatus, arg.CancelReason,
	)
	return scanOrder(row)
}

type MarkOrdersBilledParams struct {
	OrderIDs []uuid.UUID
	BillID   uuid.UUID
}

// MarkOrdersBilled flips the given orders to billed/COMPLETED and
// stamps the bill reference. Conditioned on billed = false at write
// time; the returned count tells the caller whether every order was
// actually flipped.
func (q *Queries) MarkOrdersBilled(ctx context.Context, arg MarkOrdersBilledParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders
		SET billed = true, bill_id = $2, status = 'COMPLETED', updated_at = now()
		WHERE id = ANY($1) AND billed = false`,
		arg.OrderIDs, arg.BillID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
