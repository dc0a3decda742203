package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tableColumns = `id, restaurant_id, table_code, is_active, created_at`

func scanTable(row pgx.Row) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.RestaurantID, &t.TableCode, &t.IsActive, &t.CreatedAt)
	return t, err
}

type CreateTableParams struct {
	RestaurantID uuid.UUID
	TableCode    string
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO tables (restaurant_id, table_code)
		VALUES ($1, $2)
		RETURNING `+tableColumns,
		arg.RestaurantID, arg.TableCode,
	)
	return scanTable(row)
}

type GetTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+tableColumns+` FROM tables
		WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanTable(row)
}

type GetTableByCodeParams struct {
	RestaurantID uuid.UUID
	TableCode    string
}

// GetTableByCode resolves the code embedded in a table's QR link.
// Inactive tables don't resolve; their QR codes are effectively revoked.
func (q *Queries) GetTableByCode(ctx context.Context, arg GetTableByCodeParams) (Table, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+tableColumns+` FROM tables
		WHERE restaurant_id = $1 AND table_code = $2 AND is_active = true`,
		arg.RestaurantID, arg.TableCode,
	)
	return scanTable(row)
}

func (q *Queries) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]Table, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tableColumns+` FROM tables
		WHERE restaurant_id = $1
		ORDER BY table_code`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}
