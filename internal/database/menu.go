package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, restaurant_id, category, name, description, price,
	is_available, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID, &m.RestaurantID, &m.Category, &m.Name, &m.Description, &m.Price,
		&m.IsAvailable, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

type CreateMenuItemParams struct {
	RestaurantID uuid.UUID
	Category     string
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	IsAvailable  bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (restaurant_id, category, name, description, price, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+menuItemColumns,
		arg.RestaurantID, arg.Category, arg.Name, arg.Description, arg.Price, arg.IsAvailable,
	)
	return scanMenuItem(row)
}

type UpdateMenuItemParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Category     string
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	IsAvailable  bool
}

// UpdateMenuItem edits the live menu entry. Orders keep their own
// price/name snapshots, so this never touches open or settled bills.
func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_items
		SET category = $3, name = $4, description = $5, price = $6,
		    is_available = $7, updated_at = now()
		WHERE id = $1 AND restaurant_id = $2
		RETURNING `+menuItemColumns,
		arg.ID, arg.RestaurantID, arg.Category, arg.Name, arg.Description, arg.Price, arg.IsAvailable,
	)
	return scanMenuItem(row)
}

type GetMenuItemParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanMenuItem(row)
}

func (q *Queries) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE restaurant_id = $1
		ORDER BY category, name`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	return collectMenuItems(rows)
}

// ListAvailableMenuItems is the customer-facing menu: available items only.
func (q *Queries) ListAvailableMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE restaurant_id = $1 AND is_available = true
		ORDER BY category, name`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	return collectMenuItems(rows)
}

type DeleteMenuItemParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) DeleteMenuItem(ctx context.Context, arg DeleteMenuItemParams) error {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM menu_items WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectMenuItems(rows pgx.Rows) ([]MenuItem, error) {
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
