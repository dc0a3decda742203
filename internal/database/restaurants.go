package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const restaurantColumns = `id, name, slug, tz_offset_minutes, plan,
	subscription_status, is_active, created_at, updated_at`

func scanRestaurant(row pgx.Row) (Restaurant, error) {
	var r Restaurant
	err := row.Scan(
		&r.ID, &r.Name, &r.Slug, &r.TzOffsetMinutes, &r.Plan,
		&r.SubscriptionStatus, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

type CreateRestaurantParams struct {
	Name               string
	Slug               string
	TzOffsetMinutes    int32
	Plan               string
	SubscriptionStatus string
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO restaurants (name, slug, tz_offset_minutes, plan, subscription_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+restaurantColumns,
		arg.Name, arg.Slug, arg.TzOffsetMinutes, arg.Plan, arg.SubscriptionStatus,
	)
	return scanRestaurant(row)
}

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id)
	return scanRestaurant(row)
}

func (q *Queries) GetRestaurantBySlug(ctx context.Context, slug string) (Restaurant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+restaurantColumns+` FROM restaurants
		WHERE slug = $1 AND is_active = true`, slug)
	return scanRestaurant(row)
}

func (q *Queries) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+restaurantColumns+` FROM restaurants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type UpdateRestaurantParams struct {
	ID                 uuid.UUID
	Name               string
	TzOffsetMinutes    int32
	Plan               string
	SubscriptionStatus string
	IsActive           bool
}

func (q *Queries) UpdateRestaurant(ctx context.Context, arg UpdateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE restaurants
		SET name = $2, tz_offset_minutes = $3, plan = $4,
		    subscription_status = $5, is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+restaurantColumns,
		arg.ID, arg.Name, arg.TzOffsetMinutes, arg.Plan, arg.SubscriptionStatus, arg.IsActive,
	)
	return scanRestaurant(row)
}
