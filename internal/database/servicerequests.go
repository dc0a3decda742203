package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const serviceRequestColumns = `id, restaurant_id, table_id, table_code, type, status,
	requested_by_session, ack_at, closed_at, created_at`

func scanServiceRequest(row pgx.Row) (ServiceRequest, error) {
	var sr ServiceRequest
	err := row.Scan(
		&sr.ID, &sr.RestaurantID, &sr.TableID, &sr.TableCode, &sr.Type, &sr.Status,
		&sr.RequestedBySession, &sr.AckAt, &sr.ClosedAt, &sr.CreatedAt,
	)
	return sr, err
}

type CreateServiceRequestParams struct {
	RestaurantID       uuid.UUID
	TableID            uuid.UUID
	TableCode          string
	Type               string
	RequestedBySession pgtype.Text
}

func (q *Queries) CreateServiceRequest(ctx context.Context, arg CreateServiceRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO service_requests (restaurant_id, table_id, table_code, type, status, requested_by_session)
		VALUES ($1, $2, $3, $4, 'OPEN', $5)
		RETURNING `+serviceRequestColumns,
		arg.RestaurantID, arg.TableID, arg.TableCode, arg.Type, arg.RequestedBySession,
	)
	return scanServiceRequest(row)
}

type FindOpenServiceRequestParams struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	Type         string
}

// FindOpenServiceRequest returns the most recent still-open request of
// the given type for a table, so repeat taps don't pile up duplicates.
func (q *Queries) FindOpenServiceRequest(ctx context.Context, arg FindOpenServiceRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+serviceRequestColumns+` FROM service_requests
		WHERE restaurant_id = $1 AND table_id = $2 AND type = $3 AND status = 'OPEN'
		ORDER BY created_at DESC
		LIMIT 1`,
		arg.RestaurantID, arg.TableID, arg.Type,
	)
	return scanServiceRequest(row)
}

type ListServiceRequestsParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	Type         pgtype.Text
	Limit        int32
}

func (q *Queries) ListServiceRequests(ctx context.Context, arg ListServiceRequestsParams) ([]ServiceRequest, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+serviceRequestColumns+` FROM service_requests
		WHERE restaurant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR type = $3)
		ORDER BY created_at DESC
		LIMIT $4`,
		arg.RestaurantID, arg.Status, arg.Type, arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		sr, err := scanServiceRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

type GetServiceRequestParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetServiceRequest(ctx context.Context, arg GetServiceRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+serviceRequestColumns+` FROM service_requests
		WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanServiceRequest(row)
}

// AckServiceRequest marks an open request acknowledged. Closed
// requests stay closed; pgx.ErrNoRows signals the conflict.
func (q *Queries) AckServiceRequest(ctx context.Context, arg GetServiceRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE service_requests
		SET status = 'ACK', ack_at = now()
		WHERE id = $1 AND restaurant_id = $2 AND status = 'OPEN'
		RETURNING `+serviceRequestColumns,
		arg.ID, arg.RestaurantID,
	)
	return scanServiceRequest(row)
}

func (q *Queries) CloseServiceRequest(ctx context.Context, arg GetServiceRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE service_requests
		SET status = 'CLOSED', closed_at = now()
		WHERE id = $1 AND restaurant_id = $2 AND status <> 'CLOSED'
		RETURNING `+serviceRequestColumns,
		arg.ID, arg.RestaurantID,
	)
	return scanServiceRequest(row)
}
