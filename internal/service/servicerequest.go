package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/enum"
	"github.com/scanserve/api/internal/ws"
)

// Errors returned by the service-request service.
var (
	ErrInvalidRequestType     = errors.New("invalid service request type")
	ErrServiceRequestNotFound = errors.New("service request not found")
	ErrRequestAlreadyClosed   = errors.New("service request already handled")
)

// ServiceRequestStore defines the DB methods for table call buttons.
// Satisfied by *database.Queries.
type ServiceRequestStore interface {
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	CreateServiceRequest(ctx context.Context, arg database.CreateServiceRequestParams) (database.ServiceRequest, error)
	FindOpenServiceRequest(ctx context.Context, arg database.FindOpenServiceRequestParams) (database.ServiceRequest, error)
	ListServiceRequests(ctx context.Context, arg database.ListServiceRequestsParams) ([]database.ServiceRequest, error)
	GetServiceRequest(ctx context.Context, arg database.GetServiceRequestParams) (database.ServiceRequest, error)
	AckServiceRequest(ctx context.Context, arg database.GetServiceRequestParams) (database.ServiceRequest, error)
	CloseServiceRequest(ctx context.Context, arg database.GetServiceRequestParams) (database.ServiceRequest, error)
}

// ServiceRequestService handles customer calls for the bill or a
// waiter and the staff acknowledgement flow.
type ServiceRequestService struct {
	store    ServiceRequestStore
	notifier Notifier
}

// NewServiceRequestService creates a new ServiceRequestService.
func NewServiceRequestService(store ServiceRequestStore, notifier Notifier) *ServiceRequestService {
	return &ServiceRequestService{store: store, notifier: notifier}
}

// RaiseRequest records a table call. Tapping the button again while a
// request of the same type is still open returns the existing one
// instead of stacking duplicates on the staff screen.
func (s *ServiceRequestService) RaiseRequest(ctx context.Context, restaurantID, tableID uuid.UUID, reqType, sessionID string) (database.ServiceRequest, error) {
	if reqType != enum.ServiceRequestTypeBill && reqType != enum.ServiceRequestTypeWaiter {
		return database.ServiceRequest{}, ErrInvalidRequestType
	}

	table, err := s.store.GetTable(ctx, database.GetTableParams{ID: tableID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ServiceRequest{}, ErrTableNotFound
		}
		return database.ServiceRequest{}, fmt.Errorf("get table: %w", err)
	}

	existing, err := s.store.FindOpenServiceRequest(ctx, database.FindOpenServiceRequestParams{
		RestaurantID: restaurantID,
		TableID:      tableID,
		Type:         reqType,
	})
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.ServiceRequest{}, fmt.Errorf("find open request: %w", err)
	}

	session := pgtype.Text{}
	if sessionID != "" {
		session = pgtype.Text{String: sessionID, Valid: true}
	}

	sr, err := s.store.CreateServiceRequest(ctx, database.CreateServiceRequestParams{
		RestaurantID:       restaurantID,
		TableID:            tableID,
		TableCode:          table.TableCode,
		Type:               reqType,
		RequestedBySession: session,
	})
	if err != nil {
		return database.ServiceRequest{}, fmt.Errorf("create service request: %w", err)
	}

	s.notifier.Publish(ws.RestaurantChannel(restaurantID), "service_request_update", map[string]any{
		"action":    "NEW_REQUEST",
		"requestId": sr.ID,
		"tableCode": sr.TableCode,
		"type":      sr.Type,
	})
	return sr, nil
}

// ListRequests returns the restaurant's requests, optionally filtered.
func (s *ServiceRequestService) ListRequests(ctx context.Context, restaurantID uuid.UUID, status, reqType string, limit int32) ([]database.ServiceRequest, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	st := pgtype.Text{}
	if status != "" {
		st = pgtype.Text{String: status, Valid: true}
	}
	ty := pgtype.Text{}
	if reqType != "" {
		ty = pgtype.Text{String: reqType, Valid: true}
	}
	return s.store.ListServiceRequests(ctx, database.ListServiceRequestsParams{
		RestaurantID: restaurantID,
		Status:       st,
		Type:         ty,
		Limit:        limit,
	})
}

// Acknowledge marks an open request as being handled.
func (s *ServiceRequestService) Acknowledge(ctx context.Context, restaurantID, requestID uuid.UUID) (database.ServiceRequest, error) {
	sr, err := s.store.AckServiceRequest(ctx, database.GetServiceRequestParams{ID: requestID, RestaurantID: restaurantID})
	if err != nil {
		return database.ServiceRequest{}, s.conflictOrNotFound(ctx, restaurantID, requestID, err)
	}
	s.publishResolved(sr, "ACKNOWLEDGED")
	return sr, nil
}

// Close resolves a request.
func (s *ServiceRequestService) Close(ctx context.Context, restaurantID, requestID uuid.UUID) (database.ServiceRequest, error) {
	sr, err := s.store.CloseServiceRequest(ctx, database.GetServiceRequestParams{ID: requestID, RestaurantID: restaurantID})
	if err != nil {
		return database.ServiceRequest{}, s.conflictOrNotFound(ctx, restaurantID, requestID, err)
	}
	s.publishResolved(sr, "CLOSED")
	return sr, nil
}

// conflictOrNotFound disambiguates a zero-row update: the request is
// either gone or already past the state the update required.
func (s *ServiceRequestService) conflictOrNotFound(ctx context.Context, restaurantID, requestID uuid.UUID, cause error) error {
	if !errors.Is(cause, pgx.ErrNoRows) {
		return cause
	}
	if _, err := s.store.GetServiceRequest(ctx, database.GetServiceRequestParams{ID: requestID, RestaurantID: restaurantID}); err != nil {
		return ErrServiceRequestNotFound
	}
	return ErrRequestAlreadyClosed
}

func (s *ServiceRequestService) publishResolved(sr database.ServiceRequest, action string) {
	s.notifier.Publish(ws.RestaurantChannel(sr.RestaurantID), "service_request_update", map[string]any{
		"action":    action,
		"requestId": sr.ID,
		"status":    sr.Status,
	})
	if sr.RequestedBySession.Valid {
		s.notifier.Publish(ws.SessionChannel(sr.RequestedBySession.String), "service_request_update", map[string]any{
			"requestId": sr.ID,
			"status":    sr.Status,
		})
	}
}
