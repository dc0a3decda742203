package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/service"
)

// ServiceRequestHandler handles the staff side of table call buttons.
type ServiceRequestHandler struct {
	requests *service.ServiceRequestService
}

// NewServiceRequestHandler creates a new ServiceRequestHandler.
func NewServiceRequestHandler(requests *service.ServiceRequestService) *ServiceRequestHandler {
	return &ServiceRequestHandler{requests: requests}
}

// RegisterRoutes registers staff service-request endpoints on the
// given Chi router, mounted under /restaurants/{rid}.
func (h *ServiceRequestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/service-requests", h.List)
	r.Post("/service-requests/{srid}/ack", h.Acknowledge)
	r.Post("/service-requests/{srid}/close", h.Close)
}

type serviceRequestView struct {
	ID        uuid.UUID `json:"id"`
	TableID   uuid.UUID `json:"tableId"`
	TableCode string    `json:"tableCode"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	AckAt     string    `json:"ackAt,omitempty"`
	ClosedAt  string    `json:"closedAt,omitempty"`
	CreatedAt string    `json:"createdAt"`
}

func serviceRequestResponse(sr database.ServiceRequest) serviceRequestView {
	v := serviceRequestView{
		ID:        sr.ID,
		TableID:   sr.TableID,
		TableCode: sr.TableCode,
		Type:      sr.Type,
		Status:    sr.Status,
		CreatedAt: sr.CreatedAt.UTC().Format(time.RFC3339),
	}
	if sr.AckAt.Valid {
		v.AckAt = sr.AckAt.Time.UTC().Format(time.RFC3339)
	}
	if sr.ClosedAt.Valid {
		v.ClosedAt = sr.ClosedAt.Time.UTC().Format(time.RFC3339)
	}
	return v
}

func (h *ServiceRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50, 1, 200)
	requests, err := h.requests.ListRequests(r.Context(), restaurantID,
		r.URL.Query().Get("status"), r.URL.Query().Get("type"), int32(limit))
	if err != nil {
		logError("list service requests", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	views := make([]serviceRequestView, 0, len(requests))
	for _, sr := range requests {
		views = append(views, serviceRequestResponse(sr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": views})
}

func (h *ServiceRequestHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.requests.Acknowledge)
}

func (h *ServiceRequestHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.requests.Close)
}

func (h *ServiceRequestHandler) resolve(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, restaurantID, requestID uuid.UUID) (database.ServiceRequest, error)) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}
	requestID, err := uuid.Parse(chi.URLParam(r, "srid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	sr, err := op(r.Context(), restaurantID, requestID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServiceRequestNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrRequestAlreadyClosed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			logError("resolve service request", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, serviceRequestResponse(sr))
}
