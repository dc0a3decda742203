package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/service"
)

// OrderAdminStore defines the database methods needed by the staff
// order surface. Satisfied by *database.Queries.
type OrderAdminStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOpenOrders(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error)
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.Table, error)
}

// OrderHandler handles the staff order dashboard endpoints.
type OrderHandler struct {
	store  OrderAdminStore
	orders *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderAdminStore, orders *service.OrderService) *OrderHandler {
	return &OrderHandler{store: store, orders: orders}
}

// RegisterRoutes registers staff order endpoints on the given Chi
// router, which is expected to be mounted under /restaurants/{rid}.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/live", h.LiveByTable)
	r.Get("/orders/export", h.ExportCSV)
	r.Get("/orders/{oid}", h.Get)
	r.Patch("/orders/{oid}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type liveTableView struct {
	TableID   uuid.UUID           `json:"tableId"`
	TableCode string              `json:"tableCode"`
	Orders    []service.OrderView `json:"orders"`
}

// --- Handlers ---

// List returns the restaurant's orders, newest first, with optional
// status, table, and free-text search filters and offset pagination.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	status := pgtype.Text{}
	if s := r.URL.Query().Get("status"); s != "" {
		status = pgtype.Text{String: s, Valid: true}
	}
	tableID := pgtype.UUID{}
	if t := r.URL.Query().Get("table_id"); t != "" {
		tid, err := uuid.Parse(t)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		tableID = pgtype.UUID{Bytes: tid, Valid: true}
	}
	search := pgtype.Text{}
	if s := r.URL.Query().Get("search"); s != "" {
		search = pgtype.Text{String: s, Valid: true}
	}

	limit := queryInt(r, "limit", 20, 1, 100)
	page := queryInt(r, "page", 1, 1, 1<<30)

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		RestaurantID: restaurantID,
		Status:       status,
		TableID:      tableID,
		Search:       search,
		Limit:        int32(limit),
		Offset:       int32((page - 1) * limit),
	})
	if err != nil {
		logError("list orders", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountOrders(r.Context(), database.CountOrdersParams{
		RestaurantID: restaurantID,
		Status:       status,
		TableID:      tableID,
		Search:       search,
	})
	if err != nil {
		logError("count orders", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	views := make([]service.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, service.OrderResponse(o, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": views,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// LiveByTable groups the restaurant's open (unbilled, not cancelled or
// rejected) orders by table for the floor view.
func (h *OrderHandler) LiveByTable(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	orders, err := h.store.ListOpenOrders(r.Context(), restaurantID)
	if err != nil {
		logError("list open orders", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	tables, err := h.store.ListTables(r.Context(), restaurantID)
	if err != nil {
		logError("list tables", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	codes := make(map[uuid.UUID]string, len(tables))
	for _, t := range tables {
		codes[t.ID] = t.TableCode
	}

	index := make(map[uuid.UUID]int)
	var out []liveTableView
	for _, o := range orders {
		i, seen := index[o.TableID]
		if !seen {
			i = len(out)
			index[o.TableID] = i
			out = append(out, liveTableView{TableID: o.TableID, TableCode: codes[o.TableID]})
		}
		out[i].Orders = append(out[i].Orders, service.OrderResponse(o, codes[o.TableID]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

// Get returns one order's full detail.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		logError("get order", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, service.OrderResponse(order, ""))
}

// ExportCSV streams the current order list as CSV, one row per order.
func (h *OrderHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	status := pgtype.Text{}
	if s := r.URL.Query().Get("status"); s != "" {
		status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		RestaurantID: restaurantID,
		Status:       status,
		Limit:        10000,
	})
	if err != nil {
		logError("export orders", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "table_id", "session_id", "status", "total_amount", "billed", "created_at"})
	for _, o := range orders {
		view := service.OrderResponse(o, "")
		_ = cw.Write([]string{
			o.ID.String(),
			o.TableID.String(),
			o.SessionID,
			o.Status,
			view.TotalAmount,
			strconv.FormatBool(o.Billed),
			o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logError("flush csv", err)
	}
}

// UpdateStatus moves an order through its lifecycle.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.orders.Transition(r.Context(), service.TransitionRequest{
		OrderID:      orderID,
		RestaurantID: restaurantID,
		Status:       req.Status,
		Reason:       req.Reason,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, service.OrderResponse(order, ""))
}

// --- Helpers ---

// writeOrderError maps order service errors onto HTTP statuses.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTableNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownStatus),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidItemID),
		errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, service.ErrNoAvailableItems):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logError("order operation", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func parseRestaurantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

func logError(op string, err error) {
	log.Printf("ERROR: %s: %v", op, err)
}
