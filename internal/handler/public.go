package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/service"
)

// sessionHeader carries the anonymous table-session identity for
// customer requests. Issued by the menu-context endpoint and echoed by
// the client on every later call.
const sessionHeader = "X-Session-ID"

// PublicStore defines the database methods needed by the customer
// surface. Satisfied by *database.Queries.
type PublicStore interface {
	GetRestaurantBySlug(ctx context.Context, slug string) (database.Restaurant, error)
	GetTableByCode(ctx context.Context, arg database.GetTableByCodeParams) (database.Table, error)
	ListAvailableMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
}

// PublicHandler serves everything a QR scan reaches: menu context,
// order placement, the session's own orders, and call buttons. No JWT;
// the table is identified by slug + table code, the guest by session.
type PublicHandler struct {
	store    PublicStore
	orders   *service.OrderService
	requests *service.ServiceRequestService
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(store PublicStore, orders *service.OrderService, requests *service.ServiceRequestService) *PublicHandler {
	return &PublicHandler{store: store, orders: orders, requests: requests}
}

// RegisterRoutes registers customer endpoints on the given Chi router.
func (h *PublicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/r/{slug}/t/{code}", h.MenuContext)
	r.Post("/r/{slug}/t/{code}/orders", h.PlaceOrder)
	r.Get("/r/{slug}/orders", h.MyOrders)
	r.Post("/r/{slug}/t/{code}/service-requests", h.RaiseServiceRequest)
}

// --- Request / Response types ---

type menuContextResponse struct {
	Restaurant restaurantPublicView `json:"restaurant"`
	Table      tablePublicView      `json:"table"`
	Menu       []menuItemView       `json:"menu"`
	SessionID  string               `json:"sessionId"`
}

type restaurantPublicView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type tablePublicView struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

type placeOrderRequest struct {
	Notes string `json:"notes"`
	Items []struct {
		ItemID   string `json:"itemId"`
		Quantity int32  `json:"quantity"`
	} `json:"items"`
}

type raiseServiceRequestBody struct {
	Type string `json:"type"`
}

// --- Handlers ---

// MenuContext resolves a scanned QR code: restaurant by slug, table by
// code, and the currently available menu. If the client has no session
// yet, one is coined here and must be echoed on subsequent calls.
func (h *PublicHandler) MenuContext(w http.ResponseWriter, r *http.Request) {
	rest, table, ok := h.resolveTable(w, r)
	if !ok {
		return
	}

	menu, err := h.store.ListAvailableMenuItems(r.Context(), rest.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	items := make([]menuItemView, 0, len(menu))
	for _, mi := range menu {
		items = append(items, menuItemResponse(mi))
	}

	writeJSON(w, http.StatusOK, menuContextResponse{
		Restaurant: restaurantPublicView{ID: rest.ID, Name: rest.Name, Slug: rest.Slug},
		Table:      tablePublicView{ID: table.ID, Code: table.TableCode},
		Menu:       items,
		SessionID:  sessionID,
	})
}

// PlaceOrder submits a customer's cart for the table.
func (h *PublicHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	rest, table, ok := h.resolveTable(w, r)
	if !ok {
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing session header"})
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.PlaceOrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.PlaceOrderItem{ItemID: it.ItemID, Quantity: it.Quantity})
	}

	order, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		RestaurantID: rest.ID,
		TableID:      table.ID,
		SessionID:    sessionID,
		Notes:        req.Notes,
		Items:        items,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, service.OrderResponse(order, table.TableCode))
}

// MyOrders lists the session's own orders across the visit.
func (h *PublicHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing session header"})
		return
	}

	orders, err := h.orders.OrdersBySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	views := make([]service.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, service.OrderResponse(o, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

// RaiseServiceRequest records a BILL or WAITER call for the table.
func (h *PublicHandler) RaiseServiceRequest(w http.ResponseWriter, r *http.Request) {
	rest, table, ok := h.resolveTable(w, r)
	if !ok {
		return
	}

	var req raiseServiceRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sr, err := h.requests.RaiseRequest(r.Context(), rest.ID, table.ID, req.Type, r.Header.Get(sessionHeader))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequestType):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTableNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			logError("raise service request", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, serviceRequestResponse(sr))
}

// resolveTable loads the restaurant by slug and the active table by
// code, writing the error response itself on failure.
func (h *PublicHandler) resolveTable(w http.ResponseWriter, r *http.Request) (database.Restaurant, database.Table, bool) {
	slug := chi.URLParam(r, "slug")
	rest, err := h.store.GetRestaurantBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return database.Restaurant{}, database.Table{}, false
	}

	code := chi.URLParam(r, "code")
	if code == "" {
		// Routes without a table segment (e.g. listing session orders).
		return rest, database.Table{}, true
	}

	table, err := h.store.GetTableByCode(r.Context(), database.GetTableByCodeParams{
		RestaurantID: rest.ID,
		TableCode:    code,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return database.Restaurant{}, database.Table{}, false
	}
	return rest, table, true
}
