package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/middleware"
	"github.com/scanserve/api/internal/service"
	"github.com/shopspring/decimal"
)

// BillingHandler drives table settlement from the staff dashboard.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// RegisterRoutes registers billing endpoints on the given Chi router,
// which is expected to be mounted under /restaurants/{rid}.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tables/{tid}/bill", h.Preview)
	r.Post("/tables/{tid}/bill/close", h.Close)
	r.Get("/tables/{tid}/bills", h.History)
	r.Get("/bills/recent", h.Recent)
	r.Get("/bills/table-summary", h.TableSummary)
	r.Get("/bills/{bid}", h.Get)
}

type tableSummaryView struct {
	TableID      uuid.UUID `json:"tableId"`
	Bills        int64     `json:"bills"`
	TotalRevenue string    `json:"totalRevenue"`
	LastClosedAt string    `json:"lastClosedAt"`
}

// Preview shows the consolidated open bill for a table without
// settling anything.
func (h *BillingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	restaurantID, tableID, ok := parseTableScope(w, r)
	if !ok {
		return
	}

	preview, err := h.billing.PreviewOpenBill(r.Context(), restaurantID, tableID)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Close settles the table's open orders into one bill.
func (h *BillingHandler) Close(w http.ResponseWriter, r *http.Request) {
	restaurantID, tableID, ok := parseTableScope(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	bill, err := h.billing.CloseBill(r.Context(), restaurantID, tableID, claims.UserID)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, service.BillResponse(*bill))
}

// History lists a table's settled bills.
func (h *BillingHandler) History(w http.ResponseWriter, r *http.Request) {
	restaurantID, tableID, ok := parseTableScope(w, r)
	if !ok {
		return
	}

	bills, err := h.billing.BillHistory(r.Context(), restaurantID, tableID)
	if err != nil {
		logError("bill history", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": billViews(bills)})
}

// Recent lists the restaurant's latest settled bills.
func (h *BillingHandler) Recent(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20, 1, 100)
	bills, err := h.billing.RecentBills(r.Context(), restaurantID, int32(limit))
	if err != nil {
		logError("recent bills", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": billViews(bills)})
}

// TableSummary aggregates settled revenue per table.
func (h *BillingHandler) TableSummary(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20, 1, 100)
	rows, err := h.billing.TableSummary(r.Context(), restaurantID, int32(limit))
	if err != nil {
		logError("table summary", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	out := make([]tableSummaryView, 0, len(rows))
	for _, row := range rows {
		out = append(out, tableSummaryView{
			TableID:      row.TableID,
			Bills:        row.BillsCount,
			TotalRevenue: numericString(row.TotalRevenue),
			LastClosedAt: row.LastClosedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

// Get fetches one settled bill.
func (h *BillingHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}
	billID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	bill, err := h.billing.GetBill(r.Context(), restaurantID, billID)
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.BillResponse(bill))
}

// --- Helpers ---

func writeBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoOpenOrders):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrBillNotFound),
		errors.Is(err, service.ErrTableNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		logError("billing operation", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func parseTableScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	tableID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return restaurantID, tableID, true
}

func billViews(bills []database.Bill) []service.BillView {
	out := make([]service.BillView, 0, len(bills))
	for _, b := range bills {
		out = append(out, service.BillResponse(b))
	}
	return out
}

func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
