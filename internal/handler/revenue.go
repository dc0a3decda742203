package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scanserve/api/internal/service"
)

// RevenueHandler serves the owner dashboard reports.
type RevenueHandler struct {
	revenue *service.RevenueService
}

// NewRevenueHandler creates a new RevenueHandler.
func NewRevenueHandler(revenue *service.RevenueService) *RevenueHandler {
	return &RevenueHandler{revenue: revenue}
}

// RegisterRoutes registers revenue endpoints on the given Chi router,
// which is expected to be mounted under /restaurants/{rid}.
func (h *RevenueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/revenue/summary", h.Summary)
	r.Get("/revenue/trend", h.Trend)
	r.Get("/revenue/top-items", h.TopItems)
}

// Summary returns totals and the zero-filled daily breakdown for the
// requested range (today, 7d, 30d, month; defaults to today).
func (h *RevenueHandler) Summary(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	rangeStr := r.URL.Query().Get("range")
	if rangeStr == "" {
		rangeStr = "today"
	}

	summary, err := h.revenue.Summary(r.Context(), restaurantID, rangeStr)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		logError("revenue summary", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Trend returns only the daily series, for the revenue chart.
func (h *RevenueHandler) Trend(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	rangeStr := r.URL.Query().Get("range")
	if rangeStr == "" {
		rangeStr = "today"
	}

	daily, err := h.revenue.Trend(r.Context(), restaurantID, rangeStr)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		logError("revenue trend", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"range": rangeStr, "daily": daily})
}

// TopItems returns the best sellers by settled revenue.
func (h *RevenueHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	rangeStr := r.URL.Query().Get("range")
	if rangeStr == "" {
		rangeStr = "today"
	}
	limit := queryInt(r, "limit", 10, 1, 50)

	items, err := h.revenue.TopItems(r.Context(), restaurantID, rangeStr, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		logError("top items", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
