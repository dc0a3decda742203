package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries.
type MenuStore interface {
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, arg database.DeleteMenuItemParams) error
}

// MenuHandler handles the staff menu management endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router,
// which is expected to be mounted under /restaurants/{rid}.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.List)
	r.Post("/menu", h.Create)
	r.Put("/menu/{mid}", h.Update)
	r.Delete("/menu/{mid}", h.Delete)
}

// --- Request / Response types ---

type menuItemRequest struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	IsAvailable *bool  `json:"isAvailable"`
}

type menuItemView struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	IsAvailable bool      `json:"isAvailable"`
}

func menuItemResponse(mi database.MenuItem) menuItemView {
	return menuItemView{
		ID:          mi.ID,
		Category:    mi.Category,
		Name:        mi.Name,
		Description: mi.Description.String,
		Price:       numericString(mi.Price),
		IsAvailable: mi.IsAvailable,
	}
}

// --- Handlers ---

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	items, err := h.store.ListMenuItems(r.Context(), restaurantID)
	if err != nil {
		logError("list menu", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	views := make([]menuItemView, 0, len(items))
	for _, mi := range items {
		views = append(views, menuItemResponse(mi))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	params, ok := h.parseItem(w, r, restaurantID)
	if !ok {
		return
	}

	mi, err := h.store.CreateMenuItem(r.Context(), params)
	if err != nil {
		logError("create menu item", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, menuItemResponse(mi))
}

// Update edits the live menu entry. Existing order and bill snapshots
// keep the name and price they were placed with.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "mid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	params, ok := h.parseItem(w, r, restaurantID)
	if !ok {
		return
	}

	mi, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:           itemID,
		RestaurantID: restaurantID,
		Category:     params.Category,
		Name:         params.Name,
		Description:  params.Description,
		Price:        params.Price,
		IsAvailable:  params.IsAvailable,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		logError("update menu item", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, menuItemResponse(mi))
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "mid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	if err := h.store.DeleteMenuItem(r.Context(), database.DeleteMenuItemParams{
		ID:           itemID,
		RestaurantID: restaurantID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		logError("delete menu item", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MenuHandler) parseItem(w http.ResponseWriter, r *http.Request, restaurantID uuid.UUID) (database.CreateMenuItemParams, bool) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return database.CreateMenuItemParams{}, false
	}
	if req.Name == "" || req.Category == "" || req.Price == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category, name, and price are required"})
		return database.CreateMenuItemParams{}, false
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return database.CreateMenuItemParams{}, false
	}

	description := pgtype.Text{}
	if req.Description != "" {
		description = pgtype.Text{String: req.Description, Valid: true}
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	var num pgtype.Numeric
	_ = num.Scan(price.StringFixed(2))

	return database.CreateMenuItemParams{
		RestaurantID: restaurantID,
		Category:     req.Category,
		Name:         req.Name,
		Description:  description,
		Price:        num,
		IsAvailable:  available,
	}, true
}
