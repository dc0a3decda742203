package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/scanserve/api/internal/database"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries.
type TableStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.Table, error)
}

// TableHandler handles table registration for QR code generation.
type TableHandler struct {
	store TableStore
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore) *TableHandler {
	return &TableHandler{store: store}
}

// RegisterRoutes registers table endpoints on the given Chi router,
// which is expected to be mounted under /restaurants/{rid}.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tables", h.List)
	r.Post("/tables", h.Create)
}

type createTableRequest struct {
	TableCode string `json:"tableCode"`
}

type tableView struct {
	ID        uuid.UUID `json:"id"`
	TableCode string    `json:"tableCode"`
	IsActive  bool      `json:"isActive"`
}

func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	tables, err := h.store.ListTables(r.Context(), restaurantID)
	if err != nil {
		logError("list tables", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	views := make([]tableView, 0, len(tables))
	for _, t := range tables {
		views = append(views, tableView{ID: t.ID, TableCode: t.TableCode, IsActive: t.IsActive})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": views})
}

func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tableCode is required"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		RestaurantID: restaurantID,
		TableCode:    req.TableCode,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table code already exists"})
			return
		}
		logError("create table", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, tableView{ID: table.ID, TableCode: table.TableCode, IsActive: table.IsActive})
}

// isUniqueViolation checks for pgconn error code 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
