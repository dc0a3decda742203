package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// RestaurantStore defines the database methods needed for platform
// provisioning. Satisfied by *database.Queries.
type RestaurantStore interface {
	CreateRestaurant(ctx context.Context, arg database.CreateRestaurantParams) (database.Restaurant, error)
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]database.Restaurant, error)
	UpdateRestaurant(ctx context.Context, arg database.UpdateRestaurantParams) (database.Restaurant, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
}

// RestaurantHandler handles the super-admin provisioning surface.
type RestaurantHandler struct {
	store RestaurantStore

	// defaultTzOffset is applied when a create request omits
	// tzOffsetMinutes.
	defaultTzOffset int32
}

// NewRestaurantHandler creates a new RestaurantHandler.
func NewRestaurantHandler(store RestaurantStore, defaultTzOffset int32) *RestaurantHandler {
	return &RestaurantHandler{store: store, defaultTzOffset: defaultTzOffset}
}

// RegisterRoutes registers provisioning endpoints; the caller guards
// them with the SUPER_ADMIN role.
func (h *RestaurantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/restaurants", h.List)
	r.Post("/restaurants", h.Create)
	r.Put("/restaurants/{rid}", h.Update)
	r.Post("/restaurants/{rid}/users", h.CreateUser)
}

// --- Request / Response types ---

type createRestaurantRequest struct {
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	TzOffsetMinutes *int32 `json:"tzOffsetMinutes"`
	Plan            string `json:"plan"`
}

type updateRestaurantRequest struct {
	Name               string `json:"name"`
	TzOffsetMinutes    *int32 `json:"tzOffsetMinutes"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	IsActive           *bool  `json:"isActive"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type restaurantView struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	TzOffsetMinutes    int32     `json:"tzOffsetMinutes"`
	Plan               string    `json:"plan"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          string    `json:"createdAt"`
}

func restaurantResponse(rest database.Restaurant) restaurantView {
	return restaurantView{
		ID:                 rest.ID,
		Name:               rest.Name,
		Slug:               rest.Slug,
		TzOffsetMinutes:    rest.TzOffsetMinutes,
		Plan:               rest.Plan,
		SubscriptionStatus: rest.SubscriptionStatus,
		IsActive:           rest.IsActive,
		CreatedAt:          rest.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// --- Handlers ---

func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.store.ListRestaurants(r.Context())
	if err != nil {
		logError("list restaurants", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	views := make([]restaurantView, 0, len(restaurants))
	for _, rest := range restaurants {
		views = append(views, restaurantResponse(rest))
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurants": views})
}

// Create provisions a tenant. The UTC offset fixes which local day a
// settled bill's revenue lands in; it can be corrected later via
// Update without touching historical bills.
func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and slug are required"})
		return
	}

	offset := h.defaultTzOffset
	if req.TzOffsetMinutes != nil {
		offset = *req.TzOffsetMinutes
	}
	if offset < -720 || offset > 840 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tzOffsetMinutes out of range"})
		return
	}

	plan := req.Plan
	if plan == "" {
		plan = enum.PlanFree
	}

	rest, err := h.store.CreateRestaurant(r.Context(), database.CreateRestaurantParams{
		Name:               req.Name,
		Slug:               req.Slug,
		TzOffsetMinutes:    offset,
		Plan:               plan,
		SubscriptionStatus: enum.SubscriptionActive,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "slug already taken"})
			return
		}
		logError("create restaurant", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, restaurantResponse(rest))
}

func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	current, err := h.store.GetRestaurant(r.Context(), restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		logError("get restaurant", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var req updateRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := database.UpdateRestaurantParams{
		ID:                 restaurantID,
		Name:               current.Name,
		TzOffsetMinutes:    current.TzOffsetMinutes,
		Plan:               current.Plan,
		SubscriptionStatus: current.SubscriptionStatus,
		IsActive:           current.IsActive,
	}
	if req.Name != "" {
		params.Name = req.Name
	}
	if req.TzOffsetMinutes != nil {
		if *req.TzOffsetMinutes < -720 || *req.TzOffsetMinutes > 840 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tzOffsetMinutes out of range"})
			return
		}
		params.TzOffsetMinutes = *req.TzOffsetMinutes
	}
	if req.Plan != "" {
		params.Plan = req.Plan
	}
	if req.SubscriptionStatus != "" {
		params.SubscriptionStatus = req.SubscriptionStatus
	}
	if req.IsActive != nil {
		params.IsActive = *req.IsActive
	}

	rest, err := h.store.UpdateRestaurant(r.Context(), params)
	if err != nil {
		logError("update restaurant", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, restaurantResponse(rest))
}

// CreateUser registers a staff account for a restaurant.
func (h *RestaurantHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseRestaurantID(w, r)
	if !ok {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, password, and fullName are required"})
		return
	}

	role := req.Role
	if role == "" {
		role = enum.RoleStaff
	}
	if role != enum.RoleRestaurantAdmin && role != enum.RoleStaff {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logError("hash password", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		RestaurantID:   pgtype.UUID{Bytes: restaurantID, Valid: true},
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           role,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		logError("create user", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:           user.ID,
		RestaurantID: restaurantID.String(),
		FullName:     user.FullName,
		Email:        user.Email,
		Role:         user.Role,
	})
}
