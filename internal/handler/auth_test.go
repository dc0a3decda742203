package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/enum"
	"github.com/scanserve/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	userByID    map[uuid.UUID]database.User
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail: make(map[string]database.User),
		userByID:    make(map[uuid.UUID]database.User),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
	m.userByID[u.ID] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeStaffUser(t *testing.T, restaurantID uuid.UUID) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		RestaurantID:   pgtype.UUID{Bytes: restaurantID, Valid: true},
		Email:          "staff@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Staff",
		Role:           enum.RoleStaff,
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func newAuthRouter(store handler.AuthStore) chi.Router {
	h := handler.NewAuthHandler(store, testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	restaurantID := uuid.New()
	user := makeStaffUser(t, restaurantID)
	store.addUser(user)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "staff@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["email"] != "staff@test.com" {
		t.Errorf("user email: got %v, want staff@test.com", userResp["email"])
	}
	if userResp["role"] != enum.RoleStaff {
		t.Errorf("user role: got %v, want %s", userResp["role"], enum.RoleStaff)
	}
	if userResp["restaurant_id"] != restaurantID.String() {
		t.Errorf("user restaurant_id: got %v, want %s", userResp["restaurant_id"], restaurantID)
	}
}

func TestLogin_SuperAdminHasNoRestaurant(t *testing.T) {
	store := newMockAuthStore()
	admin := database.User{
		ID:             uuid.New(),
		Email:          "admin@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Platform Admin",
		Role:           enum.RoleSuperAdmin,
	}
	store.addUser(admin)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "admin@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	userResp := decodeResponse(t, rr)["user"].(map[string]interface{})
	if _, present := userResp["restaurant_id"]; present {
		t.Errorf("restaurant_id should be omitted for super admin, got %v", userResp["restaurant_id"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeStaffUser(t, uuid.New()))

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "staff@test.com",
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/login", map[string]string{
		"email":    "nobody@test.com",
		"password": "whatever",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/login", map[string]string{
		"email": "staff@test.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Refresh tests ---

func TestRefresh_RoundTrip(t *testing.T) {
	store := newMockAuthStore()
	user := makeStaffUser(t, uuid.New())
	store.addUser(user)
	router := newAuthRouter(store)

	login := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "staff@test.com",
		"password": "correct-password",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("login status: got %d, want %d", login.Code, http.StatusOK)
	}
	refreshToken := decodeResponse(t, login)["refresh_token"].(string)

	rr := postJSON(t, router, "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected new access_token from refresh")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/refresh", map[string]string{
		"refresh_token": "not-a-token",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_DeletedUser(t *testing.T) {
	store := newMockAuthStore()
	user := makeStaffUser(t, uuid.New())
	store.addUser(user)
	router := newAuthRouter(store)

	login := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "staff@test.com",
		"password": "correct-password",
	})
	refreshToken := decodeResponse(t, login)["refresh_token"].(string)

	// User disappears between login and refresh.
	delete(store.userByID, user.ID)

	rr := postJSON(t, router, "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
