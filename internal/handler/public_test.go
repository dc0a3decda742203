package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/enum"
	"github.com/scanserve/api/internal/handler"
	"github.com/scanserve/api/internal/service"
)

// --- Mock stores ---

type mockPublicStore struct {
	restaurant database.Restaurant
	table      database.Table
	menu       []database.MenuItem
}

func (m *mockPublicStore) GetRestaurantBySlug(_ context.Context, slug string) (database.Restaurant, error) {
	if slug != m.restaurant.Slug {
		return database.Restaurant{}, pgx.ErrNoRows
	}
	return m.restaurant, nil
}

func (m *mockPublicStore) GetTableByCode(_ context.Context, arg database.GetTableByCodeParams) (database.Table, error) {
	if arg.TableCode != m.table.TableCode || arg.RestaurantID != m.restaurant.ID {
		return database.Table{}, pgx.ErrNoRows
	}
	return m.table, nil
}

func (m *mockPublicStore) ListAvailableMenuItems(context.Context, uuid.UUID) ([]database.MenuItem, error) {
	return m.menu, nil
}

// mockCustomerStore implements service.OrderStore for the placement
// path.
type mockCustomerStore struct {
	table database.Table
	menu  map[uuid.UUID]database.MenuItem

	sessionOrders []database.Order
}

func (m *mockCustomerStore) GetTable(_ context.Context, arg database.GetTableParams) (database.Table, error) {
	if arg.ID != m.table.ID {
		return database.Table{}, pgx.ErrNoRows
	}
	return m.table, nil
}

func (m *mockCustomerStore) GetMenuItem(_ context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
	mi, ok := m.menu[arg.ID]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return mi, nil
}

func (m *mockCustomerStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	now := time.Now().UTC()
	return database.Order{
		ID:           uuid.New(),
		RestaurantID: arg.RestaurantID,
		TableID:      arg.TableID,
		SessionID:    arg.SessionID,
		Items:        arg.Items,
		TotalAmount:  arg.TotalAmount,
		Status:       enum.OrderStatusPending,
		Notes:        arg.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (m *mockCustomerStore) GetOrder(context.Context, database.GetOrderParams) (database.Order, error) {
	panic("unexpected GetOrder call")
}

func (m *mockCustomerStore) SetOrderStatus(context.Context, database.SetOrderStatusParams) (database.Order, error) {
	panic("unexpected SetOrderStatus call")
}

func (m *mockCustomerStore) ListOrdersBySession(context.Context, string) ([]database.Order, error) {
	return m.sessionOrders, nil
}

// mockRequestStore implements service.ServiceRequestStore; only the
// raise path is exercised from the public surface.
type mockRequestStore struct {
	table   database.Table
	open    *database.ServiceRequest
	created *database.ServiceRequest
}

func (m *mockRequestStore) GetTable(_ context.Context, arg database.GetTableParams) (database.Table, error) {
	if arg.ID != m.table.ID {
		return database.Table{}, pgx.ErrNoRows
	}
	return m.table, nil
}

func (m *mockRequestStore) CreateServiceRequest(_ context.Context, arg database.CreateServiceRequestParams) (database.ServiceRequest, error) {
	sr := database.ServiceRequest{
		ID:                 uuid.New(),
		RestaurantID:       arg.RestaurantID,
		TableID:            arg.TableID,
		TableCode:          arg.TableCode,
		Type:               arg.Type,
		Status:             enum.ServiceRequestStatusOpen,
		RequestedBySession: arg.RequestedBySession,
		CreatedAt:          time.Now().UTC(),
	}
	m.created = &sr
	return sr, nil
}

func (m *mockRequestStore) FindOpenServiceRequest(context.Context, database.FindOpenServiceRequestParams) (database.ServiceRequest, error) {
	if m.open != nil {
		return *m.open, nil
	}
	return database.ServiceRequest{}, pgx.ErrNoRows
}

func (m *mockRequestStore) ListServiceRequests(context.Context, database.ListServiceRequestsParams) ([]database.ServiceRequest, error) {
	panic("unexpected ListServiceRequests call")
}

func (m *mockRequestStore) GetServiceRequest(context.Context, database.GetServiceRequestParams) (database.ServiceRequest, error) {
	panic("unexpected GetServiceRequest call")
}

func (m *mockRequestStore) AckServiceRequest(context.Context, database.GetServiceRequestParams) (database.ServiceRequest, error) {
	panic("unexpected AckServiceRequest call")
}

func (m *mockRequestStore) CloseServiceRequest(context.Context, database.GetServiceRequestParams) (database.ServiceRequest, error) {
	panic("unexpected CloseServiceRequest call")
}

// --- Fixtures ---

type publicFixture struct {
	router     chi.Router
	restaurant database.Restaurant
	table      database.Table
	item       database.MenuItem
	requests   *mockRequestStore
}

func newPublicFixture(t *testing.T) *publicFixture {
	t.Helper()

	restaurant := database.Restaurant{
		ID:       uuid.New(),
		Name:     "Warung Test",
		Slug:     "warung-test",
		IsActive: true,
	}
	table := database.Table{
		ID:           uuid.New(),
		RestaurantID: restaurant.ID,
		TableCode:    "T1",
		IsActive:     true,
	}
	item := database.MenuItem{
		ID:           uuid.New(),
		RestaurantID: restaurant.ID,
		Category:     "Main",
		Name:         "Nasi Bakar Ayam",
		Price:        testNumeric(t, "28000"),
		IsAvailable:  true,
	}

	store := &mockPublicStore{restaurant: restaurant, table: table, menu: []database.MenuItem{item}}
	customerStore := &mockCustomerStore{
		table: table,
		menu:  map[uuid.UUID]database.MenuItem{item.ID: item},
	}
	requestStore := &mockRequestStore{table: table}

	orders := service.NewOrderService(customerStore, noopNotifier{})
	requests := service.NewServiceRequestService(requestStore, noopNotifier{})

	h := handler.NewPublicHandler(store, orders, requests)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	return &publicFixture{
		router:     r,
		restaurant: restaurant,
		table:      table,
		item:       item,
		requests:   requestStore,
	}
}

func getWithSession(t *testing.T, router http.Handler, path, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func postWithSession(t *testing.T, router http.Handler, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rr := postJSON(t, newHeaderInjector(router, sessionID), path, body)
	return rr
}

// newHeaderInjector wraps a handler so postJSON requests carry the
// session header.
func newHeaderInjector(next http.Handler, sessionID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionID != "" {
			r.Header.Set("X-Session-ID", sessionID)
		}
		next.ServeHTTP(w, r)
	})
}

// --- Menu context tests ---

func TestMenuContext_IssuesSessionID(t *testing.T) {
	f := newPublicFixture(t)

	rr := getWithSession(t, f.router, "/r/warung-test/t/T1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	sid, _ := resp["sessionId"].(string)
	if _, err := uuid.Parse(sid); err != nil {
		t.Errorf("sessionId: got %q, want a generated UUID", sid)
	}
	menu := resp["menu"].([]interface{})
	if len(menu) != 1 {
		t.Fatalf("menu items: got %d, want 1", len(menu))
	}
	first := menu[0].(map[string]interface{})
	if first["price"] != "28000.00" {
		t.Errorf("menu price: got %v, want 28000.00", first["price"])
	}
}

func TestMenuContext_EchoesExistingSession(t *testing.T) {
	f := newPublicFixture(t)
	session := uuid.NewString()

	rr := getWithSession(t, f.router, "/r/warung-test/t/T1", session)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got := decodeResponse(t, rr)["sessionId"]; got != session {
		t.Errorf("sessionId: got %v, want %s", got, session)
	}
}

func TestMenuContext_UnknownSlug(t *testing.T) {
	f := newPublicFixture(t)

	rr := getWithSession(t, f.router, "/r/no-such-place/t/T1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestMenuContext_UnknownTable(t *testing.T) {
	f := newPublicFixture(t)

	rr := getWithSession(t, f.router, "/r/warung-test/t/T99", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Order placement tests ---

func TestPlaceOrder_Success(t *testing.T) {
	f := newPublicFixture(t)
	session := uuid.NewString()

	rr := postWithSession(t, f.router, "/r/warung-test/t/T1/orders", session, map[string]any{
		"items": []map[string]any{
			{"itemId": f.item.ID.String(), "quantity": 2},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusPending {
		t.Errorf("order status: got %v, want PENDING", resp["status"])
	}
	if resp["totalAmount"] != "56000.00" {
		t.Errorf("totalAmount: got %v, want 56000.00", resp["totalAmount"])
	}
	if resp["sessionId"] != session {
		t.Errorf("sessionId: got %v, want %s", resp["sessionId"], session)
	}
	if resp["tableCode"] != "T1" {
		t.Errorf("tableCode: got %v, want T1", resp["tableCode"])
	}
}

func TestPlaceOrder_MissingSessionHeader(t *testing.T) {
	f := newPublicFixture(t)

	rr := postJSON(t, f.router, "/r/warung-test/t/T1/orders", map[string]any{
		"items": []map[string]any{
			{"itemId": f.item.ID.String(), "quantity": 1},
		},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newPublicFixture(t)

	rr := postWithSession(t, f.router, "/r/warung-test/t/T1/orders", uuid.NewString(), map[string]any{
		"items": []map[string]any{},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Session orders tests ---

func TestMyOrders_RequiresSessionHeader(t *testing.T) {
	f := newPublicFixture(t)

	rr := getWithSession(t, f.router, "/r/warung-test/orders", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMyOrders_ReturnsSessionOrders(t *testing.T) {
	f := newPublicFixture(t)
	session := uuid.NewString()

	rr := getWithSession(t, f.router, "/r/warung-test/orders", session)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if orders := decodeResponse(t, rr)["orders"].([]interface{}); len(orders) != 0 {
		t.Errorf("orders: got %d, want 0", len(orders))
	}
}

// --- Service request tests ---

func TestRaiseServiceRequest_CreatesRequest(t *testing.T) {
	f := newPublicFixture(t)
	session := uuid.NewString()

	rr := postWithSession(t, f.router, "/r/warung-test/t/T1/service-requests", session, map[string]string{
		"type": enum.ServiceRequestTypeBill,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["type"] != enum.ServiceRequestTypeBill {
		t.Errorf("type: got %v, want BILL", resp["type"])
	}
	if resp["status"] != enum.ServiceRequestStatusOpen {
		t.Errorf("status: got %v, want OPEN", resp["status"])
	}
	if f.requests.created == nil || !f.requests.created.RequestedBySession.Valid {
		t.Error("expected request stored with the caller's session")
	}
}

func TestRaiseServiceRequest_ReturnsExistingOpenRequest(t *testing.T) {
	f := newPublicFixture(t)
	existing := database.ServiceRequest{
		ID:           uuid.New(),
		RestaurantID: f.restaurant.ID,
		TableID:      f.table.ID,
		TableCode:    "T1",
		Type:         enum.ServiceRequestTypeWaiter,
		Status:       enum.ServiceRequestStatusOpen,
		CreatedAt:    time.Now().UTC(),
	}
	f.requests.open = &existing

	rr := postWithSession(t, f.router, "/r/warung-test/t/T1/service-requests", uuid.NewString(), map[string]string{
		"type": enum.ServiceRequestTypeWaiter,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusCreated)
	}
	if got := decodeResponse(t, rr)["id"]; got != existing.ID.String() {
		t.Errorf("id: got %v, want existing request %s", got, existing.ID)
	}
	if f.requests.created != nil {
		t.Error("no new request should be created while one is open")
	}
}

func TestRaiseServiceRequest_InvalidType(t *testing.T) {
	f := newPublicFixture(t)

	rr := postWithSession(t, f.router, "/r/warung-test/t/T1/service-requests", uuid.NewString(), map[string]string{
		"type": "KARAOKE",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
