package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/enum"
	"github.com/scanserve/api/internal/ws"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidItemID     = errors.New("invalid item_id")
	ErrMenuItemNotFound  = errors.New("menu item not found in restaurant")
	ErrNoAvailableItems  = errors.New("no ordered items are currently available")
	ErrTableNotFound     = errors.New("table not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("order is in a terminal status")
	ErrStatusConflict    = errors.New("order status changed concurrently")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Notifier fans events out to WebSocket subscribers. Satisfied by
// *ws.Hub; a no-op or recording implementation works for tests.
type Notifier interface {
	Publish(channel, event string, payload any)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries.
type OrderStore interface {
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	ListOrdersBySession(ctx context.Context, sessionID string) ([]database.Order, error)
}

// PlaceOrderRequest is the validated input for placing a customer order.
type PlaceOrderRequest struct {
	RestaurantID uuid.UUID
	TableID      uuid.UUID
	SessionID    string
	Notes        string
	Items        []PlaceOrderItem
}

// PlaceOrderItem is one requested line before the menu snapshot.
type PlaceOrderItem struct {
	ItemID   string
	Quantity int32
}

// TransitionRequest moves an order to a new lifecycle status.
type TransitionRequest struct {
	OrderID      uuid.UUID
	RestaurantID uuid.UUID
	Status       string
	Reason       string
}

// OrderService handles order placement and lifecycle transitions.
type OrderService struct {
	store    OrderStore
	notifier Notifier
}

// NewOrderService creates a new OrderService.
func NewOrderService(store OrderStore, notifier Notifier) *OrderService {
	return &OrderService{store: store, notifier: notifier}
}

// PlaceOrder snapshots the requested menu items into the order and
// inserts it as PENDING. Unavailable items are silently dropped so a
// table can still order the rest of its cart; the order fails only if
// nothing orderable remains. Name and price are copied from the menu
// at this moment and never re-read.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (database.Order, error) {
	if len(req.Items) == 0 {
		return database.Order{}, ErrEmptyItems
	}

	table, err := s.store.GetTable(ctx, database.GetTableParams{
		ID:           req.TableID,
		RestaurantID: req.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrTableNotFound
		}
		return database.Order{}, fmt.Errorf("get table: %w", err)
	}

	total := decimal.Zero
	var lines []database.OrderLine
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return database.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		itemID, err := uuid.Parse(item.ItemID)
		if err != nil {
			return database.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidItemID)
		}

		mi, err := s.store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:           itemID,
			RestaurantID: req.RestaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return database.Order{}, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !mi.IsAvailable {
			continue
		}

		price := numericToDecimal(mi.Price)
		total = total.Add(price.Mul(decimal.NewFromInt32(item.Quantity)))
		lines = append(lines, database.OrderLine{
			ItemID:   mi.ID,
			Name:     mi.Name,
			Price:    price,
			Quantity: item.Quantity,
		})
	}
	if len(lines) == 0 {
		return database.Order{}, ErrNoAvailableItems
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := s.store.CreateOrder(ctx, database.CreateOrderParams{
		RestaurantID: req.RestaurantID,
		TableID:      table.ID,
		SessionID:    req.SessionID,
		Items:        lines,
		TotalAmount:  decimalToNumeric(total),
		Notes:        notes,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.notifier.Publish(ws.RestaurantChannel(order.RestaurantID), "order_updated", map[string]any{
		"action": "NEW_ORDER",
		"order":  OrderResponse(order, table.TableCode),
	})
	s.notifier.Publish(ws.SessionChannel(order.SessionID), "customer_orders_updated", map[string]any{
		"orderId": order.ID,
	})

	return order, nil
}

// Transition applies a staff status change. Any known non-terminal
// status may move to any other except COMPLETED, which is reachable
// only through bill settlement. The write is conditioned on the status
// we read, so two staff racing on the same order get ErrStatusConflict
// instead of a silent overwrite.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (database.Order, error) {
	if !isKnownStatus(req.Status) {
		return database.Order{}, ErrUnknownStatus
	}
	if req.Status == enum.OrderStatusCompleted {
		return database.Order{}, ErrInvalidTransition
	}

	order, err := s.store.GetOrder(ctx, database.GetOrderParams{
		ID:           req.OrderID,
		RestaurantID: req.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if IsTerminal(order.Status) {
		return database.Order{}, ErrInvalidTransition
	}

	reason := pgtype.Text{}
	switch req.Status {
	case enum.OrderStatusCancelled:
		reason = pgtype.Text{String: defaultReason(req.Reason, "Cancelled by restaurant"), Valid: true}
	case enum.OrderStatusRejected:
		reason = pgtype.Text{String: defaultReason(req.Reason, "Rejected by restaurant"), Valid: true}
	}

	updated, err := s.store.SetOrderStatus(ctx, database.SetOrderStatusParams{
		ID:           req.OrderID,
		RestaurantID: req.RestaurantID,
		Status:       req.Status,
		PrevStatus:   order.Status,
		CancelReason: reason,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("set order status: %w", err)
	}

	s.notifier.Publish(ws.RestaurantChannel(updated.RestaurantID), "order_updated", map[string]any{
		"action":  "STATUS_UPDATED",
		"orderId": updated.ID,
		"status":  updated.Status,
	})
	s.notifier.Publish(ws.SessionChannel(updated.SessionID), "order_status", map[string]any{
		"orderId": updated.ID,
		"status":  updated.Status,
		"reason":  updated.CancelReason.String,
	})

	return updated, nil
}

// OrdersBySession returns a session's own orders, newest first.
func (s *OrderService) OrdersBySession(ctx context.Context, sessionID string) ([]database.Order, error) {
	return s.store.ListOrdersBySession(ctx, sessionID)
}

// IsBillable reports whether an order can be consolidated into a bill:
// not yet billed and not cancelled or rejected. The billable-order
// queries apply the same test in SQL; billing re-checks rows against
// this predicate before consolidating.
func IsBillable(o database.Order) bool {
	return !o.Billed && o.Status != enum.OrderStatusCancelled && o.Status != enum.OrderStatusRejected
}

// IsTerminal reports whether no further staff transition applies.
func IsTerminal(status string) bool {
	switch status {
	case enum.OrderStatusCompleted, enum.OrderStatusCancelled, enum.OrderStatusRejected:
		return true
	}
	return false
}

func isKnownStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusAccepted, enum.OrderStatusRejected,
		enum.OrderStatusCancelled, enum.OrderStatusInKitchen, enum.OrderStatusReady,
		enum.OrderStatusServed, enum.OrderStatusCompleted:
		return true
	}
	return false
}

func defaultReason(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

// --- Helpers ---

// OrderView is the JSON shape of an order across customer and staff
// surfaces. Money is rendered with two decimal places.
type OrderView struct {
	ID           uuid.UUID            `json:"id"`
	RestaurantID uuid.UUID            `json:"restaurantId"`
	TableID      uuid.UUID            `json:"tableId"`
	TableCode    string               `json:"tableCode,omitempty"`
	SessionID    string               `json:"sessionId"`
	Items        []database.OrderLine `json:"items"`
	TotalAmount  string               `json:"totalAmount"`
	Status       string               `json:"status"`
	CancelReason string               `json:"cancelReason,omitempty"`
	Notes        string               `json:"notes,omitempty"`
	Billed       bool                 `json:"billed"`
	BillID       string               `json:"billId,omitempty"`
	CreatedAt    string               `json:"createdAt"`
	UpdatedAt    string               `json:"updatedAt"`
}

// OrderResponse converts a DB order into its JSON view.
func OrderResponse(o database.Order, tableCode string) OrderView {
	v := OrderView{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		TableID:      o.TableID,
		TableCode:    tableCode,
		SessionID:    o.SessionID,
		Items:        o.Items,
		TotalAmount:  numericToDecimal(o.TotalAmount).StringFixed(2),
		Status:       o.Status,
		CancelReason: o.CancelReason.String,
		Notes:        o.Notes.String,
		Billed:       o.Billed,
		CreatedAt:    o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    o.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if o.BillID.Valid {
		v.BillID = uuid.UUID(o.BillID.Bytes).String()
	}
	return v
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
