package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/ws"
	"github.com/shopspring/decimal"
)

const maxCloseBillRetries = 3

// Errors returned by the billing service. ErrNoOpenOrders comes only
// from CloseBill; previewing an empty table is not an error.
var (
	ErrNoOpenOrders = errors.New("no billable orders for this table")
	ErrBillNotFound = errors.New("bill not found")
)

// BillingStore defines the DB methods the billing service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type BillingStore interface {
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	FindBillableOrders(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error)
	FindBillableOrdersForUpdate(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error)
	CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	MarkOrdersBilled(ctx context.Context, arg database.MarkOrdersBilledParams) (int64, error)
	GetBill(ctx context.Context, arg database.GetBillParams) (database.Bill, error)
	FindBillsByTable(ctx context.Context, arg database.FindBillsByTableParams) ([]database.Bill, error)
	ListRecentBills(ctx context.Context, arg database.ListRecentBillsParams) ([]database.Bill, error)
	GetTableBillSummary(ctx context.Context, arg database.GetTableBillSummaryParams) ([]database.TableBillSummaryRow, error)
}

// NewBillingStore creates a BillingStore from a DBTX (pool or tx).
type NewBillingStore func(db database.DBTX) BillingStore

// BillingService settles tables: it consolidates a table's open orders
// into one bill and marks them completed, atomically.
type BillingService struct {
	pool     TxBeginner
	store    BillingStore
	newStore NewBillingStore
	notifier Notifier
}

// NewBillingService creates a new BillingService. store is pool-backed
// and serves the read paths; newStore builds transactional stores for
// CloseBill.
func NewBillingService(pool TxBeginner, store BillingStore, newStore NewBillingStore, notifier Notifier) *BillingService {
	return &BillingService{pool: pool, store: store, newStore: newStore, notifier: notifier}
}

// BillPreview is the consolidated view of a table's open orders before
// settlement. Nothing is persisted.
type BillPreview struct {
	TableID    uuid.UUID           `json:"tableId"`
	OrderIDs   []uuid.UUID         `json:"orderIds"`
	Items      []database.BillLine `json:"items"`
	Subtotal   string              `json:"subtotal"`
	TaxAmount  string              `json:"taxAmount"`
	GrandTotal string              `json:"grandTotal"`
}

// PreviewOpenBill consolidates the table's current billable orders
// without closing anything. A table with nothing open previews as a
// zero bill, not an error. A second preview after more orders arrive
// reflects them; CloseBill re-reads on its own.
func (s *BillingService) PreviewOpenBill(ctx context.Context, restaurantID, tableID uuid.UUID) (*BillPreview, error) {
	if _, err := s.store.GetTable(ctx, database.GetTableParams{ID: tableID, RestaurantID: restaurantID}); err != nil {
		return nil, ErrTableNotFound
	}

	orders, err := s.store.FindBillableOrders(ctx, database.FindBillableOrdersParams{
		RestaurantID: restaurantID,
		TableID:      tableID,
	})
	if err != nil {
		return nil, fmt.Errorf("find billable orders: %w", err)
	}
	orders = billableOnly(orders)

	lines, subtotal := consolidate(orders)
	if lines == nil {
		lines = []database.BillLine{}
	}
	tax := computeTax(subtotal)
	return &BillPreview{
		TableID:    tableID,
		OrderIDs:   orderIDs(orders),
		Items:      lines,
		Subtotal:   subtotal.StringFixed(2),
		TaxAmount:  tax.StringFixed(2),
		GrandTotal: subtotal.Add(tax).StringFixed(2),
	}, nil
}

// CloseBill settles the table: re-reads the billable orders under a
// row lock, writes the consolidated bill, and flips every order to
// billed/COMPLETED in the same transaction. The flip is conditioned on
// billed = false, so if a racing close already took some orders the
// row count disagrees, the transaction rolls back, and we retry
// against the new state.
func (s *BillingService) CloseBill(ctx context.Context, restaurantID, tableID, closedBy uuid.UUID) (*database.Bill, error) {
	var lastErr error
	for attempt := 0; attempt < maxCloseBillRetries; attempt++ {
		bill, retry, err := s.closeBillTx(ctx, restaurantID, tableID, closedBy)
		if err == nil {
			s.publishClosed(bill)
			return bill, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *BillingService) closeBillTx(ctx context.Context, restaurantID, tableID, closedBy uuid.UUID) (*database.Bill, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orders, err := store.FindBillableOrdersForUpdate(ctx, database.FindBillableOrdersParams{
		RestaurantID: restaurantID,
		TableID:      tableID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("lock billable orders: %w", err)
	}
	orders = billableOnly(orders)
	if len(orders) == 0 {
		return nil, false, ErrNoOpenOrders
	}

	lines, subtotal := consolidate(orders)
	tax := computeTax(subtotal)
	ids := orderIDs(orders)

	bill, err := store.CreateBill(ctx, database.CreateBillParams{
		RestaurantID: restaurantID,
		TableID:      tableID,
		OrderIDs:     ids,
		Items:        lines,
		Subtotal:     decimalToNumeric(subtotal),
		TaxAmount:    decimalToNumeric(tax),
		GrandTotal:   decimalToNumeric(subtotal.Add(tax)),
		ClosedBy:     pgtype.UUID{Bytes: closedBy, Valid: true},
	})
	if err != nil {
		return nil, false, fmt.Errorf("create bill: %w", err)
	}

	flipped, err := store.MarkOrdersBilled(ctx, database.MarkOrdersBilledParams{
		OrderIDs: ids,
		BillID:   bill.ID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("mark orders billed: %w", err)
	}
	if flipped != int64(len(ids)) {
		// Someone billed part of this set out from under us. Roll back
		// and re-read the still-open orders.
		return nil, true, fmt.Errorf("billed %d of %d orders, retrying", flipped, len(ids))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}
	return &bill, false, nil
}

func (s *BillingService) publishClosed(bill *database.Bill) {
	payload := map[string]any{
		"billId":     bill.ID,
		"tableId":    bill.TableID,
		"orderIds":   bill.OrderIDs,
		"grandTotal": numericToDecimal(bill.GrandTotal).StringFixed(2),
	}
	s.notifier.Publish(ws.RestaurantChannel(bill.RestaurantID), "billing_closed", payload)
}

// GetBill fetches one settled bill.
func (s *BillingService) GetBill(ctx context.Context, restaurantID, billID uuid.UUID) (database.Bill, error) {
	bill, err := s.store.GetBill(ctx, database.GetBillParams{ID: billID, RestaurantID: restaurantID})
	if err != nil {
		return database.Bill{}, ErrBillNotFound
	}
	return bill, nil
}

// BillHistory lists a table's settled bills, newest first.
func (s *BillingService) BillHistory(ctx context.Context, restaurantID, tableID uuid.UUID) ([]database.Bill, error) {
	return s.store.FindBillsByTable(ctx, database.FindBillsByTableParams{
		RestaurantID: restaurantID,
		TableID:      tableID,
	})
}

// RecentBills lists the restaurant's latest settled bills.
func (s *BillingService) RecentBills(ctx context.Context, restaurantID uuid.UUID, limit int32) ([]database.Bill, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.store.ListRecentBills(ctx, database.ListRecentBillsParams{
		RestaurantID: restaurantID,
		Limit:        limit,
	})
}

// TableSummary aggregates settled revenue per table.
func (s *BillingService) TableSummary(ctx context.Context, restaurantID uuid.UUID, limit int32) ([]database.TableBillSummaryRow, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.store.GetTableBillSummary(ctx, database.GetTableBillSummaryParams{
		RestaurantID: restaurantID,
		Limit:        limit,
	})
}

// consolidate merges order lines by (itemId, price). The same item
// snapshotted at two different prices stays on two lines. Line order
// follows first appearance across the orders, which arrive oldest
// first.
func consolidate(orders []database.Order) ([]database.BillLine, decimal.Decimal) {
	type key struct {
		itemID uuid.UUID
		price  string
	}

	index := make(map[key]int)
	var lines []database.BillLine
	subtotal := decimal.Zero

	for _, o := range orders {
		for _, l := range o.Items {
			k := key{itemID: l.ItemID, price: l.Price.String()}
			if i, ok := index[k]; ok {
				lines[i].Quantity += l.Quantity
			} else {
				index[k] = len(lines)
				lines = append(lines, database.BillLine{
					ItemID:   l.ItemID,
					Name:     l.Name,
					Price:    l.Price,
					Quantity: l.Quantity,
				})
			}
		}
	}

	for i := range lines {
		lines[i].LineTotal = lines[i].Price.Mul(decimal.NewFromInt32(lines[i].Quantity))
		subtotal = subtotal.Add(lines[i].LineTotal)
	}
	return lines, subtotal
}

// computeTax is the hook for jurisdiction tax rules. No tax for now.
func computeTax(subtotal decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// billableOnly keeps the orders satisfying IsBillable. The queries
// already select on the same condition; this keeps the eligibility
// decision in one place.
func billableOnly(orders []database.Order) []database.Order {
	out := orders[:0]
	for _, o := range orders {
		if IsBillable(o) {
			out = append(out, o)
		}
	}
	return out
}

func orderIDs(orders []database.Order) []uuid.UUID {
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

// BillView is the JSON shape of a settled bill.
type BillView struct {
	ID         uuid.UUID           `json:"id"`
	TableID    uuid.UUID           `json:"tableId"`
	OrderIDs   []uuid.UUID         `json:"orderIds"`
	Items      []database.BillLine `json:"items"`
	Subtotal   string              `json:"subtotal"`
	TaxAmount  string              `json:"taxAmount"`
	GrandTotal string              `json:"grandTotal"`
	Status     string              `json:"status"`
	ClosedAt   string              `json:"closedAt"`
}

// BillResponse converts a DB bill into its JSON view.
func BillResponse(b database.Bill) BillView {
	return BillView{
		ID:         b.ID,
		TableID:    b.TableID,
		OrderIDs:   b.OrderIDs,
		Items:      b.Items,
		Subtotal:   numericToDecimal(b.Subtotal).StringFixed(2),
		TaxAmount:  numericToDecimal(b.TaxAmount).StringFixed(2),
		GrandTotal: numericToDecimal(b.GrandTotal).StringFixed(2),
		Status:     b.Status,
		ClosedAt:   b.ClosedAt.UTC().Format(time.RFC3339),
	}
}
