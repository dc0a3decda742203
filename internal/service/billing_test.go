package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/scanserve/api/internal/database"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
	rollbacks   int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rollbacks++
	return m.rollbackErr
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockBillingStore implements BillingStore with configurable behavior.
type mockBillingStore struct {
	getTableFn                    func(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	findBillableOrdersFn          func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error)
	findBillableOrdersForUpdateFn func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error)
	createBillFn                  func(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	markOrdersBilledFn            func(ctx context.Context, arg database.MarkOrdersBilledParams) (int64, error)
	getBillFn                     func(ctx context.Context, arg database.GetBillParams) (database.Bill, error)
	findBillsByTableFn            func(ctx context.Context, arg database.FindBillsByTableParams) ([]database.Bill, error)
	listRecentBillsFn             func(ctx context.Context, arg database.ListRecentBillsParams) ([]database.Bill, error)
	getTableBillSummaryFn         func(ctx context.Context, arg database.GetTableBillSummaryParams) ([]database.TableBillSummaryRow, error)
}

func (m *mockBillingStore) GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error) {
	return m.getTableFn(ctx, arg)
}
func (m *mockBillingStore) FindBillableOrders(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
	return m.findBillableOrdersFn(ctx, arg)
}
func (m *mockBillingStore) FindBillableOrdersForUpdate(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
	return m.findBillableOrdersForUpdateFn(ctx, arg)
}
func (m *mockBillingStore) CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
	return m.createBillFn(ctx, arg)
}
func (m *mockBillingStore) MarkOrdersBilled(ctx context.Context, arg database.MarkOrdersBilledParams) (int64, error) {
	return m.markOrdersBilledFn(ctx, arg)
}
func (m *mockBillingStore) GetBill(ctx context.Context, arg database.GetBillParams) (database.Bill, error) {
	return m.getBillFn(ctx, arg)
}
func (m *mockBillingStore) FindBillsByTable(ctx context.Context, arg database.FindBillsByTableParams) ([]database.Bill, error) {
	return m.findBillsByTableFn(ctx, arg)
}
func (m *mockBillingStore) ListRecentBills(ctx context.Context, arg database.ListRecentBillsParams) ([]database.Bill, error) {
	return m.listRecentBillsFn(ctx, arg)
}
func (m *mockBillingStore) GetTableBillSummary(ctx context.Context, arg database.GetTableBillSummaryParams) ([]database.TableBillSummaryRow, error) {
	return m.getTableBillSummaryFn(ctx, arg)
}

// --- Test helpers ---

func billableOrder(restaurantID, tableID uuid.UUID, lines ...database.OrderLine) database.Order {
	return database.Order{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		TableID:      tableID,
		SessionID:    "sess-1",
		Items:        lines,
		Status:       "SERVED",
	}
}

func newBillingService(store *mockBillingStore, notifier Notifier) (*BillingService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) BillingStore { return store }
	return NewBillingService(pool, store, newStore, notifier), tx
}

// --- Consolidation ---

func TestConsolidateMergesSameItemSamePrice(t *testing.T) {
	restaurantID, tableID := uuid.New(), uuid.New()
	nasiID := uuid.New()
	tehID := uuid.New()

	orders := []database.Order{
		billableOrder(restaurantID, tableID,
			database.OrderLine{ItemID: nasiID, Name: "Nasi Goreng", Price: mustDecimal(t, "45000"), Quantity: 2},
			database.OrderLine{ItemID: tehID, Name: "Teh Tarik", Price: mustDecimal(t, "12000"), Quantity: 1},
		),
		billableOrder(restaurantID, tableID,
			database.OrderLine{ItemID: nasiID, Name: "Nasi Goreng", Price: mustDecimal(t, "45000"), Quantity: 1},
		),
	}

	lines, subtotal := consolidate(orders)
	if len(lines) != 2 {
		t.Fatalf("expected 2 consolidated lines, got %d", len(lines))
	}
	if lines[0].Quantity != 3 {
		t.Errorf("merged quantity: got %d, want 3", lines[0].Quantity)
	}
	if !lines[0].LineTotal.Equal(mustDecimal(t, "135000")) {
		t.Errorf("line total: got %v, want 135000", lines[0].LineTotal)
	}
	// 3*45000 + 1*12000
	if !subtotal.Equal(mustDecimal(t, "147000")) {
		t.Errorf("subtotal: got %v, want 147000", subtotal)
	}
}

func TestConsolidateKeepsDistinctPricesApart(t *testing.T) {
	restaurantID, tableID := uuid.New(), uuid.New()
	nasiID := uuid.New()

	// Price changed between the two orders; snapshots differ.
	orders := []database.Order{
		billableOrder(restaurantID, tableID,
			database.OrderLine{ItemID: nasiID, Name: "Nasi Goreng", Price: mustDecimal(t, "45000"), Quantity: 1},
		),
		billableOrder(restaurantID, tableID,
			database.OrderLine{ItemID: nasiID, Name: "Nasi Goreng", Price: mustDecimal(t, "48000"), Quantity: 2},
		),
	}

	lines, subtotal := consolidate(orders)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines for 2 snapshot prices, got %d", len(lines))
	}
	if !subtotal.Equal(mustDecimal(t, "141000")) {
		t.Errorf("subtotal: got %v, want 141000", subtotal)
	}
}

// --- PreviewOpenBill ---

func TestPreviewOpenBill(t *testing.T) {
	restaurantID, tableID := uuid.New(), uuid.New()
	itemID := uuid.New()
	orders := []database.Order{
		billableOrder(restaurantID, tableID,
			database.OrderLine{ItemID: itemID, Name: "Sate", Price: mustDecimal(t, "30000"), Quantity: 2},
		),
	}

	store := &mockBillingStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.Table, error) {
			return database.Table{ID: tableID, RestaurantID: restaurantID, TableCode: "T1"}, nil
		},
		findBillableOrdersFn: func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
			return orders, nil
		},
	}
	svc, _ := newBillingService(store, &mockNotifier{})

	preview, err := svc.PreviewOpenBill(context.Background(), restaurantID, tableID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Subtotal != "60000.00" {
		t.Errorf("subtotal: got %s, want 60000.00", preview.Subtotal)
	}
	if preview.TaxAmount != "0.00" {
		t.Errorf("tax: got %s, want 0.00", preview.TaxAmount)
	}
	if preview.GrandTotal != "60000.00" {
		t.Errorf("grand total: got %s, want 60000.00", preview.GrandTotal)
	}
	if len(preview.OrderIDs) != 1 {
		t.Errorf("order ids: got %d, want 1", len(preview.OrderIDs))
	}
}

func TestPreviewOpenBillNoOrders(t *testing.T) {
	restaurantID, tableID := uuid.New(), uuid.New()
	store := &mockBillingStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.Table, error) {
			return database.Table{ID: tableID, RestaurantID: restaurantID}, nil
		},
		findBillableOrdersFn: func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
			return nil, nil
		},
	}
	svc, _ := newBillingService(store, &mockNotifier{})

	preview, err := svc.PreviewOpenBill(context.Background(), restaurantID, tableID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(preview.OrderIDs) != 0 || len(preview.Items) != 0 {
		t.Fatalf("expected empty preview, got %+v", preview)
	}
	if preview.Subtotal != "0.00" || preview.GrandTotal != "0.00" {
		t.Errorf("expected zero totals, got subtotal %s grand %s", preview.Subtotal, preview.GrandTotal)
	}
	if preview.Items == nil || preview.OrderIDs == nil {
		t.Error("empty preview must render [] not null")
	}
}

// --- CloseBill ---

func TestCloseBillMarksEveryOrderOnce(t *testing.T) {
	restaurantID, tableID := uuid.New(), uuid.New()
	itemID := uuid.New()
	orders := []database.Order{
		billableOrder(restaurantID, tableID,
			database.OrderLine{ItemID: itemID, Name: "Sate", Price: mustDecimal(t, "30000"), Quantity: 2},
		),
		billableOrder(restaurantID, tableID,
			database.OrderLine{ItemID: itemID, Name: "Sate", Price: mustDecimal(t, "30000"), Quantity: 1},
		),
	}

	var markedIDs []uuid.UUID
	store := &mockBillingStore{
		findBillableOrdersForUpdateFn: func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
			return orders, nil
		},
		createBillFn: func(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
			return database.Bill{
				ID:           uuid.New(),
				RestaurantID: arg.RestaurantID,
				TableID:      arg.TableID,
				OrderIDs:     arg.OrderIDs,
				Items:        arg.Items,
				Subtotal:     arg.Subtotal,
				TaxAmount:    arg.TaxAmount,
				GrandTotal:   arg.GrandTotal,
				Status:       "CLOSED",
			}, nil
		},
		markOrdersBilledFn: func(ctx context.Context, arg database.MarkOrdersBilledParams) (int64, error) {
			markedIDs = arg.OrderIDs
			return int64(len(arg.OrderIDs)), nil
		},
	}
	notifier := &mockNotifier{}
	svc, tx := newBillingService(store, notifier)

	bill, err := svc.CloseBill(context.Background(), restaurantID, tableID, uuid.New())
	if err != nil {
		t.Fatalf("close bill: %v", err)
	}

	if len(markedIDs) != 2 {
		t.Fatalf("marked %d orders, want 2", len(markedIDs))
	}
	if !numericEquals(bill.GrandTotal, "90000") {
		t.Errorf("grand total: got %v, want 90000", numericToDecimal(bill.GrandTotal))
	}
	if len(bill.Items) != 1 {
		t.Errorf("consolidated lines: got %d, want 1", len(bill.Items))
	}
	if tx.commits != 1 {
		t.Errorf("commits: got %d, want 1", tx.commits)
	}
	if !notifier.has("billing_closed") {
		t.Error("billing_closed not published")
	}
	for _, p := range notifier.published {
		if p.event != "billing_closed" {
			continue
		}
		payload := p.payload.(map[string]any)
		ids, ok := payload["orderIds"].([]uuid.UUID)
		if !ok || len(ids) != 2 {
			t.Errorf("billing_closed orderIds: got %v, want both source orders", payload["orderIds"])
		}
	}
}

func TestCloseBillNoOpenOrders(t *testing.T) {
	store := &mockBillingStore{
		findBillableOrdersForUpdateFn: func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
			return nil, nil
		},
	}
	svc, tx := newBillingService(store, &mockNotifier{})

	_, err := svc.CloseBill(context.Background(), uuid.New(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNoOpenOrders) {
		t.Fatalf("expected ErrNoOpenOrders, got %v", err)
	}
	if tx.commits != 0 {
		t.Errorf("commits: got %d, want 0", tx.commits)
	}
}

func TestCloseBillRetriesOnPartialFlip(t *testing.T) {
	restaurantID, tableID := uuid.New(), uuid.New()
	itemID := uuid.New()
	first := billableOrder(restaurantID, tableID,
		database.OrderLine{ItemID: itemID, Name: "Sate", Price: mustDecimal(t, "30000"), Quantity: 1},
	)
	second := billableOrder(restaurantID, tableID,
		database.OrderLine{ItemID: itemID, Name: "Sate", Price: mustDecimal(t, "30000"), Quantity: 2},
	)

	reads := 0
	store := &mockBillingStore{
		findBillableOrdersForUpdateFn: func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
			reads++
			if reads == 1 {
				return []database.Order{first, second}, nil
			}
			// A concurrent close already took the first order.
			return []database.Order{second}, nil
		},
		createBillFn: func(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
			return database.Bill{
				ID:           uuid.New(),
				RestaurantID: arg.RestaurantID,
				TableID:      arg.TableID,
				OrderIDs:     arg.OrderIDs,
				Items:        arg.Items,
				GrandTotal:   arg.GrandTotal,
				Status:       "CLOSED",
			}, nil
		},
		markOrdersBilledFn: func(ctx context.Context, arg database.MarkOrdersBilledParams) (int64, error) {
			if reads == 1 {
				return int64(len(arg.OrderIDs)) - 1, nil
			}
			return int64(len(arg.OrderIDs)), nil
		},
	}
	svc, tx := newBillingService(store, &mockNotifier{})

	bill, err := svc.CloseBill(context.Background(), restaurantID, tableID, uuid.New())
	if err != nil {
		t.Fatalf("close bill: %v", err)
	}
	if reads != 2 {
		t.Errorf("reads: got %d, want 2 (one retry)", reads)
	}
	if len(bill.OrderIDs) != 1 {
		t.Errorf("second attempt should bill 1 order, got %d", len(bill.OrderIDs))
	}
	if tx.commits != 1 {
		t.Errorf("commits: got %d, want 1", tx.commits)
	}
}

func TestCloseBillGivesUpAfterRetries(t *testing.T) {
	restaurantID, tableID := uuid.New(), uuid.New()
	itemID := uuid.New()
	order := billableOrder(restaurantID, tableID,
		database.OrderLine{ItemID: itemID, Name: "Sate", Price: mustDecimal(t, "30000"), Quantity: 1},
	)

	attempts := 0
	store := &mockBillingStore{
		findBillableOrdersForUpdateFn: func(ctx context.Context, arg database.FindBillableOrdersParams) ([]database.Order, error) {
			attempts++
			return []database.Order{order}, nil
		},
		createBillFn: func(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
			return database.Bill{ID: uuid.New(), Status: "CLOSED"}, nil
		},
		markOrdersBilledFn: func(ctx context.Context, arg database.MarkOrdersBilledParams) (int64, error) {
			return 0, nil
		},
	}
	svc, tx := newBillingService(store, &mockNotifier{})

	_, err := svc.CloseBill(context.Background(), restaurantID, tableID, uuid.New())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxCloseBillRetries {
		t.Errorf("attempts: got %d, want %d", attempts, maxCloseBillRetries)
	}
	if tx.commits != 0 {
		t.Errorf("commits: got %d, want 0", tx.commits)
	}
}
