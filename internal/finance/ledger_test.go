package finance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockTransactionStore is an in-memory TransactionStore for ledger tests.
type mockTransactionStore struct {
	mu     sync.Mutex
	txs    map[string]Transaction
	failOn string
}

func newMockTransactionStore() *mockTransactionStore {
	return &mockTransactionStore{txs: make(map[string]Transaction)}
}

func (m *mockTransactionStore) ListByUser(ctx context.Context, userID string) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *mockTransactionStore) Insert(ctx context.Context, tx *Transaction) error {
	if m.failOn == "insert" {
		return errors.New("store unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[tx.ID] = *tx
	return nil
}

func (m *mockTransactionStore) Replace(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[tx.ID] = *tx
	return nil
}

func (m *mockTransactionStore) Delete(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, id)
	return nil
}

type mockBaselineStore struct {
	mu        sync.Mutex
	baselines map[string]Baseline
}

func newMockBaselineStore() *mockBaselineStore {
	return &mockBaselineStore{baselines: make(map[string]Baseline)}
}

func (m *mockBaselineStore) Get(ctx context.Context, userID string) (*Baseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.baselines[userID]; ok {
		out := b
		return &out, nil
	}
	return nil, nil
}

func (m *mockBaselineStore) Upsert(ctx context.Context, b *Baseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baselines[b.UserID] = *b
	return nil
}

func (m *mockBaselineStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.baselines, userID)
	return nil
}

type capturedAlerts struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *capturedAlerts) Publish(userID string, alert Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
}

func newTestLedger() (*Ledger, *mockTransactionStore, *mockBaselineStore, *capturedAlerts) {
	txs := newMockTransactionStore()
	baselines := newMockBaselineStore()
	alerts := &capturedAlerts{}
	ledger := NewLedger(txs, baselines, alerts, zerolog.Nop())
	ledger.now = func() time.Time { return testDay }
	return ledger, txs, baselines, alerts
}

func TestLedger_SetBaselinePersistsDeposit(t *testing.T) {
	ledger, txs, baselines, _ := newTestLedger()
	ctx := context.Background()

	b, err := ledger.SetBaseline(ctx, "u1", 10000)
	if err != nil {
		t.Fatalf("SetBaseline failed: %v", err)
	}
	if b.RemainingBalance != 10000 {
		t.Errorf("remaining = %v, want 10000", b.RemainingBalance)
	}

	stored, _ := baselines.Get(ctx, "u1")
	if stored == nil {
		t.Fatal("baseline not persisted")
	}
	history, _ := txs.ListByUser(ctx, "u1")
	if len(history) != 1 || history[0].Type != TypeIncome {
		t.Errorf("deposit transaction not persisted: %+v", history)
	}
}

func TestLedger_ExpenseFlowsThroughBaselineAndAlerts(t *testing.T) {
	ledger, _, baselines, alerts := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SetBaseline(ctx, "u1", 10000); err != nil {
		t.Fatalf("SetBaseline failed: %v", err)
	}

	_, stats, err := ledger.Record(ctx, expense("e1", 9100, testDay.AddDate(0, 0, 1)))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if stats.MonthlyExpenses != 9100 {
		t.Errorf("monthlyExpenses = %v, want 9100", stats.MonthlyExpenses)
	}

	stored, _ := baselines.Get(ctx, "u1")
	if !almostEqual(stored.RemainingBalance, 900) {
		t.Errorf("remaining = %v, want 900", stored.RemainingBalance)
	}

	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	if len(alerts.alerts) != 1 || alerts.alerts[0].Severity != SeverityCritical {
		t.Errorf("alerts = %+v, want one critical alert", alerts.alerts)
	}
}

func TestLedger_StoreFailureLeavesStateUntouched(t *testing.T) {
	ledger, txs, baselines, _ := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SetBaseline(ctx, "u1", 10000); err != nil {
		t.Fatalf("SetBaseline failed: %v", err)
	}

	txs.failOn = "insert"
	if _, _, err := ledger.Record(ctx, expense("e1", 3000, testDay.AddDate(0, 0, 1))); err == nil {
		t.Fatal("expected store failure to surface")
	}

	stored, _ := baselines.Get(ctx, "u1")
	if stored.RemainingBalance != 10000 {
		t.Errorf("remaining = %v after failed write, want untouched 10000", stored.RemainingBalance)
	}
}

func TestLedger_DeleteBaselineWithoutOne(t *testing.T) {
	ledger, _, _, _ := newTestLedger()

	if err := ledger.DeleteBaseline(context.Background(), "u1"); !errors.Is(err, ErrNoBaseline) {
		t.Errorf("err = %v, want ErrNoBaseline", err)
	}
}

func TestLedger_RemoveRestoresRemaining(t *testing.T) {
	ledger, _, baselines, _ := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SetBaseline(ctx, "u1", 10000); err != nil {
		t.Fatalf("SetBaseline failed: %v", err)
	}
	recorded, _, err := ledger.Record(ctx, expense("e1", 2500, testDay.AddDate(0, 0, 1)))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if _, err := ledger.Remove(ctx, "u1", recorded.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	stored, _ := baselines.Get(ctx, "u1")
	if !almostEqual(stored.RemainingBalance, 10000) {
		t.Errorf("remaining = %v, want restored 10000", stored.RemainingBalance)
	}
}

func TestLedger_RecordAssignsIdentityAndTimestamps(t *testing.T) {
	ledger, txs, _, _ := newTestLedger()
	ctx := context.Background()

	blank := expense("", 100, testDay)
	blank.CreatedAt = time.Time{}
	blank.UpdatedAt = time.Time{}

	first, _, err := ledger.Record(ctx, blank)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	second, _, err := ledger.Record(ctx, blank)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if first.ID == "" || second.ID == "" {
		t.Fatal("recorded transactions have empty IDs")
	}
	if first.ID == second.ID {
		t.Errorf("both creates got ID %q, want distinct IDs", first.ID)
	}
	if !first.CreatedAt.Equal(testDay) || !first.UpdatedAt.Equal(testDay) {
		t.Errorf("timestamps = %v/%v, want server-stamped %v", first.CreatedAt, first.UpdatedAt, testDay)
	}

	history, _ := txs.ListByUser(ctx, "u1")
	if len(history) != 2 {
		t.Errorf("store holds %d transactions, want 2", len(history))
	}
}

func TestLedger_EditStampsUpdatedAt(t *testing.T) {
	ledger, _, _, _ := newTestLedger()
	ctx := context.Background()

	recorded, _, err := ledger.Record(ctx, expense("e1", 100, testDay))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	editDay := testDay.AddDate(0, 0, 3)
	ledger.now = func() time.Time { return editDay }

	amended := *recorded
	amended.Amount = 150
	amended.UpdatedAt = time.Time{}
	updated, _, err := ledger.Edit(ctx, recorded.ID, amended)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	if !updated.UpdatedAt.Equal(editDay) {
		t.Errorf("updatedAt = %v, want %v", updated.UpdatedAt, editDay)
	}
	if !updated.CreatedAt.Equal(recorded.CreatedAt) {
		t.Errorf("createdAt = %v, want preserved %v", updated.CreatedAt, recorded.CreatedAt)
	}
}
