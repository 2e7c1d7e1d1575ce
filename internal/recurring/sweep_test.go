package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/finance"
)

type mockTemplateStore struct {
	templates []finance.Transaction
	replaced  []finance.Transaction
}

func (m *mockTemplateStore) ListDueRecurring(ctx context.Context, now time.Time) ([]finance.Transaction, error) {
	var due []finance.Transaction
	for _, t := range m.templates {
		if t.RecurringDetails != nil && !t.RecurringDetails.NextRunDate.After(now) {
			due = append(due, t)
		}
	}
	return due, nil
}

func (m *mockTemplateStore) Replace(ctx context.Context, tx *finance.Transaction) error {
	m.replaced = append(m.replaced, *tx)
	return nil
}

type mockRecorder struct {
	recorded []finance.Transaction
}

func (m *mockRecorder) Record(ctx context.Context, tx finance.Transaction) (*finance.Transaction, finance.Stats, error) {
	m.recorded = append(m.recorded, tx)
	return &tx, finance.Stats{}, nil
}

func template(id, userID string, amount float64, freq finance.RecurringFrequency, nextRun time.Time, end *time.Time) finance.Transaction {
	return finance.Transaction{
		ID:          id,
		UserID:      userID,
		Amount:      amount,
		Type:        finance.TypeExpense,
		Category:    "subscriptions",
		Merchant:    "StreamCo",
		Date:        nextRun.AddDate(0, -1, 0),
		IsRecurring: true,
		RecurringDetails: &finance.RecurringDetails{
			Frequency:   freq,
			NextRunDate: nextRun,
			EndDate:     end,
		},
	}
}

func TestSweep_MaterializesDueRun(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -1)

	store := &mockTemplateStore{templates: []finance.Transaction{
		template("t1", "u1", 15.99, finance.FrequencyMonthly, due, nil),
	}}
	recorder := &mockRecorder{}
	sweeper := NewSweeper(store, recorder, zerolog.Nop())

	n, err := sweeper.Sweep(context.Background(), "", now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 || len(recorder.recorded) != 1 {
		t.Fatalf("materialized %d, want 1", n)
	}

	occ := recorder.recorded[0]
	if occ.ID == "t1" {
		t.Error("occurrence reused the template ID")
	}
	if occ.IsRecurring || occ.RecurringDetails != nil {
		t.Error("occurrence must be a one-off transaction")
	}
	if !occ.Date.Equal(due) {
		t.Errorf("occurrence date = %v, want run date %v", occ.Date, due)
	}

	if len(store.replaced) != 1 {
		t.Fatal("template schedule was not advanced")
	}
	wantNext := due.AddDate(0, 1, 0)
	if got := store.replaced[0].RecurringDetails.NextRunDate; !got.Equal(wantNext) {
		t.Errorf("nextRunDate = %v, want %v", got, wantNext)
	}
}

func TestSweep_CatchesUpMissedRuns(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	firstRun := now.AddDate(0, 0, -15) // three weekly runs due

	store := &mockTemplateStore{templates: []finance.Transaction{
		template("t1", "u1", 40, finance.FrequencyWeekly, firstRun, nil),
	}}
	recorder := &mockRecorder{}
	sweeper := NewSweeper(store, recorder, zerolog.Nop())

	n, err := sweeper.Sweep(context.Background(), "", now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 3 {
		t.Errorf("materialized %d runs, want 3", n)
	}
	if got := store.replaced[0].RecurringDetails.NextRunDate; !got.After(now) {
		t.Errorf("nextRunDate = %v, want advanced past %v", got, now)
	}
}

func TestSweep_RespectsEndDate(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	firstRun := now.AddDate(0, 0, -14)
	end := firstRun.AddDate(0, 0, 3) // only the first run falls inside

	store := &mockTemplateStore{templates: []finance.Transaction{
		template("t1", "u1", 40, finance.FrequencyWeekly, firstRun, &end),
	}}
	recorder := &mockRecorder{}
	sweeper := NewSweeper(store, recorder, zerolog.Nop())

	n, err := sweeper.Sweep(context.Background(), "", now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("materialized %d runs, want 1 (end date passed)", n)
	}
}

func TestSweep_FiltersByUser(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -1)

	store := &mockTemplateStore{templates: []finance.Transaction{
		template("t1", "u1", 10, finance.FrequencyMonthly, due, nil),
		template("t2", "u2", 20, finance.FrequencyMonthly, due, nil),
	}}
	recorder := &mockRecorder{}
	sweeper := NewSweeper(store, recorder, zerolog.Nop())

	n, err := sweeper.Sweep(context.Background(), "u2", now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 || recorder.recorded[0].UserID != "u2" {
		t.Errorf("swept %d for u2, recorded %+v", n, recorder.recorded)
	}
}

func TestSweep_CapsCatchUpRuns(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	firstRun := now.AddDate(-3, 0, 0) // weekly template three years behind

	store := &mockTemplateStore{templates: []finance.Transaction{
		template("t1", "u1", 9.99, finance.FrequencyWeekly, firstRun, nil),
	}}
	recorder := &mockRecorder{}
	sweeper := NewSweeper(store, recorder, zerolog.Nop())

	n, err := sweeper.Sweep(context.Background(), "", now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != maxRunsPerSweep {
		t.Errorf("materialized %d runs, want capped at %d", n, maxRunsPerSweep)
	}

	// The schedule stops where the cap hit, so the next sweep resumes there.
	wantNext := firstRun.AddDate(0, 0, 7*maxRunsPerSweep)
	if got := store.replaced[0].RecurringDetails.NextRunDate; !got.Equal(wantNext) {
		t.Errorf("nextRunDate = %v, want %v", got, wantNext)
	}
}

func TestSweep_NothingDue(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	store := &mockTemplateStore{templates: []finance.Transaction{
		template("t1", "u1", 10, finance.FrequencyMonthly, now.AddDate(0, 0, 5), nil),
	}}
	recorder := &mockRecorder{}
	sweeper := NewSweeper(store, recorder, zerolog.Nop())

	n, err := sweeper.Sweep(context.Background(), "", now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 0 || len(store.replaced) != 0 {
		t.Errorf("materialized %d, replaced %d, want nothing", n, len(store.replaced))
	}
}
