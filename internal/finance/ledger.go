package finance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransactionStore is the slice of the transaction repository the ledger needs.
type TransactionStore interface {
	ListByUser(ctx context.Context, userID string) ([]Transaction, error)
	Insert(ctx context.Context, tx *Transaction) error
	Replace(ctx context.Context, tx *Transaction) error
	Delete(ctx context.Context, userID, id string) error
}

// BaselineStore persists the per-user monthly deposit baseline.
// Get returns (nil, nil) when the user has no baseline.
type BaselineStore interface {
	Get(ctx context.Context, userID string) (*Baseline, error)
	Upsert(ctx context.Context, b *Baseline) error
	Delete(ctx context.Context, userID string) error
}

// AlertPublisher delivers budget alerts to connected clients.
type AlertPublisher interface {
	Publish(userID string, alert Alert)
}

// Ledger is the server-owned reconciliation service. Every mutation loads the
// user's snapshot, applies a pure function from this package, persists the
// result, and only then surfaces stats and at most one alert. Nothing is
// applied locally before the store accepts it, so a store failure leaves the
// previous snapshot authoritative.
type Ledger struct {
	transactions TransactionStore
	baselines    BaselineStore
	alerts       AlertPublisher
	log          zerolog.Logger

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a ledger over the given stores. alerts may be nil.
func NewLedger(transactions TransactionStore, baselines BaselineStore, alerts AlertPublisher, log zerolog.Logger) *Ledger {
	return &Ledger{
		transactions: transactions,
		baselines:    baselines,
		alerts:       alerts,
		log:          log,
		now:          time.Now,
		locks:        make(map[string]*sync.Mutex),
	}
}

// userLock serializes ledger operations per user so concurrent expense posts
// cannot double-apply against the remaining balance.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

func (l *Ledger) snapshot(ctx context.Context, userID string) (Snapshot, error) {
	txs, err := l.transactions.ListByUser(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	baseline, err := l.baselines.Get(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load baseline: %w", err)
	}
	return Snapshot{UserID: userID, Transactions: txs, Baseline: baseline}, nil
}

// SetBaseline creates a new baseline for the user and records the synthesized
// deposit transaction.
func (l *Ledger) SetBaseline(ctx context.Context, userID string, amount float64) (*Baseline, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := l.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, deposit, err := SetBaseline(snap, amount, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.baselines.Upsert(ctx, next.Baseline); err != nil {
		return nil, fmt.Errorf("persist baseline: %w", err)
	}
	if err := l.transactions.Insert(ctx, &deposit); err != nil {
		return nil, fmt.Errorf("persist deposit transaction: %w", err)
	}
	l.log.Info().Str("user_id", userID).Float64("amount", amount).Msg("Baseline set")
	l.publishBaselineAlert(next.Baseline)
	return next.Baseline, nil
}

// UpdateBaseline replaces the baseline amount, preserving the effective date,
// and records the synthesized adjustment transaction when the amount changed.
func (l *Ledger) UpdateBaseline(ctx context.Context, userID string, amount float64) (*Baseline, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := l.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, adjustment, err := UpdateBaseline(snap, amount, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.baselines.Upsert(ctx, next.Baseline); err != nil {
		return nil, fmt.Errorf("persist baseline: %w", err)
	}
	if adjustment != nil {
		if err := l.transactions.Insert(ctx, adjustment); err != nil {
			return nil, fmt.Errorf("persist adjustment transaction: %w", err)
		}
	}
	l.log.Info().Str("user_id", userID).Float64("amount", amount).Msg("Baseline updated")
	l.publishBaselineAlert(next.Baseline)
	return next.Baseline, nil
}

// DeleteBaseline removes the baseline. Transactions are untouched.
func (l *Ledger) DeleteBaseline(ctx context.Context, userID string) error {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	baseline, err := l.baselines.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	if baseline == nil {
		return ErrNoBaseline
	}
	if err := l.baselines.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete baseline: %w", err)
	}
	l.log.Info().Str("user_id", userID).Msg("Baseline deleted")
	return nil
}

// Baseline returns the user's current baseline, or ErrNoBaseline.
func (l *Ledger) Baseline(ctx context.Context, userID string) (*Baseline, error) {
	baseline, err := l.baselines.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, ErrNoBaseline
	}
	return baseline, nil
}

// Record validates and persists a new transaction, reconciling the baseline.
// Identity and timestamps are server-assigned; anything the client sent for
// them is overwritten.
func (l *Ledger) Record(ctx context.Context, tx Transaction) (*Transaction, Stats, error) {
	lock := l.userLock(tx.UserID)
	lock.Lock()
	defer lock.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	now := l.now()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	snap, err := l.snapshot(ctx, tx.UserID)
	if err != nil {
		return nil, Stats{}, err
	}
	next, err := RecordTransaction(snap, tx)
	if err != nil {
		return nil, Stats{}, err
	}
	if err := l.transactions.Insert(ctx, &tx); err != nil {
		return nil, Stats{}, fmt.Errorf("persist transaction: %w", err)
	}
	if err := l.reconcileBaseline(ctx, snap, next); err != nil {
		return nil, Stats{}, err
	}
	return &tx, ComputeStats(next, l.now()), nil
}

// Edit replaces a transaction wholesale, reconciling the baseline by the
// signed change in qualifying expense amount.
func (l *Ledger) Edit(ctx context.Context, id string, tx Transaction) (*Transaction, Stats, error) {
	lock := l.userLock(tx.UserID)
	lock.Lock()
	defer lock.Unlock()

	tx.UpdatedAt = l.now()

	snap, err := l.snapshot(ctx, tx.UserID)
	if err != nil {
		return nil, Stats{}, err
	}
	next, err := EditTransaction(snap, id, tx)
	if err != nil {
		return nil, Stats{}, err
	}
	updated := next.Find(id)
	if err := l.transactions.Replace(ctx, updated); err != nil {
		return nil, Stats{}, fmt.Errorf("persist transaction: %w", err)
	}
	if err := l.reconcileBaseline(ctx, snap, next); err != nil {
		return nil, Stats{}, err
	}
	return updated, ComputeStats(next, l.now()), nil
}

// Remove deletes a transaction permanently, restoring any baseline charge.
func (l *Ledger) Remove(ctx context.Context, userID, id string) (Stats, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := l.snapshot(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	next, err := RemoveTransaction(snap, id)
	if err != nil {
		return Stats{}, err
	}
	if err := l.transactions.Delete(ctx, userID, id); err != nil {
		return Stats{}, fmt.Errorf("delete transaction: %w", err)
	}
	if err := l.reconcileBaseline(ctx, snap, next); err != nil {
		return Stats{}, err
	}
	return ComputeStats(next, l.now()), nil
}

// Stats recomputes the derived aggregates for the user's current month.
func (l *Ledger) Stats(ctx context.Context, userID string) (Stats, error) {
	snap, err := l.snapshot(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(snap, l.now()), nil
}

// reconcileBaseline persists a changed remaining balance and publishes the
// resulting alert, if any.
func (l *Ledger) reconcileBaseline(ctx context.Context, before, after Snapshot) error {
	if after.Baseline == nil {
		return nil
	}
	if before.Baseline != nil && before.Baseline.RemainingBalance == after.Baseline.RemainingBalance {
		return nil
	}
	if err := l.baselines.Upsert(ctx, after.Baseline); err != nil {
		return fmt.Errorf("persist baseline: %w", err)
	}
	l.publishBaselineAlert(after.Baseline)
	return nil
}

func (l *Ledger) publishBaselineAlert(b *Baseline) {
	if l.alerts == nil {
		return
	}
	if alert := EvaluateAlert(b, l.now()); alert != nil {
		l.log.Warn().
			Str("user_id", alert.UserID).
			Str("severity", string(alert.Severity)).
			Float64("remaining", alert.Remaining).
			Msg("Budget alert")
		l.alerts.Publish(alert.UserID, *alert)
	}
}
