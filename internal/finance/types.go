package finance

import (
	"time"
)

// TransactionType classifies a transaction. Only expenses count against the
// monthly deposit baseline.
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
	TypeSaving   TransactionType = "saving"
)

// ValidType reports whether t is one of the four known transaction types.
func ValidType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer, TypeSaving:
		return true
	}
	return false
}

// RecurringFrequency is how often a recurring transaction repeats.
type RecurringFrequency string

const (
	FrequencyWeekly  RecurringFrequency = "weekly"
	FrequencyMonthly RecurringFrequency = "monthly"
)

// RecurringDetails describes the repeat schedule of a recurring transaction.
type RecurringDetails struct {
	Frequency   RecurringFrequency `json:"frequency" bson:"frequency"`
	NextRunDate time.Time          `json:"nextRunDate" bson:"next_run_date"`
	EndDate     *time.Time         `json:"endDate,omitempty" bson:"end_date,omitempty"`
}

// Transaction is a single money movement owned by exactly one user.
// Amendment is a full-record replace by the owner; deletion is permanent.
type Transaction struct {
	ID               string            `json:"id" bson:"_id"`
	UserID           string            `json:"userId" bson:"user_id"`
	Amount           float64           `json:"amount" bson:"amount"`
	Type             TransactionType   `json:"type" bson:"type"`
	Category         string            `json:"category" bson:"category"`
	Merchant         string            `json:"merchant" bson:"merchant"`
	Description      string            `json:"description,omitempty" bson:"description,omitempty"`
	Date             time.Time         `json:"date" bson:"date"`
	Tags             []string          `json:"tags" bson:"tags"`
	IsRecurring      bool              `json:"isRecurring" bson:"is_recurring"`
	RecurringDetails *RecurringDetails `json:"recurringDetails,omitempty" bson:"recurring_details,omitempty"`
	CreatedAt        time.Time         `json:"createdAt" bson:"created_ts"`
	UpdatedAt        time.Time         `json:"updatedAt" bson:"updated_ts"`
}

// Baseline is a user's monthly deposit allowance. At most one exists per user;
// updates supersede it in place, keeping the original effective date.
type Baseline struct {
	UserID           string    `json:"userId" bson:"user_id"`
	Amount           float64   `json:"amount" bson:"amount"`
	EffectiveDate    time.Time `json:"effectiveDate" bson:"effective_date"`
	RemainingBalance float64   `json:"remainingBalance" bson:"remaining_balance"`
}

// Stats are the derived financial aggregates for the current calendar month.
// They are never persisted; callers recompute them from a snapshot.
type Stats struct {
	MonthlyIncome   float64 `json:"monthlyIncome"`
	MonthlyExpenses float64 `json:"monthlyExpenses"`
	MonthlySavings  float64 `json:"monthlySavings"`
	TotalBalance    float64 `json:"totalBalance"`
}

// Snapshot is an immutable view of a user's financial state. Reconciliation
// functions take a snapshot and return a new one; they never mutate in place.
type Snapshot struct {
	UserID       string
	Transactions []Transaction
	Baseline     *Baseline
}

// clone returns a deep enough copy for the pure functions to build on: the
// transaction slice and baseline are copied, individual transactions are
// value types already.
func (s Snapshot) clone() Snapshot {
	out := Snapshot{UserID: s.UserID}
	out.Transactions = make([]Transaction, len(s.Transactions))
	copy(out.Transactions, s.Transactions)
	if s.Baseline != nil {
		b := *s.Baseline
		out.Baseline = &b
	}
	return out
}

// Find returns the transaction with the given ID, or nil.
func (s Snapshot) Find(id string) *Transaction {
	for i := range s.Transactions {
		if s.Transactions[i].ID == id {
			return &s.Transactions[i]
		}
	}
	return nil
}
