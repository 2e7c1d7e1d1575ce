package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInvalidType       = errors.New("unknown transaction type")
	ErrNoBaseline        = errors.New("no baseline is set")
	ErrTxNotFound        = errors.New("transaction not found")
	ErrOwnerMismatch     = errors.New("transaction belongs to another user")
	ErrMissingFields     = errors.New("category and date are required")
	ErrInvalidRecurrence = errors.New("recurring schedule requires a known frequency and next run date")
)

const depositDescription = "Monthly Deposit"

// SetBaseline creates a fresh baseline effective now and synthesizes an income
// transaction so the deposit itself appears in history. Any previous baseline
// is replaced wholesale, including its effective date.
func SetBaseline(snap Snapshot, amount float64, now time.Time) (Snapshot, Transaction, error) {
	if amount <= 0 {
		return snap, Transaction{}, ErrInvalidAmount
	}
	next := snap.clone()
	next.Baseline = &Baseline{
		UserID:           snap.UserID,
		Amount:           amount,
		EffectiveDate:    now,
		RemainingBalance: amount,
	}
	deposit := synthesizeTransaction(snap.UserID, amount, TypeIncome, depositDescription, now)
	next.Transactions = append(next.Transactions, deposit)
	return next, deposit, nil
}

// UpdateBaseline replaces the baseline amount while keeping the original
// effective date, recomputes the remaining balance against expenses accrued
// since that date, and synthesizes a signed adjustment transaction. With no
// existing baseline it behaves exactly as SetBaseline. A zero delta
// synthesizes nothing.
func UpdateBaseline(snap Snapshot, amount float64, now time.Time) (Snapshot, *Transaction, error) {
	if amount <= 0 {
		return snap, nil, ErrInvalidAmount
	}
	if snap.Baseline == nil {
		next, deposit, err := SetBaseline(snap, amount, now)
		if err != nil {
			return snap, nil, err
		}
		return next, &deposit, nil
	}

	next := snap.clone()
	old := decimal.NewFromFloat(snap.Baseline.Amount)
	updated := decimal.NewFromFloat(amount)
	spent := expensesSince(snap.Transactions, snap.Baseline.EffectiveDate)

	next.Baseline.Amount = amount
	remaining, _ := updated.Sub(spent).Float64()
	next.Baseline.RemainingBalance = remaining

	delta := updated.Sub(old)
	if delta.IsZero() {
		return next, nil, nil
	}

	var adj Transaction
	if delta.IsPositive() {
		amt, _ := delta.Float64()
		adj = synthesizeTransaction(snap.UserID, amt, TypeIncome, "Deposit Adjustment", now)
	} else {
		amt, _ := delta.Abs().Float64()
		adj = synthesizeTransaction(snap.UserID, amt, TypeTransfer, "Deposit Reduction", now)
	}
	next.Transactions = append(next.Transactions, adj)
	return next, &adj, nil
}

// DeleteBaseline removes the baseline entirely. No transactions are deleted or
// reversed; re-creating a baseline later starts a fresh accrual window.
func DeleteBaseline(snap Snapshot) Snapshot {
	next := snap.clone()
	next.Baseline = nil
	return next
}

// RecordTransaction validates and appends tx, charging the baseline when the
// transaction is a qualifying expense.
func RecordTransaction(snap Snapshot, tx Transaction) (Snapshot, error) {
	if err := validate(tx); err != nil {
		return snap, err
	}
	next := snap.clone()
	next.Transactions = append(next.Transactions, tx)
	applyBaselineDelta(&next, expenseCharge(next.Baseline, nil, &tx))
	return next, nil
}

// EditTransaction replaces the transaction with the given ID wholesale and
// adjusts the remaining balance by the signed change in qualifying expense
// amount: a type change away from expense refunds it; an amount change charges
// or refunds the difference.
func EditTransaction(snap Snapshot, id string, tx Transaction) (Snapshot, error) {
	if err := validate(tx); err != nil {
		return snap, err
	}
	prev := snap.Find(id)
	if prev == nil {
		return snap, ErrTxNotFound
	}
	if prev.UserID != tx.UserID {
		return snap, ErrOwnerMismatch
	}
	next := snap.clone()
	old := *prev
	tx.ID = id
	tx.CreatedAt = old.CreatedAt
	for i := range next.Transactions {
		if next.Transactions[i].ID == id {
			next.Transactions[i] = tx
			break
		}
	}
	applyBaselineDelta(&next, expenseCharge(next.Baseline, &old, &tx))
	return next, nil
}

// RemoveTransaction deletes the transaction permanently and restores any
// amount it had charged against the baseline.
func RemoveTransaction(snap Snapshot, id string) (Snapshot, error) {
	prev := snap.Find(id)
	if prev == nil {
		return snap, ErrTxNotFound
	}
	next := snap.clone()
	old := *prev
	for i := range next.Transactions {
		if next.Transactions[i].ID == id {
			next.Transactions = append(next.Transactions[:i], next.Transactions[i+1:]...)
			break
		}
	}
	applyBaselineDelta(&next, expenseCharge(next.Baseline, &old, nil))
	return next, nil
}

// ComputeStats derives the monthly aggregates from the snapshot. Income,
// expenses and savings are scoped to the calendar month containing now; the
// total balance spans all history, with transfers neutral.
func ComputeStats(snap Snapshot, now time.Time) Stats {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var income, expenses, savings, total decimal.Decimal
	for _, tx := range snap.Transactions {
		amt := decimal.NewFromFloat(tx.Amount)
		inMonth := !tx.Date.Before(monthStart) && tx.Date.Before(monthEnd)
		switch tx.Type {
		case TypeIncome:
			total = total.Add(amt)
			if inMonth {
				income = income.Add(amt)
			}
		case TypeExpense:
			total = total.Sub(amt)
			if inMonth {
				expenses = expenses.Add(amt)
			}
		case TypeSaving:
			total = total.Add(amt)
			if inMonth {
				savings = savings.Add(amt)
			}
		}
	}

	return Stats{
		MonthlyIncome:   toFloat(income),
		MonthlyExpenses: toFloat(expenses),
		MonthlySavings:  toFloat(savings),
		TotalBalance:    toFloat(total),
	}
}

// expensesSince sums expense amounts dated at or after since. Linear scan over
// the full list; snapshots are per-user and small.
func expensesSince(txs []Transaction, since time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Type == TypeExpense && !tx.Date.Before(since) {
			sum = sum.Add(decimal.NewFromFloat(tx.Amount))
		}
	}
	return sum
}

// expenseCharge returns the signed amount the old->new transition charges
// against the baseline: positive when more is spent, negative when spend is
// refunded. Only expense-type transactions dated at or after the baseline's
// effective date qualify.
func expenseCharge(b *Baseline, old, updated *Transaction) decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	charge := decimal.Zero
	if old != nil && qualifies(b, *old) {
		charge = charge.Sub(decimal.NewFromFloat(old.Amount))
	}
	if updated != nil && qualifies(b, *updated) {
		charge = charge.Add(decimal.NewFromFloat(updated.Amount))
	}
	return charge
}

func qualifies(b *Baseline, tx Transaction) bool {
	return tx.Type == TypeExpense && !tx.Date.Before(b.EffectiveDate)
}

func applyBaselineDelta(snap *Snapshot, charge decimal.Decimal) {
	if snap.Baseline == nil || charge.IsZero() {
		return
	}
	remaining := decimal.NewFromFloat(snap.Baseline.RemainingBalance).Sub(charge)
	snap.Baseline.RemainingBalance = toFloat(remaining)
}

func validate(tx Transaction) error {
	if tx.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !ValidType(tx.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidType, tx.Type)
	}
	if tx.Category == "" || tx.Date.IsZero() {
		return ErrMissingFields
	}
	if tx.IsRecurring {
		d := tx.RecurringDetails
		if d == nil || d.NextRunDate.IsZero() {
			return ErrInvalidRecurrence
		}
		switch d.Frequency {
		case FrequencyWeekly, FrequencyMonthly:
		default:
			return fmt.Errorf("%w: frequency %q", ErrInvalidRecurrence, d.Frequency)
		}
	}
	return nil
}

func synthesizeTransaction(userID string, amount float64, txType TransactionType, desc string, now time.Time) Transaction {
	return Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Category:    "deposit",
		Merchant:    "Monthly Budget",
		Description: desc,
		Date:        now,
		Tags:        []string{"baseline"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
