package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fingrow/fingrow/internal/finance"
)

// TransactionFilter narrows a user's transaction listing. Zero values mean
// "no constraint"; Page/Limit default to 1/20 with Limit capped at 100.
type TransactionFilter struct {
	Type      string
	Category  string
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int64
	Limit     int64
	Sort      string // date | amount | createdAt
	Order     string // asc | desc
}

// MonthlySummary aggregates one calendar month of a user's transactions.
type MonthlySummary struct {
	Year     int     `json:"year"`
	Month    int     `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Savings  float64 `json:"savings"`
	Net      float64 `json:"net"`
}

// CategoryTotal is one slice of a category breakdown.
type CategoryTotal struct {
	Category string  `json:"category" bson:"_id"`
	Total    float64 `json:"total" bson:"total"`
	Share    float64 `json:"share" bson:"-"`
}

// TransactionRepository persists transactions in the transactions collection.
// It implements finance.TransactionStore.
type TransactionRepository struct {
	coll *mongo.Collection
}

// NewTransactionRepository creates a repository over the given database.
func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{coll: db.Collection(collTransactions)}
}

// Insert stores a new transaction.
func (r *TransactionRepository) Insert(ctx context.Context, tx *finance.Transaction) error {
	if _, err := r.coll.InsertOne(ctx, tx); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Get returns a transaction by ID.
func (r *TransactionRepository) Get(ctx context.Context, id string) (*finance.Transaction, error) {
	var tx finance.Transaction
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tx, nil
}

// Replace overwrites a transaction wholesale.
func (r *TransactionRepository) Replace(ctx context.Context, tx *finance.Transaction) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": tx.ID, "user_id": tx.UserID}, tx)
	if err != nil {
		return fmt.Errorf("replace transaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a transaction permanently. The user ID is part of the filter
// so one user can never delete another's record.
func (r *TransactionRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns every transaction owned by the user, for snapshot loads.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]finance.Transaction, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var txs []finance.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return txs, nil
}

// Query returns a filtered, sorted, paginated page of the user's transactions
// together with the total match count.
func (r *TransactionRepository) Query(ctx context.Context, userID string, filter TransactionFilter) ([]finance.Transaction, int64, error) {
	query := bson.M{"user_id": userID}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.StartDate != nil || filter.EndDate != nil {
		dateRange := bson.M{}
		if filter.StartDate != nil {
			dateRange["$gte"] = *filter.StartDate
		}
		if filter.EndDate != nil {
			dateRange["$lte"] = *filter.EndDate
		}
		query["date"] = dateRange
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"merchant": pattern},
			bson.M{"description": pattern},
			bson.M{"category": pattern},
		}
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	sortField := "date"
	switch filter.Sort {
	case "amount":
		sortField = "amount"
	case "createdAt":
		sortField = "created_ts"
	}
	order := -1
	if filter.Order == "asc" {
		order = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: order}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	txs := []finance.Transaction{}
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, 0, fmt.Errorf("decode transactions: %w", err)
	}
	return txs, total, nil
}

// MonthlySummary aggregates income, expenses and savings for one calendar
// month of the user's history.
func (r *TransactionRepository) MonthlySummary(ctx context.Context, userID string, year, month int) (*MonthlySummary, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id": userID,
			"date":    bson.M{"$gte": start, "$lt": end},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$type",
			"total": bson.M{"$sum": "$amount"},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate monthly summary: %w", err)
	}
	var rows []struct {
		Type  string  `bson:"_id"`
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode monthly summary: %w", err)
	}

	summary := &MonthlySummary{Year: year, Month: month}
	for _, row := range rows {
		switch finance.TransactionType(row.Type) {
		case finance.TypeIncome:
			summary.Income = row.Total
		case finance.TypeExpense:
			summary.Expenses = row.Total
		case finance.TypeSaving:
			summary.Savings = row.Total
		}
	}
	summary.Net = summary.Income + summary.Savings - summary.Expenses
	return summary, nil
}

// CategoryBreakdown totals the user's expenses per category over a date range
// and computes each category's share of the whole.
func (r *TransactionRepository) CategoryBreakdown(ctx context.Context, userID string, from, to time.Time) ([]CategoryTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id": userID,
			"type":    string(finance.TypeExpense),
			"date":    bson.M{"$gte": from, "$lte": to},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$category",
			"total": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"total": -1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate category breakdown: %w", err)
	}
	totals := []CategoryTotal{}
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("decode category breakdown: %w", err)
	}

	var grand float64
	for _, t := range totals {
		grand += t.Total
	}
	if grand > 0 {
		for i := range totals {
			totals[i].Share = totals[i].Total / grand
		}
	}
	return totals, nil
}

// ListDueRecurring returns recurring transactions whose next run date is due.
func (r *TransactionRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]finance.Transaction, error) {
	query := bson.M{
		"is_recurring":                   true,
		"recurring_details.next_run_date": bson.M{"$lte": now},
	}
	cursor, err := r.coll.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	var txs []finance.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("decode recurring transactions: %w", err)
	}
	return txs, nil
}
