// Package recurring materializes recurring transactions on their schedule.
package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/finance"
)

// TemplateStore lists due recurring templates and persists schedule advances.
type TemplateStore interface {
	ListDueRecurring(ctx context.Context, now time.Time) ([]finance.Transaction, error)
	Replace(ctx context.Context, tx *finance.Transaction) error
}

// Recorder posts materialized transactions, reconciling the owner's baseline.
type Recorder interface {
	Record(ctx context.Context, tx finance.Transaction) (*finance.Transaction, finance.Stats, error)
}

// maxRunsPerSweep bounds catch-up per template per sweep; a template further
// behind resumes where it stopped on the next sweep.
const maxRunsPerSweep = 100

// Sweeper materializes every due run of every recurring transaction.
type Sweeper struct {
	templates TemplateStore
	recorder  Recorder
	log       zerolog.Logger
}

// NewSweeper creates a sweeper over the given stores.
func NewSweeper(templates TemplateStore, recorder Recorder, log zerolog.Logger) *Sweeper {
	return &Sweeper{templates: templates, recorder: recorder, log: log}
}

// Sweep materializes one concrete transaction per due run, advancing each
// template's next run date past now. userID narrows the sweep to one user;
// empty sweeps everyone. It returns the number of transactions created.
func (s *Sweeper) Sweep(ctx context.Context, userID string, now time.Time) (int, error) {
	templates, err := s.templates.ListDueRecurring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due templates: %w", err)
	}

	materialized := 0
	for _, template := range templates {
		if userID != "" && template.UserID != userID {
			continue
		}
		n, err := s.sweepOne(ctx, template, now)
		materialized += n
		if err != nil {
			return materialized, err
		}
	}

	if materialized > 0 {
		s.log.Info().Int("materialized", materialized).Msg("Recurring sweep completed")
	}
	return materialized, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, template finance.Transaction, now time.Time) (int, error) {
	details := template.RecurringDetails
	if details == nil {
		// Flagged recurring without a schedule; nothing to do.
		return 0, nil
	}

	created := 0
	next := details.NextRunDate
	for !next.After(now) && created < maxRunsPerSweep {
		if details.EndDate != nil && next.After(*details.EndDate) {
			break
		}

		occurrence := materialize(template, next)
		if _, _, err := s.recorder.Record(ctx, occurrence); err != nil {
			return created, fmt.Errorf("record occurrence of %s: %w", template.ID, err)
		}
		created++
		next = advance(next, details.Frequency)
	}

	if created > 0 {
		template.RecurringDetails.NextRunDate = next
		template.UpdatedAt = now
		if err := s.templates.Replace(ctx, &template); err != nil {
			return created, fmt.Errorf("advance template %s: %w", template.ID, err)
		}
	}
	return created, nil
}

// materialize copies the template into a concrete one-off transaction dated
// at the run it fulfills.
func materialize(template finance.Transaction, runDate time.Time) finance.Transaction {
	occurrence := template
	occurrence.ID = uuid.New().String()
	occurrence.Date = runDate
	occurrence.IsRecurring = false
	occurrence.RecurringDetails = nil
	occurrence.CreatedAt = runDate
	occurrence.UpdatedAt = runDate
	occurrence.Tags = append(append([]string{}, template.Tags...), "recurring")
	return occurrence
}

func advance(t time.Time, frequency finance.RecurringFrequency) time.Time {
	switch frequency {
	case finance.FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 1, 0)
	}
}
