package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AlertSeverity orders budget alerts from least to most urgent.
type AlertSeverity string

const (
	SeverityNotice   AlertSeverity = "notice"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert tells a user how much of their monthly deposit remains.
type Alert struct {
	UserID    string        `json:"userId"`
	Severity  AlertSeverity `json:"severity"`
	Remaining float64       `json:"remaining"`
	Percent   float64       `json:"percent"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Fixed bands: remaining/amount at or below these fractions trigger an alert.
var alertBands = []struct {
	threshold decimal.Decimal
	severity  AlertSeverity
}{
	{decimal.NewFromFloat(0.10), SeverityCritical},
	{decimal.NewFromFloat(0.25), SeverityWarning},
	{decimal.NewFromFloat(0.50), SeverityNotice},
}

// EvaluateAlert checks the remaining balance against the fixed thresholds and
// returns at most one alert, the most severe matching band. A nil baseline or
// one with a non-positive amount never alerts.
func EvaluateAlert(b *Baseline, now time.Time) *Alert {
	if b == nil || b.Amount <= 0 {
		return nil
	}
	remaining := decimal.NewFromFloat(b.RemainingBalance)
	fraction := remaining.Div(decimal.NewFromFloat(b.Amount))
	for _, band := range alertBands {
		if fraction.LessThanOrEqual(band.threshold) {
			pct, _ := fraction.Mul(decimal.NewFromInt(100)).Round(2).Float64()
			return &Alert{
				UserID:    b.UserID,
				Severity:  band.severity,
				Remaining: b.RemainingBalance,
				Percent:   pct,
				Message:   fmt.Sprintf("%.1f%% of your monthly deposit remains", pct),
				CreatedAt: now,
			}
		}
	}
	return nil
}
