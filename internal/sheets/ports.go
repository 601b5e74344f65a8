// Package sheets exports recorded spending to an append-only ledger.
package sheets

import (
	"context"
	"time"

	"finbits/internal/core"
	"finbits/internal/events"
)

// Header is the column layout of the ledger sheet.
var Header = []string{"Recorded At", "Owner", "Budget", "Budget ID", "Category", "Amount", "Remaining"}

// LedgerRow is one recorded spending entry.
type LedgerRow struct {
	EventID     string
	RecordedAt  time.Time
	Owner       string
	BudgetID    string
	BudgetLabel string
	Category    string
	Amount      string
	Remaining   string
}

// LedgerWriter appends spending rows and returns a reference to the written row.
type LedgerWriter interface {
	AppendSpending(ctx context.Context, row LedgerRow) (rowRef string, err error)
}

// RowFromEnvelope builds a ledger row from a spending event.
func RowFromEnvelope(e events.Envelope) (LedgerRow, error) {
	if e.Type != events.TypeSpendingRecorded {
		return LedgerRow{}, core.Validationf("event %s is not a spending event", e.Type)
	}
	var p events.SpendingRecorded
	if err := e.Decode(&p); err != nil {
		return LedgerRow{}, core.Validationf("%v", err)
	}
	row := LedgerRow{
		EventID:     e.ID,
		RecordedAt:  e.OccurredAt.UTC(),
		Owner:       p.Owner,
		BudgetID:    p.BudgetID,
		BudgetLabel: p.BudgetLabel,
		Category:    p.CategoryName,
		Amount:      core.FormatAmount(p.Amount),
		Remaining:   core.FormatAmount(p.Remaining),
	}
	return row, row.Validate()
}

func (r LedgerRow) Validate() error {
	if r.BudgetID == "" || r.Category == "" {
		return core.Validationf("ledger row needs a budget and a category")
	}
	return nil
}

// Values returns the row in Header order.
func (r LedgerRow) Values() []any {
	return []any{
		r.RecordedAt.Format(time.RFC3339),
		r.Owner,
		r.BudgetLabel,
		r.BudgetID,
		r.Category,
		r.Amount,
		r.Remaining,
	}
}
