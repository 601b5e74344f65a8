package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodWeekly  Period = "weekly"
)

func (p Period) Valid() bool {
	return p == PeriodMonthly || p == PeriodWeekly
}

type (
	Category struct {
		Name      string          `json:"name"`
		Allocated decimal.Decimal `json:"allocated"`
		Spent     decimal.Decimal `json:"spent"`
	}

	Budget struct {
		ID          string          `json:"id"`
		Owner       string          `json:"owner"`
		Period      Period          `json:"period"`
		Month       *int            `json:"month,omitempty"`
		Week        *int            `json:"week,omitempty"`
		TotalBudget decimal.Decimal `json:"totalBudget"`
		Categories  []Category      `json:"categories"`
		SavingsGoal decimal.Decimal `json:"savingsGoal"`

		// Derived by RecomputeStats, never taken from clients.
		TotalAllocated decimal.Decimal `json:"totalAllocated"`
		TotalSpent     decimal.Decimal `json:"totalSpent"`
		Remaining      decimal.Decimal `json:"remaining"`

		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// CategoryInput is a category as sent by clients: either a bare name
	// or an object with an optional allocation and spend.
	CategoryInput struct {
		Name      string           `json:"name"`
		Allocated *decimal.Decimal `json:"allocated,omitempty"`
		Spent     *decimal.Decimal `json:"spent,omitempty"`
	}

	BudgetInput struct {
		Period      Period
		TotalBudget *decimal.Decimal
		Categories  []CategoryInput
		Month       *int
		Week        *int
		SavingsGoal *decimal.Decimal
	}

	// BudgetPatch lists the mutable fields of a budget; nil means unchanged.
	BudgetPatch struct {
		Period      *Period
		TotalBudget *decimal.Decimal
		Categories  []CategoryInput
		Month       *int
		Week        *int
		SavingsGoal *decimal.Decimal
	}

	SummaryItem struct {
		ID          string          `json:"id"`
		Label       string          `json:"label"`
		Period      Period          `json:"period"`
		TotalBudget decimal.Decimal `json:"totalBudget"`
		TotalSpent  decimal.Decimal `json:"totalSpent"`
		Remaining   decimal.Decimal `json:"remaining"`
		SavingsGoal decimal.Decimal `json:"savingsGoal"`
	}
)

// UnmarshalJSON accepts "Food" as shorthand for {"name":"Food"}.
func (c *CategoryInput) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = CategoryInput{Name: name}
		return nil
	}
	type plain CategoryInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CategoryInput(p)
	return nil
}

// RecomputeStats derives totalAllocated, totalSpent and remaining from the
// categories and total budget. It is pure and idempotent.
func RecomputeStats(b Budget) Budget {
	allocated := decimal.Zero
	spent := decimal.Zero
	for _, c := range b.Categories {
		allocated = allocated.Add(c.Allocated)
		spent = spent.Add(c.Spent)
	}
	b.TotalAllocated = allocated
	b.TotalSpent = spent
	b.Remaining = b.TotalBudget.Sub(spent)
	return b
}

// Clone returns a deep copy so callers can mutate categories freely.
func (b Budget) Clone() Budget {
	out := b
	out.Categories = append([]Category(nil), b.Categories...)
	if b.Month != nil {
		m := *b.Month
		out.Month = &m
	}
	if b.Week != nil {
		w := *b.Week
		out.Week = &w
	}
	return out
}

// NewBudget validates the input and builds a fresh budget with zero spend.
func NewBudget(owner string, in BudgetInput, now time.Time) (Budget, error) {
	if strings.TrimSpace(owner) == "" {
		return Budget{}, Validationf("owner is required")
	}
	if !in.Period.Valid() {
		return Budget{}, Validationf("period must be one of monthly, weekly")
	}
	if in.TotalBudget == nil {
		return Budget{}, Validationf("totalBudget is required")
	}
	if !in.TotalBudget.IsPositive() {
		return Budget{}, Validationf("totalBudget must be greater than zero")
	}
	if len(in.Categories) == 0 {
		return Budget{}, Validationf("at least one category is required")
	}

	cats := make([]Category, 0, len(in.Categories))
	for _, ci := range in.Categories {
		c := Category{Name: strings.TrimSpace(ci.Name)}
		if ci.Allocated != nil {
			c.Allocated = *ci.Allocated
		}
		cats = append(cats, c)
	}

	b := Budget{
		Owner:       owner,
		Period:      in.Period,
		TotalBudget: *in.TotalBudget,
		Categories:  cats,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.SavingsGoal != nil {
		b.SavingsGoal = *in.SavingsGoal
	}
	b.setPeriodMarker(in.Month, in.Week)

	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return RecomputeStats(b), nil
}

// setPeriodMarker keeps month only for monthly budgets and week only for weekly ones.
func (b *Budget) setPeriodMarker(month, week *int) {
	b.Month, b.Week = nil, nil
	switch b.Period {
	case PeriodMonthly:
		if month != nil {
			m := *month
			b.Month = &m
		}
	case PeriodWeekly:
		if week != nil {
			w := *week
			b.Week = &w
		}
	}
}

// Validate checks the stored fields of a budget, ignoring derived ones.
func (b Budget) Validate() error {
	if !b.Period.Valid() {
		return Validationf("period must be one of monthly, weekly")
	}
	if err := requireNonNegative("totalBudget", b.TotalBudget); err != nil {
		return err
	}
	if err := requireNonNegative("savingsGoal", b.SavingsGoal); err != nil {
		return err
	}
	if b.Month != nil && (*b.Month < 1 || *b.Month > 12) {
		return Validationf("month must be between 1 and 12")
	}
	if b.Week != nil && (*b.Week < 1 || *b.Week > 52) {
		return Validationf("week must be between 1 and 52")
	}
	if len(b.Categories) == 0 {
		return Validationf("at least one category is required")
	}
	seen := make(map[string]struct{}, len(b.Categories))
	for _, c := range b.Categories {
		if c.Name == "" {
			return Validationf("category name is required")
		}
		if _, dup := seen[c.Name]; dup {
			return Validationf("duplicate category %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if err := requireNonNegative("allocated", c.Allocated); err != nil {
			return err
		}
		if err := requireNonNegative("spent", c.Spent); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPatch merges the patch into a copy of b, validates and recomputes.
// Categories are replaced wholesale; a category without an explicit spend
// keeps the spend of the existing category with the same name.
func ApplyPatch(b Budget, p BudgetPatch, now time.Time) (Budget, error) {
	out := b.Clone()
	if p.Period != nil {
		out.Period = *p.Period
	}
	if p.TotalBudget != nil {
		out.TotalBudget = *p.TotalBudget
	}
	if p.SavingsGoal != nil {
		out.SavingsGoal = *p.SavingsGoal
	}
	if p.Categories != nil {
		prev := make(map[string]decimal.Decimal, len(b.Categories))
		for _, c := range b.Categories {
			prev[c.Name] = c.Spent
		}
		cats := make([]Category, 0, len(p.Categories))
		for _, ci := range p.Categories {
			c := Category{Name: strings.TrimSpace(ci.Name), Spent: prev[strings.TrimSpace(ci.Name)]}
			if ci.Allocated != nil {
				c.Allocated = *ci.Allocated
			}
			if ci.Spent != nil {
				c.Spent = *ci.Spent
			}
			cats = append(cats, c)
		}
		out.Categories = cats
	}

	month, week := out.Month, out.Week
	if p.Month != nil {
		month = p.Month
	}
	if p.Week != nil {
		week = p.Week
	}
	out.setPeriodMarker(month, week)

	if err := out.Validate(); err != nil {
		return Budget{}, err
	}
	out.UpdatedAt = now
	return RecomputeStats(out), nil
}

// AddSpending adds amount to the named category. Overspending is allowed.
func AddSpending(b Budget, categoryName string, amount decimal.Decimal, now time.Time) (Budget, error) {
	if amount.IsNegative() {
		return Budget{}, Validationf("amount must not be negative")
	}
	out := b.Clone()
	idx := -1
	for i, c := range out.Categories {
		if c.Name == categoryName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Budget{}, NotFoundf("category %q not found", categoryName)
	}
	out.Categories[idx].Spent = out.Categories[idx].Spent.Add(amount)
	out.UpdatedAt = now
	return RecomputeStats(out), nil
}

// Label renders the human readable name used in summaries.
func Label(b Budget) string {
	year := b.CreatedAt.Year()
	switch {
	case b.Period == PeriodMonthly && b.Month != nil:
		return fmt.Sprintf("%s %d", time.Month(*b.Month).String(), year)
	case b.Period == PeriodWeekly && b.Week != nil:
		return fmt.Sprintf("Week %d - %d", *b.Week, year)
	default:
		return fmt.Sprintf("%s budget (%s)", b.Period, b.CreatedAt.Format("Mon Jan 02 2006"))
	}
}

// SortNewestFirst orders budgets by creation time, newest first.
func SortNewestFirst(budgets []Budget) {
	sort.SliceStable(budgets, func(i, j int) bool {
		return budgets[i].CreatedAt.After(budgets[j].CreatedAt)
	})
}

// Summarize labels the budgets, newest first.
func Summarize(budgets []Budget) []SummaryItem {
	sorted := append([]Budget(nil), budgets...)
	SortNewestFirst(sorted)
	out := make([]SummaryItem, 0, len(sorted))
	for _, b := range sorted {
		out = append(out, SummaryItem{
			ID:          b.ID,
			Label:       Label(b),
			Period:      b.Period,
			TotalBudget: b.TotalBudget,
			TotalSpent:  b.TotalSpent,
			Remaining:   b.Remaining,
			SavingsGoal: b.SavingsGoal,
		})
	}
	return out
}

// Savings sums the positive remaining amounts across budgets.
func Savings(budgets []Budget) decimal.Decimal {
	total := decimal.Zero
	for _, b := range budgets {
		if b.Remaining.IsPositive() {
			total = total.Add(b.Remaining)
		}
	}
	return total
}
