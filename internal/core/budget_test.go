package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestBudget(t *testing.T) Budget {
	t.Helper()
	b, err := NewBudget("u1", BudgetInput{
		Period:      PeriodMonthly,
		TotalBudget: decPtr("1000"),
		Month:       intPtr(3),
		Categories: []CategoryInput{
			{Name: "Food", Allocated: decPtr("300")},
			{Name: "Rent", Allocated: decPtr("500")},
		},
	}, testNow)
	if err != nil {
		t.Fatalf("NewBudget: %v", err)
	}
	return b
}

func assertStats(t *testing.T, b Budget) {
	t.Helper()
	alloc, spent := decimal.Zero, decimal.Zero
	for _, c := range b.Categories {
		alloc = alloc.Add(c.Allocated)
		spent = spent.Add(c.Spent)
	}
	if !b.TotalAllocated.Equal(alloc) {
		t.Fatalf("totalAllocated=%s want %s", b.TotalAllocated, alloc)
	}
	if !b.TotalSpent.Equal(spent) {
		t.Fatalf("totalSpent=%s want %s", b.TotalSpent, spent)
	}
	if !b.Remaining.Equal(b.TotalBudget.Sub(spent)) {
		t.Fatalf("remaining=%s want %s", b.Remaining, b.TotalBudget.Sub(spent))
	}
}

func TestNewBudget(t *testing.T) {
	b := newTestBudget(t)
	assertStats(t, b)
	if !b.Remaining.Equal(dec("1000")) {
		t.Fatalf("remaining=%s", b.Remaining)
	}
	if b.Month == nil || *b.Month != 3 || b.Week != nil {
		t.Fatalf("unexpected period markers month=%v week=%v", b.Month, b.Week)
	}
	if !b.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt not set")
	}
}

func TestNewBudgetDropsWeekForMonthly(t *testing.T) {
	b, err := NewBudget("u1", BudgetInput{
		Period:      PeriodMonthly,
		TotalBudget: decPtr("10"),
		Week:        intPtr(4),
		Categories:  []CategoryInput{{Name: "A"}},
	}, testNow)
	if err != nil {
		t.Fatalf("NewBudget: %v", err)
	}
	if b.Week != nil {
		t.Fatalf("week kept on monthly budget")
	}
}

func TestNewBudgetValidation(t *testing.T) {
	cats := []CategoryInput{{Name: "Food"}}
	cases := []struct {
		name string
		in   BudgetInput
	}{
		{"bad period", BudgetInput{Period: "yearly", TotalBudget: decPtr("1"), Categories: cats}},
		{"missing total", BudgetInput{Period: PeriodMonthly, Categories: cats}},
		{"zero total", BudgetInput{Period: PeriodMonthly, TotalBudget: decPtr("0"), Categories: cats}},
		{"no categories", BudgetInput{Period: PeriodWeekly, TotalBudget: decPtr("1")}},
		{"empty name", BudgetInput{Period: PeriodWeekly, TotalBudget: decPtr("1"), Categories: []CategoryInput{{Name: " "}}}},
		{"duplicate name", BudgetInput{Period: PeriodWeekly, TotalBudget: decPtr("1"), Categories: []CategoryInput{{Name: "A"}, {Name: "A"}}}},
		{"negative allocation", BudgetInput{Period: PeriodWeekly, TotalBudget: decPtr("1"), Categories: []CategoryInput{{Name: "A", Allocated: decPtr("-1")}}}},
		{"bad month", BudgetInput{Period: PeriodMonthly, TotalBudget: decPtr("1"), Month: intPtr(13), Categories: cats}},
		{"bad week", BudgetInput{Period: PeriodWeekly, TotalBudget: decPtr("1"), Week: intPtr(53), Categories: cats}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBudget("u1", tc.in, testNow)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCategoryInputAcceptsBareName(t *testing.T) {
	var in []CategoryInput
	if err := json.Unmarshal([]byte(`["Food", {"name":"Rent","allocated":500}]`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(in) != 2 || in[0].Name != "Food" || in[0].Allocated != nil {
		t.Fatalf("bare name not normalised: %+v", in[0])
	}
	if in[1].Name != "Rent" || in[1].Allocated == nil || !in[1].Allocated.Equal(dec("500")) {
		t.Fatalf("object category not decoded: %+v", in[1])
	}
}

func TestRecomputeStatsIsIdempotent(t *testing.T) {
	b := newTestBudget(t)
	b.Categories[0].Spent = dec("42.50")
	once := RecomputeStats(b)
	twice := RecomputeStats(once)
	assertStats(t, twice)
	if !once.Remaining.Equal(twice.Remaining) || !once.TotalSpent.Equal(twice.TotalSpent) {
		t.Fatalf("recompute not idempotent")
	}
}

func TestRecomputeStatsIgnoresStaleDerivedFields(t *testing.T) {
	b := newTestBudget(t)
	b.TotalSpent = dec("999")
	b.Remaining = dec("-5")
	b = RecomputeStats(b)
	assertStats(t, b)
}

func TestAddSpendingScenario(t *testing.T) {
	b := newTestBudget(t)
	b, err := AddSpending(b, "Food", dec("120"), testNow)
	if err != nil {
		t.Fatalf("AddSpending: %v", err)
	}
	if !b.Categories[0].Spent.Equal(dec("120")) {
		t.Fatalf("food spent=%s", b.Categories[0].Spent)
	}
	if !b.TotalSpent.Equal(dec("120")) || !b.Remaining.Equal(dec("880")) {
		t.Fatalf("totals spent=%s remaining=%s", b.TotalSpent, b.Remaining)
	}
	assertStats(t, b)
}

func TestAddSpendingIsCumulative(t *testing.T) {
	b := newTestBudget(t)
	for _, amt := range []string{"10.10", "0", "5.05", "700"} {
		var err error
		b, err = AddSpending(b, "Rent", dec(amt), testNow)
		if err != nil {
			t.Fatalf("AddSpending(%s): %v", amt, err)
		}
		assertStats(t, b)
	}
	if !b.Categories[1].Spent.Equal(dec("715.15")) {
		t.Fatalf("rent spent=%s", b.Categories[1].Spent)
	}
	// overspending is allowed
	b, err := AddSpending(b, "Rent", dec("500"), testNow)
	if err != nil {
		t.Fatalf("overspend: %v", err)
	}
	if !b.Remaining.IsNegative() {
		t.Fatalf("expected negative remaining, got %s", b.Remaining)
	}
}

func TestAddSpendingErrors(t *testing.T) {
	b := newTestBudget(t)
	if _, err := AddSpending(b, "Travel", dec("1"), testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := AddSpending(b, "food", dec("1"), testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("category lookup must be exact, got %v", err)
	}
	if _, err := AddSpending(b, "Food", dec("-1"), testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddSpendingDoesNotAliasInput(t *testing.T) {
	b := newTestBudget(t)
	if _, err := AddSpending(b, "Food", dec("1"), testNow); err != nil {
		t.Fatalf("AddSpending: %v", err)
	}
	if !b.Categories[0].Spent.IsZero() {
		t.Fatalf("input budget mutated")
	}
}

func TestApplyPatch(t *testing.T) {
	b := newTestBudget(t)
	b, _ = AddSpending(b, "Food", dec("100"), testNow)

	weekly := PeriodWeekly
	later := testNow.Add(time.Hour)
	out, err := ApplyPatch(b, BudgetPatch{
		Period:      &weekly,
		Week:        intPtr(11),
		TotalBudget: decPtr("1200"),
		Categories: []CategoryInput{
			{Name: "Food", Allocated: decPtr("400")},
			{Name: "Fun", Allocated: decPtr("50"), Spent: decPtr("20")},
		},
	}, later)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	assertStats(t, out)
	if out.Month != nil || out.Week == nil || *out.Week != 11 {
		t.Fatalf("period markers month=%v week=%v", out.Month, out.Week)
	}
	if !out.Categories[0].Spent.Equal(dec("100")) {
		t.Fatalf("existing spend not carried over: %s", out.Categories[0].Spent)
	}
	if !out.TotalSpent.Equal(dec("120")) || !out.Remaining.Equal(dec("1080")) {
		t.Fatalf("spent=%s remaining=%s", out.TotalSpent, out.Remaining)
	}
	if !out.UpdatedAt.Equal(later) || !out.CreatedAt.Equal(testNow) {
		t.Fatalf("timestamps not handled")
	}
}

func TestApplyPatchRejectsInvalid(t *testing.T) {
	b := newTestBudget(t)
	if _, err := ApplyPatch(b, BudgetPatch{TotalBudget: decPtr("-1")}, testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ApplyPatch(b, BudgetPatch{Categories: []CategoryInput{}}, testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty categories, got %v", err)
	}
}

// Only creation demands a positive total; a stored budget may be cut to zero.
func TestApplyPatchAllowsZeroTotal(t *testing.T) {
	b := newTestBudget(t)
	got, err := ApplyPatch(b, BudgetPatch{TotalBudget: decPtr("0")}, testNow)
	if err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	if !got.TotalBudget.IsZero() {
		t.Errorf("TotalBudget = %s, want 0", got.TotalBudget)
	}
	if !got.Remaining.Equal(got.TotalSpent.Neg()) {
		t.Errorf("Remaining = %s, want %s", got.Remaining, got.TotalSpent.Neg())
	}
}

func TestLabel(t *testing.T) {
	created := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		b    Budget
		want string
	}{
		{Budget{Period: PeriodMonthly, Month: intPtr(1), CreatedAt: created}, "January 2024"},
		{Budget{Period: PeriodWeekly, Week: intPtr(27), CreatedAt: created}, "Week 27 - 2024"},
		{Budget{Period: PeriodMonthly, CreatedAt: created}, "monthly budget (Tue Jul 02 2024)"},
	}
	for _, tc := range cases {
		if got := Label(tc.b); got != tc.want {
			t.Errorf("Label() = %q, want %q", got, tc.want)
		}
	}
}

func TestSummarizeOrdersNewestFirst(t *testing.T) {
	older := Budget{ID: "a", Period: PeriodMonthly, Month: intPtr(1), CreatedAt: testNow.Add(-time.Hour)}
	newer := Budget{ID: "b", Period: PeriodWeekly, Week: intPtr(2), CreatedAt: testNow}
	items := Summarize([]Budget{older, newer})
	if len(items) != 2 || items[0].ID != "b" || items[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", items)
	}
	if items[1].Label != "January 2025" {
		t.Fatalf("label=%q", items[1].Label)
	}
}

func TestSavings(t *testing.T) {
	got := Savings([]Budget{
		{Remaining: dec("200")},
		{Remaining: dec("-50")},
		{Remaining: dec("0.5")},
	})
	if !got.Equal(dec("200.5")) {
		t.Fatalf("savings=%s", got)
	}
}

func TestBudgetJSONUsesNumbers(t *testing.T) {
	b := newTestBudget(t)
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["remaining"].(float64); !ok {
		t.Fatalf("remaining not a JSON number: %T", m["remaining"])
	}
}
