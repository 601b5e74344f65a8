package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finbits/internal/backend"
	"finbits/internal/cache"
	"finbits/internal/core"
	"finbits/internal/events"
	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

const summaryCacheName = "budget_summary"

// BudgetService owns the budget aggregate: every mutation loads the owner's
// budget, applies the change in memory, recomputes and writes once.
type BudgetService struct {
	repo      backend.BudgetRepository
	publisher events.Publisher
	summaries *cache.LRUCache[[]core.SummaryItem]
	logger    *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time
}

// NewBudgetService wires the service. summaries may be nil to disable caching
// and publisher may be nil when spending events are not wanted.
func NewBudgetService(repo backend.BudgetRepository, publisher events.Publisher, summaries *cache.LRUCache[[]core.SummaryItem], logger *applog.Logger) *BudgetService {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentBudget)
	return &BudgetService{
		repo:      repo,
		publisher: publisher,
		summaries: summaries,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

func (s *BudgetService) Create(ctx context.Context, owner string, in core.BudgetInput) (core.Budget, error) {
	b, err := core.NewBudget(owner, in, s.now().UTC())
	if err != nil {
		return core.Budget{}, err
	}
	created, err := s.repo.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, storeErr(err, "create", "budget")
	}
	s.invalidate(owner)
	s.logger.InfoContext(ctx, "Budget created",
		applog.NewFields().WithUser(owner).WithBudget(created.ID, core.Label(created)).
			WithOperation(applog.OpCreate).ToSlice()...)
	return created, nil
}

func (s *BudgetService) Get(ctx context.Context, owner, id string) (core.Budget, error) {
	b, err := s.repo.GetBudget(ctx, owner, id)
	if err != nil {
		return core.Budget{}, storeErr(err, "load", "budget")
	}
	return b, nil
}

// List returns the owner's budgets, newest first.
func (s *BudgetService) List(ctx context.Context, owner string) ([]core.Budget, error) {
	budgets, err := s.repo.ListBudgets(ctx, owner)
	if err != nil {
		return nil, storeErr(err, "list", "budgets")
	}
	core.SortNewestFirst(budgets)
	return budgets, nil
}

func (s *BudgetService) Update(ctx context.Context, owner, id string, patch core.BudgetPatch) (core.Budget, error) {
	current, err := s.Get(ctx, owner, id)
	if err != nil {
		return core.Budget{}, err
	}
	updated, err := core.ApplyPatch(current, patch, s.now().UTC())
	if err != nil {
		return core.Budget{}, err
	}
	if err := s.repo.SaveBudget(ctx, updated); err != nil {
		return core.Budget{}, storeErr(err, "save", "budget")
	}
	s.invalidate(owner)
	s.logger.InfoContext(ctx, "Budget updated",
		applog.NewFields().WithUser(owner).WithBudget(id, core.Label(updated)).
			WithOperation(applog.OpUpdate).ToSlice()...)
	return updated, nil
}

// AddSpending records amount against the named category and publishes a
// SpendingRecorded event. A failed publish does not fail the call.
func (s *BudgetService) AddSpending(ctx context.Context, owner, id, categoryName string, amount decimal.Decimal) (core.Budget, error) {
	current, err := s.Get(ctx, owner, id)
	if err != nil {
		return core.Budget{}, err
	}
	now := s.now().UTC()
	updated, err := core.AddSpending(current, categoryName, amount, now)
	if err != nil {
		return core.Budget{}, err
	}
	if err := s.repo.SaveBudget(ctx, updated); err != nil {
		return core.Budget{}, storeErr(err, "save", "budget")
	}
	s.invalidate(owner)

	label := core.Label(updated)
	metrics.SpendingRecorded()
	s.events.LogSpendingRecorded(ctx, owner, id, label, categoryName,
		core.FormatAmount(amount), core.FormatAmount(updated.Remaining))

	payload := events.SpendingRecorded{
		BudgetID:     id,
		Owner:        owner,
		BudgetLabel:  label,
		CategoryName: categoryName,
		Amount:       amount,
		Remaining:    updated.Remaining,
	}
	if err := publish(ctx, s.publisher, s.logger, events.TypeSpendingRecorded, payload, now); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish spending event",
			applog.NewFields().WithBudget(id, label).WithError(err).ToSlice()...)
	}
	return updated, nil
}

// Summary lists the owner's budgets with display labels, newest first.
func (s *BudgetService) Summary(ctx context.Context, owner string) ([]core.SummaryItem, error) {
	if s.summaries != nil {
		items, ok := s.summaries.Get(owner)
		metrics.CacheLookup(summaryCacheName, ok)
		if ok {
			return items, nil
		}
	}
	budgets, err := s.repo.ListBudgets(ctx, owner)
	if err != nil {
		return nil, storeErr(err, "list", "budgets")
	}
	items := core.Summarize(budgets)
	if s.summaries != nil {
		s.summaries.Set(owner, items)
	}
	return items, nil
}

func (s *BudgetService) Delete(ctx context.Context, owner, id string) error {
	if err := s.repo.DeleteBudget(ctx, owner, id); err != nil {
		return storeErr(err, "delete", "budget")
	}
	s.invalidate(owner)
	s.logger.InfoContext(ctx, "Budget deleted",
		applog.NewFields().WithUser(owner).WithBudget(id, "").WithOperation(applog.OpDelete).ToSlice()...)
	return nil
}

func (s *BudgetService) invalidate(owner string) {
	if s.summaries != nil {
		s.summaries.Delete(owner)
	}
}
