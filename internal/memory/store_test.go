package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbits/internal/core"
)

func TestBudgetsAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	b, err := s.CreateBudget(ctx, core.Budget{
		Owner:       "alice",
		Period:      core.PeriodMonthly,
		TotalBudget: decimal.NewFromInt(100),
		Categories:  []core.Category{{Name: "Food"}},
		CreatedAt:   now,
	})
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)

	_, err = s.GetBudget(ctx, "bob", b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, s.DeleteBudget(ctx, "bob", b.ID), core.ErrNotFound)

	b.Owner = "bob"
	assert.ErrorIs(t, s.SaveBudget(ctx, b), core.ErrNotFound)

	list, err := s.ListBudgets(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteBudget(ctx, "alice", b.ID))
	_, err = s.GetBudget(ctx, "alice", b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReturnedBudgetsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	b, err := s.CreateBudget(ctx, core.Budget{Owner: "alice", Categories: []core.Category{{Name: "Food"}}})
	require.NoError(t, err)

	b.Categories[0].Spent = decimal.NewFromInt(5)
	got, err := s.GetBudget(ctx, "alice", b.ID)
	require.NoError(t, err)
	assert.True(t, got.Categories[0].Spent.IsZero())
}

func TestListBudgetsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.CreateBudget(ctx, core.Budget{Owner: "alice", SavingsGoal: decimal.NewFromInt(int64(i)), CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	list, err := s.ListBudgets(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].SavingsGoal.Equal(decimal.NewFromInt(2)))
	assert.True(t, list[2].SavingsGoal.Equal(decimal.Zero))
}

func TestBitsAndProgress(t *testing.T) {
	ctx := context.Background()
	s := New()

	active, err := s.CreateBit(ctx, core.Bit{Title: "a", Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = s.CreateBit(ctx, core.Bit{Title: "b", Active: false, CreatedAt: time.Now()})
	require.NoError(t, err)

	bits, err := s.ListBits(ctx, true)
	require.NoError(t, err)
	require.Len(t, bits, 1)
	assert.Equal(t, active.ID, bits[0].ID)

	all, err := s.ListBits(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetProgress(ctx, "u1", active.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	p := core.NewProgress("u1", active.ID)
	_, err = p.Answer(core.LevelBasic, 0, true, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.SaveProgress(ctx, p))
	require.NoError(t, s.SaveProgress(ctx, core.NewProgress("u2", active.ID)))

	got, err := s.GetProgress(ctx, "u1", active.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got.Basic.AnsweredQuestions)

	require.NoError(t, s.DeleteProgressForBit(ctx, active.ID))
	_, err = s.GetProgress(ctx, "u2", active.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.DeleteBit(ctx, active.ID))
	assert.ErrorIs(t, s.DeleteBit(ctx, active.ID), core.ErrNotFound)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	p := core.NewProfile("u1")
	p.ApplyReward("b1", core.CompletionPoints, decimal.Zero, time.Now())
	require.NoError(t, s.SaveProfile(ctx, p))

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Points)
	assert.Equal(t, []string{"b1"}, got.RewardedBits)
}
