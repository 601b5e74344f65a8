package services

import (
	"context"
	"errors"
	"time"

	"finbits/internal/backend"
	"finbits/internal/core"
	"finbits/internal/events"
	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

// ProgressionService keeps user profiles. It only reacts to events and is
// never called by the learning engine directly.
type ProgressionService struct {
	profiles backend.ProfileRepository
	budgets  backend.BudgetRepository
	logger   *applog.Logger
	now      func() time.Time
}

func NewProgressionService(profiles backend.ProfileRepository, budgets backend.BudgetRepository, logger *applog.Logger) *ProgressionService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ProgressionService{
		profiles: profiles,
		budgets:  budgets,
		logger:   logger.WithComponent(applog.ComponentProgression),
		now:      time.Now,
	}
}

// Profile returns the user's profile, or a fresh one.
func (s *ProgressionService) Profile(ctx context.Context, userID string) (core.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.NewProfile(userID), nil
	}
	if err != nil {
		return core.Profile{}, storeErr(err, "load", "profile")
	}
	return p, nil
}

// HandleBitFullyCompleted credits the completion reward once per (user, bit)
// and recomputes level and rank. Savings are the positive remainders across
// the user's budgets.
func (s *ProgressionService) HandleBitFullyCompleted(ctx context.Context, e events.Envelope) error {
	var ev events.BitFullyCompleted
	if err := e.Decode(&ev); err != nil {
		return core.Validationf("%v", err)
	}
	if ev.UserID == "" || ev.BitID == "" {
		return core.Validationf("completion event %s needs a user and a bit", e.ID)
	}
	points := ev.Points
	if points <= 0 {
		points = core.CompletionPoints
	}

	profile, err := s.Profile(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if profile.HasReward(ev.BitID) {
		s.logger.DebugContext(ctx, "Reward already applied",
			applog.NewFields().WithUser(ev.UserID).WithBit(ev.BitID, "").WithEvent(string(e.Type), e.ID).ToSlice()...)
		return nil
	}

	budgets, err := s.budgets.ListBudgets(ctx, ev.UserID)
	if err != nil {
		return storeErr(err, "list", "budgets")
	}
	profile.ApplyReward(ev.BitID, points, core.Savings(budgets), s.now().UTC())
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		return storeErr(err, "save", "profile")
	}

	metrics.RewardGranted()
	fields := applog.NewFields().WithUser(ev.UserID).WithBit(ev.BitID, "").
		WithEvent(string(e.Type), e.ID).WithOperation(applog.OpReward).WithPoints(profile.Points)
	fields["profile_level"] = profile.Level
	fields["rank"] = string(profile.Rank)
	s.logger.InfoContext(ctx, "Completion reward applied", fields.ToSlice()...)
	return nil
}
