package services

import (
	"context"
	"errors"
	"time"

	"finbits/internal/backend"
	"finbits/internal/cache"
	"finbits/internal/core"
	"finbits/internal/events"
	"finbits/internal/generator"
	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

const (
	catalogCacheName = "bit_catalog"
	catalogKey       = "active"
)

// AnswerInput is one quiz answer. When Answer holds a letter, correctness
// is checked against the stored quiz and IsCorrect is ignored.
type AnswerInput struct {
	Level         string
	QuestionIndex int
	IsCorrect     bool
	Answer        string
}

// LearningService owns bits and per-user progress.
type LearningService struct {
	bits      backend.BitRepository
	progress  backend.ProgressRepository
	generator generator.Generator
	publisher events.Publisher
	catalog   *cache.LRUCache[[]core.Bit]
	logger    *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time
}

func NewLearningService(bits backend.BitRepository, progress backend.ProgressRepository, gen generator.Generator, publisher events.Publisher, catalog *cache.LRUCache[[]core.Bit], logger *applog.Logger) *LearningService {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentLearning)
	return &LearningService{
		bits:      bits,
		progress:  progress,
		generator: gen,
		publisher: publisher,
		catalog:   catalog,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// Generate asks the generator for a lesson and persists it only when every
// level has the expected shape.
func (s *LearningService) Generate(ctx context.Context, req core.GenerateRequest) (core.Bit, error) {
	if s.generator == nil {
		return core.Bit{}, core.GenerationError("lesson generator not configured", nil)
	}
	levels, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Lesson generation failed",
			applog.NewFields().WithOperation(applog.OpGenerate).WithError(err).ToSlice()...)
		if errors.Is(err, core.ErrGeneration) || errors.Is(err, core.ErrGenerationValidation) {
			return core.Bit{}, err
		}
		return core.Bit{}, core.GenerationError("failed to generate lesson", err)
	}

	bit := core.Bit{
		Title:     req.Title,
		Topic:     req.Topic,
		Category:  req.Category,
		Language:  req.Language,
		CreatedBy: core.DefaultCreatedBy,
		Active:    true,
		Levels:    levels,
		CreatedAt: s.now().UTC(),
	}
	created, err := s.bits.CreateBit(ctx, bit)
	if err != nil {
		return core.Bit{}, storeErr(err, "save", "bit")
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "Bit generated",
		applog.NewFields().WithBit(created.ID, "").WithOperation(applog.OpGenerate).ToSlice()...)
	return created, nil
}

// List returns active bits, newest first.
func (s *LearningService) List(ctx context.Context) ([]core.Bit, error) {
	if s.catalog != nil {
		bits, ok := s.catalog.Get(catalogKey)
		metrics.CacheLookup(catalogCacheName, ok)
		if ok {
			return bits, nil
		}
	}
	bits, err := s.bits.ListBits(ctx, true)
	if err != nil {
		return nil, storeErr(err, "list", "bits")
	}
	if s.catalog != nil {
		s.catalog.Set(catalogKey, bits)
	}
	return bits, nil
}

func (s *LearningService) Get(ctx context.Context, id string) (core.Bit, error) {
	b, err := s.bits.GetBit(ctx, id)
	if err != nil {
		return core.Bit{}, storeErr(err, "load", "bit")
	}
	return b, nil
}

// Delete removes the bit and every progress record attached to it.
func (s *LearningService) Delete(ctx context.Context, id string) error {
	if err := s.bits.DeleteBit(ctx, id); err != nil {
		return storeErr(err, "delete", "bit")
	}
	s.invalidate()
	if err := s.progress.DeleteProgressForBit(ctx, id); err != nil {
		return storeErr(err, "delete", "progress")
	}
	s.logger.InfoContext(ctx, "Bit deleted",
		applog.NewFields().WithBit(id, "").WithOperation(applog.OpDelete).ToSlice()...)
	return nil
}

// Progress returns the user's progress on the bit, or a fresh record.
func (s *LearningService) Progress(ctx context.Context, userID, bitID string) (core.Progress, error) {
	if _, err := s.Get(ctx, bitID); err != nil {
		return core.Progress{}, err
	}
	return s.loadProgress(ctx, userID, bitID)
}

func (s *LearningService) loadProgress(ctx context.Context, userID, bitID string) (core.Progress, error) {
	p, err := s.progress.GetProgress(ctx, userID, bitID)
	if errors.Is(err, core.ErrNotFound) {
		return core.NewProgress(userID, bitID), nil
	}
	if err != nil {
		return core.Progress{}, storeErr(err, "load", "progress")
	}
	return p, nil
}

// AnswerQuestion records one answer, unlocks the next level when a level is
// finished and emits BitFullyCompleted once all three are done. The reward
// flag is only set after a successful publish so a failure is retried on the
// next answer.
func (s *LearningService) AnswerQuestion(ctx context.Context, userID, bitID string, in AnswerInput) (core.Progress, error) {
	level, err := core.ParseLevel(in.Level)
	if err != nil {
		return core.Progress{}, err
	}
	bit, err := s.Get(ctx, bitID)
	if err != nil {
		return core.Progress{}, err
	}

	correct := in.IsCorrect
	if in.Answer != "" {
		if correct, err = bit.CheckAnswer(level, in.QuestionIndex, in.Answer); err != nil {
			return core.Progress{}, err
		}
	}

	p, err := s.loadProgress(ctx, userID, bitID)
	if err != nil {
		return core.Progress{}, err
	}

	now := s.now().UTC()
	recorded, err := p.Answer(level, in.QuestionIndex, correct, now)
	if err != nil {
		return core.Progress{}, err
	}
	if recorded {
		metrics.QuizAnswer(string(level), correct)
	}

	changed := recorded
	if p.NeedsReward() {
		payload := events.BitFullyCompleted{UserID: userID, BitID: bitID, Points: core.CompletionPoints}
		if err := publish(ctx, s.publisher, s.logger, events.TypeBitFullyCompleted, payload, now); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish completion event",
				applog.NewFields().WithUser(userID).WithBit(bitID, "").WithError(err).ToSlice()...)
		} else {
			p.Rewarded = true
			p.UpdatedAt = now
			changed = true
			metrics.BitCompleted()
			s.events.LogBitCompleted(ctx, userID, bitID, core.CompletionPoints)
		}
	}

	if changed {
		if err := s.progress.SaveProgress(ctx, p); err != nil {
			return core.Progress{}, storeErr(err, "save", "progress")
		}
	}
	return p, nil
}

func (s *LearningService) Analytics(ctx context.Context, userID, bitID string) (core.Analytics, error) {
	p, err := s.Progress(ctx, userID, bitID)
	if err != nil {
		return core.Analytics{}, err
	}
	return core.Analyze(p), nil
}

func (s *LearningService) invalidate() {
	if s.catalog != nil {
		s.catalog.Purge()
	}
}
