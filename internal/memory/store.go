// Package memory is an in-process document store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"finbits/internal/core"
)

type progressKey struct{ user, bit string }

// Store keeps deep copies of every document behind a single mutex.
type Store struct {
	mu       sync.RWMutex
	budgets  map[string]core.Budget
	bits     map[string]core.Bit
	progress map[progressKey]core.Progress
	profiles map[string]core.Profile
}

func New() *Store {
	return &Store{
		budgets:  make(map[string]core.Budget),
		bits:     make(map[string]core.Bit),
		progress: make(map[progressKey]core.Progress),
		profiles: make(map[string]core.Profile),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b = b.Clone()
	b.ID = uuid.NewString()
	s.budgets[b.ID] = b
	return b.Clone(), nil
}

func (s *Store) GetBudget(_ context.Context, owner, id string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok || b.Owner != owner {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return b.Clone(), nil
}

func (s *Store) ListBudgets(_ context.Context, owner string) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.Owner == owner {
			out = append(out, b.Clone())
		}
	}
	core.SortNewestFirst(out)
	return out, nil
}

func (s *Store) SaveBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok || cur.Owner != b.Owner {
		return fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
	}
	s.budgets[b.ID] = b.Clone()
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.Owner != owner {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) CreateBit(_ context.Context, b core.Bit) (core.Bit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.NewString()
	s.bits[b.ID] = cloneBit(b)
	return cloneBit(b), nil
}

func (s *Store) GetBit(_ context.Context, id string) (core.Bit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bits[id]
	if !ok {
		return core.Bit{}, fmt.Errorf("bit %s: %w", id, core.ErrNotFound)
	}
	return cloneBit(b), nil
}

func (s *Store) ListBits(_ context.Context, activeOnly bool) ([]core.Bit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Bit, 0, len(s.bits))
	for _, b := range s.bits {
		if activeOnly && !b.Active {
			continue
		}
		out = append(out, cloneBit(b))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteBit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bits[id]; !ok {
		return fmt.Errorf("bit %s: %w", id, core.ErrNotFound)
	}
	delete(s.bits, id)
	return nil
}

func (s *Store) GetProgress(_ context.Context, userID, bitID string) (core.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[progressKey{userID, bitID}]
	if !ok {
		return core.Progress{}, fmt.Errorf("progress %s/%s: %w", userID, bitID, core.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) SaveProgress(_ context.Context, p core.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[progressKey{p.UserID, p.BitID}] = p.Clone()
	return nil
}

func (s *Store) DeleteProgressForBit(_ context.Context, bitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.progress {
		if k.bit == bitID {
			delete(s.progress, k)
		}
	}
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.Profile{}, fmt.Errorf("profile %s: %w", userID, core.ErrNotFound)
	}
	p.RewardedBits = append([]string(nil), p.RewardedBits...)
	return p, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.RewardedBits = append([]string(nil), p.RewardedBits...)
	s.profiles[p.UserID] = p
	return nil
}

func cloneBit(b core.Bit) core.Bit {
	for _, name := range core.LevelOrder {
		lvl := b.Levels.Level(name)
		quiz := make([]core.Question, len(lvl.Quiz))
		for i, q := range lvl.Quiz {
			q.Options = append([]string(nil), q.Options...)
			if q.Explanations != nil {
				ex := make(map[string]string, len(q.Explanations))
				for k, v := range q.Explanations {
					ex[k] = v
				}
				q.Explanations = ex
			}
			quiz[i] = q
		}
		lvl.Quiz = quiz
	}
	return b
}
