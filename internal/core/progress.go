package core

import (
	"slices"
	"time"
)

type (
	LevelProgress struct {
		Completed bool `json:"completed"`
		Score     int  `json:"score"`
		// AnsweredQuestions is kept sorted and free of duplicates.
		AnsweredQuestions []int `json:"answeredQuestions"`
		Unlocked          bool  `json:"unlocked"`
	}

	// Progress is one user's state on one bit.
	Progress struct {
		UserID       string        `json:"userId"`
		BitID        string        `json:"bitId"`
		Basic        LevelProgress `json:"basic"`
		Intermediate LevelProgress `json:"intermediate"`
		Advanced     LevelProgress `json:"advanced"`
		Rewarded     bool          `json:"rewarded"`
		UpdatedAt    time.Time     `json:"updatedAt"`
	}

	LevelAnalytics struct {
		Completed bool `json:"completed"`
		Unlocked  bool `json:"unlocked"`
		Score     int  `json:"score"`
		Answered  int  `json:"answered"`
	}

	Analytics struct {
		BitID             string                       `json:"bitId"`
		UserID            string                       `json:"userId"`
		OverallCompletion float64                      `json:"overallCompletion"`
		TotalAnswered     int                          `json:"totalAnswered"`
		TotalScore        int                          `json:"totalScore"`
		AllCompleted      bool                         `json:"allCompleted"`
		Rewarded          bool                         `json:"rewarded"`
		Levels            map[LevelName]LevelAnalytics `json:"levels"`
	}
)

// NewProgress returns a fresh record with only basic unlocked.
func NewProgress(userID, bitID string) Progress {
	return Progress{
		UserID:       userID,
		BitID:        bitID,
		Basic:        LevelProgress{Unlocked: true, AnsweredQuestions: []int{}},
		Intermediate: LevelProgress{AnsweredQuestions: []int{}},
		Advanced:     LevelProgress{AnsweredQuestions: []int{}},
	}
}

func (p *Progress) Level(name LevelName) *LevelProgress {
	switch name {
	case LevelBasic:
		return &p.Basic
	case LevelIntermediate:
		return &p.Intermediate
	case LevelAdvanced:
		return &p.Advanced
	}
	return nil
}

// Clone copies the answered sets so the result shares nothing with p.
func (p Progress) Clone() Progress {
	out := p
	for _, name := range LevelOrder {
		lp := out.Level(name)
		lp.AnsweredQuestions = slices.Clone(lp.AnsweredQuestions)
		if lp.AnsweredQuestions == nil {
			lp.AnsweredQuestions = []int{}
		}
	}
	return out
}

// Answer records an answer to question idx of the given level. The first
// answer for an index counts; later ones are ignored and report false.
// Completing a level unlocks the next one.
func (p *Progress) Answer(level LevelName, idx int, correct bool, now time.Time) (bool, error) {
	lp := p.Level(level)
	if lp == nil {
		return false, Validationf("level must be one of basic, intermediate, advanced")
	}
	if idx < 0 || idx >= QuestionsPerLevel {
		return false, Validationf("questionIndex must be between 0 and %d", QuestionsPerLevel-1)
	}
	if !lp.Unlocked {
		return false, Validationf("level %s is locked", level)
	}

	pos, found := slices.BinarySearch(lp.AnsweredQuestions, idx)
	if found {
		return false, nil
	}
	lp.AnsweredQuestions = slices.Insert(lp.AnsweredQuestions, pos, idx)
	if correct {
		lp.Score++
	}
	if len(lp.AnsweredQuestions) == QuestionsPerLevel {
		lp.Completed = true
		if next := nextLevel(level); next != "" {
			p.Level(next).Unlocked = true
		}
	}
	p.UpdatedAt = now
	return true, nil
}

func nextLevel(l LevelName) LevelName {
	for i, name := range LevelOrder {
		if name == l && i+1 < len(LevelOrder) {
			return LevelOrder[i+1]
		}
	}
	return ""
}

func (p Progress) AllCompleted() bool {
	return p.Basic.Completed && p.Intermediate.Completed && p.Advanced.Completed
}

// NeedsReward is true once every level is done and the reward has not been issued.
func (p Progress) NeedsReward() bool {
	return p.AllCompleted() && !p.Rewarded
}

// Analyze summarises a progress record.
func Analyze(p Progress) Analytics {
	a := Analytics{
		BitID:        p.BitID,
		UserID:       p.UserID,
		AllCompleted: p.AllCompleted(),
		Rewarded:     p.Rewarded,
		Levels:       make(map[LevelName]LevelAnalytics, len(LevelOrder)),
	}
	for _, name := range LevelOrder {
		lp := p.Level(name)
		answered := len(lp.AnsweredQuestions)
		a.TotalAnswered += answered
		a.TotalScore += lp.Score
		a.Levels[name] = LevelAnalytics{
			Completed: lp.Completed,
			Unlocked:  lp.Unlocked,
			Score:     lp.Score,
			Answered:  answered,
		}
	}
	a.OverallCompletion = float64(a.TotalAnswered) / float64(QuestionsPerLevel*len(LevelOrder))
	return a
}
