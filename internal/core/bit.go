package core

import (
	"strings"
	"time"
)

const (
	QuestionsPerLevel  = 5
	OptionsPerQuestion = 4
	// CompletionPoints is awarded once per user when all levels of a bit are completed.
	CompletionPoints = 100

	DefaultLanguage  = "en"
	DefaultCreatedBy = "Blogs Team"
)

type LevelName string

const (
	LevelBasic        LevelName = "basic"
	LevelIntermediate LevelName = "intermediate"
	LevelAdvanced     LevelName = "advanced"
)

// LevelOrder is the unlock order of the three tiers.
var LevelOrder = []LevelName{LevelBasic, LevelIntermediate, LevelAdvanced}

func ParseLevel(s string) (LevelName, error) {
	switch l := LevelName(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelBasic, LevelIntermediate, LevelAdvanced:
		return l, nil
	}
	return "", Validationf("level must be one of basic, intermediate, advanced")
}

type BitCategory string

const (
	CategoryBudgeting BitCategory = "budgeting"
	CategorySaving    BitCategory = "saving"
	CategoryInvesting BitCategory = "investing"
	CategoryCredit    BitCategory = "credit"
	CategoryDebit     BitCategory = "debit"
	CategoryGeneral   BitCategory = "general"
)

// ParseBitCategory defaults an empty value to general.
func ParseBitCategory(s string) (BitCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryGeneral, nil
	}
	switch c := BitCategory(s); c {
	case CategoryBudgeting, CategorySaving, CategoryInvesting, CategoryCredit, CategoryDebit, CategoryGeneral:
		return c, nil
	}
	return "", Validationf("unknown category %q", s)
}

type (
	Question struct {
		Question     string            `json:"question"`
		Options      []string          `json:"options"`
		Answer       string            `json:"answer"`
		Explanations map[string]string `json:"explanations,omitempty"`
	}

	Level struct {
		Content string     `json:"content"`
		Quiz    []Question `json:"quiz"`
	}

	Levels struct {
		Basic        Level `json:"basic"`
		Intermediate Level `json:"intermediate"`
		Advanced     Level `json:"advanced"`
	}

	Bit struct {
		ID        string      `json:"id"`
		Title     string      `json:"title"`
		Topic     string      `json:"topic"`
		Category  BitCategory `json:"category"`
		Language  string      `json:"language"`
		CreatedBy string      `json:"createdBy"`
		Active    bool        `json:"active"`
		Levels    Levels      `json:"levels"`
		CreatedAt time.Time   `json:"createdAt"`
	}

	// GenerateRequest describes a lesson to generate. Only Title is required.
	GenerateRequest struct {
		Title    string
		Topic    string
		Category BitCategory
		Language string
	}
)

// Level returns the level with the given name.
func (l *Levels) Level(name LevelName) *Level {
	switch name {
	case LevelBasic:
		return &l.Basic
	case LevelIntermediate:
		return &l.Intermediate
	case LevelAdvanced:
		return &l.Advanced
	}
	return nil
}

// NewGenerateRequest applies defaults: topic falls back to title, category to
// general and language to en.
func NewGenerateRequest(title, topic, category, language string) (GenerateRequest, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return GenerateRequest{}, Validationf("title is required")
	}
	cat, err := ParseBitCategory(category)
	if err != nil {
		return GenerateRequest{}, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = title
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}
	return GenerateRequest{Title: title, Topic: topic, Category: cat, Language: language}, nil
}

// BuildLevels turns a generator payload keyed by level name into Levels,
// rejecting anything that does not carry exactly three well formed tiers.
func BuildLevels(payload map[string]Level) (Levels, error) {
	var out Levels
	for _, name := range LevelOrder {
		lvl, ok := payload[string(name)]
		if !ok {
			return Levels{}, GenerationValidationf("missing level %q", name)
		}
		if err := validateLevel(name, lvl); err != nil {
			return Levels{}, err
		}
		*out.Level(name) = lvl
	}
	if len(payload) != len(LevelOrder) {
		return Levels{}, GenerationValidationf("expected exactly %d levels, got %d", len(LevelOrder), len(payload))
	}
	return out, nil
}

func validateLevel(name LevelName, lvl Level) error {
	if strings.TrimSpace(lvl.Content) == "" {
		return GenerationValidationf("level %q has no content", name)
	}
	if len(lvl.Quiz) != QuestionsPerLevel {
		return GenerationValidationf("level %q must have %d questions, got %d", name, QuestionsPerLevel, len(lvl.Quiz))
	}
	for i, q := range lvl.Quiz {
		if strings.TrimSpace(q.Question) == "" {
			return GenerationValidationf("level %q question %d is empty", name, i)
		}
		if len(q.Options) != OptionsPerQuestion {
			return GenerationValidationf("level %q question %d must have %d options", name, i, OptionsPerQuestion)
		}
		if _, ok := answerIndex(q.Answer); !ok {
			return GenerationValidationf("level %q question %d has invalid answer %q", name, i, q.Answer)
		}
	}
	return nil
}

// answerIndex maps an answer letter A-D to its option index.
func answerIndex(letter string) (int, bool) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	if len(l) != 1 || l[0] < 'A' || l[0] > 'D' {
		return 0, false
	}
	return int(l[0] - 'A'), true
}

// CheckAnswer reports whether letter is the correct answer to the question.
func (b Bit) CheckAnswer(level LevelName, questionIndex int, letter string) (bool, error) {
	lvl := b.Levels.Level(level)
	if lvl == nil {
		return false, Validationf("unknown level %q", level)
	}
	if questionIndex < 0 || questionIndex >= len(lvl.Quiz) {
		return false, Validationf("questionIndex must be between 0 and %d", QuestionsPerLevel-1)
	}
	if _, ok := answerIndex(letter); !ok {
		return false, Validationf("answer must be one of A, B, C, D")
	}
	return strings.EqualFold(strings.TrimSpace(letter), strings.TrimSpace(lvl.Quiz[questionIndex].Answer)), nil
}
