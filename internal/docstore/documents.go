package docstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"finbits/internal/core"
)

// BSON shapes. Amounts are stored as Decimal128 so they stay exact and
// remain usable in aggregation pipelines.
type (
	categoryDoc struct {
		Name      string               `bson:"name"`
		Allocated primitive.Decimal128 `bson:"allocated"`
		Spent     primitive.Decimal128 `bson:"spent"`
	}

	budgetDoc struct {
		ID             primitive.ObjectID   `bson:"_id,omitempty"`
		Owner          string               `bson:"owner"`
		Period         string               `bson:"period"`
		Month          *int                 `bson:"month,omitempty"`
		Week           *int                 `bson:"week,omitempty"`
		TotalBudget    primitive.Decimal128 `bson:"total_budget"`
		Categories     []categoryDoc        `bson:"categories"`
		SavingsGoal    primitive.Decimal128 `bson:"savings_goal"`
		TotalAllocated primitive.Decimal128 `bson:"total_allocated"`
		TotalSpent     primitive.Decimal128 `bson:"total_spent"`
		Remaining      primitive.Decimal128 `bson:"remaining"`
		CreatedAt      time.Time            `bson:"created_at"`
		UpdatedAt      time.Time            `bson:"updated_at"`
	}

	bitDoc struct {
		ID        primitive.ObjectID `bson:"_id,omitempty"`
		Title     string             `bson:"title"`
		Topic     string             `bson:"topic"`
		Category  string             `bson:"category"`
		Language  string             `bson:"language"`
		CreatedBy string             `bson:"created_by"`
		Active    bool               `bson:"active"`
		Levels    core.Levels        `bson:"levels"`
		CreatedAt time.Time          `bson:"created_at"`
	}

	levelProgressDoc struct {
		Completed bool  `bson:"completed"`
		Score     int   `bson:"score"`
		Answered  []int `bson:"answered_questions"`
		Unlocked  bool  `bson:"unlocked"`
	}

	progressDoc struct {
		UserID       string           `bson:"user_id"`
		BitID        string           `bson:"bit_id"`
		Basic        levelProgressDoc `bson:"basic"`
		Intermediate levelProgressDoc `bson:"intermediate"`
		Advanced     levelProgressDoc `bson:"advanced"`
		Rewarded     bool             `bson:"rewarded"`
		UpdatedAt    time.Time        `bson:"updated_at"`
	}

	profileDoc struct {
		UserID        string    `bson:"_id"`
		Points        int       `bson:"points"`
		Level         int       `bson:"level"`
		Rank          string    `bson:"rank"`
		CompletedBits int       `bson:"completed_bits"`
		RewardedBits  []string  `bson:"rewarded_bits"`
		UpdatedAt     time.Time `bson:"updated_at"`
	}
)

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", v, err)
	}
	return d, nil
}

// amountCodec accumulates the first conversion error so mapping code stays linear.
type amountCodec struct{ err error }

func (c *amountCodec) enc(d decimal.Decimal) primitive.Decimal128 {
	v, err := toDecimal128(d)
	if err != nil && c.err == nil {
		c.err = err
	}
	return v
}

func (c *amountCodec) dec(v primitive.Decimal128) decimal.Decimal {
	d, err := fromDecimal128(v)
	if err != nil && c.err == nil {
		c.err = err
	}
	return d
}

func budgetToDoc(b core.Budget) (budgetDoc, error) {
	var c amountCodec
	doc := budgetDoc{
		Owner:          b.Owner,
		Period:         string(b.Period),
		Month:          b.Month,
		Week:           b.Week,
		TotalBudget:    c.enc(b.TotalBudget),
		SavingsGoal:    c.enc(b.SavingsGoal),
		TotalAllocated: c.enc(b.TotalAllocated),
		TotalSpent:     c.enc(b.TotalSpent),
		Remaining:      c.enc(b.Remaining),
		CreatedAt:      b.CreatedAt.UTC(),
		UpdatedAt:      b.UpdatedAt.UTC(),
	}
	doc.Categories = make([]categoryDoc, 0, len(b.Categories))
	for _, cat := range b.Categories {
		doc.Categories = append(doc.Categories, categoryDoc{
			Name:      cat.Name,
			Allocated: c.enc(cat.Allocated),
			Spent:     c.enc(cat.Spent),
		})
	}
	if b.ID != "" {
		id, err := primitive.ObjectIDFromHex(b.ID)
		if err != nil {
			return budgetDoc{}, fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
		}
		doc.ID = id
	}
	return doc, c.err
}

func docToBudget(doc budgetDoc) (core.Budget, error) {
	var c amountCodec
	b := core.Budget{
		ID:             doc.ID.Hex(),
		Owner:          doc.Owner,
		Period:         core.Period(doc.Period),
		Month:          doc.Month,
		Week:           doc.Week,
		TotalBudget:    c.dec(doc.TotalBudget),
		SavingsGoal:    c.dec(doc.SavingsGoal),
		TotalAllocated: c.dec(doc.TotalAllocated),
		TotalSpent:     c.dec(doc.TotalSpent),
		Remaining:      c.dec(doc.Remaining),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	b.Categories = make([]core.Category, 0, len(doc.Categories))
	for _, cat := range doc.Categories {
		b.Categories = append(b.Categories, core.Category{
			Name:      cat.Name,
			Allocated: c.dec(cat.Allocated),
			Spent:     c.dec(cat.Spent),
		})
	}
	return b, c.err
}

func bitToDoc(b core.Bit) bitDoc {
	return bitDoc{
		Title:     b.Title,
		Topic:     b.Topic,
		Category:  string(b.Category),
		Language:  b.Language,
		CreatedBy: b.CreatedBy,
		Active:    b.Active,
		Levels:    b.Levels,
		CreatedAt: b.CreatedAt.UTC(),
	}
}

func docToBit(doc bitDoc) core.Bit {
	return core.Bit{
		ID:        doc.ID.Hex(),
		Title:     doc.Title,
		Topic:     doc.Topic,
		Category:  core.BitCategory(doc.Category),
		Language:  doc.Language,
		CreatedBy: doc.CreatedBy,
		Active:    doc.Active,
		Levels:    doc.Levels,
		CreatedAt: doc.CreatedAt,
	}
}

func levelToDoc(lp core.LevelProgress) levelProgressDoc {
	return levelProgressDoc{Completed: lp.Completed, Score: lp.Score, Answered: lp.AnsweredQuestions, Unlocked: lp.Unlocked}
}

func docToLevel(d levelProgressDoc) core.LevelProgress {
	answered := d.Answered
	if answered == nil {
		answered = []int{}
	}
	return core.LevelProgress{Completed: d.Completed, Score: d.Score, AnsweredQuestions: answered, Unlocked: d.Unlocked}
}

func progressToDoc(p core.Progress) progressDoc {
	return progressDoc{
		UserID:       p.UserID,
		BitID:        p.BitID,
		Basic:        levelToDoc(p.Basic),
		Intermediate: levelToDoc(p.Intermediate),
		Advanced:     levelToDoc(p.Advanced),
		Rewarded:     p.Rewarded,
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func docToProgress(d progressDoc) core.Progress {
	return core.Progress{
		UserID:       d.UserID,
		BitID:        d.BitID,
		Basic:        docToLevel(d.Basic),
		Intermediate: docToLevel(d.Intermediate),
		Advanced:     docToLevel(d.Advanced),
		Rewarded:     d.Rewarded,
		UpdatedAt:    d.UpdatedAt,
	}
}

func profileToDoc(p core.Profile) profileDoc {
	return profileDoc{
		UserID:        p.UserID,
		Points:        p.Points,
		Level:         p.Level,
		Rank:          string(p.Rank),
		CompletedBits: p.CompletedBits,
		RewardedBits:  p.RewardedBits,
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

func docToProfile(d profileDoc) core.Profile {
	rewarded := d.RewardedBits
	if rewarded == nil {
		rewarded = []string{}
	}
	return core.Profile{
		UserID:        d.UserID,
		Points:        d.Points,
		Level:         d.Level,
		Rank:          core.Rank(d.Rank),
		CompletedBits: d.CompletedBits,
		RewardedBits:  rewarded,
		UpdatedAt:     d.UpdatedAt,
	}
}
