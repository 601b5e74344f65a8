package generator

import (
	"context"
	"fmt"

	"finbits/internal/core"
)

// Placeholder builds deterministic lessons without calling a model. It backs
// local development when no OpenAI key is configured.
type Placeholder struct{}

var _ Generator = Placeholder{}

func (Placeholder) Generate(ctx context.Context, req core.GenerateRequest) (core.Levels, error) {
	if err := ctx.Err(); err != nil {
		return core.Levels{}, core.GenerationError("lesson generation cancelled", err)
	}
	payload := make(map[string]core.Level, len(core.LevelOrder))
	for _, name := range core.LevelOrder {
		lvl := core.Level{Content: fmt.Sprintf("%s (%s): %s.", req.Title, name, req.Topic)}
		for i := 0; i < core.QuestionsPerLevel; i++ {
			lvl.Quiz = append(lvl.Quiz, core.Question{
				Question: fmt.Sprintf("%s question %d about %s?", name, i+1, req.Topic),
				Options:  []string{"Correct", "Wrong", "Wrong", "Wrong"},
				Answer:   "A",
			})
		}
		payload[string(name)] = lvl
	}
	return core.BuildLevels(payload)
}
