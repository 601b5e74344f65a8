// Package generator produces three-tier lesson payloads for bits.
package generator

import (
	"context"
	"encoding/json"
	"strings"

	"finbits/internal/core"
)

// Generator turns a lesson request into validated levels. Implementations
// return core.ErrGeneration for transport or decoding failures and
// core.ErrGenerationValidation when the payload has the wrong shape.
type Generator interface {
	Generate(ctx context.Context, req core.GenerateRequest) (core.Levels, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req core.GenerateRequest) (core.Levels, error)

func (f Func) Generate(ctx context.Context, req core.GenerateRequest) (core.Levels, error) {
	return f(ctx, req)
}

// ParseLevels decodes raw model output into levels. Code fences around the
// JSON are tolerated.
func ParseLevels(text string) (core.Levels, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return core.Levels{}, core.GenerationError("generator returned empty content", nil)
	}
	var payload map[string]core.Level
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return core.Levels{}, core.GenerationError("generator returned malformed JSON", err)
	}
	return core.BuildLevels(payload)
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
