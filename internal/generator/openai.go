package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"finbits/internal/core"
	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

const systemPrompt = "You write short, accurate financial literacy lessons and quizzes. " +
	"You answer with a single JSON object and nothing else."

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAI generates lessons through the chat completions API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *applog.Logger
}

var _ Generator = (*OpenAI)(nil)

func NewOpenAI(cfg Config, logger *applog.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is required for lesson generation")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.WithComponent(applog.ComponentGenerator),
	}, nil
}

// Generate makes exactly one completion call; failures are not retried.
func (o *OpenAI) Generate(ctx context.Context, req core.GenerateRequest) (core.Levels, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		metrics.ObserveGeneration("error", time.Since(start))
		o.logger.ErrorContext(ctx, "OpenAI API call failed", applog.FieldError, err.Error(), "model", o.model)
		return core.Levels{}, core.GenerationError("lesson generation failed", err)
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveGeneration("error", time.Since(start))
		return core.Levels{}, core.GenerationError("generator returned no choices", nil)
	}

	levels, err := ParseLevels(resp.Choices[0].Message.Content)
	if err != nil {
		status := "error"
		if errors.Is(err, core.ErrGenerationValidation) {
			status = "invalid"
		}
		metrics.ObserveGeneration(status, time.Since(start))
		o.logger.WarnContext(ctx, "Generated lesson rejected",
			applog.FieldError, err.Error(),
			"finish_reason", string(resp.Choices[0].FinishReason))
		return core.Levels{}, err
	}

	metrics.ObserveGeneration("success", time.Since(start))
	o.logger.DebugContext(ctx, "Generated lesson",
		"title", req.Title,
		"model", o.model,
		"total_tokens", resp.Usage.TotalTokens)
	return levels, nil
}

func buildPrompt(req core.GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a financial literacy lesson titled %q about %q in the %q category.\n", req.Title, req.Topic, req.Category)
	fmt.Fprintf(&b, "Write it in language code %q.\n\n", req.Language)
	b.WriteString(`Respond ONLY with JSON in exactly this shape:

{
  "basic":        {"content": "lesson text", "quiz": [QUESTION x5]},
  "intermediate": {"content": "lesson text", "quiz": [QUESTION x5]},
  "advanced":     {"content": "lesson text", "quiz": [QUESTION x5]}
}

where QUESTION is
  {"question": "text", "options": ["first", "second", "third", "fourth"], "answer": "A",
   "explanations": {"A": "why", "B": "why", "C": "why", "D": "why"}}

Rules:
- Exactly the three keys basic, intermediate and advanced.
`)
	fmt.Fprintf(&b, "- Each level has exactly %d questions with exactly %d options.\n", core.QuestionsPerLevel, core.OptionsPerQuestion)
	b.WriteString(`- "answer" is the letter (A, B, C or D) of the correct option.
- Keep each "content" under 250 words, increasing in depth from basic to advanced.
- Do NOT include markdown, code fences or any text outside the JSON object.
`)
	return b.String()
}
