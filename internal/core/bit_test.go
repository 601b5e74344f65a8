package core

import (
	"errors"
	"fmt"
	"testing"
)

func sampleLevel(n int) Level {
	quiz := make([]Question, n)
	for i := range quiz {
		quiz[i] = Question{
			Question: fmt.Sprintf("Q%d?", i),
			Options:  []string{"a", "b", "c", "d"},
			Answer:   "B",
			Explanations: map[string]string{
				"A": "no", "B": "yes", "C": "no", "D": "no",
			},
		}
	}
	return Level{Content: "some content", Quiz: quiz}
}

func samplePayload() map[string]Level {
	return map[string]Level{
		"basic":        sampleLevel(5),
		"intermediate": sampleLevel(5),
		"advanced":     sampleLevel(5),
	}
}

func TestBuildLevels(t *testing.T) {
	levels, err := BuildLevels(samplePayload())
	if err != nil {
		t.Fatalf("BuildLevels: %v", err)
	}
	for _, name := range LevelOrder {
		if got := len(levels.Level(name).Quiz); got != QuestionsPerLevel {
			t.Fatalf("%s has %d questions", name, got)
		}
	}
}

func TestBuildLevelsRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]func(map[string]Level){
		"missing level":      func(p map[string]Level) { delete(p, "advanced") },
		"extra level":        func(p map[string]Level) { p["expert"] = sampleLevel(5) },
		"four questions":     func(p map[string]Level) { p["intermediate"] = sampleLevel(4) },
		"six questions":      func(p map[string]Level) { p["basic"] = sampleLevel(6) },
		"three options":      func(p map[string]Level) { l := sampleLevel(5); l.Quiz[2].Options = l.Quiz[2].Options[:3]; p["basic"] = l },
		"answer out of A-D":  func(p map[string]Level) { l := sampleLevel(5); l.Quiz[0].Answer = "E"; p["advanced"] = l },
		"empty content":      func(p map[string]Level) { l := sampleLevel(5); l.Content = ""; p["basic"] = l },
		"empty question":     func(p map[string]Level) { l := sampleLevel(5); l.Quiz[4].Question = " "; p["basic"] = l },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := samplePayload()
			mutate(p)
			if _, err := BuildLevels(p); !errors.Is(err, ErrGenerationValidation) {
				t.Fatalf("expected generation validation error, got %v", err)
			}
		})
	}
}

func TestNewGenerateRequestDefaults(t *testing.T) {
	req, err := NewGenerateRequest("  Emergency funds ", "", "", "")
	if err != nil {
		t.Fatalf("NewGenerateRequest: %v", err)
	}
	if req.Title != "Emergency funds" || req.Topic != "Emergency funds" {
		t.Fatalf("title/topic = %q/%q", req.Title, req.Topic)
	}
	if req.Category != CategoryGeneral || req.Language != DefaultLanguage {
		t.Fatalf("category/language = %q/%q", req.Category, req.Language)
	}

	if _, err := NewGenerateRequest("", "x", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty title, got %v", err)
	}
	if _, err := NewGenerateRequest("t", "", "crypto", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown category, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("Intermediate"); err != nil || l != LevelIntermediate {
		t.Fatalf("ParseLevel = %q, %v", l, err)
	}
	if _, err := ParseLevel("expert"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckAnswer(t *testing.T) {
	levels, _ := BuildLevels(samplePayload())
	bit := Bit{Levels: levels}
	ok, err := bit.CheckAnswer(LevelBasic, 0, "b")
	if err != nil || !ok {
		t.Fatalf("CheckAnswer(b) = %v, %v", ok, err)
	}
	ok, err = bit.CheckAnswer(LevelBasic, 0, "A")
	if err != nil || ok {
		t.Fatalf("CheckAnswer(A) = %v, %v", ok, err)
	}
	if _, err := bit.CheckAnswer(LevelBasic, 5, "A"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for index, got %v", err)
	}
	if _, err := bit.CheckAnswer(LevelBasic, 0, "Z"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for letter, got %v", err)
	}
}
