package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/models"
)

const (
	criticMaxTokens   = 2048
	criticTemperature = 1.0
)

// CriticSpec names a critic and the prompt file it runs with.
type CriticSpec struct {
	Name       string
	PromptFile string
}

// Critics is the fixed critic lineup. Critiques always come back in this
// order.
var Critics = []CriticSpec{
	{Name: "Generic AI Detector", PromptFile: "critics/generic_detector.md"},
	{Name: "Rhythm Analyzer", PromptFile: "critics/rhythm_analyzer.md"},
	{Name: "Specificity Checker", PromptFile: "critics/specificity_checker.md"},
	{Name: "Fact Checker", PromptFile: "critics/fact_checker.md"},
}

type critic struct {
	llm    llm.Generator
	name   string
	prompt string
}

// NewCritic returns a reviewing agent. Unparsable model output produces a
// critique tagged with error and raw_response instead of failing.
func NewCritic(gen llm.Generator, name, prompt string) Agent {
	return &critic{llm: gen, name: name, prompt: prompt}
}

func (c *critic) Role() Role { return RoleCritic }

func (c *critic) Name() string { return c.name }

func (c *critic) Run(ctx context.Context, in Input) (Output, error) {
	user, err := c.userMessage(in.Draft, in.Research)
	if err != nil {
		return Output{}, err
	}

	response, err := c.llm.Generate(ctx, llm.Request{
		System:      c.prompt,
		User:        user,
		MaxTokens:   criticMaxTokens,
		Temperature: criticTemperature,
	})
	if err != nil {
		return Output{}, fmt.Errorf("critic %s: %w", c.name, err)
	}

	critique, err := ExtractJSON(response, PolicyDegrade)
	if err != nil {
		return Output{}, fmt.Errorf("critic %s: %w", c.name, err)
	}
	critique[models.CritiqueKeyName] = c.name
	return Output{Critique: models.Critique(critique)}, nil
}

func (c *critic) userMessage(draft string, research models.Research) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Post draft\n\n%s\n\n", draft)

	if len(research) > 0 {
		data, err := json.MarshalIndent(research, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode research for %s: %w", c.name, err)
		}
		fmt.Fprintf(&b, "\n# Research data (for fact verification)\n\n```json\n%s\n```\n\n", data)
	}

	b.WriteString("Analyze the draft and return a JSON report.")
	return b.String(), nil
}
