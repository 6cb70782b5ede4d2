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
	rewriterMaxTokens   = 2048
	rewriterTemperature = 0.7
)

type rewriter struct {
	llm    llm.Generator
	prompt string
}

func NewRewriter(gen llm.Generator, prompt string) Agent {
	return &rewriter{llm: gen, prompt: prompt}
}

func (r *rewriter) Role() Role { return RoleRewriter }

func (r *rewriter) Run(ctx context.Context, in Input) (Output, error) {
	user, err := r.userMessage(in.Draft, in.Critiques)
	if err != nil {
		return Output{}, err
	}

	response, err := r.llm.Generate(ctx, llm.Request{
		System:      r.prompt,
		User:        user,
		MaxTokens:   rewriterMaxTokens,
		Temperature: rewriterTemperature,
	})
	if err != nil {
		return Output{}, fmt.Errorf("rewriter generation: %w", err)
	}

	return Output{FinalPost: strings.TrimSpace(response)}, nil
}

func (r *rewriter) userMessage(draft string, critiques []models.Critique) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Post draft\n\n%s\n\n# Critic reports\n\n", draft)

	for _, critique := range critiques {
		name := critique.CriticName()
		if name == "" {
			name = "Unknown Critic"
		}
		data, err := json.MarshalIndent(critique, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode critique %s: %w", name, err)
		}
		fmt.Fprintf(&b, "## %s\n\n```json\n%s\n```\n\n", name, data)
	}

	b.WriteString("# Your task\n\nRewrite the post addressing ALL critic remarks. Return only the final post text.")
	return b.String(), nil
}
