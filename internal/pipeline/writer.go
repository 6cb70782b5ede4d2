package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/topic"
)

const (
	writerMaxTokens   = 2048
	writerTemperature = 0.7
)

var ErrEmptyDraft = errors.New("writer returned an empty draft")

type writer struct {
	llm    llm.Generator
	topic  *topic.Config
	prompt string
}

// NewWriter returns the drafting agent. The writing guide is appended to the
// writer prompt under its own heading.
func NewWriter(gen llm.Generator, cfg *topic.Config, prompt, writingGuide string) Agent {
	return &writer{
		llm:    gen,
		topic:  cfg,
		prompt: prompt + "\n\n# WRITING GUIDE\n\n" + writingGuide,
	}
}

func (w *writer) Role() Role { return RoleWriter }

func (w *writer) Run(ctx context.Context, in Input) (Output, error) {
	response, err := w.llm.Generate(ctx, llm.Request{
		System:      w.prompt,
		User:        w.userMessage(in.Brief, in.Research),
		MaxTokens:   writerMaxTokens,
		Temperature: writerTemperature,
	})
	if err != nil {
		return Output{}, fmt.Errorf("writer generation: %w", err)
	}

	draft := strings.TrimSpace(response)
	if draft == "" {
		return Output{}, ErrEmptyDraft
	}
	return Output{Draft: draft}, nil
}

func (w *writer) userMessage(brief models.Brief, research models.Research) string {
	var b strings.Builder
	b.WriteString("# Post context\n\n")
	fmt.Fprintf(&b, "**Content type:** %s\n", w.topic.ContentTypeLabel(brief.TopicAngle))
	fmt.Fprintf(&b, "**Audience:** %s\n", w.topic.AudienceLabel(brief.Audience))
	fmt.Fprintf(&b, "**Key takeaway:** %s\n", brief.KeyTakeaway)
	if brief.ExtraPoints != "" {
		fmt.Fprintf(&b, "**Extra points:** %s\n", brief.ExtraPoints)
	}

	b.WriteString("\n# Research results\n\n")

	if sources := objects(research["sources"]); len(sources) > 0 {
		b.WriteString("## Sources\n\n")
		for _, src := range sources {
			fmt.Fprintf(&b, "- **%s** (%s)\n", str(src["title"], "N/A"), str(src["url"], "N/A"))
			for _, point := range list(src["key_points"]) {
				fmt.Fprintf(&b, "  - %v\n", point)
			}
			b.WriteString("\n")
		}
	}

	if stats := objects(research["key_stats"]); len(stats) > 0 {
		b.WriteString("## Key stats\n\n")
		for _, stat := range stats {
			fmt.Fprintf(&b, "- %s ([source](%s))\n", str(stat["stat"], ""), str(stat["source_url"], ""))
		}
		b.WriteString("\n")
	}

	if examples := objects(research["examples"]); len(examples) > 0 {
		b.WriteString("## Examples\n\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "- **%s:** %s → %s\n", str(ex["company"], ""), str(ex["situation"], ""), str(ex["outcome"], ""))
		}
		b.WriteString("\n")
	}

	if summary := str(research["summary"], ""); summary != "" {
		fmt.Fprintf(&b, "## Research summary\n\n%s\n\n", summary)
	}

	b.WriteString("# Your task\n\nWrite a draft of the channel post following the channel guide.")
	return b.String()
}

// helpers for reading loosely typed model output

func list(v any) []any {
	items, _ := v.([]any)
	return items
}

func objects(v any) []map[string]any {
	var out []map[string]any
	for _, item := range list(v) {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func str(v any, fallback string) string {
	switch s := v.(type) {
	case string:
		if s != "" {
			return s
		}
	case nil:
	default:
		return fmt.Sprint(s)
	}
	return fallback
}
