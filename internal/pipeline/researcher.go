package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/search"
	"github.com/maheshrc27/postforge/internal/topic"
)

const (
	researchPrimaryResults = 5
	researchMinResults     = 3
	researchMaxTokens      = 8192
	researchTemperature    = 1.0
)

type researcher struct {
	llm      llm.Generator
	searcher search.Searcher
	topic    *topic.Config
	prompt   string
}

// NewResearcher returns the agent that searches the web for the brief and
// turns the sources into a structured research report.
func NewResearcher(gen llm.Generator, searcher search.Searcher, cfg *topic.Config, prompt string) Agent {
	return &researcher{llm: gen, searcher: searcher, topic: cfg, prompt: prompt}
}

func (r *researcher) Role() Role { return RoleResearcher }

func (r *researcher) Run(ctx context.Context, in Input) (Output, error) {
	results, err := r.search(ctx, in.Brief)
	if err != nil {
		return Output{}, err
	}

	response, err := r.llm.Generate(ctx, llm.Request{
		System:      r.prompt,
		User:        r.userMessage(in.Brief, results),
		MaxTokens:   researchMaxTokens,
		Temperature: researchTemperature,
	})
	if err != nil {
		return Output{}, fmt.Errorf("research generation: %w", err)
	}

	report, err := ExtractJSON(response, PolicyFatal)
	if err != nil {
		return Output{}, fmt.Errorf("parse research report: %w", err)
	}
	return Output{Research: models.Research(report)}, nil
}

// search runs a recent news search and widens it to a general search over
// the last year when the news search comes back thin.
func (r *researcher) search(ctx context.Context, brief models.Brief) ([]search.Result, error) {
	query := r.topic.SearchQueryFor(brief.TopicAngle, brief.KeyTakeaway, brief.ExtraPoints)

	results, err := r.searcher.Search(ctx, query, search.Options{
		MaxResults:     researchPrimaryResults,
		SearchDepth:    search.DepthAdvanced,
		Topic:          search.TopicNews,
		TimeRange:      search.RangeMonth,
		IncludeDomains: r.topic.IncludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("research search: %w", err)
	}
	if len(results) >= researchMinResults {
		return results, nil
	}

	general, err := r.searcher.Search(ctx, query, search.Options{
		MaxResults:  researchPrimaryResults,
		SearchDepth: search.DepthAdvanced,
		Topic:       search.TopicGeneral,
		TimeRange:   search.RangeYear,
	})
	if err != nil {
		return nil, fmt.Errorf("research fallback search: %w", err)
	}
	return search.DedupByURL(append(results, general...)), nil
}

func (r *researcher) userMessage(brief models.Brief, results []search.Result) string {
	var b strings.Builder
	b.WriteString("# Post context\n\n")
	fmt.Fprintf(&b, "**Content type:** %s\n", r.topic.ContentTypeLabel(brief.TopicAngle))
	fmt.Fprintf(&b, "**Audience:** %s\n", r.topic.AudienceLabel(brief.Audience))
	fmt.Fprintf(&b, "**Key takeaway:** %s\n", brief.KeyTakeaway)
	if brief.ExtraPoints != "" {
		fmt.Fprintf(&b, "**Extra points:** %s\n", brief.ExtraPoints)
	}

	b.WriteString("\n# Sources found\n\n")
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### Source %d\n**URL:** %s\n**Title:** %s\n**Content:** %s\n**Relevance Score:** %g\n",
			i+1, res.URL, res.Title, res.Content, res.Score)
	}

	b.WriteString("\n\n# Your task\n\nAnalyze the sources and produce a structured JSON report.")
	return b.String()
}
