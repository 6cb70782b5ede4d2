package search

import (
	"context"
	"errors"
)

// MaxQueryRunes is the longest query sent to the backend. Tavily rejects
// queries over 400 characters.
const MaxQueryRunes = 380

const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"

	TopicGeneral = "general"
	TopicNews    = "news"

	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeYear  = "year"
)

// ErrBackend wraps every failure of the search backend.
var ErrBackend = errors.New("search backend error")

type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type Options struct {
	MaxResults     int
	SearchDepth    string
	Topic          string
	TimeRange      string
	IncludeDomains []string
}

type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// TruncateQuery cuts query to MaxQueryRunes.
func TruncateQuery(query string) string {
	runes := []rune(query)
	if len(runes) <= MaxQueryRunes {
		return query
	}
	return string(runes[:MaxQueryRunes])
}

// DedupByURL returns results with repeated URLs removed, keeping the first
// occurrence and the original order.
func DedupByURL(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	unique := make([]Result, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		unique = append(unique, r)
	}
	return unique
}
