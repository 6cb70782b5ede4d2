package pipeline

import (
	"context"
	"sync"

	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/search"
)

type generatorFunc func(ctx context.Context, req llm.Request) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req llm.Request) (string, error) {
	return f(ctx, req)
}

// recordingGenerator returns canned responses and remembers the requests.
type recordingGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	requests []llm.Request
}

func (g *recordingGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.response, g.err
}

type searchCall struct {
	query string
	opts  search.Options
}

type fakeSearcher struct {
	mu      sync.Mutex
	byTopic map[string][]search.Result
	err     error
	calls   []searchCall
}

func (s *fakeSearcher) Search(_ context.Context, query string, opts search.Options) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, searchCall{query: query, opts: opts})
	if s.err != nil {
		return nil, s.err
	}
	return s.byTopic[opts.Topic], nil
}

// agentFunc adapts a function to Agent.
type agentFunc struct {
	role Role
	run  func(ctx context.Context, in Input) (Output, error)
}

func (a agentFunc) Role() Role { return a.role }

func (a agentFunc) Run(ctx context.Context, in Input) (Output, error) {
	return a.run(ctx, in)
}
