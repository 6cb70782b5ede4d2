package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/logging"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/pipeline"
	"github.com/maheshrc27/postforge/internal/repository"
	"github.com/maheshrc27/postforge/internal/search"
	"github.com/maheshrc27/postforge/internal/topic"
)

type generatorFunc func(ctx context.Context, req llm.Request) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req llm.Request) (string, error) {
	return f(ctx, req)
}

func staticGenerator(response string) llm.Generator {
	return generatorFunc(func(context.Context, llm.Request) (string, error) {
		return response, nil
	})
}

type stubSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ search.Options) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

type fakeDelivery struct {
	mu      sync.Mutex
	nextID  int64
	sent    []string
	edits   map[int64]string
	sendErr error
	editErr error
}

func (d *fakeDelivery) Send(_ context.Context, text string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return 0, d.sendErr
	}
	d.nextID++
	d.sent = append(d.sent, text)
	return d.nextID, nil
}

func (d *fakeDelivery) Edit(_ context.Context, id int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.editErr != nil {
		return d.editErr
	}
	if d.edits == nil {
		d.edits = make(map[int64]string)
	}
	d.edits[id] = text
	return nil
}

type fakeMirror struct {
	names []string
	data  [][]byte
}

func (m *fakeMirror) Mirror(_ context.Context, filename string, record []byte) error {
	m.names = append(m.names, filename)
	m.data = append(m.data, record)
	return nil
}

// blockingOrchestrator reports progress and then waits for release or
// cancellation.
type blockingOrchestrator struct {
	started chan models.Brief
	release chan error
}

func newBlockingOrchestrator() *blockingOrchestrator {
	return &blockingOrchestrator{started: make(chan models.Brief, 1), release: make(chan error, 1)}
}

func (o *blockingOrchestrator) RunPipeline(ctx context.Context, brief models.Brief, progress pipeline.ProgressFunc) (*pipeline.RunResult, error) {
	_ = progress(ctx, "researching")
	o.started <- brief
	select {
	case err := <-o.release:
		if err != nil {
			return nil, err
		}
		return &pipeline.RunResult{RunID: "abc123", FinalPost: "post", QueueFile: "data/queue/post_1.json"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testTopic() *topic.Config {
	return &topic.Config{
		ChannelName:        "AI in Gamedev",
		ChannelDescription: "Practical AI for game studios",
		ContentTypes: []topic.Option{
			{Key: "tool_review", Label: "Tool review"},
			{Key: "case_study", Label: "Case study"},
		},
		ResearchQueries: []string{"AI gamedev news", "game engine AI"},
	}
}

func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(time.Second)
		return t
	}
}

type fixture struct {
	posts   repository.PostRepository
	plans   repository.PlanRepository
	planner *plannerService
}

func newFixture(t *testing.T, gen llm.Generator, searcher search.Searcher) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := repository.NewJSONStore(repository.WithClock(steppingClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))))
	plans := repository.NewPlanRepository(store, filepath.Join(dir, "content_plans"))
	planner := NewPlannerService(gen, searcher, plans, testTopic(), "plan prompt", logging.NewDiscardLogger(), nil).(*plannerService)
	return &fixture{
		posts:   repository.NewPostRepository(store, filepath.Join(dir, "queue"), filepath.Join(dir, "published")),
		plans:   plans,
		planner: planner,
	}
}

// seedPlan stores a plan whose entries have the given statuses.
func (f *fixture) seedPlan(t *testing.T, statuses ...models.TopicStatus) *models.ContentPlan {
	t.Helper()
	plan := &models.ContentPlan{Status: models.PlanStatusActive}
	queuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, st := range statuses {
		entry := models.TopicEntry{ID: i, Day: "Day", Type: "tool_review", Theme: "theme", Status: st}
		if st != models.TopicPending {
			entry.QueuedAt = &queuedAt
		}
		plan.Days = append(plan.Days, entry)
	}
	if err := f.plans.Create(context.Background(), plan); err != nil {
		t.Fatal(err)
	}
	return plan
}
