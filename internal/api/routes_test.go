package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postforge/internal/api/handlers"
	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/logging"
	"github.com/maheshrc27/postforge/internal/metrics"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/queue"
	"github.com/maheshrc27/postforge/internal/repository"
	"github.com/maheshrc27/postforge/internal/service"
	"github.com/maheshrc27/postforge/internal/topic"
)

type fakeRuns struct {
	service.AutopostService
	userID   string
	brief    models.Brief
	startErr error
	current  *service.RunStatus
}

func (f *fakeRuns) StartBrief(_ context.Context, userID string, brief models.Brief) (*service.RunStatus, error) {
	f.userID, f.brief = userID, brief
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &service.RunStatus{Kind: service.RunKindBrief, State: service.RunRunning, Brief: brief}, nil
}

func (f *fakeRuns) StartAutopost(_ context.Context, userID string) (*service.RunStatus, error) {
	f.userID = userID
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &service.RunStatus{Kind: service.RunKindAutopost, State: service.RunRunning}, nil
}

func (f *fakeRuns) Cancel(_ context.Context, userID string) error {
	f.userID = userID
	if f.current == nil {
		return service.ErrNoActiveRun
	}
	f.current.State = service.RunCancelled
	return nil
}

func (f *fakeRuns) Current(string) (*service.RunStatus, bool) {
	return f.current, f.current != nil
}

type fakePublisher struct {
	service.PublishService
	publishErr error
	edited     string
	editErr    error
}

func (f *fakePublisher) PublishNext(context.Context) (*service.PublishResult, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	return &service.PublishResult{PublishedFile: "published/post_1.json", MessageID: 9}, nil
}

func (f *fakePublisher) QueueStatus(context.Context) (*service.QueueStatus, error) {
	return &service.QueueStatus{
		Queued:         []*models.PostSummary{{Filename: "post_2.json", Preview: "hello..."}},
		PublishedCount: 4,
	}, nil
}

func (f *fakePublisher) GetPost(_ context.Context, source, filename string) (*models.PostRecord, error) {
	if source != service.SourceQueue && source != service.SourcePublished {
		return nil, service.ErrUnknownSource
	}
	if filename != "post_2.json" {
		return nil, fmt.Errorf("%s: %w", filename, repository.ErrNotFound)
	}
	return &models.PostRecord{FinalPost: "hello"}, nil
}

func (f *fakePublisher) EditPost(_ context.Context, source, filename, text string) (*service.EditResult, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited = text
	return &service.EditResult{Source: source, Filename: filename, ChannelUpdated: source == service.SourcePublished}, nil
}

type fakePlanner struct {
	service.PlannerService
	latest    *models.ContentPlan
	generated bool
	feedback  string
}

func (f *fakePlanner) GetLatestPlan(context.Context) (*models.ContentPlan, error) {
	return f.latest, nil
}

func (f *fakePlanner) GenerateWeeklyPlan(context.Context) (*models.ContentPlan, error) {
	f.generated = true
	return &models.ContentPlan{File: "data/content_plans/plan_20260302_090000.json", Days: []models.TopicEntry{
		{ID: 0, Day: "Monday", TypeLabel: "Tool review", Theme: "Textures", Status: models.TopicPending},
	}}, nil
}

func (f *fakePlanner) RefinePlan(_ context.Context, current *models.ContentPlan, feedback string) (*models.ContentPlan, error) {
	f.feedback = feedback
	return current, nil
}

type fakeScheduler struct {
	delay time.Duration
}

func (f *fakeScheduler) SchedulePublish(_ context.Context, _ string, delay time.Duration) (*queue.ScheduledTask, error) {
	f.delay = delay
	return &queue.ScheduledTask{ID: "t1", ProcessAt: time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)}, nil
}

type testServer struct {
	app       *fiber.App
	runs      *fakeRuns
	publisher *fakePublisher
	planner   *fakePlanner
	scheduler *fakeScheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		runs:      &fakeRuns{},
		publisher: &fakePublisher{},
		planner:   &fakePlanner{},
		scheduler: &fakeScheduler{},
	}
	cfg := &topic.Config{
		ContentTypes: []topic.Option{{Key: "tool_review", Label: "Tool review"}},
		Audiences:    []topic.Option{{Key: "indie", Label: "Indie studios"}},
	}
	ts.app = NewApp(Handlers{
		Runs:  handlers.NewRunHandler(ts.runs, cfg),
		Posts: handlers.NewPostHandler(ts.publisher, ts.scheduler),
		Plans: handlers.NewPlanHandler(ts.planner),
	}, metrics.New(), logging.NewDiscardLogger())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "42")

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestRequireUser(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreatePost(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/posts", `{"topic_angle":"tool_review","key_takeaway":"smaller builds"}`)
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, "42", ts.runs.userID)
	assert.Equal(t, "all", ts.runs.brief.Audience)

	status, _ = ts.do(t, http.MethodPost, "/api/posts", `{"topic_angle":"tool_review"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/api/posts", `{"topic_angle":"memes","key_takeaway":"x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	ts.runs.startErr = service.ErrRunInProgress
	status, body = ts.do(t, http.MethodPost, "/api/posts", `{"topic_angle":"tool_review","key_takeaway":"x","audience":"indie"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, body["error"], "already in progress")
}

func TestAutopostAndRuns(t *testing.T) {
	ts := newTestServer(t)

	ts.runs.startErr = service.ErrNoPendingTopic
	status, _ := ts.do(t, http.MethodPost, "/api/autopost", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	ts.runs.startErr = nil
	status, body := ts.do(t, http.MethodPost, "/api/autopost", "")
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "autopost", body["kind"])

	status, _ = ts.do(t, http.MethodGet, "/api/runs/current", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodPost, "/api/runs/cancel", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	ts.runs.current = &service.RunStatus{Kind: service.RunKindAutopost, State: service.RunRunning, Progress: []string{"researching"}}
	status, body = ts.do(t, http.MethodPost, "/api/runs/cancel", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "cancelled", body["state"])
}

func TestQueueAndPublish(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/queue", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 4, body["published_count"])

	status, body = ts.do(t, http.MethodPost, "/api/publish", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 9, body["message_id"])

	ts.publisher.publishErr = service.ErrQueueEmpty
	status, _ = ts.do(t, http.MethodPost, "/api/publish", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	ts.publisher.publishErr = fmt.Errorf("%w: %s", llm.ErrBackend, strings.Repeat("x", 2000))
	status, body = ts.do(t, http.MethodPost, "/api/publish", "")
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Len(t, []rune(body["error"].(string)), 500)
}

func TestSchedulePublish(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/publish/schedule?in=90m", "")
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "t1", body["task_id"])
	assert.Equal(t, 90*time.Minute, ts.scheduler.delay)

	status, _ = ts.do(t, http.MethodPost, "/api/publish/schedule?in=soon", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSchedulePublishWithoutRedis(t *testing.T) {
	ts := newTestServer(t)
	ts.app = NewApp(Handlers{
		Runs:  handlers.NewRunHandler(ts.runs, &topic.Config{}),
		Posts: handlers.NewPostHandler(ts.publisher, nil),
		Plans: handlers.NewPlanHandler(ts.planner),
	}, metrics.New(), logging.NewDiscardLogger())

	status, _ := ts.do(t, http.MethodPost, "/api/publish/schedule?in=1h", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestGetAndEditPost(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/posts/queue/post_2.json", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "post_2.json", body["filename"])

	status, _ = ts.do(t, http.MethodGet, "/api/posts/queue/post_9.json", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodGet, "/api/posts/drafts/post_2.json", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = ts.do(t, http.MethodPut, "/api/posts/published/post_2.json", `{"final_post":"new text"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["channel_updated"])
	assert.Equal(t, "new text", ts.publisher.edited)

	status, _ = ts.do(t, http.MethodPut, "/api/posts/queue/post_2.json", `{"final_post":"  "}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestPlans(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodGet, "/api/plans/latest", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodPost, "/api/plans/latest/refine", `{"feedback":"more tools"}`)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := ts.do(t, http.MethodPost, "/api/plans", "")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "plan_20260302_090000.json", body["file"])
	assert.Contains(t, body["text"], "Monday [pending] Tool review: Textures")

	ts.planner.generated = false
	ts.planner.latest = &models.ContentPlan{File: "plan_a.json", Days: []models.TopicEntry{
		{ID: 0, Status: models.TopicUsed},
		{ID: 1, Status: models.TopicPending},
	}}
	status, body = ts.do(t, http.MethodPost, "/api/plans", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.EqualValues(t, 1, body["open_topics"])
	assert.False(t, ts.planner.generated)

	status, _ = ts.do(t, http.MethodPost, "/api/plans?force=true", "")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, ts.planner.generated)

	status, body = ts.do(t, http.MethodGet, "/api/plans/latest", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "plan_a.json", body["file"])

	status, _ = ts.do(t, http.MethodPost, "/api/plans/latest/refine", `{"feedback":""}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = ts.do(t, http.MethodPost, "/api/plans/latest/refine", `{"feedback":"more tools"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "more tools", ts.planner.feedback)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/api/queue", "")

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "/api/queue")
}
