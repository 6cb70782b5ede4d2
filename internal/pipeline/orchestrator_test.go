package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postforge/internal/logging"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/repository"
)

type testEnv struct {
	posts   repository.PostRepository
	logsDir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	return testEnv{
		posts:   repository.NewPostRepository(repository.NewJSONStore(), filepath.Join(root, "queue"), filepath.Join(root, "published")),
		logsDir: filepath.Join(root, "logs"),
	}
}

// stubAgents returns agents that succeed with fixed outputs. Critics finish
// in reverse order of their position.
func stubAgents(rewriterSaw *[]models.Critique) Agents {
	critics := make([]Agent, 0, len(Critics))
	for i, spec := range Critics {
		delay := time.Duration(len(Critics)-i) * 10 * time.Millisecond
		name := spec.Name
		critics = append(critics, agentFunc{role: RoleCritic, run: func(ctx context.Context, in Input) (Output, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Output{}, ctx.Err()
			}
			return Output{Critique: models.Critique{models.CritiqueKeyName: name, "draft_seen": in.Draft}}, nil
		}})
	}
	return Agents{
		Researcher: agentFunc{role: RoleResearcher, run: func(ctx context.Context, in Input) (Output, error) {
			return Output{Research: models.Research{"sources": []any{"a", "b"}, "summary": "s"}}, nil
		}},
		Writer: agentFunc{role: RoleWriter, run: func(ctx context.Context, in Input) (Output, error) {
			return Output{Draft: "draft about " + in.Brief.KeyTakeaway}, nil
		}},
		Critics: critics,
		Rewriter: agentFunc{role: RoleRewriter, run: func(ctx context.Context, in Input) (Output, error) {
			if rewriterSaw != nil {
				*rewriterSaw = in.Critiques
			}
			return Output{FinalPost: "final about " + in.Draft}, nil
		}},
	}
}

func readEvents(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	return events
}

func phaseEvents(events []map[string]any) [][2]string {
	out := make([][2]string, 0, len(events))
	for _, e := range events {
		out = append(out, [2]string{e["phase"].(string), e["event"].(string)})
	}
	return out
}

func TestRunPipelineQueuesPost(t *testing.T) {
	env := newTestEnv(t)
	var seen []models.Critique
	o := NewOrchestrator(stubAgents(&seen), env.posts, env.logsDir, logging.NewDiscardLogger())

	var mu sync.Mutex
	var messages []string
	progress := func(ctx context.Context, msg string) error {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, msg)
		return nil
	}

	brief := testBrief()
	result, err := o.RunPipeline(context.Background(), brief, progress)
	require.NoError(t, err)

	assert.Len(t, result.RunID, 12)
	assert.Equal(t, "final about draft about smaller builds", result.FinalPost)
	assert.FileExists(t, result.QueueFile)
	assert.Equal(t, brief, result.Metadata.UserAnswers)
	assert.Equal(t, models.PostStatusQueued, result.Metadata.Status)

	// critiques keep the fixed critic order even though they finished reversed
	require.Len(t, seen, len(Critics))
	for i, spec := range Critics {
		assert.Equal(t, spec.Name, seen[i].CriticName())
		assert.Equal(t, "draft about smaller builds", seen[i]["draft_seen"])
	}
	assert.Equal(t, seen, result.Metadata.Critiques)

	path, queued, err := env.posts.GetNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.QueueFile, path)
	assert.Equal(t, result.FinalPost, queued.FinalPost)

	// announce and done message for each of the five phases
	assert.Len(t, messages, 10)
	assert.Contains(t, messages[9], filepath.Base(result.QueueFile))

	assert.Equal(t, env.logsDir, filepath.Dir(result.ChangelogFile))
	assert.Contains(t, filepath.Base(result.ChangelogFile), result.RunID[:8])
	events := readEvents(t, result.ChangelogFile)
	assert.Equal(t, [][2]string{
		{"pipeline", "start"},
		{"research", "start"}, {"research", "done"},
		{"writer", "start"}, {"writer", "done"},
		{"critics", "start"}, {"critics", "done"},
		{"rewriter", "start"}, {"rewriter", "done"},
		{"publisher", "start"}, {"publisher", "done"},
		{"pipeline", "done"},
	}, phaseEvents(events))
	for _, e := range events {
		assert.Equal(t, result.RunID, e["run_id"])
		assert.NotEmpty(t, e["ts"])
		if e["event"] == EventDone && e["phase"] != "pipeline" {
			assert.Contains(t, e, "duration_ms")
		}
	}
	assert.Equal(t, float64(2), events[2]["sources"])
	assert.Equal(t, float64(4), events[6]["critics_count"])
	assert.Equal(t, filepath.Base(result.QueueFile), events[11]["queue_file"])
	assert.Contains(t, events[11], "total_ms")
	assert.Equal(t, "smaller builds", events[0]["topic"])
}

func TestRunPipelineDegradedCritiqueStillCompletes(t *testing.T) {
	env := newTestEnv(t)
	var seen []models.Critique
	agents := stubAgents(&seen)
	agents.Critics[2] = NewCritic(&recordingGenerator{response: "no json here, sorry"}, Critics[2].Name, "p")

	result, err := NewOrchestrator(agents, env.posts, env.logsDir, logging.NewDiscardLogger()).
		RunPipeline(context.Background(), testBrief(), nil)
	require.NoError(t, err)

	require.Len(t, seen, 4)
	assert.True(t, seen[2].Degraded())
	assert.Equal(t, Critics[2].Name, seen[2].CriticName())
	assert.Equal(t, "no json here, sorry", seen[2][models.CritiqueKeyRawResponse])
	assert.FileExists(t, result.QueueFile)
}

func TestRunPipelineWriterFailureQueuesNothing(t *testing.T) {
	env := newTestEnv(t)
	agents := stubAgents(nil)
	writerErr := errors.New("writer exploded")
	agents.Writer = agentFunc{role: RoleWriter, run: func(ctx context.Context, in Input) (Output, error) {
		return Output{}, writerErr
	}}
	var rewriterCalls atomic.Int32
	agents.Rewriter = agentFunc{role: RoleRewriter, run: func(ctx context.Context, in Input) (Output, error) {
		rewriterCalls.Add(1)
		return Output{FinalPost: "x"}, nil
	}}

	var messages []string
	progress := func(ctx context.Context, msg string) error {
		messages = append(messages, msg)
		return nil
	}

	result, err := NewOrchestrator(agents, env.posts, env.logsDir, logging.NewDiscardLogger()).
		RunPipeline(context.Background(), testBrief(), progress)
	require.ErrorIs(t, err, writerErr)
	assert.Nil(t, result)
	assert.Zero(t, rewriterCalls.Load())

	files, err := env.posts.ListQueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)

	assert.Contains(t, messages[len(messages)-1], "writer exploded")

	logs, err := filepath.Glob(filepath.Join(env.logsDir, "run_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	events := readEvents(t, logs[0])
	assert.Equal(t, [][2]string{
		{"pipeline", "start"},
		{"research", "start"}, {"research", "done"},
		{"writer", "start"}, {"writer", "error"},
		{"pipeline", "error"},
	}, phaseEvents(events))
	assert.Equal(t, "writer exploded", events[4]["error"])
	assert.Contains(t, events[4], "duration_ms")
}

func TestRunPipelineCriticFailureCancelsSiblings(t *testing.T) {
	env := newTestEnv(t)
	agents := stubAgents(nil)
	criticErr := errors.New("critic backend down")

	var cancelled atomic.Int32
	for i := range agents.Critics {
		if i == 1 {
			agents.Critics[i] = agentFunc{role: RoleCritic, run: func(ctx context.Context, in Input) (Output, error) {
				return Output{}, criticErr
			}}
			continue
		}
		agents.Critics[i] = agentFunc{role: RoleCritic, run: func(ctx context.Context, in Input) (Output, error) {
			<-ctx.Done()
			cancelled.Add(1)
			return Output{}, ctx.Err()
		}}
	}

	_, err := NewOrchestrator(agents, env.posts, env.logsDir, logging.NewDiscardLogger()).
		RunPipeline(context.Background(), testBrief(), nil)
	require.ErrorIs(t, err, criticErr)
	assert.Equal(t, int32(3), cancelled.Load())

	files, err := env.posts.ListQueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRunPipelineIgnoresProgressFailures(t *testing.T) {
	env := newTestEnv(t)
	progress := func(ctx context.Context, msg string) error {
		return errors.New("chat unavailable")
	}

	result, err := NewOrchestrator(stubAgents(nil), env.posts, env.logsDir, logging.NewDiscardLogger()).
		RunPipeline(context.Background(), testBrief(), progress)
	require.NoError(t, err)
	assert.FileExists(t, result.QueueFile)
}

func TestRunPipelineCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	agents := stubAgents(nil)
	ctx, cancel := context.WithCancel(context.Background())
	agents.Writer = agentFunc{role: RoleWriter, run: func(ctx context.Context, in Input) (Output, error) {
		cancel()
		<-ctx.Done()
		return Output{}, ctx.Err()
	}}

	_, err := NewOrchestrator(agents, env.posts, env.logsDir, logging.NewDiscardLogger()).
		RunPipeline(ctx, testBrief(), nil)
	require.ErrorIs(t, err, context.Canceled)

	files, err := env.posts.ListQueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}
