package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/metrics"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/repository"
	"github.com/maheshrc27/postforge/internal/search"
	"github.com/maheshrc27/postforge/internal/topic"
	"github.com/maheshrc27/postforge/pkg/utils"
)

const (
	PhaseResearch  = "research"
	PhaseWriter    = "writer"
	PhaseCritics   = "critics"
	PhaseRewriter  = "rewriter"
	PhasePublisher = "publisher"

	maxNotifiedErrorRunes = 500
)

// ProgressFunc receives human readable progress messages during a run.
// Errors are logged and otherwise ignored.
type ProgressFunc func(ctx context.Context, msg string) error

type RunResult struct {
	RunID         string             `json:"run_id"`
	FinalPost     string             `json:"final_post"`
	QueueFile     string             `json:"queue_file"`
	ChangelogFile string             `json:"changelog_file"`
	Metadata      *models.PostRecord `json:"metadata"`
}

// Orchestrator turns a brief into a queued post: research, draft, four
// parallel critiques, rewrite, queue.
type Orchestrator interface {
	RunPipeline(ctx context.Context, brief models.Brief, progress ProgressFunc) (*RunResult, error)
}

// Agents is the full set of pipeline roles. Critics run in slice order.
type Agents struct {
	Researcher Agent
	Writer     Agent
	Critics    []Agent
	Rewriter   Agent
}

// LoadAgents builds every role with its prompt from promptsDir.
func LoadAgents(gen llm.Generator, searcher search.Searcher, cfg *topic.Config, promptsDir string) (Agents, error) {
	researcherPrompt, err := LoadPrompt(promptsDir, "researcher.md")
	if err != nil {
		return Agents{}, err
	}
	writerPrompt, err := LoadPrompt(promptsDir, "writer.md")
	if err != nil {
		return Agents{}, err
	}
	guide, err := LoadPrompt(promptsDir, "writing_guide.md")
	if err != nil {
		return Agents{}, err
	}
	rewriterPrompt, err := LoadPrompt(promptsDir, "rewriter.md")
	if err != nil {
		return Agents{}, err
	}

	critics := make([]Agent, 0, len(Critics))
	for _, spec := range Critics {
		prompt, err := LoadPrompt(promptsDir, spec.PromptFile)
		if err != nil {
			return Agents{}, err
		}
		critics = append(critics, NewCritic(gen, spec.Name, prompt))
	}

	return Agents{
		Researcher: NewResearcher(gen, searcher, cfg, researcherPrompt),
		Writer:     NewWriter(gen, cfg, writerPrompt, guide),
		Critics:    critics,
		Rewriter:   NewRewriter(gen, rewriterPrompt),
	}, nil
}

type orchestrator struct {
	agents  Agents
	posts   repository.PostRepository
	logsDir string
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestrator) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *orchestrator) { o.now = now }
}

func NewOrchestrator(agents Agents, posts repository.PostRepository, logsDir string, logger logrus.FieldLogger, opts ...Option) Orchestrator {
	o := &orchestrator{
		agents:  agents,
		posts:   posts,
		logsDir: logsDir,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the state of one RunPipeline invocation.
type run struct {
	*orchestrator
	id       string
	brief    models.Brief
	progress ProgressFunc
	cl       *Changelog
	log      logrus.FieldLogger
}

// RunPipeline executes every phase in order. The first failing phase aborts
// the run and its error is returned as is; nothing is queued in that case.
func (o *orchestrator) RunPipeline(ctx context.Context, brief models.Brief, progress ProgressFunc) (*RunResult, error) {
	runID, err := utils.GenerateRunID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	cl, err := OpenChangelog(o.logsDir, runID, o.now)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	r := &run{
		orchestrator: o,
		id:           runID,
		brief:        brief,
		progress:     progress,
		cl:           cl,
		log:          o.logger.WithFields(logrus.Fields{"run_id": runID, "topic": brief.KeyTakeaway}),
	}

	o.metrics.RunStarted()
	defer o.metrics.RunEnded()

	cl.PipelineStart(logrus.Fields{"topic": brief.KeyTakeaway})
	r.log.Info("pipeline_start")

	result, err := r.execute(ctx)
	if err != nil {
		cl.PipelineError(err)
		r.log.WithError(err).Error("pipeline_error")
		o.metrics.RunFinished("error")
		r.notify(ctx, "Error: "+utils.Truncate(err.Error(), maxNotifiedErrorRunes))
		return nil, err
	}

	queueName := filepath.Base(result.QueueFile)
	cl.PipelineDone(logrus.Fields{"queue_file": queueName})
	r.log.WithField("queue_file", queueName).Info("pipeline_done")
	o.metrics.RunFinished("ok")
	return result, nil
}

func (r *run) execute(ctx context.Context) (*RunResult, error) {
	var (
		research  models.Research
		draft     string
		critiques []models.Critique
		finalPost string
		queueFile string
	)

	err := r.phase(ctx, PhaseResearch, "Phase 1/5: searching for sources...", func(ctx context.Context) (string, logrus.Fields, error) {
		out, err := r.agents.Researcher.Run(ctx, Input{Brief: r.brief})
		if err != nil {
			return "", nil, err
		}
		research = out.Research
		return "Research done", logrus.Fields{"sources": len(research.Sources())}, nil
	})
	if err != nil {
		return nil, err
	}

	err = r.phase(ctx, PhaseWriter, "Phase 2/5: writing the draft...", func(ctx context.Context) (string, logrus.Fields, error) {
		out, err := r.agents.Writer.Run(ctx, Input{Brief: r.brief, Research: research})
		if err != nil {
			return "", nil, err
		}
		draft = out.Draft
		return "Draft ready", logrus.Fields{"draft_chars": len([]rune(draft))}, nil
	})
	if err != nil {
		return nil, err
	}

	err = r.phase(ctx, PhaseCritics, "Phase 3/5: critics are reviewing...", func(ctx context.Context) (string, logrus.Fields, error) {
		var err error
		critiques, err = r.runCritics(ctx, draft, research)
		if err != nil {
			return "", nil, err
		}
		return "Critics finished", logrus.Fields{"critics_count": len(critiques)}, nil
	})
	if err != nil {
		return nil, err
	}

	err = r.phase(ctx, PhaseRewriter, "Phase 4/5: rewriting with the critics' notes...", func(ctx context.Context) (string, logrus.Fields, error) {
		out, err := r.agents.Rewriter.Run(ctx, Input{Draft: draft, Critiques: critiques, Research: research})
		if err != nil {
			return "", nil, err
		}
		finalPost = out.FinalPost
		return "Final version ready", logrus.Fields{"final_chars": len([]rune(finalPost))}, nil
	})
	if err != nil {
		return nil, err
	}

	record := &models.PostRecord{
		FinalPost:   finalPost,
		Draft:       draft,
		Research:    research,
		Critiques:   critiques,
		UserAnswers: r.brief,
	}
	err = r.phase(ctx, PhasePublisher, "Phase 5/5: adding to the queue...", func(ctx context.Context) (string, logrus.Fields, error) {
		var err error
		queueFile, err = r.posts.Queue(ctx, record)
		if err != nil {
			return "", nil, err
		}
		name := filepath.Base(queueFile)
		return "Post queued: " + name, logrus.Fields{"queue_file": name}, nil
	})
	if err != nil {
		return nil, err
	}

	return &RunResult{
		RunID:         r.id,
		FinalPost:     finalPost,
		QueueFile:     queueFile,
		ChangelogFile: r.cl.Path(),
		Metadata:      record,
	}, nil
}

// phase wraps one step with its progress messages, changelog events, log
// lines and timing.
func (r *run) phase(ctx context.Context, name, announce string, fn func(context.Context) (string, logrus.Fields, error)) error {
	log := r.log.WithField("phase", name)

	r.notify(ctx, announce)
	start := time.Now()
	r.cl.PhaseStart(name, nil)
	log.Info("phase_start")

	done, fields, err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		r.cl.PhaseError(name, err, nil)
		log.WithError(err).Error("phase_error")
		r.metrics.PhaseObserved(name, "error", elapsed)
		return err
	}

	r.cl.PhaseDone(name, fields)
	log.WithFields(fields).Info("phase_done")
	r.metrics.PhaseObserved(name, "ok", elapsed)
	r.notify(ctx, done)
	return nil
}

// runCritics fans the draft out to every critic and waits for all of them.
// The first error cancels the others and is returned; partial results are
// dropped.
func (r *run) runCritics(ctx context.Context, draft string, research models.Research) ([]models.Critique, error) {
	critiques := make([]models.Critique, len(r.agents.Critics))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range r.agents.Critics {
		g.Go(func() error {
			out, err := agent.Run(gctx, Input{Draft: draft, Research: research})
			if err != nil {
				return err
			}
			critiques[i] = out.Critique
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, c := range critiques {
		if c.Degraded() {
			r.log.WithFields(logrus.Fields{"phase": PhaseCritics, "critic": c.CriticName()}).Warn("critique_degraded")
			r.metrics.CritiqueDegraded(c.CriticName())
		}
	}
	return critiques, nil
}

func (r *run) notify(ctx context.Context, msg string) {
	if r.progress == nil {
		return
	}
	if err := r.progress(ctx, msg); err != nil {
		r.log.WithError(err).Warn("progress_notify_failed")
	}
}
