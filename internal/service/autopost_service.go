package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/pipeline"
	"github.com/maheshrc27/postforge/pkg/utils"
)

const (
	RunKindAutopost = "autopost"
	RunKindBrief    = "brief"

	RunRunning   = "running"
	RunDone      = "done"
	RunFailed    = "failed"
	RunCancelled = "cancelled"

	errorMessageRunes = 500
)

var (
	ErrRunInProgress  = errors.New("a run is already in progress for this user")
	ErrNoPendingTopic = errors.New("no pending topic in the content plan")
	ErrNoActiveRun    = errors.New("no active run for this user")
)

// RunStatus is a snapshot of a user's current or last run.
type RunStatus struct {
	Kind       string               `json:"kind"`
	State      string               `json:"state"`
	Brief      models.Brief         `json:"brief"`
	Topic      *models.PlannedTopic `json:"topic,omitempty"`
	Progress   []string             `json:"progress"`
	Result     *pipeline.RunResult  `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
}

// AutopostService runs pipelines in the background, at most one per user.
// Autopost runs take the next pending plan topic and hold it as queued until
// the run ends; a run that fails or is cancelled hands the topic back.
type AutopostService interface {
	StartAutopost(ctx context.Context, userID string) (*RunStatus, error)
	StartBrief(ctx context.Context, userID string, brief models.Brief) (*RunStatus, error)
	Cancel(ctx context.Context, userID string) error
	Current(userID string) (*RunStatus, bool)
	Shutdown(ctx context.Context) error
}

type runHandle struct {
	done chan struct{}

	mu        sync.Mutex
	cancel    context.CancelFunc
	stopAsked bool
	status    RunStatus
}

func (h *runHandle) snapshot() *RunStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.status
	s.Progress = append([]string(nil), h.status.Progress...)
	return &s
}

func (h *runHandle) running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status.State == RunRunning
}

type autopostService struct {
	orchestrator pipeline.Orchestrator
	planner      PlannerService
	logger       logrus.FieldLogger
	now          func() time.Time

	base     context.Context
	stopRuns context.CancelFunc
	wg       sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*runHandle
}

func NewAutopostService(orchestrator pipeline.Orchestrator, planner PlannerService, logger logrus.FieldLogger) AutopostService {
	base, stop := context.WithCancel(context.Background())
	return &autopostService{
		orchestrator: orchestrator,
		planner:      planner,
		logger:       logger.WithField("component", "autopost"),
		now:          time.Now,
		base:         base,
		stopRuns:     stop,
		runs:         make(map[string]*runHandle),
	}
}

// StartAutopost claims the next pending topic and runs the pipeline for it.
func (s *autopostService) StartAutopost(ctx context.Context, userID string) (*RunStatus, error) {
	h, prev, err := s.reserve(userID, RunKindAutopost)
	if err != nil {
		return nil, err
	}

	next, err := s.planner.GetNextTopic(ctx)
	if err == nil && next == nil {
		err = ErrNoPendingTopic
	}
	if err == nil {
		err = s.planner.MarkTopicQueued(ctx, next.ID, next.PlanFile)
	}
	if err != nil {
		s.release(userID, h, prev)
		return nil, err
	}

	return s.launch(userID, h, next.Brief(), next), nil
}

// StartBrief runs the pipeline for a brief supplied by the user.
func (s *autopostService) StartBrief(ctx context.Context, userID string, brief models.Brief) (*RunStatus, error) {
	h, _, err := s.reserve(userID, RunKindBrief)
	if err != nil {
		return nil, err
	}
	return s.launch(userID, h, brief, nil), nil
}

// reserve takes the user's run slot before any slow work so two concurrent
// requests cannot both start a run.
func (s *autopostService) reserve(userID, kind string) (*runHandle, *runHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.runs[userID]
	if prev != nil && prev.running() {
		return nil, nil, ErrRunInProgress
	}
	h := &runHandle{
		done:   make(chan struct{}),
		status: RunStatus{Kind: kind, State: RunRunning, StartedAt: s.now()},
	}
	s.runs[userID] = h
	return h, prev, nil
}

func (s *autopostService) release(userID string, h, prev *runHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[userID] != h {
		return
	}
	close(h.done)
	if prev != nil {
		s.runs[userID] = prev
	} else {
		delete(s.runs, userID)
	}
}

func (s *autopostService) launch(userID string, h *runHandle, brief models.Brief, next *models.PlannedTopic) *RunStatus {
	runCtx, cancel := context.WithCancel(s.base)

	h.mu.Lock()
	h.cancel = cancel
	h.status.Brief = brief
	h.status.Topic = next
	if h.stopAsked {
		cancel()
	}
	h.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "kind": h.status.Kind})
	if next != nil {
		log = log.WithField("topic_id", next.ID)
	}
	log.Info("run_started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(h.done)
		defer cancel()

		progress := func(_ context.Context, msg string) error {
			h.mu.Lock()
			h.status.Progress = append(h.status.Progress, msg)
			h.mu.Unlock()
			return nil
		}

		result, err := s.orchestrator.RunPipeline(runCtx, brief, progress)
		cancelled := err != nil && runCtx.Err() != nil
		if err != nil && next != nil {
			// the run context may be gone; compensation must still land
			if cerr := s.planner.MarkTopicPending(context.WithoutCancel(runCtx), next.ID, next.PlanFile); cerr != nil {
				log.WithError(cerr).Error("topic_compensation_failed")
			}
		}

		finished := s.now()
		h.mu.Lock()
		h.status.FinishedAt = &finished
		switch {
		case err == nil:
			h.status.State = RunDone
			h.status.Result = result
		case cancelled:
			h.status.State = RunCancelled
		default:
			h.status.State = RunFailed
			h.status.Error = utils.Truncate(err.Error(), errorMessageRunes)
		}
		h.mu.Unlock()

		switch {
		case err == nil:
			log.WithField("queue_file", result.QueueFile).Info("run_finished")
		case cancelled:
			log.Info("autopost_cancelled")
		default:
			log.WithError(err).Error("run_failed")
		}
	}()

	return h.snapshot()
}

// Cancel stops the user's active run and returns once it has unwound,
// including handing its topic back to the plan.
func (s *autopostService) Cancel(ctx context.Context, userID string) error {
	s.mu.Lock()
	h := s.runs[userID]
	s.mu.Unlock()
	if h == nil || !h.running() {
		return ErrNoActiveRun
	}

	h.mu.Lock()
	h.stopAsked = true
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for run to stop: %w", ctx.Err())
	}
}

func (s *autopostService) Current(userID string) (*RunStatus, bool) {
	s.mu.Lock()
	h := s.runs[userID]
	s.mu.Unlock()
	if h == nil {
		return nil, false
	}
	return h.snapshot(), true
}

// Shutdown cancels every run and waits for them to unwind.
func (s *autopostService) Shutdown(ctx context.Context) error {
	s.stopRuns()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
