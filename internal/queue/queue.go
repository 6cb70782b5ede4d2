package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

type ScheduledTask struct {
	ID        string    `json:"id"`
	ProcessAt time.Time `json:"process_at"`
}

// Scheduler enqueues a "publish next" run to happen after a delay.
type Scheduler interface {
	SchedulePublish(ctx context.Context, requestedBy string, delay time.Duration) (*ScheduledTask, error)
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type asynqScheduler struct {
	client taskEnqueuer
	now    func() time.Time
}

func NewScheduler(client *asynq.Client) Scheduler {
	return &asynqScheduler{client: client, now: time.Now}
}

func (s *asynqScheduler) SchedulePublish(ctx context.Context, requestedBy string, delay time.Duration) (*ScheduledTask, error) {
	if delay < 0 {
		return nil, fmt.Errorf("negative delay %s", delay)
	}

	payload, err := json.Marshal(PublishNextPayload{RequestedBy: requestedBy, RequestedAt: s.now()})
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TaskTypePublishNext, payload)
	info, err := s.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay), asynq.MaxRetry(publishMaxRetry))
	if err != nil {
		return nil, fmt.Errorf("enqueue publish task: %w", err)
	}
	return &ScheduledTask{ID: info.ID, ProcessAt: info.NextProcessAt}, nil
}
