package queue

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/postforge/internal/service"
)

const (
	TaskTypePublishNext = "publish:next"

	publishMaxRetry = 3
)

type PublishNextPayload struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// Queue handles delayed publish tasks from Redis.
type Queue struct {
	publisher service.PublishService
	logger    logrus.FieldLogger
}

func NewQueue(publisher service.PublishService, logger logrus.FieldLogger) *Queue {
	return &Queue{
		publisher: publisher,
		logger:    logger.WithField("component", "queue"),
	}
}

// Mux routes every task type this queue handles.
func (q *Queue) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishNext, q.HandlePublishNextTask)
	return mux
}
