package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/postforge/internal/service"
)

// HandlePublishNextTask publishes the oldest queued post. An empty queue is
// not an error; a post with no text is not retried.
func (q *Queue) HandlePublishNextTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishNextPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	log := q.logger.WithField("requested_by", payload.RequestedBy)

	res, err := q.publisher.PublishNext(ctx)
	switch {
	case err == nil:
		log.WithFields(logrus.Fields{
			"file":       res.PublishedFile,
			"message_id": res.MessageID,
		}).Info("queued_publish_done")
		return nil
	case errors.Is(err, service.ErrQueueEmpty):
		log.Info("queued_publish_queue_empty")
		return nil
	case errors.Is(err, service.ErrEmptyPost):
		log.WithError(err).Warn("queued_publish_skipped")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		log.WithError(err).Error("queued_publish_failed")
		return err
	}
}
