package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/postforge/internal/service"
)

// PublishJob is the daily trigger that sends the oldest queued post.
type PublishJob struct {
	publisher service.PublishService
	logger    logrus.FieldLogger
}

func NewPublishJob(publisher service.PublishService, logger logrus.FieldLogger) *PublishJob {
	return &PublishJob{
		publisher: publisher,
		logger:    logger.WithField("component", "publish_job"),
	}
}

// Spec is the cron expression firing once a day at hour:00:00.
func Spec(hour int) string {
	return fmt.Sprintf("0 0 %d * * *", hour)
}

// Register adds the daily trigger to c. The schedule is evaluated in the
// location c was created with.
func (j *PublishJob) Register(c *cron.Cron, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("publish hour %d out of range", hour)
	}
	return c.AddFunc(Spec(hour), j.Publish)
}

func (j *PublishJob) Publish() {
	ctx := context.Background()

	res, err := j.publisher.PublishNext(ctx)
	switch {
	case err == nil:
		j.logger.WithFields(logrus.Fields{
			"file":       res.PublishedFile,
			"message_id": res.MessageID,
		}).Info("scheduled_publish_done")
	case errors.Is(err, service.ErrQueueEmpty):
		j.logger.Info("scheduled_publish_queue_empty")
	case errors.Is(err, service.ErrEmptyPost):
		j.logger.WithError(err).Warn("scheduled_publish_skipped")
	default:
		j.logger.WithError(err).Error("scheduled_publish_failed")
	}
}
