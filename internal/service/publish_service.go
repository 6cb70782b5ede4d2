package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/postforge/internal/metrics"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/repository"
	"github.com/maheshrc27/postforge/pkg/utils"
)

const (
	SourceQueue     = "queue"
	SourcePublished = "published"

	publishPreviewRunes = 200
)

var (
	ErrQueueEmpty    = errors.New("publish queue is empty")
	ErrEmptyPost     = errors.New("queued post has no text")
	ErrUnknownSource = errors.New("unknown post source")
)

type PublishResult struct {
	QueueFile     string `json:"queue_file"`
	PublishedFile string `json:"published_file"`
	MessageID     int64  `json:"message_id"`
	Preview       string `json:"preview"`
}

type EditResult struct {
	Source         string `json:"source"`
	Filename       string `json:"filename"`
	ChannelUpdated bool   `json:"channel_updated"`
	ChannelError   string `json:"channel_error,omitempty"`
}

type QueueStatus struct {
	Queued         []*models.PostSummary `json:"queued"`
	PublishedCount int                   `json:"published_count"`
}

// PublishService moves posts from the queue to the channel and keeps the
// archive, the content plan and the channel in step with edits.
type PublishService interface {
	PublishNext(ctx context.Context) (*PublishResult, error)
	EditPost(ctx context.Context, source, filename, text string) (*EditResult, error)
	GetPost(ctx context.Context, source, filename string) (*models.PostRecord, error)
	QueueStatus(ctx context.Context) (*QueueStatus, error)
}

type publishService struct {
	posts    repository.PostRepository
	delivery Delivery
	planner  PlannerService
	mirror   ArchiveMirror
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics

	// one publish at a time within the process
	mu sync.Mutex
}

// NewPublishService wires the publish flow. mirror may be nil.
func NewPublishService(
	posts repository.PostRepository,
	delivery Delivery,
	planner PlannerService,
	mirror ArchiveMirror,
	logger logrus.FieldLogger,
	m *metrics.Metrics) PublishService {
	return &publishService{
		posts:    posts,
		delivery: delivery,
		planner:  planner,
		mirror:   mirror,
		logger:   logger.WithField("component", "publisher"),
		metrics:  m,
	}
}

// PublishNext delivers the oldest queued post, archives it with the channel
// message id and closes its plan topic. A post with empty text stays at the
// head of the queue until it is edited.
func (s *publishService) PublishNext(ctx context.Context) (*PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queueFile, post, err := s.posts.GetNext(ctx)
	if err != nil {
		s.metrics.PublishAttempt("error")
		return nil, err
	}
	if post == nil {
		s.metrics.PublishAttempt("empty_queue")
		return nil, ErrQueueEmpty
	}

	log := s.logger.WithField("file", filepath.Base(queueFile))
	if strings.TrimSpace(post.FinalPost) == "" {
		log.Error("publish_empty_post")
		s.metrics.PublishAttempt("empty_post")
		return nil, fmt.Errorf("%s: %w", filepath.Base(queueFile), ErrEmptyPost)
	}

	messageID, err := s.delivery.Send(ctx, post.FinalPost)
	if err != nil {
		log.WithError(err).Error("publish_send_failed")
		s.metrics.PublishAttempt("error")
		return nil, err
	}
	log = log.WithField("message_id", messageID)

	publishedFile, err := s.posts.MarkPublished(ctx, queueFile, map[string]any{"message_id": messageID})
	if err != nil {
		// already in the channel; the next publish will deliver it again
		log.WithError(err).Error("publish_archive_failed")
		s.metrics.PublishAttempt("error")
		return nil, fmt.Errorf("archive delivered post: %w", err)
	}
	log.Info("post_published")
	s.metrics.PublishAttempt("ok")

	if id := post.UserAnswers.PlanTopicID; id != nil {
		if err := s.planner.MarkTopicUsed(ctx, *id, post.UserAnswers.PlanFile); err != nil {
			log.WithError(err).WithField("topic_id", *id).Error("plan_mark_used_failed")
		}
	}

	s.mirrorArchive(ctx, log, publishedFile)

	return &PublishResult{
		QueueFile:     queueFile,
		PublishedFile: publishedFile,
		MessageID:     messageID,
		Preview:       utils.Truncate(post.FinalPost, publishPreviewRunes),
	}, nil
}

func (s *publishService) mirrorArchive(ctx context.Context, log logrus.FieldLogger, publishedFile string) {
	if s.mirror == nil {
		return
	}
	name := filepath.Base(publishedFile)
	record, err := s.posts.GetByFilename(ctx, s.posts.PublishedDir(), name)
	if err != nil {
		log.WithError(err).Warn("archive_mirror_failed")
		return
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		log.WithError(err).Warn("archive_mirror_failed")
		return
	}
	if err := s.mirror.Mirror(ctx, name, data); err != nil {
		log.WithError(err).Warn("archive_mirror_failed")
	}
}

// EditPost replaces the text of a queued or published post. For published
// posts with a known message id the channel message is edited too; a failed
// channel edit is reported but the file edit stands.
func (s *publishService) EditPost(ctx context.Context, source, filename, text string) (*EditResult, error) {
	dir, err := s.dirFor(source)
	if err != nil {
		return nil, err
	}
	if err := s.posts.UpdatePost(ctx, dir, filename, text); err != nil {
		return nil, err
	}

	result := &EditResult{Source: source, Filename: filename}
	log := s.logger.WithFields(logrus.Fields{"file": filename, "source": source})
	if source != SourcePublished {
		log.Info("post_edited")
		return result, nil
	}

	post, err := s.posts.GetByFilename(ctx, dir, filename)
	if err != nil {
		return nil, err
	}
	if post.MessageID == nil {
		result.ChannelError = "message id unknown, channel not updated"
		log.Warn("channel_edit_skipped")
		return result, nil
	}
	if err := s.delivery.Edit(ctx, *post.MessageID, text); err != nil {
		result.ChannelError = utils.Truncate(err.Error(), 200)
		log.WithError(err).Warn("channel_edit_failed")
		return result, nil
	}
	result.ChannelUpdated = true
	log.Info("post_edited")
	return result, nil
}

func (s *publishService) GetPost(ctx context.Context, source, filename string) (*models.PostRecord, error) {
	dir, err := s.dirFor(source)
	if err != nil {
		return nil, err
	}
	return s.posts.GetByFilename(ctx, dir, filename)
}

func (s *publishService) QueueStatus(ctx context.Context) (*QueueStatus, error) {
	queued, err := s.posts.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	published, err := s.posts.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueStatus{Queued: queued, PublishedCount: len(published)}, nil
}

func (s *publishService) dirFor(source string) (string, error) {
	switch source {
	case SourceQueue:
		return s.posts.QueueDir(), nil
	case SourcePublished:
		return s.posts.PublishedDir(), nil
	default:
		return "", fmt.Errorf("%q: %w", source, ErrUnknownSource)
	}
}
