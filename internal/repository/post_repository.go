package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/pkg/utils"
)

const (
	postPrefix   = "post"
	previewRunes = 100
)

var ErrInvalidFilename = errors.New("invalid record filename")

// PostRepository is the durable post queue plus the published archive. The
// queue is FIFO by creation time; publishing moves a record into the archive
// under the same filename.
type PostRepository interface {
	Queue(ctx context.Context, post *models.PostRecord) (string, error)
	GetNext(ctx context.Context) (string, *models.PostRecord, error)
	MarkPublished(ctx context.Context, queueFile string, extra map[string]any) (string, error)
	UpdatePost(ctx context.Context, dir, filename, text string) error
	GetByFilename(ctx context.Context, dir, filename string) (*models.PostRecord, error)
	ListQueue(ctx context.Context) ([]*models.PostSummary, error)
	ListPublished(ctx context.Context) ([]*models.PostSummary, error)
	QueueDir() string
	PublishedDir() string
}

type postRepository struct {
	store        JSONStore
	queueDir     string
	publishedDir string
}

func NewPostRepository(store JSONStore, queueDir, publishedDir string) PostRepository {
	return &postRepository{
		store:        store,
		queueDir:     queueDir,
		publishedDir: publishedDir,
	}
}

func (r *postRepository) QueueDir() string     { return r.queueDir }
func (r *postRepository) PublishedDir() string { return r.publishedDir }

// Queue stamps the record as queued and persists it under a fresh
// timestamped filename. It returns the path of the queued file.
func (r *postRepository) Queue(ctx context.Context, post *models.PostRecord) (string, error) {
	now := time.Now()
	post.Status = models.PostStatusQueued
	post.QueuedAt = &now

	// the name follows the record into the archive, so it must be free there too
	path := filepath.Join(r.queueDir, r.store.NewFilename(postPrefix, r.queueDir, r.publishedDir))
	if err := r.store.Save(ctx, path, post); err != nil {
		return "", fmt.Errorf("queue post: %w", err)
	}
	return path, nil
}

// GetNext returns the oldest queued post, or an empty path and nil record
// when the queue is empty.
func (r *postRepository) GetNext(ctx context.Context) (string, *models.PostRecord, error) {
	files, err := r.store.List(ctx, r.queueDir, postPrefix)
	if err != nil {
		return "", nil, err
	}
	if len(files) == 0 {
		return "", nil, nil
	}

	oldest := files[0]
	var post models.PostRecord
	if err := r.store.Read(ctx, oldest, &post); err != nil {
		return "", nil, err
	}
	return oldest, &post, nil
}

// MarkPublished moves a queued record into the archive. Extra fields (for
// example the channel message id) are merged into the archived document.
// The record is handled as a raw document so fields this version does not
// know about survive the move.
func (r *postRepository) MarkPublished(ctx context.Context, queueFile string, extra map[string]any) (string, error) {
	doc, err := r.readDoc(ctx, queueFile)
	if err != nil {
		return "", err
	}

	for k, v := range extra {
		doc[k] = v
	}
	doc["status"] = models.PostStatusPublished
	doc["published_at"] = time.Now()

	publishedFile := filepath.Join(r.publishedDir, filepath.Base(queueFile))
	if err := r.store.Save(ctx, publishedFile, doc); err != nil {
		return "", fmt.Errorf("archive %s: %w", filepath.Base(queueFile), err)
	}
	if err := r.store.Remove(ctx, queueFile); err != nil {
		return "", fmt.Errorf("remove %s from queue: %w", filepath.Base(queueFile), err)
	}
	return publishedFile, nil
}

// UpdatePost replaces final_post of a queued or archived record in place.
func (r *postRepository) UpdatePost(ctx context.Context, dir, filename, text string) error {
	path, err := recordPath(dir, filename)
	if err != nil {
		return err
	}

	doc, err := r.readDoc(ctx, path)
	if err != nil {
		return err
	}
	doc["final_post"] = text
	doc["edited_at"] = time.Now()

	return r.store.Rewrite(ctx, path, doc)
}

// readDoc reads a record as a raw document. A file holding anything but a
// JSON object is corrupt.
func (r *postRepository) readDoc(ctx context.Context, path string) (map[string]any, error) {
	var doc map[string]any
	if err := r.store.Read(ctx, path, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrCorrupt)
	}
	return doc, nil
}

func (r *postRepository) GetByFilename(ctx context.Context, dir, filename string) (*models.PostRecord, error) {
	path, err := recordPath(dir, filename)
	if err != nil {
		return nil, err
	}
	var post models.PostRecord
	if err := r.store.Read(ctx, path, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListQueue(ctx context.Context) ([]*models.PostSummary, error) {
	return r.list(ctx, r.queueDir)
}

func (r *postRepository) ListPublished(ctx context.Context) ([]*models.PostSummary, error) {
	return r.list(ctx, r.publishedDir)
}

func (r *postRepository) list(ctx context.Context, dir string) ([]*models.PostSummary, error) {
	files, err := r.store.List(ctx, dir, postPrefix)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.PostSummary, 0, len(files))
	for _, file := range files {
		var post models.PostRecord
		if err := r.store.Read(ctx, file, &post); err != nil {
			return nil, err
		}
		summaries = append(summaries, &models.PostSummary{
			Filename:    filepath.Base(file),
			QueuedAt:    post.QueuedAt,
			PublishedAt: post.PublishedAt,
			Preview:     utils.Truncate(post.FinalPost, previewRunes) + "...",
		})
	}
	return summaries, nil
}

// recordPath joins dir and a bare filename coming from a caller.
func recordPath(dir, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%q: %w", filename, ErrInvalidFilename)
	}
	return filepath.Join(dir, filename), nil
}
