package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a record file does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrCorrupt is returned when a record file exists but does not hold a
	// valid JSON record.
	ErrCorrupt = errors.New("record is not valid JSON")
)

const (
	recordExt        = ".json"
	tempPrefix       = ".tmp-"
	filenameLayout   = "20060102_150405"
	maxSequenceTries = 1000
)

// JSONStore persists one JSON document per file. Files in a directory are
// listed oldest first by modification time, so a directory works as a FIFO.
//
// There is no locking: every write is a plain read-modify-write and the
// process is assumed to be the only writer of a given file.
type JSONStore interface {
	Save(ctx context.Context, path string, v any) error
	Rewrite(ctx context.Context, path string, v any) error
	Read(ctx context.Context, path string, v any) error
	Remove(ctx context.Context, path string) error
	List(ctx context.Context, dir, prefix string) ([]string, error)
	NewFilename(prefix string, dirs ...string) string
	Exists(path string) bool
}

type jsonStore struct {
	now func() time.Time
}

// StoreOption customizes a JSONStore during construction.
type StoreOption func(*jsonStore)

// WithClock overrides the clock used for timestamped filenames.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *jsonStore) {
		s.now = clock
	}
}

func NewJSONStore(opts ...StoreOption) JSONStore {
	s := &jsonStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes v to path, creating parent directories on demand. The write
// goes through a temp file and a rename so a crash never leaves half a record.
func (s *jsonStore) Save(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, data)
}

// Rewrite replaces the contents of an existing record but keeps its
// modification time, so edits do not move the record in listing order.
func (s *jsonStore) Rewrite(ctx context.Context, path string, v any) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return err
	}
	if err := s.Save(ctx, path, v); err != nil {
		return err
	}
	return os.Chtimes(path, info.ModTime(), info.ModTime())
}

func (s *jsonStore) Read(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	return nil
}

func (s *jsonStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return err
	}
	return nil
}

// List returns the record files in dir whose name starts with prefix, oldest
// first by modification time. Ties are broken by name, which is
// timestamp-derived and sorts in creation order too. A missing directory is
// an empty listing.
func (s *jsonStore) List(ctx context.Context, dir, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if !strings.HasSuffix(name, recordExt) || !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, fileInfo{name: name, modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].name < files[j].name
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f.name)
	}
	return paths, nil
}

// NewFilename returns prefix_YYYYMMDD_HHMMSS.json. When that name is already
// taken in any of dirs a zero-padded sequence is appended
// (prefix_..._001.json) so names stay unique and keep sorting in creation
// order.
func (s *jsonStore) NewFilename(prefix string, dirs ...string) string {
	base := fmt.Sprintf("%s_%s", prefix, s.now().Format(filenameLayout))
	name := base + recordExt
	for seq := 1; seq < maxSequenceTries && s.takenIn(name, dirs); seq++ {
		name = fmt.Sprintf("%s_%03d%s", base, seq, recordExt)
	}
	return name
}

func (s *jsonStore) takenIn(name string, dirs []string) bool {
	for _, dir := range dirs {
		if s.Exists(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

func (s *jsonStore) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
