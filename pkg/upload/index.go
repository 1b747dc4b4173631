package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrNotIndexed is returned when a lookup finds no record.
var ErrNotIndexed = errors.New("upload: file is not indexed")

// Record is one entry of the storage index.
type Record struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// StorageIndex makes persisted files addressable by a stable identifier.
type StorageIndex interface {
	Register(ctx context.Context, path string) (string, error)
	FindByID(ctx context.Context, id string) (Record, error)
	FindByPath(ctx context.Context, path string) (Record, error)
	Delete(ctx context.Context, id string) error
}

// FilesystemIndex is an in-process StorageIndex. When a manifest path is
// configured the index is loaded from and written back to that JSON file.
type FilesystemIndex struct {
	mu       sync.RWMutex
	byID     map[string]Record
	byPath   map[string]string
	manifest string
	now      func() time.Time
}

var _ StorageIndex = (*FilesystemIndex)(nil)

// IndexOption configures a FilesystemIndex.
type IndexOption func(*FilesystemIndex)

// WithManifest persists the index to path.
func WithManifest(path string) IndexOption {
	return func(idx *FilesystemIndex) {
		idx.manifest = path
	}
}

// WithIndexClock overrides the registration timestamp source.
func WithIndexClock(now func() time.Time) IndexOption {
	return func(idx *FilesystemIndex) {
		if now != nil {
			idx.now = now
		}
	}
}

// NewFilesystemIndex constructs an index, loading the manifest when one is
// configured and present.
func NewFilesystemIndex(opts ...IndexOption) (*FilesystemIndex, error) {
	idx := &FilesystemIndex{
		byID:   make(map[string]Record),
		byPath: make(map[string]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(idx)
		}
	}
	if idx.manifest == "" {
		return idx, nil
	}
	data, err := os.ReadFile(idx.manifest)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("upload: read manifest: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("upload: parse manifest: %w", err)
	}
	for _, rec := range records {
		idx.byID[rec.ID] = rec
		idx.byPath[rec.Path] = rec.ID
	}
	return idx, nil
}

// Register implements StorageIndex. Registering a path twice returns the
// existing id.
func (idx *FilesystemIndex) Register(_ context.Context, path string) (string, error) {
	clean := filepath.Clean(path)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if id, ok := idx.byPath[clean]; ok {
		return id, nil
	}
	rec := Record{ID: uuid.NewString(), Path: clean, RegisteredAt: idx.now().UTC()}
	idx.byID[rec.ID] = rec
	idx.byPath[clean] = rec.ID
	if err := idx.flushLocked(); err != nil {
		delete(idx.byID, rec.ID)
		delete(idx.byPath, clean)
		return "", err
	}
	return rec.ID, nil
}

// FindByID implements StorageIndex.
func (idx *FilesystemIndex) FindByID(_ context.Context, id string) (Record, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	rec, ok := idx.byID[id]
	if !ok {
		return Record{}, ErrNotIndexed
	}
	return rec, nil
}

// FindByPath implements StorageIndex.
func (idx *FilesystemIndex) FindByPath(_ context.Context, path string) (Record, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	id, ok := idx.byPath[filepath.Clean(path)]
	if !ok {
		return Record{}, ErrNotIndexed
	}
	return idx.byID[id], nil
}

// Delete implements StorageIndex. Unknown ids are ignored.
func (idx *FilesystemIndex) Delete(_ context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.byID[id]
	if !ok {
		return nil
	}
	delete(idx.byID, id)
	delete(idx.byPath, rec.Path)
	return idx.flushLocked()
}

// Records returns all entries ordered by path.
func (idx *FilesystemIndex) Records() []Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.sortedLocked()
}

func (idx *FilesystemIndex) sortedLocked() []Record {
	out := make([]Record, 0, len(idx.byID))
	for _, rec := range idx.byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (idx *FilesystemIndex) flushLocked() error {
	if idx.manifest == "" {
		return nil
	}
	data, err := json.MarshalIndent(idx.sortedLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("upload: encode manifest: %w", err)
	}
	tmp := idx.manifest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("upload: write manifest: %w", err)
	}
	if err := os.Rename(tmp, idx.manifest); err != nil {
		return fmt.Errorf("upload: replace manifest: %w", err)
	}
	return nil
}

// Orphans walks root and returns files that have no index record. It is the
// reconciliation pass for crashes between a file move and its registration.
func Orphans(ctx context.Context, index StorageIndex, root string) ([]string, error) {
	var orphans []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, err := index.FindByPath(ctx, path); errors.Is(err, ErrNotIndexed) {
			orphans = append(orphans, path)
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload: reconcile %s: %w", root, err)
	}
	sort.Strings(orphans)
	return orphans, nil
}
