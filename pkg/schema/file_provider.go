package schema

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"
)

// FileProvider serves definitions parsed from a file tree and can re-read
// the tree without interrupting readers.
type FileProvider struct {
	fsys   fs.FS
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	current *StaticProvider
}

// FileOption customises a FileProvider.
type FileOption func(*FileProvider)

// WithProviderLogger sets the logger used on reload.
func WithProviderLogger(logger *zap.SugaredLogger) FileOption {
	return func(p *FileProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFileProvider loads every form document in fsys.
func NewFileProvider(fsys fs.FS, opts ...FileOption) (*FileProvider, error) {
	if fsys == nil {
		return nil, errors.New("schema: file system is required")
	}
	p := &FileProvider{fsys: fsys, logger: zap.S()}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewDirProvider loads form documents below dir.
func NewDirProvider(dir string, opts ...FileOption) (*FileProvider, error) {
	return NewFileProvider(os.DirFS(dir), opts...)
}

// Reload re-parses the tree. On error the previous definitions stay active.
func (p *FileProvider) Reload() error {
	next, err := LoadFS(p.fsys)
	if err != nil {
		p.logger.Errorw("form schema reload failed", "error", err)
		return err
	}
	p.mu.Lock()
	p.current = next
	p.mu.Unlock()
	p.logger.Debugw("form schemas loaded", "forms", next.IDs())
	return nil
}

// Definition implements Provider.
func (p *FileProvider) Definition(ctx context.Context, formID string) (Definition, error) {
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current == nil {
		return Definition{}, ErrFormNotFound
	}
	return current.Definition(ctx, formID)
}

// IDs lists the loaded form ids.
func (p *FileProvider) IDs() []string {
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current == nil {
		return nil
	}
	return current.IDs()
}
