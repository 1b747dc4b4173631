// Package upload validates posted files, stages them so they survive the
// request, and persists them into their target folders once a submission is
// accepted. Failed submissions never leave orphaned files behind.
package upload

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/session"
)

// Defaults applied when no option overrides them.
const (
	DefaultMaxFileSize    int64 = 2048000
	DefaultMaxImageWidth        = 800
	DefaultMaxImageHeight       = 600
)

// DefaultExtensions is the allow-list used by fields that declare none.
var DefaultExtensions = []string{"jpg", "jpeg", "gif", "png", "pdf", "txt", "csv", "doc", "docx", "odt", "xls", "xlsx", "ods", "zip"}

// RejectObserver is notified about every rejected file.
type RejectObserver func(field string, kind RejectKind)

// Manager implements the upload lifecycle: Accept during validation, Commit
// after every widget validated, Discard for fields that failed and Reset
// once a submission has been processed.
type Manager struct {
	index          StorageIndex
	stagingDir     string
	maxFileSize    int64
	maxImageWidth  int
	maxImageHeight int
	extensions     []string
	observer       RejectObserver
	logger         *zap.SugaredLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithStagingDir sets where accepted files wait for the submission to
// complete.
func WithStagingDir(dir string) Option {
	return func(m *Manager) {
		if dir = strings.TrimSpace(dir); dir != "" {
			m.stagingDir = dir
		}
	}
}

// WithMaxFileSize sets the global size limit in bytes. Zero disables it.
func WithMaxFileSize(bytes int64) Option {
	return func(m *Manager) {
		if bytes >= 0 {
			m.maxFileSize = bytes
		}
	}
}

// WithImageLimits sets the global pixel limits. Zero disables a dimension.
func WithImageLimits(width, height int) Option {
	return func(m *Manager) {
		m.maxImageWidth = width
		m.maxImageHeight = height
	}
}

// WithDefaultExtensions replaces the allow-list used by fields without one.
// An empty list allows every extension.
func WithDefaultExtensions(exts ...string) Option {
	return func(m *Manager) {
		m.extensions = normalizeExtensions(exts)
	}
}

// WithRejectObserver registers a callback for rejected files.
func WithRejectObserver(observer RejectObserver) Option {
	return func(m *Manager) {
		m.observer = observer
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs a Manager and ensures the staging directory exists.
func NewManager(index StorageIndex, opts ...Option) (*Manager, error) {
	if index == nil {
		return nil, errors.New("upload: storage index is required")
	}
	m := &Manager{
		index:          index,
		stagingDir:     filepath.Join(os.TempDir(), "formflow-staging"),
		maxFileSize:    DefaultMaxFileSize,
		maxImageWidth:  DefaultMaxImageWidth,
		maxImageHeight: DefaultMaxImageHeight,
		extensions:     normalizeExtensions(DefaultExtensions),
		logger:         zap.S(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if err := os.MkdirAll(m.stagingDir, 0o750); err != nil {
		return nil, fmt.Errorf("upload: create staging dir: %w", err)
	}
	return m, nil
}

// MaxFileSize returns the global size limit advertised to browsers.
func (m *Manager) MaxFileSize() int64 {
	return m.maxFileSize
}

// Accept validates file against field and stages it. On success the pending
// entry is recorded in state and returned. Validation failures are
// *RejectError values; ErrNoFile means nothing was selected.
func (m *Manager) Accept(ctx context.Context, state *session.FormState, field model.FieldDescriptor, file *model.PostedFile) (model.PendingUpload, error) {
	if file.Missing() {
		return model.PendingUpload{}, ErrNoFile
	}
	pending, err := m.validate(field, file)
	if err != nil {
		var rejected *RejectError
		if errors.As(err, &rejected) && m.observer != nil {
			m.observer(field.Name, rejected.Kind)
		}
		return model.PendingUpload{}, err
	}

	staged := filepath.Join(m.stagingDir, uuid.NewString()+filepath.Ext(pending.OriginalName))
	if err := copyFile(file.TempPath, staged); err != nil {
		return model.PendingUpload{}, fmt.Errorf("upload: stage %s: %w", pending.OriginalName, err)
	}
	pending.TempPath = staged

	if previous, ok := state.Pending(field.Name); ok {
		if err := m.removeFiles(ctx, previous); err != nil {
			m.logger.Errorw("remove replaced upload", "field", field.Name, "error", err)
		}
	}
	state.SetPending(field.Name, pending)
	m.logger.Debugw("upload staged", "field", field.Name, "name", pending.OriginalName, "size", pending.SizeBytes)
	return pending, nil
}

func (m *Manager) validate(field model.FieldDescriptor, file *model.PostedFile) (model.PendingUpload, error) {
	name, ok := SanitizeFilename(file.Filename)
	if !ok {
		return model.PendingUpload{}, reject(field.Name, KindFilename, file.Filename)
	}

	limit := m.maxFileSize
	if field.MaxFileSize > limit {
		limit = field.MaxFileSize
	}

	switch file.ErrorCode {
	case model.UploadOK:
	case model.UploadIniSize:
		return model.PendingUpload{}, reject(field.Name, KindTooLarge, name)
	case model.UploadFormSize:
		return model.PendingUpload{}, reject(field.Name, KindSizeLimit, name, ReadableSize(limit))
	case model.UploadPartial:
		return model.PendingUpload{}, reject(field.Name, KindPartial, name)
	default:
		return model.PendingUpload{}, reject(field.Name, KindTransport, name)
	}
	if !file.Genuine || file.TempPath == "" {
		return model.PendingUpload{}, reject(field.Name, KindTransport, name)
	}

	if limit > 0 && file.Size > limit {
		return model.PendingUpload{}, reject(field.Name, KindSizeLimit, name, ReadableSize(limit))
	}

	allowed := field.AllowedExtensions()
	if len(allowed) == 0 {
		allowed = m.extensions
	}
	ext := Extension(name)
	if len(allowed) > 0 && !contains(allowed, ext) {
		return model.PendingUpload{}, reject(field.Name, KindFileType, ext)
	}

	detected, err := mimetype.DetectFile(file.TempPath)
	if err != nil {
		return model.PendingUpload{}, reject(field.Name, KindTransport, name)
	}
	mime := detected.String()

	if strings.HasPrefix(mime, "image/") {
		if err := m.checkImage(field.Name, name, file.TempPath); err != nil {
			return model.PendingUpload{}, err
		}
	}

	return model.PendingUpload{
		OriginalName: name,
		MimeType:     mime,
		SizeBytes:    file.Size,
	}, nil
}

func (m *Manager) checkImage(field, name, path string) error {
	if m.maxImageWidth <= 0 && m.maxImageHeight <= 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return reject(field, KindTransport, name)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// formats without a registered decoder (svg, webp) are not measured
		return nil
	}
	if m.maxImageWidth > 0 && cfg.Width > m.maxImageWidth {
		return reject(field, KindImageWidth, name, m.maxImageWidth)
	}
	if m.maxImageHeight > 0 && cfg.Height > m.maxImageHeight {
		return reject(field, KindImageHeight, name, m.maxImageHeight)
	}
	return nil
}

// CommitOptions carries request scoped data for Commit.
type CommitOptions struct {
	Submitter model.Submitter
}

type committed struct {
	field    string
	previous model.PendingUpload
	dest     string
	id       string
}

// Commit persists pending uploads of fields configured to store files and
// returns every upload of the submission in field order. On failure all
// moves made by this call are undone and an *model.UploadIntegrityError is
// returned.
func (m *Manager) Commit(ctx context.Context, state *session.FormState, fields []model.FieldDescriptor, opts CommitOptions) ([]model.UploadedFile, error) {
	var (
		out  []model.UploadedFile
		done []committed
	)
	for _, field := range fields {
		pending, ok := state.Pending(field.Name)
		if !ok {
			continue
		}
		if pending.Uploaded || !field.StoreFile {
			out = append(out, uploadedFile(field.Name, pending))
			continue
		}

		dir := TargetDir(field, opts.Submitter)
		if dir == "" {
			m.rollback(ctx, state, done)
			return nil, &model.ConfigurationError{Setting: "uploadFolder", Message: fmt.Sprintf("field %q stores files but has no upload folder", field.Name)}
		}
		entry, err := m.persist(ctx, field, pending, dir)
		if err != nil {
			m.rollback(ctx, state, done)
			return nil, err
		}
		done = append(done, entry)

		stored := pending
		stored.Uploaded = true
		stored.StoredPath = entry.dest
		stored.UUID = entry.id
		stored.TempPath = ""
		state.SetPending(field.Name, stored)
		out = append(out, uploadedFile(field.Name, stored))
	}
	return out, nil
}

func (m *Manager) persist(ctx context.Context, field model.FieldDescriptor, pending model.PendingUpload, dir string) (committed, error) {
	entry := committed{field: field.Name, previous: pending}
	fail := func(path string, err error) (committed, error) {
		return entry, &model.UploadIntegrityError{Field: field.Name, Path: path, Err: err}
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fail(dir, err)
	}
	name := pending.OriginalName
	if field.DoNotOverwrite {
		unique, err := UniqueName(dir, name)
		if err != nil {
			return fail(filepath.Join(dir, name), err)
		}
		name = unique
	}
	dest := filepath.Join(dir, name)
	if err := moveFile(pending.TempPath, dest); err != nil {
		return fail(dest, err)
	}
	entry.dest = dest

	id, err := m.index.Register(ctx, dest)
	if err != nil {
		if mvErr := moveFile(dest, pending.TempPath); mvErr != nil {
			m.logger.Errorw("restore staged upload", "field", field.Name, "path", dest, "error", mvErr)
		}
		entry.dest = ""
		return fail(dest, err)
	}
	entry.id = id
	m.logger.Infow("upload stored", "field", field.Name, "path", dest, "uuid", id)
	return entry, nil
}

func (m *Manager) rollback(ctx context.Context, state *session.FormState, done []committed) {
	for i := len(done) - 1; i >= 0; i-- {
		entry := done[i]
		if entry.id != "" {
			if err := m.index.Delete(ctx, entry.id); err != nil {
				m.logger.Errorw("rollback index entry", "field", entry.field, "uuid", entry.id, "error", err)
			}
		}
		if entry.dest != "" {
			if err := moveFile(entry.dest, entry.previous.TempPath); err != nil {
				m.logger.Errorw("rollback upload move", "field", entry.field, "path", entry.dest, "error", err)
			}
		}
		state.SetPending(entry.field, entry.previous)
	}
}

// Discard drops the pending upload of field: the staged copy, any persisted
// file and its index record.
func (m *Manager) Discard(ctx context.Context, state *session.FormState, field string) error {
	pending, ok := state.Pending(field)
	if !ok {
		return nil
	}
	state.RemovePending(field)
	if err := m.removeFiles(ctx, pending); err != nil {
		return fmt.Errorf("upload: discard %s: %w", field, err)
	}
	m.logger.Debugw("upload discarded", "field", field, "name", pending.OriginalName)
	return nil
}

// Reset clears all upload bookkeeping after a processed submission. Staged
// files that were never persisted are deleted; persisted files stay.
func (m *Manager) Reset(_ context.Context, state *session.FormState) {
	for field, pending := range state.PendingUploads {
		if !pending.Uploaded && pending.TempPath != "" {
			if err := removeIfExists(pending.TempPath); err != nil {
				m.logger.Errorw("remove staged upload", "field", field, "error", err)
			}
		}
	}
	state.PendingUploads = make(map[string]model.PendingUpload)
}

func (m *Manager) removeFiles(ctx context.Context, pending model.PendingUpload) error {
	var errs []error
	if pending.TempPath != "" {
		errs = append(errs, removeIfExists(pending.TempPath))
	}
	if pending.StoredPath != "" {
		id := pending.UUID
		if id == "" {
			if rec, err := m.index.FindByPath(ctx, pending.StoredPath); err == nil {
				id = rec.ID
			}
		}
		if id != "" {
			errs = append(errs, m.index.Delete(ctx, id))
		}
		errs = append(errs, removeIfExists(pending.StoredPath))
	}
	return errors.Join(errs...)
}

// TargetDir resolves the folder a field stores files in.
func TargetDir(field model.FieldDescriptor, submitter model.Submitter) string {
	if field.UseHomeDir && strings.TrimSpace(submitter.HomeDir) != "" {
		return submitter.HomeDir
	}
	return strings.TrimSpace(field.UploadFolder)
}

func uploadedFile(field string, pending model.PendingUpload) model.UploadedFile {
	return model.UploadedFile{
		FieldName:    field,
		StoredPath:   pending.StoredPath,
		TempPath:     pending.TempPath,
		OriginalName: pending.OriginalName,
		MimeType:     pending.MimeType,
		SizeBytes:    pending.SizeBytes,
		UUID:         pending.UUID,
	}
}

func normalizeExtensions(exts []string) []string {
	return model.FieldDescriptor{Extensions: exts}.AllowedExtensions()
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
