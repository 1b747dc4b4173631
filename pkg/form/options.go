package form

import (
	"time"

	theme "github.com/goliatone/go-theme"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/mailer"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/render/template"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/submission"
	"github.com/goliatone/go-formflow/pkg/widget"
)

// Option customises the engine configuration.
type Option func(*Engine)

// WithSchemaProvider sets where form definitions come from.
func WithSchemaProvider(provider schema.Provider) Option {
	return func(e *Engine) {
		e.schemas = provider
	}
}

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(store session.Store) Option {
	return func(e *Engine) {
		e.sessions = store
	}
}

// WithWidgetRegistry replaces the built-in widget registry.
func WithWidgetRegistry(registry *widget.Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithUploads injects the upload manager.
func WithUploads(uploads Uploads) Option {
	return func(e *Engine) {
		e.uploads = uploads
	}
}

// WithProcessor replaces the submission processor. Processor options passed
// to the engine are ignored when a processor is injected.
func WithProcessor(processor Processor) Option {
	return func(e *Engine) {
		e.processor = processor
	}
}

// WithProcessorOptions configures the default submission processor.
func WithProcessorOptions(opts ...submission.Option) Option {
	return func(e *Engine) {
		e.processorOptions = append(e.processorOptions, opts...)
	}
}

// WithMailer sets the mailer of the default processor.
func WithMailer(m mailer.Mailer) Option {
	return WithProcessorOptions(submission.WithMailer(m))
}

// WithStore sets the relational store of the default processor.
func WithStore(s store.Relational) Option {
	return WithProcessorOptions(submission.WithStore(s))
}

// WithTemplateRenderer renders through engine instead of the embedded
// pongo2 templates.
func WithTemplateRenderer(engine template.TemplateRenderer) Option {
	return func(e *Engine) {
		if engine != nil {
			e.renderer = render.NewFormRenderer(engine)
		}
	}
}

// WithTemplateDir lets templates in dir override the embedded ones by name
// (form_text.tpl, form_wrapper.tpl, ...). Ignored with WithTemplateRenderer.
func WithTemplateDir(dir string) Option {
	return func(e *Engine) {
		e.templateDir = dir
	}
}

// WithTranslator sets the translator used for messages and labels.
func WithTranslator(t render.Translator) Option {
	return func(e *Engine) {
		e.translator = t
	}
}

// WithMissingTranslationHandler controls the text used for unknown keys.
func WithMissingTranslationHandler(handler render.MissingTranslationHandler) Option {
	return func(e *Engine) {
		e.onMissing = handler
	}
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithPasswordHasher replaces bcrypt.
func WithPasswordHasher(hasher widget.PasswordHasher) Option {
	return func(e *Engine) {
		e.hasher = hasher
	}
}

// WithMinPasswordLength sets the global minimum password length.
func WithMinPasswordLength(n int) Option {
	return func(e *Engine) {
		e.minPasswordLength = n
	}
}

// WithFormats sets the date and time layouts.
func WithFormats(formats widget.Formats) Option {
	return func(e *Engine) {
		e.formats = formats
	}
}

// WithThemeSelector passes a go-theme selector whose tokens are handed to
// the templates.
func WithThemeSelector(selector theme.ThemeSelector, name, variant string) Option {
	return func(e *Engine) {
		e.themes = selector
		e.themeName = name
		e.themeVariant = variant
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.metrics = recorder
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithValueTTL drops session values this long after the last submission.
// Zero keeps them until the session store expires the state.
func WithValueTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.valueTTL = ttl
	}
}

// WithFieldCollectionHooks appends hooks run after descriptors are loaded.
func WithFieldCollectionHooks(hooks ...FieldCollectionHook) Option {
	return func(e *Engine) {
		e.collectHooks = append(e.collectHooks, hooks...)
	}
}

// WithFieldLoadHooks appends hooks run for every widget before binding.
func WithFieldLoadHooks(hooks ...FieldLoadHook) Option {
	return func(e *Engine) {
		e.loadHooks = append(e.loadHooks, hooks...)
	}
}

// WithFieldValidateHooks appends hooks run after every widget validated.
func WithFieldValidateHooks(hooks ...FieldValidateHook) Option {
	return func(e *Engine) {
		e.validateHooks = append(e.validateHooks, hooks...)
	}
}

// WithPrepareSubmissionHooks appends hooks of the default processor.
func WithPrepareSubmissionHooks(hooks ...PrepareSubmissionHook) Option {
	return WithProcessorOptions(submission.WithPrepareHooks(hooks...))
}

// WithProcessedSubmissionHooks appends hooks of the default processor.
func WithProcessedSubmissionHooks(hooks ...ProcessedSubmissionHook) Option {
	return WithProcessorOptions(submission.WithProcessedHooks(hooks...))
}

// WithStoreRowHooks appends hooks of the default processor.
func WithStoreRowHooks(hooks ...StoreRowHook) Option {
	return WithProcessorOptions(submission.WithStoreRowHooks(hooks...))
}
