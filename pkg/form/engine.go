package form

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	theme "github.com/goliatone/go-theme"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/submission"
	"github.com/goliatone/go-formflow/pkg/upload"
	"github.com/goliatone/go-formflow/pkg/widget"
)

// Uploads is the upload manager surface used by the engine and the default
// processor.
type Uploads interface {
	widget.UploadHandler
	submission.Uploads
	Discard(ctx context.Context, state *session.FormState, field string) error
	MaxFileSize() int64
}

// Processor runs the submission sinks for a fully valid request.
type Processor interface {
	Process(ctx context.Context, req submission.Request) (*submission.Outcome, error)
}

// Request describes one HTTP request against a form.
type Request struct {
	// FormID is the numeric id or the alias of the form.
	FormID string
	// Method is the HTTP method. Only POST can carry a submission.
	Method string
	// Fields holds the parsed request body.
	Fields url.Values
	// Files holds the uploaded files, keyed by field name.
	Files map[string]*model.PostedFile
	// SessionID scopes the stored form state to one visitor.
	SessionID string
	// Ajax suppresses the page title decoration on errors.
	Ajax bool
	// PageTitle is the title of the hosting page.
	PageTitle string
	// RequestToken is echoed as the REQUEST_TOKEN hidden field.
	RequestToken string
	Locale       string
	// User is the authenticated member, zero for guests.
	User model.Submitter
}

// Redirect tells the host where the visitor goes after a submission.
type Redirect struct {
	URL string
	// Reload asks the host to redirect to the current page.
	Reload bool
}

// Response is the result of handling a request.
type Response struct {
	Markup   string
	Widgets  []render.WidgetView
	Hidden   []render.HiddenField
	Messages []render.MessageView
	HasError bool
	// PageTitle is the page title, decorated when validation failed.
	PageTitle string
	Redirect  *Redirect
	Outcome   *submission.Outcome
	States    []State
}

// Engine coordinates widgets, session state, uploads and the submission
// processor for every form served by a host.
type Engine struct {
	schemas           schema.Provider
	sessions          session.Store
	registry          *widget.Registry
	uploads           Uploads
	processor         Processor
	processorOptions  []submission.Option
	renderer          *render.FormRenderer
	templateDir       string
	translator        render.Translator
	onMissing         render.MissingTranslationHandler
	clock             clock.Clock
	hasher            widget.PasswordHasher
	minPasswordLength int
	formats           widget.Formats
	themes            theme.ThemeSelector
	themeName         string
	themeVariant      string
	metrics           Recorder
	logger            *zap.SugaredLogger
	valueTTL          time.Duration
	collectHooks      []FieldCollectionHook
	loadHooks         []FieldLoadHook
	validateHooks     []FieldValidateHook
	initialiseErr     error
}

// New constructs an Engine. Missing collaborators are replaced with the
// built-in implementations: in-memory sessions, the embedded pongo2
// templates, the embedded translation catalog, bcrypt and a staging upload
// manager.
func New(options ...Option) *Engine {
	e := &Engine{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.applyDefaults()
	return e
}

func (e *Engine) applyDefaults() {
	if e.logger == nil {
		e.logger = zap.S()
	}
	if e.registry == nil {
		e.registry = widget.DefaultRegistry()
	}
	if e.sessions == nil {
		e.sessions = session.NewMemoryStore()
	}
	if e.translator == nil {
		e.translator = render.DefaultCatalog()
	}
	if e.clock == nil {
		e.clock = clock.System
	}
	if e.hasher == nil {
		e.hasher = widget.BcryptHasher{}
	}
	if e.metrics == nil {
		e.metrics = nopRecorder{}
	}
	if e.formats == (widget.Formats{}) {
		e.formats = widget.DefaultFormats()
	}

	if e.renderer == nil {
		engine, err := gotemplate.New(
			gotemplate.WithBaseDir(e.templateDir),
			gotemplate.WithFS(render.TemplatesFS()),
			gotemplate.WithTemplateFunc(render.TemplateI18nFuncs(e.translator, render.TemplateI18nConfig{OnMissing: e.onMissing})),
		)
		if err != nil {
			e.initialiseErr = errors.Join(e.initialiseErr, fmt.Errorf("form: template engine: %w", err))
		} else {
			e.renderer = render.NewFormRenderer(engine)
		}
	}

	if e.uploads == nil {
		manager, err := defaultUploads(e.logger)
		if err != nil {
			e.initialiseErr = errors.Join(e.initialiseErr, err)
		} else {
			e.uploads = manager
		}
	}

	if e.processor == nil {
		opts := []submission.Option{
			submission.WithClock(e.clock),
			submission.WithTranslator(e.translator),
			submission.WithFormats(e.formats),
			submission.WithLogger(e.logger),
		}
		if e.uploads != nil {
			opts = append(opts, submission.WithUploads(e.uploads))
		}
		e.processor = submission.NewProcessor(append(opts, e.processorOptions...)...)
	}
}

func defaultUploads(logger *zap.SugaredLogger) (*upload.Manager, error) {
	index, err := upload.NewFilesystemIndex()
	if err != nil {
		return nil, fmt.Errorf("form: storage index: %w", err)
	}
	manager, err := upload.NewManager(index, upload.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("form: upload manager: %w", err)
	}
	return manager, nil
}

// cycle is the request scoped working set.
type cycle struct {
	req      Request
	form     model.FormConfig
	fields   []model.FieldDescriptor
	state    *session.FormState
	deps     *widget.Deps
	widgets  []widget.Widget
	messages map[session.MessageClass][]string
	life     *lifecycle
	hasError bool
}

// HandleFormRequest renders the form or, for a POST carrying the form's
// marker token, validates and processes the submission. Configuration
// problems are returned as errors. With strict sinks a failed sink returns
// the error together with the response.
func (e *Engine) HandleFormRequest(ctx context.Context, req Request) (*Response, error) {
	c, err := e.open(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock, err := e.sessions.Lock(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("form: lock session: %w", err)
	}
	defer unlock()

	key := c.form.Key()
	if c.state, err = e.sessions.Load(ctx, req.SessionID, key); err != nil {
		return nil, fmt.Errorf("form: load state: %w", err)
	}
	dirty := c.state.ExpireStale(e.clock.Now(), e.valueTTL)
	c.deps = e.deps(c)

	if err := e.buildWidgets(ctx, c); err != nil {
		return nil, err
	}

	if !SubmitIntent(c.form, req) {
		bindAll(c, widget.Input{Session: c.state.Values})
		if c.drain() || dirty {
			if err := e.save(ctx, c); err != nil {
				return nil, err
			}
		}
		return e.respond(c)
	}

	if err := c.life.move(StateValidating); err != nil {
		return nil, err
	}
	bindAll(c, widget.Input{Post: req.Fields, Files: req.Files, Session: c.state.Values, Fresh: true})
	if err := e.validate(ctx, c); err != nil {
		return nil, err
	}
	post := e.settle(ctx, c)

	if c.hasError {
		if err := c.life.move(StateRenderWithErrors); err != nil {
			return nil, err
		}
		c.drain()
		if err := e.save(ctx, c); err != nil {
			return nil, err
		}
		return e.respond(c)
	}

	return e.process(ctx, c, post)
}

// drain takes the queued messages for this render. Messages stay queued
// while a submission redirects.
func (c *cycle) drain() bool {
	c.messages = c.state.DrainMessages()
	return c.messages != nil
}

// Render returns the markup of a form as a visitor would see it on a plain
// GET without changing any stored state. Queued messages are shown but stay
// queued.
func (e *Engine) Render(ctx context.Context, req Request) (*Response, error) {
	c, err := e.open(ctx, req)
	if err != nil {
		return nil, err
	}
	state := session.NewFormState()
	if strings.TrimSpace(req.SessionID) != "" {
		loaded, err := e.sessions.Load(ctx, req.SessionID, c.form.Key())
		if err != nil {
			return nil, fmt.Errorf("form: load state: %w", err)
		}
		state = loaded.Clone()
	}
	state.ExpireStale(e.clock.Now(), e.valueTTL)
	c.state = state
	c.messages = state.Clone().DrainMessages()
	c.deps = e.deps(c)

	if err := e.buildWidgets(ctx, c); err != nil {
		return nil, err
	}
	bindAll(c, widget.Input{Session: c.state.Values})
	return e.respond(c)
}

// SubmitIntent reports whether req is a submission of form. The posted
// marker must match the form's token exactly.
func SubmitIntent(form model.FormConfig, req Request) bool {
	if !strings.EqualFold(strings.TrimSpace(req.Method), "POST") || req.Fields == nil {
		return false
	}
	values, ok := req.Fields[render.FormSubmitField]
	if !ok || len(values) == 0 {
		return false
	}
	return values[0] == form.MarkerToken()
}

func (e *Engine) open(ctx context.Context, req Request) (*cycle, error) {
	if e.initialiseErr != nil {
		return nil, e.initialiseErr
	}
	if e.schemas == nil {
		return nil, errors.New("form: schema provider is not configured")
	}
	def, err := e.schemas.Definition(ctx, req.FormID)
	if err != nil {
		return nil, fmt.Errorf("form: load %q: %w", req.FormID, err)
	}
	fields := def.Fields
	for _, hook := range e.collectHooks {
		if fields, err = hook.CompileFormFields(ctx, def.Form, fields); err != nil {
			return nil, fmt.Errorf("form: field collection hook: %w", err)
		}
	}
	return &cycle{req: req, form: def.Form, fields: fields, life: newLifecycle()}, nil
}

func (e *Engine) deps(c *cycle) *widget.Deps {
	return &widget.Deps{
		Translator:        e.translator,
		OnMissing:         e.onMissing,
		Locale:            c.req.Locale,
		Hasher:            e.hasher,
		Uploads:           e.uploads,
		State:             c.state,
		MinPasswordLength: e.minPasswordLength,
		AllowTags:         c.form.AllowTags,
		Formats:           e.formats,
	}
}

// buildWidgets creates one widget per registered field type in declaration
// order and assigns the layout row classes.
func (e *Engine) buildWidgets(ctx context.Context, c *cycle) error {
	widgets := make([]widget.Widget, 0, len(c.fields))
	for _, field := range c.fields {
		w, ok := e.registry.WidgetFor(field, c.deps)
		if !ok {
			e.logger.Debugw("field type not registered", "form", c.form.Key(), "field", field.Name, "type", field.Type)
			continue
		}
		for _, hook := range e.loadHooks {
			next, err := hook.LoadFormField(ctx, c.form, w)
			if err != nil {
				return fmt.Errorf("form: field load hook %q: %w", field.Name, err)
			}
			if w = next; w == nil {
				break
			}
		}
		if w != nil {
			widgets = append(widgets, w)
		}
	}
	assignRows(widgets)
	c.widgets = widgets
	return nil
}

type confirmRow interface {
	SetConfirmRowClass(class string)
}

func assignRows(widgets []widget.Widget) {
	total := 0
	for _, w := range widgets {
		total += w.Rows()
	}
	last := total - 1
	row := 0
	for _, w := range widgets {
		w.SetRowClass(RowClass(row, last))
		if confirm, ok := w.(confirmRow); ok && w.Rows() > 1 {
			confirm.SetConfirmRowClass(RowClass(row+1, last))
		}
		row += w.Rows()
	}
}

// RowClass returns the CSS classes of layout row index within rows 0..last.
func RowClass(index, last int) string {
	parts := []string{fmt.Sprintf("row_%d", index)}
	if index == 0 {
		parts = append(parts, "row_first")
	}
	if index == last {
		parts = append(parts, "row_last")
	}
	if index%2 == 0 {
		parts = append(parts, "even")
	} else {
		parts = append(parts, "odd")
	}
	return strings.Join(parts, " ")
}

func bindAll(c *cycle, in widget.Input) {
	for _, w := range c.widgets {
		w.Bind(in)
	}
}

// validate runs every widget and the validate hooks. A failing widget never
// stops the others.
func (e *Engine) validate(ctx context.Context, c *cycle) error {
	for i, w := range c.widgets {
		w.Validate(ctx)
		for _, hook := range e.validateHooks {
			next, err := hook.ValidateFormField(ctx, c.form, w)
			if err != nil {
				return fmt.Errorf("form: field validate hook %q: %w", w.Name(), err)
			}
			if next != nil {
				w = next
			}
		}
		c.widgets[i] = w
	}
	return nil
}

// settle mirrors valid values into the session, drops uploads of failing
// fields and returns the posted keys no widget owns.
func (e *Engine) settle(ctx context.Context, c *cycle) url.Values {
	post := cloneValues(c.req.Fields)
	key := c.form.Key()
	for _, w := range c.widgets {
		for _, consumed := range w.ConsumedKeys() {
			post.Del(consumed)
		}
		field := w.Descriptor()
		if w.HasErrors() {
			c.hasError = true
			e.metrics.ValidationFailed(key, w.Name())
			if field.Type == model.FieldTypeUpload && e.uploads != nil {
				if err := e.uploads.Discard(ctx, c.state, w.Name()); err != nil {
					e.logger.Errorw("discard upload", "form", key, "field", w.Name(), "error", err)
				}
			}
			continue
		}
		if w.SubmitsInput() && mirrored(field) {
			c.state.SetValue(w.Name(), w.Value().Encode())
		}
	}
	post.Del(render.FormSubmitField)
	post.Del(render.RequestTokenField)
	post.Del(render.MaxFileSizeField)
	return post
}

func mirrored(field model.FieldDescriptor) bool {
	if field.Name == "" {
		return false
	}
	switch field.Type {
	case model.FieldTypePassword, model.FieldTypeUpload:
		return false
	}
	return true
}

// Result aggregates the values of the submitting widgets in field order.
// The cc pseudo field only sets CopyToSubmitter.
func Result(widgets []widget.Widget, post url.Values) model.SubmissionResult {
	var result model.SubmissionResult
	for _, w := range widgets {
		if w.Name() == "" || !w.SubmitsInput() {
			continue
		}
		if w.Name() == submission.CopyField {
			result.CopyToSubmitter = truthy(w.Value().String())
			continue
		}
		field := w.Descriptor()
		result.Fields = append(result.Fields, model.SubmittedField{
			Name:  field.Name,
			Label: field.DisplayLabel(),
			Type:  field.Type,
			Rgxp:  field.Rgxp,
			Value: w.Value(),
		})
	}
	if !result.CopyToSubmitter && truthy(post.Get(submission.CopyField)) {
		result.CopyToSubmitter = true
	}
	return result
}

func truthy(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0" && !strings.EqualFold(v, "false") && v != "[]"
}

func (e *Engine) process(ctx context.Context, c *cycle, post url.Values) (*Response, error) {
	if err := c.life.move(StateProcessing); err != nil {
		return nil, err
	}
	key := c.form.Key()
	outcome, err := e.processor.Process(ctx, submission.Request{
		Form:      c.form,
		Fields:    c.fields,
		Result:    Result(c.widgets, post),
		Post:      post,
		State:     c.state,
		Submitter: c.req.User,
		Locale:    c.req.Locale,
	})

	var integrity *model.UploadIntegrityError
	if errors.As(err, &integrity) {
		e.logger.Errorw("upload could not be stored", "form", key, "field", integrity.Field, "error", integrity.Err)
		e.markUnstored(c, integrity)
		c.hasError = true
		e.metrics.FormSubmitted(key, true)
		if err := c.life.move(StateRenderWithErrors); err != nil {
			return nil, err
		}
		c.drain()
		if err := e.save(ctx, c); err != nil {
			return nil, err
		}
		return e.respond(c)
	}
	if outcome == nil {
		if err == nil {
			err = errors.New("processor returned no outcome")
		}
		e.logger.Errorw("submission aborted", "form", key, "error", err)
		if saveErr := e.save(ctx, c); saveErr != nil {
			e.logger.Errorw("save form state", "form", key, "error", saveErr)
		}
		return nil, fmt.Errorf("form: process %s: %w", key, err)
	}

	e.metrics.FormSubmitted(key, outcome.Failed)
	if moveErr := c.life.move(StateRedirectOrReload); moveErr != nil {
		return nil, moveErr
	}
	if saveErr := e.save(ctx, c); saveErr != nil {
		return nil, saveErr
	}
	resp := &Response{
		PageTitle: c.req.PageTitle,
		Redirect:  &Redirect{URL: outcome.RedirectURL, Reload: outcome.Reload},
		Outcome:   outcome,
		States:    c.life.trace(),
	}
	if err != nil {
		return resp, fmt.Errorf("form: process %s: %w", key, err)
	}
	return resp, nil
}

func (e *Engine) markUnstored(c *cycle, failure *model.UploadIntegrityError) {
	name := filepath.Base(failure.Path)
	if pending, ok := c.state.Pending(failure.Field); ok && pending.OriginalName != "" {
		name = pending.OriginalName
	}
	for _, w := range c.widgets {
		if w.Name() == failure.Field {
			w.AddError(e.translate(c, "ERR.upload.store", name))
			return
		}
	}
}

func (e *Engine) save(ctx context.Context, c *cycle) error {
	if err := e.sessions.Save(ctx, c.req.SessionID, c.form.Key(), c.state); err != nil {
		return fmt.Errorf("form: save state: %w", err)
	}
	return nil
}

func (e *Engine) translate(c *cycle, key string, args ...any) string {
	return render.Translate(e.translator, c.req.Locale, key, e.onMissing, args...)
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for key, values := range in {
		out[key] = append([]string(nil), values...)
	}
	return out
}
