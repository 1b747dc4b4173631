// Package submission runs the sinks of a fully valid form submission.
package submission

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/mailer"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/upload"
	"github.com/goliatone/go-formflow/pkg/widget"
)

// Sink names used in logs, metrics and Outcome.SinkErrors.
const (
	SinkEmail    = "email"
	SinkDatabase = "database"
	SinkSession  = "session"
)

// Uploads is the slice of the upload manager used by the processor.
type Uploads interface {
	Commit(ctx context.Context, state *session.FormState, fields []model.FieldDescriptor, opts upload.CommitOptions) ([]model.UploadedFile, error)
	Reset(ctx context.Context, state *session.FormState)
}

// Request is one valid submission handed over by the form engine.
type Request struct {
	Form   model.FormConfig
	Fields []model.FieldDescriptor
	Result model.SubmissionResult
	// Post holds the posted keys no widget consumed.
	Post      url.Values
	State     *session.FormState
	Submitter model.Submitter
	Locale    string
}

// Outcome is the result of a processor run.
type Outcome struct {
	Result      model.SubmissionResult
	RedirectURL string
	Reload      bool
	Failed      bool
	SinkErrors  map[string]error
}

// Redirect reports whether the visitor is sent to another page.
func (o *Outcome) Redirect() bool { return o != nil && o.RedirectURL != "" }

// SinkFailureObserver is told about every failed sink.
type SinkFailureObserver func(form, sink string, err error)

// Processor runs the configured sinks and hooks.
type Processor struct {
	mailer      mailer.Mailer
	store       store.Relational
	uploads     Uploads
	clock       clock.Clock
	translator  render.Translator
	formats     widget.Formats
	location    *time.Location
	sender      string
	senderName  string
	baseURL     string
	strict      bool
	prepare     []PrepareHook
	processed   []ProcessedHook
	storeRow    []StoreRowHook
	onSinkError SinkFailureObserver
	logger      *zap.SugaredLogger
}

// Option configures a Processor.
type Option func(*Processor)

// WithMailer sets the e-mail transport.
func WithMailer(m mailer.Mailer) Option {
	return func(p *Processor) { p.mailer = m }
}

// WithStore sets the relational store of the database sink.
func WithStore(s store.Relational) Option {
	return func(p *Processor) { p.store = s }
}

// WithUploads sets the upload manager.
func WithUploads(u Uploads) Option {
	return func(p *Processor) { p.uploads = u }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(p *Processor) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithTranslator sets the translator used for subjects and audit text.
func WithTranslator(t render.Translator) Option {
	return func(p *Processor) { p.translator = t }
}

// WithFormats sets the date layouts used to parse date-like values.
func WithFormats(f widget.Formats) Option {
	return func(p *Processor) { p.formats = f }
}

// WithLocation sets the zone date values are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Processor) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithSender sets the envelope sender of submission e-mails.
func WithSender(address, name string) Option {
	return func(p *Processor) {
		p.sender = strings.TrimSpace(address)
		p.senderName = strings.TrimSpace(name)
	}
}

// WithBaseURL is prepended to stored file paths linked from e-mails.
func WithBaseURL(base string) Option {
	return func(p *Processor) { p.baseURL = strings.TrimRight(base, "/") }
}

// WithStrictSinks turns any sink failure into an error.
func WithStrictSinks(strict bool) Option {
	return func(p *Processor) { p.strict = strict }
}

// WithPrepareHooks appends prepare hooks, run in order.
func WithPrepareHooks(hooks ...PrepareHook) Option {
	return func(p *Processor) { p.prepare = append(p.prepare, hooks...) }
}

// WithProcessedHooks appends processed hooks, run in order.
func WithProcessedHooks(hooks ...ProcessedHook) Option {
	return func(p *Processor) { p.processed = append(p.processed, hooks...) }
}

// WithStoreRowHooks appends hooks applied to database rows.
func WithStoreRowHooks(hooks ...StoreRowHook) Option {
	return func(p *Processor) { p.storeRow = append(p.storeRow, hooks...) }
}

// WithSinkFailureObserver registers a callback for failed sinks.
func WithSinkFailureObserver(fn SinkFailureObserver) Option {
	return func(p *Processor) { p.onSinkError = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor builds a Processor.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		clock:    clock.System,
		formats:  widget.DefaultFormats(),
		location: time.UTC,
		logger:   zap.S(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Process runs the full submission pipeline. Configuration problems and
// upload integrity failures abort before any sink runs. Sink failures are
// collected in the outcome and only returned as an error in strict mode.
func (p *Processor) Process(ctx context.Context, req Request) (*Outcome, error) {
	if req.State == nil {
		return nil, errors.New("submission: form state is required")
	}
	if err := p.checkConfig(req); err != nil {
		return nil, err
	}

	result := req.Result.Clone()
	if p.uploads != nil {
		files, err := p.uploads.Commit(ctx, req.State, req.Fields, upload.CommitOptions{Submitter: req.Submitter})
		if err != nil {
			return nil, err
		}
		result.UploadedFiles = files
	}

	for _, hook := range p.prepare {
		next, err := hook.PrepareSubmission(ctx, req.Form, result)
		if err != nil {
			return nil, fmt.Errorf("submission: prepare hook: %w", err)
		}
		result = next
	}

	outcome := &Outcome{Result: result, SinkErrors: map[string]error{}}
	if req.Form.SendViaEmail {
		p.runSink(req, outcome, SinkEmail, func() error { return p.sendMail(ctx, req, result) })
	}
	if req.Form.StoreValues {
		p.runSink(req, outcome, SinkDatabase, func() error { return p.storeRowFor(ctx, req, result) })
	}
	p.runSink(req, outcome, SinkSession, func() error { return p.persistSession(req) })

	for _, hook := range p.processed {
		if err := hook.ProcessedSubmission(ctx, req.Form, result); err != nil {
			p.logger.Errorw("processed hook failed", "form", req.Form.Key(), "error", err)
		}
	}

	if p.uploads != nil {
		p.uploads.Reset(ctx, req.State)
	} else {
		req.State.PendingUploads = nil
	}

	p.audit(req)

	if msg := strings.TrimSpace(req.Form.Confirmation); msg != "" {
		req.State.AddMessage(session.MessageConfirm, msg)
	}
	if target := strings.TrimSpace(req.Form.JumpTo); target != "" {
		outcome.RedirectURL = target
	} else {
		outcome.Reload = true
	}

	if outcome.Failed && p.strict {
		errs := make([]error, 0, len(outcome.SinkErrors))
		for _, name := range []string{SinkEmail, SinkDatabase, SinkSession} {
			if err, ok := outcome.SinkErrors[name]; ok {
				errs = append(errs, err)
			}
		}
		return outcome, errors.Join(errs...)
	}
	return outcome, nil
}

func (p *Processor) runSink(req Request, outcome *Outcome, name string, run func() error) {
	err := run()
	if err == nil {
		return
	}
	var transport *model.TransportError
	if !errors.As(err, &transport) {
		err = &model.TransportError{Sink: name, Err: err}
	}
	outcome.Failed = true
	outcome.SinkErrors[name] = err
	p.logger.Errorw("sink failed", "form", req.Form.Key(), "sink", name, "error", err)
	if p.onSinkError != nil {
		p.onSinkError(req.Form.Key(), name, err)
	}
}

func (p *Processor) checkConfig(req Request) error {
	form := req.Form
	key := form.Key()
	if form.SendViaEmail {
		if strings.TrimSpace(form.Recipient) == "" {
			return &model.ConfigurationError{Form: key, Setting: "recipient", Message: "e-mail sink has no recipient"}
		}
		if _, err := ParseRecipients(form.Recipient); err != nil {
			return &model.ConfigurationError{Form: key, Setting: "recipient", Message: err.Error()}
		}
		if p.mailer == nil {
			return &model.ConfigurationError{Form: key, Setting: "mailer", Message: "e-mail sink has no mailer"}
		}
		if p.sender == "" {
			return &model.ConfigurationError{Form: key, Setting: "sender", Message: "e-mail sink has no sender address"}
		}
	}
	if form.StoreValues {
		if strings.TrimSpace(form.TargetTable) == "" {
			return &model.ConfigurationError{Form: key, Setting: "targetTable", Message: "database sink has no target table"}
		}
		if p.store == nil {
			return &model.ConfigurationError{Form: key, Setting: "store", Message: "database sink has no relational store"}
		}
	}
	for _, field := range req.Fields {
		if field.Type != model.FieldTypeUpload || !field.StoreFile {
			continue
		}
		if upload.TargetDir(field, req.Submitter) == "" {
			return &model.ConfigurationError{Form: key, Setting: "uploadFolder", Message: fmt.Sprintf("field %q stores files but has no upload folder", field.Name)}
		}
	}
	return nil
}

// ParseRecipients parses a comma separated recipient list.
func ParseRecipients(list string) ([]string, error) {
	addrs, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient list %q: %w", list, err)
	}
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		if addr.Name == "" {
			out[i] = addr.Address
			continue
		}
		out[i] = addr.String()
	}
	return out, nil
}

// ReplyTo derives the reply address from the posted email and name fields,
// falling back to firstname and lastname.
func ReplyTo(result model.SubmissionResult) string {
	address := result.Text("email")
	if address == "" || !widget.IsEmail(address) {
		return ""
	}
	name := result.Text("name")
	if name == "" {
		name = strings.TrimSpace(result.Text("firstname") + " " + result.Text("lastname"))
	}
	return (&mail.Address{Name: name, Address: address}).String()
}

func (p *Processor) translate(locale, key string, args ...any) string {
	return render.Translate(p.translator, locale, key, nil, args...)
}

// BuildMail assembles the e-mail for result without sending it.
func (p *Processor) BuildMail(req Request, result model.SubmissionResult) (mailer.Message, error) {
	form := req.Form
	recipients, err := ParseRecipients(form.Recipient)
	if err != nil {
		return mailer.Message{}, err
	}
	fields := MailFields(result, form.SkipEmpty)

	msg := mailer.Message{
		From:     p.sender,
		FromName: p.senderName,
		To:       recipients,
		ReplyTo:  ReplyTo(result),
		Subject:  strings.TrimSpace(form.Subject),
	}
	if msg.Subject == "" {
		msg.Subject = p.translate(req.Locale, "MSC.mailSubject", firstNonEmpty(form.Title, form.Key()))
	}

	var body strings.Builder
	switch form.MailFormatOrDefault() {
	case model.MailFormatEmail:
		body.WriteString(result.Text("message"))
		body.WriteString("\n")
		if subject := result.Text("subject"); subject != "" {
			msg.Subject = subject
		}
	case model.MailFormatXML:
		data, err := EncodeXML(fields)
		if err != nil {
			return mailer.Message{}, err
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{Name: "form.xml", ContentType: "application/xml", Data: data})
		body.WriteString(PlainBody(fields))
	case model.MailFormatCSV:
		data, err := EncodeCSV(fields)
		if err != nil {
			return mailer.Message{}, err
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{Name: "form.csv", ContentType: "text/comma-separated-values", Data: data})
		body.WriteString(PlainBody(fields))
	case model.MailFormatCSVExcel:
		data, err := EncodeExcelCSV(fields)
		if err != nil {
			return mailer.Message{}, err
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{Name: "form.csv", ContentType: "text/comma-separated-values", Data: data})
		body.WriteString(PlainBody(fields))
	default:
		body.WriteString(PlainBody(fields))
	}

	var links []string
	for _, file := range result.UploadedFiles {
		if file.Persisted() {
			links = append(links, p.fileURL(file.StoredPath))
			continue
		}
		if file.TempPath != "" {
			msg.Attachments = append(msg.Attachments, mailer.Attachment{Name: file.OriginalName, ContentType: file.MimeType, Path: file.TempPath})
		}
	}
	if len(links) > 0 {
		body.WriteString("\n")
		body.WriteString(p.translate(req.Locale, "MSC.uploadedFiles"))
		body.WriteString("\n")
		for _, link := range links {
			body.WriteString(link)
			body.WriteString("\n")
		}
	}
	msg.Body = body.String()

	if result.CopyToSubmitter {
		if address := result.Text("email"); widget.IsEmail(address) {
			msg.Cc = append(msg.Cc, address)
		}
	}
	return msg, nil
}

func (p *Processor) fileURL(stored string) string {
	clean := path.Clean("/" + strings.ReplaceAll(stored, "\\", "/"))
	if p.baseURL == "" {
		return clean
	}
	return p.baseURL + clean
}

func (p *Processor) sendMail(ctx context.Context, req Request, result model.SubmissionResult) error {
	msg, err := p.BuildMail(req, result)
	if err != nil {
		return err
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		return &model.TransportError{Sink: SinkEmail, Err: err}
	}
	return nil
}

// BuildRow maps result onto the columns of schema.
func (p *Processor) BuildRow(schema store.Schema, result model.SubmissionResult) store.Row {
	row := store.Row{}
	if schema.ColumnExists("tstamp") {
		row["tstamp"] = p.clock.Now().Unix()
	}
	stored := make(map[string]string, len(result.UploadedFiles))
	for _, file := range result.UploadedFiles {
		if file.Persisted() {
			stored[file.FieldName] = file.StoredPath
		}
	}

	for _, field := range result.Fields {
		if !schema.ColumnExists(field.Name) {
			p.logger.Debugw("column not found, value skipped", "table", schema.Table, "column", field.Name)
			continue
		}
		if storedPath, ok := stored[field.Name]; ok {
			row[field.Name] = storedPath
			continue
		}
		if field.Value.IsEmpty() {
			row[field.Name] = schema.EmptyValueFor(field.Name)
			continue
		}
		if field.Value.IsMulti() {
			row[field.Name] = field.Value.Encode()
			continue
		}
		value := field.Value.String()
		if field.Rgxp.IsDateLike() {
			if ts, ok := p.timestamp(field.Rgxp, value); ok {
				row[field.Name] = ts
				continue
			}
		}
		row[field.Name] = value
	}
	return row
}

func (p *Processor) timestamp(kind model.RegexpKind, value string) (int64, bool) {
	layout := p.formats.Layout(kind)
	t, err := time.ParseInLocation(layout, value, p.location)
	if err != nil {
		return 0, false
	}
	if kind == model.RegexpTime {
		return int64(t.Hour()*3600 + t.Minute()*60 + t.Second()), true
	}
	return t.Unix(), true
}

func (p *Processor) storeRowFor(ctx context.Context, req Request, result model.SubmissionResult) error {
	table := req.Form.TargetTable
	schema, err := p.store.Schema(ctx, table)
	if err != nil {
		return &model.TransportError{Sink: SinkDatabase, Err: err}
	}
	row := p.BuildRow(schema, result)
	for _, hook := range p.storeRow {
		next, err := hook.StoreRow(ctx, req.Form, row)
		if err != nil {
			return fmt.Errorf("store row hook: %w", err)
		}
		row = next
	}
	if err := p.store.Insert(ctx, table, row); err != nil {
		return &model.TransportError{Sink: SinkDatabase, Err: err}
	}
	return nil
}

func (p *Processor) persistSession(req Request) error {
	for key, values := range req.Post {
		name := strings.TrimSuffix(key, "[]")
		if name == "" || render.ReservedField(name) {
			continue
		}
		cleaned := make([]string, len(values))
		for i, v := range values {
			cleaned[i] = sessionText(v, req.Form.AllowTags)
		}
		if len(cleaned) > 1 || strings.HasSuffix(key, "[]") {
			req.State.SetValue(name, model.EncodeMultiValue(cleaned))
			continue
		}
		if len(cleaned) == 1 {
			req.State.SetValue(name, cleaned[0])
		}
	}
	now := p.clock.Now()
	req.State.SubmittedAt = &now
	return nil
}

func sessionText(raw string, allowTags bool) string {
	if allowTags {
		return html.UnescapeString(widget.SanitizeText(raw, true))
	}
	return html.EscapeString(widget.SanitizeText(raw, false))
}

func (p *Processor) audit(req Request) {
	key := req.Form.Key()
	if req.Submitter.Authenticated() {
		p.logger.Infow("form submitted",
			"form", key,
			"user", req.Submitter.Username,
			"message", p.translate(req.Locale, "MSC.submittedBy", key, req.Submitter.Username),
		)
		return
	}
	p.logger.Infow("form submitted",
		"form", key,
		"user", "",
		"message", p.translate(req.Locale, "MSC.submittedByGuest", key),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
