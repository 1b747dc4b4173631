// Package widget binds field descriptors to request data, validates and
// normalises their values and exposes the view data used to render them.
package widget

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/upload"
)

// Widget is the request scoped runtime form of one field.
type Widget interface {
	Descriptor() model.FieldDescriptor
	Name() string
	// Bind loads the raw value from posted or session data.
	Bind(in Input)
	// Validate checks and normalises the bound value. Errors accumulate.
	Validate(ctx context.Context)
	Value() model.Value
	Errors() []string
	AddError(message string)
	HasErrors() bool
	// SubmitsInput reports whether the value belongs in the submission.
	SubmitsInput() bool
	StoresValue() bool
	// ConsumedKeys lists the POST keys owned by the widget.
	ConsumedKeys() []string
	// Rows is the number of layout rows the widget occupies.
	Rows() int
	SetRowClass(class string)
	Template() string
	TemplateData() render.WidgetView
}

// Input carries the data a widget binds to. Fresh is true when Post holds
// the body of the current request.
type Input struct {
	Post    url.Values
	Files   map[string]*model.PostedFile
	Session map[string]string
	Fresh   bool
}

// Lookup returns the posted entries for name, accepting the "name[]" form
// used by multi-valued controls.
func (in Input) Lookup(name string) ([]string, bool) {
	if in.Post == nil || name == "" {
		return nil, false
	}
	if values, ok := in.Post[name]; ok {
		return values, true
	}
	values, ok := in.Post[name+"[]"]
	return values, ok
}

// UploadHandler is the slice of the upload manager used by upload widgets.
type UploadHandler interface {
	Accept(ctx context.Context, state *session.FormState, field model.FieldDescriptor, file *model.PostedFile) (model.PendingUpload, error)
}

// PasswordHasher turns a plain text password into an opaque hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// DefaultMinPasswordLength applies when a password field sets no minimum.
const DefaultMinPasswordLength = 8

// Deps are the request scoped collaborators widgets use.
type Deps struct {
	Translator        render.Translator
	OnMissing         render.MissingTranslationHandler
	Locale            string
	Hasher            PasswordHasher
	Uploads           UploadHandler
	State             *session.FormState
	MinPasswordLength int
	AllowTags         bool
	Formats           Formats
}

// Formats holds the layouts used for date-like values.
type Formats struct {
	Date     string
	Time     string
	DateTime string
}

// DefaultFormats returns ISO layouts.
func DefaultFormats() Formats {
	return Formats{Date: "2006-01-02", Time: "15:04", DateTime: "2006-01-02 15:04"}
}

// Layout returns the layout for a date-like regexp kind.
func (f Formats) Layout(kind model.RegexpKind) string {
	defaults := DefaultFormats()
	switch kind {
	case model.RegexpDate:
		return firstNonEmpty(f.Date, defaults.Date)
	case model.RegexpTime:
		return firstNonEmpty(f.Time, defaults.Time)
	case model.RegexpDatim:
		return firstNonEmpty(f.DateTime, defaults.DateTime)
	}
	return ""
}

func (d *Deps) translate(key string, args ...any) string {
	if d == nil {
		return render.Translate(nil, "", key, nil, args...)
	}
	return render.Translate(d.Translator, d.Locale, key, d.OnMissing, args...)
}

func (d *Deps) minPasswordLength() int {
	if d != nil && d.MinPasswordLength > 0 {
		return d.MinPasswordLength
	}
	return DefaultMinPasswordLength
}

// base carries the state shared by every widget type.
type base struct {
	field    model.FieldDescriptor
	deps     *Deps
	raw      []string
	bound    bool
	value    model.Value
	errors   []string
	rowClass string
	submits  bool
}

func newBase(field model.FieldDescriptor, deps *Deps) base {
	if deps == nil {
		deps = &Deps{}
	}
	return base{field: field, deps: deps}
}

func (b *base) Descriptor() model.FieldDescriptor { return b.field }
func (b *base) Name() string                      { return b.field.Name }
func (b *base) Value() model.Value                { return b.value }
func (b *base) Errors() []string                  { return append([]string(nil), b.errors...) }
func (b *base) HasErrors() bool                   { return len(b.errors) > 0 }
func (b *base) StoresValue() bool                 { return b.field.StoresValue() }
func (b *base) Rows() int                         { return 1 }
func (b *base) SetRowClass(class string)          { b.rowClass = class }
func (b *base) Template() string                  { return render.WidgetTemplate(string(b.field.Type)) }

func (b *base) AddError(message string) {
	if message = strings.TrimSpace(message); message != "" {
		b.errors = append(b.errors, message)
	}
}

func (b *base) SubmitsInput() bool {
	return b.submits && !b.HasErrors() && b.field.StoresValue()
}

func (b *base) ConsumedKeys() []string {
	if b.field.Name == "" {
		return nil
	}
	return []string{b.field.Name, b.field.Name + "[]"}
}

// bindRaw loads raw entries from the request, then the session, then the
// descriptor default. Session values of multi-valued widgets are decoded.
func (b *base) bindRaw(in Input, multi bool) {
	b.bound = false
	b.raw = nil
	if in.Fresh {
		values, ok := in.Lookup(b.field.Name)
		b.raw = values
		b.bound = ok
		return
	}
	if stored, ok := in.Session[b.field.Name]; ok {
		if multi {
			b.raw = model.DecodeMultiValue(stored)
		} else {
			b.raw = []string{stored}
		}
		b.bound = true
		return
	}
	if b.field.Value != "" {
		b.raw = []string{b.field.Value}
	}
}

func (b *base) first() string {
	if len(b.raw) == 0 {
		return ""
	}
	return b.raw[0]
}

func (b *base) label() string {
	return b.field.DisplayLabel()
}

// required reports whether an empty value fails validation. Fields that do
// not store their value are exempt.
func (b *base) required() bool {
	return b.field.Mandatory && b.field.StoresValue()
}

func (b *base) mandatoryError() {
	b.AddError(b.deps.translate("ERR.mandatory", b.label()))
}

func (b *base) view() render.WidgetView {
	id := b.field.ID
	if id == "" {
		id = b.field.Name
	}
	classes := []string{b.rowClass}
	if b.field.Class != "" {
		classes = append(classes, b.field.Class)
	}
	if b.field.Mandatory {
		classes = append(classes, "mandatory")
	}
	if b.HasErrors() {
		classes = append(classes, "error")
	}
	return render.WidgetView{
		Template:    b.Template(),
		Type:        string(b.field.Type),
		Name:        b.field.Name,
		ID:          id,
		Label:       b.field.Label,
		Mandatory:   b.field.Mandatory,
		Value:       b.value.String(),
		Errors:      b.Errors(),
		Class:       strings.Join(strings.Fields(strings.Join(classes, " ")), " "),
		Placeholder: b.field.Placeholder,
		MinLength:   b.field.MinLength,
		MaxLength:   b.field.MaxLength,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// uploadError translates an upload rejection.
func uploadError(deps *Deps, err *upload.RejectError) string {
	return deps.translate(err.TranslationKey(), err.Args...)
}
