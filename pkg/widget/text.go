package widget

import (
	"context"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
)

// SanitizeText strips markup from plain text input and returns unescaped
// text. With allowHTML the user generated content policy is applied instead.
func SanitizeText(raw string, allowHTML bool) string {
	if allowHTML {
		return ugcPolicy.Sanitize(raw)
	}
	return html.UnescapeString(strictPolicy.Sanitize(raw))
}

// Text handles single line text and textarea fields.
type Text struct {
	base
}

func newText(field model.FieldDescriptor, deps *Deps) Widget {
	return &Text{base: newBase(field, deps)}
}

// Bind implements Widget.
func (w *Text) Bind(in Input) {
	w.bindRaw(in, false)
	w.value = model.SingleValue(w.first())
}

func (w *Text) allowsHTML() bool {
	return w.field.AllowsHTML || w.deps.AllowTags
}

// Validate implements Widget.
func (w *Text) Validate(_ context.Context) {
	w.errors = nil
	w.submits = false

	value := strings.TrimSpace(SanitizeText(w.first(), w.allowsHTML()))
	w.value = model.SingleValue(value)
	if value == "" {
		if w.required() {
			w.mandatoryError()
			return
		}
		w.submits = true
		return
	}

	w.checkBounds(value)
	if w.HasErrors() {
		return
	}
	value = w.checkRgxp(value)
	if w.HasErrors() {
		return
	}
	w.value = model.SingleValue(value)
	w.submits = true
}

// TemplateData implements Widget.
func (w *Text) TemplateData() render.WidgetView {
	view := w.view()
	if w.field.Type == model.FieldTypeText {
		if inputType := htmlInputType(w.field.Rgxp); inputType != "" {
			view.Attributes = map[string]string{"type": inputType}
		}
	}
	return view
}

func htmlInputType(kind model.RegexpKind) string {
	switch kind {
	case model.RegexpEmail:
		return "email"
	case model.RegexpURL:
		return "url"
	case model.RegexpPhone:
		return "tel"
	case model.RegexpDigit, model.RegexpNatural:
		return "number"
	}
	return ""
}

// Hidden carries a value that is never shown. It always submits input and
// ignores mandatory, length and range settings.
type Hidden struct {
	base
}

func newHidden(field model.FieldDescriptor, deps *Deps) Widget {
	return &Hidden{base: newBase(field, deps)}
}

// Bind implements Widget.
func (w *Hidden) Bind(in Input) {
	w.bindRaw(in, false)
	w.value = model.SingleValue(w.first())
}

// Validate implements Widget.
func (w *Hidden) Validate(_ context.Context) {
	w.errors = nil
	value := w.first()
	if !w.bound && w.field.Value != "" {
		value = w.field.Value
	}
	w.value = model.SingleValue(strings.TrimSpace(SanitizeText(value, false)))
	w.submits = true
}

// SubmitsInput implements Widget.
func (w *Hidden) SubmitsInput() bool { return w.field.StoresValue() && !w.HasErrors() }

// TemplateData implements Widget.
func (w *Hidden) TemplateData() render.WidgetView {
	return w.view()
}
