package widget

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

// Static renders markup without taking input: explanations, raw html,
// fieldset boundaries and the submit button.
type Static struct {
	base
}

func newStatic(field model.FieldDescriptor, deps *Deps) Widget {
	return &Static{base: newBase(field, deps)}
}

// Bind implements Widget.
func (w *Static) Bind(Input) {}

// Validate implements Widget.
func (w *Static) Validate(context.Context) { w.errors = nil }

// SubmitsInput implements Widget.
func (w *Static) SubmitsInput() bool { return false }

// ConsumedKeys implements Widget.
func (w *Static) ConsumedKeys() []string { return nil }

// TemplateData implements Widget.
func (w *Static) TemplateData() render.WidgetView {
	view := w.view()
	view.Value = ""
	switch w.field.Type {
	case model.FieldTypeExplanation:
		view.Text = SanitizeText(w.field.Text, true)
	case model.FieldTypeHTML:
		view.Text = w.field.Text
	case model.FieldTypeSubmit:
		view.Label = firstNonEmpty(w.field.Label, w.deps.translate("MSC.submit"))
	}
	return view
}
