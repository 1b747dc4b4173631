package widget

import (
	"context"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

// Choice backs radio, checkbox and select fields. Every submitted entry must
// match a declared option.
type Choice struct {
	base
	multi bool
}

func newChoice(field model.FieldDescriptor, deps *Deps) Widget {
	multi := field.Multiple
	switch field.Type {
	case model.FieldTypeCheckbox:
		multi = field.Multiple || len(field.Options) > 1
	case model.FieldTypeRadio:
		multi = false
	}
	return &Choice{base: newBase(field, deps), multi: multi}
}

// Multiple reports whether the widget accepts more than one entry.
func (w *Choice) Multiple() bool { return w.multi }

// Bind implements Widget. Without posted or session data the options marked
// as default are preselected.
func (w *Choice) Bind(in Input) {
	w.bindRaw(in, w.multi)
	if !w.bound && w.field.Value == "" {
		for _, opt := range w.field.Options {
			if opt.Default {
				w.raw = append(w.raw, opt.Value)
			}
		}
	}
	if !w.bound && w.field.Value != "" && w.multi {
		w.raw = model.DecodeMultiValue(w.field.Value)
	}
	w.value = w.wrap(w.selected())
}

func (w *Choice) selected() []string {
	out := make([]string, 0, len(w.raw))
	for _, entry := range w.raw {
		if strings.TrimSpace(entry) != "" {
			out = append(out, entry)
		}
	}
	if !w.multi && len(out) > 1 {
		out = out[:1]
	}
	return out
}

func (w *Choice) wrap(entries []string) model.Value {
	if w.multi {
		return model.MultiValue(entries)
	}
	if len(entries) == 0 {
		return model.SingleValue("")
	}
	return model.SingleValue(entries[0])
}

// Validate implements Widget.
func (w *Choice) Validate(_ context.Context) {
	w.errors = nil
	w.submits = false

	entries := w.selected()
	w.value = w.wrap(entries)
	if len(entries) == 0 {
		if w.required() {
			w.mandatoryError()
			return
		}
		w.submits = true
		return
	}
	for _, entry := range entries {
		if !w.field.HasOption(entry) {
			w.AddError(w.deps.translate("ERR.invalid", w.label()))
			return
		}
	}
	w.submits = true
}

// TemplateData implements Widget.
func (w *Choice) TemplateData() render.WidgetView {
	view := w.view()
	view.Multiple = w.multi
	view.MinLength, view.MaxLength = 0, 0
	chosen := make(map[string]bool, len(w.raw))
	for _, entry := range w.selected() {
		chosen[entry] = true
	}
	view.Options = make([]render.OptionView, 0, len(w.field.Options))
	for i, opt := range w.field.Options {
		view.Options = append(view.Options, render.OptionView{
			Value:    opt.Value,
			Label:    firstNonEmpty(opt.Label, opt.Value),
			Group:    opt.Group,
			Selected: chosen[opt.Value],
			ID:       view.ID + "_" + strconv.Itoa(i),
		})
	}
	return view
}
