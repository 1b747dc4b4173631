package widget

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

// Range is a numeric slider. Bounds come from min/max/step, falling back to
// minval/maxval and then minlength/maxlength.
type Range struct {
	base
}

func newRange(field model.FieldDescriptor, deps *Deps) Widget {
	return &Range{base: newBase(field, deps)}
}

// Bounds resolves the effective min, max and step of a range field.
func Bounds(field model.FieldDescriptor) (min, max, step *float64) {
	min = firstFloat(field.Min, field.MinValue, positive(field.MinLength))
	max = firstFloat(field.Max, field.MaxValue, positive(field.MaxLength))
	if field.Step != nil && *field.Step > 0 {
		step = field.Step
	}
	return min, max, step
}

// Bind implements Widget.
func (w *Range) Bind(in Input) {
	w.bindRaw(in, false)
	w.value = model.SingleValue(w.first())
}

// Validate implements Widget.
func (w *Range) Validate(_ context.Context) {
	w.errors = nil
	w.submits = false

	raw := strings.TrimSpace(w.first())
	w.value = model.SingleValue(raw)
	if raw == "" {
		if w.required() {
			w.mandatoryError()
			return
		}
		w.submits = true
		return
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || !IsNumeric(raw) {
		w.AddError(w.deps.translate("ERR.digit"))
		return
	}

	label := w.label()
	min, max, step := Bounds(w.field)
	if min != nil && n < *min {
		w.AddError(w.deps.translate("ERR.minval", label, formatFloat(*min)))
	}
	if max != nil && n > *max {
		w.AddError(w.deps.translate("ERR.maxval", label, formatFloat(*max)))
	}
	if step != nil {
		origin := 0.0
		if min != nil {
			origin = *min
		}
		ratio := (n - origin) / *step
		if math.Abs(ratio-math.Round(ratio)) > 1e-9 {
			w.AddError(w.deps.translate("ERR.step", label, formatFloat(*step)))
		}
	}
	if w.HasErrors() {
		return
	}
	w.value = model.SingleValue(formatFloat(n))
	w.submits = true
}

// TemplateData implements Widget.
func (w *Range) TemplateData() render.WidgetView {
	view := w.view()
	view.MinLength, view.MaxLength = 0, 0
	min, max, step := Bounds(w.field)
	if min != nil {
		view.Min = formatFloat(*min)
	}
	if max != nil {
		view.Max = formatFloat(*max)
	}
	if step != nil {
		view.Step = formatFloat(*step)
	}
	return view
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func positive(n int) *float64 {
	if n <= 0 {
		return nil
	}
	v := float64(n)
	return &v
}
