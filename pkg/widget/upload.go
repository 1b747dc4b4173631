package widget

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/upload"
)

// Upload hands posted files to the upload manager. A file staged by an
// earlier request satisfies the mandatory check.
type Upload struct {
	base
	file    *model.PostedFile
	pending *model.PendingUpload
}

func newUpload(field model.FieldDescriptor, deps *Deps) Widget {
	return &Upload{base: newBase(field, deps)}
}

// Bind implements Widget.
func (w *Upload) Bind(in Input) {
	w.file = nil
	w.pending = nil
	w.bound = false
	if in.Fresh && in.Files != nil {
		w.file = in.Files[w.field.Name]
		w.bound = w.file != nil
	}
	if w.deps.State != nil {
		if pending, ok := w.deps.State.Pending(w.field.Name); ok {
			w.pending = &pending
		}
	}
	w.value = model.SingleValue(w.pendingName())
}

func (w *Upload) pendingName() string {
	if w.pending == nil {
		return ""
	}
	return w.pending.OriginalName
}

// Validate implements Widget.
func (w *Upload) Validate(ctx context.Context) {
	w.errors = nil
	w.submits = false

	if w.file.Missing() {
		if w.pending == nil && w.required() {
			w.mandatoryError()
			return
		}
		w.value = model.SingleValue(w.pendingName())
		w.submits = true
		return
	}

	if w.deps.Uploads == nil || w.deps.State == nil {
		w.AddError(w.deps.translate("ERR.upload.store", w.file.Filename))
		return
	}
	pending, err := w.deps.Uploads.Accept(ctx, w.deps.State, w.field, w.file)
	if err != nil {
		var rejected *upload.RejectError
		switch {
		case errors.As(err, &rejected):
			w.AddError(uploadError(w.deps, rejected))
		case errors.Is(err, upload.ErrNoFile):
			if w.pending == nil && w.required() {
				w.mandatoryError()
				return
			}
			w.submits = true
		default:
			w.AddError(w.deps.translate("ERR.upload.store", w.file.Filename))
		}
		return
	}
	w.pending = &pending
	w.value = model.SingleValue(pending.OriginalName)
	w.submits = true
}

// ConsumedKeys implements Widget.
func (w *Upload) ConsumedKeys() []string {
	return []string{w.field.Name}
}

// TemplateData implements Widget.
func (w *Upload) TemplateData() render.WidgetView {
	view := w.view()
	view.MinLength, view.MaxLength = 0, 0
	if exts := w.field.AllowedExtensions(); len(exts) > 0 {
		accept := make([]string, len(exts))
		for i, ext := range exts {
			accept[i] = "." + ext
		}
		view.Accept = strings.Join(accept, ",")
	}
	return view
}
