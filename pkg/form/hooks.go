package form

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/submission"
	"github.com/goliatone/go-formflow/pkg/widget"
)

// FieldCollectionHook may reorder, add or remove descriptors after they were
// loaded from the schema provider.
type FieldCollectionHook interface {
	CompileFormFields(ctx context.Context, form model.FormConfig, fields []model.FieldDescriptor) ([]model.FieldDescriptor, error)
}

// FieldLoadHook sees each widget before it is bound. Returning nil drops the
// field from the request.
type FieldLoadHook interface {
	LoadFormField(ctx context.Context, form model.FormConfig, w widget.Widget) (widget.Widget, error)
}

// FieldValidateHook runs after a widget validated and may add errors or
// replace the widget.
type FieldValidateHook interface {
	ValidateFormField(ctx context.Context, form model.FormConfig, w widget.Widget) (widget.Widget, error)
}

// Submission stage hooks are owned by the processor.
type (
	PrepareSubmissionHook   = submission.PrepareHook
	ProcessedSubmissionHook = submission.ProcessedHook
	StoreRowHook            = submission.StoreRowHook
)

// FieldCollectionFunc adapts a function to FieldCollectionHook.
type FieldCollectionFunc func(ctx context.Context, form model.FormConfig, fields []model.FieldDescriptor) ([]model.FieldDescriptor, error)

// CompileFormFields implements FieldCollectionHook.
func (fn FieldCollectionFunc) CompileFormFields(ctx context.Context, form model.FormConfig, fields []model.FieldDescriptor) ([]model.FieldDescriptor, error) {
	return fn(ctx, form, fields)
}

// FieldLoadFunc adapts a function to FieldLoadHook.
type FieldLoadFunc func(ctx context.Context, form model.FormConfig, w widget.Widget) (widget.Widget, error)

// LoadFormField implements FieldLoadHook.
func (fn FieldLoadFunc) LoadFormField(ctx context.Context, form model.FormConfig, w widget.Widget) (widget.Widget, error) {
	return fn(ctx, form, w)
}

// FieldValidateFunc adapts a function to FieldValidateHook.
type FieldValidateFunc func(ctx context.Context, form model.FormConfig, w widget.Widget) (widget.Widget, error)

// ValidateFormField implements FieldValidateHook.
func (fn FieldValidateFunc) ValidateFormField(ctx context.Context, form model.FormConfig, w widget.Widget) (widget.Widget, error) {
	return fn(ctx, form, w)
}
