package submission

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/store"
)

// PrepareHook runs before any sink and may rewrite values and labels.
type PrepareHook interface {
	PrepareSubmission(ctx context.Context, form model.FormConfig, result model.SubmissionResult) (model.SubmissionResult, error)
}

// ProcessedHook runs after every sink with the final result.
type ProcessedHook interface {
	ProcessedSubmission(ctx context.Context, form model.FormConfig, result model.SubmissionResult) error
}

// StoreRowHook may rewrite the row before the database insert.
type StoreRowHook interface {
	StoreRow(ctx context.Context, form model.FormConfig, row store.Row) (store.Row, error)
}

// PrepareHookFunc adapts a function to PrepareHook.
type PrepareHookFunc func(ctx context.Context, form model.FormConfig, result model.SubmissionResult) (model.SubmissionResult, error)

// PrepareSubmission implements PrepareHook.
func (f PrepareHookFunc) PrepareSubmission(ctx context.Context, form model.FormConfig, result model.SubmissionResult) (model.SubmissionResult, error) {
	return f(ctx, form, result)
}

// ProcessedHookFunc adapts a function to ProcessedHook.
type ProcessedHookFunc func(ctx context.Context, form model.FormConfig, result model.SubmissionResult) error

// ProcessedSubmission implements ProcessedHook.
func (f ProcessedHookFunc) ProcessedSubmission(ctx context.Context, form model.FormConfig, result model.SubmissionResult) error {
	return f(ctx, form, result)
}

// StoreRowHookFunc adapts a function to StoreRowHook.
type StoreRowHookFunc func(ctx context.Context, form model.FormConfig, row store.Row) (store.Row, error)

// StoreRow implements StoreRowHook.
func (f StoreRowHookFunc) StoreRow(ctx context.Context, form model.FormConfig, row store.Row) (store.Row, error) {
	return f(ctx, form, row)
}
