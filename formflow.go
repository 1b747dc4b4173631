// Package formflow renders front-end forms, validates submissions and routes
// them to e-mail, database and session sinks.
//
// The root package re-exports the pieces most hosts need:
//
//	forms, err := formflow.LoadForms(os.DirFS("forms"))
//	engine := formflow.NewEngine(formflow.WithSchemaProvider(forms))
//	router.Mount("/forms", formflow.NewHandler(engine).Routes())
package formflow

import (
	"context"
	"io/fs"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formflow/pkg/form"
	"github.com/goliatone/go-formflow/pkg/httpform"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// Request is one form request.
type Request = form.Request

// Response is the outcome of a form request.
type Response = form.Response

// Option configures an Engine.
type Option = form.Option

// Engine runs the form lifecycle.
type Engine = form.Engine

// NewEngine constructs an Engine.
func NewEngine(options ...Option) *Engine {
	return form.New(options...)
}

// WithSchemaProvider sets where forms are looked up.
func WithSchemaProvider(provider schema.Provider) Option {
	return form.WithSchemaProvider(provider)
}

// WithThemeSelector passes a go-theme selector to the engine so templates
// receive the resolved tokens and assets.
func WithThemeSelector(selector theme.ThemeSelector, name, variant string) Option {
	return form.WithThemeSelector(selector, name, variant)
}

// LoadForms reads the JSON and YAML form documents in fsys.
func LoadForms(fsys fs.FS) (*schema.FileProvider, error) {
	return schema.NewFileProvider(fsys)
}

// NewHandler wraps engine in an HTTP handler.
func NewHandler(engine *Engine, options ...httpform.Option) *httpform.Handler {
	return httpform.New(engine, options...)
}

// Handle runs one request through engine. It is the entry point for hosts
// that bring their own transport.
func Handle(ctx context.Context, engine *Engine, req Request) (*Response, error) {
	return engine.HandleFormRequest(ctx, req)
}

// EmbeddedTemplates exposes the built-in widget templates so callers can
// copy or extend them.
func EmbeddedTemplates() fs.FS {
	return render.TemplatesFS()
}
