package render

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/goliatone/go-formflow/pkg/render/template"
)

//go:embed templates/*.tpl
var embeddedTemplates embed.FS

// TemplatesFS exposes the built-in form templates.
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return embeddedTemplates
	}
	return sub
}

// Template names used by FormRenderer.
const (
	WrapperTemplate = "form_wrapper"
	PageTemplate    = "page"
	widgetPrefix    = "form_"
)

// WidgetTemplate returns the template name for a field type.
func WidgetTemplate(fieldType string) string {
	return widgetPrefix + fieldType
}

// FormRenderer turns widget and form views into markup through a
// TemplateRenderer.
type FormRenderer struct {
	engine template.TemplateRenderer
}

// NewFormRenderer wraps engine.
func NewFormRenderer(engine template.TemplateRenderer) *FormRenderer {
	return &FormRenderer{engine: engine}
}

// RenderWidget renders one widget fragment.
func (r *FormRenderer) RenderWidget(view WidgetView) (string, error) {
	if r == nil || r.engine == nil {
		return "", errors.New("render: template renderer is not configured")
	}
	name := view.Template
	if name == "" {
		name = WidgetTemplate(view.Type)
	}
	out, err := r.engine.RenderTemplate(name, map[string]any{"widget": view})
	if err != nil {
		return "", fmt.Errorf("render: widget %q: %w", view.Name, err)
	}
	return out, nil
}

// RenderForm renders every widget and wraps the fragments in the form
// template.
func (r *FormRenderer) RenderForm(form FormView, widgets []WidgetView) (string, error) {
	if r == nil || r.engine == nil {
		return "", errors.New("render: template renderer is not configured")
	}
	fragments := make([]any, 0, len(widgets))
	for _, view := range widgets {
		html, err := r.RenderWidget(view)
		if err != nil {
			return "", err
		}
		fragments = append(fragments, strings.TrimSpace(html))
	}
	out, err := r.engine.RenderTemplate(WrapperTemplate, map[string]any{
		"form":   form,
		"fields": fragments,
	})
	if err != nil {
		return "", fmt.Errorf("render: form %q: %w", form.Key, err)
	}
	return out, nil
}

// RenderPage embeds form markup in a minimal HTML document.
func (r *FormRenderer) RenderPage(title, body string, theme map[string]string) (string, error) {
	if r == nil || r.engine == nil {
		return "", errors.New("render: template renderer is not configured")
	}
	return r.engine.RenderTemplate(PageTemplate, map[string]any{
		"title": title,
		"body":  body,
		"theme": theme,
	})
}
