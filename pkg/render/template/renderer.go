package template

import (
	"io"
)

// TemplateRenderer is the contract the form pipeline renders through. Callers
// only pass flat data maps; templates carry no pipeline logic.
type TemplateRenderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
}
