package form

import (
	"errors"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/widget"
)

const (
	enctypeMultipart  = "multipart/form-data"
	enctypeURLEncoded = "application/x-www-form-urlencoded"
)

func (e *Engine) respond(c *cycle) (*Response, error) {
	if e.renderer == nil {
		return nil, errors.New("form: renderer is not configured")
	}
	key := c.form.Key()

	views := make([]render.WidgetView, 0, len(c.widgets))
	for _, w := range c.widgets {
		views = append(views, w.TemplateData())
	}

	messages := replayMessages(c.messages)
	if c.hasError {
		messages = append(messages, render.MessageView{Class: "error", Text: e.translate(c, "ERR.form")})
	}

	hidden := e.hiddenFields(c)
	view := render.FormView{
		ID:         c.form.ID,
		Key:        key,
		Title:      c.form.Title,
		Method:     formMethod(c.form),
		Action:     c.form.Action,
		Enctype:    enctypeURLEncoded,
		NoValidate: c.form.NoValidate,
		CSSID:      c.form.Attributes["id"],
		Class:      strings.TrimSpace("ce_form block " + c.form.Attributes["class"]),
		HasError:   c.hasError,
		Locale:     c.req.Locale,
		Hidden:     hidden,
		Messages:   messages,
		Theme:      e.themeTokens(),
	}
	if hasUpload(c.widgets) {
		view.Enctype = enctypeMultipart
	}

	markup, err := e.renderer.RenderForm(view, views)
	if err != nil {
		return nil, err
	}
	e.metrics.FormRendered(key, c.hasError)

	return &Response{
		Markup:    markup,
		Widgets:   views,
		Hidden:    hidden,
		Messages:  messages,
		HasError:  c.hasError,
		PageTitle: e.pageTitle(c),
		States:    c.life.trace(),
	}, nil
}

func (e *Engine) hiddenFields(c *cycle) []render.HiddenField {
	fields := []render.HiddenField{render.FormSubmit(c.form.MarkerToken())}
	if token := strings.TrimSpace(c.req.RequestToken); token != "" {
		fields = append(fields, render.RequestToken(token))
	}
	if limit := e.maxFileSize(c.widgets); limit > 0 {
		fields = append(fields, render.MaxFileSize(limit))
	}
	return render.SortedHiddenFields(render.MergeHiddenFields(nil, fields...))
}

// maxFileSize is the largest limit any upload field of the form accepts.
func (e *Engine) maxFileSize(widgets []widget.Widget) int64 {
	var limit int64
	found := false
	for _, w := range widgets {
		field := w.Descriptor()
		if field.Type != model.FieldTypeUpload {
			continue
		}
		found = true
		if field.MaxFileSize > limit {
			limit = field.MaxFileSize
		}
	}
	if !found {
		return 0
	}
	if e.uploads != nil && e.uploads.MaxFileSize() > limit {
		limit = e.uploads.MaxFileSize()
	}
	return limit
}

func (e *Engine) pageTitle(c *cycle) string {
	if !c.hasError || c.req.Ajax {
		return c.req.PageTitle
	}
	title := c.req.PageTitle
	if strings.TrimSpace(title) == "" {
		title = c.form.Title
	}
	return e.translate(c, "MSC.errorTitle", title)
}

func (e *Engine) themeTokens() map[string]string {
	if e.themes == nil {
		return nil
	}
	selection, err := e.themes.Select(e.themeName, e.themeVariant)
	if err != nil {
		e.logger.Warnw("theme selection failed", "theme", e.themeName, "variant", e.themeVariant, "error", err)
		return nil
	}
	return ThemeTokens(selection)
}

func replayMessages(queued map[session.MessageClass][]string) []render.MessageView {
	if len(queued) == 0 {
		return nil
	}
	var out []render.MessageView
	for _, class := range session.MessageClasses {
		for _, text := range queued[class] {
			out = append(out, render.MessageView{Class: strings.ToLower(string(class)), Text: text})
		}
	}
	return out
}

func hasUpload(widgets []widget.Widget) bool {
	for _, w := range widgets {
		if w.Descriptor().Type == model.FieldTypeUpload {
			return true
		}
	}
	return false
}

func formMethod(form model.FormConfig) string {
	if method := strings.ToLower(strings.TrimSpace(form.Method)); method == "get" {
		return method
	}
	return "post"
}
