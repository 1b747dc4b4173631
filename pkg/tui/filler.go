// Package tui fills forms from a terminal. It drives the same pipeline as
// the HTTP handler: render, prompt for every widget, submit, and prompt
// again for the fields that failed.
package tui

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/form"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

const defaultAttempts = 3

// Engine is the part of form.Engine the filler needs.
type Engine interface {
	Render(ctx context.Context, req form.Request) (*form.Response, error)
	HandleFormRequest(ctx context.Context, req form.Request) (*form.Response, error)
}

// Theme captures optional message prefixes.
type Theme struct {
	PromptPrefix string
	InfoPrefix   string
	ErrorPrefix  string
}

// Option configures a Filler.
type Option func(*Filler)

// WithPromptDriver overrides the survey driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(f *Filler) {
		f.theme = theme
	}
}

// WithAttempts sets how many submit rounds are tried before giving up.
func WithAttempts(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithSessionID scopes the stored form state. Defaults to "terminal".
func WithSessionID(id string) Option {
	return func(f *Filler) {
		if id != "" {
			f.sessionID = id
		}
	}
}

// WithLocale sets the request locale.
func WithLocale(locale string) Option {
	return func(f *Filler) {
		f.locale = locale
	}
}

// WithSubmitter fills as an authenticated member.
func WithSubmitter(user model.Submitter) Option {
	return func(f *Filler) {
		f.user = user
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Filler prompts for the widgets of a form and submits the answers.
type Filler struct {
	engine    Engine
	driver    PromptDriver
	theme     Theme
	attempts  int
	sessionID string
	locale    string
	user      model.Submitter
	plain     *bluemonday.Policy
	logger    *zap.SugaredLogger
}

// NewFiller builds a Filler around engine.
func NewFiller(engine Engine, options ...Option) *Filler {
	f := &Filler{
		engine:    engine,
		driver:    NewSurveyDriver(),
		attempts:  defaultAttempts,
		sessionID: "terminal",
		plain:     bluemonday.StrictPolicy(),
		logger:    zap.S(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// answers accumulates what was typed across rounds.
type answers struct {
	values url.Values
	files  map[string]*model.PostedFile
}

func (a *answers) discardFiles() {
	for name, file := range a.files {
		if file.TempPath != "" {
			_ = os.Remove(file.TempPath)
		}
		delete(a.files, name)
	}
}

// Fill renders formID, prompts for every input and submits until the form
// validates or the attempts are used up.
func (f *Filler) Fill(ctx context.Context, formID string) (*form.Response, error) {
	resp, err := f.engine.Render(ctx, f.request(formID, "GET", nil))
	if err != nil {
		return nil, err
	}
	in := &answers{values: url.Values{}, files: map[string]*model.PostedFile{}}
	defer in.discardFiles()

	views := resp.Widgets
	hidden := resp.Hidden
	for round := 0; round < f.attempts; round++ {
		for _, view := range views {
			if round > 0 && len(view.Errors) == 0 {
				continue
			}
			if err := f.prompt(ctx, view, in); err != nil {
				return nil, err
			}
		}

		req := f.request(formID, "POST", in)
		for _, field := range hidden {
			req.Fields.Set(field.Name, field.Value)
		}
		resp, err = f.engine.HandleFormRequest(ctx, req)
		in.discardFiles()
		if err != nil {
			return resp, err
		}
		if err := f.messages(ctx, resp.Messages); err != nil {
			return nil, err
		}
		if !resp.HasError {
			f.logger.Debugw("terminal submission accepted", "form", formID, "rounds", round+1)
			return resp, nil
		}
		views = resp.Widgets
		hidden = resp.Hidden
	}
	return resp, fmt.Errorf("%w after %d attempts", ErrTooManyAttempts, f.attempts)
}

func (f *Filler) request(formID, method string, in *answers) form.Request {
	req := form.Request{
		FormID:    formID,
		Method:    method,
		SessionID: f.sessionID,
		Locale:    f.locale,
		User:      f.user,
		Ajax:      true,
	}
	if in != nil {
		req.Fields = cloneValues(in.values)
		req.Files = make(map[string]*model.PostedFile, len(in.files))
		for name, file := range in.files {
			req.Files[name] = file
		}
	}
	return req
}

func (f *Filler) prompt(ctx context.Context, view render.WidgetView, in *answers) error {
	label := f.label(view)
	help := strings.Join(view.Errors, "; ")
	if help == "" {
		help = view.Placeholder
	}

	switch model.FieldType(view.Type) {
	case model.FieldTypeText, model.FieldTypeRange:
		out, err := f.driver.Input(ctx, InputConfig{Message: label, Default: view.Value, Help: help})
		if err != nil {
			return err
		}
		in.values.Set(view.Name, out)
	case model.FieldTypeTextarea:
		out, err := f.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: view.Value, Help: help})
		if err != nil {
			return err
		}
		in.values.Set(view.Name, out)
	case model.FieldTypePassword:
		out, err := f.driver.Password(ctx, InputConfig{Message: label, Help: help})
		if err != nil {
			return err
		}
		in.values.Set(view.Name, out)
		if view.Confirm != nil {
			again, err := f.driver.Password(ctx, InputConfig{Message: f.theme.PromptPrefix + view.Confirm.Label})
			if err != nil {
				return err
			}
			in.values.Set(view.Confirm.Name, again)
		}
	case model.FieldTypeSelect, model.FieldTypeRadio, model.FieldTypeCheckbox:
		return f.choose(ctx, view, label, help, in)
	case model.FieldTypeUpload:
		path, err := f.driver.Input(ctx, InputConfig{Message: label, Help: help})
		if err != nil {
			return err
		}
		if strings.TrimSpace(path) == "" {
			return nil
		}
		file, err := stage(view.Name, strings.TrimSpace(path))
		if err != nil {
			return f.info(ctx, f.theme.ErrorPrefix+err.Error())
		}
		in.files[view.Name] = file
	case model.FieldTypeHidden:
		in.values.Set(view.Name, view.Value)
	case model.FieldTypeExplanation, model.FieldTypeHTML:
		if text := f.plainText(view.Text); text != "" {
			return f.info(ctx, text)
		}
	case model.FieldTypeFieldsetStart:
		if view.Label != "" {
			return f.info(ctx, view.Label)
		}
	}
	return nil
}

func (f *Filler) choose(ctx context.Context, view render.WidgetView, label, help string, in *answers) error {
	if len(view.Options) == 0 {
		return nil
	}
	labels := make([]string, len(view.Options))
	var selected []int
	for i, opt := range view.Options {
		labels[i] = opt.Label
		if opt.Selected {
			selected = append(selected, i)
		}
	}

	if model.FieldType(view.Type) == model.FieldTypeCheckbox && !view.Multiple {
		ok, err := f.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: len(selected) > 0, Help: help})
		if err != nil {
			return err
		}
		in.values.Del(view.Name)
		if ok {
			in.values.Set(view.Name, view.Options[0].Value)
		}
		return nil
	}

	if view.Multiple {
		picked, err := f.driver.MultiSelect(ctx, SelectConfig{Message: label, Options: labels, Defaults: selected, Help: help})
		if err != nil {
			return err
		}
		in.values.Del(view.Name)
		for _, idx := range picked {
			in.values.Add(view.Name, view.Options[idx].Value)
		}
		return nil
	}

	def := 0
	if len(selected) > 0 {
		def = selected[0]
	}
	idx, err := f.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: def, Help: help})
	if err != nil {
		return err
	}
	in.values.Del(view.Name)
	if idx >= 0 && idx < len(view.Options) {
		in.values.Set(view.Name, view.Options[idx].Value)
	}
	return nil
}

func (f *Filler) messages(ctx context.Context, messages []render.MessageView) error {
	for _, msg := range messages {
		prefix := f.theme.InfoPrefix
		if msg.Class == "error" {
			prefix = f.theme.ErrorPrefix
		}
		if err := f.info(ctx, prefix+msg.Text); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) label(view render.WidgetView) string {
	label := view.Label
	if label == "" {
		label = view.Name
	}
	if view.Mandatory {
		label += " *"
	}
	return f.theme.PromptPrefix + label
}

func (f *Filler) plainText(markup string) string {
	return strings.TrimSpace(html.UnescapeString(f.plain.Sanitize(markup)))
}

func (f *Filler) info(ctx context.Context, msg string) error {
	return f.driver.Info(ctx, msg)
}

// stage copies path to a temp file so the upload manager can move it
// without touching the original.
func stage(field, path string) (*model.PostedFile, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tui: open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("tui: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("tui: %s is a directory", path)
	}

	tmp, err := os.CreateTemp("", "formflow-tui-*")
	if err != nil {
		return nil, fmt.Errorf("tui: stage %s: %w", path, err)
	}
	n, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("tui: stage %s: %w", path, firstErr(copyErr, closeErr))
	}

	contentType := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(tmp.Name()); err == nil {
		contentType = mtype.String()
	}
	return &model.PostedFile{
		Field:       field,
		Filename:    info.Name(),
		ContentType: contentType,
		Size:        n,
		TempPath:    tmp.Name(),
		Genuine:     true,
	}, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for key, values := range in {
		out[key] = append([]string(nil), values...)
	}
	return out
}
