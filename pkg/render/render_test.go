package render_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
)

func TestSortedHiddenFields_ReservedFirst(t *testing.T) {
	fields := render.MergeHiddenFields(
		map[string]string{"zeta": "1", " ": "skip", "alpha": "2"},
		render.MaxFileSize(2048),
		render.RequestToken("tok"),
		render.FormSubmit("auto_form_contact"),
		render.Hidden("", "ignored"),
	)

	want := []render.HiddenField{
		{Name: render.FormSubmitField, Value: "auto_form_contact"},
		{Name: render.RequestTokenField, Value: "tok"},
		{Name: render.MaxFileSizeField, Value: "2048"},
		{Name: "alpha", Value: "2"},
		{Name: "zeta", Value: "1"},
	}
	if diff := cmp.Diff(want, render.SortedHiddenFields(fields)); diff != "" {
		t.Fatalf("hidden fields mismatch (-want +got):\n%s", diff)
	}
	if !render.ReservedField(" REQUEST_TOKEN ") || render.ReservedField("alpha") {
		t.Fatalf("reserved field detection is wrong")
	}
}

func TestMergeMessages_TrimsAndDedupes(t *testing.T) {
	got := render.MergeMessages([]string{" saved ", "", "saved"}, "sent", " sent")
	if diff := cmp.Diff([]string{"saved", "sent"}, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if render.NormalizeMessages(nil) != nil {
		t.Fatalf("nil input should stay nil")
	}
}

func TestCatalog_LocaleFallback(t *testing.T) {
	catalog := render.NewCatalog()
	if err := catalog.Load("en", []byte("ERR:\n  mandatory: 'Please fill in field \"%s\".'\nMSC:\n  agree: 'agree'\n")); err != nil {
		t.Fatalf("load en: %v", err)
	}
	if err := catalog.Load("de", []byte("MSC:\n  agree: 'zustimmen'\n")); err != nil {
		t.Fatalf("load de: %v", err)
	}

	cases := []struct {
		locale string
		key    string
		args   []any
		want   string
	}{
		{"de_CH", "MSC.agree", nil, "zustimmen"},
		{"de", "ERR.mandatory", []any{"Name"}, `Please fill in field "Name".`},
		{"", "MSC.agree", nil, "agree"},
	}
	for _, tc := range cases {
		got, err := catalog.Translate(tc.locale, tc.key, tc.args...)
		if err != nil {
			t.Fatalf("translate %s/%s: %v", tc.locale, tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("translate %s/%s = %q, want %q", tc.locale, tc.key, got, tc.want)
		}
	}

	if _, err := catalog.Translate("en", "ERR.unknown"); !errors.Is(err, render.ErrMissingTranslation) {
		t.Fatalf("expected ErrMissingTranslation, got %v", err)
	}
	if got := render.Translate(catalog, "en", "ERR.unknown", nil, "a", 1); got != "ERR.unknown (a, 1)" {
		t.Fatalf("missing key fallback = %q", got)
	}
	if got := render.Translate(nil, "en", "MSC.yes", nil); got != "MSC.yes" {
		t.Fatalf("nil translator fallback = %q", got)
	}
}

func TestDefaultCatalog_ShipsEnglishAndGerman(t *testing.T) {
	catalog := render.DefaultCatalog()
	for _, locale := range []string{"en", "de"} {
		msg, err := catalog.Translate(locale, "ERR.email")
		if err != nil || strings.TrimSpace(msg) == "" {
			t.Fatalf("%s: ERR.email missing: %v", locale, err)
		}
	}
}

func TestTemplateI18nFuncs_ResolvesLocaleFromData(t *testing.T) {
	catalog := render.NewCatalog()
	catalog.Set("de", "MSC.send", "Senden")
	funcs := render.TemplateI18nFuncs(catalog, render.TemplateI18nConfig{FuncName: "t"})

	translate, ok := funcs["t"].(func(any, string, ...any) string)
	if !ok {
		t.Fatalf("translate helper missing: %#v", funcs)
	}
	if got := translate(map[string]any{"locale": "de"}, "MSC.send"); got != "Senden" {
		t.Fatalf("translate = %q", got)
	}
	current := funcs["current_locale"].(func(any) string)
	if got := current(map[string]string{"locale": "de"}); got != "de" {
		t.Fatalf("current_locale = %q", got)
	}
}

func newRenderer(t *testing.T) *render.FormRenderer {
	t.Helper()
	engine, err := gotemplate.New(gotemplate.WithFS(render.TemplatesFS()))
	if err != nil {
		t.Fatalf("template engine: %v", err)
	}
	return render.NewFormRenderer(engine)
}

func TestFormRenderer_RenderForm(t *testing.T) {
	renderer := newRenderer(t)
	form := render.FormView{
		ID:      "contact",
		Key:     "auto_form_contact",
		Method:  "post",
		Enctype: "application/x-www-form-urlencoded",
		Class:   "ce_form tableless block",
		Hidden:  render.SortedHiddenFields(map[string]string{render.FormSubmitField: "auto_form_contact"}),
		Messages: []render.MessageView{
			{Class: "error", Text: "Please check your input."},
		},
	}
	widgets := []render.WidgetView{{
		Type:      "text",
		Name:      "name",
		ID:        "name",
		Label:     "Name",
		Mandatory: true,
		Value:     "Ada & Co",
		Errors:    []string{`Please fill in field "Name".`},
	}}

	out, err := renderer.RenderForm(form, widgets)
	if err != nil {
		t.Fatalf("render form: %v", err)
	}
	for _, want := range []string{
		`id="auto_form_contact"`,
		`<input type="hidden" name="FORM_SUBMIT" value="auto_form_contact">`,
		`<p class="error">Please check your input.</p>`,
		`name="name"`,
		`value="Ada &amp; Co"`,
		` required`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markup missing %q:\n%s", want, out)
		}
	}
}

func TestFormRenderer_UnknownWidgetTemplate(t *testing.T) {
	renderer := newRenderer(t)
	if _, err := renderer.RenderWidget(render.WidgetView{Type: "nope", Name: "x"}); err == nil {
		t.Fatalf("expected an error for a missing template")
	}
	var empty *render.FormRenderer
	if _, err := empty.RenderPage("t", "b", nil); err == nil {
		t.Fatalf("expected an error from a nil renderer")
	}
}

func TestFormRenderer_RenderPage(t *testing.T) {
	out, err := newRenderer(t).RenderPage("Contact", "<form></form>", map[string]string{"lang": "de", "stylesheet": "/assets/app.css"})
	if err != nil {
		t.Fatalf("render page: %v", err)
	}
	for _, want := range []string{`<html lang="de">`, `<title>Contact</title>`, `href="/assets/app.css"`, `<form></form>`} {
		if !strings.Contains(out, want) {
			t.Fatalf("page missing %q:\n%s", want, out)
		}
	}
}
