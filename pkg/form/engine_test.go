package form

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/submission"
	"github.com/goliatone/go-formflow/pkg/testsupport"
	"github.com/goliatone/go-formflow/pkg/upload"
	"github.com/goliatone/go-formflow/pkg/widget"
)

const (
	sessionID     = "visitor-1"
	contactMarker = "auto_form_contact"
)

var fixedNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

type harness struct {
	engine   *Engine
	mailer   *testsupport.Mailer
	sessions *session.MemoryStore
	uploads  *upload.Manager
}

func newHarness(t *testing.T, def schema.Definition, maxFileSize int64, opts ...Option) *harness {
	t.Helper()

	index, err := upload.NewFilesystemIndex()
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	uploadOpts := []upload.Option{upload.WithStagingDir(t.TempDir())}
	if maxFileSize > 0 {
		uploadOpts = append(uploadOpts, upload.WithMaxFileSize(maxFileSize))
	}
	manager, err := upload.NewManager(index, uploadOpts...)
	if err != nil {
		t.Fatalf("upload manager: %v", err)
	}

	h := &harness{mailer: &testsupport.Mailer{}, sessions: session.NewMemoryStore(), uploads: manager}
	base := []Option{
		WithSchemaProvider(schema.NewStaticProvider(def)),
		WithSessionStore(h.sessions),
		WithUploads(manager),
		WithMailer(h.mailer),
		WithProcessorOptions(submission.WithSender("forms@example.com", "Forms")),
		WithPasswordHasher(testsupport.Hasher{}),
		WithClock(testsupport.NewClock(fixedNow)),
	}
	h.engine = New(append(base, opts...)...)
	return h
}

func (h *harness) state(t *testing.T, formKey string) *session.FormState {
	t.Helper()
	state, err := h.sessions.Load(context.Background(), sessionID, formKey)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return state
}

func contactDefinition() schema.Definition {
	return schema.Definition{
		Form: model.FormConfig{ID: "contact", Title: "Contact", SendViaEmail: true, Recipient: "x@y.com"},
		Fields: []model.FieldDescriptor{
			{Name: "name", Type: model.FieldTypeText, Mandatory: true},
			{Name: "email", Type: model.FieldTypeText, Rgxp: model.RegexpEmail, Mandatory: true},
			{Name: "message", Type: model.FieldTypeTextarea, Mandatory: true},
			{Type: model.FieldTypeSubmit, Label: "Send"},
		},
	}
}

func get(formID string) Request {
	return Request{FormID: formID, Method: "GET", SessionID: sessionID, PageTitle: "Contact page"}
}

func post(formID, marker string, fields url.Values) Request {
	values := url.Values{render.FormSubmitField: {marker}}
	for key, v := range fields {
		values[key] = v
	}
	return Request{FormID: formID, Method: "POST", Fields: values, SessionID: sessionID, PageTitle: "Contact page"}
}

func validContact() url.Values {
	return url.Values{"name": {"Ada"}, "email": {"a@b.com"}, "message": {"hi"}}
}

func viewByName(t *testing.T, resp *Response, name string) render.WidgetView {
	t.Helper()
	for _, view := range resp.Widgets {
		if view.Name == name {
			return view
		}
	}
	t.Fatalf("no widget %q in response", name)
	return render.WidgetView{}
}

func TestHandleFormRequest_MandatoryNameFails(t *testing.T) {
	h := newHarness(t, contactDefinition(), 0)

	fields := validContact()
	fields.Set("name", "")
	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, fields))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !resp.HasError {
		t.Fatalf("expected hasError")
	}
	for _, view := range resp.Widgets {
		if view.Name == "name" && len(view.Errors) == 0 {
			t.Fatalf("expected error on name")
		}
		if view.Name != "name" && len(view.Errors) > 0 {
			t.Fatalf("unexpected errors on %q: %v", view.Name, view.Errors)
		}
	}
	if got := len(h.mailer.Messages()); got != 0 {
		t.Fatalf("expected no mail, got %d", got)
	}
	if diff := cmp.Diff([]State{StateIdle, StateValidating, StateRenderWithErrors}, resp.States); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	if resp.PageTitle != "Error: Contact page" {
		t.Fatalf("page title = %q", resp.PageTitle)
	}
	if resp.Redirect != nil {
		t.Fatalf("unexpected redirect %+v", resp.Redirect)
	}
}

func TestHandleFormRequest_AjaxKeepsPageTitle(t *testing.T) {
	h := newHarness(t, contactDefinition(), 0)
	req := post("contact", contactMarker, url.Values{})
	req.Ajax = true

	resp, err := h.engine.HandleFormRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !resp.HasError || resp.PageTitle != "Contact page" {
		t.Fatalf("unexpected response: hasError=%v title=%q", resp.HasError, resp.PageTitle)
	}
}

func TestHandleFormRequest_MandatoryInvariant(t *testing.T) {
	for _, field := range []string{"name", "email", "message"} {
		t.Run(field, func(t *testing.T) {
			h := newHarness(t, contactDefinition(), 0)
			fields := validContact()
			fields.Set(field, "   ")

			resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, fields))
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if !resp.HasError {
				t.Fatalf("expected hasError")
			}
			if got := len(h.mailer.Messages()); got != 0 {
				t.Fatalf("expected zero sink invocations, got %d mails", got)
			}
			if h.state(t, "form_contact").SubmittedAt != nil {
				t.Fatalf("session sink ran")
			}
		})
	}
}

func TestHandleFormRequest_MandatoryIgnoresNonStoringFields(t *testing.T) {
	noStore := false
	def := contactDefinition()
	def.Fields = append(def.Fields[:3:3], model.FieldDescriptor{
		Name: "note", Label: "Note", Type: model.FieldTypeText, Mandatory: true, StoreValue: &noStore,
	}, def.Fields[3])
	h := newHarness(t, def, 0)

	fields := validContact()
	fields.Set("note", "")
	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, fields))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.HasError {
		t.Fatalf("unexpected errors on note: %v", viewByName(t, resp, "note").Errors)
	}
	if got := len(h.mailer.Messages()); got != 1 {
		t.Fatalf("expected one mail, got %d", got)
	}
}

func TestHandleFormRequest_SuccessfulSubmission(t *testing.T) {
	def := contactDefinition()
	def.Fields = append(def.Fields, model.FieldDescriptor{
		Name: "cc", Type: model.FieldTypeCheckbox,
		Options: []model.Option{{Value: "1", Label: "Send me a copy"}},
	})
	h := newHarness(t, def, 0)

	fields := validContact()
	fields.Set("cc", "1")
	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, fields))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	sent := h.mailer.Messages()
	if len(sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(sent))
	}
	if diff := cmp.Diff("Name: Ada\nEmail: a@b.com\nMessage: hi\n", sent[0].Body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a@b.com"}, sent[0].Cc); diff != "" {
		t.Fatalf("cc mismatch (-want +got):\n%s", diff)
	}
	if resp.Redirect == nil || !resp.Redirect.Reload || resp.Redirect.URL != "" {
		t.Fatalf("expected reload, got %+v", resp.Redirect)
	}
	if diff := cmp.Diff([]State{StateIdle, StateValidating, StateProcessing, StateRedirectOrReload}, resp.States); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}

	state := h.state(t, "form_contact")
	if state.SubmittedAt == nil || !state.SubmittedAt.Equal(fixedNow) {
		t.Fatalf("submittedAt = %v", state.SubmittedAt)
	}
	if len(state.PendingUploads) != 0 {
		t.Fatalf("pending uploads left: %v", state.PendingUploads)
	}
}

func TestHandleFormRequest_JumpToRedirects(t *testing.T) {
	def := contactDefinition()
	def.Form.JumpTo = "/thanks"
	h := newHarness(t, def, 0)

	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, validContact()))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if diff := cmp.Diff(&Redirect{URL: "/thanks"}, resp.Redirect); diff != "" {
		t.Fatalf("redirect mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleFormRequest_RoundTripsSessionValues(t *testing.T) {
	h := newHarness(t, contactDefinition(), 0)
	ctx := context.Background()

	if _, err := h.engine.HandleFormRequest(ctx, post("contact", contactMarker, validContact())); err != nil {
		t.Fatalf("submit: %v", err)
	}
	resp, err := h.engine.HandleFormRequest(ctx, get("contact"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	got := map[string]string{}
	for _, name := range []string{"name", "email", "message"} {
		got[name] = viewByName(t, resp, name).Value
	}
	want := map[string]string{"name": "Ada", "email": "a@b.com", "message": "hi"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored values mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleFormRequest_GetIsIdempotent(t *testing.T) {
	h := newHarness(t, contactDefinition(), 0)
	ctx := context.Background()

	first, err := h.engine.HandleFormRequest(ctx, get("contact"))
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := h.engine.HandleFormRequest(ctx, get("contact"))
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if diff := cmp.Diff(first.Markup, second.Markup); diff != "" {
		t.Fatalf("markup changed between renders (-first +second):\n%s", diff)
	}
	if !h.state(t, "form_contact").IsEmpty() {
		t.Fatalf("GET stored state")
	}
	if diff := cmp.Diff([]State{StateIdle}, first.States); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleFormRequest_MarkerMustMatchExactly(t *testing.T) {
	for _, marker := range []string{"auto_form_contac", "auto_form_contact ", "AUTO_FORM_CONTACT", "auto_form_contact_x", ""} {
		t.Run(marker, func(t *testing.T) {
			h := newHarness(t, contactDefinition(), 0)
			fields := validContact()
			fields.Set("name", "")

			resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", marker, fields))
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if resp.HasError || resp.Redirect != nil {
				t.Fatalf("marker %q triggered validation", marker)
			}
			if len(h.mailer.Messages()) != 0 {
				t.Fatalf("marker %q triggered processing", marker)
			}
			if diff := cmp.Diff([]State{StateIdle}, resp.States); diff != "" {
				t.Fatalf("states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubmitIntent_AliasMarker(t *testing.T) {
	form := model.FormConfig{ID: "7", Alias: "newsletter"}
	req := Request{Method: "post", Fields: url.Values{render.FormSubmitField: {"auto_newsletter"}}}
	if !SubmitIntent(form, req) {
		t.Fatalf("expected alias marker to match")
	}
	req.Method = "GET"
	if SubmitIntent(form, req) {
		t.Fatalf("GET must never be a submission")
	}
}

func TestHandleFormRequest_RejectedUploadIsDiscarded(t *testing.T) {
	def := contactDefinition()
	def.Fields = append(def.Fields, model.FieldDescriptor{
		Name: "attachment", Type: model.FieldTypeUpload, Extensions: []string{"pdf", "jpg"},
	})
	h := newHarness(t, def, 0)

	req := post("contact", contactMarker, validContact())
	req.Files = map[string]*model.PostedFile{
		"attachment": testsupport.PostedFile(t, "attachment", "malware.exe", []byte("MZ\x90\x00")),
	}
	resp, err := h.engine.HandleFormRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	errs := viewByName(t, resp, "attachment").Errors
	if len(errs) != 1 || !strings.Contains(errs[0], "exe") {
		t.Fatalf("expected file type error, got %v", errs)
	}
	if _, ok := h.state(t, "form_contact").Pending("attachment"); ok {
		t.Fatalf("rejected upload still pending")
	}
	if len(h.mailer.Messages()) != 0 {
		t.Fatalf("processor ran despite upload error")
	}
}

func TestHandleFormRequest_OversizeResubmissionCleansUp(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "files")
	def := contactDefinition()
	def.Fields = append(def.Fields, model.FieldDescriptor{
		Name: "attachment", Type: model.FieldTypeUpload, Extensions: []string{"pdf"},
		StoreFile: true, UploadFolder: folder,
	})
	h := newHarness(t, def, 100)
	ctx := context.Background()

	// First round keeps the staged file because another field fails.
	first := validContact()
	first.Set("name", "")
	req := post("contact", contactMarker, first)
	req.Files = map[string]*model.PostedFile{
		"attachment": testsupport.PostedFile(t, "attachment", "report.pdf", testsupport.PDFHeader),
	}
	if _, err := h.engine.HandleFormRequest(ctx, req); err != nil {
		t.Fatalf("first round: %v", err)
	}
	staged, ok := h.state(t, "form_contact").Pending("attachment")
	if !ok {
		t.Fatalf("expected pending upload after first round")
	}

	req = post("contact", contactMarker, validContact())
	req.Files = map[string]*model.PostedFile{
		"attachment": testsupport.PostedFile(t, "attachment", "report.pdf", bytes.Repeat(testsupport.PDFHeader, 4)),
	}
	resp, err := h.engine.HandleFormRequest(ctx, req)
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if !resp.HasError {
		t.Fatalf("expected size error")
	}
	if _, ok := h.state(t, "form_contact").Pending("attachment"); ok {
		t.Fatalf("pending entry survived failed resubmission")
	}
	if _, err := os.Stat(staged.TempPath); !os.IsNotExist(err) {
		t.Fatalf("staged file still exists: %v", err)
	}
	if _, err := os.Stat(filepath.Join(folder, "report.pdf")); !os.IsNotExist(err) {
		t.Fatalf("file reached its destination: %v", err)
	}
}

func TestHandleFormRequest_StoresUploadWithUniqueName(t *testing.T) {
	folder := t.TempDir()
	if err := os.WriteFile(filepath.Join(folder, "report.pdf"), testsupport.PDFHeader, 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	def := schema.Definition{
		Form: model.FormConfig{ID: "files"},
		Fields: []model.FieldDescriptor{{
			Name: "attachment", Type: model.FieldTypeUpload, Mandatory: true, Extensions: []string{"pdf"},
			StoreFile: true, UploadFolder: folder, DoNotOverwrite: true,
		}},
	}
	h := newHarness(t, def, 0)
	ctx := context.Background()

	for _, want := range []string{"report__2.pdf", "report__3.pdf"} {
		req := post("files", "auto_form_files", url.Values{})
		req.Files = map[string]*model.PostedFile{
			"attachment": testsupport.PostedFile(t, "attachment", "report.pdf", testsupport.PDFHeader),
		}
		resp, err := h.engine.HandleFormRequest(ctx, req)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		files := resp.Outcome.Result.UploadedFiles
		if len(files) != 1 || files[0].StoredPath != filepath.Join(folder, want) {
			t.Fatalf("expected %s, got %+v", want, files)
		}
		if pending := h.state(t, "form_files").PendingUploads; len(pending) != 0 {
			t.Fatalf("pending uploads not reset: %v", pending)
		}
	}
}

func TestHandleFormRequest_UnstorableUploadRendersFieldError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	def := contactDefinition()
	def.Fields = append(def.Fields, model.FieldDescriptor{
		Name: "attachment", Type: model.FieldTypeUpload, Extensions: []string{"pdf"},
		StoreFile: true, UploadFolder: filepath.Join(blocker, "sub"),
	})
	h := newHarness(t, def, 0)

	req := post("contact", contactMarker, validContact())
	req.Files = map[string]*model.PostedFile{
		"attachment": testsupport.PostedFile(t, "attachment", "report.pdf", testsupport.PDFHeader),
	}
	resp, err := h.engine.HandleFormRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !resp.HasError {
		t.Fatalf("expected error render")
	}
	errs := viewByName(t, resp, "attachment").Errors
	if len(errs) != 1 || !strings.Contains(errs[0], "could not be stored") {
		t.Fatalf("unexpected field errors %v", errs)
	}
	if len(h.mailer.Messages()) != 0 {
		t.Fatalf("sinks ran after integrity failure")
	}
	if _, ok := h.state(t, "form_contact").Pending("attachment"); !ok {
		t.Fatalf("pending upload should be kept for a retry")
	}
	want := []State{StateIdle, StateValidating, StateProcessing, StateRenderWithErrors}
	if diff := cmp.Diff(want, resp.States); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleFormRequest_ShortPasswordNeverLeaks(t *testing.T) {
	def := schema.Definition{
		Form: model.FormConfig{ID: "register"},
		Fields: []model.FieldDescriptor{
			{Name: "username", Type: model.FieldTypeText, Mandatory: true},
			{Name: "password", Type: model.FieldTypePassword, Mandatory: true},
		},
	}
	var captured []model.SubmissionResult
	capture := submission.PrepareHookFunc(func(_ context.Context, _ model.FormConfig, result model.SubmissionResult) (model.SubmissionResult, error) {
		captured = append(captured, result)
		return result, nil
	})
	h := newHarness(t, def, 0, WithMinPasswordLength(8), WithPrepareSubmissionHooks(capture))
	ctx := context.Background()

	short := url.Values{"username": {"ada"}, "password": {"abc12"}, "password_confirm": {"abc12"}}
	resp, err := h.engine.HandleFormRequest(ctx, post("register", "auto_form_register", short))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	view := viewByName(t, resp, "password")
	if len(view.Errors) == 0 || !strings.Contains(view.Errors[0], "8") {
		t.Fatalf("expected length error, got %v", view.Errors)
	}
	if view.Value != "" || strings.Contains(resp.Markup, "abc12") {
		t.Fatalf("plain password echoed")
	}
	if len(captured) != 0 {
		t.Fatalf("processor ran")
	}

	long := url.Values{"username": {"ada"}, "password": {"correct horse"}, "password_confirm": {"correct horse"}}
	if _, err := h.engine.HandleFormRequest(ctx, post("register", "auto_form_register", long)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("expected one processor run, got %d", len(captured))
	}
	if got := captured[0].Text("password"); got != "hash(3)" {
		t.Fatalf("password value = %q", got)
	}
	if _, ok := h.state(t, "form_register").Value("password"); ok {
		t.Fatalf("password mirrored into session")
	}
}

func TestHandleFormRequest_RowClasses(t *testing.T) {
	def := schema.Definition{
		Form: model.FormConfig{ID: "rows"},
		Fields: []model.FieldDescriptor{
			{Name: "name", Type: model.FieldTypeText},
			{Name: "password", Type: model.FieldTypePassword},
			{Name: "message", Type: model.FieldTypeTextarea},
		},
	}
	h := newHarness(t, def, 0)
	resp, err := h.engine.HandleFormRequest(context.Background(), Request{FormID: "rows", SessionID: sessionID})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	got := []string{
		viewByName(t, resp, "name").Class,
		viewByName(t, resp, "password").Class,
		viewByName(t, resp, "password").Confirm.Class,
		viewByName(t, resp, "message").Class,
	}
	want := []string{"row_0 row_first even", "row_1 odd", "row_2 even", "row_3 row_last odd"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("row classes mismatch (-want +got):\n%s", diff)
	}
}

func TestRowClass(t *testing.T) {
	if got := RowClass(0, 0); got != "row_0 row_first row_last even" {
		t.Fatalf("single row = %q", got)
	}
}

func TestHandleFormRequest_SkipsUnregisteredTypes(t *testing.T) {
	def := contactDefinition()
	def.Fields = append(def.Fields,
		model.FieldDescriptor{Name: "captcha", Type: model.FieldTypeCaptcha, Mandatory: true},
		model.FieldDescriptor{Name: "legacy", Type: "mystery", Mandatory: true},
	)
	h := newHarness(t, def, 0)

	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, validContact()))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.HasError {
		t.Fatalf("unregistered mandatory fields must not fail the form")
	}
	for _, view := range resp.Widgets {
		if view.Name == "captcha" || view.Name == "legacy" {
			t.Fatalf("unregistered field %q rendered", view.Name)
		}
	}
	if len(h.mailer.Messages()) != 1 {
		t.Fatalf("expected submission to be processed")
	}
}

func TestHandleFormRequest_ReplaysMessagesOnce(t *testing.T) {
	def := schema.Definition{
		Form:   model.FormConfig{ID: "poll", Confirmation: "Thanks!"},
		Fields: []model.FieldDescriptor{{Name: "answer", Type: model.FieldTypeText}},
	}
	h := newHarness(t, def, 0)
	ctx := context.Background()

	seeded := session.NewFormState()
	seeded.AddMessage(session.MessageInfo, "Closing soon")
	seeded.AddMessage(session.MessageConfirm, "Thanks!")
	seeded.AddMessage(session.MessageConfirm, "Thanks!")
	if err := h.sessions.Save(ctx, sessionID, "form_poll", seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, err := h.engine.HandleFormRequest(ctx, get("poll"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := []render.MessageView{{Class: "confirm", Text: "Thanks!"}, {Class: "info", Text: "Closing soon"}}
	if diff := cmp.Diff(want, resp.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	again, err := h.engine.HandleFormRequest(ctx, get("poll"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(again.Messages) != 0 {
		t.Fatalf("messages replayed twice: %v", again.Messages)
	}
}

func TestHandleFormRequest_ConfirmationSurvivesRedirect(t *testing.T) {
	def := schema.Definition{
		Form:   model.FormConfig{ID: "poll", Confirmation: "Thanks!"},
		Fields: []model.FieldDescriptor{{Name: "answer", Type: model.FieldTypeText}},
	}
	h := newHarness(t, def, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := h.engine.HandleFormRequest(ctx, post("poll", "auto_form_poll", url.Values{"answer": {"yes"}})); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	resp, err := h.engine.HandleFormRequest(ctx, get("poll"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff([]render.MessageView{{Class: "confirm", Text: "Thanks!"}}, resp.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_DoesNotDrainMessages(t *testing.T) {
	def := schema.Definition{
		Form:   model.FormConfig{ID: "poll", Confirmation: "Thanks!"},
		Fields: []model.FieldDescriptor{{Name: "answer", Type: model.FieldTypeText}},
	}
	h := newHarness(t, def, 0)
	ctx := context.Background()
	if _, err := h.engine.HandleFormRequest(ctx, post("poll", "auto_form_poll", url.Values{"answer": {"yes"}})); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for i := 0; i < 2; i++ {
		resp, err := h.engine.Render(ctx, get("poll"))
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if len(resp.Messages) != 1 {
			t.Fatalf("render %d: messages = %v", i, resp.Messages)
		}
	}
}

func TestHandleFormRequest_HiddenFields(t *testing.T) {
	def := schema.Definition{
		Form:   model.FormConfig{ID: "files"},
		Fields: []model.FieldDescriptor{{Name: "attachment", Type: model.FieldTypeUpload}},
	}
	h := newHarness(t, def, 4096)
	req := get("files")
	req.RequestToken = "tok"

	resp, err := h.engine.HandleFormRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := []render.HiddenField{
		{Name: render.FormSubmitField, Value: "auto_form_files"},
		{Name: render.RequestTokenField, Value: "tok"},
		{Name: render.MaxFileSizeField, Value: "4096"},
	}
	if diff := cmp.Diff(want, resp.Hidden); diff != "" {
		t.Fatalf("hidden fields mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(resp.Markup, "multipart/form-data") {
		t.Fatalf("expected multipart enctype in markup")
	}
}

func TestHandleFormRequest_ConfigurationErrorIsReturned(t *testing.T) {
	def := contactDefinition()
	def.Form.Recipient = ""
	h := newHarness(t, def, 0)

	_, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, validContact()))
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Setting != "recipient" {
		t.Fatalf("expected recipient configuration error, got %v", err)
	}
	if len(h.mailer.Messages()) != 0 {
		t.Fatalf("mail sent despite configuration error")
	}
}

func TestHandleFormRequest_StrictSinksReturnError(t *testing.T) {
	h := newHarness(t, contactDefinition(), 0, WithProcessorOptions(submission.WithStrictSinks(true)))
	h.mailer.Err = testsupport.ErrTransport

	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, validContact()))
	var transport *model.TransportError
	if !errors.As(err, &transport) || transport.Sink != submission.SinkEmail {
		t.Fatalf("expected e-mail transport error, got %v", err)
	}
	if resp == nil || resp.Redirect == nil || !resp.Outcome.Failed {
		t.Fatalf("expected response with failed outcome, got %+v", resp)
	}
}

func TestHandleFormRequest_BestEffortSinks(t *testing.T) {
	h := newHarness(t, contactDefinition(), 0)
	h.mailer.Err = testsupport.ErrTransport

	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, validContact()))
	if err != nil {
		t.Fatalf("best effort sinks must not fail the request: %v", err)
	}
	if !resp.Outcome.Failed || resp.Redirect == nil {
		t.Fatalf("expected failed outcome with redirect, got %+v", resp)
	}
	if h.state(t, "form_contact").SubmittedAt == nil {
		t.Fatalf("session sink skipped after mail failure")
	}
}

func TestHandleFormRequest_Hooks(t *testing.T) {
	var order []string
	collect := FieldCollectionFunc(func(_ context.Context, _ model.FormConfig, fields []model.FieldDescriptor) ([]model.FieldDescriptor, error) {
		order = append(order, "collect")
		return append(fields, model.FieldDescriptor{Name: "source", Type: model.FieldTypeHidden, Value: "hook"}), nil
	})
	load := FieldLoadFunc(func(_ context.Context, _ model.FormConfig, w widget.Widget) (widget.Widget, error) {
		if w.Name() == "message" {
			return nil, nil
		}
		return w, nil
	})
	validate := FieldValidateFunc(func(_ context.Context, _ model.FormConfig, w widget.Widget) (widget.Widget, error) {
		if w.Name() == "name" && w.Value().String() == "root" {
			w.AddError("reserved name")
		}
		return w, nil
	})
	h := newHarness(t, contactDefinition(), 0,
		WithFieldCollectionHooks(collect),
		WithFieldLoadHooks(load),
		WithFieldValidateHooks(validate),
	)

	fields := url.Values{"name": {"root"}, "email": {"a@b.com"}}
	resp, err := h.engine.HandleFormRequest(context.Background(), post("contact", contactMarker, fields))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if diff := cmp.Diff([]string{"collect"}, order); diff != "" {
		t.Fatalf("hook order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"reserved name"}, viewByName(t, resp, "name").Errors); diff != "" {
		t.Fatalf("validate hook errors mismatch (-want +got):\n%s", diff)
	}
	for _, view := range resp.Widgets {
		if view.Name == "message" {
			t.Fatalf("load hook did not drop message")
		}
	}
	viewByName(t, resp, "source")
}

func TestHandleFormRequest_ConcurrentUploadsKeepBothEntries(t *testing.T) {
	def := schema.Definition{
		Form: model.FormConfig{ID: "docs"},
		Fields: []model.FieldDescriptor{
			{Name: "name", Type: model.FieldTypeText, Mandatory: true},
			{Name: "front", Type: model.FieldTypeUpload, Extensions: []string{"pdf"}},
			{Name: "back", Type: model.FieldTypeUpload, Extensions: []string{"pdf"}},
		},
	}
	h := newHarness(t, def, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, field := range []string{"front", "back"} {
		req := post("docs", "auto_form_docs", url.Values{"name": {""}})
		req.Files = map[string]*model.PostedFile{
			field: testsupport.PostedFile(t, field, field+".pdf", testsupport.PDFHeader),
		}
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			_, err := h.engine.HandleFormRequest(context.Background(), req)
			errs <- err
		}(req)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	state := h.state(t, "form_docs")
	for _, field := range []string{"front", "back"} {
		if _, ok := state.Pending(field); !ok {
			t.Fatalf("lost pending upload for %s", field)
		}
	}
}

func TestHandleFormRequest_UnknownForm(t *testing.T) {
	h := newHarness(t, contactDefinition(), 0)
	_, err := h.engine.HandleFormRequest(context.Background(), get("missing"))
	if !errors.Is(err, schema.ErrFormNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRender_TemplateDirOverridesWidget(t *testing.T) {
	dir := t.TempDir()
	override := `<p class="custom-text">{{ widget.name }}</p>`
	if err := os.WriteFile(filepath.Join(dir, "form_text.tpl"), []byte(override), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}
	h := newHarness(t, contactDefinition(), 0, WithTemplateDir(dir))

	resp, err := h.engine.Render(context.Background(), get("contact"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(resp.Markup, `<p class="custom-text">name</p>`) {
		t.Fatalf("text override not used:\n%s", resp.Markup)
	}
	if !strings.Contains(resp.Markup, `name="message"`) || !strings.Contains(resp.Markup, `id="form_contact"`) {
		t.Fatalf("embedded templates should still serve the rest:\n%s", resp.Markup)
	}
}
