package submission

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/testsupport"
	"github.com/goliatone/go-formflow/pkg/upload"
)

var fixedNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

func contactResult() model.SubmissionResult {
	return model.SubmissionResult{Fields: []model.SubmittedField{
		{Name: "name", Label: "Name", Type: model.FieldTypeText, Value: model.SingleValue("Ada")},
		{Name: "email", Label: "E-mail", Type: model.FieldTypeText, Rgxp: model.RegexpEmail, Value: model.SingleValue("ada@example.com")},
		{Name: "cc", Label: "Send me a copy", Type: model.FieldTypeCheckbox, Value: model.SingleValue("1")},
		{Name: "message", Label: "Message", Type: model.FieldTypeTextarea, Value: model.SingleValue("hi")},
		{Name: "phone", Label: "Phone", Type: model.FieldTypeText, Value: model.SingleValue("")},
	}}
}

type stubUploads struct {
	files     []model.UploadedFile
	commitErr error
	resets    int
	calls     []string
	log       *[]string
}

func (s *stubUploads) record(call string) {
	s.calls = append(s.calls, call)
	if s.log != nil {
		*s.log = append(*s.log, call)
	}
}

func (s *stubUploads) Commit(context.Context, *session.FormState, []model.FieldDescriptor, upload.CommitOptions) ([]model.UploadedFile, error) {
	s.record("commit")
	return s.files, s.commitErr
}

func (s *stubUploads) Reset(_ context.Context, state *session.FormState) {
	s.record("reset")
	s.resets++
	state.PendingUploads = nil
}

func newProcessor(opts ...Option) *Processor {
	base := []Option{
		WithClock(testsupport.NewClock(fixedNow)),
		WithTranslator(render.DefaultCatalog()),
		WithSender("forms@example.com", "Forms"),
	}
	return NewProcessor(append(base, opts...)...)
}

func TestProcess_EmailBodyAndReload(t *testing.T) {
	mail := &testsupport.Mailer{}
	p := newProcessor(WithMailer(mail))

	state := session.NewFormState()
	outcome, err := p.Process(context.Background(), Request{
		Form:   model.FormConfig{ID: "contact", SendViaEmail: true, Recipient: "x@y.com", SkipEmpty: true},
		Result: contactResult(),
		State:  state,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	sent := mail.Messages()
	if len(sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(sent))
	}
	wantBody := "Name: Ada\nE-mail: ada@example.com\nMessage: hi\n"
	if diff := cmp.Diff(wantBody, sent[0].Body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x@y.com"}, sent[0].To); diff != "" {
		t.Fatalf("recipients mismatch (-want +got):\n%s", diff)
	}
	if sent[0].ReplyTo != `"Ada" <ada@example.com>` {
		t.Fatalf("unexpected reply-to %q", sent[0].ReplyTo)
	}
	if state.SubmittedAt == nil || !state.SubmittedAt.Equal(fixedNow) {
		t.Fatalf("expected submittedAt stamp, got %v", state.SubmittedAt)
	}
	if !outcome.Reload || outcome.Redirect() {
		t.Fatalf("expected reload outcome, got %+v", outcome)
	}
}

func TestProcess_CopyToSubmitter(t *testing.T) {
	mail := &testsupport.Mailer{}
	p := newProcessor(WithMailer(mail))
	result := contactResult()
	result.CopyToSubmitter = true

	_, err := p.Process(context.Background(), Request{
		Form:   model.FormConfig{ID: "contact", SendViaEmail: true, Recipient: "x@y.com, Team <team@y.com>", JumpTo: "/thanks"},
		Result: result,
		State:  session.NewFormState(),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	msg := mail.Messages()[0]
	if diff := cmp.Diff([]string{"ada@example.com"}, msg.Cc); diff != "" {
		t.Fatalf("cc mismatch (-want +got):\n%s", diff)
	}
	if len(msg.To) != 2 {
		t.Fatalf("expected two recipients, got %v", msg.To)
	}
}

func TestProcess_ConfigurationErrors(t *testing.T) {
	cases := []struct {
		name    string
		form    model.FormConfig
		fields  []model.FieldDescriptor
		setting string
	}{
		{name: "recipient", form: model.FormConfig{ID: "1", SendViaEmail: true}, setting: "recipient"},
		{name: "table", form: model.FormConfig{ID: "1", StoreValues: true}, setting: "targetTable"},
		{
			name:    "upload folder",
			form:    model.FormConfig{ID: "1"},
			fields:  []model.FieldDescriptor{{Name: "cv", Type: model.FieldTypeUpload, StoreFile: true}},
			setting: "uploadFolder",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mail := &testsupport.Mailer{}
			uploads := &stubUploads{}
			p := newProcessor(WithMailer(mail), WithStore(testsupport.NewRelational()), WithUploads(uploads))
			state := session.NewFormState()
			state.SetPending("cv", model.PendingUpload{OriginalName: "cv.pdf"})

			_, err := p.Process(context.Background(), Request{Form: tc.form, Fields: tc.fields, Result: contactResult(), State: state})
			var cfgErr *model.ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Setting != tc.setting {
				t.Fatalf("expected configuration error for %s, got %v", tc.setting, err)
			}
			if len(mail.Messages()) != 0 || len(uploads.calls) != 0 {
				t.Fatalf("nothing may run after a configuration error")
			}
			if _, ok := state.Pending("cv"); !ok {
				t.Fatalf("pending uploads must survive a configuration error")
			}
		})
	}
}

func TestProcess_UploadIntegrityAbortsBeforeSinks(t *testing.T) {
	mail := &testsupport.Mailer{}
	uploads := &stubUploads{commitErr: &model.UploadIntegrityError{Field: "cv", Path: "/x", Err: os.ErrPermission}}
	p := newProcessor(WithMailer(mail), WithUploads(uploads))
	state := session.NewFormState()

	_, err := p.Process(context.Background(), Request{
		Form:   model.FormConfig{ID: "1", SendViaEmail: true, Recipient: "x@y.com"},
		Result: contactResult(),
		State:  state,
	})
	var integrity *model.UploadIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected upload integrity error, got %v", err)
	}
	if len(mail.Messages()) != 0 || uploads.resets != 0 || state.SubmittedAt != nil {
		t.Fatalf("no sink or reset may run after an integrity failure")
	}
}

type recorder struct{ calls *[]string }

func (r recorder) PrepareSubmission(_ context.Context, _ model.FormConfig, result model.SubmissionResult) (model.SubmissionResult, error) {
	*r.calls = append(*r.calls, "prepare")
	result.Set("name", "", model.SingleValue("ADA"))
	return result, nil
}

func (r recorder) ProcessedSubmission(_ context.Context, _ model.FormConfig, result model.SubmissionResult) error {
	*r.calls = append(*r.calls, "processed:"+result.Text("name"))
	return nil
}

func TestProcess_HookOrderAndSingleReset(t *testing.T) {
	var calls []string
	uploads := &stubUploads{log: &calls}
	mail := &testsupport.Mailer{}
	hooks := recorder{calls: &calls}
	p := newProcessor(
		WithMailer(mail),
		WithUploads(uploads),
		WithPrepareHooks(hooks),
		WithProcessedHooks(hooks),
	)
	state := session.NewFormState()
	state.SetPending("cv", model.PendingUpload{OriginalName: "a.pdf"})

	outcome, err := p.Process(context.Background(), Request{
		Form:   model.FormConfig{ID: "1", SendViaEmail: true, Recipient: "x@y.com"},
		Result: contactResult(),
		State:  state,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if diff := cmp.Diff([]string{"commit", "prepare", "processed:ADA", "reset"}, calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
	if uploads.resets != 1 || len(state.PendingUploads) != 0 {
		t.Fatalf("expected exactly one reset, got %d", uploads.resets)
	}
	if !strings.HasPrefix(mail.Messages()[0].Body, "Name: ADA\n") {
		t.Fatalf("prepare hook changes must reach the e-mail, got %q", mail.Messages()[0].Body)
	}
	if outcome.Result.Text("name") != "ADA" {
		t.Fatalf("outcome should carry the prepared result")
	}
}

func TestProcess_SinksAreIndependent(t *testing.T) {
	mail := &testsupport.Mailer{Err: testsupport.ErrTransport}
	db := testsupport.NewRelational(testsupport.Table("tl_leads",
		store.Column{Name: "name", DataType: "text"},
	))
	var observed []string
	p := newProcessor(
		WithMailer(mail),
		WithStore(db),
		WithSinkFailureObserver(func(_, sink string, _ error) { observed = append(observed, sink) }),
	)
	state := session.NewFormState()
	req := Request{
		Form:   model.FormConfig{ID: "1", SendViaEmail: true, Recipient: "x@y.com", StoreValues: true, TargetTable: "tl_leads"},
		Result: contactResult(),
		State:  state,
	}

	outcome, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("best effort mode must not fail: %v", err)
	}
	if !outcome.Failed {
		t.Fatalf("expected failed outcome")
	}
	var transport *model.TransportError
	if !errors.As(outcome.SinkErrors[SinkEmail], &transport) || transport.Sink != SinkEmail {
		t.Fatalf("expected e-mail transport error, got %v", outcome.SinkErrors)
	}
	if len(db.Inserted("tl_leads")) != 1 {
		t.Fatalf("database sink must still run")
	}
	if state.SubmittedAt == nil {
		t.Fatalf("session sink must still run")
	}
	if diff := cmp.Diff([]string{SinkEmail}, observed); diff != "" {
		t.Fatalf("observer mismatch (-want +got):\n%s", diff)
	}

	strict := newProcessor(WithMailer(mail), WithStore(db), WithStrictSinks(true))
	if _, err := strict.Process(context.Background(), req); !errors.Is(err, testsupport.ErrTransport) {
		t.Fatalf("strict mode should surface the sink error, got %v", err)
	}
}

func TestBuildRow(t *testing.T) {
	schema := testsupport.Table("tl_leads",
		store.Column{Name: "tstamp", DataType: "bigint"},
		store.Column{Name: "name", DataType: "text"},
		store.Column{Name: "age", DataType: "integer"},
		store.Column{Name: "born", DataType: "bigint", Nullable: true},
		store.Column{Name: "visit", DataType: "bigint"},
		store.Column{Name: "topics", DataType: "text"},
		store.Column{Name: "cv", DataType: "text"},
		store.Column{Name: "optin", DataType: "boolean"},
		store.Column{Name: "colors", DataType: "text"},
		store.Column{Name: "sizes", DataType: "text", Nullable: true},
	)
	result := model.SubmissionResult{
		Fields: []model.SubmittedField{
			{Name: "name", Value: model.SingleValue("Ada")},
			{Name: "age", Value: model.SingleValue("")},
			{Name: "born", Rgxp: model.RegexpDate, Value: model.SingleValue("1815-12-10")},
			{Name: "visit", Rgxp: model.RegexpTime, Value: model.SingleValue("10:30")},
			{Name: "topics", Value: model.MultiValue([]string{"math", "poetry"})},
			{Name: "cv", Type: model.FieldTypeUpload, Value: model.SingleValue("cv.pdf")},
			{Name: "optin", Value: model.SingleValue("")},
			{Name: "colors", Value: model.MultiValue(nil)},
			{Name: "sizes", Value: model.MultiValue([]string{""})},
			{Name: "unknown", Value: model.SingleValue("dropped")},
		},
		UploadedFiles: []model.UploadedFile{{FieldName: "cv", StoredPath: "files/cv.pdf"}},
	}

	row := newProcessor().BuildRow(schema, result)
	want := store.Row{
		"tstamp": fixedNow.Unix(),
		"name":   "Ada",
		"age":    0,
		"born":   time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC).Unix(),
		"visit":  int64(10*3600 + 30*60),
		"topics": `["math","poetry"]`,
		"cv":     "files/cv.pdf",
		"optin":  false,
		"colors": "",
		"sizes":  "",
	}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreRowHookRewritesRow(t *testing.T) {
	db := testsupport.NewRelational(testsupport.Table("tl_leads", store.Column{Name: "name", DataType: "text"}))
	hook := StoreRowHookFunc(func(_ context.Context, _ model.FormConfig, row store.Row) (store.Row, error) {
		row["name"] = strings.ToUpper(row["name"].(string))
		return row, nil
	})
	p := newProcessor(WithStore(db), WithStoreRowHooks(hook))
	_, err := p.Process(context.Background(), Request{
		Form:   model.FormConfig{ID: "1", StoreValues: true, TargetTable: "tl_leads"},
		Result: contactResult(),
		State:  session.NewFormState(),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := db.Inserted("tl_leads")[0]["name"]; got != "ADA" {
		t.Fatalf("expected hooked row, got %v", got)
	}
}

func TestSessionSinkPersistsRemainingPost(t *testing.T) {
	state := session.NewFormState()
	post := url.Values{
		"FORM_SUBMIT":   {"auto_form_1"},
		"REQUEST_TOKEN": {"tok"},
		"extra":         {"<b>bold</b> & more"},
		"tags[]":        {"a", "b"},
	}

	p := newProcessor()
	if _, err := p.Process(context.Background(), Request{Form: model.FormConfig{ID: "1"}, Post: post, State: state}); err != nil {
		t.Fatalf("process: %v", err)
	}
	want := map[string]string{"extra": "bold &amp; more", "tags": `["a","b"]`}
	if diff := cmp.Diff(want, state.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	allow := session.NewFormState()
	if _, err := p.Process(context.Background(), Request{Form: model.FormConfig{ID: "1", AllowTags: true}, Post: post, State: allow}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := allow.Values["extra"]; got != "<b>bold</b> & more" {
		t.Fatalf("allow tags value: %q", got)
	}
}

func TestProcess_ConfirmationAndRedirect(t *testing.T) {
	state := session.NewFormState()
	outcome, err := newProcessor().Process(context.Background(), Request{
		Form:  model.FormConfig{ID: "1", JumpTo: "/thanks", Confirmation: "Thank you!"},
		State: state,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.RedirectURL != "/thanks" || outcome.Reload {
		t.Fatalf("expected redirect, got %+v", outcome)
	}
	if diff := cmp.Diff([]string{"Thank you!"}, state.Messages[session.MessageConfirm]); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMail_FormatsAndUploads(t *testing.T) {
	staged := filepath.Join(t.TempDir(), "staged.pdf")
	if err := os.WriteFile(staged, testsupport.PDFHeader, 0o600); err != nil {
		t.Fatalf("write staged: %v", err)
	}
	p := newProcessor(WithBaseURL("https://example.com/"))
	result := contactResult()
	result.UploadedFiles = []model.UploadedFile{
		{FieldName: "cv", StoredPath: "files/cv.pdf", OriginalName: "cv.pdf"},
		{FieldName: "photo", TempPath: staged, OriginalName: "me.pdf", MimeType: "application/pdf"},
	}

	msg, err := p.BuildMail(Request{Form: model.FormConfig{ID: "1", Recipient: "x@y.com", Format: model.MailFormatCSVExcel}}, result)
	if err != nil {
		t.Fatalf("build mail: %v", err)
	}
	if !strings.Contains(msg.Body, "Uploaded files:\nhttps://example.com/files/cv.pdf\n") {
		t.Fatalf("expected stored file link, got %q", msg.Body)
	}
	if len(msg.Attachments) != 2 {
		t.Fatalf("expected csv and staged file attachments, got %d", len(msg.Attachments))
	}
	csv := msg.Attachments[0].Data
	if !bytes.HasPrefix(csv, []byte{0xFF, 0xFE, 's', 0, 'e', 0, 'p', 0, '=', 0, ';', 0}) {
		t.Fatalf("expected utf-16le bom and sep hint, got % x", csv[:12])
	}
	if msg.Attachments[1].Path != staged {
		t.Fatalf("expected staged file attachment")
	}

	emailFormat, err := p.BuildMail(Request{Form: model.FormConfig{ID: "1", Recipient: "x@y.com", Format: model.MailFormatEmail}}, result)
	if err != nil {
		t.Fatalf("build mail: %v", err)
	}
	if emailFormat.Body != "hi\n\nUploaded files:\nhttps://example.com/files/cv.pdf\n" {
		t.Fatalf("email format should send the message field and file links, got %q", emailFormat.Body)
	}
}

func TestEncoders(t *testing.T) {
	fields := MailFields(contactResult(), true)

	csvData, err := EncodeCSV(fields)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if diff := cmp.Diff("name;email;message\r\nAda;ada@example.com;hi\r\n", string(csvData)); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}

	xmlData, err := EncodeXML(fields)
	if err != nil {
		t.Fatalf("xml: %v", err)
	}
	for _, want := range []string{"<form>", "<field_name>email</field_name>", "<value>ada@example.com</value>"} {
		if !strings.Contains(string(xmlData), want) {
			t.Fatalf("expected %q in %s", want, xmlData)
		}
	}
}

func TestReplyToFallsBackToFirstAndLastName(t *testing.T) {
	result := model.SubmissionResult{Fields: []model.SubmittedField{
		{Name: "email", Value: model.SingleValue("ada@example.com")},
		{Name: "firstname", Value: model.SingleValue("Ada")},
		{Name: "lastname", Value: model.SingleValue("Lovelace")},
	}}
	if got := ReplyTo(result); got != `"Ada Lovelace" <ada@example.com>` {
		t.Fatalf("unexpected reply-to %q", got)
	}
	if got := ReplyTo(model.SubmissionResult{}); got != "" {
		t.Fatalf("expected empty reply-to, got %q", got)
	}
}

func TestParseRecipients(t *testing.T) {
	cases := []struct {
		list string
		want []string
	}{
		{"office@example.com", []string{"office@example.com"}},
		{"a@b.com, c@d.com", []string{"a@b.com", "c@d.com"}},
		{`"Front Desk" <desk@example.com>, x@y.com`, []string{`"Front Desk" <desk@example.com>`, "x@y.com"}},
	}
	for _, tc := range cases {
		got, err := ParseRecipients(tc.list)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.list, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("recipients for %q mismatch (-want +got):\n%s", tc.list, diff)
		}
	}
	if _, err := ParseRecipients("not an address"); err == nil {
		t.Fatalf("expected an error for an invalid list")
	}
}
