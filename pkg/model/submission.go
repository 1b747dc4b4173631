package model

import "strings"

// UploadErrorCode mirrors the transport-level result of a file upload.
type UploadErrorCode int

const (
	UploadOK UploadErrorCode = iota
	// UploadIniSize: the body exceeded the server-wide upload limit.
	UploadIniSize
	// UploadFormSize: the file exceeded the limit advertised by the form.
	UploadFormSize
	UploadPartial
	UploadNoFile
	UploadTransport
)

// PostedFile is one file received with the request, already spooled to disk
// by the transport layer.
type PostedFile struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	TempPath    string
	// Genuine is set by the transport when the file really arrived as part of
	// this request body.
	Genuine   bool
	ErrorCode UploadErrorCode
}

// Missing reports whether no file was selected for the field.
func (f *PostedFile) Missing() bool {
	return f == nil || f.ErrorCode == UploadNoFile || (f.Filename == "" && f.Size == 0)
}

// PendingUpload is the session bookkeeping for one accepted upload.
type PendingUpload struct {
	TempPath     string `json:"tempPath"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	SizeBytes    int64  `json:"sizeBytes"`
	Uploaded     bool   `json:"uploaded"`
	StoredPath   string `json:"storedPath,omitempty"`
	UUID         string `json:"uuid,omitempty"`
}

// UploadedFile describes a file that is part of a successful submission.
type UploadedFile struct {
	FieldName    string
	StoredPath   string
	TempPath     string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	UUID         string
}

// Persisted reports whether the file was moved to permanent storage.
func (f UploadedFile) Persisted() bool {
	return f.StoredPath != ""
}

// SubmittedField is one entry of a submission, in field declaration order.
type SubmittedField struct {
	Name  string
	Label string
	Type  FieldType
	Rgxp  RegexpKind
	Value Value
}

// SubmissionResult aggregates the normalised values of a fully valid
// submission.
type SubmissionResult struct {
	Fields          []SubmittedField
	UploadedFiles   []UploadedFile
	CopyToSubmitter bool
}

// Get returns the value submitted for name.
func (r SubmissionResult) Get(name string) (Value, bool) {
	for _, field := range r.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Text returns the trimmed string form of the value submitted for name.
func (r SubmissionResult) Text(name string) string {
	v, ok := r.Get(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

// Set replaces the value for name or appends a new entry.
func (r *SubmissionResult) Set(name, label string, value Value) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = value
			if label != "" {
				r.Fields[i].Label = label
			}
			return
		}
	}
	if label == "" {
		label = DefaultLabeler(name)
	}
	r.Fields = append(r.Fields, SubmittedField{Name: name, Label: label, Value: value})
}

// Remove drops name from the submission.
func (r *SubmissionResult) Remove(name string) {
	out := r.Fields[:0]
	for _, field := range r.Fields {
		if field.Name != name {
			out = append(out, field)
		}
	}
	r.Fields = out
}

// Values returns a name to value map.
func (r SubmissionResult) Values() map[string]Value {
	out := make(map[string]Value, len(r.Fields))
	for _, field := range r.Fields {
		out[field.Name] = field.Value
	}
	return out
}

// Labels returns a name to label map.
func (r SubmissionResult) Labels() map[string]string {
	out := make(map[string]string, len(r.Fields))
	for _, field := range r.Fields {
		out[field.Name] = field.Label
	}
	return out
}

// Clone returns a copy whose slices can be mutated independently.
func (r SubmissionResult) Clone() SubmissionResult {
	out := SubmissionResult{CopyToSubmitter: r.CopyToSubmitter}
	out.Fields = append([]SubmittedField(nil), r.Fields...)
	out.UploadedFiles = append([]UploadedFile(nil), r.UploadedFiles...)
	return out
}

// Submitter identifies the visitor behind a request. The zero value is an
// anonymous visitor.
type Submitter struct {
	ID       string
	Username string
	// HomeDir replaces the upload folder of fields configured to store files
	// in the member's home directory.
	HomeDir string
}

// Authenticated reports whether the submitter is a logged in member.
func (s Submitter) Authenticated() bool {
	return strings.TrimSpace(s.Username) != ""
}
