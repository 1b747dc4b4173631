package model

import (
	"strings"
)

// FieldType enumerates the widget kinds a form schema may declare.
type FieldType string

const (
	FieldTypeText          FieldType = "text"
	FieldTypeTextarea      FieldType = "textarea"
	FieldTypePassword      FieldType = "password"
	FieldTypeUpload        FieldType = "upload"
	FieldTypeRadio         FieldType = "radio"
	FieldTypeCheckbox      FieldType = "checkbox"
	FieldTypeSelect        FieldType = "select"
	FieldTypeHidden        FieldType = "hidden"
	FieldTypeExplanation   FieldType = "explanation"
	FieldTypeHTML          FieldType = "html"
	FieldTypeFieldsetStart FieldType = "fieldsetStart"
	FieldTypeFieldsetStop  FieldType = "fieldsetStop"
	FieldTypeSubmit        FieldType = "submit"
	FieldTypeRange         FieldType = "range"
	FieldTypeCaptcha       FieldType = "captcha"
)

// RegexpKind names the validation pattern applied to text-like input.
type RegexpKind string

const (
	RegexpNone    RegexpKind = ""
	RegexpDigit   RegexpKind = "digit"
	RegexpNatural RegexpKind = "natural"
	RegexpPrcnt   RegexpKind = "prcnt"
	RegexpAlpha   RegexpKind = "alpha"
	RegexpAlnum   RegexpKind = "alnum"
	RegexpExtnd   RegexpKind = "extnd"
	RegexpDate    RegexpKind = "date"
	RegexpTime    RegexpKind = "time"
	RegexpDatim   RegexpKind = "datim"
	RegexpEmail   RegexpKind = "email"
	RegexpEmails  RegexpKind = "emails"
	RegexpURL     RegexpKind = "url"
	RegexpAlias   RegexpKind = "alias"
	RegexpPhone   RegexpKind = "phone"
)

// IsDateLike reports whether values of this kind carry a date and/or time.
func (k RegexpKind) IsDateLike() bool {
	return k == RegexpDate || k == RegexpTime || k == RegexpDatim
}

// Option is one selectable choice of a radio, checkbox or select field.
type Option struct {
	Value   string `json:"value" yaml:"value"`
	Label   string `json:"label" yaml:"label"`
	Group   string `json:"group,omitempty" yaml:"group,omitempty"`
	Default bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

// FieldDescriptor describes one form field as delivered by the schema
// provider. Descriptors are treated as immutable for the lifetime of a
// request.
type FieldDescriptor struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Type        FieldType  `json:"type" yaml:"type"`
	Label       string     `json:"label,omitempty" yaml:"label,omitempty"`
	Mandatory   bool       `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Rgxp        RegexpKind `json:"rgxp,omitempty" yaml:"rgxp,omitempty"`
	MinLength   int        `json:"minlength,omitempty" yaml:"minlength,omitempty"`
	MaxLength   int        `json:"maxlength,omitempty" yaml:"maxlength,omitempty"`
	MinValue    *float64   `json:"minval,omitempty" yaml:"minval,omitempty"`
	MaxValue    *float64   `json:"maxval,omitempty" yaml:"maxval,omitempty"`
	Min         *float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64   `json:"max,omitempty" yaml:"max,omitempty"`
	Step        *float64   `json:"step,omitempty" yaml:"step,omitempty"`
	Options     []Option   `json:"options,omitempty" yaml:"options,omitempty"`
	Multiple    bool       `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	StoreValue  *bool      `json:"storeValue,omitempty" yaml:"storeValue,omitempty"`
	AllowsHTML  bool       `json:"allowsHtml,omitempty" yaml:"allowsHtml,omitempty"`
	Value       string     `json:"value,omitempty" yaml:"value,omitempty"`
	Placeholder string     `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Class       string     `json:"class,omitempty" yaml:"class,omitempty"`
	Text        string     `json:"text,omitempty" yaml:"text,omitempty"`
	Sorting     int        `json:"sorting,omitempty" yaml:"sorting,omitempty"`

	Extensions     []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	MaxFileSize    int64    `json:"maxFileSize,omitempty" yaml:"maxFileSize,omitempty"`
	StoreFile      bool     `json:"storeFile,omitempty" yaml:"storeFile,omitempty"`
	UploadFolder   string   `json:"uploadFolder,omitempty" yaml:"uploadFolder,omitempty"`
	UseHomeDir     bool     `json:"useHomeDir,omitempty" yaml:"useHomeDir,omitempty"`
	DoNotOverwrite bool     `json:"doNotOverwrite,omitempty" yaml:"doNotOverwrite,omitempty"`
}

// StoresValue reports whether the field contributes a value to the
// submission. An explicit StoreValue wins over the per-type default.
func (f FieldDescriptor) StoresValue() bool {
	if f.StoreValue != nil {
		return *f.StoreValue
	}
	switch f.Type {
	case FieldTypeSubmit, FieldTypeExplanation, FieldTypeHTML,
		FieldTypeFieldsetStart, FieldTypeFieldsetStop:
		return false
	default:
		return true
	}
}

// IsButton reports whether the field renders as a button.
func (f FieldDescriptor) IsButton() bool {
	return f.Type == FieldTypeSubmit
}

// DisplayLabel returns the configured label or a label derived from the name.
func (f FieldDescriptor) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return DefaultLabeler(f.Name)
}

// AllowedExtensions returns the lower-cased extension allow-list.
func (f FieldDescriptor) AllowedExtensions() []string {
	out := make([]string, 0, len(f.Extensions))
	for _, ext := range f.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// HasOption reports whether value is one of the declared option values.
func (f FieldDescriptor) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// MailFormat selects how the e-mail sink encodes a submission.
type MailFormat string

const (
	MailFormatRaw      MailFormat = "raw"
	MailFormatEmail    MailFormat = "email"
	MailFormatXML      MailFormat = "xml"
	MailFormatCSV      MailFormat = "csv"
	MailFormatCSVExcel MailFormat = "csv_excel"
)

// FormConfig holds the form-level settings that drive rendering and the
// submission sinks.
type FormConfig struct {
	ID           string            `json:"id" yaml:"id"`
	Alias        string            `json:"alias,omitempty" yaml:"alias,omitempty"`
	Title        string            `json:"title,omitempty" yaml:"title,omitempty"`
	Method       string            `json:"method,omitempty" yaml:"method,omitempty"`
	Action       string            `json:"action,omitempty" yaml:"action,omitempty"`
	JumpTo       string            `json:"jumpTo,omitempty" yaml:"jumpTo,omitempty"`
	SendViaEmail bool              `json:"sendViaEmail,omitempty" yaml:"sendViaEmail,omitempty"`
	Recipient    string            `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	Subject      string            `json:"subject,omitempty" yaml:"subject,omitempty"`
	Format       MailFormat        `json:"format,omitempty" yaml:"format,omitempty"`
	SkipEmpty    bool              `json:"skipEmpty,omitempty" yaml:"skipEmpty,omitempty"`
	StoreValues  bool              `json:"storeValues,omitempty" yaml:"storeValues,omitempty"`
	TargetTable  string            `json:"targetTable,omitempty" yaml:"targetTable,omitempty"`
	AllowTags    bool              `json:"allowTags,omitempty" yaml:"allowTags,omitempty"`
	Confirmation string            `json:"confirmation,omitempty" yaml:"confirmation,omitempty"`
	NoValidate   bool              `json:"novalidate,omitempty" yaml:"novalidate,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Key returns the identifier used to scope session state for the form.
func (f FormConfig) Key() string {
	if alias := strings.TrimSpace(f.Alias); alias != "" {
		return alias
	}
	return "form_" + strings.TrimSpace(f.ID)
}

// MarkerToken returns the value the hidden FORM_SUBMIT field must carry for a
// POST to count as a submission of this form.
func (f FormConfig) MarkerToken() string {
	return "auto_" + f.Key()
}

// MailFormatOrDefault falls back to the raw format.
func (f FormConfig) MailFormatOrDefault() MailFormat {
	if f.Format == "" {
		return MailFormatRaw
	}
	return f.Format
}
