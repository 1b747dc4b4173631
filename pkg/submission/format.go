package submission

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/goliatone/go-formflow/pkg/model"
)

// CopyField is the posted field that asks for a copy of the e-mail.
const CopyField = "cc"

// MailField is one line of the e-mail body and structured attachments.
type MailField struct {
	Name   string
	Label  string
	Values []string
}

// Text returns the values joined for the plain text body.
func (f MailField) Text() string {
	return strings.Join(f.Values, ", ")
}

// MailFields selects the fields that appear in the e-mail: the copy flag and
// upload fields are left out and, with skipEmpty, so are empty values.
func MailFields(result model.SubmissionResult, skipEmpty bool) []MailField {
	out := make([]MailField, 0, len(result.Fields))
	for _, field := range result.Fields {
		if field.Name == CopyField || field.Type == model.FieldTypeUpload {
			continue
		}
		if skipEmpty && field.Value.IsEmpty() {
			continue
		}
		label := field.Label
		if label == "" {
			label = model.DefaultLabeler(field.Name)
		}
		out = append(out, MailField{Name: field.Name, Label: label, Values: field.Value.Strings()})
	}
	return out
}

// PlainBody renders "Label: value" lines.
func PlainBody(fields []MailField) string {
	var b strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&b, "%s: %s\n", field.Label, field.Text())
	}
	return b.String()
}

type xmlForm struct {
	XMLName xml.Name   `xml:"form"`
	Fields  []xmlField `xml:"fields>field"`
}

type xmlField struct {
	Name   string   `xml:"field_name"`
	Values []string `xml:"values>value"`
}

// EncodeXML renders the fields as an XML document.
func EncodeXML(fields []MailField) ([]byte, error) {
	doc := xmlForm{Fields: make([]xmlField, 0, len(fields))}
	for _, field := range fields {
		doc.Fields = append(doc.Fields, xmlField{Name: field.Name, Values: field.Values})
	}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("submission: encode xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// EncodeCSV renders a header row of field names and one row of values,
// separated by semicolons.
func EncodeCSV(fields []MailField) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCSV(&buf, fields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeExcelCSV renders the CSV preceded by a "sep=;" hint and encoded as
// UTF-16LE with a byte order mark.
func EncodeExcelCSV(fields []MailField) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("sep=;\r\n")
	if err := writeCSV(&buf, fields); err != nil {
		return nil, err
	}
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	out, err := encoder.Bytes(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("submission: encode utf-16: %w", err)
	}
	return out, nil
}

func writeCSV(buf *bytes.Buffer, fields []MailField) error {
	w := csv.NewWriter(buf)
	w.Comma = ';'
	w.UseCRLF = true
	names := make([]string, len(fields))
	values := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name
		values[i] = field.Text()
	}
	if err := w.Write(names); err != nil {
		return fmt.Errorf("submission: encode csv: %w", err)
	}
	if err := w.Write(values); err != nil {
		return fmt.Errorf("submission: encode csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("submission: encode csv: %w", err)
	}
	return nil
}
