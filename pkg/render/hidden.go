package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reserved hidden input names emitted with every form.
const (
	FormSubmitField   = "FORM_SUBMIT"
	RequestTokenField = "REQUEST_TOKEN"
	MaxFileSizeField  = "MAX_FILE_SIZE"
)

// ReservedField reports whether name is one of the hidden inputs managed by
// the pipeline rather than by a widget.
func ReservedField(name string) bool {
	switch strings.TrimSpace(name) {
	case FormSubmitField, RequestTokenField, MaxFileSizeField:
		return true
	}
	return false
}

// HiddenField represents a hidden form input emitted alongside the widgets.
type HiddenField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Hidden returns a HiddenField for an arbitrary name/value pair.
func Hidden(name string, value any) HiddenField {
	return HiddenField{
		Name:  strings.TrimSpace(name),
		Value: fmt.Sprint(value),
	}
}

// FormSubmit carries the marker token that identifies a submission of a form.
func FormSubmit(token string) HiddenField {
	return Hidden(FormSubmitField, token)
}

// RequestToken carries the host-issued anti-forgery token.
func RequestToken(token string) HiddenField {
	return Hidden(RequestTokenField, token)
}

// MaxFileSize advertises the upload limit in bytes to the browser.
func MaxFileSize(bytes int64) HiddenField {
	return Hidden(MaxFileSizeField, strconv.FormatInt(bytes, 10))
}

// MergeHiddenFields returns a copy of base with the provided fields applied.
// Empty names are ignored; later fields win on name collisions.
func MergeHiddenFields(base map[string]string, fields ...HiddenField) map[string]string {
	if len(base) == 0 && len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(fields))
	for key, value := range base {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			out[trimmed] = value
		}
	}
	for _, field := range fields {
		if field.Name == "" {
			continue
		}
		out[field.Name] = field.Value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SortedHiddenFields returns fields in render order: FORM_SUBMIT,
// REQUEST_TOKEN and MAX_FILE_SIZE first, then the rest by name.
func SortedHiddenFields(fields map[string]string) []HiddenField {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		if strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := hiddenRank(names[i]), hiddenRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	result := make([]HiddenField, 0, len(names))
	for _, name := range names {
		result = append(result, HiddenField{Name: name, Value: fields[name]})
	}
	return result
}

func hiddenRank(name string) int {
	switch name {
	case FormSubmitField:
		return 0
	case RequestTokenField:
		return 1
	case MaxFileSizeField:
		return 2
	default:
		return 3
	}
}
