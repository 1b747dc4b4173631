package model

import (
	"strings"

	json "github.com/goccy/go-json"
)

// Value is the normalised value of one widget. Single-valued widgets carry
// exactly one entry; multi-valued widgets (checkbox groups, multiple selects)
// carry one entry per selected option.
type Value struct {
	values []string
	multi  bool
}

// SingleValue wraps a scalar value.
func SingleValue(v string) Value {
	return Value{values: []string{v}}
}

// MultiValue wraps an ordered selection.
func MultiValue(vs []string) Value {
	return Value{values: append([]string(nil), vs...), multi: true}
}

// IsMulti reports whether the value came from a multi-valued widget.
func (v Value) IsMulti() bool { return v.multi }

// Strings returns a copy of the underlying entries.
func (v Value) Strings() []string {
	return append([]string(nil), v.values...)
}

// String returns the scalar value, or the entries joined with ", " for
// multi-valued widgets.
func (v Value) String() string {
	if !v.multi {
		if len(v.values) == 0 {
			return ""
		}
		return v.values[0]
	}
	return strings.Join(v.values, ", ")
}

// IsEmpty reports whether the value carries no non-empty entry.
func (v Value) IsEmpty() bool {
	for _, entry := range v.values {
		if entry != "" {
			return false
		}
	}
	return true
}

// Encode returns the storable form of the value: scalars as-is, selections
// through EncodeMultiValue.
func (v Value) Encode() string {
	if v.multi {
		return EncodeMultiValue(v.values)
	}
	return v.String()
}

// EncodeMultiValue serialises a selection as a JSON array of strings, for
// example `["red","blue"]`. This is the format written to session state and
// database columns for multi-valued fields.
func EncodeMultiValue(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeMultiValue reverses EncodeMultiValue. Input that is not a JSON array
// is treated as a single selected value; the empty string decodes to nil.
func DecodeMultiValue(stored string) []string {
	trimmed := strings.TrimSpace(stored)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var out []string
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	return []string{stored}
}
