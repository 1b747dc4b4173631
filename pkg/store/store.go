// Package store describes the relational target of the database sink.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Row maps column names to values.
type Row map[string]any

// Columns returns the row keys in sorted order.
func (r Row) Columns() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Kind groups column types by the empty value they accept.
type Kind string

const (
	KindText    Kind = "text"
	KindNumeric Kind = "numeric"
	KindBool    Kind = "bool"
	KindOther   Kind = "other"
)

// Column describes one table column.
type Column struct {
	Name     string
	DataType string
	Kind     Kind
	Nullable bool
}

// Schema is the column set of a table.
type Schema struct {
	Table   string
	Columns map[string]Column
}

// ColumnExists reports whether the table has the named column.
func (s Schema) ColumnExists(name string) bool {
	_, ok := s.Columns[name]
	return ok
}

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	col, ok := s.Columns[name]
	return col, ok
}

// EmptyValueFor returns the value stored in place of an empty string.
// Nullable non-text columns get NULL, numeric columns 0, booleans false and
// everything else the empty string.
func (s Schema) EmptyValueFor(name string) any {
	col, ok := s.Columns[name]
	if !ok {
		return ""
	}
	return col.EmptyValue()
}

// EmptyValue implements the rule documented on Schema.EmptyValueFor.
func (c Column) EmptyValue() any {
	if c.Nullable && c.Kind != KindText {
		return nil
	}
	switch c.Kind {
	case KindNumeric:
		return 0
	case KindBool:
		return false
	}
	return ""
}

// KindOf classifies an SQL data type name.
func KindOf(dataType string) Kind {
	t := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case strings.Contains(t, "char"), strings.Contains(t, "text"), t == "citext", t == "uuid",
		strings.HasPrefix(t, "json"):
		return KindText
	case strings.HasPrefix(t, "int") && t != "interval", strings.HasSuffix(t, "int"), strings.HasPrefix(t, "numeric"), strings.HasPrefix(t, "decimal"),
		t == "real", strings.HasPrefix(t, "double"), t == "float", t == "serial", t == "bigserial":
		return KindNumeric
	case strings.HasPrefix(t, "bool"):
		return KindBool
	}
	return KindOther
}

var (
	// ErrUnknownTable is returned when the target table does not exist.
	ErrUnknownTable = errors.New("store: unknown table")
	// ErrConstraint is returned when a row violates a table constraint.
	ErrConstraint = errors.New("store: constraint violation")
)

// Relational is the database collaborator used by the submission
// processor.
type Relational interface {
	Schema(ctx context.Context, table string) (Schema, error)
	Insert(ctx context.Context, table string, row Row) error
}
