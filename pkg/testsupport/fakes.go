package testsupport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/mailer"
	"github.com/goliatone/go-formflow/pkg/store"
)

// Mailer records sent messages. Err, when set, is returned from Send.
type Mailer struct {
	mu   sync.Mutex
	Sent []mailer.Message
	Err  error
}

// Send implements mailer.Mailer.
func (m *Mailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *Mailer) Messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.Sent...)
}

// Relational is an in-memory store.Relational.
type Relational struct {
	mu        sync.Mutex
	Tables    map[string]store.Schema
	Rows      map[string][]store.Row
	InsertErr error
}

// NewRelational returns a store with the given tables.
func NewRelational(schemas ...store.Schema) *Relational {
	r := &Relational{Tables: map[string]store.Schema{}, Rows: map[string][]store.Row{}}
	for _, schema := range schemas {
		r.Tables[schema.Table] = schema
	}
	return r
}

// Table builds a schema from columns.
func Table(name string, columns ...store.Column) store.Schema {
	schema := store.Schema{Table: name, Columns: make(map[string]store.Column, len(columns))}
	for _, col := range columns {
		if col.Kind == "" {
			col.Kind = store.KindOf(col.DataType)
		}
		schema.Columns[col.Name] = col
	}
	return schema
}

// Schema implements store.Relational.
func (r *Relational) Schema(_ context.Context, table string) (store.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	schema, ok := r.Tables[table]
	if !ok {
		return store.Schema{}, store.ErrUnknownTable
	}
	return schema, nil
}

// Insert implements store.Relational.
func (r *Relational) Insert(_ context.Context, table string, row store.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}
	if _, ok := r.Tables[table]; !ok {
		return store.ErrUnknownTable
	}
	copied := make(store.Row, len(row))
	for k, v := range row {
		copied[k] = v
	}
	r.Rows[table] = append(r.Rows[table], copied)
	return nil
}

// Inserted returns the rows written to table.
func (r *Relational) Inserted(table string) []store.Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Row(nil), r.Rows[table]...)
}

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock fixed at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now implements clock.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ErrTransport is a canned collaborator failure.
var ErrTransport = errors.New("testsupport: transport down")

// Hasher is a deterministic password hasher.
type Hasher struct{}

// Hash implements widget.PasswordHasher.
func (Hasher) Hash(plain string) (string, error) {
	return "hash(" + string(rune('0'+len(plain)%10)) + ")", nil
}
