package postgres

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/goliatone/go-formflow/pkg/store"
)

func TestInsertStatement(t *testing.T) {
	sql, args := InsertStatement("tl_leads", store.Row{
		"tstamp": int64(1700000000),
		"email":  "a@b.com",
		"name":   "Ada",
	})

	want := `INSERT INTO "tl_leads" ("email", "name", "tstamp") VALUES ($1, $2, $3)`
	if sql != want {
		t.Fatalf("sql mismatch\nwant %s\ngot  %s", want, sql)
	}
	if diff := cmp.Diff([]any{"a@b.com", "Ada", int64(1700000000)}, args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertStatement_QuotesIdentifiers(t *testing.T) {
	sql, _ := InsertStatement(`evil"table`, store.Row{`col"x`: 1})
	want := `INSERT INTO "evil""table" ("col""x") VALUES ($1)`
	if sql != want {
		t.Fatalf("sql mismatch\nwant %s\ngot  %s", want, sql)
	}
}

func TestClassify(t *testing.T) {
	if err := classify(&pgconn.PgError{Code: "42P01", Message: "relation missing"}); !errors.Is(err, store.ErrUnknownTable) {
		t.Fatalf("expected unknown table, got %v", err)
	}
	if err := classify(&pgconn.PgError{Code: "23505", Message: "duplicate"}); !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("expected constraint error, got %v", err)
	}
	plain := errors.New("boom")
	if err := classify(plain); !errors.Is(err, plain) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
