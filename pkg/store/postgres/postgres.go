// Package postgres implements store.Relational on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/store"
)

// Querier is the subset of *pgxpool.Pool used by Store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes submission rows to PostgreSQL.
type Store struct {
	db      Querier
	schemas *cache.Cache
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds each statement.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithSchemaTTL controls how long table schemas are cached.
func WithSchemaTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.schemas = cache.New(ttl, 2*ttl)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps an existing pool or connection.
func New(db Querier, opts ...Option) *Store {
	s := &Store{
		db:      db,
		schemas: cache.New(5*time.Minute, 10*time.Minute),
		timeout: 5 * time.Second,
		logger:  zap.S(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, *pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(pool, opts...), pool, nil
}

const columnsQuery = `
	SELECT column_name, data_type, is_nullable = 'YES'
	FROM information_schema.columns
	WHERE table_schema = ANY (current_schemas(false)) AND table_name = $1
	ORDER BY ordinal_position`

// Schema implements store.Relational.
func (s *Store) Schema(ctx context.Context, table string) (store.Schema, error) {
	if cached, ok := s.schemas.Get(table); ok {
		return cached.(store.Schema), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, columnsQuery, table)
	if err != nil {
		return store.Schema{}, classify(err)
	}
	defer rows.Close()

	schema := store.Schema{Table: table, Columns: make(map[string]store.Column)}
	for rows.Next() {
		var col store.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable); err != nil {
			return store.Schema{}, fmt.Errorf("postgres: scan column: %w", err)
		}
		col.Kind = store.KindOf(col.DataType)
		schema.Columns[col.Name] = col
	}
	if err := rows.Err(); err != nil {
		return store.Schema{}, classify(err)
	}
	if len(schema.Columns) == 0 {
		return store.Schema{}, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}
	s.schemas.Set(table, schema, cache.DefaultExpiration)
	return schema, nil
}

// Insert implements store.Relational.
func (s *Store) Insert(ctx context.Context, table string, row store.Row) error {
	if len(row) == 0 {
		return nil
	}
	sql, args := InsertStatement(table, row)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		s.logger.Warnw("insert failed", "table", table, "error", err)
		return classify(err)
	}
	s.logger.Debugw("row inserted", "table", table, "columns", len(row), "tag", tag.String())
	return nil
}

// InsertStatement builds a parameterised INSERT for row. Columns are
// emitted in sorted order.
func InsertStatement(table string, row store.Row) (string, []any) {
	columns := row.Columns()
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, name := range columns {
		quoted[i] = pgx.Identifier{name}.Sanitize()
		params[i] = "$" + strconv.Itoa(i+1)
		args[i] = row[name]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "),
	)
	return sql, args
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %w", err)
	}
	switch {
	case pgErr.Code == "42P01":
		return fmt.Errorf("%w: %s", store.ErrUnknownTable, pgErr.Message)
	case strings.HasPrefix(pgErr.Code, "23"):
		return fmt.Errorf("%w: %s (%s)", store.ErrConstraint, pgErr.Message, pgErr.ConstraintName)
	}
	return fmt.Errorf("postgres: %s: %w", pgErr.Code, err)
}
