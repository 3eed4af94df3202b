package grouping

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/catalog"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

const sqliteSchema = `
CREATE TABLE users (id TEXT PRIMARY KEY, name TEXT NOT NULL, email TEXT);
CREATE TABLE departments (id TEXT PRIMARY KEY, name TEXT NOT NULL, sort_order INTEGER);
CREATE TABLE divisions (id TEXT PRIMARY KEY, name TEXT NOT NULL, level INTEGER);
CREATE TABLE locations (id TEXT PRIMARY KEY, name TEXT NOT NULL, sort_order INTEGER);
CREATE TABLE employees (
    id TEXT PRIMARY KEY,
    employee_number TEXT NOT NULL,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    department_id TEXT,
    manager_id TEXT,
    active BOOLEAN NOT NULL DEFAULT 1,
    hired_on TEXT
);
CREATE TABLE employee_assignments (
    id TEXT PRIMARY KEY,
    employee_number TEXT NOT NULL,
    division_id TEXT,
    location_id TEXT,
    is_primary BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    region TEXT,
    priority TEXT,
    owner_id TEXT,
    department_id TEXT,
    budget NUMERIC,
    archived BOOLEAN NOT NULL DEFAULT 0,
    due_date TEXT,
    created_at TEXT
);
`

const sqliteData = `
INSERT INTO users (id, name) VALUES ('u1', 'Alice'), ('u2', 'Bob'), ('u3', 'Alice');
INSERT INTO departments (id, name, sort_order) VALUES ('d1', 'Engineering', 2), ('d2', 'Sales', 1), ('d3', 'Ops', NULL);
INSERT INTO divisions (id, name, level) VALUES ('v1', 'Research', 2), ('v2', 'Operations', 1);
INSERT INTO locations (id, name, sort_order) VALUES ('l1', 'Berlin', 1), ('l2', 'Lisbon', 2);

INSERT INTO projects (id, name, status, region, priority, owner_id, department_id, budget, archived, due_date) VALUES
    ('p1', 'Apollo',   'active', 'EU',   'high',   'u1',    'd1', 1000, 0, '2024-01-15'),
    ('p2', 'Borealis', 'active', 'US',   'low',    'u2',    'd2', 250,  0, '2024-02-10'),
    ('p3', 'Cygnus',   'draft',  'EU',   'medium', 'u3',    'd1', NULL, 0, '2024-01-31'),
    ('p4', 'Draco',    'active', 'EU',   NULL,     'u1',    NULL, 500,  0, '2024-03-01'),
    ('p5', 'Eos',      'done',   NULL,   'high',   'ghost', 'd2', 75,   0, NULL),
    ('p6', 'Fornax',   'active', 'US',   'low',    'u1',    'd3', NULL, 1, '2024-01-01'),
    ('p7', 'Gemini',   'active', 'APAC', NULL,     NULL,    'd1', 300,  0, '2024-02-29');

INSERT INTO employees (id, employee_number, first_name, last_name, department_id, manager_id, active) VALUES
    ('e1', '100', 'Ada',   'Lovelace', 'd1', 'u1', 1),
    ('e2', '101', 'Ada',   'Lovelace', 'd2', 'u2', 1),
    ('e3', '102', 'Alan',  'Turing',   'd1', NULL, 1),
    ('e4', '103', 'Grace', 'Hopper',   NULL, 'u1', 0);

INSERT INTO employee_assignments (id, employee_number, division_id, location_id, is_primary) VALUES
    ('a1', '100', 'v1', 'l1',  1),
    ('a2', '100', 'v2', 'l2',  0),
    ('a3', '101', 'v2', 'l2',  1),
    ('a4', '103', 'v1', NULL,  1);
`

// openTestStore returns a reader over an in-memory SQLite database seeded with
// the demo schema.
func openTestStore(t *testing.T) (repository.TableReader, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would otherwise open its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	_, err = db.Exec(sqliteData)
	require.NoError(t, err)

	return repository.NewTableRepository(repository.NewSQLQuerier(db), sq.Question), db
}

func loadTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(filepath.Join("..", "..", "catalog"))
	require.NoError(t, err)
	return c
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	reader, _ := openTestStore(t)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewService(loadTestCatalog(t), reader, opts...)
}

// countingReader records every statement passed through to the wrapped reader.
type countingReader struct {
	inner repository.TableReader
	calls atomic.Int64
	fail  error
}

func (r *countingReader) Select(ctx context.Context, query sq.SelectBuilder) ([]repository.Record, error) {
	r.calls.Add(1)
	if r.fail != nil {
		return nil, r.fail
	}
	return r.inner.Select(ctx, query)
}

var errStoreDown = errors.New("store unavailable")

// stubCatalog serves a fixed set of entities. It does not validate them.
type stubCatalog map[string]*domain.EntitySpec

func (c stubCatalog) Entity(key string) (*domain.EntitySpec, bool) {
	entity, ok := c[key]
	return entity, ok
}

func (c stubCatalog) ResolveEntityByTableID(tableID string) (*domain.EntitySpec, bool) {
	return c.Entity(tableID)
}
