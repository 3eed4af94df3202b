package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// Record is one result row keyed by column name, with driver values normalized.
type Record map[string]any

// Querier runs a parameterized read statement.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) ([]Record, error)
}

// TableReader executes SELECT builders against the backing store.
type TableReader interface {
	Select(ctx context.Context, query sq.SelectBuilder) ([]Record, error)
}
