package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type tableRepository struct {
	querier     Querier
	placeholder sq.PlaceholderFormat
}

// questionFormat keeps ? placeholders and collapses the "??" escape used for
// literal question marks, matching what sq.Dollar does with it.
type questionFormat struct{}

func (questionFormat) ReplacePlaceholders(sql string) (string, error) {
	return strings.ReplaceAll(sql, "??", "?"), nil
}

// NewTableRepository binds a querier to the placeholder style of its driver.
func NewTableRepository(querier Querier, placeholder sq.PlaceholderFormat) TableReader {
	if placeholder == nil || placeholder == sq.Question {
		placeholder = questionFormat{}
	}
	return &tableRepository{querier: querier, placeholder: placeholder}
}

// NewPostgresTableRepository reads through a pgx pool using $n placeholders.
func NewPostgresTableRepository(querier Querier) TableReader {
	return NewTableRepository(querier, sq.Dollar)
}

func (r *tableRepository) Select(ctx context.Context, query sq.SelectBuilder) ([]Record, error) {
	sqlText, args, err := query.PlaceholderFormat(r.placeholder).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	records, err := r.querier.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return records, nil
}
