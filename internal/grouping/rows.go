package grouping

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/query"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

// rowQuery holds what every per-group row statement shares.
type rowQuery struct {
	entity    *domain.EntitySpec
	group     *resolvedGroup
	predicate sq.Sqlizer
	columns   []string
	orderBy   []string
	pageSize  int
	fieldKeys map[string]string
}

func (s *Service) newRowQuery(entity *domain.EntitySpec, group *resolvedGroup, predicate sq.Sqlizer, req Request) *rowQuery {
	columns := []string{query.BaseAlias + ".*"}
	fieldKeys := make(map[string]string, len(entity.Fields))

	for _, key := range sortedFieldKeys(entity) {
		field := entity.Fields[key]
		if !field.Virtual {
			fieldKeys[field.ColumnName()] = key
			continue
		}
		if concat, ok := field.Compute.(domain.Concat); ok {
			if expr, err := concatExpr(entity, concat); err == nil {
				columns = append(columns, expr+" AS "+query.QuoteIdent(key))
			}
		}
	}

	return &rowQuery{
		entity:    entity,
		group:     group,
		predicate: predicate,
		columns:   columns,
		orderBy:   rowOrdering(entity, req.SortBy, req.SortDirection),
		pageSize:  clampPageSize(req.GroupPageSize, s.defaultPageSize),
		fieldKeys: fieldKeys,
	}
}

// rowOrdering sorts by the requested stored field and always ends with the primary key.
func rowOrdering(entity *domain.EntitySpec, sortBy, sortDirection string) []string {
	primary := query.Column(query.BaseAlias, entity.PrimaryKeyColumn())
	direction, _ := domain.ParseSortDirection(sortDirection)
	keyword := strings.ToUpper(string(direction))

	if column, ok := entity.StoredColumn(strings.TrimSpace(sortBy)); ok {
		expr := query.Column(query.BaseAlias, column)
		if expr == primary {
			return []string{primary + " " + keyword}
		}
		return []string{expr + " " + keyword, primary + " ASC"}
	}
	return []string{primary + " " + keyword}
}

// membership matches rows whose group value is one of raws. Empty raw values
// match NULL and the empty string.
func membership(expr string, raws []any) sq.Sqlizer {
	values := make([]any, 0, len(raws))
	matchNull := false
	for _, raw := range raws {
		if raw == nil {
			matchNull = true
			continue
		}
		if text, ok := raw.(string); ok && text == "" {
			matchNull = true
		}
		values = append(values, raw)
	}

	switch {
	case len(values) == 0:
		return sq.Expr(expr + " IS NULL")
	case matchNull:
		return sq.Or{sq.Eq{expr: values}, sq.Expr(expr + " IS NULL")}
	default:
		return sq.Eq{expr: values}
	}
}

// materialize fetches one page of rows per group on a bounded worker pool and
// assembles them in the order of entries.
func (s *Service) materialize(ctx context.Context, rq *rowQuery, entries []*groupEntry) ([]domain.GroupResult, error) {
	results := make([]domain.GroupResult, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rowWorkers)
	for i, entry := range entries {
		g.Go(func() error {
			rows, err := s.fetchGroupRows(ctx, rq, entry)
			if err != nil {
				return err
			}
			results[i] = domain.GroupResult{Key: entry.label, Total: entry.count, Rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) fetchGroupRows(ctx context.Context, rq *rowQuery, entry *groupEntry) ([]domain.Row, error) {
	stmt := baseSelect(rq.entity, rq.group, rq.columns...).
		Where(query.And(rq.predicate, membership(rq.group.expr, entry.raws))).
		OrderBy(rq.orderBy...).
		Limit(uint64(rq.pageSize))

	records, err := s.reader.Select(ctx, stmt)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Row, 0, len(records))
	for _, record := range records {
		row := make(domain.Row, len(record))
		for column, value := range record {
			if key, ok := rq.fieldKeys[column]; ok {
				row[key] = value
			} else {
				row[column] = value
			}
		}
		backfill(row, rq.group.backfill, entry.label)
		rows = append(rows, row)
	}
	return rows, nil
}

// backfill writes the group label into row fields that carry no value. The
// empty label only fills fields the row does not have at all.
func backfill(row domain.Row, targets []string, label string) {
	for _, target := range targets {
		value, present := row[target]
		if !present {
			row[target] = label
			continue
		}
		if label != "" && repository.IsEmptyValue(value) {
			row[target] = label
		}
	}
}
