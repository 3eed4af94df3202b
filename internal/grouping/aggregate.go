package grouping

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/query"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

const (
	groupAlias      = "grp"
	groupLabelAlias = "grp_label"
	groupOrderAlias = "grp_order"
	countAlias      = "cnt"
)

// bucket is one row of the grouped count query.
type bucket struct {
	raw   any
	label string
	order *float64
	count int64
}

// groupEntry is one resolved label with the raw values merged into it.
type groupEntry struct {
	label string
	count int64
	order *float64
	raws  []any
}

func baseSelect(entity *domain.EntitySpec, group *resolvedGroup, columns ...string) sq.SelectBuilder {
	stmt := sq.Select(columns...).From(query.Table(entity.StorageTable, query.BaseAlias))
	for _, join := range group.joins {
		stmt = stmt.LeftJoin(join)
	}
	return stmt
}

// aggregate runs SELECT expr, COUNT(*) ... GROUP BY expr.
func (s *Service) aggregate(ctx context.Context, entity *domain.EntitySpec, group *resolvedGroup, predicate sq.Sqlizer) ([]bucket, error) {
	columns := []string{group.expr + " AS " + groupAlias}
	groupBy := []string{group.expr}
	if group.labelExpr != "" {
		columns = append(columns, group.labelExpr+" AS "+groupLabelAlias)
		groupBy = append(groupBy, group.labelExpr)
	}
	if group.orderExpr != "" {
		columns = append(columns, group.orderExpr+" AS "+groupOrderAlias)
		groupBy = append(groupBy, group.orderExpr)
	}
	columns = append(columns, "COUNT(*) AS "+countAlias)

	stmt := baseSelect(entity, group, columns...).GroupBy(groupBy...)
	if predicate != nil {
		stmt = stmt.Where(predicate)
	}

	records, err := s.reader.Select(ctx, stmt)
	if err != nil {
		return nil, err
	}

	buckets := make([]bucket, 0, len(records))
	for _, record := range records {
		b := bucket{
			raw:   record[groupAlias],
			count: repository.ToInt64(record[countAlias]),
		}
		if group.labelExpr != "" {
			b.label = repository.FormatValue(record[groupLabelAlias])
		}
		if group.orderExpr != "" {
			if order, ok := repository.ToFloat(record[groupOrderAlias]); ok {
				b.order = &order
			}
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

// mergeByLabel resolves each bucket's label and sums buckets sharing one. The
// order of a merged group is the smallest order of its raw values. Empty raw
// values resolve to the empty label.
func mergeByLabel(buckets []bucket, set labelSet) []*groupEntry {
	byLabel := make(map[string]*groupEntry, len(buckets))
	entries := make([]*groupEntry, 0, len(buckets))

	for _, b := range buckets {
		label := b.label
		order := b.order
		if !repository.IsEmptyValue(b.raw) {
			key := repository.FormatValue(b.raw)
			if mapped, ok := set.labels[key]; ok && label == "" {
				label = mapped
			}
			if mapped, ok := set.orders[key]; ok && order == nil {
				value := mapped
				order = &value
			}
			if label == "" {
				label = key
			}
		}

		entry, ok := byLabel[label]
		if !ok {
			entry = &groupEntry{label: label}
			byLabel[label] = entry
			entries = append(entries, entry)
		}
		entry.count += b.count
		entry.raws = append(entry.raws, b.raw)
		if order != nil && (entry.order == nil || *order < *entry.order) {
			value := *order
			entry.order = &value
		}
	}
	return entries
}

func rawValues(buckets []bucket) []any {
	raws := make([]any, 0, len(buckets))
	for _, b := range buckets {
		raws = append(raws, b.raw)
	}
	return raws
}
