package grouping

import (
	"fmt"
	"sort"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/query"
)

type strategy string

const (
	strategyPhysical     strategy = "physical"
	strategyLabelFromRow strategy = "labelFromRow"
	strategyLabelFrom    strategy = "labelFrom"
	strategyConcat       strategy = "concat"
	strategyJoin         strategy = "join"
	strategyAssignment   strategy = "externalAssignmentJoin"
)

// resolvedGroup is an executable grouping expression for one request.
type resolvedGroup struct {
	field    string
	strategy strategy
	expr     string
	// labelExpr and orderExpr are read from the last joined table.
	labelExpr string
	orderExpr string
	joins     []string
	// source is the stored field whose raw values are enriched with labels.
	source   *domain.FieldSpec
	backfill []string
}

func (g *resolvedGroup) enriches() bool {
	if g.source == nil {
		return false
	}
	return len(g.source.Options) > 0 || g.source.LabelEntity() != ""
}

func (g *resolvedGroup) addBackfill(target string) {
	if target == "" {
		return
	}
	for _, existing := range g.backfill {
		if existing == target {
			return
		}
	}
	g.backfill = append(g.backfill, target)
}

// resolveGroupField maps a group-by key to a column or a virtual field strategy.
func (s *Service) resolveGroupField(entity *domain.EntitySpec, key string) (*resolvedGroup, error) {
	field, declared := entity.Field(key)

	if declared && !field.Virtual {
		group := &resolvedGroup{
			field:    key,
			strategy: strategyPhysical,
			expr:     query.Column(query.BaseAlias, field.ColumnName()),
			source:   &field,
		}
		group.addBackfill(key)
		group.addBackfill(field.LabelFromRow)
		return group, nil
	}

	if source, ok := labelFromRowSource(entity, key); ok {
		if source.Virtual {
			group, err := s.resolveComputed(entity, source.Key, source)
			if err != nil {
				return nil, err
			}
			group.field = key
			group.addBackfill(key)
			return group, nil
		}
		group := &resolvedGroup{
			field:    key,
			strategy: strategyLabelFromRow,
			expr:     query.Column(query.BaseAlias, source.ColumnName()),
			source:   &source,
		}
		group.addBackfill(key)
		return group, nil
	}

	if !declared {
		return nil, resolutionError(key, nil)
	}
	return s.resolveComputed(entity, key, field)
}

// resolveComputed resolves a virtual field through its compute spec.
func (s *Service) resolveComputed(entity *domain.EntitySpec, key string, field domain.FieldSpec) (*resolvedGroup, error) {
	switch compute := field.Compute.(type) {
	case domain.LabelFrom:
		source, ok := entity.Field(compute.SourceField)
		if !ok || source.Virtual {
			return nil, resolutionError(key, fmt.Errorf("%w: labelFrom source %s is not a stored field", ErrUnknownGroupField, compute.SourceField))
		}
		group := &resolvedGroup{
			field:    key,
			strategy: strategyLabelFrom,
			expr:     query.Column(query.BaseAlias, source.ColumnName()),
			source:   &source,
		}
		group.addBackfill(key)
		return group, nil
	case domain.Concat:
		expr, err := concatExpr(entity, compute)
		if err != nil {
			return nil, resolutionError(key, err)
		}
		group := &resolvedGroup{field: key, strategy: strategyConcat, expr: expr}
		group.addBackfill(key)
		return group, nil
	case domain.Join:
		group, err := s.resolveJoin(entity, key, compute, "")
		if err != nil {
			return nil, err
		}
		group.strategy = strategyJoin
		return group, nil
	case domain.ExternalAssignmentJoin:
		group, err := s.resolveJoin(entity, key, compute.AsJoin(), compute.PrimaryFlagField)
		if err != nil {
			return nil, err
		}
		group.strategy = strategyAssignment
		return group, nil
	}
	return nil, resolutionError(key, nil)
}

// labelFromRowSource finds a field whose resolved label is written to key.
// Stored fields win over virtual ones.
func labelFromRowSource(entity *domain.EntitySpec, key string) (domain.FieldSpec, bool) {
	var virtual *domain.FieldSpec
	for _, fieldKey := range sortedFieldKeys(entity) {
		field := entity.Fields[fieldKey]
		if field.LabelFromRow != key || fieldKey == key {
			continue
		}
		if field.Virtual {
			if virtual == nil && field.Compute != nil {
				virtual = &field
			}
			continue
		}
		return field, true
	}
	if virtual != nil {
		return *virtual, true
	}
	return domain.FieldSpec{}, false
}

func concatExpr(entity *domain.EntitySpec, compute domain.Concat) (string, error) {
	if len(compute.Fields) == 0 {
		return "", fmt.Errorf("%w: concat has no fields", ErrUnknownGroupField)
	}
	columns := make([]string, 0, len(compute.Fields))
	for _, part := range compute.Fields {
		column, ok := entity.StoredColumn(part)
		if !ok {
			return "", fmt.Errorf("%w: concat field %s is not a stored field", ErrUnknownGroupField, part)
		}
		columns = append(columns, query.Column(query.BaseAlias, column))
	}
	return query.ConcatExpr(columns, compute.SeparatorOrDefault()), nil
}

// resolveJoin builds one LEFT JOIN per step. primaryFlag, when set, restricts the
// first joined table to rows flagged as primary.
func (s *Service) resolveJoin(entity *domain.EntitySpec, key string, join domain.Join, primaryFlag string) (*resolvedGroup, error) {
	if len(join.Joins) == 0 {
		return nil, resolutionError(key, fmt.Errorf("%w: join has no steps", ErrUnknownGroupField))
	}

	group := &resolvedGroup{field: key}
	current := entity
	currentAlias := query.BaseAlias
	for i, step := range join.Joins {
		target, ok := s.catalog.Entity(step.Entity)
		if !ok {
			return nil, notFoundError(fmt.Sprintf("join target entity %s of field %s is not in the catalog", step.Entity, key), true)
		}
		if target.StorageTable == "" {
			return nil, notFoundError(fmt.Sprintf("join target entity %s has no storage table", step.Entity), true)
		}
		localColumn, ok := current.StoredColumn(step.LocalField)
		if !ok {
			return nil, resolutionError(key, fmt.Errorf("%w: join field %s is not stored on %s", ErrUnknownGroupField, step.LocalField, current.Key))
		}
		foreignColumn, ok := target.StoredColumn(step.ForeignField)
		if !ok {
			return nil, resolutionError(key, fmt.Errorf("%w: join field %s is not stored on %s", ErrUnknownGroupField, step.ForeignField, target.Key))
		}

		alias := query.Alias(i + 1)
		clause := fmt.Sprintf("%s ON %s = %s",
			query.Table(target.StorageTable, alias),
			query.Column(alias, foreignColumn),
			query.Column(currentAlias, localColumn),
		)
		if i == 0 && primaryFlag != "" {
			flagColumn, ok := target.StoredColumn(primaryFlag)
			if !ok {
				return nil, resolutionError(key, fmt.Errorf("%w: primary flag %s is not stored on %s", ErrUnknownGroupField, primaryFlag, target.Key))
			}
			clause += " AND " + query.Column(alias, flagColumn) + " = TRUE"
		}
		group.joins = append(group.joins, clause)

		current = target
		currentAlias = alias
	}

	groupColumn, ok := current.StoredColumn(join.GroupField)
	if !ok {
		return nil, resolutionError(key, fmt.Errorf("%w: group field %s is not stored on %s", ErrUnknownGroupField, join.GroupField, current.Key))
	}
	group.expr = query.Column(currentAlias, groupColumn)
	if join.LabelField != "" {
		if column, ok := current.StoredColumn(join.LabelField); ok {
			group.labelExpr = query.Column(currentAlias, column)
		}
	}
	if join.OrderField != "" {
		if column, ok := current.StoredColumn(join.OrderField); ok {
			group.orderExpr = query.Column(currentAlias, column)
		}
	}
	group.addBackfill(key)
	return group, nil
}

func sortedFieldKeys(entity *domain.EntitySpec) []string {
	keys := make([]string, 0, len(entity.Fields))
	for key := range entity.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
