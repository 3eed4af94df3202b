package grouping

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/metrics"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/query"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

const defaultRowWorkers = 4

// Catalog resolves entity specifications. *catalog.Catalog satisfies it.
type Catalog interface {
	Entity(key string) (*domain.EntitySpec, bool)
	ResolveEntityByTableID(tableID string) (*domain.EntitySpec, bool)
}

// Service groups and filters catalog entities. It holds no per-request state.
type Service struct {
	catalog Catalog
	reader  repository.TableReader
	logger  *slog.Logger

	rowWorkers      int
	defaultPageSize int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRowWorkers bounds the number of concurrent per-group row queries.
func WithRowWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rowWorkers = n
		}
	}
}

func WithDefaultGroupPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.defaultPageSize = size
		}
	}
}

func NewService(catalog Catalog, reader repository.TableReader, opts ...Option) *Service {
	service := &Service{
		catalog:         catalog,
		reader:          reader,
		logger:          slog.Default(),
		rowWorkers:      defaultRowWorkers,
		defaultPageSize: DefaultGroupPageSize,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Group counts, orders and optionally materializes the groups of a table.
func (s *Service) Group(ctx context.Context, req Request) (result *domain.GroupedTable, err error) {
	started := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = KindOf(err).String()
		}
		metrics.ObserveRequest(status, started)
	}()

	tableID := strings.TrimSpace(req.TableID)
	if tableID == "" {
		return nil, inputError("tableId is required")
	}
	entity, ok := s.catalog.ResolveEntityByTableID(tableID)
	if !ok {
		return nil, notFoundError(fmt.Sprintf("unknown table %q", tableID), false)
	}
	if strings.TrimSpace(entity.StorageTable) == "" {
		return nil, notFoundError(fmt.Sprintf("table %q has no storage table", tableID), true)
	}

	if req.ViewID != "" {
		if view, ok := entity.View(req.ViewID); ok {
			req = req.withView(view)
		} else {
			s.logger.WarnContext(ctx, "unknown view ignored", "table", tableID, "view", req.ViewID)
		}
	}
	groupField := strings.TrimSpace(req.GroupBy.Field)
	if groupField == "" {
		return nil, inputError("groupBy.field is required")
	}

	predicate := query.And(
		query.Compile(req.Filters, filterColumns(entity), domain.ParseFilterMode(req.FilterMode), req.CallerID),
		query.Search(req.Search, searchColumns(entity)),
	)

	group, err := s.resolveGroupField(entity, groupField)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	buckets, err := s.aggregate(ctx, entity, group, predicate)
	metrics.ObserveStore("aggregate", stageStart, err)
	if err != nil {
		return nil, storeError("group count", err)
	}

	stageStart = time.Now()
	labels, err := s.enrich(ctx, group, rawValues(buckets))
	if group.enriches() {
		metrics.ObserveStore("enrich", stageStart, err)
	}
	if err != nil {
		return nil, storeError("label", err)
	}

	entries := mergeByLabel(buckets, labels)
	orderBy, direction := effectivePolicy(req.GroupBy, entries)
	sortGroups(entries, orderBy, direction)

	result = &domain.GroupedTable{
		TableID: tableID,
		GroupBy: domain.EffectiveGroupBy{
			Field:          groupField,
			OrderBy:        orderBy,
			OrderDirection: direction,
		},
		GroupCounts: make(map[string]int64, len(entries)),
		GroupOrder:  groupOrder(entries),
	}
	for _, entry := range entries {
		result.GroupCounts[entry.label] += entry.count
	}

	if req.IncludeRows {
		stageStart = time.Now()
		groups, err := s.materialize(ctx, s.newRowQuery(entity, group, predicate, req), entries)
		metrics.ObserveStore("rows", stageStart, err)
		if err != nil {
			return nil, storeError("group rows", err)
		}
		result.Groups = groups
	}

	metrics.GroupsReturned.Observe(float64(len(entries)))
	s.logger.DebugContext(ctx, "grouped table",
		"table", tableID,
		"field", groupField,
		"strategy", string(group.strategy),
		"groups", len(entries),
		"orderBy", string(orderBy),
		"duration", time.Since(started),
	)
	return result, nil
}

// filterColumns exposes stored fields and concat fields to the predicate compiler.
func filterColumns(entity *domain.EntitySpec) query.Columns {
	columns := make(query.Columns, len(entity.Fields)+1)
	for key, field := range entity.Fields {
		if !field.Virtual {
			columns[key] = query.Column(query.BaseAlias, field.ColumnName())
			continue
		}
		if concat, ok := field.Compute.(domain.Concat); ok {
			if expr, err := concatExpr(entity, concat); err == nil {
				columns[key] = expr
			}
		}
	}
	if column, ok := entity.StoredColumn(entity.PrimaryKey); ok {
		if _, exists := columns[entity.PrimaryKey]; !exists {
			columns[entity.PrimaryKey] = query.Column(query.BaseAlias, column)
		}
	}
	return columns
}

func searchColumns(entity *domain.EntitySpec) []string {
	var exprs []string
	for _, key := range domain.SearchFields {
		if column, ok := entity.PhysicalColumn(key); ok {
			exprs = append(exprs, query.Column(query.BaseAlias, column))
		}
	}
	return exprs
}

// GroupableFields lists field keys the resolver accepts for an entity, sorted.
func (s *Service) GroupableFields(entity *domain.EntitySpec) []string {
	var fields []string
	for key := range entity.Fields {
		if _, err := s.resolveGroupField(entity, key); err == nil {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields
}

// ResolveTable exposes the catalog lookup used by Group.
func (s *Service) ResolveTable(tableID string) (*domain.EntitySpec, bool) {
	return s.catalog.ResolveEntityByTableID(strings.TrimSpace(tableID))
}
