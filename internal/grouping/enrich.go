package grouping

import (
	"context"
	"strings"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/entityloader"
)

var (
	labelFieldPreference = []string{"name", "title", "label", "code", "id"}
	orderFieldPreference = []string{"sortOrder", "order", "level"}
)

// labelSet maps formatted raw values to labels and display order.
type labelSet struct {
	labels map[string]string
	orders map[string]float64
}

func emptyLabelSet() labelSet {
	return labelSet{labels: map[string]string{}, orders: map[string]float64{}}
}

// enrich resolves labels for the raw group values of a stored field. A label
// source that cannot be resolved yields an empty set.
func (s *Service) enrich(ctx context.Context, group *resolvedGroup, raws []any) (labelSet, error) {
	set := emptyLabelSet()
	if !group.enriches() {
		return set, nil
	}
	source := group.source

	if len(source.Options) > 0 {
		for _, option := range source.Options {
			set.labels[option.Value] = option.Label
			if option.Order != nil {
				set.orders[option.Value] = *option.Order
			}
		}
		return set, nil
	}

	entityKey := source.LabelEntity()
	ref, ok := s.catalog.Entity(entityKey)
	if !ok || ref.StorageTable == "" {
		s.logger.Warn("label source unavailable, using raw values", "field", group.field, "entity", entityKey)
		return set, nil
	}

	loader := entityloader.NewLabelLoader(s.reader, entityloader.LabelSource{
		Table:       ref.StorageTable,
		KeyColumn:   ref.PrimaryKeyColumn(),
		LabelColumn: labelColumn(ref, source, group.field),
		OrderColumn: orderColumn(ref),
	})
	entries, err := loader.Load(ctx, raws)
	if err != nil {
		return labelSet{}, err
	}
	for key, entry := range entries {
		if entry.Label != "" {
			set.labels[key] = entry.Label
		}
		if entry.Order != nil {
			set.orders[key] = *entry.Order
		}
	}
	return set, nil
}

// labelColumn picks the label column of the referenced entity: an explicit
// reference label field, then a field named like the label-from-row target,
// then the display field and the usual label-like names.
func labelColumn(ref *domain.EntitySpec, source *domain.FieldSpec, requested string) string {
	var candidates []string
	if source.Reference != nil && strings.TrimSpace(source.Reference.LabelField) != "" {
		candidates = append(candidates, source.Reference.LabelField)
	}
	if source.LabelFromRow != "" {
		candidates = append(candidates, source.LabelFromRow)
	}
	if requested != source.Key {
		candidates = append(candidates, requested)
	}
	if ref.DisplayField != "" {
		candidates = append(candidates, ref.DisplayField)
	}
	candidates = append(candidates, labelFieldPreference...)

	for _, candidate := range candidates {
		if column, ok := ref.StoredColumn(candidate); ok {
			return column
		}
	}
	return ref.PrimaryKeyColumn()
}

func orderColumn(ref *domain.EntitySpec) string {
	for _, candidate := range orderFieldPreference {
		if column, ok := ref.StoredColumn(candidate); ok {
			return column
		}
	}
	return ""
}
