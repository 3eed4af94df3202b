package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
)

// ValidateEntities checks that computed fields only reference fields and
// entities the catalog can resolve. Label sources are not checked: a missing
// option source degrades to raw values at request time.
func ValidateEntities(entities map[string]*domain.EntitySpec) error {
	keys := make([]string, 0, len(entities))
	for key := range entities {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entity := entities[key]
		fieldKeys := make([]string, 0, len(entity.Fields))
		for fieldKey := range entity.Fields {
			fieldKeys = append(fieldKeys, fieldKey)
		}
		sort.Strings(fieldKeys)

		for _, fieldKey := range fieldKeys {
			if err := ValidateField(entities, entity, entity.Fields[fieldKey]); err != nil {
				return fmt.Errorf("entity %s field %s: %w", key, fieldKey, err)
			}
		}
	}
	return nil
}

// ValidateField checks one field of entity against the rest of the catalog.
func ValidateField(entities map[string]*domain.EntitySpec, entity *domain.EntitySpec, field domain.FieldSpec) error {
	if !field.Virtual {
		if field.Compute != nil {
			return fmt.Errorf("stored field cannot declare a compute spec")
		}
		return nil
	}

	switch compute := field.Compute.(type) {
	case nil:
		return fmt.Errorf("virtual field requires a compute spec")
	case domain.LabelFrom:
		if strings.TrimSpace(compute.SourceField) == "" {
			return fmt.Errorf("labelFrom requires sourceField")
		}
		if !hasColumn(entity, compute.SourceField) {
			return fmt.Errorf("labelFrom source %s is not a stored field", compute.SourceField)
		}
	case domain.Concat:
		if len(compute.Fields) == 0 {
			return fmt.Errorf("concat requires at least one field")
		}
		for _, part := range compute.Fields {
			if !hasColumn(entity, part) {
				return fmt.Errorf("concat field %s is not a stored field", part)
			}
		}
	case domain.Join:
		return validateJoin(entities, entity, compute)
	case domain.ExternalAssignmentJoin:
		if compute.PrimaryFlagField != "" {
			assignment, ok := entities[compute.AssignmentEntity]
			if ok && !hasColumn(assignment, compute.PrimaryFlagField) {
				return fmt.Errorf("primary flag %s is not a stored field of %s", compute.PrimaryFlagField, compute.AssignmentEntity)
			}
		}
		return validateJoin(entities, entity, compute.AsJoin())
	default:
		return fmt.Errorf("unsupported compute kind %s", field.Compute.Kind())
	}
	return nil
}

func validateJoin(entities map[string]*domain.EntitySpec, base *domain.EntitySpec, join domain.Join) error {
	if len(join.Joins) == 0 {
		return fmt.Errorf("join requires at least one step")
	}
	if strings.TrimSpace(join.GroupField) == "" {
		return fmt.Errorf("join requires groupField")
	}

	current := base
	for i, step := range join.Joins {
		target, ok := entities[step.Entity]
		if !ok {
			return fmt.Errorf("join step %d references unknown entity %s", i, step.Entity)
		}
		if !hasColumn(current, step.LocalField) {
			return fmt.Errorf("join step %d local field %s is not a stored field of %s", i, step.LocalField, current.Key)
		}
		if !hasColumn(target, step.ForeignField) {
			return fmt.Errorf("join step %d foreign field %s is not a stored field of %s", i, step.ForeignField, target.Key)
		}
		current = target
	}

	for _, name := range []string{join.GroupField, join.LabelField, join.OrderField} {
		if name != "" && !hasColumn(current, name) {
			return fmt.Errorf("join field %s is not a stored field of %s", name, current.Key)
		}
	}
	return nil
}

func hasColumn(entity *domain.EntitySpec, key string) bool {
	_, ok := entity.StoredColumn(key)
	return ok
}
