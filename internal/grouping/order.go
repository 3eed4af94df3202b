package grouping

import (
	"sort"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
)

// effectivePolicy resolves auto ordering and the default direction.
func effectivePolicy(req domain.GroupBy, entries []*groupEntry) (domain.GroupOrderBy, domain.SortDirection) {
	orderBy := domain.ParseGroupOrderBy(req.OrderBy)
	if orderBy == domain.GroupOrderAuto {
		orderBy = domain.GroupOrderValue
		for _, entry := range entries {
			if entry.order != nil {
				orderBy = domain.GroupOrderRelatedSortOrder
				break
			}
		}
	}

	direction, explicit := domain.ParseSortDirection(req.OrderDirection)
	if !explicit {
		direction = domain.SortDirectionAsc
		if orderBy == domain.GroupOrderCount {
			direction = domain.SortDirectionDesc
		}
	}
	return orderBy, direction
}

// sortGroups orders entries in place. Empty labels always sort last, groups
// without an order value sort after ordered ones under relatedSortOrder, and
// remaining ties fall back to ascending case-sensitive label comparison.
func sortGroups(entries []*groupEntry, orderBy domain.GroupOrderBy, direction domain.SortDirection) {
	desc := direction == domain.SortDirectionDesc
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.label == "") != (b.label == "") {
			return b.label == ""
		}

		switch orderBy {
		case domain.GroupOrderCount:
			if a.count != b.count {
				if desc {
					return a.count > b.count
				}
				return a.count < b.count
			}
		case domain.GroupOrderRelatedSortOrder:
			if (a.order == nil) != (b.order == nil) {
				return b.order == nil
			}
			if a.order != nil && *a.order != *b.order {
				if desc {
					return *a.order > *b.order
				}
				return *a.order < *b.order
			}
		default:
			if a.label != b.label {
				if desc {
					return a.label > b.label
				}
				return a.label < b.label
			}
		}
		return a.label < b.label
	})
}

// groupOrder lists labels in sorted order, keeping the first occurrence of each.
func groupOrder(entries []*groupEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.label]; ok {
			continue
		}
		seen[entry.label] = struct{}{}
		order = append(order, entry.label)
	}
	return order
}
