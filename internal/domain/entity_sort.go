package domain

import "strings"

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// ParseSortDirection returns the direction and whether one was given.
func ParseSortDirection(raw string) (SortDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc", "ascending":
		return SortDirectionAsc, true
	case "desc", "descending":
		return SortDirectionDesc, true
	default:
		return SortDirectionAsc, false
	}
}

// GroupOrderBy is the ordering policy applied to groups.
type GroupOrderBy string

const (
	GroupOrderAuto             GroupOrderBy = "auto"
	GroupOrderValue            GroupOrderBy = "value"
	GroupOrderCount            GroupOrderBy = "count"
	GroupOrderRelatedSortOrder GroupOrderBy = "relatedSortOrder"
)

// ParseGroupOrderBy defaults unknown policies to GroupOrderAuto.
func ParseGroupOrderBy(raw string) GroupOrderBy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "value", "label", "alpha":
		return GroupOrderValue
	case "count":
		return GroupOrderCount
	case "relatedsortorder", "sortorder", "order":
		return GroupOrderRelatedSortOrder
	default:
		return GroupOrderAuto
	}
}

// GroupBy is the group-by part of a request.
type GroupBy struct {
	Field          string `json:"field" yaml:"field"`
	OrderBy        string `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	OrderDirection string `json:"orderDirection,omitempty" yaml:"orderDirection,omitempty"`
}

// View is a built-in saved view supplying request defaults.
type View struct {
	ID            string
	Name          string
	GroupBy       GroupBy
	Filters       []FilterClause
	FilterMode    string
	SortBy        string
	SortDirection string
}
