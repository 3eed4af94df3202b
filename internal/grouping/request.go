package grouping

import (
	"strings"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
)

const (
	// MaxGroupPageSize caps member rows fetched per group.
	MaxGroupPageSize = 10000
	// DefaultGroupPageSize applies when a request does not set groupPageSize.
	DefaultGroupPageSize = MaxGroupPageSize
)

// Request is the grouped table request envelope.
type Request struct {
	TableID       string                `json:"tableId"`
	ViewID        string                `json:"viewId,omitempty"`
	GroupBy       domain.GroupBy        `json:"groupBy"`
	Filters       []domain.FilterClause `json:"filters,omitempty"`
	FilterMode    string                `json:"filterMode,omitempty"`
	Search        string                `json:"search,omitempty"`
	IncludeRows   bool                  `json:"includeRows,omitempty"`
	GroupPageSize int                   `json:"groupPageSize,omitempty"`
	SortBy        string                `json:"sortBy,omitempty"`
	SortDirection string                `json:"sortDirection,omitempty"`
	CallerID      string                `json:"callerId,omitempty"`
}

// withView fills the fields the request leaves empty from a built-in view.
func (r Request) withView(view domain.View) Request {
	if strings.TrimSpace(r.GroupBy.Field) == "" {
		r.GroupBy.Field = view.GroupBy.Field
		if r.GroupBy.OrderBy == "" {
			r.GroupBy.OrderBy = view.GroupBy.OrderBy
		}
		if r.GroupBy.OrderDirection == "" {
			r.GroupBy.OrderDirection = view.GroupBy.OrderDirection
		}
	}
	if len(r.Filters) == 0 {
		r.Filters = view.Filters
		if r.FilterMode == "" {
			r.FilterMode = view.FilterMode
		}
	}
	if r.SortBy == "" {
		r.SortBy = view.SortBy
		if r.SortDirection == "" {
			r.SortDirection = view.SortDirection
		}
	}
	return r
}

func clampPageSize(size, fallback int) int {
	if size == 0 {
		size = fallback
	}
	switch {
	case size < 1:
		return 1
	case size > MaxGroupPageSize:
		return MaxGroupPageSize
	default:
		return size
	}
}
