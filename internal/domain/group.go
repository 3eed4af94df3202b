package domain

// Row is one materialized table row keyed by field key.
type Row map[string]any

// GroupResult is one group: its resolved label, full count and optional member rows.
type GroupResult struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
	Rows  []Row  `json:"rows"`
}

// EffectiveGroupBy echoes the group-by policy that was actually applied.
type EffectiveGroupBy struct {
	Field          string        `json:"field"`
	OrderBy        GroupOrderBy  `json:"orderBy"`
	OrderDirection SortDirection `json:"orderDirection"`
}

// GroupedTable is the engine response envelope.
type GroupedTable struct {
	TableID     string           `json:"tableId"`
	GroupBy     EffectiveGroupBy `json:"groupBy"`
	GroupCounts map[string]int64 `json:"groupCounts"`
	GroupOrder  []string         `json:"groupOrder"`
	Groups      []GroupResult    `json:"groups,omitempty"`
}
