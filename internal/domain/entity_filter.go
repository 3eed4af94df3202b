package domain

import "strings"

// CurrentUserSentinel is replaced with the caller id when filters are compiled.
const CurrentUserSentinel = "__current_user__"

// FilterOperator is a normalized filter operator name.
type FilterOperator string

const (
	OpEquals      FilterOperator = "equals"
	OpNotEquals   FilterOperator = "notEquals"
	OpIn          FilterOperator = "in"
	OpNotIn       FilterOperator = "notIn"
	OpContains    FilterOperator = "contains"
	OpNotContains FilterOperator = "notContains"
	OpStartsWith  FilterOperator = "startsWith"
	OpEndsWith    FilterOperator = "endsWith"
	OpLess        FilterOperator = "lessThan"
	OpLessOrEq    FilterOperator = "lessThanOrEqual"
	OpGreater     FilterOperator = "greaterThan"
	OpGreaterOrEq FilterOperator = "greaterThanOrEqual"
	OpDateEquals  FilterOperator = "dateEquals"
	OpDateBefore  FilterOperator = "dateBefore"
	OpDateAfter   FilterOperator = "dateAfter"
	OpDateBetween FilterOperator = "dateBetween"
	OpIsTrue      FilterOperator = "isTrue"
	OpIsFalse     FilterOperator = "isFalse"
	OpIsEmpty     FilterOperator = "isEmpty"
	OpIsNotEmpty  FilterOperator = "isNotEmpty"
	// OpUnknown keeps the lenient fallback for names older views may still carry.
	OpUnknown FilterOperator = ""
)

var operatorAliases = map[string]FilterOperator{
	"equals":             OpEquals,
	"eq":                 OpEquals,
	"=":                  OpEquals,
	"is":                 OpEquals,
	"notequals":          OpNotEquals,
	"neq":                OpNotEquals,
	"ne":                 OpNotEquals,
	"!=":                 OpNotEquals,
	"<>":                 OpNotEquals,
	"isnot":              OpNotEquals,
	"in":                 OpIn,
	"isanyof":            OpIn,
	"notin":              OpNotIn,
	"isnoneof":           OpNotIn,
	"contains":           OpContains,
	"like":               OpContains,
	"notcontains":        OpNotContains,
	"doesnotcontain":     OpNotContains,
	"startswith":         OpStartsWith,
	"endswith":           OpEndsWith,
	"<":                  OpLess,
	"lt":                 OpLess,
	"lessthan":           OpLess,
	"<=":                 OpLessOrEq,
	"lte":                OpLessOrEq,
	"lessthanorequal":    OpLessOrEq,
	">":                  OpGreater,
	"gt":                 OpGreater,
	"greaterthan":        OpGreater,
	">=":                 OpGreaterOrEq,
	"gte":                OpGreaterOrEq,
	"greaterthanorequal": OpGreaterOrEq,
	"dateequals":         OpDateEquals,
	"ondate":             OpDateEquals,
	"datebefore":         OpDateBefore,
	"before":             OpDateBefore,
	"dateafter":          OpDateAfter,
	"after":              OpDateAfter,
	"datebetween":        OpDateBetween,
	"between":            OpDateBetween,
	"istrue":             OpIsTrue,
	"isfalse":            OpIsFalse,
	"isempty":            OpIsEmpty,
	"isnull":             OpIsEmpty,
	"isnotempty":         OpIsNotEmpty,
	"isnotnull":          OpIsNotEmpty,
}

// ParseFilterOperator normalizes an operator name. Unknown names map to OpUnknown.
func ParseFilterOperator(raw string) FilterOperator {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	if op, ok := operatorAliases[key]; ok {
		return op
	}
	return OpUnknown
}

// NullCheck reports whether the operator tests for presence rather than a value.
func (op FilterOperator) NullCheck() bool {
	switch op {
	case OpIsTrue, OpIsFalse, OpIsEmpty, OpIsNotEmpty:
		return true
	}
	return false
}

// FilterMode combines filter clauses.
type FilterMode string

const (
	FilterModeAll FilterMode = "all"
	FilterModeAny FilterMode = "any"
)

// ParseFilterMode defaults to FilterModeAll.
func ParseFilterMode(raw string) FilterMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "any", "or":
		return FilterModeAny
	default:
		return FilterModeAll
	}
}

// FilterClause is one filter condition as supplied by the caller.
type FilterClause struct {
	Field     string `json:"field" yaml:"field"`
	Operator  string `json:"operator" yaml:"operator"`
	Value     any    `json:"value" yaml:"value"`
	ValueType string `json:"valueType,omitempty" yaml:"valueType,omitempty"`
}

// SearchFields are the label-like fields a free-text search matches against.
var SearchFields = []string{"name", "title", "label", "displayName"}
