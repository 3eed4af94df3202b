package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
)

// Columns maps field keys to SQL expressions the predicate may reference.
type Columns map[string]string

const dateLayout = "2006-01-02"

// Compile turns filter clauses into one condition. It returns nil when no clause applies.
func Compile(filters []domain.FilterClause, columns Columns, mode domain.FilterMode, callerID string) sq.Sqlizer {
	conditions := make([]sq.Sqlizer, 0, len(filters))
	for _, filter := range filters {
		column, ok := columns[filter.Field]
		if !ok {
			continue
		}
		value := coerceValue(substituteCurrentUser(filter.Value, callerID), filter.ValueType)
		if cond := compileClause(column, domain.ParseFilterOperator(filter.Operator), value); cond != nil {
			conditions = append(conditions, cond)
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	if len(conditions) == 1 {
		return conditions[0]
	}
	if mode == domain.FilterModeAny {
		return sq.Or(conditions)
	}
	return sq.And(conditions)
}

// Search matches term case-insensitively against any of the given expressions.
func Search(term string, expressions []string) sq.Sqlizer {
	term = strings.TrimSpace(term)
	if term == "" || len(expressions) == 0 {
		return nil
	}
	pattern := "%" + EscapeLike(strings.ToLower(term)) + "%"
	conditions := make(sq.Or, 0, len(expressions))
	for _, expr := range expressions {
		conditions = append(conditions, likeExpr(expr, pattern))
	}
	return conditions
}

// And joins the non-nil conditions. It returns nil when none remain.
func And(conditions ...sq.Sqlizer) sq.Sqlizer {
	kept := make(sq.And, 0, len(conditions))
	for _, cond := range conditions {
		if cond != nil {
			kept = append(kept, cond)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return kept
	}
}

func compileClause(column string, op domain.FilterOperator, value any) sq.Sqlizer {
	if op.NullCheck() {
		return nullCheck(column, op)
	}
	if isBlank(value) {
		return nil
	}

	if values, ok := asSlice(value); ok {
		if len(values) == 0 {
			return nil
		}
		switch op {
		case domain.OpNotEquals, domain.OpNotIn:
			return sq.Or{sq.NotEq{column: values}, sq.Expr(column + " IS NULL")}
		default:
			return sq.Eq{column: values}
		}
	}

	if isStructured(value) {
		// an object can only be matched as a range; anything else is dropped
		// rather than handed to the driver
		return dateBetween(column, value)
	}

	switch op {
	case domain.OpEquals, domain.OpIn:
		return sq.Eq{column: value}
	case domain.OpNotEquals, domain.OpNotIn:
		return sq.Or{sq.NotEq{column: value}, sq.Expr(column + " IS NULL")}
	case domain.OpContains:
		return likeExpr(column, "%"+escapeValue(value)+"%")
	case domain.OpNotContains:
		return sq.Or{sq.Expr(column + " IS NULL"), notExpr(likeExpr(column, "%"+escapeValue(value)+"%"))}
	case domain.OpStartsWith:
		return likeExpr(column, escapeValue(value)+"%")
	case domain.OpEndsWith:
		return likeExpr(column, "%"+escapeValue(value))
	case domain.OpLess, domain.OpDateBefore:
		return sq.Lt{column: value}
	case domain.OpLessOrEq:
		return sq.LtOrEq{column: value}
	case domain.OpGreater, domain.OpDateAfter:
		return sq.Gt{column: value}
	case domain.OpGreaterOrEq:
		return sq.GtOrEq{column: value}
	case domain.OpDateEquals:
		return dateEquals(column, value)
	case domain.OpDateBetween:
		return dateBetween(column, value)
	}

	// unrecognised operator
	if _, ok := value.(string); ok {
		return likeExpr(column, "%"+escapeValue(value)+"%")
	}
	return sq.Eq{column: value}
}

func nullCheck(column string, op domain.FilterOperator) sq.Sqlizer {
	switch op {
	case domain.OpIsTrue:
		return sq.Expr(column + " = TRUE")
	case domain.OpIsFalse:
		return sq.Expr(fmt.Sprintf("(%s = FALSE OR %s IS NULL)", column, column))
	case domain.OpIsEmpty:
		return sq.Expr(fmt.Sprintf("(%s IS NULL OR CAST(%s AS TEXT) = '')", column, column))
	default:
		return sq.Expr(fmt.Sprintf("(%s IS NOT NULL AND CAST(%s AS TEXT) <> '')", column, column))
	}
}

func likeExpr(column, pattern string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf(`LOWER(CAST(%s AS TEXT)) LIKE ? ESCAPE '\'`, column), pattern)
}

type notCondition struct {
	inner sq.Sqlizer
}

func (n notCondition) ToSql() (string, []any, error) {
	sqlText, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sqlText + ")", args, nil
}

func notExpr(inner sq.Sqlizer) sq.Sqlizer {
	return notCondition{inner: inner}
}

func escapeValue(value any) string {
	return EscapeLike(strings.ToLower(fmt.Sprint(value)))
}

func dateEquals(column string, value any) sq.Sqlizer {
	text, ok := value.(string)
	if !ok {
		return sq.Eq{column: value}
	}
	day, err := time.Parse(dateLayout, strings.TrimSpace(text))
	if err != nil {
		return sq.Eq{column: value}
	}
	return sq.And{
		sq.GtOrEq{column: day.Format(dateLayout)},
		sq.Lt{column: day.AddDate(0, 0, 1).Format(dateLayout)},
	}
}

func dateBetween(column string, value any) sq.Sqlizer {
	from, to := parseDateRange(value)
	conditions := sq.And{}
	if from != "" {
		conditions = append(conditions, sq.GtOrEq{column: from})
	}
	if to != "" {
		if day, err := time.Parse(dateLayout, to); err == nil {
			conditions = append(conditions, sq.Lt{column: day.AddDate(0, 0, 1).Format(dateLayout)})
		} else {
			conditions = append(conditions, sq.LtOrEq{column: to})
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	return conditions
}

// parseDateRange accepts {from|start, to|end} objects, JSON strings of them,
// and "a..b" or "a,b" strings. Missing bounds come back empty.
func parseDateRange(value any) (string, string) {
	switch v := value.(type) {
	case map[string]any:
		return rangeBound(v, "from", "start"), rangeBound(v, "to", "end")
	case map[string]string:
		converted := make(map[string]any, len(v))
		for key, bound := range v {
			converted[key] = bound
		}
		return parseDateRange(converted)
	case string:
		text := strings.TrimSpace(v)
		if strings.HasPrefix(text, "{") {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(text), &decoded); err == nil {
				return parseDateRange(decoded)
			}
			return "", ""
		}
		var parts []string
		if strings.Contains(text, "..") {
			parts = strings.SplitN(text, "..", 2)
		} else {
			parts = strings.SplitN(text, ",", 2)
		}
		from := strings.TrimSpace(parts[0])
		to := ""
		if len(parts) > 1 {
			to = strings.TrimSpace(parts[1])
		}
		return from, to
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		converted := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			converted[iter.Key().String()] = iter.Value().Interface()
		}
		return parseDateRange(converted)
	}
	return "", ""
}

func rangeBound(values map[string]any, keys ...string) string {
	for _, key := range keys {
		if raw, ok := values[key]; ok && raw != nil {
			if text := strings.TrimSpace(fmt.Sprint(raw)); text != "" {
				return text
			}
		}
	}
	return ""
}

func substituteCurrentUser(value any, callerID string) any {
	switch v := value.(type) {
	case string:
		if v == domain.CurrentUserSentinel {
			return callerID
		}
		return v
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substituteCurrentUser(item, callerID)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substituteCurrentUser(item, callerID)
		}
		return out
	default:
		return value
	}
}

func coerceValue(value any, valueType string) any {
	text, ok := value.(string)
	if !ok {
		return value
	}
	switch strings.ToLower(strings.TrimSpace(valueType)) {
	case "number", "integer", "numeric":
		if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return f
		}
	case "boolean", "bool":
		if b, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
			return b
		}
	}
	return value
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

// isStructured reports map and struct values other than time.Time.
func isStructured(value any) bool {
	if _, ok := value.(time.Time); ok {
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Struct:
		return true
	}
	return false
}

func asSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
