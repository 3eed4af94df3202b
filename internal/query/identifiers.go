package query

import (
	"fmt"
	"strings"
)

// BaseAlias is the alias of the entity's own table in every generated statement.
const BaseAlias = "t0"

// QuoteIdent quotes an identifier for both Postgres and SQLite.
func QuoteIdent(name string) string {
	return `"` + EscapePlaceholders(strings.ReplaceAll(name, `"`, `""`)) + `"`
}

// EscapePlaceholders doubles question marks in inlined SQL text. Positional
// placeholder formats turn "??" back into a literal "?" instead of numbering it.
func EscapePlaceholders(text string) string {
	return strings.ReplaceAll(text, "?", "??")
}

// Alias returns the table alias used for the n-th joined table.
func Alias(n int) string {
	return fmt.Sprintf("t%d", n)
}

// Column qualifies a column with a table alias.
func Column(alias, column string) string {
	return alias + "." + QuoteIdent(column)
}

// Table renders "table" AS alias.
func Table(table, alias string) string {
	return QuoteIdent(table) + " AS " + alias
}

// QuoteLiteral renders a string literal safe to embed in a statement that
// still goes through placeholder rewriting.
func QuoteLiteral(value string) string {
	return "'" + EscapePlaceholders(strings.ReplaceAll(value, "'", "''")) + "'"
}

// ConcatExpr concatenates columns as text, treating NULL parts as empty strings.
func ConcatExpr(columns []string, separator string) string {
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		parts = append(parts, fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '')", column))
	}
	return "(" + strings.Join(parts, " || "+QuoteLiteral(separator)+" || ") + ")"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards using backslash as the escape character.
func EscapeLike(value string) string {
	return likeEscaper.Replace(value)
}
