// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// LikeEscape is the escape character used by EscapeLike. It is written into
// queries as ESCAPE '!' because a backslash literal is not portable across MySQL modes.
const LikeEscape = '!'

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// Column qualifies a quoted column with a table alias: o.`order_id`.
// An empty alias yields the bare quoted column.
func Column(alias, name string) string {
	if alias == "" {
		return QuoteIdentifier(name)
	}
	return alias + "." + QuoteIdentifier(name)
}

// TableAs renders a quoted table with an alias: `order` o.
func TableAs(table, alias string) string {
	if alias == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(table) + " " + alias
}

// EscapeLike escapes LIKE wildcards so the value matches literally under ESCAPE '!'.
func EscapeLike(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch r {
		case '%', '_', LikeEscape:
			b.WriteRune(LikeEscape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsPattern builds a LIKE pattern matching value anywhere in the column.
func ContainsPattern(value string) string {
	return "%" + EscapeLike(value) + "%"
}
