package target

import (
	"strings"

	"github.com/lib/pq"
)

// reserved holds the PostgreSQL reserved words likely to show up as column
// or table names. Anything outside the plain lowercase form is quoted anyway.
var reserved = map[string]bool{
	"all": true, "and": true, "any": true, "as": true, "asc": true,
	"both": true, "case": true, "check": true, "column": true, "constraint": true,
	"create": true, "default": true, "desc": true, "distinct": true, "do": true,
	"else": true, "end": true, "false": true, "for": true, "foreign": true,
	"from": true, "grant": true, "group": true, "having": true, "in": true,
	"into": true, "limit": true, "not": true, "null": true, "offset": true,
	"on": true, "only": true, "or": true, "order": true, "primary": true,
	"references": true, "select": true, "table": true, "then": true, "to": true,
	"true": true, "union": true, "unique": true, "user": true, "using": true,
	"when": true, "where": true, "with": true,
}

// QuoteIdent returns ident unchanged when PostgreSQL would read it back
// as-is, otherwise a double-quoted identifier with embedded quotes doubled.
func QuoteIdent(ident string) string {
	if isPlainIdent(ident) && !reserved[ident] {
		return ident
	}
	return pq.QuoteIdentifier(ident)
}

// QualifiedName returns schema.table with each part quoted as needed.
// An empty schema leaves the table unqualified (search_path resolves it).
func QualifiedName(schema, table string) string {
	if schema == "" {
		return QuoteIdent(table)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(table)
}

// QuoteIdents quotes each identifier and joins them with ", ".
func QuoteIdents(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = QuoteIdent(id)
	}
	return strings.Join(quoted, ", ")
}

func isPlainIdent(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9', r == '$':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
