package postgrest

import (
	"net/url"
	"strings"
)

// Operator is a PostgREST horizontal filter operator.
type Operator string

const OpEq Operator = "eq"

// Filter restricts rows on one column: field=op.value.
type Filter struct {
	Field string
	Op    Operator
	Value string
}

// Eq matches rows whose field equals value.
func Eq(field, value string) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func (f Filter) String() string {
	return f.Field + "=" + string(f.Op) + "." + f.Value
}

// Query is a select against one table. Ordering is always ascending.
type Query struct {
	Filters []Filter
	OrderBy string
}

// Where returns a copy of q with filters appended.
func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

// Order returns a copy of q ordered ascending by field.
func (q Query) Order(field string) Query {
	q.OrderBy = field
	return q
}

// Values encodes q as PostgREST query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	for _, f := range q.Filters {
		v.Add(f.Field, string(f.Op)+"."+f.Value)
	}
	if q.OrderBy != "" {
		v.Set("order", q.OrderBy+".asc")
	}
	return v
}

// String renders q unescaped, for log lines.
func (q Query) String() string {
	parts := make([]string, 0, len(q.Filters)+1)
	for _, f := range q.Filters {
		parts = append(parts, f.String())
	}
	if q.OrderBy != "" {
		parts = append(parts, "order="+q.OrderBy+".asc")
	}
	return strings.Join(parts, "&")
}
