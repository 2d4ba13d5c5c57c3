package api

import (
	"fmt"
	"strings"
)

// FilterOp represents a portal query operator.
type FilterOp string

const (
	OpEq FilterOp = "="  // Equality
	OpIn FilterOp = "in" // Any of the specified values
)

// Filter represents a query filter condition.
type Filter struct {
	Op     FilterOp
	Field  string
	Value  string   // For single-value operators
	Values []string // For multi-value operators (in)
}

// Query represents a portal search with filters and field selection.
type Query struct {
	// SelectFields is the list of fields to return.
	SelectFields []string

	// Filters are combined with AND.
	Filters []Filter

	// LimitValue is the maximum number of records to return (0 = unlimited).
	LimitValue int
}

// NewQuery creates a new empty query.
func NewQuery() *Query {
	return &Query{}
}

// Select sets the fields to return.
func (q *Query) Select(fields ...string) *Query {
	q.SelectFields = append(q.SelectFields, fields...)
	return q
}

// Eq adds an equality filter.
func (q *Query) Eq(field, value string) *Query {
	q.Filters = append(q.Filters, Filter{Op: OpEq, Field: field, Value: value})
	return q
}

// In adds an any-value filter.
func (q *Query) In(field string, values ...string) *Query {
	q.Filters = append(q.Filters, Filter{Op: OpIn, Field: field, Values: values})
	return q
}

// Limit sets the maximum number of records to return.
func (q *Query) Limit(n int) *Query {
	q.LimitValue = n
	return q
}

// Build generates the portal query expression, e.g.
// sample_accession="ERS1" AND (tax_id=1 OR tax_id=2).
func (q *Query) Build() string {
	var parts []string
	for _, f := range q.Filters {
		switch f.Op {
		case OpIn:
			var alts []string
			for _, v := range f.Values {
				alts = append(alts, fmt.Sprintf("%s=%s", f.Field, quoteValue(v)))
			}
			if len(alts) == 1 {
				parts = append(parts, alts[0])
			} else {
				parts = append(parts, "("+strings.Join(alts, " OR ")+")")
			}
		default:
			parts = append(parts, fmt.Sprintf("%s%s%s", f.Field, f.Op, quoteValue(f.Value)))
		}
	}
	return strings.Join(parts, " AND ")
}

// Fields returns the comma-joined field list.
func (q *Query) Fields() string {
	return strings.Join(q.SelectFields, ",")
}

// HasFilters returns true if the query has any filter constraints.
func (q *Query) HasFilters() bool {
	return len(q.Filters) > 0
}

// quoteValue double-quotes a value and escapes embedded quotes.
func quoteValue(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Clone creates a copy of the query.
func (q *Query) Clone() *Query {
	newQ := &Query{
		SelectFields: make([]string, len(q.SelectFields)),
		Filters:      make([]Filter, len(q.Filters)),
		LimitValue:   q.LimitValue,
	}
	copy(newQ.SelectFields, q.SelectFields)
	copy(newQ.Filters, q.Filters)
	return newQ
}
