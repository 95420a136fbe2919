package model

// Clause names the predicate a FilterTerm applies to Field.
type Clause string

const (
	ClauseEq       Clause = "eq"
	ClauseIn       Clause = "in"
	ClauseNotIn    Clause = "not_in"
	ClauseLike     Clause = "like"
	ClauseContains Clause = "contains" // JSON containment
	ClauseGt       Clause = "gt"
	ClauseLt       Clause = "lt"
	ClauseIsNull   Clause = "is_null"
)

// FilterTerm is one (field, clause, value) predicate. Value is ignored for
// ClauseIsNull and must be a slice for ClauseIn/ClauseNotIn.
type FilterTerm struct {
	Field  string      `json:"field"`
	Clause Clause      `json:"clause"`
	Value  interface{} `json:"value,omitempty"`
}

// Order is one ORDER BY term.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Filter is the predicate tree C1 read operations accept: a conjunction of
// terms plus pagination and ordering (spec.md §4.1).
type Filter struct {
	Terms  []FilterTerm `json:"terms,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
	Order  []Order      `json:"order,omitempty"`
}

// Eq appends an equality term and returns the filter for chaining.
func (f *Filter) Eq(field string, value interface{}) *Filter {
	f.Terms = append(f.Terms, FilterTerm{Field: field, Clause: ClauseEq, Value: value})
	return f
}

// In appends a membership term.
func (f *Filter) In(field string, values ...interface{}) *Filter {
	f.Terms = append(f.Terms, FilterTerm{Field: field, Clause: ClauseIn, Value: values})
	return f
}

// Like appends a pattern-match term.
func (f *Filter) Like(field, pattern string) *Filter {
	f.Terms = append(f.Terms, FilterTerm{Field: field, Clause: ClauseLike, Value: pattern})
	return f
}

// WithLimit sets pagination limit/offset and returns the filter for chaining.
func (f *Filter) WithLimit(limit, offset int) *Filter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// NewFilter returns an empty filter ready for chaining.
func NewFilter() *Filter {
	return &Filter{}
}
