package domain

import (
	"strconv"
	"time"
)

// FilterOp is a comparison used when listing users.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
)

// User fields as exposed by the API.
const (
	FieldID                = "id"
	FieldName              = "name"
	FieldEmail             = "email"
	FieldPhoto             = "photo"
	FieldRole              = "role"
	FieldActive            = "active"
	FieldPasswordChangedAt = "passwordChangedAt"
	FieldCreatedAt         = "createdAt"
	FieldUpdatedAt         = "updatedAt"
)

// SelectableFields can be requested in a projection. Password material never is.
var SelectableFields = map[string]bool{
	FieldID: true, FieldName: true, FieldEmail: true, FieldPhoto: true, FieldRole: true,
	FieldActive: true, FieldPasswordChangedAt: true, FieldCreatedAt: true, FieldUpdatedAt: true,
}

// SortableFields can appear in a sort expression.
var SortableFields = map[string]bool{
	FieldName: true, FieldEmail: true, FieldRole: true, FieldCreatedAt: true, FieldUpdatedAt: true,
}

// FilterableFields maps a field to the operators it accepts.
var FilterableFields = map[string][]FilterOp{
	FieldName:      {OpEq},
	FieldEmail:     {OpEq},
	FieldRole:      {OpEq},
	FieldActive:    {OpEq},
	FieldCreatedAt: {OpEq, OpGt, OpGte, OpLt, OpLte},
	FieldUpdatedAt: {OpEq, OpGt, OpGte, OpLt, OpLte},
}

func IsTimeField(field string) bool {
	return field == FieldCreatedAt || field == FieldUpdatedAt
}

// Filter values are kept as validated strings: RFC3339 for time fields,
// "true"/"false" for active.
type Filter struct {
	Field string
	Op    FilterOp
	Value string
}

func (f Filter) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, f.Value)
}

func (f Filter) Bool() (bool, error) {
	return strconv.ParseBool(f.Value)
}

type SortField struct {
	Field string
	Desc  bool
}

const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ListQuery describes a filtered, sorted, paginated user listing.
type ListQuery struct {
	Filters []Filter
	Sort    []SortField
	Fields  []string
	Page    int
	Limit   int
}

// DefaultSort is newest first.
var DefaultSort = []SortField{{Field: FieldCreatedAt, Desc: true}}

func (q ListQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// WithDefaults fills page, limit and sort when unset.
func (q ListQuery) WithDefaults() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if len(q.Sort) == 0 {
		q.Sort = DefaultSort
	}
	return q
}
