package users

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// reserved query keys that are not filters
var reservedParams = map[string]bool{"page": true, "limit": true, "sort": true, "fields": true}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02"}

// ParseListQuery reads a listing request from URL query parameters:
//
//	?role=admin&createdAt[gte]=2024-01-01&sort=name,-createdAt&fields=name,email&page=2&limit=20
func ParseListQuery(v url.Values) (domain.ListQuery, error) {
	var q domain.ListQuery

	for key, vals := range v {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		f, err := parseFilter(key, vals[0])
		if err != nil {
			return domain.ListQuery{}, err
		}
		q.Filters = append(q.Filters, f)
	}

	if s := strings.TrimSpace(v.Get("sort")); s != "" {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			sf := domain.SortField{Field: strings.TrimPrefix(part, "-"), Desc: strings.HasPrefix(part, "-")}
			if !domain.SortableFields[sf.Field] {
				return domain.ListQuery{}, domain.ErrInvalidField("sort", "cannot sort by "+sf.Field)
			}
			q.Sort = append(q.Sort, sf)
		}
	}

	if s := strings.TrimSpace(v.Get("fields")); s != "" {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !domain.SelectableFields[part] {
				return domain.ListQuery{}, domain.ErrInvalidField("fields", "unknown field "+part)
			}
			q.Fields = append(q.Fields, part)
		}
	}

	var err error
	if q.Page, err = positiveInt(v, "page"); err != nil {
		return domain.ListQuery{}, err
	}
	if q.Limit, err = positiveInt(v, "limit"); err != nil {
		return domain.ListQuery{}, err
	}

	return q.WithDefaults(), nil
}

// parseFilter accepts "field=value" and "field[op]=value".
func parseFilter(key, raw string) (domain.Filter, error) {
	field, op := key, domain.OpEq
	if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") {
		field, op = key[:i], domain.FilterOp(key[i+1:len(key)-1])
	}

	ops, ok := domain.FilterableFields[field]
	if !ok {
		return domain.Filter{}, domain.ErrInvalidField(field, "cannot filter by this field")
	}
	if !containsOp(ops, op) {
		return domain.Filter{}, domain.ErrInvalidField(field, "unsupported operator "+string(op))
	}

	raw = strings.TrimSpace(raw)
	switch {
	case domain.IsTimeField(field):
		t, err := parseDate(raw)
		if err != nil {
			return domain.Filter{}, domain.ErrInvalidField(field, "expected a date")
		}
		raw = t.UTC().Format(time.RFC3339Nano)
	case field == domain.FieldActive:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.Filter{}, domain.ErrInvalidField(field, "expected true or false")
		}
		raw = strconv.FormatBool(b)
	case field == domain.FieldRole:
		if !domain.IsValidRole(raw) {
			return domain.Filter{}, domain.ErrInvalidRole(raw)
		}
	case field == domain.FieldEmail:
		raw = domain.NormalizeEmail(raw)
	}

	return domain.Filter{Field: field, Op: op, Value: raw}, nil
}

func parseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func positiveInt(v url.Values, key string) (int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, domain.ErrInvalidField(key, "must be a positive integer")
	}
	return n, nil
}

func containsOp(ops []domain.FilterOp, op domain.FilterOp) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}
