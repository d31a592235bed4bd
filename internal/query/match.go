package query

import (
	"sort"
	"strings"
	"time"
)

// Match reports whether rec satisfies every condition and the search of q.
func Match[T any](s *Schema[T], q Query, rec T) bool {
	for _, c := range q.Conditions {
		f, ok := s.Field(c.Field)
		if !ok || !f.comparable() {
			continue
		}
		v := f.Value(rec)
		if v == nil {
			return false
		}
		if c.Op == OpIn {
			if !matchIn(f.Kind, v, c.Value) {
				return false
			}
			continue
		}
		operand, ok := coerce(f.Kind, c.Value)
		if !ok {
			return false
		}
		cmp := compare(f.Kind, v, operand)
		switch c.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		}
	}
	return matchSearch(s, q.Search, rec)
}

func matchIn(kind Kind, v, operand any) bool {
	set, ok := inOperands(kind, operand)
	if !ok {
		return false
	}
	for _, o := range set {
		if compare(kind, v, o) == 0 {
			return true
		}
	}
	return false
}

// inOperands coerces every element of an OpIn operand.
func inOperands(kind Kind, operand any) ([]any, bool) {
	var raw []any
	switch vals := operand.(type) {
	case []string:
		for _, v := range vals {
			raw = append(raw, v)
		}
	case []any:
		raw = vals
	default:
		return nil, false
	}
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		v, ok := coerce(kind, r)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func matchSearch[T any](s *Schema[T], search Search, rec T) bool {
	fields := searchFields(s, search)
	if len(fields) == 0 {
		return true
	}
	term := strings.ToLower(search.Term)
	for _, f := range fields {
		if v, ok := f.Value(rec).(string); ok && strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// searchFields returns the string fields a non-empty search applies to.
func searchFields[T any](s *Schema[T], search Search) []Field[T] {
	if search.Term == "" {
		return nil
	}
	var out []Field[T]
	for _, name := range search.Fields {
		if f, ok := s.Field(name); ok && f.Kind == KindString {
			out = append(out, f)
		}
	}
	return out
}

// Apply filters, sorts and paginates recs. total is the match count before pagination.
func Apply[T any](s *Schema[T], q Query, recs []T) (page []T, total int) {
	matched := make([]T, 0, len(recs))
	for _, r := range recs {
		if Match(s, q, r) {
			matched = append(matched, r)
		}
	}
	total = len(matched)

	keys := sortKeys(s, q.Sort)
	if len(keys) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(keys, matched[i], matched[j])
		})
	}

	if !q.Paginated {
		return matched, total
	}
	offset := q.Offset()
	if offset >= len(matched) {
		return []T{}, total
	}
	end := offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total
}

type resolvedKey[T any] struct {
	field Field[T]
	desc  bool
}

// sortKeys resolves sort keys against the schema and appends the id as a
// tie-breaker so pages are stable.
func sortKeys[T any](s *Schema[T], keys []SortKey) []resolvedKey[T] {
	var out []resolvedKey[T]
	seenID := false
	for _, k := range keys {
		f, ok := s.Field(k.Field)
		if !ok || !f.comparable() {
			continue
		}
		if f.Name == FieldID {
			seenID = true
		}
		out = append(out, resolvedKey[T]{field: f, desc: k.Desc})
	}
	if len(out) == 0 && len(keys) > 0 {
		if f, ok := s.Field(FieldCreatedAt); ok {
			out = append(out, resolvedKey[T]{field: f, desc: true})
		}
	}
	if !seenID && len(out) > 0 {
		if f, ok := s.Field(FieldID); ok {
			out = append(out, resolvedKey[T]{field: f})
		}
	}
	return out
}

func less[T any](keys []resolvedKey[T], a, b T) bool {
	for _, k := range keys {
		va, vb := k.field.Value(a), k.field.Value(b)
		switch {
		case va == nil && vb == nil:
			continue
		case va == nil:
			return false
		case vb == nil:
			return true
		}
		cmp := compare(k.field.Kind, va, vb)
		if cmp == 0 {
			continue
		}
		if k.desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func compare(kind Kind, a, b any) int {
	switch kind {
	case KindString:
		as, _ := a.(string)
		bs, _ := b.(string)
		return strings.Compare(as, bs)
	case KindNumber:
		af, _ := coerce(KindNumber, a)
		bf, _ := coerce(KindNumber, b)
		x, _ := af.(float64)
		y, _ := bf.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case KindTime:
		at, _ := a.(time.Time)
		bt, _ := b.(time.Time)
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		}
		return 0
	case KindBool:
		ab, _ := a.(bool)
		bb, _ := b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	}
	return 0
}

// Project renders records as attribute maps restricted to the query's fields.
// Names prefixed with '-' are excluded instead. The id is kept unless excluded.
func Project[T any](s *Schema[T], fields []string, recs []T) []map[string]any {
	names := projection(s, fields)
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		m := make(map[string]any, len(names))
		for _, n := range names {
			f, _ := s.Field(n)
			m[n] = f.Value(r)
		}
		out = append(out, m)
	}
	return out
}

func projection[T any](s *Schema[T], fields []string) []string {
	include := map[string]bool{}
	exclude := map[string]bool{}
	for _, name := range fields {
		if strings.HasPrefix(name, "-") {
			exclude[strings.TrimPrefix(name, "-")] = true
			continue
		}
		if _, ok := s.Field(name); ok {
			include[name] = true
		}
	}

	var out []string
	for _, n := range s.Names() {
		switch {
		case exclude[n]:
		case len(include) == 0, include[n], n == FieldID:
			out = append(out, n)
		}
	}
	return out
}
