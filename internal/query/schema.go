package query

import (
	"strconv"
	"time"
)

// Kind is the value type of a queryable field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindTime
	KindBool
	// KindObject fields can be projected but never filtered, searched or sorted.
	KindObject
)

// Field describes one attribute of an entity T as seen by the query engine.
type Field[T any] struct {
	// Name is the public attribute name used in query parameters and projections.
	Name string
	// Column is the storage column backing the field.
	Column string
	Kind   Kind
	// Value extracts the attribute from a record. It returns nil for an unset value.
	Value func(T) any
}

// Schema is the set of fields the engine may touch for an entity type.
// Parameters naming anything outside the schema are ignored.
type Schema[T any] struct {
	fields map[string]Field[T]
	names  []string
}

// NewSchema creates a schema from the given fields, keeping their order.
func NewSchema[T any](fields ...Field[T]) *Schema[T] {
	s := &Schema[T]{fields: make(map[string]Field[T], len(fields))}
	for _, f := range fields {
		s.fields[f.Name] = f
		s.names = append(s.names, f.Name)
	}
	return s
}

// Field looks up a field by public name.
func (s *Schema[T]) Field(name string) (Field[T], bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Names returns the field names in declaration order.
func (s *Schema[T]) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// comparable reports whether the field can take part in predicates and ordering.
func (f Field[T]) comparable() bool {
	return f.Kind != KindObject
}

// coerce converts a condition operand to the Go type used for kind.
// Raw strings coming from query parameters are parsed; typed operands pass through.
func coerce(kind Kind, v any) (any, bool) {
	switch kind {
	case KindString:
		s, ok := v.(string)
		return s, ok
	case KindNumber:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, false
			}
			return f, true
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			parsed, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, false
			}
			return parsed, true
		}
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, false
			}
			return parsed, true
		}
	}
	return nil, false
}
