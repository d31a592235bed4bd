package query

import (
	"fmt"
	"strings"
)

// SQL is a query compiled for PostgreSQL. Column names only ever come from
// the schema; every operand is a bind parameter.
type SQL struct {
	Where   string
	OrderBy string
	// Limit and Offset are empty when the query is not paginated.
	Limit  string
	Offset string
	Args   []any
}

// Clause renders WHERE, ORDER BY and LIMIT/OFFSET in that order.
func (c SQL) Clause() string {
	var b strings.Builder
	b.WriteString(" WHERE ")
	b.WriteString(c.Where)
	if c.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(c.OrderBy)
	}
	if c.Limit != "" {
		b.WriteString(" LIMIT ")
		b.WriteString(c.Limit)
		b.WriteString(" OFFSET ")
		b.WriteString(c.Offset)
	}
	return b.String()
}

// CompileSQL compiles q against s. Placeholders are numbered from len(args)+1
// so callers can prepend their own parameters.
func CompileSQL[T any](s *Schema[T], q Query, args ...any) SQL {
	out := SQL{Args: append([]any(nil), args...)}
	bind := func(v any) string {
		out.Args = append(out.Args, v)
		return fmt.Sprintf("$%d", len(out.Args))
	}

	var preds []string
	for _, c := range q.Conditions {
		f, ok := s.Field(c.Field)
		if !ok || !f.comparable() {
			continue
		}
		if c.Op == OpIn {
			set, ok := inOperands(f.Kind, c.Value)
			if !ok || len(set) == 0 {
				preds = append(preds, "FALSE")
				continue
			}
			placeholders := make([]string, 0, len(set))
			for _, v := range set {
				placeholders = append(placeholders, bind(v))
			}
			preds = append(preds, fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(placeholders, ", ")))
			continue
		}
		operand, ok := coerce(f.Kind, c.Value)
		if !ok {
			preds = append(preds, "FALSE")
			continue
		}
		preds = append(preds, fmt.Sprintf("%s %s %s", f.Column, sqlOp(c.Op), bind(operand)))
	}

	if fields := searchFields(s, q.Search); len(fields) > 0 {
		placeholder := bind("%" + escapeLike(q.Search.Term) + "%")
		ors := make([]string, 0, len(fields))
		for _, f := range fields {
			ors = append(ors, fmt.Sprintf("%s ILIKE %s", f.Column, placeholder))
		}
		preds = append(preds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(preds) == 0 {
		out.Where = "TRUE"
	} else {
		out.Where = strings.Join(preds, " AND ")
	}

	keys := sortKeys(s, q.Sort)
	order := make([]string, 0, len(keys))
	for _, k := range keys {
		dir := "ASC"
		if k.desc {
			dir = "DESC"
		}
		order = append(order, k.field.Column+" "+dir)
	}
	out.OrderBy = strings.Join(order, ", ")

	if q.Paginated {
		out.Limit = bind(q.Limit)
		out.Offset = bind(q.Offset())
	}
	return out
}

func sqlOp(op Op) string {
	switch op {
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	}
	return "="
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
