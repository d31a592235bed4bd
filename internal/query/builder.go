// Package query turns untyped listing parameters into a filtered, searched,
// sorted and paginated read plus the pagination metadata for it.
//
// A Builder collects the steps in any order; each step only touches its own
// part of the resulting Query. Storage adapters either compile the Query to SQL
// (CompileSQL) or evaluate it against records in memory (Apply).
package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Reserved parameter names. Everything else is an exact-match filter.
const (
	ParamSearchTerm = "searchTerm"
	ParamSort       = "sort"
	ParamFields     = "fields"
	ParamPage       = "page"
	ParamLimit      = "limit"
	ParamMinFare    = "minFare"
	ParamMaxFare    = "maxFare"
	ParamDateRange  = "dateRange"
)

// Well-known field names every listable schema is expected to define.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldFare      = "fare"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	defaultSort  = "-" + FieldCreatedAt

	// MaxLimit and MaxPage bound the offset so it always fits an int.
	MaxLimit = 100
	MaxPage  = 1_000_000
)

var reserved = map[string]bool{
	ParamSearchTerm: true,
	ParamSort:       true,
	ParamFields:     true,
	ParamPage:       true,
	ParamLimit:      true,
	ParamMinFare:    true,
	ParamMaxFare:    true,
	ParamDateRange:  true,
}

// Date range keywords.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeYear  = "year"
)

// Params are raw listing parameters, one value per key.
type Params map[string]string

// FromValues keeps the first value of every key.
func FromValues(v url.Values) Params {
	p := make(Params, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			p[k] = vals[0]
		}
	}
	return p
}

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpGte Op = ">="
	OpLte Op = "<="
	// OpIn takes a []string or []any operand and matches any of its elements.
	OpIn Op = "in"
)

// Condition compares a field with an operand. Operands are either raw strings
// from parameters or typed values (float64, time.Time, bool).
// Conditions built in code use the same field names as parameters.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Search is a case-insensitive substring match OR-ed across Fields.
type Search struct {
	Fields []string
	Term   string
}

// SortKey orders by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// Query is the composed read. Conditions are AND-ed together with the search.
type Query struct {
	Conditions []Condition
	Search     Search
	Fields     []string
	Sort       []SortKey
	Page       int
	Limit      int
	Paginated  bool
}

// Where returns a copy of q with an extra equality condition on field,
// replacing any equality condition on that field taken from parameters.
func (q Query) Where(field string, value any) Query {
	out := make([]Condition, 0, len(q.Conditions)+1)
	for _, c := range q.Conditions {
		if c.Field == field && c.Op == OpEq {
			continue
		}
		out = append(out, c)
	}
	q.Conditions = append(out, Condition{Field: field, Op: OpEq, Value: value})
	return q
}

// Offset is the number of rows skipped before the current page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Unpaged returns q without pagination, as used for counting.
func (q Query) Unpaged() Query {
	q.Paginated = false
	return q
}

// Meta is the pagination metadata returned with a listing.
type Meta struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	TotalPage int `json:"totalPage"`
	TotalDocs int `json:"totalDocs"`
}

// NewMeta derives metadata from the query and the unpaginated match count.
func NewMeta(q Query, totalDocs int) Meta {
	limit := q.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	page := q.Page
	if page < 1 {
		page = DefaultPage
	}
	return Meta{
		Page:      page,
		Limit:     limit,
		TotalPage: int(math.Ceil(float64(totalDocs) / float64(limit))),
		TotalDocs: totalDocs,
	}
}

// Builder composes a Query from Params.
type Builder struct {
	params Params
	now    func() time.Time
	q      Query
}

// NewBuilder starts a query over params. Page and limit are always parsed so
// metadata can be derived even when Paginate is not applied.
func NewBuilder(params Params) *Builder {
	if params == nil {
		params = Params{}
	}
	b := &Builder{params: params, now: time.Now}
	b.q.Page = min(positiveInt(params[ParamPage], DefaultPage), MaxPage)
	b.q.Limit = min(positiveInt(params[ParamLimit], DefaultLimit), MaxLimit)
	return b
}

// WithClock overrides the clock used by DateRange.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Filter turns every non-reserved parameter into an equality condition and
// minFare/maxFare into a range on fare.
func (b *Builder) Filter() *Builder {
	keys := make([]string, 0, len(b.params))
	for key := range b.params {
		if !reserved[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.q.Conditions = append(b.q.Conditions, Condition{Field: key, Op: OpEq, Value: b.params[key]})
	}
	if v, ok := parseFloat(b.params[ParamMinFare]); ok {
		b.q.Conditions = append(b.q.Conditions, Condition{Field: FieldFare, Op: OpGte, Value: v})
	}
	if v, ok := parseFloat(b.params[ParamMaxFare]); ok {
		b.q.Conditions = append(b.q.Conditions, Condition{Field: FieldFare, Op: OpLte, Value: v})
	}
	return b
}

// DateRange restricts creation time to [start, now] for a known dateRange keyword.
func (b *Builder) DateRange() *Builder {
	now := b.now()
	start, ok := RangeStart(b.params[ParamDateRange], now)
	if !ok {
		return b
	}
	b.q.Conditions = append(b.q.Conditions,
		Condition{Field: FieldCreatedAt, Op: OpGte, Value: start},
		Condition{Field: FieldCreatedAt, Op: OpLte, Value: now},
	)
	return b
}

// RangeStart computes the local-midnight start of a date range keyword.
func RangeStart(keyword string, now time.Time) (time.Time, bool) {
	loc := now.Location()
	y, m, d := now.Date()
	switch keyword {
	case RangeToday:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	case RangeWeek:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, loc), true
	case RangeMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), true
	case RangeYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}

// Search matches searchTerm against any of fields.
func (b *Builder) Search(fields ...string) *Builder {
	b.q.Search = Search{
		Fields: append([]string(nil), fields...),
		Term:   b.params[ParamSearchTerm],
	}
	return b
}

// Select applies the comma-separated fields projection.
func (b *Builder) Select() *Builder {
	b.q.Fields = splitList(b.params[ParamFields])
	return b
}

// Sort applies the sort expression, newest first by default.
// Keys are separated by commas or spaces; a leading '-' sorts descending.
func (b *Builder) Sort() *Builder {
	expr := b.params[ParamSort]
	if strings.TrimSpace(expr) == "" {
		expr = defaultSort
	}
	b.q.Sort = parseSort(expr)
	return b
}

// Paginate limits the read to the requested page.
func (b *Builder) Paginate() *Builder {
	b.q.Paginated = true
	return b
}

// Build returns the composed query.
func (b *Builder) Build() Query {
	q := b.q
	q.Conditions = append([]Condition(nil), b.q.Conditions...)
	return q
}

func parseSort(expr string) []SortKey {
	var keys []SortKey
	for _, part := range splitList(expr) {
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(strings.TrimPrefix(part, "-"), "+")
		if name == "" {
			continue
		}
		keys = append(keys, SortKey{Field: name, Desc: desc})
	}
	return keys
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseFloat(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
