// Package inmemdb keeps entities in memory. It backs the service tests that need no database.
//
// Filters are evaluated on the `db` tags of the rows and support the predicates plain listings use:
// squirrel Eq (including IN and IS NULL), NotEq, the ordered comparisons, Like, ILike, And and Or.
// Anything else is rejected.
package inmemdb

import (
	"context"
	"database/sql/driver"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
)

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

// Store is the in-memory core.Store of one entity.
type Store[T any] struct {
	mu     sync.RWMutex
	entity string
	owner  func(T) int
	rows   map[int]T
	pkSeq  int
}

var _ core.Store[struct{}] = (*Store[struct{}])(nil) // interface compliance check

// NewStore returns a store holding rows. owner returns the organization a row belongs to;
// a nil owner makes every row visible to every scope.
func NewStore[T any](entity string, owner func(T) int, rows ...T) *Store[T] {
	s := &Store[T]{entity: entity, owner: owner, rows: make(map[int]T, len(rows))}
	for _, row := range rows {
		id := idOf(&row)
		s.rows[id] = row
		if id > s.pkSeq {
			s.pkSeq = id
		}
	}
	return s
}

func (s *Store[T]) visible(scope query.Scope, row T) bool {
	if s.owner == nil || scope.Unrestricted() {
		return true
	}
	return scope.OrganizationID > 0 && s.owner(row) == scope.OrganizationID
}

// Rows returns a copy of every row, sorted by id.
func (s *Store[T]) Rows() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(true)
}

func (s *Store[T]) sorted(asc bool) []T {
	ids := make([]int, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if !asc {
		sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	}
	rows := make([]T, len(ids))
	for i, id := range ids {
		rows[i] = s.rows[id]
	}
	return rows
}

func (s *Store[T]) filter(scope query.Scope, where sq.Sqlizer, asc bool) ([]T, error) {
	res := make([]T, 0)
	for _, row := range s.sorted(asc) {
		if !s.visible(scope, row) {
			continue
		}
		ok, err := match(reflect.ValueOf(row), where)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, row)
		}
	}
	return res, nil
}

func (s *Store[T]) GetMany(_ context.Context, ids []int, _ ...core.DBExecutor) (map[int]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[int]T, len(ids))
	for _, id := range ids {
		if row, ok := s.rows[id]; ok {
			res[id] = row
		}
	}
	return res, nil
}

func (s *Store[T]) Create(_ context.Context, scope query.Scope, v *T, _ ...core.DBExecutor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visible(scope, *v) {
		return core.ErrForbidden
	}
	s.pkSeq++
	now := time.Now().UTC()
	rv := reflect.ValueOf(v).Elem()
	setField(rv, "id", reflect.ValueOf(s.pkSeq))
	setField(rv, "created_at", reflect.ValueOf(now))
	setField(rv, "updated_at", reflect.ValueOf(now))
	s.rows[s.pkSeq] = *v
	return nil
}

func (s *Store[T]) Get(_ context.Context, scope query.Scope, id int, _ ...core.DBExecutor) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok || !s.visible(scope, row) {
		var zero T
		return zero, core.NewNotFoundError(s.entity)
	}
	return row, nil
}

func (s *Store[T]) First(_ context.Context, scope query.Scope, where sq.Sqlizer, _ ...core.DBExecutor) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var zero T
	rows, err := s.filter(scope, where, false)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, core.NewNotFoundError(s.entity)
	}
	return rows[0], nil
}

func (s *Store[T]) List(_ context.Context, scope query.Scope, params core.ListParams, _ ...core.DBExecutor) ([]T, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asc := len(params.Ordering) > 0 && params.Ordering[0].Field == "id" && params.Ordering[0].Ascending
	rows, err := s.filter(scope, params.Where, asc)
	if err != nil {
		return nil, 0, err
	}
	count := len(rows)
	if !params.All {
		page := params.Page.Normalize()
		start := page.Offset()
		if start > count {
			start = count
		}
		end := start + page.Limit
		if end > count {
			end = count
		}
		rows = rows[start:end]
	}
	return rows, count, nil
}

func (s *Store[T]) Update(_ context.Context, scope query.Scope, v *T, _ ...core.DBExecutor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := idOf(v)
	old, ok := s.rows[id]
	if !ok || !s.visible(scope, old) || !s.visible(scope, *v) {
		return core.NewNotFoundError(s.entity)
	}
	setField(reflect.ValueOf(v).Elem(), "updated_at", reflect.ValueOf(time.Now().UTC()))
	s.rows[id] = *v
	return nil
}

func (s *Store[T]) Delete(_ context.Context, scope query.Scope, id int, _ ...core.DBExecutor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || !s.visible(scope, row) {
		return core.NewNotFoundError(s.entity)
	}
	delete(s.rows, id)
	return nil
}

func (s *Store[T]) Count(_ context.Context, scope query.Scope, where sq.Sqlizer, _ ...core.DBExecutor) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.filter(scope, where, false)
	return len(rows), err
}

func (s *Store[T]) Sum(_ context.Context, scope query.Scope, column string, where sq.Sqlizer, _ ...core.DBExecutor) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.filter(scope, where, false)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, row := range rows {
		fv, ok := field(reflect.ValueOf(row), column)
		if !ok {
			return 0, errors.Errorf("%s has no column %q", s.entity, column)
		}
		switch {
		case fv.CanFloat():
			sum += fv.Float()
		case fv.CanInt():
			sum += float64(fv.Int())
		}
	}
	return sum, nil
}

func idOf(v interface{}) int {
	if m, ok := v.(interface{ PK() int }); ok {
		return m.PK()
	}
	return 0
}

// field finds the field of a struct value tagged with a column name.
func field(rv reflect.Value, col string) (reflect.Value, bool) {
	rv = reflect.Indirect(rv)
	fi, ok := mapper.TypeMap(rv.Type()).Names[col]
	if !ok {
		return reflect.Value{}, false
	}
	return reflectx.FieldByIndexesReadOnly(rv, fi.Index), true
}

func setField(rv reflect.Value, col string, val reflect.Value) {
	fi, ok := mapper.TypeMap(rv.Type()).Names[col]
	if !ok {
		return
	}
	if fv := reflectx.FieldByIndexes(rv, fi.Index); fv.CanSet() && val.Type().AssignableTo(fv.Type()) {
		fv.Set(val)
	}
}

func match(row reflect.Value, pred sq.Sqlizer) (bool, error) {
	switch p := pred.(type) {
	case nil:
		return true, nil
	case sq.And:
		for _, part := range p {
			ok, err := match(row, part)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case sq.Or:
		for _, part := range p {
			ok, err := match(row, part)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case sq.Eq:
		return matchEq(row, p, false)
	case sq.NotEq:
		return matchEq(row, sq.Eq(p), true)
	case sq.Lt:
		return matchCmp(row, p, func(c int) bool { return c < 0 })
	case sq.LtOrEq:
		return matchCmp(row, p, func(c int) bool { return c <= 0 })
	case sq.Gt:
		return matchCmp(row, p, func(c int) bool { return c > 0 })
	case sq.GtOrEq:
		return matchCmp(row, p, func(c int) bool { return c >= 0 })
	case sq.Like:
		return matchLike(row, p, false)
	case sq.ILike:
		return matchLike(row, sq.Like(p), true)
	}
	return false, errors.Errorf("unsupported predicate %T", pred)
}

func matchEq(row reflect.Value, eq sq.Eq, negate bool) (bool, error) {
	for col, want := range eq {
		fv, ok := field(row, col[strings.LastIndex(col, ".")+1:])
		if !ok {
			return false, errors.Errorf("no column %q", col)
		}
		got := normalize(fv.Interface())
		if equalsAny(got, want) == negate {
			return false, nil
		}
	}
	return true, nil
}

func matchCmp(row reflect.Value, cmp map[string]interface{}, ok func(int) bool) (bool, error) {
	for col, want := range cmp {
		fv, found := field(row, col[strings.LastIndex(col, ".")+1:])
		if !found {
			return false, errors.Errorf("no column %q", col)
		}
		c, comparable := compare(normalize(fv.Interface()), normalize(want))
		if !comparable || !ok(c) {
			return false, nil
		}
	}
	return true, nil
}

func matchLike(row reflect.Value, like sq.Like, fold bool) (bool, error) {
	for col, want := range like {
		fv, found := field(row, col[strings.LastIndex(col, ".")+1:])
		if !found {
			return false, errors.Errorf("no column %q", col)
		}
		pattern, ok := want.(string)
		if !ok {
			return false, errors.Errorf("LIKE pattern of %q is a %T", col, want)
		}
		got, ok := normalize(fv.Interface()).(string)
		if !ok {
			return false, nil
		}
		re, err := likeRegexp(pattern, fold)
		if err != nil {
			return false, err
		}
		if !re.MatchString(got) {
			return false, nil
		}
	}
	return true, nil
}

// likeRegexp translates a LIKE pattern (% and _ wildcards, backslash escapes) to an anchored regexp.
func likeRegexp(pattern string, fold bool) (*regexp.Regexp, error) {
	var b strings.Builder
	if fold {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString("(?s).*")
		case r == '_':
			b.WriteString("(?s).")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// compare orders two normalized values. NULLs and mismatched kinds never compare, as in SQL.
func compare(got, want interface{}) (int, bool) {
	if t, isTime := want.(time.Time); isTime {
		if s, isStr := got.(string); isStr {
			d, err := time.Parse(core.DateLayout, s)
			if err != nil {
				return 0, false
			}
			got = d
		}
		g, isTime := got.(time.Time)
		if !isTime {
			return 0, false
		}
		return g.Compare(t), true
	}
	g, gok := number(got)
	w, wok := number(want)
	if gok && wok {
		switch {
		case g < w:
			return -1, true
		case g > w:
			return 1, true
		}
		return 0, true
	}
	gs, gok := got.(string)
	ws, wok := want.(string)
	if gok && wok {
		return strings.Compare(gs, ws), true
	}
	return 0, false
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// equalsAny compares a column value with an Eq operand: a scalar, a list (IN) or nil (IS NULL).
func equalsAny(got, want interface{}) bool {
	if want == nil {
		return got == nil
	}
	wv := reflect.ValueOf(want)
	if wv.Kind() == reflect.Slice {
		for i := 0; i < wv.Len(); i++ {
			if got == normalize(wv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return got == normalize(want)
}

// normalize reduces values to comparable driver-like values.
func normalize(v interface{}) interface{} {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil
		}
		v = dv
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	}
	return v
}
