// Package query builds the composable filter predicates used by every listing.
//
// A builder takes one optional value and returns a squirrel.Sqlizer:
//   - absent input (zero value, empty string) yields the identity predicate, so that
//     any number of optional filters can be AND-ed safely;
//   - present but malformed input (an id or a date that does not parse) matches nothing.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const dateLayout = "2006-01-02"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Identity matches every row: "(1=1)".
func Identity() sq.Sqlizer { return sq.And{} }

// None matches no row: "(1=0)".
func None() sq.Sqlizer { return sq.Or{} }

// All AND-s the given predicates, skipping nil ones.
func All(preds ...sq.Sqlizer) sq.And {
	and := make(sq.And, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			and = append(and, p)
		}
	}
	return and
}

// Eq matches `col = v`, identity for the zero value.
func Eq[T comparable](col string, v T) sq.Sqlizer {
	var zero T
	if v == zero {
		return Identity()
	}
	return sq.Eq{col: v}
}

// In matches `col IN (vs...)`, identity for an empty list.
func In[T any](col string, vs []T) sq.Sqlizer {
	if len(vs) == 0 {
		return Identity()
	}
	return sq.Eq{col: vs}
}

// ID matches `col = id` for an id given as a raw query parameter.
func ID(col, raw string) sq.Sqlizer {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity()
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return None()
	}
	return sq.Eq{col: id}
}

// Text matches `col = v` exactly (case-sensitive).
func Text(col, v string) sq.Sqlizer {
	return Eq(col, strings.TrimSpace(v))
}

// Contains is the case-insensitive substring match on col.
func Contains(col, s string) sq.Sqlizer {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identity()
	}
	return sq.ILike{col: "%" + likeEscaper.Replace(s) + "%"}
}

// IExact is the case-insensitive equality on col.
func IExact(col, s string) sq.Sqlizer {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identity()
	}
	return sq.Expr(fmt.Sprintf("LOWER(%s) = LOWER(?)", col), s)
}

// NameSearch matches rows whose first OR last name contains s.
func NameSearch(firstCol, lastCol, s string) sq.Sqlizer {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identity()
	}
	return sq.Or{Contains(firstCol, s), Contains(lastCol, s)}
}

// AnyContains matches rows where any of cols contains s.
func AnyContains(s string, cols ...string) sq.Sqlizer {
	s = strings.TrimSpace(s)
	if s == "" || len(cols) == 0 {
		return Identity()
	}
	or := make(sq.Or, 0, len(cols))
	for _, col := range cols {
		or = append(or, Contains(col, s))
	}
	return or
}

// JSONContains matches rows whose JSONB col contains doc (`col @> doc`).
func JSONContains(col string, doc interface{}) sq.Sqlizer {
	b, err := json.Marshal(doc)
	if err != nil {
		return None()
	}
	return sq.Expr(col+" @> ?::jsonb", string(b))
}

// Bool matches `col = true|false` for a raw "true"/"false" parameter; anything else is identity.
func Bool(col, raw string) sq.Sqlizer {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return sq.Eq{col: true}
	case "false":
		return sq.Eq{col: false}
	}
	return Identity()
}

// Sub traverses a relation: `col IN (SELECT id FROM table WHERE pred)`.
// Identity predicates are kept as identity so that absent filters do not add subqueries.
func Sub(col, table string, pred sq.Sqlizer) sq.Sqlizer {
	return SubSelect(col, table, "id", pred)
}

// SubSelect is Sub through a column other than the primary key of table:
// `col IN (SELECT selectCol FROM table WHERE pred)`.
func SubSelect(col, table, selectCol string, pred sq.Sqlizer) sq.Sqlizer {
	if IsIdentity(pred) {
		return Identity()
	}
	return sq.Expr(fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE ?)", col, selectCol, table), pred)
}

// IsIdentity reports whether p is (a conjunction of) identity predicates only.
func IsIdentity(p sq.Sqlizer) bool {
	and, ok := p.(sq.And)
	if !ok {
		return p == nil
	}
	for _, part := range and {
		if !IsIdentity(part) {
			return false
		}
	}
	return true
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a "2006-01-02" parameter.
func ParseDay(raw string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

// DateRange filters col on the calendar range [start, end]:
//   - start == end: the single calendar day, `col >= day AND col < day+1`;
//   - otherwise: `col >= start 00:00:00 AND col <= end 23:59:59.999999`.
//
// Both bounds are required; when either is absent the range is identity.
func DateRange(col, start, end string) sq.Sqlizer {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		return Identity()
	}
	from, err := ParseDay(start)
	if err != nil {
		return None()
	}
	to, err := ParseDay(end)
	if err != nil {
		return None()
	}
	return DayRange(col, from, to)
}

// DayRange is DateRange on parsed days.
func DayRange(col string, from, to time.Time) sq.Sqlizer {
	from, to = Day(from), Day(to)
	if from.Equal(to) {
		return OnDay(col, from)
	}
	return sq.And{
		sq.GtOrEq{col: from},
		sq.LtOrEq{col: to.Add(24*time.Hour - time.Microsecond)},
	}
}

// OnDay matches the single calendar day of t.
func OnDay(col string, t time.Time) sq.Sqlizer {
	day := Day(t)
	return sq.And{
		sq.GtOrEq{col: day},
		sq.Lt{col: day.AddDate(0, 0, 1)},
	}
}

// InMonth matches the calendar month of the given year.
func InMonth(col string, year int, month time.Month) sq.Sqlizer {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return sq.And{
		sq.GtOrEq{col: first},
		sq.Lt{col: first.AddDate(0, 1, 0)},
	}
}

// InYear matches the calendar year.
func InYear(col string, year int) sq.Sqlizer {
	first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return sq.And{
		sq.GtOrEq{col: first},
		sq.Lt{col: first.AddDate(1, 0, 0)},
	}
}
