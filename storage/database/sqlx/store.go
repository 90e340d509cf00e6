package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
)

var (
	psql   = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	mapper = reflectx.NewMapperFunc("db", strings.ToLower)

	uniqueViolation pq.ErrorCode = "23505"

	// columns every table carries, always orderable
	modelColumns = []string{"id", "created_at", "updated_at"}
)

type (
	// Meta describes a table as seen from the rows that reference it.
	Meta struct {
		Entity string
		Table  string
		Scope  query.ScopeFunc
	}

	// Ref is a foreign key column whose target must be visible to the writer.
	Ref struct {
		Column string
		To     Meta
	}

	// Table describes how one entity is stored.
	Table[T any] struct {
		Meta
		Columns  []string // writable columns
		Ordering []core.DBOrdering
		Refs     []Ref
	}

	store[T any] struct {
		db core.DB
		t  Table[T]
	}
)

var _ core.Store[struct{}] = (*store[struct{}])(nil) // interface compliance check

func NewStore[T any](db core.DB, t Table[T]) core.Store[T] {
	if len(t.Ordering) == 0 {
		t.Ordering = []core.DBOrdering{{Field: "id", Ascending: false}}
	}
	return &store[T]{db: db, t: t}
}

func (s *store[T]) getExec(exec []core.DBExecutor) core.DBExecutor {
	return core.Exec(s.db, exec)
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// trapNoRowsErr maps psql "no rows" err to a core.NotFoundError
func (s *store[T]) trapNoRowsErr(err error, msg string) error {
	if isNoRows(err) {
		return core.NewNotFoundError(s.t.Entity)
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a unique constraint violation to a validation error.
func trapUniqueErr(err error, entity, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return core.NewValidationError(errors.Errorf("%s already exists", entity))
	}
	return errors.Wrap(err, msg)
}

func (s *store[T]) orderBy(ordering []core.DBOrdering) []string {
	allowed := make(map[string]bool, len(s.t.Columns)+len(modelColumns))
	for _, col := range append(modelColumns, s.t.Columns...) {
		allowed[col] = true
	}
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		for _, ord := range s.t.Ordering {
			clauses = append(clauses, ord.String())
		}
	}
	return append(clauses, "id DESC") // stable pages
}

func (s *store[T]) selectScoped(scope query.Scope, where sq.Sqlizer) sq.SelectBuilder {
	q := psql.Select(s.t.Table + ".*").From(s.t.Table).Where(s.t.Scope(scope))
	if where != nil {
		q = q.Where(where)
	}
	return q
}

func (s *store[T]) Get(ctx context.Context, scope query.Scope, id int, exec ...core.DBExecutor) (T, error) {
	return s.First(ctx, scope, sq.Eq{s.t.Table + ".id": id}, exec...)
}

func (s *store[T]) First(ctx context.Context, scope query.Scope, where sq.Sqlizer, exec ...core.DBExecutor) (T, error) {
	var v T
	q, args, err := s.selectScoped(scope, where).OrderBy(s.orderBy(nil)...).Limit(1).ToSql()
	if err != nil {
		return v, errors.Wrapf(err, "building %s query", s.t.Entity)
	}
	if err = sqlx.GetContext(ctx, s.getExec(exec), &v, q, args...); err != nil {
		return v, s.trapNoRowsErr(err, "getting "+s.t.Entity)
	}
	return v, nil
}

func (s *store[T]) Count(ctx context.Context, scope query.Scope, where sq.Sqlizer, exec ...core.DBExecutor) (int, error) {
	var count int
	q, args, err := psql.Select("COUNT(*)").From(s.t.Table).Where(s.t.Scope(scope)).Where(where).ToSql()
	if err != nil {
		return 0, errors.Wrapf(err, "building %s count", s.t.Entity)
	}
	if err = sqlx.GetContext(ctx, s.getExec(exec), &count, q, args...); err != nil {
		return 0, errors.Wrapf(err, "counting %s", s.t.Entity)
	}
	return count, nil
}

func (s *store[T]) Sum(ctx context.Context, scope query.Scope, column string, where sq.Sqlizer, exec ...core.DBExecutor) (float64, error) {
	if !s.isColumn(column) {
		return 0, errors.Errorf("%s has no column %q", s.t.Table, column)
	}
	var sum float64
	q, args, err := psql.Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", column)).
		From(s.t.Table).Where(s.t.Scope(scope)).Where(where).ToSql()
	if err != nil {
		return 0, errors.Wrapf(err, "building %s sum", s.t.Entity)
	}
	if err = sqlx.GetContext(ctx, s.getExec(exec), &sum, q, args...); err != nil {
		return 0, errors.Wrapf(err, "summing %s", s.t.Entity)
	}
	return sum, nil
}

func (s *store[T]) isColumn(col string) bool {
	for _, c := range s.t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func (s *store[T]) List(ctx context.Context, scope query.Scope, params core.ListParams, exec ...core.DBExecutor) ([]T, int, error) {
	where := params.Where
	if where == nil {
		where = query.Identity()
	}
	count, err := s.Count(ctx, scope, where, exec...)
	if err != nil {
		return nil, 0, err
	}

	sel := s.selectScoped(scope, where).OrderBy(s.orderBy(params.Ordering)...)
	if !params.All {
		page := params.Page.Normalize()
		sel = sel.Limit(uint64(page.Limit)).Offset(uint64(page.Offset()))
	}
	q, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, errors.Wrapf(err, "building %s query", s.t.Entity)
	}

	rows := make([]T, 0)
	if err = sqlx.SelectContext(ctx, s.getExec(exec), &rows, q, args...); err != nil {
		return nil, 0, errors.Wrapf(err, "listing %s", s.t.Entity)
	}
	return rows, count, nil
}

func (s *store[T]) GetMany(ctx context.Context, ids []int, exec ...core.DBExecutor) (map[int]T, error) {
	res := make(map[int]T, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	q, args, err := psql.Select("*").From(s.t.Table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "building %s query", s.t.Entity)
	}
	rows := make([]T, 0, len(ids))
	if err = sqlx.SelectContext(ctx, s.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "loading %s", s.t.Entity)
	}
	for _, row := range rows {
		res[pk(&row)] = row
	}
	return res, nil
}

func (s *store[T]) Create(ctx context.Context, scope query.Scope, v *T, exec ...core.DBExecutor) error {
	return s.inTx(ctx, exec, func(tx core.DBExecutor) error {
		if err := verifyRefs(ctx, tx, scope, v, s.t.Refs); err != nil {
			return err
		}
		placeholders := make([]string, len(s.t.Columns))
		for i, col := range s.t.Columns {
			placeholders[i] = ":" + col
		}
		named := fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			s.t.Table, strings.Join(s.t.Columns, ", "), strings.Join(placeholders, ", "),
		)
		q, args, err := sqlx.Named(named, v)
		if err != nil {
			return errors.Wrapf(err, "binding %s", s.t.Entity)
		}
		if err = sqlx.GetContext(ctx, tx, v, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
			return trapUniqueErr(err, s.t.Entity, "inserting "+s.t.Entity)
		}
		return nil
	})
}

func (s *store[T]) Update(ctx context.Context, scope query.Scope, v *T, exec ...core.DBExecutor) error {
	return s.inTx(ctx, exec, func(tx core.DBExecutor) error {
		id := pk(v)
		if _, err := s.Get(ctx, scope, id, tx); err != nil {
			return err
		}
		if err := verifyRefs(ctx, tx, scope, v, s.t.Refs); err != nil {
			return err
		}

		sets := make([]string, 0, len(s.t.Columns)+1)
		for _, col := range s.t.Columns {
			sets = append(sets, col+" = :"+col)
		}
		sets = append(sets, "updated_at = now()")
		named := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", s.t.Table, strings.Join(sets, ", "))
		q, args, err := sqlx.Named(named, v)
		if err != nil {
			return errors.Wrapf(err, "binding %s", s.t.Entity)
		}
		scopeSql, scopeArgs, err := s.t.Scope(scope).ToSql()
		if err != nil {
			return errors.Wrapf(err, "building %s scope", s.t.Entity)
		}
		q = q + " AND " + scopeSql + " RETURNING *"
		args = append(args, scopeArgs...)

		if err = sqlx.GetContext(ctx, tx, v, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
			if isNoRows(err) {
				return core.NewNotFoundError(s.t.Entity)
			}
			return trapUniqueErr(err, s.t.Entity, "updating "+s.t.Entity)
		}
		return nil
	})
}

func (s *store[T]) Delete(ctx context.Context, scope query.Scope, id int, exec ...core.DBExecutor) error {
	q, args, err := psql.Delete(s.t.Table).Where(sq.Eq{"id": id}).Where(s.t.Scope(scope)).ToSql()
	if err != nil {
		return errors.Wrapf(err, "building %s delete", s.t.Entity)
	}
	res, err := s.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", s.t.Entity)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError(s.t.Entity)
	}
	return nil
}

// inTx runs fn in the caller's executor when one was passed down, in a new transaction otherwise.
func (s *store[T]) inTx(ctx context.Context, exec []core.DBExecutor, fn func(tx core.DBExecutor) error) error {
	if len(exec) > 0 && exec[0] != nil {
		return fn(exec[0])
	}
	return core.WithTx(ctx, s.db, fn)
}

func pk(v interface{}) int {
	if m, ok := v.(interface{ PK() int }); ok {
		return m.PK()
	}
	return 0
}

// verifyRefs checks that every referenced row of v exists within the writer's scope.
func verifyRefs(ctx context.Context, exec core.DBExecutor, scope query.Scope, v interface{}, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	for _, ref := range refs {
		fi, ok := mapper.TypeMap(rv.Type()).Names[ref.Column]
		if !ok {
			return errors.Errorf("no field for column %q", ref.Column)
		}
		fv := reflectx.FieldByIndexesReadOnly(rv, fi.Index)
		id, ok := refID(fv.Interface())
		if !ok {
			continue
		}
		visible, err := Exists(ctx, exec, ref.To, scope, sq.Eq{"id": id})
		if err != nil {
			return errors.Wrapf(err, "verifying %s", ref.Column)
		}
		if !visible {
			return core.NewNotFoundError(ref.To.Entity)
		}
	}
	return nil
}

func refID(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil || dv == nil {
			return 0, false
		}
		id, ok := dv.(int64)
		return id, ok && id > 0
	}
	return 0, false
}

// Exists reports whether a row matching where is visible in scope.
func Exists(ctx context.Context, exec core.DBExecutor, m Meta, scope query.Scope, where sq.Sqlizer) (bool, error) {
	sub, args, err := psql.Select("1").From(m.Table).Where(m.Scope(scope)).Where(where).ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err = sqlx.GetContext(ctx, exec, &exists, "SELECT EXISTS ("+sub+")", args...); err != nil {
		return false, err
	}
	return exists, nil
}
