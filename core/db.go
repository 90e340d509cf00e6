package core

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core/query"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// WithTx runs fn inside a transaction, committing on success and rolling back on error or panic.
func WithTx(ctx context.Context, db DB, fn func(tx DBExecutor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Exec returns the optional executor a caller passed down, or the fallback.
func Exec(fallback DBExecutor, exec []DBExecutor) DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return fallback
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Model holds the columns every table carries.
type Model struct {
	ID        int       `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (m Model) PK() int { return m.ID }

// ListParams describes one page of a scoped, filtered listing.
type ListParams struct {
	Where    sq.Sqlizer
	Ordering []DBOrdering
	Page     query.Page
	All      bool // ignore Page
}

type (
	// Loader batch-loads rows by primary key. Used to inline related rows in read projections;
	// the ids always come from rows that were already loaded through a scoped query.
	Loader[T any] interface {
		GetMany(ctx context.Context, ids []int, exec ...DBExecutor) (map[int]T, error)
	}

	// Store is the tenant-scoped persistence of one entity.
	// Every method takes the caller's query.Scope: rows outside of it are never read or written.
	Store[T any] interface {
		Loader[T]

		Create(ctx context.Context, scope query.Scope, v *T, exec ...DBExecutor) error
		Get(ctx context.Context, scope query.Scope, id int, exec ...DBExecutor) (T, error)
		First(ctx context.Context, scope query.Scope, where sq.Sqlizer, exec ...DBExecutor) (T, error)
		List(ctx context.Context, scope query.Scope, params ListParams, exec ...DBExecutor) ([]T, int, error)
		Update(ctx context.Context, scope query.Scope, v *T, exec ...DBExecutor) error
		Delete(ctx context.Context, scope query.Scope, id int, exec ...DBExecutor) error
		Count(ctx context.Context, scope query.Scope, where sq.Sqlizer, exec ...DBExecutor) (int, error)
		// Sum adds up a numeric column over the matching rows, 0 when none match.
		Sum(ctx context.Context, scope query.Scope, column string, where sq.Sqlizer, exec ...DBExecutor) (float64, error)
	}

	// Membership is a many-to-many link between two scoped entities (class students, age group students).
	// Both ends must be visible in the caller's scope.
	Membership interface {
		// Add links the members to the owner, skipping existing links. Returns the number of new links.
		Add(ctx context.Context, scope query.Scope, ownerID int, memberIDs []int, exec ...DBExecutor) (int, error)
		Remove(ctx context.Context, scope query.Scope, ownerID, memberID int, exec ...DBExecutor) error
	}
)
