package core

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/askante/core/query"
)

type (
	// PrepareFunc runs before a row is written: it stamps scope-owned columns
	// and applies domain checks. existing is nil on create.
	// exec is the write transaction when the CRUD has a DB, nil otherwise.
	PrepareFunc[T any] func(ctx context.Context, scope query.Scope, v *T, existing *T, exec DBExecutor) error

	// SavedFunc runs after a row was written, in the same transaction as Prepare; v holds the stored row
	// and existing is nil on create.
	SavedFunc[T any] func(ctx context.Context, scope query.Scope, v *T, existing *T, exec DBExecutor) error

	// ExpandFunc builds the read projections of loaded rows.
	ExpandFunc[T, R any] func(ctx context.Context, items []T) ([]R, error)

	// CRUD is the scoped create/read/update/delete service of one entity.
	CRUD[T, R any] struct {
		Entity  string
		Store   Store[T]
		Reader  Store[T] // optional; when set, reads go through it (e.g. wider public visibility)
		Prepare PrepareFunc[T]
		Saved   SavedFunc[T]
		Expand  ExpandFunc[T, R]

		// DB, when set, makes Prepare, the write and Saved share one transaction.
		DB DB
	}

	// Page is one page of a listing.
	Page[R any] struct {
		Count   int
		Results []R
	}
)

// NewCRUD returns the CRUD service of an entity whose read projection is the row itself.
func NewCRUD[T any](entity string, store Store[T]) *CRUD[T, T] {
	return &CRUD[T, T]{
		Entity: entity,
		Store:  store,
		Expand: func(_ context.Context, items []T) ([]T, error) { return items, nil },
	}
}

func (svc *CRUD[T, R]) reader() Store[T] {
	if svc.Reader != nil {
		return svc.Reader
	}
	return svc.Store
}

func (svc *CRUD[T, R]) expandOne(ctx context.Context, v T) (R, error) {
	items, err := svc.Expand(ctx, []T{v})
	if err != nil || len(items) == 0 {
		var zero R
		return zero, errors.Wrapf(err, "expanding %s", svc.Entity)
	}
	return items[0], nil
}

func (svc *CRUD[T, R]) List(ctx context.Context, scope query.Scope, params ListParams) (Page[R], error) {
	rows, count, err := svc.reader().List(ctx, scope, params)
	if err != nil {
		return Page[R]{}, errors.Wrapf(err, "listing %s", svc.Entity)
	}
	results, err := svc.Expand(ctx, rows)
	if err != nil {
		return Page[R]{}, errors.Wrapf(err, "expanding %s", svc.Entity)
	}
	if results == nil {
		results = []R{}
	}
	return Page[R]{Count: count, Results: results}, nil
}

// Load returns the scoped row itself, without read projection.
func (svc *CRUD[T, R]) Load(ctx context.Context, scope query.Scope, id int) (T, error) {
	v, err := svc.reader().Get(ctx, scope, id)
	if err != nil {
		return v, svc.notFound(err)
	}
	return v, nil
}

func (svc *CRUD[T, R]) Get(ctx context.Context, scope query.Scope, id int) (R, error) {
	v, err := svc.Load(ctx, scope, id)
	if err != nil {
		var zero R
		return zero, err
	}
	return svc.expandOne(ctx, v)
}

func (svc *CRUD[T, R]) Create(ctx context.Context, scope query.Scope, v T) (R, error) {
	if err := svc.write(ctx, scope, &v, nil); err != nil {
		var zero R
		return zero, err
	}
	return svc.expandOne(ctx, v)
}

// Update writes v over the existing row. The caller loaded existing through Load
// and bound the patch over a copy of it.
func (svc *CRUD[T, R]) Update(ctx context.Context, scope query.Scope, v T, existing T) (R, error) {
	if err := svc.write(ctx, scope, &v, &existing); err != nil {
		var zero R
		return zero, err
	}
	return svc.expandOne(ctx, v)
}

func (svc *CRUD[T, R]) write(ctx context.Context, scope query.Scope, v *T, existing *T) error {
	run := func(tx DBExecutor) error {
		if svc.Prepare != nil {
			if err := svc.Prepare(ctx, scope, v, existing, tx); err != nil {
				return err
			}
		}
		var err error
		if existing == nil {
			err = svc.Store.Create(ctx, scope, v, tx)
		} else {
			err = svc.Store.Update(ctx, scope, v, tx)
		}
		if err != nil {
			return svc.notFound(err)
		}
		if svc.Saved != nil {
			return svc.Saved(ctx, scope, v, existing, tx)
		}
		return nil
	}
	if svc.DB == nil {
		return run(nil)
	}
	return WithTx(ctx, svc.DB, run)
}

func (svc *CRUD[T, R]) Delete(ctx context.Context, scope query.Scope, id int) error {
	if err := svc.Store.Delete(ctx, scope, id); err != nil {
		return svc.notFound(err)
	}
	return nil
}

// notFound names the entity on a bare not-found error coming out of the store.
func (svc *CRUD[T, R]) notFound(err error) error {
	if nf, ok := errors.Cause(err).(*NotFoundError); ok && nf.Entity == "" {
		return NewNotFoundError(svc.Entity)
	}
	return err
}

// StampOrganization sets an organization-owned row's tenant from the scope.
// Superusers keep the organization given in the payload, which must be set.
func StampOrganization(scope query.Scope, orgID *int) error {
	if scope.Superuser {
		if *orgID <= 0 {
			return NewFieldError("organization", "this field is required")
		}
		return nil
	}
	if scope.OrganizationID <= 0 {
		return ErrForbidden
	}
	*orgID = scope.OrganizationID
	return nil
}
