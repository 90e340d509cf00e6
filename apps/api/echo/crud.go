package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
)

const deletedMsg = "Deleted successfully"

var errPKChanged = core.NewFieldError("id", "this field cannot be changed")

// entity is a stored row addressed by its primary key.
type entity interface {
	PK() int
}

// crudAPI serves the list, create, retrieve, update and delete endpoints of one entity.
// F is the filter bound from the query parameters of the listing.
type crudAPI[T entity, R any, F filter] struct {
	svc      *core.CRUD[T, R]
	validate *validator.Validate

	// narrow adjusts the bound filter to the caller before listing.
	narrow func(ctx echo.Context, f *F)
}

func newCRUDAPI[T entity, R any, F filter](svc *core.CRUD[T, R], validate *validator.Validate) *crudAPI[T, R, F] {
	return &crudAPI[T, R, F]{svc: svc, validate: validate}
}

// register mounts the endpoints under path: reads go through read, writes through write.
func (api *crudAPI[T, R, F]) register(g *echo.Group, path string, read, write []echo.MiddlewareFunc) {
	g.GET(path, api.list, read...)
	g.POST(path, api.create, write...)
	g.GET(path+"/:id", api.retrieve, read...)
	g.PATCH(path+"/:id", api.update, write...)
	g.DELETE(path+"/:id", api.destroy, write...)
}

func (api *crudAPI[T, R, F]) list(ctx echo.Context) error {
	var f F
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	if api.narrow != nil {
		api.narrow(ctx, &f)
	}
	params := listParams(ctx, f.Where())
	page, err := api.svc.List(ctx.Request().Context(), contextScope(ctx), params)
	if err != nil {
		return err
	}
	return paginated(ctx, params.Page, page)
}

func (api *crudAPI[T, R, F]) create(ctx echo.Context) error {
	var v T
	if err := bindBody(ctx, &v); err != nil {
		return err
	}
	if err := api.validate.Struct(&v); err != nil {
		return err
	}
	res, err := api.svc.Create(ctx.Request().Context(), contextScope(ctx), v)
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.svc.Entity)
	}
	return success(ctx, http.StatusCreated, res)
}

func (api *crudAPI[T, R, F]) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Get(ctx.Request().Context(), contextScope(ctx), id)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, res)
}

// update applies a partial JSON body over the stored row.
func (api *crudAPI[T, R, F]) update(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	rctx, scope := ctx.Request().Context(), contextScope(ctx)
	existing, err := api.svc.Load(rctx, scope, id)
	if err != nil {
		return err
	}

	v := existing
	if err = bindBody(ctx, &v); err != nil {
		return err
	}
	if v.PK() != existing.PK() {
		return errPKChanged
	}
	if err = api.validate.Struct(&v); err != nil {
		return err
	}
	res, err := api.svc.Update(rctx, scope, v, existing)
	if err != nil {
		return errors.Wrapf(err, "updating %s", api.svc.Entity)
	}
	return success(ctx, http.StatusOK, res)
}

func (api *crudAPI[T, R, F]) destroy(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), contextScope(ctx), id); err != nil {
		return err
	}
	return message(ctx, http.StatusOK, deletedMsg)
}

// mw is shorthand for a middleware list.
func mw(m ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return m
}
