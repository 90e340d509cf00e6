package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core/bookshop"
	"github.com/trezcool/askante/core/user"
)

type bookshopApi struct {
	svc      *bookshop.Service
	validate *validator.Validate
}

// Publishers manage their users and books; students browse the catalogue and buy.
func registerBookshopAPI(_, authed *echo.Group, deps ServerDeps) {
	h := bookshopApi{svc: deps.Bookshop, validate: deps.Validate}
	superuser := mw(superuserMiddleware())
	publisher := mw(roleMiddleware(user.RolePublisher))
	student := mw(roleMiddleware(user.RoleStudent))

	publisherUsers := newCRUDAPI[bookshop.PublisherUser, bookshop.PublisherUserRead, bookshop.PublisherUserFilter](
		h.svc.PublisherUsers, h.validate,
	)
	authed.GET("/publishers/users", publisherUsers.list, publisher...)
	authed.POST("/publishers/users", publisherUsers.create, publisher...)
	newCRUDAPI[bookshop.Publisher, bookshop.Publisher, bookshop.PublisherFilter](h.svc.Publishers, h.validate).
		register(authed, "/publishers", superuser, superuser)

	authed.GET("/books/filter", h.catalogue)
	authed.POST("/books/purchase", h.purchase, student...)
	authed.GET("/books/purchased", h.studentPurchases, student...)
	authed.GET("/books/stats", h.stats, publisher...)
	purchases := newCRUDAPI[bookshop.BookPurchase, bookshop.BookPurchaseRead, bookshop.PurchaseFilter](h.svc.Purchases, h.validate)
	authed.GET("/books/admin/purchased", purchases.list, publisher...)
	newCRUDAPI[bookshop.Book, bookshop.BookRead, bookshop.BookFilter](h.svc.Books, h.validate).
		register(authed, "/books", publisher, publisher)

	authed.GET("/reports/publishers-last-10-days-sales", h.dailySales, publisher...)
}

// catalogue lists the books every user may browse, without their download links.
func (h *bookshopApi) catalogue(ctx echo.Context) error {
	var f bookshop.BookFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	params := listParams(ctx, f.Where())
	page, err := h.svc.Catalogue(ctx.Request().Context(), contextScope(ctx), params)
	if err != nil {
		return err
	}
	return paginated(ctx, params.Page, page)
}

func (h *bookshopApi) purchase(ctx echo.Context) error {
	var data bookshop.Purchase
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	p, err := h.svc.Purchase(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "purchasing book")
	}
	return success(ctx, http.StatusCreated, p)
}

func (h *bookshopApi) studentPurchases(ctx echo.Context) error {
	var f bookshop.PurchaseFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.StudentPurchases(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *bookshopApi) stats(ctx echo.Context) error {
	var f bookshop.PurchaseFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	st, err := h.svc.Stats(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, st)
}

func (h *bookshopApi) dailySales(ctx echo.Context) error {
	rows, err := h.svc.DailySales(ctx.Request().Context(), contextScope(ctx))
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}
