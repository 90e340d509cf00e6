package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/askante/core/library"
	"github.com/trezcool/askante/core/user"
)

type libraryApi struct {
	svc *library.Service
}

func registerLibraryAPI(_, authed *echo.Group, deps ServerDeps) {
	h := libraryApi{svc: deps.Library}
	librarian := mw(specialRoleMiddleware(user.SpecialRoleLibrarian))

	newCRUDAPI[library.Book, library.BookRead, library.BookFilter](h.svc.Books, deps.Validate).
		register(authed, "/library/books", nil, librarian)
	newCRUDAPI[library.Copy, library.CopyRead, library.CopyFilter](h.svc.Copies, deps.Validate).
		register(authed, "/library/copies", librarian, librarian)
	authed.GET("/library/student/lending", h.studentLending, roleMiddleware(user.RoleStudent))

	authed.GET("/librarian/reports", h.report, librarian...)
	authed.GET("/librarian/daily-reports", h.dailyReports, librarian...)
}

func (h *libraryApi) studentLending(ctx echo.Context) error {
	rows, err := h.svc.StudentLending(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *libraryApi) report(ctx echo.Context) error {
	rep, err := h.svc.Report(ctx.Request().Context(), contextScope(ctx))
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rep)
}

func (h *libraryApi) dailyReports(ctx echo.Context) error {
	rows, err := h.svc.DailyReports(ctx.Request().Context(), contextScope(ctx))
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}
