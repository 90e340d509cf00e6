package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/askante/core/finance"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/user"
)

type financeApi struct {
	svc *finance.Service
	now func() time.Time
}

func registerFinanceAPI(_, authed *echo.Group, deps ServerDeps) {
	h := financeApi{svc: deps.Finance, now: time.Now}
	bursar := mw(specialRoleMiddleware(user.SpecialRoleBursar))
	superuser := mw(superuserMiddleware())

	newCRUDAPI[finance.PaymentType, finance.PaymentType, school.NameFilter](h.svc.PaymentTypes, deps.Validate).
		register(authed, "/payment-types", nil, superuser)
	newCRUDAPI[finance.ChargeType, finance.ChargeType, school.NameFilter](h.svc.ChargeTypes, deps.Validate).
		register(authed, "/charge-types", nil, superuser)
	newCRUDAPI[finance.Charge, finance.ChargeRead, finance.ChargeFilter](h.svc.Charges, deps.Validate).
		register(authed, "/charge", bursar, bursar)
	newCRUDAPI[finance.Payment, finance.PaymentRead, finance.PaymentFilter](h.svc.Payments, deps.Validate).
		register(authed, "/payments", bursar, bursar)

	bg := authed.Group("/bursar")
	bg.GET("/get-monthly-revenue", h.monthlyRevenue, bursar...)
	bg.GET("/get-termly-revenue", h.termlyRevenue, bursar...)
	bg.GET("/get-payments-list", h.paymentsList, bursar...)
}

func (h *financeApi) monthlyRevenue(ctx echo.Context) error {
	year, err := intParam(ctx, "year", h.now().Year())
	if err != nil {
		return err
	}
	rows, err := h.svc.MonthlyRevenue(ctx.Request().Context(), contextScope(ctx), year)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *financeApi) termlyRevenue(ctx echo.Context) error {
	year, err := intParam(ctx, "year", h.now().Year())
	if err != nil {
		return err
	}
	rows, err := h.svc.TermlyRevenue(ctx.Request().Context(), contextScope(ctx), year)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *financeApi) paymentsList(ctx echo.Context) error {
	var f finance.PaymentsListFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.PaymentsList(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}
