package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
)

// OrganizationResponse is a new organization with its first administrator.
type OrganizationResponse struct {
	Organization tenant.Organization `json:"organization"`
	Admin        user.User           `json:"admin"`
}

type tenantApi struct {
	svc      *tenant.Service
	validate *validator.Validate
	now      func() time.Time
}

func registerTenantAPI(_, authed *echo.Group, deps ServerDeps) {
	h := tenantApi{svc: deps.Tenants, validate: deps.Validate, now: time.Now}
	superuser, admin := superuserMiddleware(), adminMiddleware()

	orgs := newCRUDAPI[tenant.Organization, tenant.Organization, tenant.OrganizationFilter](h.svc.Organizations, h.validate)
	authed.GET("/organizations", orgs.list, superuser)
	authed.POST("/organizations/create", h.createOrganization, superuser)
	authed.POST("/organizations/admin", h.createAdmin, admin)
	authed.GET("/organizations/:id", orgs.retrieve, admin)
	authed.PATCH("/organizations/update/:id", orgs.update, superuser)

	institutions := newCRUDAPI[tenant.Institution, tenant.InstitutionRead, tenant.InstitutionFilter](h.svc.Institutions, h.validate)
	authed.GET("/institutions", institutions.list)
	authed.POST("/institutions/create", institutions.create, admin)
	authed.GET("/institutions/:id", institutions.retrieve)
	authed.PATCH("/institutions/edit/:id", institutions.update, admin)
	authed.DELETE("/institutions/:id", institutions.destroy, superuser)

	invoices := newCRUDAPI[tenant.Invoice, tenant.InvoiceRead, tenant.InvoiceFilter](h.svc.Invoices, h.validate)
	authed.GET("/invoices", invoices.list, admin)
	authed.GET("/invoices/all", invoices.list, superuser)
	authed.GET("/invoices/organization", h.unpaidInvoice, admin)
	authed.POST("/invoices/pay", h.payInvoice, admin)
}

func (h *tenantApi) createOrganization(ctx echo.Context) error {
	data := tenant.NewOrganization{Organization: tenant.NewOrganizationDefaults()}
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}
	org, admin, err := h.svc.CreateOrganization(ctx.Request().Context(), data, h.now())
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return success(ctx, http.StatusCreated, OrganizationResponse{Organization: org, Admin: admin})
}

func (h *tenantApi) createAdmin(ctx echo.Context) error {
	var data tenant.NewAdmin
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}
	usr, err := h.svc.CreateAdmin(ctx.Request().Context(), contextScope(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating organization admin")
	}
	return success(ctx, http.StatusCreated, usr)
}

// unpaidInvoice returns the oldest unpaid invoice of the caller's organization, null when all are paid.
func (h *tenantApi) unpaidInvoice(ctx echo.Context) error {
	inv, err := h.svc.UnpaidInvoice(ctx.Request().Context(), contextScope(ctx).OrganizationID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, inv)
}

func (h *tenantApi) payInvoice(ctx echo.Context) error {
	var data tenant.PayInvoice
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	inv, err := h.svc.PayInvoice(ctx.Request().Context(), contextScope(ctx), data)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, inv)
}
