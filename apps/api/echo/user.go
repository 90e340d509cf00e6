package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/bookshop"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
)

const (
	loginMsg         = "Login successful"
	passwordResetMsg = "If the username is associated with an active account, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."
	passwordChangedMsg = "Password reset successfully"
)

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		User        user.User `json:"user"`
		AccessToken string    `json:"access_token"`
	}

	// SessionResponse is the authenticated user with the unpaid invoice of their organization, if any.
	SessionResponse struct {
		User          user.User       `json:"user"`
		UnpaidInvoice *tenant.Invoice `json:"unpaid_invoice"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

type userApi struct {
	svc        user.Service
	tenants    *tenant.Service
	publishers *bookshop.Service
	validate   *validator.Validate
	conf       *core.Config
}

func registerUserAPI(api, authed *echo.Group, deps ServerDeps) {
	h := userApi{
		svc:        deps.Users,
		tenants:    deps.Tenants,
		publishers: deps.Bookshop,
		validate:   deps.Validate,
		conf:       deps.Conf,
	}

	// un-authed endpoints
	ug := api.Group("/users")
	ug.POST("/login", h.login)
	ug.POST("/register", h.register)
	ug.POST("/forgot-password", h.forgotPassword)
	ug.POST("/reset-password", h.resetPassword)

	// authed endpoints
	authed.GET("/users/authenticate", h.authenticate)
	authed.GET("/admin/users", h.query, superuserMiddleware())
	authed.POST("/admin/users", h.create, superuserMiddleware())
	authed.PATCH("/admin/users/:id", h.toggleActive, superuserMiddleware())
}

// Handlers

func (h *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}

	usr, err := h.svc.Login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr, h.conf.Server.JWTExpirationDelta), h.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, response{
		Msg:     loginMsg,
		Results: LoginResponse{User: usr, AccessToken: token},
	})
}

// authenticate refreshes the session of the token's user after checking that their publisher or
// organization is still active.
func (h *userApi) authenticate(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr := contextUser(ctx)

	if usr.IsPublisher() {
		if _, err := h.publishers.PublisherStatus(rctx, usr.PublisherID.Int); err != nil {
			return err
		}
	}
	if !usr.IsSuperuser && usr.HasRole(user.RoleStudent, user.RoleEmployee, user.RoleTeacher) {
		if _, err := h.tenants.OrganizationStatus(rctx, usr.OrganizationID.Int); err != nil {
			return err
		}
	}

	if err := h.svc.TouchSession(rctx, usr); err != nil {
		return errors.Wrap(err, "touching session")
	}
	inv, err := h.tenants.UnpaidInvoice(rctx, usr.OrganizationID.Int)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, SessionResponse{User: usr, UnpaidInvoice: inv})
}

func (h *userApi) register(ctx echo.Context) error {
	var data user.Registration
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}
	usr, err := h.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return success(ctx, http.StatusCreated, usr)
}

func (h *userApi) forgotPassword(ctx echo.Context) error {
	var data user.ForgotPassword
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}
	if err := h.svc.RequestPasswordReset(ctx.Request().Context(), data.Username); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return message(ctx, http.StatusOK, passwordResetMsg)
}

func (h *userApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return err
	}
	return message(ctx, http.StatusOK, passwordChangedMsg)
}

func (h *userApi) query(ctx echo.Context) error {
	var f user.QueryFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	params := listParams(ctx, f.Where())
	page, err := h.svc.List(ctx.Request().Context(), contextScope(ctx), params)
	if err != nil {
		return err
	}
	return paginated(ctx, params.Page, page)
}

func (h *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}
	usr, err := h.svc.Create(ctx.Request().Context(), contextScope(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return success(ctx, http.StatusCreated, usr)
}

func (h *userApi) toggleActive(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	usr, err := h.svc.ToggleActive(ctx.Request().Context(), contextScope(ctx), id)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, usr)
}
