package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
	metricsvc "github.com/trezcool/askante/services/metrics"
)

const (
	contextScopeKey   = "scope"
	organizationParam = "organization"
)

// scopeMiddleware derives the query scope of the authenticated user.
// An `organization` query parameter narrows it; it never widens it.
func scopeMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			scope := contextUser(ctx).Scope()
			if org, err := strconv.Atoi(ctx.QueryParam(organizationParam)); err == nil {
				scope = scope.Within(org)
			}
			ctx.Set(contextScopeKey, scope)
			return next(ctx)
		}
	}
}

// contextScope returns the caller's scope. Outside of scopeMiddleware it matches nothing.
func contextScope(ctx echo.Context) query.Scope {
	scope, _ := ctx.Get(contextScopeKey).(query.Scope)
	return scope
}

func allow(pass func(usr user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if pass(contextUser(ctx)) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func superuserMiddleware() echo.MiddlewareFunc {
	return allow(func(usr user.User) bool { return usr.IsSuperuser })
}

// adminMiddleware lets organization admins and superusers through.
func adminMiddleware() echo.MiddlewareFunc {
	return allow(user.User.IsAdmin)
}

// roleMiddleware lets through users having any of the roles. Superusers always pass.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return allow(func(usr user.User) bool { return usr.IsSuperuser || usr.HasRole(roles...) })
}

// specialRoleMiddleware lets through employees holding the special role, admins and superusers.
func specialRoleMiddleware(role string) echo.MiddlewareFunc {
	return allow(func(usr user.User) bool { return usr.IsAdmin() || usr.HasSpecialRole(role) })
}

func metricsMiddleware(m *metricsvc.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			code := ctx.Response().Status
			if err != nil {
				// the error handler has not written the response yet
				code, _ = resolveError(err, nil)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(ctx.Request().Method, route, code, time.Since(start))
			return err
		}
	}
}
