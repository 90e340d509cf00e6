package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/askante/core/resource"
	"github.com/trezcool/askante/core/user"
)

// Public resources are listed to every tenant; staff post their own.
func registerResourceAPI(_, authed *echo.Group, deps ServerDeps) {
	staff := mw(roleMiddleware(user.RoleAdmin, user.RoleTeacher, user.RoleEmployee))
	newCRUDAPI[resource.Resource, resource.ResourceRead, resource.Filter](deps.Resources.CRUD, deps.Validate).
		register(authed, "/resources", nil, staff)
}
