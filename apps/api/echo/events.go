package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core/events"
)

type eventsApi struct {
	svc      *events.Service
	validate *validator.Validate
}

func registerEventsAPI(_, authed *echo.Group, deps ServerDeps) {
	h := eventsApi{svc: deps.Events, validate: deps.Validate}
	admin := mw(adminMiddleware())

	newCRUDAPI[events.Event, events.EventRead, events.EventFilter](h.svc.Events, h.validate).
		register(authed, "/events", nil, admin)
	newCRUDAPI[events.Activity, events.Activity, events.ActivityFilter](h.svc.Activities, h.validate).
		register(authed, "/activities", nil, admin)

	authed.POST("/age-groups/add-students", h.addStudents, admin...)
	authed.GET("/age-groups/students", h.students)
	authed.POST("/age-groups/remove-student", h.removeStudent, admin...)
	newCRUDAPI[events.AgeGroupActivity, events.AgeGroupActivityRead, events.AgeGroupActivityFilter](h.svc.AgeGroupActivities, h.validate).
		register(authed, "/age-groups/activities", nil, admin)
	newCRUDAPI[events.AgeGroup, events.AgeGroupRead, events.AgeGroupFilter](h.svc.AgeGroups, h.validate).
		register(authed, "/age-groups", nil, admin)

	newCRUDAPI[events.ActivityPeriod, events.ActivityPeriodRead, events.ActivityPeriodFilter](h.svc.ActivityPeriods, h.validate).
		register(authed, "/activity-periods", nil, admin)
}

func (h *eventsApi) addStudents(ctx echo.Context) error {
	var data events.AgeGroupMembers
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	added, err := h.svc.AddAgeGroupStudents(ctx.Request().Context(), contextScope(ctx), data)
	if err != nil {
		return errors.Wrap(err, "adding age group students")
	}
	return success(ctx, http.StatusOK, echo.Map{"added": added})
}

func (h *eventsApi) removeStudent(ctx echo.Context) error {
	var data events.AgeGroupMember
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	if err := h.svc.RemoveAgeGroupStudent(ctx.Request().Context(), contextScope(ctx), data); err != nil {
		return err
	}
	return message(ctx, http.StatusOK, "Student removed from age group")
}

func (h *eventsApi) students(ctx echo.Context) error {
	var f events.AgeGroupStudentsFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	params := listParams(ctx, nil)
	page, err := h.svc.AgeGroupStudents(ctx.Request().Context(), contextScope(ctx), f, params)
	if err != nil {
		return err
	}
	return paginated(ctx, params.Page, page)
}
