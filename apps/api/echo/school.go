package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/askante/core/school"
)

type schoolApi struct {
	svc      *school.Service
	validate *validator.Validate
}

// Levels, grades, subjects and terms are shared by every tenant: only superusers write them.
func registerSchoolAPI(_, authed *echo.Group, deps ServerDeps) {
	h := schoolApi{svc: deps.School, validate: deps.Validate}
	superuser, admin := mw(superuserMiddleware()), mw(adminMiddleware())

	newCRUDAPI[school.Level, school.Level, school.NameFilter](h.svc.Levels, h.validate).
		register(authed, "/levels", nil, superuser)
	newCRUDAPI[school.Grade, school.GradeRead, school.GradeFilter](h.svc.Grades, h.validate).
		register(authed, "/grades", nil, superuser)
	newCRUDAPI[school.Subject, school.Subject, school.NameFilter](h.svc.Subjects, h.validate).
		register(authed, "/subjects", nil, superuser)
	newCRUDAPI[school.Term, school.Term, school.NameFilter](h.svc.Terms, h.validate).
		register(authed, "/terms", nil, superuser)
	newCRUDAPI[school.AcademicYear, school.AcademicYearRead, school.AcademicYearFilter](h.svc.AcademicYears, h.validate).
		register(authed, "/academic-years", nil, admin)
	newCRUDAPI[school.Room, school.RoomRead, school.RoomFilter](h.svc.Rooms, h.validate).
		register(authed, "/rooms", nil, admin)

	authed.POST("/institution/change-academic-year", h.changeAcademicYear, admin...)
}

func (h *schoolApi) changeAcademicYear(ctx echo.Context) error {
	var data school.ChangeAcademicYear
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	ay, err := h.svc.ActivateAcademicYear(ctx.Request().Context(), contextScope(ctx), data.AcademicYear)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, ay)
}
