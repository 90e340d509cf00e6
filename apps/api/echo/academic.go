package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/academic"
	"github.com/trezcool/askante/core/user"
)

const classSubjectParam = "class_subject"

type academicApi struct {
	svc      *academic.Service
	validate *validator.Validate
	now      func() time.Time
}

func registerAcademicAPI(_, authed *echo.Group, deps ServerDeps) {
	h := academicApi{svc: deps.Academic, validate: deps.Validate, now: time.Now}
	superuser, admin := mw(superuserMiddleware()), mw(adminMiddleware())
	teacher := mw(roleMiddleware(user.RoleTeacher, user.RoleAdmin))
	student := mw(roleMiddleware(user.RoleStudent))

	// classes
	classes := newCRUDAPI[academic.Class, academic.ClassRead, academic.ClassFilter](h.svc.Classes, h.validate)
	classes.register(authed, "/classes", nil, admin)
	newCRUDAPI[academic.ClassSubject, academic.ClassSubjectRead, academic.ClassSubjectFilter](h.svc.ClassSubjects, h.validate).
		register(authed, "/classes/subjects", nil, admin)
	authed.POST("/classes/add-students", h.addClassStudents, admin...)
	authed.GET("/classes/students", h.classStudents)
	authed.POST("/classes/remove-student", h.removeClassStudent, admin...)

	// periods
	periods := newCRUDAPI[academic.Period, academic.PeriodRead, academic.PeriodFilter](h.svc.Periods, h.validate)
	authed.POST("/add-period", periods.create, admin...)
	authed.PATCH("/update-period/:id", periods.update, admin...)
	authed.GET("/get-periods", periods.list)
	authed.DELETE("/delete-period/:id", periods.destroy, admin...)

	newCRUDAPI[academic.AttendanceGroup, academic.AttendanceGroup, academic.AttendanceGroupFilter](h.svc.AttendanceGroups, h.validate).
		register(authed, "/attendance-groups", nil, superuser)

	announcements := newCRUDAPI[academic.Announcement, academic.AnnouncementRead, academic.AnnouncementFilter](h.svc.Announcements, h.validate)
	announcements.narrow = func(ctx echo.Context, f *academic.AnnouncementFilter) {
		if !contextUser(ctx).IsAdmin() {
			f.Active = "true"
		}
		f.Today = h.now()
	}
	announcements.register(authed, "/announcements", nil, admin)

	newCRUDAPI[academic.MarkingCriterion, academic.MarkingCriterionRead, academic.MarkingCriterionFilter](h.svc.MarkingCriteria, h.validate).
		register(authed, "/marking-criterion", nil, teacher)

	// teacher portal
	tg := authed.Group("/teachers")
	tg.GET("/class-list", h.teacherClassSubjects, teacher...)
	tg.GET("/periods", h.teacherPeriods, teacher...)
	tg.POST("/submit-attendance", h.submitAttendance, teacher...)
	tg.GET("/attendance-list", h.teacherAttendance, teacher...)
	tg.GET("/monthly-calendar", h.teacherCalendar, teacher...)
	tg.GET("/marking-options", h.markingOptions, teacher...)
	tg.POST("/submit-term-result", h.submitTermResult, teacher...)
	tg.GET("/term-result", h.teacherTermResults, teacher...)
	newCRUDAPI[academic.Assignment, academic.AssignmentRead, academic.AssessmentFilter](h.svc.Assignments, h.validate).
		register(tg, "/assignments", teacher, teacher)
	newCRUDAPI[academic.Exam, academic.ExamRead, academic.AssessmentFilter](h.svc.Exams, h.validate).
		register(tg, "/exams", teacher, teacher)
	newCRUDAPI[academic.Mark, academic.MarkRead, academic.MarkFilter](h.svc.Marks, h.validate).
		register(tg, "/marks", teacher, teacher)

	// student portal
	sg := authed.Group("/students")
	sg.GET("/monthly-calendar", h.studentCalendar, student...)
	sg.GET("/class-subjects", h.studentClassSubjects, student...)
	sg.GET("/attendance-list", h.studentAttendance, student...)
	sg.GET("/assignments", h.studentAssignments, student...)
	sg.GET("/exams", h.studentExams, student...)
	sg.GET("/periods", h.studentPeriods, student...)
	sg.GET("/marks", h.studentMarks, student...)
	sg.GET("/term-results", h.studentTermResults, student...)

	authed.GET("/settings", h.settings)
	authed.PATCH("/settings", h.updateSettings, superuser...)
}

// Classes

func (h *academicApi) addClassStudents(ctx echo.Context) error {
	var data academic.ClassMembers
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	added, err := h.svc.AddClassStudents(ctx.Request().Context(), contextScope(ctx), data)
	if err != nil {
		return errors.Wrap(err, "adding class students")
	}
	return success(ctx, http.StatusOK, echo.Map{"added": added})
}

func (h *academicApi) removeClassStudent(ctx echo.Context) error {
	var data academic.ClassMember
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	if err := h.svc.RemoveClassStudent(ctx.Request().Context(), contextScope(ctx), data); err != nil {
		return err
	}
	return message(ctx, http.StatusOK, "Student removed from class")
}

func (h *academicApi) classStudents(ctx echo.Context) error {
	var f academic.ClassStudentsFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	params := listParams(ctx, nil)
	page, err := h.svc.ClassStudents(ctx.Request().Context(), contextScope(ctx), f, params)
	if err != nil {
		return err
	}
	return paginated(ctx, params.Page, page)
}

// Teacher portal

func (h *academicApi) teacherClassSubjects(ctx echo.Context) error {
	rows, err := h.svc.TeacherClassSubjects(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

// teacherPeriods lists the teacher's periods; unlike the class timetable, the class is optional.
func (h *academicApi) teacherPeriods(ctx echo.Context) error {
	var f academic.PeriodFilter
	if err := binder.BindQueryParams(ctx, &f); err != nil {
		return errors.Wrap(err, "binding query params")
	}
	rows, err := h.svc.TeacherPeriods(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *academicApi) submitAttendance(ctx echo.Context) error {
	var data academic.SubmitAttendance
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	rows, err := h.svc.SubmitAttendance(ctx.Request().Context(), contextScope(ctx), data)
	if err != nil {
		return errors.Wrap(err, "submitting attendance")
	}
	return success(ctx, http.StatusCreated, rows)
}

func (h *academicApi) teacherAttendance(ctx echo.Context) error {
	var f academic.AttendanceFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.TeacherAttendance(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

// month reads the `year` and `month` parameters, the current month by default.
func (h *academicApi) month(ctx echo.Context) (int, time.Month, error) {
	now := h.now()
	year, err := intParam(ctx, "year", now.Year())
	if err != nil {
		return 0, 0, err
	}
	m, err := intParam(ctx, "month", int(now.Month()))
	if err != nil {
		return 0, 0, err
	}
	if m < 1 || m > 12 {
		return 0, 0, core.NewFieldError("month", "month must be between 1 and 12")
	}
	return year, time.Month(m), nil
}

func (h *academicApi) teacherCalendar(ctx echo.Context) error {
	year, m, err := h.month(ctx)
	if err != nil {
		return err
	}
	days, err := h.svc.TeacherCalendar(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, year, m)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, days)
}

func (h *academicApi) markingOptions(ctx echo.Context) error {
	opts, err := h.svc.MarkingOptions(
		ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, ctx.QueryParam(classSubjectParam),
	)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, opts)
}

func (h *academicApi) submitTermResult(ctx echo.Context) error {
	var data academic.TermResult
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := h.validate.Struct(&data); err != nil {
		return err
	}
	res, err := h.svc.SubmitTermResult(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting term result")
	}
	return success(ctx, http.StatusOK, res)
}

func (h *academicApi) teacherTermResults(ctx echo.Context) error {
	var f academic.TermResultFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.TeacherTermResults(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

// Student portal

func (h *academicApi) studentCalendar(ctx echo.Context) error {
	year, m, err := h.month(ctx)
	if err != nil {
		return err
	}
	days, err := h.svc.StudentCalendar(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, year, m)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, days)
}

func (h *academicApi) studentClassSubjects(ctx echo.Context) error {
	rows, err := h.svc.StudentClassSubjects(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *academicApi) studentAttendance(ctx echo.Context) error {
	rows, err := h.svc.StudentAttendance(
		ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, ctx.QueryParam(classSubjectParam),
	)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *academicApi) studentAssignments(ctx echo.Context) error {
	rows, err := h.svc.StudentAssignments(
		ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, ctx.QueryParam(classSubjectParam),
	)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *academicApi) studentExams(ctx echo.Context) error {
	rows, err := h.svc.StudentExams(
		ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, ctx.QueryParam(classSubjectParam),
	)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *academicApi) studentPeriods(ctx echo.Context) error {
	rows, err := h.svc.StudentPeriods(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *academicApi) studentMarks(ctx echo.Context) error {
	rows, err := h.svc.StudentMarks(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, ctx.QueryParam("subject"))
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *academicApi) studentTermResults(ctx echo.Context) error {
	rows, err := h.svc.StudentTermResults(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

// Settings

func (h *academicApi) settings(ctx echo.Context) error {
	s, err := h.svc.Settings(ctx.Request().Context())
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, s)
}

func (h *academicApi) updateSettings(ctx echo.Context) error {
	var patch academic.SettingsPatch
	if err := bindBody(ctx, &patch); err != nil {
		return err
	}
	s, err := h.svc.UpdateSettings(ctx.Request().Context(), patch)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, s)
}
