package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/askante/core/report"
	"github.com/trezcool/askante/core/user"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(_, authed *echo.Group, deps ServerDeps) {
	h := reportApi{svc: deps.Reports}
	staff := mw(roleMiddleware(user.RoleAdmin, user.RoleEmployee))
	teacher := mw(roleMiddleware(user.RoleTeacher))

	rg := authed.Group("/reports")
	rg.GET("/attendance/last-7-days", h.attendanceLast7Days, staff...)
	rg.GET("/finance/last-15-days", h.financeLast15Days, staff...)
	rg.GET("/result-summary", h.resultSummary, staff...)
	rg.GET("/result-reports", h.resultReports, staff...)
	rg.GET("/institution-overview", h.institutionOverview, staff...)
	rg.GET("/students-report", h.studentsReport, staff...)
	rg.GET("/teachers-report", h.teachersReport, staff...)
	rg.GET("/attendance-report", h.attendanceReport, staff...)

	rg.GET("/teachers-overview", h.teacherOverview, teacher...)
	rg.GET("/teachers-students", h.teacherStudents, teacher...)
	rg.GET("/teachers-students-list", h.teacherStudentsList, teacher...)
	rg.GET("/teachers-class-attendance", h.teacherClassAttendance, teacher...)
}

func (h *reportApi) attendanceLast7Days(ctx echo.Context) error {
	var f report.DayFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.AttendanceLast7Days(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *reportApi) financeLast15Days(ctx echo.Context) error {
	var f report.DayFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.FinanceLast15Days(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *reportApi) resultSummary(ctx echo.Context) error {
	var f report.ResultFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.ResultSummary(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *reportApi) resultReports(ctx echo.Context) error {
	var f report.ResultFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	page := pageOf(ctx)
	rows, err := h.svc.ResultReports(ctx.Request().Context(), contextScope(ctx), f, page)
	if err != nil {
		return err
	}
	return paginated(ctx, page, rows)
}

func (h *reportApi) institutionOverview(ctx echo.Context) error {
	var f report.OverviewFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	ov, err := h.svc.InstitutionOverview(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, ov)
}

func (h *reportApi) studentsReport(ctx echo.Context) error {
	var f report.StudentsReportFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.StudentsReport(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *reportApi) teachersReport(ctx echo.Context) error {
	var f report.TeachersReportFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.TeachersReport(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *reportApi) attendanceReport(ctx echo.Context) error {
	var f report.AttendanceReportFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	rows, err := h.svc.AttendanceReport(ctx.Request().Context(), contextScope(ctx), f)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

// Teacher reports

func (h *reportApi) teacherOverview(ctx echo.Context) error {
	ov, err := h.svc.TeacherOverview(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, ov)
}

func (h *reportApi) teacherStudents(ctx echo.Context) error {
	rows, err := h.svc.TeacherStudents(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}

func (h *reportApi) teacherStudentsList(ctx echo.Context) error {
	var f report.TeacherStudentsFilter
	if err := bindFilter(ctx, &f); err != nil {
		return err
	}
	page := pageOf(ctx)
	rows, err := h.svc.TeacherStudentsList(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID, f, page)
	if err != nil {
		return err
	}
	return paginated(ctx, page, rows)
}

func (h *reportApi) teacherClassAttendance(ctx echo.Context) error {
	rows, err := h.svc.TeacherClassAttendance(ctx.Request().Context(), contextScope(ctx), contextUser(ctx).ID)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, rows)
}
