// Package report builds the dashboards: bucketed counts and sums, one filtered aggregate query per
// bucket, and filtered listings with their counts.
package report

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/academic"
	"github.com/trezcool/askante/core/finance"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

const (
	AttendanceDays = 7
	FinanceDays    = 15
)

type (
	// Aggregator counts and sums the rows of one entity visible in a scope.
	Aggregator interface {
		Count(ctx context.Context, scope query.Scope, where sq.Sqlizer, exec ...core.DBExecutor) (int, error)
		Sum(ctx context.Context, scope query.Scope, column string, where sq.Sqlizer, exec ...core.DBExecutor) (float64, error)
	}

	// Lister lists read projections; every *core.CRUD is one.
	Lister[R any] interface {
		List(ctx context.Context, scope query.Scope, params core.ListParams) (core.Page[R], error)
	}

	Aggregates struct {
		Students      Aggregator
		Employees     Aggregator
		Classes       Aggregator
		Rooms         Aggregator
		ClassSubjects Aggregator
		Periods       Aggregator
		Exams         Aggregator
		Assignments   Aggregator
		Attendances   Aggregator
		Payments      Aggregator
		TermResults   Aggregator
	}

	Listings struct {
		Students    Lister[people.StudentRead]
		Employees   Lister[people.EmployeeRead]
		Classes     Lister[academic.ClassRead]
		Attendances Lister[academic.AttendanceRead]
		TermResults Lister[academic.TermResultRead]
	}

	Profiles interface {
		EmployeeByUser(ctx context.Context, userID int) (people.Employee, error)
	}

	AcademicYears interface {
		ActiveAcademicYear(ctx context.Context, institutionID int, exec ...core.DBExecutor) (*school.AcademicYear, error)
	}

	Service struct {
		institutions core.Store[tenant.Institution]
		agg          Aggregates
		lists        Listings
		profiles     Profiles
		years        AcademicYears
		now          func() time.Time
	}
)

func NewService(institutions core.Store[tenant.Institution], agg Aggregates, lists Listings, profiles Profiles, years AcademicYears) *Service {
	return &Service{
		institutions: institutions,
		agg:          agg,
		lists:        lists,
		profiles:     profiles,
		years:        years,
		now:          time.Now,
	}
}

// presentAt matches the attendance of students who were not late at a lesson of the given day.
func presentAt(day time.Time) sq.Sqlizer {
	return query.All(
		query.Sub("lesson_id", "lessons", query.OnDay("date", day)),
		query.Sub("attendance_group_id", "attendance_groups", sq.Eq{"record_late_time": false}),
	)
}

// percentage is n out of total, in percent rounded to 2 places; 0 when total is 0.
func percentage(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}

// institution narrows to an institution visible in scope; an absent id is no narrowing.
func (svc *Service) institution(ctx context.Context, scope query.Scope, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, core.NewFieldError("institution", "invalid id")
	}
	if _, err := svc.institutions.Get(ctx, scope, id); err != nil {
		if core.IsNotFound(err) {
			return 0, core.NewNotFoundError("Institution")
		}
		return 0, err
	}
	return id, nil
}

// lastDay is the day a daily report ends on.
func (svc *Service) lastDay(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return query.Day(svc.now()), nil
	}
	day, err := query.ParseDay(raw)
	if err != nil {
		return time.Time{}, core.NewFieldError("start_date", "invalid date, use YYYY-MM-DD")
	}
	return day, nil
}

// AttendanceLast7Days reports, for each of the 7 days ending on the start date (newest first), the
// share of the students who attended a lesson without being late.
func (svc *Service) AttendanceLast7Days(ctx context.Context, scope query.Scope, f DayFilter) ([]DayAttendance, error) {
	instID, err := svc.institution(ctx, scope, f.Institution)
	if err != nil {
		return nil, err
	}
	last, err := svc.lastDay(f.StartDate)
	if err != nil {
		return nil, err
	}
	students, err := svc.agg.Students.Count(ctx, scope, query.Eq("institution_id", instID))
	if err != nil {
		return nil, errors.Wrap(err, "counting students")
	}
	inInstitution := query.Sub("student_id", "students", query.Eq("institution_id", instID))

	res := make([]DayAttendance, 0, AttendanceDays)
	for i := 0; i < AttendanceDays; i++ {
		day := last.AddDate(0, 0, -i)
		n, err := svc.agg.Attendances.Count(ctx, scope, query.All(inInstitution, presentAt(day)))
		if err != nil {
			return nil, errors.Wrap(err, "counting attendance")
		}
		res = append(res, DayAttendance{Date: day.Format(core.DateLayout), Percentage: percentage(n, students), Count: n})
	}
	return res, nil
}

// FinanceLast15Days counts and sums the payments of each of the 15 days ending on the start date,
// newest first.
func (svc *Service) FinanceLast15Days(ctx context.Context, scope query.Scope, f DayFilter) ([]DayFinance, error) {
	instID, err := svc.institution(ctx, scope, f.Institution)
	if err != nil {
		return nil, err
	}
	last, err := svc.lastDay(f.StartDate)
	if err != nil {
		return nil, err
	}

	res := make([]DayFinance, 0, FinanceDays)
	for i := 0; i < FinanceDays; i++ {
		day := last.AddDate(0, 0, -i)
		onDay := query.All(query.Eq("institution_id", instID), query.OnDay("date", day))
		rep := DayFinance{Date: day.Format(core.DateLayout)}
		buckets := []struct {
			count  *int
			amount *float64
			where  sq.Sqlizer
		}{
			{&rep.TotalCount, &rep.TotalAmount, onDay},
			{&rep.PaidCount, &rep.PaidAmount, query.All(onDay, sq.Eq{"status": finance.StatusPaid})},
			{&rep.DueCount, &rep.DueAmount, query.All(onDay, sq.Eq{"status": finance.StatusDue})},
		}
		for _, b := range buckets {
			if *b.count, err = svc.agg.Payments.Count(ctx, scope, b.where); err != nil {
				return nil, errors.Wrap(err, "counting payments")
			}
			if *b.amount, err = svc.agg.Payments.Sum(ctx, scope, "amount", b.where); err != nil {
				return nil, errors.Wrap(err, "summing payments")
			}
		}
		res = append(res, rep)
	}
	return res, nil
}

// ResultSummary counts the term results of each grade letter.
func (svc *Service) ResultSummary(ctx context.Context, scope query.Scope, f ResultFilter) ([]GradeCount, error) {
	where := f.Where()
	res := make([]GradeCount, 0, len(Grades))
	for _, g := range Grades {
		n, err := svc.agg.TermResults.Count(ctx, scope, query.All(where, query.IExact("grade", g)))
		if err != nil {
			return nil, errors.Wrap(err, "counting term results")
		}
		res = append(res, GradeCount{Grade: g, Count: n})
	}
	return res, nil
}

// ResultReports lists term results, best first.
func (svc *Service) ResultReports(ctx context.Context, scope query.Scope, f ResultFilter, page query.Page) (core.Page[academic.TermResultRead], error) {
	return svc.lists.TermResults.List(ctx, scope, core.ListParams{
		Where:    f.Where(),
		Ordering: []core.DBOrdering{{Field: "total_marks", Ascending: false}, {Field: "id", Ascending: true}},
		Page:     page,
	})
}

// InstitutionOverview sums up the headcounts of an institution.
func (svc *Service) InstitutionOverview(ctx context.Context, scope query.Scope, f OverviewFilter) (InstitutionOverview, error) {
	var ov InstitutionOverview
	if err := f.Validate(); err != nil {
		return ov, err
	}
	instID, err := svc.institution(ctx, scope, f.Institution)
	if err != nil {
		return ov, err
	}
	inInstitution := sq.Eq{"institution_id": instID}
	counts := []struct {
		dest  *int
		agg   Aggregator
		where sq.Sqlizer
	}{
		{&ov.Employees, svc.agg.Employees, inInstitution},
		{&ov.MaleEmployees, svc.agg.Employees, query.All(inInstitution, query.IExact("gender", "male"))},
		{&ov.FemaleEmployees, svc.agg.Employees, query.All(inInstitution, query.IExact("gender", "female"))},
		{&ov.Teachers, svc.agg.Employees, query.All(inInstitution, sq.Eq{"is_teacher": true})},
		{&ov.Students, svc.agg.Students, inInstitution},
		{&ov.MaleStudents, svc.agg.Students, query.All(inInstitution, query.IExact("gender", "male"))},
		{&ov.FemaleStudents, svc.agg.Students, query.All(inInstitution, query.IExact("gender", "female"))},
		{&ov.Classes, svc.agg.Classes, inInstitution},
		{&ov.Rooms, svc.agg.Rooms, inInstitution},
	}
	for _, c := range counts {
		if *c.dest, err = c.agg.Count(ctx, scope, c.where); err != nil {
			return ov, errors.Wrap(err, "counting institution rows")
		}
	}

	present, err := svc.agg.Attendances.Count(ctx, scope, query.All(
		query.Sub("student_id", "students", inInstitution),
		presentAt(svc.now()),
	))
	if err != nil {
		return ov, errors.Wrap(err, "counting attendance")
	}
	ov.AttendanceToday = percentage(present, ov.Students)

	year, err := svc.years.ActiveAcademicYear(ctx, instID)
	if err != nil {
		return ov, errors.Wrap(err, "finding active academic year")
	}
	ov.CurrentAcademicYear = "Academic year not set"
	if year != nil {
		ov.CurrentAcademicYear = year.StartDate.String() + " - " + year.EndDate.String()
	}
	return ov, nil
}

// teacher is the employee profile of a teaching user.
func (svc *Service) teacher(ctx context.Context, userID int) (people.Employee, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return emp, err
	}
	if !emp.IsTeacher {
		return emp, core.ErrForbidden
	}
	return emp, nil
}

func taughtBy(employeeID int) sq.Sqlizer {
	return query.Sub("class_subject_id", "class_subjects", sq.Eq{"teacher_id": employeeID})
}

// studentsOf matches the students of the classes a teacher teaches.
func studentsOf(employeeID int) sq.Sqlizer {
	return query.SubSelect("id", "class_students", "student_id",
		query.SubSelect("class_id", "class_subjects", "class_id", sq.Eq{"teacher_id": employeeID}))
}

func inClass(classID int) sq.Sqlizer {
	return query.SubSelect("id", "class_students", "student_id", sq.Eq{"class_id": classID})
}

// TeacherOverview counts what a teacher teaches in the active academic year of their institution.
func (svc *Service) TeacherOverview(ctx context.Context, scope query.Scope, userID int) (TeacherOverview, error) {
	var ov TeacherOverview
	emp, err := svc.teacher(ctx, userID)
	if err != nil {
		return ov, err
	}
	inYear := query.Identity()
	year, err := svc.years.ActiveAcademicYear(ctx, emp.InstitutionID)
	if err != nil {
		return ov, errors.Wrap(err, "finding active academic year")
	}
	if year != nil {
		inYear = sq.Eq{"academic_year_id": year.ID}
	}

	counts := []struct {
		dest  *int
		agg   Aggregator
		where sq.Sqlizer
	}{
		{&ov.Classes, svc.agg.ClassSubjects, sq.Eq{"teacher_id": emp.ID}},
		{&ov.Periods, svc.agg.Periods, taughtBy(emp.ID)},
		{&ov.Exams, svc.agg.Exams, query.All(taughtBy(emp.ID), inYear)},
		{&ov.Assignments, svc.agg.Assignments, query.All(taughtBy(emp.ID), inYear)},
		{&ov.Students, svc.agg.Students, studentsOf(emp.ID)},
	}
	for _, c := range counts {
		if *c.dest, err = c.agg.Count(ctx, scope, c.where); err != nil {
			return ov, errors.Wrap(err, "counting teacher rows")
		}
	}
	return ov, nil
}

func (svc *Service) teacherClasses(ctx context.Context, scope query.Scope, employeeID int) ([]academic.ClassRead, error) {
	page, err := svc.lists.Classes.List(ctx, scope, core.ListParams{
		Where:    query.SubSelect("id", "class_subjects", "class_id", sq.Eq{"teacher_id": employeeID}),
		Ordering: []core.DBOrdering{{Field: "name", Ascending: true}},
		All:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing teacher classes")
	}
	return page.Results, nil
}

// TeacherStudents counts the students of each class a teacher teaches.
func (svc *Service) TeacherStudents(ctx context.Context, scope query.Scope, userID int) ([]ClassStudents, error) {
	emp, err := svc.teacher(ctx, userID)
	if err != nil {
		return nil, err
	}
	classes, err := svc.teacherClasses(ctx, scope, emp.ID)
	if err != nil {
		return nil, err
	}
	res := make([]ClassStudents, 0, len(classes))
	for _, c := range classes {
		n, err := svc.agg.Students.Count(ctx, scope, inClass(c.ID))
		if err != nil {
			return nil, errors.Wrap(err, "counting class students")
		}
		res = append(res, ClassStudents{ClassID: c.ID, ClassName: c.Name, Students: n})
	}
	return res, nil
}

// TeacherStudentsList lists the students a teacher teaches.
func (svc *Service) TeacherStudentsList(ctx context.Context, scope query.Scope, userID int, f TeacherStudentsFilter, page query.Page) (core.Page[people.StudentRead], error) {
	emp, err := svc.teacher(ctx, userID)
	if err != nil {
		return core.Page[people.StudentRead]{}, err
	}
	return svc.lists.Students.List(ctx, scope, core.ListParams{
		Where:    query.All(studentsOf(emp.ID), f.Where()),
		Ordering: []core.DBOrdering{{Field: "first_name", Ascending: true}, {Field: "last_name", Ascending: true}},
		Page:     page,
	})
}

// TeacherClassAttendance reports, for each class a teacher teaches and each of the last 7 days, the
// share of the class who attended one of the teacher's lessons without being late.
func (svc *Service) TeacherClassAttendance(ctx context.Context, scope query.Scope, userID int) ([]ClassAttendance, error) {
	emp, err := svc.teacher(ctx, userID)
	if err != nil {
		return nil, err
	}
	classes, err := svc.teacherClasses(ctx, scope, emp.ID)
	if err != nil {
		return nil, err
	}
	today := query.Day(svc.now())
	res := make([]ClassAttendance, 0, len(classes))
	for _, c := range classes {
		students, err := svc.agg.Students.Count(ctx, scope, inClass(c.ID))
		if err != nil {
			return nil, errors.Wrap(err, "counting class students")
		}
		lessons := query.Sub("period_id", "periods", query.Sub("class_subject_id", "class_subjects",
			sq.Eq{"teacher_id": emp.ID, "class_id": c.ID}))

		ca := ClassAttendance{ClassID: c.ID, ClassName: c.Name, Days: make([]DayAttendance, 0, AttendanceDays)}
		for i := AttendanceDays - 1; i >= 0; i-- {
			day := today.AddDate(0, 0, -i)
			present := query.SubSelect("id", "attendances", "student_id", query.All(
				query.Sub("lesson_id", "lessons", query.All(query.OnDay("date", day), lessons)),
				query.Sub("attendance_group_id", "attendance_groups", sq.Eq{"record_late_time": false}),
			))
			n, err := svc.agg.Students.Count(ctx, scope, query.All(inClass(c.ID), present))
			if err != nil {
				return nil, errors.Wrap(err, "counting class attendance")
			}
			ca.Days = append(ca.Days, DayAttendance{Date: day.Format(core.DateLayout), Percentage: percentage(n, students), Count: n})
		}
		res = append(res, ca)
	}
	return res, nil
}

func rows[R any](page core.Page[R], err error) (Rows[R], error) {
	if err != nil {
		return Rows[R]{}, err
	}
	return Rows[R]{Count: page.Count, Data: page.Results}, nil
}

func (svc *Service) StudentsReport(ctx context.Context, scope query.Scope, f StudentsReportFilter) (Rows[people.StudentRead], error) {
	return rows(svc.lists.Students.List(ctx, scope, core.ListParams{Where: f.Where(), All: true}))
}

func (svc *Service) TeachersReport(ctx context.Context, scope query.Scope, f TeachersReportFilter) (Rows[people.EmployeeRead], error) {
	return rows(svc.lists.Employees.List(ctx, scope, core.ListParams{Where: f.Where(), All: true}))
}

func (svc *Service) AttendanceReport(ctx context.Context, scope query.Scope, f AttendanceReportFilter) (Rows[academic.AttendanceRead], error) {
	return rows(svc.lists.Attendances.List(ctx, scope, core.ListParams{Where: f.Where(), All: true}))
}

func requireID(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return core.NewFieldError(field, "this field is required")
	}
	return nil
}
