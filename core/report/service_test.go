package report

import (
	"context"
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/academic"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
)

// aggregator answers every aggregate with value(sql, args) and records the queries it saw.
type aggregator struct {
	value   func(sql string, args []interface{}) float64
	queries []string
}

func (a *aggregator) eval(where sq.Sqlizer) (float64, error) {
	sql, args, err := where.ToSql()
	if err != nil {
		return 0, err
	}
	a.queries = append(a.queries, sql)
	if a.value == nil {
		return 0, nil
	}
	return a.value(sql, args), nil
}

func (a *aggregator) Count(_ context.Context, _ query.Scope, where sq.Sqlizer, _ ...core.DBExecutor) (int, error) {
	v, err := a.eval(where)
	return int(v), err
}

func (a *aggregator) Sum(_ context.Context, _ query.Scope, _ string, where sq.Sqlizer, _ ...core.DBExecutor) (float64, error) {
	return a.eval(where)
}

type lister[R any] struct {
	rows   []R
	params []core.ListParams
}

func (l *lister[R]) List(_ context.Context, _ query.Scope, params core.ListParams) (core.Page[R], error) {
	l.params = append(l.params, params)
	return core.Page[R]{Count: len(l.rows), Results: l.rows}, nil
}

type profiles map[int]people.Employee

func (p profiles) EmployeeByUser(_ context.Context, userID int) (people.Employee, error) {
	emp, ok := p[userID]
	if !ok {
		return emp, core.NewNotFoundError("Employee")
	}
	return emp, nil
}

type years map[int]school.AcademicYear

func (y years) ActiveAcademicYear(_ context.Context, institutionID int, _ ...core.DBExecutor) (*school.AcademicYear, error) {
	if ay, ok := y[institutionID]; ok {
		return &ay, nil
	}
	return nil, nil
}

var (
	now      = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	orgScope = query.Scope{UserID: 1, OrganizationID: 1}
)

// dayOf returns the first date argument of a query.
func dayOf(args []interface{}) string {
	for _, a := range args {
		if t, ok := a.(time.Time); ok {
			return t.Format(core.DateLayout)
		}
	}
	return ""
}

type fixture struct {
	svc         *Service
	students    *aggregator
	employees   *aggregator
	attendances *aggregator
	payments    *aggregator
	results     *aggregator
	classes     *lister[academic.ClassRead]
	studentRows *lister[people.StudentRead]
	termResults *lister[academic.TermResultRead]
}

func newFixture() *fixture {
	fx := &fixture{
		students:    &aggregator{},
		employees:   &aggregator{},
		attendances: &aggregator{},
		payments:    &aggregator{},
		results:     &aggregator{},
		classes:     &lister[academic.ClassRead]{},
		studentRows: &lister[people.StudentRead]{},
		termResults: &lister[academic.TermResultRead]{},
	}
	fx.svc = NewService(
		inmemdb.NewStore("Institution", func(i tenant.Institution) int { return i.OrganizationID },
			tenant.Institution{Model: core.Model{ID: 1}, Name: "Hillside", OrganizationID: 1},
			tenant.Institution{Model: core.Model{ID: 2}, Name: "Riverside", OrganizationID: 2},
		),
		Aggregates{
			Students:      fx.students,
			Employees:     fx.employees,
			Classes:       &aggregator{value: func(string, []interface{}) float64 { return 4 }},
			Rooms:         &aggregator{value: func(string, []interface{}) float64 { return 6 }},
			ClassSubjects: &aggregator{value: func(string, []interface{}) float64 { return 3 }},
			Periods:       &aggregator{value: func(string, []interface{}) float64 { return 12 }},
			Exams:         &aggregator{},
			Assignments:   &aggregator{value: func(string, []interface{}) float64 { return 2 }},
			Attendances:   fx.attendances,
			Payments:      fx.payments,
			TermResults:   fx.results,
		},
		Listings{
			Students:    fx.studentRows,
			Employees:   &lister[people.EmployeeRead]{},
			Classes:     fx.classes,
			Attendances: &lister[academic.AttendanceRead]{},
			TermResults: fx.termResults,
		},
		profiles{
			7: {Model: core.Model{ID: 3}, FirstName: "Tess", IsTeacher: true, InstitutionID: 1},
			8: {Model: core.Model{ID: 4}, FirstName: "Bob", InstitutionID: 1},
		},
		years{1: {Model: core.Model{ID: 5}, StartDate: core.DateFrom(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)),
			EndDate: core.DateFrom(time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC))}},
	)
	fx.svc.now = func() time.Time { return now }
	return fx
}

func TestAttendanceLast7Days(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	fx.students.value = func(string, []interface{}) float64 { return 8 }
	fx.attendances.value = func(_ string, args []interface{}) float64 {
		if dayOf(args) == "2024-03-15" {
			return 6
		}
		return 0
	}

	days, err := fx.svc.AttendanceLast7Days(ctx, orgScope, DayFilter{Institution: "1"})
	require.NoError(t, err)
	require.Len(t, days, AttendanceDays)
	assert.Equal(t, DayAttendance{Date: "2024-03-15", Percentage: 75, Count: 6}, days[0])
	assert.Equal(t, DayAttendance{Date: "2024-03-09"}, days[6])
	assert.Len(t, fx.attendances.queries, AttendanceDays, "one query per day")
	assert.Contains(t, fx.attendances.queries[0], "attendance_group_id IN (SELECT id FROM attendance_groups WHERE record_late_time = ?)")

	days, err = fx.svc.AttendanceLast7Days(ctx, orgScope, DayFilter{StartDate: "2024-02-02"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-02", days[0].Date)
	assert.Equal(t, "2024-01-27", days[6].Date)

	_, err = fx.svc.AttendanceLast7Days(ctx, orgScope, DayFilter{Institution: "2"})
	assert.True(t, core.IsNotFound(err), "an institution of another organization is not visible")

	_, err = fx.svc.AttendanceLast7Days(ctx, orgScope, DayFilter{StartDate: "15/03/2024"})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAttendanceWithoutStudents(t *testing.T) {
	fx := newFixture()
	fx.attendances.value = func(string, []interface{}) float64 { return 3 }

	days, err := fx.svc.AttendanceLast7Days(context.Background(), orgScope, DayFilter{})
	require.NoError(t, err)
	for _, d := range days {
		assert.Zero(t, d.Percentage)
	}
}

func TestFinanceLast15Days(t *testing.T) {
	fx := newFixture()
	fx.payments.value = func(sql string, args []interface{}) float64 {
		if dayOf(args) != "2024-03-14" {
			return 0
		}
		switch {
		case strings.Contains(sql, "status"):
			return 1
		default:
			return 2
		}
	}

	days, err := fx.svc.FinanceLast15Days(context.Background(), orgScope, DayFilter{})
	require.NoError(t, err)
	require.Len(t, days, FinanceDays)
	assert.Equal(t, DayFinance{Date: "2024-03-15"}, days[0])
	assert.Equal(t, DayFinance{
		Date: "2024-03-14", TotalCount: 2, TotalAmount: 2, PaidCount: 1, PaidAmount: 1, DueCount: 1, DueAmount: 1,
	}, days[1])
	assert.Equal(t, DayFinance{Date: "2024-03-01"}, days[14])
	assert.Len(t, fx.payments.queries, FinanceDays*6)
}

func TestResultSummary(t *testing.T) {
	fx := newFixture()
	fx.results.value = func(_ string, args []interface{}) float64 {
		if args[len(args)-1] == "B" {
			return 5
		}
		return 0
	}

	summary, err := fx.svc.ResultSummary(context.Background(), orgScope, ResultFilter{Term: "2"})
	require.NoError(t, err)
	assert.Equal(t, []GradeCount{
		{Grade: "A"}, {Grade: "B", Count: 5}, {Grade: "C"}, {Grade: "D"}, {Grade: "E"}, {Grade: "F"},
	}, summary)
	require.Len(t, fx.results.queries, len(Grades))
	assert.Equal(t, "(((1=1) AND term_id = ? AND (1=1) AND (1=1) AND (1=1)) AND LOWER(grade) = LOWER(?))", fx.results.queries[0])
}

func TestResultReportsOrdering(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.ResultReports(context.Background(), orgScope, ResultFilter{}, query.Page{Limit: 10, Number: 1})
	require.NoError(t, err)
	require.Len(t, fx.termResults.params, 1)
	assert.Equal(t, core.DBOrdering{Field: "total_marks"}, fx.termResults.params[0].Ordering[0])
}

func TestInstitutionOverview(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	fx.students.value = func(sql string, _ []interface{}) float64 {
		if strings.Contains(sql, "gender") {
			return 5
		}
		return 10
	}
	fx.employees.value = func(string, []interface{}) float64 { return 2 }
	fx.attendances.value = func(string, []interface{}) float64 { return 4 }

	ov, err := fx.svc.InstitutionOverview(ctx, orgScope, OverviewFilter{Institution: "1"})
	require.NoError(t, err)
	assert.Equal(t, InstitutionOverview{
		Employees: 2, MaleEmployees: 2, FemaleEmployees: 2, Teachers: 2,
		Students: 10, MaleStudents: 5, FemaleStudents: 5,
		Classes: 4, Rooms: 6, AttendanceToday: 40,
		CurrentAcademicYear: "2024-01-10 - 2024-11-30",
	}, ov)

	var verr *core.ValidationError
	_, err = fx.svc.InstitutionOverview(ctx, orgScope, OverviewFilter{})
	assert.ErrorAs(t, err, &verr)

	_, err = fx.svc.InstitutionOverview(ctx, orgScope, OverviewFilter{Institution: "2"})
	assert.True(t, core.IsNotFound(err))
}

func TestTeacherReports(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	fx.classes.rows = []academic.ClassRead{
		{Class: academic.Class{Model: core.Model{ID: 11}, Name: "Grade 4A"}},
		{Class: academic.Class{Model: core.Model{ID: 12}, Name: "Grade 4B"}},
	}
	fx.students.value = func(sql string, args []interface{}) float64 {
		if strings.Contains(sql, "attendances") {
			return 15
		}
		if args[0] == 11 {
			return 30
		}
		return 20
	}

	ov, err := fx.svc.TeacherOverview(ctx, orgScope, 7)
	require.NoError(t, err)
	assert.Equal(t, TeacherOverview{Classes: 3, Periods: 12, Assignments: 2, Students: 20}, ov)

	counts, err := fx.svc.TeacherStudents(ctx, orgScope, 7)
	require.NoError(t, err)
	assert.Equal(t, []ClassStudents{
		{ClassID: 11, ClassName: "Grade 4A", Students: 30},
		{ClassID: 12, ClassName: "Grade 4B", Students: 20},
	}, counts)

	att, err := fx.svc.TeacherClassAttendance(ctx, orgScope, 7)
	require.NoError(t, err)
	require.Len(t, att, 2)
	require.Len(t, att[0].Days, AttendanceDays)
	assert.Equal(t, DayAttendance{Date: "2024-03-15", Percentage: 50, Count: 15}, att[0].Days[6])
	assert.Equal(t, 75.0, att[1].Days[0].Percentage)

	_, err = fx.svc.TeacherOverview(ctx, orgScope, 8)
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = fx.svc.TeacherStudents(ctx, orgScope, 9)
	assert.True(t, core.IsNotFound(err))
}

func TestTeacherStudentsList(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.TeacherStudentsList(context.Background(), orgScope, 7, TeacherStudentsFilter{Gender: "female"}, query.Page{Limit: 10, Number: 1})
	require.NoError(t, err)
	require.Len(t, fx.studentRows.params, 1)

	sql, args, err := fx.studentRows.params[0].Where.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(id IN (SELECT student_id FROM class_students WHERE class_id IN (SELECT class_id FROM class_subjects WHERE teacher_id = ?)) AND ((1=1) AND LOWER(gender) = LOWER(?) AND (1=1)))", sql)
	assert.Equal(t, []interface{}{3, "female"}, args)
}

func TestReportFilters(t *testing.T) {
	tests := []struct {
		name     string
		where    sq.Sqlizer
		wantSql  string
		wantArgs []interface{}
	}{
		{
			name:    "students by payment term",
			where:   StudentsReportFilter{PaymentTerm: "2"}.payments(),
			wantSql: "id IN (SELECT student_id FROM payments WHERE (term_id = ? AND status = ?))", wantArgs: []interface{}{2, "paid"},
		},
		{
			name:    "students by payment status without term",
			where:   StudentsReportFilter{PaymentStatus: "due"}.payments(),
			wantSql: "(1=1)", wantArgs: []interface{}{},
		},
		{
			name:    "teachers by subject",
			where:   TeachersReportFilter{Subject: "4"}.Where(),
			wantSql: "(is_teacher = ? AND (1=1) AND id IN (SELECT teacher_id FROM class_subjects WHERE subject_id = ?) AND (1=1))", wantArgs: []interface{}{true, 4},
		},
		{
			name:    "attendance by class",
			where:   AttendanceReportFilter{Class: "6"}.Where(),
			wantSql: "((1=1) AND lesson_id IN (SELECT id FROM lessons WHERE ((1=1) AND period_id IN (SELECT id FROM periods WHERE class_subject_id IN (SELECT id FROM class_subjects WHERE ((1=1) AND class_id = ?))))) AND (1=1) AND (1=1))",
			wantArgs: []interface{}{6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.where.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSql, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
