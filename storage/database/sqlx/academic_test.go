package sqlxrepos_test

import (
	"context"
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
	sqlxrepos "github.com/trezcool/askante/storage/database/sqlx"
	testutil "github.com/trezcool/askante/tests"
)

type classroom struct {
	scope        query.Scope
	stores       academic.Stores
	schoolSvc    *school.Service
	year         school.AcademicYear
	term         school.Term
	classSubject academic.ClassSubject
	period       academic.Period
	student      people.Student
}

// newClassroom seeds an organization with one class subject, its monday period, one student
// and an active academic year.
func newClassroom(t *testing.T, db core.DB) classroom {
	t.Helper()
	ctx := context.Background()
	tenants := sqlxrepos.NewTenantStores(db)
	schoolStores := sqlxrepos.NewSchoolStores(db)

	c := classroom{stores: sqlxrepos.NewAcademicStores(db)}
	scope, inst := createOrganization(t, tenants, "Acme")
	c.scope = scope
	c.schoolSvc = school.NewService(schoolStores, tenants.Institutions)

	subject := school.Subject{Name: "Mathematics"}
	require.NoError(t, schoolStores.Subjects.Create(ctx, query.Global(), &subject))
	c.term = school.Term{Name: "Term 1"}
	require.NoError(t, schoolStores.Terms.Create(ctx, query.Global(), &c.term))

	year, err := c.schoolSvc.AcademicYears.Create(ctx, scope, school.AcademicYear{Name: "2024", InstitutionID: inst.ID})
	require.NoError(t, err)
	_, err = c.schoolSvc.ActivateAcademicYear(ctx, scope, year.ID)
	require.NoError(t, err)
	c.year = year.AcademicYear

	class := academic.Class{Name: "6A", InstitutionID: inst.ID}
	require.NoError(t, c.stores.Classes.Create(ctx, scope, &class))
	c.classSubject = academic.ClassSubject{ClassID: class.ID, SubjectID: subject.ID, InstitutionID: inst.ID}
	require.NoError(t, c.stores.ClassSubjects.Create(ctx, scope, &c.classSubject))

	start, err := core.ParseTimeOfDay("08:00")
	require.NoError(t, err)
	end, err := core.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	c.period = academic.Period{ClassSubjectID: c.classSubject.ID, Day: "monday", Period: 1, Start: start, End: end}
	require.NoError(t, c.stores.Periods.Create(ctx, scope, &c.period))

	c.student = people.Student{FirstName: "Ann", LastName: "Doe", InstitutionID: inst.ID}
	require.NoError(t, sqlxrepos.NewPeopleStores(db).Students.Create(ctx, scope, &c.student))
	return c
}

func TestSubmitAttendanceReplaces(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	c := newClassroom(t, db)
	svc := academic.NewService(db, c.stores, academic.Loaders{
		Students: sqlxrepos.NewPeopleStores(db).Students,
	}, nil, c.schoolSvc)

	groups := make(map[string]academic.AttendanceGroup)
	for _, name := range []string{"Present", "Late"} {
		g := academic.AttendanceGroup{Name: name}
		require.NoError(t, c.stores.AttendanceGroups.Create(ctx, query.Global(), &g))
		groups[name] = g
	}

	date := core.DateFrom(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	submit := func(group string) []academic.AttendanceRead {
		t.Helper()
		got, err := svc.SubmitAttendance(ctx, c.scope, academic.SubmitAttendance{
			Period: c.period.ID, Date: date, Term: c.term.ID,
			Student: c.student.ID, AttendanceGroup: groups[group].ID,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		return got
	}

	first := submit("Present")
	assert.Equal(t, c.year.ID, first[0].AcademicYearID.Int)

	second := submit("Late")
	require.NotNil(t, second[0].AttendanceGroup)
	assert.Equal(t, "Late", second[0].AttendanceGroup.Name)
	assert.Equal(t, first[0].LessonID, second[0].LessonID)

	count, err := c.stores.Attendances.Count(ctx, query.Global(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	att, err := c.stores.Attendances.First(ctx, query.Global(), sq.Eq{"student_id": c.student.ID})
	require.NoError(t, err)
	assert.Equal(t, groups["Late"].ID, att.AttendanceGroupID)

	lessons, err := c.stores.Lessons.Count(ctx, query.Global(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, lessons)

	// another organization cannot record attendance of the period
	other, _ := createOrganization(t, sqlxrepos.NewTenantStores(db), "Globex")
	_, err = svc.SubmitAttendance(ctx, other, academic.SubmitAttendance{
		Period: c.period.ID, Date: date, Student: c.student.ID, AttendanceGroup: groups["Present"].ID,
	})
	assert.True(t, core.IsNotFound(err), "%v", err)
}

func TestTermResultUpsert(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	c := newClassroom(t, db)

	result := func(total float64, grade string) *academic.TermResult {
		return &academic.TermResult{
			TermID: c.term.ID, StudentID: c.student.ID, ClassSubjectID: c.classSubject.ID,
			AcademicYearID: c.year.ID, TotalMarks: total, Grade: grade,
		}
	}

	first := result(61, "C")
	require.NoError(t, c.stores.TermResults.Upsert(ctx, c.scope, first))
	second := result(72.5, "B")
	require.NoError(t, c.stores.TermResults.Upsert(ctx, c.scope, second))
	assert.Equal(t, first.ID, second.ID)

	count, err := c.stores.TermResults.Count(ctx, query.Global(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := c.stores.TermResults.Get(ctx, c.scope, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 72.5, got.TotalMarks)
	assert.Equal(t, "B", got.Grade)
}
