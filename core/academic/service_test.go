package academic

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
)

// register keeps lessons and attendances in memory.
type register struct {
	lessons     *inmemdb.Store[Lesson]
	attendances *inmemdb.Store[Attendance]
}

func (r register) EnsureLesson(ctx context.Context, l Lesson, _ ...core.DBExecutor) (Lesson, error) {
	for _, existing := range r.lessons.Rows() {
		if existing.PeriodID == l.PeriodID && existing.Date.String() == l.Date.String() {
			return existing, nil
		}
	}
	err := r.lessons.Create(ctx, query.Global(), &l)
	return l, err
}

func (r register) Replace(ctx context.Context, _ query.Scope, a *Attendance, _ ...core.DBExecutor) error {
	for _, existing := range r.attendances.Rows() {
		if existing.LessonID == a.LessonID && existing.StudentID == a.StudentID {
			if err := r.attendances.Delete(ctx, query.Global(), existing.ID); err != nil {
				return err
			}
		}
	}
	return r.attendances.Create(ctx, query.Global(), a)
}

// activeYears maps institutions to their active academic year.
type activeYears map[int]school.AcademicYear

func (y activeYears) ActiveAcademicYear(_ context.Context, institutionID int, _ ...core.DBExecutor) (*school.AcademicYear, error) {
	ay, ok := y[institutionID]
	if !ok {
		return nil, nil
	}
	return &ay, nil
}

const (
	present = 1
	late    = 2
)

var orgScope = query.Scope{UserID: 1, OrganizationID: 1}

// class subject n belongs to institution n, itself in organization n
func newAttendanceService() (*Service, register) {
	reg := register{
		lessons:     inmemdb.NewStore[Lesson]("Lesson", nil),
		attendances: inmemdb.NewStore[Attendance]("Attendance", nil),
	}
	svc := NewService(nil,
		Stores{
			ClassSubjects: inmemdb.NewStore("Class subject", func(cs ClassSubject) int { return cs.InstitutionID },
				ClassSubject{Model: core.Model{ID: 1}, ClassID: 1, SubjectID: 1, InstitutionID: 1},
				ClassSubject{Model: core.Model{ID: 2}, ClassID: 2, SubjectID: 1, InstitutionID: 2},
			),
			Periods: inmemdb.NewStore("Period", func(p Period) int { return p.ClassSubjectID },
				Period{Model: core.Model{ID: 1}, ClassSubjectID: 1, Day: "monday", Period: 1},
				Period{Model: core.Model{ID: 2}, ClassSubjectID: 2, Day: "monday", Period: 1},
			),
			AttendanceGroups: inmemdb.NewStore[AttendanceGroup]("Attendance group", nil,
				AttendanceGroup{Model: core.Model{ID: present}, Name: "Present"},
				AttendanceGroup{Model: core.Model{ID: late}, Name: "Late", RecordLateTime: true},
			),
			Lessons:     reg.lessons,
			Attendances: reg.attendances,
			Register:    reg,
		},
		Loaders{
			Students: inmemdb.NewStore("Student", func(s people.Student) int { return s.InstitutionID },
				people.Student{Model: core.Model{ID: 7}, FirstName: "Ann", InstitutionID: 1},
				people.Student{Model: core.Model{ID: 8}, FirstName: "Ben", InstitutionID: 1},
			),
		},
		nil,
		activeYears{1: {Model: core.Model{ID: 3}, Name: "2024", IsActive: true, InstitutionID: 1}},
	)
	return svc, reg
}

func TestService_SubmitAttendance(t *testing.T) {
	ctx := context.Background()
	date := core.DateFrom(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

	t.Run("no entries", func(t *testing.T) {
		svc, reg := newAttendanceService()
		_, err := svc.SubmitAttendance(ctx, orgScope, SubmitAttendance{Period: 1, Date: date})
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "%v", err)
		assert.Equal(t, ErrNoAttendance, verr.Err)
		assert.Empty(t, reg.lessons.Rows())
	})

	t.Run("period of another organization", func(t *testing.T) {
		svc, reg := newAttendanceService()
		_, err := svc.SubmitAttendance(ctx, orgScope, SubmitAttendance{
			Period: 2, Date: date, Student: 7, AttendanceGroup: present,
		})
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
		assert.EqualError(t, err, "Period not found.")
		assert.Empty(t, reg.lessons.Rows())
		assert.Empty(t, reg.attendances.Rows())
	})

	t.Run("resubmission replaces the attendance", func(t *testing.T) {
		svc, reg := newAttendanceService()
		got, err := svc.SubmitAttendance(ctx, orgScope, SubmitAttendance{
			Period: 1, Date: date,
			Attendances: []AttendanceEntry{{Student: 7, AttendanceGroup: present}, {Student: 8, AttendanceGroup: present}},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 3, got[0].AcademicYearID.Int)

		got, err = svc.SubmitAttendance(ctx, orgScope, SubmitAttendance{
			Period: 1, Date: date, Term: 2, Student: 7, AttendanceGroup: late,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].AttendanceGroup)
		assert.Equal(t, "Late", got[0].AttendanceGroup.Name)
		require.NotNil(t, got[0].Student)
		assert.Equal(t, "Ann", got[0].Student.FirstName)
		assert.Equal(t, 2, got[0].TermID.Int)

		assert.Len(t, reg.lessons.Rows(), 1)
		groups := make(map[int]int)
		for _, a := range reg.attendances.Rows() {
			groups[a.StudentID] = a.AttendanceGroupID
		}
		assert.Equal(t, map[int]int{7: late, 8: present}, groups)
	})

	t.Run("another date is another lesson", func(t *testing.T) {
		svc, reg := newAttendanceService()
		for _, d := range []core.Date{date, core.DateFrom(date.Time.AddDate(0, 0, 7))} {
			_, err := svc.SubmitAttendance(ctx, orgScope, SubmitAttendance{
				Period: 1, Date: d, Student: 7, AttendanceGroup: present,
			})
			require.NoError(t, err)
		}
		assert.Len(t, reg.lessons.Rows(), 2)
		assert.Len(t, reg.attendances.Rows(), 2)
	})
}
