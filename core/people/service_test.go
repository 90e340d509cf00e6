package people

import (
	"context"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
)

func TestFilters(t *testing.T) {
	tests := []struct {
		name     string
		filter   interface{ Where() sq.Sqlizer }
		wantSql  string
		wantArgs []interface{}
	}{
		{
			"students by name and grade", StudentFilter{Search: "ann", Grade: "4"},
			"((first_name ILIKE ? OR last_name ILIKE ?) AND (1=1) AND (1=1) AND grade_id = ? AND (1=1) AND (1=1) AND (1=1))",
			[]interface{}{"%ann%", "%ann%", 4},
		},
		{
			"students by gender", StudentFilter{Gender: "Female"},
			"((1=1) AND (1=1) AND (1=1) AND (1=1) AND (1=1) AND LOWER(gender) = LOWER(?) AND (1=1))",
			[]interface{}{"Female"},
		},
		{"by student", ByStudentFilter{Student: "9"}, "student_id = ?", []interface{}{9}},
		{"by unknown employee", ByEmployeeFilter{Employee: "abc"}, "(1=0)", []interface{}{}},
		{
			"positions", EmploymentFilter{Search: "head", Status: "Active"},
			"(title ILIKE ? AND status = ?)", []interface{}{"%head%", "Active"},
		},
		{
			"archived teachers", EmployeeFilter{IsTeacher: "true", Archived: "false"},
			"((1=1) AND (1=1) AND (1=1) AND is_teacher = ? AND (1=1) AND archived = ? AND (1=1))",
			[]interface{}{true, false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.filter.Where().ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSql, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestService_ProfilesByUser(t *testing.T) {
	svc := NewService(nil, Stores{
		Students: inmemdb.NewStore("Student", func(s Student) int { return s.InstitutionID },
			Student{Model: core.Model{ID: 1}, FirstName: "Ann", InstitutionID: 1},
			Student{Model: core.Model{ID: 2}, FirstName: "Ben", InstitutionID: 2, UserID: null.IntFrom(42)},
		),
		Employees: inmemdb.NewStore("Employee", func(e Employee) int { return e.InstitutionID },
			Employee{Model: core.Model{ID: 5}, FirstName: "Joy", InstitutionID: 1, UserID: null.IntFrom(7)},
		),
	}, Loaders{}, nil, &core.Config{})
	ctx := context.Background()

	st, err := svc.StudentByUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ID)

	_, err = svc.StudentByUser(ctx, 7)
	assert.True(t, core.IsNotFound(err))

	emp, err := svc.EmployeeByUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Joy", emp.FirstName)

	_, err = svc.EmployeeByUser(ctx, 42)
	assert.True(t, core.IsNotFound(err))
}

func TestService_StudentsWithoutStudentID(t *testing.T) {
	store := inmemdb.NewStore("Student", func(s Student) int { return s.InstitutionID })
	svc := NewService(nil, Stores{Students: store, StudentTypes: inmemdb.NewStore[StudentType]("Student type", nil)}, Loaders{
		Institutions: inmemdb.NewStore[tenant.Institution]("Institution", nil),
		Grades:       inmemdb.NewStore[school.Grade]("Grade", nil),
	}, nil, &core.Config{})
	scope := query.Scope{UserID: 1, OrganizationID: 1}
	ctx := context.Background()

	for _, id := range []null.String{{}, null.StringFrom(""), null.StringFrom("  ")} {
		got, err := svc.Students.Create(ctx, scope, Student{FirstName: "Ann", LastName: "Doe", InstitutionID: 1, StudentID: id})
		require.NoError(t, err)
		assert.False(t, got.StudentID.Valid)
		assert.Equal(t, StatusEnrolled, got.Status)
	}
	assert.Len(t, store.Rows(), 3)
}
