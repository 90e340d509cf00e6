package school

import (
	"context"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/tenant"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
)

var orgScope = query.Scope{UserID: 1, OrganizationID: 1}

// institution n belongs to organization n in the fixture
type academicYears struct {
	*inmemdb.Store[AcademicYear]
}

func (s academicYears) Activate(ctx context.Context, scope query.Scope, id int, _ ...core.DBExecutor) (AcademicYear, error) {
	ay, err := s.Get(ctx, scope, id)
	if err != nil {
		return ay, err
	}
	for _, other := range s.Rows() {
		if other.InstitutionID != ay.InstitutionID {
			continue
		}
		other.IsActive = other.ID == id
		if err = s.Update(ctx, query.Global(), &other); err != nil {
			return ay, err
		}
	}
	return s.Get(ctx, scope, id)
}

func (s academicYears) Active(ctx context.Context, institutionID int, _ ...core.DBExecutor) (AcademicYear, error) {
	return s.First(ctx, query.Global(), sq.Eq{"institution_id": institutionID, "is_active": true})
}

func newService(years ...AcademicYear) (*Service, academicYears) {
	ays := academicYears{inmemdb.NewStore("Academic year", func(a AcademicYear) int { return a.InstitutionID }, years...)}
	svc := NewService(
		Stores{
			Levels: inmemdb.NewStore[Level]("Level", nil,
				Level{Model: core.Model{ID: 1}, Name: "Primary"},
			),
			Grades:        inmemdb.NewStore[Grade]("Grade", nil),
			AcademicYears: ays,
		},
		inmemdb.NewStore("Institution", func(i tenant.Institution) int { return i.OrganizationID },
			tenant.Institution{Model: core.Model{ID: 1}, Name: "Acme High", OrganizationID: 1},
			tenant.Institution{Model: core.Model{ID: 2}, Name: "Other High", OrganizationID: 2},
		),
	)
	return svc, ays
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name     string
		filter   interface{ Where() sq.Sqlizer }
		wantSql  string
		wantArgs []interface{}
	}{
		{"name absent", NameFilter{}, "(1=1)", []interface{}{}},
		{"name", NameFilter{Search: "math"}, "name ILIKE ?", []interface{}{"%math%"}},
		{
			"grade by level", GradeFilter{Level: "3"},
			"((1=1) AND level_id = ? AND (1=1))", []interface{}{3},
		},
		{
			"grade malformed level", GradeFilter{Level: "x", Status: "Active"},
			"((1=1) AND (1=0) AND status = ?)", []interface{}{"Active"},
		},
		{
			"active years of an institution", AcademicYearFilter{Institution: "2", IsActive: "true"},
			"(institution_id = ? AND is_active = ?)", []interface{}{2, true},
		},
		{
			"room type ignores case", RoomFilter{Type: "Lab"},
			"((1=1) AND (1=1) AND LOWER(type) = LOWER(?) AND (1=1))", []interface{}{"Lab"},
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

func TestService_Grades(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	got, err := svc.Grades.Create(ctx, query.Global(), Grade{Name: "Grade 1", LevelID: null.IntFrom(1)})
	require.NoError(t, err)
	require.NotNil(t, got.Level)
	assert.Equal(t, "Primary", got.Level.Name)

	got, err = svc.Grades.Create(ctx, query.Global(), Grade{Name: "Orphan"})
	require.NoError(t, err)
	assert.Nil(t, got.Level)
}

func TestService_AcademicYears(t *testing.T) {
	ctx := context.Background()

	t.Run("created inactive", func(t *testing.T) {
		svc, _ := newService()
		got, err := svc.AcademicYears.Create(ctx, orgScope, AcademicYear{Name: "2024", IsActive: true, InstitutionID: 1})
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		require.NotNil(t, got.Institution)
		assert.Equal(t, "Acme High", got.Institution.Name)
	})

	t.Run("update keeps institution and active flag", func(t *testing.T) {
		existing := AcademicYear{Model: core.Model{ID: 1}, Name: "2024", IsActive: true, InstitutionID: 1}
		svc, _ := newService(existing)
		patch := existing
		patch.Name = "2024/25"
		patch.IsActive = false
		patch.InstitutionID = 2

		got, err := svc.AcademicYears.Update(ctx, orgScope, patch, existing)
		require.NoError(t, err)
		assert.Equal(t, "2024/25", got.Name)
		assert.True(t, got.IsActive)
		assert.Equal(t, 1, got.InstitutionID)
	})

	t.Run("activate", func(t *testing.T) {
		svc, ays := newService(
			AcademicYear{Model: core.Model{ID: 1}, Name: "2023", IsActive: true, InstitutionID: 1},
			AcademicYear{Model: core.Model{ID: 2}, Name: "2024", InstitutionID: 1},
			AcademicYear{Model: core.Model{ID: 3}, Name: "2024", IsActive: true, InstitutionID: 2},
		)
		got, err := svc.ActivateAcademicYear(ctx, orgScope, 2)
		require.NoError(t, err)
		assert.True(t, got.IsActive)

		active, err := svc.ActiveAcademicYear(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, 2, active.ID)

		// other institutions keep their own active year
		other, err := ays.Get(ctx, query.Global(), 3)
		require.NoError(t, err)
		assert.True(t, other.IsActive)
	})

	t.Run("activate outside the organization", func(t *testing.T) {
		svc, _ := newService(AcademicYear{Model: core.Model{ID: 1}, Name: "2024", InstitutionID: 2})
		_, err := svc.ActivateAcademicYear(ctx, orgScope, 1)
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
		assert.EqualError(t, err, core.NewNotFoundError("Academic year").Error())
	})

	t.Run("no active year", func(t *testing.T) {
		svc, _ := newService(AcademicYear{Model: core.Model{ID: 1}, Name: "2024", InstitutionID: 1})
		active, err := svc.ActiveAcademicYear(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, active)
	})
}
