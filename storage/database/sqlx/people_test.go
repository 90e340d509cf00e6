package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/tenant"
	sqlxrepos "github.com/trezcool/askante/storage/database/sqlx"
	testutil "github.com/trezcool/askante/tests"
)

// createOrganization inserts an organization with one institution.
func createOrganization(t *testing.T, stores tenant.Stores, name string) (query.Scope, tenant.Institution) {
	t.Helper()
	ctx := context.Background()
	org := tenant.NewOrganizationDefaults()
	org.Name = name
	require.NoError(t, stores.Organizations.Create(ctx, query.Global(), &org))
	scope := query.Scope{OrganizationID: org.ID}
	inst := tenant.Institution{Name: name + " High", OrganizationID: org.ID}
	require.NoError(t, stores.Institutions.Create(ctx, scope, &inst))
	return scope, inst
}

func TestStudentIDUniqueness(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	tenants := sqlxrepos.NewTenantStores(db)
	stores := sqlxrepos.NewPeopleStores(db)
	svc := people.NewService(db, stores, people.Loaders{
		Institutions: tenants.Institutions,
		Grades:       sqlxrepos.NewSchoolStores(db).Grades,
	}, nil, &core.Config{})

	acme, acmeHigh := createOrganization(t, tenants, "Acme")
	globex, globexHigh := createOrganization(t, tenants, "Globex")

	newStudent := func(name, studentID string, inst int) people.Student {
		st := people.Student{FirstName: name, LastName: "Doe", InstitutionID: inst}
		if studentID != "" {
			st.StudentID = null.StringFrom(studentID)
		}
		return st
	}

	// no student_id: any number of them
	for _, name := range []string{"Ann", "Ben"} {
		got, err := svc.Students.Create(ctx, acme, newStudent(name, "", acmeHigh.ID))
		require.NoError(t, err)
		assert.False(t, got.StudentID.Valid)
	}
	got, err := svc.Students.Create(ctx, acme, people.Student{
		FirstName: "Cid", LastName: "Doe", InstitutionID: acmeHigh.ID, StudentID: null.StringFrom("  "),
	})
	require.NoError(t, err)
	assert.False(t, got.StudentID.Valid, "blank student_id is stored as NULL")

	first, err := svc.Students.Create(ctx, acme, newStudent("Dan", "S-001", acmeHigh.ID))
	require.NoError(t, err)

	_, err = svc.Students.Create(ctx, acme, newStudent("Eve", "S-001", acmeHigh.ID))
	require.Error(t, err)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "%T", err)
	assert.Equal(t, people.ErrStudentIDExists, verr.Err)

	// another organization may reuse the id
	_, err = svc.Students.Create(ctx, globex, newStudent("Fay", "S-001", globexHigh.ID))
	require.NoError(t, err)

	// updating a student keeps its own id
	patch := first.Student
	patch.FirstName = "Daniel"
	updated, err := svc.Students.Update(ctx, acme, patch, first.Student)
	require.NoError(t, err)
	assert.Equal(t, "S-001", updated.StudentID.String)

	count, err := stores.Students.Count(ctx, acme, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestEmployeeIDUniqueness(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	tenants := sqlxrepos.NewTenantStores(db)
	svc := people.NewService(db, sqlxrepos.NewPeopleStores(db), people.Loaders{Institutions: tenants.Institutions}, nil, &core.Config{})

	acme, inst := createOrganization(t, tenants, "Acme")

	for _, name := range []string{"Joy", "Kim"} {
		_, err := svc.Employees.Create(ctx, acme, people.Employee{FirstName: name, LastName: "Roe", InstitutionID: inst.ID})
		require.NoError(t, err)
	}

	emp := people.Employee{FirstName: "Lou", LastName: "Roe", InstitutionID: inst.ID, EmployeeID: null.StringFrom("E-1")}
	_, err := svc.Employees.Create(ctx, acme, emp)
	require.NoError(t, err)

	emp.FirstName = "Max"
	_, err = svc.Employees.Create(ctx, acme, emp)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "%v", err)
	assert.Equal(t, people.ErrEmployeeIDExists, verr.Err)
}
