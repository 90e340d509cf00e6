package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/tenant"
	sqlxrepos "github.com/trezcool/askante/storage/database/sqlx"
	testutil "github.com/trezcool/askante/tests"
)

func TestGenerateInvoices(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	stores := sqlxrepos.NewTenantStores(db)
	svc := tenant.NewService(db, stores, nil, nil)

	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	due := tenant.Organization{
		Name: "Acme Schools", PaymentAmount: 250, PaymentFrequency: 1, IsActive: true,
		NextPaymentDate: core.DateFrom(jan1),
	}
	require.NoError(t, stores.Organizations.Create(ctx, query.Global(), &due))
	later := tenant.Organization{
		Name: "Later Schools", PaymentAmount: 100, PaymentFrequency: 1, IsActive: true,
		NextPaymentDate: core.DateFrom(jan1.AddDate(0, 0, 10)),
	}
	require.NoError(t, stores.Organizations.Create(ctx, query.Global(), &later))

	created, err := svc.GenerateInvoices(ctx, jan1.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	org, err := stores.Organizations.Get(ctx, query.Global(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", org.NextPaymentDate.String())
	assert.Equal(t, "2024-01-01", org.LastInvoiceGenerated.String())

	inv, err := stores.Billing.Unpaid(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, 250.0, inv.Amount)
	assert.Equal(t, "2024-01-01", inv.Date.String())

	// same day again: nothing new
	created, err = svc.GenerateInvoices(ctx, jan1)
	require.NoError(t, err)
	assert.Zero(t, created)
	count, err := stores.Invoices.Count(ctx, query.Global(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = stores.Billing.Unpaid(ctx, later.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestInstitutionIsolation(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	stores := sqlxrepos.NewTenantStores(db)

	orgs := make([]tenant.Organization, 2)
	for i, name := range []string{"Acme", "Globex"} {
		orgs[i] = tenant.NewOrganizationDefaults()
		orgs[i].Name = name
		require.NoError(t, stores.Organizations.Create(ctx, query.Global(), &orgs[i]))
	}
	acme := query.Scope{OrganizationID: orgs[0].ID}

	inst := tenant.Institution{Name: "Acme High", OrganizationID: orgs[0].ID}
	require.NoError(t, stores.Institutions.Create(ctx, acme, &inst))

	// referencing another tenant's organization
	foreign := tenant.Institution{Name: "Sneaky", OrganizationID: orgs[1].ID}
	err := stores.Institutions.Create(ctx, acme, &foreign)
	assert.True(t, core.IsNotFound(err), "%v", err)

	globex := query.Scope{OrganizationID: orgs[1].ID}
	_, err = stores.Institutions.Get(ctx, globex, inst.ID)
	assert.True(t, core.IsNotFound(err), "%v", err)
	assert.True(t, core.IsNotFound(stores.Institutions.Delete(ctx, globex, inst.ID)))

	rows, count, err := stores.Institutions.List(ctx, globex, core.ListParams{})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, rows)

	rows, count, err = stores.Institutions.List(ctx, acme, core.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "Acme High", rows[0].Name)
}
