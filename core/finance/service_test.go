package finance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
)

type fixture struct {
	svc      *Service
	charges  *inmemdb.Store[Charge]
	payments *inmemdb.Store[Payment]
}

func newFixture() fixture {
	model := func(id int) core.Model { return core.Model{ID: id} }
	charges := inmemdb.NewStore("Charge", func(c Charge) int { return c.OrganizationID },
		Charge{Model: model(1), Name: "Tuition", Price: 100, ChargeTypeID: null.IntFrom(1), OrganizationID: 1},
		Charge{Model: model(2), Name: "Bus", Price: 20, ChargeTypeID: null.IntFrom(2), OrganizationID: 1},
		Charge{Model: model(3), Name: "Uniform", Price: 35, OrganizationID: 1},
		Charge{Model: model(4), Name: "Other school fees", Price: 80, OrganizationID: 2},
	)
	payments := inmemdb.NewStore("Payment", func(p Payment) int { return p.OrganizationID })
	students := inmemdb.NewStore("Student", func(s people.Student) int { return s.InstitutionID },
		people.Student{Model: model(1), FirstName: "Ann", InstitutionID: 1},
		people.Student{Model: model(2), FirstName: "Bob", InstitutionID: 2},
	)
	stores := Stores{
		ChargeTypes: inmemdb.NewStore[ChargeType]("Charge type", nil,
			ChargeType{Model: model(1), Name: "Fees"},
			ChargeType{Model: model(2), Name: "Transport"},
		),
		PaymentTypes: inmemdb.NewStore[PaymentType]("Payment type", nil),
		Charges:      charges,
		Payments:     payments,
	}
	loaders := Loaders{
		Students:     students,
		Institutions: inmemdb.NewStore[tenant.Institution]("Institution", nil),
		Terms:        inmemdb.NewStore[school.Term]("Term", nil),
	}
	return fixture{svc: NewService(nil, stores, loaders), charges: charges, payments: payments}
}

// students of institution n belong to organization n in the fixture
var orgScope = query.Scope{UserID: 1, OrganizationID: 1}

func TestCreatePaymentSnapshotsCharges(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	p, err := fx.svc.Payments.Create(ctx, orgScope, Payment{
		StudentID: 1, Amount: 120, Charges: ChargeSnapshots{{ID: 1}, {ID: 2}, {ID: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.OrganizationID)
	assert.Equal(t, 1, p.InstitutionID)
	assert.Equal(t, StatusDue, p.Status)
	assert.True(t, p.Date.Valid)
	require.Len(t, p.Charges, 2)
	assert.Equal(t, ChargeSnapshot{
		ID: 1, Name: "Tuition", Price: 100, ChargeType: &ChargeTypeSnapshot{ID: 1, Name: "Fees"},
	}, p.Charges[0])
	assert.Equal(t, "Transport", p.Charges[1].ChargeType.Name)
	require.NotNil(t, p.Student)
	assert.Equal(t, "Ann", p.Student.FirstName)
}

func TestUpdatePaymentKeepsRecordedSnapshots(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	created, err := fx.svc.Payments.Create(ctx, orgScope, Payment{StudentID: 1, Charges: ChargeSnapshots{{ID: 1}}})
	require.NoError(t, err)

	charge, err := fx.charges.Get(ctx, orgScope, 1)
	require.NoError(t, err)
	charge.Price = 999
	require.NoError(t, fx.charges.Update(ctx, orgScope, &charge))

	existing, err := fx.svc.Payments.Load(ctx, orgScope, created.ID)
	require.NoError(t, err)
	patch := existing
	patch.Charges = ChargeSnapshots{{ID: 1}, {ID: 3}}
	patch.Notes = "second instalment"
	updated, err := fx.svc.Payments.Update(ctx, orgScope, patch, existing)
	require.NoError(t, err)

	require.Len(t, updated.Charges, 2)
	assert.Equal(t, 100.0, updated.Charges[0].Price)
	assert.Equal(t, "Uniform", updated.Charges[1].Name)
	assert.Nil(t, updated.Charges[1].ChargeType)
	assert.Equal(t, "second instalment", updated.Notes)
}

func TestCreatePaymentOutOfScope(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	_, err := fx.svc.Payments.Create(ctx, orgScope, Payment{StudentID: 1, Charges: ChargeSnapshots{{ID: 4}}})
	assert.True(t, core.IsNotFound(err))

	_, err = fx.svc.Payments.Create(ctx, orgScope, Payment{StudentID: 2})
	assert.True(t, core.IsNotFound(err))

	assert.Empty(t, fx.payments.Rows())
}

func TestPaymentsList(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	for _, charges := range []ChargeSnapshots{{{ID: 1}, {ID: 2}}, {{ID: 3}}} {
		_, err := fx.svc.Payments.Create(ctx, orgScope, Payment{StudentID: 1, Charges: charges})
		require.NoError(t, err)
	}
	all, err := fx.svc.PaymentsList(ctx, orgScope, PaymentsListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	other, err := fx.svc.PaymentsList(ctx, query.Scope{UserID: 9, OrganizationID: 2}, PaymentsListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
