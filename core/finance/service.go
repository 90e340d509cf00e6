package finance

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

type (
	Stores struct {
		ChargeTypes  core.Store[ChargeType]
		PaymentTypes core.Store[PaymentType]
		Charges      core.Store[Charge]
		Payments     core.Store[Payment]
	}

	Loaders struct {
		Students     core.Store[people.Student]
		Institutions core.Loader[tenant.Institution]
		Terms        core.Store[school.Term]
	}

	Service struct {
		ChargeTypes  *core.CRUD[ChargeType, ChargeType]
		PaymentTypes *core.CRUD[PaymentType, PaymentType]
		Charges      *core.CRUD[Charge, ChargeRead]
		Payments     *core.CRUD[Payment, PaymentRead]

		stores  Stores
		loaders Loaders
	}
)

func NewService(db core.DB, stores Stores, loaders Loaders) *Service {
	svc := &Service{
		ChargeTypes:  core.NewCRUD("Charge type", stores.ChargeTypes),
		PaymentTypes: core.NewCRUD("Payment type", stores.PaymentTypes),
		stores:       stores,
		loaders:      loaders,
	}
	svc.Charges = &core.CRUD[Charge, ChargeRead]{
		Entity: "Charge",
		Store:  stores.Charges,
		Prepare: func(_ context.Context, scope query.Scope, v, existing *Charge, _ core.DBExecutor) error {
			if existing != nil {
				v.OrganizationID = existing.OrganizationID
				return nil
			}
			if v.Status == "" {
				v.Status = "active"
			}
			return core.StampOrganization(scope, &v.OrganizationID)
		},
		Expand: svc.expandCharges,
	}
	svc.Payments = &core.CRUD[Payment, PaymentRead]{
		Entity:  "Payment",
		Store:   stores.Payments,
		DB:      db,
		Prepare: svc.preparePayment,
		Expand:  svc.expandPayments,
	}
	return svc
}

// preparePayment stamps the tenant and snapshots the charges a payment covers.
// Snapshots already recorded are kept as they are; only charges new to the payment are copied.
func (svc *Service) preparePayment(ctx context.Context, scope query.Scope, v, existing *Payment, tx core.DBExecutor) error {
	var recorded ChargeSnapshots
	if existing != nil {
		v.OrganizationID = existing.OrganizationID
		recorded = existing.Charges
	} else {
		if err := core.StampOrganization(scope, &v.OrganizationID); err != nil {
			return err
		}
		if v.Status == "" {
			v.Status = StatusDue
		}
		if !v.Date.Valid {
			v.Date = core.DateFrom(time.Now())
		}
	}

	st, err := svc.loaders.Students.Get(ctx, scope, v.StudentID, tx)
	if err != nil {
		return err
	}
	if v.InstitutionID == 0 {
		v.InstitutionID = st.InstitutionID
	}

	known := make(map[int]bool, len(recorded))
	for _, s := range recorded {
		known[s.ID] = true
	}
	fresh := make([]int, 0, len(v.Charges))
	for _, id := range v.Charges.IDs() {
		if !known[id] {
			fresh = append(fresh, id)
		}
	}
	snaps, err := svc.snapshot(ctx, scope, fresh, tx)
	if err != nil {
		return err
	}
	v.Charges = append(append(ChargeSnapshots{}, recorded...), snaps...)
	return nil
}

// snapshot copies the charges of the given ids, all of which must be visible in scope.
func (svc *Service) snapshot(ctx context.Context, scope query.Scope, ids []int, tx core.DBExecutor) (ChargeSnapshots, error) {
	res := make(ChargeSnapshots, 0, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	charges, _, err := svc.stores.Charges.List(ctx, scope, core.ListParams{Where: sq.Eq{"id": ids}, All: true}, tx)
	if err != nil {
		return nil, errors.Wrap(err, "listing charges")
	}
	if len(charges) != len(ids) {
		return nil, core.NewNotFoundError("Charge")
	}
	types, err := svc.stores.ChargeTypes.GetMany(ctx, core.IDs(charges, func(c Charge) int { return c.ChargeTypeID.Int }), tx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]Charge, len(charges))
	for _, c := range charges {
		byID[c.ID] = c
	}
	for _, id := range ids {
		c := byID[id]
		res = append(res, Snapshot(c, core.Ref(types, c.ChargeTypeID.Int)))
	}
	return res, nil
}

// PaymentsList lists the payments covering charges of a type, each trimmed to those charges.
func (svc *Service) PaymentsList(ctx context.Context, scope query.Scope, f PaymentsListFilter) ([]PaymentRead, error) {
	payments, _, err := svc.stores.Payments.List(ctx, scope, core.ListParams{Where: f.Where(), All: true})
	if err != nil {
		return nil, errors.Wrap(err, "listing payments")
	}
	if chargeType, ok := f.ChargeTypeID(); ok {
		kept := payments[:0]
		for _, p := range payments {
			if p.Charges = p.Charges.OfType(chargeType); len(p.Charges) > 0 {
				kept = append(kept, p)
			}
		}
		payments = kept
	}
	return svc.expandPayments(ctx, payments)
}

// MonthlyRevenue sums the payments of each month of a year.
func (svc *Service) MonthlyRevenue(ctx context.Context, scope query.Scope, year int) ([]MonthRevenue, error) {
	res := make([]MonthRevenue, 0, 12)
	for m := time.January; m <= time.December; m++ {
		sum, err := svc.stores.Payments.Sum(ctx, scope, "amount", query.InMonth("date", year, m))
		if err != nil {
			return nil, err
		}
		res = append(res, MonthRevenue{Month: m.String(), Revenue: sum})
	}
	return res, nil
}

// TermlyRevenue sums the payments of a year per term.
func (svc *Service) TermlyRevenue(ctx context.Context, scope query.Scope, year int) ([]TermRevenue, error) {
	terms, _, err := svc.loaders.Terms.List(ctx, scope, core.ListParams{
		Ordering: []core.DBOrdering{{Field: "id", Ascending: true}},
		All:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing terms")
	}
	res := make([]TermRevenue, 0, len(terms))
	for _, t := range terms {
		sum, err := svc.stores.Payments.Sum(ctx, scope, "amount", query.All(sq.Eq{"term_id": t.ID}, query.InYear("date", year)))
		if err != nil {
			return nil, err
		}
		res = append(res, TermRevenue{Term: t.Name, Revenue: sum})
	}
	return res, nil
}

func (svc *Service) expandCharges(ctx context.Context, items []Charge) ([]ChargeRead, error) {
	types, err := svc.stores.ChargeTypes.GetMany(ctx, core.IDs(items, func(c Charge) int { return c.ChargeTypeID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]ChargeRead, len(items))
	for i, it := range items {
		res[i] = ChargeRead{Charge: it, ChargeType: core.Ref(types, it.ChargeTypeID.Int)}
	}
	return res, nil
}

func (svc *Service) expandPayments(ctx context.Context, items []Payment) ([]PaymentRead, error) {
	students, err := svc.loaders.Students.GetMany(ctx, core.IDs(items, func(p Payment) int { return p.StudentID }))
	if err != nil {
		return nil, err
	}
	insts, err := svc.loaders.Institutions.GetMany(ctx, core.IDs(items, func(p Payment) int { return p.InstitutionID }))
	if err != nil {
		return nil, err
	}
	terms, err := svc.loaders.Terms.GetMany(ctx, core.IDs(items, func(p Payment) int { return p.TermID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]PaymentRead, len(items))
	for i, it := range items {
		res[i] = PaymentRead{
			Payment:     it,
			Student:     core.Ref(students, it.StudentID),
			Institution: core.Ref(insts, it.InstitutionID),
			Term:        core.Ref(terms, it.TermID.Int),
		}
	}
	return res, nil
}
