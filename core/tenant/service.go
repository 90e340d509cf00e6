package tenant

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
)

var (
	ErrInvoicePaid          = errors.New("Invoice already paid")
	ErrOrganizationInactive = errors.New("Institution account not activated. Contact your administrator")
)

type (
	// Billing holds the invoice operations that go beyond plain CRUD.
	Billing interface {
		// NextDue locks one active organization whose next payment date is on or before day,
		// skipping organizations locked by a concurrent run. NotFound when none is left.
		NextDue(ctx context.Context, day time.Time, exec ...core.DBExecutor) (Organization, error)
		// Issue inserts the invoice of the organization's current cycle (a no-op when it exists)
		// and moves its next payment date to nextDate. Reports whether an invoice was created.
		Issue(ctx context.Context, org Organization, nextDate, today time.Time, exec ...core.DBExecutor) (bool, error)
		// Unpaid returns the oldest unpaid invoice of an organization.
		Unpaid(ctx context.Context, orgID int, exec ...core.DBExecutor) (Invoice, error)
		MarkPaid(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Stores struct {
		Organizations core.Store[Organization]
		Institutions  core.Store[Institution]
		Invoices      core.Store[Invoice]
		Billing       Billing
	}

	Service struct {
		Organizations *core.CRUD[Organization, Organization]
		Institutions  *core.CRUD[Institution, InstitutionRead]
		Invoices      *core.CRUD[Invoice, InvoiceRead]

		db      core.DB
		stores  Stores
		users   user.Service
		gateway core.PaymentGateway
	}
)

func NewService(db core.DB, stores Stores, users user.Service, gateway core.PaymentGateway) *Service {
	svc := &Service{
		Organizations: core.NewCRUD("Organization", stores.Organizations),
		db:            db,
		stores:        stores,
		users:         users,
		gateway:       gateway,
	}
	svc.Institutions = &core.CRUD[Institution, InstitutionRead]{
		Entity: "Institution",
		Store:  stores.Institutions,
		Prepare: func(_ context.Context, scope query.Scope, v *Institution, existing *Institution, _ core.DBExecutor) error {
			if existing != nil {
				v.OrganizationID = existing.OrganizationID
				return nil
			}
			return core.StampOrganization(scope, &v.OrganizationID)
		},
		Expand: svc.expandInstitutions,
	}
	svc.Invoices = &core.CRUD[Invoice, InvoiceRead]{
		Entity: "Invoice",
		Store:  stores.Invoices,
		Expand: svc.expandInvoices,
	}
	return svc
}

func (svc *Service) expandInstitutions(ctx context.Context, items []Institution) ([]InstitutionRead, error) {
	orgs, err := svc.stores.Organizations.GetMany(ctx, core.IDs(items, func(i Institution) int { return i.OrganizationID }))
	if err != nil {
		return nil, err
	}
	res := make([]InstitutionRead, len(items))
	for i, it := range items {
		res[i] = InstitutionRead{Institution: it, Organization: core.Ref(orgs, it.OrganizationID)}
	}
	return res, nil
}

func (svc *Service) expandInvoices(ctx context.Context, items []Invoice) ([]InvoiceRead, error) {
	orgs, err := svc.stores.Organizations.GetMany(ctx, core.IDs(items, func(i Invoice) int { return i.OrganizationID }))
	if err != nil {
		return nil, err
	}
	res := make([]InvoiceRead, len(items))
	for i, it := range items {
		res[i] = InvoiceRead{Invoice: it, Organization: core.Ref(orgs, it.OrganizationID)}
	}
	return res, nil
}

// CreateOrganization creates the organization, its administrator and its first invoice in one transaction.
func (svc *Service) CreateOrganization(ctx context.Context, no NewOrganization, today time.Time) (Organization, user.User, error) {
	var (
		org = no.Organization
		usr user.User
	)
	today = query.Day(today)
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		org.NextPaymentDate = core.DateFrom(today)
		if err := svc.stores.Organizations.Create(ctx, query.Global(), &org, tx); err != nil {
			return errors.Wrap(err, "inserting organization")
		}

		admin := no.Admin
		admin.Role = user.RoleAdmin
		admin.OrganizationID = org.ID
		var err error
		if usr, err = svc.users.Create(ctx, query.Global(), admin, tx); err != nil {
			return err
		}

		if _, err = svc.stores.Billing.Issue(ctx, org, AddMonths(today, org.PaymentFrequency), today, tx); err != nil {
			return errors.Wrap(err, "issuing first invoice")
		}
		org, err = svc.stores.Organizations.Get(ctx, query.Global(), org.ID, tx)
		return err
	})
	return org, usr, err
}

// CreateAdmin adds an administrator to the organization the scope designates.
func (svc *Service) CreateAdmin(ctx context.Context, scope query.Scope, na NewAdmin) (user.User, error) {
	if err := core.StampOrganization(scope, &na.OrganizationID); err != nil {
		return user.User{}, err
	}
	if _, err := svc.Organizations.Load(ctx, scope.Within(na.OrganizationID), na.OrganizationID); err != nil {
		return user.User{}, err
	}
	na.Role = user.RoleAdmin
	return svc.users.Create(ctx, query.Global(), na.NewUser)
}

// OrganizationStatus returns the organization of an authenticated user, or ErrOrganizationInactive.
func (svc *Service) OrganizationStatus(ctx context.Context, orgID int) (Organization, error) {
	org, err := svc.stores.Organizations.Get(ctx, query.Global(), orgID)
	if err != nil {
		return org, err
	}
	if !org.IsActive {
		return org, core.NewValidationError(ErrOrganizationInactive)
	}
	return org, nil
}

// UnpaidInvoice returns the oldest unpaid invoice of an organization, nil when all are paid.
func (svc *Service) UnpaidInvoice(ctx context.Context, orgID int) (*Invoice, error) {
	if orgID <= 0 {
		return nil, nil
	}
	inv, err := svc.stores.Billing.Unpaid(ctx, orgID)
	if core.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding unpaid invoice")
	}
	return &inv, nil
}

// PayInvoice charges the invoice amount on the card token and marks the invoice paid.
func (svc *Service) PayInvoice(ctx context.Context, scope query.Scope, data PayInvoice) (InvoiceRead, error) {
	inv, err := svc.Invoices.Load(ctx, scope, data.Invoice)
	if err != nil {
		return InvoiceRead{}, err
	}
	if inv.IsPaid {
		return InvoiceRead{}, core.NewValidationError(ErrInvoicePaid)
	}
	if _, err = svc.gateway.Charge(ctx, core.ChargeRequest{
		Token:         data.Token,
		AmountInCents: Cents(inv.Amount),
		Currency:      "ZAR",
	}); err != nil {
		return InvoiceRead{}, err
	}
	if err = svc.stores.Billing.MarkPaid(ctx, inv.ID); err != nil {
		return InvoiceRead{}, errors.Wrap(err, "marking invoice paid")
	}
	return svc.Invoices.Get(ctx, scope, inv.ID)
}

// GenerateInvoices issues the invoices of every organization due on or before today,
// one transaction per organization. Running it twice the same day creates nothing new.
func (svc *Service) GenerateInvoices(ctx context.Context, today time.Time) (int, error) {
	today = query.Day(today)
	var created int
	for {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		var done bool
		err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
			org, err := svc.stores.Billing.NextDue(ctx, today, tx)
			if core.IsNotFound(err) {
				done = true
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "locking due organization")
			}
			next := AddMonths(org.NextPaymentDate.Time, org.PaymentFrequency)
			ok, err := svc.stores.Billing.Issue(ctx, org, next, today, tx)
			if err != nil {
				return errors.Wrapf(err, "issuing invoice of organization %d", org.ID)
			}
			if ok {
				created++
			}
			return nil
		})
		if err != nil {
			return created, err
		}
		if done {
			return created, nil
		}
	}
}

// AddMonths moves d by n months, clamping to the last day of the target month (Jan 31 + 1 = Feb 28/29).
func AddMonths(d time.Time, n int) time.Time {
	if n < 1 {
		n = 1
	}
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// Cents converts an amount to integer cents.
func Cents(amount float64) int {
	return int(math.Round(amount * 100))
}
