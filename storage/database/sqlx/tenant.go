package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/tenant"
)

var InvoicesMeta = Meta{Entity: "Invoice", Table: "invoices", Scope: query.ByOrganization("organization_id")}

func NewTenantStores(db core.DB) tenant.Stores {
	return tenant.Stores{
		Organizations: NewStore(db, Table[tenant.Organization]{
			Meta: OrganizationsMeta,
			Columns: []string{
				"name", "payment_amount", "payment_frequency", "next_payment_date", "last_invoice_generated", "is_active",
			},
		}),
		Institutions: NewStore(db, Table[tenant.Institution]{
			Meta: InstitutionsMeta,
			Columns: []string{
				"name", "short_name", "type", "address", "city", "phone", "email", "website", "status", "province",
				"district", "organization_id",
			},
			Ordering: []core.DBOrdering{{Field: "name", Ascending: true}},
			Refs:     []Ref{{Column: "organization_id", To: OrganizationsMeta}},
		}),
		Invoices: NewStore(db, Table[tenant.Invoice]{
			Meta:     InvoicesMeta,
			Columns:  []string{"organization_id", "amount", "date", "is_paid"},
			Ordering: []core.DBOrdering{{Field: "date", Ascending: false}},
			Refs:     []Ref{{Column: "organization_id", To: OrganizationsMeta}},
		}),
		Billing: &billingRepository{db: db},
	}
}

type billingRepository struct {
	db core.DB
}

var _ tenant.Billing = (*billingRepository)(nil) // interface compliance check

func (repo *billingRepository) NextDue(ctx context.Context, day time.Time, exec ...core.DBExecutor) (tenant.Organization, error) {
	var org tenant.Organization
	q, args, err := psql.Select("*").From("organizations").
		Where(sq.Eq{"is_active": true}).
		Where(sq.LtOrEq{"next_payment_date": day.Format(core.DateLayout)}).
		OrderBy("next_payment_date", "id").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return org, errors.Wrap(err, "building due query")
	}
	if err = sqlx.GetContext(ctx, core.Exec(repo.db, exec), &org, q, args...); err != nil {
		if isNoRows(err) {
			return org, core.NewNotFoundError("Organization")
		}
		return org, errors.Wrap(err, "selecting due organization")
	}
	return org, nil
}

func (repo *billingRepository) Issue(ctx context.Context, org tenant.Organization, nextDate, today time.Time, exec ...core.DBExecutor) (bool, error) {
	dbx := core.Exec(repo.db, exec)
	cycle := org.NextPaymentDate
	if !cycle.Valid {
		cycle = core.DateFrom(today)
	}

	res, err := dbx.ExecContext(ctx,
		`INSERT INTO invoices (organization_id, amount, date) VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, date) DO NOTHING`,
		org.ID, org.PaymentAmount, cycle,
	)
	if err != nil {
		return false, errors.Wrap(err, "inserting invoice")
	}
	created, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting inserted invoices")
	}

	q, args, err := psql.Update("organizations").
		Set("next_payment_date", nextDate.Format(core.DateLayout)).
		Set("last_invoice_generated", today.Format(core.DateLayout)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": org.ID}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building organization update")
	}
	if _, err = dbx.ExecContext(ctx, q, args...); err != nil {
		return false, errors.Wrap(err, "advancing next payment date")
	}
	return created > 0, nil
}

func (repo *billingRepository) Unpaid(ctx context.Context, orgID int, exec ...core.DBExecutor) (tenant.Invoice, error) {
	var inv tenant.Invoice
	q, args, err := psql.Select("*").From("invoices").
		Where(sq.Eq{"organization_id": orgID, "is_paid": false}).
		OrderBy("date").
		Limit(1).
		ToSql()
	if err != nil {
		return inv, errors.Wrap(err, "building unpaid query")
	}
	if err = sqlx.GetContext(ctx, core.Exec(repo.db, exec), &inv, q, args...); err != nil {
		if isNoRows(err) {
			return inv, core.NewNotFoundError("Invoice")
		}
		return inv, errors.Wrap(err, "selecting unpaid invoice")
	}
	return inv, nil
}

func (repo *billingRepository) MarkPaid(ctx context.Context, id int, exec ...core.DBExecutor) error {
	q, args, err := psql.Update("invoices").
		Set("is_paid", true).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building invoice update")
	}
	_, err = core.Exec(repo.db, exec).ExecContext(ctx, q, args...)
	return errors.Wrap(err, "marking invoice paid")
}
