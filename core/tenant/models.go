package tenant

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
)

// Organization is the tenant root: it owns institutions, users, payments and invoices.
type Organization struct {
	core.Model
	Name                 string    `db:"name" json:"name" validate:"required,max=250"`
	PaymentAmount        float64   `db:"payment_amount" json:"payment_amount" validate:"gte=0"`
	PaymentFrequency     int       `db:"payment_frequency" json:"payment_frequency" validate:"gte=1"`
	NextPaymentDate      core.Date `db:"next_payment_date" json:"next_payment_date"`
	LastInvoiceGenerated core.Date `db:"last_invoice_generated" json:"last_invoice_generated"`
	IsActive             bool      `db:"is_active" json:"is_active"`
}

// NewOrganizationDefaults returns an organization carrying the column defaults.
func NewOrganizationDefaults() Organization {
	return Organization{PaymentAmount: 100, PaymentFrequency: 1, IsActive: true}
}

// NewOrganization creates an organization together with its first administrator.
type NewOrganization struct {
	Organization
	Admin user.NewUser `json:"admin"`
}

func (no *NewOrganization) Validate(validate *validator.Validate) error {
	no.Name = core.CleanString(no.Name)
	no.Admin.Role = user.RoleAdmin
	no.Admin.SpecialRole = ""
	no.Admin.Username = core.CleanString(no.Admin.Username, true /* lower */)
	no.Admin.Email = core.CleanString(no.Admin.Email, true /* lower */)
	return validate.Struct(no)
}

// NewAdmin adds an administrator to an existing organization.
type NewAdmin struct {
	user.NewUser
}

func (na *NewAdmin) Validate(validate *validator.Validate) error {
	na.Role = user.RoleAdmin
	na.SpecialRole = ""
	return na.NewUser.Validate(validate)
}

type Institution struct {
	core.Model
	Name           string `db:"name" json:"name" validate:"required,max=250"`
	ShortName      string `db:"short_name" json:"short_name" validate:"max=50"`
	Type           string `db:"type" json:"type"`
	Address        string `db:"address" json:"address"`
	City           string `db:"city" json:"city"`
	Phone          string `db:"phone" json:"phone"`
	Email          string `db:"email" json:"email" validate:"omitempty,email"`
	Website        string `db:"website" json:"website"`
	Status         string `db:"status" json:"status"`
	Province       string `db:"province" json:"province"`
	District       string `db:"district" json:"district"`
	OrganizationID int    `db:"organization_id" json:"organization"`
}

// InstitutionRead inlines the owning organization.
type InstitutionRead struct {
	Institution
	Organization *Organization `json:"organization"`
}

type Invoice struct {
	core.Model
	OrganizationID int       `db:"organization_id" json:"organization"`
	Amount         float64   `db:"amount" json:"amount"`
	Date           core.Date `db:"date" json:"date"`
	IsPaid         bool      `db:"is_paid" json:"is_paid"`
}

type InvoiceRead struct {
	Invoice
	Organization *Organization `json:"organization"`
}

// PayInvoice is a card payment of an invoice through the payment gateway.
type PayInvoice struct {
	Invoice int    `json:"invoice" validate:"required"`
	Token   string `json:"token" validate:"required"`
}

// OrganizationFilter is the superuser listing of organizations, matched through their institutions.
type OrganizationFilter struct {
	Search   string `query:"search"`
	District string `query:"district"`
	Province string `query:"province"`
	Type     string `query:"type"`
	IsActive string `query:"is_active"`
}

func (f OrganizationFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name"),
		query.SubSelect("id", "institutions", "organization_id", query.Contains("district", f.District)),
		query.SubSelect("id", "institutions", "organization_id", query.Contains("province", f.Province)),
		query.SubSelect("id", "institutions", "organization_id", query.IExact("type", f.Type)),
		query.Bool("is_active", f.IsActive),
	)
}

type InstitutionFilter struct {
	Search       string `query:"search"`
	Organization string `query:"organization"`
	District     string `query:"district"`
	Province     string `query:"province"`
	Type         string `query:"type"`
}

func (f InstitutionFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name", "short_name", "city"),
		query.ID("organization_id", f.Organization),
		query.Contains("district", f.District),
		query.Contains("province", f.Province),
		query.IExact("type", f.Type),
	)
}

type InvoiceFilter struct {
	Organization string `query:"organization"`
	IsPaid       string `query:"is_paid"`
	Start        string `query:"start"`
	End          string `query:"end"`
}

func (f InvoiceFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("organization_id", f.Organization),
		query.Bool("is_paid", f.IsPaid),
		query.DateRange("date", f.Start, f.End),
	)
}
