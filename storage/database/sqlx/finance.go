package sqlxrepos

import (
	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/finance"
	"github.com/trezcool/askante/core/query"
)

var (
	ChargeTypesMeta = Meta{Entity: "Charge type", Table: "charge_types", Scope: query.Public()}
	ChargesMeta     = Meta{Entity: "Charge", Table: "charges", Scope: query.ByOrganization("organization_id")}
	PaymentsMeta    = Meta{Entity: "Payment", Table: "payments", Scope: query.ByOrganization("organization_id")}
)

func NewFinanceStores(db core.DB) finance.Stores {
	orgRef := Ref{Column: "organization_id", To: OrganizationsMeta}
	return finance.Stores{
		ChargeTypes: NewStore(db, Table[finance.ChargeType]{
			Meta:     ChargeTypesMeta,
			Columns:  []string{"name", "color", "status"},
			Ordering: nameOrdering,
		}),
		PaymentTypes: NewStore(db, Table[finance.PaymentType]{
			Meta:     Meta{Entity: "Payment type", Table: "payment_types", Scope: query.Public()},
			Columns:  []string{"name", "color", "status"},
			Ordering: nameOrdering,
		}),
		Charges: NewStore(db, Table[finance.Charge]{
			Meta:     ChargesMeta,
			Columns:  []string{"charge_type_id", "name", "status", "price", "organization_id"},
			Ordering: nameOrdering,
			Refs:     []Ref{{Column: "charge_type_id", To: ChargeTypesMeta}, orgRef},
		}),
		Payments: NewStore(db, Table[finance.Payment]{
			Meta: PaymentsMeta,
			Columns: []string{
				"student_id", "institution_id", "charges", "amount", "date", "notes", "status", "term_id", "organization_id",
			},
			Refs: []Ref{
				{Column: "student_id", To: StudentsMeta},
				{Column: "institution_id", To: InstitutionsMeta},
				{Column: "term_id", To: TermsMeta},
				orgRef,
			},
		}),
	}
}
