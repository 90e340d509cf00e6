package sqlxrepos

import (
	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/fundamentals"
	"github.com/trezcool/askante/core/query"
)

// NewZarRateStore stores the daily exchange rates, shared by every tenant.
func NewZarRateStore(db core.DB) core.Store[fundamentals.ZarRate] {
	return NewStore(db, Table[fundamentals.ZarRate]{
		Meta:     Meta{Entity: "ZAR rate", Table: "zar_rates", Scope: query.Public()},
		Columns:  []string{"date", "rate"},
		Ordering: []core.DBOrdering{{Field: "date", Ascending: false}},
	})
}
