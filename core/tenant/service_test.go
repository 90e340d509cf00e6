package tenant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/askante/core/query"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{name: "one month", from: date(2024, 1, 1), months: 1, want: date(2024, 2, 1)},
		{name: "quarter", from: date(2024, 1, 15), months: 3, want: date(2024, 4, 15)},
		{name: "year rollover", from: date(2024, 12, 10), months: 1, want: date(2025, 1, 10)},
		{name: "clamped to leap february", from: date(2024, 1, 31), months: 1, want: date(2024, 2, 29)},
		{name: "clamped to february", from: date(2023, 1, 31), months: 1, want: date(2023, 2, 28)},
		{name: "zero frequency counts as monthly", from: date(2024, 5, 5), months: 0, want: date(2024, 6, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.from, tt.months))
		})
	}
}

func TestCents(t *testing.T) {
	assert.Equal(t, 10000, Cents(100))
	assert.Equal(t, 1999, Cents(19.99))
	assert.Equal(t, 0, Cents(0))
}

func TestFilters(t *testing.T) {
	sql, args, err := OrganizationFilter{Search: "acme", Province: "Gauteng"}.Where().ToSql()
	assert.NoError(t, err)
	assert.Equal(t,
		"((name ILIKE ?) AND (1=1) AND "+
			"id IN (SELECT organization_id FROM institutions WHERE province ILIKE ?) AND (1=1) AND (1=1))",
		sql,
	)
	assert.Equal(t, []interface{}{"%acme%", "%Gauteng%"}, args)

	sql, args, err = InvoiceFilter{IsPaid: "false"}.Where().ToSql()
	assert.NoError(t, err)
	assert.Equal(t, "((1=1) AND is_paid = ? AND (1=1))", sql)
	assert.Equal(t, []interface{}{false}, args)
	assert.True(t, query.IsIdentity(InvoiceFilter{}.Where()))
}
