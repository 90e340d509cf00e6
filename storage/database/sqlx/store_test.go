package sqlxrepos

import (
	"context"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/tenant"
)

func institutionStore() *store[tenant.Institution] {
	return NewStore(nil, Table[tenant.Institution]{
		Meta:     InstitutionsMeta,
		Columns:  []string{"name", "organization_id"},
		Ordering: []core.DBOrdering{{Field: "name", Ascending: true}},
	}).(*store[tenant.Institution])
}

func TestStore_orderBy(t *testing.T) {
	s := institutionStore()

	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "default", want: []string{"name ASC", "id DESC"}},
		{name: "model column", ordering: []core.DBOrdering{{Field: "created_at"}}, want: []string{"created_at DESC", "id DESC"}},
		{
			name:     "unknown columns are dropped",
			ordering: []core.DBOrdering{{Field: "name; DROP TABLE users"}, {Field: "organization_id", Ascending: true}},
			want:     []string{"organization_id ASC", "id DESC"},
		},
		{name: "only unknown columns", ordering: []core.DBOrdering{{Field: "lol"}}, want: []string{"name ASC", "id DESC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.orderBy(tt.ordering))
		})
	}
}

func TestStore_selectScoped(t *testing.T) {
	s := institutionStore()

	sql, args, err := s.selectScoped(query.Scope{OrganizationID: 3}, sq.Eq{"name": "Acme"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT institutions.* FROM institutions WHERE organization_id = $1 AND name = $2", sql)
	assert.Equal(t, []interface{}{3, "Acme"}, args)

	sql, args, err = s.selectScoped(query.Global(), nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT institutions.* FROM institutions WHERE (1=1)", sql)
	assert.Empty(t, args)

	// a caller without organization sees nothing
	sql, _, err = s.selectScoped(query.Scope{UserID: 9}, nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT institutions.* FROM institutions WHERE (1=0)", sql)
}

func TestStore_Sum_unknownColumn(t *testing.T) {
	_, err := institutionStore().Sum(context.Background(), query.Global(), "amount); DROP TABLE users; --", nil)
	assert.EqualError(t, err, `institutions has no column "amount); DROP TABLE users; --"`)
}

func TestRefID(t *testing.T) {
	tests := []struct {
		name   string
		val    interface{}
		want   int64
		wantOk bool
	}{
		{name: "int", val: 4, want: 4, wantOk: true},
		{name: "zero int", val: 0},
		{name: "int64", val: int64(7), want: 7, wantOk: true},
		{name: "null int", val: null.IntFrom(5), want: 5, wantOk: true},
		{name: "invalid null int", val: null.Int{}},
		{name: "string", val: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := refID(tt.val)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrapUniqueErr(t *testing.T) {
	err := trapUniqueErr(errors.Wrap(&pq.Error{Code: uniqueViolation}, "inserting"), "Invoice", "inserting Invoice")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "%T", err)
	assert.Equal(t, "Invoice already exists", err.Error())

	err = trapUniqueErr(errors.New("boom"), "Invoice", "inserting Invoice")
	assert.EqualError(t, err, "inserting Invoice: boom")
}
