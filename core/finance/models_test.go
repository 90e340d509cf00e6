package finance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeSnapshotsUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    ChargeSnapshots
		wantErr bool
	}{
		{name: "charge ids", body: `[1, 2]`, want: ChargeSnapshots{{ID: 1}, {ID: 2}}},
		{
			name: "snapshots",
			body: `[{"id": 3, "name": "Tuition", "price": 250, "charge_type": {"id": 7, "name": "Fees"}}]`,
			want: ChargeSnapshots{{ID: 3, Name: "Tuition", Price: 250, ChargeType: &ChargeTypeSnapshot{ID: 7, Name: "Fees"}}},
		},
		{name: "mixed", body: `[4, {"id": 5}]`, want: ChargeSnapshots{{ID: 4}, {ID: 5}}},
		{name: "empty", body: `[]`, want: ChargeSnapshots{}},
		{name: "not an array", body: `{"id": 1}`, wantErr: true},
		{name: "bad item", body: `["x"]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ChargeSnapshots
			err := json.Unmarshal([]byte(tt.body), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChargeSnapshotsColumn(t *testing.T) {
	v, err := ChargeSnapshots(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	snaps := ChargeSnapshots{Snapshot(Charge{Name: "Bus", Price: 30}, &ChargeType{Name: "Transport"})}
	v, err = snaps.Value()
	require.NoError(t, err)

	var back ChargeSnapshots
	require.NoError(t, back.Scan([]byte(v.(string))))
	assert.Equal(t, snaps, back)
}

func TestChargeSnapshotsOfType(t *testing.T) {
	snaps := ChargeSnapshots{
		{ID: 1, ChargeType: &ChargeTypeSnapshot{ID: 7}},
		{ID: 2},
		{ID: 3, ChargeType: &ChargeTypeSnapshot{ID: 8}},
		{ID: 4, ChargeType: &ChargeTypeSnapshot{ID: 7}},
	}
	assert.Equal(t, []int{1, 4}, snaps.OfType(7).IDs())
	assert.Empty(t, snaps.OfType(9))
	assert.Equal(t, []int{1, 2, 3, 4}, snaps.IDs())
}

func TestPaymentsListFilter(t *testing.T) {
	sql, args, err := PaymentsListFilter{ChargeType: "7", Term: "2"}.Where().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(charges @> ?::jsonb AND term_id = ?)", sql)
	assert.Equal(t, []interface{}{`[{"charge_type":{"id":7}}]`, 2}, args)

	sql, _, err = PaymentsListFilter{ChargeType: "seven"}.Where().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(1=0)", sql)

	sql, _, err = PaymentsListFilter{}.Where().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "((1=1) AND (1=1))", sql)
}

func TestPaymentFilter(t *testing.T) {
	sql, args, err := PaymentFilter{Search: "ann", Status: StatusPaid}.Where().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "student_id IN (SELECT id FROM students WHERE (first_name ILIKE ? OR last_name ILIKE ?))")
	assert.Contains(t, sql, "status = ?")
	assert.Equal(t, []interface{}{"%ann%", "%ann%", StatusPaid}, args)
}
