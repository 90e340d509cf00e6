package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope_Within(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		orgID int
		want  Scope
	}{
		{"no narrowing", Scope{UserID: 1, OrganizationID: 2}, 0, Scope{UserID: 1, OrganizationID: 2}},
		{"own organization", Scope{UserID: 1, OrganizationID: 2}, 2, Scope{UserID: 1, OrganizationID: 2}},
		{"foreign organization", Scope{UserID: 1, OrganizationID: 2}, 3, Scope{UserID: 1}},
		{"superuser picks any", Scope{UserID: 1, Superuser: true}, 3, Scope{UserID: 1, OrganizationID: 3}},
		{"superuser stays global", Scope{UserID: 1, Superuser: true}, 0, Scope{UserID: 1, Superuser: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Within(tt.orgID))
		})
	}
}

func TestScopeFuncs(t *testing.T) {
	member := Scope{UserID: 5, OrganizationID: 2}
	orphan := Scope{UserID: 6}
	publisher := Scope{UserID: 7, PublisherID: 9}

	tests := []struct {
		name     string
		fn       ScopeFunc
		scope    Scope
		wantSql  string
		wantArgs []interface{}
	}{
		{"org member", ByOrganization("organization_id"), member, "organization_id = ?", []interface{}{2}},
		{"org superuser", ByOrganization("organization_id"), Global(), "(1=1)", []interface{}{}},
		{"org orphan", ByOrganization("organization_id"), orphan, "(1=0)", []interface{}{}},
		{
			"institution member", ByInstitution("institution_id"), member,
			"institution_id IN (SELECT id FROM institutions WHERE organization_id = ?)", []interface{}{2},
		},
		{"institution orphan", ByInstitution("institution_id"), orphan, "(1=0)", []interface{}{}},
		{
			"two hops", Through("student_id", "students", ByInstitution("institution_id")), member,
			"student_id IN (SELECT id FROM students WHERE institution_id IN (SELECT id FROM institutions WHERE organization_id = ?))",
			[]interface{}{2},
		},
		{"publisher", ByPublisher("publisher_id"), publisher, "publisher_id = ?", []interface{}{9}},
		{"publisher of org user", ByPublisher("publisher_id"), member, "(1=0)", []interface{}{}},
		{"user", ByUser("user_id"), member, "user_id = ?", []interface{}{5}},
		{
			"any of", AnyOf(ByPublisher("publisher_id"), ByOrganization("organization_id")), member,
			"(organization_id = ?)", []interface{}{2},
		},
		{"any of nothing", AnyOf(ByPublisher("publisher_id")), member, "(1=0)", []interface{}{}},
		{"public", Public(), orphan, "(1=1)", []interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := toSql(t, tt.fn(tt.scope))
			assert.Equal(t, tt.wantSql, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
