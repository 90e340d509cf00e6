package sqlxrepos

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/resource"
)

// publicResources matches the resources published to every tenant.
func publicResources() query.ScopeFunc {
	return func(query.Scope) sq.Sqlizer { return sq.Eq{"organization_id": nil} }
}

func NewResourceStores(db core.DB) resource.Stores {
	t := Table[resource.Resource]{
		Meta: Meta{Entity: "Resource", Table: "resources", Scope: query.ByOrganization("organization_id")},
		Columns: []string{
			"name", "description", "resource_url", "grade_id", "subject_id", "level_id", "type", "syllabus",
			"posted_by_id", "organization_id",
		},
		Refs: []Ref{
			{Column: "grade_id", To: GradesMeta},
			{Column: "subject_id", To: SubjectsMeta},
			{Column: "level_id", To: LevelsMeta},
			{Column: "organization_id", To: OrganizationsMeta},
		},
	}
	shared := t
	shared.Scope = query.AnyOf(query.ByOrganization("organization_id"), publicResources())
	return resource.Stores{
		Resources: NewStore(db, t),
		Shared:    NewStore(db, shared),
	}
}
