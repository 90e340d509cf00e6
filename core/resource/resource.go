// Package resource shares teaching resources. Resources without an organization are public:
// every tenant reads them, only superusers write them.
package resource

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/user"
)

type Resource struct {
	core.Model
	Name           string   `db:"name" json:"name" validate:"required,max=250"`
	Description    string   `db:"description" json:"description"`
	ResourceURL    string   `db:"resource_url" json:"resource_url" validate:"omitempty,url"`
	GradeID        null.Int `db:"grade_id" json:"grade"`
	SubjectID      null.Int `db:"subject_id" json:"subject"`
	LevelID        null.Int `db:"level_id" json:"level"`
	Type           string   `db:"type" json:"type" validate:"omitempty,max=20"`
	Syllabus       string   `db:"syllabus" json:"syllabus" validate:"max=20"`
	PostedByID     null.Int `db:"posted_by_id" json:"posted_by"`
	OrganizationID null.Int `db:"organization_id" json:"organization"`
}

// Public reports whether every tenant may read the resource.
func (r Resource) Public() bool {
	return !r.OrganizationID.Valid
}

type ResourceRead struct {
	Resource
	Grade    *school.Grade   `json:"grade"`
	Subject  *school.Subject `json:"subject"`
	Level    *school.Level   `json:"level"`
	PostedBy *user.User      `json:"posted_by"`
}

type Filter struct {
	Search   string `query:"search"`
	Level    string `query:"level"`
	Type     string `query:"type"`
	Subject  string `query:"subject"`
	Syllabus string `query:"syllabus"`
	Grade    string `query:"grade"`
	PostedBy string `query:"posted_by"`
}

func (f Filter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name", "description"),
		query.ID("level_id", f.Level),
		query.Text("type", f.Type),
		query.ID("subject_id", f.Subject),
		query.Text("syllabus", f.Syllabus),
		query.ID("grade_id", f.Grade),
		query.ID("posted_by_id", f.PostedBy),
	)
}

type (
	Stores struct {
		Resources core.Store[Resource] // the caller's own resources
		Shared    core.Store[Resource] // own and public resources
	}

	Loaders struct {
		Grades   core.Loader[school.Grade]
		Subjects core.Loader[school.Subject]
		Levels   core.Loader[school.Level]
		Users    core.Loader[user.User]
	}

	Service struct {
		*core.CRUD[Resource, ResourceRead]

		loaders Loaders
	}
)

func NewService(stores Stores, loaders Loaders) *Service {
	svc := &Service{loaders: loaders}
	svc.CRUD = &core.CRUD[Resource, ResourceRead]{
		Entity:  "Resource",
		Store:   stores.Resources,
		Reader:  stores.Shared,
		Prepare: prepare,
		Expand:  svc.expand,
	}
	return svc
}

// prepare stamps the poster and the tenant of new resources.
// Superusers may leave the organization empty to publish a public resource.
func prepare(_ context.Context, scope query.Scope, v, existing *Resource, _ core.DBExecutor) error {
	if existing != nil {
		v.OrganizationID = existing.OrganizationID
		v.PostedByID = existing.PostedByID
		if existing.Public() && !scope.Superuser {
			return core.ErrForbidden
		}
		return nil
	}
	v.PostedByID = null.NewInt(scope.UserID, scope.UserID > 0)
	if v.Type == "" {
		v.Type = "other"
	}
	if scope.Superuser {
		return nil
	}
	if scope.OrganizationID <= 0 {
		return core.ErrForbidden
	}
	v.OrganizationID = null.IntFrom(scope.OrganizationID)
	return nil
}

func (svc *Service) expand(ctx context.Context, items []Resource) ([]ResourceRead, error) {
	grades, err := svc.loaders.Grades.GetMany(ctx, core.IDs(items, func(r Resource) int { return r.GradeID.Int }))
	if err != nil {
		return nil, err
	}
	subjects, err := svc.loaders.Subjects.GetMany(ctx, core.IDs(items, func(r Resource) int { return r.SubjectID.Int }))
	if err != nil {
		return nil, err
	}
	levels, err := svc.loaders.Levels.GetMany(ctx, core.IDs(items, func(r Resource) int { return r.LevelID.Int }))
	if err != nil {
		return nil, err
	}
	users, err := svc.loaders.Users.GetMany(ctx, core.IDs(items, func(r Resource) int { return r.PostedByID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]ResourceRead, len(items))
	for i, it := range items {
		res[i] = ResourceRead{
			Resource: it,
			Grade:    core.Ref(grades, it.GradeID.Int),
			Subject:  core.Ref(subjects, it.SubjectID.Int),
			Level:    core.Ref(levels, it.LevelID.Int),
			PostedBy: core.Ref(users, it.PostedByID.Int),
		}
	}
	return res, nil
}
