package sqlxrepos

import (
	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/events"
	"github.com/trezcool/askante/core/query"
)

var (
	ActivitiesMeta         = Meta{Entity: "Activity", Table: "activities", Scope: query.ByInstitution("institution_id")}
	AgeGroupsMeta          = Meta{Entity: "Age group", Table: "age_groups", Scope: query.ByInstitution("institution_id")}
	AgeGroupActivitiesMeta = Meta{Entity: "Age group activity", Table: "age_group_activities", Scope: query.ByInstitution("institution_id")}
)

func NewEventStores(db core.DB) events.Stores {
	instRef := Ref{Column: "institution_id", To: InstitutionsMeta}
	return events.Stores{
		Events: NewStore(db, Table[events.Event]{
			Meta: Meta{Entity: "Event", Table: "events", Scope: query.ByOrganization("organization_id")},
			Columns: []string{
				"title", "description", "date", "type", "term_id", "start_time", "end_time", "organization_id",
			},
			Ordering: []core.DBOrdering{{Field: "date", Ascending: false}, {Field: "id", Ascending: false}},
			Refs: []Ref{
				{Column: "term_id", To: TermsMeta},
				{Column: "organization_id", To: OrganizationsMeta},
			},
		}),
		Activities: NewStore(db, Table[events.Activity]{
			Meta:     ActivitiesMeta,
			Columns:  []string{"name", "short_name", "color", "status", "institution_id"},
			Ordering: nameOrdering,
			Refs:     []Ref{instRef},
		}),
		AgeGroups: NewStore(db, Table[events.AgeGroup]{
			Meta: AgeGroupsMeta,
			Columns: []string{
				"name", "short_name", "grade_id", "color", "max_period_per_day", "class_teacher_id", "institution_id",
			},
			Ordering: nameOrdering,
			Refs: []Ref{
				{Column: "grade_id", To: GradesMeta},
				{Column: "class_teacher_id", To: EmployeesMeta},
				instRef,
			},
		}),
		AgeGroupStudents: NewMembership(db, Membership{
			Table:   "age_group_students",
			Owner:   AgeGroupsMeta,
			OwnerC:  "age_group_id",
			Member:  StudentsMeta,
			MemberC: "student_id",
			Same:    "institution_id",
		}),
		AgeGroupActivities: NewStore(db, Table[events.AgeGroupActivity]{
			Meta:    AgeGroupActivitiesMeta,
			Columns: []string{"age_group_id", "activity_id", "teacher_id", "institution_id"},
			Refs: []Ref{
				{Column: "age_group_id", To: AgeGroupsMeta},
				{Column: "activity_id", To: ActivitiesMeta},
				{Column: "teacher_id", To: EmployeesMeta},
				instRef,
			},
		}),
		ActivityPeriods: NewStore(db, Table[events.ActivityPeriod]{
			Meta: Meta{
				Entity: "Activity period",
				Table:  "activity_periods",
				Scope:  query.Through("age_group_activity_id", "age_group_activities", AgeGroupActivitiesMeta.Scope),
			},
			Columns:  []string{"age_group_activity_id", "day", "period", "start_time", "end_time"},
			Ordering: []core.DBOrdering{{Field: "day", Ascending: true}, {Field: "start_time", Ascending: true}},
			Refs:     []Ref{{Column: "age_group_activity_id", To: AgeGroupActivitiesMeta}},
		}),
	}
}
