package events

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

var (
	ErrEndBeforeStart = errors.New("end must be later than start")
	ErrNotTeacher     = errors.New("the employee is not a teacher")
)

type (
	Stores struct {
		Events             core.Store[Event]
		Activities         core.Store[Activity]
		AgeGroups          core.Store[AgeGroup]
		AgeGroupStudents   core.Membership
		AgeGroupActivities core.Store[AgeGroupActivity]
		ActivityPeriods    core.Store[ActivityPeriod]
	}

	Loaders struct {
		Terms        core.Loader[school.Term]
		Grades       core.Loader[school.Grade]
		Institutions core.Loader[tenant.Institution]
		Employees    core.Store[people.Employee]
		Students     core.Store[people.Student]
	}

	Service struct {
		Events             *core.CRUD[Event, EventRead]
		Activities         *core.CRUD[Activity, Activity]
		AgeGroups          *core.CRUD[AgeGroup, AgeGroupRead]
		AgeGroupActivities *core.CRUD[AgeGroupActivity, AgeGroupActivityRead]
		ActivityPeriods    *core.CRUD[ActivityPeriod, ActivityPeriodRead]

		stores  Stores
		loaders Loaders
	}
)

func NewService(db core.DB, stores Stores, loaders Loaders) *Service {
	svc := &Service{
		Activities: core.NewCRUD("Activity", stores.Activities),
		stores:     stores,
		loaders:    loaders,
	}
	svc.Events = &core.CRUD[Event, EventRead]{
		Entity: "Event",
		Store:  stores.Events,
		Prepare: func(_ context.Context, scope query.Scope, v, existing *Event, _ core.DBExecutor) error {
			if v.Start.Valid && v.End.Valid && !v.Start.Before(v.End) {
				return endBeforeStart()
			}
			if v.Type == "" {
				v.Type = TypeOther
			}
			if existing != nil {
				v.OrganizationID = existing.OrganizationID
				return nil
			}
			return core.StampOrganization(scope, &v.OrganizationID)
		},
		Expand: svc.expandEvents,
	}
	svc.AgeGroups = &core.CRUD[AgeGroup, AgeGroupRead]{
		Entity: "Age group",
		Store:  stores.AgeGroups,
		DB:     db,
		Prepare: func(ctx context.Context, scope query.Scope, v, _ *AgeGroup, tx core.DBExecutor) error {
			return svc.checkTeacher(ctx, scope, "class_teacher", v.ClassTeacherID, tx)
		},
		Expand: svc.expandAgeGroups,
	}
	svc.AgeGroupActivities = &core.CRUD[AgeGroupActivity, AgeGroupActivityRead]{
		Entity:  "Age group activity",
		Store:   stores.AgeGroupActivities,
		DB:      db,
		Prepare: svc.prepareAgeGroupActivity,
		Expand:  svc.expandAgeGroupActivities,
	}
	svc.ActivityPeriods = &core.CRUD[ActivityPeriod, ActivityPeriodRead]{
		Entity: "Activity period",
		Store:  stores.ActivityPeriods,
		Prepare: func(_ context.Context, _ query.Scope, v, _ *ActivityPeriod, _ core.DBExecutor) error {
			if !v.Start.Before(v.End) {
				return endBeforeStart()
			}
			return nil
		},
		Expand: svc.expandActivityPeriods,
	}
	return svc
}

func endBeforeStart() error {
	return core.NewValidationError(ErrEndBeforeStart, core.FieldError{Field: "end", Error: ErrEndBeforeStart.Error()})
}

// checkTeacher accepts an empty employee reference or a visible employee who teaches.
func (svc *Service) checkTeacher(ctx context.Context, scope query.Scope, field string, employeeID null.Int, tx core.DBExecutor) error {
	if !employeeID.Valid || employeeID.Int == 0 {
		return nil
	}
	emp, err := svc.loaders.Employees.Get(ctx, scope, employeeID.Int, tx)
	if err != nil {
		return err
	}
	if !emp.IsTeacher {
		return core.NewValidationError(ErrNotTeacher, core.FieldError{Field: field, Error: ErrNotTeacher.Error()})
	}
	return nil
}

// prepareAgeGroupActivity attaches the activity to the institution of its age group.
func (svc *Service) prepareAgeGroupActivity(ctx context.Context, scope query.Scope, v, _ *AgeGroupActivity, tx core.DBExecutor) error {
	group, err := svc.stores.AgeGroups.Get(ctx, scope, v.AgeGroupID, tx)
	if err != nil {
		return err
	}
	v.InstitutionID = group.InstitutionID
	return svc.checkTeacher(ctx, scope, "teacher", v.TeacherID, tx)
}

// AddAgeGroupStudents enrolls students of the age group's institution; it returns how many were new.
func (svc *Service) AddAgeGroupStudents(ctx context.Context, scope query.Scope, m AgeGroupMembers) (int, error) {
	return svc.stores.AgeGroupStudents.Add(ctx, scope, m.AgeGroup, m.Students)
}

func (svc *Service) RemoveAgeGroupStudent(ctx context.Context, scope query.Scope, m AgeGroupMember) error {
	return svc.stores.AgeGroupStudents.Remove(ctx, scope, m.AgeGroup, m.Student)
}

// AgeGroupStudents lists the students of a visible age group.
func (svc *Service) AgeGroupStudents(ctx context.Context, scope query.Scope, f AgeGroupStudentsFilter, params core.ListParams) (core.Page[people.Student], error) {
	id, _ := strconv.Atoi(strings.TrimSpace(f.AgeGroup))
	if _, err := svc.AgeGroups.Load(ctx, scope, id); err != nil {
		return core.Page[people.Student]{}, err
	}
	params.Where = f.Where()
	rows, count, err := svc.loaders.Students.List(ctx, scope, params)
	if err != nil {
		return core.Page[people.Student]{}, errors.Wrap(err, "listing age group students")
	}
	return core.Page[people.Student]{Count: count, Results: rows}, nil
}

func (svc *Service) expandEvents(ctx context.Context, items []Event) ([]EventRead, error) {
	terms, err := svc.loaders.Terms.GetMany(ctx, core.IDs(items, func(e Event) int { return e.TermID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]EventRead, len(items))
	for i, it := range items {
		res[i] = EventRead{Event: it, Term: core.Ref(terms, it.TermID.Int)}
	}
	return res, nil
}

func (svc *Service) expandAgeGroups(ctx context.Context, items []AgeGroup) ([]AgeGroupRead, error) {
	grades, err := svc.loaders.Grades.GetMany(ctx, core.IDs(items, func(g AgeGroup) int { return g.GradeID.Int }))
	if err != nil {
		return nil, err
	}
	teachers, err := svc.loaders.Employees.GetMany(ctx, core.IDs(items, func(g AgeGroup) int { return g.ClassTeacherID.Int }))
	if err != nil {
		return nil, err
	}
	insts, err := svc.loaders.Institutions.GetMany(ctx, core.IDs(items, func(g AgeGroup) int { return g.InstitutionID }))
	if err != nil {
		return nil, err
	}
	res := make([]AgeGroupRead, len(items))
	for i, it := range items {
		res[i] = AgeGroupRead{
			AgeGroup:     it,
			Grade:        core.Ref(grades, it.GradeID.Int),
			ClassTeacher: core.Ref(teachers, it.ClassTeacherID.Int),
			Institution:  core.Ref(insts, it.InstitutionID),
		}
	}
	return res, nil
}

func (svc *Service) expandAgeGroupActivities(ctx context.Context, items []AgeGroupActivity) ([]AgeGroupActivityRead, error) {
	groups, err := svc.stores.AgeGroups.GetMany(ctx, core.IDs(items, func(a AgeGroupActivity) int { return a.AgeGroupID }))
	if err != nil {
		return nil, err
	}
	activities, err := svc.stores.Activities.GetMany(ctx, core.IDs(items, func(a AgeGroupActivity) int { return a.ActivityID }))
	if err != nil {
		return nil, err
	}
	teachers, err := svc.loaders.Employees.GetMany(ctx, core.IDs(items, func(a AgeGroupActivity) int { return a.TeacherID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]AgeGroupActivityRead, len(items))
	for i, it := range items {
		res[i] = AgeGroupActivityRead{
			AgeGroupActivity: it,
			AgeGroup:         core.Ref(groups, it.AgeGroupID),
			Activity:         core.Ref(activities, it.ActivityID),
			Teacher:          core.Ref(teachers, it.TeacherID.Int),
		}
	}
	return res, nil
}

func (svc *Service) expandActivityPeriods(ctx context.Context, items []ActivityPeriod) ([]ActivityPeriodRead, error) {
	acts, err := svc.stores.AgeGroupActivities.GetMany(ctx, core.IDs(items, func(p ActivityPeriod) int { return p.AgeGroupActivityID }))
	if err != nil {
		return nil, err
	}
	res := make([]ActivityPeriodRead, len(items))
	for i, it := range items {
		res[i] = ActivityPeriodRead{ActivityPeriod: it, AgeGroupActivity: core.Ref(acts, it.AgeGroupActivityID)}
	}
	return res, nil
}
