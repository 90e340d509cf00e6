package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/tenant"
)

type (
	// AcademicYearStore keeps at most one active academic year per institution.
	AcademicYearStore interface {
		core.Store[AcademicYear]

		// Activate makes the year the only active one of its institution, in one transaction.
		Activate(ctx context.Context, scope query.Scope, id int, exec ...core.DBExecutor) (AcademicYear, error)
		// Active returns the active year of an institution.
		Active(ctx context.Context, institutionID int, exec ...core.DBExecutor) (AcademicYear, error)
	}

	Stores struct {
		Levels        core.Store[Level]
		Grades        core.Store[Grade]
		Subjects      core.Store[Subject]
		Terms         core.Store[Term]
		AcademicYears AcademicYearStore
		Rooms         core.Store[Room]
	}

	Service struct {
		Levels        *core.CRUD[Level, Level]
		Grades        *core.CRUD[Grade, GradeRead]
		Subjects      *core.CRUD[Subject, Subject]
		Terms         *core.CRUD[Term, Term]
		AcademicYears *core.CRUD[AcademicYear, AcademicYearRead]
		Rooms         *core.CRUD[Room, RoomRead]

		stores       Stores
		institutions core.Loader[tenant.Institution]
	}
)

func NewService(stores Stores, institutions core.Loader[tenant.Institution]) *Service {
	svc := &Service{
		Levels:       core.NewCRUD("Level", stores.Levels),
		Subjects:     core.NewCRUD("Subject", stores.Subjects),
		Terms:        core.NewCRUD("Term", stores.Terms),
		stores:       stores,
		institutions: institutions,
	}
	svc.Grades = &core.CRUD[Grade, GradeRead]{Entity: "Grade", Store: stores.Grades, Expand: svc.expandGrades}
	svc.AcademicYears = &core.CRUD[AcademicYear, AcademicYearRead]{
		Entity: "Academic year",
		Store:  stores.AcademicYears,
		Prepare: func(_ context.Context, _ query.Scope, v *AcademicYear, existing *AcademicYear, _ core.DBExecutor) error {
			// the active flag only changes through ActivateAcademicYear
			v.IsActive = false
			if existing != nil {
				v.IsActive = existing.IsActive
				v.InstitutionID = existing.InstitutionID
			}
			return nil
		},
		Expand: svc.expandAcademicYears,
	}
	svc.Rooms = &core.CRUD[Room, RoomRead]{Entity: "Room", Store: stores.Rooms, Expand: svc.expandRooms}
	return svc
}

// ActivateAcademicYear switches the active academic year of the year's institution.
func (svc *Service) ActivateAcademicYear(ctx context.Context, scope query.Scope, id int) (AcademicYearRead, error) {
	ay, err := svc.stores.AcademicYears.Activate(ctx, scope, id)
	if err != nil {
		if core.IsNotFound(err) {
			return AcademicYearRead{}, core.NewNotFoundError("Academic year")
		}
		return AcademicYearRead{}, errors.Wrap(err, "activating academic year")
	}
	items, err := svc.expandAcademicYears(ctx, []AcademicYear{ay})
	if err != nil {
		return AcademicYearRead{}, err
	}
	return items[0], nil
}

// ActiveAcademicYear returns the active academic year of an institution, nil when there is none.
func (svc *Service) ActiveAcademicYear(ctx context.Context, institutionID int, exec ...core.DBExecutor) (*AcademicYear, error) {
	ay, err := svc.stores.AcademicYears.Active(ctx, institutionID, exec...)
	if core.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ay, nil
}

func (svc *Service) expandGrades(ctx context.Context, items []Grade) ([]GradeRead, error) {
	levels, err := svc.stores.Levels.GetMany(ctx, core.IDs(items, func(g Grade) int { return g.LevelID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]GradeRead, len(items))
	for i, it := range items {
		res[i] = GradeRead{Grade: it, Level: core.Ref(levels, it.LevelID.Int)}
	}
	return res, nil
}

func (svc *Service) expandAcademicYears(ctx context.Context, items []AcademicYear) ([]AcademicYearRead, error) {
	insts, err := svc.institutions.GetMany(ctx, core.IDs(items, func(a AcademicYear) int { return a.InstitutionID }))
	if err != nil {
		return nil, err
	}
	res := make([]AcademicYearRead, len(items))
	for i, it := range items {
		res[i] = AcademicYearRead{AcademicYear: it, Institution: core.Ref(insts, it.InstitutionID)}
	}
	return res, nil
}

func (svc *Service) expandRooms(ctx context.Context, items []Room) ([]RoomRead, error) {
	insts, err := svc.institutions.GetMany(ctx, core.IDs(items, func(r Room) int { return r.InstitutionID }))
	if err != nil {
		return nil, err
	}
	res := make([]RoomRead, len(items))
	for i, it := range items {
		res[i] = RoomRead{Room: it, Institution: core.Ref(insts, it.InstitutionID)}
	}
	return res, nil
}
