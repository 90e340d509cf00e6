package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
)

var (
	LevelsMeta        = Meta{Entity: "Level", Table: "levels", Scope: query.Public()}
	GradesMeta        = Meta{Entity: "Grade", Table: "grades", Scope: query.Public()}
	SubjectsMeta      = Meta{Entity: "Subject", Table: "subjects", Scope: query.Public()}
	TermsMeta         = Meta{Entity: "Term", Table: "terms", Scope: query.Public()}
	AcademicYearsMeta = Meta{Entity: "Academic year", Table: "academic_years", Scope: query.ByInstitution("institution_id")}
	RoomsMeta         = Meta{Entity: "Room", Table: "rooms", Scope: query.ByInstitution("institution_id")}
)

var nameOrdering = []core.DBOrdering{{Field: "name", Ascending: true}}

func NewSchoolStores(db core.DB) school.Stores {
	return school.Stores{
		Levels: NewStore(db, Table[school.Level]{
			Meta: LevelsMeta, Columns: []string{"name"}, Ordering: nameOrdering,
		}),
		Grades: NewStore(db, Table[school.Grade]{
			Meta:     GradesMeta,
			Columns:  []string{"name", "short_name", "color", "status", "level_id"},
			Ordering: nameOrdering,
			Refs:     []Ref{{Column: "level_id", To: LevelsMeta}},
		}),
		Subjects: NewStore(db, Table[school.Subject]{
			Meta: SubjectsMeta, Columns: []string{"name", "short_name", "color", "status"}, Ordering: nameOrdering,
		}),
		Terms: NewStore(db, Table[school.Term]{
			Meta: TermsMeta, Columns: []string{"name", "short_name", "status"}, Ordering: nameOrdering,
		}),
		AcademicYears: &academicYearStore{
			db: db,
			Store: NewStore(db, Table[school.AcademicYear]{
				Meta:     AcademicYearsMeta,
				Columns:  []string{"name", "start_date", "end_date", "is_active", "institution_id"},
				Ordering: []core.DBOrdering{{Field: "start_date", Ascending: false}},
				Refs:     []Ref{{Column: "institution_id", To: InstitutionsMeta}},
			}),
		},
		Rooms: NewStore(db, Table[school.Room]{
			Meta: RoomsMeta,
			Columns: []string{
				"name", "type", "floor_number", "number_of_seats", "number_of_computers", "has_projector",
				"has_smart_board", "status", "institution_id",
			},
			Ordering: nameOrdering,
			Refs:     []Ref{{Column: "institution_id", To: InstitutionsMeta}},
		}),
	}
}

type academicYearStore struct {
	core.Store[school.AcademicYear]
	db core.DB
}

var _ school.AcademicYearStore = (*academicYearStore)(nil) // interface compliance check

func (s *academicYearStore) Activate(ctx context.Context, scope query.Scope, id int, exec ...core.DBExecutor) (school.AcademicYear, error) {
	var ay school.AcademicYear
	activate := func(tx core.DBExecutor) error {
		var err error
		if ay, err = s.Get(ctx, scope, id, tx); err != nil {
			return err
		}
		// deactivate first: the partial unique index allows one active year per institution
		q, args, err := psql.Update("academic_years").
			Set("is_active", false).
			Set("updated_at", sq.Expr("now()")).
			Where(sq.Eq{"institution_id": ay.InstitutionID, "is_active": true}).
			Where(sq.NotEq{"id": id}).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building deactivation")
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrap(err, "deactivating academic years")
		}

		q, args, err = psql.Update("academic_years").
			Set("is_active", true).
			Set("updated_at", sq.Expr("now()")).
			Where(sq.Eq{"id": id}).
			Suffix("RETURNING *").
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building activation")
		}
		return errors.Wrap(sqlx.GetContext(ctx, tx, &ay, q, args...), "activating academic year")
	}

	if len(exec) > 0 && exec[0] != nil {
		return ay, activate(exec[0])
	}
	return ay, core.WithTx(ctx, s.db, activate)
}

func (s *academicYearStore) Active(ctx context.Context, institutionID int, exec ...core.DBExecutor) (school.AcademicYear, error) {
	return s.First(ctx, query.Global(), sq.Eq{"institution_id": institutionID, "is_active": true}, exec...)
}
