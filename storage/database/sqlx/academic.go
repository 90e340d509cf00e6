package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/academic"
	"github.com/trezcool/askante/core/query"
)

var (
	ClassesMeta          = Meta{Entity: "Class", Table: "classes", Scope: query.ByInstitution("institution_id")}
	ClassSubjectsMeta    = Meta{Entity: "Class subject", Table: "class_subjects", Scope: query.ByInstitution("institution_id")}
	PeriodsMeta          = Meta{Entity: "Period", Table: "periods", Scope: query.Through("class_subject_id", "class_subjects", ClassSubjectsMeta.Scope)}
	AttendanceGroupsMeta = Meta{Entity: "Attendance group", Table: "attendance_groups", Scope: query.Public()}
	LessonsMeta          = Meta{Entity: "Lesson", Table: "lessons", Scope: query.Through("period_id", "periods", PeriodsMeta.Scope)}
	AttendancesMeta      = Meta{Entity: "Attendance", Table: "attendances", Scope: byStudent}
	MarkingCriteriaMeta  = Meta{Entity: "Marking criterion", Table: "marking_criteria", Scope: byClassSubject}
	AssignmentsMeta      = Meta{Entity: "Assignment", Table: "assignments", Scope: byClassSubject}
	ExamsMeta            = Meta{Entity: "Exam", Table: "exams", Scope: byClassSubject}

	byClassSubject = query.Through("class_subject_id", "class_subjects", query.ByInstitution("institution_id"))
)

func NewAcademicStores(db core.DB) academic.Stores {
	classSubjectRef := Ref{Column: "class_subject_id", To: ClassSubjectsMeta}
	assessmentRefs := []Ref{
		classSubjectRef,
		{Column: "marking_criterion_id", To: MarkingCriteriaMeta},
		{Column: "academic_year_id", To: AcademicYearsMeta},
		{Column: "term_id", To: TermsMeta},
	}
	return academic.Stores{
		Classes: NewStore(db, Table[academic.Class]{
			Meta: ClassesMeta,
			Columns: []string{
				"name", "short_name", "grade_id", "color", "max_students", "class_teacher_id", "institution_id",
			},
			Ordering: nameOrdering,
			Refs: []Ref{
				{Column: "grade_id", To: GradesMeta},
				{Column: "class_teacher_id", To: EmployeesMeta},
				{Column: "institution_id", To: InstitutionsMeta},
			},
		}),
		ClassStudents: NewMembership(db, Membership{
			Table:   "class_students",
			Owner:   ClassesMeta,
			OwnerC:  "class_id",
			Member:  StudentsMeta,
			MemberC: "student_id",
			Same:    "institution_id", // students of another institution may not join the class
		}),
		ClassSubjects: NewStore(db, Table[academic.ClassSubject]{
			Meta: ClassSubjectsMeta,
			Columns: []string{
				"class_id", "subject_id", "period_per_week_official", "period_per_week_timetable",
				"period_per_week_report", "passing_mark", "teacher_id", "institution_id",
			},
			Refs: []Ref{
				{Column: "class_id", To: ClassesMeta},
				{Column: "subject_id", To: SubjectsMeta},
				{Column: "teacher_id", To: EmployeesMeta},
			},
		}),
		Periods: NewStore(db, Table[academic.Period]{
			Meta:     PeriodsMeta,
			Columns:  []string{"class_subject_id", "day", "period", "start_time", "end_time"},
			Ordering: []core.DBOrdering{{Field: "period", Ascending: true}},
			Refs:     []Ref{classSubjectRef},
		}),
		AttendanceGroups: NewStore(db, Table[academic.AttendanceGroup]{
			Meta:     AttendanceGroupsMeta,
			Columns:  []string{"name", "record_late_time", "color", "status"},
			Ordering: nameOrdering,
		}),
		Lessons: NewStore(db, Table[academic.Lesson]{
			Meta:    LessonsMeta,
			Columns: []string{"period_id", "date", "academic_year_id"},
		}),
		Attendances: NewStore(db, Table[academic.Attendance]{
			Meta:    AttendancesMeta,
			Columns: []string{"lesson_id", "student_id", "attendance_group_id", "academic_year_id", "term_id"},
		}),
		Register: &register{db: db},
		Announcements: NewStore(db, Table[academic.Announcement]{
			Meta:    Meta{Entity: "Announcement", Table: "announcements", Scope: query.ByOrganization("organization_id")},
			Columns: []string{"title", "body", "organization_id", "expiry_date", "posted_by_id"},
			Refs:    []Ref{{Column: "organization_id", To: OrganizationsMeta}},
		}),
		MarkingCriteria: NewStore(db, Table[academic.MarkingCriterion]{
			Meta:    MarkingCriteriaMeta,
			Columns: []string{"class_subject_id", "name", "percentage", "academic_year_id"},
			Refs:    []Ref{classSubjectRef, {Column: "academic_year_id", To: AcademicYearsMeta}},
		}),
		Assignments: NewStore(db, Table[academic.Assignment]{
			Meta: AssignmentsMeta,
			Columns: []string{
				"class_subject_id", "title", "description", "links", "due_date", "marking_criterion_id", "max_marks",
				"academic_year_id", "term_id",
			},
			Refs: assessmentRefs,
		}),
		Exams: NewStore(db, Table[academic.Exam]{
			Meta: ExamsMeta,
			Columns: []string{
				"class_subject_id", "title", "description", "date", "type", "marking_criterion_id", "max_marks",
				"academic_year_id", "term_id", "start_time", "end_time",
			},
			Refs: assessmentRefs,
		}),
		Marks: NewStore(db, Table[academic.Mark]{
			Meta: Meta{Entity: "Mark", Table: "marks", Scope: byClassSubject},
			Columns: []string{
				"student_id", "class_subject_id", "assessment_type", "assessment_id", "max_marks", "marks",
				"marking_criterion_id", "title", "academic_year_id", "term_id",
			},
			Refs: append([]Ref{{Column: "student_id", To: StudentsMeta}}, assessmentRefs...),
		}),
		TermResults: newTermResultStore(db),
		Settings: NewStore(db, Table[academic.Settings]{
			Meta:    Meta{Entity: "Settings", Table: "settings", Scope: query.Public()},
			Columns: []string{"show_academic_year"},
		}),
	}
}

// Membership describes a link table between two scoped entities.
type Membership struct {
	Table   string
	Owner   Meta
	OwnerC  string // link column referencing the owner
	Member  Meta
	MemberC string // link column referencing the member
	// Same, when set, is a column owner and members must share (e.g. their institution).
	Same string
}

type membershipStore struct {
	db core.DB
	m  Membership
}

var _ core.Membership = (*membershipStore)(nil) // interface compliance check

func NewMembership(db core.DB, m Membership) core.Membership {
	return &membershipStore{db: db, m: m}
}

func (s *membershipStore) Add(ctx context.Context, scope query.Scope, ownerID int, memberIDs []int, exec ...core.DBExecutor) (int, error) {
	ids := core.IDs(memberIDs, func(id int) int { return id })
	if len(ids) == 0 {
		return 0, nil
	}
	var added int
	add := func(tx core.DBExecutor) error {
		visible, err := Exists(ctx, tx, s.m.Owner, scope, sq.Eq{"id": ownerID})
		if err != nil {
			return errors.Wrapf(err, "verifying %s", s.m.Owner.Entity)
		}
		if !visible {
			return core.NewNotFoundError(s.m.Owner.Entity)
		}

		where := sq.And{s.m.Member.Scope(scope), sq.Eq{"id": ids}}
		if s.m.Same != "" {
			where = append(where, sq.Expr(
				fmt.Sprintf("%s = (SELECT %s FROM %s WHERE id = ?)", s.m.Same, s.m.Same, s.m.Owner.Table), ownerID,
			))
		}
		q, args, err := psql.Select("COUNT(*)").From(s.m.Member.Table).Where(where).ToSql()
		if err != nil {
			return errors.Wrapf(err, "building %s count", s.m.Member.Entity)
		}
		var n int
		if err = sqlx.GetContext(ctx, tx, &n, q, args...); err != nil {
			return errors.Wrapf(err, "verifying %s", s.m.Member.Entity)
		}
		if n != len(ids) {
			return core.NewNotFoundError(s.m.Member.Entity)
		}

		ins := psql.Insert(s.m.Table).Columns(s.m.OwnerC, s.m.MemberC)
		for _, id := range ids {
			ins = ins.Values(ownerID, id)
		}
		q, args, err = ins.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return errors.Wrapf(err, "building %s insert", s.m.Table)
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return errors.Wrapf(err, "inserting %s", s.m.Table)
		}
		affected, err := res.RowsAffected()
		added = int(affected)
		return errors.Wrap(err, "counting links")
	}

	if len(exec) > 0 && exec[0] != nil {
		return added, add(exec[0])
	}
	return added, core.WithTx(ctx, s.db, add)
}

func (s *membershipStore) Remove(ctx context.Context, scope query.Scope, ownerID, memberID int, exec ...core.DBExecutor) error {
	dbx := core.Exec(s.db, exec)
	visible, err := Exists(ctx, dbx, s.m.Owner, scope, sq.Eq{"id": ownerID})
	if err != nil {
		return errors.Wrapf(err, "verifying %s", s.m.Owner.Entity)
	}
	if !visible {
		return core.NewNotFoundError(s.m.Owner.Entity)
	}

	q, args, err := psql.Delete(s.m.Table).Where(sq.Eq{s.m.OwnerC: ownerID, s.m.MemberC: memberID}).ToSql()
	if err != nil {
		return errors.Wrapf(err, "building %s delete", s.m.Table)
	}
	res, err := dbx.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", s.m.Table)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError(s.m.Member.Entity)
	}
	return nil
}

type register struct {
	db core.DB
}

var _ academic.Register = (*register)(nil) // interface compliance check

var attendanceRefs = []Ref{
	{Column: "student_id", To: StudentsMeta},
	{Column: "attendance_group_id", To: AttendanceGroupsMeta},
	{Column: "term_id", To: TermsMeta},
}

func (r *register) EnsureLesson(ctx context.Context, lesson academic.Lesson, exec ...core.DBExecutor) (academic.Lesson, error) {
	dbx := core.Exec(r.db, exec)
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO lessons (period_id, date, academic_year_id) VALUES ($1, $2, $3)
		ON CONFLICT (period_id, date) DO NOTHING`,
		lesson.PeriodID, lesson.Date, lesson.AcademicYearID,
	)
	if err != nil {
		return lesson, errors.Wrap(err, "inserting lesson")
	}
	err = sqlx.GetContext(ctx, dbx, &lesson,
		`SELECT * FROM lessons WHERE period_id = $1 AND date = $2`, lesson.PeriodID, lesson.Date,
	)
	return lesson, errors.Wrap(err, "selecting lesson")
}

func (r *register) Replace(ctx context.Context, scope query.Scope, a *academic.Attendance, exec ...core.DBExecutor) error {
	dbx := core.Exec(r.db, exec)
	if err := verifyRefs(ctx, dbx, scope, a, attendanceRefs); err != nil {
		return err
	}
	if _, err := dbx.ExecContext(ctx,
		`DELETE FROM attendances WHERE lesson_id = $1 AND student_id = $2`, a.LessonID, a.StudentID,
	); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	err := sqlx.GetContext(ctx, dbx, a,
		`INSERT INTO attendances (lesson_id, student_id, attendance_group_id, academic_year_id, term_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING *`,
		a.LessonID, a.StudentID, a.AttendanceGroupID, a.AcademicYearID, a.TermID,
	)
	return errors.Wrap(err, "inserting attendance")
}

var termResultColumns = []string{
	"term_id", "student_id", "class_subject_id", "academic_year_id", "total_marks", "grade", "notes",
}

type termResultStore struct {
	core.Store[academic.TermResult]
	db   core.DB
	refs []Ref
}

var _ academic.TermResultStore = (*termResultStore)(nil) // interface compliance check

func newTermResultStore(db core.DB) *termResultStore {
	refs := []Ref{
		{Column: "term_id", To: TermsMeta},
		{Column: "student_id", To: StudentsMeta},
		{Column: "class_subject_id", To: ClassSubjectsMeta},
		{Column: "academic_year_id", To: AcademicYearsMeta},
	}
	return &termResultStore{
		db:   db,
		refs: refs,
		Store: NewStore(db, Table[academic.TermResult]{
			Meta:     Meta{Entity: "Term result", Table: "term_results", Scope: byClassSubject},
			Columns:  termResultColumns,
			Ordering: []core.DBOrdering{{Field: "total_marks", Ascending: false}},
			Refs:     refs,
		}),
	}
}

// Upsert inserts the result or, when one exists for the same term, student, class subject and
// academic year, overwrites its marks, grade and notes.
func (s *termResultStore) Upsert(ctx context.Context, scope query.Scope, r *academic.TermResult, exec ...core.DBExecutor) error {
	dbx := core.Exec(s.db, exec)
	if err := verifyRefs(ctx, dbx, scope, r, s.refs); err != nil {
		return err
	}
	placeholders := make([]string, len(termResultColumns))
	for i, col := range termResultColumns {
		placeholders[i] = ":" + col
	}
	named := fmt.Sprintf(
		`INSERT INTO term_results (%s) VALUES (%s)
		ON CONFLICT (term_id, student_id, class_subject_id, academic_year_id) DO UPDATE SET
		total_marks = EXCLUDED.total_marks, grade = EXCLUDED.grade, notes = EXCLUDED.notes, updated_at = now()
		RETURNING *`,
		strings.Join(termResultColumns, ", "), strings.Join(placeholders, ", "),
	)
	q, args, err := sqlx.Named(named, r)
	if err != nil {
		return errors.Wrap(err, "binding term result")
	}
	return errors.Wrap(sqlx.GetContext(ctx, dbx, r, sqlx.Rebind(sqlx.DOLLAR, q), args...), "upserting term result")
}
