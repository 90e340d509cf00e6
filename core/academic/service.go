package academic

import (
	"context"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
)

var (
	ErrNoActiveYear    = errors.New("No active academic year")
	ErrClassFull       = errors.New("The class has reached its maximum number of students")
	ErrEndBeforeStart  = errors.New("end must be later than start")
	ErrMarksAboveMax   = errors.New("marks cannot be greater than max_marks")
	ErrNoAttendance    = errors.New("no attendance submitted")
	ErrWrongAssessment = errors.New("the assessment does not belong to this class subject")
)

type (
	// Register records lessons and their attendance.
	Register interface {
		// EnsureLesson returns the lesson of a period on a date, inserting it when missing.
		EnsureLesson(ctx context.Context, lesson Lesson, exec ...core.DBExecutor) (Lesson, error)
		// Replace deletes the attendance of the student at the lesson, then inserts a.
		Replace(ctx context.Context, scope query.Scope, a *Attendance, exec ...core.DBExecutor) error
	}

	// TermResultStore upserts the results on (term, student, class subject, academic year).
	TermResultStore interface {
		core.Store[TermResult]

		Upsert(ctx context.Context, scope query.Scope, r *TermResult, exec ...core.DBExecutor) error
	}

	Stores struct {
		Classes          core.Store[Class]
		ClassStudents    core.Membership
		ClassSubjects    core.Store[ClassSubject]
		Periods          core.Store[Period]
		AttendanceGroups core.Store[AttendanceGroup]
		Lessons          core.Store[Lesson]
		Attendances      core.Store[Attendance]
		Register         Register
		Announcements    core.Store[Announcement]
		MarkingCriteria  core.Store[MarkingCriterion]
		Assignments      core.Store[Assignment]
		Exams            core.Store[Exam]
		Marks            core.Store[Mark]
		TermResults      TermResultStore
		Settings         core.Store[Settings]
	}

	// Profiles finds the employee or student profile of an authenticated user.
	Profiles interface {
		EmployeeByUser(ctx context.Context, userID int) (people.Employee, error)
		StudentByUser(ctx context.Context, userID int) (people.Student, error)
	}

	AcademicYears interface {
		ActiveAcademicYear(ctx context.Context, institutionID int, exec ...core.DBExecutor) (*school.AcademicYear, error)
	}

	Loaders struct {
		Institutions  core.Loader[tenant.Institution]
		Grades        core.Loader[school.Grade]
		Subjects      core.Loader[school.Subject]
		Terms         core.Loader[school.Term]
		AcademicYears core.Loader[school.AcademicYear]
		Employees     core.Loader[people.Employee]
		Users         core.Loader[user.User]
		Students      core.Store[people.Student]
	}

	Service struct {
		Classes          *core.CRUD[Class, ClassRead]
		ClassSubjects    *core.CRUD[ClassSubject, ClassSubjectRead]
		Periods          *core.CRUD[Period, PeriodRead]
		AttendanceGroups *core.CRUD[AttendanceGroup, AttendanceGroup]
		Attendances      *core.CRUD[Attendance, AttendanceRead]
		Announcements    *core.CRUD[Announcement, AnnouncementRead]
		MarkingCriteria  *core.CRUD[MarkingCriterion, MarkingCriterionRead]
		Assignments      *core.CRUD[Assignment, AssignmentRead]
		Exams            *core.CRUD[Exam, ExamRead]
		Marks            *core.CRUD[Mark, MarkRead]
		TermResults      *core.CRUD[TermResult, TermResultRead]

		db       core.DB
		stores   Stores
		loaders  Loaders
		profiles Profiles
		years    AcademicYears
	}
)

func NewService(db core.DB, stores Stores, loaders Loaders, profiles Profiles, years AcademicYears) *Service {
	svc := &Service{
		AttendanceGroups: core.NewCRUD("Attendance group", stores.AttendanceGroups),
		db:               db,
		stores:           stores,
		loaders:          loaders,
		profiles:         profiles,
		years:            years,
	}

	svc.Classes = &core.CRUD[Class, ClassRead]{Entity: "Class", Store: stores.Classes, Expand: svc.expandClasses}
	svc.ClassSubjects = &core.CRUD[ClassSubject, ClassSubjectRead]{
		Entity: "Class subject",
		Store:  stores.ClassSubjects,
		DB:     db,
		Prepare: func(ctx context.Context, scope query.Scope, v, _ *ClassSubject, tx core.DBExecutor) error {
			class, err := stores.Classes.Get(ctx, scope, v.ClassID, tx)
			if err != nil {
				return err
			}
			v.InstitutionID = class.InstitutionID
			return nil
		},
		Expand: svc.expandClassSubjects,
	}
	svc.Periods = &core.CRUD[Period, PeriodRead]{
		Entity: "Period",
		Store:  stores.Periods,
		Prepare: func(_ context.Context, _ query.Scope, v, _ *Period, _ core.DBExecutor) error {
			if !v.Start.Before(v.End) {
				return core.NewValidationError(ErrEndBeforeStart, core.FieldError{Field: "end", Error: ErrEndBeforeStart.Error()})
			}
			return nil
		},
		Expand: svc.expandPeriods,
	}
	svc.Attendances = &core.CRUD[Attendance, AttendanceRead]{
		Entity: "Attendance",
		Store:  stores.Attendances,
		Expand: svc.expandAttendances,
	}
	svc.Announcements = &core.CRUD[Announcement, AnnouncementRead]{
		Entity: "Announcement",
		Store:  stores.Announcements,
		Prepare: func(_ context.Context, scope query.Scope, v, existing *Announcement, _ core.DBExecutor) error {
			if existing != nil {
				v.OrganizationID = existing.OrganizationID
				v.PostedByID = existing.PostedByID
				return nil
			}
			v.PostedByID = null.NewInt(scope.UserID, scope.UserID > 0)
			return core.StampOrganization(scope, &v.OrganizationID)
		},
		Expand: svc.expandAnnouncements,
	}
	svc.MarkingCriteria = &core.CRUD[MarkingCriterion, MarkingCriterionRead]{
		Entity: "Marking criterion",
		Store:  stores.MarkingCriteria,
		DB:     db,
		Prepare: func(ctx context.Context, scope query.Scope, v, _ *MarkingCriterion, tx core.DBExecutor) error {
			return svc.stampAcademicYear(ctx, scope, v.ClassSubjectID, &v.AcademicYearID, tx)
		},
		Expand: svc.expandMarkingCriteria,
	}
	svc.Assignments = &core.CRUD[Assignment, AssignmentRead]{
		Entity: "Assignment",
		Store:  stores.Assignments,
		DB:     db,
		Prepare: func(ctx context.Context, scope query.Scope, v, _ *Assignment, tx core.DBExecutor) error {
			if v.Links == nil {
				v.Links = Links{}
			}
			return svc.stampAcademicYear(ctx, scope, v.ClassSubjectID, &v.AcademicYearID, tx)
		},
		Expand: svc.expandAssignments,
	}
	svc.Exams = &core.CRUD[Exam, ExamRead]{
		Entity: "Exam",
		Store:  stores.Exams,
		DB:     db,
		Prepare: func(ctx context.Context, scope query.Scope, v, _ *Exam, tx core.DBExecutor) error {
			if v.Start.Valid && v.End.Valid && !v.Start.Before(v.End) {
				return core.NewValidationError(ErrEndBeforeStart, core.FieldError{Field: "end", Error: ErrEndBeforeStart.Error()})
			}
			return svc.stampAcademicYear(ctx, scope, v.ClassSubjectID, &v.AcademicYearID, tx)
		},
		Expand: svc.expandExams,
	}
	svc.Marks = &core.CRUD[Mark, MarkRead]{
		Entity:  "Mark",
		Store:   stores.Marks,
		DB:      db,
		Prepare: svc.prepareMark,
		Expand:  svc.expandMarks,
	}
	svc.TermResults = &core.CRUD[TermResult, TermResultRead]{
		Entity: "Term result",
		Store:  stores.TermResults,
		Expand: svc.expandTermResults,
	}
	return svc
}

// stampAcademicYear defaults the academic year of an assessment to the active year of its institution.
func (svc *Service) stampAcademicYear(ctx context.Context, scope query.Scope, classSubjectID int, yearID *null.Int, tx core.DBExecutor) error {
	if yearID.Valid {
		return nil
	}
	cs, err := svc.stores.ClassSubjects.Get(ctx, scope, classSubjectID, tx)
	if err != nil {
		return err
	}
	year, err := svc.years.ActiveAcademicYear(ctx, cs.InstitutionID, tx)
	if err != nil {
		return errors.Wrap(err, "finding active academic year")
	}
	if year != nil {
		yearID.SetValid(year.ID)
	}
	return nil
}

// prepareMark copies the assessment details onto the mark.
func (svc *Service) prepareMark(ctx context.Context, scope query.Scope, v, _ *Mark, tx core.DBExecutor) error {
	var (
		csID      int
		title     string
		maxMarks  float64
		criterion null.Int
		term      null.Int
		year      null.Int
	)
	switch v.AssessmentType {
	case AssessmentAssignment:
		a, err := svc.stores.Assignments.Get(ctx, scope, v.AssessmentID, tx)
		if err != nil {
			return err
		}
		csID, title, maxMarks, criterion, term, year = a.ClassSubjectID, a.Title, a.MaxMarks, a.MarkingCriterionID, a.TermID, a.AcademicYearID
	case AssessmentExam:
		e, err := svc.stores.Exams.Get(ctx, scope, v.AssessmentID, tx)
		if err != nil {
			return err
		}
		csID, title, maxMarks, criterion, term, year = e.ClassSubjectID, e.Title, e.MaxMarks, e.MarkingCriterionID, e.TermID, e.AcademicYearID
	}
	if csID != v.ClassSubjectID {
		return core.NewValidationError(ErrWrongAssessment, core.FieldError{Field: "assessment_id", Error: ErrWrongAssessment.Error()})
	}

	if v.Title == "" {
		v.Title = title
	}
	if v.MaxMarks == 0 {
		v.MaxMarks = maxMarks
	}
	if !v.MarkingCriterionID.Valid {
		v.MarkingCriterionID = criterion
	}
	if !v.TermID.Valid {
		v.TermID = term
	}
	if !v.AcademicYearID.Valid {
		v.AcademicYearID = year
	}
	if v.Marks > v.MaxMarks {
		return core.NewValidationError(ErrMarksAboveMax, core.FieldError{Field: "marks", Error: ErrMarksAboveMax.Error()})
	}
	return svc.stampAcademicYear(ctx, scope, v.ClassSubjectID, &v.AcademicYearID, tx)
}

// AddClassStudents enrolls students in a class, refusing to go past its maximum number of students.
func (svc *Service) AddClassStudents(ctx context.Context, scope query.Scope, m ClassMembers) (int, error) {
	var added int
	err := svc.inTx(ctx, func(tx core.DBExecutor) error {
		class, err := svc.stores.Classes.Get(ctx, scope, m.Class, tx)
		if err != nil {
			return err
		}
		if added, err = svc.stores.ClassStudents.Add(ctx, scope, class.ID, m.Students, tx); err != nil {
			return err
		}
		if class.MaxStudents <= 0 {
			return nil
		}
		n, err := svc.loaders.Students.Count(ctx, scope, inClass(class.ID), tx)
		if err != nil {
			return err
		}
		if n > class.MaxStudents {
			return core.NewValidationError(ErrClassFull, core.FieldError{Field: "students", Error: ErrClassFull.Error()})
		}
		return nil
	})
	return added, err
}

func (svc *Service) RemoveClassStudent(ctx context.Context, scope query.Scope, m ClassMember) error {
	return svc.stores.ClassStudents.Remove(ctx, scope, m.Class, m.Student)
}

// ClassStudents lists the students of a visible class.
func (svc *Service) ClassStudents(ctx context.Context, scope query.Scope, f ClassStudentsFilter, params core.ListParams) (core.Page[people.Student], error) {
	if _, err := svc.Classes.Load(ctx, scope, queryID(f.Class)); err != nil {
		return core.Page[people.Student]{}, err
	}
	params.Where = f.Where()
	rows, count, err := svc.loaders.Students.List(ctx, scope, params)
	if err != nil {
		return core.Page[people.Student]{}, errors.Wrap(err, "listing class students")
	}
	return core.Page[people.Student]{Count: count, Results: rows}, nil
}

// SubmitAttendance records the attendance of a lesson: the lesson is created on first submission,
// then every student's attendance is replaced by the submitted one. All in one transaction.
func (svc *Service) SubmitAttendance(ctx context.Context, scope query.Scope, data SubmitAttendance) ([]AttendanceRead, error) {
	entries := data.Entries()
	if len(entries) == 0 {
		return nil, core.NewValidationError(ErrNoAttendance, core.FieldError{Field: "attendances", Error: "this field is required"})
	}

	saved := make([]Attendance, 0, len(entries))
	err := svc.inTx(ctx, func(tx core.DBExecutor) error {
		period, err := svc.stores.Periods.Get(ctx, scope, data.Period, tx)
		if err != nil {
			return err
		}
		cs, err := svc.stores.ClassSubjects.Get(ctx, scope, period.ClassSubjectID, tx)
		if err != nil {
			return err
		}
		var yearID null.Int
		year, err := svc.years.ActiveAcademicYear(ctx, cs.InstitutionID, tx)
		if err != nil {
			return errors.Wrap(err, "finding active academic year")
		}
		if year != nil {
			yearID.SetValid(year.ID)
		}

		lesson, err := svc.stores.Register.EnsureLesson(ctx, Lesson{PeriodID: period.ID, Date: data.Date, AcademicYearID: yearID}, tx)
		if err != nil {
			return errors.Wrap(err, "recording lesson")
		}
		for _, e := range entries {
			a := Attendance{
				LessonID:          lesson.ID,
				StudentID:         e.Student,
				AttendanceGroupID: e.AttendanceGroup,
				AcademicYearID:    yearID,
				TermID:            null.NewInt(data.Term, data.Term > 0),
			}
			if err = svc.stores.Register.Replace(ctx, scope, &a, tx); err != nil {
				return err
			}
			saved = append(saved, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc.expandAttendances(ctx, saved)
}

// SubmitTermResult records the term result of a student in the active academic year of the teacher's
// institution, updating the existing result on resubmission.
func (svc *Service) SubmitTermResult(ctx context.Context, scope query.Scope, userID int, r TermResult) (TermResultRead, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return TermResultRead{}, err
	}
	year, err := svc.years.ActiveAcademicYear(ctx, emp.InstitutionID)
	if err != nil {
		return TermResultRead{}, errors.Wrap(err, "finding active academic year")
	}
	if year == nil {
		return TermResultRead{}, core.NewValidationError(ErrNoActiveYear)
	}
	r.AcademicYearID = year.ID
	if err = svc.stores.TermResults.Upsert(ctx, scope, &r); err != nil {
		return TermResultRead{}, err
	}
	items, err := svc.expandTermResults(ctx, []TermResult{r})
	if err != nil {
		return TermResultRead{}, err
	}
	return items[0], nil
}

// MarkingOptions lists the assignments (of the active academic year) and the exams of a class subject.
func (svc *Service) MarkingOptions(ctx context.Context, scope query.Scope, userID int, classSubject string) ([]MarkingOption, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	yearPred, err := svc.activeYear(ctx, emp.InstitutionID)
	if err != nil {
		return nil, err
	}
	byCS := query.ID("class_subject_id", classSubject)
	asc := []core.DBOrdering{{Field: "id", Ascending: true}}

	assignments, _, err := svc.stores.Assignments.List(ctx, scope, core.ListParams{Where: query.All(byCS, yearPred), Ordering: asc, All: true})
	if err != nil {
		return nil, errors.Wrap(err, "listing assignments")
	}
	exams, _, err := svc.stores.Exams.List(ctx, scope, core.ListParams{Where: byCS, Ordering: asc, All: true})
	if err != nil {
		return nil, errors.Wrap(err, "listing exams")
	}

	opts := make([]MarkingOption, 0, len(assignments)+len(exams))
	for _, a := range assignments {
		opts = append(opts, MarkingOption{AssessmentAssignment, a.ID, a.Title, a.MaxMarks, a.MarkingCriterionID})
	}
	for _, e := range exams {
		opts = append(opts, MarkingOption{AssessmentExam, e.ID, e.Title, e.MaxMarks, e.MarkingCriterionID})
	}
	return opts, nil
}

// TeacherClassSubjects lists the class subjects taught by the user.
func (svc *Service) TeacherClassSubjects(ctx context.Context, scope query.Scope, userID int) ([]ClassSubjectRead, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listAll(ctx, svc.ClassSubjects, scope, sq.Eq{"teacher_id": emp.ID})
}

// TeacherPeriods lists the timetable of the user, filtered by class subject and day.
func (svc *Service) TeacherPeriods(ctx context.Context, scope query.Scope, userID int, f PeriodFilter) ([]PeriodRead, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.Class = ""
	return listAll(ctx, svc.Periods, scope, query.All(taughtBy(emp.ID), f.Where()), timetableOrdering...)
}

// TeacherAttendance lists the attendance of the active academic year of the teacher's institution.
func (svc *Service) TeacherAttendance(ctx context.Context, scope query.Scope, userID int, f AttendanceFilter) ([]AttendanceRead, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	yearPred, err := svc.activeYear(ctx, emp.InstitutionID)
	if err != nil {
		return nil, err
	}
	return listAll(ctx, svc.Attendances, scope, query.All(f.Where(), yearPred))
}

// TeacherTermResults lists the term results of the active academic year.
func (svc *Service) TeacherTermResults(ctx context.Context, scope query.Scope, userID int, f TermResultFilter) ([]TermResultRead, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	yearPred, err := svc.activeYear(ctx, emp.InstitutionID)
	if err != nil {
		return nil, err
	}
	return listAll(ctx, svc.TermResults, scope, query.All(f.Where(), yearPred))
}

// StudentClassSubjects lists the class subjects of the user's classes.
func (svc *Service) StudentClassSubjects(ctx context.Context, scope query.Scope, userID int) ([]ClassSubjectRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listAll(ctx, svc.ClassSubjects, scope, classesOf(st.ID))
}

func (svc *Service) StudentPeriods(ctx context.Context, scope query.Scope, userID int) ([]PeriodRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listAll(ctx, svc.Periods, scope, attendedBy(st.ID), timetableOrdering...)
}

func (svc *Service) StudentAttendance(ctx context.Context, scope query.Scope, userID int, classSubject string) ([]AttendanceRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	f := AttendanceFilter{ClassSubject: classSubject}
	return listAll(ctx, svc.Attendances, scope, query.All(sq.Eq{"student_id": st.ID}, f.Where()))
}

// StudentAssignments lists the assignments of a class subject of the user, in the active academic year.
func (svc *Service) StudentAssignments(ctx context.Context, scope query.Scope, userID int, classSubject string) ([]AssignmentRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	yearPred, err := svc.activeYear(ctx, st.InstitutionID)
	if err != nil {
		return nil, err
	}
	where := query.All(query.ID("class_subject_id", classSubject), attendedBy(st.ID), yearPred)
	return listAll(ctx, svc.Assignments, scope, where)
}

func (svc *Service) StudentExams(ctx context.Context, scope query.Scope, userID int, classSubject string) ([]ExamRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	yearPred, err := svc.activeYear(ctx, st.InstitutionID)
	if err != nil {
		return nil, err
	}
	where := query.All(query.ID("class_subject_id", classSubject), attendedBy(st.ID), yearPred)
	return listAll(ctx, svc.Exams, scope, where)
}

func (svc *Service) StudentMarks(ctx context.Context, scope query.Scope, userID int, subject string) ([]MarkRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	f := MarkFilter{Subject: subject}
	return listAll(ctx, svc.Marks, scope, query.All(sq.Eq{"student_id": st.ID}, f.Where()))
}

func (svc *Service) StudentTermResults(ctx context.Context, scope query.Scope, userID int) ([]TermResultRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listAll(ctx, svc.TermResults, scope, sq.Eq{"student_id": st.ID})
}

// Settings returns the application settings.
func (svc *Service) Settings(ctx context.Context) (Settings, error) {
	s, err := svc.stores.Settings.First(ctx, query.Global(), nil)
	return s, errors.Wrap(err, "loading settings")
}

func (svc *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	s, err := svc.Settings(ctx)
	if err != nil {
		return s, err
	}
	if patch.ShowAcademicYear != nil {
		s.ShowAcademicYear = *patch.ShowAcademicYear
	}
	if err = svc.stores.Settings.Update(ctx, query.Global(), &s); err != nil {
		return s, errors.Wrap(err, "updating settings")
	}
	return s, nil
}

func (svc *Service) inTx(ctx context.Context, fn func(tx core.DBExecutor) error) error {
	if svc.db == nil {
		return fn(nil)
	}
	return core.WithTx(ctx, svc.db, fn)
}

// activeYear matches the active academic year of an institution, identity when there is none.
func (svc *Service) activeYear(ctx context.Context, institutionID int) (sq.Sqlizer, error) {
	year, err := svc.years.ActiveAcademicYear(ctx, institutionID)
	if err != nil {
		return nil, errors.Wrap(err, "finding active academic year")
	}
	if year == nil {
		return query.Identity(), nil
	}
	return sq.Eq{"academic_year_id": year.ID}, nil
}

var timetableOrdering = []core.DBOrdering{{Field: "day", Ascending: true}, {Field: "period", Ascending: true}}

// listAll returns every visible row of crud matching where, newest first unless ordered otherwise.
func listAll[T, R any](ctx context.Context, crud *core.CRUD[T, R], scope query.Scope, where sq.Sqlizer, ordering ...core.DBOrdering) ([]R, error) {
	page, err := crud.List(ctx, scope, core.ListParams{Where: where, Ordering: ordering, All: true})
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// taughtBy matches rows of the class subjects taught by an employee.
func taughtBy(employeeID int) sq.Sqlizer {
	return query.Sub("class_subject_id", "class_subjects", sq.Eq{"teacher_id": employeeID})
}

// classesOf matches class subjects of the classes a student attends.
func classesOf(studentID int) sq.Sqlizer {
	return query.SubSelect("class_id", "class_students", "class_id", sq.Eq{"student_id": studentID})
}

// attendedBy matches rows of the class subjects of the classes a student attends.
func attendedBy(studentID int) sq.Sqlizer {
	return query.Sub("class_subject_id", "class_subjects", classesOf(studentID))
}

// inClass matches the students of a class.
func inClass(classID int) sq.Sqlizer {
	return query.SubSelect("id", "class_students", "student_id", sq.Eq{"class_id": classID})
}

func queryID(raw string) int {
	id, _ := strconv.Atoi(strings.TrimSpace(raw))
	return id
}
