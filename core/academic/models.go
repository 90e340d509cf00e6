// Package academic holds the teaching side of an institution: classes and their subjects,
// the weekly timetable, lessons and attendance, assessments, marks and term results.
package academic

import (
	"database/sql/driver"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
)

// Assessment types
const (
	AssessmentAssignment = "assignment"
	AssessmentExam       = "exam"
)

type Class struct {
	core.Model
	Name           string   `db:"name" json:"name" validate:"required,max=100"`
	ShortName      string   `db:"short_name" json:"short_name" validate:"max=50"`
	GradeID        null.Int `db:"grade_id" json:"grade"`
	Color          string   `db:"color" json:"color"`
	MaxStudents    int      `db:"max_students" json:"max_students" validate:"gte=0"`
	ClassTeacherID null.Int `db:"class_teacher_id" json:"class_teacher"`
	InstitutionID  int      `db:"institution_id" json:"institution" validate:"required"`
}

type ClassRead struct {
	Class
	Grade        *school.Grade       `json:"grade"`
	ClassTeacher *people.Employee    `json:"class_teacher"`
	Institution  *tenant.Institution `json:"institution"`
}

// ClassMembers adds students to a class.
type ClassMembers struct {
	Class    int   `json:"_class" validate:"required"`
	Students []int `json:"students" validate:"required,min=1,dive,gt=0"`
}

// ClassMember removes one student from a class.
type ClassMember struct {
	Class   int `json:"_class" validate:"required"`
	Student int `json:"student" validate:"required"`
}

type ClassSubject struct {
	core.Model
	ClassID                int      `db:"class_id" json:"_class" validate:"required"`
	SubjectID              int      `db:"subject_id" json:"subject" validate:"required"`
	PeriodPerWeekOfficial  int      `db:"period_per_week_official" json:"period_per_week_official" validate:"gte=0"`
	PeriodPerWeekTimetable int      `db:"period_per_week_timetable" json:"period_per_week_timetable" validate:"gte=0"`
	PeriodPerWeekReport    int      `db:"period_per_week_report" json:"period_per_week_report" validate:"gte=0"`
	PassingMark            float64  `db:"passing_mark" json:"passing_mark" validate:"gte=0"`
	TeacherID              null.Int `db:"teacher_id" json:"teacher"`
	InstitutionID          int      `db:"institution_id" json:"institution"`
}

type ClassSubjectRead struct {
	ClassSubject
	Class   *Class           `json:"_class"`
	Subject *school.Subject  `json:"subject"`
	Teacher *people.Employee `json:"teacher"`
}

// Period is one weekly slot of a class subject on the timetable.
type Period struct {
	core.Model
	ClassSubjectID int            `db:"class_subject_id" json:"class_subject" validate:"required"`
	Day            string         `db:"day" json:"day" validate:"required,weekday"`
	Period         int            `db:"period" json:"period" validate:"gte=0"`
	Start          core.TimeOfDay `db:"start_time" json:"start" validate:"required"`
	End            core.TimeOfDay `db:"end_time" json:"end" validate:"required"`
}

type PeriodRead struct {
	Period
	ClassSubject *ClassSubject `json:"class_subject"`
}

type AttendanceGroup struct {
	core.Model
	Name           string `db:"name" json:"name" validate:"required,max=100"`
	RecordLateTime bool   `db:"record_late_time" json:"record_late_time"`
	Color          string `db:"color" json:"color"`
	Status         string `db:"status" json:"status"`
}

// Lesson is one occurrence of a period on a date.
type Lesson struct {
	core.Model
	PeriodID       int       `db:"period_id" json:"period"`
	Date           core.Date `db:"date" json:"date"`
	AcademicYearID null.Int  `db:"academic_year_id" json:"academic_year"`
}

type Attendance struct {
	core.Model
	LessonID          int      `db:"lesson_id" json:"lesson"`
	StudentID         int      `db:"student_id" json:"student"`
	AttendanceGroupID int      `db:"attendance_group_id" json:"attendance_group"`
	AcademicYearID    null.Int `db:"academic_year_id" json:"academic_year"`
	TermID            null.Int `db:"term_id" json:"term"`
}

type AttendanceRead struct {
	Attendance
	Lesson          *Lesson          `json:"lesson"`
	Student         *people.Student  `json:"student"`
	AttendanceGroup *AttendanceGroup `json:"attendance_group"`
}

// AttendanceEntry is the attendance group of one student in a submission.
type AttendanceEntry struct {
	Student         int `json:"student" validate:"required"`
	AttendanceGroup int `json:"attendance_group" validate:"required"`
}

// SubmitAttendance records the attendance of a period on a date.
// A single entry may be given flat (student, attendance_group) as well.
type SubmitAttendance struct {
	Period          int               `json:"period" validate:"required"`
	Date            core.Date         `json:"date" validate:"required"`
	Term            int               `json:"term"`
	Student         int               `json:"student"`
	AttendanceGroup int               `json:"attendance_group"`
	Attendances     []AttendanceEntry `json:"attendances" validate:"dive"`
}

// Entries returns the submitted entries, the flat one included.
func (sa SubmitAttendance) Entries() []AttendanceEntry {
	entries := sa.Attendances
	if sa.Student > 0 && sa.AttendanceGroup > 0 {
		entries = append(entries, AttendanceEntry{Student: sa.Student, AttendanceGroup: sa.AttendanceGroup})
	}
	return entries
}

type Announcement struct {
	core.Model
	Title          string    `db:"title" json:"title" validate:"required,max=250"`
	Body           string    `db:"body" json:"body"`
	OrganizationID int       `db:"organization_id" json:"organization"`
	ExpiryDate     core.Date `db:"expiry_date" json:"expiry_date"`
	PostedByID     null.Int  `db:"posted_by_id" json:"posted_by"`
}

type AnnouncementRead struct {
	Announcement
	PostedBy *user.User `json:"posted_by"`
}

type MarkingCriterion struct {
	core.Model
	ClassSubjectID int      `db:"class_subject_id" json:"class_subject" validate:"required"`
	Name           string   `db:"name" json:"name" validate:"required,max=150"`
	Percentage     float64  `db:"percentage" json:"percentage" validate:"gte=0,lte=100"`
	AcademicYearID null.Int `db:"academic_year_id" json:"academic_year"`
}

type MarkingCriterionRead struct {
	MarkingCriterion
	ClassSubject *ClassSubject        `json:"class_subject"`
	AcademicYear *school.AcademicYear `json:"academic_year"`
}

// Links are the reference URLs of an assignment, stored as a JSON array.
type Links []string

func (l Links) Value() (driver.Value, error) {
	if l == nil {
		l = Links{}
	}
	return core.JSONValue([]string(l))
}

func (l *Links) Scan(value interface{}) error {
	return core.ScanJSON(value, (*[]string)(l))
}

type Assignment struct {
	core.Model
	ClassSubjectID     int       `db:"class_subject_id" json:"class_subject" validate:"required"`
	Title              string    `db:"title" json:"title" validate:"required,max=250"`
	Description        string    `db:"description" json:"description"`
	Links              Links     `db:"links" json:"links" validate:"dive,url"`
	DueDate            null.Time `db:"due_date" json:"due_date"`
	MarkingCriterionID null.Int  `db:"marking_criterion_id" json:"marking_criterion"`
	MaxMarks           float64   `db:"max_marks" json:"max_marks" validate:"gte=0"`
	AcademicYearID     null.Int  `db:"academic_year_id" json:"academic_year"`
	TermID             null.Int  `db:"term_id" json:"term"`
}

type AssignmentRead struct {
	Assignment
	ClassSubject     *ClassSubject     `json:"class_subject"`
	MarkingCriterion *MarkingCriterion `json:"marking_criterion"`
	Term             *school.Term      `json:"term"`
}

type Exam struct {
	core.Model
	ClassSubjectID     int            `db:"class_subject_id" json:"class_subject" validate:"required"`
	Title              string         `db:"title" json:"title" validate:"required,max=250"`
	Description        string         `db:"description" json:"description"`
	Date               core.Date      `db:"date" json:"date" validate:"required"`
	Type               string         `db:"type" json:"type"`
	MarkingCriterionID null.Int       `db:"marking_criterion_id" json:"marking_criterion"`
	MaxMarks           float64        `db:"max_marks" json:"max_marks" validate:"gte=0"`
	AcademicYearID     null.Int       `db:"academic_year_id" json:"academic_year"`
	TermID             null.Int       `db:"term_id" json:"term"`
	Start              core.TimeOfDay `db:"start_time" json:"start"`
	End                core.TimeOfDay `db:"end_time" json:"end"`
}

type ExamRead struct {
	Exam
	ClassSubject     *ClassSubject     `json:"class_subject"`
	MarkingCriterion *MarkingCriterion `json:"marking_criterion"`
	Term             *school.Term      `json:"term"`
}

// Mark is the score of a student on one assignment or exam.
type Mark struct {
	core.Model
	StudentID          int      `db:"student_id" json:"student" validate:"required"`
	ClassSubjectID     int      `db:"class_subject_id" json:"class_subject" validate:"required"`
	AssessmentType     string   `db:"assessment_type" json:"assessment_type" validate:"required,oneof=assignment exam"`
	AssessmentID       int      `db:"assessment_id" json:"assessment_id" validate:"required"`
	MaxMarks           float64  `db:"max_marks" json:"max_marks" validate:"gte=0"`
	Marks              float64  `db:"marks" json:"marks" validate:"gte=0"`
	MarkingCriterionID null.Int `db:"marking_criterion_id" json:"marking_criterion"`
	Title              string   `db:"title" json:"title"`
	AcademicYearID     null.Int `db:"academic_year_id" json:"academic_year"`
	TermID             null.Int `db:"term_id" json:"term"`
}

type MarkRead struct {
	Mark
	Student          *people.Student   `json:"student"`
	ClassSubject     *ClassSubject     `json:"class_subject"`
	MarkingCriterion *MarkingCriterion `json:"marking_criterion"`
}

// MarkingOption is an assessment of a class subject marks can be given for.
type MarkingOption struct {
	AssessmentType   string   `json:"assessment_type"`
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	MaxMarks         float64  `json:"max_marks"`
	MarkingCriterion null.Int `json:"marking_criterion"`
}

type TermResult struct {
	core.Model
	TermID         int     `db:"term_id" json:"term" validate:"required"`
	StudentID      int     `db:"student_id" json:"student" validate:"required"`
	ClassSubjectID int     `db:"class_subject_id" json:"class_subject" validate:"required"`
	AcademicYearID int     `db:"academic_year_id" json:"academic_year"`
	TotalMarks     float64 `db:"total_marks" json:"total_marks" validate:"gte=0"`
	Grade          string  `db:"grade" json:"grade" validate:"max=5"`
	Notes          string  `db:"notes" json:"notes"`
}

type TermResultRead struct {
	TermResult
	Term         *school.Term         `json:"term"`
	Student      *people.Student      `json:"student"`
	ClassSubject *ClassSubject        `json:"class_subject"`
	AcademicYear *school.AcademicYear `json:"academic_year"`
}

// Settings is the application-wide settings row.
type Settings struct {
	core.Model
	ShowAcademicYear bool `db:"show_academic_year" json:"show_academic_year"`
}

// SettingsPatch holds the settings fields a request may change.
type SettingsPatch struct {
	ShowAcademicYear *bool `json:"show_academic_year"`
}

type ClassFilter struct {
	Search      string `query:"search"`
	Grade       string `query:"grade"`
	Institution string `query:"institution"`
	Teacher     string `query:"class_teacher"`
}

func (f ClassFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name", "short_name"),
		query.ID("grade_id", f.Grade),
		query.ID("institution_id", f.Institution),
		query.ID("class_teacher_id", f.Teacher),
	)
}

type ClassSubjectFilter struct {
	Class   string `query:"_class"`
	Subject string `query:"subject"`
	Teacher string `query:"teacher"`
}

// Validate requires the class.
func (f ClassSubjectFilter) Validate() error {
	if strings.TrimSpace(f.Class) == "" {
		return core.NewFieldError("_class", "this field is required")
	}
	return nil
}

func (f ClassSubjectFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("class_id", f.Class),
		query.ID("subject_id", f.Subject),
		query.ID("teacher_id", f.Teacher),
	)
}

// ClassStudentsFilter lists the students of a class.
type ClassStudentsFilter struct {
	Class  string `query:"_class"`
	Search string `query:"search"`
}

func (f ClassStudentsFilter) Validate() error {
	if strings.TrimSpace(f.Class) == "" {
		return core.NewFieldError("_class", "this field is required")
	}
	return nil
}

func (f ClassStudentsFilter) Where() sq.Sqlizer {
	return query.All(
		query.SubSelect("id", "class_students", "student_id", query.ID("class_id", f.Class)),
		query.NameSearch("first_name", "last_name", f.Search),
	)
}

// PeriodFilter lists the timetable of a class.
type PeriodFilter struct {
	Class        string `query:"_class"`
	ClassSubject string `query:"class_subject"`
	Day          string `query:"day"`
}

func (f PeriodFilter) Validate() error {
	if strings.TrimSpace(f.Class) == "" {
		return core.NewFieldError("_class", "this field is required")
	}
	return nil
}

func (f PeriodFilter) Where() sq.Sqlizer {
	return query.All(
		query.Sub("class_subject_id", "class_subjects", query.ID("class_id", f.Class)),
		query.ID("class_subject_id", f.ClassSubject),
		query.Text("day", f.Day),
	)
}

type AttendanceGroupFilter struct {
	Search         string `query:"search"`
	RecordLateTime string `query:"record_late_time"`
	Status         string `query:"status"`
}

func (f AttendanceGroupFilter) Where() sq.Sqlizer {
	return query.All(
		query.Contains("name", f.Search),
		query.Bool("record_late_time", f.RecordLateTime),
		query.Text("status", f.Status),
	)
}

type AttendanceFilter struct {
	Lesson       string `query:"lesson"`
	Period       string `query:"period"`
	Date         string `query:"date"`
	ClassSubject string `query:"class_subject"`
	Student      string `query:"student"`
	Group        string `query:"attendance_group"`
}

func (f AttendanceFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("lesson_id", f.Lesson),
		query.Sub("lesson_id", "lessons", query.All(
			query.ID("period_id", f.Period),
			query.DateRange("date", f.Date, f.Date),
			query.Sub("period_id", "periods", query.ID("class_subject_id", f.ClassSubject)),
		)),
		query.ID("student_id", f.Student),
		query.ID("attendance_group_id", f.Group),
	)
}

type AnnouncementFilter struct {
	Search string `query:"search"`
	// Active keeps the announcements that did not expire; forced for non-admins.
	Active string    `query:"active"`
	Today  time.Time `query:"-"`
}

func (f AnnouncementFilter) Where() sq.Sqlizer {
	var active sq.Sqlizer = query.Identity()
	if strings.EqualFold(strings.TrimSpace(f.Active), "true") {
		today := f.Today
		if today.IsZero() {
			today = time.Now()
		}
		active = sq.Or{sq.Eq{"expiry_date": nil}, sq.GtOrEq{"expiry_date": query.Day(today)}}
	}
	return query.All(query.AnyContains(f.Search, "title", "body"), active)
}

type MarkingCriterionFilter struct {
	ClassSubject string `query:"class_subject"`
	AcademicYear string `query:"academic_year"`
}

func (f MarkingCriterionFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("class_subject_id", f.ClassSubject),
		query.ID("academic_year_id", f.AcademicYear),
	)
}

// AssessmentFilter filters assignments and exams.
type AssessmentFilter struct {
	Search       string `query:"search"`
	ClassSubject string `query:"class_subject"`
	Term         string `query:"term"`
	AcademicYear string `query:"academic_year"`
}

func (f AssessmentFilter) Where() sq.Sqlizer {
	return query.All(
		query.Contains("title", f.Search),
		query.ID("class_subject_id", f.ClassSubject),
		query.ID("term_id", f.Term),
		query.ID("academic_year_id", f.AcademicYear),
	)
}

type MarkFilter struct {
	Student        string `query:"student"`
	ClassSubject   string `query:"class_subject"`
	AssessmentType string `query:"assessment_type"`
	AssessmentID   string `query:"assessment_id"`
	Subject        string `query:"subject"`
	Term           string `query:"term"`
}

func (f MarkFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("student_id", f.Student),
		query.ID("class_subject_id", f.ClassSubject),
		query.Text("assessment_type", f.AssessmentType),
		query.ID("assessment_id", f.AssessmentID),
		query.Sub("class_subject_id", "class_subjects", query.ID("subject_id", f.Subject)),
		query.ID("term_id", f.Term),
	)
}

type TermResultFilter struct {
	Class        string `query:"_class"`
	ClassSubject string `query:"class_subject"`
	Subject      string `query:"subject"`
	Student      string `query:"student"`
	Term         string `query:"term"`
	AcademicYear string `query:"academic_year"`
	Grade        string `query:"grade"`
}

func (f TermResultFilter) Where() sq.Sqlizer {
	return query.All(
		query.Sub("class_subject_id", "class_subjects", query.ID("class_id", f.Class)),
		query.ID("class_subject_id", f.ClassSubject),
		query.Sub("class_subject_id", "class_subjects", query.ID("subject_id", f.Subject)),
		query.ID("student_id", f.Student),
		query.ID("term_id", f.Term),
		query.ID("academic_year_id", f.AcademicYear),
		query.IExact("grade", f.Grade),
	)
}
