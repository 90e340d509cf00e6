package report

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/askante/core/query"
)

// Grades are the letters of the result summary histogram.
var Grades = []string{"A", "B", "C", "D", "E", "F"}

type DayAttendance struct {
	Date       string  `json:"date"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

type DayFinance struct {
	Date        string  `json:"date"`
	TotalCount  int     `json:"number_of_invoice"`
	PaidCount   int     `json:"number_of_paid_invoice"`
	DueCount    int     `json:"number_of_due_invoice"`
	TotalAmount float64 `json:"total_amount"`
	PaidAmount  float64 `json:"total_paid_amount"`
	DueAmount   float64 `json:"total_due_amount"`
}

type GradeCount struct {
	Grade string `json:"grade"`
	Count int    `json:"count"`
}

type InstitutionOverview struct {
	Employees           int     `json:"number_of_employees"`
	MaleEmployees       int     `json:"number_of_male_employees"`
	FemaleEmployees     int     `json:"number_of_female_employees"`
	Teachers            int     `json:"number_of_teachers"`
	Students            int     `json:"number_of_students"`
	MaleStudents        int     `json:"number_of_male_students"`
	FemaleStudents      int     `json:"number_of_female_students"`
	Classes             int     `json:"number_of_classes"`
	Rooms               int     `json:"number_of_rooms"`
	AttendanceToday     float64 `json:"attendance_today"`
	CurrentAcademicYear string  `json:"current_academic_year"`
}

type TeacherOverview struct {
	Classes     int `json:"number_of_classes"`
	Periods     int `json:"number_of_periods"`
	Exams       int `json:"number_of_exams_taken"`
	Assignments int `json:"number_of_assignments_taken"`
	Students    int `json:"total_students"`
}

type ClassStudents struct {
	ClassID   int    `json:"class_id"`
	ClassName string `json:"class_name"`
	Students  int    `json:"student_count"`
}

type ClassAttendance struct {
	ClassID   int             `json:"class_id"`
	ClassName string          `json:"class_name"`
	Days      []DayAttendance `json:"days"`
}

// Rows is a report listing: the full matching count and the rows themselves.
type Rows[R any] struct {
	Count int `json:"count"`
	Data  []R `json:"data"`
}

// DayFilter anchors a daily report: the institution to narrow to and the last day, today by default.
type DayFilter struct {
	Institution string `query:"institution"`
	StartDate   string `query:"start_date"`
}

type OverviewFilter struct {
	Institution string `query:"institution"`
}

func (f OverviewFilter) Validate() error {
	return requireID("institution", f.Institution)
}

// ResultFilter narrows term results for the result summary and the result reports.
type ResultFilter struct {
	Institution  string `query:"institution"`
	Term         string `query:"term"`
	AcademicYear string `query:"academic_year"`
	Level        string `query:"level"`
	Subject      string `query:"subject"`
	Class        string `query:"_class"`
	Student      string `query:"student"`
}

func (f ResultFilter) Where() sq.Sqlizer {
	return query.All(
		query.Sub("student_id", "students", query.All(
			query.ID("institution_id", f.Institution),
			query.Sub("grade_id", "grades", query.ID("level_id", f.Level)),
		)),
		query.ID("term_id", f.Term),
		query.ID("academic_year_id", f.AcademicYear),
		query.Sub("class_subject_id", "class_subjects", query.All(
			query.ID("subject_id", f.Subject),
			query.ID("class_id", f.Class),
		)),
		query.ID("student_id", f.Student),
	)
}

type StudentsReportFilter struct {
	Institution   string `query:"institution"`
	Grade         string `query:"grade"`
	Level         string `query:"level"`
	Class         string `query:"_class"`
	Subject       string `query:"subject"`
	Gender        string `query:"gender"`
	Status        string `query:"status"`
	StudentType   string `query:"student_type"`
	PaymentTerm   string `query:"payment_term"`
	PaymentStatus string `query:"payment_status"`
}

func (f StudentsReportFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("institution_id", f.Institution),
		query.ID("grade_id", f.Grade),
		query.Sub("grade_id", "grades", query.ID("level_id", f.Level)),
		query.SubSelect("id", "class_students", "student_id", query.All(
			query.ID("class_id", f.Class),
			query.SubSelect("class_id", "class_subjects", "class_id", query.ID("subject_id", f.Subject)),
		)),
		query.IExact("gender", f.Gender),
		query.Text("status", f.Status),
		query.ID("student_type_id", f.StudentType),
		f.payments(),
	)
}

// payments matches students with a payment of the term in the given status, "paid" by default.
func (f StudentsReportFilter) payments() sq.Sqlizer {
	term := query.ID("term_id", f.PaymentTerm)
	if query.IsIdentity(term) {
		return term
	}
	status := f.PaymentStatus
	if status == "" {
		status = "paid"
	}
	return query.SubSelect("id", "payments", "student_id", query.All(term, query.Text("status", status)))
}

type TeachersReportFilter struct {
	Institution string `query:"institution"`
	Subject     string `query:"subject"`
	Gender      string `query:"gender"`
}

func (f TeachersReportFilter) Where() sq.Sqlizer {
	return query.All(
		sq.Eq{"is_teacher": true},
		query.ID("institution_id", f.Institution),
		query.SubSelect("id", "class_subjects", "teacher_id", query.ID("subject_id", f.Subject)),
		query.IExact("gender", f.Gender),
	)
}

type AttendanceReportFilter struct {
	Institution     string `query:"institution"`
	Grade           string `query:"grade"`
	Level           string `query:"level"`
	Subject         string `query:"subject"`
	Class           string `query:"_class"`
	Term            string `query:"term"`
	AttendanceGroup string `query:"attendance_group"`
	Start           string `query:"start"`
	End             string `query:"end"`
}

func (f AttendanceReportFilter) Where() sq.Sqlizer {
	return query.All(
		query.Sub("student_id", "students", query.All(
			query.ID("institution_id", f.Institution),
			query.ID("grade_id", f.Grade),
			query.Sub("grade_id", "grades", query.ID("level_id", f.Level)),
		)),
		query.Sub("lesson_id", "lessons", query.All(
			query.DateRange("date", f.Start, f.End),
			query.Sub("period_id", "periods", query.Sub("class_subject_id", "class_subjects", query.All(
				query.ID("subject_id", f.Subject),
				query.ID("class_id", f.Class),
			))),
		)),
		query.ID("term_id", f.Term),
		query.ID("attendance_group_id", f.AttendanceGroup),
	)
}

// TeacherStudentsFilter narrows the students taught by a teacher.
type TeacherStudentsFilter struct {
	Class   string `query:"class_id"`
	Subject string `query:"subject_id"`
	Gender  string `query:"gender"`
	Search  string `query:"search"`
}

func (f TeacherStudentsFilter) Where() sq.Sqlizer {
	return query.All(
		query.SubSelect("id", "class_students", "student_id", query.All(
			query.ID("class_id", f.Class),
			query.SubSelect("class_id", "class_subjects", "class_id", query.ID("subject_id", f.Subject)),
		)),
		query.IExact("gender", f.Gender),
		query.NameSearch("first_name", "last_name", f.Search),
	)
}
