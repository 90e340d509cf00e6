// Package people holds the students and employees of the institutions, with their
// contacts, addresses, parents and employment references.
package people

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

// Student statuses
const (
	StatusEnrolled  = "enrolled"
	StatusGraduated = "graduated"
	StatusLeft      = "left"
)

type StudentType struct {
	core.Model
	Name string `db:"name" json:"name" validate:"required,max=100"`
}

type Student struct {
	core.Model
	StudentID        null.String `db:"student_id" json:"student_id" validate:"omitempty,max=50"`
	FirstName        string      `db:"first_name" json:"first_name" validate:"required,max=150"`
	LastName         string      `db:"last_name" json:"last_name" validate:"required,max=150"`
	Gender           string      `db:"gender" json:"gender" validate:"omitempty,oneof=male female other"`
	InstitutionID    int         `db:"institution_id" json:"institution" validate:"required"`
	AcademicYear     string      `db:"academic_year" json:"academic_year"`
	GradeID          null.Int    `db:"grade_id" json:"grade"`
	BirthDate        core.Date   `db:"birth_date" json:"birth_date"`
	BirthPlace       string      `db:"birth_place" json:"birth_place"`
	Citizenship      string      `db:"citizenship" json:"citizenship"`
	Nationality      string      `db:"nationality" json:"nationality"`
	RegistrationDate core.Date   `db:"registration_date" json:"registration_date"`
	RegisterNumber   string      `db:"register_number" json:"register_number"`
	RegisterID       string      `db:"register_id" json:"register_id"`
	Language         string      `db:"language" json:"language"`
	Status           string      `db:"status" json:"status" validate:"omitempty,oneof=enrolled graduated left suspended"`
	DP               string      `db:"dp" json:"dp"`
	StudentTypeID    null.Int    `db:"student_type_id" json:"student_type"`
	InvitationCode   null.String `db:"invitation_code" json:"-"`
	Email            string      `db:"email" json:"email" validate:"omitempty,email"`
	UserID           null.Int    `db:"user_id" json:"user"`
}

func (s Student) Name() string { return s.FirstName + " " + s.LastName }

type StudentRead struct {
	Student
	Institution *tenant.Institution `json:"institution"`
	Grade       *school.Grade       `json:"grade"`
	StudentType *StudentType        `json:"student_type"`
}

type Parent struct {
	core.Model
	Type        string    `db:"type" json:"type"`
	FirstName   string    `db:"first_name" json:"first_name" validate:"required,max=150"`
	LastName    string    `db:"last_name" json:"last_name" validate:"required,max=150"`
	StudentID   int       `db:"student_id" json:"student" validate:"required"`
	BirthDate   core.Date `db:"birth_date" json:"birth_date"`
	BirthPlace  string    `db:"birth_place" json:"birth_place"`
	Citizenship string    `db:"citizenship" json:"citizenship"`
	Nationality string    `db:"nationality" json:"nationality"`
	Occupation  string    `db:"occupation" json:"occupation"`
	Language    string    `db:"language" json:"language"`
}

type StudentContact struct {
	core.Model
	Person    string `db:"person" json:"person"`
	Label     string `db:"label" json:"label"`
	Type      string `db:"type" json:"type"`
	Value     string `db:"value" json:"value" validate:"required,max=250"`
	StudentID int    `db:"student_id" json:"student" validate:"required"`
}

type StudentAddress struct {
	core.Model
	Label      string `db:"label" json:"label"`
	City       string `db:"city" json:"city"`
	PostalCode string `db:"postal_code" json:"postal_code"`
	StudentID  int    `db:"student_id" json:"student" validate:"required"`
}

// EmploymentPosition and EmploymentType share their shape.
type EmploymentPosition struct {
	core.Model
	Title          string `db:"title" json:"title" validate:"required,max=150"`
	Status         string `db:"status" json:"status"`
	OrganizationID int    `db:"organization_id" json:"organization"`
}

type EmploymentType struct {
	core.Model
	Title          string `db:"title" json:"title" validate:"required,max=150"`
	Status         string `db:"status" json:"status"`
	OrganizationID int    `db:"organization_id" json:"organization"`
}

type Employee struct {
	core.Model
	EmployeeID           null.String `db:"employee_id" json:"employee_id" validate:"omitempty,max=50"`
	FirstName            string      `db:"first_name" json:"first_name" validate:"required,max=150"`
	LastName             string      `db:"last_name" json:"last_name" validate:"required,max=150"`
	Gender               string      `db:"gender" json:"gender" validate:"omitempty,oneof=male female other"`
	InstitutionID        int         `db:"institution_id" json:"institution" validate:"required"`
	BirthDate            core.Date   `db:"birth_date" json:"birth_date"`
	BirthPlace           string      `db:"birth_place" json:"birth_place"`
	Citizenship          string      `db:"citizenship" json:"citizenship"`
	Nationality          string      `db:"nationality" json:"nationality"`
	Language             string      `db:"language" json:"language"`
	Email                string      `db:"email" json:"email" validate:"omitempty,email"`
	InvitationCode       null.String `db:"invitation_code" json:"-"`
	DP                   string      `db:"dp" json:"dp"`
	Archived             bool        `db:"archived" json:"archived"`
	EmploymentPositionID null.Int    `db:"employment_position_id" json:"employment_position"`
	EmploymentTypeID     null.Int    `db:"employment_type_id" json:"employment_type"`
	IsTeacher            bool        `db:"is_teacher" json:"is_teacher"`
	SpecialRole          null.String `db:"special_role" json:"special_role" validate:"omitempty,oneof=bursar librarian"`
	EmploymentStartDate  core.Date   `db:"employment_start_date" json:"employment_start_date"`
	EmploymentEndDate    core.Date   `db:"employment_end_date" json:"employment_end_date"`
	UserID               null.Int    `db:"user_id" json:"user"`
}

func (e Employee) Name() string { return e.FirstName + " " + e.LastName }

type EmployeeRead struct {
	Employee
	Institution        *tenant.Institution `json:"institution"`
	EmploymentPosition *EmploymentPosition `json:"employment_position"`
	EmploymentType     *EmploymentType     `json:"employment_type"`
}

type EmployeeContact struct {
	core.Model
	Label      string `db:"label" json:"label"`
	Type       string `db:"type" json:"type"`
	Value      string `db:"value" json:"value" validate:"required,max=250"`
	EmployeeID int    `db:"employee_id" json:"employee" validate:"required"`
}

type EmployeeAddress struct {
	core.Model
	Label      string `db:"label" json:"label"`
	City       string `db:"city" json:"city"`
	PostalCode string `db:"postal_code" json:"postal_code"`
	EmployeeID int    `db:"employee_id" json:"employee" validate:"required"`
}

type StudentFilter struct {
	Search      string `query:"search"`
	StudentID   string `query:"student_id"`
	Institution string `query:"institution"`
	Grade       string `query:"grade"`
	Status      string `query:"status"`
	Gender      string `query:"gender"`
	StudentType string `query:"student_type"`
}

func (f StudentFilter) Where() sq.Sqlizer {
	return query.All(
		query.NameSearch("first_name", "last_name", f.Search),
		query.Contains("student_id", f.StudentID),
		query.ID("institution_id", f.Institution),
		query.ID("grade_id", f.Grade),
		query.Text("status", f.Status),
		query.IExact("gender", f.Gender),
		query.ID("student_type_id", f.StudentType),
	)
}

// ByStudentFilter lists the rows attached to one student.
type ByStudentFilter struct {
	Student string `query:"student"`
}

func (f ByStudentFilter) Where() sq.Sqlizer {
	return query.ID("student_id", f.Student)
}

type ByEmployeeFilter struct {
	Employee string `query:"employee"`
}

func (f ByEmployeeFilter) Where() sq.Sqlizer {
	return query.ID("employee_id", f.Employee)
}

type EmploymentFilter struct {
	Search string `query:"search"`
	Status string `query:"status"`
}

func (f EmploymentFilter) Where() sq.Sqlizer {
	return query.All(query.Contains("title", f.Search), query.Text("status", f.Status))
}

type EmployeeFilter struct {
	Search      string `query:"search"`
	EmployeeID  string `query:"employee_id"`
	Institution string `query:"institution"`
	IsTeacher   string `query:"is_teacher"`
	SpecialRole string `query:"special_role"`
	Archived    string `query:"archived"`
	Gender      string `query:"gender"`
}

func (f EmployeeFilter) Where() sq.Sqlizer {
	return query.All(
		query.NameSearch("first_name", "last_name", f.Search),
		query.Contains("employee_id", f.EmployeeID),
		query.ID("institution_id", f.Institution),
		query.Bool("is_teacher", f.IsTeacher),
		query.Text("special_role", f.SpecialRole),
		query.Bool("archived", f.Archived),
		query.IExact("gender", f.Gender),
	)
}
