package sqlxrepos

import (
	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
)

var (
	StudentTypesMeta        = Meta{Entity: "Student type", Table: "student_types", Scope: query.Public()}
	StudentsMeta            = Meta{Entity: "Student", Table: "students", Scope: query.ByInstitution("institution_id")}
	EmploymentPositionsMeta = Meta{Entity: "Employment position", Table: "employment_positions", Scope: query.ByOrganization("organization_id")}
	EmploymentTypesMeta     = Meta{Entity: "Employment type", Table: "employment_types", Scope: query.ByOrganization("organization_id")}
	EmployeesMeta           = Meta{Entity: "Employee", Table: "employees", Scope: query.ByInstitution("institution_id")}

	// rows reaching their tenant through a student or an employee
	byStudent  = query.Through("student_id", "students", StudentsMeta.Scope)
	byEmployee = query.Through("employee_id", "employees", EmployeesMeta.Scope)
)

func NewPeopleStores(db core.DB) people.Stores {
	studentRef := []Ref{{Column: "student_id", To: StudentsMeta}}
	employeeRef := []Ref{{Column: "employee_id", To: EmployeesMeta}}
	return people.Stores{
		StudentTypes: NewStore(db, Table[people.StudentType]{
			Meta: StudentTypesMeta, Columns: []string{"name"}, Ordering: nameOrdering,
		}),
		Students: NewStore(db, Table[people.Student]{
			Meta: StudentsMeta,
			Columns: []string{
				"student_id", "first_name", "last_name", "gender", "institution_id", "academic_year", "grade_id",
				"birth_date", "birth_place", "citizenship", "nationality", "registration_date", "register_number",
				"register_id", "language", "status", "dp", "student_type_id", "invitation_code", "email", "user_id",
			},
			Refs: []Ref{
				{Column: "institution_id", To: InstitutionsMeta},
				{Column: "grade_id", To: GradesMeta},
				{Column: "student_type_id", To: StudentTypesMeta},
			},
		}),
		Parents: NewStore(db, Table[people.Parent]{
			Meta: Meta{Entity: "Parent", Table: "parents", Scope: byStudent},
			Columns: []string{
				"type", "first_name", "last_name", "student_id", "birth_date", "birth_place", "citizenship",
				"nationality", "occupation", "language",
			},
			Refs: studentRef,
		}),
		StudentContacts: NewStore(db, Table[people.StudentContact]{
			Meta:    Meta{Entity: "Student contact", Table: "student_contacts", Scope: byStudent},
			Columns: []string{"person", "label", "type", "value", "student_id"},
			Refs:    studentRef,
		}),
		StudentAddresses: NewStore(db, Table[people.StudentAddress]{
			Meta:    Meta{Entity: "Student address", Table: "student_addresses", Scope: byStudent},
			Columns: []string{"label", "city", "postal_code", "student_id"},
			Refs:    studentRef,
		}),
		EmploymentPositions: NewStore(db, Table[people.EmploymentPosition]{
			Meta:     EmploymentPositionsMeta,
			Columns:  []string{"title", "status", "organization_id"},
			Ordering: []core.DBOrdering{{Field: "title", Ascending: true}},
			Refs:     []Ref{{Column: "organization_id", To: OrganizationsMeta}},
		}),
		EmploymentTypes: NewStore(db, Table[people.EmploymentType]{
			Meta:     EmploymentTypesMeta,
			Columns:  []string{"title", "status", "organization_id"},
			Ordering: []core.DBOrdering{{Field: "title", Ascending: true}},
			Refs:     []Ref{{Column: "organization_id", To: OrganizationsMeta}},
		}),
		Employees: NewStore(db, Table[people.Employee]{
			Meta: EmployeesMeta,
			Columns: []string{
				"employee_id", "first_name", "last_name", "gender", "institution_id", "birth_date", "birth_place",
				"citizenship", "nationality", "language", "email", "invitation_code", "dp", "archived",
				"employment_position_id", "employment_type_id", "is_teacher", "special_role",
				"employment_start_date", "employment_end_date", "user_id",
			},
			Refs: []Ref{
				{Column: "institution_id", To: InstitutionsMeta},
				{Column: "employment_position_id", To: EmploymentPositionsMeta},
				{Column: "employment_type_id", To: EmploymentTypesMeta},
			},
		}),
		EmployeeContacts: NewStore(db, Table[people.EmployeeContact]{
			Meta:    Meta{Entity: "Employee contact", Table: "employee_contacts", Scope: byEmployee},
			Columns: []string{"label", "type", "value", "employee_id"},
			Refs:    employeeRef,
		}),
		EmployeeAddresses: NewStore(db, Table[people.EmployeeAddress]{
			Meta:    Meta{Entity: "Employee address", Table: "employee_addresses", Scope: byEmployee},
			Columns: []string{"label", "city", "postal_code", "employee_id"},
			Refs:    employeeRef,
		}),
	}
}
