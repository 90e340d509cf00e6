package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/user"
)

// Student and employee records are read by staff and written by admins.
func registerPeopleAPI(_, authed *echo.Group, deps ServerDeps) {
	svc, validate := deps.People, deps.Validate
	staff := mw(roleMiddleware(user.RoleAdmin, user.RoleEmployee, user.RoleTeacher))
	admin := mw(adminMiddleware())

	newCRUDAPI[people.StudentType, people.StudentType, school.NameFilter](svc.StudentTypes, validate).
		register(authed, "/student-types", nil, mw(superuserMiddleware()))
	newCRUDAPI[people.Student, people.StudentRead, people.StudentFilter](svc.Students, validate).
		register(authed, "/students", staff, admin)
	newCRUDAPI[people.Parent, people.Parent, people.ByStudentFilter](svc.Parents, validate).
		register(authed, "/parents", staff, admin)
	newCRUDAPI[people.StudentContact, people.StudentContact, people.ByStudentFilter](svc.StudentContacts, validate).
		register(authed, "/student-contacts", staff, admin)
	newCRUDAPI[people.StudentAddress, people.StudentAddress, people.ByStudentFilter](svc.StudentAddresses, validate).
		register(authed, "/student-addresses", staff, admin)

	newCRUDAPI[people.EmploymentPosition, people.EmploymentPosition, people.EmploymentFilter](svc.EmploymentPositions, validate).
		register(authed, "/employment-positions", staff, admin)
	newCRUDAPI[people.EmploymentType, people.EmploymentType, people.EmploymentFilter](svc.EmploymentTypes, validate).
		register(authed, "/employment-types", staff, admin)
	newCRUDAPI[people.Employee, people.EmployeeRead, people.EmployeeFilter](svc.Employees, validate).
		register(authed, "/employees", staff, admin)
	newCRUDAPI[people.EmployeeAddress, people.EmployeeAddress, people.ByEmployeeFilter](svc.EmployeeAddresses, validate).
		register(authed, "/employee-addresses", staff, admin)
	newCRUDAPI[people.EmployeeContact, people.EmployeeContact, people.ByEmployeeFilter](svc.EmployeeContacts, validate).
		register(authed, "/employee-contacts", staff, admin)
}
