package people

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
)

var (
	ErrStudentIDExists  = errors.New("a student with this student_id already exists")
	ErrEmployeeIDExists = errors.New("an employee with this employee_id already exists")
)

type (
	Stores struct {
		StudentTypes        core.Store[StudentType]
		Students            core.Store[Student]
		Parents             core.Store[Parent]
		StudentContacts     core.Store[StudentContact]
		StudentAddresses    core.Store[StudentAddress]
		EmploymentPositions core.Store[EmploymentPosition]
		EmploymentTypes     core.Store[EmploymentType]
		Employees           core.Store[Employee]
		EmployeeContacts    core.Store[EmployeeContact]
		EmployeeAddresses   core.Store[EmployeeAddress]
	}

	// Loaders inline the rows of other packages in read projections.
	Loaders struct {
		Institutions core.Loader[tenant.Institution]
		Grades       core.Loader[school.Grade]
	}

	Service struct {
		StudentTypes        *core.CRUD[StudentType, StudentType]
		Students            *core.CRUD[Student, StudentRead]
		Parents             *core.CRUD[Parent, Parent]
		StudentContacts     *core.CRUD[StudentContact, StudentContact]
		StudentAddresses    *core.CRUD[StudentAddress, StudentAddress]
		EmploymentPositions *core.CRUD[EmploymentPosition, EmploymentPosition]
		EmploymentTypes     *core.CRUD[EmploymentType, EmploymentType]
		Employees           *core.CRUD[Employee, EmployeeRead]
		EmployeeContacts    *core.CRUD[EmployeeContact, EmployeeContact]
		EmployeeAddresses   *core.CRUD[EmployeeAddress, EmployeeAddress]

		stores  Stores
		loaders Loaders
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(db core.DB, stores Stores, loaders Loaders, mailSvc core.EmailService, conf *core.Config) *Service {
	svc := &Service{
		StudentTypes:      core.NewCRUD("Student type", stores.StudentTypes),
		Parents:           core.NewCRUD("Parent", stores.Parents),
		StudentContacts:   core.NewCRUD("Student contact", stores.StudentContacts),
		StudentAddresses:  core.NewCRUD("Student address", stores.StudentAddresses),
		EmployeeContacts:  core.NewCRUD("Employee contact", stores.EmployeeContacts),
		EmployeeAddresses: core.NewCRUD("Employee address", stores.EmployeeAddresses),
		stores:            stores,
		loaders:           loaders,
		mailSvc:           mailSvc,
		conf:              conf,
	}

	svc.EmploymentPositions = core.NewCRUD("Employment position", stores.EmploymentPositions)
	svc.EmploymentPositions.Prepare = func(_ context.Context, scope query.Scope, v, existing *EmploymentPosition, _ core.DBExecutor) error {
		if existing != nil {
			v.OrganizationID = existing.OrganizationID
			return nil
		}
		return core.StampOrganization(scope, &v.OrganizationID)
	}
	svc.EmploymentTypes = core.NewCRUD("Employment type", stores.EmploymentTypes)
	svc.EmploymentTypes.Prepare = func(_ context.Context, scope query.Scope, v, existing *EmploymentType, _ core.DBExecutor) error {
		if existing != nil {
			v.OrganizationID = existing.OrganizationID
			return nil
		}
		return core.StampOrganization(scope, &v.OrganizationID)
	}

	svc.Students = &core.CRUD[Student, StudentRead]{
		Entity:  "Student",
		Store:   stores.Students,
		DB:      db,
		Prepare: svc.prepareStudent,
		Saved: func(_ context.Context, _ query.Scope, v, existing *Student, _ core.DBExecutor) error {
			if existing == nil {
				svc.invite(v.Email, v.Name(), user.InviteStudent, v.InvitationCode.String)
			}
			return nil
		},
		Expand: svc.expandStudents,
	}
	svc.Employees = &core.CRUD[Employee, EmployeeRead]{
		Entity:  "Employee",
		Store:   stores.Employees,
		DB:      db,
		Prepare: svc.prepareEmployee,
		Saved: func(_ context.Context, _ query.Scope, v, existing *Employee, _ core.DBExecutor) error {
			if existing == nil {
				svc.invite(v.Email, v.Name(), user.InviteEmployee, v.InvitationCode.String)
			}
			return nil
		},
		Expand: svc.expandEmployees,
	}
	return svc
}

// prepareStudent checks student_id uniqueness within the organization, in the write transaction,
// and issues the invitation code of new students.
func (svc *Service) prepareStudent(ctx context.Context, scope query.Scope, v, existing *Student, tx core.DBExecutor) error {
	blankAsNull(&v.StudentID)
	if existing != nil {
		v.InvitationCode = existing.InvitationCode
		v.UserID = existing.UserID
		if v.StudentID == existing.StudentID && v.InstitutionID == existing.InstitutionID {
			return nil
		}
	} else {
		v.UserID.Valid = false
		v.InvitationCode.SetValid(user.NewInvitationCode())
		if v.Status == "" {
			v.Status = StatusEnrolled
		}
	}
	// student_id is optional, and unique within the organization when present
	if !v.StudentID.Valid {
		return nil
	}
	n, err := svc.stores.Students.Count(ctx, scope, query.All(
		sq.Eq{"student_id": v.StudentID.String},
		sq.NotEq{"id": v.ID},
		sameOrganization(v.InstitutionID),
	), tx)
	if err != nil {
		return errors.Wrap(err, "checking student_id")
	}
	if n > 0 {
		return core.NewValidationError(ErrStudentIDExists, core.FieldError{Field: "student_id", Error: ErrStudentIDExists.Error()})
	}
	return nil
}

func (svc *Service) prepareEmployee(ctx context.Context, scope query.Scope, v, existing *Employee, tx core.DBExecutor) error {
	blankAsNull(&v.EmployeeID)
	if existing != nil {
		v.InvitationCode = existing.InvitationCode
		v.UserID = existing.UserID
		if v.EmployeeID == existing.EmployeeID && v.InstitutionID == existing.InstitutionID {
			return nil
		}
	} else {
		v.UserID.Valid = false
		v.InvitationCode.SetValid(user.NewInvitationCode())
	}
	if !v.EmployeeID.Valid {
		return nil
	}
	n, err := svc.stores.Employees.Count(ctx, scope, query.All(
		sq.Eq{"employee_id": v.EmployeeID.String},
		sq.NotEq{"id": v.ID},
		sameOrganization(v.InstitutionID),
	), tx)
	if err != nil {
		return errors.Wrap(err, "checking employee_id")
	}
	if n > 0 {
		return core.NewValidationError(ErrEmployeeIDExists, core.FieldError{Field: "employee_id", Error: ErrEmployeeIDExists.Error()})
	}
	return nil
}

// blankAsNull stores a blank identifier as NULL.
func blankAsNull(s *null.String) {
	s.String = strings.TrimSpace(s.String)
	if s.String == "" {
		*s = null.String{}
	}
}

// sameOrganization matches rows of the institutions sharing the organization of institutionID.
func sameOrganization(institutionID int) sq.Sqlizer {
	return sq.Expr(
		"institution_id IN (SELECT id FROM institutions WHERE organization_id = "+
			"(SELECT organization_id FROM institutions WHERE id = ?))",
		institutionID,
	)
}

// invite mails the registration link of a newly added person.
func (svc *Service) invite(email, name, kind, code string) {
	if email == "" || code == "" {
		return
	}
	svc.mailSvc.SendMessages(user.InvitationMessage(svc.conf.FrontendBaseURL, email, name, kind, code))
}

// StudentByUser returns the student profile of a user.
func (svc *Service) StudentByUser(ctx context.Context, userID int) (Student, error) {
	return svc.stores.Students.First(ctx, query.Global(), sq.Eq{"user_id": userID})
}

// EmployeeByUser returns the employee profile of a user.
func (svc *Service) EmployeeByUser(ctx context.Context, userID int) (Employee, error) {
	return svc.stores.Employees.First(ctx, query.Global(), sq.Eq{"user_id": userID})
}

func (svc *Service) expandStudents(ctx context.Context, items []Student) ([]StudentRead, error) {
	insts, err := svc.loaders.Institutions.GetMany(ctx, core.IDs(items, func(s Student) int { return s.InstitutionID }))
	if err != nil {
		return nil, err
	}
	grades, err := svc.loaders.Grades.GetMany(ctx, core.IDs(items, func(s Student) int { return s.GradeID.Int }))
	if err != nil {
		return nil, err
	}
	types, err := svc.stores.StudentTypes.GetMany(ctx, core.IDs(items, func(s Student) int { return s.StudentTypeID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]StudentRead, len(items))
	for i, it := range items {
		res[i] = StudentRead{
			Student:     it,
			Institution: core.Ref(insts, it.InstitutionID),
			Grade:       core.Ref(grades, it.GradeID.Int),
			StudentType: core.Ref(types, it.StudentTypeID.Int),
		}
	}
	return res, nil
}

func (svc *Service) expandEmployees(ctx context.Context, items []Employee) ([]EmployeeRead, error) {
	insts, err := svc.loaders.Institutions.GetMany(ctx, core.IDs(items, func(e Employee) int { return e.InstitutionID }))
	if err != nil {
		return nil, err
	}
	positions, err := svc.stores.EmploymentPositions.GetMany(ctx, core.IDs(items, func(e Employee) int { return e.EmploymentPositionID.Int }))
	if err != nil {
		return nil, err
	}
	types, err := svc.stores.EmploymentTypes.GetMany(ctx, core.IDs(items, func(e Employee) int { return e.EmploymentTypeID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]EmployeeRead, len(items))
	for i, it := range items {
		res[i] = EmployeeRead{
			Employee:           it,
			Institution:        core.Ref(insts, it.InstitutionID),
			EmploymentPosition: core.Ref(positions, it.EmploymentPositionID.Int),
			EmploymentType:     core.Ref(types, it.EmploymentTypeID.Int),
		}
	}
	return res, nil
}
