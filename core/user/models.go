package user

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
)

// Roles
const (
	RoleAdmin     = "admin"
	RoleEmployee  = "employee"
	RoleTeacher   = "teacher"
	RoleStudent   = "student"
	RoleParent    = "parent"
	RolePublisher = "publisher"

	SpecialRoleBursar    = "bursar"
	SpecialRoleLibrarian = "librarian"
)

// Invitation kinds
const (
	InviteEmployee  = "employee"
	InviteStudent   = "student"
	InvitePublisher = "publisher"
)

var AllRoles = []string{RoleAdmin, RoleEmployee, RoleTeacher, RoleStudent, RoleParent, RolePublisher}

type User struct {
	core.Model
	Username       string      `db:"username" json:"username"`
	Email          string      `db:"email" json:"email"`
	FirstName      string      `db:"first_name" json:"first_name"`
	LastName       string      `db:"last_name" json:"last_name"`
	DP             string      `db:"dp" json:"dp"`
	OrganizationID null.Int    `db:"organization_id" json:"organization"`
	PublisherID    null.Int    `db:"publisher_id" json:"publisher"`
	Role           string      `db:"role" json:"role"`
	SpecialRole    null.String `db:"special_role" json:"special_role"`
	IsSuperuser    bool        `db:"is_superuser" json:"is_superuser"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	IsFirstLogin   bool        `db:"is_first_login" json:"is_first_login"`
	LastLogin      null.Time   `db:"last_login" json:"last_login"`
	LastSession    null.Time   `db:"last_session" json:"last_session"`
	PasswordHash   []byte      `db:"password_hash" json:"-"`
}

func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) HasRole(roles ...string) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool     { return u.IsSuperuser || u.Role == RoleAdmin }
func (u User) IsTeacher() bool   { return u.Role == RoleTeacher }
func (u User) IsStudent() bool   { return u.Role == RoleStudent }
func (u User) IsPublisher() bool { return u.Role == RolePublisher }

func (u User) HasSpecialRole(role string) bool {
	return u.SpecialRole.Valid && u.SpecialRole.String == role
}

// Scope is the visibility boundary of the user's requests.
func (u User) Scope() query.Scope {
	return query.Scope{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID.Int,
		PublisherID:    u.PublisherID.Int,
		Superuser:      u.IsSuperuser,
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=5,max=25,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"omitempty,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=admin employee teacher student parent publisher"`
	SpecialRole     string `json:"special_role" validate:"omitempty,oneof=bursar librarian"`
	OrganizationID  int    `json:"organization"`
	PublisherID     int    `json:"publisher"`
	IsSuperuser     bool   `json:"-"`
	DP              string `json:"dp"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	return validate.Struct(nu)
}

// Registration claims an invitation issued to a student, an employee or a publisher user.
type Registration struct {
	Type            string `json:"type" validate:"required,oneof=employee student publisher"`
	InvitationCode  string `json:"invitation_code" validate:"required"`
	Username        string `json:"username" validate:"required,min=5,max=25,alphanum_"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"omitempty,eqfield=Password"`
}

func (r *Registration) Validate(validate *validator.Validate) error {
	r.Type = core.CleanString(r.Type, true /* lower */)
	r.InvitationCode = core.CleanString(r.InvitationCode)
	r.Username = core.CleanString(r.Username, true /* lower */)
	return validate.Struct(r)
}

// Invitee is the person an invitation code was issued to.
type Invitee struct {
	Kind           string
	ID             int
	Email          string
	FirstName      string
	LastName       string
	DP             string
	OrganizationID null.Int
	PublisherID    null.Int
	IsTeacher      bool
	SpecialRole    null.String
}

// Role returns the user role granted by the invitation.
func (inv Invitee) Role() string {
	switch inv.Kind {
	case InviteStudent:
		return RoleStudent
	case InvitePublisher:
		return RolePublisher
	default:
		if inv.IsTeacher {
			return RoleTeacher
		}
		return RoleEmployee
	}
}

type ForgotPassword struct {
	Username string `json:"username" validate:"required"`
}

func (fp *ForgotPassword) Validate(validate *validator.Validate) error {
	fp.Username = core.CleanString(fp.Username, true /* lower */)
	return validate.Struct(fp)
}

type ResetUserPassword struct {
	Token           string `json:"token" validate:"required"`
	UID             string `json:"uid" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"omitempty,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// QueryFilter is the superuser listing of users.
type QueryFilter struct {
	Search       string `query:"search"`
	Organization string `query:"organization"`
	Grade        string `query:"grade"`
	Level        string `query:"level"`
	Role         string `query:"role"`
	IsActive     string `query:"is_active"`
}

func (qf QueryFilter) Where() sq.Sqlizer {
	return query.All(
		query.NameSearch("first_name", "last_name", qf.Search),
		query.ID("organization_id", qf.Organization),
		query.SubSelect("id", "students", "user_id", query.ID("grade_id", qf.Grade)),
		query.SubSelect("id", "students", "user_id", query.Sub("grade_id", "grades", query.ID("level_id", qf.Level))),
		query.Text("role", qf.Role),
		query.Bool("is_active", qf.IsActive),
	)
}
