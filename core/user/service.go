package user

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("User")
	ErrUsernameExists     = errors.New("Username already exists")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrInactive           = errors.New("User account not activated. Contact your administrator")
	ErrInvalidInvitation  = errors.New("Invalid invitation code")
	ErrInvalidResetLink   = errors.New("Invalid or expired password reset link")
)

type (
	Repository interface {
		core.Store[User]

		// CheckUniqueness fails with ErrUsernameExists or ErrEmailExists, ignoring the user excludeID.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int, exec ...core.DBExecutor) error
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error
		SetLastSession(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error
		SetPassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error
	}

	// InvitationRepository finds and claims the invitation codes issued to students, employees
	// and publisher users.
	InvitationRepository interface {
		FindInvitation(ctx context.Context, kind, code string, exec ...core.DBExecutor) (Invitee, error)
		ClaimInvitation(ctx context.Context, inv Invitee, userID int, exec ...core.DBExecutor) error
	}

	// GetFilter looks a single user up, unscoped. Only set fields are matched.
	GetFilter struct {
		ID       int
		Username string
		Email    string
	}

	Service interface {
		Create(ctx context.Context, scope query.Scope, nu NewUser, exec ...core.DBExecutor) (User, error)
		Register(ctx context.Context, data Registration) (User, error)
		Login(ctx context.Context, username, pwd string) (User, error)
		GetByID(ctx context.Context, id int) (User, error)
		TouchSession(ctx context.Context, usr User) error
		List(ctx context.Context, scope query.Scope, params core.ListParams) (core.Page[User], error)
		ToggleActive(ctx context.Context, scope query.Scope, id int) (User, error)
		RequestPasswordReset(ctx context.Context, username string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		db          core.DB
		repo        Repository
		invitations InvitationRepository
		mailSvc     core.EmailService
		conf        *core.Config
		tokens      tokenGenerator
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	db core.DB,
	repo Repository,
	invitations InvitationRepository,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return &service{
		db:          db,
		repo:        repo,
		invitations: invitations,
		mailSvc:     mailSvc,
		conf:        conf,
		tokens:      newTokenGenerator(conf),
	}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, excludeID int, exec ...core.DBExecutor) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludeID, exec...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create adds a user within the caller's organization; superusers may pick any organization.
func (svc *service) Create(ctx context.Context, scope query.Scope, nu NewUser, exec ...core.DBExecutor) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, 0, exec...); err != nil {
		return User{}, err
	}
	usr := User{
		Username:     nu.Username,
		Email:        nu.Email,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		DP:           nu.DP,
		Role:         nu.Role,
		SpecialRole:  null.NewString(nu.SpecialRole, nu.SpecialRole != ""),
		IsSuperuser:  nu.IsSuperuser,
		IsActive:     true,
		IsFirstLogin: true,
	}
	orgID := nu.OrganizationID
	if !scope.Superuser {
		orgID = scope.OrganizationID
	}
	usr.OrganizationID = null.NewInt(orgID, orgID > 0)
	usr.PublisherID = null.NewInt(nu.PublisherID, nu.PublisherID > 0)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	if err := svc.repo.Create(ctx, scope, &usr, exec...); err != nil {
		return User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

// Register turns an invitation into an account, in one transaction.
func (svc *service) Register(ctx context.Context, data Registration) (User, error) {
	var usr User
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		inv, err := svc.invitations.FindInvitation(ctx, data.Type, data.InvitationCode, tx)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(ErrInvalidInvitation)
			}
			return errors.Wrap(err, "finding invitation")
		}
		if err = svc.checkUniqueness(ctx, data.Username, "", 0, tx); err != nil {
			return err
		}

		usr = User{
			Username:       data.Username,
			Email:          inv.Email,
			FirstName:      inv.FirstName,
			LastName:       inv.LastName,
			DP:             inv.DP,
			OrganizationID: inv.OrganizationID,
			PublisherID:    inv.PublisherID,
			Role:           inv.Role(),
			SpecialRole:    inv.SpecialRole,
			IsActive:       true,
			IsFirstLogin:   true,
		}
		if err = usr.SetPassword(data.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		if err = svc.repo.Create(ctx, query.Global(), &usr, tx); err != nil {
			return errors.Wrap(err, "inserting user")
		}
		return errors.Wrap(svc.invitations.ClaimInvitation(ctx, inv, usr.ID, tx), "claiming invitation")
	})
	return usr, err
}

func (svc *service) Login(ctx context.Context, username, pwd string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, core.NewValidationError(ErrInvalidCredentials)
		}
		return User{}, errors.Wrap(err, "finding user by username")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, core.NewValidationError(ErrInvalidCredentials)
	}
	if !usr.IsActive {
		return User{}, core.NewValidationError(ErrInactive)
	}

	now := time.Now().UTC()
	if err = svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, errors.Wrap(err, "setting last login")
	}
	usr.LastLogin = null.TimeFrom(now)
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) TouchSession(ctx context.Context, usr User) error {
	return svc.repo.SetLastSession(ctx, usr.ID, time.Now().UTC())
}

func (svc *service) List(ctx context.Context, scope query.Scope, params core.ListParams) (core.Page[User], error) {
	users, count, err := svc.repo.List(ctx, scope, params)
	if err != nil {
		return core.Page[User]{}, errors.Wrap(err, "listing users")
	}
	return core.Page[User]{Count: count, Results: users}, nil
}

// ToggleActive flips the active flag of a user within scope.
func (svc *service) ToggleActive(ctx context.Context, scope query.Scope, id int) (User, error) {
	var usr User
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.Get(ctx, scope, id, tx); err != nil {
			return err
		}
		usr.IsActive = !usr.IsActive
		return svc.repo.Update(ctx, scope, &usr, tx)
	})
	return usr, err
}

// RequestPasswordReset mails a reset link to the user; unknown usernames are not reported.
func (svc *service) RequestPasswordReset(ctx context.Context, username string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	if usr.Email == "" {
		return
	}
	link := fmt.Sprintf("%s/reset-password?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), svc.tokens.makeToken(usr))
	svc.mailSvc.SendMessages(core.NewEmailMessage(
		usr.Email,
		"School Management System Password Reset",
		map[string]interface{}{"name": usr.Name(), "registration_url": link},
	))
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidResetLink)
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrInvalidResetLink)
		}
		return errors.Wrap(err, "finding user")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(ErrInvalidResetLink)
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.SetPassword(ctx, usr.ID, usr.PasswordHash)
}

// Where matches the filter's set fields.
func (f GetFilter) Where() sq.Sqlizer {
	return query.All(
		query.Eq("id", f.ID),
		query.Eq("username", f.Username),
		query.Eq("email", f.Email),
	)
}
