package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
)

var (
	OrganizationsMeta = Meta{Entity: "Organization", Table: "organizations", Scope: query.ByOrganization("id")}
	InstitutionsMeta  = Meta{Entity: "Institution", Table: "institutions", Scope: query.ByOrganization("organization_id")}
	PublishersMeta    = Meta{Entity: "Publisher", Table: "publishers", Scope: query.Public()}
	UsersMeta         = Meta{Entity: "User", Table: "users", Scope: query.ByOrganization("organization_id")}
)

type userRepository struct {
	core.Store[user.User]
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{
		db: db,
		Store: NewStore(db, Table[user.User]{
			Meta: UsersMeta,
			Columns: []string{
				"username", "email", "first_name", "last_name", "dp", "organization_id", "publisher_id", "role",
				"special_role", "is_superuser", "is_active", "is_first_login", "last_login", "last_session",
				"password_hash",
			},
			Ordering: []core.DBOrdering{{Field: "id", Ascending: false}},
			Refs: []Ref{
				{Column: "organization_id", To: OrganizationsMeta},
				{Column: "publisher_id", To: PublishersMeta},
			},
		}),
	}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int, exec ...core.DBExecutor) error {
	where := sq.And{sq.NotEq{"id": excludeID}}
	match := sq.Or{sq.Eq{"username": username}}
	if email != "" {
		match = append(match, query.IExact("email", email))
	}
	where = append(where, match)

	q, args, err := psql.Select("username").From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var found string
	err = sqlx.GetContext(ctx, core.Exec(repo.db, exec), &found, q, args...)
	switch {
	case isNoRows(err):
		return nil
	case err != nil:
		return errors.Wrap(err, "checking uniqueness")
	case found == username:
		return user.ErrUsernameExists
	default:
		return user.ErrEmailExists
	}
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	usr, err := repo.First(ctx, query.Global(), filter.Where(), exec...)
	if core.IsNotFound(err) {
		return usr, user.ErrNotFound
	}
	return usr, err
}

func (repo *userRepository) setColumn(ctx context.Context, id int, col string, val interface{}, exec []core.DBExecutor) error {
	q, args, err := psql.Update("users").Set(col, val).Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrapf(err, "building %s update", col)
	}
	if _, err = core.Exec(repo.db, exec).ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "updating %s", col)
	}
	return nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	return repo.setColumn(ctx, id, "last_login", at, exec)
}

func (repo *userRepository) SetLastSession(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	return repo.setColumn(ctx, id, "last_session", at, exec)
}

func (repo *userRepository) SetPassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error {
	return repo.setColumn(ctx, id, "password_hash", hash, exec)
}

// invitationRepository looks invitation codes up in the tables of the people that can be invited.
type invitationRepository struct {
	db core.DB
}

var _ user.InvitationRepository = (*invitationRepository)(nil) // interface compliance check

func NewInvitationRepository(db core.DB) user.InvitationRepository {
	return &invitationRepository{db: db}
}

// invitation tables share the columns selected by FindInvitation
var invitationSources = map[string]struct {
	table string
	query string
}{
	user.InviteStudent: {
		table: "students",
		query: `SELECT s.id, s.email, s.first_name, s.last_name, s.dp, i.organization_id,
			NULL::int AS publisher_id, FALSE AS is_teacher, NULL::varchar AS special_role
			FROM students s JOIN institutions i ON i.id = s.institution_id
			WHERE s.invitation_code = $1 AND s.user_id IS NULL`,
	},
	user.InviteEmployee: {
		table: "employees",
		query: `SELECT e.id, e.email, e.first_name, e.last_name, e.dp, i.organization_id,
			NULL::int AS publisher_id, e.is_teacher, e.special_role
			FROM employees e JOIN institutions i ON i.id = e.institution_id
			WHERE e.invitation_code = $1 AND e.user_id IS NULL`,
	},
	user.InvitePublisher: {
		table: "publisher_users",
		query: `SELECT p.id, p.email, p.first_name, p.last_name, '' AS dp, NULL::int AS organization_id,
			p.publisher_id, FALSE AS is_teacher, NULL::varchar AS special_role
			FROM publisher_users p
			WHERE p.invitation_code = $1 AND p.user_id IS NULL`,
	},
}

func (repo *invitationRepository) FindInvitation(ctx context.Context, kind, code string, exec ...core.DBExecutor) (user.Invitee, error) {
	src, ok := invitationSources[kind]
	if !ok || code == "" {
		return user.Invitee{}, core.NewNotFoundError("Invitation")
	}
	var row struct {
		ID             int     `db:"id"`
		Email          string  `db:"email"`
		FirstName      string  `db:"first_name"`
		LastName       string  `db:"last_name"`
		DP             string  `db:"dp"`
		OrganizationID *int    `db:"organization_id"`
		PublisherID    *int    `db:"publisher_id"`
		IsTeacher      bool    `db:"is_teacher"`
		SpecialRole    *string `db:"special_role"`
	}
	if err := sqlx.GetContext(ctx, core.Exec(repo.db, exec), &row, src.query+" FOR UPDATE", code); err != nil {
		if isNoRows(err) {
			return user.Invitee{}, core.NewNotFoundError("Invitation")
		}
		return user.Invitee{}, errors.Wrap(err, "finding invitation")
	}

	inv := user.Invitee{
		Kind:      kind,
		ID:        row.ID,
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		DP:        row.DP,
		IsTeacher: row.IsTeacher,
	}
	if row.OrganizationID != nil {
		inv.OrganizationID.SetValid(*row.OrganizationID)
	}
	if row.PublisherID != nil {
		inv.PublisherID.SetValid(*row.PublisherID)
	}
	if row.SpecialRole != nil && *row.SpecialRole != "" {
		inv.SpecialRole.SetValid(*row.SpecialRole)
	}
	return inv, nil
}

func (repo *invitationRepository) ClaimInvitation(ctx context.Context, inv user.Invitee, userID int, exec ...core.DBExecutor) error {
	src, ok := invitationSources[inv.Kind]
	if !ok {
		return errors.Errorf("unknown invitation kind %q", inv.Kind)
	}
	q, args, err := psql.Update(src.table).
		Set("user_id", userID).
		Set("invitation_code", nil).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": inv.ID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building claim")
	}
	_, err = core.Exec(repo.db, exec).ExecContext(ctx, q, args...)
	return errors.Wrap(err, "claiming invitation")
}
