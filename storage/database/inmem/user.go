package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
)

// UserRepository is the in-memory user.Repository.
type UserRepository struct {
	*Store[user.User]
}

var _ user.Repository = (*UserRepository)(nil) // interface compliance check

func NewUserRepository(users ...user.User) *UserRepository {
	return &UserRepository{
		Store: NewStore("User", func(u user.User) int { return u.OrganizationID.Int }, users...),
	}
}

func (repo *UserRepository) CheckUniqueness(_ context.Context, username, email string, excludeID int, _ ...core.DBExecutor) error {
	for _, usr := range repo.Rows() {
		if usr.ID == excludeID {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *UserRepository) GetUser(_ context.Context, f user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	for _, usr := range repo.Rows() {
		if (f.ID == 0 || usr.ID == f.ID) &&
			(f.Username == "" || usr.Username == f.Username) &&
			(f.Email == "" || usr.Email == f.Email) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *UserRepository) set(ctx context.Context, id int, fn func(usr *user.User)) error {
	usr, err := repo.Get(ctx, query.Global(), id)
	if err != nil {
		return err
	}
	fn(&usr)
	return repo.Update(ctx, query.Global(), &usr)
}

func (repo *UserRepository) SetLastLogin(ctx context.Context, id int, at time.Time, _ ...core.DBExecutor) error {
	return repo.set(ctx, id, func(usr *user.User) { usr.LastLogin = null.TimeFrom(at) })
}

func (repo *UserRepository) SetLastSession(ctx context.Context, id int, at time.Time, _ ...core.DBExecutor) error {
	return repo.set(ctx, id, func(usr *user.User) { usr.LastSession = null.TimeFrom(at) })
}

func (repo *UserRepository) SetPassword(ctx context.Context, id int, hash []byte, _ ...core.DBExecutor) error {
	return repo.set(ctx, id, func(usr *user.User) { usr.PasswordHash = hash })
}
