package main

import (
	"context"
	"fmt"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(uname, email, pwd string, superuser bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	exists := err == nil
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		if err = cli.usrRepo.CheckUniqueness(ctx, uname, email, 0); err != nil {
			return err
		}
		usr = user.User{Username: uname, Email: email}
	}
	if email != "" {
		usr.Email = email
	}
	if superuser {
		usr.IsSuperuser = true
	}
	usr.IsActive = true
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		err = cli.usrRepo.Update(ctx, query.Global(), &usr)
	} else {
		err = cli.usrRepo.Create(ctx, query.Global(), &usr)
	}
	if err != nil {
		return err
	}
	fmt.Printf("user %q saved (id %d)\n", usr.Username, usr.ID)
	return nil
}
