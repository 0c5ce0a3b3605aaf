package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/user"
)

// addUser updates or creates an admin user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isOwner bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := user.NowFunc().UTC().Truncate(time.Millisecond)
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	if usr.IsStudent() {
		return errors.Errorf("%q is a student account", usr.Email)
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}

	usr.Roles = []string{user.RoleAdmin}
	if isOwner {
		usr.Roles = user.AdminRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = user.NowFunc().UTC().Truncate(time.Millisecond)
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
