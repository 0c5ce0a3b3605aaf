package main

import (
	"context"
	"time"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, uname}})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = user.NowFunc().UTC().Truncate(time.Millisecond)
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}

// expire deactivates the accounts whose validity date has passed.
func (cli *commandLine) expire() (int, error) {
	return cli.usrRepo.DeactivateExpiredUsers(context.Background(), user.NowFunc().UTC())
}
