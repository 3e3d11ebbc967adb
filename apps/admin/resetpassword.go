package main

import (
	"context"
	"time"

	"github.com/edlabhq/exameval/core"
	"github.com/edlabhq/exameval/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}

	upd := user.User{ID: usr.ID, UpdatedAt: time.Now().UTC()}
	if err := upd.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateUser(ctx, upd); err != nil {
		return err
	}
	return nil
}
