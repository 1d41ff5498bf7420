package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

// addUser updates or creates an active user.User with the given roles.
func (cli *commandLine) addUser(uname, email, pwd string, roles []string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	roles = core.CleanStrings(roles, true /* lower */)

	if err := cli.rbacSvc.RolesExist(ctx, roles); err != nil {
		return err
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Name: uname, Username: uname, Email: email}
	}
	if usr.Name == "" {
		usr.Name = usr.DisplayName()
	}
	usr.Roles = roles
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
