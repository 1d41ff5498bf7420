package main

import (
	"context"
	"fmt"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

func (cli *commandLine) seedRoles() error {
	if err := cli.rbacSvc.Seed(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "system roles seeded")
	return nil
}

// importProfiles runs the CSV import as a super admin and prints the row errors.
func (cli *commandLine) importProfiles(path string) error {
	f, err := cli.openFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	actor := core.NewActor("", []string{user.RoleSuperAdmin}, rbac.AllPermissionCodes())
	res, err := cli.umkmSvc.ImportCSV(context.Background(), actor, f)
	if err != nil {
		return err
	}
	for _, rowErr := range res.Errors {
		fmt.Fprintln(cli.out, rowErr.Error())
	}
	fmt.Fprintf(cli.out, "%d profiles created, %d rows rejected\n", res.Created, len(res.Errors))
	return nil
}
