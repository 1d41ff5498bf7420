package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/tests"
)

type migration struct {
	command string
	args    []string
}

type cliEnv struct {
	cli        *commandLine
	app        *testutil.App
	migrations []migration
	files      map[string]string
	out        *bytes.Buffer
}

func setup(t *testing.T) *cliEnv {
	env := &cliEnv{
		app:   testutil.NewApp(t),
		files: make(map[string]string),
		out:   new(bytes.Buffer),
	}
	env.cli = &commandLine{
		migrate: func(command string, args ...string) error {
			env.migrations = append(env.migrations, migration{command: command, args: args})
			return nil
		},
		usrRepo: env.app.UserRepo,
		rbacSvc: env.app.RBAC,
		umkmSvc: env.app.UMKM,
		openFile: func(name string) (io.ReadCloser, error) {
			content, ok := env.files[name]
			if !ok {
				return nil, os.ErrNotExist
			}
			return io.NopCloser(strings.NewReader(content)), nil
		},
		out: env.out,
	}
	return env
}

func withPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func (env *cliEnv) runTests(t *testing.T, tests []cliTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)
			err := env.cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	env.runTests(t, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no migrate subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	})

	assert.Equal(t, []migration{
		{command: "up", args: []string{}},
		{command: "down-to", args: []string{"1"}},
		{command: "create", args: []string{"course", "sql"}},
	}, env.migrations)
}

func Test_commandLine_seedRoles(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.cli.run([]string{"admin", "seedroles"}))
	require.NoError(t, env.cli.run([]string{"admin", "seedroles"}), "seeding twice is a no-op")
	assert.Contains(t, env.out.String(), "system roles seeded")

	roles, err := env.app.RBAC.ListRoles(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, len(user.SystemRoles))
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	env.runTests(t, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss"}, wantErr: errHelp},
		{name: "create super admin", args: []string{"adduser", "-username", "Boss", "-email", "boss@semindo.test"}, pwd: "s3cret-pass"},
		{name: "create mentor", args: []string{"adduser", "-email", "rina@semindo.test", "-roles", "mentor, consultant"}, pwd: "s3cret-pass"},
	})

	boss, err := env.app.UserRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "boss@semindo.test", boss.Email)
	assert.Equal(t, []string{user.RoleSuperAdmin}, boss.Roles)
	assert.True(t, boss.Active())
	assert.NoError(t, boss.CheckPassword("s3cret-pass"))

	rina, err := env.app.UserRepo.GetUser(ctx, user.GetFilter{Email: "rina@semindo.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleMentor, user.RoleConsultant}, rina.Roles)

	t.Run("unknown role", func(t *testing.T) {
		withPassword(t, "s3cret-pass")
		err := env.cli.run([]string{"admin", "adduser", "-username", "ghost", "-roles", "wizard"})
		require.Error(t, err)
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("existing users are updated", func(t *testing.T) {
		withPassword(t, "an0ther-pass")
		require.NoError(t, env.cli.run([]string{"admin", "adduser", "-username", "boss", "-roles", "admin"}))

		updated, err := env.app.UserRepo.GetUser(ctx, user.GetFilter{ID: boss.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleAdmin}, updated.Roles)
		assert.NoError(t, updated.CheckPassword("an0ther-pass"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.app.UserRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	env.runTests(t, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "awe"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	})

	refreshed, err := env.app.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_importProfiles(t *testing.T) {
	env := setup(t)
	owner := testutil.CreateUser(t, env.app.UserRepo, "Siti", "siti", "siti@semindo.test", "", []string{user.RoleUMKM}, true)

	env.files["umkm.csv"] = "owner_email,business_name,owner_name,sector,province,city,annual_revenue\n" +
		owner.Email + ",Warung Siti,Siti,kuliner,Jawa Barat,Bandung,250000000\n" +
		"nobody@semindo.test,Toko Hantu,Hantu,ritel,Bali,Denpasar,\n"

	env.runTests(t, []cliTest{
		{name: "no file", args: []string{"importumkm"}, wantErr: errHelp},
		{name: "missing file", args: []string{"importumkm", "-file", "lol.csv"}, wantErr: os.ErrNotExist},
		{name: "import", args: []string{"importumkm", "-file", "umkm.csv"}},
	})

	assert.Contains(t, env.out.String(), "1 profiles created, 1 rows rejected")
	p, err := env.app.UMKM.GetByOwner(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Warung Siti", p.BusinessName)
	assert.Equal(t, umkm.StatusDraft, p.Status)
}
