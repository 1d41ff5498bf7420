package database

import (
	"database/sql"
	"io/fs"
	"net/url"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	appfs "github.com/wednesdev-id/semindo-grow-hub-sub003/fs"
)

func TestDSN(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          5432,
		Name:          "semindo",
		User:          "app",
		Password:      "p@ss",
		AdminUser:     "postgres",
		AdminPassword: "root",
		DisableTLS:    true,
	}

	tests := []struct {
		name     string
		dbName   string
		admin    bool
		wantUser string
		wantPwd  string
		wantPath string
	}{
		{name: "app", dbName: "semindo", wantUser: "app", wantPwd: "p@ss", wantPath: "/semindo"},
		{name: "admin", dbName: "postgres", admin: true, wantUser: "postgres", wantPwd: "root", wantPath: "/postgres"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, err := url.Parse(dsn(tc.dbName, tc.admin, conf))
			require.NoError(t, err)
			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db:5432", u.Host)
			assert.Equal(t, tc.wantPath, u.Path)
			assert.Equal(t, tc.wantUser, u.User.Username())
			pwd, _ := u.User.Password()
			assert.Equal(t, tc.wantPwd, pwd)
			assert.Equal(t, "disable", u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
		})
	}
}

func TestMigrate(t *testing.T) {
	orig := gooseRunFunc
	defer func() { gooseRunFunc = orig }()

	var gotCmd, gotDir string
	var gotArgs []string
	gooseRunFunc = func(command string, _ *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCmd, gotDir, gotArgs = command, dir, args
		if command == "down" {
			return errors.New("no migration")
		}
		return nil
	}

	db := sqlx.NewDb(&sql.DB{}, "postgres")
	require.NoError(t, Migrate(db, "up-to", "20240101000003"))
	assert.Equal(t, "up-to", gotCmd)
	assert.Equal(t, "migrations", gotDir)
	assert.Equal(t, []string{"20240101000003"}, gotArgs)

	err := Migrate(db, "down")
	assert.EqualError(t, err, "migrating database (down): no migration")
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(appfs.FS, "migrations/*.sql")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(files), 6)
	for _, f := range files {
		content, err := fs.ReadFile(appfs.FS, f)
		require.NoError(t, err)
		assert.Contains(t, string(content), "-- +goose Up", f)
		assert.Contains(t, string(content), "-- +goose Down", f)
	}
}
