package sqlxrepos

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

var userRowColumns = []string{"id", "name", "username", "email", "phone", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login"}

func Test_userRepository_GetUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	id := newID()
	created := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE (username = $1 OR email = $2) LIMIT 1")).
		WithArgs("awe", "awe").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(id, "Awe", "awe", "awe@test.cd", "", true, []byte("{admin,umkm}"), []byte("hash"), created, created, nil))

	usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "awe"})
	require.NoError(t, err)
	assert.Equal(t, id, usr.ID)
	assert.Equal(t, "awe@test.cd", usr.Email)
	assert.Equal(t, []string{user.RoleAdmin, user.RoleUMKM}, usr.Roles)
	assert.True(t, usr.Active())
	assert.True(t, usr.LastLogin.IsZero())
	assert.Equal(t, created, usr.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 LIMIT 1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetUser(ctx, user.GetFilter{ID: id})
	assert.Equal(t, user.ErrNotFound, err)

	// no query is run for malformed ids or empty filters
	_, err = repo.GetUser(ctx, user.GetFilter{ID: "lol"})
	assert.Equal(t, user.ErrNotFound, err)
	_, err = repo.GetUser(ctx, user.GetFilter{})
	assert.Equal(t, user.ErrNotFound, err)
}

func Test_userRepository_CreateUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))
	usr, err := repo.CreateUser(ctx, user.User{Name: "Siti", Email: "siti@semindo.test"})
	require.NoError(t, err)
	assert.True(t, isUUID(usr.ID))
	assert.False(t, usr.CreatedAt.IsZero())
	assert.Equal(t, usr.CreatedAt, usr.UpdatedAt)
	assert.Equal(t, []string{}, usr.Roles)

	tests := []struct {
		constraint string
		want       error
	}{
		{constraint: "users_email_key", want: user.ErrEmailExists},
		{constraint: "users_username_key", want: user.ErrUsernameExists},
	}
	for _, tt := range tests {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tt.constraint})
		_, err = repo.CreateUser(ctx, user.User{Name: "Siti", Username: "siti", Email: "siti@semindo.test"})
		assert.Equal(t, tt.want, err, tt.constraint)
	}
}

func Test_userRepository_CheckUsernameUniqueness(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	self := user.User{ID: newID()}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3))")).
		WithArgs("siti", "siti@semindo.test", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"username", "email"}).AddRow("other", "siti@semindo.test"))
	err := repo.CheckUsernameUniqueness(ctx, "siti", "siti@semindo.test", []user.User{self})
	assert.Equal(t, user.ErrEmailExists, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT username, email FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"username", "email"}))
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "siti", "siti@semindo.test", nil))
}

func Test_userRepository_UpdateUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	usr := user.User{ID: newID(), Name: "Siti"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateUser(ctx, usr)
	assert.Equal(t, user.ErrNotFound, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	updated, err := repo.UpdateUser(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, usr, updated)

	_, err = repo.UpdateUser(ctx, user.User{ID: "lol"})
	assert.Equal(t, user.ErrNotFound, err)
}

func Test_userRepository_UpdateOrCreateUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	id := newID()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at FROM users WHERE username = $1 OR email = $2 LIMIT 1")).
		WithArgs("boss", "boss@semindo.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id, created))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 1))

	usr, err := repo.UpdateOrCreateUser(ctx, user.User{Username: "boss", Email: "boss@semindo.test"})
	require.NoError(t, err)
	assert.Equal(t, id, usr.ID)
	assert.Equal(t, created, usr.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at FROM users")).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))

	usr, err = repo.UpdateOrCreateUser(ctx, user.User{Username: "rina"})
	require.NoError(t, err)
	assert.NotEqual(t, id, usr.ID)
}

func Test_userRepository_DeleteUsersByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	n, err := repo.DeleteUsersByID(ctx, []string{"lol"})
	require.NoError(t, err)
	assert.Zero(t, n, "malformed ids are skipped")

	ids := []string{newID(), newID()}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = repo.DeleteUsersByID(ctx, append(ids, "lol"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
