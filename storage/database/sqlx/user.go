package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

const userColumns = "id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login"

var userOrderings = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        string         `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) boil(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Phone:        usr.Phone,
		IsActive:     usr.Active(),
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Phone:        row.Phone,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	usr.SetActive(row.IsActive)
	return usr
}

// trapUniqueErr maps the unique index violations to the user errors.
func (repo userRepository) trapUniqueErr(err error, msg string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		if isUUID(u.ID) {
			ids = append(ids, u.ID)
		}
	}

	var rows []struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	q := "SELECT username, email FROM users WHERE (username = ? OR email = ?) AND NOT (id = ANY(?)) LIMIT 2"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, username, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = time.Now().UTC()
	}
	if usr.UpdatedAt.IsZero() {
		usr.UpdatedAt = usr.CreatedAt
	}
	row := repo.boil(usr)
	q := "INSERT INTO users (" + userColumns + ") VALUES " +
		"(:id, :name, :username, :email, :phone, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)"
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var conds conditions
	if filter != nil {
		if filter.Search != "" {
			val := like(filter.Search)
			conds.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		if len(filter.Roles) > 0 {
			conds.add("roles && ?", pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			conds.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			conds.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			conds.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q := "SELECT " + userColumns + " FROM users" + conds.where() +
		core.OrderBy(ordering, userOrderings, "created_at DESC")
	var rows []userRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unboil(row))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var conds conditions
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		conds.add("id = ?", filter.ID)
	case filter.Username != "":
		conds.add("username = ?", filter.Username)
	case filter.Email != "":
		conds.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		conds.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := "SELECT " + userColumns + " FROM users" + conds.where() + " LIMIT 1"
	if err := getOne(ctx, repo.getExec(exec), &row, q, conds.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := repo.boil(usr)
	q := `UPDATE users SET name = :name, username = :username, email = :email, phone = :phone,
		is_active = :is_active, roles = :roles, password_hash = :password_hash,
		updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, row)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	if err := checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// UpdateOrCreateUser updates the user matching usr.ID, or else usr.Username or usr.Email; it creates one when none matches.
func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		var match struct {
			ID        string    `db:"id"`
			CreatedAt time.Time `db:"created_at"`
		}
		q := "SELECT id, created_at FROM users WHERE username = ? OR email = ? LIMIT 1"
		err := getOne(ctx, repo.getExec(exec), &match, q, usr.Username, usr.Email)
		switch {
		case err == nil:
			usr.ID, usr.CreatedAt = match.ID, match.CreatedAt.UTC()
		case trapNoRowsErr(err, user.ErrNotFound, "") == user.ErrNotFound:
			return repo.CreateUser(ctx, usr, exec...)
		default:
			return user.User{}, errors.Wrap(err, "matching user")
		}
	}

	updated, err := repo.UpdateUser(ctx, usr, exec...)
	if errors.Cause(err) == user.ErrNotFound {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return updated, err
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM users WHERE id = ANY(?)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(n), nil
}
