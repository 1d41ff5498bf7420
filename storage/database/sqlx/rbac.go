package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
)

const roleColumns = "name, label, description, priority, is_system, permissions, created_at, updated_at"

type roleRow struct {
	Name        string         `db:"name"`
	Label       string         `db:"label"`
	Description string         `db:"description"`
	Priority    int            `db:"priority"`
	IsSystem    bool           `db:"is_system"`
	Permissions pq.StringArray `db:"permissions"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func boilRole(r rbac.Role) roleRow {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleRow{
		Name:        r.Name,
		Label:       r.Label,
		Description: r.Description,
		Priority:    r.Priority,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (row roleRow) unboil() rbac.Role {
	return rbac.Role{
		Name:        row.Name,
		Label:       row.Label,
		Description: row.Description,
		Priority:    row.Priority,
		IsSystem:    row.IsSystem,
		Permissions: []string(row.Permissions),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type rbacRepository struct {
	repository
}

var _ rbac.Repository = (*rbacRepository)(nil)

func NewRBACRepository(exec core.DBExecutor) rbac.Repository {
	return &rbacRepository{repository{exec: exec}}
}

func (repo rbacRepository) UpsertPermissions(ctx context.Context, perms []rbac.Permission, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := `INSERT INTO permissions (code, "group", description) VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET "group" = EXCLUDED."group", description = EXCLUDED.description`
	for _, p := range perms {
		if _, err := execQuery(ctx, exe, q, p.Code, p.Group, p.Description); err != nil {
			return errors.Wrapf(err, "upserting permission %s", p.Code)
		}
	}
	return nil
}

func (repo rbacRepository) ListPermissions(ctx context.Context, exec ...core.DBExecutor) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	q := `SELECT code, "group", description FROM permissions ORDER BY "group", code`
	if err := selectAll(ctx, repo.getExec(exec), &perms, q); err != nil {
		return nil, errors.Wrap(err, "listing permissions")
	}
	return perms, nil
}

func (repo rbacRepository) queryRoles(ctx context.Context, exe core.DBExecutor, where string, args ...interface{}) ([]rbac.Role, error) {
	var rows []roleRow
	q := "SELECT " + roleColumns + " FROM roles" + where + " ORDER BY priority DESC, name"
	if err := selectAll(ctx, exe, &rows, q, args...); err != nil {
		return nil, err
	}
	roles := make([]rbac.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.unboil())
	}
	return roles, nil
}

func (repo rbacRepository) ListRoles(ctx context.Context, exec ...core.DBExecutor) ([]rbac.Role, error) {
	roles, err := repo.queryRoles(ctx, repo.getExec(exec), "")
	return roles, errors.Wrap(err, "listing roles")
}

func (repo rbacRepository) GetRoles(ctx context.Context, names []string, exec ...core.DBExecutor) ([]rbac.Role, error) {
	if len(names) == 0 {
		return []rbac.Role{}, nil
	}
	roles, err := repo.queryRoles(ctx, repo.getExec(exec), " WHERE name = ANY(?)", pq.Array(names))
	return roles, errors.Wrap(err, "getting roles")
}

func (repo rbacRepository) GetRole(ctx context.Context, name string, exec ...core.DBExecutor) (rbac.Role, error) {
	var row roleRow
	q := "SELECT " + roleColumns + " FROM roles WHERE name = ?"
	if err := getOne(ctx, repo.getExec(exec), &row, q, name); err != nil {
		return rbac.Role{}, trapNoRowsErr(err, rbac.ErrNotFound, "getting role")
	}
	return row.unboil(), nil
}

func (repo rbacRepository) CreateRole(ctx context.Context, role rbac.Role, exec ...core.DBExecutor) (rbac.Role, error) {
	q := "INSERT INTO roles (" + roleColumns + ") VALUES " +
		"(:name, :label, :description, :priority, :is_system, :permissions, :created_at, :updated_at)"
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, boilRole(role)); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return rbac.Role{}, rbac.ErrRoleExists
		}
		return rbac.Role{}, errors.Wrap(err, "inserting role")
	}
	return role, nil
}

func (repo rbacRepository) UpdateRole(ctx context.Context, role rbac.Role, exec ...core.DBExecutor) (rbac.Role, error) {
	q := `UPDATE roles SET label = :label, description = :description, priority = :priority,
		is_system = :is_system, permissions = :permissions, updated_at = :updated_at
		WHERE name = :name`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, boilRole(role))
	if err != nil {
		return rbac.Role{}, errors.Wrap(err, "updating role")
	}
	if err := checkAffected(res, rbac.ErrNotFound); err != nil {
		return rbac.Role{}, err
	}
	return role, nil
}

func (repo rbacRepository) DeleteRole(ctx context.Context, name string, exec ...core.DBExecutor) error {
	res, err := execQuery(ctx, repo.getExec(exec), "DELETE FROM roles WHERE name = ?", name)
	if err != nil {
		return errors.Wrap(err, "deleting role")
	}
	return checkAffected(res, rbac.ErrNotFound)
}

func (repo rbacRepository) CountUsersWithRole(ctx context.Context, name string, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := getOne(ctx, repo.getExec(exec), &n, "SELECT COUNT(*) FROM users WHERE ? = ANY(roles)", name); err != nil {
		return 0, errors.Wrap(err, "counting users with role")
	}
	return n, nil
}
