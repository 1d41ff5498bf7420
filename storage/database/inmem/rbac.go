package inmemdb

import (
	"context"
	"sort"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
)

type rbacRepository struct {
	db *DB
}

var _ rbac.Repository = (*rbacRepository)(nil)

func NewRBACRepository(db *DB) rbac.Repository {
	return &rbacRepository{db: db}
}

func cloneRole(r rbac.Role) rbac.Role {
	r.Permissions = cloneStrings(r.Permissions)
	return r
}

func (repo *rbacRepository) UpsertPermissions(_ context.Context, perms []rbac.Permission, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, p := range perms {
		repo.db.permissions[p.Code] = p
	}
	return nil
}

func (repo *rbacRepository) ListPermissions(_ context.Context, _ ...core.DBExecutor) ([]rbac.Permission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	perms := make([]rbac.Permission, 0, len(repo.db.permissions))
	for _, p := range repo.db.permissions {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Group != perms[j].Group {
			return perms[i].Group < perms[j].Group
		}
		return perms[i].Code < perms[j].Code
	})
	return perms, nil
}

func (repo *rbacRepository) ListRoles(_ context.Context, _ ...core.DBExecutor) ([]rbac.Role, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	roles := make([]rbac.Role, 0, len(repo.db.roles))
	for _, r := range repo.db.roles {
		roles = append(roles, cloneRole(r))
	}
	sortRoles(roles)
	return roles, nil
}

// sortRoles sorts by priority, highest first, then by name.
func sortRoles(roles []rbac.Role) {
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Priority != roles[j].Priority {
			return roles[i].Priority > roles[j].Priority
		}
		return roles[i].Name < roles[j].Name
	})
}

func (repo *rbacRepository) GetRoles(_ context.Context, names []string, _ ...core.DBExecutor) ([]rbac.Role, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	roles := make([]rbac.Role, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if r, ok := repo.db.roles[name]; ok && !seen[name] {
			roles = append(roles, cloneRole(r))
			seen[name] = true
		}
	}
	sortRoles(roles)
	return roles, nil
}

func (repo *rbacRepository) GetRole(_ context.Context, name string, _ ...core.DBExecutor) (rbac.Role, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.roles[name]; ok {
		return cloneRole(r), nil
	}
	return rbac.Role{}, rbac.ErrNotFound
}

func (repo *rbacRepository) CreateRole(_ context.Context, role rbac.Role, _ ...core.DBExecutor) (rbac.Role, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.roles[role.Name]; ok {
		return rbac.Role{}, rbac.ErrRoleExists
	}
	repo.db.roles[role.Name] = cloneRole(role)
	return role, nil
}

func (repo *rbacRepository) UpdateRole(_ context.Context, role rbac.Role, _ ...core.DBExecutor) (rbac.Role, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.roles[role.Name]; !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	repo.db.roles[role.Name] = cloneRole(role)
	return role, nil
}

func (repo *rbacRepository) DeleteRole(_ context.Context, name string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.roles[name]; !ok {
		return rbac.ErrNotFound
	}
	delete(repo.db.roles, name)
	return nil
}

func (repo *rbacRepository) CountUsersWithRole(_ context.Context, name string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, u := range repo.db.users {
		if u.HasRole(name) {
			n++
		}
	}
	return n, nil
}
