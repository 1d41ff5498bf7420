package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

const (
	cacheKeyPrefix = "rbac:role:"
	cacheTTL       = 10 * time.Minute
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("role")
	ErrRoleExists = errors.New("a role with this name already exists")
	ErrSystemRole = core.NewConflictError("system roles cannot be deleted")
	ErrRoleInUse  = core.NewConflictError("role is still assigned to users")
	ErrSuperAdmin = core.NewConflictError("the super admin role cannot be modified")
)

type (
	Repository interface {
		UpsertPermissions(ctx context.Context, perms []Permission, exec ...core.DBExecutor) error
		ListPermissions(ctx context.Context, exec ...core.DBExecutor) ([]Permission, error)
		ListRoles(ctx context.Context, exec ...core.DBExecutor) ([]Role, error)
		// GetRoles returns the existing roles among names.
		GetRoles(ctx context.Context, names []string, exec ...core.DBExecutor) ([]Role, error)
		GetRole(ctx context.Context, name string, exec ...core.DBExecutor) (Role, error)
		CreateRole(ctx context.Context, role Role, exec ...core.DBExecutor) (Role, error)
		UpdateRole(ctx context.Context, role Role, exec ...core.DBExecutor) (Role, error)
		DeleteRole(ctx context.Context, name string, exec ...core.DBExecutor) error
		CountUsersWithRole(ctx context.Context, name string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		user.RoleRegistry

		Seed(ctx context.Context) error
		ListPermissions(ctx context.Context) ([]Permission, error)
		ListRoles(ctx context.Context) ([]Role, error)
		GetRole(ctx context.Context, name string) (Role, error)
		CreateRole(ctx context.Context, nr NewRole) (Role, error)
		UpdateRole(ctx context.Context, name string, ur UpdateRole) (Role, error)
		DeleteRole(ctx context.Context, name string) error
		// PermissionsFor returns the sorted union of the permissions of roles.
		PermissionsFor(ctx context.Context, roles []string) ([]string, error)
		HasPermission(ctx context.Context, roles []string, code string) (bool, error)
		RolesExist(ctx context.Context, names []string) error
	}

	service struct {
		repo   Repository
		cache  core.Cache
		audit  audit.Recorder
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, cache core.Cache, recorder audit.Recorder, logger core.Logger) Service {
	return &service{repo: repo, cache: cache, audit: recorder, logger: logger}
}

// Seed inserts the system permissions and any missing system role.
// Existing roles keep their edits, except the super admin which always holds every permission.
func (svc *service) Seed(ctx context.Context) error {
	if err := svc.repo.UpsertPermissions(ctx, SystemPermissions); err != nil {
		return errors.Wrap(err, "upserting permissions")
	}

	now := time.Now().UTC()
	for _, role := range defaultSystemRoles() {
		existing, err := svc.repo.GetRole(ctx, role.Name)
		switch {
		case errors.Cause(err) == ErrNotFound:
			role.CreatedAt, role.UpdatedAt = now, now
			if _, err = svc.repo.CreateRole(ctx, role); err != nil {
				return errors.Wrapf(err, "creating role %s", role.Name)
			}
		case err != nil:
			return errors.Wrapf(err, "getting role %s", role.Name)
		case role.Name == user.RoleSuperAdmin:
			existing.Permissions = role.Permissions
			existing.IsSystem = true
			existing.UpdatedAt = now
			if _, err = svc.repo.UpdateRole(ctx, existing); err != nil {
				return errors.Wrapf(err, "updating role %s", role.Name)
			}
		}
		svc.invalidate(ctx, role.Name)
	}
	return nil
}

func (svc *service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return svc.repo.ListPermissions(ctx)
}

func (svc *service) ListRoles(ctx context.Context) ([]Role, error) {
	return svc.repo.ListRoles(ctx)
}

func (svc *service) GetRole(ctx context.Context, name string) (Role, error) {
	return svc.repo.GetRole(ctx, core.CleanString(name, true /* lower */))
}

func (svc *service) CreateRole(ctx context.Context, nr NewRole) (Role, error) {
	now := time.Now().UTC()
	perms := append([]string{}, nr.Permissions...)
	sort.Strings(perms)
	role, err := svc.repo.CreateRole(ctx, Role{
		Name:        nr.Name,
		Label:       nr.Label,
		Description: nr.Description,
		Priority:    nr.Priority,
		Permissions: perms,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Role{}, errors.Wrap(err, "creating role")
	}
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		Resource:   "role",
		ResourceID: role.Name,
		Metadata:   map[string]interface{}{"permissions": role.Permissions},
	})
	return role, nil
}

func (svc *service) UpdateRole(ctx context.Context, name string, ur UpdateRole) (Role, error) {
	role, err := svc.GetRole(ctx, name)
	if err != nil {
		return Role{}, err
	}
	if role.Name == user.RoleSuperAdmin {
		return Role{}, ErrSuperAdmin
	}

	if ur.Label != "" {
		role.Label = ur.Label
	}
	if ur.Description != nil {
		role.Description = core.CleanString(*ur.Description)
	}
	if ur.Priority != 0 && !role.IsSystem {
		role.Priority = ur.Priority
	}
	if ur.Permissions != nil {
		perms := append([]string{}, ur.Permissions...)
		sort.Strings(perms)
		role.Permissions = perms
	}
	role.UpdatedAt = time.Now().UTC()

	if role, err = svc.repo.UpdateRole(ctx, role); err != nil {
		return Role{}, errors.Wrap(err, "updating role")
	}
	svc.invalidate(ctx, role.Name)
	svc.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionUpdate,
		Resource:   "role",
		ResourceID: role.Name,
		Metadata:   map[string]interface{}{"permissions": role.Permissions},
	})
	return role, nil
}

func (svc *service) DeleteRole(ctx context.Context, name string) error {
	role, err := svc.GetRole(ctx, name)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	n, err := svc.repo.CountUsersWithRole(ctx, role.Name)
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	if n > 0 {
		return ErrRoleInUse
	}
	if err = svc.repo.DeleteRole(ctx, role.Name); err != nil {
		return errors.Wrap(err, "deleting role")
	}
	svc.invalidate(ctx, role.Name)
	svc.audit.Record(ctx, audit.Entry{Action: audit.ActionDelete, Resource: "role", ResourceID: role.Name})
	return nil
}

func (svc *service) invalidate(ctx context.Context, name string) {
	if err := svc.cache.Delete(ctx, cacheKeyPrefix+name); err != nil {
		svc.logger.Warn(fmt.Sprintf("rbac.invalidate(%s): %v", name, err), err)
	}
}

// rolePermissions returns the permissions of a role, going through the cache.
// Unknown roles have no permissions.
func (svc *service) rolePermissions(ctx context.Context, name string) ([]string, error) {
	key := cacheKeyPrefix + name
	if cached, err := svc.cache.Get(ctx, key); err == nil {
		var perms []string
		if err = json.Unmarshal([]byte(cached), &perms); err == nil {
			return perms, nil
		}
	} else if err != core.ErrCacheMiss {
		svc.logger.Warn(fmt.Sprintf("rbac.rolePermissions(%s): %v", name, err), err)
	}

	var perms []string
	role, err := svc.repo.GetRole(ctx, name)
	switch {
	case err == nil:
		perms = role.Permissions
	case errors.Cause(err) != ErrNotFound:
		return nil, err
	}
	if perms == nil {
		perms = []string{}
	}

	if val, err := json.Marshal(perms); err == nil {
		if err = svc.cache.Set(ctx, key, string(val), cacheTTL); err != nil {
			svc.logger.Warn(fmt.Sprintf("rbac.rolePermissions(%s): %v", name, err), err)
		}
	}
	return perms, nil
}

func (svc *service) PermissionsFor(ctx context.Context, roles []string) ([]string, error) {
	set := make(map[string]struct{})
	for _, name := range roles {
		perms, err := svc.rolePermissions(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "getting permissions of %s", name)
		}
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}
	union := make([]string, 0, len(set))
	for p := range set {
		union = append(union, p)
	}
	sort.Strings(union)
	return union, nil
}

func (svc *service) HasPermission(ctx context.Context, roles []string, code string) (bool, error) {
	perms, err := svc.PermissionsFor(ctx, roles)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(perms, code)
	return i < len(perms) && perms[i] == code, nil
}

func (svc *service) RolesExist(ctx context.Context, names []string) error {
	roles, err := svc.repo.GetRoles(ctx, names)
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(roles))
	for _, r := range roles {
		found[r.Name] = true
	}
	var missing []string
	for _, name := range names {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return core.NewFieldValidationError("roles", "unknown roles: "+strings.Join(missing, ", "))
	}
	return nil
}

func (svc *service) RolePriorities(ctx context.Context, roles []string) (map[string]int, error) {
	found, err := svc.repo.GetRoles(ctx, roles)
	if err != nil {
		return nil, err
	}
	priorities := make(map[string]int, len(found))
	for _, r := range found {
		priorities[r.Name] = r.Priority
	}
	return priorities, nil
}
