package inmemdb

import (
	"context"
	"time"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

var userSortKeys = map[string]sortKey[user.User]{
	"name":       func(u user.User) interface{} { return u.Name },
	"username":   func(u user.User) interface{} { return u.Username },
	"email":      func(u user.User) interface{} { return u.Email },
	"created_at": func(u user.User) interface{} { return u.CreatedAt },
	"last_login": func(u user.User) interface{} { return u.LastLogin },
}

func cloneUser(u user.User) user.User {
	u.Roles = cloneStrings(u.Roles)
	if u.IsActive != nil {
		active := *u.IsActive
		u.IsActive = &active
	}
	return u
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.create(usr)
}

func (repo *userRepository) create(usr user.User) (user.User, error) {
	for _, u := range repo.db.users {
		if usr.Username != "" && u.Username == usr.Username {
			return user.User{}, user.ErrUsernameExists
		}
		if usr.Email != "" && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	if usr.ID == "" {
		usr.ID = newID()
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = time.Now().UTC()
	}
	repo.db.users[usr.ID] = cloneUser(usr)
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter != nil && !matchUser(u, filter) {
			continue
		}
		users = append(users, cloneUser(u))
	}
	sortItems(users, ordering, userSortKeys, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func matchUser(u user.User, f *user.QueryFilter) bool {
	if f.Search != "" && !containsFold(f.Search, u.Name, u.Username, u.Email) {
		return false
	}
	if len(f.Roles) > 0 {
		var found bool
		for _, r := range f.Roles {
			if u.HasRole(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IsActive != nil && u.Active() != *f.IsActive {
		return false
	}
	if !f.CreatedFrom.IsZero() && u.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && u.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if u, ok := repo.db.users[filter.ID]; ok {
			return cloneUser(u), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		switch {
		case filter.Username != "":
			if u.Username == filter.Username {
				return cloneUser(u), nil
			}
		case filter.Email != "":
			if u.Email == filter.Email {
				return cloneUser(u), nil
			}
		case filter.UsernameOrEmail != "":
			if u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail {
				return cloneUser(u), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.update(usr)
}

func (repo *userRepository) update(usr user.User) (user.User, error) {
	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.ID == usr.ID {
			continue
		}
		if usr.Username != "" && u.Username == usr.Username {
			return user.User{}, user.ErrUsernameExists
		}
		if usr.Email != "" && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = cloneUser(usr)
	return usr, nil
}

// UpdateOrCreateUser updates the user matching usr.ID, or else usr.Username or usr.Email; it creates one when none matches.
func (repo *userRepository) UpdateOrCreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if usr.ID == "" {
		for _, u := range repo.db.users {
			if (usr.Username != "" && u.Username == usr.Username) || (usr.Email != "" && u.Email == usr.Email) {
				usr.ID = u.ID
				usr.CreatedAt = u.CreatedAt
				break
			}
		}
	}
	if _, ok := repo.db.users[usr.ID]; ok {
		return repo.update(usr)
	}
	return repo.create(usr)
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			n++
		}
	}
	return n, nil
}
