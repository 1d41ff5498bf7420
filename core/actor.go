package core

import (
	"context"
	"sort"
)

// Actor is the authenticated user on whose behalf a service operation runs.
type Actor struct {
	ID          string
	Roles       []string
	Permissions []string // sorted
	IP          string
}

// NewActor builds an Actor; permissions are sorted for Can lookups.
func NewActor(id string, roles, permissions []string) Actor {
	perms := make([]string, len(permissions))
	copy(perms, permissions)
	sort.Strings(perms)
	return Actor{ID: id, Roles: roles, Permissions: perms}
}

// Can reports whether the actor holds the permission code.
func (a Actor) Can(code string) bool {
	i := sort.SearchStrings(a.Permissions, code)
	return i < len(a.Permissions) && a.Permissions[i] == code
}

// IsAnonymous reports whether no user is attached.
func (a Actor) IsAnonymous() bool {
	return a.ID == ""
}

type actorCtxKey struct{}

// ContextWithActor attaches the actor to ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext returns the actor attached to ctx, or an anonymous one.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorCtxKey{}).(Actor)
	return actor
}
