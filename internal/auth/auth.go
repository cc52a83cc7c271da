// Package auth is the authorization boundary: the playback core only needs
// opaque permission and role lookups; how they are answered is a deployment
// concern.
package auth

import (
	"context"
)

// Authorizer answers permission and role questions for one subject.
type Authorizer interface {
	HasPermission(ctx context.Context, name string) (bool, error)
	HasRole(ctx context.Context, name string) (bool, error)
}

// Resolver produces an Authorizer for a request subject (a bearer token
// subject, a session user, ...).
type Resolver interface {
	Resolve(ctx context.Context, subject string) (Authorizer, error)
}

// StaticResolver answers from in-memory subject->roles and role->permissions
// maps, typically loaded from configuration. Unknown subjects get no roles.
type StaticResolver struct {
	subjects    map[string][]string
	permissions map[string][]string
}

// NewStaticResolver builds a resolver from config maps.
func NewStaticResolver(subjects, permissions map[string][]string) *StaticResolver {
	if subjects == nil {
		subjects = map[string][]string{}
	}
	if permissions == nil {
		permissions = map[string][]string{}
	}
	return &StaticResolver{subjects: subjects, permissions: permissions}
}

// Resolve returns the authorizer for a subject. It never fails: an unknown
// subject simply holds nothing.
func (r *StaticResolver) Resolve(_ context.Context, subject string) (Authorizer, error) {
	return &staticAuthorizer{resolver: r, roles: r.subjects[subject]}, nil
}

type staticAuthorizer struct {
	resolver *StaticResolver
	roles    []string
}

func (a *staticAuthorizer) HasRole(_ context.Context, name string) (bool, error) {
	for _, role := range a.roles {
		if role == name {
			return true, nil
		}
	}
	return false, nil
}

func (a *staticAuthorizer) HasPermission(_ context.Context, name string) (bool, error) {
	for _, role := range a.roles {
		for _, perm := range a.resolver.permissions[role] {
			if perm == name {
				return true, nil
			}
		}
	}
	return false, nil
}
