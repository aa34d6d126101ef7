package authz

import "context"

// RoleStore reads role records. The engine never writes; role authoring
// lives elsewhere.
type RoleStore interface {
	// ActiveRoles returns every active role keyed by identity, with direct
	// permissions, permission groups and inheritance edges attached.
	ActiveRoles(ctx context.Context) (map[string]Role, error)
}

// UserStore reads user records with their role grants and direct
// permissions attached.
type UserStore interface {
	FindUser(ctx context.Context, id string) (User, error)
}
