package auth

import (
	"context"
	"fmt"
)

// Resolver flattens the role grant relation into a permission set.
type Resolver struct {
	perms PermissionStore
}

func NewResolver(perms PermissionStore) *Resolver {
	return &Resolver{perms: perms}
}

// Resolve returns every permission granted to roleID. Unknown roles and roles
// without grants yield an empty set, so downstream checks deny everything.
func (r *Resolver) Resolve(ctx context.Context, roleID int64) (PermissionSet, error) {
	if roleID <= 0 {
		return PermissionSet{}, nil
	}
	codes, err := r.perms.PermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions for role %d: %w", roleID, err)
	}
	return NewPermissionSet(codes...), nil
}
