package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Permissions(ctx context.Context) PermissionStore
}

// UserStore reads accounts. FindByEmail must ignore soft-deleted users and
// return ErrNotFound when nothing matches.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

// PermissionStore reads the role grant relation.
type PermissionStore interface {
	PermissionsForRole(ctx context.Context, roleID int64) ([]string, error)
}
