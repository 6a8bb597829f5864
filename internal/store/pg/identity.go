package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"stockroom.app/internal/auth"
)

var (
	_ auth.Store           = (*Store)(nil)
	_ auth.UserStore       = (*Store)(nil)
	_ auth.PermissionStore = (*Store)(nil)
)

func (s *Store) Users(context.Context) auth.UserStore             { return s }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return s }

// FindByEmail matches case-insensitively and skips soft-deleted accounts.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	var (
		u         auth.User
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select user_id, email, name, role_id, password_hash, last_login
		from users
		where lower(email) = lower($1) and deleted_at is null
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.RoleID, &u.PasswordHash, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, wrap("find user", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `update users set last_login = $2 where user_id = $1`, userID, at); err != nil {
		return wrap("touch last login", err)
	}
	return nil
}

// PermissionsForRole flattens role_permissions into permission codes.
func (s *Store) PermissionsForRole(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.code
		from role_permissions rp
		join permissions p on p.permission_id = rp.permission_id
		where rp.role_id = $1
		order by p.code
	`, roleID)
	if err != nil {
		return nil, wrap("role permissions", err)
	}
	return scanCodes(rows)
}

// PermissionCodes lists every defined permission code.
func (s *Store) PermissionCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select code from permissions order by code`)
	if err != nil {
		return nil, wrap("permission codes", err)
	}
	return scanCodes(rows)
}

func scanCodes(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}
