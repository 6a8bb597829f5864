package auth

import "time"

// Identity is the immutable view of an account embedded into tokens.
type Identity struct {
	ID     int64  `json:"identity_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	RoleID int64  `json:"role_id"`
}

// User is the stored account record, credential included.
type User struct {
	ID           int64
	Email        string
	Name         string
	RoleID       int64
	PasswordHash string
	LastLogin    *time.Time
}

// Identity drops the credential.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name, RoleID: u.RoleID}
}

// Permission is a fine-grained capability.
type Permission struct {
	Code        string
	Description string
}

// Token is a signed session token and its validity window.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the outcome of a successful login.
type Session struct {
	Token       Token
	Identity    Identity
	Permissions PermissionSet
}
