package auth

import (
	"sort"
	"strings"
	"time"
)

// PermissionSet is a deduplicated, unordered set of permission codes.
type PermissionSet map[string]struct{}

// NewPermissionSet trims codes and drops blanks and duplicates.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		set[code] = struct{}{}
	}
	return set
}

// Has reports whether code is granted. A nil set grants nothing.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

func (s PermissionSet) Len() int { return len(s) }

// Codes returns the codes in sorted order.
func (s PermissionSet) Codes() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Identity    Identity
	Permissions PermissionSet
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// HasPermission reports whether the principal can execute action identified by code.
func (p Principal) HasPermission(code string) bool {
	return p.Permissions.Has(code)
}
