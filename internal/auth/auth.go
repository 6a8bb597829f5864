package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer = "stockroom"

	// DefaultTokenTTL is the fixed session lifetime. There is no refresh;
	// callers log in again once it lapses.
	DefaultTokenTTL = 24 * time.Hour
)

var errMissingSecret = errors.New("auth: token secret is not configured")

// Claims represents JWT claims used across the service.
type Claims struct {
	IdentityID  int64    `json:"identity_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	RoleID      int64    `json:"role_id"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Identity returns the identity asserted by the token.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.IdentityID, Email: c.Email, Name: c.Name, RoleID: c.RoleID}
}

// Principal converts verified claims into the request principal.
func (c *Claims) Principal() Principal {
	p := Principal{
		Identity:    c.Identity(),
		Permissions: NewPermissionSet(c.Permissions...),
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

// Issuer mints and validates HS256 session tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			i.issuer = issuer
		}
	}
}

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer fails when secret is blank: the process must not serve traffic
// without a signing key.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	i := &Issuer{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token embedding identity and the permission set frozen at this moment.
func (i *Issuer) Issue(identity Identity, perms PermissionSet) (Token, error) {
	if identity.ID <= 0 {
		return Token{}, errors.New("auth: identity id is required")
	}
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(i.ttl)
	claims := Claims{
		IdentityID:  identity.ID,
		Email:       identity.Email,
		Name:        identity.Name,
		RoleID:      identity.RoleID,
		Permissions: perms.Codes(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Validate verifies signature, issuer and expiry. The returned error is one of
// ErrTokenMalformed, ErrTokenSignatureInvalid, ErrTokenExpired or ErrInvalidToken.
func (i *Issuer) Validate(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.IdentityID <= 0 || claims.Subject != strconv.FormatInt(claims.IdentityID, 10) {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrInvalidToken
	}
}
