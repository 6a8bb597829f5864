package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultTouchTimeout = 5 * time.Second

// CredentialVerifier checks an email/password pair against the stored hash.
type CredentialVerifier struct {
	users        UserStore
	hasher       *Hasher
	logger       *zap.Logger
	now          func() time.Time
	touchTimeout time.Duration

	touches sync.WaitGroup
}

// NewCredentialVerifier wires the verifier to its user store.
func NewCredentialVerifier(users UserStore, hasher *Hasher, logger *zap.Logger) *CredentialVerifier {
	if hasher == nil {
		hasher = NewHasher(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialVerifier{
		users:        users,
		hasher:       hasher,
		logger:       logger,
		now:          time.Now,
		touchTimeout: defaultTouchTimeout,
	}
}

// Verify returns the identity for valid credentials. Failures are ErrNotFound
// or ErrInvalidCredential, both wrapping ErrInvalidCredentials; any other
// error is a storage failure.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Identity{}, ErrInvalidCredential
	}

	user, err := v.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		v.hasher.burn(ctx, password)
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}

	if err := v.hasher.Compare(ctx, user.PasswordHash, password); err != nil {
		return Identity{}, err
	}

	v.touchLastLogin(user.ID)
	return user.Identity(), nil
}

// touchLastLogin records the login time in the background. It never blocks
// or fails the login.
func (v *CredentialVerifier) touchLastLogin(userID int64) {
	at := v.now().UTC()
	v.touches.Add(1)
	go func() {
		defer v.touches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), v.touchTimeout)
		defer cancel()
		if err := v.users.TouchLastLogin(ctx, userID, at); err != nil {
			v.logger.Warn("last login update failed", zap.Int64("identity_id", userID), zap.Error(err))
		}
	}()
}

// Close waits for pending last-login updates.
func (v *CredentialVerifier) Close() {
	v.touches.Wait()
}
