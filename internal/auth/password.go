package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher runs bcrypt on a bounded number of slots.
type Hasher struct {
	cost  int
	slots *semaphore.Weighted
	// random hash at cost, compared against when no account matches
	dummy []byte
}

// NewHasher bounds concurrent hash operations to slots (GOMAXPROCS when <= 0).
func NewHasher(cost, slots int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if slots <= 0 {
		slots = runtime.GOMAXPROCS(0)
	}
	h := &Hasher{cost: cost, slots: semaphore.NewWeighted(int64(slots))}
	h.dummy = h.dummyHash()
	return h
}

func (h *Hasher) dummyHash() []byte {
	seed := make([]byte, 32)
	_, _ = rand.Read(seed)
	hash, err := bcrypt.GenerateFromPassword(seed, h.cost)
	if err != nil {
		// unreachable for a 32 byte input and a validated cost
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	return hash
}

// Hash hashes plaintext password using bcrypt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare checks plaintext against a stored hash. Returns ErrInvalidCredential
// on mismatch.
func (h *Hasher) Compare(ctx context.Context, hash, password string) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.slots.Release(1)
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
		return ErrInvalidCredential
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidCredential
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}

// burn spends one comparison's worth of work without a real hash.
func (h *Hasher) burn(ctx context.Context, password string) {
	_ = h.Compare(ctx, "", password)
}
