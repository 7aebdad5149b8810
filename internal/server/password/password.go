// Package password hashes and verifies user passwords with bcrypt.
//
// bcrypt at cost 12 takes a few hundred milliseconds of CPU. Every request
// already runs on its own goroutine; Hasher additionally caps how many hashes
// run at once so a burst of logins cannot starve the rest of the process,
// and gives up waiting when the request context is cancelled.
package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor for stored hashes.
const DefaultCost = 12

// ErrTooLong is returned for passwords bcrypt would silently truncate.
var ErrTooLong = errors.New("password exceeds 72 bytes")

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

const dummyPassword = "timing-equaliser-not-a-real-password"

// Hasher is safe for concurrent use.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewHasher returns a Hasher with the given bcrypt cost allowing at most
// maxConcurrent hashes at a time (GOMAXPROCS when <= 0).
func NewHasher(cost, maxConcurrent int) (*Hasher, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}
	return &Hasher{
		cost:  cost,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
		dummy: dummy,
	}, nil
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if len(plain) > maxPasswordBytes {
		return "", ErrTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Compare reports whether plain matches hash. A malformed hash is an error,
// a mismatch is not. Passwords over 72 bytes fail with ErrTooLong: bcrypt
// would compare only their first 72 bytes.
func (h *Hasher) Compare(ctx context.Context, hash, plain string) (bool, error) {
	if len(plain) > maxPasswordBytes {
		return false, ErrTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt: %w", err)
	}
}

// CompareDummy burns the same CPU as a real comparison. Call it when the
// user does not exist so response timing does not reveal that.
func (h *Hasher) CompareDummy(ctx context.Context, plain string) {
	_, _ = h.Compare(ctx, string(h.dummy), plain)
}
