package worker

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/edu-platform/credential-service/internal/auth"
)

// HashPool bounds how many password hash operations run at once. Callers wait
// for a slot and give up when their context ends.
type HashPool struct {
	inner auth.PasswordHasher
	slots *semaphore.Weighted
}

// NewHashPool wraps hasher. A non-positive size returns hasher unchanged.
func NewHashPool(hasher auth.PasswordHasher, size int) auth.PasswordHasher {
	if size <= 0 {
		return hasher
	}
	return &HashPool{inner: hasher, slots: semaphore.NewWeighted(int64(size))}
}

func (p *HashPool) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.slots.Release(1)
	return p.inner.Hash(ctx, plaintext)
}

func (p *HashPool) Verify(ctx context.Context, plaintext, hashed string) (bool, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.slots.Release(1)
	return p.inner.Verify(ctx, plaintext, hashed)
}
