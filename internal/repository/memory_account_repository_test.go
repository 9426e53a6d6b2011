package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu-platform/credential-service/internal/domain"
)

func TestMemoryAccountRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()

	account := &domain.Account{Username: "alice", Email: "a@x.com", PasswordHash: "h", Role: domain.RoleStudent}
	require.NoError(t, repo.Create(ctx, account))
	require.NotEmpty(t, account.ID)
	assert.False(t, account.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.GetByEmail(ctx, "b@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAccountRepository_Uniqueness(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Account{Username: "alice", Email: "a@x.com"}))

	err := repo.Create(ctx, &domain.Account{Username: "alice2", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = repo.Create(ctx, &domain.Account{Username: "alice", Email: "other@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryAccountRepository_ConcurrentSameEmail(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	var created, dupes atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, &domain.Account{Username: fmt.Sprintf("user%d", i), Email: "race@x.com"})
			if err == nil {
				created.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrDuplicate)
				dupes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(31), dupes.Load())
}
