package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edu-platform/credential-service/internal/domain"
)

// MemoryAccountRepository keeps accounts in process memory. It is used when no
// database is configured and in tests.
type MemoryAccountRepository struct {
	mu         sync.RWMutex
	byID       map[string]domain.Account
	idByEmail  map[string]string
	idByHandle map[string]string
	now        func() time.Time
}

// NewMemoryAccountRepository constructs an empty store.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:       make(map[string]domain.Account),
		idByEmail:  make(map[string]string),
		idByHandle: make(map[string]string),
		now:        time.Now,
	}
}

// Create stores the account, failing with ErrDuplicate when the username or
// email is already taken. The check and insert happen under one lock.
func (r *MemoryAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.idByEmail[account.Email]; taken {
		return fmt.Errorf("%w: email", ErrDuplicate)
	}
	if _, taken := r.idByHandle[account.Username]; taken {
		return fmt.Errorf("%w: username", ErrDuplicate)
	}

	account.ID = uuid.NewString()
	account.CreatedAt = r.now().UTC()
	r.byID[account.ID] = *account
	r.idByEmail[account.Email] = account.ID
	r.idByHandle[account.Username] = account.ID
	return nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	account := r.byID[id]
	return &account, nil
}
