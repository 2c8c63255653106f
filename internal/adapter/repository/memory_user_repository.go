package repository

import (
	"context"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/errors"
)

// MemoryUserRepository is the in-memory read model of users/{id}. Profiles are owned by
// another service, so Save exists only to seed it.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewMemoryUserRepository(users ...*entity.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]*entity.User)}
	for _, u := range users {
		r.Save(u)
	}
	return r
}

func (r *MemoryUserRepository) Save(user *entity.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *user
	if user.BankAccount != nil {
		account := *user.BankAccount
		copied.BankAccount = &account
	}
	r.users[user.ID] = &copied
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	copied := *user
	if user.BankAccount != nil {
		account := *user.BankAccount
		copied.BankAccount = &account
	}
	return &copied, nil
}
