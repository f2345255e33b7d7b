package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/journal-exchange/internal/model"
)

// UserRepository keeps users in process memory. It is used when no
// database is configured and in tests.
type UserRepository struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]model.User
	byFederated map[string]uuid.UUID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:       make(map[uuid.UUID]model.User),
		byFederated: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) GetByFederatedID(ctx context.Context, federatedID string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byFederated[federatedID]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return r.users[id], nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return model.User{}, fmt.Errorf("user %s: %w", user.ID, model.ErrConflict)
	}
	if _, ok := r.byFederated[user.FederatedID]; ok {
		return model.User{}, fmt.Errorf("federated id %s: %w", user.FederatedID, model.ErrConflict)
	}
	r.users[user.ID] = user
	r.byFederated[user.FederatedID] = user.ID
	return user, nil
}
