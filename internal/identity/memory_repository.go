package identity

import (
	"context"
	"sync"

	"github.com/naira-wallet/wallet_service/internal/ledger"
)

type memoryRepository struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
	wallets ledger.Store
}

// NewMemoryRepository builds an in-memory user store that provisions wallets
// in the given ledger store.
func NewMemoryRepository(wallets ledger.Store) Repository {
	return &memoryRepository{users: make(map[string]User), byEmail: make(map[string]string), wallets: wallets}
}

func (r *memoryRepository) CreateWithWallet(ctx context.Context, user User, wallet ledger.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	if err := r.wallets.CreateWallet(ctx, wallet); err != nil {
		return err
	}
	r.users[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *memoryRepository) UpdateProfile(_ context.Context, id, firstName, lastName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.FirstName = firstName
	user.LastName = lastName
	r.users[id] = user
	return nil
}
