package apikey

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/naira-wallet/wallet_service/internal/authz"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu   sync.Mutex
	keys map[string]Key
	seq  map[string]int
	next int
}

// NewMemoryRepository creates an empty in-memory key repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: make(map[string]Key), seq: make(map[string]int)}
}

func (r *MemoryRepository) usable(ownerID string, now time.Time) int {
	n := 0
	for _, k := range r.keys {
		if k.OwnerID == ownerID && k.CanBeUsed(now) {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) put(key Key) {
	r.keys[key.ID] = copyKey(key)
	r.next++
	r.seq[key.ID] = r.next
}

func (r *MemoryRepository) CreateWithinLimit(_ context.Context, key Key, limit int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usable(key.OwnerID, now) >= limit {
		return ErrLimitReached
	}
	r.put(key)
	return nil
}

func (r *MemoryRepository) Rotate(_ context.Context, ownerID, expiredID string, replacement Key, limit int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.keys[expiredID]
	if !ok || old.OwnerID != ownerID {
		return ErrNotFound
	}
	if !old.IsExpired(now) {
		return ErrNotExpired
	}
	if r.usable(ownerID, now) >= limit {
		return ErrLimitReached
	}
	old.Active = false
	old.UpdatedAt = now
	r.keys[expiredID] = old
	r.put(replacement)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id, ownerID string) (Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok || k.OwnerID != ownerID {
		return Key{}, ErrNotFound
	}
	return copyKey(k), nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Key, 0)
	for _, k := range r.keys {
		if k.OwnerID == ownerID {
			out = append(out, copyKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out, nil
}

func (r *MemoryRepository) Deactivate(_ context.Context, id, ownerID string) (Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok || k.OwnerID != ownerID {
		return Key{}, ErrNotFound
	}
	k.Active = false
	k.UpdatedAt = time.Now().UTC()
	r.keys[id] = k
	return copyKey(k), nil
}

func (r *MemoryRepository) ListActive(_ context.Context) ([]Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Key, 0)
	for _, k := range r.keys {
		if k.Active {
			out = append(out, copyKey(k))
		}
	}
	return out, nil
}

func (r *MemoryRepository) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return ErrNotFound
	}
	k.LastUsedAt = &at
	r.keys[id] = k
	return nil
}

func copyKey(k Key) Key {
	k.Permissions = append([]authz.Permission(nil), k.Permissions...)
	if k.LastUsedAt != nil {
		at := *k.LastUsedAt
		k.LastUsedAt = &at
	}
	return k
}
