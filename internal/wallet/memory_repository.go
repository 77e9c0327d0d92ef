package wallet

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryRepository keeps wallets in a map keyed by owner.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[string]Wallet)}
}

// Snapshot copies the current state and returns a function restoring it.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	saved := maps.Clone(r.storage)
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.storage = saved
		r.mu.Unlock()
	}
}

func (r *MemoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.UserID]; exists {
		return ErrExists
	}
	for _, existing := range r.storage {
		if existing.Number == w.Number {
			return ErrNumberTaken
		}
	}
	w.UpdatedAt = w.CreatedAt
	r.storage[w.UserID] = w
	return nil
}

func (r *MemoryRepository) GetByNumber(_ context.Context, number int64) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byNumber(number)
}

func (r *MemoryRepository) GetByOwner(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

// LockByNumbers returns the existing wallets. Mutual exclusion comes from
// the memory store's transaction lock.
func (r *MemoryRepository) LockByNumbers(_ context.Context, numbers ...int64) (map[int64]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	locked := make(map[int64]Wallet, len(numbers))
	for _, n := range numbers {
		if w, err := r.byNumber(n); err == nil {
			locked[n] = w
		}
	}
	return locked, nil
}

func (r *MemoryRepository) ApplyDelta(_ context.Context, userID string, delta int64) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if w.Balance+delta < 0 {
		return Wallet{}, ErrNegativeBalance
	}
	w.Balance += delta
	w.UpdatedAt = time.Now().UTC()
	r.storage[userID] = w
	return w, nil
}

func (r *MemoryRepository) byNumber(number int64) (Wallet, error) {
	for _, w := range r.storage {
		if w.Number == number {
			return w, nil
		}
	}
	return Wallet{}, ErrNotFound
}
