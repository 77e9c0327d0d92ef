package identity

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryRepository is an in-memory user store used in development and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User // keyed by id
}

// NewMemoryRepository builds an in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]User)}
}

// Snapshot copies the current state and returns a function restoring it.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	saved := maps.Clone(r.users)
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.users = saved
		r.mu.Unlock()
	}
}

func (r *MemoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = NormalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrEmailTaken
		}
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = NormalizeEmail(email)
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepository) MarkVerified(_ context.Context, id string) error {
	return r.mutate(id, func(u *User) error {
		u.Verified = true
		return nil
	})
}

func (r *MemoryRepository) SetPIN(_ context.Context, id, digest string) error {
	return r.mutate(id, func(u *User) error {
		if u.HasPIN() {
			return ErrPINAlreadySet
		}
		u.PINDigest = digest
		return nil
	})
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id, digest string) error {
	return r.mutate(id, func(u *User) error {
		u.PasswordDigest = digest
		return nil
	})
}

func (r *MemoryRepository) mutate(id string, fn func(*User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}
