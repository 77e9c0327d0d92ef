package session

import (
	"context"
	"crypto/subtle"
	"maps"
	"sync"
	"time"
)

// MemoryRepository is an in-memory session store.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session // keyed by user id
}

// NewMemoryRepository builds an in-memory session store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]Session)}
}

// Snapshot copies the current state and returns a function restoring it.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	saved := maps.Clone(r.sessions)
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.sessions = saved
		r.mu.Unlock()
	}
}

func (r *MemoryRepository) Create(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.UserID]; ok {
		return ErrExists
	}
	s.UpdatedAt = s.CreatedAt
	r.sessions[s.UserID] = s
	return nil
}

func (r *MemoryRepository) FindByUserID(_ context.Context, userID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) ConsumeOTP(_ context.Context, userID, otp string) error {
	return r.mutate(userID, ErrOTPMismatch, func(s *Session) error {
		if !s.PendingOTP() || !equal(s.OTP, otp) {
			return ErrOTPMismatch
		}
		s.OTP = ""
		return nil
	})
}

func (r *MemoryRepository) SetTokens(_ context.Context, userID, access, refresh string) error {
	return r.mutate(userID, ErrNotFound, func(s *Session) error {
		s.AccessToken, s.RefreshToken = access, refresh
		return nil
	})
}

func (r *MemoryRepository) RotateTokens(_ context.Context, userID, presented, access, refresh string) error {
	return r.mutate(userID, ErrTokenSuperseded, func(s *Session) error {
		if s.RefreshToken == "" || !equal(s.RefreshToken, presented) {
			return ErrTokenSuperseded
		}
		s.AccessToken, s.RefreshToken = access, refresh
		return nil
	})
}

func (r *MemoryRepository) ClearTokens(_ context.Context, userID string) error {
	return r.mutate(userID, ErrNotFound, func(s *Session) error {
		s.AccessToken, s.RefreshToken = "", ""
		return nil
	})
}

func (r *MemoryRepository) mutate(userID string, missing error, fn func(*Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return missing
	}
	if err := fn(&s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	r.sessions[userID] = s
	return nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
