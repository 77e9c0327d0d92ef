// Package session stores the per-user session row: the pending OTP and the
// currently valid token pair. A user has at most one session.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the user has no session.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned when a second session is created for a user.
	ErrExists = errors.New("session already exists")
	// ErrOTPMismatch is returned when the presented OTP does not match a pending one.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrTokenSuperseded is returned when a refresh token no longer matches the stored one.
	ErrTokenSuperseded = errors.New("refresh token superseded")
)

// Session is the stored credential state of a user.
type Session struct {
	ID           string
	UserID       string
	OTP          string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingOTP reports whether an OTP is waiting to be consumed.
func (s Session) PendingOTP() bool { return s.OTP != "" }

// Repository persists sessions. Every method is keyed by user id only.
type Repository interface {
	Create(ctx context.Context, s Session) error
	FindByUserID(ctx context.Context, userID string) (Session, error)
	// ConsumeOTP clears the OTP if it matches otp, failing with ErrOTPMismatch otherwise.
	ConsumeOTP(ctx context.Context, userID, otp string) error
	// SetTokens replaces the stored token pair unconditionally.
	SetTokens(ctx context.Context, userID, access, refresh string) error
	// RotateTokens replaces the pair only while the stored refresh token equals presented.
	RotateTokens(ctx context.Context, userID, presented, access, refresh string) error
	ClearTokens(ctx context.Context, userID string) error
}
