package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kobo-wallet/kobo/internal/infra"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a Postgres-backed session repository.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s Session) error {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return fmt.Errorf("parse session id: %w", err)
	}
	userID, err := uuid.Parse(s.UserID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO sessions (id, user_id, otp, access_token, refresh_token, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $6)`,
		id, userID, s.OTP, s.AccessToken, s.RefreshToken, s.CreatedAt.UTC())
	if _, ok := infra.UniqueViolation(err); ok {
		return ErrExists
	}
	return err
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) (Session, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Session{}, ErrNotFound
	}
	var (
		sid   uuid.UUID
		owner uuid.UUID
		s     Session
	)
	err = r.db.QueryRow(ctx, `SELECT id, user_id, COALESCE(otp, ''), COALESCE(access_token, ''), COALESCE(refresh_token, ''), created_at, updated_at
        FROM sessions WHERE user_id = $1`, uid).
		Scan(&sid, &owner, &s.OTP, &s.AccessToken, &s.RefreshToken, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.ID = sid.String()
	s.UserID = owner.String()
	return s, nil
}

func (r *PostgresRepository) ConsumeOTP(ctx context.Context, userID, otp string) error {
	if otp == "" {
		return ErrOTPMismatch
	}
	return r.exec(ctx, ErrOTPMismatch, `UPDATE sessions SET otp = NULL, updated_at = now()
        WHERE user_id = $1 AND otp = $2`, userID, otp)
}

func (r *PostgresRepository) SetTokens(ctx context.Context, userID, access, refresh string) error {
	return r.exec(ctx, ErrNotFound, `UPDATE sessions SET access_token = $2, refresh_token = $3, updated_at = now()
        WHERE user_id = $1`, userID, access, refresh)
}

func (r *PostgresRepository) RotateTokens(ctx context.Context, userID, presented, access, refresh string) error {
	if presented == "" {
		return ErrTokenSuperseded
	}
	return r.exec(ctx, ErrTokenSuperseded, `UPDATE sessions SET access_token = $3, refresh_token = $4, updated_at = now()
        WHERE user_id = $1 AND refresh_token = $2`, userID, presented, access, refresh)
}

func (r *PostgresRepository) ClearTokens(ctx context.Context, userID string) error {
	return r.exec(ctx, ErrNotFound, `UPDATE sessions SET access_token = NULL, refresh_token = NULL, updated_at = now()
        WHERE user_id = $1`, userID)
}

// exec runs a single-row update and returns noMatch when nothing was updated.
func (r *PostgresRepository) exec(ctx context.Context, noMatch error, query, userID string, args ...any) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return noMatch
	}
	cmd, err := r.db.Exec(ctx, query, append([]any{uid}, args...)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return noMatch
	}
	return nil
}
