package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/credential"
	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/ledger"
	"github.com/kobo-wallet/kobo/internal/metrics"
	"github.com/kobo-wallet/kobo/internal/session"
)

// User-facing messages. Sign-in failures share one message so responses do
// not reveal which emails are registered.
const (
	msgInvalidLogin = "Invalid email or password"
	msgNoToken      = "No token found"
	msgExpiredToken = "Expired token"
	msgInvalidToken = "Invalid token"
)

// Service signs users in and resolves bearer tokens to principals. It is the
// only writer of the session token fields.
type Service struct {
	store   ledger.Store
	hasher  credential.Hasher
	tokens  *credential.TokenIssuer
	retry   ledger.RetryPolicy
	metrics *metrics.Registry
	logger  *slog.Logger
}

// Deps wires a Service.
type Deps struct {
	Store   ledger.Store
	Hasher  credential.Hasher
	Tokens  *credential.TokenIssuer
	Retry   ledger.RetryPolicy
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

func NewService(deps Deps) *Service {
	return &Service{
		store:   deps.Store,
		hasher:  deps.Hasher,
		tokens:  deps.Tokens,
		retry:   deps.Retry,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// SignInInput is the sign-in request.
type SignInInput struct {
	Email    string
	Password string
}

// TokenResult is a freshly issued token pair. ExpiresIn is in seconds and
// IssuedAt is a unix timestamp, both derived from the access token.
type TokenResult struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	IssuedAt     int64            `json:"issued_at"`
	ExpiresIn    int64            `json:"expires_in"`
	ExpiresAt    time.Time        `json:"expires_at"`
	User         identity.Profile `json:"user"`
}

// SignIn verifies the password of a verified user and replaces the stored
// token pair.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (TokenResult, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	repos := s.store.Repos()

	user, err := repos.Users.FindByEmail(ctx, in.Email)
	if errors.Is(err, identity.ErrNotFound) {
		return TokenResult{}, apperr.InvalidCredentials(msgInvalidLogin)
	}
	if err != nil {
		return TokenResult{}, apperr.Internal(err)
	}
	if !user.Verified {
		return TokenResult{}, apperr.InvalidCredentials(msgInvalidLogin)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordDigest)
	if err != nil {
		return TokenResult{}, apperr.Internal(err)
	}
	if !ok {
		return TokenResult{}, apperr.InvalidCredentials(msgInvalidLogin)
	}

	result, err := s.issue(user)
	if err != nil {
		return TokenResult{}, err
	}

	err = repos.Sessions.SetTokens(ctx, user.ID, result.AccessToken, result.RefreshToken)
	if errors.Is(err, session.ErrNotFound) {
		err = repos.Sessions.Create(ctx, session.Session{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			CreatedAt:    time.Now().UTC(),
		})
	}
	if err != nil {
		return TokenResult{}, apperr.Internal(err)
	}

	s.logger.Info("user signed in", slog.String("user_id", user.ID))
	return result, nil
}

// Refresh exchanges the currently stored refresh token for a new pair. A
// token superseded by a later sign-in or refresh is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenResult, error) {
	if refreshToken == "" {
		return TokenResult{}, apperr.Unauthorized(msgNoToken)
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenResult{}, tokenError(err)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()
	repos := s.store.Repos()

	user, err := s.resolveOwner(ctx, repos, claims.UserID())
	if err != nil {
		return TokenResult{}, err
	}

	result, err := s.issue(user)
	if err != nil {
		return TokenResult{}, err
	}
	err = repos.Sessions.RotateTokens(ctx, user.ID, refreshToken, result.AccessToken, result.RefreshToken)
	switch {
	case errors.Is(err, session.ErrTokenSuperseded):
		s.logger.Warn("superseded refresh token presented", slog.String("user_id", user.ID))
		return TokenResult{}, apperr.Unauthorized(msgInvalidToken)
	case err != nil:
		return TokenResult{}, apperr.Internal(err)
	}
	return result, nil
}

// Authenticate resolves an access token to its principal. The token must be
// the one currently stored on the session, so sign-out, password change and
// rotation revoke earlier tokens.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	if accessToken == "" {
		return Principal{}, apperr.Unauthorized(msgNoToken)
	}
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return Principal{}, tokenError(err)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()
	repos := s.store.Repos()

	user, err := s.resolveOwner(ctx, repos, claims.UserID())
	if err != nil {
		return Principal{}, err
	}
	sess, err := repos.Sessions.FindByUserID(ctx, user.ID)
	if errors.Is(err, session.ErrNotFound) {
		return Principal{}, apperr.Unauthorized(msgInvalidToken)
	}
	if err != nil {
		return Principal{}, apperr.Internal(err)
	}
	if sess.AccessToken == "" || sess.AccessToken != accessToken {
		return Principal{}, apperr.Unauthorized(msgInvalidToken)
	}
	return Principal{Claims: claims, User: user, Session: sess}, nil
}

// Logout clears the caller's stored tokens. The caller was authenticated
// against its session, so the row exists.
func (s *Service) Logout(ctx context.Context, userID string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.store.Repos().Sessions.ClearTokens(ctx, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ChangePasswordInput is the password change request.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

// ChangePassword replaces the password digest and signs the user out of
// every client in one unit.
func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if in.NewPassword == "" {
		return apperr.Invalid("new_password is required")
	}
	user, err := s.store.Repos().Users.FindByID(ctx, userID)
	if err != nil {
		return apperr.Unauthorized(msgInvalidToken)
	}
	ok, err := s.hasher.Verify(in.CurrentPassword, user.PasswordDigest)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.InvalidCredentials("Current password is incorrect")
	}
	digest, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	err = ledger.Atomic(ctx, s.store, s.retry, s.metrics, func(ctx context.Context, r ledger.Repos) error {
		if err := r.Users.UpdatePassword(ctx, userID, digest); err != nil {
			return err
		}
		return r.Sessions.ClearTokens(ctx, userID)
	})
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		return apperr.Internal(err)
	}
	return err
}

func (s *Service) issue(user identity.User) (TokenResult, error) {
	sub := credential.Subject{UserID: user.ID, Email: user.Email}
	access, err := s.tokens.IssueAccess(sub)
	if err != nil {
		return TokenResult{}, apperr.Internal(err)
	}
	refresh, err := s.tokens.IssueRefresh(sub)
	if err != nil {
		return TokenResult{}, apperr.Internal(err)
	}
	return TokenResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		IssuedAt:     access.IssuedAt.Unix(),
		ExpiresIn:    int64(access.ExpiresAt.Sub(access.IssuedAt).Seconds()),
		ExpiresAt:    access.ExpiresAt,
		User:         user.Profile(),
	}, nil
}

func (s *Service) resolveOwner(ctx context.Context, repos ledger.Repos, userID string) (identity.User, error) {
	user, err := repos.Users.FindByID(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, apperr.Unauthorized(msgInvalidToken)
	}
	if err != nil {
		return identity.User{}, apperr.Internal(err)
	}
	return user, nil
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.retry.Timeout > 0 {
		return context.WithTimeout(ctx, s.retry.Timeout)
	}
	return context.WithCancel(ctx)
}

func tokenError(err error) error {
	if errors.Is(err, credential.ErrTokenExpired) {
		return apperr.Unauthorized(msgExpiredToken)
	}
	return apperr.Wrap(apperr.KindUnauthorized, msgInvalidToken, err)
}
