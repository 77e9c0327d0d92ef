// Package onboarding registers users, verifies them by OTP and provisions
// their wallet and transaction PIN.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/credential"
	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/ledger"
	"github.com/kobo-wallet/kobo/internal/metrics"
	"github.com/kobo-wallet/kobo/internal/notification"
	"github.com/kobo-wallet/kobo/internal/riskcheck"
	"github.com/kobo-wallet/kobo/internal/session"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

const (
	msgDelinquent = "You are defaulting in one of your loans"
	msgInvalidOTP = "Invalid OTP"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// Dispatcher queues outbound notifications without blocking.
type Dispatcher interface {
	Dispatch(message notification.Message)
}

// Service runs the signup, verification and PIN workflows.
type Service struct {
	store      ledger.Store
	hasher     credential.Hasher
	otp        credential.OTPGenerator
	risk       riskcheck.Checker
	dispatcher Dispatcher
	retry      ledger.RetryPolicy
	appName    string
	metrics    *metrics.Registry
	logger     *slog.Logger
}

// Deps wires a Service.
type Deps struct {
	Store      ledger.Store
	Hasher     credential.Hasher
	OTP        credential.OTPGenerator
	Risk       riskcheck.Checker
	Dispatcher Dispatcher
	Retry      ledger.RetryPolicy
	AppName    string
	Metrics    *metrics.Registry
	Logger     *slog.Logger
}

func NewService(deps Deps) *Service {
	risk := deps.Risk
	if risk == nil {
		risk = riskcheck.Disabled{}
	}
	return &Service{
		store:      deps.Store,
		hasher:     deps.Hasher,
		otp:        deps.OTP,
		risk:       risk,
		dispatcher: deps.Dispatcher,
		retry:      deps.Retry,
		appName:    deps.AppName,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// SignupInput is the registration request.
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (in SignupInput) validate() error {
	switch {
	case !strings.Contains(in.Email, "@"):
		return apperr.Invalid("a valid email is required")
	case in.Password == "":
		return apperr.Invalid("password is required")
	case strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "":
		return apperr.Invalid("first_name and last_name are required")
	}
	return nil
}

// Signup creates an unverified user with a pending OTP session and sends the
// OTP by email. Delivery happens in the background and never fails signup.
func (s *Service) Signup(ctx context.Context, in SignupInput) (identity.Profile, error) {
	profile, err := s.signup(ctx, in)
	if err != nil {
		s.metrics.Signup(apperr.KindOf(err).String())
		return identity.Profile{}, err
	}
	s.metrics.Signup(metrics.OutcomeSuccess)
	return profile, nil
}

func (s *Service) signup(ctx context.Context, in SignupInput) (identity.Profile, error) {
	if err := in.validate(); err != nil {
		return identity.Profile{}, err
	}
	email := identity.NormalizeEmail(in.Email)

	_, err := s.store.Repos().Users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return identity.Profile{}, apperr.Conflict("Email already registered")
	case !errors.Is(err, identity.ErrNotFound):
		return identity.Profile{}, apperr.Internal(err)
	}

	verdict, err := s.risk.CheckIdentity(ctx, email)
	if err != nil {
		s.logger.Error("risk check failed", slog.String("email", email), slog.Any("error", err))
		return identity.Profile{}, apperr.Unavailable("Identity verification is unavailable, please try again later", err)
	}
	if !verdict.Clear {
		s.logger.Info("signup rejected by risk check", slog.String("email", email), slog.String("reason", verdict.Reason))
		return identity.Profile{}, apperr.Forbidden(msgDelinquent)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return identity.Profile{}, apperr.Internal(err)
	}
	code, err := s.otp.Generate()
	if err != nil {
		return identity.Profile{}, apperr.Internal(err)
	}

	now := time.Now().UTC()
	user := identity.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordDigest: digest,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Role:           identity.RoleUser,
		CreatedAt:      now,
	}
	err = ledger.Atomic(ctx, s.store, s.retry, s.metrics, func(ctx context.Context, r ledger.Repos) error {
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		return r.Sessions.Create(ctx, session.Session{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			OTP:       code,
			CreatedAt: now,
		})
	})
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		return identity.Profile{}, apperr.Conflict("Email already registered")
	case err != nil:
		return identity.Profile{}, asInternal(err)
	}

	s.sendOTP(user, code)
	s.logger.Info("user signed up", slog.String("user_id", user.ID))
	return user.Profile(), nil
}

func (s *Service) sendOTP(user identity.User, code string) {
	if s.dispatcher == nil {
		return
	}
	msg, err := notification.OTPMessage(user.Email, notification.OTPEmail{
		AppName:   s.appName,
		FirstName: user.FirstName,
		OTP:       code,
	})
	if err != nil {
		s.logger.Error("render otp email", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	s.dispatcher.Dispatch(msg)
}

// VerifyOTP consumes the pending OTP and, in the same transaction, creates
// the wallet and marks the user verified. Re-running it after a failed
// commit converges on a single wallet.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) error {
	if otp == "" {
		return apperr.InvalidOTP(msgInvalidOTP)
	}
	user, err := s.store.Repos().Users.FindByEmail(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}

	err = ledger.Atomic(ctx, s.store, s.retry, s.metrics, func(ctx context.Context, r ledger.Repos) error {
		if err := r.Sessions.ConsumeOTP(ctx, user.ID, otp); err != nil {
			return err
		}
		if err := ensureWallet(ctx, r.Wallets, user.ID); err != nil {
			return err
		}
		return r.Users.MarkVerified(ctx, user.ID)
	})
	switch {
	case errors.Is(err, session.ErrOTPMismatch):
		return apperr.InvalidOTP(msgInvalidOTP)
	case err != nil:
		return asInternal(err)
	}

	s.logger.Info("user verified", slog.String("user_id", user.ID))
	return nil
}

// ensureWallet creates the owner's wallet unless one exists. A number
// collision aborts the transaction so the retry draws a fresh number.
func ensureWallet(ctx context.Context, wallets wallet.Repository, userID string) error {
	_, err := wallets.GetByOwner(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, wallet.ErrNotFound) {
		return err
	}
	number, err := wallet.GenerateNumber()
	if err != nil {
		return err
	}
	err = wallets.Create(ctx, wallet.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Number:    number,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, wallet.ErrNumberTaken) {
		return fmt.Errorf("%w: %w", ledger.ErrTxConflict, err)
	}
	return err
}

// CreatePIN provisions the transaction PIN. It can be set only once.
func (s *Service) CreatePIN(ctx context.Context, user identity.User, pin string) error {
	if !pinPattern.MatchString(pin) {
		return apperr.Invalid("PIN must be 4 to 6 digits")
	}
	if !user.Verified {
		return apperr.Forbidden("Account is not verified")
	}
	if user.HasPIN() {
		return apperr.Conflict("PIN already set")
	}
	digest, err := s.hasher.Hash(pin)
	if err != nil {
		return apperr.Internal(err)
	}
	err = s.store.Repos().Users.SetPIN(ctx, user.ID, digest)
	switch {
	case errors.Is(err, identity.ErrPINAlreadySet):
		return apperr.Conflict("PIN already set")
	case err != nil:
		return apperr.Internal(err)
	}
	s.logger.Info("pin created", slog.String("user_id", user.ID))
	return nil
}

func asInternal(err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		return apperr.Internal(err)
	}
	return err
}
