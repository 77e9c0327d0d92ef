// Package ledger is the transactional boundary around the user, session and
// wallet stores. Every write that must be applied as a unit runs through
// Store.InTx, usually via Atomic which adds bounded retries and a timeout.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/infra"
	"github.com/kobo-wallet/kobo/internal/metrics"
	"github.com/kobo-wallet/kobo/internal/session"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

// ErrTxConflict is returned by a store when a transaction lost a race and
// can be retried from the start.
var ErrTxConflict = errors.New("transaction conflict")

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Users    identity.Repository
	Sessions session.Repository
	Wallets  wallet.Repository
}

// Store opens units of work over the repositories.
type Store interface {
	// Repos returns repositories that run outside any transaction.
	Repos() Repos
	// InTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// RetryPolicy bounds Atomic.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
}

// IsRetryable reports whether err is a transient transaction conflict.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTxConflict) {
		return true
	}
	switch infra.PgCode(err) {
	case infra.CodeSerializationFailure, infra.CodeDeadlockDetected:
		return true
	}
	return false
}

// Atomic runs fn in a transaction, retrying transient conflicts with
// exponential backoff. Exhausted retries and timeouts surface as
// ServiceUnavailable; any other error from fn is returned unchanged.
func Atomic(ctx context.Context, store Store, policy RetryPolicy, m *metrics.Registry, fn func(ctx context.Context, r Repos) error) error {
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	base := policy.BaseDelay
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(max(policy.MaxRetries, 0)), retry.NewExponential(base))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			m.TxRetry()
		}
		attempt++
		err := store.InTx(ctx, fn)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		return nil
	case IsRetryable(err):
		return apperr.Unavailable("service temporarily unavailable, please retry", err)
	case errors.Is(err, context.DeadlineExceeded) && apperr.KindOf(err) == apperr.KindInternal:
		return apperr.Unavailable("request timed out", err)
	default:
		return err
	}
}
