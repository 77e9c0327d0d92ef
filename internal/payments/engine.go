// Package payments moves funds between wallets. Every balance check and the
// writes that depend on it run inside one ledger transaction with the
// affected wallet rows locked.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/credential"
	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/ledger"
	"github.com/kobo-wallet/kobo/internal/metrics"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

const (
	opTransfer = "transfer"
	opWithdraw = "withdraw"
	opDeposit  = "deposit"
)

// Engine executes transfers, withdrawals and deposits.
type Engine struct {
	store   ledger.Store
	hasher  credential.Hasher
	retry   ledger.RetryPolicy
	metrics *metrics.Registry
	logger  *slog.Logger
}

// Deps wires an Engine.
type Deps struct {
	Store   ledger.Store
	Hasher  credential.Hasher
	Retry   ledger.RetryPolicy
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

func NewEngine(deps Deps) *Engine {
	return &Engine{
		store:   deps.Store,
		hasher:  deps.Hasher,
		retry:   deps.Retry,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// TransferInput moves Amount from the sender wallet to the receiver wallet.
type TransferInput struct {
	SenderWalletNumber   int64
	ReceiverWalletNumber int64
	Amount               int64
	PIN                  string
}

// TransferReceipt is returned for a committed transfer.
type TransferReceipt struct {
	AmountSent               int64  `json:"amount_sent"`
	SenderName               string `json:"sender_name"`
	BeneficiaryName          string `json:"beneficiary_name"`
	BeneficiaryAccountNumber int64  `json:"beneficiary_account_number"`
}

// WalletInput debits or credits a single wallet.
type WalletInput struct {
	WalletNumber int64
	Amount       int64
	PIN          string
}

// WithdrawReceipt is returned for a committed withdrawal.
type WithdrawReceipt struct {
	AmountWithdrawn int64 `json:"amount_withdrawn"`
	WalletNumber    int64 `json:"wallet_number"`
}

// DepositReceipt is returned for a committed deposit.
type DepositReceipt struct {
	AmountDeposited int64 `json:"amount_deposited"`
	WalletNumber    int64 `json:"wallet_number"`
}

// Transfer debits the caller's wallet and credits the receiver in one
// transaction. Both wallet rows are locked in wallet-number order.
func (e *Engine) Transfer(ctx context.Context, callerID string, in TransferInput) (receipt TransferReceipt, err error) {
	defer func() { e.record(opTransfer, err) }()

	if err := validateAmount(in.Amount); err != nil {
		return TransferReceipt{}, err
	}
	if in.SenderWalletNumber == in.ReceiverWalletNumber {
		return TransferReceipt{}, apperr.Invalid("Cannot transfer to the same wallet")
	}
	caller, err := e.authorize(ctx, callerID, in.PIN)
	if err != nil {
		return TransferReceipt{}, err
	}

	err = ledger.Atomic(ctx, e.store, e.retry, e.metrics, func(ctx context.Context, r ledger.Repos) error {
		locked, err := r.Wallets.LockByNumbers(ctx, in.SenderWalletNumber, in.ReceiverWalletNumber)
		if err != nil {
			return err
		}
		sender, err := ownedWallet(locked, in.SenderWalletNumber, caller.ID)
		if err != nil {
			return err
		}
		receiver, ok := locked[in.ReceiverWalletNumber]
		if !ok {
			return apperr.NotFound("Wallet not found")
		}
		beneficiary, err := r.Users.FindByID(ctx, receiver.UserID)
		if errors.Is(err, identity.ErrNotFound) {
			return apperr.NotFound("Beneficiary account not found")
		}
		if err != nil {
			return err
		}
		if sender.Balance < in.Amount {
			return apperr.InsufficientFunds("Insufficient fund")
		}
		if err := checkCredit(receiver, in.Amount); err != nil {
			return err
		}

		if _, err := r.Wallets.ApplyDelta(ctx, sender.UserID, -in.Amount); err != nil {
			return deltaError(err)
		}
		if _, err := r.Wallets.ApplyDelta(ctx, receiver.UserID, in.Amount); err != nil {
			return deltaError(err)
		}

		receipt = TransferReceipt{
			AmountSent:               in.Amount,
			SenderName:               caller.FullName(),
			BeneficiaryName:          beneficiary.FullName(),
			BeneficiaryAccountNumber: receiver.Number,
		}
		return nil
	})
	if err != nil {
		return TransferReceipt{}, classify(err)
	}

	e.logger.Info("transfer committed",
		slog.String("user_id", caller.ID),
		slog.Int64("from", in.SenderWalletNumber),
		slog.Int64("to", in.ReceiverWalletNumber),
		slog.Int64("amount", in.Amount),
	)
	return receipt, nil
}

// Withdraw debits the caller's wallet.
func (e *Engine) Withdraw(ctx context.Context, callerID string, in WalletInput) (receipt WithdrawReceipt, err error) {
	defer func() { e.record(opWithdraw, err) }()

	if err := validateAmount(in.Amount); err != nil {
		return WithdrawReceipt{}, err
	}
	caller, err := e.authorize(ctx, callerID, in.PIN)
	if err != nil {
		return WithdrawReceipt{}, err
	}

	err = ledger.Atomic(ctx, e.store, e.retry, e.metrics, func(ctx context.Context, r ledger.Repos) error {
		locked, err := r.Wallets.LockByNumbers(ctx, in.WalletNumber)
		if err != nil {
			return err
		}
		w, err := ownedWallet(locked, in.WalletNumber, caller.ID)
		if err != nil {
			return err
		}
		if w.Balance < in.Amount {
			return apperr.InsufficientFunds("Insufficient fund")
		}
		if _, err := r.Wallets.ApplyDelta(ctx, w.UserID, -in.Amount); err != nil {
			return deltaError(err)
		}
		return nil
	})
	if err != nil {
		return WithdrawReceipt{}, classify(err)
	}

	e.logger.Info("withdrawal committed",
		slog.String("user_id", caller.ID),
		slog.Int64("wallet", in.WalletNumber),
		slog.Int64("amount", in.Amount),
	)
	return WithdrawReceipt{AmountWithdrawn: in.Amount, WalletNumber: in.WalletNumber}, nil
}

// Deposit credits the caller's wallet.
func (e *Engine) Deposit(ctx context.Context, callerID string, in WalletInput) (receipt DepositReceipt, err error) {
	defer func() { e.record(opDeposit, err) }()

	if err := validateAmount(in.Amount); err != nil {
		return DepositReceipt{}, err
	}
	caller, err := e.authorize(ctx, callerID, in.PIN)
	if err != nil {
		return DepositReceipt{}, err
	}

	err = ledger.Atomic(ctx, e.store, e.retry, e.metrics, func(ctx context.Context, r ledger.Repos) error {
		locked, err := r.Wallets.LockByNumbers(ctx, in.WalletNumber)
		if err != nil {
			return err
		}
		w, err := ownedWallet(locked, in.WalletNumber, caller.ID)
		if err != nil {
			return err
		}
		if err := checkCredit(w, in.Amount); err != nil {
			return err
		}
		if _, err := r.Wallets.ApplyDelta(ctx, w.UserID, in.Amount); err != nil {
			return deltaError(err)
		}
		return nil
	})
	if err != nil {
		return DepositReceipt{}, classify(err)
	}

	e.logger.Info("deposit committed",
		slog.String("user_id", caller.ID),
		slog.Int64("wallet", in.WalletNumber),
		slog.Int64("amount", in.Amount),
	)
	return DepositReceipt{AmountDeposited: in.Amount, WalletNumber: in.WalletNumber}, nil
}

// authorize re-authenticates the caller with the transaction PIN.
func (e *Engine) authorize(ctx context.Context, callerID, pin string) (identity.User, error) {
	user, err := e.store.Repos().Users.FindByID(ctx, callerID)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, apperr.Unauthorized("Invalid token")
	}
	if err != nil {
		return identity.User{}, apperr.Internal(err)
	}
	if !user.Verified {
		return identity.User{}, apperr.Forbidden("Account is not verified")
	}
	if !user.HasPIN() {
		return identity.User{}, apperr.Forbidden("Transaction PIN has not been set")
	}
	ok, err := e.hasher.Verify(pin, user.PINDigest)
	if err != nil {
		return identity.User{}, apperr.Internal(err)
	}
	if !ok {
		return identity.User{}, apperr.InvalidCredentials("Invalid PIN")
	}
	return user, nil
}

func (e *Engine) record(op string, err error) {
	if err == nil {
		e.metrics.LedgerOperation(op, metrics.OutcomeSuccess)
		return
	}
	e.metrics.LedgerOperation(op, apperr.KindOf(err).String())
	if apperr.KindOf(err) == apperr.KindInternal || apperr.KindOf(err) == apperr.KindServiceUnavailable {
		e.logger.Error("funds movement failed", slog.String("operation", op), slog.Any("error", err))
	}
}

func ownedWallet(locked map[int64]wallet.Wallet, number int64, ownerID string) (wallet.Wallet, error) {
	w, ok := locked[number]
	if !ok {
		return wallet.Wallet{}, apperr.NotFound("Wallet not found")
	}
	if w.UserID != ownerID {
		return wallet.Wallet{}, apperr.Forbidden("Wallet does not belong to you")
	}
	return w, nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return apperr.Invalid("Amount must be greater than zero")
	}
	return nil
}

// checkCredit rejects a credit that would overflow the balance column.
func checkCredit(w wallet.Wallet, amount int64) error {
	if amount > math.MaxInt64-w.Balance {
		return apperr.Invalid("Amount exceeds the maximum wallet balance")
	}
	return nil
}

func deltaError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrNegativeBalance):
		return apperr.Wrap(apperr.KindConflict, "Balance cannot go below zero", err)
	case errors.Is(err, wallet.ErrNotFound):
		return apperr.NotFound("Wallet not found")
	default:
		return err
	}
}

func classify(err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		return apperr.Internal(err)
	}
	return err
}
