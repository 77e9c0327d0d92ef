package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/auth"
	"github.com/kobo-wallet/kobo/internal/httputil"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

// Handler exposes wallet and funds-movement endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a payment handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type walletResponse struct {
	WalletNumber  int64  `json:"wallet_number"`
	WalletBalance int64  `json:"wallet_balance"`
	OwnerName     string `json:"owner_name"`
}

// Wallet returns the caller's wallet and balance.
func (h *Handler) Wallet(c *fiber.Ctx) error {
	p, err := auth.Require(c)
	if err != nil {
		return err
	}
	w, err := h.engine.store.Repos().Wallets.GetByOwner(c.UserContext(), p.User.ID)
	if errors.Is(err, wallet.ErrNotFound) {
		return apperr.NotFound("Wallet not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return httputil.Respond(c, http.StatusOK, "successful", walletResponse{
		WalletNumber:  w.Number,
		WalletBalance: w.Balance,
		OwnerName:     p.User.FullName(),
	})
}

type transferRequest struct {
	Amount               int64  `json:"amount"`
	SenderWalletNumber   int64  `json:"sender_wallet_number"`
	ReceiverWalletNumber int64  `json:"receiver_wallet_number"`
	PIN                  string `json:"pin"`
}

// Transfer moves funds to another wallet.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	p, err := auth.Require(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	receipt, err := h.engine.Transfer(c.UserContext(), p.User.ID, TransferInput{
		SenderWalletNumber:   req.SenderWalletNumber,
		ReceiverWalletNumber: req.ReceiverWalletNumber,
		Amount:               req.Amount,
		PIN:                  req.PIN,
	})
	if err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "fund sent successfully", receipt)
}

type walletRequest struct {
	Amount       int64  `json:"amount"`
	WalletNumber int64  `json:"wallet_number"`
	PIN          string `json:"pin"`
}

// Withdraw debits the caller's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	p, err := auth.Require(c)
	if err != nil {
		return err
	}
	var req walletRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	receipt, err := h.engine.Withdraw(c.UserContext(), p.User.ID, WalletInput{
		WalletNumber: req.WalletNumber,
		Amount:       req.Amount,
		PIN:          req.PIN,
	})
	if err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "withdrawal successful", receipt)
}

// Deposit credits the caller's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	p, err := auth.Require(c)
	if err != nil {
		return err
	}
	var req walletRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	receipt, err := h.engine.Deposit(c.UserContext(), p.User.ID, WalletInput{
		WalletNumber: req.WalletNumber,
		Amount:       req.Amount,
		PIN:          req.PIN,
	})
	if err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "deposit successful", receipt)
}
