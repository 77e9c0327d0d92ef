package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/onboarding"
	"github.com/kobo-wallet/kobo/internal/payments"
)

type walletRoutes struct {
	payments    *payments.Handler
	onboarding  *onboarding.Handler
	idempotency fiber.Handler
}

// RegisterWalletRoutes wires the wallet view, PIN creation and
// funds-movement endpoints. Movements honour Idempotency-Key.
func RegisterWalletRoutes(r fiber.Router, h walletRoutes) {
	r.Get("/wallet", h.payments.Wallet)
	r.Post("/wallet/pin", h.onboarding.CreatePIN)
	r.Post("/wallet/transfer", h.idempotency, h.payments.Transfer)
	r.Post("/wallet/withdraw", h.idempotency, h.payments.Withdraw)
	r.Post("/wallet/deposit", h.idempotency, h.payments.Deposit)
}
