package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/auth"
	"github.com/kobo-wallet/kobo/internal/onboarding"
)

type authRoutes struct {
	auth        *auth.Handler
	onboarding  *onboarding.Handler
	rateLimiter fiber.Handler
	jwt         fiber.Handler
}

// RegisterAuthRoutes wires signup, verification and session endpoints.
func RegisterAuthRoutes(r fiber.Router, h authRoutes) {
	group := r.Group("/auth")
	group.Post("/signup", h.onboarding.Signup)
	group.Post("/verify", h.onboarding.Verify)
	if h.rateLimiter != nil {
		group.Post("/signin", h.rateLimiter, h.auth.SignIn)
	} else {
		group.Post("/signin", h.auth.SignIn)
	}
	group.Post("/refresh", h.auth.Refresh)
	group.Post("/logout", h.jwt, h.auth.Logout)
}

// RegisterAccountRoutes wires the caller's account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *auth.Handler) {
	r.Get("/account", h.Account)
	r.Post("/account/password", h.ChangePassword)
}
