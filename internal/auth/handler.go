package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/httputil"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

// Handler exposes sign-in, refresh, sign-out and account endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn validates credentials and returns a token pair.
func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	if req.Email == "" || req.Password == "" {
		return apperr.Invalid("email and password are required")
	}
	result, err := h.svc.SignIn(c.UserContext(), SignInInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "successful", result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates the token pair.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	result, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "successful", result)
}

// Logout clears the caller's tokens.
func (h *Handler) Logout(c *fiber.Ctx) error {
	p, err := Require(c)
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.UserContext(), p.User.ID); err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "logged out", nil)
}

// Account returns the caller's profile and wallet, if provisioned.
func (h *Handler) Account(c *fiber.Ctx) error {
	p, err := Require(c)
	if err != nil {
		return err
	}
	payload := fiber.Map{"user": p.User.Profile()}
	w, err := h.svc.store.Repos().Wallets.GetByOwner(c.UserContext(), p.User.ID)
	switch {
	case err == nil:
		payload["wallet"] = fiber.Map{"wallet_number": w.Number, "wallet_balance": w.Balance}
	case !errors.Is(err, wallet.ErrNotFound):
		return apperr.Internal(err)
	}
	return httputil.Respond(c, http.StatusOK, "successful", payload)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the caller's password and signs them out.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	p, err := Require(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	err = h.svc.ChangePassword(c.UserContext(), p.User.ID, ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "password changed", nil)
}

// Require returns the principal placed on the request by the JWT middleware.
func Require(c *fiber.Ctx) (Principal, error) {
	p, ok := PrincipalFrom(c.UserContext())
	if !ok {
		return Principal{}, apperr.Unauthorized(msgNoToken)
	}
	return p, nil
}
