package onboarding

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/auth"
	"github.com/kobo-wallet/kobo/internal/httputil"
)

// Handler exposes signup, verification and PIN endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Signup registers a user and emails the OTP.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	profile, err := h.svc.Signup(c.UserContext(), SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusCreated, "success", profile)
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Verify consumes the OTP and provisions the wallet.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	if err := h.svc.VerifyOTP(c.UserContext(), req.Email, req.OTP); err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusOK, "Verified successfully", nil)
}

type pinRequest struct {
	PIN string `json:"account_pin"`
}

// CreatePIN sets the caller's transaction PIN.
func (h *Handler) CreatePIN(c *fiber.Ctx) error {
	p, err := auth.Require(c)
	if err != nil {
		return err
	}
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(err)
	}
	if err := h.svc.CreatePIN(c.UserContext(), p.User, req.PIN); err != nil {
		return err
	}
	return httputil.Respond(c, http.StatusCreated, "PIN created", nil)
}
