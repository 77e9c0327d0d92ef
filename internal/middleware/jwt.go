package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/auth"
)

const principalLocal = "principal"

// JWTAuth resolves the bearer token to a principal and attaches it to the
// request context. A missing or non-bearer header yields "No token found".
func JWTAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.Authenticate(c.UserContext(), bearerToken(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return err
		}
		c.Locals(principalLocal, p)
		c.Locals("user_id", p.User.ID)
		c.SetUserContext(auth.WithPrincipal(c.UserContext(), p))
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
