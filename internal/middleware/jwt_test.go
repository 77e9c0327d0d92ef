package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kobo-wallet/kobo/internal/auth"
	"github.com/kobo-wallet/kobo/internal/credential"
	"github.com/kobo-wallet/kobo/internal/httputil"
	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/ledger"
	"github.com/kobo-wallet/kobo/internal/logging"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer":          "",
		"Basic abc":       "",
		"Bearer abc":      "abc",
		"bearer  abc ":    "abc",
		"  BEARER xyz.1 ": "xyz.1",
	}
	for header, want := range cases {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func newAuthApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	store := ledger.NewMemoryStore()
	hasher := credential.NewHasher(bcrypt.MinCost)
	digest, err := hasher.Hash("Secret1!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := identity.User{
		ID:             uuid.NewString(),
		Email:          "a@x.com",
		PasswordDigest: digest,
		Verified:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.Repos().Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	svc := auth.NewService(auth.Deps{
		Store:  store,
		Hasher: hasher,
		Tokens: credential.NewTokenIssuer(credential.TokenConfig{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
		}),
		Logger: logging.Discard(),
	})
	res, err := svc.SignIn(context.Background(), auth.SignInInput{Email: "a@x.com", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: httputil.ErrorHandler(logging.Discard())})
	app.Get("/me", JWTAuth(svc), func(c *fiber.Ctx) error {
		p, err := auth.Require(c)
		if err != nil {
			return err
		}
		return c.SendString(p.User.ID)
	})
	return app, res.AccessToken
}

func TestJWTAuthMissingToken(t *testing.T) {
	app, _ := newAuthApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected %d got %d", fiber.StatusUnauthorized, resp.StatusCode)
	}
	var env httputil.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Message != "No token found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestJWTAuthAttachesPrincipal(t *testing.T) {
	app, token := newAuthApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}

func TestJWTAuthRejectsTamperedToken(t *testing.T) {
	app, token := newAuthApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token+"x")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected %d got %d", fiber.StatusUnauthorized, resp.StatusCode)
	}
}
