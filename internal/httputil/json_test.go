package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/logging"
)

func decode(t *testing.T, app *fiber.App, path string) (int, Envelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, env
}

func TestErrorHandlerEnvelopes(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/funds", func(c *fiber.Ctx) error {
		return apperr.InsufficientFunds("Insufficient fund")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("db exploded")
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return Respond(c, fiber.StatusOK, "successful", fiber.Map{"a": 1})
	})

	status, env := decode(t, app, "/funds")
	if status != fiber.StatusUnprocessableEntity || env.Status != status || env.Message != "Insufficient fund" {
		t.Fatalf("unexpected envelope %d %+v", status, env)
	}

	status, env = decode(t, app, "/boom")
	if status != fiber.StatusInternalServerError || env.Message != "internal server error" {
		t.Fatalf("internal detail leaked: %d %+v", status, env)
	}

	status, env = decode(t, app, "/ok")
	if status != fiber.StatusOK || env.Payload == nil {
		t.Fatalf("unexpected success envelope %d %+v", status, env)
	}
}
