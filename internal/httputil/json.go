package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/apperr"
)

// Envelope is the body shape of every API response.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

// Respond writes a success envelope.
func Respond(c *fiber.Ctx, status int, message string, payload any) error {
	return c.Status(status).JSON(Envelope{Status: status, Message: message, Payload: payload})
}

// BadRequest is returned by handlers when the body cannot be parsed.
func BadRequest(err error) error {
	return apperr.Wrap(apperr.KindInvalid, "invalid request body", err)
}

// ErrorHandler renders errors as envelopes. Classified errors expose only
// their message; anything else is logged and reported as a 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			status := appErr.Kind.HTTPStatus()
			if status >= http.StatusInternalServerError && logger != nil {
				logger.Error("request failed",
					slog.String("path", c.Path()),
					slog.String("kind", appErr.Kind.String()),
					slog.Any("error", err),
				)
			}
			return c.Status(status).JSON(Envelope{Status: status, Message: appErr.Message})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(Envelope{Status: fe.Code, Message: fe.Message})
		}

		if logger != nil {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(http.StatusInternalServerError).JSON(Envelope{
			Status:  http.StatusInternalServerError,
			Message: "internal server error",
		})
	}
}
