package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kobo-wallet/kobo/internal/metrics"
)

// Metrics records request counts and latency per route template, so path
// parameters do not explode label cardinality.
func Metrics(m *metrics.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		m.ObserveHTTP(c.Method(), route, responseStatus(c, err), time.Since(start))
		return err
	}
}
