package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/kobo-wallet/kobo/internal/identity"
)

// LoginRateLimit limits sign-in attempts per email, or per IP when the body
// carries none. Redis gives a fixed one-minute window shared by every
// instance; without Redis an in-process token bucket is used instead.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	local := newLocalLimiter(maxPerMin)
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		subject := identity.NormalizeEmail(req.Email)
		if subject == "" {
			subject = c.IP()
		}

		if cache == nil {
			if !local.allow(subject) {
				return tooManyAttempts()
			}
			return c.Next()
		}

		key := "rl:login:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return tooManyAttempts()
		}
		return c.Next()
	}
}

func tooManyAttempts() error {
	return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
}

const maxTrackedSubjects = 10_000

type localLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, limiters: make(map[string]*rate.Limiter)}
}

func (l *localLimiter) allow(subject string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[subject]
	if !ok {
		if len(l.limiters) >= maxTrackedSubjects {
			l.prune()
		}
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[subject] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// prune drops limiters whose bucket has refilled. Callers hold l.mu.
func (l *localLimiter) prune() {
	for k, lim := range l.limiters {
		if lim.Tokens() >= float64(l.perMin) {
			delete(l.limiters, k)
		}
	}
}
