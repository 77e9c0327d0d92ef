package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/auth"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	idempotencyOpTimeout = 2 * time.Second
)

// replay is a completed response kept for later retries of the same key.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// replayStore keeps reservations and replays in Redis. A key holds the
// in-progress marker from reservation until the response is stored.
type replayStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func (s replayStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), idempotencyOpTimeout)
}

// reserve claims key. It returns the stored replay when the key already
// completed, or a Conflict while another attempt holds it.
func (s replayStore) reserve(key string) (*replay, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	ok, err := s.cache.SetNX(ctx, key, inProgressMarker, s.ttl).Result()
	if err != nil {
		return nil, apperr.Unavailable("idempotency store failure", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.cache.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// Released between SETNX and GET; the caller may retry.
		return nil, apperr.Conflict("duplicate request currently processing")
	case err != nil:
		return nil, apperr.Unavailable("idempotency store failure", err)
	case string(raw) == inProgressMarker:
		return nil, apperr.Conflict("duplicate request currently processing")
	}

	var r replay
	if err := json.Unmarshal(raw, &r); err != nil {
		s.logger.Warn("undecodable idempotent response", slog.String("key", key), slog.Any("error", err))
		return nil, apperr.Conflict("duplicate request")
	}
	return &r, nil
}

// release frees key after a failed attempt so the client can retry it.
func (s replayStore) release(key string) {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("idempotency release failed", slog.String("key", key), slog.Any("error", err))
	}
}

// remember replaces the marker with the completed response. On failure the
// marker stays, so retries are refused until it expires rather than rerun.
func (s replayStore) remember(key string, r replay) {
	payload, err := json.Marshal(r)
	if err == nil {
		ctx, cancel := s.ctx()
		defer cancel()
		err = s.cache.Set(ctx, key, payload, s.ttl).Err()
	}
	if err != nil {
		s.logger.Error("idempotent response not stored, key stays reserved",
			slog.String("key", key), slog.Any("error", err))
	}
}

// Idempotency replays the stored response of a money-movement request that
// is retried with the same Idempotency-Key. Keys are scoped to the caller.
// Failed requests release their key; once the handler succeeds its response
// is returned even if it cannot be stored. Without Redis it is a no-op.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayStore{cache: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return apperr.Invalid("missing Idempotency-Key header")
		}
		scoped := idempotencyPrefix + key
		if p, ok := auth.PrincipalFrom(c.UserContext()); ok {
			scoped = idempotencyPrefix + p.User.ID + ":" + key
		}

		prior, err := store.reserve(scoped)
		if err != nil {
			return err
		}
		if prior != nil {
			if prior.ContentType != "" {
				c.Set(fiber.HeaderContentType, prior.ContentType)
			}
			return c.Status(prior.Status).Send(prior.Body)
		}

		if err := c.Next(); err != nil {
			store.release(scoped)
			return err
		}

		resp := c.Response()
		store.remember(scoped, replay{
			Status:      resp.StatusCode(),
			ContentType: string(resp.Header.ContentType()),
			Body:        append([]byte(nil), resp.Body()...),
		})
		return nil
	}
}
