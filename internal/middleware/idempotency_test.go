package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/httputil"
	"github.com/kobo-wallet/kobo/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, func()) {
	app, _, cleanup := setupCountingApp(t)
	return app, cleanup
}

// setupCountingApp returns an app whose POST /resource handler counts its
// invocations and fails with a conflict when the request carries ?fail=1.
func setupCountingApp(t *testing.T) (*fiber.App, *int, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: httputil.ErrorHandler(logger)})
	app.Use(Idempotency(cache, time.Minute, logger))
	calls := 0
	app.Post("/resource", func(c *fiber.Ctx) error {
		calls++
		if c.Query("fail") == "1" {
			return apperr.Conflict("try again")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "call": calls})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &calls, cleanup
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	body := strings.NewReader("{}")
	req := httptest.NewRequest(fiber.MethodPost, "/resource", body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(idempotencyKeyHeader, "abc123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()

	// Second request should return the cached response without invoking handler again.
	req2 := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req2.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req2.Header.Set(idempotencyKeyHeader, "abc123")

	resp2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if resp2.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, resp2.StatusCode)
	}

	cachedPayload, err := io.ReadAll(resp2.Body)
	if err != nil {
		t.Fatalf("read cached body: %v", err)
	}
	resp2.Body.Close()

	if string(cachedPayload) != string(payload) {
		t.Fatalf("expected cached payload %s got %s", string(payload), string(cachedPayload))
	}

	var decoded map[string]any
	if err := json.Unmarshal(cachedPayload, &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func postWithKey(t *testing.T, app *fiber.App, target, key string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, target, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(idempotencyKeyHeader, key)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestIdempotencyReplayDoesNotInvokeHandler(t *testing.T) {
	app, calls, cleanup := setupCountingApp(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		if status := postWithKey(t, app, "/resource", "same"); status != fiber.StatusCreated {
			t.Fatalf("attempt %d: expected %d got %d", i, fiber.StatusCreated, status)
		}
	}
	if *calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", *calls)
	}
}

func TestIdempotencyFailedRequestReleasesKey(t *testing.T) {
	app, calls, cleanup := setupCountingApp(t)
	defer cleanup()

	if status := postWithKey(t, app, "/resource?fail=1", "retry-me"); status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
	if status := postWithKey(t, app, "/resource", "retry-me"); status != fiber.StatusCreated {
		t.Fatalf("expected retry to run, got %d", status)
	}
	if *calls != 2 {
		t.Fatalf("expected two handler runs, got %d", *calls)
	}
}

func TestIdempotencyWithoutCacheIsPassThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Idempotency(nil, time.Minute, logging.Discard()))
	calls := 0
	app.Post("/resource", func(c *fiber.Ctx) error {
		calls++
		return c.SendStatus(fiber.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/resource", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("expected %d got %d", fiber.StatusNoContent, resp.StatusCode)
		}
	}
	if calls != 2 {
		t.Fatalf("expected two handler runs, got %d", calls)
	}
}

// failReplayWrites fails every SET except the reservation marker, so the
// handler runs but its response cannot be stored.
type failReplayWrites struct{}

func (failReplayWrites) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failReplayWrites) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if cmd.Name() == "set" && len(args) > 2 && args[2] != inProgressMarker {
			err := errors.New("write refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failReplayWrites) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestIdempotencyUnstoredSuccessStillBlocksRetry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	cache.AddHook(failReplayWrites{})

	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: httputil.ErrorHandler(logger)})
	app.Use(Idempotency(cache, time.Minute, logger))
	calls := 0
	app.Post("/resource", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})

	if status := postWithKey(t, app, "/resource", "k1"); status != fiber.StatusCreated {
		t.Fatalf("committed request must report success, got %d", status)
	}
	if status := postWithKey(t, app, "/resource", "k1"); status != fiber.StatusConflict {
		t.Fatalf("retry must be refused while the key is reserved, got %d", status)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
}
