package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/logging"
)

const testOwnerHeader = "X-Test-Owner"

func setupTestApp(t *testing.T) (*fiber.App, *int32) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	var calls int32
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(RequestID())
	app.Use(func(c *fiber.Ctx) error {
		authz.Attach(c, authz.Principal{OwnerID: c.Get(testOwnerHeader), Method: authz.MethodBearer})
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logger))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	app.Post("/failing", func(c *fiber.Ctx) error {
		atomic.AddInt32(&calls, 1)
		return apperr.Invalid("test", "nope")
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, owner, key string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(testOwnerHeader, owner)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body), resp.Header.Get("Idempotent-Replayed")
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	app, calls := setupTestApp(t)

	post(t, app, "/resource", "u1", "")
	post(t, app, "/resource", "u1", "")
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d", got)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, body, replayed := post(t, app, "/resource", "u1", "abc123")
	if status != fiber.StatusCreated || replayed != "" {
		t.Fatalf("first request: status %d, replayed %q", status, replayed)
	}

	// Second request should return the cached response without invoking handler again.
	status2, body2, replayed2 := post(t, app, "/resource", "u1", "abc123")
	if status2 != fiber.StatusCreated || replayed2 != "true" {
		t.Fatalf("expected cached status %d, got %d (replayed %q)", fiber.StatusCreated, status2, replayed2)
	}
	if body2 != body {
		t.Fatalf("expected cached payload %s got %s", body, body2)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("handler ran %d times", got)
	}
}

func TestIdempotencyKeysAreScopedPerOwner(t *testing.T) {
	app, calls := setupTestApp(t)

	post(t, app, "/resource", "u1", "same")
	_, _, replayed := post(t, app, "/resource", "u2", "same")
	if replayed != "" || atomic.LoadInt32(calls) != 2 {
		t.Fatalf("another owner's response was replayed")
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	app, calls := setupTestApp(t)

	status, body, _ := post(t, app, "/failing", "u1", "retry-me")
	if status != fiber.StatusBadRequest || !strings.Contains(body, `"INVALID_ARGUMENT"`) {
		t.Fatalf("unexpected failure response %d %s", status, body)
	}
	post(t, app, "/failing", "u1", "retry-me")
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("failed request was replayed instead of retried")
	}
}
