package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/authz"
)

const (
	// IdempotencyKeyHeader lets a client retry a mutation safely.
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	maxIdempotencyKeyLen = 128
	replayedHeader       = "Idempotent-Replayed"
	cacheTimeout         = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Idempotency replays the stored response of an earlier request that carried
// the same Idempotency-Key from the same owner. Requests without the header
// pass through. Failed requests are not stored so they can be retried.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const op = "middleware.idempotency"

		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		key := strings.TrimSpace(c.Get(IdempotencyKeyHeader))
		if key == "" || cache == nil {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return apperr.Invalid(op, "Idempotency-Key is too long")
		}

		scope := "anonymous"
		if p, err := authz.From(c); err == nil {
			scope = p.OwnerID
		}
		cacheKey := idempotencyPrefix + scope + ":" + c.Path() + ":" + key

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), cacheTimeout)
		defer cancel()
		log := logger.With(slog.String("idempotency_key", key), slog.String("path", c.Path()))

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			return replay(c, cached, log)
		case !errors.Is(err, redis.Nil):
			log.Error("idempotency.lookup_failed", slog.String("error", err.Error()))
			return apperr.Internalf(op, err)
		}

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			log.Error("idempotency.reserve_failed", slog.String("error", err.Error()))
			return apperr.Internalf(op, err)
		}
		if !reserved {
			return apperr.State(op, "duplicate request currently processing")
		}

		handlerErr := c.Next()
		// The handler may outlive the lookup deadline.
		pctx, pcancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), cacheTimeout)
		defer pcancel()
		if handlerErr != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError {
			cache.Del(pctx, cacheKey)
			return handlerErr
		}

		stored := storedResponse{
			Status:  c.Response().StatusCode(),
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		for _, h := range replayedHeaders {
			if v := c.Response().Header.Peek(h); len(v) > 0 {
				stored.Headers[h] = string(v)
			}
		}
		payload, err := json.Marshal(stored)
		if err == nil {
			err = cache.Set(pctx, cacheKey, payload, ttl).Err()
		}
		if err != nil {
			log.Error("idempotency.persist_failed", slog.String("error", err.Error()))
			cache.Del(pctx, cacheKey)
		}
		return nil
	}
}

// replayedHeaders survive into a replay; request scoped ones do not.
var replayedHeaders = []string{fiber.HeaderContentType, fiber.HeaderLocation}

func replay(c *fiber.Ctx, cached string, log *slog.Logger) error {
	const op = "middleware.idempotency"
	if cached == inProgressMarker {
		return apperr.State(op, "duplicate request currently processing")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		log.Warn("idempotency.decode_failed", slog.String("error", err.Error()))
		return apperr.State(op, "duplicate request")
	}
	for header, value := range stored.Headers {
		c.Set(header, value)
	}
	c.Set(replayedHeader, "true")
	return c.Status(stored.Status).SendString(stored.Body)
}
