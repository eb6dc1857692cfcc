package middleware

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"matchday/internal/models"
	"matchday/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Quota is a fixed-window request budget shared by every route that names it.
type Quota struct {
	Name   string
	Max    int
	Window time.Duration
	// FailClosed rejects requests with 503 while Redis is unreachable.
	FailClosed bool
}

// Write-path quotas. Reports on posts and comments share one budget.
var (
	SearchQuota   = Quota{Name: "search", Max: 30, Window: time.Minute}
	CommentQuota  = Quota{Name: "create_comment", Max: 5, Window: time.Minute}
	ReportQuota   = Quota{Name: "report", Max: 10, Window: 10 * time.Minute}
	PasswordQuota = Quota{Name: "password", Max: 5, Window: 10 * time.Minute, FailClosed: true}
)

var errNoRedis = errors.New("rate limit store not configured")

// throttledEnv reports whether APP_ENV enforces quotas. Local, test and load
// test runs are never throttled.
func throttledEnv() bool {
	switch strings.ToLower(os.Getenv("APP_ENV")) {
	case "", "development", "test", "stress":
		return false
	}
	return true
}

// Take consumes one unit of q for subject. It returns the remaining wait when
// the window is exhausted and zero otherwise.
func (q Quota) Take(ctx context.Context, rdb *redis.Client, subject string) (time.Duration, error) {
	if !throttledEnv() {
		return 0, nil
	}
	if rdb == nil {
		return 0, errNoRedis
	}

	key := "rl:" + q.Name + ":" + subject
	used, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("ratelimit").Inc()
		return 0, err
	}
	if used == 1 {
		if err := rdb.Expire(ctx, key, q.Window).Err(); err != nil {
			observability.RedisErrorRate.WithLabelValues("ratelimit").Inc()
		}
	}
	if used <= int64(q.Max) {
		return 0, nil
	}

	wait, err := rdb.PTTL(ctx, key).Result()
	if err != nil || wait <= 0 {
		wait = q.Window
	}
	return wait, nil
}

// rateSubject keys signed-in viewers by profile and everyone else by IP.
func rateSubject(c *fiber.Ctx) string {
	if uid := UserID(c); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.IP()
}

// RateLimit enforces q per viewer. A rejected request gets 429 with
// Retry-After in whole seconds.
func RateLimit(rdb *redis.Client, q Quota) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		wait, err := q.Take(ctx, rdb, rateSubject(c))
		if err != nil {
			if !q.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, rejecting",
				slog.String("quota", q.Name), slog.String("error", err.Error()))
			return models.Respond(c, models.NewUnavailableError("rate limit unavailable", nil))
		}
		if wait > 0 {
			secs := int((wait + time.Second - 1) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return models.Respond(c, models.NewRateLimitedError("rate limit exceeded"))
		}
		return c.Next()
	}
}
