package ratelimit

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/docsmithhq/docsmith/internal/pkg/accountcontext"
	"github.com/docsmithhq/docsmith/internal/pkg/metrics/counter"
)

// Middleware enforces the sliding-window ceilings before any tier gating.
// Authenticated callers are keyed by account, everyone else by client IP.
func Middleware(l *Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if acct := accountcontext.GetAccountContext(c); acct.IsAuthenticated {
			key = fmt.Sprintf("account:%d", acct.AccountID)
		}

		if err := l.Allow(c.Context(), key); err != nil {
			if errors.Is(err, ErrRateLimited) {
				_ = counter.AddDenial("RateLimited")
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
		return c.Next()
	}
}
