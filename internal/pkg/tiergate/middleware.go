package tiergate

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/docsmithhq/docsmith/internal/pkg/accountcontext"
	"github.com/docsmithhq/docsmith/internal/pkg/metrics/counter"
)

// Middleware gates a quota-limited route. The request is admitted only if
// the account's entitlement still has room in both windows; consumption is
// committed after the handler succeeded so failed operations never burn
// quota.
func Middleware(g *Gate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := accountcontext.GetAccount(c)
		if account == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		decision, err := g.Check(c.Context(), account)
		if err != nil {
			log.Errorf("[TierGate] check failed for account %d: %v", account.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
		if !decision.Allowed {
			_ = counter.AddDenial(string(decision.Reason))
			switch decision.Reason {
			case ReasonAccountSuspended:
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account_suspended", "reason": decision.Reason})
			default:
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "quota_exceeded", "reason": decision.Reason})
			}
		}

		if err := c.Next(); err != nil {
			return err
		}

		if c.Response().StatusCode() < fiber.StatusBadRequest {
			if err := g.Commit(account.ID); err != nil {
				// Best effort: a lost commit under-counts, it never blocks
				// the response.
				log.Errorf("[TierGate] usage commit failed for account %d: %v", account.ID, err)
			}
		}
		return nil
	}
}
