package controllers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/docsmithhq/docsmith/app/models"
	"github.com/docsmithhq/docsmith/internal/pkg/accountcontext"
	"github.com/docsmithhq/docsmith/internal/pkg/entitlements"
	"github.com/docsmithhq/docsmith/internal/pkg/env"
	"github.com/docsmithhq/docsmith/internal/pkg/quota"
)

// AccountResyncer is the reconciler surface the billing endpoints need.
type AccountResyncer interface {
	ResyncAccount(ctx context.Context, accountID uint) (string, error)
}

// BillingController serves the account-facing billing endpoints.
type BillingController struct {
	resyncer AccountResyncer
	tracker  *quota.Tracker
}

// NewBillingController creates the controller.
func NewBillingController(resyncer AccountResyncer, tracker *quota.Tracker) *BillingController {
	return &BillingController{resyncer: resyncer, tracker: tracker}
}

// HandleCheckoutRedirect sends the caller to the provider's hosted payment
// page. The engine never talks to the provider synchronously here; the
// eventual webhook events are its only input.
func (bc *BillingController) HandleCheckoutRedirect(c *fiber.Ctx) error {
	acct := accountcontext.GetAccountContext(c)
	if !acct.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	plan := strings.ToLower(strings.TrimSpace(c.Query("plan")))
	if plan == "" || !entitlements.IsKnownPlan(plan) || plan == string(entitlements.PlanFree) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan"})
	}

	base := strings.TrimSpace(env.GetEnv("CHECKOUT_URL", ""))
	if base == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "checkout_not_configured"})
	}
	u, err := url.Parse(base)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "checkout_not_configured"})
	}
	q := u.Query()
	q.Set("plan", plan)
	q.Set("client_reference_id", fmt.Sprintf("%d", acct.AccountID))
	u.RawQuery = q.Encode()

	return c.Redirect(u.String(), fiber.StatusSeeOther)
}

// HandleBillingResync recomputes the caller's tier from the stored
// subscription state.
func (bc *BillingController) HandleBillingResync(c *fiber.Ctx) error {
	acct := accountcontext.GetAccountContext(c)
	if !acct.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tier, err := bc.resyncer.ResyncAccount(ctx, acct.AccountID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "resync_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "tier": tier})
}

// HandleUsageSummary returns the caller's current window consumption and
// entitlement profile.
func (bc *BillingController) HandleUsageSummary(c *fiber.Ctx) error {
	account := accountcontext.GetAccount(c)
	if account == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	daily, monthly, err := bc.tracker.Usage(c.Context(), account)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage_unavailable"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"tier":    account.Tier,
		"profile": entitlements.ProfileFor(account.Tier),
		"daily":   usageWindow(daily),
		"monthly": usageWindow(monthly),
	})
}

func usageWindow(counter *models.QuotaCounter) fiber.Map {
	return fiber.Map{
		"window_start": counter.WindowStart.UTC().Format(time.RFC3339),
		"window_end":   counter.WindowEnd.UTC().Format(time.RFC3339),
		"consumed":     counter.Consumed,
		"limit":        counter.QuotaLimit,
		"remaining":    counter.Remaining(),
	}
}
