package controllers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/docsmithhq/docsmith/app/models"
	"github.com/docsmithhq/docsmith/internal/pkg/entitlements"
	"github.com/docsmithhq/docsmith/internal/pkg/env"
	"github.com/docsmithhq/docsmith/internal/pkg/metrics/counter"
)

// PlanOverrider is the reconciler surface for admin plan pinning. All tier
// writes go through it so the single-writer rule holds for operator actions
// too.
type PlanOverrider interface {
	OverridePlan(ctx context.Context, accountID uint, plan string) (string, error)
}

// AdminController serves operator endpoints for account management.
type AdminController struct {
	db        *gorm.DB
	overrider PlanOverrider
}

// NewAdminController creates the controller.
func NewAdminController(db *gorm.DB, overrider PlanOverrider) *AdminController {
	return &AdminController{db: db, overrider: overrider}
}

// HandleMarkForDeletion soft-deletes an account and schedules the purge.
// The compliance worker owns the hard delete; from this point the tier gate
// denies the account with AccountSuspended.
func (ac *AdminController) HandleMarkForDeletion(c *fiber.Ctx) error {
	account, ok := ac.loadAccount(c)
	if !ok {
		return nil
	}

	retentionDays, convErr := strconv.Atoi(env.GetEnv("ACCOUNT_PURGE_RETENTION_DAYS", "30"))
	if convErr != nil || retentionDays <= 0 {
		retentionDays = 30
	}
	account.MarkForDeletion(time.Duration(retentionDays) * 24 * time.Hour)

	if err := ac.db.Save(account).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update_failed"})
	}
	log.Infof("[Admin] account %d marked for deletion, purge scheduled at %s", account.ID, account.PurgeScheduledAt)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "purge_scheduled_at": account.PurgeScheduledAt})
}

// HandleOverridePlan pins an account's tier to a catalog plan. The write
// itself happens inside the reconciler, which owns every tier mutation.
func (ac *AdminController) HandleOverridePlan(c *fiber.Ctx) error {
	account, ok := ac.loadAccount(c)
	if !ok {
		return nil
	}

	var body struct {
		Plan string `json:"plan"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	plan := strings.ToLower(strings.TrimSpace(body.Plan))
	if !entitlements.IsKnownPlan(plan) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tier, err := ac.overrider.OverridePlan(ctx, account.ID, plan)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "tier": tier})
}

// HandleStats exposes the accumulated denial and webhook outcome counters.
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	denials, err := counter.DenialSnapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	outcomes, err := counter.WebhookOutcomeSnapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"denials":          denials,
		"webhook_outcomes": outcomes,
	})
}

// loadAccount resolves the :id route param and writes the error response
// itself when the account cannot be loaded.
func (ac *AdminController) loadAccount(c *fiber.Ctx) (*models.Account, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_account_id"})
		return nil, false
	}
	var account models.Account
	if err := ac.db.First(&account, uint(id)).Error; err != nil {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
		return nil, false
	}
	return &account, true
}
