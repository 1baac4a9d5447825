package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/docsmithhq/docsmith/app/controllers"
	"github.com/docsmithhq/docsmith/internal/pkg/middleware"
	"github.com/docsmithhq/docsmith/internal/pkg/ratelimit"
	"github.com/docsmithhq/docsmith/internal/pkg/tiergate"
)

// Deps bundles the wired components the routes need.
type Deps struct {
	Webhook *controllers.WebhookController
	Billing *controllers.BillingController
	Docs    *controllers.DocsController
	Admin   *controllers.AdminController
	Limiter *ratelimit.Limiter
	Gate    *tiergate.Gate
}

// InstallRoutes registers all HTTP routes. The rate limiter always runs
// before the tier gate so abusive traffic never reaches the quota path; the
// webhook endpoint is IP-limited since the provider is unauthenticated.
func InstallRoutes(app *fiber.App, deps Deps) {
	app.Post("/webhooks/billing", ratelimit.Middleware(deps.Limiter), deps.Webhook.HandleBillingWebhook)

	api := app.Group("/api/v1", middleware.APIKeyAuthMiddleware(), ratelimit.Middleware(deps.Limiter))
	api.Get("/usage", deps.Billing.HandleUsageSummary)
	api.Get("/billing/checkout", deps.Billing.HandleCheckoutRedirect)
	api.Post("/billing/resync", deps.Billing.HandleBillingResync)
	api.Post("/docs/generate", tiergate.Middleware(deps.Gate), deps.Docs.HandleGenerateDocs)

	admin := app.Group("/admin", middleware.APIKeyAuthMiddleware(), middleware.RequireAdmin)
	admin.Post("/accounts/:id/delete", deps.Admin.HandleMarkForDeletion)
	admin.Post("/accounts/:id/plan", deps.Admin.HandleOverridePlan)
	admin.Get("/stats", deps.Admin.HandleStats)
}
