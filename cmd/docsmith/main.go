package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/docsmithhq/docsmith/app/controllers"
	"github.com/docsmithhq/docsmith/internal/pkg/billing"
	"github.com/docsmithhq/docsmith/internal/pkg/cache"
	"github.com/docsmithhq/docsmith/internal/pkg/database"
	"github.com/docsmithhq/docsmith/internal/pkg/env"
	"github.com/docsmithhq/docsmith/internal/pkg/jobqueue"
	"github.com/docsmithhq/docsmith/internal/pkg/quota"
	"github.com/docsmithhq/docsmith/internal/pkg/ratelimit"
	"github.com/docsmithhq/docsmith/internal/pkg/router"
	"github.com/docsmithhq/docsmith/internal/pkg/tiergate"
)

func main() {
	app, queue := NewApplication()
	queue.Start()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))

	// Drain the workers before exiting; log.Fatal skips deferred calls.
	queue.Stop()
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *jobqueue.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()

	reconciler := billing.NewReconciler(billing.NewRepository(db))
	tracker := quota.NewTracker(quota.NewStore(db))
	queue := jobqueue.NewQueue(cache.GetClient(), jobqueue.NewUsageProcessor(db, tracker), 2)
	gate := tiergate.NewGate(tracker, queue)
	limiter := ratelimit.NewLimiterFromEnv()

	app := fiber.New(fiber.Config{
		AppName: "docsmith",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	router.InstallRoutes(app, router.Deps{
		Webhook: controllers.NewWebhookController(reconciler, env.GetEnv("BILLING_WEBHOOK_SECRET", "")),
		Billing: controllers.NewBillingController(reconciler, tracker),
		Docs:    controllers.NewDocsController(),
		Admin:   controllers.NewAdminController(db, reconciler),
		Limiter: limiter,
		Gate:    gate,
	})

	return app, queue
}
