package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/docsmithhq/docsmith/internal/pkg/accountcontext"
	"github.com/docsmithhq/docsmith/internal/pkg/entitlements"
)

// DocsController fronts the documentation-generation pipeline. Generation
// itself runs elsewhere; this endpoint is the quota-limited entry point the
// tier gate protects.
type DocsController struct{}

// NewDocsController creates the controller.
func NewDocsController() *DocsController {
	return &DocsController{}
}

type generateRequest struct {
	RepositoryURL string `json:"repository_url"`
	Format        string `json:"format"`
	Private       bool   `json:"private"`
}

// HandleGenerateDocs accepts a generation request and hands it to the
// pipeline. Runs behind the rate limiter and the tier gate; reaching this
// handler means the operation was admitted.
func (dc *DocsController) HandleGenerateDocs(c *fiber.Ctx) error {
	account := accountcontext.GetAccount(c)
	if account == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if strings.TrimSpace(req.RepositoryURL) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "repository_url_required"})
	}

	if req.Private && !entitlements.ProfileFor(account.Tier).PrivateDocs {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "plan_required", "feature": "private_docs"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     uuid.New().String(),
		"status": "queued",
	})
}
