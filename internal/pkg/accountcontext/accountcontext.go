package accountcontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/docsmithhq/docsmith/app/models"
)

// Shared Locals keys used across controllers and middlewares
const (
	KeyAccountContext = "ACCOUNT_CONTEXT"
	KeyAccountModel   = "ACCOUNT_MODEL"
)

// AccountContext represents the authenticated caller for a request
type AccountContext struct {
	AccountID       uint   `json:"account_id"`
	Name            string `json:"name"`
	Tier            string `json:"tier"`
	IsAdmin         bool   `json:"is_admin"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// GetAccountContext retrieves the account context from fiber context.
// Returns a default anonymous context if none is set.
func GetAccountContext(c *fiber.Ctx) AccountContext {
	if ctx := c.Locals(KeyAccountContext); ctx != nil {
		return ctx.(AccountContext)
	}
	return AccountContext{IsAuthenticated: false}
}

// SetAccount stores both the request context and the loaded account model.
func SetAccount(c *fiber.Ctx, account *models.Account) {
	c.Locals(KeyAccountContext, AccountContext{
		AccountID:       account.ID,
		Name:            account.Name,
		Tier:            account.Tier,
		IsAdmin:         account.Role == models.ROLE_ADMIN,
		IsAuthenticated: true,
	})
	c.Locals(KeyAccountModel, account)
}

// GetAccount returns the full account model loaded by the auth middleware,
// or nil for anonymous requests.
func GetAccount(c *fiber.Ctx) *models.Account {
	if v := c.Locals(KeyAccountModel); v != nil {
		return v.(*models.Account)
	}
	return nil
}

// IsAdmin checks if the current caller is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetAccountContext(c).IsAdmin
}
