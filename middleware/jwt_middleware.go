package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"estatenexy/config"
	"estatenexy/models"
	"estatenexy/utils"
)

// Protected authenticates the management API. Tokens are issued by the
// agency portal; this service only verifies them and loads the tenant.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Try to get token from Authorization header first
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization format",
				})
			}
			token = tokenParts[1]
		} else {
			// Fall back to cookie if header not present
			token = c.Cookies("access_token")
			if token == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Authorization required",
				})
			}
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		var tenant models.Tenant
		if err := config.DB.First(&tenant, claims.TenantID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Tenant not found",
			})
		}

		if !tenant.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Tenant account is not active",
			})
		}

		c.Locals("tenant", &tenant)
		c.Locals("tenantID", tenant.ID)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// RequireRole gates an endpoint to a specific portal role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if r, _ := c.Locals("role").(string); r != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}
		return c.Next()
	}
}
