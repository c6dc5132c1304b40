package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware authenticates requests carrying a user API key header.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetUserRepository()
		user, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if user.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		// Refresh last-used timestamp best-effort.
		if err := repo.TouchAPIKeyUsage(user.ID, time.Now()); err != nil {
			log.Printf("failed to update api key usage timestamp for user %d: %v", user.ID, err)
		}

		userCtx := usercontext.UserContext{
			UserID:     user.ID,
			Username:   user.Name,
			IsLoggedIn: true,
			IsAdmin:    user.Role == models.ROLE_ADMIN,
		}
		c.Locals("USER_CONTEXT", userCtx)

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
