package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/causekit/causekit/app/controllers"
	"github.com/causekit/causekit/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes, all API-key authenticated
	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())

	donations := v1.Group("/donations")
	donations.Post("/", controllers.HandleCreateDonation)
	donations.Patch("/:id/status", controllers.HandleUpdateDonationStatus)

	endpoints := v1.Group("/webhook-endpoints")
	endpoints.Post("/", controllers.HandleCreateWebhookEndpoint)
	endpoints.Get("/", controllers.HandleListWebhookEndpoints)
	endpoints.Get("/:id", controllers.HandleGetWebhookEndpoint)
	endpoints.Put("/:id", controllers.HandleUpdateWebhookEndpoint)
	endpoints.Delete("/:id", controllers.HandleDeleteWebhookEndpoint)
	endpoints.Post("/:id/regenerate-secret", controllers.HandleRegenerateWebhookSecret)
	endpoints.Get("/:id/deliveries", controllers.HandleListWebhookDeliveries)
	endpoints.Post("/:id/test", controllers.HandleTestWebhookEndpoint)

	reconciliations := v1.Group("/reconciliations")
	reconciliations.Post("/", controllers.HandleCreateReconciliation)
	reconciliations.Get("/", controllers.HandleListReconciliations)
	reconciliations.Post("/manual-match", controllers.HandleManualMatch)
	reconciliations.Get("/:id", controllers.HandleGetReconciliation)
	reconciliations.Get("/:id/items", controllers.HandleListReconciliationItems)
	reconciliations.Get("/:id/discrepancies", controllers.HandleListReconciliationDiscrepancies)

	v1.Post("/discrepancies/:id/resolve", controllers.HandleResolveDiscrepancy)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
