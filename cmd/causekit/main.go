package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/causekit/causekit/app/controllers"
	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/cache"
	"github.com/causekit/causekit/internal/pkg/database"
	"github.com/causekit/causekit/internal/pkg/env"
	"github.com/causekit/causekit/internal/pkg/jobqueue"
	"github.com/causekit/causekit/internal/pkg/router"
)

func main() {
	app := NewApplication()
	defer jobqueue.GetManager().Stop()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Resolve the project root so the OpenAPI file is found when running
	// from cmd/causekit.
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/causekit to project root
		"../../../", // Fallback
	}
	basePath := "./"
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // 1 MiB, JSON API only
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	router.InstallRouter(app)

	manager := jobqueue.GetManager()
	manager.GetQueue().SetRetrySweeper(controllers.WebhookDispatcher())
	manager.GetQueue().SetReconciliationRunner(controllers.ReconcileService())
	manager.Start()

	return app
}
