package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "estatenexy/controllers"
	"estatenexy/dispatcher"
	"estatenexy/manager"
	"estatenexy/middleware"
	"estatenexy/worker"
)

// SetupRoutes wires the management API. Everything under /api/v1 is
// scoped to the authenticated tenant.
func SetupRoutes(app *fiber.App, db *gorm.DB, mgr *manager.Manager, followups *worker.FollowupWorker, hub *dispatcher.Hub) {
	botController := controller.NewBotController(db, mgr, logrus.WithField("component", "bots"))
	tenantController := controller.NewTenantController(db, logrus.WithField("component", "tenant"))
	leadController := controller.NewLeadController(db, followups, logrus.WithField("component", "leads"))
	eventsController := controller.NewEventsController(hub, logrus.WithField("component", "events"))

	app.Use(middleware.CORS())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Tenant profile and alert settings
	tenant := api.Group("/tenant")
	tenant.Get("/", tenantController.GetTenant)
	tenant.Patch("/settings", tenantController.UpdateSettings)
	tenant.Put("/admin-email", tenantController.RegisterAdminEmail)
	tenant.Delete("/admin-email", tenantController.RemoveAdminEmail)

	// Bot lifecycle per channel
	bots := api.Group("/bots")
	bots.Get("/", botController.BotStatus)
	bots.Put("/:channel/credential", tenantController.UpsertCredential)
	bots.Post("/:channel/start", botController.StartBot)
	bots.Post("/:channel/stop", botController.StopBot)
	bots.Post("/:channel/restart", botController.RestartBot)

	// Lead inspection and follow-up control
	leads := api.Group("/leads")
	leads.Get("/", leadController.ListLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Patch("/:id/followup", leadController.SetFollowupEnabled)
	leads.Post("/:id/followup/trigger", leadController.TriggerFollowup)

	// Live conversation feed
	api.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/events", eventsController.StreamEvents())
}
