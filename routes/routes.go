package routes

import (
	"github.com/gofiber/fiber/v2"

	"rfitrack-backend/controllers"
	"rfitrack-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Client-facing endpoints: no login, the secure-link token is the
	// whole credential.
	api.Get("/client/rfi/:token", controllers.GetClientRFI)
	api.Post("/client/rfi/:token/response", controllers.SubmitClientResponse)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard for internal mutations (link generation in particular)
	protected.Use(middlewares.Idempotency())

	// Projects
	protected.Post("/project", controllers.CreateProject)
	protected.Get("/projects", controllers.GetProjects)
	protected.Get("/project/:id", controllers.GetProject)
	protected.Put("/project/:id", controllers.UpdateProject)

	// RFIs (draft CRUD)
	protected.Post("/rfi", controllers.CreateRFI)
	protected.Get("/rfis", controllers.GetRFIs)
	protected.Get("/rfi/:id", controllers.GetRFI)
	protected.Patch("/rfi/:id", controllers.UpdateRFI)

	// RFI secure links
	protected.Post("/rfi/:id/link", controllers.GenerateRFILink)
	protected.Put("/rfi/:id/link", controllers.RegenerateRFILink)
	protected.Delete("/rfi/:id/link", controllers.RevokeRFILink)

	// RFI workflow
	protected.Put("/rfi/:id/status", controllers.TransitionRFI)
	protected.Get("/rfi/:id/transitions", controllers.GetRFITransitions)

	// Notification inbox
	protected.Get("/notifications", controllers.GetNotifications)
	protected.Put("/notifications/:id/read", controllers.MarkNotificationRead)
}
