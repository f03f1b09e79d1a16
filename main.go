package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"rfitrack-backend/controllers"
	"rfitrack-backend/database"
	"rfitrack-backend/middlewares"
	"rfitrack-backend/notify"
	"rfitrack-backend/routes"
	"rfitrack-backend/sweeper"
	"rfitrack-backend/utils"
	"rfitrack-backend/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// envInt reads a non-negative int env var with a default fallback.
func envInt(key string, def int) int {
	return utils.ParseIntDefault(os.Getenv(key), def)
}

func main() {
	// ---- Database
	database.Connect()
	database.AutoMigrate()
	if err := database.Migrate(); err != nil {
		panic(err)
	}

	// ---- Workflow wiring
	baseURL := os.Getenv("APP_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	controllers.Setup(database.DB, baseURL)

	// ---- Overdue sweeper (background)
	machine := workflow.NewMachine(database.DB, notify.NewDBNotifier(database.DB))
	sw := sweeper.New(database.DB, machine, envInt("RFI_GRACE_DAYS", 30))
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go sw.Run(sweepCtx, time.Duration(envInt("SWEEP_INTERVAL_MINUTES", 60))*time.Minute)

	// ---- Limits (configurable via env)
	// Fiber default BodyLimit is 4 * 1024 * 1024 bytes if unset (per docs).
	// We allow overriding with BODY_LIMIT_BYTES or BODY_LIMIT_MB.
	bodyLimitBytes := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env).
	// Keeps token guessing against /client/rfi/:token expensive.
	rlMax := envInt("RATE_LIMIT_MAX", 60)                                            // default 60 reqs
	rlWindow := time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second // default 60s window
	app.Use(limiter.New(limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
		// Default KeyGenerator = client IP; default 429 handler is fine.
	}))

	// ---- Routes
	routes.Register(app)

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := app.Listen(":" + port); err != nil {
		panic(err)
	}
	fmt.Println("API server started on port", port)
}
