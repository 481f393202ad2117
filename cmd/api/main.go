package main

import (
	"log"
	"time"

	config "github.com/globalcarry/globalcarry/configs"
	"github.com/globalcarry/globalcarry/database"
	"github.com/globalcarry/globalcarry/escrow"
	"github.com/globalcarry/globalcarry/handlers"
	"github.com/globalcarry/globalcarry/jobs"
	"github.com/globalcarry/globalcarry/notifications"
	"github.com/globalcarry/globalcarry/payments"
	"github.com/globalcarry/globalcarry/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	platform := config.LoadPlatform()
	gateway := payments.NewStripeService()
	engine := escrow.NewEngine(database.DB, gateway, platform)
	handlers.Engine = engine
	jobs.Engine = engine
	jobs.AcceptTimeout = time.Duration(platform.AcceptTimeoutHours) * time.Hour

	c := cron.New()
	c.AddFunc("@hourly", jobs.ExpireUnacceptedBookings)
	go c.Start()
	log.Println("✅ Booking expiry sweep scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "GlobalCarry",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.AuthRoutes(app)
	routes.TripRoutes(app)
	routes.BookingRoutes(app)
	routes.PaymentRoutes(app)
	routes.AdminRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	err := app.Listen(":8080")
	if err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
