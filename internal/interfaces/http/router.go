package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/isp-billing/internal/infrastructure/scheduler"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Billing   billingService
	Auth      loginService         // opcional; sin él no se expone /auth/login
	Scheduler *scheduler.Scheduler // opcional; expone el estado de las tareas
	Location  *time.Location
	JWTSecret string
	Logger    zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if deps.Auth != nil {
		api.Post("/auth/login", NewAuthHandler(deps.Auth).Login)
	}

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/billing", AuthMiddleware(deps.JWTSecret))
	readers := RequireRole(RoleAdmin, RoleFacturacion, RoleSoporte)
	writers := RequireRole(RoleAdmin, RoleFacturacion)
	admins := RequireRole(RoleAdmin)

	h := NewBillingHandler(deps.Billing, deps.Location, deps.Logger)

	protected.Post("/runs", writers, h.RunBilling)

	customers := protected.Group("/customers")
	customers.Post("/:id/invoices", writers, h.GenerateInvoice)
	customers.Get("/:id/preview", readers, h.Preview)
	customers.Get("/:id/period", readers, h.Period)
	customers.Get("/:id/eligibility", readers, h.Eligibility)
	customers.Get("/:id/pending-interest", readers, h.PendingInterest)

	protected.Post("/interest/recompute", writers, h.RecomputeInterest)

	maintenance := protected.Group("/maintenance", admins)
	maintenance.Post("/overdue", h.PromoteOverdue)
	maintenance.Post("/cutoff", h.CutoffServices)
	maintenance.Post("/log-retention", h.PurgeRunLogs)

	if deps.Scheduler != nil {
		protected.Get("/jobs", readers, func(c *fiber.Ctx) error {
			return c.JSON(deps.Scheduler.Jobs())
		})
	}
}
