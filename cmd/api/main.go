package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/isp-billing/internal/app"
	httpRouter "github.com/jhoicas/isp-billing/internal/interfaces/http"
	"github.com/jhoicas/isp-billing/pkg/config"
	"github.com/jhoicas/isp-billing/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer c.Close()

	fiberApp := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Minute * 5, // una corrida manual puede tardar
		IdleTimeout:  time.Second * 60,
	})
	fiberApp.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	fiberApp.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "ISP Billing API",
	}))

	httpRouter.Router(fiberApp, httpRouter.RouterDeps{
		Billing:   c.Billing,
		Auth:      c.Auth,
		Scheduler: c.Scheduler,
		Location:  c.Location,
		JWTSecret: cfg.JWT.Secret,
		Logger:    log.Component("http"),
	})

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if !cfg.Scheduler.Enabled {
			log.Info().Msg("scheduler deshabilitado (SCHEDULER_ENABLED=false)")
			return
		}
		_ = c.Scheduler.Run(ctx)
	}()

	go func() {
		if err := fiberApp.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	<-schedDone

	log.Info().Msg("aplicación detenida")
}
