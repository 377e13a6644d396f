package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/jhoicas/isp-billing/internal/app"
	"github.com/jhoicas/isp-billing/internal/interfaces/cli"
	"github.com/jhoicas/isp-billing/pkg/config"
	"github.com/jhoicas/isp-billing/pkg/logger"
)

func main() {
	// .env opcional; las variables ya definidas en el entorno tienen prioridad.
	_ = godotenv.Load()

	build := func(ctx context.Context) (*app.Container, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("cargar configuración: %w", err)
		}
		log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})
		return app.New(ctx, cfg, log)
	}

	if err := cli.Execute(context.Background(), build); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
