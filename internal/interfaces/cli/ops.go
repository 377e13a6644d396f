package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/isp-billing/internal/app"
	"github.com/jhoicas/isp-billing/internal/infrastructure/postgres"
)

func newMaintenanceCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Tareas de vencimiento, corte y retención",
	}
	type task func(ctx context.Context, c *app.Container, asOf *time.Time) (any, error)
	sub := func(use, short string, run task) *cobra.Command {
		var asOf string
		sc := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := rt.get(cmd.Context())
				if err != nil {
					return err
				}
				at, err := ParseDate(asOf, c.Location)
				if err != nil {
					return err
				}
				out, err := run(cmd.Context(), c, at)
				if err != nil {
					return err
				}
				return rt.print(out)
			},
		}
		sc.Flags().StringVar(&asOf, "as-of", "", "fecha YYYY-MM-DD (por defecto hoy)")
		return sc
	}
	cmd.AddCommand(
		sub("overdue", "Promueve facturas vencidas a overdue", func(ctx context.Context, c *app.Container, at *time.Time) (any, error) {
			return c.Billing.PromoteOverdue(ctx, at)
		}),
		sub("cutoff", "Corta servicios de clientes en mora", func(ctx context.Context, c *app.Container, at *time.Time) (any, error) {
			return c.Billing.CutoffServices(ctx, at)
		}),
		sub("purge-logs", "Borra la bitácora más antigua que la retención", func(ctx context.Context, c *app.Container, at *time.Time) (any, error) {
			return c.Billing.PurgeRunLogs(ctx, at)
		}),
	)
	return cmd
}

func newScheduleCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Tareas programadas",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "Tareas registradas y su próximo disparo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			return rt.print(c.Scheduler.Jobs())
		},
	}
	run := &cobra.Command{
		Use:   "run <job>",
		Short: "Ejecuta una tarea programada de inmediato",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			return c.Scheduler.RunNow(cmd.Context(), args[0])
		},
	}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Corre el scheduler en primer plano hasta SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.Scheduler.Run(ctx)
		},
	}
	cmd.AddCommand(list, run, serve)
	return cmd
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el esquema embebido (idempotente)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			files, err := postgres.Migrate(cmd.Context(), c.DB)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(rt.out, "aplicada:", f)
			}
			return nil
		},
	}
}
