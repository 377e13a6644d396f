// Package app arma las dependencias del motor a partir de la configuración.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/isp-billing/internal/application/auth"
	"github.com/jhoicas/isp-billing/internal/application/billing"
	"github.com/jhoicas/isp-billing/internal/infrastructure/eventbus"
	"github.com/jhoicas/isp-billing/internal/infrastructure/postgres"
	"github.com/jhoicas/isp-billing/internal/infrastructure/redislock"
	"github.com/jhoicas/isp-billing/internal/infrastructure/scheduler"
	"github.com/jhoicas/isp-billing/pkg/config"
	"github.com/jhoicas/isp-billing/pkg/logger"
)

// Nombres de las tareas programadas (también usados por `billingctl schedule run`).
const (
	JobMonthlyBilling    = "facturacion_mensual"
	JobInterestRecompute = "recalculo_intereses"
	JobOverduePromotion  = "vencimiento_facturas"
	JobServiceCutoff     = "corte_servicios"
	JobLogRetention      = "retencion_bitacora"
)

// Container dependencias compartidas por la API y el CLI.
type Container struct {
	Config   *config.Config
	Logger   *logger.Logger
	Location *time.Location

	DB          *pgxpool.Pool
	RedisClient *redis.Client // nil = sin bloqueo distribuido
	Publisher   *eventbus.Publisher
	Billing     *billing.Service
	Auth        *auth.AuthUseCase
	Scheduler   *scheduler.Scheduler
}

// SettingsFromConfig traduce la configuración a los parámetros del motor.
func SettingsFromConfig(cfg config.BillingConfig) (billing.Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return billing.Settings{}, err
	}
	s := billing.Settings{
		Location:               loc,
		MonthlyInterestRate:    cfg.MonthlyInterestRate,
		StandardVATRate:        cfg.StandardVATRate,
		ReconnectionFee:        cfg.ReconnectionFee,
		ReconnectionWindowDays: cfg.ReconnectionWindowDays,
		GraceDays:              cfg.GraceDays,
		SuspendMinOverdueDays:  cfg.SuspendMinOverdueDays,
		SuspendWorstDays:       cfg.SuspendWorstDays,
		MoraCutoffDays:         cfg.MoraCutoffDays,
		LogRetentionDays:       cfg.LogRetentionDays,
		Workers:                cfg.Workers,
		LockTTL:                cfg.LockTTL,
	}
	if s.MonthlyInterestRate.IsNegative() || s.StandardVATRate.IsNegative() || s.ReconnectionFee.IsNegative() {
		return billing.Settings{}, fmt.Errorf("config: tasas y tarifas no pueden ser negativas")
	}
	if s.GraceDays < 0 || s.MoraCutoffDays <= 0 || s.LogRetentionDays <= 0 {
		return billing.Settings{}, fmt.Errorf("config: días de gracia, corte y retención inválidos")
	}
	return s, nil
}

// New conecta PostgreSQL (obligatorio), Redis y RabbitMQ (opcionales) y construye el servicio.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	settings, err := SettingsFromConfig(cfg.Billing)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: log, Location: settings.Location}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	c.DB = pool

	deps := billing.Dependencies{
		Repos:    postgres.Repositories(pool),
		Tx:       postgres.NewTxRunner(pool),
		Settings: settings,
		Logger:   log.Component("facturacion"),
	}

	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("REDIS_URL inválido: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			c.Close()
			return nil, fmt.Errorf("conexión a Redis: %w", err)
		}
		c.RedisClient = client
		deps.Locker = redislock.New(client, "", log.Component("redislock"))
		log.Info().Msg("bloqueo por cliente en Redis habilitado")
	} else if settings.Workers > 1 {
		log.Warn().Int("workers", settings.Workers).
			Msg("modo concurrente sin Redis: solo el índice único evita facturas duplicadas entre réplicas")
	}

	var broker eventbus.Broker
	if cfg.RabbitMQ.URL != "" {
		b, err := eventbus.NewRabbitMQBroker(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log.Component("eventbus"))
		if err != nil {
			// Las notificaciones son best-effort; el motor sigue sin ellas.
			log.Warn().Err(err).Msg("RabbitMQ no disponible, se usa publisher noop")
			broker = eventbus.NewNoopBroker(log.Component("eventbus"))
		} else {
			broker = b
		}
	} else {
		broker = eventbus.NewNoopBroker(log.Component("eventbus"))
	}
	c.Publisher = eventbus.NewPublisher(broker, eventbus.DefaultBreakerConfig(), log.Component("eventbus"))
	deps.Publisher = c.Publisher

	c.Billing = billing.NewService(deps)
	c.Auth = auth.NewAuthUseCase(postgres.NewOperatorRepository(pool), auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	sched, err := scheduler.New(log.Component("scheduler"), settings.Location, Jobs(c.Billing, cfg.Scheduler)...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Scheduler = sched
	return c, nil
}

// Jobs tareas programadas del motor con las expresiones configuradas.
func Jobs(svc *billing.Service, cfg config.SchedulerConfig) []scheduler.Job {
	return []scheduler.Job{
		{Name: JobMonthlyBilling, Spec: cfg.MonthlyBilling, Handler: func(ctx context.Context) error {
			_, err := svc.GenerateMonthlyBilling(ctx, billing.RunParams{Mode: billing.RunModeMonthly})
			return err
		}},
		{Name: JobInterestRecompute, Spec: cfg.InterestRecompute, Handler: func(ctx context.Context) error {
			_, err := svc.RecomputeMoratoryInterest(ctx, nil, nil)
			return err
		}},
		{Name: JobOverduePromotion, Spec: cfg.OverduePromotion, Handler: func(ctx context.Context) error {
			_, err := svc.PromoteOverdue(ctx, nil)
			return err
		}},
		{Name: JobServiceCutoff, Spec: cfg.ServiceCutoff, Handler: func(ctx context.Context) error {
			_, err := svc.CutoffServices(ctx, nil)
			return err
		}},
		{Name: JobLogRetention, Spec: cfg.LogRetention, Handler: func(ctx context.Context) error {
			_, err := svc.PurgeRunLogs(ctx, nil)
			return err
		}},
	}
}

// Close libera conexiones en orden inverso.
func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn().Err(err).Msg("error cerrando RabbitMQ")
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn().Err(err).Msg("error cerrando Redis")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
