package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Billing   BillingConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Scheduler SchedulerConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string // trace, debug, info, warn, error
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int // techo del pool; los workers del corte masivo se limitan por debajo
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BillingConfig parámetros del motor de facturación automática y de intereses de mora.
type BillingConfig struct {
	Timezone               string
	MonthlyInterestRate    decimal.Decimal // % mensual de mora (2 = 2%)
	StandardVATRate        decimal.Decimal // IVA general (19 = 19%)
	ReconnectionFee        decimal.Decimal
	ReconnectionWindowDays int
	GraceDays              int // días entre emisión y vencimiento
	SuspendMinOverdueDays  int // alguna factura vencida hace más de N días...
	SuspendWorstDays       int // ...y la peor supera M días → suspensión
	MoraCutoffDays         int // corte de servicio a partir de N días de mora
	LogRetentionDays       int
	Workers                int // 1 = secuencial
	LockTTL                time.Duration
}

// Location resuelve la zona horaria de facturación.
func (c BillingConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("zona horaria %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RedisConfig bloqueo distribuido por cliente. URL vacía = deshabilitado.
type RedisConfig struct {
	URL string
}

// RabbitMQConfig notificación de resultados de corridas. URL vacía = publisher noop.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// SchedulerConfig expresiones cron (5 campos) de los disparadores programados.
type SchedulerConfig struct {
	Enabled           bool
	MonthlyBilling    string
	InterestRecompute string
	OverduePromotion  string
	ServiceCutoff     string
	LogRetention      string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, BILLING_GRACE_DAYS, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	interestRate, err := getDecimal(v, "BILLING_MONTHLY_INTEREST_RATE", "2")
	if err != nil {
		return nil, err
	}
	vatRate, err := getDecimal(v, "BILLING_STANDARD_VAT_RATE", "19")
	if err != nil {
		return nil, err
	}
	reconnectionFee, err := getDecimal(v, "BILLING_RECONNECTION_FEE", "25000")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "isp-billing"),
			LogLevel: getString(v, "APP_LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "isp_billing"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 10),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "isp-billing"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Billing: BillingConfig{
			Timezone:               getString(v, "BILLING_TIMEZONE", "America/Bogota"),
			MonthlyInterestRate:    interestRate,
			StandardVATRate:        vatRate,
			ReconnectionFee:        reconnectionFee,
			ReconnectionWindowDays: getInt(v, "BILLING_RECONNECTION_WINDOW_DAYS", 5),
			GraceDays:              getInt(v, "BILLING_GRACE_DAYS", 15),
			SuspendMinOverdueDays:  getInt(v, "BILLING_SUSPEND_MIN_OVERDUE_DAYS", 30),
			SuspendWorstDays:       getInt(v, "BILLING_SUSPEND_WORST_DAYS", 60),
			MoraCutoffDays:         getInt(v, "BILLING_MORA_CUTOFF_DAYS", 30),
			LogRetentionDays:       getInt(v, "BILLING_LOG_RETENTION_DAYS", 90),
			Workers:                getInt(v, "BILLING_WORKERS", 1),
			LockTTL:                time.Duration(getInt(v, "BILLING_LOCK_TTL_SECONDS", 120)) * time.Second,
		},
		Redis: RedisConfig{
			URL: getString(v, "REDIS_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getString(v, "RABBITMQ_URL", ""),
			Exchange: getString(v, "RABBITMQ_EXCHANGE", "isp.billing.events"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getBool(v, "SCHEDULER_ENABLED", true),
			MonthlyBilling:    getString(v, "SCHEDULER_MONTHLY_BILLING", "0 2 1 * *"),
			InterestRecompute: getString(v, "SCHEDULER_INTEREST_RECOMPUTE", "0 1 * * *"),
			OverduePromotion:  getString(v, "SCHEDULER_OVERDUE_PROMOTION", "30 0 * * *"),
			ServiceCutoff:     getString(v, "SCHEDULER_SERVICE_CUTOFF", "0 3 * * *"),
			LogRetention:      getString(v, "SCHEDULER_LOG_RETENTION", "0 4 * * 0"),
		},
	}

	if cfg.DB.MaxConns <= 0 {
		cfg.DB.MaxConns = 10
	}
	// Un worker = una conexión; se deja al menos una libre para HTTP y el scheduler.
	if cfg.Billing.Workers >= cfg.DB.MaxConns {
		cfg.Billing.Workers = cfg.DB.MaxConns - 1
	}
	if cfg.Billing.Workers < 1 {
		cfg.Billing.Workers = 1
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}

func getDecimal(v *viper.Viper, key, def string) (decimal.Decimal, error) {
	raw := getString(v, key, def)
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config %s: valor decimal inválido %q: %w", key, raw, err)
	}
	return d, nil
}
