package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	VNPay        VNPayConfig
	Pricing      PricingConfig
	Returns      ReturnsConfig
	Cancellation CancellationConfig
	Cron         CronConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// AutoMigrate runs goose up at boot in dev environments only.
	AutoMigrate bool `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// VNPayConfig carries the shared-secret gateway settings. SkipSignatureCheck
// is honored outside production only.
type VNPayConfig struct {
	TmnCode            string        `envconfig:"STOREFRONT_VNPAY_TMN_CODE" required:"true"`
	HashSecret         string        `envconfig:"STOREFRONT_VNPAY_HASH_SECRET" required:"true"`
	PayURL             string        `envconfig:"STOREFRONT_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL          string        `envconfig:"STOREFRONT_VNPAY_RETURN_URL" required:"true"`
	CallTimeout        time.Duration `envconfig:"STOREFRONT_VNPAY_CALL_TIMEOUT" default:"30s"`
	SkipSignatureCheck bool          `envconfig:"STOREFRONT_VNPAY_SKIP_SIGNATURE_CHECK" default:"false"`
	ReplayGuardTTL     time.Duration `envconfig:"STOREFRONT_VNPAY_REPLAY_GUARD_TTL" default:"720h"`
}

type PricingConfig struct {
	DefaultTargetProfitPercent float64 `envconfig:"STOREFRONT_PRICING_TARGET_PROFIT_PERCENT" default:"30"`
}

type ReturnsConfig struct {
	ExpiryWindow    time.Duration `envconfig:"STOREFRONT_RETURNS_EXPIRY_WINDOW" default:"168h"`
	ShippingFee     int64         `envconfig:"STOREFRONT_RETURNS_SHIPPING_FEE" default:"30000"`
	MinImages       int           `envconfig:"STOREFRONT_RETURNS_MIN_IMAGES" default:"1"`
	MaxImages       int           `envconfig:"STOREFRONT_RETURNS_MAX_IMAGES" default:"5"`
	HistoryCapacity int           `envconfig:"STOREFRONT_RETURNS_HISTORY_CAP" default:"50"`
}

type CancellationConfig struct {
	AutoApprovePending bool `envconfig:"STOREFRONT_CANCEL_AUTO_APPROVE_PENDING" default:"true"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"55m"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOREFRONT_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"STOREFRONT_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionAfter time.Duration `envconfig:"STOREFRONT_OUTBOX_RETENTION_AFTER" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		"STOREFRONT_DB_HOST": db.Host,
		"STOREFRONT_DB_USER": db.User,
		"STOREFRONT_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either STOREFRONT_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
