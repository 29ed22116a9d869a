package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Mail          MailConfig
	Cron          CronConfig
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
	Env          string `envconfig:"FORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"FORGE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FORGE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"FORGE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if o := strings.TrimSpace(origin); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

type DBConfig struct {
	DSN string `envconfig:"FORGE_DB_DSN"`

	LegacyHost     string `envconfig:"FORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"FORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FORGE_DB_USER"`
	LegacyPassword string `envconfig:"FORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FORGE_REDIS_URL"`
	Address      string        `envconfig:"FORGE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"FORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FORGE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FORGE_JWT_ISSUER" default:"innocap-forge"`
	ExpirationMinutes      int    `envconfig:"FORGE_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"FORGE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FORGE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FORGE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FORGE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FORGE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FORGE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FORGE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FORGE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FORGE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FORGE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FORGE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FORGE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FORGE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"FORGE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL     time.Duration `envconfig:"FORGE_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FORGE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FORGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FORGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"FORGE_PUBSUB_DOMAIN_TOPIC" default:"forge-domain-events"`
	NotificationSubscription string `envconfig:"FORGE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"forge-notification-worker"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FORGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FORGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FORGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// MailConfig holds SMTP settings. Email delivery is disabled when Host is empty.
type MailConfig struct {
	Host     string `envconfig:"FORGE_MAIL_HOST"`
	Port     int    `envconfig:"FORGE_MAIL_PORT" default:"587"`
	Username string `envconfig:"FORGE_MAIL_USERNAME"`
	Password string `envconfig:"FORGE_MAIL_PASSWORD"`
	From     string `envconfig:"FORGE_MAIL_FROM" default:"InnoCap Forge <no-reply@innocapforge.io>"`
	StartTLS bool   `envconfig:"FORGE_MAIL_STARTTLS" default:"true"`
}

func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"FORGE_CRON_INTERVAL" default:"5m"`
	LockTTL               time.Duration `envconfig:"FORGE_CRON_LOCK_TTL" default:"4m"`
	RuleEvaluation        bool          `envconfig:"FORGE_CRON_RULE_EVALUATION" default:"true"`
	NotificationRetention time.Duration `envconfig:"FORGE_CRON_NOTIFICATION_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	values := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		user = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}
	db.DSN = u.String()
	return nil
}
