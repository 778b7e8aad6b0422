package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	Device  DeviceConfig
	DB      DBConfig
	Redis   RedisConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Remote  RemoteConfig
	Sync    SyncConfig
	Search  SearchConfig
	Catalog CatalogConfig
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
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" default:"8085"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"POS_LOG_FORMAT" default:"json"`
	AutoMigrate  bool   `envconfig:"POS_AUTO_MIGRATE" default:"true"`

	CORSOrigins []string `envconfig:"POS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POS_SERVICE_KIND" default:"terminal"`
}

// DeviceConfig identifies the register this daemon drives.
type DeviceConfig struct {
	ID     string `envconfig:"POS_DEVICE_ID" required:"true"`
	Secret string `envconfig:"POS_DEVICE_SECRET" required:"true"`
}

type DBConfig struct {
	DSN    string `envconfig:"POS_DB_DSN"`
	Driver string `envconfig:"POS_DB_DRIVER" default:"sqlite"`

	SQLitePath string `envconfig:"POS_DB_SQLITE_PATH" default:"terminal.db"`

	Host     string `envconfig:"POS_DB_HOST"`
	Port     int    `envconfig:"POS_DB_PORT" default:"5432"`
	User     string `envconfig:"POS_DB_USER"`
	Password string `envconfig:"POS_DB_PASSWORD"`
	Name     string `envconfig:"POS_DB_NAME"`
	SSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local store runs on the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type GCPConfig struct {
	ProjectID string `envconfig:"POS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	CatalogSubscription string `envconfig:"POS_PUBSUB_CATALOG_SUBSCRIPTION"`
}

// Enabled reports whether the catalog push channel is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.CatalogSubscription) != ""
}

type RemoteConfig struct {
	BaseURL        string        `envconfig:"POS_REMOTE_BASE_URL" required:"true"`
	Timeout        time.Duration `envconfig:"POS_REMOTE_TIMEOUT" default:"10s"`
	TokenIssuer    string        `envconfig:"POS_REMOTE_TOKEN_ISSUER" default:"pos-terminal"`
	TokenTTL       time.Duration `envconfig:"POS_REMOTE_TOKEN_TTL" default:"5m"`
	PingInterval   time.Duration `envconfig:"POS_REMOTE_PING_INTERVAL" default:"15s"`
	SubmitTimeout  time.Duration `envconfig:"POS_REMOTE_SUBMIT_TIMEOUT" default:"15s"`
	CatalogTimeout time.Duration `envconfig:"POS_REMOTE_CATALOG_TIMEOUT" default:"30s"`
}

type SyncConfig struct {
	BackoffBase    time.Duration `envconfig:"POS_SYNC_BACKOFF_BASE" default:"2s"`
	BackoffMax     time.Duration `envconfig:"POS_SYNC_BACKOFF_MAX" default:"5m"`
	PeriodicEvery  time.Duration `envconfig:"POS_SYNC_PERIODIC_INTERVAL" default:"1m"`
	LockTTL        time.Duration `envconfig:"POS_SYNC_LOCK_TTL" default:"10m"`
	IdempotencyTTL time.Duration `envconfig:"POS_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

type SearchConfig struct {
	Debounce time.Duration `envconfig:"POS_SEARCH_DEBOUNCE" default:"300ms"`
	Limit    int           `envconfig:"POS_SEARCH_LIMIT" default:"20"`
}

type CatalogConfig struct {
	RefreshEvery   time.Duration `envconfig:"POS_CATALOG_REFRESH_INTERVAL" default:"30m"`
	PersistDelay   time.Duration `envconfig:"POS_CATALOG_PERSIST_DELAY" default:"2s"`
	EventBufferLen int           `envconfig:"POS_CATALOG_EVENT_BUFFER" default:"256"`
}

func (db *DBConfig) ensureDSN() error {
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		if db.DSN == "" {
			return fmt.Errorf("%s is required for the sqlite driver", EnvDBSQLitePath)
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range postgresDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
