package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SKYDESK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv            = "SKYDESK_APP_ENV"
	EnvDataDir           = "SKYDESK_DATA_DIR"
	EnvDBPath            = "SKYDESK_DB_PATH"
	EnvOutboxBatchSize   = "SKYDESK_OUTBOX_BATCH_SIZE"
	EnvOutboxSweepEvery  = "SKYDESK_OUTBOX_SWEEP_INTERVAL"
	EnvUnreadPollEvery   = "SKYDESK_SCHEDULER_UNREAD_POLL_INTERVAL"
	EnvGatewayServiceURL = "SKYDESK_GATEWAY_SERVICE_URL"
	EnvSessionPassphrase = "SKYDESK_SESSION_PASSPHRASE"
	EnvRedisURL          = "SKYDESK_REDIS_URL"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Outbox    OutboxConfig
	Scheduler SchedulerConfig
	Gateway   GatewayConfig
	Session   SessionConfig
	API       APIConfig
	Redis     RedisConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	cfg.DB.resolvePath(cfg.App.DataDir)
	cfg.Session.resolvePath(cfg.App.DataDir)
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SKYDESK_APP_ENV" default:"prod"`
	DataDir      string `envconfig:"SKYDESK_DATA_DIR" default:"."`
	LogLevel     string `envconfig:"SKYDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SKYDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SKYDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Path        string        `envconfig:"SKYDESK_DB_PATH" default:"skydesk.db"`
	BusyTimeout time.Duration `envconfig:"SKYDESK_DB_BUSY_TIMEOUT" default:"5s"`
	SlowQuery   time.Duration `envconfig:"SKYDESK_DB_SLOW_QUERY" default:"250ms"`

	MaxOpenConns    int           `envconfig:"SKYDESK_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"SKYDESK_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"SKYDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
}

// DSN builds the sqlite connection string with WAL journaling and a busy timeout.
func (db DBConfig) DSN() string {
	timeout := db.BusyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on", db.Path, timeout.Milliseconds())
}

func (db *DBConfig) resolvePath(dataDir string) {
	if db.Path == "" || filepath.IsAbs(db.Path) || dataDir == "" {
		return
	}
	db.Path = filepath.Join(dataDir, db.Path)
}

type OutboxConfig struct {
	BatchSize     int           `envconfig:"SKYDESK_OUTBOX_BATCH_SIZE" default:"10"`
	MaxAttempts   int           `envconfig:"SKYDESK_OUTBOX_MAX_ATTEMPTS" default:"8"`
	BaseDelay     time.Duration `envconfig:"SKYDESK_OUTBOX_BASE_DELAY" default:"15s"`
	MaxDelay      time.Duration `envconfig:"SKYDESK_OUTBOX_MAX_DELAY" default:"30m"`
	SweepInterval time.Duration `envconfig:"SKYDESK_OUTBOX_SWEEP_INTERVAL" default:"20s"`
}

func (o OutboxConfig) validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvOutboxBatchSize)
	}
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("SKYDESK_OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if o.SweepInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvOutboxSweepEvery)
	}
	return nil
}

type SchedulerConfig struct {
	UnreadPollInterval time.Duration `envconfig:"SKYDESK_SCHEDULER_UNREAD_POLL_INTERVAL" default:"180s"`
}

type GatewayConfig struct {
	ServiceURL string        `envconfig:"SKYDESK_GATEWAY_SERVICE_URL" default:"https://bsky.social"`
	Timeout    time.Duration `envconfig:"SKYDESK_GATEWAY_TIMEOUT" default:"30s"`
	UserAgent  string        `envconfig:"SKYDESK_GATEWAY_USER_AGENT" default:"skydesk/1.0"`
}

type SessionConfig struct {
	VaultFile  string `envconfig:"SKYDESK_SESSION_VAULT_FILE" default:"session.sealed"`
	Passphrase string `envconfig:"SKYDESK_SESSION_PASSPHRASE"`

	ArgonMemoryKB    int `envconfig:"SKYDESK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SKYDESK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SKYDESK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SKYDESK_ARGON_SALT_LEN" default:"16"`
}

// Persistent reports whether sessions should be sealed to disk.
func (s SessionConfig) Persistent() bool {
	return strings.TrimSpace(s.Passphrase) != ""
}

func (s *SessionConfig) resolvePath(dataDir string) {
	if s.VaultFile == "" || filepath.IsAbs(s.VaultFile) || dataDir == "" {
		return
	}
	s.VaultFile = filepath.Join(dataDir, s.VaultFile)
}

type APIConfig struct {
	Addr            string        `envconfig:"SKYDESK_API_ADDR" default:"127.0.0.1:8787"`
	ShutdownTimeout time.Duration `envconfig:"SKYDESK_API_SHUTDOWN_TIMEOUT" default:"10s"`
}

// RedisConfig is optional; an empty URL and address leaves redis disabled.
type RedisConfig struct {
	URL          string        `envconfig:"SKYDESK_REDIS_URL"`
	Address      string        `envconfig:"SKYDESK_REDIS_ADDR"`
	Password     string        `envconfig:"SKYDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SKYDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SKYDESK_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"SKYDESK_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"SKYDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SKYDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SKYDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
	EventChannel string        `envconfig:"SKYDESK_REDIS_EVENT_CHANNEL" default:"desktop"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}
