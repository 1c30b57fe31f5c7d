package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Notifier    NotifierConfig
	AWS         AWSConfig
	Outbox      OutboxConfig
	Security    SecurityConfig
	Time        TimeConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CacheConfig struct {
	Timeout       time.Duration
	SettingsTTL   time.Duration
	AuditTTL      time.Duration
	LocalCapacity uint64
}

type RateLimitConfig struct {
	OTPPerHour        int
	AuditPerHour      int
	AuditStatsPerHour int
}

type NotifierConfig struct {
	// Sinks lists enabled delivery targets: redis, kafka, sns.
	Sinks        []string
	Timeout      time.Duration
	KafkaBrokers []string
	KafkaTopic   string
	SNSTopicARN  string
}

type AWSConfig struct {
	Region   string
	Endpoint string
}

type OutboxConfig struct {
	Path           string
	SyncInterval   time.Duration
	BatchSize      int
	MaxRetry       int
	RetentionHours int
}

type SecurityConfig struct {
	EncryptionKey  []byte
	OTPTTL         time.Duration
	OTPMaxAttempts int
	SendGridAPIKey string
	MailFrom       string
	SMSEnabled     bool
	SMSSenderID    string
}

type TimeConfig struct {
	NTPServers []string
	NTPTimeout time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	key, err := parseKey(os.Getenv("ENCRYPTION_MASTER_KEY"))
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_MASTER_KEY: %w", err)
	}

	cfg := &Config{
		AppName:     getString("APP_NAME", "schoolerp-settings"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Storage: StorageConfig{
			Driver: getString("STORAGE_DRIVER", "postgres"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "schoolerp"),
			User:            getString("DB_USER", "schoolerp"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", true),
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "schoolerp"),
		},
		Cache: CacheConfig{
			Timeout:       getDuration("CACHE_TIMEOUT", 250*time.Millisecond),
			SettingsTTL:   getDuration("CACHE_SETTINGS_TTL", 300*time.Second),
			AuditTTL:      getDuration("CACHE_AUDIT_TTL", 300*time.Second),
			LocalCapacity: uint64(getInt("CACHE_LOCAL_CAPACITY", 10_000)),
		},
		RateLimit: RateLimitConfig{
			OTPPerHour:        getInt("RATE_LIMIT_OTP_PER_HOUR", 3),
			AuditPerHour:      getInt("RATE_LIMIT_AUDIT_PER_HOUR", 100),
			AuditStatsPerHour: getInt("RATE_LIMIT_AUDIT_STATS_PER_HOUR", 50),
		},
		Notifier: NotifierConfig{
			Sinks:        getList("NOTIFIER_SINKS", []string{"redis"}),
			Timeout:      getDuration("NOTIFIER_TIMEOUT", 2*time.Second),
			KafkaBrokers: getList("KAFKA_BROKERS", nil),
			KafkaTopic:   getString("KAFKA_TOPIC", "settings-changes"),
			SNSTopicARN:  os.Getenv("SNS_TOPIC_ARN"),
		},
		AWS: AWSConfig{
			Region:   getString("AWS_REGION", "us-east-1"),
			Endpoint: os.Getenv("AWS_ENDPOINT_URL"),
		},
		Outbox: OutboxConfig{
			Path:           getString("OUTBOX_PATH", "./data/outbox.db"),
			SyncInterval:   getDuration("OUTBOX_SYNC_INTERVAL", 30*time.Second),
			BatchSize:      getInt("OUTBOX_BATCH_SIZE", 50),
			MaxRetry:       getInt("OUTBOX_MAX_RETRIES", 5),
			RetentionHours: getInt("OUTBOX_RETENTION_HOURS", 24),
		},
		Security: SecurityConfig{
			EncryptionKey:  key,
			OTPTTL:         getDuration("OTP_TTL", 5*time.Minute),
			OTPMaxAttempts: getInt("OTP_MAX_ATTEMPTS", 5),
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			MailFrom:       getString("MAIL_FROM", "no-reply@schoolerp.local"),
			SMSEnabled:     getBool("SMS_ENABLED", false),
			SMSSenderID:    os.Getenv("SMS_SENDER_ID"),
		},
		Time: TimeConfig{
			NTPServers: getList("NTP_SERVERS", []string{"pool.ntp.org", "time.google.com", "time.cloudflare.com"}),
			NTPTimeout: getDuration("NTP_TIMEOUT", 3*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, cfg.Validate()
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects combinations the service cannot run with.
func (c *Config) Validate() error {
	var errs *multierror.Error
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		errs = multierror.Append(errs, fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.Storage.Driver))
	}
	if c.Environment != "development" && c.JWT.Secret == "" {
		errs = multierror.Append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if n := len(c.Security.EncryptionKey); n != 0 && n != 32 {
		errs = multierror.Append(errs, fmt.Errorf("ENCRYPTION_MASTER_KEY must decode to 32 bytes, got %d", n))
	}
	for _, sink := range c.Notifier.Sinks {
		switch sink {
		case "redis":
		case "kafka":
			if len(c.Notifier.KafkaBrokers) == 0 {
				errs = multierror.Append(errs, errors.New("KAFKA_BROKERS is required for the kafka sink"))
			}
		case "sns":
			if c.Notifier.SNSTopicARN == "" {
				errs = multierror.Append(errs, errors.New("SNS_TOPIC_ARN is required for the sns sink"))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("unknown notifier sink %q", sink))
		}
	}
	return errs.ErrorOrNil()
}

// HasSink reports whether the named notifier sink is enabled.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Notifier.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

// parseKey accepts a hex or base64 encoded key. An empty value disables encryption endpoints.
func parseKey(val string) ([]byte, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(val); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(val)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
