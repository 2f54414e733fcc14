package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DebugModeEnv is the environment variable for debug mode.
	DebugModeEnv = "DEBUG_MODE"

	// Env is the environment variable for environment name.
	Env = "ENV"

	// ProductionEnv is the environment name that enables production-only behavior.
	ProductionEnv = "production"

	// DatabaseURLEnv is the environment variable for a full database connection string.
	// When set it takes precedence over the individual DB_* variables.
	DatabaseURLEnv = "DATABASE_URL"

	// DBHostEnv is the environment variable for database host.
	DBHostEnv = "DB_HOST"

	// DBPortEnv is the environment variable for database port.
	DBPortEnv = "DB_PORT"

	// DBUserEnv is the environment variable for database user.
	DBUserEnv = "DB_USER"

	// DBPassEnv is the environment variable for database password.
	DBPassEnv = "DB_PASS"

	// DBNameEnv is the environment variable for database name.
	DBNameEnv = "DB_NAME"

	// DBSSLModeEnv is the environment variable for the database sslmode.
	DBSSLModeEnv = "DB_SSLMODE"

	// HTTPServerPortEnv is the environment variable for HTTP server port.
	HTTPServerPortEnv = "HTTP_SERVER_PORT"

	// APIPrefixEnv is the environment variable for the path prefix of the JSON API.
	APIPrefixEnv = "API_PREFIX"

	// StaticDirEnv is the environment variable for the client bundle directory served in production.
	StaticDirEnv = "STATIC_DIR"

	// MetricsServerPortEnv is the environment variable for metrics server port.
	MetricsServerPortEnv = "METRICS_SERVER_PORT"

	// CORSOriginEnv is the environment variable for the comma separated list of allowed origins.
	CORSOriginEnv = "CORS_ORIGIN"

	// GateEnabledEnv toggles the request gate.
	GateEnabledEnv = "GATE_ENABLED"

	// GateModeEnv is the gate mode: LIVE or DRY_RUN.
	GateModeEnv = "GATE_MODE"

	// GateCapacityEnv is the token bucket capacity per client.
	GateCapacityEnv = "GATE_CAPACITY"

	// GateRefillRateEnv is the number of tokens added every GATE_INTERVAL.
	GateRefillRateEnv = "GATE_REFILL_RATE"

	// GateIntervalEnv is the refill interval, as a Go duration or a number of seconds.
	GateIntervalEnv = "GATE_INTERVAL"

	// GateBotAllowEnv is the comma separated list of bot categories that are let through.
	GateBotAllowEnv = "GATE_BOT_ALLOW"

	// GateTrustXFFEnv makes the gate key clients by the first X-Forwarded-For address.
	GateTrustXFFEnv = "GATE_TRUST_XFF"

	// RedisAddrEnv is the Redis address for gate decision stats. Empty disables Redis stats.
	RedisAddrEnv = "GATE_STATS_REDIS_ADDR"

	// RedisPasswordEnv is the Redis password for gate decision stats.
	RedisPasswordEnv = "GATE_STATS_REDIS_PASSWORD"

	// RedisDBEnv is the Redis database index for gate decision stats.
	RedisDBEnv = "GATE_STATS_REDIS_DB"

	// RedisPrefixEnv is the key prefix for gate decision stats.
	RedisPrefixEnv = "GATE_STATS_PREFIX"

	// RedisTTLEnv is the TTL of per-minute gate stats buckets.
	RedisTTLEnv = "GATE_STATS_TTL"

	// EnvFilePath is the environment variable for .env file path (only for local/test environment).
	EnvFilePath = "ENV_PATH"

	// DefaultEnvFilePath is the default path to the .env file.
	DefaultEnvFilePath = ".env"
)

const (
	defaultHTTPPort    = "3000"
	defaultMetricsPort = "9090"
	defaultAPIPrefix   = "/api"
	defaultStaticDir   = "frontend/dist"
	defaultSSLMode     = "disable"

	defaultGateMode       = "LIVE"
	defaultGateCapacity   = 10
	defaultGateRefillRate = 5
	defaultGateInterval   = 10 * time.Second
	defaultGateBotAllow   = "SEARCH_ENGINE"

	defaultRedisPrefix = "gate:stats"
	defaultRedisTTL    = 24 * time.Hour
)

var (
	// ErrMissingConfig is returned when required configuration values are missing.
	ErrMissingConfig = errors.New("missing config data")

	// ErrInvalidConfig is returned when a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid config data")

	defaultCORSOrigins = []string{
		"http://localhost:5173",
		"http://localhost:3000",
	}
)

// Config represents the application configuration.
type Config struct {
	Env           string
	DebugMode     bool
	Database      DB
	HTTPServer    HTTPServer
	MetricsServer Server
	CORS          CORS
	Gate          Gate
	Redis         Redis
}

// IsProduction reports whether ENV is set to production.
func (c *Config) IsProduction() bool {
	return c.Env == ProductionEnv
}

// DB represents database configuration settings.
type DB struct {
	URL      string
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

// DSN returns the connection string for the pgx driver.
func (d DB) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	dsnTmp := "host=%s user=%s password=%s dbname=%s port=%s sslmode=%s"
	return fmt.Sprintf(dsnTmp, d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// Server represents server configuration settings.
type Server struct {
	Port string
}

// HTTPServer holds the API server settings.
type HTTPServer struct {
	Port      string
	APIPrefix string
	StaticDir string
}

// CORS holds the allowed origins for cross-origin requests.
type CORS struct {
	AllowedOrigins []string
}

// Gate holds the rate limit / bot / shield settings.
type Gate struct {
	Enabled    bool
	Mode       string
	Capacity   int
	RefillRate int
	Interval   time.Duration
	BotAllow   []string
	TrustXFF   bool
}

// Redis holds the optional Redis connection used for gate decision stats.
type Redis struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Enabled reports whether Redis stats are configured.
func (r Redis) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

func allNonEmpty(keyValues map[string]string) error {
	for key, value := range keyValues {
		if value == "" {
			slog.Error("configuration validation failed", slog.String("key", key), slog.String("error", "value is empty"))
			return fmt.Errorf("%w for key: %s", ErrMissingConfig, key)
		}
	}
	return nil
}

func allNumbers(keyValues map[string]string) error {
	for key, value := range keyValues {
		_, err := strconv.Atoi(value)
		if err != nil {
			slog.Error("configuration validation failed", slog.String("key", key), slog.String("value", value), slog.String("error", err.Error()))
			return fmt.Errorf("invalid number for key %s: %w", key, err)
		}
	}
	return nil
}

func allPositive(keyValues map[string]int) error {
	for key, value := range keyValues {
		if value <= 0 {
			slog.Error("configuration validation failed", slog.String("key", key), slog.Int("value", value), slog.String("error", "value must be > 0"))
			return fmt.Errorf("%w: %s must be > 0", ErrInvalidConfig, key)
		}
	}
	return nil
}

func (c *Config) validate() error {
	// Validate database configuration
	if c.Database.URL == "" {
		if err := allNonEmpty(map[string]string{
			DBHostEnv: c.Database.Host,
			DBUserEnv: c.Database.User,
			DBNameEnv: c.Database.Name,
		}); err != nil {
			return fmt.Errorf("database configuration incomplete: %w", err)
		}
		if err := allNumbers(map[string]string{
			DBPortEnv: c.Database.Port,
		}); err != nil {
			return fmt.Errorf("invalid port number: %w", err)
		}
	}

	// Validate server ports
	if err := allNumbers(map[string]string{
		HTTPServerPortEnv:    c.HTTPServer.Port,
		MetricsServerPortEnv: c.MetricsServer.Port,
	}); err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}

	if c.HTTPServer.APIPrefix != "" && !strings.HasPrefix(c.HTTPServer.APIPrefix, "/") {
		return fmt.Errorf("%w: %s must start with '/'", ErrInvalidConfig, APIPrefixEnv)
	}

	// Validate gate thresholds
	if err := allPositive(map[string]int{
		GateCapacityEnv:   c.Gate.Capacity,
		GateRefillRateEnv: c.Gate.RefillRate,
		GateIntervalEnv:   int(c.Gate.Interval),
	}); err != nil {
		return fmt.Errorf("gate configuration invalid: %w", err)
	}

	switch c.Gate.Mode {
	case "LIVE", "DRY_RUN":
	default:
		return fmt.Errorf("%w: %s must be LIVE or DRY_RUN, got %q", ErrInvalidConfig, GateModeEnv, c.Gate.Mode)
	}

	return nil
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if val, err := strconv.ParseBool(os.Getenv(name)); err == nil {
		return val
	}
	return defaultValue
}

func getEnvDefault(name, defaultValue string) string {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		return val
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if val, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name))); err == nil {
		return val
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("10s", "1m") and bare numbers of seconds ("10").
func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	slog.Warn("ignoring invalid duration", slog.String("key", name), slog.String("value", raw))
	return defaultValue
}

func getEnvAsList(name string, defaultValue []string) []string {
	raw := os.Getenv(name)
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ApplyEnvFile loads environment variables from the specified .env files.
func ApplyEnvFile(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables and validates it.
func LoadFromEnv() (*Config, error) {
	envPath := os.Getenv(EnvFilePath)
	if envPath == "" {
		envPath = DefaultEnvFilePath
	}
	err := ApplyEnvFile(envPath)
	if err != nil {
		// just log the error, maybe all envs are set in another way
		slog.Info("failed to load from .env", slog.Any("err", err))
	}

	conf := &Config{
		Env:       getEnvDefault(Env, "development"),
		DebugMode: getEnvAsBool(DebugModeEnv, false),
		Database: DB{
			URL:      os.Getenv(DatabaseURLEnv),
			Host:     os.Getenv(DBHostEnv),
			User:     os.Getenv(DBUserEnv),
			Password: os.Getenv(DBPassEnv),
			Name:     os.Getenv(DBNameEnv),
			Port:     getEnvDefault(DBPortEnv, "5432"),
			SSLMode:  getEnvDefault(DBSSLModeEnv, defaultSSLMode),
		},
		HTTPServer: HTTPServer{
			Port:      getEnvDefault(HTTPServerPortEnv, defaultHTTPPort),
			APIPrefix: strings.TrimRight(getEnvDefault(APIPrefixEnv, defaultAPIPrefix), "/"),
			StaticDir: getEnvDefault(StaticDirEnv, defaultStaticDir),
		},
		MetricsServer: Server{
			Port: getEnvDefault(MetricsServerPortEnv, defaultMetricsPort),
		},
		CORS: CORS{
			AllowedOrigins: getEnvAsList(CORSOriginEnv, defaultCORSOrigins),
		},
		Gate: Gate{
			Enabled:    getEnvAsBool(GateEnabledEnv, true),
			Mode:       strings.ToUpper(getEnvDefault(GateModeEnv, defaultGateMode)),
			Capacity:   getEnvAsInt(GateCapacityEnv, defaultGateCapacity),
			RefillRate: getEnvAsInt(GateRefillRateEnv, defaultGateRefillRate),
			Interval:   getEnvAsDuration(GateIntervalEnv, defaultGateInterval),
			BotAllow:   getEnvAsList(GateBotAllowEnv, []string{defaultGateBotAllow}),
			TrustXFF:   getEnvAsBool(GateTrustXFFEnv, false),
		},
		Redis: Redis{
			Addr:     os.Getenv(RedisAddrEnv),
			Password: os.Getenv(RedisPasswordEnv),
			DB:       getEnvAsInt(RedisDBEnv, 0),
			Prefix:   getEnvDefault(RedisPrefixEnv, defaultRedisPrefix),
			TTL:      getEnvAsDuration(RedisTTLEnv, defaultRedisTTL),
		},
	}

	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return conf, nil
}
