package app

import (
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// RedisURL switches the offline mailbox to the shared Redis backend so
	// multiple instances see the same missed-message state.
	RedisURL string

	// AuthHMACKey enables bearer-token verification on identify. Empty key
	// means the insecure dev authenticator (trusts the claimed identity).
	AuthHMACKey string

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, startup fails unless RIPPLE_AUTH_HMAC_KEY is set (>= 32 bytes).
	RequireAuth bool
}

// LoadConfig loads Config from environment variables with defaults.
// In development a .env file is honored if present.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:  EnvString("RIPPLE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("RIPPLE_LOG_LEVEL", "info"),
		LogFormat: EnvString("RIPPLE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("RIPPLE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("RIPPLE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("RIPPLE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("RIPPLE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("RIPPLE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("RIPPLE_DATABASE_URL", ""),
		DBSchema:    EnvString("RIPPLE_DB_SCHEMA", "ripple"),
		DBMaxConns:  EnvInt32("RIPPLE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("RIPPLE_DB_MIN_CONNS", 0),

		RedisURL: EnvString("RIPPLE_REDIS_URL", ""),

		AuthHMACKey: EnvString("RIPPLE_AUTH_HMAC_KEY", ""),

		ReadinessRequireDB: EnvBool("RIPPLE_READINESS_REQUIRE_DB", false),
		RequireAuth:        EnvBool("RIPPLE_REQUIRE_AUTH", false),
	}
}
